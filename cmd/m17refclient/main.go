package main

/*------------------------------------------------------------------
 *
 * Purpose:   	Subscribe to a reflector module and print traffic.
 *
 * Description:	Speaks the client side of the reflector UDP protocol:
 *		connect (or listen-only), answer the keepalive pings,
 *		and show the voice streams and packets relayed to us
 *		until interrupted, when a clean disconnect is sent.
 *
 *		Handy for checking whether a reflector is alive and
 *		what a module is carrying.
 *
 *---------------------------------------------------------------*/

import (
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	m17 "github.com/thombles/m17rt/src"
)

func main() {
	var reflector = pflag.StringP("reflector", "r", "", "Reflector host:port, e.g. m17.example.org:17000.")
	var callsign = pflag.StringP("callsign", "s", "", "Your callsign.")
	var module = pflag.StringP("module", "m", "A", "Module letter to join.")
	var listenOnly = pflag.BoolP("listen-only", "l", false, "Subscribe without transmit rights.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s - subscribe to a reflector module and print traffic.\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Usage: m17refclient -r host:port -s CALLSIGN [-m A]\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if *reflector == "" || *callsign == "" {
		pflag.Usage()
		os.Exit(1)
	}
	if len(*module) != 1 || (*module)[0] < 'A' || (*module)[0] > 'Z' {
		log.Fatal("module must be a single letter A-Z", "module", *module)
	}

	var address, err = m17.ParseCallsign(*callsign)
	if err != nil {
		log.Fatal("bad callsign", "callsign", *callsign, "error", err)
	}

	conn, err := net.Dial("udp", *reflector)
	if err != nil {
		log.Fatal("can't reach reflector", "reflector", *reflector, "error", err)
	}
	defer conn.Close()

	if *listenOnly {
		var listen = m17.NewListen(address, (*module)[0])
		_, err = conn.Write(listen.Bytes())
	} else {
		var connect = m17.NewConnect(address, (*module)[0])
		_, err = conn.Write(connect.Bytes())
	}
	if err != nil {
		log.Fatal("send failed", "error", err)
	}

	var sig = make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		var disc = m17.NewDisconnect(address)
		conn.Write(disc.Bytes())
		conn.Close()
	}()

	var buf [1024]byte
	for {
		var n, readErr = conn.Read(buf[:])
		if readErr != nil {
			log.Info("disconnected")
			return
		}
		var msg, ok = m17.ParseServerMessage(buf[:n])
		if !ok {
			log.Debug("unrecognised datagram", "len", n)
			continue
		}

		switch msg := msg.(type) {
		case m17.ConnectAcknowledge:
			log.Info("connected", "reflector", *reflector, "module", *module)
		case m17.ConnectNack:
			log.Fatal("reflector refused the connection")
		case *m17.Ping:
			var pong = m17.NewPong(address)
			conn.Write(pong.Bytes())
		case *m17.ForceDisconnect:
			log.Info("reflector disconnected us")
			return
		case m17.DisconnectAcknowledge:
			return
		case *m17.Voice:
			print_voice(msg)
		case *m17.RefPacket:
			print_packet(msg)
		}
	}
}

func print_voice(v *m17.Voice) {
	var lsf = v.LinkSetupFrame()
	var eos = ""
	if v.IsEndOfStream() {
		eos = " EOS"
	}
	fmt.Printf("VOICE %s > %s sid=%04x fn=%d%s\n",
		address_string(lsf.Source()), address_string(lsf.Destination()),
		v.StreamId(), v.FrameNumber(), eos)
}

func print_packet(p *m17.RefPacket) {
	var lsf = p.LinkSetupFrame()
	var payload = p.Payload()
	fmt.Printf("PACKET %s > %s %d bytes\n",
		address_string(lsf.Source()), address_string(lsf.Destination()), len(payload))
	if len(payload) > 3 && payload[0] == 0x05 {
		// SMS packet, text up to the checksum.
		fmt.Printf("  %q\n", string(payload[1:len(payload)-2]))
	} else {
		fmt.Printf("  %s\n", hex.EncodeToString(payload))
	}
}

func address_string(a m17.Address) string {
	if a.IsBroadcast() {
		return "@ALL"
	}
	if cs, err := a.Callsign(); err == nil {
		return cs
	}
	return fmt.Sprintf("#%012X", uint64(a))
}

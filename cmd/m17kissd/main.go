package main

/*------------------------------------------------------------------
 *
 * Purpose:   	Soundmodem daemon: a software TNC for digital voice
 *		and data over radio.
 *
 * Description:	Ties the whole stack together:
 *
 *			Demodulator and modulator on 48 kHz baseband.
 *			CSMA TNC with the three-port KISS protocol.
 *			KISS over TCP with DNS-SD announcement.
 *			KISS over a serial port or pseudo terminal.
 *			PTT via serial control lines or GPIO.
 *			Heard station CSV log.
 *
 *		Everything is driven from one YAML configuration file.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	m17 "github.com/thombles/m17rt/src"
)

func main() {
	var configFileName = pflag.StringP("config-file", "c", "m17kissd.yaml", "Configuration file name.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s - a software soundmodem/TNC daemon.\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Usage: m17kissd [options]\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	var cfg, err = m17.LoadConfig(*configFileName)
	if err != nil {
		log.Fatal("configuration failed", "path", *configFileName, "error", err)
	}

	input, err := cfg.Input.NewSampleInput()
	if err != nil {
		log.Fatal("sample input failed", "error", err)
	}
	output, err := cfg.Output.NewSampleOutput()
	if err != nil {
		log.Fatal("sample output failed", "error", err)
	}
	ptt, err := cfg.Ptt.NewPttSwitch()
	if err != nil {
		log.Fatal("PTT setup failed", "error", err)
	}
	defer ptt.Close()

	var modem = m17.NewSoundmodem(input, output, ptt)

	// Channel access parameters, as a host would set them.
	if cfg.Tx.TxDelay != 0 {
		var f = m17.NewTxDelayKiss(0, cfg.Tx.TxDelay)
		modem.Write(f.Bytes())
	}
	var pf = m17.NewPersistenceKiss(0, cfg.Tx.Persistence)
	modem.Write(pf.Bytes())
	var df = m17.NewFullDuplexKiss(0, cfg.Tx.FullDuplex)
	modem.Write(df.Bytes())

	var heard_log = m17.NewHeardLog(cfg.HeardLog)
	defer heard_log.Close()
	var heard = m17.NewHeardStations()
	modem.NotifyLsf(func(lsf *m17.LsfFrame) {
		heard_log.Record(lsf)
		heard.Heard(lsf)
	})

	var fanout = new_kiss_fanout(modem)
	var wg sync.WaitGroup

	if cfg.Kiss.TcpPort != 0 {
		var server = m17.NewKissTcpServer(cfg.Kiss.TcpPort, cfg.Kiss.ServiceName)
		defer server.Close()
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := server.Serve(fanout.tap()); err != nil {
				log.Error("KISS TCP server failed", "error", err)
			}
		}()
	}

	if cfg.Kiss.SerialDevice != "" {
		var serial, serialErr = m17.NewSerialKissEndpoint(cfg.Kiss.SerialDevice, cfg.Kiss.SerialBaud)
		if serialErr != nil {
			log.Fatal("serial KISS endpoint failed", "device", cfg.Kiss.SerialDevice, "error", serialErr)
		}
		defer serial.Close()
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := serial.Serve(fanout.tap()); err != nil {
				log.Error("serial KISS endpoint failed", "error", err)
			}
		}()
	}

	if cfg.Kiss.Pty {
		var symlink = cfg.Kiss.PtySymlink
		if symlink == "" {
			symlink = m17.TMP_KISSTNC_SYMLINK
		}
		var pty, ptyErr = m17.NewPtyKissEndpoint(symlink)
		if ptyErr != nil {
			log.Fatal("pty KISS endpoint failed", "error", ptyErr)
		}
		defer pty.Close()
		log.Info("virtual KISS TNC is available", "pty", pty.Name(), "symlink", symlink)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := pty.Serve(fanout.tap()); err != nil {
				log.Error("pty KISS endpoint failed", "error", err)
			}
		}()
	}

	go fanout.run()
	modem.Start()
	log.Info("soundmodem running", "version", m17.VersionString(), "callsign", cfg.Callsign)

	var sig = make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.Info("shutting down")
	modem.Close()
}

/*
 * The soundmodem is a single io.ReadWriter but several KISS endpoints
 * may be active at once. Writes pass straight through; one reader
 * goroutine copies each decoded frame to every endpoint.
 */

type kiss_fanout struct {
	modem io.ReadWriter

	mu   sync.Mutex
	taps []*kiss_tap
}

type kiss_tap struct {
	modem io.Writer
	ch    chan []byte
	rest  []byte
}

func new_kiss_fanout(modem io.ReadWriter) *kiss_fanout {
	return &kiss_fanout{modem: modem}
}

func (f *kiss_fanout) tap() *kiss_tap {
	var t = &kiss_tap{modem: f.modem, ch: make(chan []byte, 16)}
	f.mu.Lock()
	f.taps = append(f.taps, t)
	f.mu.Unlock()
	return t
}

func (f *kiss_fanout) run() {
	var buf = make([]byte, m17.MAX_KISS_LEN)
	for {
		var n, err = f.modem.Read(buf)
		if err != nil {
			f.mu.Lock()
			for _, t := range f.taps {
				close(t.ch)
			}
			f.mu.Unlock()
			return
		}
		f.mu.Lock()
		for _, t := range f.taps {
			var out = append([]byte{}, buf[:n]...)
			select {
			case t.ch <- out:
			default:
				log.Warn("KISS endpoint not keeping up, dropping data", "len", n)
			}
		}
		f.mu.Unlock()
	}
}

func (t *kiss_tap) Read(p []byte) (int, error) {
	if len(t.rest) > 0 {
		var n = copy(p, t.rest)
		t.rest = t.rest[n:]
		return n, nil
	}
	var data, ok = <-t.ch
	if !ok {
		return 0, io.EOF
	}
	var n = copy(p, data)
	t.rest = data[n:]
	return n, nil
}

func (t *kiss_tap) Write(p []byte) (int, error) {
	return t.modem.Write(p)
}

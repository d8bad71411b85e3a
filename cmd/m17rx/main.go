package main

/*------------------------------------------------------------------
 *
 * Purpose:   	Decode a baseband sample file and print what is heard.
 *
 * Description:	Reads raw 48 kHz signed 16 bit little-endian samples,
 *		runs them through the demodulator and TNC, and prints
 *		each decoded frame. The KISS frames the TNC would hand
 *		to a host can be hex dumped too.
 *
 *		The counterpart of m17gen; together they check the
 *		whole modem path without a radio.
 *
 *---------------------------------------------------------------*/

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	m17 "github.com/thombles/m17rt/src"
)

func main() {
	var showKiss = pflag.BoolP("kiss", "k", false, "Hex dump the KISS frames produced for the host.")
	var quiet = pflag.BoolP("quiet", "q", false, "Only print the summary.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s - decode a raw 48kHz s16le baseband sample file.\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Usage: m17rx [options] file.rrc\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if pflag.NArg() != 1 {
		pflag.Usage()
		os.Exit(1)
	}

	var data, err = os.ReadFile(pflag.Arg(0))
	if err != nil {
		log.Fatal("can't read sample file", "path", pflag.Arg(0), "error", err)
	}

	var demodulator = m17.NewSoftDemodulator()
	var tnc = m17.NewSoftTnc()
	var kiss_buf = make([]byte, m17.MAX_KISS_LEN)
	var heard = m17.NewHeardStations()

	var lsf_count, stream_count, packet_count, kiss_count int

	for i := 0; i+1 < len(data); i += 2 {
		var sample = int16(binary.LittleEndian.Uint16(data[i:]))
		var frame = demodulator.Demod(sample)
		if frame == nil {
			continue
		}

		switch frame := frame.(type) {
		case m17.LsfFrame:
			lsf_count++
			heard.Heard(&frame)
			if !*quiet {
				print_lsf(&frame)
			}
		case m17.StreamFrame:
			stream_count++
			if !*quiet {
				fmt.Printf("STREAM fn=%d eos=%v data=%s\n",
					frame.FrameNumber, frame.EndOfStream,
					hex.EncodeToString(frame.StreamData[:]))
			}
		case m17.PacketFrame:
			packet_count++
		}

		tnc.HandleFrame(frame)
		for {
			var n = tnc.ReadKissBuffer(kiss_buf)
			if n == 0 {
				break
			}
			kiss_count++
			if *showKiss {
				fmt.Printf("KISS %s\n", hex.EncodeToString(kiss_buf[:n]))
			}
		}
	}

	fmt.Printf("\n%d samples, %d LSF, %d stream frames, %d packet frames, %d KISS frames\n",
		len(data)/2, lsf_count, stream_count, packet_count, kiss_count)
	for _, station := range heard.List() {
		fmt.Printf("heard %s %d times\n", station, heard.HeardCount(station))
	}
}

func print_lsf(lsf *m17.LsfFrame) {
	var src = address_string(lsf.Source())
	var dst = address_string(lsf.Destination())
	var mode = "packet"
	if lsf.Mode() == m17.ModeStream {
		mode = "stream"
	}
	fmt.Printf("LSF %s > %s %s can=%d\n", src, dst, mode, lsf.ChannelAccessNumber())
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

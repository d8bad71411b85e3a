package main

/*------------------------------------------------------------------
 *
 * Purpose:   	Test program for generating baseband sample files.
 *
 * Description:	Given a payload, generate the 48 kHz signed 16 bit
 *		little-endian baseband of a complete transmission,
 *		suitable for feeding back into m17rx or the soundmodem
 *		file input for testing without a radio.
 *
 *		Either one packet transmission or a stream of data
 *		frames can be produced.
 *
 *---------------------------------------------------------------*/

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	m17 "github.com/thombles/m17rt/src"
)

func main() {
	var source = pflag.StringP("source", "s", "N0CALL", "Source callsign.")
	var destination = pflag.StringP("dest", "d", "@ALL", "Destination callsign, @ALL for broadcast.")
	var message = pflag.StringP("message", "m", "Hello, world!", "Payload text.")
	var output = pflag.StringP("output", "o", "m17gen.rrc", "Output file for raw 48kHz s16le samples.")
	var stream = pflag.Bool("stream", false, "Send a data stream instead of a packet.")
	var streamFrames = pflag.Int("stream-frames", 10, "Number of stream data frames.")
	var count = pflag.IntP("count", "n", 1, "Number of transmissions.")
	var leader = pflag.Int("silence", 4800, "Samples of leading and trailing silence.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s - generate baseband sample files for testing.\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Usage: m17gen [options]\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	var src, err = m17.ParseCallsign(*source)
	if err != nil {
		log.Fatal("bad source callsign", "callsign", *source, "error", err)
	}
	var dst = m17.AddressBroadcast
	if *destination != "@ALL" {
		dst, err = m17.ParseCallsign(*destination)
		if err != nil {
			log.Fatal("bad destination callsign", "callsign", *destination, "error", err)
		}
	}

	var tnc = m17.NewSoftTnc()
	for i := 0; i < *count; i++ {
		if *stream {
			enqueue_stream(tnc, dst, src, []byte(*message), *streamFrames)
		} else {
			enqueue_packet(tnc, dst, src, []byte(*message))
		}
	}

	var samples = make([]int16, *leader)
	samples = append(samples, modulate_all(tnc)...)
	samples = append(samples, make([]int16, *leader)...)

	f, err := os.Create(*output)
	if err != nil {
		log.Fatal("can't create output file", "path", *output, "error", err)
	}
	var buf = make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(s))
	}
	if _, err := f.Write(buf); err != nil {
		log.Fatal("write failed", "path", *output, "error", err)
	}
	if err := f.Close(); err != nil {
		log.Fatal("close failed", "path", *output, "error", err)
	}

	log.Info("wrote baseband", "path", *output, "samples", len(samples),
		"seconds", fmt.Sprintf("%.2f", float64(len(samples))/48000.0))
}

func enqueue_packet(tnc *m17.SoftTnc, dst m17.Address, src m17.Address, message []byte) {
	var lsf = m17.NewLsfFrame(dst, src, m17.ModePacket, m17.DataTypeData, 0)

	// SMS type code plus payload plus CRC, the usual packet shape.
	var packet = append([]byte{0x05}, message...)
	var crc = m17.Crc(packet)
	packet = append(packet, byte(crc>>8), byte(crc))

	var frame, err = m17.NewFullPacketKiss(&lsf, packet)
	if err != nil {
		log.Fatal("payload too large", "error", err)
	}
	tnc.WriteKissBuffer(frame.Bytes())
}

func enqueue_stream(tnc *m17.SoftTnc, dst m17.Address, src m17.Address, message []byte, frames int) {
	var lsf = m17.NewLsfFrame(dst, src, m17.ModeStream, m17.DataTypeData, 0)
	var setup = m17.NewStreamSetupKiss(&lsf)
	tnc.WriteKissBuffer(setup.Bytes())

	if frames < 1 {
		frames = 1
	}
	for i := 0; i < frames; i++ {
		var sf = m17.StreamFrame{
			LichIdx:     uint8(i % 6),
			FrameNumber: uint16(i),
			EndOfStream: i == frames-1,
		}
		copy(sf.LichPart[:], lsf[5*(i%6):5*(i%6)+5])
		copy(sf.StreamData[:], message)
		var data = m17.NewStreamDataKiss(&sf)
		tnc.WriteKissBuffer(data.Bytes())
	}
}

// modulate_all pumps the modulator against the TNC until both go quiet.
func modulate_all(tnc *m17.SoftTnc) []int16 {
	var m = m17.NewSoftModulator()
	var out []int16
	var buf [1024]int16
	var last_nil = false
	m.UpdateOutputBuffer(0, 1<<20, 0)
	for i := 0; i < 1_000_000; i++ {
		var action = m.Run()
		if action == nil {
			if last_nil {
				return out
			}
			last_nil = true
			continue
		}
		switch action := action.(type) {
		case m17.ActionReadOutput:
			for {
				var n = m.ReadOutputSamples(buf[:])
				if n == 0 {
					break
				}
				out = append(out, buf[:n]...)
			}
			m.UpdateOutputBuffer(0, 1<<20, 0)
		case m17.ActionGetNextFrame:
			var frame = tnc.ReadTxFrame()
			if frame != nil {
				last_nil = false
			}
			m.ProvideNextFrame(frame)
		case m17.ActionTransmissionWillEnd:
			tnc.SetTxEndTime(action.RemainingSamples)
		case m17.ActionSetIdle:
		}
	}
	log.Fatal("modulator never went quiet")
	return nil
}

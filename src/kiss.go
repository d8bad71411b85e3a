package m17

/*------------------------------------------------------------------
 *
 * Purpose:   	Byte framing between the TNC and host software.
 *
 * Description: The KISS protocol is described in
 *		http://www.ka9q.net/papers/kiss.html
 *
 * 		Briefly, a frame is composed of
 *
 *			* FEND (0xC0)
 *			* Contents - with special escape sequences so a 0xC0
 *				byte in the data is not taken as end of frame.
 *			* FEND
 *
 *		The first byte of the frame holds a port number in the
 *		upper nybble and a command in the lower nybble. The
 *		port numbers carry the M17-specific meanings:
 *
 *			0	Basic packet. Host supplies a raw payload;
 *				the TNC adds the type prefix and CRC and
 *				fragments it for transmission.
 *
 *			1	Full packet. Host supplies a complete
 *				30 byte LSF followed by a packet payload
 *				including type prefix and CRC.
 *
 *			2	Stream. A 30 byte LSF starts a stream,
 *				then 26 byte data payloads follow until
 *				one carries the end-of-stream flag.
 *
 *		Commands from host to TNC:
 *
 *			_0	Data Frame
 *			_1	TXDELAY		Key-up delay, 10 ms units.
 *			_2	Persistence	CSMA P parameter.
 *			_5	FullDuplex	Transmit without waiting
 *						for a clear channel.
 *
 *		FEND and FESC both have the top two bits set. In the
 *		header byte this corresponds to high port numbers which
 *		are never used here, so the header never needs escaping.
 *
 *---------------------------------------------------------------*/

import (
	"errors"
	"fmt"
)

/*
 * Special characters used by SLIP style framing.
 */

const FEND = 0xC0
const FESC = 0xDB
const TFEND = 0xDC
const TFESC = 0xDD

const KISS_PORT_PACKET_BASIC = 0
const KISS_PORT_PACKET_FULL = 1
const KISS_PORT_STREAM = 2

type KissCommand int

const (
	KissCommandDataFrame  KissCommand = 0
	KissCommandTxDelay    KissCommand = 1
	KissCommandP          KissCommand = 2
	KissCommandFullDuplex KissCommand = 5
)

// Maximum size of any valid KISS frame we produce or accept.
//
// In full packet mode a 30 byte LSF is merged with a packet which may
// be up to 825 bytes. In the worst case every byte is FEND or FESC so
// the escaped payload doubles to 1710 bytes; a FEND at each end plus
// the header byte makes 1713.
const MAX_KISS_LEN = 1713

// Stream data payloads are fixed size: 5 LICH bytes, the LICH counter,
// 2 frame number bytes, 16 payload bytes and a trailing CRC.
const kiss_stream_data_len = 26

var ErrKissFrame = errors.New("malformed KISS frame")

// KissFrame is one host-facing frame in its escaped wire form,
// including the leading and trailing FEND.
type KissFrame struct {
	data []byte
}

func kiss_header(port uint8, command KissCommand) byte {
	return port<<4 | byte(command)&0x0f
}

func new_kiss_frame(port uint8, command KissCommand, payloads ...[]byte) KissFrame {
	var data = make([]byte, 0, 64)
	data = append(data, FEND, kiss_header(port, command))
	for _, p := range payloads {
		data = kiss_escape(data, p)
	}
	data = append(data, FEND)
	return KissFrame{data: data}
}

/*-------------------------------------------------------------
 *
 * Name:	NewBasicPacketKiss
 *
 * Purpose:	Request transmission of a packet in basic mode.
 *
 * Inputs:	payload		- Raw application payload, up to 822
 *				  bytes. The TNC adds the RAW type
 *				  prefix and the checksum, and splits
 *				  the result into frames.
 *
 * Returns:	Frame ready to write to the TNC, or an error when
 *		the payload cannot fit a single packet.
 *
 *--------------------------------------------------------------*/

func NewBasicPacketKiss(payload []byte) (KissFrame, error) {
	if len(payload) > packet_max_len-3 {
		return KissFrame{}, fmt.Errorf("%w: basic packet payload %d bytes", ErrKissFrame, len(payload))
	}
	return new_kiss_frame(KISS_PORT_PACKET_BASIC, KissCommandDataFrame, payload), nil
}

// NewFullPacketKiss requests transmission of a packet in full mode: the
// caller supplies the LSF and a payload already carrying its type
// prefix and CRC.
func NewFullPacketKiss(lsf *LsfFrame, packet []byte) (KissFrame, error) {
	if len(packet) > packet_max_len {
		return KissFrame{}, fmt.Errorf("%w: packet payload %d bytes", ErrKissFrame, len(packet))
	}
	return new_kiss_frame(KISS_PORT_PACKET_FULL, KissCommandDataFrame, lsf[:], packet), nil
}

// NewStreamSetupKiss begins a stream transfer with its Link Setup
// Frame. At least one stream data frame must follow, the last with the
// end-of-stream flag set.
func NewStreamSetupKiss(lsf *LsfFrame) KissFrame {
	return new_kiss_frame(KISS_PORT_STREAM, KissCommandDataFrame, lsf[:])
}

// NewStreamDataKiss carries one stream frame: LICH fragment, counter,
// frame number and payload, with a trailing CRC over the lot.
func NewStreamDataKiss(frame *StreamFrame) KissFrame {
	var payload [kiss_stream_data_len]byte
	copy(payload[0:5], frame.LichPart[:])
	payload[5] = frame.LichIdx << 5
	var frame_number = frame.FrameNumber & 0x7fff
	if frame.EndOfStream {
		frame_number |= 0x8000
	}
	payload[6] = byte(frame_number >> 8)
	payload[7] = byte(frame_number)
	copy(payload[8:24], frame.StreamData[:])
	var c = m17_crc(payload[0:24])
	payload[24] = byte(c >> 8)
	payload[25] = byte(c)
	return new_kiss_frame(KISS_PORT_STREAM, KissCommandDataFrame, payload[:])
}

// NewTxDelayKiss sets the key-up delay in 10 ms units.
func NewTxDelayKiss(port uint8, units uint8) KissFrame {
	return new_kiss_frame(port, KissCommandTxDelay, []byte{units})
}

// NewPersistenceKiss sets the CSMA persistence parameter, where the
// probability of transmitting into a free slot is (units + 1) / 256.
func NewPersistenceKiss(port uint8, units uint8) KissFrame {
	return new_kiss_frame(port, KissCommandP, []byte{units})
}

// NewFullDuplexKiss enables or disables full duplex operation.
func NewFullDuplexKiss(port uint8, full_duplex bool) KissFrame {
	var value byte
	if full_duplex {
		value = 1
	}
	return new_kiss_frame(port, KissCommandFullDuplex, []byte{value})
}

// Bytes is the escaped wire form including delimiters.
func (f *KissFrame) Bytes() []byte {
	return f.data
}

// header_byte skips any leading FENDs to find the port/command byte.
func (f *KissFrame) header_byte() (byte, error) {
	for _, b := range f.data {
		if b != FEND {
			return b, nil
		}
	}
	return 0, ErrKissFrame
}

func (f *KissFrame) Port() (uint8, error) {
	var h, err = f.header_byte()
	return h >> 4, err
}

func (f *KissFrame) Command() (KissCommand, error) {
	var h, err = f.header_byte()
	if err != nil {
		return 0, err
	}
	switch KissCommand(h & 0x0f) {
	case KissCommandDataFrame, KissCommandTxDelay, KissCommandP, KissCommandFullDuplex:
		return KissCommand(h & 0x0f), nil
	}
	return 0, fmt.Errorf("%w: unsupported command %#x", ErrKissFrame, h&0x0f)
}

// PayloadBytes unescapes and returns the frame content between the
// header byte and the closing delimiter.
func (f *KissFrame) PayloadBytes() ([]byte, error) {
	var start = -1
	for i, b := range f.data {
		if b != FEND {
			start = i + 1
			break
		}
	}
	if start < 0 || start > len(f.data) {
		return nil, ErrKissFrame
	}
	var end = len(f.data)
	for i := start; i < len(f.data); i++ {
		if f.data[i] == FEND {
			end = i
			break
		}
	}
	return kiss_unescape(f.data[start:end]), nil
}

func kiss_escape(dst []byte, src []byte) []byte {
	for _, b := range src {
		switch b {
		case FEND:
			dst = append(dst, FESC, TFEND)
		case FESC:
			dst = append(dst, FESC, TFESC)
		default:
			dst = append(dst, b)
		}
	}
	return dst
}

func kiss_unescape(src []byte) []byte {
	var dst = make([]byte, 0, len(src))
	for i := 0; i < len(src); i++ {
		if src[i] == FESC {
			if i == len(src)-1 {
				break
			}
			i++
			switch src[i] {
			case TFEND:
				dst = append(dst, FEND)
			case TFESC:
				dst = append(dst, FESC)
			}
			continue
		}
		dst = append(dst, src[i])
	}
	return dst
}

type kiss_state_e int

const (
	KS_SEARCHING  kiss_state_e = 0 /* Looking for FEND to start a frame. Zero value so a fresh buffer needs no setup. */
	KS_COLLECTING kiss_state_e = 1 /* In process of collecting a frame. */
)

// KissBuffer reassembles frames from an incoming byte stream which may
// deliver them in arbitrary fragments. Noise between frames and frames
// that grow past any legal size are discarded; scanning resumes at the
// next delimiter either way.
type KissBuffer struct {
	state kiss_state_e
	frame [MAX_KISS_LEN]byte
	len   int
	ready []KissFrame
}

// Write feeds received bytes in. It always consumes the whole slice.
func (b *KissBuffer) Write(data []byte) {
	for _, by := range data {
		switch b.state {
		case KS_SEARCHING:
			if by == FEND {
				b.state = KS_COLLECTING
				b.len = 0
			}
		case KS_COLLECTING:
			if by == FEND {
				if b.len > 0 {
					b.complete_frame()
				}
				// Back to back FENDs or idle fill between frames
				// just restart collection.
				b.len = 0
				continue
			}
			if b.len == MAX_KISS_LEN {
				// Oversized: throw it away and resynchronize.
				b.state = KS_SEARCHING
				b.len = 0
				continue
			}
			b.frame[b.len] = by
			b.len++
		}
	}
}

func (b *KissBuffer) complete_frame() {
	// A frame that lost its closing FEND runs into the next frame's
	// opener and arrives here garbled. Bad escape sequences are the
	// telltale; drop the frame and the stream stays in sync.
	for i := 0; i < b.len; i++ {
		if b.frame[i] != FESC {
			continue
		}
		if i == b.len-1 || (b.frame[i+1] != TFEND && b.frame[i+1] != TFESC) {
			return
		}
		i++
	}
	var data = make([]byte, 0, b.len+2)
	data = append(data, FEND)
	data = append(data, b.frame[:b.len]...)
	data = append(data, FEND)
	b.ready = append(b.ready, KissFrame{data: data})
}

// NextFrame returns the next complete frame, or ok=false when no more
// are pending.
func (b *KissBuffer) NextFrame() (KissFrame, bool) {
	if len(b.ready) == 0 {
		return KissFrame{}, false
	}
	var f = b.ready[0]
	b.ready = b.ready[1:]
	return f, true
}

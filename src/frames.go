package m17

/*-------------------------------------------------------------
 *
 * Purpose:	Wire frame structures for the three frame kinds:
 *		Link Setup Frame, stream frame, and packet frame.
 *
 *		An LSF is 30 bytes: destination and source addresses
 *		(6 bytes each), a 16 bit TYPE field, 112 bits of
 *		metadata, and a trailing CRC. TYPE is transmitted big
 *		endian; its low bits select stream versus packet mode,
 *		payload data type and encryption, and bits 7-10 carry
 *		the channel access number.
 *
 *		Stream and packet frames are carried as Type 1 bit
 *		vectors through the convolutional code; the structs
 *		here hold their decoded form.
 *
 *--------------------------------------------------------------*/

// Frame sync patterns, 8 symbols each, sent before the payload of every
// frame. The symbol values make each pattern maximally distinct from the
// others and from its own negation.
var lsf_sync_symbols = [8]float32{1, 1, 1, 1, -1, -1, 1, -1}
var bert_sync_symbols = [8]float32{-1, 1, -1, -1, 1, 1, 1, 1}
var stream_sync_symbols = [8]float32{-1, -1, -1, -1, 1, 1, -1, 1}
var packet_sync_symbols = [8]float32{1, -1, 1, 1, -1, -1, -1, -1}

type Mode int

const (
	ModePacket Mode = iota
	ModeStream
)

type DataType int

const (
	DataTypeReserved DataType = iota
	DataTypeData
	DataTypeVoice
	DataTypeVoiceAndData
)

type EncryptionType int

const (
	EncryptionNone EncryptionType = iota
	EncryptionScrambler
	EncryptionAes
	EncryptionOther
)

// LsfFrame is a complete 30 byte Link Setup Frame including its CRC.
type LsfFrame [30]byte

/*-------------------------------------------------------------
 *
 * Name:	NewLsfFrame
 *
 * Purpose:	Construct a Link Setup Frame for a fresh transmission.
 *
 * Inputs:	dst, src	- Station addresses.
 *		mode		- Stream or packet.
 *		data_type	- Payload content type.
 *		can		- Channel access number, 0 to 15.
 *
 * Returns:	Frame with metadata cleared and a valid CRC.
 *
 *--------------------------------------------------------------*/

func NewLsfFrame(dst Address, src Address, mode Mode, data_type DataType, can uint8) LsfFrame {
	var frame LsfFrame
	var d = encode_address(dst)
	var s = encode_address(src)
	copy(frame[0:6], d[:])
	copy(frame[6:12], s[:])
	var type_code = uint16(mode) & 1
	type_code |= (uint16(data_type) & 3) << 1
	type_code |= (uint16(can) & 0x0f) << 7
	frame[12] = byte(type_code >> 8)
	frame[13] = byte(type_code)
	frame.SetCrc()
	return frame
}

func (f *LsfFrame) Destination() Address {
	return decode_address(f[0:6])
}

func (f *LsfFrame) Source() Address {
	return decode_address(f[6:12])
}

func (f *LsfFrame) TypeCode() uint16 {
	return uint16(f[12])<<8 | uint16(f[13])
}

func (f *LsfFrame) Mode() Mode {
	if f.TypeCode()&0x01 != 0 {
		return ModeStream
	}
	return ModePacket
}

func (f *LsfFrame) DataType() DataType {
	return DataType((f.TypeCode() >> 1) & 0x03)
}

func (f *LsfFrame) EncryptionType() EncryptionType {
	return EncryptionType((f.TypeCode() >> 3) & 0x03)
}

func (f *LsfFrame) ChannelAccessNumber() uint8 {
	return uint8((f.TypeCode() >> 7) & 0x0f)
}

func (f *LsfFrame) Meta() [14]byte {
	var meta [14]byte
	copy(meta[:], f[14:28])
	return meta
}

func (f *LsfFrame) SetMeta(meta [14]byte) {
	copy(f[14:28], meta[:])
	f.SetCrc()
}

// CrcValid reports whether the trailing CRC matches the frame contents.
// A whole frame including a correct CRC always checks to zero.
func (f *LsfFrame) CrcValid() bool {
	return m17_crc(f[:]) == 0
}

func (f *LsfFrame) SetCrc() {
	var c = m17_crc(f[0:28])
	f[28] = byte(c >> 8)
	f[29] = byte(c)
}

// StreamFrame is the decoded form of one 40 ms stream frame.
type StreamFrame struct {
	// LichIdx selects which sixth of the LSF rides in this frame, 0 to 5.
	LichIdx uint8
	// LichPart is the 5 byte LSF fragment itself.
	LichPart [5]byte
	// FrameNumber counts frames within one transmission from 0.
	FrameNumber uint16
	// EndOfStream marks the final frame of the transmission.
	EndOfStream bool
	// StreamData is the application payload.
	StreamData [16]byte
}

// Stream frame payload bytes carried per frame.
const stream_payload_len = 16

// Packet frame limits. A packet is fragmented into frames of up to 25
// payload bytes; the receiver accepts at most 33 frames, bounding the
// reassembled packet at 825 bytes.
const (
	packet_payload_len = 25
	packet_max_frames  = 33
	packet_max_len     = packet_payload_len * packet_max_frames
)

// PacketFrame is the decoded form of one packet frame: a 25 byte payload
// slice plus a metadata byte that carries either the fragment counter
// (interior frames) or the end flag and the count of valid payload bytes
// (final frame).
type PacketFrame struct {
	Payload    [packet_payload_len]byte
	Counter    uint8
	PayloadLen uint8
	LastFrame  bool
}

// type1_bytes returns the frame's Type 1 representation: 25 payload
// bytes followed by the metadata byte. Only the top six bits of the
// metadata byte pass through the convolutional code.
func (f *PacketFrame) type1_bytes() [26]byte {
	var out [26]byte
	if f.LastFrame {
		copy(out[0:25], f.Payload[:f.PayloadLen])
		out[25] = 0x80 | (f.PayloadLen&0x1f)<<2
	} else {
		copy(out[0:25], f.Payload[:])
		out[25] = (f.Counter & 0x1f) << 2
	}
	return out
}

func parse_packet_frame(type1 []byte) PacketFrame {
	var f PacketFrame
	copy(f.Payload[:], type1[0:25])
	var meta = type1[25]
	if meta&0x80 != 0 {
		f.LastFrame = true
		f.PayloadLen = (meta >> 2) & 0x1f
	} else {
		f.Counter = (meta >> 2) & 0x1f
	}
	return f
}

/*-------------------------------------------------------------
 *
 * Name:	fragment_packet
 *
 * Purpose:	Split a complete packet payload into the ordered
 *		frame sequence that carries it on air.
 *
 * Inputs:	payload		- Full packet contents, at most 825
 *				  bytes. Longer input is truncated.
 *
 * Returns:	Frames in transmission order. The final frame has
 *		LastFrame set and PayloadLen giving its fill; all
 *		earlier frames carry 25 bytes and a running counter.
 *
 *--------------------------------------------------------------*/

func fragment_packet(payload []byte) []PacketFrame {
	if len(payload) > packet_max_len {
		payload = payload[:packet_max_len]
	}
	var frames []PacketFrame
	var counter = uint8(0)
	for {
		var f PacketFrame
		var n = copy(f.Payload[:], payload)
		payload = payload[n:]
		if len(payload) == 0 {
			f.LastFrame = true
			f.PayloadLen = uint8(n)
			frames = append(frames, f)
			return frames
		}
		f.Counter = counter
		counter++
		frames = append(frames, f)
	}
}

// PacketAssembler rebuilds a packet from frames received in order. A
// frame whose counter does not match the expected sequence position
// abandons the packet in progress.
type PacketAssembler struct {
	buf   [packet_max_len]byte
	count int
}

func (a *PacketAssembler) Reset() {
	a.count = 0
}

// Feed consumes one received frame. It returns the completed payload
// when the frame finishes a packet, and ok=false when the frame cannot
// extend the current sequence (the assembly is reset either way).
func (a *PacketAssembler) Feed(f PacketFrame) (payload []byte, complete bool, ok bool) {
	if a.count >= packet_max_frames {
		a.Reset()
		return nil, false, false
	}
	if f.LastFrame {
		if f.PayloadLen > packet_payload_len {
			a.Reset()
			return nil, false, false
		}
		var total = a.count*packet_payload_len + int(f.PayloadLen)
		copy(a.buf[a.count*packet_payload_len:], f.Payload[:f.PayloadLen])
		var out = make([]byte, total)
		copy(out, a.buf[:total])
		a.Reset()
		return out, true, true
	}
	if int(f.Counter) != a.count {
		a.Reset()
		return nil, false, false
	}
	copy(a.buf[a.count*packet_payload_len:], f.Payload[:])
	a.count++
	return nil, false, true
}

// Frame is a decoded over-the-air frame surfaced by the demodulator.
type Frame interface {
	frame()
}

func (LsfFrame) frame()    {}
func (StreamFrame) frame() {}
func (PacketFrame) frame() {}

package m17

/*------------------------------------------------------------------
 *
 * Purpose:	UDP datagram encoding for client-reflector and
 *		reflector-reflector links.
 *
 * Description:	Every message starts with a four byte ASCII magic.
 *		Voice traffic wraps an LSF (stored without its CRC)
 *		plus a stream payload; control traffic carries an
 *		address and sometimes a module letter. Three CRC
 *		conventions exist side by side: a trailing CRC over
 *		the whole message, an internal CRC that excludes a
 *		relay marker byte, and none at all for the short
 *		control messages. Setters keep whichever CRC the
 *		message uses valid.
 *
 *		Wire compatibility target is the mrefd family of
 *		reflectors.
 *
 *---------------------------------------------------------------*/

var MagicVoice = [4]byte{'M', '1', '7', ' '}
var MagicVoiceHeader = [4]byte{'M', '1', '7', 'H'}
var MagicVoiceData = [4]byte{'M', '1', '7', 'D'}
var MagicPacket = [4]byte{'M', '1', '7', 'P'}
var MagicAcknowledge = [4]byte{'A', 'C', 'K', 'N'}
var MagicConnect = [4]byte{'C', 'O', 'N', 'N'}
var MagicDisconnect = [4]byte{'D', 'I', 'S', 'C'}
var MagicListen = [4]byte{'L', 'S', 'T', 'N'}
var MagicNack = [4]byte{'N', 'A', 'C', 'K'}
var MagicPing = [4]byte{'P', 'I', 'N', 'G'}
var MagicPong = [4]byte{'P', 'O', 'N', 'G'}

func ref_put_u16(b []byte, at int, v uint16) {
	b[at] = byte(v >> 8)
	b[at+1] = byte(v)
}

func ref_u16(b []byte, at int) uint16 {
	return uint16(b[at])<<8 | uint16(b[at+1])
}

// ref_set_trailing_crc writes a CRC over b[:len-2] into the last two
// bytes, so the whole message checks to zero.
func ref_set_trailing_crc(b []byte) {
	var c = m17_crc(b[:len(b)-2])
	ref_put_u16(b, len(b)-2, c)
}

/*
 * Voice: one full stream frame relayed through a reflector.
 * Layout: magic(4) stream_id(2) lsf-sans-crc(28) frame_number(2)
 * payload(16) crc(2) = 54 bytes.
 */

type Voice struct {
	data [54]byte
}

func NewVoice() *Voice {
	var v Voice
	copy(v.data[0:4], MagicVoice[:])
	return &v
}

func ParseVoice(b []byte) (*Voice, bool) {
	if len(b) != 54 || m17_crc(b) != 0 {
		return nil, false
	}
	var v Voice
	copy(v.data[:], b)
	return &v, true
}

func (v *Voice) Bytes() []byte { return v.data[:] }

func (v *Voice) StreamId() uint16 { return ref_u16(v.data[:], 4) }

func (v *Voice) SetStreamId(id uint16) {
	ref_put_u16(v.data[:], 4, id)
	ref_set_trailing_crc(v.data[:])
}

// LinkSetupFrame reconstitutes the embedded LSF. The wire form omits
// the LSF's own CRC so it is recomputed here.
func (v *Voice) LinkSetupFrame() LsfFrame {
	var lsf LsfFrame
	copy(lsf[0:28], v.data[6:34])
	lsf.SetCrc()
	return lsf
}

func (v *Voice) SetLinkSetupFrame(lsf *LsfFrame) {
	copy(v.data[6:34], lsf[0:28])
	ref_set_trailing_crc(v.data[:])
}

func (v *Voice) FrameNumber() uint16 { return ref_u16(v.data[:], 34) & 0x7fff }

func (v *Voice) IsEndOfStream() bool { return ref_u16(v.data[:], 34)&0x8000 != 0 }

func (v *Voice) SetFrameNumber(n uint16) {
	var eos = ref_u16(v.data[:], 34) & 0x8000
	ref_put_u16(v.data[:], 34, eos|n&0x7fff)
	ref_set_trailing_crc(v.data[:])
}

func (v *Voice) SetEndOfStream(eos bool) {
	var fn = ref_u16(v.data[:], 34) & 0x7fff
	if eos {
		fn |= 0x8000
	}
	ref_put_u16(v.data[:], 34, fn)
	ref_set_trailing_crc(v.data[:])
}

func (v *Voice) Payload() []byte { return v.data[36:52] }

func (v *Voice) SetPayload(b []byte) {
	copy(v.data[36:52], b)
	ref_set_trailing_crc(v.data[:])
}

/*
 * VoiceHeader / VoiceData: the split form of Voice used by some
 * reflector implementations; header carries the LSF once, data
 * messages carry the 16 byte payloads.
 */

type VoiceHeader struct {
	data [36]byte
}

func NewVoiceHeader() *VoiceHeader {
	var v VoiceHeader
	copy(v.data[0:4], MagicVoiceHeader[:])
	return &v
}

func ParseVoiceHeader(b []byte) (*VoiceHeader, bool) {
	if len(b) != 36 || m17_crc(b) != 0 {
		return nil, false
	}
	var v VoiceHeader
	copy(v.data[:], b)
	return &v, true
}

func (v *VoiceHeader) Bytes() []byte { return v.data[:] }

func (v *VoiceHeader) StreamId() uint16 { return ref_u16(v.data[:], 4) }

func (v *VoiceHeader) SetStreamId(id uint16) {
	ref_put_u16(v.data[:], 4, id)
	ref_set_trailing_crc(v.data[:])
}

func (v *VoiceHeader) LinkSetupFrame() LsfFrame {
	var lsf LsfFrame
	copy(lsf[0:28], v.data[6:34])
	lsf.SetCrc()
	return lsf
}

func (v *VoiceHeader) SetLinkSetupFrame(lsf *LsfFrame) {
	copy(v.data[6:34], lsf[0:28])
	ref_set_trailing_crc(v.data[:])
}

type VoiceData struct {
	data [26]byte
}

func NewVoiceData() *VoiceData {
	var v VoiceData
	copy(v.data[0:4], MagicVoiceData[:])
	return &v
}

func ParseVoiceData(b []byte) (*VoiceData, bool) {
	if len(b) != 26 || m17_crc(b) != 0 {
		return nil, false
	}
	var v VoiceData
	copy(v.data[:], b)
	return &v, true
}

func (v *VoiceData) Bytes() []byte { return v.data[:] }

func (v *VoiceData) StreamId() uint16 { return ref_u16(v.data[:], 4) }

func (v *VoiceData) SetStreamId(id uint16) {
	ref_put_u16(v.data[:], 4, id)
	ref_set_trailing_crc(v.data[:])
}

func (v *VoiceData) FrameNumber() uint16 { return ref_u16(v.data[:], 6) & 0x7fff }

func (v *VoiceData) IsEndOfStream() bool { return ref_u16(v.data[:], 6)&0x8000 != 0 }

func (v *VoiceData) SetFrameNumber(n uint16) {
	var eos = ref_u16(v.data[:], 6) & 0x8000
	ref_put_u16(v.data[:], 6, eos|n&0x7fff)
	ref_set_trailing_crc(v.data[:])
}

func (v *VoiceData) SetEndOfStream(eos bool) {
	var fn = ref_u16(v.data[:], 6) & 0x7fff
	if eos {
		fn |= 0x8000
	}
	ref_put_u16(v.data[:], 6, fn)
	ref_set_trailing_crc(v.data[:])
}

func (v *VoiceData) Payload() []byte { return v.data[8:24] }

func (v *VoiceData) SetPayload(b []byte) {
	copy(v.data[8:24], b)
	ref_set_trailing_crc(v.data[:])
}

/*
 * Packet: a complete packet transmission through the reflector:
 * magic(4) + full 30 byte LSF + packet payload of 4 to 825 bytes
 * (type prefix, data, trailing CRC). Variable length; the LSF CRC and
 * the payload's own CRC are the integrity checks, there is no whole
 * message CRC.
 */

type RefPacket struct {
	data [859]byte
	n    int
}

func NewRefPacket() *RefPacket {
	var p RefPacket
	copy(p.data[0:4], MagicPacket[:])
	p.n = 34
	return &p
}

func ParseRefPacket(b []byte) (*RefPacket, bool) {
	if len(b) < 38 || len(b) > 859 {
		return nil, false
	}
	var p RefPacket
	copy(p.data[:], b)
	p.n = len(b)
	var lsf = p.LinkSetupFrame()
	if lsf.CrcValid() && m17_crc(p.Payload()) == 0 {
		return &p, true
	}
	return nil, false
}

func (p *RefPacket) Bytes() []byte { return p.data[:p.n] }

func (p *RefPacket) LinkSetupFrame() LsfFrame {
	var lsf LsfFrame
	copy(lsf[:], p.data[4:34])
	return lsf
}

// SetLinkSetupFrame stores an LSF whose CRC must already be valid.
func (p *RefPacket) SetLinkSetupFrame(lsf *LsfFrame) {
	copy(p.data[4:34], lsf[:])
}

func (p *RefPacket) Payload() []byte { return p.data[34:p.n] }

// SetPayload stores a payload already carrying its type prefix and
// trailing CRC.
func (p *RefPacket) SetPayload(b []byte) {
	copy(p.data[34:], b)
	p.n = 34 + len(b)
}

/*
 * Short control messages: magic + 6 byte address, some with a module
 * letter. None carry a CRC.
 */

// ref_control is the shared shape of the fixed-size control messages.
type ref_control struct {
	data [11]byte
	n    int
}

func (c *ref_control) Bytes() []byte { return c.data[:c.n] }

func (c *ref_control) Address() Address {
	return decode_address(c.data[4:10])
}

func (c *ref_control) SetAddress(a Address) {
	var enc = encode_address(a)
	copy(c.data[4:10], enc[:])
}

func (c *ref_control) Module() byte { return c.data[10] }

func (c *ref_control) SetModule(m byte) { c.data[10] = m }

func new_ref_control(magic [4]byte, n int) ref_control {
	var c = ref_control{n: n}
	copy(c.data[0:4], magic[:])
	return c
}

func parse_ref_control(magic [4]byte, n int, b []byte) (ref_control, bool) {
	if len(b) != n || [4]byte(b[0:4]) != magic {
		return ref_control{}, false
	}
	var c = ref_control{n: n}
	copy(c.data[:], b)
	return c, true
}

// Connect asks a reflector to link this station to one module.
type Connect struct{ ref_control }

func NewConnect(a Address, module byte) *Connect {
	var c = Connect{new_ref_control(MagicConnect, 11)}
	c.SetAddress(a)
	c.SetModule(module)
	return &c
}

func ParseConnect(b []byte) (*Connect, bool) {
	var c, ok = parse_ref_control(MagicConnect, 11, b)
	return &Connect{c}, ok
}

// Listen subscribes receive-only, without transmit rights.
type Listen struct{ ref_control }

func NewListen(a Address, module byte) *Listen {
	var l = Listen{new_ref_control(MagicListen, 11)}
	l.SetAddress(a)
	l.SetModule(module)
	return &l
}

func ParseListen(b []byte) (*Listen, bool) {
	var c, ok = parse_ref_control(MagicListen, 11, b)
	return &Listen{c}, ok
}

type Disconnect struct{ ref_control }

func NewDisconnect(a Address) *Disconnect {
	var d = Disconnect{new_ref_control(MagicDisconnect, 10)}
	d.SetAddress(a)
	return &d
}

func ParseDisconnect(b []byte) (*Disconnect, bool) {
	var c, ok = parse_ref_control(MagicDisconnect, 10, b)
	return &Disconnect{c}, ok
}

type Ping struct{ ref_control }

func NewPing(a Address) *Ping {
	var p = Ping{new_ref_control(MagicPing, 10)}
	p.SetAddress(a)
	return &p
}

func ParsePing(b []byte) (*Ping, bool) {
	var c, ok = parse_ref_control(MagicPing, 10, b)
	return &Ping{c}, ok
}

type Pong struct{ ref_control }

func NewPong(a Address) *Pong {
	var p = Pong{new_ref_control(MagicPong, 10)}
	p.SetAddress(a)
	return &p
}

func ParsePong(b []byte) (*Pong, bool) {
	var c, ok = parse_ref_control(MagicPong, 10, b)
	return &Pong{c}, ok
}

// ForceDisconnect is a reflector ordering a client off the air; the
// 4 byte form with no address acknowledges a client's own disconnect.
type ForceDisconnect struct{ ref_control }

func ParseForceDisconnect(b []byte) (*ForceDisconnect, bool) {
	var c, ok = parse_ref_control(MagicDisconnect, 10, b)
	return &ForceDisconnect{c}, ok
}

type DisconnectAcknowledge struct{}

func (DisconnectAcknowledge) Bytes() []byte { return MagicDisconnect[:] }

type ConnectAcknowledge struct{}

func (ConnectAcknowledge) Bytes() []byte { return MagicAcknowledge[:] }

type ConnectNack struct{}

func (ConnectNack) Bytes() []byte { return MagicNack[:] }

// ClientMessage is any message a station may send to a reflector.
type ClientMessage interface {
	Bytes() []byte
	client_message()
}

func (*Voice) client_message()       {}
func (*VoiceHeader) client_message() {}
func (*VoiceData) client_message()   {}
func (*RefPacket) client_message()   {}
func (*Pong) client_message()        {}
func (*Connect) client_message()     {}
func (*Listen) client_message()      {}
func (*Disconnect) client_message()  {}

// ServerMessage is any message a reflector may send to a station.
type ServerMessage interface {
	Bytes() []byte
	server_message()
}

func (*Voice) server_message()                {}
func (*VoiceHeader) server_message()          {}
func (*VoiceData) server_message()            {}
func (*RefPacket) server_message()            {}
func (*Ping) server_message()                 {}
func (DisconnectAcknowledge) server_message() {}
func (*ForceDisconnect) server_message()      {}
func (ConnectAcknowledge) server_message()    {}
func (ConnectNack) server_message()           {}

// ParseClientMessage decodes one datagram received by a reflector.
// Unknown magics and messages failing their size or CRC rules yield
// ok=false; the datagram is simply dropped.
func ParseClientMessage(b []byte) (ClientMessage, bool) {
	if len(b) < 4 {
		return nil, false
	}
	var magic [4]byte
	copy(magic[:], b[0:4])
	switch magic {
	case MagicVoice:
		return non_nil(ParseVoice(b))
	case MagicVoiceHeader:
		return non_nil(ParseVoiceHeader(b))
	case MagicVoiceData:
		return non_nil(ParseVoiceData(b))
	case MagicPacket:
		return non_nil(ParseRefPacket(b))
	case MagicPong:
		return non_nil(ParsePong(b))
	case MagicConnect:
		return non_nil(ParseConnect(b))
	case MagicListen:
		return non_nil(ParseListen(b))
	case MagicDisconnect:
		return non_nil(ParseDisconnect(b))
	}
	return nil, false
}

// ParseServerMessage decodes one datagram received by a client.
func ParseServerMessage(b []byte) (ServerMessage, bool) {
	if len(b) < 4 {
		return nil, false
	}
	var magic [4]byte
	copy(magic[:], b[0:4])
	switch magic {
	case MagicVoice:
		return non_nil2(ParseVoice(b))
	case MagicVoiceHeader:
		return non_nil2(ParseVoiceHeader(b))
	case MagicVoiceData:
		return non_nil2(ParseVoiceData(b))
	case MagicPacket:
		return non_nil2(ParseRefPacket(b))
	case MagicPing:
		return non_nil2(ParsePing(b))
	case MagicDisconnect:
		if len(b) == 4 {
			return DisconnectAcknowledge{}, true
		}
		return non_nil2(ParseForceDisconnect(b))
	case MagicAcknowledge:
		if len(b) == 4 {
			return ConnectAcknowledge{}, true
		}
	case MagicNack:
		if len(b) == 4 {
			return ConnectNack{}, true
		}
	}
	return nil, false
}

/*
 * Interlink messages: reflector-to-reflector relays. Each voice and
 * packet form gains a trailing relay marker byte, set once the message
 * has crossed one interlink hop so loops cannot form. The CRC sits
 * just before the marker and does not cover it.
 */

type VoiceInterlink struct {
	data [55]byte
}

func NewVoiceInterlink() *VoiceInterlink {
	var v VoiceInterlink
	copy(v.data[0:4], MagicVoice[:])
	return &v
}

func ParseVoiceInterlink(b []byte) (*VoiceInterlink, bool) {
	if len(b) != 55 || m17_crc(b[0:54]) != 0 {
		return nil, false
	}
	var v VoiceInterlink
	copy(v.data[:], b)
	return &v, true
}

func (v *VoiceInterlink) Bytes() []byte { return v.data[:] }

func (v *VoiceInterlink) StreamId() uint16 { return ref_u16(v.data[:], 4) }

func (v *VoiceInterlink) SetStreamId(id uint16) {
	ref_put_u16(v.data[:], 4, id)
	ref_set_trailing_crc(v.data[0:54])
}

func (v *VoiceInterlink) LinkSetupFrame() LsfFrame {
	var lsf LsfFrame
	copy(lsf[0:28], v.data[6:34])
	lsf.SetCrc()
	return lsf
}

func (v *VoiceInterlink) SetLinkSetupFrame(lsf *LsfFrame) {
	copy(v.data[6:34], lsf[0:28])
	ref_set_trailing_crc(v.data[0:54])
}

func (v *VoiceInterlink) FrameNumber() uint16 { return ref_u16(v.data[:], 34) & 0x7fff }

func (v *VoiceInterlink) IsEndOfStream() bool { return ref_u16(v.data[:], 34)&0x8000 != 0 }

func (v *VoiceInterlink) SetFrameNumber(n uint16) {
	var eos = ref_u16(v.data[:], 34) & 0x8000
	ref_put_u16(v.data[:], 34, eos|n&0x7fff)
	ref_set_trailing_crc(v.data[0:54])
}

func (v *VoiceInterlink) SetEndOfStream(eos bool) {
	var fn = ref_u16(v.data[:], 34) & 0x7fff
	if eos {
		fn |= 0x8000
	}
	ref_put_u16(v.data[:], 34, fn)
	ref_set_trailing_crc(v.data[0:54])
}

func (v *VoiceInterlink) Payload() []byte { return v.data[36:52] }

func (v *VoiceInterlink) SetPayload(b []byte) {
	copy(v.data[36:52], b)
	ref_set_trailing_crc(v.data[0:54])
}

func (v *VoiceInterlink) IsRelayed() bool { return v.data[54] != 0 }

func (v *VoiceInterlink) SetRelayed(relayed bool) {
	v.data[54] = 0
	if relayed {
		v.data[54] = 1
	}
}

type VoiceHeaderInterlink struct {
	data [37]byte
}

func NewVoiceHeaderInterlink() *VoiceHeaderInterlink {
	var v VoiceHeaderInterlink
	copy(v.data[0:4], MagicVoiceHeader[:])
	return &v
}

func ParseVoiceHeaderInterlink(b []byte) (*VoiceHeaderInterlink, bool) {
	if len(b) != 37 || m17_crc(b[0:36]) != 0 {
		return nil, false
	}
	var v VoiceHeaderInterlink
	copy(v.data[:], b)
	return &v, true
}

func (v *VoiceHeaderInterlink) Bytes() []byte { return v.data[:] }

func (v *VoiceHeaderInterlink) StreamId() uint16 { return ref_u16(v.data[:], 4) }

func (v *VoiceHeaderInterlink) SetStreamId(id uint16) {
	ref_put_u16(v.data[:], 4, id)
	ref_set_trailing_crc(v.data[0:36])
}

func (v *VoiceHeaderInterlink) LinkSetupFrame() LsfFrame {
	var lsf LsfFrame
	copy(lsf[0:28], v.data[6:34])
	lsf.SetCrc()
	return lsf
}

func (v *VoiceHeaderInterlink) SetLinkSetupFrame(lsf *LsfFrame) {
	copy(v.data[6:34], lsf[0:28])
	ref_set_trailing_crc(v.data[0:36])
}

func (v *VoiceHeaderInterlink) IsRelayed() bool { return v.data[36] != 0 }

func (v *VoiceHeaderInterlink) SetRelayed(relayed bool) {
	v.data[36] = 0
	if relayed {
		v.data[36] = 1
	}
}

type VoiceDataInterlink struct {
	data [27]byte
}

func NewVoiceDataInterlink() *VoiceDataInterlink {
	var v VoiceDataInterlink
	copy(v.data[0:4], MagicVoiceData[:])
	return &v
}

func ParseVoiceDataInterlink(b []byte) (*VoiceDataInterlink, bool) {
	if len(b) != 27 || m17_crc(b[0:26]) != 0 {
		return nil, false
	}
	var v VoiceDataInterlink
	copy(v.data[:], b)
	return &v, true
}

func (v *VoiceDataInterlink) Bytes() []byte { return v.data[:] }

func (v *VoiceDataInterlink) StreamId() uint16 { return ref_u16(v.data[:], 4) }

func (v *VoiceDataInterlink) SetStreamId(id uint16) {
	ref_put_u16(v.data[:], 4, id)
	ref_set_trailing_crc(v.data[0:26])
}

func (v *VoiceDataInterlink) FrameNumber() uint16 { return ref_u16(v.data[:], 6) & 0x7fff }

func (v *VoiceDataInterlink) IsEndOfStream() bool { return ref_u16(v.data[:], 6)&0x8000 != 0 }

func (v *VoiceDataInterlink) SetFrameNumber(n uint16) {
	var eos = ref_u16(v.data[:], 6) & 0x8000
	ref_put_u16(v.data[:], 6, eos|n&0x7fff)
	ref_set_trailing_crc(v.data[0:26])
}

func (v *VoiceDataInterlink) SetEndOfStream(eos bool) {
	var fn = ref_u16(v.data[:], 6) & 0x7fff
	if eos {
		fn |= 0x8000
	}
	ref_put_u16(v.data[:], 6, fn)
	ref_set_trailing_crc(v.data[0:26])
}

func (v *VoiceDataInterlink) Payload() []byte { return v.data[8:24] }

func (v *VoiceDataInterlink) SetPayload(b []byte) {
	copy(v.data[8:24], b)
	ref_set_trailing_crc(v.data[0:26])
}

func (v *VoiceDataInterlink) IsRelayed() bool { return v.data[26] != 0 }

func (v *VoiceDataInterlink) SetRelayed(relayed bool) {
	v.data[26] = 0
	if relayed {
		v.data[26] = 1
	}
}

type PacketInterlink struct {
	data [860]byte
	n    int
}

func NewPacketInterlink() *PacketInterlink {
	var p PacketInterlink
	copy(p.data[0:4], MagicPacket[:])
	p.n = 35
	return &p
}

func ParsePacketInterlink(b []byte) (*PacketInterlink, bool) {
	if len(b) < 39 || len(b) > 860 {
		return nil, false
	}
	var p PacketInterlink
	copy(p.data[:], b)
	p.n = len(b)
	var lsf = p.LinkSetupFrame()
	if lsf.CrcValid() && m17_crc(p.Payload()) == 0 {
		return &p, true
	}
	return nil, false
}

func (p *PacketInterlink) Bytes() []byte { return p.data[:p.n] }

func (p *PacketInterlink) LinkSetupFrame() LsfFrame {
	var lsf LsfFrame
	copy(lsf[:], p.data[4:34])
	return lsf
}

func (p *PacketInterlink) SetLinkSetupFrame(lsf *LsfFrame) {
	copy(p.data[4:34], lsf[:])
}

func (p *PacketInterlink) Payload() []byte { return p.data[34 : p.n-1] }

func (p *PacketInterlink) SetPayload(b []byte) {
	var relayed = p.IsRelayed()
	copy(p.data[34:], b)
	p.n = 34 + len(b) + 1
	p.SetRelayed(relayed)
}

func (p *PacketInterlink) IsRelayed() bool { return p.data[p.n-1] != 0 }

func (p *PacketInterlink) SetRelayed(relayed bool) {
	p.data[p.n-1] = 0
	if relayed {
		p.data[p.n-1] = 1
	}
}

// ConnectInterlink links two reflectors, sharing up to 26 modules.
// The module list is a NUL terminated string of module letters.
type ConnectInterlink struct {
	data [37]byte
}

func NewConnectInterlink(a Address, modules string) *ConnectInterlink {
	var c ConnectInterlink
	copy(c.data[0:4], MagicConnect[:])
	var enc = encode_address(a)
	copy(c.data[4:10], enc[:])
	c.SetModules(modules)
	return &c
}

func ParseConnectInterlink(b []byte) (*ConnectInterlink, bool) {
	if len(b) != 37 {
		return nil, false
	}
	var c ConnectInterlink
	copy(c.data[:], b)
	return &c, true
}

func (c *ConnectInterlink) Bytes() []byte { return c.data[:] }

func (c *ConnectInterlink) Address() Address { return decode_address(c.data[4:10]) }

func (c *ConnectInterlink) Modules() string { return ref_modules(c.data[10:37]) }

func (c *ConnectInterlink) SetModules(list string) { ref_set_modules(c.data[10:37], list) }

type ConnectInterlinkAcknowledge struct {
	data [37]byte
}

func NewConnectInterlinkAcknowledge(a Address, modules string) *ConnectInterlinkAcknowledge {
	var c ConnectInterlinkAcknowledge
	copy(c.data[0:4], MagicAcknowledge[:])
	var enc = encode_address(a)
	copy(c.data[4:10], enc[:])
	c.SetModules(modules)
	return &c
}

func ParseConnectInterlinkAcknowledge(b []byte) (*ConnectInterlinkAcknowledge, bool) {
	if len(b) != 37 {
		return nil, false
	}
	var c ConnectInterlinkAcknowledge
	copy(c.data[:], b)
	return &c, true
}

func (c *ConnectInterlinkAcknowledge) Bytes() []byte { return c.data[:] }

func (c *ConnectInterlinkAcknowledge) Address() Address { return decode_address(c.data[4:10]) }

func (c *ConnectInterlinkAcknowledge) Modules() string { return ref_modules(c.data[10:37]) }

func (c *ConnectInterlinkAcknowledge) SetModules(list string) {
	ref_set_modules(c.data[10:37], list)
}

type DisconnectInterlink struct{ ref_control }

func NewDisconnectInterlink(a Address) *DisconnectInterlink {
	var d = DisconnectInterlink{new_ref_control(MagicDisconnect, 10)}
	d.SetAddress(a)
	return &d
}

func ParseDisconnectInterlink(b []byte) (*DisconnectInterlink, bool) {
	var c, ok = parse_ref_control(MagicDisconnect, 10, b)
	return &DisconnectInterlink{c}, ok
}

func ref_modules(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

func ref_set_modules(b []byte, list string) {
	for i := range b {
		b[i] = 0
	}
	copy(b, list)
}

// InterlinkMessage is any message exchanged between two reflectors.
type InterlinkMessage interface {
	Bytes() []byte
	interlink_message()
}

func (*VoiceInterlink) interlink_message()              {}
func (*VoiceHeaderInterlink) interlink_message()        {}
func (*VoiceDataInterlink) interlink_message()          {}
func (*PacketInterlink) interlink_message()             {}
func (*Ping) interlink_message()                        {}
func (*Pong) interlink_message()                        {}
func (*ConnectInterlink) interlink_message()            {}
func (*ConnectInterlinkAcknowledge) interlink_message() {}
func (ConnectNack) interlink_message()                  {}
func (*DisconnectInterlink) interlink_message()         {}

// ParseInterlinkMessage decodes one datagram on a reflector-reflector
// link.
func ParseInterlinkMessage(b []byte) (InterlinkMessage, bool) {
	if len(b) < 4 {
		return nil, false
	}
	var magic [4]byte
	copy(magic[:], b[0:4])
	switch magic {
	case MagicVoice:
		return non_nil3(ParseVoiceInterlink(b))
	case MagicVoiceHeader:
		return non_nil3(ParseVoiceHeaderInterlink(b))
	case MagicVoiceData:
		return non_nil3(ParseVoiceDataInterlink(b))
	case MagicPacket:
		return non_nil3(ParsePacketInterlink(b))
	case MagicPing:
		return non_nil3(ParsePing(b))
	case MagicPong:
		return non_nil3(ParsePong(b))
	case MagicConnect:
		return non_nil3(ParseConnectInterlink(b))
	case MagicAcknowledge:
		return non_nil3(ParseConnectInterlinkAcknowledge(b))
	case MagicNack:
		if len(b) == 4 {
			return ConnectNack{}, true
		}
	case MagicDisconnect:
		return non_nil3(ParseDisconnectInterlink(b))
	}
	return nil, false
}

// non_nil adapts the typed parse results to the interface, keeping
// a failed parse as a nil interface rather than a typed nil.
func non_nil[T ClientMessage](m T, ok bool) (ClientMessage, bool) {
	if !ok {
		return nil, false
	}
	return m, true
}

func non_nil2[T ServerMessage](m T, ok bool) (ServerMessage, bool) {
	if !ok {
		return nil, false
	}
	return m, true
}

func non_nil3[T InterlinkMessage](m T, ok bool) (InterlinkMessage, bool) {
	if !ok {
		return nil, false
	}
	return m, true
}

package m17

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReflectorVoiceRoundTrip(t *testing.T) {
	var lsf = NewLsfFrame(AddressBroadcast, 0x9FDD51, ModeStream, DataTypeVoice, 0)
	var v = NewVoice()
	v.SetStreamId(0x1234)
	v.SetLinkSetupFrame(&lsf)
	v.SetFrameNumber(5)
	v.SetEndOfStream(true)
	v.SetPayload([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16})

	var parsed, ok = ParseVoice(v.Bytes())
	require.True(t, ok)
	assert.Equal(t, uint16(0x1234), parsed.StreamId())
	assert.Equal(t, lsf, parsed.LinkSetupFrame())
	assert.Equal(t, uint16(5), parsed.FrameNumber())
	assert.True(t, parsed.IsEndOfStream())
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}, parsed.Payload())
}

func TestReflectorVoiceRejectsCorruption(t *testing.T) {
	var v = NewVoice()
	v.SetStreamId(1)
	var raw = append([]byte{}, v.Bytes()...)
	raw[10] ^= 0x01
	var _, ok = ParseVoice(raw)
	assert.False(t, ok)

	_, ok = ParseVoice(raw[:40])
	assert.False(t, ok)
}

func TestReflectorVoiceFrameNumberPreservesEos(t *testing.T) {
	var v = NewVoice()
	v.SetEndOfStream(true)
	v.SetFrameNumber(100)
	assert.True(t, v.IsEndOfStream())
	assert.Equal(t, uint16(100), v.FrameNumber())
	v.SetEndOfStream(false)
	assert.Equal(t, uint16(100), v.FrameNumber())
}

func TestReflectorVoiceHeaderAndData(t *testing.T) {
	var lsf = NewLsfFrame(AddressBroadcast, 0x9FDD51, ModeStream, DataTypeVoice, 0)
	var h = NewVoiceHeader()
	h.SetStreamId(42)
	h.SetLinkSetupFrame(&lsf)
	var hp, ok = ParseVoiceHeader(h.Bytes())
	require.True(t, ok)
	assert.Equal(t, lsf, hp.LinkSetupFrame())

	var d = NewVoiceData()
	d.SetStreamId(42)
	d.SetFrameNumber(9)
	d.SetPayload(make([]byte, 16))
	var dp, ok2 = ParseVoiceData(d.Bytes())
	require.True(t, ok2)
	assert.Equal(t, uint16(42), dp.StreamId())
	assert.Equal(t, uint16(9), dp.FrameNumber())
	assert.False(t, dp.IsEndOfStream())
}

func TestReflectorPacketRoundTrip(t *testing.T) {
	var lsf = NewLsfFrame(AddressBroadcast, 0x9FDD51, ModePacket, DataTypeData, 0)
	var payload = []byte{0x00, 'h', 'i'}
	var crc = m17_crc(payload)
	payload = append(payload, byte(crc>>8), byte(crc))

	var p = NewRefPacket()
	p.SetLinkSetupFrame(&lsf)
	p.SetPayload(payload)

	var parsed, ok = ParseRefPacket(p.Bytes())
	require.True(t, ok)
	assert.Equal(t, lsf, parsed.LinkSetupFrame())
	assert.Equal(t, payload, parsed.Payload())
}

func TestReflectorPacketRejectsBadPayloadCrc(t *testing.T) {
	var lsf = NewLsfFrame(AddressBroadcast, 0x9FDD51, ModePacket, DataTypeData, 0)
	var p = NewRefPacket()
	p.SetLinkSetupFrame(&lsf)
	p.SetPayload([]byte{0x00, 'h', 'i', 0xde, 0xad})
	var _, ok = ParseRefPacket(p.Bytes())
	assert.False(t, ok)
}

func TestReflectorControlMessages(t *testing.T) {
	var addr, err = ParseCallsign("VK7XT")
	require.NoError(t, err)

	var conn = NewConnect(addr, 'C')
	assert.Equal(t, 11, len(conn.Bytes()))
	var cp, ok = ParseConnect(conn.Bytes())
	require.True(t, ok)
	assert.Equal(t, addr, cp.Address())
	assert.Equal(t, byte('C'), cp.Module())

	var lstn = NewListen(addr, 'D')
	var lp, ok2 = ParseListen(lstn.Bytes())
	require.True(t, ok2)
	assert.Equal(t, byte('D'), lp.Module())

	var ping = NewPing(addr)
	var pp, ok3 = ParsePing(ping.Bytes())
	require.True(t, ok3)
	assert.Equal(t, addr, pp.Address())

	var disc = NewDisconnect(addr)
	assert.Equal(t, 10, len(disc.Bytes()))
}

func TestParseServerMessageDispatch(t *testing.T) {
	var addr, _ = ParseCallsign("VK7XT")

	var msg, ok = ParseServerMessage([]byte("ACKN"))
	require.True(t, ok)
	assert.IsType(t, ConnectAcknowledge{}, msg)

	msg, ok = ParseServerMessage([]byte("NACK"))
	require.True(t, ok)
	assert.IsType(t, ConnectNack{}, msg)

	msg, ok = ParseServerMessage([]byte("DISC"))
	require.True(t, ok)
	assert.IsType(t, DisconnectAcknowledge{}, msg)

	msg, ok = ParseServerMessage(NewPing(addr).Bytes())
	require.True(t, ok)
	assert.IsType(t, &Ping{}, msg)

	var v = NewVoice()
	v.SetStreamId(1)
	msg, ok = ParseServerMessage(v.Bytes())
	require.True(t, ok)
	assert.IsType(t, &Voice{}, msg)

	_, ok = ParseServerMessage([]byte("JUNK"))
	assert.False(t, ok)
	_, ok = ParseServerMessage([]byte{0xc0})
	assert.False(t, ok)
}

func TestParseClientMessageDispatch(t *testing.T) {
	var addr, _ = ParseCallsign("VK7XT")

	var msg, ok = ParseClientMessage(NewConnect(addr, 'A').Bytes())
	require.True(t, ok)
	assert.IsType(t, &Connect{}, msg)

	msg, ok = ParseClientMessage(NewPong(addr).Bytes())
	require.True(t, ok)
	assert.IsType(t, &Pong{}, msg)

	// a CONN datagram of the wrong length is dropped
	_, ok = ParseClientMessage([]byte("CONN"))
	assert.False(t, ok)
}

func TestInterlinkVoiceRelayFlag(t *testing.T) {
	var lsf = NewLsfFrame(AddressBroadcast, 0x9FDD51, ModeStream, DataTypeVoice, 0)
	var v = NewVoiceInterlink()
	v.SetStreamId(7)
	v.SetLinkSetupFrame(&lsf)
	v.SetFrameNumber(3)
	v.SetPayload(make([]byte, 16))
	assert.False(t, v.IsRelayed())
	v.SetRelayed(true)

	var parsed, ok = ParseVoiceInterlink(v.Bytes())
	require.True(t, ok)
	assert.True(t, parsed.IsRelayed())
	assert.Equal(t, uint16(3), parsed.FrameNumber())
	assert.Equal(t, lsf, parsed.LinkSetupFrame())
}

func TestInterlinkConnectModules(t *testing.T) {
	var addr, _ = ParseCallsign("M17-REF")
	var c = NewConnectInterlink(addr, "ABC")
	assert.Equal(t, 37, len(c.Bytes()))

	var parsed, ok = ParseConnectInterlink(c.Bytes())
	require.True(t, ok)
	assert.Equal(t, addr, parsed.Address())
	assert.Equal(t, "ABC", parsed.Modules())

	parsed.SetModules("Z")
	assert.Equal(t, "Z", parsed.Modules())
}

func TestParseInterlinkMessageDispatch(t *testing.T) {
	var lsf = NewLsfFrame(AddressBroadcast, 0x9FDD51, ModeStream, DataTypeVoice, 0)
	var v = NewVoiceInterlink()
	v.SetLinkSetupFrame(&lsf)

	var msg, ok = ParseInterlinkMessage(v.Bytes())
	require.True(t, ok)
	assert.IsType(t, &VoiceInterlink{}, msg)

	// plain 54 byte Voice is not valid on an interlink
	var plain = NewVoice()
	plain.SetLinkSetupFrame(&lsf)
	_, ok = ParseInterlinkMessage(plain.Bytes())
	assert.False(t, ok)
}

func TestInterlinkPacketKeepsRelayByteAcrossPayload(t *testing.T) {
	var lsf = NewLsfFrame(AddressBroadcast, 0x9FDD51, ModePacket, DataTypeData, 0)
	var payload = []byte{0x00, 'x'}
	var crc = m17_crc(payload)
	payload = append(payload, byte(crc>>8), byte(crc))

	var p = NewPacketInterlink()
	p.SetLinkSetupFrame(&lsf)
	p.SetRelayed(true)
	p.SetPayload(payload)
	assert.True(t, p.IsRelayed())

	var parsed, ok = ParsePacketInterlink(p.Bytes())
	require.True(t, ok)
	assert.Equal(t, payload, parsed.Payload())
	assert.True(t, parsed.IsRelayed())
}

package m17

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestKissEscape(t *testing.T) {
	assert.Equal(t, []byte{0, 1, 2, 3, 4, 5}, kiss_escape(nil, []byte{0, 1, 2, 3, 4, 5}))
	assert.Equal(t, []byte{0, 1, TFESC, 3, TFEND, 5}, kiss_escape(nil, []byte{0, 1, TFESC, 3, TFEND, 5}))
	assert.Equal(t, []byte{0, 1, FESC, TFEND, 3, 4, 5}, kiss_escape(nil, []byte{0, 1, FEND, 3, 4, 5}))
	assert.Equal(t, []byte{0, 1, 2, 3, 4, FESC, TFESC}, kiss_escape(nil, []byte{0, 1, 2, 3, 4, FESC}))
}

func TestKissUnescape(t *testing.T) {
	assert.Equal(t, []byte{0, 1, 2, 3, 4, 5}, kiss_unescape([]byte{0, 1, 2, 3, 4, 5}))
	assert.Equal(t, []byte{0, 1, TFESC, 3, TFEND, 5}, kiss_unescape([]byte{0, 1, TFESC, 3, TFEND, 5}))
	assert.Equal(t, []byte{0, 1, FEND, 3, 4, 5}, kiss_unescape([]byte{0, 1, FESC, TFEND, 3, 4, 5}))
	assert.Equal(t, []byte{0, 1, 2, 3, 4, FESC}, kiss_unescape([]byte{0, 1, 2, 3, 4, FESC, TFESC}))
}

func TestKissBasicPacketRoundTrip(t *testing.T) {
	var f, err = NewBasicPacketKiss([]byte{0, 1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, []byte{FEND, 0, 0, 1, 2, 3, FEND}, f.Bytes())

	var payload, pErr = f.PayloadBytes()
	require.NoError(t, pErr)
	assert.Equal(t, []byte{0, 1, 2, 3}, payload)

	var port, portErr = f.Port()
	require.NoError(t, portErr)
	assert.Equal(t, uint8(KISS_PORT_PACKET_BASIC), port)

	var command, cmdErr = f.Command()
	require.NoError(t, cmdErr)
	assert.Equal(t, KissCommandDataFrame, command)
}

func TestKissEscapingRoundTripsDelimiters(t *testing.T) {
	// A payload full of delimiter-valued bytes must survive exactly.
	var payload = []byte{FEND, FESC, FEND, FEND, 0x00, FESC, TFEND, TFESC}
	var f, err = NewBasicPacketKiss(payload)
	require.NoError(t, err)
	// No raw FEND may appear in the escaped content.
	assert.NotContains(t, f.Bytes()[1:len(f.Bytes())-1], byte(FEND))
	var got, pErr = f.PayloadBytes()
	require.NoError(t, pErr)
	assert.Equal(t, payload, got)
}

func TestKissBasicPacketSizeLimit(t *testing.T) {
	var _, err = NewBasicPacketKiss(make([]byte, 822))
	assert.NoError(t, err)
	_, err = NewBasicPacketKiss(make([]byte, 823))
	assert.Error(t, err)
}

func TestKissStreamDataLayout(t *testing.T) {
	var frame = StreamFrame{
		LichIdx:     3,
		LichPart:    [5]byte{1, 2, 3, 4, 5},
		FrameNumber: 7,
		EndOfStream: true,
	}
	var f = NewStreamDataKiss(&frame)
	var payload, err = f.PayloadBytes()
	require.NoError(t, err)
	require.Len(t, payload, kiss_stream_data_len)
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, payload[0:5])
	assert.Equal(t, byte(3<<5), payload[5])
	assert.Equal(t, byte(0x80), payload[6])
	assert.Equal(t, byte(7), payload[7])
	assert.Equal(t, uint16(0), m17_crc(payload))
}

func TestKissBufferReassembly(t *testing.T) {
	var f, _ = NewBasicPacketKiss([]byte{10, 20, 30})
	var b KissBuffer

	// Bytes dribble in one at a time.
	for _, by := range f.Bytes() {
		b.Write([]byte{by})
	}
	var got, ok = b.NextFrame()
	require.True(t, ok)
	var payload, err = got.PayloadBytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{10, 20, 30}, payload)
	_, ok = b.NextFrame()
	assert.False(t, ok)
}

func TestKissBufferIgnoresNoiseBetweenFrames(t *testing.T) {
	var f, _ = NewBasicPacketKiss([]byte{42})
	var b KissBuffer
	b.Write([]byte{0x55, 0xAA, 0x12}) // line noise before any FEND
	b.Write(f.Bytes())
	var got, ok = b.NextFrame()
	require.True(t, ok)
	var payload, _ = got.PayloadBytes()
	assert.Equal(t, []byte{42}, payload)
}

func TestKissBufferTruncatedThenValid(t *testing.T) {
	var valid, _ = NewBasicPacketKiss([]byte{1, 2, 3})
	var b KissBuffer

	// A frame cut off mid-escape runs into the next frame's opening
	// FEND. Only the valid frame should come out.
	b.Write([]byte{FEND, 0x00, 0x11, 0x22, FESC})
	b.Write(valid.Bytes())

	var got, ok = b.NextFrame()
	require.True(t, ok)
	var payload, err = got.PayloadBytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, payload)
	_, ok = b.NextFrame()
	assert.False(t, ok)
}

func TestKissBufferOversizedFrameDiscarded(t *testing.T) {
	var b KissBuffer
	b.Write([]byte{FEND})
	b.Write(bytes.Repeat([]byte{0x42}, MAX_KISS_LEN+10))
	b.Write([]byte{FEND})
	var _, ok = b.NextFrame()
	assert.False(t, ok)

	var valid, _ = NewBasicPacketKiss([]byte{9})
	b.Write(valid.Bytes())
	_, ok = b.NextFrame()
	assert.True(t, ok)
}

func TestKissPayloadRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var payload = rapid.SliceOfN(rapid.Byte(), 0, 822).Draw(t, "payload")
		var f, err = NewBasicPacketKiss(payload)
		if err != nil {
			t.Fatalf("encode failed: %v", err)
		}
		var b KissBuffer
		b.Write(f.Bytes())
		var got, ok = b.NextFrame()
		if !ok {
			t.Fatal("no frame reassembled")
		}
		var decoded, pErr = got.PayloadBytes()
		if pErr != nil {
			t.Fatalf("decode failed: %v", pErr)
		}
		if !bytes.Equal(payload, decoded) {
			t.Fatalf("round trip mismatch: %v != %v", payload, decoded)
		}
	})
}

package m17

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// read_one_kiss drains the TNC's host-bound bytes and reassembles them
// into KISS frames.
func read_one_kiss(t *testing.T, tnc *SoftTnc) []KissFrame {
	t.Helper()
	var b KissBuffer
	var buf [256]byte
	for {
		var n = tnc.ReadKissBuffer(buf[:])
		if n == 0 {
			break
		}
		b.Write(buf[:n])
	}
	var frames []KissFrame
	for {
		var f, ok = b.NextFrame()
		if !ok {
			return frames
		}
		frames = append(frames, f)
	}
}

// packet_with_crc wraps application bytes in the RAW type prefix and
// trailing checksum carried inside every packet payload.
func packet_with_crc(app []byte) []byte {
	var payload = append([]byte{0x00}, app...)
	var crc = m17_crc(payload)
	return append(payload, byte(crc>>8), byte(crc))
}

func packet_lsf() LsfFrame {
	var src, _ = ParseCallsign("VK7XT")
	return NewLsfFrame(AddressBroadcast, src, ModePacket, DataTypeData, 0)
}

func TestTncReceiveSingleFramePacket(t *testing.T) {
	var payload = packet_with_crc([]byte{0x41})
	var frame = PacketFrame{LastFrame: true, PayloadLen: uint8(len(payload))}
	copy(frame.Payload[:], payload)

	var tnc = NewSoftTnc()

	// The LSF alone gives the host nothing to see yet.
	tnc.HandleFrame(packet_lsf())
	require.Empty(t, read_one_kiss(t, tnc))

	tnc.HandleFrame(frame)
	var frames = read_one_kiss(t, tnc)
	require.Len(t, frames, 1)
	var port, _ = frames[0].Port()
	assert.Equal(t, uint8(KISS_PORT_PACKET_FULL), port)
	var got, err = frames[0].PayloadBytes()
	require.NoError(t, err)
	require.Len(t, got, 30+len(payload))
	assert.Equal(t, payload, got[30:])
	assert.Equal(t, byte(0x41), got[31])
}

func TestTncReceiveMultipleFramePacket(t *testing.T) {
	var payload = packet_with_crc(make([]byte, 30)) // spans two frames
	var first = PacketFrame{Counter: 0}
	copy(first.Payload[:], payload[0:25])
	var second = PacketFrame{LastFrame: true, PayloadLen: uint8(len(payload) - 25)}
	copy(second.Payload[:], payload[25:])

	var tnc = NewSoftTnc()
	tnc.HandleFrame(packet_lsf())
	tnc.HandleFrame(first)
	require.Empty(t, read_one_kiss(t, tnc))

	tnc.HandleFrame(second)
	var frames = read_one_kiss(t, tnc)
	require.Len(t, frames, 1)
	var got, err = frames[0].PayloadBytes()
	require.NoError(t, err)
	assert.Equal(t, payload, got[30:])
}

func TestTncReceivePartialPacketDiscarded(t *testing.T) {
	var long_payload = packet_with_crc(make([]byte, 40))
	var first = PacketFrame{Counter: 0}
	copy(first.Payload[:], long_payload[0:25])
	// The final frame of this transmission never arrives.

	var short_payload = packet_with_crc([]byte{0x42})
	var complete = PacketFrame{LastFrame: true, PayloadLen: uint8(len(short_payload))}
	copy(complete.Payload[:], short_payload)

	var tnc = NewSoftTnc()
	tnc.HandleFrame(packet_lsf())
	tnc.HandleFrame(first)
	require.Empty(t, read_one_kiss(t, tnc))

	// A fresh LSF starts over; only the complete packet is reported.
	tnc.HandleFrame(packet_lsf())
	tnc.HandleFrame(complete)
	var frames = read_one_kiss(t, tnc)
	require.Len(t, frames, 1)
	var got, err = frames[0].PayloadBytes()
	require.NoError(t, err)
	assert.Equal(t, short_payload, got[30:])
	assert.Equal(t, byte(0x42), got[31])
}

func TestTncMissingInteriorFragmentAborts(t *testing.T) {
	// Three frame packet with the middle frame lost. The final frame
	// carries no counter so only the payload CRC can catch the hole.
	var payload = packet_with_crc(make([]byte, 60))
	var first = PacketFrame{Counter: 0}
	copy(first.Payload[:], payload[0:25])
	var last = PacketFrame{LastFrame: true, PayloadLen: uint8(len(payload) - 50)}
	copy(last.Payload[:], payload[50:])

	var tnc = NewSoftTnc()
	tnc.HandleFrame(packet_lsf())
	tnc.HandleFrame(first)
	tnc.HandleFrame(last)
	assert.Empty(t, read_one_kiss(t, tnc))
}

func TestTncOutOfOrderFragmentAborts(t *testing.T) {
	var payload = packet_with_crc(make([]byte, 60))
	var second = PacketFrame{Counter: 1}
	copy(second.Payload[:], payload[25:50])

	var tnc = NewSoftTnc()
	tnc.HandleFrame(packet_lsf())
	// First fragment missing: counter 1 cannot extend an empty assembly.
	tnc.HandleFrame(second)
	assert.Empty(t, read_one_kiss(t, tnc))
}

func stream_frames_for_lsf(lsf LsfFrame, count int) []StreamFrame {
	var frames = make([]StreamFrame, count)
	for i := range frames {
		var idx = uint8(i % 6)
		frames[i] = StreamFrame{
			LichIdx:     idx,
			FrameNumber: uint16(i),
		}
		copy(frames[i].LichPart[:], lsf[idx*5:idx*5+5])
	}
	frames[count-1].EndOfStream = true
	return frames
}

func TestTncReceiveStream(t *testing.T) {
	var lsf = golden_lsf()
	var frames = stream_frames_for_lsf(lsf, 2)

	var tnc = NewSoftTnc()
	tnc.HandleFrame(lsf)
	var out = read_one_kiss(t, tnc)
	require.Len(t, out, 1)
	var port, _ = out[0].Port()
	assert.Equal(t, uint8(KISS_PORT_STREAM), port)
	var setup, _ = out[0].PayloadBytes()
	assert.Equal(t, lsf[:], setup)

	for _, f := range frames {
		tnc.HandleFrame(f)
		out = read_one_kiss(t, tnc)
		require.Len(t, out, 1)
		var payload, err = out[0].PayloadBytes()
		require.NoError(t, err)
		assert.Len(t, payload, kiss_stream_data_len)
	}
}

func TestTncAcquireStreamFromLich(t *testing.T) {
	// No LSF is ever handed over; after six stream frames carrying all
	// six LICH segments the TNC reconstructs and reports it.
	var lsf = golden_lsf()
	var frames = stream_frames_for_lsf(lsf, 7)

	var tnc = NewSoftTnc()
	for i, f := range frames[:5] {
		tnc.HandleFrame(f)
		assert.Empty(t, read_one_kiss(t, tnc), "frame %d", i)
	}
	tnc.HandleFrame(frames[5])
	var out = read_one_kiss(t, tnc)
	// Stream setup plus the frame that completed acquisition.
	require.Len(t, out, 2)
	var setup, err = out[0].PayloadBytes()
	require.NoError(t, err)
	assert.Equal(t, lsf[:], setup)
	var data, dErr = out[1].PayloadBytes()
	require.NoError(t, dErr)
	assert.Len(t, data, kiss_stream_data_len)
}

func TestTncLichReconstructionWaitsForAllSegments(t *testing.T) {
	var lsf = golden_lsf()
	var frames = stream_frames_for_lsf(lsf, 12)

	var tnc = NewSoftTnc()
	// Segment 2 never arrives in the first rotation.
	for i, f := range frames[:6] {
		if i == 2 {
			continue
		}
		tnc.HandleFrame(f)
	}
	assert.Empty(t, read_one_kiss(t, tnc))

	// The second rotation supplies it.
	tnc.HandleFrame(frames[8])
	var out = read_one_kiss(t, tnc)
	require.Len(t, out, 2)
	var setup, _ = out[0].PayloadBytes()
	assert.Equal(t, lsf[:], setup)
}

func TestTncStreamFrameNumberRegression(t *testing.T) {
	var lsf = golden_lsf()
	var frames = stream_frames_for_lsf(lsf, 5)

	var tnc = NewSoftTnc()
	tnc.HandleFrame(lsf)
	tnc.HandleFrame(frames[3])
	read_one_kiss(t, tnc)

	// A lower frame number means a different transmission; the TNC
	// drops back to LICH acquisition instead of forwarding it.
	tnc.HandleFrame(frames[1])
	assert.Empty(t, read_one_kiss(t, tnc))
}

func TestTncSkippedStreamFrameTolerated(t *testing.T) {
	var lsf = golden_lsf()
	var frames = stream_frames_for_lsf(lsf, 5)

	var tnc = NewSoftTnc()
	tnc.HandleFrame(lsf)
	read_one_kiss(t, tnc)
	tnc.HandleFrame(frames[0])
	require.Len(t, read_one_kiss(t, tnc), 1)
	// Frame 1 lost on air; frame 2 still goes through.
	tnc.HandleFrame(frames[2])
	require.Len(t, read_one_kiss(t, tnc), 1)
}

func TestTncReceiveTimeout(t *testing.T) {
	var tnc = NewSoftTnc()
	tnc.SetNow(1000)
	tnc.HandleFrame(packet_lsf())
	assert.Equal(t, TNC_RX_PACKET, tnc.state)

	tnc.SetNow(1000 + rx_timeout_samples/2)
	assert.Equal(t, TNC_RX_PACKET, tnc.state)

	tnc.SetNow(1000 + rx_timeout_samples + 1)
	assert.Equal(t, TNC_IDLE, tnc.state)
}

// queue_basic_packet pushes one basic mode packet over the host
// interface.
func queue_basic_packet(t *testing.T, tnc *SoftTnc, app []byte) {
	t.Helper()
	var f, err = NewBasicPacketKiss(app)
	require.NoError(t, err)
	tnc.WriteKissBuffer(f.Bytes())
}

// drain_tx runs ReadTxFrame until nil, returning everything handed to
// the modulator.
func drain_tx(tnc *SoftTnc) []ModulatorFrame {
	var frames []ModulatorFrame
	for {
		var f = tnc.ReadTxFrame()
		if f == nil {
			return frames
		}
		frames = append(frames, f)
	}
}

func TestTncTransmitPacketSequence(t *testing.T) {
	var tnc = NewSoftTnc()
	queue_basic_packet(t, tnc, []byte("Hello, world!"))

	var frames = drain_tx(tnc)
	// Preamble, LSF, one data frame, EOT.
	require.Len(t, frames, 4)
	assert.IsType(t, FramePreamble{}, frames[0])
	assert.IsType(t, FrameLsf{}, frames[1])
	assert.IsType(t, FramePacket{}, frames[2])
	assert.IsType(t, FrameEndOfTransmission{}, frames[3])
	assert.True(t, tnc.PttRequired())

	var pf = frames[2].(FramePacket).Frame
	assert.True(t, pf.LastFrame)
	// RAW prefix + message + CRC.
	assert.Equal(t, uint8(1+13+2), pf.PayloadLen)
	assert.Equal(t, "Hello, world!", string(pf.Payload[1:14]))

	// PTT holds until the modulator's reported end time passes.
	tnc.SetNow(100)
	tnc.SetTxEndTime(500)
	tnc.SetNow(599)
	assert.True(t, tnc.PttRequired())
	tnc.SetNow(601)
	assert.False(t, tnc.PttRequired())
}

func TestTncCsmaDefersWhileChannelBusy(t *testing.T) {
	var tnc = NewSoftTnc()
	tnc.SetNow(0)
	tnc.SetDataCarrierDetect(true)
	queue_basic_packet(t, tnc, []byte{1})

	// Busy channel: no frames during repeated slot checks.
	var now = uint64(0)
	for i := 0; i < 50; i++ {
		now += csma_slot_samples
		tnc.SetNow(now)
		assert.Nil(t, tnc.ReadTxFrame())
	}

	// Channel clears; with p=0.25 per slot the transmission starts
	// within a reasonable number of slots.
	tnc.SetDataCarrierDetect(false)
	var started = false
	for i := 0; i < 200; i++ {
		now += csma_slot_samples
		tnc.SetNow(now)
		if f := tnc.ReadTxFrame(); f != nil {
			assert.IsType(t, FramePreamble{}, f)
			started = true
			break
		}
	}
	assert.True(t, started)
}

func TestTncTransmitsImmediatelyOnQuietChannel(t *testing.T) {
	var tnc = NewSoftTnc()
	tnc.SetNow(0)
	queue_basic_packet(t, tnc, []byte{1})
	assert.IsType(t, FramePreamble{}, tnc.ReadTxFrame())
}

func TestTncFullDuplexSkipsCsma(t *testing.T) {
	var tnc = NewSoftTnc()
	var full_duplex_kiss = NewFullDuplexKiss(0, true)
	tnc.WriteKissBuffer(full_duplex_kiss.Bytes())
	tnc.SetDataCarrierDetect(true)
	queue_basic_packet(t, tnc, []byte{1})
	assert.IsType(t, FramePreamble{}, tnc.ReadTxFrame())
}

func TestTncTxDelaySetting(t *testing.T) {
	var tnc = NewSoftTnc()
	kf1 := NewTxDelayKiss(0, 7)
	tnc.WriteKissBuffer(kf1.Bytes())
	queue_basic_packet(t, tnc, []byte{1})
	var f = tnc.ReadTxFrame()
	require.IsType(t, FramePreamble{}, f)
	assert.Equal(t, uint8(7), f.(FramePreamble).TxDelay)
}

func TestTncTransmitStream(t *testing.T) {
	var tnc = NewSoftTnc()
	var lsf = golden_lsf()
	kf2 := NewStreamSetupKiss(&lsf)
	tnc.WriteKissBuffer(kf2.Bytes())

	var frames = stream_frames_for_lsf(lsf, 3)
	for i := range frames {
		kf3 := NewStreamDataKiss(&frames[i])
		tnc.WriteKissBuffer(kf3.Bytes())
	}

	var sent = drain_tx(tnc)
	require.Len(t, sent, 6)
	assert.IsType(t, FramePreamble{}, sent[0])
	assert.IsType(t, FrameLsf{}, sent[1])
	for i := 0; i < 3; i++ {
		require.IsType(t, FrameStream{}, sent[2+i])
		assert.Equal(t, frames[i], sent[2+i].(FrameStream).Frame)
	}
	assert.IsType(t, FrameEndOfTransmission{}, sent[5])
}

func TestTncStreamUnderrunReturnsNil(t *testing.T) {
	var tnc = NewSoftTnc()
	var lsf = golden_lsf()
	kf4 := NewStreamSetupKiss(&lsf)
	tnc.WriteKissBuffer(kf4.Bytes())
	var frames = stream_frames_for_lsf(lsf, 3)
	kf5 := NewStreamDataKiss(&frames[0])
	tnc.WriteKissBuffer(kf5.Bytes())

	var sent = drain_tx(tnc)
	// Preamble, LSF, first frame, then the queue runs dry.
	require.Len(t, sent, 3)
	assert.True(t, tnc.PttRequired())

	// More data arrives and transmission picks up where it left off.
	frames[1].EndOfStream = true
	kf6 := NewStreamDataKiss(&frames[1])
	tnc.WriteKissBuffer(kf6.Bytes())
	sent = drain_tx(tnc)
	require.Len(t, sent, 2)
	assert.IsType(t, FrameStream{}, sent[0])
	assert.IsType(t, FrameEndOfTransmission{}, sent[1])
}

func TestTncAbortStreamEndsCleanly(t *testing.T) {
	var tnc = NewSoftTnc()
	var lsf = golden_lsf()
	kf7 := NewStreamSetupKiss(&lsf)
	tnc.WriteKissBuffer(kf7.Bytes())
	var frames = stream_frames_for_lsf(lsf, 8)
	for i := range frames[:4] {
		kf8 := NewStreamDataKiss(&frames[i])
		tnc.WriteKissBuffer(kf8.Bytes())
	}

	// Start transmitting, then abort mid-stream.
	assert.IsType(t, FramePreamble{}, tnc.ReadTxFrame())
	assert.IsType(t, FrameLsf{}, tnc.ReadTxFrame())
	assert.IsType(t, FrameStream{}, tnc.ReadTxFrame())
	tnc.AbortTransmission()

	var f = tnc.ReadTxFrame()
	require.IsType(t, FrameStream{}, f)
	assert.True(t, f.(FrameStream).Frame.EndOfStream)
	assert.IsType(t, FrameEndOfTransmission{}, tnc.ReadTxFrame())
	assert.Nil(t, tnc.ReadTxFrame())
}

func TestTncIgnoresOwnDecodesWhileTransmitting(t *testing.T) {
	var tnc = NewSoftTnc()
	queue_basic_packet(t, tnc, []byte{1})
	require.NotNil(t, tnc.ReadTxFrame())
	require.True(t, tnc.PttRequired())

	tnc.HandleFrame(golden_lsf())
	assert.Empty(t, read_one_kiss(t, tnc))
}

func TestTncRejectsBadLsfFromHost(t *testing.T) {
	var tnc = NewSoftTnc()
	var lsf = golden_lsf()
	lsf[3] ^= 0xFF // break the CRC
	kf9 := NewStreamSetupKiss(&lsf)
	tnc.WriteKissBuffer(kf9.Bytes())
	assert.Nil(t, tnc.ReadTxFrame())
}

func TestTncPacketQueueLimit(t *testing.T) {
	var tnc = NewSoftTnc()
	for i := 0; i < 6; i++ {
		queue_basic_packet(t, tnc, []byte{byte(i)})
	}
	var sent = drain_tx(tnc)
	// Four queued packets at two frames each, plus preamble and EOT.
	var packets = 0
	for _, f := range sent {
		if _, ok := f.(FrameLsf); ok {
			packets++
		}
	}
	assert.Equal(t, 4, packets)
}

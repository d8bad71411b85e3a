package m17

import "github.com/charmbracelet/log"

/*------------------------------------------------------------------
 *
 * Purpose:	Channel access and frame management between the host
 *		KISS interface and the modem.
 *
 *		The TNC is a synchronous state machine. It never
 *		blocks, sleeps or spawns anything; the surrounding
 *		pump drives it with explicit calls: decoded frames
 *		from the demodulator arrive through HandleFrame, the
 *		modulator pulls transmit frames with ReadTxFrame, the
 *		host exchanges KISS bytes through WriteKissBuffer and
 *		ReadKissBuffer, and the clock advances only when the
 *		pump calls SetNow.
 *
 *		Channel access is p-persistent CSMA. A pending
 *		transmission waits for data carrier detect to drop,
 *		then takes each 40 ms slot with probability
 *		(persistence + 1) / 256. Waiting is expressed as
 *		"no frame yet" returns from ReadTxFrame, never as a
 *		sleep.
 *
 *---------------------------------------------------------------*/

type tnc_state_e int

const (
	/* Nothing happening. TX data may be queued but CSMA has not opened up. */
	TNC_IDLE tnc_state_e = iota

	/* Stream data seen without its LSF; assembling one from LICH fragments. */
	TNC_RX_ACQUIRING_STREAM

	/* Identified stream in progress, payloads going to the host. */
	TNC_RX_STREAM

	/* Packet reception in progress, fragments accumulating. */
	TNC_RX_PACKET

	/* PTT on, stream-type transmission. New data may be queued. */
	TNC_TX_STREAM

	/* Last stream frame handed to the modulator. */
	TNC_TX_STREAM_SENT_EOS

	/* PTT on, packet-type transmission. New packets may be queued. */
	TNC_TX_PACKET

	/* EOT given to modulator; waiting for it to advise the end time. */
	TNC_TX_ENDING

	/* End time known; PTT drops when the clock reaches it. */
	TNC_TX_ENDING_AT_TIME
)

// p-persistence slot length: 40 ms at 48 kHz, one frame time.
const csma_slot_samples = 1920

// Persistence default of 63 transmits into a free slot 1 time in 4.
const default_persistence = 63

// A reception with no decodable frame for a second is dead; abandon
// the reassembly rather than gluing two stations together.
const rx_timeout_samples = 48000

// pending_packet is one queued packet transmission: an LSF followed by
// the application payload fragmented across as many frames as needed.
type pending_packet struct {
	lsf          *LsfFrame
	app_data     [packet_max_len]byte
	app_data_len int
	transmitted  int
}

// next_frame returns the next frame of this packet, not including
// preamble or EOT, or ok=false when all of it has been handed over.
func (p *pending_packet) next_frame() (ModulatorFrame, bool) {
	if p.lsf != nil {
		var lsf = *p.lsf
		p.lsf = nil
		return FrameLsf{Frame: lsf}, true
	}
	if p.transmitted >= p.app_data_len {
		return ModulatorFrame(nil), false
	}
	var remaining = p.app_data_len - p.transmitted
	var frame PacketFrame
	if remaining <= packet_payload_len {
		frame.LastFrame = true
		frame.PayloadLen = uint8(remaining)
		copy(frame.Payload[:], p.app_data[p.transmitted:p.transmitted+remaining])
		p.transmitted += remaining
	} else {
		frame.Counter = uint8(p.transmitted / packet_payload_len)
		copy(frame.Payload[:], p.app_data[p.transmitted:p.transmitted+packet_payload_len])
		p.transmitted += packet_payload_len
	}
	return FramePacket{Frame: frame}, true
}

// SoftTnc ties SoftModulator and SoftDemodulator to a KISS host
// interface. The three work alongside each other; the caller is
// responsible for chaining them together or doing something else with
// the data.
type SoftTnc struct {
	// Framing of host commands, which arrive in arbitrary binary blobs.
	kiss_buffer KissBuffer

	// KISS bytes waiting to go to the host, oldest first.
	outgoing_kiss [][]byte

	state tnc_state_e

	// Latest carrier detect from the demodulator; gates TX.
	dcd bool

	// If CSMA declined an idle slot, when to check the next one.
	next_csma_check uint64
	csma_waiting    bool

	// Monotonic time in samples.
	now uint64

	// Small xorshift generator for CSMA slot decisions.
	prng uint32

	// Circular buffer of packets enqueued for transmission.
	packet_queue [4]pending_packet
	packet_next  int
	packet_curr  int
	// When true and next == curr the queue is full rather than empty.
	packet_full bool

	// LSF for a stream we are about to transmit. Doubles as the
	// indicator that a stream transmission is wanted.
	stream_pending_lsf *LsfFrame

	// Circular buffer of stream frames enqueued for transmission.
	// When it empties we hope the last frame had the end-of-stream
	// flag; otherwise an underrun has occurred. Overruns just drop
	// frames and receiving stations cope.
	stream_queue [8]StreamFrame
	stream_next  int
	stream_curr  int
	stream_full  bool

	// Caller asked for the transmission to stop at the next frame
	// boundary with a protocol-compliant ending.
	abort_tx bool

	// Receive side state.
	rx_lsf       LsfFrame
	rx_assembler PacketAssembler
	rx_index     uint16
	rx_lich      LichCollection
	rx_last      uint64

	// Should PTT be on right now? Polled by the pump.
	ptt bool

	// Sample time at which PTT may be released, valid in the
	// TNC_TX_ENDING_AT_TIME state.
	tx_end_time uint64

	tx_delay    uint8
	persistence uint8
	full_duplex bool

	// Frame number one past the last stream frame handed to the
	// modulator, used to number a synthesized abort frame.
	stream_tx_index uint16
}

func NewSoftTnc() *SoftTnc {
	return &SoftTnc{
		prng:        0x6A09E667,
		persistence: default_persistence,
	}
}

/*-------------------------------------------------------------
 *
 * Name:	HandleFrame
 *
 * Purpose:	Process one frame decoded by the demodulator.
 *
 * Description:	Reception never treats a strange frame as fatal: a
 *		frame that cannot extend the current reassembly
 *		resets it and the TNC keeps listening. Frames that
 *		arrive while we are transmitting are our own signal
 *		leaking back in and are ignored.
 *
 *--------------------------------------------------------------*/

func (t *SoftTnc) HandleFrame(frame Frame) {
	if t.ptt {
		return
	}
	t.rx_last = t.now
	switch f := frame.(type) {
	case LsfFrame:
		// A new LSF implies a clean slate. If we were partway
		// through something else then we missed its ending.
		t.rx_lsf = f
		switch f.Mode() {
		case ModePacket:
			t.rx_assembler.Reset()
			t.state = TNC_RX_PACKET
		case ModeStream:
			var kiss = NewStreamSetupKiss(&f)
			t.kiss_to_host(kiss)
			t.rx_index = 0
			t.state = TNC_RX_STREAM
		}
	case PacketFrame:
		if t.state != TNC_RX_PACKET {
			// Missed the LSF; without it the packet has no
			// addressing so there is nothing useful to salvage.
			t.state = TNC_IDLE
			return
		}
		var payload, complete, ok = t.rx_assembler.Feed(f)
		if !ok {
			log.Debug("packet reassembly abandoned", "counter", f.Counter)
			t.state = TNC_IDLE
			return
		}
		if complete {
			// Every packet carries a type prefix and a trailing CRC.
			// A hole left by an undetected missing fragment shows up
			// here; deliver nothing rather than a corrupted payload.
			if len(payload) < 3 || m17_crc(payload) != 0 {
				log.Debug("assembled packet failed CRC, discarding")
				t.state = TNC_IDLE
				return
			}
			if kiss, err := NewFullPacketKiss(&t.rx_lsf, payload); err == nil {
				t.kiss_to_host(kiss)
			}
			t.state = TNC_IDLE
		}
	case StreamFrame:
		switch t.state {
		case TNC_RX_STREAM:
			// Frame numbers may skip when decodes fail but never
			// go backwards within one transmission.
			if f.FrameNumber < t.rx_index {
				t.rx_lich.Reset()
				t.rx_lich.SetSegment(f.LichIdx, f.LichPart)
				t.state = TNC_RX_ACQUIRING_STREAM
				return
			}
			t.rx_index = f.FrameNumber + 1
			t.kiss_to_host(NewStreamDataKiss(&f))
			if f.EndOfStream {
				t.state = TNC_IDLE
			}
		case TNC_RX_ACQUIRING_STREAM:
			t.rx_lich.SetSegment(f.LichIdx, f.LichPart)
			if assembled := t.rx_lich.TryAssemble(); assembled != nil {
				var lsf LsfFrame
				copy(lsf[:], assembled)
				// LICH contents can change mid-transmission, so
				// only trust an assembly whose CRC checks out;
				// that rules out a torn read across two LSFs.
				if lsf.CrcValid() {
					t.rx_lsf = lsf
					t.kiss_to_host(NewStreamSetupKiss(&lsf))
					t.rx_index = f.FrameNumber + 1
					t.kiss_to_host(NewStreamDataKiss(&f))
					t.state = TNC_RX_STREAM
				}
			}
			if f.EndOfStream {
				t.state = TNC_IDLE
			}
		default:
			// Joined mid-stream. Start collecting LICH fragments
			// so we can reconstruct the missed LSF.
			t.rx_lich.Reset()
			t.rx_lich.SetSegment(f.LichIdx, f.LichPart)
			t.state = TNC_RX_ACQUIRING_STREAM
		}
	}
}

func (t *SoftTnc) SetDataCarrierDetect(dcd bool) {
	t.dcd = dcd
}

// SetNow advances the TNC clock, counted in samples. Everything the
// TNC schedules (PTT release, CSMA slots, receive timeouts) keys off
// this; nothing inside sleeps.
func (t *SoftTnc) SetNow(now_samples uint64) {
	t.now = now_samples
	if t.state == TNC_TX_ENDING_AT_TIME && now_samples >= t.tx_end_time {
		t.ptt = false
		t.state = TNC_IDLE
	}
	switch t.state {
	case TNC_RX_STREAM, TNC_RX_PACKET, TNC_RX_ACQUIRING_STREAM:
		if now_samples > t.rx_last+rx_timeout_samples {
			log.Debug("receive timed out, discarding reassembly")
			t.rx_assembler.Reset()
			t.rx_lich.Reset()
			t.state = TNC_IDLE
		}
	}
}

// PttRequired reports whether the transmit switch should be engaged
// right now.
func (t *SoftTnc) PttRequired() bool {
	return t.ptt
}

// SetTxEndTime accepts the modulator's advice that the final samples
// of the transmission will have left the output in this many samples,
// at which point PTT may drop.
func (t *SoftTnc) SetTxEndTime(in_samples int) {
	log.Debug("transmission will complete", "samples", in_samples)
	if t.state == TNC_TX_ENDING {
		t.tx_end_time = t.now + uint64(in_samples)
		t.state = TNC_TX_ENDING_AT_TIME
	}
}

/*-------------------------------------------------------------
 *
 * Name:	ReadTxFrame
 *
 * Purpose:	Hand the modulator its next frame, or nil when there
 *		is no frame to send right now.
 *
 * Description:	This is where CSMA happens. A queued transmission
 *		stays queued while the channel is busy; when a slot
 *		opens we take it with the configured persistence
 *		probability, otherwise check again one slot later.
 *
 *--------------------------------------------------------------*/

func (t *SoftTnc) ReadTxFrame() ModulatorFrame {
	switch t.state {
	case TNC_IDLE, TNC_RX_ACQUIRING_STREAM, TNC_RX_STREAM, TNC_RX_PACKET:
		var stream_wants_tx = t.stream_pending_lsf != nil
		var packet_wants_tx = t.packet_full || t.packet_next != t.packet_curr
		if !stream_wants_tx && !packet_wants_tx {
			return nil
		}

		if !t.full_duplex && !t.channel_acquired() {
			return nil
		}

		if stream_wants_tx {
			t.state = TNC_TX_STREAM
		} else {
			t.state = TNC_TX_PACKET
		}
		t.abort_tx = false
		t.ptt = true
		return FramePreamble{TxDelay: t.tx_delay}

	case TNC_TX_STREAM:
		if t.abort_tx {
			return t.abort_stream_frame()
		}
		if !t.stream_full && t.stream_next == t.stream_curr {
			return nil
		}
		if t.stream_pending_lsf != nil {
			var lsf = *t.stream_pending_lsf
			t.stream_pending_lsf = nil
			return FrameLsf{Frame: lsf}
		}
		var frame = t.stream_queue[t.stream_curr]
		t.stream_full = false
		t.stream_curr = (t.stream_curr + 1) % len(t.stream_queue)
		t.stream_tx_index = frame.FrameNumber + 1
		if frame.EndOfStream {
			t.state = TNC_TX_STREAM_SENT_EOS
		}
		return FrameStream{Frame: frame}

	case TNC_TX_STREAM_SENT_EOS:
		t.state = TNC_TX_ENDING
		return FrameEndOfTransmission{}

	case TNC_TX_PACKET:
		if t.abort_tx {
			// Finish the frames of the packet in flight so its
			// final-frame marker goes out, then stop.
			if frame, ok := t.packet_queue[t.packet_curr].next_frame(); ok {
				return frame
			}
			t.drop_queued_packets()
			t.state = TNC_TX_ENDING
			return FrameEndOfTransmission{}
		}
		if !t.packet_full && t.packet_next == t.packet_curr {
			return nil
		}
		for t.packet_full || t.packet_next != t.packet_curr {
			if frame, ok := t.packet_queue[t.packet_curr].next_frame(); ok {
				return frame
			}
			t.packet_full = false
			t.packet_curr = (t.packet_curr + 1) % len(t.packet_queue)
		}
		t.state = TNC_TX_ENDING
		return FrameEndOfTransmission{}

	case TNC_TX_ENDING, TNC_TX_ENDING_AT_TIME:
		// After EOT we withhold new frames until the channel fully
		// clears and we are ready to transmit again.
		return nil
	}
	return nil
}

// channel_acquired runs one CSMA decision. True means transmit now.
func (t *SoftTnc) channel_acquired() bool {
	if !t.csma_waiting {
		if t.dcd {
			t.csma_waiting = true
			t.next_csma_check = t.now + csma_slot_samples
			return false
		}
		// Channel idle at the moment a frame shows up: go right ahead.
		return true
	}
	if t.now < t.next_csma_check {
		return false
	}
	if !t.dcd && t.rand_byte() <= t.persistence {
		t.csma_waiting = false
		return true
	}
	t.next_csma_check = t.now + csma_slot_samples
	return false
}

// AbortTransmission asks for the current transmission to stop early.
// The TNC still closes it out properly: a stream gets a frame carrying
// the end-of-stream flag, a packet finishes its in-flight frames, and
// both end with the EOT marker so receivers do not hang.
func (t *SoftTnc) AbortTransmission() {
	switch t.state {
	case TNC_TX_STREAM, TNC_TX_PACKET:
		t.abort_tx = true
	}
}

// abort_stream_frame closes an aborted stream: the next queued frame
// (or a synthesized empty one) goes out with the EOS flag forced on.
func (t *SoftTnc) abort_stream_frame() ModulatorFrame {
	t.abort_tx = false
	t.stream_pending_lsf = nil
	var frame StreamFrame
	if t.stream_full || t.stream_next != t.stream_curr {
		frame = t.stream_queue[t.stream_curr]
	} else {
		frame = StreamFrame{FrameNumber: t.stream_tx_index}
	}
	t.stream_full = false
	t.stream_curr = 0
	t.stream_next = 0
	frame.EndOfStream = true
	t.state = TNC_TX_STREAM_SENT_EOS
	return FrameStream{Frame: frame}
}

func (t *SoftTnc) drop_queued_packets() {
	for i := range t.packet_queue {
		t.packet_queue[i] = pending_packet{}
	}
	t.packet_next = 0
	t.packet_curr = 0
	t.packet_full = false
}

// ReadKissBuffer copies pending host-bound KISS bytes into target.
// After each frame input this should be drained in a loop until it
// returns 0. Never blocks; a blocking read belongs upstream.
func (t *SoftTnc) ReadKissBuffer(target []byte) int {
	if len(t.outgoing_kiss) == 0 {
		return 0
	}
	var head = t.outgoing_kiss[0]
	var n = copy(target, head)
	if n == len(head) {
		t.outgoing_kiss = t.outgoing_kiss[1:]
	} else {
		t.outgoing_kiss[0] = head[n:]
	}
	return n
}

/*-------------------------------------------------------------
 *
 * Name:	WriteKissBuffer
 *
 * Purpose:	Accept KISS bytes from the host and act on any
 *		complete frames they finish.
 *
 * Returns:	Number of bytes consumed, which is always all of
 *		them; queue overflow drops frames rather than
 *		blocking the host interface.
 *
 *--------------------------------------------------------------*/

func (t *SoftTnc) WriteKissBuffer(buf []byte) int {
	t.kiss_buffer.Write(buf)
	for {
		var frame, ok = t.kiss_buffer.NextFrame()
		if !ok {
			break
		}
		var port, port_err = frame.Port()
		var command, cmd_err = frame.Command()
		if port_err != nil || cmd_err != nil {
			continue
		}
		if port != KISS_PORT_PACKET_BASIC && port != KISS_PORT_PACKET_FULL && port != KISS_PORT_STREAM {
			continue
		}
		var payload, payload_err = frame.PayloadBytes()
		if payload_err != nil {
			continue
		}
		switch command {
		case KissCommandTxDelay:
			if len(payload) == 1 {
				t.tx_delay = payload[0]
			}
		case KissCommandP:
			if len(payload) == 1 {
				t.persistence = payload[0]
			}
		case KissCommandFullDuplex:
			if len(payload) == 1 {
				t.full_duplex = payload[0] != 0
			}
		case KissCommandDataFrame:
			switch port {
			case KISS_PORT_PACKET_BASIC:
				t.enqueue_basic_packet(payload)
			case KISS_PORT_PACKET_FULL:
				t.enqueue_full_packet(payload)
			case KISS_PORT_STREAM:
				t.enqueue_stream(payload)
			}
		}
	}
	return len(buf)
}

// Source identity used for basic mode packets, where the host never
// supplies an LSF of its own.
var basic_packet_source = func() Address {
	var a, _ = ParseCallsign("M17RT-PKT")
	return a
}()

func (t *SoftTnc) enqueue_basic_packet(payload []byte) {
	if t.packet_full {
		log.Debug("packet queue full, dropping basic packet")
		return
	}
	if len(payload) > packet_max_len-3 {
		return
	}
	var pending pending_packet
	pending.app_data[0] = 0x00 // RAW type prefix
	copy(pending.app_data[1:], payload)
	var data_len = len(payload) + 1
	var crc = m17_crc(pending.app_data[0:data_len])
	pending.app_data[data_len] = byte(crc >> 8)
	pending.app_data[data_len+1] = byte(crc)
	pending.app_data_len = data_len + 2
	var lsf = NewLsfFrame(AddressBroadcast, basic_packet_source, ModePacket, DataTypeData, 0)
	pending.lsf = &lsf
	t.push_packet(pending)
}

func (t *SoftTnc) enqueue_full_packet(payload []byte) {
	if t.packet_full {
		log.Debug("packet queue full, dropping full packet")
		return
	}
	// 30 byte LSF plus at least type prefix and CRC.
	if len(payload) < 33 || len(payload) > 30+packet_max_len {
		return
	}
	var lsf LsfFrame
	copy(lsf[:], payload[0:30])
	if !lsf.CrcValid() {
		return
	}
	var pending pending_packet
	pending.lsf = &lsf
	pending.app_data_len = copy(pending.app_data[:], payload[30:])
	t.push_packet(pending)
}

func (t *SoftTnc) push_packet(pending pending_packet) {
	t.packet_queue[t.packet_next] = pending
	t.packet_next = (t.packet_next + 1) % len(t.packet_queue)
	if t.packet_next == t.packet_curr {
		t.packet_full = true
	}
}

func (t *SoftTnc) enqueue_stream(payload []byte) {
	if len(payload) == 30 {
		var lsf LsfFrame
		copy(lsf[:], payload)
		if !lsf.CrcValid() {
			return
		}
		t.stream_pending_lsf = &lsf
		return
	}
	if len(payload) < kiss_stream_data_len {
		log.Debug("stream payload too short", "len", len(payload))
		return
	}
	if t.stream_full {
		log.Debug("stream queue full, dropping frame")
		return
	}
	var frame_number = uint16(payload[6])<<8 | uint16(payload[7])
	var frame = StreamFrame{
		LichIdx:     payload[5] >> 5,
		FrameNumber: frame_number & 0x7fff,
		EndOfStream: frame_number&0x8000 != 0,
	}
	copy(frame.LichPart[:], payload[0:5])
	copy(frame.StreamData[:], payload[8:24])
	t.stream_queue[t.stream_next] = frame
	t.stream_next = (t.stream_next + 1) % len(t.stream_queue)
	if t.stream_next == t.stream_curr {
		t.stream_full = true
	}
}

func (t *SoftTnc) kiss_to_host(frame KissFrame) {
	t.outgoing_kiss = append(t.outgoing_kiss, frame.Bytes())
}

// rand_byte steps the xorshift generator for CSMA slot decisions.
func (t *SoftTnc) rand_byte() uint8 {
	t.prng ^= t.prng << 13
	t.prng ^= t.prng >> 17
	t.prng ^= t.prng << 5
	return uint8(t.prng)
}

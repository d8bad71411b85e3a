package m17

/*-------------------------------------------------------------
 *
 * Purpose:	Turn frames into a shaped 48 kHz sample stream.
 *
 *		The modulator never owns a device or a clock. The
 *		surrounding pump drives it: update_output_buffer
 *		reports how full the output buffer is, Run says what
 *		the modulator wants next, ReadOutputSamples drains
 *		the freshly shaped samples. Frames are pulled from
 *		the TNC one at a time, only when there is room to
 *		shape a whole one, so backpressure reaches the TNC's
 *		queues rather than growing buffers here.
 *
 *--------------------------------------------------------------*/

// Modulator shapes symbol bursts into output samples under the direction
// of a caller-owned pump loop.
type Modulator interface {
	// UpdateOutputBuffer reports buffer state: samples handed over but
	// not yet played, total buffer capacity, and the downstream latency
	// estimate in samples. Call it whenever samples have been read out.
	UpdateOutputBuffer(samples_to_play int, capacity int, output_latency int)

	// ProvideNextFrame answers a GetNextFrame action with the next
	// frame to send, or nil if the TNC has nothing more to offer.
	ProvideNextFrame(frame ModulatorFrame)

	// ReadOutputSamples fills out with shaped samples and returns how
	// many were written. Call in a loop until it returns 0.
	ReadOutputSamples(out []int16) int

	// Run returns the next action for the pump, or nil when there is
	// nothing to do until the next external event.
	Run() ModulatorAction
}

// ModulatorAction tells the pump loop what the modulator needs next.
type ModulatorAction interface {
	modulator_action()
}

// ActionSetIdle reports whether sample underruns are expected. While
// idle, an empty buffer should play out equilibrium; during a
// transmission it is an underrun error.
type ActionSetIdle struct {
	Idle bool
}

// ActionGetNextFrame asks the pump to fetch a frame from the TNC and
// hand it to ProvideNextFrame.
type ActionGetNextFrame struct{}

// ActionReadOutput announces shaped samples ready for ReadOutputSamples.
type ActionReadOutput struct{}

// ActionTransmissionWillEnd advises that the end of transmission will
// have fully left the DAC after this many samples, at which point PTT
// can be released.
type ActionTransmissionWillEnd struct {
	RemainingSamples int
}

func (ActionSetIdle) modulator_action()             {}
func (ActionGetNextFrame) modulator_action()        {}
func (ActionReadOutput) modulator_action()          {}
func (ActionTransmissionWillEnd) modulator_action() {}

// ModulatorFrame is one unit of transmission handed from the TNC to the
// modulator. The TNC owns all timing decisions: ordering, gaps between
// transmissions, PTT and CSMA. The modulator's job is to shape whatever
// it is given, directly after anything shaped before it.
type ModulatorFrame interface {
	modulator_frame()
}

// FramePreamble opens a transmission. TxDelay is the configured key-up
// settling time in 10 ms increments; the modulator absorbs it into
// whatever output latency already exists rather than always adding it.
type FramePreamble struct {
	TxDelay uint8
}

type FrameLsf struct {
	Frame LsfFrame
}

type FrameStream struct {
	Frame StreamFrame
}

type FramePacket struct {
	Frame PacketFrame
}

type FrameEndOfTransmission struct{}

func (FramePreamble) modulator_frame()          {}
func (FrameLsf) modulator_frame()               {}
func (FrameStream) modulator_frame()            {}
func (FramePacket) modulator_frame()            {}
func (FrameEndOfTransmission) modulator_frame() {}

// Samples of key-up delay per TxDelay unit (10 ms at 48 kHz).
const tx_delay_unit_samples = 480

// One shaped frame is 192 symbols at 10 samples each; the end of
// transmission adds 80 samples to flush the shaping filter tail.
const frame_sample_len = frame_symbols * samples_per_symbol
const transmission_buf_len = frame_sample_len + 80

// Symbol impulse amplitude. Max theoretical gain from the RRC filter is
// 4.328, so a baseline of 16383 / 4.328 = 3785 can never clip.
const symbol_amplitude = 3785.0

// SoftModulator shapes symbol bursts through the RRC filter, ten output
// samples per symbol.
type SoftModulator struct {
	// Next shaped frame to output.
	next_transmission [transmission_buf_len]int16
	next_len          int
	next_read         int
	// Pending zero samples emitted first so the preamble reaches the
	// DAC just as PTT fully engages.
	tx_delay_padding int

	update_idle bool
	idle        bool

	// Set when an end of transmission has been shaped; the next buffer
	// update turns it into a report_tx_end estimate.
	calculate_tx_end bool
	report_tx_end    int
	have_tx_end      bool

	// Shaping filter state, carried across frames within a
	// transmission. Degrades to zeroes naturally after the EOT flush.
	filter_win    [rrc_taps]float32
	filter_cursor int

	try_get_frame bool

	output_latency int
	samples_in_buf int
	buf_capacity   int
}

func NewSoftModulator() *SoftModulator {
	return &SoftModulator{
		update_idle: true,
		idle:        true,
	}
}

// push_sample advances the shaping filter by one output sample.
func (m *SoftModulator) push_sample(value float32) {
	m.filter_win[m.filter_cursor] = value
	m.filter_cursor = (m.filter_cursor + 1) % rrc_taps
	var out float32
	for i := 0; i < rrc_taps; i++ {
		out += rrc_48k[i] * m.filter_win[(m.filter_cursor+i)%rrc_taps]
	}
	m.next_transmission[m.next_len] = int16(out)
	m.next_len++
}

// push_symbol feeds one symbol impulse followed by its upsampling zeros,
// producing ten shaped samples.
func (m *SoftModulator) push_symbol(symbol float32) {
	m.push_sample(symbol * symbol_amplitude)
	for i := 1; i < samples_per_symbol; i++ {
		m.push_sample(0)
	}
}

func (m *SoftModulator) request_frame_if_space() {
	if m.buf_capacity-m.samples_in_buf >= transmission_buf_len {
		m.try_get_frame = true
	}
}

func (m *SoftModulator) UpdateOutputBuffer(samples_to_play int, capacity int, output_latency int) {
	m.output_latency = output_latency
	m.buf_capacity = capacity
	m.samples_in_buf = samples_to_play

	if m.calculate_tx_end {
		m.calculate_tx_end = false
		// next_transmission has already been read out into the buffer
		// so only the buffer and latency remain ahead of the EOT.
		m.report_tx_end = m.samples_in_buf + m.output_latency
		m.have_tx_end = true
	}

	m.request_frame_if_space()
}

func (m *SoftModulator) ProvideNextFrame(frame ModulatorFrame) {
	if frame == nil {
		m.try_get_frame = false
		return
	}

	m.next_len = 0
	m.next_read = 0

	switch f := frame.(type) {
	case FramePreamble:
		// TxDelay and output latency overlap; pad for whichever is
		// bigger so the DAC hits the preamble as PTT engages.
		var tx_delay_samples = int(f.TxDelay) * tx_delay_unit_samples
		m.tx_delay_padding = max(tx_delay_samples, m.output_latency)
		m.idle = false
		m.update_idle = true
		var symbols = generate_preamble()
		for _, s := range symbols {
			m.push_symbol(s)
		}
	case FrameLsf:
		var symbols = encode_lsf(&f.Frame)
		for _, s := range symbols {
			m.push_symbol(s)
		}
	case FrameStream:
		var symbols = encode_stream(&f.Frame)
		for _, s := range symbols {
			m.push_symbol(s)
		}
	case FramePacket:
		var symbols = encode_packet(&f.Frame)
		for _, s := range symbols {
			m.push_symbol(s)
		}
	case FrameEndOfTransmission:
		var symbols = generate_end_of_transmission()
		for _, s := range symbols {
			m.push_symbol(s)
		}
		for i := 0; i < 80; i++ {
			// Not a real symbol, just flushing the filter tail.
			m.push_sample(0)
		}
		m.idle = true
		m.update_idle = true
		m.calculate_tx_end = true
	}
}

func (m *SoftModulator) ReadOutputSamples(out []int16) int {
	var written = 0

	// Expend pre-TX padding first.
	if m.tx_delay_padding > 0 {
		var n = min(len(out), m.tx_delay_padding)
		m.tx_delay_padding -= n
		for i := 0; i < n; i++ {
			out[i] = 0
		}
		written += n
	}

	var next_remaining = m.next_len - m.next_read
	if next_remaining > 0 {
		var n = min(len(out)-written, next_remaining)
		copy(out[written:written+n], m.next_transmission[m.next_read:m.next_read+n])
		m.next_read += n
		written += n
	}

	return written
}

func (m *SoftModulator) Run() ModulatorAction {
	// Time-sensitive for accuracy, so handle it first.
	if m.have_tx_end {
		m.have_tx_end = false
		return ActionTransmissionWillEnd{RemainingSamples: m.report_tx_end}
	}

	if m.next_read < m.next_len {
		return ActionReadOutput{}
	}

	if m.update_idle {
		m.update_idle = false
		return ActionSetIdle{Idle: m.idle}
	}

	if m.try_get_frame {
		return ActionGetNextFrame{}
	}

	return nil
}

package m17

/*------------------------------------------------------------------
 *
 * Purpose:	The pump that joins a sample device to the modem and
 *		TNC, turning the whole stack into a KISS byte pipe.
 *
 * Description:	The demodulator, modulator and TNC are all passive
 *		state machines driven by function calls. A Soundmodem
 *		owns the goroutine that drives them: sample blocks
 *		arrive as events, the wall clock is converted to a
 *		48 kHz sample count for the TNC, decoded KISS frames
 *		are handed to the host, and the modulator is run until
 *		it has nothing further to ask for. PTT edges are pushed
 *		to the configured switch as they happen.
 *
 *		A Soundmodem is an io.ReadWriter carrying KISS bytes,
 *		so the same endpoint code can serve a TCP listener, a
 *		pty or a serial port without caring that there is a
 *		modem underneath.
 *
 *---------------------------------------------------------------*/

import (
	"encoding/binary"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// SoundmodemEvent is one unit of work for the soundmodem goroutine.
type SoundmodemEvent interface {
	soundmodem_event()
}

// EventKiss carries KISS bytes written by the host.
type EventKiss struct {
	Data []byte
}

// EventBasebandInput carries one block of received 48 kHz samples.
type EventBasebandInput struct {
	Samples []int16
}

// EventStart begins sample I/O.
type EventStart struct{}

// EventClose shuts the soundmodem down.
type EventClose struct{}

// EventDidReadFromOutputBuffer reports that the output device consumed
// samples, so the modulator can re-estimate buffer headroom.
type EventDidReadFromOutputBuffer struct {
	Len       int
	Timestamp time.Time
}

// EventOutputUnderrun reports that the output device wanted samples
// mid-transmission and the buffer was empty.
type EventOutputUnderrun struct{}

// event_lsf_hook installs the heard-station callback.
type event_lsf_hook struct {
	fn func(*LsfFrame)
}

func (EventKiss) soundmodem_event()                    {}
func (EventBasebandInput) soundmodem_event()           {}
func (EventStart) soundmodem_event()                   {}
func (EventClose) soundmodem_event()                   {}
func (EventDidReadFromOutputBuffer) soundmodem_event() {}
func (EventOutputUnderrun) soundmodem_event()          {}
func (event_lsf_hook) soundmodem_event()               {}

// SampleInput produces EventBasebandInput blocks at the 48 kHz real
// time rate once started.
type SampleInput interface {
	Start(events chan<- SoundmodemEvent)
	Close()
}

// SampleOutput consumes samples from an OutputBuffer at the 48 kHz
// real time rate once started.
type SampleOutput interface {
	Start(events chan<- SoundmodemEvent, buffer *OutputBuffer)
	Close()
}

// OutputBuffer hands samples from the soundmodem goroutine to an
// output device goroutine.
type OutputBuffer struct {
	mu sync.Mutex
	// Idling is true when an empty buffer is expected; a drained
	// buffer while not idling is an underrun.
	idling  bool
	samples []int16
	// Latency is the device's own estimate of buffering beyond this
	// queue.
	latency time.Duration
}

func NewOutputBuffer() *OutputBuffer {
	return &OutputBuffer{idling: true}
}

func (b *OutputBuffer) SetIdling(idling bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.idling = idling
}

func (b *OutputBuffer) SetLatency(latency time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.latency = latency
}

func (b *OutputBuffer) Push(samples []int16) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.samples = append(b.samples, samples...)
}

// Pop fills out with queued samples and reports how many were taken
// and whether the shortfall counts as an underrun.
func (b *OutputBuffer) Pop(out []int16) (n int, underrun bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n = copy(out, b.samples)
	b.samples = b.samples[n:]
	if len(b.samples) == 0 {
		// keep the backing array from growing without bound
		b.samples = nil
	}
	return n, n < len(out) && !b.idling
}

// Status returns the queue depth and the device latency estimate.
func (b *OutputBuffer) Status() (occupied int, latency time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.samples), b.latency
}

// Soundmodem runs a complete modem stack. Read returns KISS frames
// decoded off the air; Write accepts KISS frames for transmission.
type Soundmodem struct {
	events   chan SoundmodemEvent
	kiss_out chan []byte

	mu      sync.Mutex
	partial []byte
}

func NewSoundmodem(input SampleInput, output SampleOutput, ptt PttSwitch) *Soundmodem {
	var s = &Soundmodem{
		events:   make(chan SoundmodemEvent, 128),
		kiss_out: make(chan []byte, 128),
	}
	go s.run(input, output, ptt)
	return s
}

// Start begins sample I/O on the configured input and output.
func (s *Soundmodem) Start() {
	s.events <- EventStart{}
}

// Close stops the soundmodem and releases PTT.
func (s *Soundmodem) Close() {
	s.events <- EventClose{}
}

// Read blocks until KISS bytes are available from the TNC.
func (s *Soundmodem) Read(p []byte) (int, error) {
	s.mu.Lock()
	if len(s.partial) > 0 {
		var n = copy(p, s.partial)
		s.partial = s.partial[n:]
		s.mu.Unlock()
		return n, nil
	}
	s.mu.Unlock()

	var frame, ok = <-s.kiss_out
	if !ok {
		return 0, os.ErrClosed
	}
	var n = copy(p, frame)
	if n < len(frame) {
		s.mu.Lock()
		s.partial = frame[n:]
		s.mu.Unlock()
	}
	return n, nil
}

// NotifyLsf registers a callback invoked for every link setup frame
// accepted off the air, before the frame reaches the TNC. Used for
// the heard-station log. The callback runs on the modem goroutine so
// it must not block.
func (s *Soundmodem) NotifyLsf(fn func(*LsfFrame)) {
	s.events <- event_lsf_hook{fn: fn}
}

// Write queues KISS bytes for the TNC. It never blocks; bytes are
// dropped with a log if the soundmodem cannot keep up.
func (s *Soundmodem) Write(p []byte) (int, error) {
	var buf = append([]byte{}, p...)
	select {
	case s.events <- EventKiss{Data: buf}:
	default:
		log.Warn("soundmodem event queue full, dropping KISS data", "len", len(p))
	}
	return len(p), nil
}

func (s *Soundmodem) run(input SampleInput, output SampleOutput, ptt PttSwitch) {
	var demodulator = NewSoftDemodulator()
	var modulator = NewSoftModulator()
	var tnc = NewSoftTnc()
	var kiss_buf = make([]byte, MAX_KISS_LEN)
	var out_buffer = NewOutputBuffer()
	var out_samples = make([]int16, 1024)
	var start = time.Now()
	var ptt_on = false
	var lsf_hook func(*LsfFrame)

	for ev := range s.events {
		// Update the TNC clock before anything else. Accurate to
		// within about one sample.
		tnc.SetNow(uint64(time.Since(start)) / uint64(time.Second/48000))

		switch ev := ev.(type) {
		case EventKiss:
			tnc.WriteKissBuffer(ev.Data)
		case EventBasebandInput:
			for _, sample := range ev.Samples {
				var frame = demodulator.Demod(sample)
				if frame == nil {
					continue
				}
				if lsf, ok := frame.(LsfFrame); ok && lsf_hook != nil {
					lsf_hook(&lsf)
				}
				tnc.HandleFrame(frame)
				for {
					var n = tnc.ReadKissBuffer(kiss_buf)
					if n == 0 {
						break
					}
					var out = append([]byte{}, kiss_buf[:n]...)
					select {
					case s.kiss_out <- out:
					default:
						log.Warn("host not reading, dropping KISS frame", "len", n)
					}
				}
			}
			tnc.SetDataCarrierDetect(demodulator.DataCarrierDetect())
		case EventStart:
			input.Start(s.events)
			output.Start(s.events, out_buffer)
		case EventClose:
			input.Close()
			output.Close()
			if err := ptt.PttOff(); err != nil {
				log.Error("failed to release PTT on close", "error", err)
			}
			close(s.kiss_out)
			return
		case EventDidReadFromOutputBuffer:
			var occupied, latency = out_buffer.Status()
			var internal_latency = int(latency / (time.Second / 48000))
			var played = int(time.Since(ev.Timestamp) / (time.Second / 48000))
			var dynamic_latency = ev.Len - played
			if dynamic_latency < 0 {
				dynamic_latency = 0
			}
			modulator.UpdateOutputBuffer(occupied, 48000, internal_latency+dynamic_latency)
		case EventOutputUnderrun:
			log.Warn("output underrun, aborting transmission")
			tnc.AbortTransmission()
		case event_lsf_hook:
			lsf_hook = ev.fn
		}

		var new_ptt = tnc.PttRequired()
		if new_ptt != ptt_on {
			var err error
			if new_ptt {
				err = ptt.PttOn()
			} else {
				err = ptt.PttOff()
			}
			if err != nil {
				log.Error("PTT switch failed", "on", new_ptt, "error", err)
			}
		}
		ptt_on = new_ptt

		// Let the modulator do what it wants until it runs dry.
		for {
			var action = modulator.Run()
			if action == nil {
				break
			}
			switch action := action.(type) {
			case ActionSetIdle:
				out_buffer.SetIdling(action.Idle)
			case ActionGetNextFrame:
				modulator.ProvideNextFrame(tnc.ReadTxFrame())
			case ActionReadOutput:
				for {
					var n = modulator.ReadOutputSamples(out_samples)
					if n == 0 {
						break
					}
					out_buffer.Push(out_samples[:n])
				}
			case ActionTransmissionWillEnd:
				tnc.SetTxEndTime(action.RemainingSamples)
			}
		}
	}
}

const sample_tick = 25 * time.Millisecond
const samples_per_tick = 1200

// InputRrcFile replays a file of little-endian 16-bit baseband
// samples in real time, for testing against captures.
type InputRrcFile struct {
	baseband []byte
	done     chan struct{}
	once     sync.Once
}

func NewInputRrcFile(path string) (*InputRrcFile, error) {
	var baseband, err = os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &InputRrcFile{baseband: baseband, done: make(chan struct{})}, nil
}

func (f *InputRrcFile) Start(events chan<- SoundmodemEvent) {
	go func() {
		var ticker = time.NewTicker(sample_tick)
		defer ticker.Stop()
		var buf = make([]int16, 0, samples_per_tick)
		for i := 0; i+1 < len(f.baseband); i += 2 {
			buf = append(buf, int16(binary.LittleEndian.Uint16(f.baseband[i:])))
			if len(buf) < samples_per_tick {
				continue
			}
			select {
			case events <- EventBasebandInput{Samples: buf}:
			default:
				log.Debug("overflow feeding soundmodem")
			}
			buf = make([]int16, 0, samples_per_tick)
			select {
			case <-ticker.C:
			case <-f.done:
				return
			}
		}
		if len(buf) > 0 {
			events <- EventBasebandInput{Samples: buf}
		}
	}()
}

func (f *InputRrcFile) Close() {
	f.once.Do(func() { close(f.done) })
}

// NullInputSource produces silence at the real time rate.
type NullInputSource struct {
	done chan struct{}
	once sync.Once
}

func NewNullInputSource() *NullInputSource {
	return &NullInputSource{done: make(chan struct{})}
}

func (n *NullInputSource) Start(events chan<- SoundmodemEvent) {
	go func() {
		var ticker = time.NewTicker(sample_tick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
			case <-n.done:
				return
			}
			select {
			case events <- EventBasebandInput{Samples: make([]int16, samples_per_tick)}:
			default:
				log.Debug("overflow feeding soundmodem")
			}
		}
	}()
}

func (n *NullInputSource) Close() {
	n.once.Do(func() { close(n.done) })
}

// OutputRrcFile drains modulated samples to a file of little-endian
// 16-bit samples at the real time rate. Idle periods are skipped, so
// consecutive transmissions land back to back in the file.
type OutputRrcFile struct {
	path string
	done chan struct{}
	once sync.Once
}

func NewOutputRrcFile(path string) *OutputRrcFile {
	return &OutputRrcFile{path: path, done: make(chan struct{})}
}

func (f *OutputRrcFile) Start(events chan<- SoundmodemEvent, buffer *OutputBuffer) {
	go func() {
		var file, err = os.Create(f.path)
		if err != nil {
			log.Error("failed to create baseband output file", "path", f.path, "error", err)
			return
		}
		defer file.Close()

		var ticker = time.NewTicker(sample_tick)
		defer ticker.Stop()
		var samples = make([]int16, samples_per_tick)
		var wire = make([]byte, samples_per_tick*2)
		for {
			select {
			case <-ticker.C:
			case <-f.done:
				return
			}
			var n, underrun = buffer.Pop(samples)
			if underrun {
				log.Debug("baseband output file had underrun")
				events <- EventOutputUnderrun{}
			}
			for i := 0; i < n; i++ {
				binary.LittleEndian.PutUint16(wire[i*2:], uint16(samples[i]))
			}
			if _, err := file.Write(wire[:n*2]); err != nil {
				log.Error("failed to write baseband output file", "error", err)
				return
			}
			events <- EventDidReadFromOutputBuffer{Len: n, Timestamp: time.Now()}
		}
	}()
}

func (f *OutputRrcFile) Close() {
	f.once.Do(func() { close(f.done) })
}

// NullOutputSink discards modulated samples at the real time rate.
type NullOutputSink struct {
	done chan struct{}
	once sync.Once
}

func NewNullOutputSink() *NullOutputSink {
	return &NullOutputSink{done: make(chan struct{})}
}

func (s *NullOutputSink) Start(events chan<- SoundmodemEvent, buffer *OutputBuffer) {
	go func() {
		var ticker = time.NewTicker(sample_tick)
		defer ticker.Stop()
		var samples = make([]int16, samples_per_tick)
		for {
			select {
			case <-ticker.C:
			case <-s.done:
				return
			}
			var n, underrun = buffer.Pop(samples)
			if underrun {
				log.Debug("null output had underrun")
				events <- EventOutputUnderrun{}
			}
			events <- EventDidReadFromOutputBuffer{Len: n, Timestamp: time.Now()}
		}
	}()
}

func (s *NullOutputSink) Close() {
	s.once.Do(func() { close(s.done) })
}

package m17

import "github.com/charmbracelet/log"

/*-------------------------------------------------------------
 *
 * Purpose:	Recover frames from a raw 48 kHz sample stream.
 *
 *		Samples pass through the RRC matched filter into a
 *		ring of the last 1920 shaped samples, one full frame.
 *		Every sample, the oldest stretch of the ring is
 *		correlated against the four sync patterns. A window
 *		that correlates becomes a decode candidate; the
 *		candidate ages while better alignments are sought,
 *		and when correlation falls away again the best
 *		alignment seen is taken as the frame position and
 *		the whole ring is sliced into 192 soft symbols.
 *
 *		After a successful decode the remainder of the frame
 *		is suppressed so its tail cannot re-trigger sync
 *		detection.
 *
 *--------------------------------------------------------------*/

// Demodulator recovers frames one input sample at a time.
type Demodulator interface {
	// Demod consumes one sample, returning a decoded frame on the
	// sample that completes one and nil otherwise.
	Demod(sample int16) Frame

	// DataCarrierDetect reports whether a transmission currently
	// appears to be in progress.
	DataCarrierDetect() bool
}

// Ring of shaped samples covering exactly one frame.
const rx_ring_len = frame_sample_len

// Correlation looks at 8 symbols spaced 10 samples apart.
const burst_window_len = 71

// Samples of carrier-detect holdoff after a frame or candidate lapses.
const dcd_holdoff = 240

type decode_candidate struct {
	burst sync_burst
	age   int
	diff  float32
	gain  float32
	shift float32
}

// SoftDemodulator converts a sample stream into frames.
type SoftDemodulator struct {
	// Matched filter state.
	filter_win    [rrc_taps]int16
	filter_cursor int
	// Shaped sample ring and write position.
	rx_win    [rx_ring_len]float32
	rx_cursor int
	// Sync alignment under consideration.
	has_candidate bool
	cand          decode_candidate
	// Total samples consumed.
	sample uint64
	// Samples left to ignore while a parsed frame flushes through.
	suppress int
	// Samples of carrier-detect holdoff remaining.
	dcd_hold int
}

func NewSoftDemodulator() *SoftDemodulator {
	return &SoftDemodulator{}
}

func (d *SoftDemodulator) Demod(sample int16) Frame {
	d.filter_win[d.filter_cursor] = sample
	d.filter_cursor = (d.filter_cursor + 1) % rrc_taps
	var shaped float32
	for i := 0; i < rrc_taps; i++ {
		shaped += rrc_48k[i] * float32(d.filter_win[(d.filter_cursor+i)%rrc_taps])
	}

	d.rx_win[d.rx_cursor] = shaped
	d.rx_cursor = (d.rx_cursor + 1) % rx_ring_len

	d.sample++
	if d.dcd_hold > 0 {
		d.dcd_hold--
	}

	if d.suppress > 0 {
		d.suppress--
		return nil
	}

	var burst_window [burst_window_len]float32
	for i := 0; i < burst_window_len; i++ {
		burst_window[i] = d.rx_win[(d.rx_cursor+i)%rx_ring_len]
	}

	for _, burst := range []sync_burst{sync_lsf, sync_bert, sync_stream, sync_packet} {
		var diff, gain, shift = sync_burst_correlation(burst.target(), burst_window[:])
		if diff < sync_threshold {
			var new_candidate = true
			if d.has_candidate {
				if diff > d.cand.diff {
					d.cand.age++
					new_candidate = false
				}
			}
			if new_candidate {
				d.cand = decode_candidate{
					burst: burst,
					age:   1,
					diff:  diff,
					gain:  gain,
					shift: shift,
				}
				d.has_candidate = true
			}
		}
		if diff >= sync_threshold && d.has_candidate && d.cand.burst == burst {
			var c = d.cand
			d.has_candidate = false
			var frame = d.decode_candidate_frame(&c)
			if frame != nil {
				return frame
			}
			d.dcd_hold = dcd_holdoff
		}
	}

	return nil
}

// decode_candidate_frame slices the ring at the candidate's alignment
// and attempts the parse for its burst type.
func (d *SoftDemodulator) decode_candidate_frame(c *decode_candidate) Frame {
	var start_idx = d.rx_cursor + rx_ring_len - c.age
	var start_sample = d.sample - uint64(c.age)
	var pkt_samples [frame_symbols]float32
	for i := 0; i < frame_symbols; i++ {
		var rx_idx = (start_idx + i*samples_per_symbol) % rx_ring_len
		pkt_samples[i] = (d.rx_win[rx_idx] - c.shift) / c.gain
	}
	switch c.burst {
	case sync_lsf:
		log.Debug("found LSF sync", "sample", start_sample, "diff", c.diff, "gain", c.gain, "shift", c.shift)
		if frame, ok := parse_lsf(pkt_samples[:]); ok {
			d.frame_parsed()
			return frame
		}
	case sync_stream:
		log.Debug("found stream sync", "sample", start_sample, "diff", c.diff, "gain", c.gain, "shift", c.shift)
		if frame, ok := parse_stream(pkt_samples[:]); ok {
			d.frame_parsed()
			return frame
		}
	case sync_packet:
		log.Debug("found packet sync", "sample", start_sample, "diff", c.diff, "gain", c.gain, "shift", c.shift)
		if frame, ok := parse_packet(pkt_samples[:]); ok {
			d.frame_parsed()
			return frame
		}
	case sync_bert:
		log.Debug("found BERT sync", "sample", start_sample, "diff", c.diff)
	}
	return nil
}

func (d *SoftDemodulator) frame_parsed() {
	d.suppress = (frame_symbols - 1) * samples_per_symbol
	d.dcd_hold = dcd_holdoff
}

// DataCarrierDetect is true while a candidate sync is being tracked, a
// parsed frame is still flushing through, or within a short holdoff of
// either, so CSMA keeps off the channel through mid-transmission gaps.
func (d *SoftDemodulator) DataCarrierDetect() bool {
	return d.has_candidate || d.suppress > 0 || d.dcd_hold > 0
}

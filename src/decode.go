package m17

import "math"

/*-------------------------------------------------------------
 *
 * Purpose:	Recover frames from received symbol bursts.
 *
 *		The reverse of the encode path, run on soft symbol
 *		estimates rather than hard decisions: each symbol
 *		yields two confidence weighted bits which survive
 *		derandomizing and deinterleaving unchanged in meaning,
 *		so the trellis decoder sees exactly how trustworthy
 *		every received bit was.
 *
 *		Also here: the sync burst correlator used by the
 *		demodulator to spot frame boundaries in the sample
 *		stream.
 *
 *--------------------------------------------------------------*/

type sync_burst int

const (
	sync_lsf sync_burst = iota
	sync_bert
	sync_stream
	sync_packet
)

func (s sync_burst) target() [8]float32 {
	switch s {
	case sync_lsf:
		return lsf_sync_symbols
	case sync_bert:
		return bert_sync_symbols
	case sync_stream:
		return stream_sync_symbols
	default:
		return packet_sync_symbols
	}
}

/*-------------------------------------------------------------
 *
 * Name:	soft_bits_from_symbol
 *
 * Purpose:	Estimate the two transmitted bits of one symbol.
 *
 * Inputs:	s	- Received symbol, nominally one of
 *			  +1, +1/3, -1/3, -1.
 *
 * Returns:	Probability that the first and second bit of the
 *		dibit are one. A symbol on a decision boundary
 *		contributes an honest 0.5 for the bit in question;
 *		one within a sixth of a symbol unit of a nominal
 *		value reads as fully certain, so ordinary channel
 *		noise costs the trellis decoder nothing.
 *
 *--------------------------------------------------------------*/

func soft_bits_from_symbol(s float32) (float32, float32) {
	var msb = 0.5 - 3*s
	if msb < 0 {
		msb = 0
	} else if msb > 1 {
		msb = 1
	}
	var mag = s
	if mag < 0 {
		mag = -mag
	}
	var lsb = 3*mag - 1.5
	if lsb < 0 {
		lsb = 0
	} else if lsb > 1 {
		lsb = 1
	}
	return msb, lsb
}

// frame_initial_decode converts the 184 payload symbols of a burst into
// Type 3 soft bits: soft demap, derandomize, deinterleave. The 8 sync
// symbols at the front of the burst are skipped.
func frame_initial_decode(frame []float32) [type3_bits]float32 {
	var soft [type3_bits]float32
	for i := 0; i < type3_bits/2; i++ {
		soft[i*2], soft[i*2+1] = soft_bits_from_symbol(frame[8+i])
	}
	derandomize_soft(&soft)
	return deinterleave_soft(&soft)
}

// parse_lsf decodes a Link Setup Frame burst. Frames that fail the
// trellis decode or whose CRC does not check are dropped here.
func parse_lsf(frame []float32) (LsfFrame, bool) {
	var soft = frame_initial_decode(frame)
	var data, ok = fec_decode(soft[:], 240, p_1)
	if !ok {
		return LsfFrame{}, false
	}
	var lsf LsfFrame
	copy(lsf[:], data)
	if !lsf.CrcValid() {
		return LsfFrame{}, false
	}
	return lsf, true
}

func parse_stream(frame []float32) (StreamFrame, bool) {
	var soft = frame_initial_decode(frame)
	var data, ok = fec_decode(soft[96:], 144, p_2)
	if !ok {
		return StreamFrame{}, false
	}
	var lich_block = hard_bytes(soft[0:96])
	var counter, part, lich_ok = decode_lich(lich_block)
	if !lich_ok {
		return StreamFrame{}, false
	}
	var frame_number = uint16(data[0])<<8 | uint16(data[1])
	var stream = StreamFrame{
		LichIdx:     counter,
		LichPart:    part,
		FrameNumber: frame_number & 0x7fff,
		EndOfStream: frame_number&0x8000 != 0,
	}
	copy(stream.StreamData[:], data[2:18])
	return stream, true
}

func parse_packet(frame []float32) (PacketFrame, bool) {
	var soft = frame_initial_decode(frame)
	var data, ok = fec_decode(soft[:], 206, p_3)
	if !ok {
		return PacketFrame{}, false
	}
	return parse_packet_frame(data), true
}

// Correlation tuning. A burst is only considered when the spread between
// its extreme samples shows real signal, every sync symbol lands close
// to its target, and the summed residual stays under the demodulator's
// acceptance threshold.
const sync_min_gain = 16.0
const sync_bit_threshold = 0.3
const sync_threshold = 100.0

const correlation_rejected = float32(math.MaxFloat32)

/*-------------------------------------------------------------
 *
 * Name:	sync_burst_correlation
 *
 * Purpose:	Score a window of samples against one sync pattern.
 *
 * Inputs:	target	- Expected 8 symbol pattern.
 *		samples	- Window of raw samples; the candidate
 *			  symbols sit 10 samples apart.
 *
 * Returns:	diff	- Summed distance, or correlation_rejected.
 *		gain	- Estimated amplitude of one symbol unit.
 *		shift	- Estimated DC offset of the window.
 *
 *--------------------------------------------------------------*/

func sync_burst_correlation(target [8]float32, samples []float32) (float32, float32, float32) {
	var pos_max = float32(-math.MaxFloat32)
	var neg_max = float32(math.MaxFloat32)
	for i := 0; i < 8; i++ {
		var s = samples[i*10]
		if s > pos_max {
			pos_max = s
		}
		if s < neg_max {
			neg_max = s
		}
	}
	var gain = (pos_max - neg_max) / 2.0
	var shift = (pos_max + neg_max) / 2.0
	if gain < sync_min_gain {
		return correlation_rejected, gain, shift
	}

	var diff float32
	for i := 0; i < 8; i++ {
		var sym_diff = (samples[i*10]-shift)/gain - target[i]
		if sym_diff < 0 {
			sym_diff = -sym_diff
		}
		if sym_diff > sync_bit_threshold {
			return correlation_rejected, gain, shift
		}
		diff += sym_diff
	}
	return diff, gain, shift
}

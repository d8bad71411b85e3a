package m17

/*-------------------------------------------------------------
 *
 * Purpose:	Convolutional FEC shared by all three frame types.
 *
 *		Rate 1/2, constraint length 5. The encoder register
 *		holds four bits with the newest in the top position;
 *		each input bit produces two coded bits,
 *
 *			g1 = in ^ s1 ^ s0
 *			g2 = in ^ s3 ^ s2 ^ s0
 *
 *		and four zero flush bits terminate every frame. The
 *		coded stream is then punctured down to the type 3 size
 *		with a scheme fixed per frame type.
 *
 *		Decoding is a soft-decision Viterbi search: each soft
 *		bit contributes the absolute difference between its
 *		confidence and the trellis branch's expected value, and
 *		punctured positions contribute nothing. A best path
 *		costing more than fec_decode_threshold means the frame
 *		is too damaged to trust and is dropped.
 *
 * Reference:	M17 specification, "Convolutional Encoder" and
 *		"Code Puncturing".
 *
 *--------------------------------------------------------------*/

const conv_states = 16
const conv_flush_bits = 4

// Accumulated path cost above which a decode is rejected. Saturated soft
// bits make this equivalent to a six-bit hamming distance bound.
const fec_decode_threshold = 6.0

// conv_output returns the two coded bits produced by feeding input to an
// encoder whose register currently holds state.
func conv_output(input byte, state byte) (byte, byte) {
	var s0 = state & 1
	var s1 = (state >> 1) & 1
	var s2 = (state >> 2) & 1
	var s3 = (state >> 3) & 1
	return input ^ s1 ^ s0, input ^ s3 ^ s2 ^ s0
}

func conv_next_state(input byte, state byte) byte {
	return (state >> 1) | (input << 3)
}

// Puncture schemes. For each encoder step they report whether the g1 and
// g2 bits are kept. P1 carries link setup frames (368 of 488 bits kept),
// P2 stream frames (272 of 296), P3 packet frames (368 of 420).

func p_1(step int) (bool, bool) {
	var mod61 = step % 61
	var is_even = mod61%2 == 0
	return mod61 > 30 || is_even, mod61 < 30 || is_even
}

func p_2(step int) (bool, bool) {
	return true, step%6 != 5
}

func p_3(step int) (bool, bool) {
	return true, step%4 != 3
}

/*-------------------------------------------------------------
 *
 * Name:	fec_encode
 *
 * Purpose:	Convolutionally encode and puncture one frame.
 *
 * Inputs:	data		- Type 1 bytes, MSB first.
 *		input_bits	- Number of data bits to consume.
 *		puncture	- Scheme matching the frame type.
 *
 * Returns:	Type 3 bytes. Always 46 bytes; schemes that produce
 *		fewer bits leave the tail clear (P2 fills 34).
 *
 *--------------------------------------------------------------*/

func fec_encode(data []byte, input_bits int, puncture func(int) (bool, bool)) [type3_bytes]byte {
	var out [type3_bytes]byte
	var state byte
	var out_idx = 0
	for step := 0; step < input_bits+conv_flush_bits; step++ {
		var input byte
		if step < input_bits {
			input = get_bit(data, step)
		}
		var g1, g2 = conv_output(input, state)
		state = conv_next_state(input, state)
		var keep_g1, keep_g2 = puncture(step)
		if keep_g1 {
			set_bit(out[:], out_idx, g1)
			out_idx++
		}
		if keep_g2 {
			set_bit(out[:], out_idx, g2)
			out_idx++
		}
	}
	return out
}

/*-------------------------------------------------------------
 *
 * Name:	fec_decode
 *
 * Purpose:	Soft-decision Viterbi decode of one frame.
 *
 * Inputs:	soft		- Punctured type 3 soft bits, each the
 *				  estimated probability of a one.
 *		output_bits	- Number of type 1 bits to recover.
 *		puncture	- Scheme matching the frame type.
 *
 * Returns:	Recovered type 1 bytes and true, or false when the
 *		best path is not plausible enough to trust.
 *
 * Description: The trellis is tracked per transition rather than per
 *		state: transition index t encodes source state and
 *		input bit (t & 15, t >> 4), and the two transitions
 *		arriving at state s are exactly indexes 2s and 2s+1.
 *
 *--------------------------------------------------------------*/

func fec_decode(soft []float32, output_bits int, puncture func(int) (bool, bool)) ([]byte, bool) {
	var steps = output_bits + conv_flush_bits
	var costs = make([][2 * conv_states]float32, steps)

	var soft_idx = 0
	for step := 0; step < steps; step++ {
		var keep_g1, keep_g2 = puncture(step)
		var have_g1, have_g2 float32 = -1, -1
		if keep_g1 {
			have_g1 = soft[soft_idx]
			soft_idx++
		}
		if keep_g2 {
			have_g2 = soft[soft_idx]
			soft_idx++
		}
		for t := 0; t < 2*conv_states; t++ {
			var source = byte(t & 15)
			var input = byte(t >> 4)
			var g1, g2 = conv_output(input, source)
			var dist float32
			if keep_g1 {
				dist += soft_distance(have_g1, g1)
			}
			if keep_g2 {
				dist += soft_distance(have_g2, g2)
			}
			costs[step][t] = best_previous(costs, step, source) + dist
		}
	}

	var best_idx = 0
	var best = costs[steps-1][0]
	for t := 1; t < 2*conv_states; t++ {
		if costs[steps-1][t] < best {
			best = costs[steps-1][t]
			best_idx = t
		}
	}
	if best > fec_decode_threshold {
		return nil, false
	}

	var out = make([]byte, (output_bits+7)/8)
	for step := steps - 1; step >= 0; step-- {
		if step < output_bits {
			set_bit(out, step, byte(best_idx>>4))
		}
		if step > 0 {
			var state = best_idx & 15
			if costs[step-1][state*2] < costs[step-1][state*2+1] {
				best_idx = state * 2
			} else {
				best_idx = state*2 + 1
			}
		}
	}
	return out, true
}

const path_cost_unreachable = float32(1e9)

func best_previous(costs [][2 * conv_states]float32, step int, state byte) float32 {
	if step == 0 {
		if state == 0 {
			return 0
		}
		return path_cost_unreachable
	}
	var prev1 = costs[step-1][state*2]
	var prev2 = costs[step-1][state*2+1]
	if prev1 < prev2 {
		return prev1
	}
	return prev2
}

func soft_distance(soft float32, expected byte) float32 {
	var d = soft - float32(expected)
	if d < 0 {
		return -d
	}
	return d
}

package m17

/*-------------------------------------------------------------
 *
 * Purpose:	Bit interleaver and randomizer applied to the 368
 *		payload bits of every frame between FEC and the air.
 *
 *		The interleaver spreads burst errors across the
 *		convolutional decoder's span using the quadratic
 *		permutation pi(x) = (45x + 92x^2) mod 368. This
 *		permutation is its own inverse, so the same routine
 *		serves both directions.
 *
 *		The randomizer breaks up long runs of identical
 *		symbols by XORing a fixed 46-byte sequence.
 *
 * Reference:	M17 specification, "Interleaving" and
 *		"Randomizer" sections.
 *
 *--------------------------------------------------------------*/

const type3_bits = 368
const type3_bytes = 46

var randomizer_seq = [type3_bytes]byte{
	0xD6, 0xB5, 0xE2, 0x30, 0x82, 0xFF, 0x84, 0x62, 0xBA, 0x4E,
	0x96, 0x90, 0xD8, 0x98, 0xDD, 0x5D, 0x0C, 0xC8, 0x52, 0x43,
	0x91, 0x1D, 0xF8, 0x6E, 0x68, 0x2F, 0x35, 0xDA, 0x14, 0xEA,
	0xCD, 0x76, 0x19, 0x8D, 0xD5, 0x80, 0xD1, 0x33, 0x87, 0x13,
	0x57, 0x18, 0x2D, 0x29, 0x78, 0xC3,
}

func interleave_index(pos int) int {
	return (45*pos + 92*pos*pos) % type3_bits
}

func interleave_bytes(data []byte) [type3_bytes]byte {
	var out [type3_bytes]byte
	for i := 0; i < type3_bits; i++ {
		set_bit(out[:], interleave_index(i), get_bit(data, i))
	}
	return out
}

func randomize_bytes(data []byte) {
	for i := range data {
		data[i] ^= randomizer_seq[i]
	}
}

// derandomize_soft undoes the randomizer in the soft domain: an XOR with a
// one bit maps a probability p to 1-p.
func derandomize_soft(soft *[type3_bits]float32) {
	for i := range soft {
		if get_bit(randomizer_seq[:], i) > 0 {
			soft[i] = 1.0 - soft[i]
		}
	}
}

func deinterleave_soft(soft *[type3_bits]float32) [type3_bits]float32 {
	var out [type3_bits]float32
	for i := 0; i < type3_bits; i++ {
		out[i] = soft[interleave_index(i)]
	}
	return out
}

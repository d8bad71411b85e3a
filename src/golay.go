package m17

import "math/bits"

/*-------------------------------------------------------------
 *
 * Purpose:	Extended Golay (24,12) code protecting the LICH.
 *
 *		Construction: the perfect (23,12) Golay code with
 *		generator polynomial 0xC75 occupies bits 23 down to
 *		1 of each codeword, and bit 0 carries overall parity.
 *		Minimum distance 8: any pattern of up to three bit
 *		errors is corrected, any four bit pattern is detected
 *		and rejected.
 *
 *		Because the 23 bit code is perfect, every 11 bit
 *		syndrome corresponds to exactly one error pattern of
 *		weight three or less, so the decode table has no
 *		gaps: C(23,0)+C(23,1)+C(23,2)+C(23,3) = 2048.
 *
 *--------------------------------------------------------------*/

const golay_generator = 0xC75

// golay_errors maps each 11 bit syndrome of the inner (23,12) code to
// the unique error pattern of weight <= 3 producing it.
var golay_errors [2048]uint32

func init() {
	for a := 0; a < 23; a++ {
		var ea = uint32(1) << a
		golay_errors[golay_syndrome(ea)] = ea
		for b := a + 1; b < 23; b++ {
			var eb = ea | uint32(1)<<b
			golay_errors[golay_syndrome(eb)] = eb
			for c := b + 1; c < 23; c++ {
				var ec = eb | uint32(1)<<c
				golay_errors[golay_syndrome(ec)] = ec
			}
		}
	}
}

// golay_syndrome reduces a 23 bit word by the generator polynomial,
// leaving the 11 bit syndrome.
func golay_syndrome(w uint32) uint32 {
	for i := 22; i >= 11; i-- {
		if w&(1<<i) != 0 {
			w ^= golay_generator << (i - 11)
		}
	}
	return w
}

// golay_encode expands 12 data bits into a 24 bit codeword: data in the
// top half, 11 check bits below, overall parity in bit 0.
func golay_encode(data uint32) uint32 {
	var w = (data & 0xfff) << 11
	var cw = w<<1 | golay_syndrome(w)<<1
	return cw | uint32(bits.OnesCount32(cw)&1)
}

/*-------------------------------------------------------------
 *
 * Name:	golay_decode
 *
 * Purpose:	Recover 12 data bits from a possibly corrupted
 *		24 bit codeword.
 *
 * Inputs:	cw	- Received codeword.
 *
 * Returns:	Data bits and true when at most three bits were in
 *		error; false when the word is beyond correction.
 *
 *--------------------------------------------------------------*/

func golay_decode(cw uint32) (uint32, bool) {
	var w = (cw >> 1) & 0x7fffff
	var e = golay_errors[golay_syndrome(w)]
	var data = ((w ^ e) >> 11) & 0xfff
	if bits.OnesCount32(cw^golay_encode(data)) <= 3 {
		return data, true
	}
	return 0, false
}

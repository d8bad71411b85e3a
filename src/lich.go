package m17

/*-------------------------------------------------------------
 *
 * Purpose:	Link Information Channel coding.
 *
 *		Each stream frame carries one sixth of the LSF (5
 *		bytes) plus a 3 bit counter saying which sixth. The
 *		48 bits are split into four 12 bit words, each Golay
 *		(24,12) encoded, giving the 12 byte LICH block that
 *		leads every stream frame. A receiver that joins mid
 *		stream collects the six distinct segments to rebuild
 *		the LSF without having heard it.
 *
 *--------------------------------------------------------------*/

/*-------------------------------------------------------------
 *
 * Name:	encode_lich
 *
 * Purpose:	Golay-protect one LSF segment and its counter.
 *
 * Inputs:	counter		- Segment number, 0 to 5.
 *		part		- 5 byte LSF fragment.
 *
 * Returns:	12 byte coded LICH block.
 *
 *--------------------------------------------------------------*/

func encode_lich(counter uint8, part [5]byte) [12]byte {
	var words = [4]uint32{
		uint32(part[0])<<4 | uint32(part[1])>>4,
		uint32(part[1]&0x0f)<<8 | uint32(part[2]),
		uint32(part[3])<<4 | uint32(part[4])>>4,
		uint32(part[4]&0x0f)<<8 | uint32(counter)<<5,
	}
	var out [12]byte
	for i, w := range words {
		var cw = golay_encode(w)
		out[i*3] = byte(cw >> 16)
		out[i*3+1] = byte(cw >> 8)
		out[i*3+2] = byte(cw)
	}
	return out
}

// decode_lich recovers the counter and LSF fragment from a received
// LICH block, correcting up to three bit errors per 24 bit word. It
// returns ok=false when any word is too damaged to correct.
func decode_lich(block []byte) (counter uint8, part [5]byte, ok bool) {
	var words [4]uint32
	for i := range words {
		var cw = uint32(block[i*3])<<16 | uint32(block[i*3+1])<<8 | uint32(block[i*3+2])
		var w, word_ok = golay_decode(cw)
		if !word_ok {
			return 0, part, false
		}
		words[i] = w
	}
	part[0] = byte(words[0] >> 4)
	part[1] = byte(words[0]&0x0f)<<4 | byte(words[1]>>8)
	part[2] = byte(words[1])
	part[3] = byte(words[2] >> 4)
	part[4] = byte(words[2]&0x0f)<<4 | byte(words[3]>>8)
	counter = uint8(words[3]>>5) & 0x07
	return counter, part, true
}

// LichCollection accumulates LSF segments observed across stream frames.
type LichCollection [6]*[5]byte

func (c *LichCollection) ValidSegments() int {
	var n = 0
	for _, s := range c {
		if s != nil {
			n++
		}
	}
	return n
}

func (c *LichCollection) SetSegment(counter uint8, part [5]byte) {
	if counter > 5 {
		return
	}
	c[counter] = &part
}

// TryAssemble returns the full 30 byte LSF once all six segments have
// been collected, or nil while any is still missing. The caller must
// still verify the CRC before trusting the result.
func (c *LichCollection) TryAssemble() []byte {
	var out = make([]byte, 30)
	for i, segment := range c {
		if segment == nil {
			return nil
		}
		copy(out[i*5:], segment[:])
	}
	return out
}

func (c *LichCollection) Reset() {
	for i := range c {
		c[i] = nil
	}
}

package m17

/*-------------------------------------------------------------
 *
 * Purpose:	Bit-level access to byte buffers.
 *
 *		All frame layouts in the protocol are defined MSB first:
 *		bit index 0 is the most significant bit of byte 0.
 *
 *--------------------------------------------------------------*/

func get_bit(data []byte, idx int) byte {
	return (data[idx/8] >> (7 - idx%8)) & 1
}

func set_bit(data []byte, idx int, value byte) {
	var mask = byte(1) << (7 - idx%8)
	if value > 0 {
		data[idx/8] |= mask
	} else {
		data[idx/8] &= ^mask
	}
}

// hard_bytes collapses soft bit estimates into bytes, MSB first.
// A soft bit is the estimated probability that the bit is a one.
func hard_bytes(soft []float32) []byte {
	var out = make([]byte, (len(soft)+7)/8)
	for i, s := range soft {
		if s > 0.5 {
			set_bit(out, i, 1)
		}
	}
	return out
}

package m17

/*-------------------------------------------------------------
 *
 * Purpose:	Turn frames into symbol bursts ready for modulation.
 *
 *		Every burst is 192 symbols: an 8 symbol sync pattern
 *		followed by 368 payload bits carried as 184 four
 *		level symbols. The payload bits are the frame's Type
 *		3 form, interleaved and randomized.
 *
 *		Symbol values here are normalized to the nominal
 *		deviation: +1, +1/3, -1/3, -1 correspond to the
 *		dibits 01, 00, 10, 11.
 *
 *--------------------------------------------------------------*/

const frame_symbols = 192

func encode_lsf(frame *LsfFrame) [frame_symbols]float32 {
	var type3 = fec_encode(frame[:], 240, p_1)
	return symbols_for_burst(type3, lsf_sync_symbols)
}

func encode_stream(frame *StreamFrame) [frame_symbols]float32 {
	var lich = encode_lich(frame.LichIdx, frame.LichPart)
	var type1 [18]byte
	var frame_number = frame.FrameNumber
	if frame.EndOfStream {
		frame_number |= 0x8000
	}
	type1[0] = byte(frame_number >> 8)
	type1[1] = byte(frame_number)
	copy(type1[2:18], frame.StreamData[:])
	var type3 = fec_encode(type1[:], 144, p_2)
	var combined [type3_bytes]byte
	copy(combined[0:12], lich[:])
	copy(combined[12:46], type3[0:34])
	return symbols_for_burst(combined, stream_sync_symbols)
}

func encode_packet(frame *PacketFrame) [frame_symbols]float32 {
	var type1 = frame.type1_bytes()
	var type3 = fec_encode(type1[:], 206, p_3)
	return symbols_for_burst(type3, packet_sync_symbols)
}

// generate_preamble produces the alternating +1/-1 burst sent ahead of
// an LSF so receivers can settle gain and timing.
func generate_preamble() [frame_symbols]float32 {
	var out [frame_symbols]float32
	for i := range out {
		if i%2 == 0 {
			out[i] = 1.0
		} else {
			out[i] = -1.0
		}
	}
	return out
}

// generate_end_of_transmission produces the burst of repeated EOT
// markers that closes every transmission.
func generate_end_of_transmission() [frame_symbols]float32 {
	var out [frame_symbols]float32
	for i := range out {
		if i%8 == 6 {
			out[i] = -1.0
		} else {
			out[i] = 1.0
		}
	}
	return out
}

func symbols_for_burst(combined [type3_bytes]byte, sync [8]float32) [frame_symbols]float32 {
	var interleaved = interleave_bytes(combined[:])
	randomize_bytes(interleaved[:])
	var out [frame_symbols]float32
	copy(out[0:8], sync[:])
	for i := 0; i < type3_bits/2; i++ {
		var first = get_bit(interleaved[:], i*2)
		var second = get_bit(interleaved[:], i*2+1)
		switch {
		case first == 0 && second == 1:
			out[8+i] = 1.0
		case first == 0:
			out[8+i] = 1.0 / 3.0
		case second == 0:
			out[8+i] = -1.0 / 3.0
		default:
			out[8+i] = -1.0
		}
	}
	return out
}

package m17

/*-------------------------------------------------------------
 *
 * Purpose:	CRC-16 used by every frame type in the protocol.
 *
 *		Polynomial 0x5935, initial value 0xFFFF, no bit
 *		reflection, no final XOR. A buffer with its CRC
 *		appended big-endian checks to zero.
 *
 * Reference:	M17 specification, "CRC" appendix.
 *
 *--------------------------------------------------------------*/

const crc_poly = 0x5935

// Crc computes the protocol checksum over data. Append it big-endian
// and the extended buffer checks to zero.
func Crc(data []byte) uint16 {
	return m17_crc(data)
}

func m17_crc(data []byte) uint16 {
	var crc uint16 = 0xFFFF
	for _, b := range data {
		crc ^= uint16(b) << 8
		for bit := 0; bit < 8; bit++ {
			if crc&0x8000 > 0 {
				crc = (crc << 1) ^ crc_poly
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

package crc

// CCITT folds one byte into a running CRC16-CCITT (polynomial 0x1021,
// MSB first, no reflection, no final xor).
//
// This is the bitwise form used by SUMD receivers. The initial value is
// chosen by the caller; SUMD starts from 0.
func CCITT(crc uint16, b byte) uint16 {
	crc ^= uint16(b) << 8
	for i := 0; i < 8; i++ {
		if crc&0x8000 != 0 {
			crc = (crc << 1) ^ 0x1021
		} else {
			crc <<= 1
		}
	}
	return crc
}

// CCITTUpdate threads crc through every byte of data.
func CCITTUpdate(crc uint16, data []byte) uint16 {
	for _, b := range data {
		crc = CCITT(crc, b)
	}
	return crc
}

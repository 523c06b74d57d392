package lha

// CRC-16/ARC, the checksum LHA records for each member's decompressed data.

var crcTable [256]uint16

func init() {
	for i := range crcTable {
		c := uint16(i)
		for j := 0; j < 8; j++ {
			if c&1 != 0 {
				c = (c >> 1) ^ 0xA001
			} else {
				c >>= 1
			}
		}
		crcTable[i] = c
	}
}

func crc16(data []byte) uint16 {
	var c uint16
	for _, b := range data {
		c = (c >> 8) ^ crcTable[byte(c)^b]
	}
	return c
}

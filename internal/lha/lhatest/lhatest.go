// Package lhatest builds minimal stored (-lh0-) LHA archives for tests.
// It shares no code with the reader so fixtures stay independent of the
// implementation under test.
package lhatest

import (
	"bytes"
	"encoding/binary"
	"os"
)

// Member is one file to place in a generated archive.
type Member struct {
	Name string
	Data []byte
}

// crc16 implements CRC-16/ARC.
func crc16(data []byte) uint16 {
	var c uint16
	for _, b := range data {
		c ^= uint16(b)
		for i := 0; i < 8; i++ {
			if c&1 != 0 {
				c = (c >> 1) ^ 0xA001
			} else {
				c >>= 1
			}
		}
	}
	return c
}

// Archive renders members as a level-0 stored archive.
func Archive(members ...Member) []byte {
	var out bytes.Buffer
	for _, m := range members {
		size := 22 + len(m.Name)
		buf := make([]byte, size+2)
		buf[0] = byte(size)
		copy(buf[2:7], "-lh0-")
		binary.LittleEndian.PutUint32(buf[7:11], uint32(len(m.Data)))
		binary.LittleEndian.PutUint32(buf[11:15], uint32(len(m.Data)))
		binary.LittleEndian.PutUint32(buf[15:19], 0x58210000)
		buf[19] = 0x20
		buf[21] = byte(len(m.Name))
		copy(buf[22:], m.Name)
		binary.LittleEndian.PutUint16(buf[22+len(m.Name):], crc16(m.Data))
		var sum byte
		for _, v := range buf[2:] {
			sum += v
		}
		buf[1] = sum
		out.Write(buf)
		out.Write(m.Data)
	}
	out.WriteByte(0)
	return out.Bytes()
}

// Write renders members to an archive file at path.
func Write(path string, members ...Member) error {
	return os.WriteFile(path, Archive(members...), 0o644)
}

package lha

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"
	"time"
)

// header is one member record as stored in the archive. Levels 0, 1 and 2 are
// supported; level 1 and 2 carry the filename in extended headers when present.
type header struct {
	method     string // "-lh0-", "-lh5-", ...
	packedSize int64
	origSize   int64
	modified   time.Time
	name       string
	crc        uint16
	dataOffset int64
}

const (
	extCommon   = 0x00
	extFilename = 0x01
	extDirname  = 0x02
)

// readHeader parses the member header starting at the current offset. A nil
// header with nil error marks the end-of-archive terminator (a zero byte).
func readHeader(r io.ReaderAt, off int64) (*header, int64, error) {
	var first [21]byte
	if n, err := r.ReadAt(first[:], off); err != nil && n < 1 {
		if err == io.EOF {
			return nil, off, nil
		}
		return nil, off, err
	} else if n >= 1 && first[0] == 0 {
		return nil, off, nil
	} else if n < 21 {
		return nil, off, fmt.Errorf("truncated header at offset %d", off)
	}

	level := first[20]
	switch level {
	case 0, 1:
		return readHeader01(r, off, first, level)
	case 2:
		return readHeader2(r, off)
	default:
		return nil, off, fmt.Errorf("unsupported header level %d at offset %d", level, off)
	}
}

func readHeader01(r io.ReaderAt, off int64, first [21]byte, level byte) (*header, int64, error) {
	size := int(first[0])
	if size < 22 {
		return nil, off, fmt.Errorf("header too short (%d bytes) at offset %d", size, off)
	}
	buf := make([]byte, size+2)
	if _, err := r.ReadAt(buf, off); err != nil {
		return nil, off, fmt.Errorf("read header at offset %d: %w", off, err)
	}
	if sum := byteSum(buf[2:]); sum != buf[1] {
		return nil, off, fmt.Errorf("header checksum mismatch at offset %d", off)
	}

	h := &header{
		method:     string(buf[2:7]),
		packedSize: int64(binary.LittleEndian.Uint32(buf[7:11])),
		origSize:   int64(binary.LittleEndian.Uint32(buf[11:15])),
		modified:   dosTime(binary.LittleEndian.Uint32(buf[15:19])),
	}

	nameLen := int(buf[21])
	if 22+nameLen+2 > len(buf) {
		return nil, off, fmt.Errorf("bad name length at offset %d", off)
	}
	h.name = normalizeName(string(buf[22 : 22+nameLen]))
	h.crc = binary.LittleEndian.Uint16(buf[22+nameLen : 22+nameLen+2])

	dataOff := off + int64(size) + 2
	dataSize := h.packedSize

	if level == 1 {
		// Level 1 appends a chain of extended headers; packedSize counts them.
		extOff := dataOff
		var extTotal int64
		var nextSize uint16
		// The last two bytes of the base header hold the first extension size.
		nextSize = binary.LittleEndian.Uint16(buf[size : size+2])
		for nextSize != 0 {
			ext := make([]byte, nextSize)
			if _, err := r.ReadAt(ext, extOff); err != nil {
				return nil, off, fmt.Errorf("read extended header: %w", err)
			}
			applyExtension(h, ext[:nextSize-2])
			extTotal += int64(nextSize)
			extOff += int64(nextSize)
			nextSize = binary.LittleEndian.Uint16(ext[nextSize-2:])
		}
		dataOff = extOff
		dataSize -= extTotal
		if dataSize < 0 {
			return nil, off, fmt.Errorf("extended headers exceed packed size at offset %d", off)
		}
	}

	h.packedSize = dataSize
	h.dataOffset = dataOff
	return h, dataOff + dataSize, nil
}

func readHeader2(r io.ReaderAt, off int64) (*header, int64, error) {
	var fixed [26]byte
	if _, err := r.ReadAt(fixed[:], off); err != nil {
		return nil, off, fmt.Errorf("read header at offset %d: %w", off, err)
	}
	totalSize := int64(binary.LittleEndian.Uint16(fixed[0:2]))
	if totalSize < 26 {
		return nil, off, fmt.Errorf("header too short (%d bytes) at offset %d", totalSize, off)
	}

	h := &header{
		method:     string(fixed[2:7]),
		packedSize: int64(binary.LittleEndian.Uint32(fixed[7:11])),
		origSize:   int64(binary.LittleEndian.Uint32(fixed[11:15])),
		modified:   time.Unix(int64(binary.LittleEndian.Uint32(fixed[15:19])), 0),
		crc:        binary.LittleEndian.Uint16(fixed[21:23]),
	}

	extOff := off + 26
	nextSize := binary.LittleEndian.Uint16(fixed[24:26])
	for nextSize != 0 {
		if nextSize < 3 {
			return nil, off, fmt.Errorf("bad extended header size %d at offset %d", nextSize, extOff)
		}
		ext := make([]byte, nextSize)
		if _, err := r.ReadAt(ext, extOff); err != nil {
			return nil, off, fmt.Errorf("read extended header: %w", err)
		}
		applyExtension(h, ext[:nextSize-2])
		extOff += int64(nextSize)
		nextSize = binary.LittleEndian.Uint16(ext[nextSize-2:])
	}
	if extOff > off+totalSize {
		return nil, off, fmt.Errorf("extended headers exceed header size at offset %d", off)
	}

	h.dataOffset = off + totalSize
	return h, h.dataOffset + h.packedSize, nil
}

// applyExtension merges one extended header (type byte + payload, trailing
// next-size already stripped) into h.
func applyExtension(h *header, ext []byte) {
	if len(ext) == 0 {
		return
	}
	switch ext[0] {
	case extFilename:
		h.name = normalizeName(joinPath(h.dirFromName(), string(ext[1:])))
	case extDirname:
		dir := strings.ReplaceAll(string(ext[1:]), "\xff", "/")
		h.name = normalizeName(joinPath(dir, h.baseFromName()))
	}
}

func (h *header) dirFromName() string {
	if i := strings.LastIndexByte(h.name, '/'); i >= 0 {
		return h.name[:i]
	}
	return ""
}

func (h *header) baseFromName() string {
	if i := strings.LastIndexByte(h.name, '/'); i >= 0 {
		return h.name[i+1:]
	}
	return h.name
}

func joinPath(dir, base string) string {
	dir = strings.TrimSuffix(dir, "/")
	if dir == "" {
		return base
	}
	if base == "" {
		return dir
	}
	return dir + "/" + base
}

// normalizeName maps stored separators to forward slashes, matching how the
// rest of the pipeline addresses members.
func normalizeName(name string) string {
	return strings.ReplaceAll(name, "\\", "/")
}

func byteSum(b []byte) byte {
	var s byte
	for _, v := range b {
		s += v
	}
	return s
}

// dosTime decodes an MS-DOS packed date/time longword.
func dosTime(v uint32) time.Time {
	sec := int(v&0x1f) * 2
	min := int(v>>5) & 0x3f
	hour := int(v>>11) & 0x1f
	day := int(v>>16) & 0x1f
	month := time.Month(int(v>>21) & 0x0f)
	year := 1980 + int(v>>25)
	if day == 0 || month == 0 {
		return time.Time{}
	}
	return time.Date(year, month, day, hour, min, sec, 0, time.Local)
}

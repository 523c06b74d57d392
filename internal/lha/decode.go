package lha

import (
	"fmt"
	"io"
)

// Decoder for the -lh4- .. -lh7- methods: LZSS over a sliding dictionary with
// per-block dynamic Huffman coding of literals/lengths and match offsets.
// Layout follows the classic LHa for UNIX stream format.

const (
	threshold = 3   // minimum match length
	maxMatch  = 256 // maximum match length
	nc        = 255 + maxMatch + 2 - threshold
	nt        = 19 // size of the code-length alphabet
	cbit      = 9  // bits to transmit a literal-alphabet count
	tbit      = 5  // bits to transmit a code-length-alphabet count
)

var methodDictBits = map[string]uint{
	"-lh4-": 12,
	"-lh5-": 13,
	"-lh6-": 15,
	"-lh7-": 16,
}

type bitReader struct {
	r   io.Reader
	buf []byte
	pos int
	bit uint // bits consumed from buf[pos], MSB first
	eof bool
}

func newBitReader(r io.Reader) *bitReader {
	return &bitReader{r: r, buf: make([]byte, 0, 4096)}
}

// readBits returns n bits MSB-first. Past end of stream it pads with zeros,
// which matches the reference decoder's behavior on the final block.
func (br *bitReader) readBits(n uint) uint {
	var v uint
	for i := uint(0); i < n; i++ {
		v = v<<1 | br.readBit()
	}
	return v
}

func (br *bitReader) readBit() uint {
	if br.pos >= len(br.buf) {
		if br.eof {
			return 0
		}
		br.fill()
		if br.pos >= len(br.buf) {
			return 0
		}
	}
	b := (br.buf[br.pos] >> (7 - br.bit)) & 1
	br.bit++
	if br.bit == 8 {
		br.bit = 0
		br.pos++
	}
	return uint(b)
}

func (br *bitReader) fill() {
	chunk := make([]byte, 4096)
	n, err := br.r.Read(chunk)
	if n > 0 {
		br.buf = append(br.buf[br.pos:], chunk[:n]...)
		br.pos = 0
	}
	if err != nil || n == 0 {
		br.eof = true
	}
}

// huffTree is a canonical Huffman decoder over code lengths up to 16 bits.
// A tree with a single forced symbol decodes it without consuming bits.
type huffTree struct {
	count  [17]int
	first  [17]uint
	offset [17]int
	syms    []int
	fixed   int // forced symbol when fixedOK
	fixedOK bool
}

func newFixedTree(sym int) *huffTree {
	return &huffTree{fixed: sym, fixedOK: true}
}

func newHuffTree(lens []byte) (*huffTree, error) {
	t := &huffTree{}
	for _, l := range lens {
		if l == 0 {
			continue
		}
		if l > 16 {
			return nil, fmt.Errorf("code length %d out of range", l)
		}
		t.count[l]++
	}
	// canonical codes: symbols in ascending order within each length
	for l := 1; l <= 16; l++ {
		for sym, sl := range lens {
			if int(sl) == l {
				t.syms = append(t.syms, sym)
			}
		}
	}
	var code uint
	idx := 0
	for l := 1; l <= 16; l++ {
		code <<= 1
		t.first[l] = code
		t.offset[l] = idx
		code += uint(t.count[l])
		idx += t.count[l]
	}
	if len(t.syms) == 1 {
		t.fixed = t.syms[0]
		t.fixedOK = true
	}
	return t, nil
}

func (t *huffTree) decode(br *bitReader) (int, error) {
	if t.fixedOK {
		return t.fixed, nil
	}
	var code uint
	for l := 1; l <= 16; l++ {
		code = code<<1 | br.readBit()
		if d := int(code) - int(t.first[l]); d >= 0 && d < t.count[l] {
			return t.syms[t.offset[l]+d], nil
		}
	}
	return 0, fmt.Errorf("invalid huffman code")
}

type lzhDecoder struct {
	br        *bitReader
	np        uint // offset alphabet size
	pbit      uint
	blockSize int
	cTree     *huffTree
	pTree     *huffTree
}

func newLZHDecoder(r io.Reader, method string) (*lzhDecoder, error) {
	dictBits, ok := methodDictBits[method]
	if !ok {
		return nil, fmt.Errorf("unsupported compression method %q", method)
	}
	d := &lzhDecoder{br: newBitReader(r), np: dictBits + 1, pbit: 4}
	if dictBits >= 15 {
		d.pbit = 5
	}
	return d, nil
}

// readTempTree reads the code-length-code table. special marks the index that
// is followed by a 2-bit zero-run count (3 for the literal path, -1 for none).
func (d *lzhDecoder) readTempTree(n int, nbit uint, special int) (*huffTree, error) {
	count := int(d.br.readBits(nbit))
	if count == 0 {
		return newFixedTree(int(d.br.readBits(nbit))), nil
	}
	if count > n {
		return nil, fmt.Errorf("table size %d exceeds alphabet %d", count, n)
	}
	lens := make([]byte, n)
	i := 0
	for i < count {
		c := d.br.readBits(3)
		if c == 7 {
			for d.br.readBit() == 1 {
				c++
				if c > 16 {
					return nil, fmt.Errorf("code length overflow")
				}
			}
		}
		lens[i] = byte(c)
		i++
		if i == special {
			skip := int(d.br.readBits(2))
			for skip > 0 && i < count {
				lens[i] = 0
				i++
				skip--
			}
		}
	}
	return newHuffTree(lens)
}

func (d *lzhDecoder) readLiteralTree(tmp *huffTree) (*huffTree, error) {
	count := int(d.br.readBits(cbit))
	if count == 0 {
		return newFixedTree(int(d.br.readBits(cbit))), nil
	}
	if count > nc {
		return nil, fmt.Errorf("literal table size %d exceeds alphabet", count)
	}
	lens := make([]byte, nc)
	i := 0
	for i < count {
		c, err := tmp.decode(d.br)
		if err != nil {
			return nil, err
		}
		switch {
		case c == 0:
			i++
		case c == 1:
			run := int(d.br.readBits(4)) + 3
			for run > 0 && i < count {
				i++
				run--
			}
		case c == 2:
			run := int(d.br.readBits(9)) + 20
			for run > 0 && i < count {
				i++
				run--
			}
		default:
			lens[i] = byte(c - 2)
			i++
		}
	}
	return newHuffTree(lens)
}

func (d *lzhDecoder) readBlockHeader() error {
	d.blockSize = int(d.br.readBits(16))
	tmp, err := d.readTempTree(nt, tbit, 3)
	if err != nil {
		return err
	}
	if d.cTree, err = d.readLiteralTree(tmp); err != nil {
		return err
	}
	if d.pTree, err = d.readTempTree(int(d.np), d.pbit, -1); err != nil {
		return err
	}
	return nil
}

func (d *lzhDecoder) decodeOffset() (int, error) {
	w, err := d.pTree.decode(d.br)
	if err != nil {
		return 0, err
	}
	if w == 0 {
		return 0, nil
	}
	return (1 << (w - 1)) + int(d.br.readBits(uint(w-1))), nil
}

// decompress inflates origSize bytes of member data.
func (d *lzhDecoder) decompress(origSize int64) ([]byte, error) {
	out := make([]byte, 0, origSize)
	for int64(len(out)) < origSize {
		if d.blockSize == 0 {
			if err := d.readBlockHeader(); err != nil {
				return nil, err
			}
			if d.blockSize == 0 {
				return nil, fmt.Errorf("empty block before end of member")
			}
		}
		d.blockSize--
		c, err := d.cTree.decode(d.br)
		if err != nil {
			return nil, err
		}
		if c < 256 {
			out = append(out, byte(c))
			continue
		}
		length := c - 256 + threshold
		off, err := d.decodeOffset()
		if err != nil {
			return nil, err
		}
		pos := len(out) - off - 1
		if pos < 0 {
			return nil, fmt.Errorf("match offset %d before start of output", off)
		}
		for j := 0; j < length && int64(len(out)) < origSize; j++ {
			out = append(out, out[pos+j])
		}
	}
	return out, nil
}

// Package hdf writes Amiga Fast File System (FFS, DOS\1) hard disk
// images. An image is a plain partition dump: boot block, root block at
// the middle of the disk, a bitmap chain, and header blocks for every
// directory and file. Emulators mount these directly as .hdf files.
package hdf

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// BlockSize is the FFS block size. All images use 512-byte blocks.
const BlockSize = 512

const (
	typeHeader = 2
	typeList   = 16

	secRoot    = 1
	secUserDir = 2
	secFile    = 0xFFFFFFFD // -3

	hashTableSize = 72
	maxNameLen    = 30

	// bits covered by one bitmap block: 127 data longs of 32 bits
	bitsPerBitmapBlock = (BlockSize/4 - 1) * 32
	bitmapPagesInRoot  = 25
	bitmapPtrsPerExt   = BlockSize/4 - 1
)

// ErrDiskFull is returned when the image has no free blocks left.
var ErrDiskFull = errors.New("hdf: disk full")

var amigaEpoch = time.Date(1978, 1, 1, 0, 0, 0, 0, time.UTC)

// dir is an in-memory directory header. Directory blocks are written at
// Close time because their hash tables keep changing while entries are
// added.
type dir struct {
	block    uint32
	parent   uint32
	name     string
	ht       [hashTableSize]uint32
	nextHash uint32
	mod      time.Time
	children map[string]*dir // keyed by uppercased name
	entries  map[string]bool // all names, uppercased, for duplicate checks
}

func newDir(block, parent uint32, name string, mod time.Time) *dir {
	return &dir{
		block:    block,
		parent:   parent,
		name:     name,
		mod:      mod,
		children: make(map[string]*dir),
		entries:  make(map[string]bool),
	}
}

// Writer assembles one FFS image. File data is written as it arrives;
// directory headers, the bitmap, the root block, and the boot block are
// written on Close.
type Writer struct {
	f       *os.File
	volume  string
	nblocks uint32
	rootBlk uint32
	used    []bool
	next    uint32 // allocation cursor
	root    *dir
	dirs    []*dir
	closed  bool
}

// Create starts a new image at path with the given volume name and size.
func Create(path, volume string, sizeMB int) (*Writer, error) {
	if sizeMB < 1 {
		return nil, fmt.Errorf("hdf: size %dMB too small", sizeMB)
	}
	if err := checkName(volume); err != nil {
		return nil, err
	}

	nblocks := uint32(sizeMB) * (1024 * 1024 / BlockSize)
	rootBlk := nblocks / 2

	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	if err := f.Truncate(int64(nblocks) * BlockSize); err != nil {
		f.Close()
		return nil, err
	}

	w := &Writer{
		f:       f,
		volume:  volume,
		nblocks: nblocks,
		rootBlk: rootBlk,
		used:    make([]bool, nblocks),
		next:    rootBlk + 1,
	}
	w.used[0] = true // boot block
	w.used[1] = true
	w.used[rootBlk] = true
	w.root = newDir(rootBlk, 0, volume, time.Now())
	return w, nil
}

// alloc hands out the next free block, scanning upward from the root and
// wrapping past the end of the disk.
func (w *Writer) alloc() (uint32, error) {
	for i := uint32(0); i < w.nblocks; i++ {
		b := w.next
		w.next++
		if w.next >= w.nblocks {
			w.next = 2
		}
		if !w.used[b] {
			w.used[b] = true
			return b, nil
		}
	}
	return 0, ErrDiskFull
}

func (w *Writer) writeBlock(buf []byte, block uint32) error {
	_, err := w.f.WriteAt(buf, int64(block)*BlockSize)
	return err
}

// MkDir creates a directory (and any missing parents) at the slash-
// separated path relative to the volume root.
func (w *Writer) MkDir(path string) error {
	_, err := w.mkdirAll(path)
	return err
}

func (w *Writer) mkdirAll(path string) (*dir, error) {
	d := w.root
	for _, part := range splitPath(path) {
		key := upperName(part)
		if child, ok := d.children[key]; ok {
			d = child
			continue
		}
		if d.entries[key] {
			return nil, fmt.Errorf("hdf: %s exists and is not a directory", part)
		}
		if err := checkName(part); err != nil {
			return nil, err
		}
		block, err := w.alloc()
		if err != nil {
			return nil, err
		}
		child := newDir(block, d.block, part, time.Now())
		h := nameHash(part)
		child.nextHash = d.ht[h]
		d.ht[h] = block
		d.children[key] = child
		d.entries[key] = true
		w.dirs = append(w.dirs, child)
		d = child
	}
	return d, nil
}

// WriteFile stores the contents of r as a file at the slash-separated
// path, creating parent directories as needed.
func (w *Writer) WriteFile(path string, r io.Reader, mod time.Time) error {
	parts := splitPath(path)
	if len(parts) == 0 {
		return fmt.Errorf("hdf: empty file path")
	}
	name := parts[len(parts)-1]
	if err := checkName(name); err != nil {
		return err
	}
	d, err := w.mkdirAll(strings.Join(parts[:len(parts)-1], "/"))
	if err != nil {
		return err
	}
	key := upperName(name)
	if d.entries[key] {
		return fmt.Errorf("hdf: duplicate entry %s", path)
	}

	// stream the data out block by block
	var blocks []uint32
	var size uint64
	buf := make([]byte, BlockSize)
	for {
		n, rerr := io.ReadFull(r, buf)
		if n > 0 {
			for i := n; i < BlockSize; i++ {
				buf[i] = 0
			}
			block, aerr := w.alloc()
			if aerr != nil {
				return aerr
			}
			if err := w.writeBlock(buf, block); err != nil {
				return err
			}
			blocks = append(blocks, block)
			size += uint64(n)
		}
		if rerr == io.EOF || rerr == io.ErrUnexpectedEOF {
			break
		}
		if rerr != nil {
			return rerr
		}
	}

	headerBlk, err := w.alloc()
	if err != nil {
		return err
	}

	// header blocks past the first 72 pointers form an extension chain
	var extBlocks []uint32
	for rest := len(blocks); rest > hashTableSize; rest -= hashTableSize {
		b, err := w.alloc()
		if err != nil {
			return err
		}
		extBlocks = append(extBlocks, b)
	}

	h := nameHash(name)
	if err := w.writeFileHeader(headerBlk, d.block, d.ht[h], name, size, mod, blocks, extBlocks); err != nil {
		return err
	}
	d.ht[h] = headerBlk
	d.entries[key] = true
	return nil
}

func (w *Writer) writeFileHeader(block, parent, nextHash uint32, name string, size uint64, mod time.Time, blocks, ext []uint32) error {
	buf := make([]byte, BlockSize)
	put32(buf, 0, typeHeader)
	put32(buf, 4, block)
	n := len(blocks)
	if n > hashTableSize {
		n = hashTableSize
	}
	put32(buf, 8, uint32(n))
	if len(blocks) > 0 {
		put32(buf, 16, blocks[0])
	}
	// data pointers fill the table backwards: last slot holds the first block
	for i := 0; i < n; i++ {
		put32(buf, 24+(hashTableSize-1-i)*4, blocks[i])
	}
	put32(buf, BlockSize-188, uint32(size))
	putDate(buf, BlockSize-92, mod)
	putName(buf, BlockSize-80, name)
	put32(buf, BlockSize-16, nextHash)
	put32(buf, BlockSize-12, parent)
	if len(ext) > 0 {
		put32(buf, BlockSize-8, ext[0])
	}
	put32(buf, BlockSize-4, secFile)
	putChecksum(buf, 20)
	if err := w.writeBlock(buf, block); err != nil {
		return err
	}

	rest := blocks[n:]
	for i, extBlk := range ext {
		for j := range buf {
			buf[j] = 0
		}
		put32(buf, 0, typeList)
		put32(buf, 4, extBlk)
		cnt := len(rest)
		if cnt > hashTableSize {
			cnt = hashTableSize
		}
		put32(buf, 8, uint32(cnt))
		for j := 0; j < cnt; j++ {
			put32(buf, 24+(hashTableSize-1-j)*4, rest[j])
		}
		put32(buf, BlockSize-12, block)
		if i+1 < len(ext) {
			put32(buf, BlockSize-8, ext[i+1])
		}
		put32(buf, BlockSize-4, secFile)
		putChecksum(buf, 20)
		if err := w.writeBlock(buf, extBlk); err != nil {
			return err
		}
		rest = rest[cnt:]
	}
	return nil
}

// AddTree copies the host directory srcDir into the volume root.
func (w *Writer) AddTree(srcDir string) error {
	return filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			return w.MkDir(rel)
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		return w.WriteFile(rel, f, info.ModTime())
	})
}

// Close writes the directory headers, bitmap, root block, and boot block
// and closes the underlying file.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	for _, d := range w.dirs {
		if err := w.writeDirHeader(d); err != nil {
			w.f.Close()
			return err
		}
	}

	bmBlocks, bmExt, err := w.writeBitmap()
	if err != nil {
		w.f.Close()
		return err
	}
	if err := w.writeRootBlock(bmBlocks, bmExt); err != nil {
		w.f.Close()
		return err
	}

	// boot block carries only the filesystem id on hard disks
	boot := make([]byte, 2*BlockSize)
	copy(boot, "DOS\x01")
	if err := w.writeBlock(boot, 0); err != nil {
		w.f.Close()
		return err
	}

	if err := w.f.Sync(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}

func (w *Writer) writeDirHeader(d *dir) error {
	buf := make([]byte, BlockSize)
	put32(buf, 0, typeHeader)
	put32(buf, 4, d.block)
	for i, v := range d.ht {
		put32(buf, 24+i*4, v)
	}
	putDate(buf, BlockSize-92, d.mod)
	putName(buf, BlockSize-80, d.name)
	put32(buf, BlockSize-16, d.nextHash)
	put32(buf, BlockSize-12, d.parent)
	put32(buf, BlockSize-4, secUserDir)
	putChecksum(buf, 20)
	return w.writeBlock(buf, d.block)
}

// writeBitmap allocates and writes the bitmap chain. Bit set means free.
// The bitmap covers blocks from 2 on; the boot block is not mapped.
func (w *Writer) writeBitmap() (pages, ext []uint32, err error) {
	mapped := w.nblocks - 2
	count := int((mapped + bitsPerBitmapBlock - 1) / bitsPerBitmapBlock)
	pages = make([]uint32, count)
	for i := range pages {
		if pages[i], err = w.alloc(); err != nil {
			return nil, nil, err
		}
	}
	if count > bitmapPagesInRoot {
		extCount := (count - bitmapPagesInRoot + bitmapPtrsPerExt - 1) / bitmapPtrsPerExt
		ext = make([]uint32, extCount)
		for i := range ext {
			if ext[i], err = w.alloc(); err != nil {
				return nil, nil, err
			}
		}
	}

	buf := make([]byte, BlockSize)
	for i, block := range pages {
		for j := range buf {
			buf[j] = 0
		}
		base := uint32(i) * bitsPerBitmapBlock
		for bit := uint32(0); bit < bitsPerBitmapBlock; bit++ {
			idx := base + bit + 2
			if idx >= w.nblocks || w.used[idx] {
				continue
			}
			long := 4 + (bit/32)*4
			buf[long+3-(bit%32)/8] |= 1 << (bit % 8)
		}
		putChecksum(buf, 0)
		if err := w.writeBlock(buf, block); err != nil {
			return nil, nil, err
		}
	}

	rest := pages
	if len(rest) > bitmapPagesInRoot {
		rest = rest[bitmapPagesInRoot:]
	} else {
		rest = nil
	}
	for i, block := range ext {
		for j := range buf {
			buf[j] = 0
		}
		cnt := len(rest)
		if cnt > bitmapPtrsPerExt {
			cnt = bitmapPtrsPerExt
		}
		for j := 0; j < cnt; j++ {
			put32(buf, j*4, rest[j])
		}
		if i+1 < len(ext) {
			put32(buf, BlockSize-4, ext[i+1])
		}
		if err := w.writeBlock(buf, block); err != nil {
			return nil, nil, err
		}
		rest = rest[cnt:]
	}
	return pages, ext, nil
}

func (w *Writer) writeRootBlock(bmBlocks, bmExt []uint32) error {
	buf := make([]byte, BlockSize)
	put32(buf, 0, typeHeader)
	put32(buf, 12, hashTableSize)
	for i, v := range w.root.ht {
		put32(buf, 24+i*4, v)
	}
	put32(buf, BlockSize-200, 0xFFFFFFFF) // bitmap valid
	n := len(bmBlocks)
	if n > bitmapPagesInRoot {
		n = bitmapPagesInRoot
	}
	for i := 0; i < n; i++ {
		put32(buf, BlockSize-196+i*4, bmBlocks[i])
	}
	if len(bmExt) > 0 {
		put32(buf, BlockSize-96, bmExt[0])
	}
	now := time.Now()
	putDate(buf, BlockSize-92, now) // root alteration
	putName(buf, BlockSize-80, w.volume)
	putDate(buf, BlockSize-40, now) // disk alteration
	putDate(buf, BlockSize-28, now) // creation
	put32(buf, BlockSize-4, secRoot)
	putChecksum(buf, 20)
	return w.writeBlock(buf, w.rootBlk)
}

func put32(buf []byte, off int, v uint32) {
	binary.BigEndian.PutUint32(buf[off:], v)
}

// putChecksum stores the negated long sum of the block at off so that
// summing every long yields zero.
func putChecksum(buf []byte, off int) {
	put32(buf, off, 0)
	var sum uint32
	for i := 0; i < len(buf); i += 4 {
		sum += binary.BigEndian.Uint32(buf[i:])
	}
	put32(buf, off, ^sum+1)
}

// putName stores a BCPL string: length byte followed by characters.
func putName(buf []byte, off int, name string) {
	buf[off] = byte(len(name))
	copy(buf[off+1:], name)
}

func putDate(buf []byte, off int, t time.Time) {
	d := t.UTC().Sub(amigaEpoch)
	days := uint32(d / (24 * time.Hour))
	rem := d % (24 * time.Hour)
	mins := uint32(rem / time.Minute)
	ticks := uint32((rem % time.Minute) / (time.Second / 50))
	put32(buf, off, days)
	put32(buf, off+4, mins)
	put32(buf, off+8, ticks)
}

// nameHash is the AmigaDOS directory hash for the non-international
// filesystem variants.
func nameHash(name string) int {
	h := uint32(len(name))
	for i := 0; i < len(name); i++ {
		h = (h*13 + uint32(upperByte(name[i]))) & 0x7FF
	}
	return int(h % hashTableSize)
}

func upperByte(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - 32
	}
	return c
}

func upperName(name string) string {
	b := []byte(name)
	for i := range b {
		b[i] = upperByte(b[i])
	}
	return string(b)
}

func checkName(name string) error {
	if name == "" {
		return errors.New("hdf: empty name")
	}
	if len(name) > maxNameLen {
		return fmt.Errorf("hdf: name too long (%d > %d): %s", len(name), maxNameLen, name)
	}
	if strings.ContainsAny(name, "/:") {
		return fmt.Errorf("hdf: invalid character in name: %s", name)
	}
	return nil
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// Package buffer implements the fixed-size buffer register store: the table
// of typed image slots that script operators address by integer index.
package buffer

import (
	"fmt"

	"github.com/hqge/sparkle/internal/pixel"
)

// MaxDimension is the hard cap on either side of a register, per spec §6.
const MaxDimension = 16384

// MaxRegisters is the hard cap on the number of buffer registers a VM may
// declare, per spec §6.
const MaxRegisters = 4096

// Buffer is one image register: declared dimensions and channel count, plus
// an optional pixel array. A nil Pixels means "unloaded".
type Buffer struct {
	Width, Height int
	Channels      pixel.Channels
	Pixels        []byte
}

// Loaded reports whether the register currently holds pixel data.
func (b *Buffer) Loaded() bool {
	return b.Pixels != nil
}

// Stride is the number of bytes per row.
func (b *Buffer) Stride() int {
	return b.Width * int(b.Channels)
}

// Offset returns the byte offset of pixel (x, y) within Pixels.
func (b *Buffer) Offset(x, y int) int {
	return y*b.Stride() + x*int(b.Channels)
}

// Store is the fixed-size register table. It is the sole owner of every
// register's pixel array; no external handle to those bytes escapes the
// store's accessor methods without going through Reset/a loader.
type Store struct {
	regs []Buffer
}

// NewStore allocates a store with n registers, each created unloaded with
// the default 1x1 grayscale declaration, per spec §3's lifecycle rule.
func NewStore(n int) (*Store, error) {
	if n < 0 || n > MaxRegisters {
		return nil, fmt.Errorf("buffer: register count %d out of range [0, %d]", n, MaxRegisters)
	}
	s := &Store{regs: make([]Buffer, n)}
	for i := range s.regs {
		s.regs[i] = Buffer{Width: 1, Height: 1, Channels: pixel.Gray}
	}
	return s, nil
}

// Count returns the fixed register count (bufc() in spec §4.2).
func (s *Store) Count() int {
	return len(s.regs)
}

func (s *Store) checkIndex(i int) {
	if i < 0 || i >= len(s.regs) {
		panic(fmt.Sprintf("buffer: register index %d out of range [0, %d)", i, len(s.regs)))
	}
}

// Reset redeclares register i's dimensions and channel count, dropping any
// previously loaded pixels. Fatal (panics) on out-of-range arguments, per
// spec §4.2.
func (s *Store) Reset(i, w, h int, ch pixel.Channels) {
	s.checkIndex(i)
	if w < 1 || w > MaxDimension || h < 1 || h > MaxDimension {
		panic(fmt.Sprintf("buffer: dimensions %dx%d out of range [1, %d]", w, h, MaxDimension))
	}
	if !ch.Valid() {
		panic(fmt.Sprintf("buffer: invalid channel count %d", ch))
	}
	s.regs[i] = Buffer{Width: w, Height: h, Channels: ch}
}

// Dim returns register i's declared dimensions.
func (s *Store) Dim(i int) (w, h int) {
	s.checkIndex(i)
	b := &s.regs[i]
	return b.Width, b.Height
}

// Channels returns register i's declared channel count.
func (s *Store) Channels(i int) pixel.Channels {
	s.checkIndex(i)
	return s.regs[i].Channels
}

// IsLoaded reports whether register i currently holds pixel data.
func (s *Store) IsLoaded(i int) bool {
	s.checkIndex(i)
	return s.regs[i].Loaded()
}

// Get returns the register at i for read/write access by collaborating
// packages (imageio, sampler) within this module. The returned pointer is
// valid only until the next store mutation of that slot.
func (s *Store) Get(i int) *Buffer {
	s.checkIndex(i)
	return &s.regs[i]
}

// ensurePixels allocates register i's pixel array if it is currently
// unloaded, sized for its declared dimensions and channel count.
func (s *Store) ensurePixels(i int) *Buffer {
	b := s.Get(i)
	if b.Pixels == nil {
		b.Pixels = make([]byte, b.Width*b.Height*int(b.Channels))
	}
	return b
}

// LoadFill allocates pixels if the register is unloaded, down-converts c to
// the register's channel count, and writes it to every pixel.
func (s *Store) LoadFill(i int, c pixel.ARGB8) {
	b := s.ensurePixels(i)
	stride := int(b.Channels)
	px := make([]byte, stride)
	pixel.WriteAt(px, 0, b.Channels, c)
	for off := 0; off < len(b.Pixels); off += stride {
		copy(b.Pixels[off:off+stride], px)
	}
}

// Unload releases register i's pixel array, e.g. after a failed loader.
func (s *Store) Unload(i int) {
	s.Get(i).Pixels = nil
}

// AllocateForLoad grows register i's pixel array to match its declared
// dimensions if it is currently unloaded, returning it for a loader to fill
// row by row. Loaders call this, fill Pixels, and must call Unload on any
// failure path before returning.
func (s *Store) AllocateForLoad(i int) *Buffer {
	return s.ensurePixels(i)
}

// ColorInvert replaces every non-alpha channel byte of register i's pixels
// with 255-byte, leaving alpha untouched on 4-channel buffers. Panics if the
// register is unloaded, per spec §4.6.
func (s *Store) ColorInvert(i int) {
	b := s.Get(i)
	if !b.Loaded() {
		panic(fmt.Sprintf("buffer: color_invert on unloaded register %d", i))
	}

	stride := int(b.Channels)
	switch b.Channels {
	case pixel.Gray, pixel.RGB:
		for off := range b.Pixels {
			b.Pixels[off] = 255 - b.Pixels[off]
		}
	case pixel.ARGB:
		for off := 0; off < len(b.Pixels); off += stride {
			b.Pixels[off+1] = 255 - b.Pixels[off+1]
			b.Pixels[off+2] = 255 - b.Pixels[off+2]
			b.Pixels[off+3] = 255 - b.Pixels[off+3]
		}
	}
}

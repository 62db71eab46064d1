// Package bitmap implements a dense bit array over a growable word buffer,
// used by lemonfs to track which inode and data-block slots are in use.
package bitmap

import (
	"encoding/binary"
	"fmt"
	"iter"
	"math/bits"
)

// Bitmap is a dense array of bits backed by a slice of 32-bit words.
//
// The zero value is not usable; construct with New or UnmarshalBinary.
type Bitmap struct {
	words []uint32
}

// New returns a Bitmap with storage for at least bits bits, all zero.
// Storage is `bits/32 + 1` 32-bit words, matching the original allocator's
// sizing: always enough for bits bits, with one spare word when bits is a
// multiple of 32.
func New(bits uint32) *Bitmap {
	n := bits/32 + 1
	return &Bitmap{words: make([]uint32, n)}
}

// Len returns the number of addressable bits.
func (b *Bitmap) Len() uint32 {
	return uint32(len(b.words)) * 32
}

// SerializedLen returns the exact byte length MarshalBinary produces for a
// Bitmap created with New(bits) — the 4-byte word-count header plus the
// word-rounded storage. Callers that need to reserve on-disk space for a
// bitmap ahead of constructing it (layout.Compute's fixed-point sizing)
// use this instead of approximating from bits/8.
func SerializedLen(bits uint32) uint32 {
	words := bits/32 + 1
	return 4 + 4*words
}

func (b *Bitmap) checkIndex(i uint32) {
	if i >= b.Len() {
		panic(fmt.Sprintf("bitmap: index %d out of range (capacity %d)", i, b.Len()))
	}
}

// Set marks bit i as in-use. i must be below Len(); violating this is a
// programming error and panics.
func (b *Bitmap) Set(i uint32) {
	b.checkIndex(i)
	b.words[i/32] |= 1 << (i % 32)
}

// Unset marks bit i as free.
func (b *Bitmap) Unset(i uint32) {
	b.checkIndex(i)
	b.words[i/32] &^= 1 << (i % 32)
}

// IsSet reports whether bit i is in-use.
func (b *Bitmap) IsSet(i uint32) bool {
	b.checkIndex(i)
	return b.words[i/32]&(1<<(i%32)) != 0
}

// FindFree returns the lowest-indexed free bit, scanning word by word for
// the first word that isn't all-ones and taking the trailing-zero count of
// its complement.
func (b *Bitmap) FindFree() (uint32, bool) {
	for idx, w := range b.words {
		if w != 0xffffffff {
			return uint32(idx)*32 + uint32(bits.TrailingZeros32(^w)), true
		}
	}
	return 0, false
}

// DrainSet returns an iterator over every set bit in ascending order,
// clearing each bit as it is yielded. It is lazy: a caller that breaks out
// of the range early leaves the remaining set bits untouched.
func (b *Bitmap) DrainSet() iter.Seq[uint32] {
	return func(yield func(uint32) bool) {
		for idx := range b.words {
			for b.words[idx] != 0 {
				trailing := uint32(bits.TrailingZeros32(b.words[idx]))
				b.words[idx] &^= 1 << trailing
				if !yield(uint32(idx)*32 + trailing) {
					return
				}
			}
		}
	}
}

// MarshalBinary encodes the bitmap as a 4-byte little-endian word count
// followed by the words themselves, little-endian.
func (b *Bitmap) MarshalBinary() ([]byte, error) {
	out := make([]byte, 4+4*len(b.words))
	binary.LittleEndian.PutUint32(out[0:4], uint32(len(b.words)))
	for i, w := range b.words {
		binary.LittleEndian.PutUint32(out[4+4*i:8+4*i], w)
	}
	return out, nil
}

// UnmarshalBinary decodes a bitmap previously produced by MarshalBinary.
func (b *Bitmap) UnmarshalBinary(data []byte) error {
	if len(data) < 4 {
		return fmt.Errorf("bitmap: short buffer (%d bytes)", len(data))
	}
	n := binary.LittleEndian.Uint32(data[0:4])
	need := 4 + 4*int(n)
	if len(data) < need {
		return fmt.Errorf("bitmap: short buffer (%d bytes, need %d)", len(data), need)
	}
	words := make([]uint32, n)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(data[4+4*i : 8+4*i])
	}
	b.words = words
	return nil
}

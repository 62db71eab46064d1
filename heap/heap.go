// Package heap implements a first-fit, ordered-free-list allocator over a
// caller-supplied byte arena. It is a hosted Go port of the freestanding
// kernel allocator described in the original lemon_shark allocator.rs: the
// free-list is intrusive (its link lives inside the free region itself)
// and allocation metadata is written immediately before every returned
// address so that Dealloc can recover the true region bounds from the
// address alone.
package heap

import (
	"encoding/binary"
	"fmt"
)

// minAlign is the alignment floor for every address the allocator hands
// out, chosen so that the 16-byte allocMetadata written just before it is
// itself naturally aligned.
const minAlign = 8

// freeBlockSize is the on-arena size of a free-block header: an 8-byte
// size field followed by an 8-byte "next" link (stored as an offset into
// the arena; noNext encodes "end of list").
const freeBlockSize = 16

// allocMetadataSize is the on-arena size of the record written immediately
// before every returned user address.
const allocMetadataSize = 16

const noNext = ^uint64(0)

// Allocator is a first-fit free-list allocator over a fixed-size arena.
// The zero value is not usable; construct with New.
type Allocator struct {
	arena []byte
	head  uint64 // offset into arena, or noNext if the free-list is empty
}

// New installs a single free-block spanning the entire arena (minus its
// own header) and returns an Allocator ready to serve Alloc/Dealloc calls.
// arena stands in for the linker-provided heap bounds of a freestanding
// kernel; here it is any byte slice the caller owns for the allocator's
// exclusive use.
func New(arena []byte) *Allocator {
	a := &Allocator{arena: arena}
	a.head = 0
	a.writeFreeBlock(0, uint64(len(arena))-freeBlockSize, noNext)
	return a
}

func (a *Allocator) writeFreeBlock(offset, size, next uint64) {
	binary.LittleEndian.PutUint64(a.arena[offset:offset+8], size)
	binary.LittleEndian.PutUint64(a.arena[offset+8:offset+16], next)
}

func (a *Allocator) freeBlockSize(offset uint64) uint64 {
	return binary.LittleEndian.Uint64(a.arena[offset : offset+8])
}

func (a *Allocator) freeBlockNext(offset uint64) uint64 {
	return binary.LittleEndian.Uint64(a.arena[offset+8 : offset+16])
}

func (a *Allocator) writeMetadata(userOffset, startAddr, size uint64) {
	off := userOffset - allocMetadataSize
	binary.LittleEndian.PutUint64(a.arena[off:off+8], startAddr)
	binary.LittleEndian.PutUint64(a.arena[off+8:off+16], size)
}

func (a *Allocator) readMetadata(userOffset uint64) (startAddr, size uint64) {
	off := userOffset - allocMetadataSize
	startAddr = binary.LittleEndian.Uint64(a.arena[off : off+8])
	size = binary.LittleEndian.Uint64(a.arena[off+8 : off+16])
	return
}

func alignUp(addr, align uint64) uint64 {
	return (addr + align - 1) &^ (align - 1)
}

// requiredSize is the minimum span a retained remainder needs in order to
// stand on its own as either a free-block or a future allocation.
func requiredSize() uint64 {
	if freeBlockSize > allocMetadataSize {
		return freeBlockSize
	}
	return allocMetadataSize
}

// Alloc returns an offset into the arena such that the returned region is
// aligned to at least max(align, 8), does not overlap any other live
// allocation or free-block header, and spans exactly size bytes. It panics
// ("out of memory") if no free block fits the request, matching the
// original allocator's fatal OOM path.
func (a *Allocator) Alloc(size, align uint64) uint64 {
	if align < minAlign {
		align = minAlign
	}
	size = alignUp(size, 8)

	var prev uint64 = noNext
	cur := a.head

	for cur != noNext {
		blockAddr := cur
		blockSize := a.freeBlockSize(cur)
		blockNext := a.freeBlockNext(cur)
		blockEnd := blockAddr + blockSize

		userAddr := alignUp(blockAddr+allocMetadataSize, align)
		if userAddr+size > blockEnd {
			prev = cur
			cur = blockNext
			continue
		}

		bytesLeft := (userAddr - allocMetadataSize) - blockAddr
		bytesRight := blockEnd - (userAddr + size)
		req := requiredSize()

		keepLeft := bytesLeft >= req
		keepRight := bytesRight >= req

		var metaStart, metaSize uint64

		switch {
		case !keepLeft && !keepRight:
			if prev != noNext {
				a.writeFreeBlock(prev, a.freeBlockSize(prev), blockNext)
			} else {
				a.head = blockNext
			}
			metaStart, metaSize = blockAddr, blockSize

		case keepLeft && !keepRight:
			a.writeFreeBlock(blockAddr, bytesLeft, blockNext)
			metaStart = blockAddr + bytesLeft
			metaSize = blockSize - bytesLeft

		case !keepLeft && keepRight:
			rightOff := userAddr + size
			a.writeFreeBlock(rightOff, bytesRight, blockNext)
			if prev != noNext {
				a.writeFreeBlock(prev, a.freeBlockSize(prev), rightOff)
			} else {
				a.head = rightOff
			}
			metaStart = blockAddr
			metaSize = bytesLeft + allocMetadataSize + size

		default: // keepLeft && keepRight
			rightOff := userAddr + size
			a.writeFreeBlock(blockAddr, bytesLeft, rightOff)
			a.writeFreeBlock(rightOff, bytesRight, blockNext)
			metaStart = blockAddr + bytesLeft
			metaSize = blockSize - bytesLeft - bytesRight
		}

		a.writeMetadata(userAddr, metaStart, metaSize)
		return userAddr
	}

	panic(fmt.Sprintf("heap: out of memory (requested %d bytes, align %d)", size, align))
}

// Dealloc releases a previously returned allocation, reading its true
// bounds from the metadata immediately preceding addr, and coalescing
// with an adjacent predecessor and/or successor free-block if present.
// The layout originally passed to an allocation is never consulted here;
// the on-arena metadata is authoritative.
func (a *Allocator) Dealloc(addr uint64) {
	startAddr, size := a.readMetadata(addr)

	a.writeFreeBlock(startAddr, size, noNext)

	if a.head == noNext {
		a.head = startAddr
		return
	}

	head := a.head
	if startAddr < head {
		if startAddr+size == head {
			a.writeFreeBlock(startAddr, size+a.freeBlockSize(head), a.freeBlockNext(head))
		} else {
			a.writeFreeBlock(startAddr, size, head)
		}
		a.head = startAddr
		return
	}

	prev := head
	for a.freeBlockNext(prev) != noNext && a.freeBlockNext(prev) < startAddr {
		prev = a.freeBlockNext(prev)
	}
	next := a.freeBlockNext(prev)

	mergeLeft := prev+a.freeBlockSize(prev) == startAddr
	mergeRight := next != noNext && startAddr+size == next

	switch {
	case mergeLeft && mergeRight:
		a.writeFreeBlock(prev, a.freeBlockSize(prev)+size+a.freeBlockSize(next), a.freeBlockNext(next))
	case mergeLeft && !mergeRight:
		a.writeFreeBlock(prev, a.freeBlockSize(prev)+size, next)
	case !mergeLeft && mergeRight:
		a.writeFreeBlock(startAddr, size+a.freeBlockSize(next), a.freeBlockNext(next))
		a.writeFreeBlock(prev, a.freeBlockSize(prev), startAddr)
	default:
		a.writeFreeBlock(startAddr, size, next)
		a.writeFreeBlock(prev, a.freeBlockSize(prev), startAddr)
	}
}

// Free returns the total number of currently free bytes across all
// free-blocks. Used by tests to assert conservation of space.
func (a *Allocator) Free() uint64 {
	var total uint64
	for cur := a.head; cur != noNext; cur = a.freeBlockNext(cur) {
		total += a.freeBlockSize(cur)
	}
	return total
}

// FreeBlocks returns the number of distinct free-blocks currently linked.
func (a *Allocator) FreeBlocks() int {
	n := 0
	for cur := a.head; cur != noNext; cur = a.freeBlockNext(cur) {
		n++
	}
	return n
}

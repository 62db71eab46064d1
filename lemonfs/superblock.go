package lemonfs

import (
	"encoding/binary"

	"github.com/lemonos/lemonfs/layout"
)

// superblock is the 16-byte header stored at block 0: magic, block size,
// and total block count. Absence of a magic (an all-zero block) signals
// "format me"; any other non-matching magic is treated as a foreign,
// corrupt image and is fatal.
type superblock struct {
	magic       uint64
	blockSize   uint32
	totalBlocks uint32
}

func newSuperblock(totalBlocks uint32) superblock {
	return superblock{
		magic:       layout.Magic,
		blockSize:   layout.BlockSize,
		totalBlocks: totalBlocks,
	}
}

// encode writes the superblock into a full zeroed block: bytes [0..8)
// magic, [8..12) block_size, [12..16) total_blocks, remainder zero.
func (s superblock) encode() [layout.BlockSize]byte {
	var buf [layout.BlockSize]byte
	binary.LittleEndian.PutUint64(buf[0:8], s.magic)
	binary.LittleEndian.PutUint32(buf[8:12], s.blockSize)
	binary.LittleEndian.PutUint32(buf[12:16], s.totalBlocks)
	return buf
}

func decodeSuperblock(buf []byte) superblock {
	var s superblock
	s.magic = binary.LittleEndian.Uint64(buf[0:8])
	s.blockSize = binary.LittleEndian.Uint32(buf[8:12])
	s.totalBlocks = binary.LittleEndian.Uint32(buf[12:16])
	return s
}

func (s superblock) isBlank() bool {
	return s.magic == 0
}

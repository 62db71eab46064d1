package lemonfs

import (
	"encoding/binary"

	"github.com/lemonos/lemonfs/layout"
)

// Inode carries the metadata for one filesystem object: either a file's
// size and the data blocks holding its bytes, or a directory's size (a
// multiple of DirEntrySize) and the blocks holding its packed entries.
// Block slots are filled densely starting at index 0; any slot at or past
// the inode's current block count holds the noDataBlock sentinel.
type Inode struct {
	Size        uint32
	Blocks      [layout.MaxBlocksPerInode]DataBlockIndex
	IsDirectory bool
}

func emptyDirectory() Inode {
	return Inode{IsDirectory: true}
}

// encode serializes the inode to its fixed 72-byte on-disk form: 4 bytes
// size, 64 bytes of block indices, 1 byte is_directory, 3 bytes padding.
func (n *Inode) encode() [layout.InodeSize]byte {
	var buf [layout.InodeSize]byte
	binary.LittleEndian.PutUint32(buf[0:4], n.Size)
	for i, b := range n.Blocks {
		off := 4 + i*4
		binary.LittleEndian.PutUint32(buf[off:off+4], uint32(b))
	}
	if n.IsDirectory {
		buf[68] = 1
	}
	return buf
}

// decodeInode parses a 72-byte (or larger, only the first 72 bytes are
// read) on-disk inode record.
func decodeInode(buf []byte) Inode {
	var n Inode
	n.Size = binary.LittleEndian.Uint32(buf[0:4])
	for i := range n.Blocks {
		off := 4 + i*4
		n.Blocks[i] = DataBlockIndex(binary.LittleEndian.Uint32(buf[off : off+4]))
	}
	n.IsDirectory = buf[68] != 0
	return n
}

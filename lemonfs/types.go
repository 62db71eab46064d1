package lemonfs

import "fmt"

// BlockIndex is a physical block index on the underlying device.
type BlockIndex uint32

// InodeIndex identifies a slot in the inode table.
type InodeIndex uint32

// DataBlockIndex is a non-zero absolute physical block index into the
// data region; zero means "unassigned". Keeping this distinct from
// BlockIndex and InodeIndex in the type system is what stops "a
// data-block slot stored in an inode" from being confused with "an inode
// number stored in a directory entry" — index spaces that are all plain
// integers on disk but must never be mixed up in code.
type DataBlockIndex uint32

// noDataBlock is the "unassigned" sentinel.
const noDataBlock DataBlockIndex = 0

// IsAssigned reports whether this slot refers to an actual data block.
func (d DataBlockIndex) IsAssigned() bool {
	return d != noDataBlock
}

// NewDataBlockIndex wraps a raw absolute block index, asserting it is
// non-zero. Constructing the zero sentinel through this path is a
// programming error and panics; use noDataBlock (internally) to represent
// "unassigned" instead.
func NewDataBlockIndex(raw uint32) DataBlockIndex {
	if raw == 0 {
		panic("lemonfs: a non-zero data-block index is required here")
	}
	return DataBlockIndex(raw)
}

func (b BlockIndex) String() string      { return fmt.Sprintf("block(%d)", uint32(b)) }
func (i InodeIndex) String() string      { return fmt.Sprintf("inode(%d)", uint32(i)) }
func (d DataBlockIndex) String() string  { return fmt.Sprintf("data(%d)", uint32(d)) }

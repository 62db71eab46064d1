// Package blockdev provides the block-device abstraction lemonfs is
// layered over: uniform fixed-size read/write by block index, with no
// caching or reordering performed at this layer.
package blockdev

import "fmt"

// BlockSize is the fixed size, in bytes, of every block on any device.
const BlockSize = 512

// BlockDevice is the capability the filesystem consumes. Implementations
// must not cache or reorder requests; read_block/write_block/total_blocks
// map directly onto the underlying medium.
type BlockDevice interface {
	// ReadBlock fills buf (which must be exactly BlockSize bytes) with the
	// content of the block at index. Out-of-range indices are fatal.
	ReadBlock(index uint32, buf []byte) error

	// WriteBlock persists data (exactly BlockSize bytes) at index.
	WriteBlock(index uint32, data []byte) error

	// TotalBlocks returns the block count, fixed for the device's lifetime.
	TotalBlocks() uint32
}

// ErrOutOfRange is the panic value used when a block index is not below
// TotalBlocks.
type ErrOutOfRange struct {
	Index, Total uint32
}

func (e *ErrOutOfRange) Error() string {
	return fmt.Sprintf("blockdev: block index %d out of range (total %d)", e.Index, e.Total)
}

// ErrBadBufferSize is the panic value used when a caller passes a buffer
// that isn't exactly BlockSize bytes.
type ErrBadBufferSize struct {
	Got int
}

func (e *ErrBadBufferSize) Error() string {
	return fmt.Sprintf("blockdev: buffer must be exactly %d bytes, got %d", BlockSize, e.Got)
}

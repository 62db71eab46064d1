package blockdev

import "os"

// FileDevice is a BlockDevice backed by an *os.File, so images persist
// across cmd/lemon CLI invocations instead of living only in memory.
type FileDevice struct {
	f     *os.File
	total uint32
}

// OpenFileDevice opens an existing file-backed device of totalBlocks
// blocks. The file must already be at least totalBlocks*BlockSize bytes;
// CreateFileDevice is used to lay one out from scratch.
func OpenFileDevice(path string, totalBlocks uint32) (*FileDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileDevice{f: f, total: totalBlocks}, nil
}

// CreateFileDevice creates (or truncates) a file and sizes it to hold
// exactly totalBlocks blocks, all zero.
func CreateFileDevice(path string, totalBlocks uint32) (*FileDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	if err := f.Truncate(int64(totalBlocks) * BlockSize); err != nil {
		f.Close()
		return nil, err
	}
	return &FileDevice{f: f, total: totalBlocks}, nil
}

func (d *FileDevice) TotalBlocks() uint32 {
	return d.total
}

func (d *FileDevice) ReadBlock(index uint32, buf []byte) error {
	if len(buf) != BlockSize {
		panic(&ErrBadBufferSize{Got: len(buf)})
	}
	if index >= d.total {
		panic(&ErrOutOfRange{Index: index, Total: d.total})
	}
	_, err := d.f.ReadAt(buf, int64(index)*BlockSize)
	return err
}

func (d *FileDevice) WriteBlock(index uint32, data []byte) error {
	if len(data) != BlockSize {
		panic(&ErrBadBufferSize{Got: len(data)})
	}
	if index >= d.total {
		panic(&ErrOutOfRange{Index: index, Total: d.total})
	}
	_, err := d.f.WriteAt(data, int64(index)*BlockSize)
	return err
}

// Close releases the underlying file handle.
func (d *FileDevice) Close() error {
	return d.f.Close()
}

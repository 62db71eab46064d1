//go:build fuse

// Package lemonfuse exposes a mounted lemonfs.Filesystem as a real Linux
// mountpoint. This file only builds with -tags fuse, and wires
// github.com/hanwen/go-fuse/v2's higher-level fs.InodeEmbedder API rather
// than its raw low-level protocol, to keep the FUSE glue decoupled from
// the filesystem's own inode bookkeeping.
package lemonfuse

import (
	"context"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/lemonos/lemonfs/lemonfs"
)

// Mount exposes fsys at mountpoint; it returns once the FUSE session is
// ready to serve.
func Mount(mountpoint string, fsys *lemonfs.Filesystem) (*fuse.Server, error) {
	root := &node{fsys: fsys, idx: lemonfs.RootInode}
	return fs.Mount(mountpoint, root, &fs.Options{})
}

// node is one lemonfs inode, addressed through the mounted Filesystem
// rather than cached locally — every operation re-reads through fsys, since
// lemonfs.Filesystem already keeps its own inode cache.
type node struct {
	fs.Inode

	fsys *lemonfs.Filesystem
	idx  lemonfs.InodeIndex
}

var (
	_ fs.NodeLookuper   = (*node)(nil)
	_ fs.NodeReaddirer  = (*node)(nil)
	_ fs.NodeReader     = (*node)(nil)
	_ fs.NodeOpener     = (*node)(nil)
	_ fs.NodeGetattrer  = (*node)(nil)
)

func modeFor(n lemonfs.Inode) uint32 {
	if n.IsDirectory {
		return syscall.S_IFDIR | 0o755
	}
	return syscall.S_IFREG | 0o644
}

func (n *node) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	st, err := n.fsys.Stat(n.idx)
	if err != nil {
		return syscall.EIO
	}
	out.Mode = modeFor(st)
	out.Size = uint64(st.Size)
	return 0
}

func (n *node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	entries, err := n.fsys.ReadDir(n.idx)
	if err != nil {
		return nil, syscall.ENOTDIR
	}
	for _, e := range entries {
		if e.Name != name {
			continue
		}
		st, err := n.fsys.Stat(e.Inode)
		if err != nil {
			return nil, syscall.EIO
		}
		out.Attr.Mode = modeFor(st)
		out.Attr.Size = uint64(st.Size)
		child := &node{fsys: n.fsys, idx: e.Inode}
		stable := fs.StableAttr{Mode: modeFor(st), Ino: uint64(e.Inode)}
		return n.NewInode(ctx, child, stable), 0
	}
	return nil, syscall.ENOENT
}

func (n *node) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	entries, err := n.fsys.ReadDir(n.idx)
	if err != nil {
		return nil, syscall.ENOTDIR
	}
	list := make([]fuse.DirEntry, 0, len(entries))
	for _, e := range entries {
		mode := uint32(syscall.S_IFREG)
		if st, err := n.fsys.Stat(e.Inode); err == nil && st.IsDirectory {
			mode = syscall.S_IFDIR
		}
		list = append(list, fuse.DirEntry{Name: e.Name, Ino: uint64(e.Inode), Mode: mode})
	}
	return fs.NewListDirStream(list), 0
}

func (n *node) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	return nil, fuse.FOPEN_KEEP_CACHE, 0
}

func (n *node) Read(ctx context.Context, f fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	data, err := n.fsys.Read(n.idx)
	if err != nil {
		return nil, syscall.EIO
	}
	if off >= int64(len(data)) {
		return fuse.ReadResultData(nil), 0
	}
	end := off + int64(len(dest))
	if end > int64(len(data)) {
		end = int64(len(data))
	}
	return fuse.ReadResultData(data[off:end]), 0
}

// Package lemonfs implements a small Unix-like block filesystem: a
// superblock, two allocation bitmaps, a fixed-size inode table, and a data
// region, all layered over a blockdev.BlockDevice. It has no permissions,
// timestamps, hard/symbolic links, journaling, or concurrent multi-writer
// access; files are append-only up to MaxFileSize and have no indirect
// blocks — every file is addressed by up to MaxBlocksPerInode direct
// block pointers.
package lemonfs

import (
	"fmt"
	"strings"
	"sync"

	"github.com/lemonos/lemonfs/bitmap"
	"github.com/lemonos/lemonfs/blockdev"
	"github.com/lemonos/lemonfs/layout"
)

// RootInode is the inode index of the filesystem root. Its '..' entry
// points to itself.
const RootInode InodeIndex = 0

// DirEntryInfo is a (name, inode) pair as returned by ReadDir.
type DirEntryInfo struct {
	Name  string
	Inode InodeIndex
}

// Filesystem is a mounted (or freshly formatted) lemonfs image. All
// exported methods are safe to call from multiple goroutines: they hold a
// single mutex for their duration. This is a convenience, not a
// correctness requirement — lemonfs has no concept of concurrent
// multi-writer access; the mutex only prevents two goroutines from
// interleaving and corrupting the single-writer invariants this type
// otherwise assumes.
type Filesystem struct {
	mu sync.Mutex

	dev    blockdev.BlockDevice
	layout layout.Layout

	inodeBitmap *bitmap.Bitmap
	dataBitmap  *bitmap.Bitmap

	cache *inodeCache
}

// Mount opens dev as a lemonfs image. If the superblock's magic field in
// block 0 is zero (as on a blank device), the device is formatted fresh (an empty root directory is created); if it
// carries the lemonfs magic, the existing image is mounted as-is; any
// other magic means dev holds a foreign or corrupted image, and Mount
// panics rather than handing back a filesystem built on top of it.
func Mount(dev blockdev.BlockDevice, opts ...Option) (*Filesystem, error) {
	cfg := mountConfig{maxInodes: layout.MaxInodes}
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	buf := make([]byte, layout.BlockSize)
	if err := dev.ReadBlock(0, buf); err != nil {
		return nil, fmt.Errorf("lemonfs: reading superblock: %w", err)
	}
	sb := decodeSuperblock(buf)

	formatting := sb.isBlank()
	if !formatting && sb.magic != layout.Magic {
		panic(errBadMagic)
	}

	l := layout.ComputeWithMaxInodes(dev.TotalBlocks(), cfg.maxInodes)

	fs := &Filesystem{
		dev:    dev,
		layout: l,
		cache:  newInodeCache(l),
	}

	if formatting {
		fs.inodeBitmap = bitmap.New(cfg.maxInodes)
		fs.dataBitmap = bitmap.New(l.DataBlocks)
		if err := fs.createEmptyRoot(); err != nil {
			return nil, err
		}
		return fs, nil
	}

	var err error
	fs.inodeBitmap, err = fs.readBitmapRegion(l.InodeBitmapStart, l.InodeBitmapBlocks)
	if err != nil {
		return nil, fmt.Errorf("lemonfs: reading inode bitmap: %w", err)
	}
	fs.dataBitmap, err = fs.readBitmapRegion(l.DataBitmapStart, l.DataBitmapBlocks)
	if err != nil {
		return nil, fmt.Errorf("lemonfs: reading data bitmap: %w", err)
	}

	return fs, nil
}

func (fs *Filesystem) readBitmapRegion(start, blocks uint32) (*bitmap.Bitmap, error) {
	buf := make([]byte, int(blocks)*layout.BlockSize)
	tmp := make([]byte, layout.BlockSize)
	for b := uint32(0); b < blocks; b++ {
		if err := fs.dev.ReadBlock(start+b, tmp); err != nil {
			return nil, err
		}
		copy(buf[int(b)*layout.BlockSize:], tmp)
	}
	bm := &bitmap.Bitmap{}
	if err := bm.UnmarshalBinary(buf); err != nil {
		return nil, err
	}
	return bm, nil
}

func (fs *Filesystem) writeBitmapRegion(start, blocks uint32, bm *bitmap.Bitmap) error {
	data, err := bm.MarshalBinary()
	if err != nil {
		return err
	}
	padded := make([]byte, int(blocks)*layout.BlockSize)
	copy(padded, data)
	for b := uint32(0); b < blocks; b++ {
		off := int(b) * layout.BlockSize
		if err := fs.dev.WriteBlock(start+b, padded[off:off+layout.BlockSize]); err != nil {
			return err
		}
	}
	return nil
}

func (fs *Filesystem) writeInodeToDisk(i InodeIndex, n *Inode) error {
	block, offset := fs.layout.InodeToBlock(uint32(i))
	buf := make([]byte, layout.BlockSize)
	if err := fs.dev.ReadBlock(block, buf); err != nil {
		return err
	}
	enc := n.encode()
	copy(buf[offset:offset+layout.InodeSize], enc[:])
	return fs.dev.WriteBlock(block, buf)
}

// createEmptyRoot allocates inode 0 as an empty directory and writes its
// self-referential '.' and '..' entries. Only called while formatting,
// before Mount returns, so it needs no locking of its own.
func (fs *Filesystem) createEmptyRoot() error {
	raw, ok := fs.inodeBitmap.FindFree()
	if !ok {
		panic("lemonfs: inode table exhausted while formatting an empty filesystem")
	}
	fs.inodeBitmap.Set(raw)
	root := emptyDirectory()
	idx := InodeIndex(raw)
	if err := fs.writeInodeToDisk(idx, &root); err != nil {
		return err
	}
	fs.cache.RegisterNew(idx, root)

	if err := fs.appendDirEntry(idx, newDirEntry(".", idx)); err != nil {
		return err
	}
	if err := fs.appendDirEntry(idx, newDirEntry("..", idx)); err != nil {
		return err
	}
	return nil
}

// splitPath turns an absolute, '/'-separated path into its non-empty
// components, tolerating duplicate or trailing slashes.
func splitPath(path string) []string {
	var out []string
	for _, c := range strings.Split(path, "/") {
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

// resolveParent walks every component of path but the last, returning the
// inode index of the directory the final component lives (or will live)
// in, and the final component's name. An interior component that doesn't
// exist yields ErrDirectoryDoesNotExist; one that resolves to a
// non-directory inode yields ErrNotADirectory.
func (fs *Filesystem) resolveParent(path string) (InodeIndex, string, error) {
	components := splitPath(path)
	if len(components) == 0 {
		return 0, "", ErrDirectoryDoesNotExist
	}

	current := RootInode
	for _, comp := range components[:len(components)-1] {
		currentInode, err := fs.cache.Get(fs.dev, current)
		if err != nil {
			return 0, "", err
		}
		if !currentInode.IsDirectory {
			return 0, "", ErrNotADirectory
		}
		entries, err := fs.readDirEntries(currentInode)
		if err != nil {
			return 0, "", err
		}
		next, found := lookupEntry(entries, comp)
		if !found {
			return 0, "", ErrDirectoryDoesNotExist
		}
		current = next
	}

	return current, components[len(components)-1], nil
}

func lookupEntry(entries []dirEntry, name string) (InodeIndex, bool) {
	for _, e := range entries {
		if e.matches(name) {
			return e.inode, true
		}
	}
	return 0, false
}

// readDirEntries decodes every directory entry an inode's content
// represents, computed from its size and stopping once that many entries
// have been read, skipping unassigned block slots.
func (fs *Filesystem) readDirEntries(n *Inode) ([]dirEntry, error) {
	maxItems := n.Size / layout.DirEntrySize
	if maxItems == 0 {
		return nil, nil
	}

	out := make([]dirEntry, 0, maxItems)
	buf := make([]byte, layout.BlockSize)
	var read uint32

	for _, db := range n.Blocks {
		if read >= maxItems {
			break
		}
		if !db.IsAssigned() {
			continue
		}
		blockIdx := fs.layout.DataToBlock(uint32(db))
		if err := fs.dev.ReadBlock(blockIdx, buf); err != nil {
			return nil, err
		}
		for i := 0; i < layout.DirEntriesPerBlock && read < maxItems; i++ {
			off := i * layout.DirEntrySize
			out = append(out, decodeDirEntry(buf[off:off+layout.DirEntrySize]))
			read++
		}
	}

	return out, nil
}

// appendDirEntry appends entry to the directory content of the inode at
// parentIdx, allocating a fresh data block for it if its current last
// block slot is full or unassigned. The parent inode is left marked
// dirty in the cache.
func (fs *Filesystem) appendDirEntry(parentIdx InodeIndex, entry dirEntry) error {
	parent, err := fs.cache.GetMut(fs.dev, parentIdx)
	if err != nil {
		return err
	}

	usedEntries := parent.Size / layout.DirEntrySize
	slotInBlocks := usedEntries / layout.DirEntriesPerBlock

	if slotInBlocks >= layout.MaxBlocksPerInode {
		return ErrNoSpaceForDirEntry
	}

	if !parent.Blocks[slotInBlocks].IsAssigned() {
		raw, ok := fs.dataBitmap.FindFree()
		if !ok {
			panic("lemonfs: out of data blocks")
		}
		fs.dataBitmap.Set(raw)
		parent.Blocks[slotInBlocks] = NewDataBlockIndex(fs.layout.DataBlock(raw))
	}

	blockIdx := fs.layout.DataToBlock(uint32(parent.Blocks[slotInBlocks]))
	buf := make([]byte, layout.BlockSize)
	if err := fs.dev.ReadBlock(blockIdx, buf); err != nil {
		return err
	}

	offsetInBlock := (usedEntries % layout.DirEntriesPerBlock) * layout.DirEntrySize
	enc := entry.encode()
	copy(buf[offsetInBlock:offsetInBlock+layout.DirEntrySize], enc[:])

	if err := fs.dev.WriteBlock(blockIdx, buf); err != nil {
		return err
	}

	parent.Size += layout.DirEntrySize
	return nil
}

// createEntry resolves the parent directory, checks for a name collision,
// allocates and writes a fresh inode, links it into the parent, and — for
// directories — seeds its own '.' and '..' entries.
func (fs *Filesystem) createEntry(path string, isDirectory bool) (InodeIndex, error) {
	parentIdx, name, err := fs.resolveParent(path)
	if err != nil {
		return 0, err
	}

	parent, err := fs.cache.Get(fs.dev, parentIdx)
	if err != nil {
		return 0, err
	}
	if !parent.IsDirectory {
		return 0, ErrNotADirectory
	}

	entries, err := fs.readDirEntries(parent)
	if err != nil {
		return 0, err
	}
	if _, found := lookupEntry(entries, name); found {
		return 0, ErrDuplicatedEntry
	}

	// Check there's room for the new directory entry before allocating or
	// writing anything, so a NoSpaceForDirEntry error leaves disk state
	// untouched.
	usedEntries := parent.Size / layout.DirEntrySize
	if usedEntries/layout.DirEntriesPerBlock >= layout.MaxBlocksPerInode {
		return 0, ErrNoSpaceForDirEntry
	}

	raw, ok := fs.inodeBitmap.FindFree()
	if !ok {
		panic("lemonfs: inode table exhausted")
	}
	fs.inodeBitmap.Set(raw)
	newIdx := InodeIndex(raw)

	newInode := Inode{IsDirectory: isDirectory}
	if err := fs.writeInodeToDisk(newIdx, &newInode); err != nil {
		return 0, err
	}
	fs.cache.RegisterNew(newIdx, newInode)

	if err := fs.appendDirEntry(parentIdx, newDirEntry(name, newIdx)); err != nil {
		return 0, err
	}

	if isDirectory {
		if err := fs.appendDirEntry(newIdx, newDirEntry(".", newIdx)); err != nil {
			return 0, err
		}
		if err := fs.appendDirEntry(newIdx, newDirEntry("..", parentIdx)); err != nil {
			return 0, err
		}
	}

	return newIdx, nil
}

// Mkdir creates an empty directory at path. The final component must not
// already exist in its parent; every earlier component must already
// exist and be a directory.
func (fs *Filesystem) Mkdir(path string) (InodeIndex, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.createEntry(path, true)
}

// CreateFile creates an empty (zero-length) file at path.
func (fs *Filesystem) CreateFile(path string) (InodeIndex, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.createEntry(path, false)
}

// Lookup resolves path to an inode index.
func (fs *Filesystem) Lookup(path string) (InodeIndex, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if len(splitPath(path)) == 0 {
		return RootInode, nil
	}

	parentIdx, name, err := fs.resolveParent(path)
	if err != nil {
		return 0, err
	}
	parent, err := fs.cache.Get(fs.dev, parentIdx)
	if err != nil {
		return 0, err
	}
	if !parent.IsDirectory {
		return 0, ErrNotADirectory
	}
	entries, err := fs.readDirEntries(parent)
	if err != nil {
		return 0, err
	}
	idx, found := lookupEntry(entries, name)
	if !found {
		return 0, ErrDirectoryDoesNotExist
	}
	return idx, nil
}

// ReadDir returns the directory entries of the directory at idx, in
// on-disk order (so '.' and '..' come first).
func (fs *Filesystem) ReadDir(idx InodeIndex) ([]DirEntryInfo, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	n, err := fs.cache.Get(fs.dev, idx)
	if err != nil {
		return nil, err
	}
	if !n.IsDirectory {
		return nil, ErrNotADirectory
	}
	entries, err := fs.readDirEntries(n)
	if err != nil {
		return nil, err
	}
	out := make([]DirEntryInfo, len(entries))
	for i, e := range entries {
		out[i] = DirEntryInfo{Name: e.String(), Inode: e.inode}
	}
	return out, nil
}

// Write appends data to the file at idx, growing it. It fails with
// ErrNotAFile if idx names a directory, or ErrNoSpaceInFile if the append
// would exceed MaxFileSize — in the latter case the file is left
// unchanged.
func (fs *Filesystem) Write(idx InodeIndex, data []byte) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	n, err := fs.cache.Get(fs.dev, idx)
	if err != nil {
		return 0, err
	}
	if n.IsDirectory {
		return 0, ErrNotAFile
	}
	if uint64(n.Size)+uint64(len(data)) > layout.MaxFileSize {
		return 0, ErrNoSpaceInFile
	}
	if len(data) == 0 {
		return 0, nil
	}

	n, err = fs.cache.GetMut(fs.dev, idx)
	if err != nil {
		return 0, err
	}

	remaining := data
	for len(remaining) > 0 {
		blockSlot := n.Size / layout.BlockSize
		if !n.Blocks[blockSlot].IsAssigned() {
			raw, ok := fs.dataBitmap.FindFree()
			if !ok {
				panic("lemonfs: out of data blocks")
			}
			fs.dataBitmap.Set(raw)
			n.Blocks[blockSlot] = NewDataBlockIndex(fs.layout.DataBlock(raw))
		}

		blockIdx := fs.layout.DataToBlock(uint32(n.Blocks[blockSlot]))
		buf := make([]byte, layout.BlockSize)
		if err := fs.dev.ReadBlock(blockIdx, buf); err != nil {
			return 0, err
		}

		byteOffset := n.Size % layout.BlockSize
		chunk := layout.BlockSize - byteOffset
		if uint32(len(remaining)) < chunk {
			chunk = uint32(len(remaining))
		}
		copy(buf[byteOffset:byteOffset+chunk], remaining[:chunk])
		if err := fs.dev.WriteBlock(blockIdx, buf); err != nil {
			return 0, err
		}

		n.Size += chunk
		remaining = remaining[chunk:]
	}

	return len(data), nil
}

// Read returns the full content of the file at idx.
func (fs *Filesystem) Read(idx InodeIndex) ([]byte, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	n, err := fs.cache.Get(fs.dev, idx)
	if err != nil {
		return nil, err
	}
	if n.IsDirectory {
		return nil, ErrNotAFile
	}

	out := make([]byte, 0, n.Size)
	buf := make([]byte, layout.BlockSize)
	remaining := n.Size
	for blockSlot := 0; remaining > 0; blockSlot++ {
		blockIdx := fs.layout.DataToBlock(uint32(n.Blocks[blockSlot]))
		if err := fs.dev.ReadBlock(blockIdx, buf); err != nil {
			return nil, err
		}
		chunk := uint32(layout.BlockSize)
		if remaining < chunk {
			chunk = remaining
		}
		out = append(out, buf[:chunk]...)
		remaining -= chunk
	}
	return out, nil
}

// Stat returns the inode record at idx, as currently cached.
func (fs *Filesystem) Stat(idx InodeIndex) (Inode, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	n, err := fs.cache.Get(fs.dev, idx)
	if err != nil {
		return Inode{}, err
	}
	return *n, nil
}

// Flush writes every dirty inode, both bitmaps, and a fresh superblock
// back to the device. There is no journal: a crash between these three
// steps may leave the inode table and the bitmaps desynchronized; this is
// accepted, not repaired.
func (fs *Filesystem) Flush() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	for _, pair := range fs.cache.DrainDirty() {
		n := pair.Inode
		if err := fs.writeInodeToDisk(pair.Index, &n); err != nil {
			return err
		}
	}

	sb := newSuperblock(fs.dev.TotalBlocks())
	sbBuf := sb.encode()
	if err := fs.dev.WriteBlock(0, sbBuf[:]); err != nil {
		return err
	}

	if err := fs.writeBitmapRegion(fs.layout.InodeBitmapStart, fs.layout.InodeBitmapBlocks, fs.inodeBitmap); err != nil {
		return err
	}
	if err := fs.writeBitmapRegion(fs.layout.DataBitmapStart, fs.layout.DataBitmapBlocks, fs.dataBitmap); err != nil {
		return err
	}

	return nil
}

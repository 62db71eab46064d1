package lemonfs

import (
	"github.com/lemonos/lemonfs/blockdev"
	"github.com/lemonos/lemonfs/layout"
)

// inodeCache is a read-through, dirty-tracked cache of inode records,
// keyed by inode index. It is populated lazily on first access; a mutable
// access marks its slot dirty so a later flush knows which inodes
// actually changed.
type inodeCache struct {
	layout  layout.Layout
	entries map[InodeIndex]*cacheEntry
}

type cacheEntry struct {
	inode Inode
	dirty bool
}

func newInodeCache(l layout.Layout) *inodeCache {
	return &inodeCache{
		layout:  l,
		entries: make(map[InodeIndex]*cacheEntry),
	}
}

func (c *inodeCache) readInodeFromDisk(dev blockdev.BlockDevice, i InodeIndex) (Inode, error) {
	block, offset := c.layout.InodeToBlock(uint32(i))
	buf := make([]byte, layout.BlockSize)
	if err := dev.ReadBlock(block, buf); err != nil {
		return Inode{}, err
	}
	return decodeInode(buf[offset : offset+layout.InodeSize]), nil
}

// Get returns the inode at i, reading it through from the device on first
// access. Subsequent calls for the same i do not touch the device.
func (c *inodeCache) Get(dev blockdev.BlockDevice, i InodeIndex) (*Inode, error) {
	if e, ok := c.entries[i]; ok {
		return &e.inode, nil
	}
	n, err := c.readInodeFromDisk(dev, i)
	if err != nil {
		return nil, err
	}
	e := &cacheEntry{inode: n}
	c.entries[i] = e
	return &e.inode, nil
}

// GetMut is Get, additionally marking i's slot dirty so a later
// DrainDirty will flush it.
func (c *inodeCache) GetMut(dev blockdev.BlockDevice, i InodeIndex) (*Inode, error) {
	if e, ok := c.entries[i]; ok {
		e.dirty = true
		return &e.inode, nil
	}
	n, err := c.readInodeFromDisk(dev, i)
	if err != nil {
		return nil, err
	}
	e := &cacheEntry{inode: n, dirty: true}
	c.entries[i] = e
	return &e.inode, nil
}

// RegisterNew installs inode into the cache without reading it back from
// disk, for the case where the filesystem has just written a freshly
// created inode's zeroed form itself and a round-trip read would be
// wasted work.
func (c *inodeCache) RegisterNew(i InodeIndex, inode Inode) {
	c.entries[i] = &cacheEntry{inode: inode, dirty: true}
}

// dirtyPair is one (index, inode) pair yielded by DrainDirty.
type dirtyPair struct {
	Index InodeIndex
	Inode Inode
}

// DrainDirty returns every currently-dirty slot and clears their dirty
// bits. After it returns, no cache entry is marked dirty; the cached
// inode bodies themselves remain, so later reads still short-circuit the
// device.
func (c *inodeCache) DrainDirty() []dirtyPair {
	var out []dirtyPair
	for i, e := range c.entries {
		if !e.dirty {
			continue
		}
		out = append(out, dirtyPair{Index: i, Inode: e.inode})
		e.dirty = false
	}
	return out
}

package lemonfs

import (
	"bytes"
	"encoding/binary"

	"github.com/lemonos/lemonfs/layout"
)

// dirEntry is a single (name, inode) pair stored as content inside a
// directory inode. Names are NUL-padded to 24 bytes and are not required
// to be NUL-terminated if they occupy the entire field.
type dirEntry struct {
	name  [24]byte
	inode InodeIndex
}

func newDirEntry(name string, inode InodeIndex) dirEntry {
	var e dirEntry
	copy(e.name[:], name)
	e.inode = inode
	return e
}

// nameLen returns the length of the stored name up to the first NUL, or
// 24 if the name fills the whole field.
func (e dirEntry) nameLen() int {
	if i := bytes.IndexByte(e.name[:], 0); i >= 0 {
		return i
	}
	return len(e.name)
}

func (e dirEntry) String() string {
	return string(e.name[:e.nameLen()])
}

// matches compares a candidate name against the stored name, tolerating a
// single leading '/' in the stored name — a legacy quirk kept for
// compatibility with entries written by an earlier format revision, not
// something new entries produce.
func (e dirEntry) matches(candidate string) bool {
	raw := e.name[:e.nameLen()]
	if len(raw) > 0 && raw[0] == '/' {
		raw = raw[1:]
	}
	return string(raw) == candidate
}

func (e dirEntry) encode() [layout.DirEntrySize]byte {
	var buf [layout.DirEntrySize]byte
	copy(buf[0:24], e.name[:])
	binary.LittleEndian.PutUint32(buf[24:28], uint32(e.inode))
	return buf
}

func decodeDirEntry(buf []byte) dirEntry {
	var e dirEntry
	copy(e.name[:], buf[0:24])
	e.inode = InodeIndex(binary.LittleEndian.Uint32(buf[24:28]))
	return e
}

package lemonfs

import "errors"

// Package-specific error variables that can be used with errors.Is() for
// error handling. These are the six recoverable, user-visible errors a
// filesystem operation can return; none of them are ever turned into a
// panic, and returning one leaves on-disk state unchanged.
var (
	// ErrDuplicatedEntry is returned when creating a path that already
	// exists in its parent directory.
	ErrDuplicatedEntry = errors.New("lemonfs: entry already exists")

	// ErrDirectoryDoesNotExist is returned when an intermediate path
	// component cannot be found while resolving a path.
	ErrDirectoryDoesNotExist = errors.New("lemonfs: directory does not exist")

	// ErrNoSpaceForDirEntry is returned when a directory's 16 direct data
	// blocks are already full of directory entries.
	ErrNoSpaceForDirEntry = errors.New("lemonfs: no space left for a new directory entry")

	// ErrNotAFile is returned when a file operation targets a directory
	// inode.
	ErrNotAFile = errors.New("lemonfs: not a file")

	// ErrNotADirectory is returned when an interior path component
	// resolves to a non-directory inode.
	ErrNotADirectory = errors.New("lemonfs: not a directory")

	// ErrNoSpaceInFile is returned when an append would grow a file past
	// MaxFileSize; the file is left unchanged.
	ErrNoSpaceInFile = errors.New("lemonfs: no space left in file")
)

// errBadMagic is the panic value used when the superblock holds a non-zero
// magic that doesn't match Magic: a foreign or corrupted image, which is
// never expected in normal operation and isn't something a caller can
// usefully recover from, so it is never wrapped into a returned error the
// way the errors above are.
var errBadMagic = errors.New("lemonfs: foreign or corrupt superblock (bad magic)")

// Package lemon exposes lemonfs as a single, process-wide mounted
// filesystem, mirroring the original's single static FILE_SYSTEM global:
// exactly one device is ever mounted at a time, guarded so a second Init
// call cannot silently re-format it out from under concurrent users.
package lemon

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/lemonos/lemonfs/blockdev"
	"github.com/lemonos/lemonfs/lemonfs"
)

// ErrAlreadyInitialized is returned by Init if the singleton has already
// been mounted.
var ErrAlreadyInitialized = errors.New("lemon: filesystem already initialized")

// ErrNotInitialized is returned by Get before the first successful Init.
var ErrNotInitialized = errors.New("lemon: filesystem not initialized")

var (
	initialized atomic.Bool
	mu          sync.Mutex
	instance    *lemonfs.Filesystem
)

// Init mounts dev as the process-wide filesystem. Calling it a second time
// without an intervening Reset returns ErrAlreadyInitialized; the existing
// mount is left untouched.
func Init(dev blockdev.BlockDevice, opts ...lemonfs.Option) (*lemonfs.Filesystem, error) {
	if !initialized.CompareAndSwap(false, true) {
		return nil, ErrAlreadyInitialized
	}

	fs, err := lemonfs.Mount(dev, opts...)
	if err != nil {
		initialized.Store(false)
		return nil, err
	}

	mu.Lock()
	instance = fs
	mu.Unlock()

	return fs, nil
}

// Get returns the process-wide filesystem mounted by Init.
func Get() (*lemonfs.Filesystem, error) {
	mu.Lock()
	defer mu.Unlock()
	if instance == nil {
		return nil, ErrNotInitialized
	}
	return instance, nil
}

// Reset tears down the singleton so a subsequent Init can mount a new
// device. It does not flush the previous mount — callers that care about
// its state should call Flush themselves first. Intended for tests only;
// a production process mounts exactly one device for its lifetime.
func Reset() {
	mu.Lock()
	instance = nil
	mu.Unlock()
	initialized.Store(false)
}

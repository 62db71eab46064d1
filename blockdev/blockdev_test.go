package blockdev_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lemonos/lemonfs/blockdev"
)

func TestRAMDeviceReadWrite(t *testing.T) {
	d := blockdev.NewRAMDevice(4)

	buf := make([]byte, blockdev.BlockSize)
	for i := range buf {
		buf[i] = 0xAB
	}
	if err := d.WriteBlock(2, buf); err != nil {
		t.Fatalf("WriteBlock: %s", err)
	}

	readBack := make([]byte, blockdev.BlockSize)
	if err := d.ReadBlock(2, readBack); err != nil {
		t.Fatalf("ReadBlock: %s", err)
	}
	for i := range readBack {
		if readBack[i] != 0xAB {
			t.Fatalf("byte %d: got %x, want 0xAB", i, readBack[i])
		}
	}
}

func expectPanic(t *testing.T, what string, f func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic: %s", what)
		}
	}()
	f()
}

func TestRAMDeviceOutOfRange(t *testing.T) {
	d := blockdev.NewRAMDevice(2)
	buf := make([]byte, blockdev.BlockSize)

	expectPanic(t, "ReadBlock out of range", func() { d.ReadBlock(5, buf) })
	expectPanic(t, "WriteBlock out of range", func() { d.WriteBlock(5, buf) })
}

func TestRAMDeviceBadBufferSize(t *testing.T) {
	d := blockdev.NewRAMDevice(2)
	buf := make([]byte, 10)

	expectPanic(t, "ReadBlock bad buffer size", func() { d.ReadBlock(0, buf) })
}

func TestFileDeviceOutOfRange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "image.lemon")

	d, err := blockdev.CreateFileDevice(path, 2)
	if err != nil {
		t.Fatalf("CreateFileDevice: %s", err)
	}
	defer d.Close()
	buf := make([]byte, blockdev.BlockSize)

	expectPanic(t, "ReadBlock out of range", func() { d.ReadBlock(5, buf) })
	expectPanic(t, "WriteBlock out of range", func() { d.WriteBlock(5, buf) })
}

func TestFileDeviceBadBufferSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "image.lemon")

	d, err := blockdev.CreateFileDevice(path, 2)
	if err != nil {
		t.Fatalf("CreateFileDevice: %s", err)
	}
	defer d.Close()
	buf := make([]byte, 10)

	expectPanic(t, "ReadBlock bad buffer size", func() { d.ReadBlock(0, buf) })
}

func TestFileDevicePersists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "image.lemon")

	d, err := blockdev.CreateFileDevice(path, 8)
	if err != nil {
		t.Fatalf("CreateFileDevice: %s", err)
	}

	buf := make([]byte, blockdev.BlockSize)
	for i := range buf {
		buf[i] = byte(i)
	}
	if err := d.WriteBlock(3, buf); err != nil {
		t.Fatalf("WriteBlock: %s", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %s", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected file to exist: %s", err)
	}

	reopened, err := blockdev.OpenFileDevice(path, 8)
	if err != nil {
		t.Fatalf("OpenFileDevice: %s", err)
	}
	defer reopened.Close()

	readBack := make([]byte, blockdev.BlockSize)
	if err := reopened.ReadBlock(3, readBack); err != nil {
		t.Fatalf("ReadBlock: %s", err)
	}
	for i := range readBack {
		if readBack[i] != byte(i) {
			t.Fatalf("byte %d: got %d, want %d", i, readBack[i], byte(i))
		}
	}
}

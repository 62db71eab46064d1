package layout_test

import (
	"testing"

	"github.com/lemonos/lemonfs/bitmap"
	"github.com/lemonos/lemonfs/layout"
)

func TestComputeRegionsAreContiguousAndOrdered(t *testing.T) {
	l := layout.Compute(100000)

	if l.InodeBitmapStart != 1 {
		t.Fatalf("expected inode bitmap to start right after the superblock, got %d", l.InodeBitmapStart)
	}
	if l.DataBitmapStart != l.InodeBitmapStart+l.InodeBitmapBlocks {
		t.Fatalf("data bitmap must immediately follow the inode bitmap")
	}
	if l.InodeTableStart != l.DataBitmapStart+l.DataBitmapBlocks {
		t.Fatalf("inode table must immediately follow the data bitmap")
	}
	if l.DataStart != l.InodeTableStart+l.InodeTableBlocks {
		t.Fatalf("data region must immediately follow the inode table")
	}
	if l.DataStart+l.DataBlocks != l.TotalBlocks {
		t.Fatalf("data region must account for every remaining block: start=%d blocks=%d total=%d",
			l.DataStart, l.DataBlocks, l.TotalBlocks)
	}
}

func TestDataBitmapSizeIsSelfConsistent(t *testing.T) {
	l := layout.Compute(100000)

	// The data bitmap's serialized form (header + word-rounded storage,
	// not a bare bits/8) must fit in the blocks reserved for it...
	needed := bitsToBlocks(l.DataBlocks)
	if needed > l.DataBitmapBlocks {
		t.Fatalf("data bitmap region (%d blocks) is too small for %d data blocks (needs %d)",
			l.DataBitmapBlocks, l.DataBlocks, needed)
	}

	// ...and it must be the fixed point, not just any sufficient size: one
	// fewer block must fail to address the data blocks that one fewer
	// block would leave behind.
	if l.DataBitmapBlocks > 0 {
		shrunkDataBlocks := l.DataBlocks + 1
		if bitsToBlocks(shrunkDataBlocks) <= l.DataBitmapBlocks-1 {
			t.Fatalf("data bitmap is larger than the fixed point requires")
		}
	}
}

func bitsToBlocks(bits uint32) uint32 {
	n := bitmap.SerializedLen(bits)
	return (n + layout.BlockSize - 1) / layout.BlockSize
}

func TestInodeToBlockPacksSevenPerBlock(t *testing.T) {
	l := layout.Compute(100000)

	block0, off0 := l.InodeToBlock(0)
	block6, off6 := l.InodeToBlock(6)
	block7, off7 := l.InodeToBlock(7)

	if block0 != l.InodeTableStart || off0 != 0 {
		t.Fatalf("inode 0 should be at the start of the inode table")
	}
	if block6 != l.InodeTableStart || off6 != 6*layout.InodeSize {
		t.Fatalf("inode 6 should still be in the first inode-table block")
	}
	if block7 != l.InodeTableStart+1 || off7 != 0 {
		t.Fatalf("inode 7 should roll over into the second inode-table block")
	}
}

func TestDataBlockAddsDataStart(t *testing.T) {
	l := layout.Compute(100000)

	if got := l.DataBlock(0); got != l.DataStart {
		t.Fatalf("DataBlock(0) = %d, want %d", got, l.DataStart)
	}
	if got := l.DataBlock(5); got != l.DataStart+5 {
		t.Fatalf("DataBlock(5) = %d, want %d", got, l.DataStart+5)
	}
}

func TestDataToBlockPanicsOnZero(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for the unassigned (zero) data-block index")
		}
	}()
	layout.Compute(100000).DataToBlock(0)
}

func TestSmallDeviceDegradesGracefully(t *testing.T) {
	l := layout.Compute(4)
	if l.DataBlocks != 0 && l.DataStart > l.TotalBlocks {
		t.Fatalf("layout must not claim more blocks than exist")
	}
}

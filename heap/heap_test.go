package heap_test

import (
	"testing"

	"github.com/lemonos/lemonfs/heap"
)

func newArena(t *testing.T, size int) []byte {
	t.Helper()
	return make([]byte, size)
}

func TestAllocReturnsAlignedNonOverlappingRegions(t *testing.T) {
	a := heap.New(newArena(t, 4096))

	p1 := a.Alloc(64, 8)
	p2 := a.Alloc(128, 16)
	p3 := a.Alloc(32, 8)

	if p1%8 != 0 || p2%16 != 0 || p3%8 != 0 {
		t.Fatalf("misaligned allocation: p1=%d p2=%d p3=%d", p1, p2, p3)
	}

	overlap := func(a1, a2 uint64, s1, s2 uint64) bool {
		return a1 < a2+s2 && a2 < a1+s1
	}
	if overlap(p1, p2, 64, 128) || overlap(p2, p3, 128, 32) || overlap(p1, p3, 64, 32) {
		t.Fatalf("allocations overlap: p1=%d p2=%d p3=%d", p1, p2, p3)
	}
}

func TestAllocDeallocConservesSpaceAndMerges(t *testing.T) {
	a := heap.New(newArena(t, 4096))
	initialFree := a.Free()

	p1 := a.Alloc(64, 8)
	p2 := a.Alloc(64, 8)
	p3 := a.Alloc(64, 8)

	a.Dealloc(p1)
	a.Dealloc(p2)
	a.Dealloc(p3)

	if a.Free() != initialFree {
		t.Fatalf("free bytes after full round trip = %d, want %d", a.Free(), initialFree)
	}
	if a.FreeBlocks() != 1 {
		t.Fatalf("free-block count after full round trip = %d, want 1", a.FreeBlocks())
	}
}

func TestAllocDeallocSameSizeReturnsSameAddress(t *testing.T) {
	a := heap.New(newArena(t, 4096))

	p1 := a.Alloc(100, 8)
	a.Dealloc(p1)
	p2 := a.Alloc(100, 8)

	if p1 != p2 {
		t.Fatalf("expected reallocation of the same size in isolation to reuse the address: p1=%d p2=%d", p1, p2)
	}
}

func TestDeallocMergesBothNeighbours(t *testing.T) {
	a := heap.New(newArena(t, 4096))

	left := a.Alloc(800, 8)
	mid := a.Alloc(800, 8)
	right := a.Alloc(800, 8)

	a.Dealloc(mid)
	if got := a.FreeBlocks(); got != 2 {
		t.Fatalf("after freeing the middle block, expected 2 free-blocks, got %d", got)
	}

	a.Dealloc(left)
	if got := a.FreeBlocks(); got != 2 {
		t.Fatalf("after freeing the left block (merges with mid), expected 2 free-blocks, got %d", got)
	}

	initial := heap.New(newArena(t, 4096)).Free()
	a.Dealloc(right)
	if got := a.FreeBlocks(); got != 1 {
		t.Fatalf("after freeing the right block, expected 1 free-block, got %d", got)
	}
	if a.Free() != initial {
		t.Fatalf("total free bytes = %d, want %d", a.Free(), initial)
	}
}

func TestAllocWithAlignmentAndReuse(t *testing.T) {
	a := heap.New(newArena(t, 4096))

	p1 := a.Alloc(64, 128)
	if p1%128 != 0 {
		t.Fatalf("p1 = %d is not aligned to 128", p1)
	}

	a.Dealloc(p1)
	p2 := a.Alloc(64, 128)
	if p1 != p2 {
		t.Fatalf("expected same address on identical re-allocation: p1=%d p2=%d", p1, p2)
	}
}

func TestAllocOutOfMemoryPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic when the arena is exhausted")
		}
	}()
	a := heap.New(newArena(t, 64))
	a.Alloc(1024, 8)
}

func TestFragmentedDeallocationOrderIndependence(t *testing.T) {
	a := heap.New(newArena(t, 8192))
	initialFree := a.Free()

	var ptrs []uint64
	sizes := []uint64{16, 400, 8, 900, 64, 5, 200}
	for _, s := range sizes {
		ptrs = append(ptrs, a.Alloc(s, 8))
	}

	// Deallocate out of allocation order.
	order := []int{3, 0, 5, 1, 6, 2, 4}
	for _, i := range order {
		a.Dealloc(ptrs[i])
	}

	if a.Free() != initialFree {
		t.Fatalf("free bytes = %d, want %d", a.Free(), initialFree)
	}
	if a.FreeBlocks() != 1 {
		t.Fatalf("free-block count = %d, want 1", a.FreeBlocks())
	}
}

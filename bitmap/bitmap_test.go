package bitmap_test

import (
	"testing"

	"github.com/lemonos/lemonfs/bitmap"
)

func TestSetUnsetIsSet(t *testing.T) {
	b := bitmap.New(100)

	if b.IsSet(5) {
		t.Fatalf("expected bit 5 to start unset")
	}

	b.Set(5)
	if !b.IsSet(5) {
		t.Fatalf("expected bit 5 to be set")
	}

	b.Unset(5)
	if b.IsSet(5) {
		t.Fatalf("expected bit 5 to be unset again")
	}
}

func TestFindFree(t *testing.T) {
	b := bitmap.New(40)

	for i := uint32(0); i < 32; i++ {
		b.Set(i)
	}

	idx, ok := b.FindFree()
	if !ok || idx != 32 {
		t.Fatalf("expected first free bit at 32, got %d (ok=%v)", idx, ok)
	}

	b.Set(32)
	idx, ok = b.FindFree()
	if !ok || idx != 33 {
		t.Fatalf("expected first free bit at 33, got %d (ok=%v)", idx, ok)
	}
}

func TestFindFreeFull(t *testing.T) {
	b := bitmap.New(32)
	for i := uint32(0); i < b.Len(); i++ {
		b.Set(i)
	}

	if _, ok := b.FindFree(); ok {
		t.Fatalf("expected no free bit in a full bitmap")
	}
}

func TestDrainSetAscendingAndClears(t *testing.T) {
	b := bitmap.New(100)
	b.Set(3)
	b.Set(70)
	b.Set(1)
	b.Set(33)

	var got []uint32
	for i := range b.DrainSet() {
		got = append(got, i)
	}

	want := []uint32{1, 3, 33, 70}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}

	for _, i := range want {
		if b.IsSet(i) {
			t.Fatalf("bit %d should have been cleared by DrainSet", i)
		}
	}
}

func TestDrainSetIsLazy(t *testing.T) {
	b := bitmap.New(100)
	b.Set(1)
	b.Set(2)
	b.Set(3)

	count := 0
	for range b.DrainSet() {
		count++
		if count == 1 {
			break
		}
	}

	if !b.IsSet(2) || !b.IsSet(3) {
		t.Fatalf("breaking out of DrainSet early must leave remaining bits set")
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	b := bitmap.New(100)
	b.Set(4)
	b.Set(99)

	data, err := b.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %s", err)
	}

	var b2 bitmap.Bitmap
	if err := b2.UnmarshalBinary(data); err != nil {
		t.Fatalf("UnmarshalBinary: %s", err)
	}

	if !b2.IsSet(4) || !b2.IsSet(99) {
		t.Fatalf("round-tripped bitmap lost set bits")
	}
	if b2.IsSet(5) {
		t.Fatalf("round-tripped bitmap gained a spurious set bit")
	}
}

func TestIndexOutOfRangePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on out-of-range index")
		}
	}()
	b := bitmap.New(10)
	b.Set(1000)
}

package arena

import "testing"

type block struct {
	a, b int64
}

func TestAllocateGrows(t *testing.T) {
	f := New[block](0)
	h1, b1, err := f.Allocate()
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	b1.a = 42

	h2, b2, err := f.Allocate()
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	b2.a = 7

	if h1 == h2 {
		t.Fatalf("expected distinct handles, got %d and %d", h1, h2)
	}
	if f.Get(h1).a != 42 {
		t.Errorf("Get(h1).a = %d, want 42", f.Get(h1).a)
	}
	if f.InUse() != 2 {
		t.Errorf("InUse() = %d, want 2", f.InUse())
	}
}

func TestFreeAndReuseIsLIFO(t *testing.T) {
	f := New[block](0)
	h1, _, _ := f.Allocate()
	h2, _, _ := f.Allocate()

	f.Free(h2)
	f.Free(h1)

	// Most recently freed (h1) must be the next block reused.
	h3, _, err := f.Allocate()
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if h3 != h1 {
		t.Errorf("Allocate() after double-free = %d, want %d (LIFO reuse)", h3, h1)
	}
}

func TestAllocateZeroesReusedBlock(t *testing.T) {
	f := New[block](0)
	h1, b1, _ := f.Allocate()
	b1.a, b1.b = 1, 2
	f.Free(h1)

	_, b2, err := f.Allocate()
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if b2.a != 0 || b2.b != 0 {
		t.Errorf("reused block not zeroed: %+v", b2)
	}
}

func TestOutOfMemory(t *testing.T) {
	f := New[block](1)
	if _, _, err := f.Allocate(); err != nil {
		t.Fatalf("first Allocate should succeed: %v", err)
	}
	_, _, err := f.Allocate()
	if err == nil {
		t.Fatal("expected OutOfMemory error at limit")
	}
}

func TestBytesAllocatedCountsOnlyFreshBlocks(t *testing.T) {
	f := New[block](0)
	h1, _, _ := f.Allocate()
	before := f.BytesAllocated()
	f.Free(h1)
	f.Allocate() // reuses h1, should not grow BytesAllocated
	if f.BytesAllocated() != before {
		t.Errorf("BytesAllocated grew on reuse: before=%d after=%d", before, f.BytesAllocated())
	}
}

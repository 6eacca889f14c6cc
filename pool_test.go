package framer

import (
	"testing"
)

func TestPool_SharedReuse(t *testing.T) {
	pool := newTestPool(t, "SHARE_HEAP_8096")

	b1, err := pool.Acquire()
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	b1.Put([]byte("stale"))
	if err := pool.Release(b1); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	b2, err := pool.Acquire()
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if b1 != b2 {
		t.Error("shared pool should hand out the same buffer")
	}
	if b2.Position() != 0 || b2.Limit() != SmallCapacity {
		t.Errorf("acquired buffer not cleared: position %d, limit %d", b2.Position(), b2.Limit())
	}
	pool.Release(b2)

	stats := pool.Stats()
	if stats.Allocated != 1 || stats.Acquired != 2 || stats.InUse != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestPool_SharedExhausted(t *testing.T) {
	pool := newTestPool(t, "SHARE_HEAP_8096")

	b, err := pool.Acquire()
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer pool.Release(b)

	if _, err := pool.Acquire(); err != ErrPoolExhausted {
		t.Errorf("expected ErrPoolExhausted, got %v", err)
	}
}

func TestPool_SharedSlots(t *testing.T) {
	s, _ := ParseStrategy("SHARE_DIRECT_8096")
	pool, err := NewPool(s, 3)
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	defer pool.Close()

	var held []*Buffer
	for i := 0; i < 3; i++ {
		b, err := pool.Acquire()
		if err != nil {
			t.Fatalf("Acquire %d failed: %v", i, err)
		}
		if b.Kind() != Direct {
			t.Errorf("buffer %d is %s, want direct", i, b.Kind())
		}
		held = append(held, b)
	}
	if _, err := pool.Acquire(); err != ErrPoolExhausted {
		t.Errorf("expected ErrPoolExhausted, got %v", err)
	}
	for _, b := range held {
		pool.Release(b)
	}
}

func TestPool_PerCall(t *testing.T) {
	pool := newTestPool(t, "NEW_HEAP_64768")

	b1, err := pool.Acquire()
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	b2, err := pool.Acquire()
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if b1 == b2 {
		t.Error("per-call pool should allocate a fresh buffer each time")
	}
	if b1.Capacity() != LargeCapacity {
		t.Errorf("capacity = %d, want %d", b1.Capacity(), LargeCapacity)
	}

	pool.Release(b1)
	pool.Release(b2)

	stats := pool.Stats()
	if stats.Allocated != 2 || stats.InUse != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestPool_ReleaseErrors(t *testing.T) {
	pool := newTestPool(t, "SHARE_HEAP_8096")

	foreign, _ := newBuffer(SmallCapacity, Heap)
	if err := pool.Release(foreign); err != ErrNotCheckedOut {
		t.Errorf("expected ErrNotCheckedOut, got %v", err)
	}

	b, _ := pool.Acquire()
	if err := pool.Release(b); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if err := pool.Release(b); err != ErrNotCheckedOut {
		t.Errorf("double release: expected ErrNotCheckedOut, got %v", err)
	}
}

func TestPool_Close(t *testing.T) {
	s, _ := ParseStrategy("SHARE_DIRECT_64768")
	pool, err := NewPool(s, 2)
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}

	b, _ := pool.Acquire()
	if err := pool.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := pool.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}

	if _, err := pool.Acquire(); err != ErrPoolClosed {
		t.Errorf("expected ErrPoolClosed, got %v", err)
	}

	// outstanding buffers are freed on release
	if err := pool.Release(b); err != nil {
		t.Fatalf("Release after Close failed: %v", err)
	}
	if b.Capacity() != 0 {
		t.Error("buffer released after Close should be freed")
	}
}

func TestNewPool_TooSmall(t *testing.T) {
	_, err := NewPool(Strategy{Name: "TINY", Capacity: PrefixLen}, 1)
	if err == nil {
		t.Error("expected error for capacity not above the prefix size")
	}
}

package framer

import (
	"fmt"
	"io"
)

// MemoryKind selects where a buffer's bytes live.
type MemoryKind int

const (
	// Heap buffers are ordinary Go-managed byte slices.
	Heap MemoryKind = iota
	// Direct buffers are anonymous mappings outside the Go heap.
	// They are never scanned or moved by the garbage collector and must be
	// released explicitly.
	Direct
)

func (k MemoryKind) String() string {
	switch k {
	case Heap:
		return "heap"
	case Direct:
		return "direct"
	default:
		return fmt.Sprintf("MemoryKind(%d)", int(k))
	}
}

// Buffer is a fixed-capacity byte region with a write cursor (position) and a
// usable bound (limit). Heap and Direct buffers behave identically.
type Buffer struct {
	data     []byte
	kind     MemoryKind
	position int
	limit    int
	free     func([]byte) error
}

func newBuffer(capacity int, kind MemoryKind) (*Buffer, error) {
	b := &Buffer{kind: kind}
	switch kind {
	case Direct:
		data, err := allocDirect(capacity)
		if err != nil {
			return nil, err
		}
		b.data = data
		b.free = freeDirect
	default:
		b.data = make([]byte, capacity)
	}
	b.limit = capacity
	return b, nil
}

// Kind reports the backing memory of the buffer.
func (b *Buffer) Kind() MemoryKind { return b.kind }

// Capacity is fixed at construction.
func (b *Buffer) Capacity() int { return len(b.data) }

// Position is the number of bytes written since the last Clear.
func (b *Buffer) Position() int { return b.position }

// Limit is the end of the writable region.
func (b *Buffer) Limit() int { return b.limit }

// Remaining returns the free space left before the limit.
func (b *Buffer) Remaining() int { return b.limit - b.position }

// HasRemaining reports whether the writable region is not yet full.
func (b *Buffer) HasRemaining() bool { return b.position < b.limit }

// Clear resets the cursor and restores the limit to full capacity.
// The contents are left untouched.
func (b *Buffer) Clear() {
	b.position = 0
	b.limit = len(b.data)
}

// SetLimit restricts the writable region to [0, n).
// It panics if n is negative, beyond capacity or below the current position.
func (b *Buffer) SetLimit(n int) {
	if n < b.position || n > len(b.data) {
		panic(fmt.Sprintf("framer: limit %d out of range [%d, %d]", n, b.position, len(b.data)))
	}
	b.limit = n
}

// Bytes returns the filled region [0, position). The slice aliases the
// buffer and is only valid until the buffer is cleared or released.
func (b *Buffer) Bytes() []byte { return b.data[:b.position] }

// Put copies as much of p as fits before the limit and returns the count.
func (b *Buffer) Put(p []byte) int {
	n := copy(b.data[b.position:b.limit], p)
	b.position += n
	return n
}

// Fill issues reads into the writable region until it is full or a read
// returns no bytes. It returns the number of bytes added by this call.
// An error is returned together with whatever was read before it.
func (b *Buffer) Fill(r io.Reader) (int, error) {
	start := b.position
	for b.position < b.limit {
		n, err := r.Read(b.data[b.position:b.limit])
		if n < 0 {
			n = 0
		}
		b.position += n
		if err != nil {
			return b.position - start, err
		}
		if n == 0 {
			break
		}
	}
	return b.position - start, nil
}

func (b *Buffer) release() error {
	if b.free == nil || b.data == nil {
		return nil
	}
	err := b.free(b.data)
	b.data = nil
	b.position, b.limit = 0, 0
	return err
}

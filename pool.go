package framer

import (
	"sync"

	"github.com/eapache/queue"
	"github.com/pkg/errors"
)

// Pool errors.
var (
	// ErrPoolExhausted is returned when every shared buffer is checked out.
	// Seeing it means two transfers tried to use the same shared buffer.
	ErrPoolExhausted = errors.New("buffer pool exhausted")
	// ErrNotCheckedOut is returned when releasing a buffer the pool did not hand out.
	ErrNotCheckedOut = errors.New("buffer not checked out")
	// ErrPoolClosed is returned when acquiring from a closed pool.
	ErrPoolClosed = errors.New("buffer pool closed")
)

// PoolStats is a snapshot of pool accounting.
type PoolStats struct {
	Allocated int64 // buffers created over the pool's lifetime
	InUse     int64 // buffers currently checked out
	Acquired  int64 // successful Acquire calls
}

// Pool hands out buffers according to a Strategy. A buffer belongs to exactly
// one caller between Acquire and Release.
//
// For Shared strategies the pool owns a fixed set of slots allocated up front;
// size it to the number of transfers that may be in flight at once. For PerCall
// strategies every Acquire allocates and every Release frees.
type Pool struct {
	strategy Strategy

	mu     sync.Mutex
	free   *queue.Queue
	out    map[*Buffer]struct{}
	stats  PoolStats
	closed bool
}

// NewPool builds a pool for the strategy. slots is the number of shared
// buffers and is ignored for PerCall strategies; values below one mean one.
func NewPool(strategy Strategy, slots int) (*Pool, error) {
	if strategy.Capacity <= PrefixLen {
		return nil, errors.Errorf("framer: strategy %s capacity %d too small", strategy.Name, strategy.Capacity)
	}
	if slots < 1 {
		slots = 1
	}

	p := &Pool{
		strategy: strategy,
		free:     queue.New(),
		out:      make(map[*Buffer]struct{}),
	}

	if strategy.Sharing == Shared {
		for i := 0; i < slots; i++ {
			b, err := newBuffer(strategy.Capacity, strategy.Memory)
			if err != nil {
				_ = p.Close()
				return nil, err
			}
			p.stats.Allocated++
			p.free.Add(b)
		}
	}

	return p, nil
}

// Strategy returns the strategy the pool was built with.
func (p *Pool) Strategy() Strategy { return p.strategy }

// Capacity of every buffer handed out by the pool.
func (p *Pool) Capacity() int { return p.strategy.Capacity }

// Acquire checks out a cleared buffer.
func (p *Pool) Acquire() (*Buffer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrPoolClosed
	}

	var b *Buffer
	if p.strategy.Sharing == Shared {
		if p.free.Length() == 0 {
			return nil, ErrPoolExhausted
		}
		b = p.free.Remove().(*Buffer)
	} else {
		nb, err := newBuffer(p.strategy.Capacity, p.strategy.Memory)
		if err != nil {
			return nil, err
		}
		p.stats.Allocated++
		b = nb
	}

	b.Clear()
	p.out[b] = struct{}{}
	p.stats.InUse++
	p.stats.Acquired++
	return b, nil
}

// Release returns a buffer obtained from Acquire. The buffer must not be
// used afterwards.
func (p *Pool) Release(b *Buffer) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.out[b]; !ok {
		return ErrNotCheckedOut
	}
	delete(p.out, b)
	p.stats.InUse--

	if p.strategy.Sharing == Shared && !p.closed {
		p.free.Add(b)
		return nil
	}
	return b.release()
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Close frees the idle buffers. Buffers still checked out are freed when
// they are released.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	var first error
	for p.free.Length() > 0 {
		b := p.free.Remove().(*Buffer)
		if err := b.release(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

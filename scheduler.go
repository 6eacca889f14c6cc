package framer

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Scheduler decides how accepted connections are run.
type Scheduler interface {
	// Go runs task, possibly on another goroutine. It may block until the
	// scheduler has room for it.
	Go(ctx context.Context, task func(context.Context))
	// Wait blocks until every task started by Go has returned.
	Wait()
	// Slots is the number of tasks that may run at once.
	Slots() int
}

// Sequential returns a scheduler that runs each task to completion on the
// caller's goroutine. With it the server handles one connection at a time and
// a single shared buffer is enough.
func Sequential() Scheduler { return sequential{} }

type sequential struct{}

func (sequential) Go(ctx context.Context, task func(context.Context)) { task(ctx) }
func (sequential) Wait()                                              {}
func (sequential) Slots() int                                         { return 1 }

// Concurrent returns a scheduler that runs up to n tasks at once. Handlers
// used with it must be able to acquire n buffers at the same time.
func Concurrent(n int) Scheduler {
	if n <= 1 {
		return Sequential()
	}
	g := new(errgroup.Group)
	g.SetLimit(n)
	return &concurrent{group: g, n: n}
}

type concurrent struct {
	group *errgroup.Group
	n     int
}

func (c *concurrent) Go(ctx context.Context, task func(context.Context)) {
	c.group.Go(func() error {
		task(ctx)
		return nil
	})
}

func (c *concurrent) Wait() { _ = c.group.Wait() }

func (c *concurrent) Slots() int { return c.n }

package channel

import (
	"context"
	"sync"
	"time"

	"github.com/arloliu/fanin/types"
)

// Channel is a bounded multi-producer, single-consumer buffer with a terminal state.
type Channel[T any] struct {
	buf  chan T
	done chan struct{}

	mu        sync.Mutex
	completed bool
	err       error

	// writers tracks Write calls admitted before completion. The reader waits
	// for them before its final drain so an admitted item is never lost.
	writers sync.WaitGroup
}

// New creates a channel holding at most capacity buffered items.
//
// Parameters:
//   - capacity: Buffer bound (values below 1 are raised to 1)
//
// Returns:
//   - *Channel[T]: Open channel
func New[T any](capacity int) *Channel[T] {
	if capacity < 1 {
		capacity = 1
	}

	return &Channel[T]{
		buf:  make(chan T, capacity),
		done: make(chan struct{}),
	}
}

// Write appends item, blocking while the buffer is full.
//
// Returns:
//   - error: nil once buffered; types.ErrChannelCompleted if the channel completed
//     before the item was accepted; ctx.Err() if ctx ended first
func (c *Channel[T]) Write(ctx context.Context, item T) error {
	c.mu.Lock()
	if c.completed {
		c.mu.Unlock()
		return types.ErrChannelCompleted
	}
	c.writers.Add(1)
	c.mu.Unlock()
	defer c.writers.Done()

	select {
	case c.buf <- item:
		return nil
	default:
	}

	select {
	case c.buf <- item:
		return nil
	case <-c.done:
		return types.ErrChannelCompleted
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryComplete moves the channel to its terminal state.
//
// The first caller wins; later calls are no-ops. A nil err completes the channel
// cleanly, a non-nil err is surfaced to the reader after buffered items.
//
// Returns:
//   - bool: true if this call completed the channel
func (c *Channel[T]) TryComplete(err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.completed {
		return false
	}
	c.completed = true
	c.err = err
	close(c.done)

	return true
}

// Receive returns the next buffered item.
//
// Receive must only be called from a single goroutine.
//
// Parameters:
//   - ctx: Context for cancellation
//   - maxWait: Maximum time to block for an item (<= 0 blocks until an item or completion)
//
// Returns:
//   - T: The item (zero value unless ok)
//   - bool: true if an item was returned
//   - error: nil with ok=false when maxWait elapsed; types.ErrStreamEnded after a clean
//     completion; the completion error after an erroring completion; ctx.Err() on cancel
func (c *Channel[T]) Receive(ctx context.Context, maxWait time.Duration) (T, bool, error) {
	var zero T

	select {
	case item := <-c.buf:
		return item, true, nil
	default:
	}

	var timeout <-chan time.Time
	if maxWait > 0 {
		timer := time.NewTimer(maxWait)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case item := <-c.buf:
		return item, true, nil
	case <-c.done:
		return c.drain()
	case <-ctx.Done():
		return zero, false, ctx.Err()
	case <-timeout:
		return zero, false, nil
	}
}

// drain returns remaining items after completion, then the terminal result.
func (c *Channel[T]) drain() (T, bool, error) {
	var zero T

	c.writers.Wait()

	select {
	case item := <-c.buf:
		return item, true, nil
	default:
	}

	if c.err != nil {
		return zero, false, c.err
	}

	return zero, false, types.ErrStreamEnded
}

// Done returns a channel closed when the channel reaches its terminal state.
func (c *Channel[T]) Done() <-chan struct{} {
	return c.done
}

// Err returns the completion error, nil while open or after a clean completion.
func (c *Channel[T]) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.err
}

// Completed reports whether TryComplete has been called.
func (c *Channel[T]) Completed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.completed
}

// Len returns the number of buffered items.
func (c *Channel[T]) Len() int {
	return len(c.buf)
}

// Cap returns the fixed buffer capacity.
func (c *Channel[T]) Cap() int {
	return cap(c.buf)
}

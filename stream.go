package fanin

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"sync"
	"time"

	"github.com/arloliu/fanin/internal/channel"
	"github.com/arloliu/fanin/internal/supervisor"
)

// Stream is a lazy, forward-only, non-restartable sequence of events read from
// one or more partitions.
//
// Next and All must be used from a single goroutine. Close may be called
// concurrently with them and any number of times.
type Stream struct {
	sup        *supervisor.Supervisor
	ch         *channel.Channel[Event]
	partitions []string
	maxWait    time.Duration
	shutdown   time.Duration

	logger  Logger
	metrics MetricsCollector
	onClose func(*Stream)

	mu       sync.Mutex
	terminal error

	closeOnce sync.Once
}

func newStream(
	sup *supervisor.Supervisor,
	maxWait, shutdown time.Duration,
	logger Logger,
	metrics MetricsCollector,
	onClose func(*Stream),
) *Stream {
	return &Stream{
		sup:        sup,
		ch:         sup.Channel(),
		partitions: sup.Partitions(),
		maxWait:    maxWait,
		shutdown:   shutdown,
		logger:     logger,
		metrics:    metrics,
		onClose:    onClose,
	}
}

// Next returns the next event.
//
// Behavior:
//   - (event, nil) for every buffered event, in per-partition order
//   - (nil, nil) when ReadOptions.MaxWaitTime elapsed without data
//   - (nil, ErrStreamEnded) after a clean end of the stream
//   - (nil, err) with the first fatal reader error after the stream was torn down
//   - (nil, err) satisfying errors.Is(err, context.Canceled) (or DeadlineExceeded)
//     when ctx ended; the stream is torn down before Next returns
//
// Once Next returned a terminal error it returns the same error forever.
func (s *Stream) Next(ctx context.Context) (*Event, error) {
	if err := s.terminalErr(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		s.teardown(ctx)
		return nil, s.setTerminal(fmt.Errorf("read stream: %w", err))
	}

	ev, ok, err := s.ch.Receive(ctx, s.maxWait)
	if ok {
		s.metrics.RecordChannelDepth(s.ch.Len())
		return &ev, nil
	}
	if err == nil {
		return nil, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		err = fmt.Errorf("read stream: %w", ctxErr)
	}

	s.teardown(ctx)

	return nil, s.setTerminal(err)
}

// All returns a range-over-func adapter over Next.
//
// A nil event with a nil error is the "no data" signal. The sequence ends after
// a clean end of the stream without yielding an error, or after yielding exactly
// one terminal error. Breaking out of the loop closes the stream.
//
// Example:
//
//	for ev, err := range stream.All(ctx) {
//	    if err != nil {
//	        return err
//	    }
//	    if ev == nil {
//	        continue // no data within MaxWaitTime
//	    }
//	    handle(ev)
//	}
func (s *Stream) All(ctx context.Context) iter.Seq2[*Event, error] {
	return func(yield func(*Event, error) bool) {
		for {
			ev, err := s.Next(ctx)
			if err != nil {
				if !errors.Is(err, ErrStreamEnded) {
					yield(nil, err)
				}

				return
			}

			if !yield(ev, nil) {
				s.teardown(ctx)
				return
			}
		}
	}
}

// Close stops every reader of the stream and waits until all have terminated.
//
// Events still buffered remain readable through Next, which then reports the
// end of the stream. Close is idempotent and safe to call concurrently.
//
// A Close that returns an error leaves the stream open; a later Close waits for
// the readers again.
//
// Returns:
//   - error: ctx.Err() if ctx ended before the readers terminated
func (s *Stream) Close(ctx context.Context) error {
	if err := s.sup.Stop(ctx); err != nil {
		s.logger.Debug("stream close interrupted", "partitions", len(s.partitions), "error", err)
		return err
	}

	s.closeOnce.Do(func() {
		if s.onClose != nil {
			s.onClose(s)
		}
		s.logger.Debug("stream closed", "partitions", len(s.partitions))
	})

	return nil
}

// Partitions returns the partition ids the stream reads.
func (s *Stream) Partitions() []string {
	return slices.Clone(s.partitions)
}

// ActiveReaders returns the number of readers that have not terminated yet.
func (s *Stream) ActiveReaders() int {
	return s.sup.ActiveReaders()
}

// ReaderStates returns a snapshot of every reader's state by partition.
func (s *Stream) ReaderStates() map[string]ReaderState {
	return s.sup.ReaderStates()
}

// teardown closes the stream on behalf of Next or All, whose ctx may already be done.
func (s *Stream) teardown(ctx context.Context) {
	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdown)
	defer cancel()

	if err := s.Close(closeCtx); err != nil {
		s.logger.Warn("stream teardown timed out", "timeout", s.shutdown, "error", err)
	}
}

func (s *Stream) terminalErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.terminal
}

// setTerminal records err as the sticky terminal result unless one exists and
// returns the recorded result.
func (s *Stream) setTerminal(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.terminal == nil {
		s.terminal = err
	}

	return s.terminal
}

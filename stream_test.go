package fanin

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/fanin/internal/logging"
	fanintest "github.com/arloliu/fanin/testing"
	"github.com/arloliu/fanin/types"
)

const testMaxWait = 50 * time.Millisecond

func newTestConsumer(t *testing.T, tr *fanintest.ScriptedTransport, opts ...Option) *Consumer {
	t.Helper()

	cfg := TestConfig()
	opts = append([]Option{WithLogger(logging.NewTest(t))}, opts...)
	c, err := NewConsumer(&cfg, tr, tr, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, c.Close(context.Background())) })

	return c
}

// collect reads n events, skipping "no data" signals.
func collect(t *testing.T, s *Stream, n int) []*Event {
	t.Helper()

	var events []*Event
	deadline := time.Now().Add(5 * time.Second)
	for len(events) < n {
		require.True(t, time.Now().Before(deadline), "timed out after %d of %d events", len(events), n)

		ev, err := s.Next(t.Context())
		require.NoError(t, err)
		if ev != nil {
			events = append(events, ev)
		}
	}

	return events
}

// nextTerminal calls Next until it returns an error.
func nextTerminal(t *testing.T, s *Stream) ([]*Event, error) {
	t.Helper()

	var events []*Event
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		ev, err := s.Next(t.Context())
		if err != nil {
			return events, err
		}
		if ev != nil {
			events = append(events, ev)
		}
	}
	t.Fatal("stream did not reach a terminal result")

	return nil, nil
}

func sequences(events []*Event) map[string][]uint64 {
	out := make(map[string][]uint64)
	for _, ev := range events {
		out[ev.Partition] = append(out[ev.Partition], ev.Sequence)
	}

	return out
}

func countingHooks() (*Hooks, *atomic.Int32, *atomic.Int32, *atomic.Int32) {
	var started, stopped, completed atomic.Int32
	h := &Hooks{
		OnReaderStarted: func(context.Context, string) error {
			started.Add(1)
			return nil
		},
		OnReaderStopped: func(context.Context, string, error) error {
			stopped.Add(1)
			return nil
		},
		OnStreamCompleted: func(context.Context, error) error {
			completed.Add(1)
			return nil
		},
	}

	return h, &started, &stopped, &completed
}

func TestStream_DeliversEventsInPartitionOrder(t *testing.T) {
	tr := fanintest.NewScriptedTransport().
		Script("0", fanintest.Step{Events: fanintest.Events("0", 1, 20)}).
		Script("1", fanintest.Step{Events: fanintest.Events("1", 1, 7)}, fanintest.Step{Events: fanintest.Events("1", 8, 5)})
	c := newTestConsumer(t, tr)

	s, err := c.ReadAll(t.Context(), ReadOptions{StartPosition: Earliest(), MaxWaitTime: testMaxWait})
	require.NoError(t, err)

	events := collect(t, s, 32)
	got := sequences(events)
	require.Len(t, got["0"], 20)
	require.Len(t, got["1"], 12)
	require.IsIncreasing(t, got["0"])
	require.IsIncreasing(t, got["1"])

	for _, ev := range events {
		require.Equal(t, ev.Partition, ev.Context.Partition)
		require.False(t, ev.Context.Tracked)
	}

	require.NoError(t, s.Close(t.Context()))
	_, err = nextTerminal(t, s)
	require.ErrorIs(t, err, ErrStreamEnded)
	require.Zero(t, tr.OpenHandles())
}

func TestStream_NoDataSignal(t *testing.T) {
	tr := fanintest.NewScriptedTransport().Script("idle")
	c := newTestConsumer(t, tr)

	s, err := c.ReadPartition(t.Context(), "idle", ReadOptions{MaxWaitTime: 20 * time.Millisecond})
	require.NoError(t, err)

	started := time.Now()
	ev, err := s.Next(t.Context())
	require.NoError(t, err)
	require.Nil(t, ev)
	require.GreaterOrEqual(t, time.Since(started), 20*time.Millisecond)

	// the signal is not terminal
	ev, err = s.Next(t.Context())
	require.NoError(t, err)
	require.Nil(t, ev)
}

func TestStream_FatalErrorSurfacesAfterTeardown(t *testing.T) {
	fatal := types.NonRetryable("1", "receive", ErrConsumerDisconnected)
	tr := fanintest.NewScriptedTransport().
		Script("0").
		Script("1", fanintest.Step{Events: fanintest.Events("1", 1, 5)}, fanintest.Step{Delay: 100 * time.Millisecond, Err: fatal}).
		Script("2")
	hooks, started, stopped, completed := countingHooks()
	c := newTestConsumer(t, tr, WithHooks(hooks))

	s, err := c.ReadAll(t.Context(), ReadOptions{StartPosition: Earliest()})
	require.NoError(t, err)

	var events []*Event
	var errs []error
	for ev, err := range s.All(t.Context()) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ev != nil {
			events = append(events, ev)
		}
	}

	require.Len(t, errs, 1)
	require.ErrorIs(t, errs[0], ErrConsumerDisconnected)
	require.ErrorIs(t, errs[0], ErrNonRetryable)
	require.Equal(t, []uint64{1, 2, 3, 4, 5}, sequences(events)["1"])

	require.Zero(t, s.ActiveReaders())
	for p, state := range s.ReaderStates() {
		require.Equal(t, ReaderStopped, state, "partition %s", p)
	}
	for _, p := range []string{"0", "1", "2"} {
		require.Equal(t, 1, tr.Closed(p), "partition %s", p)
	}
	require.Zero(t, tr.OpenHandles())
	require.Equal(t, int32(3), started.Load())
	require.Equal(t, int32(3), stopped.Load())
	require.Equal(t, int32(1), completed.Load())

	// non-restartable
	ev, err := s.Next(t.Context())
	require.Nil(t, ev)
	require.Equal(t, errs[0], err)
}

func TestStream_BreakClosesStream(t *testing.T) {
	tr := fanintest.NewScriptedTransport().
		Script("0", fanintest.Step{Events: fanintest.Events("0", 1, 50)}).
		Script("1", fanintest.Step{Events: fanintest.Events("1", 1, 50)})
	hooks, _, stopped, completed := countingHooks()
	c := newTestConsumer(t, tr, WithHooks(hooks))

	s, err := c.ReadAll(t.Context(), ReadOptions{StartPosition: Earliest(), MaxWaitTime: testMaxWait})
	require.NoError(t, err)

	seen := 0
	for ev, err := range s.All(t.Context()) {
		require.NoError(t, err)
		if ev == nil {
			continue
		}
		seen++
		if seen == 2 {
			break
		}
	}

	require.Equal(t, 2, seen)
	require.Equal(t, int32(1), completed.Load())
	require.Equal(t, int32(2), stopped.Load())
	require.Zero(t, tr.OpenHandles())
	require.Zero(t, s.ActiveReaders())
	require.Zero(t, c.openStreams())

	require.NoError(t, s.Close(t.Context()))
	require.Equal(t, int32(1), completed.Load())

	// buffered events stay readable, then the stream ends
	_, err = nextTerminal(t, s)
	require.ErrorIs(t, err, ErrStreamEnded)
}

func TestStream_ContextCancelMidIteration(t *testing.T) {
	tr := fanintest.NewScriptedTransport().
		Script("0", fanintest.Step{Events: fanintest.Events("0", 1, 50)}).
		Script("1", fanintest.Step{Events: fanintest.Events("1", 1, 50)})
	hooks, _, _, completed := countingHooks()
	c := newTestConsumer(t, tr, WithHooks(hooks))

	s, err := c.ReadAll(t.Context(), ReadOptions{StartPosition: Earliest(), MaxWaitTime: testMaxWait})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	got := 0
	for got < 2 {
		ev, err := s.Next(ctx)
		require.NoError(t, err)
		if ev != nil {
			got++
		}
	}
	cancel()

	ev, err := s.Next(ctx)
	require.Nil(t, ev)
	require.ErrorIs(t, err, context.Canceled)
	require.True(t, IsCancellation(err))

	require.Equal(t, int32(1), completed.Load())
	require.Zero(t, tr.OpenHandles())
	require.Equal(t, 1, tr.Closed("0"))
	require.Equal(t, 1, tr.Closed("1"))

	// sticky even with a live context
	_, err = s.Next(t.Context())
	require.ErrorIs(t, err, context.Canceled)
}

func TestStream_ReadContextCancelEndsStream(t *testing.T) {
	tr := fanintest.NewScriptedTransport().Script("0").Script("1")
	c := newTestConsumer(t, tr)

	readCtx, cancel := context.WithCancel(t.Context())
	s, err := c.ReadAll(readCtx, ReadOptions{})
	require.NoError(t, err)

	cancel()

	_, err = nextTerminal(t, s)
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, tr.OpenHandles())
}

func TestStream_DeadlineDuringBlockingWait(t *testing.T) {
	tr := fanintest.NewScriptedTransport().Script("0")
	c := newTestConsumer(t, tr)

	s, err := c.ReadPartition(t.Context(), "0", ReadOptions{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(t.Context(), 30*time.Millisecond)
	defer cancel()

	ev, err := s.Next(ctx)
	require.Nil(t, ev)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Zero(t, s.ActiveReaders())
	require.Zero(t, tr.OpenHandles())
}

func TestStream_CloseConcurrentWithNext(t *testing.T) {
	tr := fanintest.NewScriptedTransport().Script("0").Script("1")
	c := newTestConsumer(t, tr)

	s, err := c.ReadAll(t.Context(), ReadOptions{})
	require.NoError(t, err)

	result := make(chan error, 1)
	go func() {
		_, err := s.Next(t.Context())
		result <- err
	}()

	time.Sleep(20 * time.Millisecond)

	var wg sync.WaitGroup
	for range 4 {
		wg.Go(func() {
			assert.NoError(t, s.Close(context.Background()))
		})
	}
	wg.Wait()

	select {
	case err := <-result:
		require.ErrorIs(t, err, ErrStreamEnded)
	case <-time.After(5 * time.Second):
		t.Fatal("Next did not return after Close")
	}
	require.Equal(t, 1, tr.Closed("0"))
	require.Equal(t, 1, tr.Closed("1"))
}

func TestStream_AllEndsCleanlyWithoutError(t *testing.T) {
	tr := fanintest.NewScriptedTransport().
		Script("0", fanintest.Step{Events: fanintest.Events("0", 1, 3)})
	c := newTestConsumer(t, tr)

	s, err := c.ReadAll(t.Context(), ReadOptions{StartPosition: Earliest(), MaxWaitTime: testMaxWait})
	require.NoError(t, err)

	var events []*Event
	for ev, err := range s.All(t.Context()) {
		require.NoError(t, err)
		if ev == nil {
			continue
		}
		events = append(events, ev)
		if len(events) == 3 {
			require.NoError(t, s.Close(t.Context()))
		}
	}

	require.Len(t, events, 3)
}

func TestStream_Partitions(t *testing.T) {
	tr := fanintest.NewScriptedTransport().Script("b").Script("a").Script("c")
	c := newTestConsumer(t, tr)

	all, err := c.ReadAll(t.Context(), ReadOptions{})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, all.Partitions())

	parts := all.Partitions()
	parts[0] = "mutated"
	require.Equal(t, "a", all.Partitions()[0])

	one, err := c.ReadPartition(t.Context(), "b", ReadOptions{})
	require.NoError(t, err)
	require.Equal(t, []string{"b"}, one.Partitions())
}

func TestStream_BackpressureBoundsBuffer(t *testing.T) {
	tr := fanintest.NewScriptedTransport().
		Script("0", fanintest.Step{Events: fanintest.Events("0", 1, 100)})
	c := newTestConsumer(t, tr)

	s, err := c.ReadPartition(t.Context(), "0", ReadOptions{StartPosition: Earliest(), MaxWaitTime: testMaxWait})
	require.NoError(t, err)

	capacity := s.ch.Cap()
	require.Equal(t, TestConfig().MaxBatchSize, capacity)

	require.Eventually(t, func() bool { return s.ch.Len() == capacity }, 5*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, capacity, s.ch.Len())

	events := collect(t, s, 100)
	require.IsIncreasing(t, sequences(events)["0"])
}

func TestStream_FirstFatalErrorWins(t *testing.T) {
	first := types.NonRetryable("0", "receive", ErrStreamClosed)
	second := types.Exhausted("1", "receive", errors.New("out of memory"))
	tr := fanintest.NewScriptedTransport().
		Script("0", fanintest.Step{Err: first}).
		Script("1", fanintest.Step{Delay: 200 * time.Millisecond, Err: second})
	c := newTestConsumer(t, tr)

	s, err := c.ReadAll(t.Context(), ReadOptions{})
	require.NoError(t, err)

	_, err = nextTerminal(t, s)
	require.ErrorIs(t, err, ErrStreamClosed)
	require.False(t, IsResourceExhaustion(err))
}

func TestStream_CloseRetriesAfterTimeout(t *testing.T) {
	tr := fanintest.NewScriptedTransport().Script("0")
	release := make(chan struct{})
	hooks := &Hooks{
		OnReaderStopped: func(context.Context, string, error) error {
			<-release
			return nil
		},
	}
	c := newTestConsumer(t, tr, WithHooks(hooks))

	s, err := c.ReadAll(t.Context(), ReadOptions{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, s.Close(ctx), context.DeadlineExceeded)
	require.Equal(t, 1, c.openStreams(), "an interrupted close keeps the stream tracked")

	expired, cancelExpired := context.WithCancel(t.Context())
	cancelExpired()
	require.ErrorIs(t, c.Close(expired), context.Canceled)
	require.Equal(t, 1, c.openStreams())

	closed := make(chan error, 1)
	go func() { closed <- s.Close(t.Context()) }()

	select {
	case err := <-closed:
		t.Fatalf("Close returned %v while a reader was still stopping", err)
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	select {
	case err := <-closed:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return after the reader stopped")
	}
	require.Zero(t, c.openStreams())
	require.Zero(t, tr.OpenHandles())
	require.NoError(t, c.Close(t.Context()))
}

package testing

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/arloliu/fanin/types"
)

// Step is one scripted result of a Receive call.
type Step struct {
	// Events returned by the call. Batches larger than the requested maxCount
	// are split across consecutive calls.
	Events []types.Event

	// Err is returned instead of events when non-nil.
	Err error

	// Delay is waited (observing ctx) before the result is returned.
	Delay time.Duration
}

// ScriptedTransport is an in-memory types.TransportFactory and
// types.PartitionDiscovery driven by per-partition scripts.
//
// Once a partition's script is exhausted, Receive behaves like an idle
// partition: it waits for maxWait (or ctx) and returns an empty batch.
// All methods are safe for concurrent use.
//
// Example:
//
//	tr := fanintest.NewScriptedTransport().
//	    Script("0", fanintest.Step{Events: fanintest.Events("0", 1, 5)}).
//	    Script("1", fanintest.Step{Err: types.NonRetryable("1", "receive", io.EOF)})
//	cfg := fanin.TestConfig()
//	consumer, _ := fanin.NewConsumer(&cfg, tr, tr)
type ScriptedTransport struct {
	mu       sync.Mutex
	scripts  map[string][]Step
	openErrs map[string][]error
	starts   map[string]types.StartPosition
	opened   map[string]int
	closed   map[string]int
	receives map[string]int
	listErr  error
}

var (
	_ types.TransportFactory   = (*ScriptedTransport)(nil)
	_ types.PartitionDiscovery = (*ScriptedTransport)(nil)
)

// NewScriptedTransport creates an empty scripted transport.
func NewScriptedTransport() *ScriptedTransport {
	return &ScriptedTransport{
		scripts:  make(map[string][]Step),
		openErrs: make(map[string][]error),
		starts:   make(map[string]types.StartPosition),
		opened:   make(map[string]int),
		closed:   make(map[string]int),
		receives: make(map[string]int),
	}
}

// Script appends receive steps for a partition and registers it for discovery.
func (s *ScriptedTransport) Script(partition string, steps ...Step) *ScriptedTransport {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.scripts[partition] = append(s.scripts[partition], steps...)

	return s
}

// FailOpen makes the next len(errs) Open calls for partition fail with errs in order.
func (s *ScriptedTransport) FailOpen(partition string, errs ...error) *ScriptedTransport {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.scripts[partition]; !ok {
		s.scripts[partition] = nil
	}
	s.openErrs[partition] = append(s.openErrs[partition], errs...)

	return s
}

// FailList makes ListPartitionIDs return err.
func (s *ScriptedTransport) FailList(err error) *ScriptedTransport {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.listErr = err

	return s
}

// ListPartitionIDs returns the scripted partitions in sorted order.
func (s *ScriptedTransport) ListPartitionIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listErr != nil {
		return nil, s.listErr
	}

	ids := make([]string, 0, len(s.scripts))
	for id := range s.scripts {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	return ids, nil
}

// Open returns a consumer that replays the partition's script.
func (s *ScriptedTransport) Open(ctx context.Context, partitionID string, start types.StartPosition, _ types.OpenOptions) (types.TransportConsumer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if errs := s.openErrs[partitionID]; len(errs) > 0 {
		s.openErrs[partitionID] = errs[1:]
		return nil, errs[0]
	}

	s.opened[partitionID]++
	s.starts[partitionID] = start

	return &scriptedConsumer{
		owner:     s,
		partition: partitionID,
		steps:     slices.Clone(s.scripts[partitionID]),
	}, nil
}

// Opened returns how many consumers were opened for partition.
func (s *ScriptedTransport) Opened(partition string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.opened[partition]
}

// Closed returns how many Close calls partition's consumers received.
func (s *ScriptedTransport) Closed(partition string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closed[partition]
}

// Receives returns how many Receive calls partition's consumers received.
func (s *ScriptedTransport) Receives(partition string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.receives[partition]
}

// StartFor returns the start position the partition was last opened at.
func (s *ScriptedTransport) StartFor(partition string) (types.StartPosition, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start, ok := s.starts[partition]

	return start, ok
}

// OpenHandles returns the number of opened consumers that were not closed yet.
func (s *ScriptedTransport) OpenHandles() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for p, opened := range s.opened {
		n += opened - s.closed[p]
	}

	return n
}

// Events builds n ordered events for partition starting at sequence from.
func Events(partition string, from uint64, n int) []types.Event {
	events := make([]types.Event, n)
	for i := range events {
		seq := from + uint64(i)
		events[i] = types.Event{
			Partition:  partition,
			Sequence:   seq,
			Data:       fmt.Appendf(nil, "%s-%d", partition, seq),
			EnqueuedAt: time.Unix(0, int64(seq)).UTC(),
		}
	}

	return events
}

type scriptedConsumer struct {
	owner     *ScriptedTransport
	partition string
	steps     []Step
	pending   []types.Event
}

func (c *scriptedConsumer) Receive(ctx context.Context, maxCount int, maxWait time.Duration) ([]types.Event, error) {
	c.owner.mu.Lock()
	c.owner.receives[c.partition]++
	c.owner.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(c.pending) == 0 {
		if len(c.steps) == 0 {
			if maxWait <= 0 {
				<-ctx.Done()
				return nil, ctx.Err()
			}
			if err := wait(ctx, maxWait); err != nil {
				return nil, err
			}
			return nil, nil
		}

		step := c.steps[0]
		c.steps = c.steps[1:]
		if err := wait(ctx, step.Delay); err != nil {
			return nil, err
		}
		if step.Err != nil {
			return nil, step.Err
		}
		c.pending = step.Events
	}

	n := min(maxCount, len(c.pending))
	if maxCount <= 0 {
		n = len(c.pending)
	}
	batch := c.pending[:n:n]
	c.pending = c.pending[n:]

	return batch, nil
}

func (c *scriptedConsumer) Close(_ context.Context) error {
	c.owner.mu.Lock()
	defer c.owner.mu.Unlock()

	c.owner.closed[c.partition]++

	return nil
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

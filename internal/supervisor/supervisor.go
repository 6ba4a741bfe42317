package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/arloliu/fanin/internal/channel"
	"github.com/arloliu/fanin/internal/hooks"
	"github.com/arloliu/fanin/internal/logging"
	"github.com/arloliu/fanin/internal/metrics"
	"github.com/arloliu/fanin/internal/reader"
	"github.com/arloliu/fanin/types"
)

// Config configures a Supervisor and the readers it spawns.
type Config struct {
	MaxBatchSize      int
	ReceiveWaitTime   time.Duration
	ShutdownTimeout   time.Duration
	TrackLastEnqueued bool

	// RetryPolicy is shared by all readers.
	RetryPolicy types.RetryPolicy

	// TokenSeed seeds reader identity tokens.
	TokenSeed uint64

	Logger  types.Logger
	Metrics types.MetricsCollector
	Hooks   *types.Hooks
}

// StartFunc returns the start position for a partition.
type StartFunc func(partition string) types.StartPosition

// Supervisor runs the readers of one stream and completes its channel.
type Supervisor struct {
	cfg      Config
	ch       *channel.Channel[types.Event]
	registry *registry
	handles  []*readerHandle
	results  chan *readerHandle

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	terminalSet bool
	terminal    error

	stopLinked func() bool
	done       chan struct{}
	started    time.Time
}

// Start spawns one reader per partition and returns the running supervisor.
//
// Cancelling ctx stops the stream: the readers drain and the channel completes
// with the context's cause. Use Stop for a graceful end.
//
// Parameters:
//   - ctx: Parent context linked to every reader
//   - factory: Transport factory used by every reader
//   - partitions: Partition identities, one reader each (may be empty)
//   - startFor: Start position per partition (nil means types.Latest())
//   - cfg: Supervisor configuration
//
// Returns:
//   - *Supervisor: Running supervisor
//   - error: Reader construction error; nothing is spawned on error
func Start(ctx context.Context, factory types.TransportFactory, partitions []string, startFor StartFunc, cfg Config) (*Supervisor, error) {
	if factory == nil {
		return nil, types.ErrTransportRequired
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = reader.DefaultMaxBatchSize
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNop()
	}
	cfg.Hooks = hooks.Fill(cfg.Hooks)
	if startFor == nil {
		startFor = func(string) types.StartPosition { return types.Latest() }
	}

	ids := dedupe(partitions)
	if len(ids) != len(partitions) {
		cfg.Logger.Warn("duplicate partition ids ignored", "requested", len(partitions), "unique", len(ids))
	}

	s := &Supervisor{
		cfg:      cfg,
		ch:       channel.New[types.Event](max(1, len(ids)*cfg.MaxBatchSize)),
		registry: newRegistry(cfg.TokenSeed),
		results:  make(chan *readerHandle, len(ids)),
		done:     make(chan struct{}),
		started:  time.Now(),
	}
	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))

	for _, id := range ids {
		r, err := reader.New(reader.Config{
			Partition:         id,
			Start:             startFor(id),
			Factory:           factory,
			Sink:              s.ch,
			RetryPolicy:       cfg.RetryPolicy,
			MaxBatchSize:      cfg.MaxBatchSize,
			ReceiveWaitTime:   cfg.ReceiveWaitTime,
			ShutdownTimeout:   cfg.ShutdownTimeout,
			TrackLastEnqueued: cfg.TrackLastEnqueued,
			Logger:            cfg.Logger,
			Metrics:           cfg.Metrics,
			Hooks:             cfg.Hooks,
		})
		if err != nil {
			s.cancel()
			return nil, fmt.Errorf("partition %q: %w", id, err)
		}
		s.handles = append(s.handles, &readerHandle{reader: r})
	}

	for _, h := range s.handles {
		s.registry.add(h)
		s.wg.Go(func() {
			h.err = h.reader.Run(s.ctx)
			s.results <- h
		})
	}
	cfg.Metrics.RecordActiveReaders(s.registry.size())
	cfg.Logger.Info("supervisor started", "readers", len(s.handles), "capacity", s.ch.Cap())

	s.stopLinked = context.AfterFunc(ctx, func() {
		s.requestStop(context.Cause(ctx))
	})

	go s.monitor()

	return s, nil
}

// Channel returns the fan-in channel the readers write into.
func (s *Supervisor) Channel() *channel.Channel[types.Event] {
	return s.ch
}

// Done returns a channel closed after every reader terminated and the
// fan-in channel was completed.
func (s *Supervisor) Done() <-chan struct{} {
	return s.done
}

// Stop cancels every reader and waits until all have terminated and the
// channel is completed. Stop is safe to call multiple times and concurrently.
//
// Returns:
//   - error: ctx.Err() if ctx ended before teardown finished
func (s *Supervisor) Stop(ctx context.Context) error {
	s.requestStop(nil)

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Partitions returns the partition ids of the spawned readers in start order.
func (s *Supervisor) Partitions() []string {
	ids := make([]string, len(s.handles))
	for i, h := range s.handles {
		ids[i] = h.reader.Partition()
	}

	return ids
}

// ActiveReaders returns the number of registered readers.
func (s *Supervisor) ActiveReaders() int {
	return s.registry.size()
}

// ReaderStates returns a snapshot of every spawned reader's state by partition.
func (s *Supervisor) ReaderStates() map[string]types.ReaderState {
	states := make(map[string]types.ReaderState, len(s.handles))
	for _, h := range s.handles {
		states[h.reader.Partition()] = h.reader.State()
	}

	return states
}

// LiveReaders returns the partitions of readers still in the registry.
func (s *Supervisor) LiveReaders() []string {
	var live []string
	s.registry.rangeHandles(func(h *readerHandle) bool {
		live = append(live, h.reader.Partition())
		return true
	})

	return live
}

// requestStop records a graceful or cancellation end unless a terminal
// cause was already recorded, then cancels the readers.
func (s *Supervisor) requestStop(cause error) {
	s.mu.Lock()
	if !s.terminalSet {
		s.terminalSet = true
		s.terminal = cause
	}
	s.mu.Unlock()

	s.cancel()
}

// reportFatal records err as the stream's terminal error if it is the first
// terminal cause. It reports whether err won.
func (s *Supervisor) reportFatal(err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.terminalSet {
		return false
	}
	s.terminalSet = true
	s.terminal = err

	return true
}

func (s *Supervisor) monitor() {
	log := s.cfg.Logger

	for range s.handles {
		h := <-s.results
		if s.registry.remove(h.token) {
			s.cfg.Metrics.RecordActiveReaders(s.registry.size())
		}

		if h.err == nil {
			continue
		}
		if s.reportFatal(h.err) {
			log.Error("reader failed, stopping stream",
				"partition", h.reader.Partition(),
				"reader", h.token,
				"error", h.err)
			s.cancel()
		} else {
			log.Debug("reader error after stream end requested",
				"partition", h.reader.Partition(),
				"error", h.err)
		}
	}
	s.wg.Wait()
	s.stopLinked()
	s.cancel()

	s.mu.Lock()
	terminal := s.terminal
	s.mu.Unlock()

	s.ch.TryComplete(terminal)

	s.cfg.Metrics.RecordStreamCompleted(completionResult(terminal), time.Since(s.started).Seconds())
	if hookErr := s.cfg.Hooks.OnStreamCompleted(context.WithoutCancel(s.ctx), terminal); hookErr != nil {
		log.Warn("OnStreamCompleted hook failed", "error", hookErr)
	}
	log.Info("supervisor stopped", "readers", len(s.handles), "error", terminal)

	close(s.done)
}

func completionResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}

	return out
}

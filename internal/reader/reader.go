package reader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/fanin/internal/hooks"
	"github.com/arloliu/fanin/internal/logging"
	"github.com/arloliu/fanin/internal/metrics"
	"github.com/arloliu/fanin/retry"
	"github.com/arloliu/fanin/types"
)

const (
	// DefaultMaxBatchSize is the number of events requested per receive call.
	DefaultMaxBatchSize = 32

	// DefaultReceiveWaitTime bounds a single receive call on the transport.
	DefaultReceiveWaitTime = 5 * time.Second

	// DefaultShutdownTimeout bounds the transport Close call.
	DefaultShutdownTimeout = 10 * time.Second

	// blockedWriteThreshold is the sink write latency above which a write counts as blocked.
	blockedWriteThreshold = time.Millisecond
)

// Sink receives events from a reader. Write blocks while the sink is full
// and must return promptly once ctx is done.
type Sink interface {
	Write(ctx context.Context, ev types.Event) error
}

// Config configures a Reader.
type Config struct {
	// Partition is the identity of the partition to read. Required.
	Partition string

	// Start is the position the transport consumer is opened at.
	Start types.StartPosition

	// Factory opens the transport consumer. Required.
	Factory types.TransportFactory

	// Sink receives every event. Required.
	Sink Sink

	// RetryPolicy decides on transport failures. Defaults to retry.Default().
	RetryPolicy types.RetryPolicy

	MaxBatchSize      int
	ReceiveWaitTime   time.Duration
	ShutdownTimeout   time.Duration
	TrackLastEnqueued bool

	Logger  types.Logger
	Metrics types.MetricsCollector
	Hooks   *types.Hooks
}

// Reader runs the receive loop for a single partition.
type Reader struct {
	cfg   Config
	state atomic.Int32

	closeOnce sync.Once
	closeErr  error
}

// New creates a reader in the Starting state.
//
// Parameters:
//   - cfg: Reader configuration; zero-valued optional fields take defaults
//
// Returns:
//   - *Reader: Reader ready to Run
//   - error: types.ErrPartitionRequired, types.ErrTransportRequired or a missing sink error
func New(cfg Config) (*Reader, error) {
	if cfg.Partition == "" {
		return nil, types.ErrPartitionRequired
	}
	if cfg.Factory == nil {
		return nil, types.ErrTransportRequired
	}
	if cfg.Sink == nil {
		return nil, errors.New("reader sink is required")
	}

	if cfg.RetryPolicy == nil {
		cfg.RetryPolicy = retry.Default()
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = DefaultMaxBatchSize
	}
	if cfg.ReceiveWaitTime <= 0 {
		cfg.ReceiveWaitTime = DefaultReceiveWaitTime
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNop()
	}
	cfg.Hooks = hooks.Fill(cfg.Hooks)

	r := &Reader{cfg: cfg}
	r.state.Store(int32(types.ReaderStarting))

	return r, nil
}

// Partition returns the partition identity this reader consumes.
func (r *Reader) Partition() string {
	return r.cfg.Partition
}

// State returns the current reader state.
func (r *Reader) State() types.ReaderState {
	return types.ReaderState(r.state.Load())
}

// Run executes the receive loop until ctx is cancelled or a fatal error occurs.
//
// Run must be called at most once.
//
// Returns:
//   - error: nil on cancellation; otherwise the fatal error. Resource exhaustion
//     errors are returned as-is without any retry. Transient errors the retry
//     policy declined are wrapped with types.ErrRetriesExhausted.
func (r *Reader) Run(ctx context.Context) (err error) {
	log := r.cfg.Logger
	partition := r.cfg.Partition

	var consumer types.TransportConsumer
	defer func() {
		if consumer != nil {
			r.release(consumer)
		}
		if err != nil {
			r.cfg.Metrics.RecordReaderFailure(partition, failureKind(err))
			log.Error("partition reader failed", "partition", partition, "error", err)
		} else {
			log.Debug("partition reader stopped", "partition", partition)
		}
		r.transition(types.ReaderStopped)
		if hookErr := r.cfg.Hooks.OnReaderStopped(context.WithoutCancel(ctx), partition, err); hookErr != nil {
			log.Warn("OnReaderStopped hook failed", "partition", partition, "error", hookErr)
		}
	}()

	consumer, err = r.open(ctx)
	if err != nil || consumer == nil {
		return err
	}

	r.transition(types.ReaderRunning)
	log.Debug("partition reader started", "partition", partition, "start", r.cfg.Start.String())
	if hookErr := r.cfg.Hooks.OnReaderStarted(ctx, partition); hookErr != nil {
		log.Warn("OnReaderStarted hook failed", "partition", partition, "error", hookErr)
	}

	failures := 0
	for {
		if ctx.Err() != nil {
			r.transition(types.ReaderDraining)
			return nil
		}

		started := time.Now()
		batch, recvErr := consumer.Receive(ctx, r.cfg.MaxBatchSize, r.cfg.ReceiveWaitTime)
		if recvErr != nil {
			if ctx.Err() != nil {
				r.transition(types.ReaderDraining)
				return nil
			}

			failures++
			stop, fatal := r.backoff(ctx, "receive", recvErr, failures)
			if stop {
				return fatal
			}

			continue
		}

		failures = 0
		r.cfg.Metrics.RecordBatchReceived(partition, len(batch), time.Since(started).Seconds())

		if !r.forward(ctx, batch) {
			return nil
		}
	}
}

// open creates the transport consumer, retrying transient failures.
// A nil consumer with a nil error means ctx was cancelled.
func (r *Reader) open(ctx context.Context) (types.TransportConsumer, error) {
	opts := types.OpenOptions{
		TrackLastEnqueued: r.cfg.TrackLastEnqueued,
		PrefetchCount:     r.cfg.MaxBatchSize,
	}

	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			r.transition(types.ReaderDraining)
			return nil, nil
		}

		consumer, err := r.cfg.Factory.Open(ctx, r.cfg.Partition, r.cfg.Start, opts)
		if err == nil {
			return consumer, nil
		}
		if ctx.Err() != nil {
			r.transition(types.ReaderDraining)
			return nil, nil
		}

		stop, fatal := r.backoff(ctx, "open", err, attempt)
		if stop {
			return nil, fatal
		}
	}
}

// backoff applies the retry decision for a failed transport operation.
//
// Returns:
//   - bool: true if the reader must stop
//   - error: the fatal error to report (nil when stopping because ctx ended)
func (r *Reader) backoff(ctx context.Context, op string, err error, attempt int) (bool, error) {
	partition := r.cfg.Partition

	// ctx is live here, so a context error came from inside the transport (a request timeout)
	if types.IsCancellation(err) && !types.IsTransient(err) {
		err = types.Transient(partition, op, err)
	}

	if types.IsResourceExhaustion(err) {
		return true, err
	}
	if types.IsNonRetryable(err) {
		return true, err
	}

	delay, ok := r.cfg.RetryPolicy.Delay(err, attempt)
	if !ok {
		if types.IsTransient(err) {
			return true, fmt.Errorf("partition %s: %s failed after %d attempts: %w: %w",
				partition, op, attempt, types.ErrRetriesExhausted, err)
		}

		return true, err
	}

	r.cfg.Metrics.RecordReceiveRetry(partition, attempt, delay.Seconds())
	r.cfg.Logger.Warn("transport operation failed, retrying",
		"partition", partition,
		"op", op,
		"attempt", attempt,
		"delay", delay,
		"error", err)

	if sleepErr := sleep(ctx, delay); sleepErr != nil {
		r.transition(types.ReaderDraining)
		return true, nil
	}

	return false, nil
}

// forward writes the batch to the sink in order. It reports false once the
// reader must stop because ctx ended or the sink no longer accepts events.
//
// After cancellation the remaining events are still offered to the sink;
// events that cannot be accepted without blocking are abandoned.
func (r *Reader) forward(ctx context.Context, batch []types.Event) bool {
	partition := r.cfg.Partition
	retrievedAt := time.Now()

	for i := range batch {
		ev := batch[i]
		if ev.Partition == "" {
			ev.Partition = partition
		}
		ev.Context.Partition = partition
		if r.cfg.TrackLastEnqueued {
			ev.Context.Tracked = true
			ev.Context.RetrievedAt = retrievedAt
		}

		started := time.Now()
		err := r.cfg.Sink.Write(ctx, ev)
		if d := time.Since(started); d >= blockedWriteThreshold {
			r.cfg.Metrics.RecordWriteBlocked(partition, d.Seconds())
		}
		if err == nil {
			continue
		}

		if errors.Is(err, types.ErrChannelCompleted) {
			r.cfg.Logger.Debug("sink completed, stopping reader", "partition", partition)
			return false
		}

		r.transition(types.ReaderDraining)
		abandoned := len(batch) - i
		if abandoned > 0 {
			r.cfg.Logger.Debug("abandoning events after cancellation",
				"partition", partition,
				"abandoned", abandoned)
		}

		return false
	}

	return true
}

// release closes the transport consumer exactly once, bounded by ShutdownTimeout.
func (r *Reader) release(consumer types.TransportConsumer) {
	r.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.cfg.ShutdownTimeout)
		defer cancel()

		if err := consumer.Close(ctx); err != nil {
			r.closeErr = err
			r.cfg.Logger.Warn("failed to close transport consumer",
				"partition", r.cfg.Partition,
				"error", err)
		}
	})
}

// transition moves the reader to state "to" if the transition is legal.
func (r *Reader) transition(to types.ReaderState) {
	for {
		from := types.ReaderState(r.state.Load())
		if from == to || !from.CanTransitionTo(to) {
			return
		}
		if r.state.CompareAndSwap(int32(from), int32(to)) {
			r.cfg.Metrics.RecordReaderState(r.cfg.Partition, from, to)
			return
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
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

func failureKind(err error) string {
	var te *types.TransportError
	switch {
	case errors.Is(err, types.ErrRetriesExhausted):
		return "retries-exhausted"
	case errors.As(err, &te):
		return te.Kind.String()
	case types.IsResourceExhaustion(err):
		return types.KindResourceExhausted.String()
	case types.IsNonRetryable(err):
		return types.KindNonRetryable.String()
	default:
		return "unknown"
	}
}

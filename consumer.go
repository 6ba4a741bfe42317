package fanin

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/arloliu/fanin/internal/hooks"
	"github.com/arloliu/fanin/internal/logging"
	"github.com/arloliu/fanin/internal/metrics"
	"github.com/arloliu/fanin/internal/supervisor"
)

// ReadOptions configures a single read call.
type ReadOptions struct {
	// StartPosition is where every reader begins. Zero value is Latest().
	StartPosition StartPosition

	// StartPositions overrides StartPosition per partition id.
	StartPositions map[string]StartPosition

	// MaxWaitTime bounds how long Stream.Next blocks without data before returning
	// the "no data" signal (nil, nil). Zero blocks until an event or the end of the stream.
	MaxWaitTime time.Duration

	// TrackLastEnqueued populates last-enqueued metadata in Event.Context.
	// Config.TrackLastEnqueued enables it for every read.
	TrackLastEnqueued bool
}

func (o ReadOptions) startFor(partition string) StartPosition {
	if p, ok := o.StartPositions[partition]; ok {
		return p
	}

	return o.StartPosition
}

// Consumer reads partitioned event streams through a transport.
//
// Every read call returns an independent Stream backed by its own set of
// partition readers and fan-in buffer. A Consumer is safe for concurrent use.
type Consumer struct {
	cfg       Config
	factory   TransportFactory
	discovery PartitionDiscovery
	retry     RetryPolicy

	logger  Logger
	metrics MetricsCollector
	hooks   *Hooks

	mu      sync.Mutex
	closed  bool
	streams map[*Stream]struct{}
}

// NewConsumer creates a consumer.
//
// Parameters:
//   - cfg: Configuration (missing values are defaulted, the caller's copy is not modified)
//   - factory: Transport factory used to open partition consumers (required)
//   - discovery: Partition discovery used by ReadAll (nil limits the consumer to ReadPartition)
//   - opts: Optional dependencies (logger, metrics, hooks, retry policy)
//
// Returns:
//   - *Consumer: Ready consumer
//   - error: ErrTransportRequired, or an error wrapping ErrInvalidConfig
func NewConsumer(cfg *Config, factory TransportFactory, discovery PartitionDiscovery, opts ...Option) (*Consumer, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}
	if factory == nil {
		return nil, ErrTransportRequired
	}

	config := *cfg
	SetDefaults(&config)
	if err := config.Validate(); err != nil {
		return nil, err
	}

	options := &consumerOptions{}
	for _, opt := range opts {
		opt(options)
	}

	metricsCollector := options.metrics
	if metricsCollector == nil {
		metricsCollector = metrics.NewNop()
	}

	loggerInstance := options.logger
	if loggerInstance == nil {
		loggerInstance = logging.NewNop()
	}

	config.ValidateWithWarnings(loggerInstance)

	retryPolicy := options.retryPolicy
	if retryPolicy == nil {
		policy, err := config.Retry.Policy()
		if err != nil {
			return nil, err
		}
		retryPolicy = policy
	}

	return &Consumer{
		cfg:       config,
		factory:   factory,
		discovery: discovery,
		retry:     retryPolicy,
		logger:    loggerInstance,
		metrics:   metricsCollector,
		hooks:     hooks.Fill(options.hooks),
		streams:   make(map[*Stream]struct{}),
	}, nil
}

// ReadPartition starts reading a single partition.
//
// Cancelling ctx ends the stream: its readers drain and Next reports the
// cancellation once the buffered events are consumed.
//
// Parameters:
//   - ctx: Context linked to the stream's readers
//   - partitionID: Partition to read
//   - opts: Read options
//
// Returns:
//   - *Stream: Running stream
//   - error: ErrPartitionRequired, ErrConsumerClosed
func (c *Consumer) ReadPartition(ctx context.Context, partitionID string, opts ReadOptions) (*Stream, error) {
	if partitionID == "" {
		return nil, ErrPartitionRequired
	}

	return c.start(ctx, []string{partitionID}, opts)
}

// ReadAll starts reading every partition reported by the consumer's discovery.
//
// Zero partitions produce a stream that ends cleanly at once.
//
// Parameters:
//   - ctx: Context for discovery, linked to the stream's readers
//   - opts: Read options (StartPositions overrides per partition)
//
// Returns:
//   - *Stream: Running stream
//   - error: ErrDiscoveryRequired, ErrConsumerClosed, or a discovery error
func (c *Consumer) ReadAll(ctx context.Context, opts ReadOptions) (*Stream, error) {
	if c.discovery == nil {
		return nil, ErrDiscoveryRequired
	}
	if c.isClosed() {
		return nil, ErrConsumerClosed
	}

	ids, err := c.discovery.ListPartitionIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list partitions: %w", err)
	}

	return c.start(ctx, ids, opts)
}

// Close stops every stream still open on the consumer and marks it closed.
// Further reads return ErrConsumerClosed. Close is idempotent; after a failed
// Close, calling it again waits for the streams that are still open.
//
// Returns:
//   - error: Joined teardown errors (ctx expiry while waiting for readers)
func (c *Consumer) Close(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	streams := make([]*Stream, 0, len(c.streams))
	for s := range c.streams {
		streams = append(streams, s)
	}
	c.mu.Unlock()

	var errs []error
	for _, s := range streams {
		if err := s.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	if len(streams) > 0 {
		c.logger.Info("consumer closed", "streams", len(streams))
	}

	return nil
}

func (c *Consumer) start(ctx context.Context, ids []string, opts ReadOptions) (*Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrConsumerClosed
	}

	sup, err := supervisor.Start(ctx, c.factory, ids, opts.startFor, supervisor.Config{
		MaxBatchSize:      c.cfg.MaxBatchSize,
		ReceiveWaitTime:   c.cfg.ReceiveWaitTime,
		ShutdownTimeout:   c.cfg.ShutdownTimeout,
		TrackLastEnqueued: c.cfg.TrackLastEnqueued || opts.TrackLastEnqueued,
		RetryPolicy:       c.retry,
		TokenSeed:         rand.Uint64(), //nolint:gosec // registry tokens are not security sensitive
		Logger:            c.logger,
		Metrics:           c.metrics,
		Hooks:             c.hooks,
	})
	if err != nil {
		return nil, err
	}

	s := newStream(sup, opts.MaxWaitTime, c.cfg.ShutdownTimeout, c.logger, c.metrics, c.untrack)
	c.streams[s] = struct{}{}
	c.logger.Debug("stream started", "partitions", len(s.partitions))

	return s, nil
}

func (c *Consumer) untrack(s *Stream) {
	c.mu.Lock()
	delete(c.streams, s)
	c.mu.Unlock()
}

func (c *Consumer) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closed
}

// openStreams returns the number of streams not closed yet.
func (c *Consumer) openStreams() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.streams)
}

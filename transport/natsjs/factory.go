package natsjs

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/fanin/internal/hash"
	"github.com/arloliu/fanin/internal/natsutil"
	"github.com/arloliu/fanin/types"
)

// Factory opens JetStream-backed transport consumers.
type Factory struct {
	js       jetstream.JetStream
	cfg      Config
	subjects *subjects

	seed    uint64
	counter atomic.Uint64
}

var _ types.TransportFactory = (*Factory)(nil)

// NewFactory creates a transport factory for the configured stream.
//
// Parameters:
//   - js: JetStream context
//   - cfg: Transport configuration (StreamName and SubjectTemplate required)
//
// Returns:
//   - *Factory: Factory safe for concurrent use
//   - error: types.ErrInvalidConfig wrapped with details
func NewFactory(js jetstream.JetStream, cfg Config) (*Factory, error) {
	if js == nil {
		return nil, fmt.Errorf("%w: jetstream context is required", types.ErrInvalidConfig)
	}

	cfg.applyDefaults()
	subj, err := parseSubjects(cfg)
	if err != nil {
		return nil, err
	}

	return &Factory{
		js:       js,
		cfg:      cfg,
		subjects: subj,
		seed:     uint64(time.Now().UnixNano()),
	}, nil
}

// Subject returns the subject the partition is read from.
func (f *Factory) Subject(partitionID string) (string, error) {
	return f.subjects.subject(partitionID)
}

// Open creates an ephemeral pull consumer positioned at start.
func (f *Factory) Open(ctx context.Context, partitionID string, start types.StartPosition, opts types.OpenOptions) (types.TransportConsumer, error) {
	subject, err := f.subjects.subject(partitionID)
	if err != nil {
		return nil, types.NonRetryable(partitionID, "open", err)
	}

	token := hash.ReaderToken(f.seed, partitionID, f.counter.Add(1))
	name := sanitizeConsumerName(f.cfg.ConsumerPrefix + "-" + partitionID + "-" + strconv.FormatUint(token, 36))

	cc := jetstream.ConsumerConfig{
		Name:              name,
		Description:       "fanin reader for " + subject,
		FilterSubject:     subject,
		AckPolicy:         jetstream.AckNonePolicy,
		InactiveThreshold: f.cfg.InactiveThreshold,
		MemoryStorage:     f.cfg.MemoryStorage,
		Replicas:          1,
	}
	applyStart(&cc, start)

	stream, err := f.js.Stream(ctx, f.cfg.StreamName)
	if err != nil {
		return nil, natsutil.Classify(partitionID, "open", err)
	}

	cons, err := stream.CreateConsumer(ctx, cc)
	if err != nil {
		return nil, natsutil.Classify(partitionID, "open", err)
	}

	f.cfg.Logger.Debug("opened ephemeral consumer",
		"partition", partitionID,
		"subject", subject,
		"consumer", name,
		"start", start.String())

	return &consumer{
		factory:   f,
		stream:    stream,
		cons:      cons,
		name:      name,
		partition: partitionID,
		subject:   subject,
		track:     opts.TrackLastEnqueued,
	}, nil
}

// applyStart maps a start position onto the consumer's deliver policy.
func applyStart(cc *jetstream.ConsumerConfig, start types.StartPosition) {
	switch start.Kind() {
	case types.PositionEarliest:
		cc.DeliverPolicy = jetstream.DeliverAllPolicy
	case types.PositionSequence:
		first := start.FirstSequence()
		if first <= 1 {
			cc.DeliverPolicy = jetstream.DeliverAllPolicy
			return
		}
		cc.DeliverPolicy = jetstream.DeliverByStartSequencePolicy
		cc.OptStartSeq = first
	case types.PositionTime:
		at := start.Time()
		cc.DeliverPolicy = jetstream.DeliverByStartTimePolicy
		cc.OptStartTime = &at
	default:
		cc.DeliverPolicy = jetstream.DeliverNewPolicy
	}
}

// consumer is one partition's ephemeral pull consumer.
type consumer struct {
	factory   *Factory
	stream    jetstream.Stream
	cons      jetstream.Consumer
	name      string
	partition string
	subject   string
	track     bool

	closeOnce sync.Once
	closeErr  error
}

func (c *consumer) Receive(ctx context.Context, maxCount int, maxWait time.Duration) ([]types.Event, error) {
	if maxCount <= 0 {
		maxCount = 1
	}
	if maxWait <= 0 {
		maxWait = DefaultFetchTimeout
	}

	batch, err := c.cons.Fetch(maxCount, jetstream.FetchMaxWait(maxWait))
	if err != nil {
		return nil, natsutil.Classify(c.partition, "receive", err)
	}

	events := make([]types.Event, 0, maxCount)
	var pending uint64
	msgs := batch.Messages()
	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				return c.finish(ctx, events, pending, batch.Error())
			}
			ev, numPending, err := c.toEvent(msg)
			if err != nil {
				c.factory.cfg.Logger.Warn("skipping message without metadata",
					"partition", c.partition,
					"subject", msg.Subject(),
					"error", err)
				continue
			}
			events = append(events, ev)
			pending = numPending
		case <-ctx.Done():
			// AckNone: messages already pulled are not redelivered
			if len(events) == 0 {
				return nil, ctx.Err()
			}

			return c.finish(ctx, events, pending, nil)
		}
	}
}

// finish returns the batch, surfacing a fetch error only when nothing was received.
func (c *consumer) finish(ctx context.Context, events []types.Event, pending uint64, fetchErr error) ([]types.Event, error) {
	if fetchErr != nil && !errors.Is(fetchErr, nats.ErrTimeout) {
		if len(events) == 0 {
			return nil, natsutil.Classify(c.partition, "receive", fetchErr)
		}
		c.factory.cfg.Logger.Debug("fetch ended with error after partial batch",
			"partition", c.partition,
			"events", len(events),
			"error", fetchErr)
	}

	if c.track && len(events) > 0 {
		c.trackLastEnqueued(ctx, events, pending)
	}

	return events, nil
}

// trackLastEnqueued stamps the partition's last enqueued message onto events.
//
// pending is the NumPending of the batch's last message. When it is zero that
// message is the last one enqueued; otherwise the stream is asked for the last
// message on the subject, since stream sequences interleave across partitions.
// Lookup failures leave the events untracked.
func (c *consumer) trackLastEnqueued(ctx context.Context, events []types.Event, pending uint64) {
	lastSeq, lastAt := events[len(events)-1].Sequence, events[len(events)-1].EnqueuedAt

	if pending > 0 {
		if ctx.Err() != nil {
			return
		}
		last, err := c.stream.GetLastMsgForSubject(ctx, c.subject)
		if err != nil {
			c.factory.cfg.Logger.Debug("last enqueued lookup failed",
				"partition", c.partition,
				"error", err)
			return
		}
		lastSeq, lastAt = last.Sequence, last.Time
	}

	for i := range events {
		events[i].Context.LastEnqueuedSequence = lastSeq
		events[i].Context.LastEnqueuedAt = lastAt
	}
}

// toEvent converts msg and reports how many partition messages follow it.
func (c *consumer) toEvent(msg jetstream.Msg) (types.Event, uint64, error) {
	meta, err := msg.Metadata()
	if err != nil {
		return types.Event{}, 0, err
	}

	ev := types.Event{
		Partition:  c.partition,
		Sequence:   meta.Sequence.Stream,
		Subject:    msg.Subject(),
		Data:       msg.Data(),
		EnqueuedAt: meta.Timestamp,
	}
	if headers := msg.Headers(); len(headers) > 0 {
		ev.Headers = map[string][]string(headers)
		if key := headers.Get(c.factory.cfg.KeyHeader); key != "" {
			ev.Key = []byte(key)
		}
	}

	return ev, meta.NumPending, nil
}

// Close deletes the ephemeral consumer once. A consumer the server already
// removed is not an error.
func (c *consumer) Close(ctx context.Context) error {
	c.closeOnce.Do(func() {
		err := c.stream.DeleteConsumer(ctx, c.name)
		if err != nil && !errors.Is(err, jetstream.ErrConsumerNotFound) {
			c.closeErr = natsutil.Classify(c.partition, "close", err)
			return
		}
		c.factory.cfg.Logger.Debug("deleted ephemeral consumer", "partition", c.partition, "consumer", c.name)
	})

	return c.closeErr
}

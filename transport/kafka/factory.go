package kafka

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/arloliu/fanin/internal/logging"
	"github.com/arloliu/fanin/types"
)

// Config configures the Kafka transport.
type Config struct {
	// Topic whose partitions are read. Required.
	Topic string

	// Client resolves time-based start positions. Optional.
	Client sarama.Client

	Logger types.Logger
}

// Factory opens one sarama.PartitionConsumer per reader.
type Factory struct {
	consumer sarama.Consumer
	cfg      Config
}

var _ types.TransportFactory = (*Factory)(nil)

// NewFactory creates a transport factory over an existing sarama.Consumer.
//
// Example:
//
//	consumer, _ := sarama.NewConsumer(brokers, sarama.NewConfig())
//	factory, _ := kafka.NewFactory(consumer, kafka.Config{Topic: "orders"})
func NewFactory(consumer sarama.Consumer, cfg Config) (*Factory, error) {
	if consumer == nil {
		return nil, fmt.Errorf("%w: sarama consumer is required", types.ErrInvalidConfig)
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("%w: topic is required", types.ErrInvalidConfig)
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}

	return &Factory{consumer: consumer, cfg: cfg}, nil
}

// Open starts consuming the partition at start.
func (f *Factory) Open(_ context.Context, partitionID string, start types.StartPosition, opts types.OpenOptions) (types.TransportConsumer, error) {
	p, err := parsePartition(partitionID)
	if err != nil {
		return nil, types.NonRetryable(partitionID, "open", err)
	}

	offset, err := f.offsetFor(p, start)
	if err != nil {
		return nil, Classify(partitionID, "open", err)
	}

	pc, err := f.consumer.ConsumePartition(f.cfg.Topic, p, offset)
	if err != nil {
		return nil, Classify(partitionID, "open", err)
	}

	f.cfg.Logger.Debug("opened partition consumer",
		"topic", f.cfg.Topic,
		"partition", partitionID,
		"offset", offset)

	return &partitionConsumer{
		factory:   f,
		pc:        pc,
		partition: partitionID,
		track:     opts.TrackLastEnqueued,
	}, nil
}

// offsetFor maps a start position onto a Kafka offset.
func (f *Factory) offsetFor(p int32, start types.StartPosition) (int64, error) {
	switch start.Kind() {
	case types.PositionEarliest:
		return sarama.OffsetOldest, nil
	case types.PositionSequence:
		return int64(start.FirstSequence()), nil
	case types.PositionTime:
		if f.cfg.Client == nil {
			return 0, types.NonRetryable(strconv.Itoa(int(p)), "open",
				errors.New("time start positions require a sarama client"))
		}
		return f.cfg.Client.GetOffset(f.cfg.Topic, p, start.Time().UnixMilli())
	default:
		return sarama.OffsetNewest, nil
	}
}

func parsePartition(id string) (int32, error) {
	if id == "" {
		return 0, types.ErrPartitionRequired
	}
	n, err := strconv.ParseInt(id, 10, 32)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid kafka partition %q", id)
	}

	return int32(n), nil
}

type partitionConsumer struct {
	factory   *Factory
	pc        sarama.PartitionConsumer
	partition string
	track     bool

	// pending holds an error that arrived after messages were already batched.
	pending error

	closeOnce sync.Once
	closeErr  error
}

func (c *partitionConsumer) Receive(ctx context.Context, maxCount int, maxWait time.Duration) ([]types.Event, error) {
	if err := c.pending; err != nil {
		c.pending = nil
		return nil, err
	}
	if maxCount <= 0 {
		maxCount = 1
	}

	var timeout <-chan time.Time
	if maxWait > 0 {
		timer := time.NewTimer(maxWait)
		defer timer.Stop()
		timeout = timer.C
	}

	events := make([]types.Event, 0, maxCount)

	// Block for the first message only.
	select {
	case msg, ok := <-c.pc.Messages():
		if !ok {
			return nil, c.disconnected()
		}
		events = append(events, c.toEvent(msg))
	case cerr, ok := <-c.pc.Errors():
		if !ok {
			return nil, c.disconnected()
		}
		return nil, Classify(c.partition, "receive", cerr)
	case <-timeout:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	for len(events) < maxCount {
		select {
		case msg, ok := <-c.pc.Messages():
			if !ok {
				return c.finish(events), nil
			}
			events = append(events, c.toEvent(msg))
		case cerr, ok := <-c.pc.Errors():
			if ok {
				c.pending = Classify(c.partition, "receive", cerr)
			}
			return c.finish(events), nil
		default:
			return c.finish(events), nil
		}
	}

	return c.finish(events), nil
}

func (c *partitionConsumer) finish(events []types.Event) []types.Event {
	if !c.track {
		return events
	}

	if hwm := c.pc.HighWaterMarkOffset(); hwm > 0 {
		for i := range events {
			events[i].Context.LastEnqueuedSequence = uint64(hwm - 1)
		}
	}

	return events
}

func (c *partitionConsumer) disconnected() error {
	return types.NonRetryable(c.partition, "receive", types.ErrConsumerDisconnected)
}

func (c *partitionConsumer) toEvent(msg *sarama.ConsumerMessage) types.Event {
	ev := types.Event{
		Partition:  c.partition,
		Sequence:   uint64(msg.Offset),
		Subject:    msg.Topic,
		Key:        msg.Key,
		Data:       msg.Value,
		EnqueuedAt: msg.Timestamp,
	}
	if len(msg.Headers) > 0 {
		ev.Headers = make(map[string][]string, len(msg.Headers))
		for _, h := range msg.Headers {
			if h == nil {
				continue
			}
			k := string(h.Key)
			ev.Headers[k] = append(ev.Headers[k], string(h.Value))
		}
	}

	return ev
}

// Close closes the partition consumer once.
func (c *partitionConsumer) Close(_ context.Context) error {
	c.closeOnce.Do(func() {
		if err := c.pc.Close(); err != nil {
			c.closeErr = Classify(c.partition, "close", err)
		}
	})

	return c.closeErr
}

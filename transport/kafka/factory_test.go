package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/fanin/internal/logging"
	"github.com/arloliu/fanin/types"
)

const topic = "orders"

func newFactory(t *testing.T) (*Factory, *mocks.Consumer) {
	t.Helper()

	mc := mocks.NewConsumer(t, nil)

	f, err := NewFactory(mc, Config{Topic: topic, Logger: logging.NewTest(t)})
	require.NoError(t, err)

	return f, mc
}

func TestNewFactory_Validation(t *testing.T) {
	_, err := NewFactory(nil, Config{Topic: topic})
	require.ErrorIs(t, err, types.ErrInvalidConfig)

	_, err = NewFactory(mocks.NewConsumer(t, nil), Config{})
	require.ErrorIs(t, err, types.ErrInvalidConfig)
}

func TestFactory_OffsetMapping(t *testing.T) {
	tests := []struct {
		name   string
		start  types.StartPosition
		offset int64
	}{
		{name: "earliest", start: types.Earliest(), offset: sarama.OffsetOldest},
		{name: "latest", start: types.Latest(), offset: sarama.OffsetNewest},
		{name: "inclusive sequence", start: types.FromSequence(41, true), offset: 41},
		{name: "exclusive sequence", start: types.FromSequence(41, false), offset: 42},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, mc := newFactory(t)
			mc.ExpectConsumePartition(topic, 3, tt.offset)

			c, err := f.Open(t.Context(), "3", tt.start, types.OpenOptions{})
			require.NoError(t, err)
			require.NoError(t, c.Close(t.Context()))
		})
	}
}

func TestFactory_OpenRejectsInvalidPartition(t *testing.T) {
	f, _ := newFactory(t)

	for _, id := range []string{"", "abc", "-1"} {
		_, err := f.Open(t.Context(), id, types.Earliest(), types.OpenOptions{})
		require.True(t, types.IsNonRetryable(err), "partition %q", id)
	}
}

func TestFactory_TimeStartRequiresClient(t *testing.T) {
	f, _ := newFactory(t)

	_, err := f.Open(t.Context(), "0", types.FromTime(time.Now()), types.OpenOptions{})
	require.ErrorIs(t, err, types.ErrNonRetryable)
}

func TestConsumer_ReceiveBatches(t *testing.T) {
	f, mc := newFactory(t)
	pc := mc.ExpectConsumePartition(topic, 0, sarama.OffsetOldest)

	msgs := make([]*sarama.ConsumerMessage, 5)
	for i := range msgs {
		msgs[i] = &sarama.ConsumerMessage{
			Key:       []byte("k"),
			Value:     []byte{byte('a' + i)},
			Timestamp: time.Unix(int64(i), 0),
			Headers:   []*sarama.RecordHeader{{Key: []byte("trace"), Value: []byte("t1")}},
		}
		pc.YieldMessage(msgs[i])
	}

	c, err := f.Open(t.Context(), "0", types.Earliest(), types.OpenOptions{TrackLastEnqueued: true})
	require.NoError(t, err)
	defer func() { require.NoError(t, c.Close(context.Background())) }()

	var events []types.Event
	deadline := time.Now().Add(2 * time.Second)
	for len(events) < 5 && time.Now().Before(deadline) {
		batch, err := c.Receive(t.Context(), 3, 50*time.Millisecond)
		require.NoError(t, err)
		require.LessOrEqual(t, len(batch), 3)
		events = append(events, batch...)
	}
	require.Len(t, events, 5)

	for i, ev := range events {
		require.Equal(t, "0", ev.Partition)
		require.Equal(t, topic, ev.Subject)
		require.Equal(t, []byte{byte('a' + i)}, ev.Data)
		require.Equal(t, uint64(msgs[i].Offset), ev.Sequence)
		require.Equal(t, []string{"t1"}, ev.Headers["trace"])
	}
	if hwm := pc.HighWaterMarkOffset(); hwm > 0 {
		require.Equal(t, uint64(hwm-1), events[4].Context.LastEnqueuedSequence)
	}
}

func TestConsumer_ReceiveTimesOutEmpty(t *testing.T) {
	f, mc := newFactory(t)
	mc.ExpectConsumePartition(topic, 0, sarama.OffsetNewest)

	c, err := f.Open(t.Context(), "0", types.Latest(), types.OpenOptions{})
	require.NoError(t, err)
	defer func() { require.NoError(t, c.Close(context.Background())) }()

	batch, err := c.Receive(t.Context(), 10, 10*time.Millisecond)
	require.NoError(t, err)
	require.Empty(t, batch)
}

func TestConsumer_ReceiveClassifiesErrors(t *testing.T) {
	f, mc := newFactory(t)
	pc := mc.ExpectConsumePartition(topic, 0, sarama.OffsetNewest)
	pc.YieldError(sarama.ErrOutOfBrokers)

	c, err := f.Open(t.Context(), "0", types.Latest(), types.OpenOptions{})
	require.NoError(t, err)
	defer func() { _ = c.Close(context.Background()) }()

	_, err = c.Receive(t.Context(), 10, time.Second)
	require.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.True(t, types.IsTransient(err))
}

func TestConsumer_ReceiveObservesContext(t *testing.T) {
	f, mc := newFactory(t)
	mc.ExpectConsumePartition(topic, 0, sarama.OffsetNewest)

	c, err := f.Open(t.Context(), "0", types.Latest(), types.OpenOptions{})
	require.NoError(t, err)
	defer func() { require.NoError(t, c.Close(context.Background())) }()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err = c.Receive(ctx, 10, 0)
	require.ErrorIs(t, err, context.Canceled)
}

// fakePartitionConsumer overrides the channel and close behavior of sarama.PartitionConsumer.
type fakePartitionConsumer struct {
	sarama.PartitionConsumer

	messages chan *sarama.ConsumerMessage
	errors   chan *sarama.ConsumerError
	closes   int
}

func (f *fakePartitionConsumer) Messages() <-chan *sarama.ConsumerMessage { return f.messages }
func (f *fakePartitionConsumer) Errors() <-chan *sarama.ConsumerError     { return f.errors }
func (f *fakePartitionConsumer) HighWaterMarkOffset() int64               { return 0 }
func (f *fakePartitionConsumer) Close() error {
	f.closes++
	return nil
}

func newFakeConsumer() (*partitionConsumer, *fakePartitionConsumer) {
	fake := &fakePartitionConsumer{
		messages: make(chan *sarama.ConsumerMessage, 8),
		errors:   make(chan *sarama.ConsumerError, 8),
	}
	factory := &Factory{cfg: Config{Topic: topic, Logger: logging.NewNop()}}

	return &partitionConsumer{factory: factory, pc: fake, partition: "1"}, fake
}

func TestConsumer_ClosedMessagesIsDisconnect(t *testing.T) {
	c, fake := newFakeConsumer()
	close(fake.messages)

	_, err := c.Receive(t.Context(), 10, time.Second)
	require.ErrorIs(t, err, types.ErrConsumerDisconnected)
	require.True(t, types.IsNonRetryable(err))
}

func TestConsumer_ErrorAfterMessagesIsDeferred(t *testing.T) {
	c, fake := newFakeConsumer()
	fake.messages <- &sarama.ConsumerMessage{Offset: 7, Value: []byte("x")}

	// Deliver the error only after the first message is taken.
	go func() {
		time.Sleep(10 * time.Millisecond)
		fake.errors <- &sarama.ConsumerError{Topic: topic, Partition: 1, Err: sarama.ErrClosedClient}
	}()

	batch, err := c.Receive(t.Context(), 1, time.Second)
	require.NoError(t, err)
	require.Len(t, batch, 1)

	batch, err = c.Receive(t.Context(), 10, time.Second)
	require.Empty(t, batch)
	require.ErrorIs(t, err, types.ErrConsumerDisconnected)
}

func TestConsumer_PendingErrorReturnedFirst(t *testing.T) {
	c, _ := newFakeConsumer()
	c.pending = Classify("1", "receive", sarama.ErrClosedClient)

	_, err := c.Receive(t.Context(), 10, time.Millisecond)
	require.ErrorIs(t, err, sarama.ErrClosedClient)
	require.Nil(t, c.pending)
}

func TestConsumer_CloseOnce(t *testing.T) {
	c, fake := newFakeConsumer()

	require.NoError(t, c.Close(t.Context()))
	require.NoError(t, c.Close(t.Context()))
	require.Equal(t, 1, fake.closes)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		nonRetryable bool
		exhausted    bool
		sentinel     error
	}{
		{name: "out of brokers", err: sarama.ErrOutOfBrokers},
		{name: "not connected", err: sarama.ErrNotConnected},
		{name: "unknown", err: errors.New("boom")},
		{name: "closed client", err: sarama.ErrClosedClient, nonRetryable: true, sentinel: types.ErrConsumerDisconnected},
		{name: "unknown topic", err: sarama.ErrUnknownTopicOrPartition, nonRetryable: true, sentinel: types.ErrStreamClosed},
		{name: "offset out of range", err: sarama.ErrOffsetOutOfRange, nonRetryable: true, sentinel: types.ErrNonRetryable},
		{name: "message too large", err: sarama.ErrMessageSizeTooLarge, nonRetryable: true, exhausted: true, sentinel: types.ErrResourceExhausted},
		{
			name:         "wrapped consumer error",
			err:          &sarama.ConsumerError{Topic: topic, Partition: 0, Err: sarama.ErrClosedClient},
			nonRetryable: true,
			sentinel:     types.ErrConsumerDisconnected,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify("0", "receive", tt.err)
			require.Equal(t, tt.nonRetryable, types.IsNonRetryable(got))
			require.Equal(t, tt.exhausted, types.IsResourceExhaustion(got))
			if tt.sentinel != nil {
				require.ErrorIs(t, got, tt.sentinel)
			}
		})
	}

	require.NoError(t, Classify("0", "receive", nil))
	require.ErrorIs(t, Classify("0", "receive", context.Canceled), context.Canceled)
	require.True(t, types.IsTransient(Classify("0", "receive", context.DeadlineExceeded)))
}

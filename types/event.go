package types

import "time"

// Event is a single immutable event read from one partition.
//
// Events are created by a partition reader, buffered in the fan-in channel and
// consumed exactly once by the stream reader. Callers must treat Data as read-only.
type Event struct {
	// Partition identifies the partition the event was read from.
	Partition string

	// Sequence is the transport-assigned position of the event within its partition
	// (JetStream stream sequence, Kafka offset).
	Sequence uint64

	// Subject is the transport routing key of the event, if any.
	Subject string

	// Key is the optional partitioning key of the event.
	Key []byte

	// Data is the raw event payload. Payload decoding is left to the caller.
	Data []byte

	// Headers carries transport headers, if any.
	Headers map[string][]string

	// EnqueuedAt is the broker-side enqueue time of the event.
	EnqueuedAt time.Time

	// Context carries partition-level metadata captured when the event was received.
	Context PartitionContext
}

// PartitionContext carries metadata about the partition an event was read from.
//
// LastEnqueued fields are populated only when last-enqueued tracking is enabled
// for the read and the transport can report them.
type PartitionContext struct {
	// Partition identifies the partition.
	Partition string

	// Tracked reports whether the LastEnqueued fields are populated.
	Tracked bool

	// LastEnqueuedSequence is the sequence of the last event enqueued in the partition
	// at the time the batch was received.
	LastEnqueuedSequence uint64

	// LastEnqueuedAt is the enqueue time of the last known event, when available.
	LastEnqueuedAt time.Time

	// RetrievedAt is when the partition metadata was observed.
	RetrievedAt time.Time
}

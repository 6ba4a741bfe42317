package types

import (
	"context"
	"time"
)

// TransportConsumer receives batches of events from a single partition.
//
// Implementations wrap a transport-specific receive handle (a JetStream pull
// consumer, a Kafka partition consumer). A TransportConsumer is owned by exactly
// one partition reader and is never called concurrently.
type TransportConsumer interface {
	// Receive returns the next ordered batch of events for the partition.
	//
	// Implementations should:
	//   - Return at most maxCount events
	//   - Return an empty batch (not an error) when maxWait elapses without data
	//   - Return events in partition order
	//   - Return a *TransportError (or an error wrapping a taxonomy sentinel) on failure
	//
	// Parameters:
	//   - ctx: Context for cancellation
	//   - maxCount: Maximum number of events to return
	//   - maxWait: Maximum time to wait for the first event
	//
	// Returns:
	//   - []Event: Received events (may be empty)
	//   - error: Transport error (nil on success)
	Receive(ctx context.Context, maxCount int, maxWait time.Duration) ([]Event, error)

	// Close releases the underlying network resource.
	//
	// The partition reader calls Close exactly once when it exits.
	Close(ctx context.Context) error
}

// OpenOptions carries per-reader options passed to TransportFactory.Open.
type OpenOptions struct {
	// TrackLastEnqueued requests last-enqueued metadata in PartitionContext.
	TrackLastEnqueued bool

	// PrefetchCount is a hint for transports that buffer ahead of Receive.
	PrefetchCount int
}

// TransportFactory opens TransportConsumers for partitions.
//
// Open is called once per partition reader, from the reader's own goroutine,
// so implementations must be safe for concurrent use.
type TransportFactory interface {
	// Open creates a receive handle positioned at start for the given partition.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - partitionID: Partition to consume
	//   - start: Start position cursor
	//   - opts: Per-reader options
	//
	// Returns:
	//   - TransportConsumer: Receive handle owned by the caller
	//   - error: Transport error (classified like Receive errors)
	Open(ctx context.Context, partitionID string, start StartPosition, opts OpenOptions) (TransportConsumer, error)
}

// PartitionDiscovery lists the partitions currently known for a stream.
//
// Implementations can query various backends:
//   - JetStream: subjects retained by the stream
//   - Kafka: partitions of a topic
//   - Static: fixed list for testing
type PartitionDiscovery interface {
	// ListPartitionIDs returns the identities of all known partitions.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//
	// Returns:
	//   - []string: Partition identities, unique within the stream
	//   - error: Discovery error (nil on success)
	ListPartitionIDs(ctx context.Context) ([]string, error)
}

// TransportFactoryFunc is a function adapter for TransportFactory.
type TransportFactoryFunc func(ctx context.Context, partitionID string, start StartPosition, opts OpenOptions) (TransportConsumer, error)

// Open implements TransportFactory interface.
func (f TransportFactoryFunc) Open(ctx context.Context, partitionID string, start StartPosition, opts OpenOptions) (TransportConsumer, error) {
	return f(ctx, partitionID, start, opts)
}

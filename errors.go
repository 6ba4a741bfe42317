package fanin

import "github.com/arloliu/fanin/types"

// Sentinel errors re-exported from the types package.
var (
	// ErrTransientTransport marks a retryable transport failure.
	ErrTransientTransport = types.ErrTransientTransport

	// ErrNonRetryable marks a transport failure that terminates the reader.
	ErrNonRetryable = types.ErrNonRetryable

	// ErrConsumerDisconnected is returned when the transport connection or consumer was forcibly closed.
	ErrConsumerDisconnected = types.ErrConsumerDisconnected

	// ErrStreamClosed is returned when the transport stream was already closed.
	ErrStreamClosed = types.ErrStreamClosed

	// ErrResourceExhausted marks a catastrophic resource exhaustion.
	ErrResourceExhausted = types.ErrResourceExhausted

	// ErrChannelCompleted is returned when writing to a completed fan-in channel.
	ErrChannelCompleted = types.ErrChannelCompleted

	// ErrStreamEnded is returned by Stream.Next after a clean end of the stream.
	ErrStreamEnded = types.ErrStreamEnded

	// ErrRetriesExhausted wraps the last transport error once the retry policy gave up.
	ErrRetriesExhausted = types.ErrRetriesExhausted

	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = types.ErrInvalidConfig

	// ErrTransportRequired is returned when the transport factory is nil.
	ErrTransportRequired = types.ErrTransportRequired

	// ErrDiscoveryRequired is returned by ReadAll on a consumer without partition discovery.
	ErrDiscoveryRequired = types.ErrDiscoveryRequired

	// ErrConsumerClosed is returned when reading from a closed consumer.
	ErrConsumerClosed = types.ErrConsumerClosed

	// ErrPartitionRequired is returned when a partition id is empty.
	ErrPartitionRequired = types.ErrPartitionRequired
)

// Error classifiers re-exported from the types package.
var (
	IsTransient          = types.IsTransient
	IsNonRetryable       = types.IsNonRetryable
	IsResourceExhaustion = types.IsResourceExhaustion
	IsCancellation       = types.IsCancellation
)

package types

// MetricsCollector defines methods for recording operational metrics.
//
// Implementations should be non-blocking and handle failures gracefully.
// All methods are called from reader and supervisor goroutines and must be thread-safe.
//
// This interface composes smaller, domain-focused interfaces for better modularity.
type MetricsCollector interface {
	ReaderMetrics
	ChannelMetrics
	SupervisorMetrics
}

// ReaderMetrics defines metrics for partition reader operations.
type ReaderMetrics interface {
	// RecordReaderState records a reader state transition.
	RecordReaderState(partition string, from, to ReaderState)

	// RecordBatchReceived records a successful receive.
	//
	// Parameters:
	//   - partition: Partition identity
	//   - events: Number of events in the batch (0 for an empty wait)
	//   - duration: Receive latency in seconds
	RecordBatchReceived(partition string, events int, duration float64)

	// RecordReceiveRetry records a retried receive failure and the chosen backoff.
	RecordReceiveRetry(partition string, attempt int, delay float64)

	// RecordReaderFailure records a terminal reader failure by error kind.
	RecordReaderFailure(partition string, kind string)
}

// ChannelMetrics defines metrics for the shared fan-in buffer.
type ChannelMetrics interface {
	// RecordChannelDepth sets the current number of buffered events (gauge metric).
	RecordChannelDepth(depth int)

	// RecordWriteBlocked records time a writer spent blocked on a full buffer, in seconds.
	RecordWriteBlocked(partition string, duration float64)
}

// SupervisorMetrics defines metrics for supervisor operations.
type SupervisorMetrics interface {
	// RecordActiveReaders sets the current number of registered readers (gauge metric).
	RecordActiveReaders(count int)

	// RecordStreamCompleted records a stream completion by result ("ok", "error", "canceled").
	RecordStreamCompleted(result string, duration float64)
}

// Package metrics provides types.MetricsCollector implementations.
package metrics

import "github.com/arloliu/fanin/types"

// NopMetrics implements a no-op metrics collector.
//
// All metrics are discarded. Useful for testing or when external
// metrics collection is used.
type NopMetrics struct{}

// Compile-time assertion that NopMetrics implements MetricsCollector.
var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNop creates a new no-op metrics collector.
//
// Example:
//
//	consumer, _ := fanin.NewConsumer(&cfg, factory, discovery, fanin.WithMetrics(metrics.NewNop()))
func NewNop() *NopMetrics {
	return &NopMetrics{}
}

// ReaderMetrics implementation

// RecordReaderState discards the reader state transition.
func (n *NopMetrics) RecordReaderState(_ /* partition */ string, _ /* from */, _ /* to */ types.ReaderState) {
}

// RecordBatchReceived discards the batch metric.
func (n *NopMetrics) RecordBatchReceived(_ /* partition */ string, _ /* events */ int, _ /* duration */ float64) {
}

// RecordReceiveRetry discards the retry metric.
func (n *NopMetrics) RecordReceiveRetry(_ /* partition */ string, _ /* attempt */ int, _ /* delay */ float64) {
}

// RecordReaderFailure discards the failure metric.
func (n *NopMetrics) RecordReaderFailure(_ /* partition */ string, _ /* kind */ string) {}

// ChannelMetrics implementation

// RecordChannelDepth discards the depth gauge.
func (n *NopMetrics) RecordChannelDepth(_ /* depth */ int) {}

// RecordWriteBlocked discards the blocked-write metric.
func (n *NopMetrics) RecordWriteBlocked(_ /* partition */ string, _ /* duration */ float64) {}

// SupervisorMetrics implementation

// RecordActiveReaders discards the active readers gauge.
func (n *NopMetrics) RecordActiveReaders(_ /* count */ int) {}

// RecordStreamCompleted discards the completion metric.
func (n *NopMetrics) RecordStreamCompleted(_ /* result */ string, _ /* duration */ float64) {}

package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arloliu/fanin/types"
)

// PrometheusCollector implements types.MetricsCollector backed by Prometheus.
//
// Collectors are created and registered lazily on first use so that an unused
// collector never touches the registry.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	// Reader metrics
	readerTransitions *prometheus.CounterVec
	readerStates      *prometheus.GaugeVec
	batchEvents       *prometheus.CounterVec
	batchLatency      *prometheus.HistogramVec
	receiveRetries    *prometheus.CounterVec
	retryBackoff      prometheus.Histogram
	readerFailures    *prometheus.CounterVec

	// Channel metrics
	channelDepth prometheus.Gauge
	writeBlocked *prometheus.HistogramVec

	// Supervisor metrics
	activeReaders     prometheus.Gauge
	streamCompletions *prometheus.CounterVec
	streamDuration    prometheus.Histogram
}

// Compile-time assertion that PrometheusCollector implements MetricsCollector.
var _ types.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheus creates a new Prometheus-backed metrics collector.
//
// Parameters:
//   - reg: Prometheus registerer interface (uses prometheus.DefaultRegisterer if nil)
//   - namespace: Prometheus metrics namespace (defaults to "fanin" if empty)
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "fanin"
	}

	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.readerTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "reader",
			Name:      "state_transitions_total",
			Help:      "Total reader state transitions by source and target state.",
		}, []string{"from", "to"})

		p.readerStates = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "reader",
			Name:      "state",
			Help:      "Current reader state per partition (0=Starting,1=Running,2=Draining,3=Stopped).",
		}, []string{"partition"})

		p.batchEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "reader",
			Name:      "events_received_total",
			Help:      "Total events received from the transport per partition.",
		}, []string{"partition"})

		p.batchLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "reader",
			Name:      "receive_duration_seconds",
			Help:      "Latency of transport receive calls in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2.5, 10), // 1ms .. ~3.8s
		}, []string{"partition"})

		p.receiveRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "reader",
			Name:      "receive_retries_total",
			Help:      "Total retried receive failures per partition.",
		}, []string{"partition"})

		p.retryBackoff = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "reader",
			Name:      "retry_backoff_seconds",
			Help:      "Backoff delays chosen by the retry policy in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		})

		p.readerFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "reader",
			Name:      "failures_total",
			Help:      "Terminal reader failures by error kind.",
		}, []string{"partition", "kind"})

		p.channelDepth = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "channel",
			Name:      "depth",
			Help:      "Number of events buffered in the fan-in channel.",
		})

		p.writeBlocked = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "channel",
			Name:      "write_blocked_seconds",
			Help:      "Time readers spent blocked on a full fan-in channel.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8), // 1ms .. ~16s
		}, []string{"partition"})

		p.activeReaders = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "supervisor",
			Name:      "active_readers",
			Help:      "Number of readers currently registered with the supervisor.",
		})

		p.streamCompletions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "supervisor",
			Name:      "streams_completed_total",
			Help:      "Completed streams by result (ok, error, canceled).",
		}, []string{"result"})

		p.streamDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "supervisor",
			Name:      "stream_duration_seconds",
			Help:      "Lifetime of fan-in streams in seconds.",
			Buckets:   []float64{1, 10, 60, 300, 900, 3600, 14400, 86400},
		})

		p.reg.MustRegister(
			p.readerTransitions,
			p.readerStates,
			p.batchEvents,
			p.batchLatency,
			p.receiveRetries,
			p.retryBackoff,
			p.readerFailures,
			p.channelDepth,
			p.writeBlocked,
			p.activeReaders,
			p.streamCompletions,
			p.streamDuration,
		)
	})
}

// ReaderMetrics implementation

// RecordReaderState counts the transition and sets the partition's state gauge.
func (p *PrometheusCollector) RecordReaderState(partition string, from, to types.ReaderState) {
	p.ensureRegistered()
	p.readerTransitions.WithLabelValues(from.String(), to.String()).Inc()
	if to == types.ReaderStopped {
		p.readerStates.DeleteLabelValues(partition)
		return
	}
	p.readerStates.WithLabelValues(partition).Set(float64(to))
}

// RecordBatchReceived adds the batch size and observes receive latency.
func (p *PrometheusCollector) RecordBatchReceived(partition string, events int, duration float64) {
	p.ensureRegistered()
	p.batchEvents.WithLabelValues(partition).Add(float64(events))
	p.batchLatency.WithLabelValues(partition).Observe(duration)
}

// RecordReceiveRetry counts a retry and observes its backoff.
func (p *PrometheusCollector) RecordReceiveRetry(partition string, _ /* attempt */ int, delay float64) {
	p.ensureRegistered()
	p.receiveRetries.WithLabelValues(partition).Inc()
	p.retryBackoff.Observe(delay)
}

// RecordReaderFailure counts a terminal reader failure.
func (p *PrometheusCollector) RecordReaderFailure(partition string, kind string) {
	p.ensureRegistered()
	p.readerFailures.WithLabelValues(partition, kind).Inc()
}

// ChannelMetrics implementation

// RecordChannelDepth sets the buffered events gauge.
func (p *PrometheusCollector) RecordChannelDepth(depth int) {
	p.ensureRegistered()
	p.channelDepth.Set(float64(depth))
}

// RecordWriteBlocked observes time spent blocked on a full channel.
func (p *PrometheusCollector) RecordWriteBlocked(partition string, duration float64) {
	p.ensureRegistered()
	p.writeBlocked.WithLabelValues(partition).Observe(duration)
}

// SupervisorMetrics implementation

// RecordActiveReaders sets the active readers gauge.
func (p *PrometheusCollector) RecordActiveReaders(count int) {
	p.ensureRegistered()
	p.activeReaders.Set(float64(count))
}

// RecordStreamCompleted counts a completion and observes the stream lifetime.
func (p *PrometheusCollector) RecordStreamCompleted(result string, duration float64) {
	p.ensureRegistered()
	p.streamCompletions.WithLabelValues(result).Inc()
	p.streamDuration.Observe(duration)
}

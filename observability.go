package fanin

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/arloliu/fanin/internal/logging"
	"github.com/arloliu/fanin/internal/metrics"
)

// NewSlogLogger adapts a *slog.Logger (nil means slog.Default()) to Logger.
func NewSlogLogger(logger *slog.Logger) Logger {
	return logging.NewSlog(logger)
}

// NewZapLogger adapts a *zap.Logger (nil means a no-op logger) to Logger.
func NewZapLogger(logger *zap.Logger) Logger {
	return logging.NewZap(logger)
}

// NewPrometheusMetrics returns a MetricsCollector exporting Prometheus metrics.
//
// Metrics are registered on first use. A nil registerer means
// prometheus.DefaultRegisterer and an empty namespace means "fanin".
func NewPrometheusMetrics(reg prometheus.Registerer, namespace string) MetricsCollector {
	return metrics.NewPrometheus(reg, namespace)
}

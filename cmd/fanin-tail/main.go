// Command fanin-tail prints the events of every partition of a JetStream stream
// or Kafka topic as JSON lines (plain records or CloudEvents), merged into a
// single stream.
//
// Usage:
//
//	fanin-tail -config fanin-tail.yaml -start since:10m
//	fanin-tail -config fanin-tail.yaml -format cloudevents
//	FANIN_TRANSPORT=kafka FANIN_KAFKA_BROKERS=localhost:9092 FANIN_KAFKA_TOPIC=orders fanin-tail
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/arloliu/fanin"
)

var (
	// Version information (set during build)
	version = "dev"
	commit  = "none"

	configFile  = flag.String("config", getEnv("CONFIG_FILE", ""), "Path to configuration file")
	logLevel    = flag.String("log-level", getEnv("LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	metricsAddr = flag.String("metrics-addr", getEnv("METRICS_ADDR", ""), "Prometheus metrics listen address (disabled when empty)")
	partition   = flag.String("partition", "", "Read a single partition instead of all partitions")
	start       = flag.String("start", "", "Start position (latest, earliest, seq:N, after:N, time:RFC3339, since:DURATION)")
	format      = flag.String("format", "", "Output format (json, cloudevents)")
)

func main() {
	flag.Parse()

	logger, err := initLogger(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(logger); err != nil {
		logger.Error("fanin-tail failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(logger *zap.Logger) error {
	logger.Info("Starting fanin-tail",
		zap.String("version", version),
		zap.String("commit", commit))

	cfg, err := Load(*configFile)
	if err != nil {
		return err
	}
	if *partition != "" {
		cfg.Read.Partition = *partition
	}
	if *start != "" {
		cfg.Read.Start = *start
	}
	if *format != "" {
		cfg.Read.Format = *format
	}

	out, err := newEventWriter(cfg.Read.Format, os.Stdout, cfg.source())
	if err != nil {
		return err
	}

	startPos, err := parseStart(cfg.Read.Start, time.Now())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *metricsAddr != "" {
		srv := startMetricsServer(*metricsAddr, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	tr, err := openTransport(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := tr.close(); err != nil {
			logger.Warn("Error closing transport", zap.Error(err))
		}
	}()

	consumer, err := fanin.NewConsumer(&cfg.Consumer, tr.factory, tr.discovery,
		fanin.WithLogger(fanin.NewZapLogger(logger.Named("fanin"))),
		fanin.WithMetrics(fanin.NewPrometheusMetrics(prometheus.DefaultRegisterer, "fanin")),
	)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Consumer.ShutdownTimeout)
		defer cancel()
		if err := consumer.Close(closeCtx); err != nil {
			logger.Warn("Error closing consumer", zap.Error(err))
		}
	}()

	opts := fanin.ReadOptions{
		StartPosition:     startPos,
		MaxWaitTime:       cfg.Read.MaxWaitTime,
		TrackLastEnqueued: cfg.Read.TrackLastEnqueued,
	}

	var stream *fanin.Stream
	if cfg.Read.Partition != "" {
		stream, err = consumer.ReadPartition(ctx, cfg.Read.Partition, opts)
	} else {
		stream, err = consumer.ReadAll(ctx, opts)
	}
	if err != nil {
		return err
	}

	logger.Info("Tailing partitions",
		zap.String("transport", cfg.Transport),
		zap.Strings("partitions", stream.Partitions()),
		zap.Stringer("start", startPos))

	written, err := tail(ctx, stream, out, logger)
	logger.Info("fanin-tail stopped", zap.Int("events", written))

	return err
}

func startMetricsServer(addr string, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("Starting metrics server", zap.String("address", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()

	return srv
}

// initLogger builds a zap logger for level; debug uses the development config.
// Logs go to stderr so stdout carries only events.
func initLogger(level string) (*zap.Logger, error) {
	var config zap.Config
	if level == "debug" {
		config = zap.NewDevelopmentConfig()
	} else {
		config = zap.NewProductionConfig()
		config.Level = parseLogLevel(level)
	}
	config.OutputPaths = []string{"stderr"}

	return config.Build()
}

func parseLogLevel(level string) zap.AtomicLevel {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	return zap.NewAtomicLevelAt(lvl)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

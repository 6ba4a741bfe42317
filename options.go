package fanin

// Option configures a Consumer with optional dependencies.
type Option func(*consumerOptions)

// consumerOptions holds optional Consumer configuration.
type consumerOptions struct {
	hooks       *Hooks
	metrics     MetricsCollector
	logger      Logger
	retryPolicy RetryPolicy
}

// WithHooks sets lifecycle event hooks.
//
// Parameters:
//   - hooks: Hooks structure with callback functions (nil callbacks are skipped)
//
// Returns:
//   - Option: Functional option for NewConsumer
//
// Example:
//
//	hooks := &fanin.Hooks{
//	    OnReaderStopped: func(ctx context.Context, partition string, err error) error {
//	        log.Printf("reader %s stopped: %v", partition, err)
//	        return nil
//	    },
//	}
//	consumer, _ := fanin.NewConsumer(&cfg, factory, discovery, fanin.WithHooks(hooks))
func WithHooks(hooks *Hooks) Option {
	return func(o *consumerOptions) {
		o.hooks = hooks
	}
}

// WithMetrics sets a metrics collector.
//
// Parameters:
//   - metrics: MetricsCollector implementation
//
// Returns:
//   - Option: Functional option for NewConsumer
//
// Example:
//
//	collector := fanin.NewPrometheusMetrics(prometheus.DefaultRegisterer, "orders")
//	consumer, _ := fanin.NewConsumer(&cfg, factory, discovery, fanin.WithMetrics(collector))
func WithMetrics(metrics MetricsCollector) Option {
	return func(o *consumerOptions) {
		o.metrics = metrics
	}
}

// WithLogger sets a logger.
//
// Parameters:
//   - logger: Logger implementation (compatible with zap.SugaredLogger)
//
// Returns:
//   - Option: Functional option for NewConsumer
//
// Example:
//
//	consumer, _ := fanin.NewConsumer(&cfg, factory, discovery, fanin.WithLogger(fanin.NewSlogLogger(nil)))
func WithLogger(logger Logger) Option {
	return func(o *consumerOptions) {
		o.logger = logger
	}
}

// WithRetryPolicy replaces the retry policy built from Config.Retry.
//
// The policy is shared by all readers of the consumer and must be safe for
// concurrent use.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(o *consumerOptions) {
		o.retryPolicy = policy
	}
}

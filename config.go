package fanin

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/arloliu/fanin/retry"
)

// Configuration limits.
const (
	// MaxBatchSizeLimit bounds MaxBatchSize; the fan-in buffer holds partitions x MaxBatchSize events.
	MaxBatchSizeLimit = 10000
)

// RetryConfig configures the default retry policy consulted on transport failures.
type RetryConfig struct {
	// Mode is "exponential" (default) or "fixed".
	Mode string `yaml:"mode"`

	// MaxRetries is the number of consecutive failures retried per reader.
	// Zero applies the default, a negative value disables retries.
	MaxRetries int `yaml:"maxRetries"`

	// Delay is the delay of the first retry.
	Delay time.Duration `yaml:"delay"`

	// MaxDelay caps a single retry delay.
	MaxDelay time.Duration `yaml:"maxDelay"`

	// Multiplier is the exponential growth factor.
	Multiplier float64 `yaml:"multiplier"`

	// Jitter is the relative spread of each delay (0.2 means +/-20%).
	Jitter float64 `yaml:"jitter"`

	// JitterSeed varies the deterministic jitter sequence between deployments.
	JitterSeed uint64 `yaml:"jitterSeed"`
}

// Policy builds the retry policy described by the configuration.
//
// Returns:
//   - retry.Policy: Policy ready to be shared by all readers
//   - error: ErrInvalidConfig if Mode is unknown
func (rc RetryConfig) Policy() (retry.Policy, error) {
	mode, ok := retry.ParseMode(rc.Mode)
	if !ok {
		return retry.Policy{}, fmt.Errorf("%w: unknown retry mode %q", ErrInvalidConfig, rc.Mode)
	}

	return retry.Policy{
		Mode:       mode,
		MaxRetries: rc.MaxRetries,
		BaseDelay:  rc.Delay,
		MaxDelay:   rc.MaxDelay,
		Multiplier: rc.Multiplier,
		Jitter:     rc.Jitter,
		JitterSeed: rc.JitterSeed,
	}, nil
}

// Config is the configuration for a Consumer.
//
// All duration fields accept standard Go duration strings like "500ms", "5s", "1m".
type Config struct {
	// MaxBatchSize is the maximum number of events a reader requests per receive.
	// It also sizes the shared buffer: capacity = partitions x MaxBatchSize.
	MaxBatchSize int `yaml:"maxBatchSize"`

	// ReceiveWaitTime bounds how long a single transport receive waits for data.
	// It never bounds how long a caller of Stream.Next blocks; see ReadOptions.MaxWaitTime.
	ReceiveWaitTime time.Duration `yaml:"receiveWaitTime"`

	// ShutdownTimeout bounds releasing a transport handle and stream teardown
	// triggered by cancellation.
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`

	// TrackLastEnqueued enables last-enqueued metadata on every stream of the consumer.
	TrackLastEnqueued bool `yaml:"trackLastEnqueued"`

	// Retry configures the default retry policy. WithRetryPolicy overrides it.
	Retry RetryConfig `yaml:"retry"`
}

// DefaultConfig returns a Config with sensible defaults.
//
// Returns:
//   - Config: Configuration with default values
func DefaultConfig() Config {
	return Config{
		MaxBatchSize:    32,
		ReceiveWaitTime: 5 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		Retry: RetryConfig{
			Mode:       retry.ModeExponential.String(),
			MaxRetries: retry.DefaultMaxRetries,
			Delay:      retry.DefaultBaseDelay,
			MaxDelay:   retry.DefaultMaxDelay,
			Multiplier: retry.DefaultMultiplier,
			Jitter:     retry.DefaultJitter,
		},
	}
}

// SetDefaults fills in missing configuration values with production defaults.
//
// Parameters:
//   - cfg: Config to apply defaults to (modified in place)
func SetDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.MaxBatchSize == 0 {
		cfg.MaxBatchSize = defaults.MaxBatchSize
	}
	if cfg.ReceiveWaitTime == 0 {
		cfg.ReceiveWaitTime = defaults.ReceiveWaitTime
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = defaults.ShutdownTimeout
	}
	if cfg.Retry.Mode == "" {
		cfg.Retry.Mode = defaults.Retry.Mode
	}
	// Negative MaxRetries disables retries and is kept as is.
	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry.MaxRetries = defaults.Retry.MaxRetries
	}
	if cfg.Retry.Delay == 0 {
		cfg.Retry.Delay = defaults.Retry.Delay
	}
	if cfg.Retry.MaxDelay == 0 {
		cfg.Retry.MaxDelay = defaults.Retry.MaxDelay
	}
	if cfg.Retry.Multiplier == 0 {
		cfg.Retry.Multiplier = defaults.Retry.Multiplier
	}
	// Jitter of 0 is valid (no jitter), so no default is applied.
}

// Validate checks configuration constraints and returns error for invalid values.
//
// Hard Validation Rules:
//   - 0 < MaxBatchSize <= MaxBatchSizeLimit
//   - ReceiveWaitTime > 0
//   - ShutdownTimeout > 0
//   - Retry.Mode is "exponential" or "fixed"
//   - 0 < Retry.Delay <= Retry.MaxDelay
//   - Retry.Multiplier >= 1
//   - 0 <= Retry.Jitter <= 1
//
// Returns:
//   - error: Error wrapping ErrInvalidConfig, nil if valid
func (cfg *Config) Validate() error {
	if cfg.MaxBatchSize <= 0 || cfg.MaxBatchSize > MaxBatchSizeLimit {
		return fmt.Errorf("%w: MaxBatchSize (%d) must be in [1, %d]", ErrInvalidConfig, cfg.MaxBatchSize, MaxBatchSizeLimit)
	}

	if cfg.ReceiveWaitTime <= 0 {
		return fmt.Errorf("%w: ReceiveWaitTime must be > 0, got %v", ErrInvalidConfig, cfg.ReceiveWaitTime)
	}

	if cfg.ShutdownTimeout <= 0 {
		return fmt.Errorf("%w: ShutdownTimeout must be > 0, got %v", ErrInvalidConfig, cfg.ShutdownTimeout)
	}

	if _, ok := retry.ParseMode(cfg.Retry.Mode); !ok {
		return fmt.Errorf("%w: unknown retry mode %q", ErrInvalidConfig, cfg.Retry.Mode)
	}

	if cfg.Retry.Delay <= 0 {
		return fmt.Errorf("%w: Retry.Delay must be > 0, got %v", ErrInvalidConfig, cfg.Retry.Delay)
	}

	if cfg.Retry.MaxDelay < cfg.Retry.Delay {
		return fmt.Errorf(
			"%w: Retry.MaxDelay (%v) must be >= Retry.Delay (%v)",
			ErrInvalidConfig, cfg.Retry.MaxDelay, cfg.Retry.Delay,
		)
	}

	if cfg.Retry.Multiplier < 1 {
		return fmt.Errorf("%w: Retry.Multiplier must be >= 1, got %v", ErrInvalidConfig, cfg.Retry.Multiplier)
	}

	if cfg.Retry.Jitter < 0 || cfg.Retry.Jitter > 1 {
		return fmt.Errorf("%w: Retry.Jitter must be in [0, 1], got %v", ErrInvalidConfig, cfg.Retry.Jitter)
	}

	return nil
}

// ValidateWithWarnings logs warnings for valid but non-recommended values.
//
// This is called after Validate() in NewConsumer() to provide operator guidance.
//
// Parameters:
//   - logger: Logger instance for warning output
func (cfg *Config) ValidateWithWarnings(logger Logger) {
	if cfg.ReceiveWaitTime < 100*time.Millisecond {
		logger.Warn(
			"ReceiveWaitTime is very short, readers will poll the transport aggressively",
			"receiveWaitTime", cfg.ReceiveWaitTime,
			"recommended", "1s or higher",
		)
	}

	if cfg.Retry.MaxRetries < 0 {
		logger.Warn("retries are disabled, every transport failure stops the stream")
	}

	if cfg.ShutdownTimeout < cfg.ReceiveWaitTime {
		logger.Warn(
			"ShutdownTimeout is shorter than ReceiveWaitTime",
			"shutdownTimeout", cfg.ShutdownTimeout,
			"receiveWaitTime", cfg.ReceiveWaitTime,
		)
	}

	if cfg.MaxBatchSize > 1024 {
		logger.Warn(
			"MaxBatchSize is large, buffer memory grows with partitions x MaxBatchSize",
			"maxBatchSize", cfg.MaxBatchSize,
		)
	}
}

// TestConfig returns a configuration optimized for fast test execution.
//
// Returns:
//   - Config: Configuration with fast timings for tests
//
// Example:
//
//	cfg := fanin.TestConfig()
//	consumer, err := fanin.NewConsumer(&cfg, factory, discovery)
func TestConfig() Config {
	cfg := DefaultConfig()

	cfg.MaxBatchSize = 8
	cfg.ReceiveWaitTime = 50 * time.Millisecond
	cfg.ShutdownTimeout = 2 * time.Second
	cfg.Retry.Delay = 5 * time.Millisecond
	cfg.Retry.MaxDelay = 50 * time.Millisecond

	return cfg
}

// LoadConfig reads a YAML configuration file, applies defaults and validates it.
//
// Parameters:
//   - path: Path to the YAML file
//
// Returns:
//   - *Config: Loaded configuration
//   - error: Read, parse or validation error
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	return ParseConfig(data)
}

// ParseConfig decodes YAML configuration data, applies defaults and validates it.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: parse yaml: %w", ErrInvalidConfig, err)
	}

	SetDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

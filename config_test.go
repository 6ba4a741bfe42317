package fanin

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gopkg.in/yaml.v3"

	"github.com/arloliu/fanin/internal/logging"
	"github.com/arloliu/fanin/retry"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.Equal(t, 32, cfg.MaxBatchSize)
	require.Equal(t, 5*time.Second, cfg.ReceiveWaitTime)
	require.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	require.False(t, cfg.TrackLastEnqueued)
	require.Equal(t, "exponential", cfg.Retry.Mode)
	require.Equal(t, retry.DefaultMaxRetries, cfg.Retry.MaxRetries)
	require.Equal(t, retry.DefaultBaseDelay, cfg.Retry.Delay)
	require.Equal(t, retry.DefaultMaxDelay, cfg.Retry.MaxDelay)
	require.NoError(t, cfg.Validate())
}

func TestSetDefaults(t *testing.T) {
	t.Run("applies defaults to empty config", func(t *testing.T) {
		cfg := Config{}
		SetDefaults(&cfg)

		want := DefaultConfig()
		want.Retry.Jitter = 0
		require.Equal(t, want, cfg)
	})

	t.Run("preserves custom values", func(t *testing.T) {
		cfg := Config{
			MaxBatchSize:      100,
			ReceiveWaitTime:   time.Second,
			ShutdownTimeout:   3 * time.Second,
			TrackLastEnqueued: true,
			Retry: RetryConfig{
				Mode:       "fixed",
				MaxRetries: 7,
				Delay:      time.Second,
				MaxDelay:   2 * time.Second,
				Multiplier: 1.5,
				Jitter:     0.1,
				JitterSeed: 42,
			},
		}
		want := cfg
		SetDefaults(&cfg)

		require.Equal(t, want, cfg)
	})

	t.Run("keeps negative MaxRetries", func(t *testing.T) {
		cfg := Config{Retry: RetryConfig{MaxRetries: -1}}
		SetDefaults(&cfg)

		require.Equal(t, -1, cfg.Retry.MaxRetries)
	})

	t.Run("keeps zero jitter", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Retry.Jitter = 0
		SetDefaults(&cfg)

		require.Zero(t, cfg.Retry.Jitter)
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero batch size", func(c *Config) { c.MaxBatchSize = 0 }},
		{"batch size above limit", func(c *Config) { c.MaxBatchSize = MaxBatchSizeLimit + 1 }},
		{"zero receive wait", func(c *Config) { c.ReceiveWaitTime = 0 }},
		{"negative shutdown timeout", func(c *Config) { c.ShutdownTimeout = -time.Second }},
		{"unknown retry mode", func(c *Config) { c.Retry.Mode = "linear" }},
		{"zero retry delay", func(c *Config) { c.Retry.Delay = 0 }},
		{"max delay below delay", func(c *Config) { c.Retry.MaxDelay = c.Retry.Delay / 2 }},
		{"multiplier below one", func(c *Config) { c.Retry.Multiplier = 0.5 }},
		{"negative jitter", func(c *Config) { c.Retry.Jitter = -0.1 }},
		{"jitter above one", func(c *Config) { c.Retry.Jitter = 1.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	t.Run("fixed mode is valid", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Retry.Mode = "fixed"
		require.NoError(t, cfg.Validate())
	})

	t.Run("retries disabled is valid", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Retry.MaxRetries = -1
		require.NoError(t, cfg.Validate())
	})
}

func TestConfig_ValidateWithWarnings(t *testing.T) {
	t.Run("defaults produce no warnings", func(t *testing.T) {
		core, logs := observer.New(zap.WarnLevel)
		cfg := DefaultConfig()

		cfg.ValidateWithWarnings(logging.NewZap(zap.New(core)))

		require.Zero(t, logs.Len())
	})

	t.Run("warns on non-recommended values", func(t *testing.T) {
		core, logs := observer.New(zap.WarnLevel)
		cfg := DefaultConfig()
		cfg.ReceiveWaitTime = 10 * time.Millisecond
		cfg.Retry.MaxRetries = -1
		cfg.MaxBatchSize = 2000

		cfg.ValidateWithWarnings(logging.NewZap(zap.New(core)))

		require.Equal(t, 3, logs.Len())
		require.Equal(t, 1, logs.FilterMessageSnippet("ReceiveWaitTime").Len())
		require.Equal(t, 1, logs.FilterMessageSnippet("retries are disabled").Len())
		require.Equal(t, 1, logs.FilterMessageSnippet("MaxBatchSize").Len())
	})

	t.Run("warns when shutdown is shorter than a receive", func(t *testing.T) {
		core, logs := observer.New(zap.WarnLevel)
		cfg := DefaultConfig()
		cfg.ShutdownTimeout = time.Second

		cfg.ValidateWithWarnings(logging.NewZap(zap.New(core)))

		require.Equal(t, 1, logs.FilterMessageSnippet("ShutdownTimeout").Len())
	})
}

func TestTestConfig(t *testing.T) {
	cfg := TestConfig()

	require.NoError(t, cfg.Validate())
	require.Less(t, cfg.ReceiveWaitTime, DefaultConfig().ReceiveWaitTime)
	require.Less(t, cfg.Retry.Delay, DefaultConfig().Retry.Delay)
}

func TestRetryConfig_Policy(t *testing.T) {
	t.Run("maps fields", func(t *testing.T) {
		rc := RetryConfig{
			Mode:       "fixed",
			MaxRetries: 2,
			Delay:      10 * time.Millisecond,
			MaxDelay:   time.Second,
			Multiplier: 3,
			Jitter:     0,
			JitterSeed: 9,
		}

		policy, err := rc.Policy()
		require.NoError(t, err)
		require.Equal(t, retry.ModeFixed, policy.Mode)
		require.Equal(t, 2, policy.MaxRetries)
		require.Equal(t, 10*time.Millisecond, policy.BaseDelay)
		require.Equal(t, uint64(9), policy.JitterSeed)

		d, ok := policy.Delay(ErrTransientTransport, 2)
		require.True(t, ok)
		require.Equal(t, 10*time.Millisecond, d)

		_, ok = policy.Delay(ErrTransientTransport, 3)
		require.False(t, ok)
	})

	t.Run("unknown mode", func(t *testing.T) {
		_, err := RetryConfig{Mode: "random"}.Policy()
		require.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestParseConfig(t *testing.T) {
	t.Run("applies defaults to missing fields", func(t *testing.T) {
		data := []byte(`
maxBatchSize: 64
receiveWaitTime: 500ms
trackLastEnqueued: true
retry:
  mode: fixed
  maxRetries: 5
  delay: 100ms
`)
		cfg, err := ParseConfig(data)
		require.NoError(t, err)

		require.Equal(t, 64, cfg.MaxBatchSize)
		require.Equal(t, 500*time.Millisecond, cfg.ReceiveWaitTime)
		require.Equal(t, DefaultConfig().ShutdownTimeout, cfg.ShutdownTimeout)
		require.True(t, cfg.TrackLastEnqueued)
		require.Equal(t, "fixed", cfg.Retry.Mode)
		require.Equal(t, 5, cfg.Retry.MaxRetries)
		require.Equal(t, 100*time.Millisecond, cfg.Retry.Delay)
		require.Equal(t, retry.DefaultMaxDelay, cfg.Retry.MaxDelay)
	})

	t.Run("round trips through yaml", func(t *testing.T) {
		want := DefaultConfig()
		want.TrackLastEnqueued = true

		data, err := yaml.Marshal(&want)
		require.NoError(t, err)

		cfg, err := ParseConfig(data)
		require.NoError(t, err)
		require.Equal(t, want, *cfg)
	})

	t.Run("rejects malformed yaml", func(t *testing.T) {
		_, err := ParseConfig([]byte("maxBatchSize: [1, 2"))
		require.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("rejects invalid values", func(t *testing.T) {
		_, err := ParseConfig([]byte("maxBatchSize: -4"))
		require.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestLoadConfig(t *testing.T) {
	t.Run("loads file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "fanin.yaml")
		require.NoError(t, os.WriteFile(path, []byte("shutdownTimeout: 30s\n"), 0o600))

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		require.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
		require.Equal(t, DefaultConfig().MaxBatchSize, cfg.MaxBatchSize)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
		require.ErrorIs(t, err, os.ErrNotExist)
	})
}

package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/viper"

	"github.com/arloliu/fanin"
)

// Config is the fanin-tail configuration.
type Config struct {
	// Transport is "nats" or "kafka".
	Transport string `mapstructure:"transport"`

	NATS     NATSConfig   `mapstructure:"nats"`
	Kafka    KafkaConfig  `mapstructure:"kafka"`
	Consumer fanin.Config `mapstructure:"consumer"`
	Read     ReadConfig   `mapstructure:"read"`
}

// NATSConfig configures the JetStream transport.
type NATSConfig struct {
	URL               string        `mapstructure:"url"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Stream            string        `mapstructure:"stream"`
	SubjectTemplate   string        `mapstructure:"subjectTemplate"`
	ConsumerPrefix    string        `mapstructure:"consumerPrefix"`
	InactiveThreshold time.Duration `mapstructure:"inactiveThreshold"`
}

// KafkaConfig configures the Kafka transport.
type KafkaConfig struct {
	Brokers            []string `mapstructure:"brokers"`
	Topic              string   `mapstructure:"topic"`
	Version            string   `mapstructure:"version"`
	SecurityProtocol   string   `mapstructure:"securityProtocol"` // PLAINTEXT, SSL, SASL_PLAINTEXT, SASL_SSL
	SASLMechanism      string   `mapstructure:"saslMechanism"`    // PLAIN, SCRAM-SHA-256, SCRAM-SHA-512, AWS_MSK_IAM
	SASLUsername       string   `mapstructure:"saslUsername"`
	SASLPassword       string   `mapstructure:"saslPassword"`
	AWSRegion          string   `mapstructure:"awsRegion"`
	InsecureSkipVerify bool     `mapstructure:"insecureSkipVerify"`
}

// ReadConfig selects what is tailed.
type ReadConfig struct {
	// Partition reads a single partition; empty reads all partitions.
	Partition string `mapstructure:"partition"`

	// Start is latest, earliest, seq:N, after:N, time:RFC3339 or since:DURATION.
	Start string `mapstructure:"start"`

	// MaxWaitTime bounds how long the tail blocks without data before logging idleness.
	MaxWaitTime time.Duration `mapstructure:"maxWaitTime"`

	TrackLastEnqueued bool `mapstructure:"trackLastEnqueued"`

	// Format is json (default) or cloudevents.
	Format string `mapstructure:"format"`
}

// Load reads the configuration file (optional), environment overrides and defaults.
//
// Every key can be overridden with FANIN_<SECTION>_<KEY> (e.g. FANIN_READ_START).
// Credentials and the NATS URL also honor NATS_URL, NATS_USER, NATS_PASSWORD,
// KAFKA_SASL_USERNAME, KAFKA_SASL_PASSWORD and AWS_REGION.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FANIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := fanin.DefaultConfig()
	v.SetDefault("transport", "nats")
	v.SetDefault("nats.url", nats.DefaultURL)
	v.SetDefault("nats.subjectTemplate", "events.{{.PartitionID}}")
	v.SetDefault("nats.stream", "")
	v.SetDefault("nats.consumerPrefix", "")
	v.SetDefault("nats.inactiveThreshold", time.Duration(0))
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "")
	v.SetDefault("kafka.version", "3.0.0")
	v.SetDefault("kafka.securityProtocol", "PLAINTEXT")
	v.SetDefault("kafka.saslMechanism", "")
	v.SetDefault("kafka.insecureSkipVerify", false)
	v.SetDefault("consumer.maxBatchSize", defaults.MaxBatchSize)
	v.SetDefault("consumer.receiveWaitTime", defaults.ReceiveWaitTime)
	v.SetDefault("consumer.shutdownTimeout", defaults.ShutdownTimeout)
	v.SetDefault("consumer.retry.mode", defaults.Retry.Mode)
	v.SetDefault("consumer.retry.maxRetries", defaults.Retry.MaxRetries)
	v.SetDefault("consumer.retry.delay", defaults.Retry.Delay)
	v.SetDefault("consumer.retry.maxDelay", defaults.Retry.MaxDelay)
	v.SetDefault("consumer.retry.multiplier", defaults.Retry.Multiplier)
	v.SetDefault("consumer.retry.jitter", defaults.Retry.Jitter)
	v.SetDefault("consumer.trackLastEnqueued", false)
	v.SetDefault("read.partition", "")
	v.SetDefault("read.start", "latest")
	v.SetDefault("read.trackLastEnqueued", false)
	v.SetDefault("read.format", formatJSON)
	v.SetDefault("read.maxWaitTime", 30*time.Second)

	// AutomaticEnv only resolves keys viper already knows, hence the empty defaults above.
	// Bind environment variables for sensitive data
	for key, env := range map[string]string{
		"nats.url":           "NATS_URL",
		"nats.user":          "NATS_USER",
		"nats.password":      "NATS_PASSWORD",
		"kafka.saslUsername": "KAFKA_SASL_USERNAME",
		"kafka.saslPassword": "KAFKA_SASL_PASSWORD",
		"kafka.awsRegion":    "AWS_REGION",
	} {
		if err := v.BindEnv(key, "FANIN_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Transport {
	case "nats":
		if c.NATS.Stream == "" {
			return errors.New("nats.stream is required")
		}
		if c.NATS.SubjectTemplate == "" {
			return errors.New("nats.subjectTemplate is required")
		}
	case "kafka":
		if len(c.Kafka.Brokers) == 0 {
			return errors.New("kafka.brokers is required")
		}
		if c.Kafka.Topic == "" {
			return errors.New("kafka.topic is required")
		}
	default:
		return fmt.Errorf("unsupported transport %q (want nats or kafka)", c.Transport)
	}

	if _, err := parseStart(c.Read.Start, time.Now()); err != nil {
		return err
	}
	if _, err := newEventWriter(c.Read.Format, io.Discard, ""); err != nil {
		return err
	}

	fanin.SetDefaults(&c.Consumer)

	return c.Consumer.Validate()
}

// source is the CloudEvents source of the tailed stream or topic.
func (c *Config) source() string {
	if c.Transport == "kafka" {
		return "kafka://" + c.Kafka.Topic
	}

	return "nats://" + c.NATS.Stream
}

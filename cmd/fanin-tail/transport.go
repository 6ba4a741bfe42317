package main

import (
	"errors"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/arloliu/fanin"
	"github.com/arloliu/fanin/transport/kafka"
	"github.com/arloliu/fanin/transport/natsjs"
)

// transport bundles a factory, its discovery and the connections backing them.
type transport struct {
	factory   fanin.TransportFactory
	discovery fanin.PartitionDiscovery
	close     func() error
}

func openTransport(cfg *Config, logger *zap.Logger) (*transport, error) {
	switch cfg.Transport {
	case "nats":
		return openNATS(cfg.NATS, logger)
	case "kafka":
		return openKafka(cfg.Kafka, logger)
	default:
		return nil, fmt.Errorf("unsupported transport %q", cfg.Transport)
	}
}

func openNATS(cfg NATSConfig, logger *zap.Logger) (*transport, error) {
	opts := []nats.Option{
		nats.Name("fanin-tail"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}
	if cfg.User != "" {
		opts = append(opts, nats.UserInfo(cfg.User, cfg.Password))
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	jsCfg := natsjs.Config{
		StreamName:        cfg.Stream,
		SubjectTemplate:   cfg.SubjectTemplate,
		ConsumerPrefix:    cfg.ConsumerPrefix,
		InactiveThreshold: cfg.InactiveThreshold,
		Logger:            fanin.NewZapLogger(logger.Named("natsjs")),
	}

	factory, err := natsjs.NewFactory(js, jsCfg)
	if err != nil {
		nc.Close()
		return nil, err
	}

	discovery, err := natsjs.NewDiscovery(js, jsCfg)
	if err != nil {
		nc.Close()
		return nil, err
	}

	return &transport{
		factory:   factory,
		discovery: discovery,
		close:     nc.Drain,
	}, nil
}

func openKafka(cfg KafkaConfig, logger *zap.Logger) (*transport, error) {
	sc := sarama.NewConfig()
	sc.ClientID = "fanin-tail"
	sc.Consumer.Return.Errors = true

	version, err := sarama.ParseKafkaVersion(cfg.Version)
	if err != nil {
		return nil, fmt.Errorf("invalid Kafka version %q: %w", cfg.Version, err)
	}
	sc.Version = version

	err = kafka.ConfigureSecurity(sc, kafka.Security{
		Protocol:           cfg.SecurityProtocol,
		Mechanism:          cfg.SASLMechanism,
		Username:           cfg.SASLUsername,
		Password:           cfg.SASLPassword,
		Region:             cfg.AWSRegion,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	})
	if err != nil {
		return nil, err
	}

	client, err := sarama.NewClient(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka client: %w", err)
	}

	consumer, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to create Kafka consumer: %w", err)
	}

	factory, err := kafka.NewFactory(consumer, kafka.Config{
		Topic:  cfg.Topic,
		Client: client,
		Logger: fanin.NewZapLogger(logger.Named("kafka")),
	})
	if err != nil {
		_ = consumer.Close()
		_ = client.Close()
		return nil, err
	}

	discovery, err := kafka.NewDiscovery(client, cfg.Topic)
	if err != nil {
		_ = consumer.Close()
		_ = client.Close()
		return nil, err
	}

	return &transport{
		factory:   factory,
		discovery: discovery,
		close: func() error {
			return errors.Join(consumer.Close(), client.Close())
		},
	}, nil
}

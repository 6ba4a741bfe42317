package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/IBM/sarama"

	"github.com/arloliu/fanin/types"
)

// Classify wraps a sarama error into a *types.TransportError.
//
// Broker unavailability (ErrOutOfBrokers, ErrNotConnected) is transient: the
// client refreshes metadata and reconnects on its own. A request timeout
// (context.DeadlineExceeded) is transient; context.Canceled is returned unchanged.
func Classify(partition, op string, err error) error {
	if err == nil {
		return nil
	}

	var te *types.TransportError
	if errors.As(err, &te) || errors.Is(err, context.Canceled) {
		return err
	}

	switch {
	case errors.Is(err, sarama.ErrMessageSizeTooLarge):
		return types.Exhausted(partition, op, fmt.Errorf("%w: %w", types.ErrResourceExhausted, err))
	case errors.Is(err, sarama.ErrClosedClient):
		return types.NonRetryable(partition, op, fmt.Errorf("%w: %w", types.ErrConsumerDisconnected, err))
	case errors.Is(err, sarama.ErrUnknownTopicOrPartition):
		return types.NonRetryable(partition, op, fmt.Errorf("%w: %w", types.ErrStreamClosed, err))
	case errors.Is(err, sarama.ErrOffsetOutOfRange),
		errors.Is(err, sarama.ErrTopicAuthorizationFailed):
		return types.NonRetryable(partition, op, err)
	default:
		return types.Transient(partition, op, err)
	}
}

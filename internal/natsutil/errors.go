// Package natsutil maps NATS and JetStream client errors onto the fanin error taxonomy.
//
// Kept internal so that the types package does not import NATS.
package natsutil

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/fanin/types"
)

// IsConnectivityError checks if an error is caused by connectivity issues.
//
// This includes NATS timeouts, connection refused, disconnections, etc.
// A connectivity error is transient: the client reconnects on its own.
func IsConnectivityError(err error) bool {
	if err == nil {
		return false
	}

	return errors.Is(err, nats.ErrTimeout) ||
		errors.Is(err, nats.ErrNoServers) ||
		errors.Is(err, nats.ErrDisconnected) ||
		errors.Is(err, nats.ErrNoResponders) ||
		errors.Is(err, jetstream.ErrNoStreamResponse) ||
		errors.Is(err, jetstream.ErrNoHeartbeat) ||
		errors.Is(err, jetstream.ErrConsumerLeadershipChanged) ||
		strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "i/o timeout")
}

// IsResourceExhaustion reports whether err signals the client or server ran
// out of buffer or payload capacity.
func IsResourceExhaustion(err error) bool {
	if err == nil {
		return false
	}

	return errors.Is(err, nats.ErrSlowConsumer) ||
		errors.Is(err, nats.ErrMaxPayload) ||
		errors.Is(err, jetstream.ErrMaxBytesExceeded)
}

// Classify wraps err into a *types.TransportError for the given partition and operation.
//
// Mapping:
//   - nil stays nil; already classified and canceled errors are returned unchanged
//   - context.DeadlineExceeded (a request timeout): transient
//   - slow consumer, max payload, max bytes: resource exhaustion
//   - consumer deleted or not found, iterator closed, connection closed or draining:
//     non-retryable, wrapping types.ErrConsumerDisconnected
//   - stream not found: non-retryable, wrapping types.ErrStreamClosed
//   - everything else (timeouts, missing heartbeats, no responders, disconnects): transient
func Classify(partition, op string, err error) error {
	if err == nil {
		return nil
	}

	var te *types.TransportError
	if errors.As(err, &te) || errors.Is(err, context.Canceled) {
		return err
	}

	switch {
	case IsResourceExhaustion(err):
		return types.Exhausted(partition, op, fmt.Errorf("%w: %w", types.ErrResourceExhausted, err))
	case errors.Is(err, jetstream.ErrStreamNotFound):
		return types.NonRetryable(partition, op, fmt.Errorf("%w: %w", types.ErrStreamClosed, err))
	case errors.Is(err, jetstream.ErrConsumerDeleted),
		errors.Is(err, jetstream.ErrConsumerNotFound),
		errors.Is(err, jetstream.ErrMsgIteratorClosed),
		errors.Is(err, nats.ErrConnectionClosed),
		errors.Is(err, nats.ErrConnectionDraining):
		return types.NonRetryable(partition, op, fmt.Errorf("%w: %w", types.ErrConsumerDisconnected, err))
	default:
		return types.Transient(partition, op, err)
	}
}

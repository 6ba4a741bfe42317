package types

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for the fanin library.
//
// These errors provide type-safe error checking using errors.Is() and errors.As().
// All components should use these sentinel errors for known error conditions
// and wrap external errors with context using fmt.Errorf("%s: %w", msg, err).

// Transport errors - failure taxonomy shared by transports, readers and retry policies.
var (
	// ErrTransientTransport marks a failure that may succeed when retried
	// (timeouts, brief disconnects, leadership changes).
	ErrTransientTransport = errors.New("transient transport failure")

	// ErrNonRetryable marks a failure that requires tearing the reader down.
	ErrNonRetryable = errors.New("non-retryable transport failure")

	// ErrConsumerDisconnected is returned when the underlying connection or consumer
	// was forcibly closed. Always non-retryable.
	ErrConsumerDisconnected = errors.New("consumer disconnected")

	// ErrStreamClosed is returned when the stream was already closed. Always non-retryable.
	ErrStreamClosed = errors.New("stream already closed")

	// ErrResourceExhausted marks a catastrophic resource exhaustion. It is propagated
	// immediately, without retry or cleanup delay.
	ErrResourceExhausted = errors.New("resource exhausted")
)

// Channel errors - fan-in channel errors.
var (
	// ErrChannelCompleted is returned when writing to a completed channel.
	ErrChannelCompleted = errors.New("fan-in channel completed")
)

// Stream errors - errors surfaced to stream callers.
var (
	// ErrStreamEnded is returned by Stream.Next after a clean end of the stream.
	ErrStreamEnded = errors.New("event stream ended")

	// ErrRetriesExhausted wraps the last transport error when the retry policy gave up.
	ErrRetriesExhausted = errors.New("retries exhausted")
)

// Consumer errors - public API errors returned by Consumer.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrTransportRequired is returned when the transport factory is nil.
	ErrTransportRequired = errors.New("transport factory is required")

	// ErrDiscoveryRequired is returned when reading all partitions without a discovery.
	ErrDiscoveryRequired = errors.New("partition discovery is required")

	// ErrConsumerClosed is returned when reading from a closed consumer.
	ErrConsumerClosed = errors.New("consumer closed")

	// ErrPartitionRequired is returned when a partition id is empty.
	ErrPartitionRequired = errors.New("partition id is required")
)

// ErrorKind classifies a TransportError.
type ErrorKind int

const (
	// KindTransient is retryable per the retry policy.
	KindTransient ErrorKind = iota

	// KindNonRetryable always terminates the reader.
	KindNonRetryable

	// KindResourceExhausted always terminates the reader without cleanup delay.
	KindResourceExhausted
)

// String returns the string representation of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindNonRetryable:
		return "non-retryable"
	case KindResourceExhausted:
		return "resource-exhausted"
	default:
		return "unknown"
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindNonRetryable:
		return ErrNonRetryable
	case KindResourceExhausted:
		return ErrResourceExhausted
	default:
		return ErrTransientTransport
	}
}

// TransportError is a classified failure of a transport operation on one partition.
type TransportError struct {
	// Partition is the partition the failing operation targeted.
	Partition string

	// Op is the failing operation ("open", "receive", "close", "list").
	Op string

	// Kind classifies the failure.
	Kind ErrorKind

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.Partition == "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Kind, e.Err)
	}

	return fmt.Sprintf("partition %s: %s %s: %v", e.Partition, e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying cause.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error kind, so errors.Is(err, ErrNonRetryable)
// holds for any non-retryable TransportError.
func (e *TransportError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// Transient wraps err as a retryable transport failure.
func Transient(partition, op string, err error) error {
	return &TransportError{Partition: partition, Op: op, Kind: KindTransient, Err: err}
}

// NonRetryable wraps err as a failure that terminates the reader.
func NonRetryable(partition, op string, err error) error {
	return &TransportError{Partition: partition, Op: op, Kind: KindNonRetryable, Err: err}
}

// Exhausted wraps err as a resource exhaustion failure.
func Exhausted(partition, op string, err error) error {
	return &TransportError{Partition: partition, Op: op, Kind: KindResourceExhausted, Err: err}
}

// IsResourceExhaustion reports whether err is a resource exhaustion failure.
func IsResourceExhaustion(err error) bool {
	return err != nil && errors.Is(err, ErrResourceExhausted)
}

// IsNonRetryable reports whether err must terminate the reader regardless of the
// retry policy. Resource exhaustion is also non-retryable.
func IsNonRetryable(err error) bool {
	if err == nil {
		return false
	}

	return errors.Is(err, ErrNonRetryable) ||
		errors.Is(err, ErrConsumerDisconnected) ||
		errors.Is(err, ErrStreamClosed) ||
		errors.Is(err, ErrChannelCompleted) ||
		IsResourceExhaustion(err)
}

// IsTransient reports whether err may be retried. Unclassified errors are
// treated as transient so that the retry policy stays in charge of them.
// An explicit KindTransient error is transient even when it wraps a context
// error, e.g. a transport request timeout.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) && te.Kind == KindTransient {
		return true
	}
	if IsCancellation(err) {
		return false
	}

	return !IsNonRetryable(err)
}

// IsCancellation reports whether err wraps a context cancellation or deadline.
// It is the expected teardown path only when the caller's own ctx is done; a
// transport request timeout wraps context.DeadlineExceeded too.
func IsCancellation(err error) bool {
	return err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}

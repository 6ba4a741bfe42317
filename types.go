package fanin

import (
	"time"

	"github.com/arloliu/fanin/types"
)

// Re-export types from the types package.
//
// Internal packages and transports depend on `types` only, never on the root
// package, which keeps `fanin.Event`, `fanin.Logger` and friends available to
// users without import cycles.
type (
	Event            = types.Event
	PartitionContext = types.PartitionContext
	StartPosition    = types.StartPosition
	PositionKind     = types.PositionKind
	ReaderState      = types.ReaderState
	OpenOptions      = types.OpenOptions
	TransportError   = types.TransportError
	ErrorKind        = types.ErrorKind
)

// Re-export interfaces from the types package for convenience.
type (
	TransportConsumer  = types.TransportConsumer
	TransportFactory   = types.TransportFactory
	PartitionDiscovery = types.PartitionDiscovery
	RetryPolicy        = types.RetryPolicy
	MetricsCollector   = types.MetricsCollector
	Logger             = types.Logger
	Hooks              = types.Hooks
)

// Re-export ReaderState constants from the types package.
const (
	ReaderStarting = types.ReaderStarting
	ReaderRunning  = types.ReaderRunning
	ReaderDraining = types.ReaderDraining
	ReaderStopped  = types.ReaderStopped
)

// Earliest starts at the first event retained by each partition.
func Earliest() StartPosition { return types.Earliest() }

// Latest starts after the last event enqueued when the reader opens.
func Latest() StartPosition { return types.Latest() }

// FromSequence starts at a transport sequence number, inclusive or exclusive.
func FromSequence(seq uint64, inclusive bool) StartPosition {
	return types.FromSequence(seq, inclusive)
}

// FromTime starts at the first event enqueued at or after t.
func FromTime(t time.Time) StartPosition { return types.FromTime(t) }

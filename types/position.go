package types

import (
	"fmt"
	"time"
)

// PositionKind enumerates the supported start position cursors.
type PositionKind int

const (
	// PositionLatest starts after the last event enqueued when the reader opens.
	PositionLatest PositionKind = iota

	// PositionEarliest starts at the first event retained by the partition.
	PositionEarliest

	// PositionSequence starts at a transport sequence number (offset).
	PositionSequence

	// PositionTime starts at the first event enqueued at or after a point in time.
	PositionTime
)

// String returns the string representation of the position kind.
func (k PositionKind) String() string {
	switch k {
	case PositionLatest:
		return "Latest"
	case PositionEarliest:
		return "Earliest"
	case PositionSequence:
		return "Sequence"
	case PositionTime:
		return "Time"
	default:
		return "Unknown"
	}
}

// StartPosition is an opaque cursor from which a partition reader begins consuming.
//
// A StartPosition is supplied once when a reader is created and never mutated.
// Construct values with Earliest, Latest, FromSequence or FromTime.
type StartPosition struct {
	kind      PositionKind
	sequence  uint64
	inclusive bool
	at        time.Time
}

// Earliest returns the position of the first retained event in a partition.
func Earliest() StartPosition {
	return StartPosition{kind: PositionEarliest}
}

// Latest returns the position right after the last enqueued event in a partition.
func Latest() StartPosition {
	return StartPosition{kind: PositionLatest}
}

// FromSequence returns a position at a transport sequence number.
//
// Parameters:
//   - seq: Sequence number (JetStream stream sequence or Kafka offset)
//   - inclusive: When true the event at seq is delivered, otherwise reading starts after it
func FromSequence(seq uint64, inclusive bool) StartPosition {
	return StartPosition{kind: PositionSequence, sequence: seq, inclusive: inclusive}
}

// FromTime returns a position at the first event enqueued at or after t.
func FromTime(t time.Time) StartPosition {
	return StartPosition{kind: PositionTime, at: t}
}

// Kind returns the cursor kind.
func (p StartPosition) Kind() PositionKind {
	return p.kind
}

// Sequence returns the sequence number and whether it is inclusive.
// Only meaningful for PositionSequence.
func (p StartPosition) Sequence() (uint64, bool) {
	return p.sequence, p.inclusive
}

// FirstSequence returns the first sequence number to deliver for a PositionSequence cursor.
func (p StartPosition) FirstSequence() uint64 {
	if p.inclusive {
		return p.sequence
	}

	return p.sequence + 1
}

// Time returns the start time. Only meaningful for PositionTime.
func (p StartPosition) Time() time.Time {
	return p.at
}

// String returns a human-readable representation used in logs.
func (p StartPosition) String() string {
	switch p.kind {
	case PositionSequence:
		if p.inclusive {
			return fmt.Sprintf("Sequence(>=%d)", p.sequence)
		}

		return fmt.Sprintf("Sequence(>%d)", p.sequence)
	case PositionTime:
		return fmt.Sprintf("Time(%s)", p.at.Format(time.RFC3339Nano))
	default:
		return p.kind.String()
	}
}

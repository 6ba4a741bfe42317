package types

// ReaderState represents the partition reader lifecycle state.
//
// States follow a defined progression:
//
//	ReaderStarting → ReaderRunning → ReaderDraining → ReaderStopped
//
// A reader moves Running → Stopped directly on a fatal error, and
// Starting → Stopped when the transport cannot be opened.
type ReaderState int32

const (
	// ReaderStarting indicates the reader is opening its transport consumer.
	ReaderStarting ReaderState = iota

	// ReaderRunning indicates the reader completed its first successful receive.
	ReaderRunning

	// ReaderDraining indicates cancellation was observed and the in-flight write is finishing.
	ReaderDraining

	// ReaderStopped is the terminal state.
	ReaderStopped
)

// String returns the string representation of the state.
func (s ReaderState) String() string {
	switch s {
	case ReaderStarting:
		return "Starting"
	case ReaderRunning:
		return "Running"
	case ReaderDraining:
		return "Draining"
	case ReaderStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// CanTransitionTo reports whether moving from s to next is a valid transition.
func (s ReaderState) CanTransitionTo(next ReaderState) bool {
	switch s {
	case ReaderStarting:
		return next == ReaderRunning || next == ReaderDraining || next == ReaderStopped
	case ReaderRunning:
		return next == ReaderDraining || next == ReaderStopped
	case ReaderDraining:
		return next == ReaderStopped
	default:
		return false
	}
}

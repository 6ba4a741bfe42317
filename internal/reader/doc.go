// Package reader implements the per-partition receive loop of the fan-in consumer.
//
// A Reader owns exactly one transport consumer. It pulls bounded batches,
// forwards every event to a shared sink in transport order, recovers transient
// failures through a retry policy and reports anything else to its caller.
// The transport consumer is released exactly once when Run returns.
//
// State machine:
//
//	Starting ──open ok──▶ Running ──cancel──▶ Draining ──▶ Stopped
//	    │                    │
//	    └──────fatal─────────┴──────────────────────────────▶ Stopped
package reader

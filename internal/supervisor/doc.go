// Package supervisor owns the partition readers of one fan-in stream.
//
// A Supervisor spawns one reader per partition, all linked to a single
// cancellation signal and writing into the same fan-in channel. The first
// reader to report a fatal error cancels its siblings; once every reader has
// terminated the channel is completed with that error. A graceful Stop runs
// the same sequence and completes the channel without error.
package supervisor

// Package types provides core type definitions and interfaces for the fanin library.
//
// This package contains shared types that are used across multiple packages in the
// fanin library. By keeping these types in a separate package, we avoid import cycles
// between the root fanin package, its internal implementations and the transports.
//
// Key types:
//   - Event: A single event read from one partition
//   - StartPosition: Where a partition reader begins consuming
//   - ReaderState: Partition reader lifecycle state
//   - TransportConsumer / TransportFactory: Per-partition receive collaborator
//   - PartitionDiscovery: Partition listing collaborator
//   - RetryPolicy: Retry decision function consulted on transport failures
//   - Logger, MetricsCollector, Hooks: Observability collaborators
package types

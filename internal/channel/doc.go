// Package channel provides the bounded fan-in buffer shared by partition readers.
//
// A Channel accepts writes from many goroutines and is read by exactly one. Its
// capacity is fixed at construction: writers block when the buffer is full, which
// is the backpressure that protects memory from a slow consumer. The channel
// reaches exactly one terminal state through TryComplete; the reader drains what
// is buffered before observing it.
package channel

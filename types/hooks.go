package types

import "context"

// Hooks defines callbacks for reader and stream lifecycle events.
//
// Hooks are the observability collaborator of the fan-in consumer. All hooks are
// optional and run synchronously on the goroutine that produced the event, so they
// must complete quickly and must not block on the stream itself.
//
// IMPORTANT: Hook execution behavior:
//   - Hook errors are logged but never change stream behavior
//   - The context passed to reader hooks is the reader's context and is cancelled on teardown
//
// Example:
//
//	hooks := &fanin.Hooks{
//	    OnReaderStopped: func(ctx context.Context, partition string, err error) error {
//	        if err != nil {
//	            alerts <- partition
//	        }
//	        return nil
//	    },
//	}
type Hooks struct {
	// OnReaderStarted is called after a reader opened its transport consumer.
	OnReaderStarted func(ctx context.Context, partition string) error

	// OnReaderStopped is called once per reader after its transport consumer was released.
	// err is nil on clean cancellation.
	OnReaderStopped func(ctx context.Context, partition string, err error) error

	// OnStreamCompleted is called once when the fan-in channel reaches its terminal state.
	// err is nil on graceful completion.
	OnStreamCompleted func(ctx context.Context, err error) error
}

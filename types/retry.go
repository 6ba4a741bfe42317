package types

import "time"

// RetryPolicy decides whether a failed transport operation is retried.
//
// Delay must be a pure function: no side effects and no shared mutable state,
// so that many partition readers can consult the same policy concurrently.
type RetryPolicy interface {
	// Delay returns the backoff to wait before the next attempt.
	//
	// Parameters:
	//   - err: The transport error that caused the failure
	//   - attempt: Consecutive failure count, starting at 1
	//
	// Returns:
	//   - time.Duration: Delay before retrying (valid only when ok is true)
	//   - bool: false when the error is not retryable or attempts are exhausted
	Delay(err error, attempt int) (time.Duration, bool)
}

// RetryPolicyFunc is a function adapter for RetryPolicy.
type RetryPolicyFunc func(err error, attempt int) (time.Duration, bool)

// Delay implements RetryPolicy interface.
func (f RetryPolicyFunc) Delay(err error, attempt int) (time.Duration, bool) {
	return f(err, attempt)
}

// Package retry provides retry policies consulted by partition readers on
// transport failures.
//
// A policy is a pure decision function: given the failure and the consecutive
// attempt number it returns either a backoff delay or "do not retry". Policies
// hold no mutable state and are safe to share between readers.
//
// Example:
//
//	policy := retry.Policy{
//	    Mode:       retry.ModeExponential,
//	    MaxRetries: 5,
//	    BaseDelay:  200 * time.Millisecond,
//	    MaxDelay:   10 * time.Second,
//	    Jitter:     0.2,
//	}
//	consumer, _ := fanin.NewConsumer(&cfg, factory, discovery, fanin.WithRetryPolicy(policy))
package retry

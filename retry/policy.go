package retry

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/zeebo/xxh3"

	"github.com/arloliu/fanin/types"
)

// Default policy values.
const (
	// DefaultMaxRetries is the default number of consecutive retries per reader.
	DefaultMaxRetries = 3

	// DefaultBaseDelay is the default delay of the first retry.
	DefaultBaseDelay = 800 * time.Millisecond

	// DefaultMaxDelay is the default upper bound of a single delay.
	DefaultMaxDelay = time.Minute

	// DefaultMultiplier is the default exponential growth factor.
	DefaultMultiplier = 2.0

	// DefaultJitter is the default relative jitter (+/-20%).
	DefaultJitter = 0.2
)

// Mode selects how delays grow with the attempt number.
type Mode int

const (
	// ModeExponential multiplies the delay by Multiplier on every attempt.
	ModeExponential Mode = iota

	// ModeFixed uses BaseDelay for every attempt.
	ModeFixed
)

// String returns the string representation of the mode.
func (m Mode) String() string {
	switch m {
	case ModeExponential:
		return "exponential"
	case ModeFixed:
		return "fixed"
	default:
		return "unknown"
	}
}

// ParseMode converts "exponential" or "fixed" to a Mode.
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "exponential", "":
		return ModeExponential, true
	case "fixed":
		return ModeFixed, true
	default:
		return ModeExponential, false
	}
}

// Policy is the default retry policy.
//
// Zero-valued numeric fields fall back to the package defaults, except MaxRetries
// where a negative value disables retries.
type Policy struct {
	// Mode selects exponential or fixed delays.
	Mode Mode

	// MaxRetries is the number of consecutive failures that are retried.
	// Attempt MaxRetries+1 is rejected. Negative disables retries.
	MaxRetries int

	// BaseDelay is the delay of the first retry.
	BaseDelay time.Duration

	// MaxDelay caps every delay.
	MaxDelay time.Duration

	// Multiplier is the exponential growth factor (values below 1 mean no growth).
	Multiplier float64

	// Jitter is the relative spread applied around the computed delay (0 disables, max 1).
	Jitter float64

	// JitterSeed makes the jitter sequence differ between deployments while staying
	// deterministic for a given (seed, attempt) pair.
	JitterSeed uint64
}

var _ types.RetryPolicy = Policy{}

// Default returns an exponential policy with the package defaults.
func Default() Policy {
	return Policy{
		Mode:       ModeExponential,
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultBaseDelay,
		MaxDelay:   DefaultMaxDelay,
		Multiplier: DefaultMultiplier,
		Jitter:     DefaultJitter,
	}
}

// Never returns a policy that rejects every retry.
func Never() types.RetryPolicy {
	return types.RetryPolicyFunc(func(error, int) (time.Duration, bool) {
		return 0, false
	})
}

// Delay implements types.RetryPolicy.
//
// Behavior:
//   - Errors classified as transient are retried, including timeouts wrapped with
//     types.Transient; bare cancellation, non-retryable and resource exhaustion
//     errors are never retried
//   - Attempts beyond MaxRetries are rejected
//   - Otherwise the delay grows per Mode, is jittered deterministically and capped at MaxDelay
func (p Policy) Delay(err error, attempt int) (time.Duration, bool) {
	if !types.IsTransient(err) {
		return 0, false
	}

	maxRetries := p.MaxRetries
	if maxRetries == 0 {
		maxRetries = DefaultMaxRetries
	}
	if attempt < 1 {
		attempt = 1
	}
	if maxRetries < 0 || attempt > maxRetries {
		return 0, false
	}

	base := p.BaseDelay
	if base <= 0 {
		base = DefaultBaseDelay
	}
	capDur := p.MaxDelay
	if capDur <= 0 {
		capDur = DefaultMaxDelay
	}
	if capDur < base {
		return capDur, true
	}

	d := base
	if p.Mode == ModeExponential {
		mult := p.Multiplier
		if mult == 0 {
			mult = DefaultMultiplier
		}
		if mult < 1.0 {
			mult = 1.0
		}
		grown := float64(base) * math.Pow(mult, float64(attempt-1))
		if grown >= float64(capDur) {
			d = capDur
		} else {
			d = time.Duration(grown)
		}
	}

	d = jitter(d, p.Jitter, p.JitterSeed, attempt)
	if d > capDur {
		d = capDur
	}

	return d, true
}

// jitter spreads d uniformly over [d*(1-factor), d*(1+factor)] using a hash of
// (seed, attempt) instead of a shared random source.
func jitter(d time.Duration, factor float64, seed uint64, attempt int) time.Duration {
	if factor <= 0 || d <= 0 {
		return d
	}
	if factor > 1 {
		factor = 1
	}

	var ib [8]byte
	binary.LittleEndian.PutUint64(ib[:], uint64(attempt)) //nolint:gosec // attempt is >= 1

	// 53 high bits give a uniform float in [0, 1).
	frac := float64(xxh3.HashSeed(ib[:], seed)>>11) / (1 << 53)
	scale := 1 - factor + 2*factor*frac

	return time.Duration(float64(d) * scale)
}

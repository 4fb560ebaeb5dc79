package netlink

import (
	"math/rand"
	"time"
)

// BackoffPolicy bounds reconnect attempts after a link loss. Zero
// MaxAttempts means retry forever.
type BackoffPolicy struct {
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
	// JitterFraction spreads delays by ±fraction to avoid synchronized
	// reconnect storms across a fleet.
	JitterFraction float64 `mapstructure:"jitter_fraction"`
	MaxAttempts    int     `mapstructure:"max_attempts"`
}

func (p BackoffPolicy) withDefaults() BackoffPolicy {
	out := p
	if out.InitialInterval <= 0 {
		out.InitialInterval = 500 * time.Millisecond
	}
	if out.MaxInterval <= 0 {
		out.MaxInterval = 30 * time.Second
	}
	if out.Multiplier < 1 {
		out.Multiplier = 2
	}
	if out.JitterFraction < 0 || out.JitterFraction > 1 {
		out.JitterFraction = 0.2
	}
	return out
}

// Exhausted reports whether attempt (1-based) exceeds the retry budget.
func (p BackoffPolicy) Exhausted(attempt int) bool {
	return p.MaxAttempts > 0 && attempt > p.MaxAttempts
}

// Delay returns the wait before the given attempt (1-based), growing
// exponentially from InitialInterval and capped at MaxInterval, with
// jitter applied.
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(p.InitialInterval)
	for i := 1; i < attempt; i++ {
		delay *= p.Multiplier
		if delay >= float64(p.MaxInterval) {
			delay = float64(p.MaxInterval)
			break
		}
	}
	if p.JitterFraction > 0 {
		jitter := delay * p.JitterFraction
		delay = delay - jitter + rand.Float64()*2*jitter
	}
	if delay > float64(p.MaxInterval) {
		delay = float64(p.MaxInterval)
	}
	return time.Duration(delay)
}

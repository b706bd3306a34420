package resilience

import "time"

// Config drives retries, circuit breaking and the per-attempt timeout for
// one class of external calls (object store, queue, inference).
type Config struct {
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	RetryMultiplier     float64

	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32

	// CallTimeout bounds a single attempt. Zero disables the bound.
	CallTimeout time.Duration
}

// DefaultConfig suits inference calls, the slowest dependency: a model
// that is loading answers 503 for a few seconds.
func DefaultConfig() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 200 * time.Millisecond,
		RetryMaxBackoff:     2 * time.Second,
		RetryMultiplier:     2.0,

		BreakerEnabled:          true,
		BreakerMinRequests:      10,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      30 * time.Second,
		BreakerHalfOpenMaxCalls: 2,

		CallTimeout: 30 * time.Second,
	}
}

func (c Config) normalize() Config {
	def := DefaultConfig()

	positive(&c.RetryMaxAttempts, def.RetryMaxAttempts)
	positive(&c.RetryInitialBackoff, def.RetryInitialBackoff)
	positive(&c.RetryMaxBackoff, def.RetryMaxBackoff)
	positive(&c.BreakerMinRequests, def.BreakerMinRequests)
	positive(&c.BreakerOpenTimeout, def.BreakerOpenTimeout)
	positive(&c.BreakerHalfOpenMaxCalls, def.BreakerHalfOpenMaxCalls)

	c.RetryMaxBackoff = max(c.RetryMaxBackoff, c.RetryInitialBackoff)
	c.CallTimeout = max(c.CallTimeout, 0)
	if c.RetryMultiplier < 1.0 {
		c.RetryMultiplier = def.RetryMultiplier
	}
	if c.BreakerFailureRatio <= 0 || c.BreakerFailureRatio > 1 {
		c.BreakerFailureRatio = def.BreakerFailureRatio
	}
	return c
}

func positive[T int | uint32 | time.Duration](v *T, fallback T) {
	if *v <= 0 {
		*v = fallback
	}
}

// RetryBudget is the longest a single Execute can take when every attempt
// runs into CallTimeout: all attempts plus the backoff between them. It is
// zero when attempts are unbounded.
func (c Config) RetryBudget() time.Duration {
	c = c.normalize()
	if c.CallTimeout == 0 {
		return 0
	}
	total := time.Duration(c.RetryMaxAttempts) * c.CallTimeout
	backoff := c.RetryInitialBackoff
	for range c.RetryMaxAttempts - 1 {
		total += min(backoff, c.RetryMaxBackoff)
		backoff = min(time.Duration(float64(backoff)*c.RetryMultiplier), c.RetryMaxBackoff)
	}
	return total
}

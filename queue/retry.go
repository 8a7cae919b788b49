package queue

import (
	"math/rand"
	"time"
)

// BackoffPolicy computes the delay before a retry attempt. The schedule is
// exponential with full-base jitter, capped at Max: attempt n waits
// min(Base*2^(n-1), Max) plus a random spread in [0, Base), never exceeding
// Max in total.
type BackoffPolicy struct {
	Base   time.Duration
	Max    time.Duration
	Jitter func(spread time.Duration) time.Duration
}

func NewBackoffPolicy(base time.Duration, max time.Duration) BackoffPolicy {
	return BackoffPolicy{
		Base: base,
		Max:  max,
		Jitter: func(spread time.Duration) time.Duration {
			if spread <= 0 {
				return 0
			}
			return time.Duration(rand.Int63n(int64(spread)))
		},
	}
}

func (p BackoffPolicy) NextDelay(attempt int) time.Duration {
	base := p.Base
	if base <= 0 {
		base = time.Second
	}
	maximum := p.Max
	if maximum < base {
		maximum = base
	}

	delay := p.NextDelayWithoutJitter(attempt)
	if p.Jitter != nil {
		delay += p.Jitter(base)
	}
	if delay > maximum {
		delay = maximum
	}
	return delay
}

// NextDelayWithoutJitter is the deterministic floor of the schedule.
func (p BackoffPolicy) NextDelayWithoutJitter(attempt int) time.Duration {
	base := p.Base
	if base <= 0 {
		base = time.Second
	}
	maximum := p.Max
	if maximum < base {
		maximum = base
	}
	if attempt < 1 {
		attempt = 1
	}

	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maximum {
			return maximum
		}
	}
	if delay > maximum {
		return maximum
	}
	return delay
}

// Clamp bounds an externally supplied delay, such as a Retry-After header,
// to the policy's maximum.
func (p BackoffPolicy) Clamp(delay time.Duration) time.Duration {
	maximum := p.Max
	if maximum <= 0 {
		maximum = p.Base
	}
	if maximum > 0 && delay > maximum {
		return maximum
	}
	if delay < 0 {
		return 0
	}
	return delay
}

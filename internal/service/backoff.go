package service

import "time"

// BackoffPolicy maps the number of attempts already made (1-based) to the
// delay before the next one.
type BackoffPolicy func(attempts int) time.Duration

// ExponentialBackoff returns base * 2^(attempts-1), capped at max.
func ExponentialBackoff(base, max time.Duration) BackoffPolicy {
	if base <= 0 {
		base = time.Second
	}
	if max < base {
		max = base
	}
	return func(attempts int) time.Duration {
		if attempts < 1 {
			attempts = 1
		}
		delay := base
		for i := 1; i < attempts; i++ {
			if delay >= max/2 {
				return max
			}
			delay *= 2
		}
		if delay > max {
			return max
		}
		return delay
	}
}

type RetryPolicy struct {
	MaxAttempts int
	Backoff     BackoffPolicy
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		Backoff:     ExponentialBackoff(30*time.Second, 30*time.Minute),
	}
}

func (p RetryPolicy) orDefault(fallback RetryPolicy) RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = fallback.MaxAttempts
	}
	if p.Backoff == nil {
		p.Backoff = fallback.Backoff
	}
	return p
}

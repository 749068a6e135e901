package worker

import (
	"time"

	"kassa/internal/models"
)

// RetryPolicy describes the capped backoff between refresh fetch attempts.
// Only the read path backs off; queue replay is trigger-based and never
// sleeps between retries.
type RetryPolicy struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultPolicy is the refresh backoff when config leaves it unset: three
// attempts paced 1s, 2s, 4s.
func DefaultPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:   models.RefreshMaxAttempts,
		InitialDelay:  time.Duration(models.RefreshInitialDelaySeconds) * time.Second,
		BackoffFactor: models.RefreshBackoffFactor,
	}
}

// NextDelay returns the pause after the given attempt (1-based), clamped to
// MaxDelay when one is set.
func (r RetryPolicy) NextDelay(attempt int) time.Duration {
	d := r.InitialDelay
	if d <= 0 {
		d = time.Duration(models.RefreshInitialDelaySeconds) * time.Second
	}
	factor := r.BackoffFactor
	if factor <= 0 {
		factor = models.RefreshBackoffFactor
	}

	for i := 1; i < attempt; i++ {
		d = time.Duration(float64(d) * factor)
		if r.MaxDelay > 0 && d >= r.MaxDelay {
			return r.MaxDelay
		}
	}
	return d
}

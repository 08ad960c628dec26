package dispatch

import (
	"time"

	"github.com/goliatone/go-leads/core"
)

// RetryPolicy bounds per-channel delivery retries: exponential backoff from
// BaseDelay, capped at MaxDelay, retrying while attempts < MaxAttempts.
// MaxAttempts of zero means the first failure is final.
type RetryPolicy struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
}

// PolicyFor builds the policy for one channel's retry configuration.
func PolicyFor(cfg core.RetryConfig) RetryPolicy {
	return RetryPolicy{
		BaseDelay:   time.Duration(cfg.BaseDelaySeconds) * time.Second,
		MaxDelay:    time.Duration(cfg.MaxDelaySeconds) * time.Second,
		MaxAttempts: cfg.MaxAttempts,
	}
}

// ShouldRetry reports whether another attempt is allowed after the given
// number of completed attempts.
func (p RetryPolicy) ShouldRetry(attempts int) bool {
	return attempts < p.MaxAttempts
}

// Delay returns the backoff before retrying after the given completed
// attempt count. The first retry waits BaseDelay, each subsequent retry
// doubles, up to MaxDelay.
func (p RetryPolicy) Delay(attempts int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = time.Minute
	}
	max := p.MaxDelay
	if max <= 0 {
		max = base
	}
	delay := base
	for i := 1; i < attempts; i++ {
		if delay >= max {
			break
		}
		delay *= 2
	}
	if delay > max {
		delay = max
	}
	return delay
}

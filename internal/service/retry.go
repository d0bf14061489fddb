package service

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryPolicy decides whether an identifier whose export failed is tried
// again after the page reload. With MaxAttempts 1 a failed identifier is
// skipped for the rest of the run.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// Attempts returns the number of tries per identifier, at least one.
func (p RetryPolicy) Attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// NewBackOff returns the delay sequence between attempts, without jitter.
func (p RetryPolicy) NewBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.RandomizationFactor = 0
	if p.InitialBackoff > 0 {
		b.InitialInterval = p.InitialBackoff
	}
	if p.MaxBackoff > 0 {
		b.MaxInterval = p.MaxBackoff
	}
	if p.Multiplier >= 1 {
		b.Multiplier = p.Multiplier
	}
	b.Reset()
	return b
}

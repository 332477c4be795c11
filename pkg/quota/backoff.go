package quota

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// Backoff computes the delay before a retry. Attempt starts at 1 for the
// first retry. Implementations must be safe for concurrent use.
type Backoff interface {
	NextInterval(attempt int) time.Duration
}

// ExponentialBackoff grows the delay geometrically with optional jitter.
// Zero fields fall back to 100ms initial, 10s max, multiplier 2.
type ExponentialBackoff struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	JitterFactor    float64
}

// NextInterval grows InitialInterval by Multiplier per attempt, spreads it
// by JitterFactor and caps it at MaxInterval.
func (e ExponentialBackoff) NextInterval(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	initial := e.InitialInterval
	if initial == 0 {
		initial = 100 * time.Millisecond
	}
	maxInterval := e.MaxInterval
	if maxInterval == 0 {
		maxInterval = 10 * time.Second
	}
	multiplier := e.Multiplier
	if multiplier == 0 {
		multiplier = 2
	}

	interval := float64(initial) * math.Pow(multiplier, float64(attempt-1))
	if e.JitterFactor > 0 {
		interval *= 1 + (rand.Float64()*2-1)*e.JitterFactor
	}
	if interval > float64(maxInterval) {
		interval = float64(maxInterval)
	}
	return time.Duration(interval)
}

// ConstantBackoff waits the same interval before every retry.
type ConstantBackoff time.Duration

// NextInterval returns the constant delay whatever the attempt.
func (c ConstantBackoff) NextInterval(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return time.Duration(c)
}

// DefaultBackoff is used by the dispatcher, the spool and inline increment retries.
func DefaultBackoff() Backoff {
	return ExponentialBackoff{
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     10 * time.Second,
		Multiplier:      2,
		JitterFactor:    0.1,
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

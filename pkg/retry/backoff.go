package retry

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// BackoffStrategy yields the pause before attempt+1. Attempt 0 never
// waits.
type BackoffStrategy interface {
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff multiplies BaseDelay by Multiplier per attempt,
// capped at MaxDelay.
type ExponentialBackoff struct {
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
	// JitterFactor spreads each delay by ±factor (0 to 1)
	JitterFactor float64
}

// DefaultExponentialBackoff starts at 1s and doubles up to a minute.
func DefaultExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		BaseDelay:    time.Second,
		MaxDelay:     time.Minute,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

func (b *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	d := float64(b.BaseDelay) * math.Pow(b.Multiplier, float64(attempt-1))
	return spread(math.Min(d, float64(b.MaxDelay)), b.JitterFactor)
}

// LinearBackoff adds Increment per attempt, capped at MaxDelay.
type LinearBackoff struct {
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	Increment    time.Duration
	JitterFactor float64
}

func (b *LinearBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	d := float64(b.BaseDelay + b.Increment*time.Duration(attempt-1))
	return spread(math.Min(d, float64(b.MaxDelay)), b.JitterFactor)
}

// ConstantBackoff always waits Delay.
type ConstantBackoff struct {
	Delay time.Duration
}

func (b *ConstantBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return b.Delay
}

// spread applies symmetric jitter and clamps at zero.
func spread(d, factor float64) time.Duration {
	if factor > 0 {
		j := d * factor
		d += rand.Float64()*2*j - j
	}
	if d < 0 {
		return 0
	}
	return time.Duration(d)
}

// Wait sleeps for delay or until ctx is done.
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

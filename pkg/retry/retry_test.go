package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "igreels/pkg/errors"
	"igreels/pkg/logger"
)

func fastConfig(attempts int) Config {
	return Config{
		MaxAttempts: attempts,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     DefaultRetryIf,
		Logger:      logger.NewTestLogger(),
	}
}

func TestExponentialBackoff(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   time.Second,
		Multiplier: 2.0,
	}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 0},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{5, time.Second},
		{9, time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, backoff.NextDelay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestJitterStaysInBounds(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.3,
	}

	for i := 0; i < 50; i++ {
		d := backoff.NextDelay(2)
		assert.GreaterOrEqual(t, d, 140*time.Millisecond)
		assert.LessOrEqual(t, d, 260*time.Millisecond)
	}
}

func TestLinearBackoff(t *testing.T) {
	backoff := &LinearBackoff{BaseDelay: time.Second, MaxDelay: 3 * time.Second, Increment: time.Second}
	assert.Equal(t, time.Second, backoff.NextDelay(1))
	assert.Equal(t, 2*time.Second, backoff.NextDelay(2))
	assert.Equal(t, 3*time.Second, backoff.NextDelay(7))
}

func TestDoSucceedsAfterRetryableFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(attempt int) error {
		calls++
		assert.Equal(t, calls, attempt)
		if attempt < 3 {
			return errs.New(errs.ErrorTypeNavigationTimeout, "slow page")
		}
		return nil
	}, fastConfig(3))

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(int) error {
		calls++
		return errs.New(errs.ErrorTypeLoginFailed, "bad password")
	}, fastConfig(5))

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.False(t, Exhausted(err))
	assert.Equal(t, errs.ErrorTypeLoginFailed, errs.TypeOf(err))
}

func TestDoExhaustsBudget(t *testing.T) {
	calls := 0
	var retries []int
	cfg := fastConfig(3)
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		retries = append(retries, attempt)
	}

	err := Do(context.Background(), func(int) error {
		calls++
		return errs.New(errs.ErrorTypeNavigationTimeout, "grid")
	}, cfg)

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retries)
	assert.True(t, Exhausted(err))
	assert.Equal(t, errs.ErrorTypeNavigationTimeout, errs.TypeOf(err))
}

func TestDoHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := fastConfig(10)
	cfg.Backoff = &ConstantBackoff{Delay: time.Hour}

	done := make(chan error, 1)
	go func() {
		done <- Do(ctx, func(int) error {
			return errs.New(errs.ErrorTypeNavigationTimeout, "slow")
		}, cfg)
	}()
	cancel()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not return after cancellation")
	}
}

func TestCustomRetryIf(t *testing.T) {
	rejected := errors.New("code rejected")
	cfg := fastConfig(2)
	cfg.RetryIf = func(err error) bool { return errors.Is(err, rejected) }

	calls := 0
	err := Do(context.Background(), func(int) error {
		calls++
		return rejected
	}, cfg)

	assert.Equal(t, 2, calls)
	assert.True(t, errors.Is(err, rejected))
}

func TestDoWithResult(t *testing.T) {
	v, err := DoWithResult(context.Background(), func(attempt int) (string, error) {
		if attempt == 1 {
			return "", errs.New(errs.ErrorTypeNavigationTimeout, "first")
		}
		return "ok", nil
	}, fastConfig(2))

	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestZeroAttemptsMeansOne(t *testing.T) {
	calls := 0
	_ = Do(context.Background(), func(int) error {
		calls++
		return errs.New(errs.ErrorTypeNavigationTimeout, "x")
	}, Config{})
	assert.Equal(t, 1, calls)
}

package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"
)

func TestDelayForDoubling(t *testing.T) {
	base := 1 * time.Second
	assert.Equal(t, 1*time.Second, DelayFor(1, base, 0))
	assert.Equal(t, 2*time.Second, DelayFor(2, base, 0))
	assert.Equal(t, 4*time.Second, DelayFor(3, base, 0))
}

func TestDelayForExactForSmallBases(t *testing.T) {
	// 不对 base 做隐式下限修正，退避律对任意正 base 精确成立
	assert.Equal(t, 10*time.Millisecond, DelayFor(1, 10*time.Millisecond, 0))
	assert.Equal(t, 40*time.Millisecond, DelayFor(3, 10*time.Millisecond, 0))
	// attempt < 1 按第一次重试处理
	assert.Equal(t, 1*time.Second, DelayFor(0, time.Second, 0))
	// 负 base 归零
	assert.Equal(t, time.Duration(0), DelayFor(2, -time.Second, 0))
}

func TestNewFloorsBaseDelay(t *testing.T) {
	calls := 0
	start := time.Now()
	r := New(&Policy{MaxRetries: 1, BaseDelay: time.Nanosecond}, zap.NewNop())
	err := r.Do(context.Background(), func() error {
		calls++
		if calls == 1 {
			return errors.New("net::ERR_CONNECTION_RESET")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.GreaterOrEqual(t, time.Since(start), MinBaseDelay)
}

func TestDelayForProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		attempt := rapid.IntRange(1, 8).Draw(t, "attempt")
		base := time.Duration(rapid.Int64Range(int64(time.Millisecond), int64(5*time.Second)).Draw(t, "base"))
		jitter := time.Duration(rapid.Int64Range(0, int64(time.Second)).Draw(t, "jitter"))

		d := DelayFor(attempt, base, jitter)

		lower := time.Duration(float64(base) * float64(int64(1)<<uint(attempt-1)))
		if d < lower {
			t.Fatalf("delay %v below deterministic part %v", d, lower)
		}
		if d >= lower+jitter+time.Millisecond {
			t.Fatalf("delay %v exceeds jitter bound %v", d, lower+jitter)
		}
	})
}

func TestRetryerSucceedsAfterTransientFailure(t *testing.T) {
	calls := 0
	r := New(&Policy{
		MaxRetries: 2,
		BaseDelay:  time.Millisecond,
		Classify:   IsRetryableNetworkError,
	}, zap.NewNop())

	err := r.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("net::ERR_NAME_NOT_RESOLVED")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryerStopsOnNonRetryable(t *testing.T) {
	calls := 0
	r := New(&Policy{
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
		Classify:   IsRetryableNetworkError,
	}, zap.NewNop())

	err := r.Do(context.Background(), func() error {
		calls++
		return errors.New("invalid credentials")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryerExhaustsRetries(t *testing.T) {
	calls := 0
	r := New(&Policy{MaxRetries: 2, BaseDelay: time.Millisecond}, zap.NewNop())

	err := r.Do(context.Background(), func() error {
		calls++
		return fmt.Errorf("connection refused")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.ErrorContains(t, err, "failed after 2 retries")
}

func TestRetryerHonorsContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := New(&Policy{MaxRetries: 5, BaseDelay: time.Hour}, zap.NewNop())
	err := r.Do(ctx, func() error { return errors.New("timeout") })
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsRetryableNetworkError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{errors.New("net::ERR_CONNECTION_RESET"), true},
		{errors.New("Temporary failure in name resolution"), true},
		{errors.New("browser has been closed"), true},
		{errors.New("execution context was destroyed"), true},
		{errors.New("socket hang up"), true},
		{errors.New("element not found"), false},
		{errors.New("invalid captcha"), false},
		{nil, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsRetryableNetworkError(tt.err), "err=%v", tt.err)
	}
}

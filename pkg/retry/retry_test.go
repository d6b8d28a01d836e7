package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("flaky")

func fast(opts ...Option) []Option {
	return append([]Option{WithInitialDelay(time.Millisecond), WithMaxDelay(2 * time.Millisecond), WithJitter(0)}, opts...)
}

func TestDoRetriesRetryable(t *testing.T) {
	calls := 0
	var delays []time.Duration

	err := Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return Retryable(errFlaky)
		}
		return nil
	}, fast(WithMaxAttempts(5), WithOnRetry(func(_ int, _ error, d time.Duration) { delays = append(delays, d) }))...)

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Len(t, delays, 2)
}

func TestDoStopsOnPermanent(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		return Permanent(errFlaky)
	}, fast(WithMaxAttempts(5))...)

	assert.Equal(t, 1, calls)
	assert.Same(t, errFlaky, err)
}

func TestDoDoesNotRetryPlainErrors(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		return errFlaky
	}, fast()...)

	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, errFlaky)
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		return Retryable(errFlaky)
	}, fast(WithMaxAttempts(3))...)

	assert.Equal(t, 3, calls)
	assert.Same(t, errFlaky, err)
}

func TestDoRespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, func(context.Context) error {
		calls++
		return nil
	})
	assert.Zero(t, calls)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDoWithData(t *testing.T) {
	calls := 0
	v, err := DoWithData(context.Background(), func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", Retryable(errFlaky)
		}
		return "space-1", nil
	}, fast()...)

	require.NoError(t, err)
	assert.Equal(t, "space-1", v)
}

func TestCalculateDelayIsCapped(t *testing.T) {
	r := New(WithInitialDelay(100*time.Millisecond), WithMaxDelay(300*time.Millisecond), WithMultiplier(2), WithJitter(0))
	assert.Equal(t, 100*time.Millisecond, r.calculateDelay(1))
	assert.Equal(t, 200*time.Millisecond, r.calculateDelay(2))
	assert.Equal(t, 300*time.Millisecond, r.calculateDelay(5))
}

func TestRetryableStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503} {
		assert.True(t, RetryableStatus(code), code)
	}
	for _, code := range []int{200, 400, 401, 404, 409} {
		assert.False(t, RetryableStatus(code), code)
	}
}

func TestPresetsAcceptOverrides(t *testing.T) {
	r := EmailRetrier(WithMaxAttempts(1))
	assert.Equal(t, 1, r.config.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, r.config.InitialDelay)
}

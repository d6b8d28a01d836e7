package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDown = errors.New("service down")

type manualClock struct{ now time.Time }

func (c *manualClock) Now() time.Time { return c.now }

func failing(context.Context) error { return errDown }
func ok(context.Context) error      { return nil }

func TestBreakerOpensAndRecovers(t *testing.T) {
	clock := &manualClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	var transitions []string

	cb := New("test",
		WithFailureThreshold(2),
		WithSuccessThreshold(1),
		WithTimeout(time.Minute),
		WithClock(clock.Now),
		WithOnStateChange(func(_ string, from, to State) {
			transitions = append(transitions, from.String()+">"+to.String())
		}),
	)
	ctx := context.Background()

	assert.ErrorIs(t, cb.Execute(ctx, failing), errDown)
	assert.True(t, cb.IsClosed())
	assert.ErrorIs(t, cb.Execute(ctx, failing), errDown)
	assert.True(t, cb.IsOpen())

	err := cb.Execute(ctx, ok)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.True(t, IsRejected(err))

	clock.now = clock.now.Add(time.Minute)
	require.NoError(t, cb.Execute(ctx, ok))
	assert.Equal(t, StateClosed, cb.State())

	assert.Equal(t, []string{"closed>open", "open>half-open", "half-open>closed"}, transitions)
}

func TestHalfOpenFailureReopens(t *testing.T) {
	clock := &manualClock{now: time.Now()}
	cb := New("test", WithFailureThreshold(1), WithTimeout(time.Second), WithClock(clock.Now))
	ctx := context.Background()

	_ = cb.Execute(ctx, failing)
	clock.now = clock.now.Add(2 * time.Second)
	_ = cb.Execute(ctx, failing)
	assert.True(t, cb.IsOpen())
}

func TestCancellationIsNotAFailure(t *testing.T) {
	cb := New("test", WithFailureThreshold(1))
	err := cb.Execute(context.Background(), func(context.Context) error { return context.Canceled })
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, cb.IsClosed())
	assert.Equal(t, 0, cb.Counts().TotalFailures)
}

func TestExecuteWithData(t *testing.T) {
	cb := SendGridBreaker(nil)
	v, err := ExecuteWithData(context.Background(), cb, func(context.Context) (int, error) { return 202, nil })
	require.NoError(t, err)
	assert.Equal(t, 202, v)
	assert.Equal(t, "sendgrid", cb.Name())
}

func TestResetClosesCircuit(t *testing.T) {
	cb := New("test", WithFailureThreshold(1))
	_ = cb.Execute(context.Background(), failing)
	require.True(t, cb.IsOpen())

	err := cb.Execute(context.Background(), ok)
	assert.True(t, IsRejected(err))

	cb.Reset()
	assert.True(t, cb.IsClosed())
	assert.NoError(t, cb.Execute(context.Background(), ok))
}

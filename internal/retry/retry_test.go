package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	delays []time.Duration
}

func (r *recorder) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func testPolicy(r *recorder) Policy {
	p := DefaultPolicy()
	p.Sleep = r.sleep
	return p
}

func TestDelay(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, 500*time.Millisecond, p.Delay(Transient, 1))
	assert.Equal(t, time.Second, p.Delay(Transient, 2))
	assert.Equal(t, time.Second, p.Delay(RateLimited, 1))
	assert.Equal(t, 2*time.Second, p.Delay(RateLimited, 2))

	p.MaxDelay = 700 * time.Millisecond
	assert.Equal(t, 700*time.Millisecond, p.Delay(RateLimited, 3))
}

func TestDoRetriesTransientThenSucceeds(t *testing.T) {
	r := &recorder{}
	calls := 0
	err := Do(context.Background(), testPolicy(r), func(context.Context) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("dial: %w", ErrConnection)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{500 * time.Millisecond, time.Second}, r.delays)
}

func TestDoGivesUpAfterMaxAttempts(t *testing.T) {
	r := &recorder{}
	calls := 0
	err := Do(context.Background(), testPolicy(r), func(context.Context) error {
		calls++
		return &StatusError{StatusCode: 429, Body: "slow down"}
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, r.delays)

	var se *StatusError
	assert.True(t, errors.As(err, &se))
}

func TestDoStopsOnFatal(t *testing.T) {
	r := &recorder{}
	calls := 0
	boom := errors.New("bad request")
	err := Do(context.Background(), testPolicy(r), func(context.Context) error {
		calls++
		return boom
	})
	assert.Same(t, boom, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, r.delays)
}

func TestDoValue(t *testing.T) {
	r := &recorder{}
	calls := 0
	v, err := DoValue(context.Background(), testPolicy(r), func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", &StatusError{StatusCode: 503}
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestDoHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := DefaultPolicy()
	err := Do(ctx, p, func(context.Context) error {
		return ErrConnection
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClassifyStatus(t *testing.T) {
	assert.Equal(t, RateLimited, ClassifyStatus(429))
	assert.Equal(t, Transient, ClassifyStatus(500))
	assert.Equal(t, Transient, ClassifyStatus(408))
	assert.Equal(t, Fatal, ClassifyStatus(404))
	assert.Equal(t, Fatal, ClassifyStatus(400))
}

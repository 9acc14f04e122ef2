// Package retry runs calls to external collaborators under a shared
// exponential backoff policy.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"time"
)

// Class is the retry classification of an error.
type Class int

const (
	Fatal Class = iota
	Transient
	RateLimited
)

func (c Class) String() string {
	switch c {
	case Transient:
		return "transient"
	case RateLimited:
		return "rate_limited"
	default:
		return "fatal"
	}
}

// Policy configures retry behavior. The delay before attempt n+1 is the
// base delay of the failure's class times Multiplier^(n-1), capped at
// MaxDelay when MaxDelay is set.
type Policy struct {
	MaxAttempts        int
	BaseDelay          time.Duration
	RateLimitBaseDelay time.Duration
	Multiplier         float64
	MaxDelay           time.Duration
	Classify           func(error) Class

	// Sleep waits for d or until ctx is done. Nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy is used for LLM and market-data calls: three attempts,
// 0.5s base for connection errors, 1s base for rate limiting, doubling.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:        3,
		BaseDelay:          500 * time.Millisecond,
		RateLimitBaseDelay: time.Second,
		Multiplier:         2.0,
		MaxDelay:           30 * time.Second,
		Classify:           ClassifyHTTP,
	}
}

// Delay returns the wait after the given failed attempt (1-based).
func (p Policy) Delay(class Class, attempt int) time.Duration {
	base := p.BaseDelay
	if class == RateLimited && p.RateLimitBaseDelay > 0 {
		base = p.RateLimitBaseDelay
	}
	mult := p.Multiplier
	if mult <= 0 {
		mult = 1
	}
	d := time.Duration(float64(base) * math.Pow(mult, float64(attempt-1)))
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// Do calls fn until it succeeds, returns a Fatal error, or the policy runs
// out of attempts.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	_, err := DoValue(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoValue is Do for calls that return a value.
func DoValue[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	classify := p.Classify
	if classify == nil {
		classify = ClassifyHTTP
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		class := classify(err)
		if class == Fatal {
			return zero, err
		}
		if attempt == attempts {
			break
		}
		if err := sleep(ctx, p.Delay(class, attempt)); err != nil {
			return zero, err
		}
	}
	return zero, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// StatusError is returned by HTTP clients for a non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Body)
}

// ErrConnection marks errors where the remote could not be reached.
var ErrConnection = errors.New("connection error")

// ErrRateLimited marks errors where the remote asked us to slow down.
var ErrRateLimited = errors.New("rate limited")

// ClassifyHTTP treats 429 as rate limiting, 408 and 5xx as transient,
// network failures as transient and everything else as fatal.
func ClassifyHTTP(err error) Class {
	if err == nil {
		return Fatal
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Fatal
	}
	if errors.Is(err, ErrRateLimited) {
		return RateLimited
	}
	if errors.Is(err, ErrConnection) {
		return Transient
	}

	var se *StatusError
	if errors.As(err, &se) {
		return ClassifyStatus(se.StatusCode)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return Transient
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return Transient
	}
	return Fatal
}

// ClassifyStatus maps an HTTP status code to a Class.
func ClassifyStatus(code int) Class {
	switch {
	case code == http.StatusTooManyRequests:
		return RateLimited
	case code == http.StatusRequestTimeout, code >= 500:
		return Transient
	default:
		return Fatal
	}
}

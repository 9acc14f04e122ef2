package dataflows

import (
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"github.com/dyike/clarence/internal/retry"
)

// Breaker stops hammering a collaborator that keeps failing. Fatal errors
// such as an unknown symbol do not count against it.
type Breaker struct{ cb *gobreaker.CircuitBreaker }

func NewBreaker(name string) *Breaker {
	st := gobreaker.Settings{Name: name}
	st.Interval = 60 * time.Second
	st.Timeout = 30 * time.Second
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		if counts.ConsecutiveFailures >= 5 {
			return true
		}
		if counts.Requests < 20 {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) > 0.5
	}
	st.IsSuccessful = func(err error) bool {
		return err == nil || retry.ClassifyHTTP(err) == retry.Fatal
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker(st)}
}

func (b *Breaker) Execute(fn func() (interface{}, error)) (interface{}, error) {
	return b.cb.Execute(fn)
}

// IsOpen reports whether err was produced by an open breaker.
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func (b *Breaker) Name() string {
	return b.cb.Name()
}

// State is "closed", "half-open" or "open".
func (b *Breaker) State() string {
	return b.cb.State().String()
}

// guarded is implemented by clients whose calls go through a Breaker.
type guarded interface {
	Breaker() *Breaker
}

package llm

import (
	"context"
	"errors"

	"github.com/dyike/clarence/internal/retry"
)

// Retrying wraps a Client with a retry policy.
type Retrying struct {
	Client Client
	Policy retry.Policy
}

func NewRetrying(c Client, p retry.Policy) *Retrying {
	return &Retrying{Client: c, Policy: p}
}

func (r *Retrying) Chat(ctx context.Context, req Request) (*Response, error) {
	return retry.DoValue(ctx, r.Policy, func(ctx context.Context) (*Response, error) {
		return r.Client.Chat(ctx, req)
	})
}

// errPartialStream is returned once text has been emitted; a retry would
// print the answer twice.
var errPartialStream = errors.New("stream interrupted")

type partialStreamError struct{ err error }

func (e *partialStreamError) Error() string { return errPartialStream.Error() + ": " + e.err.Error() }
func (e *partialStreamError) Unwrap() error { return errPartialStream }

func (r *Retrying) Stream(ctx context.Context, req Request, onDelta func(string)) (string, error) {
	policy := r.Policy
	classify := policy.Classify
	if classify == nil {
		classify = retry.ClassifyHTTP
	}
	policy.Classify = func(err error) retry.Class {
		if errors.Is(err, errPartialStream) {
			return retry.Fatal
		}
		return classify(err)
	}

	return retry.DoValue(ctx, policy, func(ctx context.Context) (string, error) {
		emitted := false
		text, err := r.Client.Stream(ctx, req, func(delta string) {
			emitted = true
			if onDelta != nil {
				onDelta(delta)
			}
		})
		if err != nil && emitted {
			return text, &partialStreamError{err: err}
		}
		return text, err
	})
}

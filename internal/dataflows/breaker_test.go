package dataflows

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/clarence/internal/retry"
)

func TestBreakerOpensAfterConsecutiveTransientFailures(t *testing.T) {
	b := NewBreaker("test")
	unavailable := &retry.StatusError{StatusCode: http.StatusServiceUnavailable}

	for i := 0; i < 5; i++ {
		_, err := b.Execute(func() (interface{}, error) { return nil, unavailable })
		require.ErrorIs(t, err, unavailable)
	}
	assert.Equal(t, "open", b.State())

	called := false
	_, err := b.Execute(func() (interface{}, error) {
		called = true
		return nil, nil
	})
	assert.True(t, IsOpen(err))
	assert.False(t, called)
}

func TestBreakerIgnoresFatalErrors(t *testing.T) {
	b := NewBreaker("test")
	notFound := &retry.StatusError{StatusCode: http.StatusNotFound}

	for i := 0; i < 10; i++ {
		_, err := b.Execute(func() (interface{}, error) { return nil, notFound })
		require.Error(t, err)
		assert.False(t, IsOpen(err), fmt.Sprintf("call %d", i))
	}
	assert.Equal(t, "closed", b.State())
}

func TestSourcesBreakers(t *testing.T) {
	tests := []struct {
		provider string
		want     []string
	}{
		{"alpaca", []string{"alpaca-data"}},
		{"yahoo", []string{"yahoo", "alpaca-data"}},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			src, err := NewSources(&Config{MarketDataProvider: tt.provider})
			require.NoError(t, err)

			var names []string
			for _, b := range src.Breakers() {
				names = append(names, b.Name())
				assert.Equal(t, "closed", b.State())
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

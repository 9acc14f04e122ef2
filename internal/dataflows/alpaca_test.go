package dataflows

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/clarence/config"
	"github.com/dyike/clarence/internal/retry"
)

func noSleepPolicy() retry.Policy {
	p := retry.DefaultPolicy()
	p.Sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return p
}

func newTestAlpaca(t *testing.T, handler http.HandlerFunc) *AlpacaClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		AlpacaDataURL:   srv.URL,
		AlpacaAPIKey:    "key",
		AlpacaSecretKey: "secret",
		AlpacaRateLimit: 6000,
	}
	fixed := time.Date(2025, 3, 14, 15, 0, 0, 0, time.UTC)
	return NewAlpacaClient(cfg, WithRetryPolicy(noSleepPolicy()), WithNow(func() time.Time { return fixed }))
}

func TestAlpacaLatestQuote(t *testing.T) {
	c := newTestAlpaca(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/stocks/AAPL/quotes/latest", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("APCA-API-KEY-ID"))
		assert.Equal(t, "secret", r.Header.Get("APCA-API-SECRET-KEY"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"symbol":"AAPL","quote":{"ap":150.05,"bp":149.95}}`))
	})

	q, err := c.LatestQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", q.Symbol)
	assert.InDelta(t, 149.95, q.BidPrice, 1e-9)
	assert.InDelta(t, 150.05, q.AskPrice, 1e-9)
}

func TestAlpacaRecentBarsOldestFirst(t *testing.T) {
	c := newTestAlpaca(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/stocks/MSFT/bars", r.URL.Path)
		assert.Equal(t, "1Day", r.URL.Query().Get("timeframe"))
		assert.Equal(t, "3", r.URL.Query().Get("limit"))
		assert.Equal(t, "desc", r.URL.Query().Get("sort"))
		_, _ = w.Write([]byte(`{"symbol":"MSFT","bars":[
			{"t":"2025-03-13T04:00:00Z","o":3,"h":4,"l":2,"c":3.5,"v":300},
			{"t":"2025-03-12T04:00:00Z","o":2,"h":3,"l":1,"c":2.5,"v":200},
			{"t":"2025-03-11T04:00:00Z","o":1,"h":2,"l":0.5,"c":1.5,"v":100}]}`))
	})

	bars, err := c.RecentBars(context.Background(), "MSFT", 3)
	require.NoError(t, err)
	require.Len(t, bars, 3)
	assert.Equal(t, int64(100), bars[0].Volume)
	assert.Equal(t, int64(300), bars[2].Volume)
	assert.True(t, bars[0].Timestamp.Before(bars[2].Timestamp))
}

func TestAlpacaScreeners(t *testing.T) {
	c := newTestAlpaca(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1beta1/screener/stocks/most-actives":
			assert.Equal(t, "volume", r.URL.Query().Get("by"))
			_, _ = w.Write([]byte(`{"most_actives":[{"symbol":"NVDA","volume":5000000,"trade_count":12000}]}`))
		case "/v1beta1/screener/stocks/movers":
			_, _ = w.Write([]byte(`{"gainers":[{"symbol":"UP","percent_change":12.5,"change":1.2,"price":10.8}],
				"losers":[{"symbol":"DOWN","percent_change":-9.1,"change":-0.9,"price":9.0}]}`))
		default:
			http.NotFound(w, r)
		}
	})

	actives, err := c.MostActive(context.Background(), 20)
	require.NoError(t, err)
	require.Len(t, actives, 1)
	assert.Equal(t, "NVDA", actives[0].Symbol)

	movers, err := c.TopMovers(context.Background(), 20)
	require.NoError(t, err)
	require.Len(t, movers, 2)
	assert.Equal(t, "gainer", movers[0].Direction)
	assert.Equal(t, "DOWN", movers[1].Symbol)
	assert.Equal(t, "loser", movers[1].Direction)
}

func TestAlpacaRetriesRateLimit(t *testing.T) {
	var calls int32
	c := newTestAlpaca(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"symbol":"AAPL","quote":{"ap":1,"bp":0.9}}`))
	})

	_, err := c.LatestQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestAlpacaNotFoundIsNotRetried(t *testing.T) {
	var calls int32
	c := newTestAlpaca(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, `{"message":"not found"}`, http.StatusNotFound)
	})

	_, err := c.LatestQuote(context.Background(), "ZZZZ")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDataUnavailable))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

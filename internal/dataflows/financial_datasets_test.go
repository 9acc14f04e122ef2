package dataflows

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/clarence/config"
	"github.com/dyike/clarence/internal/cache"
)

func newTestFinancialDatasets(t *testing.T, handler http.HandlerFunc, c *cache.Cache) *FinancialDatasetsClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &config.Config{FinancialDatasetsURL: srv.URL, FinancialDatasetsAPIKey: "fd-key"}
	fc := NewFinancialDatasetsClient(cfg, c)
	fc.policy = noSleepPolicy()
	return fc
}

func TestFinancialDatasetsNews(t *testing.T) {
	fc := newTestFinancialDatasets(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/news/", r.URL.Path)
		assert.Equal(t, "fd-key", r.Header.Get("X-API-KEY"))
		assert.Equal(t, "AAPL", r.URL.Query().Get("ticker"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"news":[{"ticker":"AAPL","title":"<b>Apple</b> beats","source":"Wire","date":"2025-03-14","url":"https://x"}]}`))
	}, nil)

	news, err := fc.GetNews(context.Background(), "aapl", 0)
	require.NoError(t, err)
	require.Len(t, news, 1)
	assert.Equal(t, "Apple beats", news[0].Title)
}

func TestFinancialDatasetsSnapshotAndMetrics(t *testing.T) {
	fc := newTestFinancialDatasets(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/financial-metrics/snapshot/":
			_, _ = w.Write([]byte(`{"snapshot":{"ticker":"MSFT","price_to_earnings_ratio":35.2}}`))
		case "/financial-metrics/":
			assert.Equal(t, "ttm", r.URL.Query().Get("period"))
			assert.Equal(t, "4", r.URL.Query().Get("limit"))
			_, _ = w.Write([]byte(`{"financial_metrics":[{"ticker":"MSFT"},{"ticker":"MSFT"}]}`))
		}
	}, nil)

	snap, err := fc.GetFinancialMetricsSnapshot(context.Background(), "MSFT")
	require.NoError(t, err)
	assert.Equal(t, 35.2, snap["price_to_earnings_ratio"])

	hist, err := fc.GetFinancialMetrics(context.Background(), "MSFT", "", 0)
	require.NoError(t, err)
	assert.Len(t, hist, 2)
}

func TestFinancialDatasetsUsesCache(t *testing.T) {
	c, err := cache.New(time.Minute, true)
	require.NoError(t, err)
	defer c.Close()

	var calls int32
	fc := newTestFinancialDatasets(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`{"snapshot":{"ticker":"NVDA"}}`))
	}, c)

	_, err = fc.GetFinancialMetricsSnapshot(context.Background(), "NVDA")
	require.NoError(t, err)
	c.Wait()
	_, err = fc.GetFinancialMetricsSnapshot(context.Background(), "NVDA")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFinancialDatasetsRequiresKey(t *testing.T) {
	fc := NewFinancialDatasetsClient(&config.Config{FinancialDatasetsURL: "http://unused"}, nil)
	_, err := fc.GetNews(context.Background(), "AAPL", 5)
	assert.ErrorIs(t, err, errNoFinancialDatasetsKey)
}

func TestHTMLToText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain  text\n here", "plain text here"},
		{"<p>Shares <em>rose</em> 5%</p>", "Shares rose 5%"},
		{"AT&amp;T cuts guidance", "AT&T cuts guidance"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, HTMLToText(tt.in))
		})
	}
}

func TestNewMarketDataSelectsProvider(t *testing.T) {
	cfg := &config.Config{MarketDataProvider: "yahoo"}
	md, err := NewMarketData(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &YahooClient{}, md)

	cfg.MarketDataProvider = "alpaca"
	md, err = NewMarketData(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &AlpacaClient{}, md)

	cfg.MarketDataProvider = "longport"
	_, err = NewMarketData(cfg, nil)
	assert.Error(t, err, "longport without credentials")

	cfg.MarketDataProvider = "bloomberg"
	_, err = NewMarketData(cfg, nil)
	assert.Error(t, err)
}

func TestLongportSymbol(t *testing.T) {
	assert.Equal(t, "AAPL.US", LongportSymbol("AAPL"))
	assert.Equal(t, "700.HK", LongportSymbol("700.HK"))
}

package dataflows

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/dyike/clarence/internal/models"
	"github.com/dyike/clarence/internal/retry"
)

// AlpacaClient reads quotes, bars and screeners from the Alpaca market data
// REST API. It implements both MarketData and Screener.
type AlpacaClient struct {
	client  *resty.Client
	limiter *rate.Limiter
	breaker *Breaker
	policy  retry.Policy
	now     func() time.Time
}

type AlpacaOption func(*AlpacaClient)

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(p retry.Policy) AlpacaOption {
	return func(c *AlpacaClient) { c.policy = p }
}

// WithNow overrides the clock used to compute bar windows.
func WithNow(now func() time.Time) AlpacaOption {
	return func(c *AlpacaClient) { c.now = now }
}

// NewAlpacaClient creates a client against cfg.AlpacaDataURL with requests
// limited to cfg.AlpacaRateLimit per minute.
func NewAlpacaClient(cfg *Config, opts ...AlpacaOption) *AlpacaClient {
	client := resty.New()
	client.SetBaseURL(cfg.AlpacaDataURL)
	client.SetTimeout(15 * time.Second)
	client.SetHeader("APCA-API-KEY-ID", cfg.AlpacaAPIKey)
	client.SetHeader("APCA-API-SECRET-KEY", cfg.AlpacaSecretKey)
	client.SetHeader("Accept", "application/json")

	perMinute := cfg.AlpacaRateLimit
	if perMinute <= 0 {
		perMinute = 200
	}

	c := &AlpacaClient{
		client:  client,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 10),
		breaker: NewBreaker("alpaca-data"),
		policy:  retry.DefaultPolicy(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type alpacaQuoteResponse struct {
	Symbol string `json:"symbol"`
	Quote  struct {
		AskPrice float64 `json:"ap"`
		BidPrice float64 `json:"bp"`
	} `json:"quote"`
}

type alpacaBar struct {
	Timestamp time.Time `json:"t"`
	Open      float64   `json:"o"`
	High      float64   `json:"h"`
	Low       float64   `json:"l"`
	Close     float64   `json:"c"`
	Volume    int64     `json:"v"`
}

type alpacaBarsResponse struct {
	Symbol string      `json:"symbol"`
	Bars   []alpacaBar `json:"bars"`
}

type alpacaMostActivesResponse struct {
	MostActives []struct {
		Symbol     string  `json:"symbol"`
		Volume     float64 `json:"volume"`
		TradeCount float64 `json:"trade_count"`
	} `json:"most_actives"`
}

type alpacaMover struct {
	Symbol        string  `json:"symbol"`
	PercentChange float64 `json:"percent_change"`
	Change        float64 `json:"change"`
	Price         float64 `json:"price"`
}

type alpacaMoversResponse struct {
	Gainers []alpacaMover `json:"gainers"`
	Losers  []alpacaMover `json:"losers"`
}

// get performs a rate-limited, retried, breaker-guarded GET and decodes the
// JSON body into out.
func (c *AlpacaClient) get(ctx context.Context, path string, query map[string]string, out interface{}) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, retry.Do(ctx, c.policy, func(ctx context.Context) error {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
			resp, err := c.client.R().
				SetContext(ctx).
				SetQueryParams(query).
				Get(path)
			if err != nil {
				return fmt.Errorf("GET %s: %w: %v", path, retry.ErrConnection, err)
			}
			if resp.IsError() {
				return &retry.StatusError{StatusCode: resp.StatusCode(), Body: resp.String()}
			}
			if err := json.Unmarshal(resp.Body(), out); err != nil {
				return fmt.Errorf("parse %s response: %w", path, err)
			}
			return nil
		})
	})
	return err
}

func (c *AlpacaClient) LatestQuote(ctx context.Context, symbol string) (models.Quote, error) {
	var resp alpacaQuoteResponse
	path := fmt.Sprintf("/v2/stocks/%s/quotes/latest", url.PathEscape(symbol))
	if err := c.get(ctx, path, nil, &resp); err != nil {
		return models.Quote{}, fmt.Errorf("%w: quote %s: %v", ErrDataUnavailable, symbol, err)
	}
	return models.Quote{
		Symbol:   symbol,
		BidPrice: resp.Quote.BidPrice,
		AskPrice: resp.Quote.AskPrice,
	}, nil
}

// RecentBars asks for the newest bars of the last few weeks, then returns
// them oldest first.
func (c *AlpacaClient) RecentBars(ctx context.Context, symbol string, limit int) ([]models.Bar, error) {
	if limit <= 0 {
		limit = 5
	}
	start := c.now().AddDate(0, 0, -(limit*3 + 7))

	var resp alpacaBarsResponse
	path := fmt.Sprintf("/v2/stocks/%s/bars", url.PathEscape(symbol))
	query := map[string]string{
		"timeframe": "1Day",
		"limit":     fmt.Sprintf("%d", limit),
		"start":     start.UTC().Format(time.RFC3339),
		"sort":      "desc",
		"feed":      "iex",
	}
	if err := c.get(ctx, path, query, &resp); err != nil {
		return nil, fmt.Errorf("%w: bars %s: %v", ErrDataUnavailable, symbol, err)
	}

	bars := make([]models.Bar, 0, len(resp.Bars))
	for _, b := range resp.Bars {
		bars = append(bars, models.Bar{
			Timestamp: b.Timestamp,
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
		})
	}
	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Timestamp.Before(bars[j].Timestamp)
	})
	return bars, nil
}

func (c *AlpacaClient) MostActive(ctx context.Context, top int) ([]models.ActiveStock, error) {
	var resp alpacaMostActivesResponse
	query := map[string]string{"by": "volume", "top": fmt.Sprintf("%d", top)}
	if err := c.get(ctx, "/v1beta1/screener/stocks/most-actives", query, &resp); err != nil {
		return nil, fmt.Errorf("most actives: %w", err)
	}

	out := make([]models.ActiveStock, 0, len(resp.MostActives))
	for _, a := range resp.MostActives {
		out = append(out, models.ActiveStock{
			Symbol:     a.Symbol,
			Volume:     a.Volume,
			TradeCount: a.TradeCount,
		})
	}
	return out, nil
}

func (c *AlpacaClient) TopMovers(ctx context.Context, top int) ([]models.Mover, error) {
	var resp alpacaMoversResponse
	query := map[string]string{"top": fmt.Sprintf("%d", top)}
	if err := c.get(ctx, "/v1beta1/screener/stocks/movers", query, &resp); err != nil {
		return nil, fmt.Errorf("top movers: %w", err)
	}

	out := make([]models.Mover, 0, len(resp.Gainers)+len(resp.Losers))
	for _, m := range resp.Gainers {
		out = append(out, toMover(m, "gainer"))
	}
	for _, m := range resp.Losers {
		out = append(out, toMover(m, "loser"))
	}
	return out, nil
}

func toMover(m alpacaMover, direction string) models.Mover {
	return models.Mover{
		Symbol:        m.Symbol,
		PercentChange: m.PercentChange,
		Change:        m.Change,
		Price:         m.Price,
		Direction:     direction,
	}
}

func (c *AlpacaClient) Breaker() *Breaker {
	return c.breaker
}

package dataflows

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/dyike/clarence/internal/cache"
	"github.com/dyike/clarence/internal/retry"
)

// FinancialDatasetsClient reads company news and financial metrics from the
// Financial Datasets API. Responses are cached for the client's TTL.
type FinancialDatasetsClient struct {
	client  *resty.Client
	cache   *cache.Cache
	breaker *Breaker
	policy  retry.Policy
	apiKey  string
}

const financialDatasetsCacheTTL = 15 * time.Minute

// NewFinancialDatasetsClient builds a client for cfg.FinancialDatasetsURL.
// A nil cache disables caching.
func NewFinancialDatasetsClient(cfg *Config, c *cache.Cache) *FinancialDatasetsClient {
	client := resty.New()
	client.SetBaseURL(cfg.FinancialDatasetsURL)
	client.SetTimeout(30 * time.Second)
	client.SetHeader("X-API-KEY", cfg.FinancialDatasetsAPIKey)
	client.SetHeader("Accept", "application/json")

	return &FinancialDatasetsClient{
		client:  client,
		cache:   c,
		breaker: NewBreaker("financial-datasets"),
		policy:  retry.DefaultPolicy(),
		apiKey:  cfg.FinancialDatasetsAPIKey,
	}
}

// NewFinancialDatasetsCache returns the cache used by the Financial Datasets
// client, honoring cfg.CacheEnabled.
func NewFinancialDatasetsCache(cfg *Config) (*cache.Cache, error) {
	return cache.New(financialDatasetsCacheTTL, cfg.CacheEnabled)
}

var errNoFinancialDatasetsKey = errors.New("FINANCIAL_DATASETS_API_KEY not configured")

// call fetches path and decodes the JSON body into out, consulting the cache
// first.
func (fc *FinancialDatasetsClient) call(ctx context.Context, method, path string, params map[string]string, out interface{}) error {
	if fc.apiKey == "" {
		return errNoFinancialDatasetsKey
	}

	key := cache.Key("financial_datasets", method, params)
	if cached, ok := fc.cache.Get(key); ok {
		if body, ok := cached.([]byte); ok {
			return json.Unmarshal(body, out)
		}
	}

	v, err := fc.breaker.Execute(func() (interface{}, error) {
		return retry.DoValue(ctx, fc.policy, func(ctx context.Context) ([]byte, error) {
			resp, err := fc.client.R().
				SetContext(ctx).
				SetQueryParams(params).
				Get(path)
			if err != nil {
				return nil, fmt.Errorf("GET %s: %w: %v", path, retry.ErrConnection, err)
			}
			if resp.IsError() {
				return nil, &retry.StatusError{StatusCode: resp.StatusCode(), Body: resp.String()}
			}
			return resp.Body(), nil
		})
	})
	if err != nil {
		return err
	}

	body := v.([]byte)
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse %s response: %w", path, err)
	}
	fc.cache.Set(key, body)
	return nil
}

// GetNews returns up to limit recent articles for ticker.
func (fc *FinancialDatasetsClient) GetNews(ctx context.Context, ticker string, limit int) ([]NewsArticle, error) {
	if err := ValidateSymbol(ticker); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 5
	}

	var resp struct {
		News []NewsArticle `json:"news"`
	}
	params := map[string]string{
		"ticker": NormalizeSymbol(ticker),
		"limit":  strconv.Itoa(limit),
	}
	if err := fc.call(ctx, "news", "/news/", params, &resp); err != nil {
		return nil, fmt.Errorf("news for %s: %w", ticker, err)
	}

	news := make([]NewsArticle, 0, len(resp.News))
	for _, a := range resp.News {
		a.Title = HTMLToText(a.Title)
		a.Description = HTMLToText(a.Description)
		news = append(news, a)
	}
	return news, nil
}

// GetFinancialMetricsSnapshot returns the current metrics for ticker.
func (fc *FinancialDatasetsClient) GetFinancialMetricsSnapshot(ctx context.Context, ticker string) (FinancialMetrics, error) {
	if err := ValidateSymbol(ticker); err != nil {
		return nil, err
	}

	var resp struct {
		Snapshot FinancialMetrics `json:"snapshot"`
	}
	params := map[string]string{"ticker": NormalizeSymbol(ticker)}
	if err := fc.call(ctx, "snapshot", "/financial-metrics/snapshot/", params, &resp); err != nil {
		return nil, fmt.Errorf("metrics snapshot for %s: %w", ticker, err)
	}
	if resp.Snapshot == nil {
		return FinancialMetrics{}, nil
	}
	return resp.Snapshot, nil
}

// GetFinancialMetrics returns historical metrics for ticker. Period is one
// of annual, quarterly or ttm.
func (fc *FinancialDatasetsClient) GetFinancialMetrics(ctx context.Context, ticker, period string, limit int) ([]FinancialMetrics, error) {
	if err := ValidateSymbol(ticker); err != nil {
		return nil, err
	}
	if period == "" {
		period = "ttm"
	}
	if limit <= 0 {
		limit = 4
	}

	var resp struct {
		FinancialMetrics []FinancialMetrics `json:"financial_metrics"`
	}
	params := map[string]string{
		"ticker": NormalizeSymbol(ticker),
		"period": period,
		"limit":  strconv.Itoa(limit),
	}
	if err := fc.call(ctx, "financial_metrics", "/financial-metrics/", params, &resp); err != nil {
		return nil, fmt.Errorf("financial metrics for %s: %w", ticker, err)
	}
	if resp.FinancialMetrics == nil {
		return []FinancialMetrics{}, nil
	}
	return resp.FinancialMetrics, nil
}

func (fc *FinancialDatasetsClient) Breaker() *Breaker {
	return fc.breaker
}

package dataflows

import (
	"context"
	"errors"

	"github.com/dyike/clarence/config"
	"github.com/dyike/clarence/internal/models"
)

// Config is an alias for the main application config
type Config = config.Config

// ErrDataUnavailable is returned when a symbol's quote or bars cannot be
// produced. Callers drop the symbol rather than score zeros.
var ErrDataUnavailable = errors.New("market data unavailable")

// MarketData provides quotes and daily bars.
type MarketData interface {
	LatestQuote(ctx context.Context, symbol string) (models.Quote, error)
	// RecentBars returns up to limit daily bars, oldest first.
	RecentBars(ctx context.Context, symbol string, limit int) ([]models.Bar, error)
}

// Screener discovers actively traded symbols.
type Screener interface {
	MostActive(ctx context.Context, top int) ([]models.ActiveStock, error)
	TopMovers(ctx context.Context, top int) ([]models.Mover, error)
}

// NewsArticle represents a news article
type NewsArticle struct {
	Ticker      string `json:"ticker"`
	Title       string `json:"title"`
	Author      string `json:"author,omitempty"`
	Source      string `json:"source"`
	Date        string `json:"date"`
	URL         string `json:"url"`
	Sentiment   string `json:"sentiment,omitempty"`
	Description string `json:"description,omitempty"`
}

// FinancialMetrics is one period of company metrics. The upstream payload
// carries dozens of ratios, so fields beyond the identifiers stay untyped.
type FinancialMetrics map[string]any

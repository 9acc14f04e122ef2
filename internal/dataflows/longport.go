package dataflows

import (
	"context"
	"errors"
	"fmt"
	"time"

	lpconfig "github.com/longportapp/openapi-go/config"
	"github.com/longportapp/openapi-go/quote"
	"github.com/shopspring/decimal"

	"github.com/dyike/clarence/internal/models"
)

// LongportClient serves quotes and daily bars from the Longport quote API.
// Symbols use Longport notation (AAPL.US, 700.HK); bare tickers get ".US".
type LongportClient struct {
	quoteCtx *quote.QuoteContext
	breaker  *Breaker
}

func NewLongportClient(cfg *Config) (*LongportClient, error) {
	if cfg.LongportAppKey == "" || cfg.LongportAppSecret == "" || cfg.LongportAccessToken == "" {
		return nil, errors.New("longport API credentials not configured")
	}

	conf, err := lpconfig.New(lpconfig.WithConfigKey(cfg.LongportAppKey, cfg.LongportAppSecret, cfg.LongportAccessToken))
	if err != nil {
		return nil, fmt.Errorf("longport config: %w", err)
	}

	quoteContext, err := quote.NewFromCfg(conf)
	if err != nil {
		return nil, fmt.Errorf("longport quote context: %w", err)
	}

	return &LongportClient{
		quoteCtx: quoteContext,
		breaker:  NewBreaker("longport"),
	}, nil
}

// LongportSymbol appends the US market suffix to bare tickers.
func LongportSymbol(symbol string) string {
	for i := len(symbol) - 1; i >= 0; i-- {
		if symbol[i] == '.' {
			return symbol
		}
	}
	return symbol + ".US"
}

// toFloat reads an SDK price; a missing price is 0.
func toFloat(d *decimal.Decimal) float64 {
	if d == nil {
		return 0
	}
	f, _ := d.Float64()
	return f
}

func (lpc *LongportClient) LatestQuote(ctx context.Context, symbol string) (models.Quote, error) {
	v, err := lpc.breaker.Execute(func() (interface{}, error) {
		return lpc.quoteCtx.Depth(ctx, LongportSymbol(symbol))
	})
	if err != nil {
		return models.Quote{}, fmt.Errorf("%w: depth %s: %v", ErrDataUnavailable, symbol, err)
	}
	depth := v.(*quote.SecurityDepth)

	q := models.Quote{Symbol: symbol}
	if depth != nil && len(depth.Bid) > 0 && depth.Bid[0] != nil {
		q.BidPrice = toFloat(depth.Bid[0].Price)
	}
	if depth != nil && len(depth.Ask) > 0 && depth.Ask[0] != nil {
		q.AskPrice = toFloat(depth.Ask[0].Price)
	}
	return q, nil
}

func (lpc *LongportClient) RecentBars(ctx context.Context, symbol string, limit int) ([]models.Bar, error) {
	v, err := lpc.breaker.Execute(func() (interface{}, error) {
		return lpc.quoteCtx.Candlesticks(ctx, LongportSymbol(symbol), quote.PeriodDay, int32(limit), quote.AdjustTypeNo)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: candlesticks %s: %v", ErrDataUnavailable, symbol, err)
	}
	sticks := v.([]*quote.Candlestick)

	bars := make([]models.Bar, 0, len(sticks))
	for _, stick := range sticks {
		if stick == nil {
			continue
		}
		bars = append(bars, models.Bar{
			Timestamp: time.Unix(stick.Timestamp, 0),
			Open:      toFloat(stick.Open),
			High:      toFloat(stick.High),
			Low:       toFloat(stick.Low),
			Close:     toFloat(stick.Close),
			Volume:    stick.Volume,
		})
	}
	return bars, nil
}

func (lpc *LongportClient) Breaker() *Breaker {
	return lpc.breaker
}

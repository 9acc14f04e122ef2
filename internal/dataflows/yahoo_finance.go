package dataflows

import (
	"context"
	"fmt"
	"time"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/piquette/finance-go/quote"

	"github.com/dyike/clarence/internal/models"
	"github.com/dyike/clarence/internal/retry"
)

// YahooClient serves quotes and daily bars from Yahoo Finance. It needs no
// credentials, which makes it the fallback when Alpaca data is not entitled.
type YahooClient struct {
	breaker *Breaker
	policy  retry.Policy
	now     func() time.Time
}

func NewYahooClient() *YahooClient {
	return &YahooClient{
		breaker: NewBreaker("yahoo"),
		policy:  retry.DefaultPolicy(),
		now:     time.Now,
	}
}

func (yc *YahooClient) LatestQuote(ctx context.Context, symbol string) (models.Quote, error) {
	v, err := yc.breaker.Execute(func() (interface{}, error) {
		return retry.DoValue(ctx, yc.policy, func(ctx context.Context) (models.Quote, error) {
			q, err := quote.Get(symbol)
			if err != nil {
				return models.Quote{}, fmt.Errorf("%w: %v", retry.ErrConnection, err)
			}
			if q == nil {
				return models.Quote{}, fmt.Errorf("no quote for %s", symbol)
			}
			return models.Quote{Symbol: symbol, BidPrice: q.Bid, AskPrice: q.Ask}, nil
		})
	})
	if err != nil {
		return models.Quote{}, fmt.Errorf("%w: quote %s: %v", ErrDataUnavailable, symbol, err)
	}
	return v.(models.Quote), nil
}

func (yc *YahooClient) RecentBars(ctx context.Context, symbol string, limit int) ([]models.Bar, error) {
	end := yc.now()
	start := end.AddDate(0, 0, -(limit*3 + 7))

	v, err := yc.breaker.Execute(func() (interface{}, error) {
		return retry.DoValue(ctx, yc.policy, func(ctx context.Context) ([]models.Bar, error) {
			iter := chart.Get(&chart.Params{
				Symbol:   symbol,
				Start:    datetime.New(&start),
				End:      datetime.New(&end),
				Interval: datetime.OneDay,
			})

			bars := make([]models.Bar, 0, limit)
			for iter.Next() {
				bar := iter.Bar()
				bars = append(bars, models.Bar{
					Timestamp: time.Unix(int64(bar.Timestamp), 0),
					Open:      toFloat(&bar.Open),
					High:      toFloat(&bar.High),
					Low:       toFloat(&bar.Low),
					Close:     toFloat(&bar.Close),
					Volume:    int64(bar.Volume),
				})
			}
			if err := iter.Err(); err != nil {
				return nil, fmt.Errorf("%w: %v", retry.ErrConnection, err)
			}
			return bars, nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: bars %s: %v", ErrDataUnavailable, symbol, err)
	}

	bars := v.([]models.Bar)
	if len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	return bars, nil
}

func (yc *YahooClient) Breaker() *Breaker {
	return yc.breaker
}

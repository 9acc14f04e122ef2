package scanner

import (
	"context"
	"fmt"

	"github.com/dyike/clarence/internal/dataflows"
	"github.com/dyike/clarence/internal/models"
)

// barsLimit is the number of daily bars requested per symbol.
const barsLimit = 5

// AssembleMetrics builds the scoring input for symbol from its latest quote
// and recent daily bars. Any fetch error yields an error and no metrics, so
// the caller drops the symbol instead of scoring zeros.
func AssembleMetrics(ctx context.Context, md dataflows.MarketData, symbol string) (models.Metrics, error) {
	quote, err := md.LatestQuote(ctx, symbol)
	if err != nil {
		return models.Metrics{}, fmt.Errorf("quote error: %w", err)
	}
	bars, err := md.RecentBars(ctx, symbol, barsLimit)
	if err != nil {
		return models.Metrics{}, fmt.Errorf("bars error: %w", err)
	}
	return metricsFrom(symbol, quote, bars), nil
}

func metricsFrom(symbol string, q models.Quote, bars []models.Bar) models.Metrics {
	m := models.Metrics{
		Symbol:      symbol,
		BidPrice:    q.BidPrice,
		AskPrice:    q.AskPrice,
		VolumeRatio: 1.0,
	}
	if q.BidPrice != 0 && q.AskPrice != 0 {
		m.CurrentPrice = (q.BidPrice + q.AskPrice) / 2
		m.Spread = q.AskPrice - q.BidPrice
	}
	if m.CurrentPrice > 0 {
		m.SpreadPercent = m.Spread / m.CurrentPrice * 100
	}

	if len(bars) == 0 {
		return m
	}

	latest := bars[len(bars)-1]
	m.Volume = latest.Volume
	m.AvgVolume = latest.Volume
	if latest.Open > 0 {
		m.Volatility = (latest.High - latest.Low) / latest.Open * 100
	}

	if prior := bars[:len(bars)-1]; len(prior) > 0 {
		var total int64
		for _, b := range prior {
			total += b.Volume
		}
		m.AvgVolume = total / int64(len(prior))

		prevClose := prior[len(prior)-1].Close
		if prevClose > 0 {
			m.GapPercent = (latest.Open - prevClose) / prevClose * 100
		}
	}

	if m.AvgVolume > 0 {
		m.VolumeRatio = float64(m.Volume) / float64(m.AvgVolume)
	}
	return m
}

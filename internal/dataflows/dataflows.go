package dataflows

import (
	"fmt"
)

// Sources bundles the market data collaborators of a scan. Screener is always
// Alpaca; MarketData follows cfg.MarketDataProvider.
type Sources struct {
	MarketData MarketData
	Screener   Screener
	Provider   string
}

// NewSources builds the configured market data sources.
func NewSources(cfg *Config) (*Sources, error) {
	alpaca := NewAlpacaClient(cfg)

	md, err := NewMarketData(cfg, alpaca)
	if err != nil {
		return nil, err
	}
	return &Sources{
		MarketData: md,
		Screener:   alpaca,
		Provider:   cfg.MarketDataProvider,
	}, nil
}

// Breakers returns the circuit breakers guarding the sources, once each.
func (s *Sources) Breakers() []*Breaker {
	var out []*Breaker
	seen := map[*Breaker]bool{}
	for _, src := range []interface{}{s.MarketData, s.Screener} {
		g, ok := src.(guarded)
		if !ok || g.Breaker() == nil || seen[g.Breaker()] {
			continue
		}
		seen[g.Breaker()] = true
		out = append(out, g.Breaker())
	}
	return out
}

// NewMarketData selects the quote/bars provider. The alpaca client is reused
// when it is the selected provider.
func NewMarketData(cfg *Config, alpaca *AlpacaClient) (MarketData, error) {
	switch cfg.MarketDataProvider {
	case "", "alpaca":
		if alpaca == nil {
			alpaca = NewAlpacaClient(cfg)
		}
		return alpaca, nil
	case "longport":
		return NewLongportClient(cfg)
	case "yahoo":
		return NewYahooClient(), nil
	default:
		return nil, fmt.Errorf("unsupported market data provider %q", cfg.MarketDataProvider)
	}
}

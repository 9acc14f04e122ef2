package models

import "time"

// Quote is the latest bid/ask for a symbol.
type Quote struct {
	Symbol   string  `json:"symbol"`
	BidPrice float64 `json:"bid_price"`
	AskPrice float64 `json:"ask_price"`
}

// Bar is one daily OHLCV bar. Bars are ordered oldest first.
type Bar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
}

// ActiveStock is one entry of the most-active screener. Error is set when
// the screener could not produce the entry.
type ActiveStock struct {
	Symbol     string  `json:"symbol"`
	Volume     float64 `json:"volume"`
	TradeCount float64 `json:"trade_count"`
	Error      string  `json:"error,omitempty"`
}

// Mover is one entry of the top-movers screener.
type Mover struct {
	Symbol        string  `json:"symbol"`
	PercentChange float64 `json:"percent_change"`
	Change        float64 `json:"change"`
	Price         float64 `json:"price"`
	Direction     string  `json:"direction"` // gainer or loser
	Error         string  `json:"error,omitempty"`
}

// Metrics is the normalized per-symbol input of the scoring engine. Every
// percentage is finite; zero denominators degrade to the documented default.
type Metrics struct {
	Symbol        string  `json:"symbol"`
	CurrentPrice  float64 `json:"current_price"`
	BidPrice      float64 `json:"bid_price"`
	AskPrice      float64 `json:"ask_price"`
	Spread        float64 `json:"spread"`
	SpreadPercent float64 `json:"spread_percent"`
	Volume        int64   `json:"volume"`
	AvgVolume     int64   `json:"avg_volume"`
	VolumeRatio   float64 `json:"volume_ratio"`
	Volatility    float64 `json:"volatility"`
	GapPercent    float64 `json:"gap_percent"`
}

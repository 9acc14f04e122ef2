// Package risk holds the three risk presets and the risk-aware steps of the
// scan: filtering scored candidates, sizing positions and placing stops.
package risk

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dyike/clarence/internal/models"
)

// Level is a risk preset. Each level maps to exactly one Params value and
// back, so the label is never recovered from a Params instance.
type Level int

const (
	Low Level = iota
	Medium
	High
)

// Params are the numeric thresholds of a risk level.
type Params struct {
	MaxSpreadPct       float64
	PositionSizeMinPct float64
	PositionSizeMaxPct float64
	StopLossPct        float64
	MinVolume          int64
	VolatilityMin      float64 // informational, not enforced by Filter
	VolatilityMax      float64
	MinScore           int
}

var params = [...]Params{
	Low: {
		MaxSpreadPct:       0.10,
		PositionSizeMinPct: 1.0,
		PositionSizeMaxPct: 2.0,
		StopLossPct:        1.0,
		MinVolume:          1_000_000,
		VolatilityMin:      0.5,
		VolatilityMax:      2.0,
		MinScore:           70,
	},
	Medium: {
		MaxSpreadPct:       0.25,
		PositionSizeMinPct: 2.0,
		PositionSizeMaxPct: 4.0,
		StopLossPct:        2.0,
		MinVolume:          500_000,
		VolatilityMin:      1.0,
		VolatilityMax:      4.0,
		MinScore:           55,
	},
	High: {
		MaxSpreadPct:       0.50,
		PositionSizeMinPct: 3.0,
		PositionSizeMaxPct: 5.0,
		StopLossPct:        3.0,
		MinVolume:          200_000,
		VolatilityMin:      2.0,
		VolatilityMax:      8.0,
		MinScore:           40,
	},
}

// Levels lists every level in ascending order of risk.
func Levels() []Level {
	return []Level{Low, Medium, High}
}

// ParseLevel maps a name ("low", "medium", "high") or onboarding digit
// ("1", "2", "3") to a Level. Anything else is Medium.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low", "1":
		return Low
	case "high", "3":
		return High
	default:
		return Medium
	}
}

func (l Level) valid() bool {
	return l >= Low && l <= High
}

// String returns the label used in profiles and prompts.
func (l Level) String() string {
	switch l {
	case Low:
		return "low"
	case High:
		return "high"
	default:
		return "medium"
	}
}

func (l Level) DisplayName() string {
	switch l {
	case Low:
		return "Low    (tight stops, high-volume stocks only)"
	case High:
		return "High   (wider stops, more volatile stocks)"
	default:
		return "Medium (balanced risk/reward)"
	}
}

// Params returns the thresholds of the level.
func (l Level) Params() Params {
	if !l.valid() {
		return params[Medium]
	}
	return params[l]
}

// Filter keeps scores that meet the minimum score, the maximum spread and
// the minimum volume of p. Input order is preserved.
func Filter(scores []models.Score, p Params) []models.Score {
	filtered := make([]models.Score, 0, len(scores))
	for _, s := range scores {
		if !p.Accepts(s) {
			continue
		}
		filtered = append(filtered, s)
	}
	return filtered
}

// Accepts reports whether a single score passes every threshold of p.
func (p Params) Accepts(s models.Score) bool {
	return len(p.Violations(s)) == 0
}

// Violation names one threshold a score failed.
type Violation struct {
	Kind   string // score, spread or volume
	Actual float64
	Limit  float64
}

// Violations lists every threshold s fails, in score, spread, volume order.
func (p Params) Violations(s models.Score) []Violation {
	var out []Violation
	if s.TotalScore < p.MinScore {
		out = append(out, Violation{Kind: "score", Actual: float64(s.TotalScore), Limit: float64(p.MinScore)})
	}
	if s.Metrics.SpreadPercent > p.MaxSpreadPct {
		out = append(out, Violation{Kind: "spread", Actual: s.Metrics.SpreadPercent, Limit: p.MaxSpreadPct})
	}
	if s.Metrics.Volume < p.MinVolume {
		out = append(out, Violation{Kind: "volume", Actual: float64(s.Metrics.Volume), Limit: float64(p.MinVolume)})
	}
	return out
}

// PositionSizeMidPct is the midpoint of the position size band.
func (p Params) PositionSizeMidPct() float64 {
	return (p.PositionSizeMinPct + p.PositionSizeMaxPct) / 2
}

// PositionSize returns the whole number of shares worth the midpoint of the
// position size band of buyingPower. A non-positive price yields zero.
func PositionSize(buyingPower float64, p Params, price float64) int {
	if price <= 0 {
		return 0
	}
	dollars := buyingPower * (p.PositionSizeMidPct() / 100)
	shares := int(dollars / price)
	if shares < 0 {
		return 0
	}
	return shares
}

// StopLoss returns the stop price stop_loss_pct below entry, rounded to cents.
func StopLoss(entryPrice float64, p Params) float64 {
	factor := decimal.NewFromInt(1).Sub(decimal.NewFromFloat(p.StopLossPct).Div(decimal.NewFromInt(100)))
	stop, _ := decimal.NewFromFloat(entryPrice).Mul(factor).Round(2).Float64()
	return stop
}

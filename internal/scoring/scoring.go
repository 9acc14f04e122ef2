// Package scoring rates a symbol's day trading suitability from its
// metrics. Each of the four factors scores 5 to 25 points; the total is
// their sum. Scoring is risk agnostic.
package scoring

import (
	"fmt"
	"math"
	"strings"

	"github.com/dyike/clarence/internal/models"
)

// MaxFactorScore is the best score a single factor can earn.
const MaxFactorScore = 25

// Liquidity scores today's volume against the trailing average.
func Liquidity(volume, avgVolume int64) (int, string) {
	if avgVolume == 0 {
		return 10, "No average volume data available"
	}

	ratio := float64(volume) / float64(avgVolume)
	return liquidityForRatio(ratio)
}

func liquidityForRatio(ratio float64) (int, string) {
	switch {
	case ratio > 2.0:
		return 25, fmt.Sprintf("Exceptional volume (%.1fx average) - high interest today", ratio)
	case ratio >= 1.5:
		return 20, fmt.Sprintf("Excellent volume (%.1fx average) - above normal trading", ratio)
	case ratio >= 1.0:
		return 15, fmt.Sprintf("Good volume (%.1fx average) - normal trading activity", ratio)
	case ratio >= 0.5:
		return 10, fmt.Sprintf("Moderate volume (%.1fx average) - below average interest", ratio)
	default:
		return 5, fmt.Sprintf("Low volume (%.1fx average) - may be harder to enter/exit", ratio)
	}
}

// Spread scores the bid-ask spread as a percent of the mid price.
func Spread(spreadPercent float64) (int, string) {
	switch {
	case spreadPercent < 0.05:
		return 25, fmt.Sprintf("Excellent spread (%.3f%%) - minimal slippage", spreadPercent)
	case spreadPercent < 0.10:
		return 20, fmt.Sprintf("Good spread (%.3f%%) - acceptable for day trading", spreadPercent)
	case spreadPercent < 0.20:
		return 15, fmt.Sprintf("Moderate spread (%.3f%%) - watch entry/exit carefully", spreadPercent)
	case spreadPercent < 0.50:
		return 10, fmt.Sprintf("Wide spread (%.3f%%) - significant slippage risk", spreadPercent)
	default:
		return 5, fmt.Sprintf("Very wide spread (%.3f%%) - high cost to trade", spreadPercent)
	}
}

// Volatility scores the intraday range as a percent of the open. The ideal
// band is 2-4%; both tails lose points.
func Volatility(v float64) (int, string) {
	switch {
	case v >= 2.0 && v <= 4.0:
		return 25, fmt.Sprintf("Ideal volatility (%.1f%%) - good movement for day trading", v)
	case (v >= 1.0 && v < 2.0) || (v > 4.0 && v <= 6.0):
		return 20, fmt.Sprintf("Good volatility (%.1f%%) - workable for day trading", v)
	case (v >= 0.5 && v < 1.0) || (v > 6.0 && v <= 8.0):
		return 15, fmt.Sprintf("Moderate volatility (%.1f%%) - proceed with caution", v)
	case v < 0.5:
		return 10, fmt.Sprintf("Low volatility (%.1f%%) - limited profit potential", v)
	default:
		return 5, fmt.Sprintf("High volatility (%.1f%%) - elevated risk", v)
	}
}

// Direction is "up" for a non-negative gap and "down" otherwise.
func Direction(gapPercent float64) string {
	if gapPercent >= 0 {
		return "up"
	}
	return "down"
}

// Momentum scores the absolute opening gap versus the prior close.
func Momentum(gapPercent float64) (int, string) {
	abs := math.Abs(gapPercent)
	dir := Direction(gapPercent)

	switch {
	case abs >= 1.0 && abs <= 3.0:
		return 25, fmt.Sprintf("Ideal gap (%+.1f%% %s) - clear catalyst, not overdone", gapPercent, dir)
	case (abs >= 0.5 && abs < 1.0) || (abs > 3.0 && abs <= 5.0):
		return 20, fmt.Sprintf("Good gap (%+.1f%% %s) - momentum present", gapPercent, dir)
	case abs < 0.5:
		return 15, fmt.Sprintf("Small gap (%+.1f%%) - no clear catalyst today", gapPercent)
	default:
		return 10, fmt.Sprintf("Large gap (%+.1f%% %s) - may be extended, watch for reversal", gapPercent, dir)
	}
}

// Band returns the overall assessment label for a total score.
func Band(total int) string {
	switch {
	case total >= 80:
		return "Excellent day trading candidate"
	case total >= 60:
		return "Good candidate with some caution"
	case total >= 40:
		return "Marginal - consider other options"
	default:
		return "Not recommended for day trading"
	}
}

// Calculate scores m. The returned Score embeds a copy of m.
func Calculate(m models.Metrics) models.Score {
	liquidity, liquidityExp := Liquidity(m.Volume, m.AvgVolume)
	spread, spreadExp := Spread(m.SpreadPercent)
	volatility, volatilityExp := Volatility(m.Volatility)
	momentum, momentumExp := Momentum(m.GapPercent)

	total := liquidity + spread + volatility + momentum

	parts := []string{
		"Liquidity: " + liquidityExp,
		"Spread: " + spreadExp,
		"Volatility: " + volatilityExp,
		"Momentum: " + momentumExp,
	}

	return models.Score{
		Symbol:          m.Symbol,
		TotalScore:      total,
		LiquidityScore:  liquidity,
		SpreadScore:     spread,
		VolatilityScore: volatility,
		MomentumScore:   momentum,
		Metrics:         m,
		Explanation:     Band(total) + ". " + strings.Join(parts, " | "),
	}
}

// FormatBreakdown renders a score for display.
func FormatBreakdown(s models.Score) string {
	m := s.Metrics
	var b strings.Builder
	fmt.Fprintf(&b, "Day Trading Score: %d/100\n", s.TotalScore)
	fmt.Fprintf(&b, "  - Liquidity:  %d/%d (volume %.1fx average)\n", s.LiquidityScore, MaxFactorScore, m.VolumeRatio)
	fmt.Fprintf(&b, "  - Spread:     %d/%d (%.3f%% spread)\n", s.SpreadScore, MaxFactorScore, m.SpreadPercent)
	fmt.Fprintf(&b, "  - Volatility: %d/%d (%.1f%% intraday range)\n", s.VolatilityScore, MaxFactorScore, m.Volatility)
	fmt.Fprintf(&b, "  - Momentum:   %d/%d (%+.1f%% gap)", s.MomentumScore, MaxFactorScore, m.GapPercent)
	return b.String()
}

// Summary is the one-line form used in scan logs and prompts.
func Summary(s models.Score) string {
	m := s.Metrics
	return fmt.Sprintf("%s: score=%d | vol_ratio=%.1fx | spread=%.3f%% | volatility=%.1f%% | gap=%+.1f%% | price=$%.2f",
		s.Symbol, s.TotalScore, m.VolumeRatio, m.SpreadPercent, m.Volatility, m.GapPercent, m.CurrentPrice)
}

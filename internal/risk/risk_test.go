package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/clarence/internal/models"
)

func score(sym string, total int, spreadPct float64, volume int64) models.Score {
	return models.Score{
		Symbol:     sym,
		TotalScore: total,
		Metrics: models.Metrics{
			Symbol:        sym,
			SpreadPercent: spreadPct,
			Volume:        volume,
		},
	}
}

func TestParseLevelRoundTrip(t *testing.T) {
	for _, l := range Levels() {
		assert.Equal(t, l, ParseLevel(l.String()))
	}
	assert.Equal(t, Low, ParseLevel("1"))
	assert.Equal(t, Medium, ParseLevel("2"))
	assert.Equal(t, High, ParseLevel(" HIGH "))
	assert.Equal(t, Medium, ParseLevel("reckless"))
	assert.Equal(t, Medium, ParseLevel(""))
}

func TestPresetTable(t *testing.T) {
	low, medium, high := Low.Params(), Medium.Params(), High.Params()

	assert.Equal(t, 70, low.MinScore)
	assert.Equal(t, int64(1_000_000), low.MinVolume)
	assert.Equal(t, 0.10, low.MaxSpreadPct)

	assert.Equal(t, 55, medium.MinScore)
	assert.Equal(t, int64(500_000), medium.MinVolume)
	assert.Equal(t, 0.25, medium.MaxSpreadPct)
	assert.Equal(t, 2.0, medium.StopLossPct)

	assert.Equal(t, 40, high.MinScore)
	assert.Equal(t, int64(200_000), high.MinVolume)
	assert.Equal(t, 0.50, high.MaxSpreadPct)

	for _, l := range Levels() {
		p := l.Params()
		assert.LessOrEqual(t, p.PositionSizeMinPct, p.PositionSizeMaxPct, l.String())
	}
	assert.Equal(t, medium, Level(42).Params())
}

func TestFilter(t *testing.T) {
	p := Medium.Params()
	in := []models.Score{
		score("PASS", 85, 0.05, 2_000_000),
		score("LOWSCORE", 50, 0.05, 2_000_000),
		score("WIDE", 90, 0.30, 2_000_000),
		score("THIN", 90, 0.05, 100_000),
		score("EDGE", 55, 0.25, 500_000),
	}

	got := Filter(in, p)
	require.Len(t, got, 2)
	assert.Equal(t, "PASS", got[0].Symbol)
	assert.Equal(t, "EDGE", got[1].Symbol)
}

func TestFilterIsIdempotent(t *testing.T) {
	p := Low.Params()
	in := []models.Score{
		score("A", 75, 0.02, 3_000_000),
		score("B", 60, 0.02, 3_000_000),
		score("C", 95, 0.08, 1_000_000),
	}
	once := Filter(in, p)
	twice := Filter(once, p)
	assert.Equal(t, once, twice)
}

func TestViolations(t *testing.T) {
	p := Medium.Params()
	v := p.Violations(score("X", 40, 0.40, 1_000))
	require.Len(t, v, 3)
	assert.Equal(t, "score", v[0].Kind)
	assert.Equal(t, "spread", v[1].Kind)
	assert.Equal(t, "volume", v[2].Kind)

	assert.Empty(t, p.Violations(score("Y", 60, 0.10, 600_000)))
}

func TestPositionSize(t *testing.T) {
	p := Params{PositionSizeMinPct: 2.0, PositionSizeMaxPct: 4.0}
	tests := []struct {
		name        string
		buyingPower float64
		price       float64
		want        int
	}{
		{"midpoint of band", 10000, 50, 6},
		{"fractional shares truncated", 10000, 70, 4},
		{"zero price", 10000, 0, 0},
		{"negative price", 10000, -5, 0},
		{"no buying power", 0, 50, 0},
		{"negative buying power clamps", -10000, 50, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PositionSize(tt.buyingPower, p, tt.price))
		})
	}
}

func TestStopLoss(t *testing.T) {
	assert.Equal(t, 98.00, StopLoss(100, Params{StopLossPct: 2.0}))
	assert.Equal(t, 49.5, StopLoss(50, Params{StopLossPct: 1.0}))
	assert.Equal(t, 141.38, StopLoss(145.75, Params{StopLossPct: 3.0}))
}

package prompts

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemIncludesDate(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	out, err := System(context.Background(), now)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "You are Clarence, a day trading execution agent."))
	assert.True(t, strings.HasSuffix(out, "Current date: Friday, March 14, 2025"))
}

func TestScanning(t *testing.T) {
	out, err := Scanning(context.Background(), ScanInput{
		RiskLevel:        "medium",
		BuyingPower:      12345.678,
		StopLossPct:      2.0,
		PositionSizeMin:  2.0,
		PositionSizeMax:  4.0,
		PositionsSummary: "None",
		Candidates:       []string{"AAPL: score=85", "MSFT: score=70"},
	})
	require.NoError(t, err)

	assert.Contains(t, out, "Risk Level: medium\n")
	assert.Contains(t, out, "Buying Power: $12,345.68\n")
	assert.Contains(t, out, "Stop Loss: 2.0% below entry")
	assert.Contains(t, out, "Position Sizing: Use 2.0-4.0% of buying power per trade.")
	assert.Contains(t, out, "Current Positions:\nNone")
	assert.Contains(t, out, "Scored Candidates (sorted by day trading suitability):\nAAPL: score=85\nMSFT: score=70")
	assert.True(t, strings.HasSuffix(out, `"risk_factors": ["..."], "score": {...}}]}`))
	assert.Contains(t, out, `{"recommendations": [{"symbol": "..."`)
}

func TestOpportunity(t *testing.T) {
	out, err := Opportunity(context.Background(), `{"symbol": "AAPL"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "Present this trade recommendation concisely:\n\n{\"symbol\": \"AAPL\"}")
	assert.Contains(t, out, `5. End with: "Ready to execute? (yes/no/modify)"`)
}

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0.00"},
		{499.75, "499.75"},
		{1000, "1,000.00"},
		{1234567.891, "1,234,567.89"},
		{-2500.5, "-2,500.50"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatMoney(tt.in))
		})
	}
}

func TestFormatPercent(t *testing.T) {
	assert.Equal(t, "2.0", FormatPercent(2))
	assert.Equal(t, "0.25", FormatPercent(0.25))
	assert.Equal(t, "2.5", FormatPercent(2.5))
}

func TestFormatCountAndSigned(t *testing.T) {
	assert.Equal(t, "500,000", FormatCount(500000))
	assert.Equal(t, "999", FormatCount(999))
	assert.Equal(t, "+12.50", FormatSignedMoney(12.5))
	assert.Equal(t, "-1,200.00", FormatSignedMoney(-1200))
	assert.Equal(t, "+0.00", FormatSignedMoney(0))
}

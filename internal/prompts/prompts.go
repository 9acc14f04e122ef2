// Package prompts renders the model prompts from embedded templates.
package prompts

import (
	"context"
	"embed"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed templates
var templateFiles embed.FS

const (
	// ScanSystem is the system instruction for recommendation synthesis.
	ScanSystem = "You are a trading analysis engine. Return only valid JSON."
	// OpportunitySystem is the system instruction for presenting one recommendation.
	OpportunitySystem = "You are Clarence, a day trading execution agent. Present concisely."
)

// Load returns a raw template by name.
func Load(name string) (string, error) {
	content, err := templateFiles.ReadFile(fmt.Sprintf("templates/%s.md", name))
	if err != nil {
		return "", fmt.Errorf("failed to load prompt %s: %w", name, err)
	}
	return strings.TrimRight(string(content), "\n"), nil
}

// render formats a template with python-style {name} placeholders.
func render(ctx context.Context, name string, vars map[string]any) (string, error) {
	tpl, err := Load(name)
	if err != nil {
		return "", err
	}
	msgs, err := prompt.FromMessages(schema.FString, schema.UserMessage(tpl)).Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("format prompt %s: %w", name, err)
	}
	if len(msgs) == 0 {
		return "", fmt.Errorf("format prompt %s: no output", name)
	}
	return msgs[0].Content, nil
}

// System renders the Q&A system prompt for the given day.
func System(ctx context.Context, now time.Time) (string, error) {
	return render(ctx, "system", map[string]any{
		"current_date": now.Format("Monday, January 02, 2006"),
	})
}

type ScanInput struct {
	RiskLevel        string
	BuyingPower      float64
	StopLossPct      float64
	PositionSizeMin  float64
	PositionSizeMax  float64
	PositionsSummary string
	// Candidates holds one summary line per scored candidate, best first.
	Candidates []string
}

// Scanning renders the recommendation synthesis prompt.
func Scanning(ctx context.Context, in ScanInput) (string, error) {
	return render(ctx, "scanning", map[string]any{
		"risk_level":        in.RiskLevel,
		"buying_power":      FormatMoney(in.BuyingPower),
		"stop_loss_pct":     FormatPercent(in.StopLossPct),
		"pos_size_min":      FormatPercent(in.PositionSizeMin),
		"pos_size_max":      FormatPercent(in.PositionSizeMax),
		"positions_summary": in.PositionsSummary,
		"scored_candidates": strings.Join(in.Candidates, "\n"),
	})
}

// Opportunity renders the presentation prompt for one recommendation.
func Opportunity(ctx context.Context, recommendationJSON string) (string, error) {
	return render(ctx, "opportunity", map[string]any{
		"recommendation_json": recommendationJSON,
	})
}

// FormatMoney renders v with two decimals and thousands separators.
func FormatMoney(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac := s[:len(s)-3], s[len(s)-3:]

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + b.String() + frac
}

// FormatPercent keeps one decimal for whole numbers (2.0) and the shortest
// exact form otherwise (2.5, 0.25).
func FormatPercent(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatFloat(v, 'f', 1, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FormatCount renders n with thousands separators.
func FormatCount(n int64) string {
	s := FormatMoney(float64(n))
	return s[:len(s)-3]
}

// FormatSignedMoney is FormatMoney with an explicit + for non-negative values.
func FormatSignedMoney(v float64) string {
	s := FormatMoney(v)
	if strings.HasPrefix(s, "-") {
		return s
	}
	return "+" + s
}

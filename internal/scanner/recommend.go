package scanner

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dyike/clarence/internal/models"
)

var ErrNoJSON = errors.New("response contains no JSON object")

// flexNumber decodes a JSON number or a numeric string.
type flexNumber float64

func (n *flexNumber) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return nil
	}
	if unq, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unq)
	}
	f, err := strconv.ParseFloat(strings.TrimPrefix(s, "$"), 64)
	if err != nil {
		return fmt.Errorf("not a number: %s", b)
	}
	*n = flexNumber(f)
	return nil
}

type rawRecommendation struct {
	Symbol        string      `json:"symbol"`
	Action        string      `json:"action"`
	Quantity      flexNumber  `json:"quantity"`
	OrderType     string      `json:"order_type"`
	LimitPrice    *flexNumber `json:"limit_price"`
	EstimatedCost flexNumber  `json:"estimated_cost"`
	Reasoning     string      `json:"reasoning"`
	RiskFactors   []string    `json:"risk_factors"`
}

type rawRecommendations struct {
	Recommendations []rawRecommendation `json:"recommendations"`
}

// ExtractJSON returns the text between the first "{" and the last "}".
func ExtractJSON(text string) (string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return "", ErrNoJSON
	}
	return text[start : end+1], nil
}

// ParseRecommendations decodes the synthesis response. Entries for symbols
// outside candidates, or without a positive quantity, are dropped; each
// kept entry carries the candidate's score. A limit order without a price
// is priced at the candidate's mid, or dropped when there is none.
func ParseRecommendations(text string, candidates []models.Score) ([]models.Recommendation, error) {
	body, err := ExtractJSON(text)
	if err != nil {
		return nil, err
	}

	var raw rawRecommendations
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, fmt.Errorf("decode recommendations: %w", err)
	}

	scores := make(map[string]models.Score, len(candidates))
	for _, s := range candidates {
		scores[s.Symbol] = s
	}

	recs := make([]models.Recommendation, 0, len(raw.Recommendations))
	for _, r := range raw.Recommendations {
		score, ok := scores[r.Symbol]
		if !ok {
			continue
		}
		quantity := int(r.Quantity)
		if quantity <= 0 {
			continue
		}

		rec := models.Recommendation{
			Symbol:        r.Symbol,
			Action:        r.Action,
			Quantity:      quantity,
			OrderType:     r.OrderType,
			EstimatedCost: float64(r.EstimatedCost),
			Reasoning:     r.Reasoning,
			RiskFactors:   r.RiskFactors,
			Score:         score,
		}
		if rec.Action == "" {
			rec.Action = "buy"
		}
		if rec.OrderType == "" {
			rec.OrderType = models.OrderTypeLimit
		}
		if rec.RiskFactors == nil {
			rec.RiskFactors = []string{}
		}
		if r.LimitPrice != nil && *r.LimitPrice > 0 {
			p := float64(*r.LimitPrice)
			rec.LimitPrice = &p
		}
		if rec.OrderType == models.OrderTypeLimit && rec.LimitPrice == nil {
			mid := score.Metrics.CurrentPrice
			if mid <= 0 {
				continue
			}
			p := math.Round(mid*100) / 100
			rec.LimitPrice = &p
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

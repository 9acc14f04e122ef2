package agent

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/dyike/clarence/internal/dataflows"
	"github.com/dyike/clarence/internal/llm"
)

const (
	toolNews            = "get_news"
	toolMetricsSnapshot = "get_financial_metrics_snapshot"
	toolMetricsHistory  = "get_financial_metrics"
)

// Research serves the local research tools.
type Research interface {
	GetNews(ctx context.Context, ticker string, limit int) ([]dataflows.NewsArticle, error)
	GetFinancialMetricsSnapshot(ctx context.Context, ticker string) (dataflows.FinancialMetrics, error)
	GetFinancialMetrics(ctx context.Context, ticker, period string, limit int) ([]dataflows.FinancialMetrics, error)
}

var tickerProperty = map[string]any{"type": "string", "description": "Stock ticker symbol"}

// LocalTools are offered to the model next to the brokerage tools.
var LocalTools = []llm.ToolSpec{
	{
		Name:        toolNews,
		Description: "Retrieve recent news articles for a stock ticker.",
		Properties: map[string]any{
			"ticker": tickerProperty,
			"limit":  map[string]any{"type": "integer", "description": "Number of articles (default 5)"},
		},
		Required: []string{"ticker"},
	},
	{
		Name:        toolMetricsSnapshot,
		Description: "Fetch current financial metrics snapshot for a company (P/E, market cap, etc).",
		Properties: map[string]any{
			"ticker": tickerProperty,
		},
		Required: []string{"ticker"},
	},
	{
		Name:        toolMetricsHistory,
		Description: "Retrieve historical financial metrics for a company.",
		Properties: map[string]any{
			"ticker": tickerProperty,
			"period": map[string]any{"type": "string", "description": "Period: annual, quarterly, or ttm"},
			"limit":  map[string]any{"type": "integer", "description": "Number of records"},
		},
		Required: []string{"ticker"},
	},
}

// IsLocalTool reports whether name is served by Research rather than the
// brokerage.
func IsLocalTool(name string) bool {
	switch name {
	case toolNews, toolMetricsSnapshot, toolMetricsHistory:
		return true
	}
	return false
}

// callLocal runs a research tool and returns its JSON result. Failures are
// reported to the model as {"error": "..."}.
func callLocal(ctx context.Context, r Research, name string, args map[string]any) (string, bool) {
	ticker := strings.ToUpper(stringArg(args, "ticker", ""))

	var (
		result any
		err    error
	)
	switch name {
	case toolNews:
		result, err = r.GetNews(ctx, ticker, intArg(args, "limit", 5))
	case toolMetricsSnapshot:
		result, err = r.GetFinancialMetricsSnapshot(ctx, ticker)
	case toolMetricsHistory:
		result, err = r.GetFinancialMetrics(ctx, ticker, stringArg(args, "period", "ttm"), intArg(args, "limit", 4))
	}
	if err != nil {
		return errorJSON(err.Error()), true
	}

	b, err := json.Marshal(result)
	if err != nil {
		return errorJSON(err.Error()), true
	}
	return string(b), false
}

func errorJSON(msg string) string {
	b, _ := json.Marshal(map[string]string{"error": msg})
	return string(b)
}

func stringArg(args map[string]any, key, def string) string {
	if v, ok := args[key].(string); ok && v != "" {
		return v
	}
	return def
}

// intArg accepts JSON numbers and numeric strings.
func intArg(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

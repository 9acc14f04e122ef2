package agent

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/clarence/internal/broker"
	"github.com/dyike/clarence/internal/dataflows"
	"github.com/dyike/clarence/internal/llm"
	"github.com/dyike/clarence/internal/models"
	"github.com/dyike/clarence/internal/risk"
	"github.com/dyike/clarence/internal/scanner"
)

type scriptedLLM struct {
	responses []*llm.Response
	// fallback is returned once responses run out.
	fallback func(n int) *llm.Response
	requests []llm.Request
}

func (s *scriptedLLM) Chat(_ context.Context, req llm.Request) (*llm.Response, error) {
	req.Messages = append([]llm.Message(nil), req.Messages...)
	s.requests = append(s.requests, req)
	n := len(s.requests)
	if n <= len(s.responses) {
		return s.responses[n-1], nil
	}
	if s.fallback != nil {
		return s.fallback(n), nil
	}
	return nil, errors.New("no scripted response")
}

func (s *scriptedLLM) Stream(ctx context.Context, req llm.Request, onDelta func(string)) (string, error) {
	resp, err := s.Chat(ctx, req)
	if err != nil {
		return "", err
	}
	onDelta(resp.Text())
	return resp.Text(), nil
}

func text(t string) *llm.Response {
	return &llm.Response{Content: []llm.Block{llm.TextBlock{Text: t}}, StopReason: llm.StopEndTurn}
}

func toolUse(id, name string, input map[string]any) *llm.Response {
	return &llm.Response{
		Content:    []llm.Block{llm.ToolUseBlock{ID: id, Name: name, Input: input}},
		StopReason: llm.StopToolUse,
	}
}

type fakeBrokerage struct {
	tools   []llm.ToolSpec
	results map[string]string
	errs    map[string]error
	calls   []string
}

func (f *fakeBrokerage) ListTools(context.Context) ([]llm.ToolSpec, error) {
	return f.tools, nil
}

func (f *fakeBrokerage) CallTool(_ context.Context, name string, _ map[string]any) (string, error) {
	f.calls = append(f.calls, name)
	return f.results[name], f.errs[name]
}

type fakeResearch struct {
	newsTicker string
	newsLimit  int
	period     string
	limit      int
	err        error
}

func (f *fakeResearch) GetNews(_ context.Context, ticker string, limit int) ([]dataflows.NewsArticle, error) {
	f.newsTicker, f.newsLimit = ticker, limit
	if f.err != nil {
		return nil, f.err
	}
	return []dataflows.NewsArticle{{Ticker: ticker, Title: "Earnings beat"}}, nil
}

func (f *fakeResearch) GetFinancialMetricsSnapshot(_ context.Context, ticker string) (dataflows.FinancialMetrics, error) {
	return dataflows.FinancialMetrics{"ticker": ticker, "price_to_earnings_ratio": 28.5}, nil
}

func (f *fakeResearch) GetFinancialMetrics(_ context.Context, ticker, period string, limit int) ([]dataflows.FinancialMetrics, error) {
	f.period, f.limit = period, limit
	return []dataflows.FinancialMetrics{{"ticker": ticker, "period": period}}, nil
}

func newAgent(l llm.Client, b Brokerage, r Research) *Agent {
	return New(Deps{
		LLM:      l,
		Broker:   b,
		Research: r,
		Now:      func() time.Time { return time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC) },
	}, risk.Medium)
}

func lastToolResult(t *testing.T, req llm.Request) llm.ToolResultBlock {
	t.Helper()
	msg := req.Messages[len(req.Messages)-1]
	require.Equal(t, llm.RoleUser, msg.Role)
	require.NotEmpty(t, msg.Content)
	res, ok := msg.Content[len(msg.Content)-1].(llm.ToolResultBlock)
	require.True(t, ok, "last block is a tool result")
	return res
}

func TestLoopDetector(t *testing.T) {
	tests := []struct {
		name  string
		calls []string
		want  []bool
	}{
		{"three identical", []string{"a", "a", "a"}, []bool{false, false, true}},
		{"broken by another call", []string{"a", "a", "b", "a"}, []bool{false, false, false, false}},
		{"window slides", []string{"b", "a", "a", "a"}, []bool{false, false, false, true}},
		{"stays looped", []string{"a", "a", "a", "a"}, []bool{false, false, true, true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d LoopDetector
			for i, c := range tt.calls {
				assert.Equal(t, tt.want[i], d.Observe("get_quote", map[string]any{"symbol": c}), "call %d", i)
			}
		})
	}
}

func TestSignatureIsCanonical(t *testing.T) {
	a := Signature("get_news", map[string]any{"ticker": "AAPL", "limit": 5})
	b := Signature("get_news", map[string]any{"limit": 5, "ticker": "AAPL"})
	assert.Equal(t, a, b)
	assert.Equal(t, `get_news:{"limit":5,"ticker":"AAPL"}`, a)
	assert.Equal(t, "get_account_info:{}", Signature("get_account_info", nil))
}

func TestRunAnswersWithoutTools(t *testing.T) {
	l := &scriptedLLM{responses: []*llm.Response{text("Markets are open.")}}
	b := &fakeBrokerage{tools: []llm.ToolSpec{{Name: "get_clock"}}}
	a := newAgent(l, b, &fakeResearch{})

	answer, err := a.Run(context.Background(), "is the market open?", nil)
	require.NoError(t, err)
	assert.Equal(t, "Markets are open.", answer)

	require.Len(t, l.requests, 1)
	req := l.requests[0]
	assert.Contains(t, req.System, "Friday, March 14, 2025")
	require.Len(t, req.Tools, 4)
	assert.Equal(t, "get_clock", req.Tools[0].Name)
	assert.Equal(t, "get_news", req.Tools[1].Name)
}

func TestRunRoutesLocalTools(t *testing.T) {
	l := &scriptedLLM{responses: []*llm.Response{
		toolUse("t1", "get_news", map[string]any{"ticker": "aapl", "limit": float64(3)}),
		toolUse("t2", "get_financial_metrics", map[string]any{"ticker": "AAPL"}),
		text("Apple beat earnings."),
	}}
	b := &fakeBrokerage{}
	r := &fakeResearch{}
	var observed []string
	a := newAgent(l, b, r)

	answer, err := a.Run(context.Background(), "news on apple", func(name string, _ map[string]any, _ string, blocked bool) {
		assert.False(t, blocked)
		observed = append(observed, name)
	})
	require.NoError(t, err)
	assert.Equal(t, "Apple beat earnings.", answer)
	assert.Empty(t, b.calls, "research tools never reach the brokerage")
	assert.Equal(t, []string{"get_news", "get_financial_metrics"}, observed)

	assert.Equal(t, "AAPL", r.newsTicker)
	assert.Equal(t, 3, r.newsLimit)
	assert.Equal(t, "ttm", r.period)
	assert.Equal(t, 4, r.limit)

	res := lastToolResult(t, l.requests[1])
	assert.Equal(t, "t1", res.ToolUseID)
	assert.False(t, res.IsError)
	assert.Contains(t, res.Content, "Earnings beat")

	// assistant turn precedes the tool results
	msgs := l.requests[1].Messages
	assert.Equal(t, llm.RoleAssistant, msgs[len(msgs)-2].Role)
}

func TestRunResearchErrorIsReportedToModel(t *testing.T) {
	l := &scriptedLLM{responses: []*llm.Response{
		toolUse("t1", "get_news", map[string]any{"ticker": "AAPL"}),
		text("No news available."),
	}}
	a := newAgent(l, &fakeBrokerage{}, &fakeResearch{err: errors.New("api down")})

	_, err := a.Run(context.Background(), "news", nil)
	require.NoError(t, err)
	res := lastToolResult(t, l.requests[1])
	assert.True(t, res.IsError)
	assert.JSONEq(t, `{"error": "api down"}`, res.Content)
}

func TestRunRoutesBrokerageTools(t *testing.T) {
	l := &scriptedLLM{responses: []*llm.Response{
		toolUse("t1", "get_account_info", map[string]any{}),
		toolUse("t2", "cancel_order_by_id", map[string]any{"order_id": "x"}),
		text("done"),
	}}
	b := &fakeBrokerage{
		results: map[string]string{
			"get_account_info":   "Buying Power: $1,000.00",
			"cancel_order_by_id": "Error: order not found",
		},
		errs: map[string]error{"cancel_order_by_id": broker.ErrToolFailed},
	}
	a := newAgent(l, b, &fakeResearch{})

	_, err := a.Run(context.Background(), "cancel my order", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"get_account_info", "cancel_order_by_id"}, b.calls)

	first := lastToolResult(t, l.requests[1])
	assert.Equal(t, "Buying Power: $1,000.00", first.Content)
	assert.False(t, first.IsError)

	second := lastToolResult(t, l.requests[2])
	assert.Equal(t, "Error: order not found", second.Content)
	assert.True(t, second.IsError)
}

func TestRunBlocksRepeatedCalls(t *testing.T) {
	same := map[string]any{"symbol": "AAPL"}
	l := &scriptedLLM{responses: []*llm.Response{
		toolUse("t1", "get_stock_quote", same),
		toolUse("t2", "get_stock_quote", same),
		toolUse("t3", "get_stock_quote", same),
		text("giving up"),
	}}
	b := &fakeBrokerage{results: map[string]string{"get_stock_quote": "AAPL 187.50"}}
	var blocked []bool
	a := newAgent(l, b, &fakeResearch{})

	answer, err := a.Run(context.Background(), "quote", func(_ string, _ map[string]any, _ string, isBlocked bool) {
		blocked = append(blocked, isBlocked)
	})
	require.NoError(t, err)
	assert.Equal(t, "giving up", answer)
	assert.Len(t, b.calls, 2, "the third identical call is not invoked")
	assert.Equal(t, []bool{false, false, true}, blocked)

	res := lastToolResult(t, l.requests[3])
	assert.Equal(t, "t3", res.ToolUseID)
	assert.Equal(t, "Error: Action loop detected. Please try a different approach.", res.Content)
}

func TestRunStopsAfterMaxSteps(t *testing.T) {
	l := &scriptedLLM{fallback: func(n int) *llm.Response {
		if n > maxSteps {
			return text("summary so far")
		}
		return toolUse(fmt.Sprintf("t%d", n), "get_stock_quote", map[string]any{"symbol": fmt.Sprintf("S%d", n)})
	}}
	b := &fakeBrokerage{}
	a := newAgent(l, b, &fakeResearch{})

	answer, err := a.Run(context.Background(), "loop forever", nil)
	require.NoError(t, err)
	assert.Equal(t, "summary so far", answer)
	assert.Len(t, b.calls, maxSteps)
	require.Len(t, l.requests, maxSteps+1)

	final := l.requests[maxSteps].Messages
	last := final[len(final)-1]
	require.Len(t, last.Content, 1)
	assert.Equal(t, llm.TextBlock{Text: "Maximum tool calls reached. Please summarize what you've found so far."}, last.Content[0])
}

func TestRunEndTurnWinsOverToolUse(t *testing.T) {
	resp := &llm.Response{
		Content: []llm.Block{
			llm.TextBlock{Text: "answer"},
			llm.ToolUseBlock{ID: "t1", Name: "get_clock"},
		},
		StopReason: llm.StopEndTurn,
	}
	l := &scriptedLLM{responses: []*llm.Response{resp}}
	b := &fakeBrokerage{}
	answer, err := newAgent(l, b, &fakeResearch{}).Run(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Equal(t, "answer", answer)
	assert.Empty(t, b.calls)
}

func TestIntArg(t *testing.T) {
	tests := []struct {
		name string
		v    any
		want int
	}{
		{"float", float64(7), 7},
		{"int", 3, 3},
		{"string", " 9 ", 9},
		{"garbage", "many", 5},
		{"missing", nil, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := map[string]any{}
			if tt.v != nil {
				args["limit"] = tt.v
			}
			assert.Equal(t, tt.want, intArg(args, "limit", 5))
		})
	}
}

type noScreener struct{}

func (noScreener) MostActive(context.Context, int) ([]models.ActiveStock, error) { return nil, nil }
func (noScreener) TopMovers(context.Context, int) ([]models.Mover, error)        { return nil, nil }

type unusedMarket struct{}

func (unusedMarket) LatestQuote(context.Context, string) (models.Quote, error) {
	return models.Quote{}, dataflows.ErrDataUnavailable
}

func (unusedMarket) RecentBars(context.Context, string, int) ([]models.Bar, error) {
	return nil, dataflows.ErrDataUnavailable
}

func TestScanWithoutCandidates(t *testing.T) {
	b := &fakeBrokerage{results: map[string]string{
		"get_account_info":  `{"buying_power": "5000"}`,
		"get_all_positions": "[]",
	}}
	a := New(Deps{
		Scan: scanner.Deps{
			Broker:     b,
			MarketData: unusedMarket{},
			Screener:   noScreener{},
			Reasoner:   llm.Completer{Client: &scriptedLLM{}},
		},
	}, risk.High)

	report, err := a.Scan(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 5000.0, report.Result.BuyingPower)
	assert.Equal(t, "No candidates found.", report.Result.Diagnostic)
	assert.Empty(t, report.Orders)

	a.SetRiskLevel(risk.Low)
	assert.Equal(t, risk.Low, a.RiskLevel())
}

// Package scanner runs the day trading scan: account and positions,
// candidate discovery, metrics and scoring, risk filtering, recommendation
// synthesis, and the approval and execution loop.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dyike/clarence/internal/broker"
	"github.com/dyike/clarence/internal/dataflows"
	"github.com/dyike/clarence/internal/logger"
	"github.com/dyike/clarence/internal/models"
	"github.com/dyike/clarence/internal/prompts"
	"github.com/dyike/clarence/internal/risk"
	"github.com/dyike/clarence/internal/scoring"
	"github.com/dyike/clarence/internal/telemetry"
)

const (
	screenerTop   = 20
	maxCandidates = 15
	synthesisTop  = 8
	rawExcerpt    = 500
	warnExcerpt   = 160
)

// Reasoner completes one prompt under a system instruction.
type Reasoner interface {
	Complete(ctx context.Context, prompt, system string) (string, error)
}

type Deps struct {
	Broker     broker.ToolCaller
	MarketData dataflows.MarketData
	Screener   dataflows.Screener
	Reasoner   Reasoner
	Logger     *logger.Logger
}

// Scanner runs one scan at a time; callers serialize scans.
type Scanner struct {
	broker   broker.ToolCaller
	data     dataflows.MarketData
	screener dataflows.Screener
	reasoner Reasoner
	level    risk.Level
	log      *logger.Logger
}

func New(d Deps, level risk.Level) *Scanner {
	log := d.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Scanner{
		broker:   d.Broker,
		data:     d.MarketData,
		screener: d.Screener,
		reasoner: d.Reasoner,
		level:    level,
		log:      log,
	}
}

func (s *Scanner) Level() risk.Level { return s.level }

// Result is everything one scan produced. Diagnostic explains an empty
// Recommendations list.
type Result struct {
	BuyingPower     float64
	Positions       []models.Position
	Candidates      []string
	Scored          []models.Score
	Filtered        []models.Score
	Recommendations []models.Recommendation
	Diagnostic      string
	Outcome         string
}

// Scan runs one scan up to and including recommendation synthesis. It
// returns an error only when ctx is cancelled or the brokerage or reasoning
// collaborator cannot be reached at all.
func (s *Scanner) Scan(ctx context.Context) (*Result, error) {
	res, err := s.scan(ctx)
	if err != nil {
		telemetry.ScansTotal.WithLabelValues(telemetry.ScanAborted).Inc()
		return nil, err
	}
	telemetry.ScansTotal.WithLabelValues(res.Outcome).Inc()
	return res, nil
}

func (s *Scanner) scan(ctx context.Context) (*Result, error) {
	params := s.level.Params()
	res := &Result{}

	// Account
	accountText, err := s.broker.CallTool(ctx, "get_account_info", map[string]any{})
	if err != nil && !errors.Is(err, broker.ErrToolFailed) {
		return nil, fmt.Errorf("fetch account: %w", err)
	}
	account := ParseAccount(accountText)
	if msg, ok := account.Error(); ok {
		s.log.Warnf("Account error: %s", msg)
	}
	s.log.WithField("fields", strings.Join(sortedKeys(account.Fields), ",")).Debug("account fetched")
	res.BuyingPower = account.BuyingPower()
	s.log.Infof("Buying power: $%s", prompts.FormatMoney(res.BuyingPower))

	// Positions
	positionsText, err := s.broker.CallTool(ctx, "get_all_positions", map[string]any{})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		s.log.WithError(err).Warn("positions unavailable, assuming none")
		positionsText = ""
	}
	res.Positions = ParsePositions(positionsText)
	held := HeldSymbols(res.Positions)
	summary := PositionsSummary(res.Positions)

	// Discovery
	actives, movers := s.discover(ctx)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res.Candidates = Candidates(actives, movers, held)
	s.log.Infof("Found %d candidate symbols", len(res.Candidates))
	if len(res.Candidates) == 0 {
		res.Diagnostic = "No candidates found."
		res.Outcome = telemetry.ScanNoCandidates
		s.log.Info(res.Diagnostic)
		return res, nil
	}

	// Metrics and scores
	res.Scored, err = s.scoreCandidates(ctx, res.Candidates)
	if err != nil {
		return nil, err
	}

	// Risk filter
	res.Filtered = risk.Filter(res.Scored, params)
	s.log.Infof("%d candidates passed risk filter (min score: %d)", len(res.Filtered), params.MinScore)
	if len(res.Filtered) == 0 {
		res.Diagnostic = NearMiss(res.Scored, params)
		res.Outcome = telemetry.ScanFilteredOut
		s.log.Info(res.Diagnostic)
		return res, nil
	}

	// Synthesis
	top := res.Filtered
	if len(top) > synthesisTop {
		top = top[:synthesisTop]
	}
	lines := make([]string, 0, len(top))
	for _, sc := range top {
		lines = append(lines, scoring.Summary(sc))
	}
	prompt, err := prompts.Scanning(ctx, prompts.ScanInput{
		RiskLevel:        s.level.String(),
		BuyingPower:      res.BuyingPower,
		StopLossPct:      params.StopLossPct,
		PositionSizeMin:  params.PositionSizeMinPct,
		PositionSizeMax:  params.PositionSizeMaxPct,
		PositionsSummary: summary,
		Candidates:       lines,
	})
	if err != nil {
		return nil, err
	}

	text, err := s.reasoner.Complete(ctx, prompt, prompts.ScanSystem)
	if err != nil {
		return nil, fmt.Errorf("generate recommendations: %w", err)
	}

	recs, err := ParseRecommendations(text, res.Filtered)
	if err != nil {
		s.log.WithError(err).WithField("response", excerpt(text, warnExcerpt)).Warn("failed to parse recommendations")
		s.log.Debugf("Raw LLM response: %s", excerpt(text, rawExcerpt))
		res.Diagnostic = "Failed to parse recommendations."
		res.Outcome = telemetry.ScanSynthesisFailed
		return res, nil
	}
	res.Recommendations = recs
	res.Outcome = telemetry.ScanRecommended
	if len(recs) == 0 {
		res.Diagnostic = "No opportunities found matching your risk profile."
	}
	return res, nil
}

// discover queries both screeners. A failed screener contributes nothing.
func (s *Scanner) discover(ctx context.Context) ([]models.ActiveStock, []models.Mover) {
	actives, err := s.screener.MostActive(ctx, screenerTop)
	if err != nil {
		s.log.WithError(err).Warn("Screener (actives) error")
	}
	for _, a := range actives {
		if a.Error != "" {
			s.log.WithField("error", a.Error).Warn("Screener (actives) error")
		}
	}

	movers, err := s.screener.TopMovers(ctx, screenerTop)
	if err != nil {
		s.log.WithError(err).Warn("Screener (movers) error")
	}
	for _, m := range movers {
		if m.Error != "" {
			s.log.WithField("error", m.Error).Warn("Screener (movers) error")
		}
	}
	return actives, movers
}

// scoreCandidates scores up to maxCandidates symbols in discovery order and
// returns them sorted by total score, best first. Ties keep discovery order.
func (s *Scanner) scoreCandidates(ctx context.Context, candidates []string) ([]models.Score, error) {
	if len(candidates) > maxCandidates {
		candidates = candidates[:maxCandidates]
	}

	scores := make([]models.Score, 0, len(candidates))
	for i, symbol := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m, err := AssembleMetrics(ctx, s.data, symbol)
		if dataflows.IsOpen(err) {
			rest := len(candidates) - i
			telemetry.SymbolsDropped.Add(float64(rest))
			s.log.Warnf("  ! market data circuit open, skipping %d remaining symbols", rest)
			break
		}
		if err != nil {
			telemetry.SymbolsDropped.Inc()
			s.log.Warnf("  ! %s: metrics fetch failed (%v)", symbol, err)
			continue
		}
		scores = append(scores, scoring.Calculate(m))
		telemetry.SymbolsScored.Inc()
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].TotalScore > scores[j].TotalScore
	})

	s.log.Infof("Scored %d symbols:", len(scores))
	for _, sc := range scores {
		m := sc.Metrics
		s.log.Infof("  %s: score=%d | spread=%.3f%% | vol=%s | vol_ratio=%.1fx | volatility=%.1f%%",
			sc.Symbol, sc.TotalScore, m.SpreadPercent, prompts.FormatCount(m.Volume), m.VolumeRatio, m.Volatility)
	}
	return scores, nil
}

// NearMiss explains an empty filter result using the best scored candidate.
func NearMiss(scored []models.Score, p risk.Params) string {
	if len(scored) == 0 {
		return "No candidates passed risk filters."
	}
	best := scored[0]

	var reasons []string
	for _, v := range p.Violations(best) {
		switch v.Kind {
		case "score":
			reasons = append(reasons, fmt.Sprintf("score %d < min %d", best.TotalScore, p.MinScore))
		case "spread":
			reasons = append(reasons, fmt.Sprintf("spread %.3f%% > max %s%%",
				best.Metrics.SpreadPercent, strconv.FormatFloat(p.MaxSpreadPct, 'f', -1, 64)))
		case "volume":
			reasons = append(reasons, fmt.Sprintf("volume %s < min %s",
				prompts.FormatCount(best.Metrics.Volume), prompts.FormatCount(p.MinVolume)))
		}
	}
	why := "unknown reason"
	if len(reasons) > 0 {
		why = strings.Join(reasons, ", ")
	}
	return fmt.Sprintf("No candidates passed risk filters. Best was %s (%s).", best.Symbol, why)
}

func excerpt(text string, n int) string {
	if len(text) <= n {
		return text
	}
	return text[:n]
}

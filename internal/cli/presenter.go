package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/dyike/clarence/internal/llm"
	"github.com/dyike/clarence/internal/logger"
	"github.com/dyike/clarence/internal/models"
	"github.com/dyike/clarence/internal/prompts"
	"github.com/dyike/clarence/internal/risk"
	"github.com/dyike/clarence/internal/scoring"
)

// Presenter shows one recommendation: the score breakdown, the suggested
// stop and size for the risk level, then the model's presentation streamed
// as it arrives.
type Presenter struct {
	llm    llm.Client
	params risk.Params
	out    io.Writer
	log    *logger.Logger
}

func NewPresenter(c llm.Client, level risk.Level, out io.Writer, log *logger.Logger) *Presenter {
	if log == nil {
		log = logger.Nop()
	}
	return &Presenter{llm: c, params: level.Params(), out: out, log: log}
}

func (p *Presenter) Present(ctx context.Context, rec models.Recommendation, buyingPower float64) {
	fmt.Fprintln(p.out)
	fmt.Fprintln(p.out, headerStyle.Render("╭─ Opportunity: "+rec.Symbol))
	fmt.Fprintln(p.out, scoring.FormatBreakdown(rec.Score))

	entry := rec.Price()
	if entry <= 0 {
		entry = rec.Score.Metrics.CurrentPrice
	}
	if entry > 0 {
		stop := risk.StopLoss(entry, p.params)
		shares := risk.PositionSize(buyingPower, p.params, entry)
		fmt.Fprintf(p.out, "Suggested stop-loss: $%s (%s%% below $%s)\n",
			prompts.FormatMoney(stop), prompts.FormatPercent(p.params.StopLossPct), prompts.FormatMoney(entry))
		fmt.Fprintf(p.out, "Suggested position size: %d shares (%s%% of buying power)\n",
			shares, prompts.FormatPercent(p.params.PositionSizeMidPct()))
	}
	fmt.Fprintln(p.out)

	if err := p.stream(ctx, rec); err != nil {
		p.log.WithField("symbol", rec.Symbol).WithError(err).Warn("presentation failed, showing summary")
		fmt.Fprintln(p.out, renderOpportunity(rec, p.params, buyingPower))
	}
}

func (p *Presenter) stream(ctx context.Context, rec models.Recommendation) error {
	if p.llm == nil {
		return fmt.Errorf("no model configured")
	}
	body, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	prompt, err := prompts.Opportunity(ctx, string(body))
	if err != nil {
		return err
	}

	wrote := false
	_, err = p.llm.Stream(ctx, llm.Request{
		System:   prompts.OpportunitySystem,
		Messages: []llm.Message{llm.UserText(prompt)},
	}, func(delta string) {
		wrote = true
		fmt.Fprint(p.out, delta)
	})
	if wrote {
		fmt.Fprintln(p.out)
	}
	if err != nil && wrote {
		// Part of the presentation is already on screen.
		p.log.WithError(err).Warn("presentation stream interrupted")
		return nil
	}
	return err
}

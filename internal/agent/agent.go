// Package agent answers free-form questions with a tool-using model loop
// and drives the scan, approval and execution flow.
package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dyike/clarence/internal/broker"
	"github.com/dyike/clarence/internal/llm"
	"github.com/dyike/clarence/internal/logger"
	"github.com/dyike/clarence/internal/models"
	"github.com/dyike/clarence/internal/prompts"
	"github.com/dyike/clarence/internal/risk"
	"github.com/dyike/clarence/internal/scanner"
	"github.com/dyike/clarence/internal/telemetry"
)

const (
	maxSteps = 10

	loopDetectedResult = "Error: Action loop detected. Please try a different approach."
	maxStepsPrompt     = "Maximum tool calls reached. Please summarize what you've found so far."
)

// Brokerage lists and calls the brokerage tools.
type Brokerage interface {
	broker.ToolCaller
	ListTools(ctx context.Context) ([]llm.ToolSpec, error)
}

// ToolObserver is told about every tool call the model makes. blocked is
// true when the loop detector answered instead of the tool.
type ToolObserver func(name string, args map[string]any, result string, blocked bool)

type Deps struct {
	LLM      llm.Client
	Broker   Brokerage
	Research Research
	Scan     scanner.Deps
	Logger   *logger.Logger
	Now      func() time.Time
}

type Agent struct {
	llm      llm.Client
	broker   Brokerage
	research Research
	scanDeps scanner.Deps
	log      *logger.Logger
	now      func() time.Time

	mu    sync.Mutex
	level risk.Level
}

func New(d Deps, level risk.Level) *Agent {
	log := d.Logger
	if log == nil {
		log = logger.Nop()
	}
	now := d.Now
	if now == nil {
		now = time.Now
	}
	scanDeps := d.Scan
	if scanDeps.Logger == nil {
		scanDeps.Logger = log
	}
	return &Agent{
		llm:      d.LLM,
		broker:   d.Broker,
		research: d.Research,
		scanDeps: scanDeps,
		log:      log,
		now:      now,
		level:    level,
	}
}

func (a *Agent) RiskLevel() risk.Level {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.level
}

// SetRiskLevel applies to the next scan.
func (a *Agent) SetRiskLevel(level risk.Level) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.level = level
}

// Run answers query, letting the model call brokerage and research tools
// for at most ten steps. It returns the model's final text.
func (a *Agent) Run(ctx context.Context, query string, observe ToolObserver) (string, error) {
	system, err := prompts.System(ctx, a.now())
	if err != nil {
		return "", err
	}

	tools, err := a.tools(ctx)
	if err != nil {
		return "", err
	}

	messages := []llm.Message{llm.UserText(query)}
	var loops LoopDetector

	for step := 0; step < maxSteps; step++ {
		resp, err := a.llm.Chat(ctx, llm.Request{System: system, Messages: messages, Tools: tools})
		if err != nil {
			return "", fmt.Errorf("model call failed: %w", err)
		}

		uses := resp.ToolUses()
		if resp.StopReason == llm.StopEndTurn || len(uses) == 0 {
			return resp.Text(), nil
		}

		messages = append(messages, resp.AssistantMessage())

		results := make([]llm.Block, 0, len(uses))
		for _, use := range uses {
			if loops.Observe(use.Name, use.Input) {
				a.log.WithField("tool", use.Name).Warn("repeating action loop detected")
				telemetry.ToolCallsTotal.WithLabelValues("blocked").Inc()
				if observe != nil {
					observe(use.Name, use.Input, loopDetectedResult, true)
				}
				results = append(results, llm.ToolResultBlock{ToolUseID: use.ID, Content: loopDetectedResult, IsError: true})
				continue
			}

			text, isErr, err := a.callTool(ctx, use.Name, use.Input)
			if err != nil {
				return "", err
			}
			if observe != nil {
				observe(use.Name, use.Input, text, false)
			}
			results = append(results, llm.ToolResultBlock{ToolUseID: use.ID, Content: text, IsError: isErr})
		}
		messages = append(messages, llm.Message{Role: llm.RoleUser, Content: results})
	}

	a.log.Info("maximum tool steps reached, asking for a summary")
	messages = append(messages, llm.UserText(maxStepsPrompt))
	resp, err := a.llm.Chat(ctx, llm.Request{System: system, Messages: messages, Tools: tools})
	if err != nil {
		return "", fmt.Errorf("model call failed: %w", err)
	}
	return resp.Text(), nil
}

// tools lists the brokerage tools followed by the local research tools. A
// brokerage listing failure leaves only the local tools.
func (a *Agent) tools(ctx context.Context) ([]llm.ToolSpec, error) {
	var tools []llm.ToolSpec
	if a.broker != nil {
		listed, err := a.broker.ListTools(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			a.log.WithError(err).Warn("brokerage tools unavailable")
		}
		tools = append(tools, listed...)
	}
	if a.research != nil {
		tools = append(tools, LocalTools...)
	}
	return tools, nil
}

// callTool routes one call. Tool failures become error results for the
// model; only cancellation is returned as an error.
func (a *Agent) callTool(ctx context.Context, name string, args map[string]any) (string, bool, error) {
	if IsLocalTool(name) && a.research != nil {
		telemetry.ToolCallsTotal.WithLabelValues("local").Inc()
		text, isErr := callLocal(ctx, a.research, name, args)
		return text, isErr, ctx.Err()
	}

	telemetry.ToolCallsTotal.WithLabelValues("broker").Inc()
	if a.broker == nil {
		return errorJSON("brokerage not configured"), true, nil
	}
	text, err := a.broker.CallTool(ctx, name, args)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", true, ctxErr
		}
		a.log.WithField("tool", name).WithError(err).Debug("tool call failed")
		if text == "" {
			text = errorJSON(err.Error())
		}
		return text, true, nil
	}
	return text, false, nil
}

// ScanReport is the outcome of one scan and its review.
type ScanReport struct {
	Result *scanner.Result
	Orders []models.OrderResult
}

// Scan runs a scan at the current risk level, then presents each
// recommendation for approval and executes the approved ones.
func (a *Agent) Scan(ctx context.Context, p scanner.Presenter, ap scanner.Approver) (*ScanReport, error) {
	sc := scanner.New(a.scanDeps, a.RiskLevel())

	res, err := sc.Scan(ctx)
	if err != nil {
		return nil, err
	}
	report := &ScanReport{Result: res}
	if len(res.Recommendations) == 0 {
		return report, nil
	}

	a.log.Infof("Found %d opportunities", len(res.Recommendations))
	report.Orders, err = sc.Review(ctx, res, p, ap)
	return report, err
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/dyike/clarence/config"
	"github.com/dyike/clarence/internal/agent"
	"github.com/dyike/clarence/internal/broker"
	"github.com/dyike/clarence/internal/llm"
	"github.com/dyike/clarence/internal/logger"
	"github.com/dyike/clarence/internal/risk"
	"github.com/dyike/clarence/internal/scanner"
)

// Assistant is what the session drives: Q&A, scans and the risk level.
type Assistant interface {
	Run(ctx context.Context, query string, observe agent.ToolObserver) (string, error)
	Scan(ctx context.Context, p scanner.Presenter, a scanner.Approver) (*agent.ScanReport, error)
	RiskLevel() risk.Level
	SetRiskLevel(risk.Level)
}

// Session is the interactive REPL and the shared command handlers.
type Session struct {
	cfg       *config.Config
	assistant Assistant
	broker    broker.ToolCaller
	llm       llm.Client
	profiles  *config.Manager
	profile   *config.Profile
	asker     Asker
	out       io.Writer
	log       *logger.Logger
	health    func() *Health
}

type SessionDeps struct {
	Config    *config.Config
	Assistant Assistant
	Broker    broker.ToolCaller
	LLM       llm.Client
	Profiles  *config.Manager
	Profile   *config.Profile
	Asker     Asker
	Out       io.Writer
	Logger    *logger.Logger
	Health    func() *Health
}

func NewSession(d SessionDeps) *Session {
	s := &Session{
		cfg:       d.Config,
		assistant: d.Assistant,
		broker:    d.Broker,
		llm:       d.LLM,
		profiles:  d.Profiles,
		profile:   d.Profile,
		asker:     d.Asker,
		out:       d.Out,
		log:       d.Logger,
		health:    d.Health,
	}
	if s.asker == nil {
		s.asker = surveyAsker{}
	}
	if s.out == nil {
		s.out = os.Stdout
	}
	if s.log == nil {
		s.log = logger.Nop()
	}
	return s
}

// Loop reads commands until exit, EOF or an interrupt at the prompt. An
// interrupt while a command runs cancels only that command.
func (s *Session) Loop(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)

	for {
		line, err := s.asker.Input(">>", "")
		if err != nil {
			if isInterrupt(err) {
				return nil
			}
			return err
		}

		select {
		case <-sigCh:
		default:
		}

		cmdCtx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			select {
			case <-sigCh:
				cancel()
			case <-done:
			}
		}()
		exit := s.Handle(cmdCtx, line)
		close(done)
		cancel()

		if exit || ctx.Err() != nil {
			return nil
		}
	}
}

// Handle runs one REPL line and reports whether the session should end.
func (s *Session) Handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}

	switch strings.ToLower(line) {
	case "exit", "quit":
		return true
	case "help", "/help":
		fmt.Fprintln(s.out, helpText())
	case "status", "/status":
		var h *Health
		if s.health != nil {
			h = s.health()
		}
		fmt.Fprintln(s.out, statusText(s.cfg, h))
	case "scan", "/scan":
		s.Scan(ctx)
	case "risk", "/risk":
		s.ChangeRisk()
	case "positions", "/positions":
		s.Positions(ctx)
	default:
		s.Ask(ctx, line)
	}
	return false
}

// Scan runs one scan with interactive approval.
func (s *Session) Scan(ctx context.Context) {
	level := s.assistant.RiskLevel()
	fmt.Fprintf(s.out, "\nScanning for opportunities (risk level: %s)...\n", level)

	presenter := NewPresenter(s.llm, level, s.out, s.log)
	report, err := s.assistant.Scan(ctx, presenter, NewApprover(s.asker, s.out))
	if report != nil {
		for _, o := range report.Orders {
			fmt.Fprintln(s.out, renderOrderResult(o))
		}
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(s.out, "\nScan cancelled.")
			return
		}
		fmt.Fprintln(s.out, errorStyle.Render("Scan failed: ")+err.Error())
		return
	}

	res := report.Result
	if len(res.Recommendations) == 0 {
		msg := res.Diagnostic
		if msg == "" {
			msg = "No opportunities found matching your risk profile."
		}
		fmt.Fprintln(s.out, msg)
		return
	}
	fmt.Fprintf(s.out, "\nReviewed %d opportunities, placed %d orders.\n", len(res.Recommendations), len(report.Orders))
}

// Ask runs one free-form query through the tool loop.
func (s *Session) Ask(ctx context.Context, query string) {
	fmt.Fprintln(s.out, renderUserQuery(query))

	answer, err := s.assistant.Run(ctx, query, func(name string, args map[string]any, result string, blocked bool) {
		fmt.Fprintln(s.out, renderToolCall(name, args, result, blocked))
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(s.out, "\nCancelled. Ask a new question or Ctrl+C to quit.")
			return
		}
		fmt.Fprintln(s.out, errorStyle.Render("Error: ")+err.Error())
		return
	}
	if answer != "" {
		fmt.Fprintln(s.out, renderAnswer(answer))
	}
}

// Positions prints the brokerage's positions result as is.
func (s *Session) Positions(ctx context.Context) {
	result, err := s.broker.CallTool(ctx, "get_all_positions", map[string]any{})
	if err != nil && result == "" {
		fmt.Fprintf(s.out, "\nCould not fetch positions: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "\n%s\n", result)
}

// ChangeRisk asks for a new risk level and persists it.
func (s *Session) ChangeRisk() {
	current := s.assistant.RiskLevel()
	fmt.Fprintf(s.out, "\nCurrent risk level: %s\n", current)

	level, err := PromptForRisk(s.asker, current)
	if err != nil || level == current {
		fmt.Fprintf(s.out, "Keeping: %s\n", current)
		return
	}
	if err := s.setRisk(level); err != nil {
		fmt.Fprintln(s.out, errorStyle.Render("Could not save profile: ")+err.Error())
		return
	}
	fmt.Fprintf(s.out, "Risk level updated to: %s\n", level)
}

func (s *Session) setRisk(level risk.Level) error {
	s.assistant.SetRiskLevel(level)
	if s.profile == nil || s.profiles == nil {
		return nil
	}
	s.profile.RiskAppetite = level.String()
	return s.profiles.Save(s.profile)
}

// Close counts the session in the profile and says goodbye.
func (s *Session) Close() error {
	name := "trader"
	var err error
	if s.profile != nil {
		s.profile.SessionCount++
		if s.profiles != nil {
			err = s.profiles.Save(s.profile)
		}
		if s.profile.Name != "" {
			name = s.profile.Name
		}
	}
	fmt.Fprintf(s.out, "\nGoodbye, %s!\n", name)
	return err
}

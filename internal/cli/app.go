package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/dyike/clarence/config"
	"github.com/dyike/clarence/internal/agent"
	"github.com/dyike/clarence/internal/broker"
	"github.com/dyike/clarence/internal/cache"
	"github.com/dyike/clarence/internal/dataflows"
	"github.com/dyike/clarence/internal/llm"
	"github.com/dyike/clarence/internal/logger"
	"github.com/dyike/clarence/internal/risk"
	"github.com/dyike/clarence/internal/scanner"
	"github.com/dyike/clarence/internal/telemetry"
)

// App holds the wired collaborators for one process.
type App struct {
	cfg      *config.Config
	log      *logger.Logger
	profiles *config.Manager
	profile  config.Profile
	onboard  bool

	llm      llm.Client
	broker   *broker.MCPClient
	cache    *cache.Cache
	agent    *agent.Agent
	breakers []*dataflows.Breaker

	stopMetrics context.CancelFunc
}

// NewApp validates the configuration, loads the profile, builds the model
// and data clients and connects to the brokerage. A brokerage connection
// failure is reported and leaves trading features unavailable.
func NewApp(ctx context.Context, cfg *config.Config, out io.Writer) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	log := logger.New(cfg)
	a := &App{cfg: cfg, log: log}

	mgr, err := config.NewManager(config.WithProfileDir(cfg.ClarenceDir))
	if err != nil {
		return nil, err
	}
	profile, existed, err := mgr.LoadOrCreate()
	if err != nil {
		return nil, err
	}
	a.profiles, a.profile = mgr, profile
	a.onboard = !existed || !profile.Onboarded()

	if err := llm.InitDebug(ctx, cfg, log); err != nil {
		log.WithError(err).Warn("eino debug unavailable")
	}
	a.llm, err = llm.New(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create model client: %w", err)
	}
	if u, ok := a.llm.(llm.Unavailable); ok {
		fmt.Fprintln(out, warnStyle.Render("Warning: ")+u.Err.Error())
		fmt.Fprintln(out, "Scans and questions will fail until the key is set. Other commands still work.")
		fmt.Fprintln(out)
	}

	sources, err := dataflows.NewSources(cfg)
	if err != nil {
		return nil, err
	}
	a.cache, err = dataflows.NewFinancialDatasetsCache(cfg)
	if err != nil {
		return nil, err
	}
	research := dataflows.NewFinancialDatasetsClient(cfg, a.cache)
	a.breakers = append(sources.Breakers(), research.Breaker())

	a.broker = broker.NewMCPClient(cfg, log, Version)
	fmt.Fprintln(out, "Connecting to Alpaca MCP server...")
	if err := a.broker.Connect(ctx); err != nil {
		fmt.Fprintln(out, warnStyle.Render("Warning: Could not connect to Alpaca MCP server: ")+err.Error())
		fmt.Fprintf(out, "Trading features will be unavailable. Check that '%s alpaca-mcp-server' is installed.\n\n", cfg.MCPCommand)
	} else {
		fmt.Fprintln(out, "Connected to Alpaca MCP server.")
	}

	a.agent = agent.New(agent.Deps{
		LLM:      a.llm,
		Broker:   a.broker,
		Research: research,
		Scan: scanner.Deps{
			Broker:     a.broker,
			MarketData: sources.MarketData,
			Screener:   sources.Screener,
			Reasoner:   llm.Completer{Client: a.llm},
		},
		Logger: log,
	}, risk.ParseLevel(profile.RiskAppetite))

	if cfg.MetricsAddr != "" {
		mctx, cancel := context.WithCancel(context.Background())
		a.stopMetrics = cancel
		go func() {
			if err := telemetry.Serve(mctx, cfg.MetricsAddr, log); err != nil {
				log.WithError(err).Error("metrics server stopped")
			}
		}()
	}
	return a, nil
}

// Session builds the REPL session over the app's collaborators.
func (a *App) Session(asker Asker, out io.Writer) *Session {
	return NewSession(SessionDeps{
		Config:    a.cfg,
		Assistant: a.agent,
		Broker:    a.broker,
		LLM:       a.llm,
		Profiles:  a.profiles,
		Profile:   &a.profile,
		Asker:     asker,
		Out:       out,
		Logger:    a.log,
		Health:    a.Health,
	})
}

// Health reports the brokerage connection and circuit breaker states.
func (a *App) Health() *Health {
	return &Health{Broker: a.broker.Connected(), Breakers: a.breakers}
}

// NeedsOnboarding reports whether the profile has no name yet.
func (a *App) NeedsOnboarding() bool {
	return a.onboard
}

func (a *App) Onboard(asker Asker, out io.Writer) error {
	if err := Onboard(asker, a.profiles, &a.profile, out); err != nil {
		return err
	}
	a.onboard = false
	a.agent.SetRiskLevel(risk.ParseLevel(a.profile.RiskAppetite))
	return nil
}

func (a *App) Close() error {
	if a.stopMetrics != nil {
		a.stopMetrics()
	}
	a.cache.Close()
	if a.broker != nil {
		return a.broker.Close()
	}
	return nil
}

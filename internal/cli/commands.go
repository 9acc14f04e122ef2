package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dyike/clarence/config"
	"github.com/dyike/clarence/internal/risk"
)

const Version = "0.1.0"

// NewRootCmd creates the root command. Without a subcommand it starts the
// interactive session.
func NewRootCmd() *cobra.Command {
	cfg := config.DefaultConfig()
	out := io.Writer(os.Stdout)

	rootCmd := &cobra.Command{
		Use:   "clarence",
		Short: "Clarence - AI day trading assistant",
		Long: `Clarence scans the market for day trading opportunities, scores them against
your risk profile and places the trades you approve through your Alpaca account.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				cfg.Debug = true
				cfg.LogLevel = "debug"
			}
			if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
				cfg.MetricsAddr = addr
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractive(cmd.Context(), cfg, out)
		},
	}

	rootCmd.AddCommand(newScanCmd(cfg, out))
	rootCmd.AddCommand(newAskCmd(cfg, out))
	rootCmd.AddCommand(newPositionsCmd(cfg, out))
	rootCmd.AddCommand(newStatusCmd(cfg, out))
	rootCmd.AddCommand(newRiskCmd(cfg, out))
	rootCmd.AddCommand(newVersionCmd(out))

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("metrics-addr", "", "Serve prometheus metrics on this address (e.g. :9090)")

	return rootCmd
}

func runInteractive(ctx context.Context, cfg *config.Config, out io.Writer) error {
	app, err := NewApp(ctx, cfg, out)
	if err != nil {
		return err
	}
	defer app.Close()

	asker := surveyAsker{}
	if app.NeedsOnboarding() {
		if err := app.Onboard(asker, out); err != nil {
			if isInterrupt(err) {
				return nil
			}
			return err
		}
	}

	fmt.Fprintln(out, renderBanner(Version))
	fmt.Fprintln(out, statusText(cfg, app.Health()))

	session := app.Session(asker, out)
	loopErr := session.Loop(ctx)
	if err := session.Close(); err != nil {
		app.log.WithError(err).Warn("failed to save profile")
	}
	return loopErr
}

func newScanCmd(cfg *config.Config, out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Scan the market for day trading opportunities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), cfg, out, func(ctx context.Context, s *Session) {
				s.Scan(ctx)
			})
		},
	}
}

func newAskCmd(cfg *config.Config, out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "ask [QUESTION]",
		Short: "Ask a question about your account or the market",
		Long: `Ask a free-form question. The assistant can look up your account, positions,
quotes, news and company financials, and can place orders you ask for.
Example: clarence ask "What's my buying power?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return withSession(cmd.Context(), cfg, out, func(ctx context.Context, s *Session) {
				s.Ask(ctx, query)
			})
		},
	}
}

func newPositionsCmd(cfg *config.Config, out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "positions",
		Short: "Show current positions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), cfg, out, func(ctx context.Context, s *Session) {
				s.Positions(ctx)
			})
		},
	}
}

// withSession runs one command against a connected app, cancelling it on
// interrupt.
func withSession(ctx context.Context, cfg *config.Config, out io.Writer, fn func(context.Context, *Session)) error {
	ctx, stop := signalContext(ctx)
	defer stop()

	app, err := NewApp(ctx, cfg, out)
	if err != nil {
		return err
	}
	defer app.Close()

	fn(ctx, app.Session(surveyAsker{}, out))
	return nil
}

func newStatusCmd(cfg *config.Config, out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check API key configuration",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(out, statusText(cfg, nil))
		},
	}
}

func newRiskCmd(cfg *config.Config, out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:       "risk [low|medium|high]",
		Short:     "Show or set your risk level",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"low", "medium", "high"},
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := config.NewManager(config.WithProfileDir(cfg.ClarenceDir))
			if err != nil {
				return err
			}
			return runRisk(mgr, args, out)
		},
	}
}

func runRisk(mgr *config.Manager, args []string, out io.Writer) error {
	profile, _, err := mgr.LoadOrCreate()
	if err != nil {
		return err
	}
	current := risk.ParseLevel(profile.RiskAppetite)
	if len(args) == 0 {
		p := current.Params()
		fmt.Fprintf(out, "Risk level: %s\n", current.DisplayName())
		fmt.Fprintf(out, "  Min score %d, max spread %s%%, min volume %d, stop loss %s%%, position size %s-%s%%\n",
			p.MinScore, fmtFloat(p.MaxSpreadPct), p.MinVolume, fmtFloat(p.StopLossPct),
			fmtFloat(p.PositionSizeMinPct), fmtFloat(p.PositionSizeMaxPct))
		return nil
	}

	name := strings.ToLower(strings.TrimSpace(args[0]))
	switch name {
	case "low", "medium", "high":
	default:
		return fmt.Errorf("unknown risk level %q (use low, medium or high)", args[0])
	}
	level := risk.ParseLevel(name)
	profile.RiskAppetite = level.String()
	if err := mgr.Save(&profile); err != nil {
		return err
	}
	fmt.Fprintf(out, "Risk level updated to: %s\n", level)
	return nil
}

func newVersionCmd(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(out, "Clarence v%s\n", Version)
		},
	}
}

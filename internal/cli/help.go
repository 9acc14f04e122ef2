package cli

import (
	"fmt"
	"strings"

	"github.com/dyike/clarence/config"
	"github.com/dyike/clarence/internal/dataflows"
)

// Health is the live connection state shown under the key status.
type Health struct {
	Broker   bool
	Breakers []*dataflows.Breaker
}

func helpText() string {
	cmd := func(name, desc string) string {
		return fmt.Sprintf("  %-12s - %s\n", headerStyle.Render(name), desc)
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(strings.Repeat("=", 60)+"\n                     CLARENCE HELP MENU\n"+strings.Repeat("=", 60)) + "\n\n")

	b.WriteString(headerStyle.Render("COMMANDS:") + "\n")
	b.WriteString(cmd("/scan", "Scan market for day trading opportunities"))
	b.WriteString(cmd("/risk", "View or change your risk level"))
	b.WriteString(cmd("/positions", "Show current positions"))
	b.WriteString(cmd("/status", "Check API connection status"))
	b.WriteString(cmd("/help", "Show this menu"))
	b.WriteString(cmd("exit", "Exit Clarence"))

	b.WriteString("\n" + headerStyle.Render("HOW /scan WORKS:") + "\n")
	b.WriteString("  1. Checks your account and buying power\n")
	b.WriteString("  2. Scans market for active stocks and top movers\n")
	b.WriteString("  3. Scores candidates on volume, spread, volatility, momentum\n")
	b.WriteString("  4. Filters by your risk level\n")
	b.WriteString("  5. Presents recommendations with reasoning\n")
	b.WriteString("  6. You confirm (execute/skip/modify) before any trade executes\n")

	b.WriteString("\n" + headerStyle.Render("RISK LEVELS:") + "\n")
	b.WriteString("  Low    - Min score 70, tight spreads, high volume only\n")
	b.WriteString("  Medium - Min score 55, balanced filters\n")
	b.WriteString("  High   - Min score 40, wider stops, more volatile stocks\n")

	b.WriteString("\n" + headerStyle.Render("FREE-FORM QUERIES:") + "\n")
	b.WriteString("  Ask anything about your account, positions, or market data:\n")
	b.WriteString("  - \"What's my buying power?\"\n")
	b.WriteString("  - \"Get a quote for TSLA\"\n")
	b.WriteString("  - \"Show me AAPL news\"\n")
	b.WriteString("  - \"Place a limit order for 10 shares of NVDA at $140\"\n")

	b.WriteString("\n" + headerStyle.Render("TIPS:") + "\n")
	b.WriteString("  - Run /scan during market hours for best results\n")
	b.WriteString("  - Press Ctrl+C to cancel any operation\n")
	b.WriteString("  - Paper trading is ON by default (set ALPACA_PAPER_TRADE=False for live)\n")
	return b.String()
}

func configured(ok bool) string {
	if ok {
		return "Configured"
	}
	return "Not configured"
}

// statusText reports configured keys and, when h is set, live connections.
func statusText(cfg *config.Config, h *Health) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("API CONNECTION STATUS") + "\n\n")

	llmKey := cfg.AnthropicAPIKey
	llmName := "Anthropic"
	switch cfg.LLMProvider {
	case "openai":
		llmKey, llmName = cfg.OpenAIAPIKey, "OpenAI"
	case "deepseek":
		llmKey, llmName = cfg.DeepSeekAPIKey, "DeepSeek"
	}
	fmt.Fprintf(&b, "  %-20s %s\n", llmName+":", configured(llmKey != ""))

	if cfg.AlpacaAPIKey != "" && cfg.AlpacaSecretKey != "" {
		mode := "LIVE"
		if cfg.PaperTrading() {
			mode = "Paper"
		}
		fmt.Fprintf(&b, "  %-20s Configured (%s trading)\n", "Alpaca:", mode)
	} else {
		fmt.Fprintf(&b, "  %-20s %s\n", "Alpaca:", configured(false))
	}

	fmt.Fprintf(&b, "  %-20s %s\n", "Financial Datasets:", configured(cfg.FinancialDatasetsAPIKey != ""))
	fmt.Fprintf(&b, "  %-20s %s\n", "Market data:", cfg.MarketDataProvider)
	if h == nil {
		return b.String()
	}

	b.WriteString("\n")
	mcp := "Not connected"
	if h.Broker {
		mcp = "Connected"
	}
	fmt.Fprintf(&b, "  %-20s %s\n", "Alpaca MCP server:", mcp)
	for _, br := range h.Breakers {
		fmt.Fprintf(&b, "  %-20s circuit %s\n", br.Name()+":", br.State())
	}
	return b.String()
}

package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dyike/clarence/internal/models"
	"github.com/dyike/clarence/internal/prompts"
	"github.com/dyike/clarence/internal/risk"
)

const boxWidth = 80

var (
	accent = lipgloss.Color("#DE7C3C")

	bannerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accent).
			MarginBottom(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accent)

	answerStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.DoubleBorder()).
			BorderForeground(accent).
			Padding(1, 1).
			Width(boxWidth)

	opportunityStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("#F59E0B")).
				Padding(0, 1).
				Width(boxWidth)

	userStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accent)

	toolStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8B5CF6"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B"))
)

const banner = `
  ____ _
 / ___| | __ _ _ __ ___ _ __   ___ ___
| |   | |/ _' | '__/ _ \ '_ \ / __/ _ \
| |___| | (_| | | |  __/ | | | (_|  __/
 \____|_|\__,_|_|  \___|_| |_|\___\___|
`

func renderBanner(version string) string {
	return bannerStyle.Render(banner) + "\n" +
		dimStyle.Render(fmt.Sprintf("Day trading assistant v%s. Type /help for commands.", version))
}

func renderUserQuery(query string) string {
	return userStyle.Render("You: " + query)
}

func renderAnswer(answer string) string {
	title := headerStyle.Width(boxWidth - 4).Align(lipgloss.Center).Render("ANSWER")
	return answerStyle.Render(title + "\n\n" + strings.TrimSpace(answer))
}

func renderToolCall(name string, args map[string]any, result string, blocked bool) string {
	params, _ := json.Marshal(args)
	var b strings.Builder
	b.WriteString("  " + toolStyle.Render("→") + "  Parameters: " + dimStyle.Render(name+"("+string(params)+")") + "\n")
	if blocked {
		b.WriteString("  " + warnStyle.Render("!") + " " + result)
		return b.String()
	}
	b.WriteString("  " + warnStyle.Render("⚡") + " Result: " + dimStyle.Render(truncate(result, 150)))
	return b.String()
}

func renderOrderResult(o models.OrderResult) string {
	if o.Failed() {
		return errorStyle.Render("✗ Order failed for "+o.Symbol+": ") + truncate(o.Err.Error(), 300)
	}
	return successStyle.Render("✓ Order result: ") + o.Raw
}

// renderOpportunity is the local summary shown when the model cannot
// present a recommendation.
func renderOpportunity(rec models.Recommendation, p risk.Params, buyingPower float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s %d shares (%s", headerStyle.Render(rec.Symbol), strings.ToUpper(rec.Action), rec.Quantity, rec.OrderType)
	if rec.LimitPrice != nil {
		fmt.Fprintf(&b, " @ $%s", prompts.FormatMoney(*rec.LimitPrice))
	}
	b.WriteString(")\n")
	if rec.EstimatedCost > 0 {
		fmt.Fprintf(&b, "Estimated cost: $%s of $%s buying power\n", prompts.FormatMoney(rec.EstimatedCost), prompts.FormatMoney(buyingPower))
	}
	if rec.Reasoning != "" {
		fmt.Fprintf(&b, "\n%s\n", rec.Reasoning)
	}
	if len(rec.RiskFactors) > 0 {
		b.WriteString("\nRisks:\n")
		for _, r := range rec.RiskFactors {
			b.WriteString("  - " + r + "\n")
		}
	}
	fmt.Fprintf(&b, "\nStop loss at %s%% below entry.", prompts.FormatPercent(p.StopLossPct))
	return opportunityStyle.Render(b.String())
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

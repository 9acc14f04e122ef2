package scanner

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dyike/clarence/internal/models"
	"github.com/dyike/clarence/internal/prompts"
)

// Account is the parsed get_account_info result. Values are kept as text,
// the way the brokerage reports them.
type Account struct {
	Fields map[string]string
}

// BuyingPower is the buying_power field, or 0 when absent or unparsable.
func (a Account) BuyingPower() float64 {
	v, err := strconv.ParseFloat(a.Fields["buying_power"], 64)
	if err != nil {
		return 0
	}
	return v
}

// Error is the error field reported by the brokerage, if any.
func (a Account) Error() (string, bool) {
	v, ok := a.Fields["error"]
	return v, ok
}

// ParseAccount accepts either a JSON object or the server's "Key: $value"
// text block.
func ParseAccount(text string) Account {
	var raw map[string]any
	if err := json.Unmarshal([]byte(text), &raw); err == nil {
		fields := make(map[string]string, len(raw))
		for k, v := range raw {
			fields[k] = stringify(v)
		}
		return Account{Fields: fields}
	}
	return Account{Fields: parseAccountText(text)}
}

// parseAccountText turns lines such as "Buying Power: $499.75" into
// {"buying_power": "499.75"}. Lines without a colon or starting with a dash
// are skipped.
func parseAccountText(text string) map[string]string {
	fields := make(map[string]string)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if !strings.Contains(line, ":") || strings.HasPrefix(line, "-") {
			continue
		}
		key, value, _ := strings.Cut(line, ":")
		key = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(key)), " ", "_")
		value = strings.ReplaceAll(strings.TrimLeft(strings.TrimSpace(value), "$"), ",", "")
		if key != "" && value != "" {
			fields[key] = value
		}
	}
	return fields
}

// ParsePositions decodes a JSON array of positions. Anything else yields an
// empty list.
func ParsePositions(text string) []models.Position {
	var raw []map[string]any
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil
	}
	positions := make([]models.Position, 0, len(raw))
	for _, p := range raw {
		symbol, _ := p["symbol"].(string)
		positions = append(positions, models.Position{
			Symbol:       symbol,
			Qty:          toFloat(p["qty"]),
			UnrealizedPL: toFloat(p["unrealized_pl"]),
		})
	}
	return positions
}

// HeldSymbols is the set of symbols with an open position.
func HeldSymbols(positions []models.Position) map[string]bool {
	held := make(map[string]bool, len(positions))
	for _, p := range positions {
		if p.Symbol != "" {
			held[p.Symbol] = true
		}
	}
	return held
}

// PositionsSummary renders one "  SYM: qty shares (P&L: $+x.xx)" line per
// position, or "None".
func PositionsSummary(positions []models.Position) string {
	if len(positions) == 0 {
		return "None"
	}
	lines := make([]string, 0, len(positions))
	for _, p := range positions {
		symbol := p.Symbol
		if symbol == "" {
			symbol = "?"
		}
		lines = append(lines, fmt.Sprintf("  %s: %s shares (P&L: $%s)",
			symbol, strconv.FormatFloat(p.Qty, 'f', -1, 64), prompts.FormatSignedMoney(p.UnrealizedPL)))
	}
	return strings.Join(lines, "\n")
}

func stringify(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return ""
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}

// toFloat accepts JSON numbers and numeric strings; anything else is 0.
func toFloat(v any) float64 {
	switch v := v.(type) {
	case float64:
		return v
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// sortedKeys is used to log account fields deterministically.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package scanner

import (
	"strings"

	"github.com/dyike/clarence/internal/models"
)

// IsWarrantOrUnit reports whether symbol looks like a SPAC warrant, unit or
// right: five or more characters ending in W, U or R, or any symbol with a
// "+". Shorter tickers such as CRWD or UBER are ordinary equities.
func IsWarrantOrUnit(symbol string) bool {
	if strings.Contains(symbol, "+") {
		return true
	}
	if len(symbol) >= 5 {
		switch symbol[len(symbol)-1] {
		case 'W', 'U', 'R':
			return true
		}
	}
	return false
}

// Candidates unions the screener symbols in discovery order, most actives
// first, without duplicates, held symbols, warrants or entries that carry an
// error.
func Candidates(actives []models.ActiveStock, movers []models.Mover, held map[string]bool) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(symbol, errText string) {
		if symbol == "" || errText != "" || seen[symbol] || held[symbol] || IsWarrantOrUnit(symbol) {
			return
		}
		seen[symbol] = true
		out = append(out, symbol)
	}
	for _, a := range actives {
		add(a.Symbol, a.Error)
	}
	for _, m := range movers {
		add(m.Symbol, m.Error)
	}
	return out
}

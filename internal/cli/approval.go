package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dyike/clarence/internal/models"
)

const (
	choiceExecute = "Execute as recommended"
	choiceSkip    = "Skip"
	choiceModify  = "Modify quantity and price"
)

// Approver asks the user about each recommendation. Invalid input is
// returned as an error, which the review loop treats as a skip.
type Approver struct {
	asker Asker
	out   io.Writer
}

func NewApprover(a Asker, out io.Writer) *Approver {
	return &Approver{asker: a, out: out}
}

func (a *Approver) Approve(ctx context.Context, rec models.Recommendation) (models.Approval, error) {
	if err := ctx.Err(); err != nil {
		return models.Skip(), err
	}

	choice, err := a.asker.Select(fmt.Sprintf("Place this order for %s?", rec.Symbol),
		[]string{choiceExecute, choiceSkip, choiceModify}, choiceSkip)
	if err != nil {
		return models.Skip(), err
	}

	switch choice {
	case choiceExecute:
		fmt.Fprintf(a.out, "\nPlacing order for %d shares of %s...\n", rec.Quantity, rec.Symbol)
		return models.Accept(), nil
	case choiceModify:
		return a.modify(rec)
	default:
		fmt.Fprintf(a.out, "Skipped %s.\n", rec.Symbol)
		return models.Skip(), nil
	}
}

func (a *Approver) modify(rec models.Recommendation) (models.Approval, error) {
	current := "market"
	if rec.LimitPrice != nil {
		current = "$" + strconv.FormatFloat(*rec.LimitPrice, 'f', -1, 64)
	}
	fmt.Fprintf(a.out, "  Current: %d shares @ %s\n", rec.Quantity, current)

	qtyText, err := a.asker.Input("New quantity (Enter to keep):", "")
	if err != nil {
		return models.Skip(), err
	}
	priceText, err := a.asker.Input("New price (Enter to keep):", "")
	if err != nil {
		return models.Skip(), err
	}

	var qty int
	if s := strings.TrimSpace(qtyText); s != "" {
		qty, err = strconv.Atoi(s)
		if err != nil || qty <= 0 {
			return models.Skip(), fmt.Errorf("invalid quantity %q", s)
		}
	}
	var price *float64
	if s := strings.TrimPrefix(strings.TrimSpace(priceText), "$"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v <= 0 {
			return models.Skip(), fmt.Errorf("invalid price %q", s)
		}
		price = &v
	}

	shown := rec.Quantity
	if qty > 0 {
		shown = qty
	}
	fmt.Fprintf(a.out, "\nPlacing modified order: %d shares of %s...\n", shown, rec.Symbol)
	return models.Modify(qty, price), nil
}

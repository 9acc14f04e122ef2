package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/dyike/clarence/internal/models"
	"github.com/dyike/clarence/internal/telemetry"
)

// Presenter shows one recommendation to the user before approval.
type Presenter interface {
	Present(ctx context.Context, rec models.Recommendation, buyingPower float64)
}

// Approver asks the user to accept, modify or skip a recommendation.
type Approver interface {
	Approve(ctx context.Context, rec models.Recommendation) (models.Approval, error)
}

// OrderArgs builds the place_stock_order arguments. limit_price is only sent
// for limit orders with a positive price.
func OrderArgs(rec models.Recommendation, qty int, price *float64) map[string]any {
	args := map[string]any{
		"symbol":        rec.Symbol,
		"side":          rec.Action,
		"type":          rec.OrderType,
		"quantity":      strconv.Itoa(qty),
		"time_in_force": "day",
	}
	if rec.OrderType == models.OrderTypeLimit && price != nil && *price > 0 {
		args["limit_price"] = strconv.FormatFloat(*price, 'f', -1, 64)
	}
	return args
}

// Execute places one order. A transport error or a result carrying an
// "error" key is reported through OrderResult.Err.
func (s *Scanner) Execute(ctx context.Context, rec models.Recommendation, qty int, price *float64) models.OrderResult {
	result := models.OrderResult{Symbol: rec.Symbol, Quantity: qty, Price: price}

	raw, err := s.broker.CallTool(ctx, "place_stock_order", OrderArgs(rec, qty, price))
	result.Raw = raw
	switch {
	case err != nil:
		result.Err = err
	case hasErrorKey(raw):
		result.Err = fmt.Errorf("order rejected: %s", raw)
	}

	if result.Failed() {
		telemetry.OrdersTotal.WithLabelValues(telemetry.OrderFailed).Inc()
		s.log.WithField("symbol", rec.Symbol).WithError(result.Err).Warn("order failed")
	} else {
		telemetry.OrdersTotal.WithLabelValues(telemetry.OrderPlaced).Inc()
		s.log.WithFields(map[string]interface{}{"symbol": rec.Symbol, "quantity": qty}).Info("order placed")
	}
	return result
}

func hasErrorKey(raw string) bool {
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return false
	}
	_, ok := obj["error"]
	return ok
}

// Review walks the recommendations in order: present, ask, and execute the
// approved ones. A failed order does not stop the loop. Approver errors
// count as a skip. Cancellation returns the orders placed so far.
func (s *Scanner) Review(ctx context.Context, res *Result, p Presenter, a Approver) ([]models.OrderResult, error) {
	var orders []models.OrderResult
	for _, rec := range res.Recommendations {
		if err := ctx.Err(); err != nil {
			return orders, err
		}

		p.Present(ctx, rec, res.BuyingPower)

		approval, err := a.Approve(ctx, rec)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return orders, ctxErr
			}
			s.log.WithField("symbol", rec.Symbol).WithError(err).Debug("approval failed, skipping")
			approval = models.Skip()
		}

		qty, price, ok := resolve(rec, approval)
		if !ok {
			telemetry.OrdersTotal.WithLabelValues(telemetry.OrderSkipped).Inc()
			s.log.WithField("symbol", rec.Symbol).Info("skipped")
			continue
		}
		orders = append(orders, s.Execute(ctx, rec, qty, price))
	}
	return orders, nil
}

// resolve returns the quantity and price to submit for an approval. ok is
// false when nothing should be submitted.
func resolve(rec models.Recommendation, approval models.Approval) (int, *float64, bool) {
	qty, price := rec.Quantity, rec.LimitPrice
	switch approval.Kind {
	case models.ApprovalAccept:
	case models.ApprovalModify:
		if approval.Quantity > 0 {
			qty = approval.Quantity
		}
		if approval.Price != nil {
			price = approval.Price
		}
	default:
		return 0, nil, false
	}
	if qty <= 0 {
		return 0, nil, false
	}
	return qty, price, true
}

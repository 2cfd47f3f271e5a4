package settlement

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/grocery-pos/internal/audit"
	"github.com/noah-isme/grocery-pos/internal/common"
	"github.com/noah-isme/grocery-pos/internal/domain"
	"github.com/noah-isme/grocery-pos/internal/events"
	"github.com/noah-isme/grocery-pos/internal/inventory"
	"github.com/noah-isme/grocery-pos/internal/loyalty"
	"github.com/noah-isme/grocery-pos/internal/obs"
	"github.com/noah-isme/grocery-pos/internal/pricing"
	"github.com/noah-isme/grocery-pos/internal/store"
)

// RefundItem selects part of an original line by its index. ProductID, when
// set, must match the product on that line.
type RefundItem struct {
	Line      int             `json:"line"`
	ProductID string          `json:"productId,omitempty"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// VoidTransaction cancels a completed sale: stock is put back, the customer's
// spend, transaction count and points are reversed and the record becomes voided.
func (s *Service) VoidTransaction(ctx context.Context, id, reason string, actor common.Actor) (voided domain.Transaction, err error) {
	if err := authorize(actor, common.PermTransactionsVoid); err != nil {
		return domain.Transaction{}, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return domain.Transaction{}, domain.Invalid("reason", "is required")
	}
	ctx, span := otel.Tracer("settlement.Service").Start(ctx, "Settlement.VoidTransaction")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", id))
	start := time.Now()
	defer func() {
		obs.ObserveSettlement("void", resultLabel(err), time.Since(start))
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	var orig domain.Transaction
	err = s.withTransactionLock(ctx, id, func(ctx context.Context) error {
		var err error
		orig, err = s.deps.Transactions.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		if orig.Kind != domain.KindSale || orig.Status != domain.StatusCompleted {
			return &domain.InvalidStateError{TransactionID: id, Status: orig.Status, Action: "void"}
		}

		now := s.now().UTC()
		commit := store.Commit{Transition: &store.Transition{TransactionID: id, Apply: func(t *domain.Transaction) error {
			if t.Status != domain.StatusCompleted {
				return &domain.InvalidStateError{TransactionID: id, Status: t.Status, Action: "void"}
			}
			t.Status = domain.StatusVoided
			t.VoidedAt = &now
			t.VoidedBy = actor.ID
			t.Reason = reason
			voided = *t
			return nil
		}}}
		commit.Stock = restock(orig.Items, nil)
		if orig.CustomerID != "" {
			delta := loyalty.Delta{
				Earned:       orig.PointsEarned,
				Redeemed:     orig.PointsUsed,
				Spend:        orig.Total,
				Transactions: 1,
				TierBefore:   orig.TierBefore,
				Sequence:     orig.LoyaltySequence,
			}
			commit.Customer = &store.CustomerMutation{CustomerID: orig.CustomerID, Apply: func(cust *domain.Customer) error {
				s.cfg.Policy.Reverse(&cust.Loyalty, delta)
				cust.History.TotalSpent = decimal.Max(decimal.Zero, cust.History.TotalSpent.Sub(orig.Total))
				if cust.History.PurchaseCount > 0 {
					cust.History.PurchaseCount--
				}
				return nil
			}}
		}
		return s.deps.Transactions.Commit(ctx, commit)
	})
	if err != nil {
		return domain.Transaction{}, err
	}

	obs.AddLoyaltyPoints("reversed", orig.PointsEarned)
	s.record(ctx, audit.Entry{
		ActorID:      actor.ID,
		ActorRole:    actor.Role,
		Action:       "transaction.void",
		ResourceType: "transaction",
		ResourceID:   id,
		Reason:       reason,
	})
	s.emit(ctx, events.TopicTransactionVoided, id, events.TransactionPayload{
		TransactionID: id,
		CashierID:     orig.CashierID,
		CustomerID:    orig.CustomerID,
		Total:         orig.Total,
		Items:         len(orig.Items),
		PointsEarned:  orig.PointsEarned,
		PointsUsed:    orig.PointsUsed,
		Reason:        reason,
		ActorID:       actor.ID,
	})
	s.deps.Logger.Info().Str("transaction_id", id).Str("actor_id", actor.ID).Str("reason", reason).Msg("transaction voided")
	return voided, nil
}

// RefundTransaction returns part or all of a completed sale. A separate refund
// record with negated amounts is created, the refunded quantities go back on
// the shelf and the original becomes refunded. Loyalty is left untouched.
func (s *Service) RefundTransaction(ctx context.Context, id string, items []RefundItem, reason string, method domain.PaymentMethod, actor common.Actor) (refund domain.Transaction, err error) {
	if err := authorize(actor, common.PermTransactionsRefund); err != nil {
		return domain.Transaction{}, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return domain.Transaction{}, domain.Invalid("reason", "is required")
	}
	if len(items) == 0 {
		return domain.Transaction{}, domain.Invalid("items", "at least one item is required")
	}
	if !method.Valid() {
		return domain.Transaction{}, domain.Invalid("refundMethod", "unsupported payment method %q", method)
	}
	ctx, span := otel.Tracer("settlement.Service").Start(ctx, "Settlement.RefundTransaction")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", id))
	start := time.Now()
	defer func() {
		obs.ObserveSettlement("refund", resultLabel(err), time.Since(start))
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	err = s.withTransactionLock(ctx, id, func(ctx context.Context) error {
		orig, err := s.deps.Transactions.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		if orig.Kind != domain.KindSale || orig.Status != domain.StatusCompleted {
			return &domain.InvalidStateError{TransactionID: id, Status: orig.Status, Action: "refund"}
		}
		lines, err := refundLines(orig, items)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		refund = buildRefund(orig, lines, method, actor.ID, reason, now)
		commit := store.Commit{
			Insert: &refund,
			Transition: &store.Transition{TransactionID: id, Apply: func(t *domain.Transaction) error {
				if t.Status != domain.StatusCompleted {
					return &domain.InvalidStateError{TransactionID: id, Status: t.Status, Action: "refund"}
				}
				t.Status = domain.StatusRefunded
				t.RefundedAt = &now
				t.RefundedBy = actor.ID
				return nil
			}},
			Stock: restock(orig.Items, lines),
		}
		return s.deps.Transactions.Commit(ctx, commit)
	})
	if err != nil {
		return domain.Transaction{}, err
	}

	s.record(ctx, audit.Entry{
		ActorID:      actor.ID,
		ActorRole:    actor.Role,
		Action:       "transaction.refund",
		ResourceType: "transaction",
		ResourceID:   id,
		Reason:       reason,
	})
	s.emit(ctx, events.TopicTransactionRefunded, refund.ID, events.TransactionPayload{
		TransactionID: refund.ID,
		OriginalID:    id,
		CashierID:     refund.CashierID,
		CustomerID:    refund.CustomerID,
		Total:         refund.Total,
		Items:         len(refund.Items),
		Reason:        reason,
		ActorID:       actor.ID,
	})
	s.deps.Logger.Info().
		Str("transaction_id", id).
		Str("refund_id", refund.ID).
		Str("amount", refund.Total.Neg().StringFixed(2)).
		Str("actor_id", actor.ID).
		Msg("transaction refunded")
	return refund, nil
}

// refundLines validates the requested items and returns the refunded quantity
// per original line index.
func refundLines(orig domain.Transaction, items []RefundItem) (map[int]decimal.Decimal, error) {
	lines := make(map[int]decimal.Decimal, len(items))
	for _, it := range items {
		if it.Line < 0 || it.Line >= len(orig.Items) {
			return nil, domain.Invalid("items.line", "transaction has no line %d", it.Line)
		}
		line := orig.Items[it.Line]
		if it.ProductID != "" && it.ProductID != line.ProductID {
			return nil, domain.Invalid("items.productId", "line %d holds product %s, not %s", it.Line, line.ProductID, it.ProductID)
		}
		if !it.Quantity.IsPositive() {
			return nil, domain.Invalid("items.quantity", "must be positive")
		}
		if line.PriceType == domain.PriceFixed && !it.Quantity.Equal(it.Quantity.Truncate(0)) {
			return nil, domain.Invalid("items.quantity", "line %d is sold in whole units", it.Line)
		}
		total := lines[it.Line].Add(it.Quantity)
		if total.GreaterThan(line.Quantity) {
			return nil, domain.Invalid("items.quantity", "refund of %s exceeds the %s sold on line %d", total, line.Quantity, it.Line)
		}
		lines[it.Line] = total
	}
	return lines, nil
}

// buildRefund prorates line amounts by quantity and the cart-level discounts
// by the refunded share of the subtotal.
func buildRefund(orig domain.Transaction, lines map[int]decimal.Decimal, method domain.PaymentMethod, actorID, reason string, now time.Time) domain.Transaction {
	subtotal, lineDiscount, tax := decimal.Zero, decimal.Zero, decimal.Zero
	items := make([]domain.TransactionItem, 0, len(lines))
	for i, line := range orig.Items {
		qty, ok := lines[i]
		if !ok {
			continue
		}
		item := line
		item.Quantity = qty
		if !qty.Equal(line.Quantity) {
			share := qty.Div(line.Quantity)
			item.BaseAmount = pricing.Round(line.BaseAmount.Mul(share))
			item.Discount = pricing.Round(line.Discount.Mul(share))
			item.Tax = pricing.Round(line.Tax.Mul(share))
			item.LineTotal = item.BaseAmount.Sub(item.Discount)
		}
		subtotal = subtotal.Add(item.BaseAmount)
		lineDiscount = lineDiscount.Add(item.Discount)
		tax = tax.Add(item.Tax)
		items = append(items, negateItem(item))
	}

	couponPart, loyaltyPart := decimal.Zero, decimal.Zero
	if orig.Subtotal.IsPositive() {
		share := subtotal.Div(orig.Subtotal)
		couponPart = pricing.Round(orig.CouponDiscount.Mul(share))
		loyaltyPart = pricing.Round(orig.LoyaltyDiscount.Mul(share))
	}
	summary := pricing.Compute(subtotal, lineDiscount.Add(couponPart).Add(loyaltyPart), tax)
	total := decimal.Min(summary.Total, orig.Total)

	return domain.Transaction{
		ID:                    uuid.NewString(),
		Kind:                  domain.KindRefund,
		Status:                domain.StatusRefunded,
		CashierID:             actorID,
		CustomerID:            orig.CustomerID,
		OriginalTransactionID: orig.ID,
		Items:                 items,
		Payments:              []domain.Payment{{Method: method, Amount: total.Neg()}},
		Subtotal:              summary.Subtotal.Neg(),
		LineDiscount:          lineDiscount.Neg(),
		CouponDiscount:        couponPart.Neg(),
		LoyaltyDiscount:       loyaltyPart.Neg(),
		TotalDiscount:         summary.Discount.Neg(),
		Tax:                   summary.Tax.Neg(),
		Total:                 total.Neg(),
		AmountTendered:        total.Neg(),
		Change:                decimal.Zero,
		Reason:                reason,
		CreatedAt:             now,
		CompletedAt:           &now,
		RefundedAt:            &now,
		RefundedBy:            actorID,
	}
}

func negateItem(it domain.TransactionItem) domain.TransactionItem {
	it.BaseAmount = it.BaseAmount.Neg()
	it.Discount = it.Discount.Neg()
	it.Tax = it.Tax.Neg()
	it.LineTotal = it.LineTotal.Neg()
	return it
}

// restock builds the stock mutations putting items back on the shelf. With a
// nil selection every line is restored in full.
func restock(items []domain.TransactionItem, selected map[int]decimal.Decimal) []store.StockMutation {
	qty := make(map[string]decimal.Decimal)
	var order []string
	for i, it := range items {
		q := it.Quantity
		if selected != nil {
			var ok bool
			if q, ok = selected[i]; !ok {
				continue
			}
		}
		if _, seen := qty[it.ProductID]; !seen {
			order = append(order, it.ProductID)
		}
		qty[it.ProductID] = qty[it.ProductID].Add(q)
	}
	out := make([]store.StockMutation, 0, len(order))
	for _, id := range order {
		n := qty[id]
		out = append(out, store.StockMutation{ProductID: id, Apply: func(p *domain.Product) error {
			_, err := inventory.Apply(p, inventory.OpAdd, n)
			return err
		}})
	}
	return out
}

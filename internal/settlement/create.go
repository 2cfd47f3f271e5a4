package settlement

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/grocery-pos/internal/cart"
	"github.com/noah-isme/grocery-pos/internal/common"
	"github.com/noah-isme/grocery-pos/internal/coupon"
	"github.com/noah-isme/grocery-pos/internal/discount"
	"github.com/noah-isme/grocery-pos/internal/domain"
	"github.com/noah-isme/grocery-pos/internal/events"
	"github.com/noah-isme/grocery-pos/internal/inventory"
	"github.com/noah-isme/grocery-pos/internal/loyalty"
	"github.com/noah-isme/grocery-pos/internal/obs"
	"github.com/noah-isme/grocery-pos/internal/pricing"
	"github.com/noah-isme/grocery-pos/internal/store"
)

// Quote is a priced cart that has not been settled.
type Quote struct {
	Transaction domain.Transaction       `json:"transaction"`
	Coupons     []discount.CouponOutcome `json:"coupons"`
	// Shortfall is how much more must be tendered; zero when payments cover the total.
	Shortfall decimal.Decimal `json:"shortfall"`
}

// Quote prices a cart without touching stock, coupons or loyalty balances.
func (s *Service) Quote(ctx context.Context, actor common.Actor, c cart.Cart, payments []domain.Payment) (Quote, error) {
	if err := authorize(actor, common.PermTransactionsCreate); err != nil {
		return Quote{}, err
	}
	ctx, span := otel.Tracer("settlement.Service").Start(ctx, "Settlement.Quote")
	defer span.End()

	p, err := s.price(ctx, c)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Quote{}, err
	}
	q := Quote{Transaction: p.txn, Coupons: p.discounts.Coupons, Shortfall: decimal.Zero}
	q.Transaction.CashierID = actor.ID
	q.Transaction.Payments = payments
	tendered := sumPayments(payments)
	q.Transaction.AmountTendered = tendered
	if change, err := pricing.Tender(p.txn.Total, tendered, s.cfg.Tolerance); err == nil {
		q.Transaction.Change = change
	} else {
		q.Shortfall = pricing.Round(p.txn.Total.Sub(tendered))
	}
	return q, nil
}

// CreateTransaction settles a cart. Everything is priced and validated first;
// stock, coupon usage and the customer's loyalty account are then changed in
// one atomic commit, so a failure leaves every resource as it was.
func (s *Service) CreateTransaction(ctx context.Context, actor common.Actor, c cart.Cart, payments []domain.Payment) (txn domain.Transaction, err error) {
	if err := authorize(actor, common.PermTransactionsCreate); err != nil {
		return domain.Transaction{}, err
	}
	ctx, span := otel.Tracer("settlement.Service").Start(ctx, "Settlement.CreateTransaction")
	defer span.End()
	start := time.Now()
	defer func() {
		obs.ObserveSettlement("create", resultLabel(err), time.Since(start))
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			s.deps.Logger.Warn().Err(err).Str("cashier_id", actor.ID).Str("customer_id", c.CustomerID).Msg("settlement failed")
		}
	}()

	if err := validatePayments(payments); err != nil {
		return domain.Transaction{}, err
	}
	p, err := s.price(ctx, c)
	if err != nil {
		return domain.Transaction{}, err
	}
	tendered := sumPayments(payments)
	change, err := pricing.Tender(p.txn.Total, tendered, s.cfg.Tolerance)
	if err != nil {
		return domain.Transaction{}, err
	}

	now := s.now().UTC()
	txn = p.txn
	txn.ID = uuid.NewString()
	txn.Status = domain.StatusCompleted
	txn.CashierID = actor.ID
	txn.Payments = payments
	txn.AmountTendered = tendered
	txn.Change = change
	txn.CreatedAt = now
	txn.CompletedAt = &now
	span.SetAttributes(attribute.String("transaction.id", txn.ID), attribute.Int("transaction.items", len(txn.Items)))

	commit := store.Commit{Insert: &txn}
	changes := make(map[string]inventory.Change, len(p.reserve))
	committed := make(map[string]domain.Product, len(p.reserve))
	for _, id := range p.productIDs() {
		qty := p.reserve[id]
		commit.Stock = append(commit.Stock, store.StockMutation{ProductID: id, Apply: func(prod *domain.Product) error {
			ch, err := inventory.Reserve(prod, qty)
			if err != nil {
				return err
			}
			changes[id] = ch
			committed[id] = *prod
			return nil
		}})
	}
	for _, cp := range p.accepted {
		code := cp.Code
		commit.Coupons = append(commit.Coupons, store.CouponMutation{CouponID: cp.ID, Apply: func(stored *domain.Coupon, uses int) error {
			if reason := coupon.CheckUsage(*stored, uses); reason != "" {
				return &domain.InvalidCouponError{Code: code, Reason: reason}
			}
			stored.UsedCount++
			return nil
		}})
	}
	if p.customer != nil {
		commit.Customer = &store.CustomerMutation{CustomerID: p.customer.ID, Apply: func(cust *domain.Customer) error {
			// Earn against the balance and tier as they are at commit time.
			txn.PointsEarned = s.cfg.Policy.PointsEarned(cust.Loyalty, txn.Total)
			txn.TierBefore = cust.Loyalty.Tier
			delta := loyalty.Delta{Earned: txn.PointsEarned, Redeemed: txn.PointsUsed, Spend: txn.Total, Transactions: 1}
			if err := s.cfg.Policy.Apply(&cust.Loyalty, delta); err != nil {
				return err
			}
			txn.LoyaltySequence = cust.Loyalty.TransactionCount
			cust.History.TotalSpent = cust.History.TotalSpent.Add(txn.Total)
			cust.History.PurchaseCount++
			cust.History.LastPurchaseAt = &now
			return nil
		}}
	}

	if err := s.deps.Transactions.Commit(ctx, commit); err != nil {
		return domain.Transaction{}, err
	}

	for _, out := range p.discounts.Coupons {
		if !out.Accepted {
			obs.CountCouponRejection(string(out.Reason))
		}
	}
	for _, ch := range changes {
		obs.CountStockMutation(string(ch.Op), "ok")
		s.deps.Stock.NotifyLowStock(ctx, committed[ch.ProductID], ch)
	}
	obs.AddLoyaltyPoints("earned", txn.PointsEarned)
	obs.AddLoyaltyPoints("redeemed", txn.PointsUsed)
	s.emit(ctx, events.TopicTransactionCompleted, txn.ID, events.TransactionPayload{
		TransactionID: txn.ID,
		CashierID:     txn.CashierID,
		CustomerID:    txn.CustomerID,
		Total:         txn.Total,
		Items:         len(txn.Items),
		PointsEarned:  txn.PointsEarned,
		PointsUsed:    txn.PointsUsed,
	})
	s.deps.Logger.Info().
		Str("transaction_id", txn.ID).
		Str("cashier_id", txn.CashierID).
		Str("customer_id", txn.CustomerID).
		Str("total", txn.Total.StringFixed(2)).
		Int64("points_earned", txn.PointsEarned).
		Msg("transaction completed")
	return txn, nil
}

func validatePayments(payments []domain.Payment) error {
	if len(payments) == 0 {
		return domain.Invalid("payments", "at least one payment is required")
	}
	for _, pay := range payments {
		if !pay.Method.Valid() {
			return domain.Invalid("payments.method", "unsupported payment method %q", pay.Method)
		}
		if !pay.Amount.IsPositive() {
			return domain.Invalid("payments.amount", "must be positive")
		}
	}
	return nil
}

func sumPayments(payments []domain.Payment) decimal.Decimal {
	total := decimal.Zero
	for _, pay := range payments {
		total = total.Add(pay.Amount)
	}
	return pricing.Round(total)
}

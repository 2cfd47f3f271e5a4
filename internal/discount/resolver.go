package discount

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/grocery-pos/internal/coupon"
	"github.com/noah-isme/grocery-pos/internal/domain"
	"github.com/noah-isme/grocery-pos/internal/loyalty"
)

// Candidate is a coupon looked up for a settlement, in the order the cashier
// scanned it.
type Candidate struct {
	Coupon       domain.Coupon
	CustomerUses int
}

// Input collects everything the resolver needs for one cart.
type Input struct {
	Lines []coupon.Line
	// Subtotal is the sum of line base amounts before any discount.
	Subtotal decimal.Decimal
	// LineDiscount is the sum of manual per-line discounts.
	LineDiscount    decimal.Decimal
	Coupons         []Candidate
	Customer        *domain.Customer
	PointsRequested int64
	Now             time.Time
	// Strict turns any rejected coupon into an InvalidCouponError.
	Strict bool
}

// CouponOutcome is one receipt row for a scanned coupon.
type CouponOutcome struct {
	CouponID string              `json:"couponId"`
	Code     string              `json:"code"`
	Type     domain.DiscountType `json:"type"`
	Discount decimal.Decimal     `json:"discount"`
	Accepted bool                `json:"accepted"`
	Reason   domain.CouponReason `json:"reason,omitempty"`
}

// Result is the discount breakdown of one cart.
type Result struct {
	LineDiscount    decimal.Decimal `json:"lineDiscount"`
	CouponDiscount  decimal.Decimal `json:"couponDiscount"`
	LoyaltyDiscount decimal.Decimal `json:"loyaltyDiscount"`
	Total           decimal.Decimal `json:"totalDiscount"`
	PointsUsed      int64           `json:"pointsUsed"`
	Coupons         []CouponOutcome `json:"coupons"`
}

// Accepted returns the outcomes that contributed a discount.
func (r Result) Accepted() []CouponOutcome {
	out := make([]CouponOutcome, 0, len(r.Coupons))
	for _, c := range r.Coupons {
		if c.Accepted {
			out = append(out, c)
		}
	}
	return out
}

// Resolver merges line, coupon and loyalty discounts.
type Resolver struct {
	Policy loyalty.Policy
}

// NewResolver constructs a resolver for the loyalty policy.
func NewResolver(policy loyalty.Policy) *Resolver {
	return &Resolver{Policy: policy}
}

// Resolve produces the total discount and its breakdown. Redeemed points only
// cover merchandise after line and coupon discounts; tax is never redeemable,
// so a redemption worth more than that amount is a ValidationError.
func (r *Resolver) Resolve(in Input) (Result, error) {
	res := Result{
		LineDiscount:    in.LineDiscount.Round(2),
		CouponDiscount:  decimal.Zero,
		LoyaltyDiscount: decimal.Zero,
	}
	net := in.Subtotal.Sub(res.LineDiscount).Round(2)

	seen := make(map[string]bool, len(in.Coupons))
	exclusive := false
	for _, cand := range in.Coupons {
		c := cand.Coupon
		out := CouponOutcome{CouponID: c.ID, Code: c.Code, Type: c.Type, Discount: decimal.Zero}

		reason := coupon.Check(c, coupon.Context{
			Now:          in.Now,
			Customer:     in.Customer,
			CustomerUses: cand.CustomerUses,
			Subtotal:     net,
		})
		if reason == "" && (seen[c.ID] || exclusive || (!c.Stackable && len(seen) > 0)) {
			reason = domain.CouponNotStackable
		}
		var amount decimal.Decimal
		if reason == "" {
			var err error
			amount, reason, err = coupon.Evaluate(c, in.Lines, net)
			if err != nil {
				return Result{}, err
			}
		}
		if reason != "" {
			if in.Strict {
				return Result{}, &domain.InvalidCouponError{Code: c.Code, Reason: reason}
			}
			out.Reason = reason
			res.Coupons = append(res.Coupons, out)
			continue
		}

		remaining := net.Sub(res.CouponDiscount)
		if amount.GreaterThan(remaining) {
			amount = remaining
		}
		out.Accepted = true
		out.Discount = amount
		res.CouponDiscount = res.CouponDiscount.Add(amount).Round(2)
		seen[c.ID] = true
		if !c.Stackable {
			exclusive = true
		}
		res.Coupons = append(res.Coupons, out)
	}

	if in.PointsRequested != 0 {
		if in.Customer == nil {
			return Result{}, domain.Invalid("loyaltyPointsToUse", "redemption requires a customer")
		}
		if err := r.Policy.CheckRedemption(in.Customer.Loyalty, in.PointsRequested); err != nil {
			return Result{}, err
		}
		value := r.Policy.RedemptionValue(in.PointsRequested)
		due := net.Sub(res.CouponDiscount)
		if value.GreaterThan(due) {
			return Result{}, domain.Invalid("loyaltyPointsToUse", "redemption worth %s exceeds amount due %s", value.StringFixed(2), due.StringFixed(2))
		}
		res.LoyaltyDiscount = value
		res.PointsUsed = in.PointsRequested
	}

	res.Total = res.LineDiscount.Add(res.CouponDiscount).Add(res.LoyaltyDiscount).Round(2)
	return res, nil
}

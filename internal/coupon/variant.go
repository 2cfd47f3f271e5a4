package coupon

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/grocery-pos/internal/domain"
)

// Line is the view of a priced cart line the coupon variants work on.
type Line struct {
	ProductID  string
	CategoryID string
	PriceType  domain.PriceType
	Quantity   decimal.Decimal
	UnitPrice  decimal.Decimal
	// Amount is the line total after its manual discount.
	Amount decimal.Decimal
}

// Variant computes the discount of one coupon type over the lines it matches.
type Variant interface {
	Type() domain.DiscountType
	discount(c domain.Coupon, lines []Line, subtotal decimal.Decimal) (decimal.Decimal, domain.CouponReason)
}

// PercentageOff takes Percent of the eligible amount, optionally capped.
type PercentageOff struct {
	Percent decimal.Decimal
	Cap     *decimal.Decimal
}

// FixedAmountOff takes a flat amount, never more than the eligible amount.
type FixedAmountOff struct {
	Amount decimal.Decimal
}

// BuyOneGetOne gives every second unit of matching fixed-price lines free.
type BuyOneGetOne struct{}

// BuyXGetY is reserved; it never produces a discount.
type BuyXGetY struct {
	Buy int
	Get int
}

func (PercentageOff) Type() domain.DiscountType  { return domain.DiscountPercentage }
func (FixedAmountOff) Type() domain.DiscountType { return domain.DiscountFixedAmount }
func (BuyOneGetOne) Type() domain.DiscountType   { return domain.DiscountBOGO }
func (BuyXGetY) Type() domain.DiscountType       { return domain.DiscountBuyXGetY }

var hundred = decimal.NewFromInt(100)

// VariantOf decodes the stored coupon payload into its variant.
func VariantOf(c domain.Coupon) (Variant, error) {
	switch c.Type {
	case domain.DiscountPercentage:
		if c.Value.IsNegative() || c.Value.GreaterThan(hundred) {
			return nil, domain.Invalid("value", "percentage must be between 0 and 100")
		}
		return PercentageOff{Percent: c.Value, Cap: c.MaximumDiscount}, nil
	case domain.DiscountFixedAmount:
		if c.Value.IsNegative() {
			return nil, domain.Invalid("value", "amount must not be negative")
		}
		return FixedAmountOff{Amount: c.Value}, nil
	case domain.DiscountBOGO:
		return BuyOneGetOne{}, nil
	case domain.DiscountBuyXGetY:
		return BuyXGetY{Buy: c.BuyQuantity, Get: c.GetQuantity}, nil
	default:
		return nil, domain.Invalid("type", "unknown discount type %q", c.Type)
	}
}

// Evaluate returns the discount a valid coupon yields on the lines. A
// non-empty reason means the coupon does not apply to this cart.
func Evaluate(c domain.Coupon, lines []Line, subtotal decimal.Decimal) (decimal.Decimal, domain.CouponReason, error) {
	v, err := VariantOf(c)
	if err != nil {
		return decimal.Zero, "", err
	}
	amount, reason := v.discount(c, lines, subtotal)
	if reason != "" {
		return decimal.Zero, reason, nil
	}
	if c.MaximumDiscount != nil && amount.GreaterThan(*c.MaximumDiscount) {
		amount = *c.MaximumDiscount
	}
	return amount.Round(2), "", nil
}

// eligible sums matching line amounts. Unscoped coupons use the whole subtotal.
func eligible(c domain.Coupon, lines []Line, subtotal decimal.Decimal) (decimal.Decimal, bool) {
	if !Scoped(c) {
		return subtotal, subtotal.IsPositive()
	}
	total := decimal.Zero
	found := false
	for _, l := range lines {
		if Matches(c, l) && l.Amount.IsPositive() {
			total = total.Add(l.Amount)
			found = true
		}
	}
	return total, found
}

func (p PercentageOff) discount(c domain.Coupon, lines []Line, subtotal decimal.Decimal) (decimal.Decimal, domain.CouponReason) {
	base, ok := eligible(c, lines, subtotal)
	if !ok {
		return decimal.Zero, domain.CouponNotApplicable
	}
	amount := base.Mul(p.Percent).Div(hundred).Round(2)
	if p.Cap != nil && amount.GreaterThan(*p.Cap) {
		amount = *p.Cap
	}
	return amount, ""
}

func (f FixedAmountOff) discount(c domain.Coupon, lines []Line, subtotal decimal.Decimal) (decimal.Decimal, domain.CouponReason) {
	base, ok := eligible(c, lines, subtotal)
	if !ok {
		return decimal.Zero, domain.CouponNotApplicable
	}
	return decimal.Min(f.Amount, base), ""
}

func (BuyOneGetOne) discount(c domain.Coupon, lines []Line, _ decimal.Decimal) (decimal.Decimal, domain.CouponReason) {
	two := decimal.NewFromInt(2)
	total := decimal.Zero
	for _, l := range lines {
		if l.PriceType != domain.PriceFixed || !Matches(c, l) {
			continue
		}
		free := l.Quantity.Div(two).Floor()
		// Never give away more than the line is still worth after its own discount.
		total = total.Add(decimal.Min(free.Mul(l.UnitPrice).Round(2), l.Amount))
	}
	if !total.IsPositive() {
		return decimal.Zero, domain.CouponNotApplicable
	}
	return total, ""
}

func (BuyXGetY) discount(domain.Coupon, []Line, decimal.Decimal) (decimal.Decimal, domain.CouponReason) {
	return decimal.Zero, domain.CouponIncompleteVariant
}

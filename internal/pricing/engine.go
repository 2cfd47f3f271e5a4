package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/grocery-pos/internal/domain"
)

// Scale is the number of decimal places of the currency minor unit.
const Scale = 2

// DefaultTolerance is the shortfall accepted when checking tendered payments.
var DefaultTolerance = decimal.New(1, -Scale)

// Round rounds an amount to the currency minor unit, half away from zero.
func Round(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(Scale)
}

// Line describes the pricing inputs of one cart line. Quantity holds a unit
// count for fixed-price lines and the measured weight for weight-priced lines.
type Line struct {
	PriceType domain.PriceType
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
}

// WeightPlaces is the precision stock quantities are stored with.
const WeightPlaces = 3

// BaseAmount computes the pre-discount amount of a line.
func BaseAmount(l Line) (decimal.Decimal, error) {
	if l.UnitPrice.IsNegative() {
		return decimal.Zero, domain.Invalid("unitPrice", "must not be negative")
	}
	switch l.PriceType {
	case domain.PriceWeight:
		if !l.Quantity.IsPositive() {
			return decimal.Zero, domain.Invalid("weight", "weight-priced items require a positive weight")
		}
		if !l.Quantity.Equal(l.Quantity.Round(WeightPlaces)) {
			return decimal.Zero, domain.Invalid("weight", "at most %d decimal places are supported", WeightPlaces)
		}
	case domain.PriceFixed:
		if l.Quantity.LessThan(decimal.NewFromInt(1)) || !l.Quantity.Equal(l.Quantity.Truncate(0)) {
			return decimal.Zero, domain.Invalid("quantity", "must be a whole number of at least 1")
		}
	default:
		return decimal.Zero, domain.Invalid("priceType", "unsupported price type %q", l.PriceType)
	}
	return Round(l.Quantity.Mul(l.UnitPrice)), nil
}

// TaxInput holds the inputs of the per-line tax calculation. Amount is the line
// amount after its own line-level discount.
type TaxInput struct {
	Taxable bool
	Rate    decimal.Decimal
	Exempt  bool
	Amount  decimal.Decimal
}

// Tax computes the tax of a line. Exempt customers and non-taxable products
// contribute a zero taxable base.
func Tax(in TaxInput) decimal.Decimal {
	if in.Exempt || !in.Taxable || !in.Amount.IsPositive() || !in.Rate.IsPositive() {
		return decimal.Zero
	}
	return Round(in.Amount.Mul(in.Rate))
}

// Summary aggregates computed pricing components.
type Summary struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// Compute totals the cart: subtotal - discount + tax, clamped at zero.
func Compute(subtotal, discount, tax decimal.Decimal) Summary {
	subtotal = Round(subtotal)
	discount = Round(discount)
	tax = Round(tax)
	total := Round(subtotal.Sub(discount).Add(tax))
	if total.IsNegative() {
		total = decimal.Zero
	}
	return Summary{
		Subtotal: subtotal,
		Discount: discount,
		Tax:      tax,
		Total:    total,
	}
}

// Tender checks that the tendered sum covers total within tolerance and returns
// the change due.
func Tender(total, tendered, tolerance decimal.Decimal) (decimal.Decimal, error) {
	if tolerance.IsNegative() {
		tolerance = decimal.Zero
	}
	if tendered.LessThan(total.Sub(tolerance)) {
		return decimal.Zero, &domain.InsufficientPaymentError{Required: total, Tendered: tendered}
	}
	change := Round(tendered.Sub(total))
	if change.IsNegative() {
		change = decimal.Zero
	}
	return change, nil
}

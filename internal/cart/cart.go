// Package cart holds the checkout session's cart. A Cart belongs to exactly
// one session and is passed explicitly to settlement; it is never shared.
package cart

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/grocery-pos/internal/coupon"
	"github.com/noah-isme/grocery-pos/internal/domain"
)

// Line is one scanned item. Quantity is a unit count for fixed-price products
// and a weight for weight-priced ones.
type Line struct {
	ProductID string          `json:"productId"`
	Quantity  decimal.Decimal `json:"quantity"`
	Discount  decimal.Decimal `json:"discount"`
}

type Cart struct {
	Lines         []Line   `json:"lines"`
	CustomerID    string   `json:"customerId,omitempty"`
	CouponCodes   []string `json:"couponCodes,omitempty"`
	LoyaltyPoints int64    `json:"loyaltyPoints"`
	AgeVerified   bool     `json:"ageVerified"`
}

// Add appends a line, or grows the existing undiscounted line for the same product.
func (c *Cart) Add(productID string, qty decimal.Decimal) error {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.Invalid("productId", "is required")
	}
	if !qty.IsPositive() {
		return domain.Invalid("quantity", "must be positive")
	}
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID && c.Lines[i].Discount.IsZero() {
			c.Lines[i].Quantity = c.Lines[i].Quantity.Add(qty)
			return nil
		}
	}
	c.Lines = append(c.Lines, Line{ProductID: productID, Quantity: qty, Discount: decimal.Zero})
	return nil
}

// AddLine appends a line as entered, without merging, e.g. when a register
// submits its already-built basket.
func (c *Cart) AddLine(productID string, qty, discount decimal.Decimal) error {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.Invalid("productId", "is required")
	}
	if !qty.IsPositive() {
		return domain.Invalid("quantity", "must be positive")
	}
	if discount.IsNegative() {
		return domain.Invalid("discount", "must not be negative")
	}
	c.Lines = append(c.Lines, Line{ProductID: productID, Quantity: qty, Discount: discount})
	return nil
}

// SetQuantity replaces the quantity or weight of line i.
func (c *Cart) SetQuantity(i int, qty decimal.Decimal) error {
	if err := c.checkIndex(i); err != nil {
		return err
	}
	if !qty.IsPositive() {
		return domain.Invalid("quantity", "must be positive")
	}
	c.Lines[i].Quantity = qty
	return nil
}

// SetDiscount sets the manual discount of line i. Whether it fits within the
// line's base amount is checked when the cart is priced.
func (c *Cart) SetDiscount(i int, amount decimal.Decimal) error {
	if err := c.checkIndex(i); err != nil {
		return err
	}
	if amount.IsNegative() {
		return domain.Invalid("discount", "must not be negative")
	}
	c.Lines[i].Discount = amount
	return nil
}

// Remove deletes line i.
func (c *Cart) Remove(i int) error {
	if err := c.checkIndex(i); err != nil {
		return err
	}
	c.Lines = slices.Delete(c.Lines, i, i+1)
	return nil
}

// Clear empties the cart and forgets the customer.
func (c *Cart) Clear() {
	*c = Cart{}
}

// SetCustomer attaches a customer; an empty id detaches and drops any redemption.
func (c *Cart) SetCustomer(id string) {
	c.CustomerID = strings.TrimSpace(id)
	if c.CustomerID == "" {
		c.LoyaltyPoints = 0
	}
}

// ApplyCoupon records a coupon code once. Validity is decided at settlement.
func (c *Cart) ApplyCoupon(code string) error {
	code = coupon.NormalizeCode(code)
	if code == "" {
		return domain.Invalid("couponCode", "is required")
	}
	if !slices.Contains(c.CouponCodes, code) {
		c.CouponCodes = append(c.CouponCodes, code)
	}
	return nil
}

// RemoveCoupon forgets a coupon code.
func (c *Cart) RemoveCoupon(code string) {
	code = coupon.NormalizeCode(code)
	c.CouponCodes = slices.DeleteFunc(c.CouponCodes, func(s string) bool { return s == code })
}

// UsePoints requests a loyalty redemption.
func (c *Cart) UsePoints(points int64) error {
	if points < 0 {
		return domain.Invalid("loyaltyPoints", "must not be negative")
	}
	if points > 0 && c.CustomerID == "" {
		return domain.Invalid("loyaltyPoints", "redemption requires a customer")
	}
	c.LoyaltyPoints = points
	return nil
}

// VerifyAge records that the cashier checked the customer's ID.
func (c *Cart) VerifyAge() {
	c.AgeVerified = true
}

// Validate checks the cart is ready to be priced.
func (c *Cart) Validate() error {
	if len(c.Lines) == 0 {
		return domain.Invalid("items", "at least one item is required")
	}
	for _, l := range c.Lines {
		if strings.TrimSpace(l.ProductID) == "" {
			return domain.Invalid("items.productId", "is required")
		}
		if l.Discount.IsNegative() {
			return domain.Invalid("items.discount", "must not be negative")
		}
	}
	if c.LoyaltyPoints < 0 {
		return domain.Invalid("loyaltyPoints", "must not be negative")
	}
	return nil
}

func (c *Cart) checkIndex(i int) error {
	if i < 0 || i >= len(c.Lines) {
		return domain.Invalid("line", "no line at index %d", i)
	}
	return nil
}

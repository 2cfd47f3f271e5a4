package coupon

import (
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/grocery-pos/internal/domain"
)

// Context is the runtime information a coupon is validated against.
type Context struct {
	// Now must already be in the store's local time zone.
	Now      time.Time
	Customer *domain.Customer
	// CustomerUses is how many times the customer already redeemed the coupon.
	CustomerUses int
	// Subtotal is the merchandise amount after line discounts.
	Subtotal decimal.Decimal
}

// NormalizeCode canonicalises a coupon code for lookups.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Check re-validates a coupon. The zero reason means the coupon may be used.
func Check(c domain.Coupon, ctx Context) domain.CouponReason {
	if !c.Active {
		return domain.CouponInactive
	}
	if c.ValidFrom != nil && ctx.Now.Before(*c.ValidFrom) {
		return domain.CouponNotYetValid
	}
	if c.ValidTo != nil && ctx.Now.After(*c.ValidTo) {
		return domain.CouponExpired
	}
	if reason := CheckUsage(c, ctx.CustomerUses); reason != "" {
		return reason
	}
	if c.RequiresMembership && (ctx.Customer == nil || !ctx.Customer.Loyalty.Member()) {
		return domain.CouponMembershipRequired
	}
	if c.MinimumTier != "" {
		if ctx.Customer == nil || ctx.Customer.Loyalty.Tier.Rank() < c.MinimumTier.Rank() {
			return domain.CouponTierTooLow
		}
	}
	if len(c.ValidDays) > 0 && !slices.Contains(c.ValidDays, ctx.Now.Weekday()) {
		return domain.CouponDayRestricted
	}
	if c.Window != nil && !c.Window.Contains(ctx.Now) {
		return domain.CouponTimeRestricted
	}
	if ctx.Subtotal.LessThan(c.MinimumPurchase) {
		return domain.CouponMinPurchaseUnmet
	}
	return ""
}

// CheckUsage validates only the usage counters. Stores call it again while
// holding the coupon row so a cap is never exceeded under concurrency.
func CheckUsage(c domain.Coupon, customerUses int) domain.CouponReason {
	if c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit {
		return domain.CouponUsageExceeded
	}
	if c.PerCustomerLimit != nil && customerUses >= *c.PerCustomerLimit {
		return domain.CouponUsageExceeded
	}
	return ""
}

// Matches reports whether a line falls inside the coupon's product scope.
// Exclusions always win over the allow-lists.
func Matches(c domain.Coupon, l Line) bool {
	if slices.Contains(c.ExcludedProductIDs, l.ProductID) {
		return false
	}
	if l.CategoryID != "" && slices.Contains(c.ExcludedCategoryIDs, l.CategoryID) {
		return false
	}
	if len(c.ProductIDs) == 0 && len(c.CategoryIDs) == 0 {
		return true
	}
	if slices.Contains(c.ProductIDs, l.ProductID) {
		return true
	}
	return l.CategoryID != "" && slices.Contains(c.CategoryIDs, l.CategoryID)
}

// Scoped reports whether the coupon restricts the lines it applies to.
func Scoped(c domain.Coupon) bool {
	return len(c.ProductIDs) > 0 || len(c.CategoryIDs) > 0 ||
		len(c.ExcludedProductIDs) > 0 || len(c.ExcludedCategoryIDs) > 0
}

package coupon

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/grocery-pos/internal/domain"
)

func intPtr(v int) *int { return &v }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func baseCoupon() domain.Coupon {
	return domain.Coupon{ID: "c1", Code: "SAVE10", Type: domain.DiscountPercentage, Value: dec("10"), Active: true}
}

func TestCheckReasons(t *testing.T) {
	// Wednesday 10:30.
	now := time.Date(2026, 3, 4, 10, 30, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	member := &domain.Customer{ID: "cust", Loyalty: domain.LoyaltyAccount{Tier: domain.TierSilver, MembershipID: "M1"}}
	guest := &domain.Customer{ID: "guest"}

	cases := []struct {
		name   string
		mutate func(*domain.Coupon)
		ctx    Context
		want   domain.CouponReason
	}{
		{"valid", func(*domain.Coupon) {}, Context{}, ""},
		{"inactive", func(c *domain.Coupon) { c.Active = false }, Context{}, domain.CouponInactive},
		{"not yet valid", func(c *domain.Coupon) { c.ValidFrom = &future }, Context{}, domain.CouponNotYetValid},
		{"expired", func(c *domain.Coupon) { c.ValidTo = &past }, Context{}, domain.CouponExpired},
		{"global cap", func(c *domain.Coupon) { c.UsageLimit = intPtr(5); c.UsedCount = 5 }, Context{}, domain.CouponUsageExceeded},
		{"per customer cap", func(c *domain.Coupon) { c.PerCustomerLimit = intPtr(1) }, Context{CustomerUses: 1}, domain.CouponUsageExceeded},
		{"membership", func(c *domain.Coupon) { c.RequiresMembership = true }, Context{Customer: guest}, domain.CouponMembershipRequired},
		{"membership ok", func(c *domain.Coupon) { c.RequiresMembership = true }, Context{Customer: member}, ""},
		{"tier floor", func(c *domain.Coupon) { c.MinimumTier = domain.TierGold }, Context{Customer: member}, domain.CouponTierTooLow},
		{"tier without customer", func(c *domain.Coupon) { c.MinimumTier = domain.TierBronze }, Context{}, domain.CouponTierTooLow},
		{"weekday", func(c *domain.Coupon) { c.ValidDays = []time.Weekday{time.Saturday, time.Sunday} }, Context{}, domain.CouponDayRestricted},
		{"weekday ok", func(c *domain.Coupon) { c.ValidDays = []time.Weekday{time.Wednesday} }, Context{}, ""},
		{"time window", func(c *domain.Coupon) { c.Window = &domain.TimeWindow{StartMinute: 17 * 60, EndMinute: 20 * 60} }, Context{}, domain.CouponTimeRestricted},
		{"wrapping window", func(c *domain.Coupon) { c.Window = &domain.TimeWindow{StartMinute: 22 * 60, EndMinute: 11 * 60} }, Context{}, ""},
		{"minimum purchase", func(c *domain.Coupon) { c.MinimumPurchase = dec("50") }, Context{Subtotal: dec("49.99")}, domain.CouponMinPurchaseUnmet},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := baseCoupon()
			tc.mutate(&c)
			ctx := tc.ctx
			ctx.Now = now
			require.Equal(t, tc.want, Check(c, ctx))
		})
	}
}

func TestMatchesExclusionsWin(t *testing.T) {
	c := baseCoupon()
	c.CategoryIDs = []string{"produce"}
	c.ExcludedProductIDs = []string{"organic-kale"}

	require.True(t, Matches(c, Line{ProductID: "banana", CategoryID: "produce"}))
	require.False(t, Matches(c, Line{ProductID: "organic-kale", CategoryID: "produce"}))
	require.False(t, Matches(c, Line{ProductID: "milk", CategoryID: "dairy"}))
}

func TestNormalizeCode(t *testing.T) {
	require.Equal(t, "SAVE10", NormalizeCode("  save10 "))
}

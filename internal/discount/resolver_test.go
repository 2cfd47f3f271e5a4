package discount

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/grocery-pos/internal/domain"
	"github.com/noah-isme/grocery-pos/internal/loyalty"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var now = time.Date(2026, 5, 12, 14, 0, 0, 0, time.UTC)

func percentCoupon(id, code string, pct string, stackable bool) domain.Coupon {
	return domain.Coupon{ID: id, Code: code, Type: domain.DiscountPercentage, Value: dec(pct), Active: true, Stackable: stackable}
}

func TestResolveSave10(t *testing.T) {
	r := NewResolver(loyalty.DefaultPolicy())
	res, err := r.Resolve(Input{
		Subtotal: dec("60.00"),
		Coupons:  []Candidate{{Coupon: percentCoupon("c1", "SAVE10", "10", false)}},
		Now:      now,
	})
	require.NoError(t, err)
	require.True(t, res.CouponDiscount.Equal(dec("6.00")))
	require.True(t, res.Total.Equal(dec("6.00")))
	require.Len(t, res.Accepted(), 1)
}

func TestResolveSumsAllSources(t *testing.T) {
	r := NewResolver(loyalty.DefaultPolicy())
	cust := &domain.Customer{ID: "cust", Loyalty: domain.LoyaltyAccount{Points: 500, MembershipID: "M"}}
	res, err := r.Resolve(Input{
		Subtotal:        dec("50.00"),
		LineDiscount:    dec("5.00"),
		Coupons:         []Candidate{{Coupon: percentCoupon("c1", "SAVE10", "10", true)}},
		Customer:        cust,
		PointsRequested: 200,
		Now:             now,
	})
	require.NoError(t, err)
	require.True(t, res.CouponDiscount.Equal(dec("4.50")))
	require.True(t, res.LoyaltyDiscount.Equal(dec("2.00")))
	require.True(t, res.Total.Equal(dec("11.50")))
	require.Equal(t, int64(200), res.PointsUsed)
}

func TestResolveFirstCouponWinsOverLaterNonStackable(t *testing.T) {
	r := NewResolver(loyalty.DefaultPolicy())
	res, err := r.Resolve(Input{
		Subtotal: dec("100.00"),
		Coupons: []Candidate{
			{Coupon: percentCoupon("c1", "TEN", "10", false)},
			{Coupon: percentCoupon("c2", "TWENTY", "20", false)},
			{Coupon: percentCoupon("c3", "STACK5", "5", true)},
		},
		Now: now,
	})
	require.NoError(t, err)
	require.True(t, res.CouponDiscount.Equal(dec("10.00")))
	require.Len(t, res.Coupons, 3)
	require.Equal(t, domain.CouponNotStackable, res.Coupons[1].Reason)
	require.Equal(t, domain.CouponNotStackable, res.Coupons[2].Reason)
}

func TestResolveStackableCouponsCombine(t *testing.T) {
	r := NewResolver(loyalty.DefaultPolicy())
	fixed := domain.Coupon{ID: "c2", Code: "FIVE", Type: domain.DiscountFixedAmount, Value: dec("5.00"), Active: true, Stackable: true}
	res, err := r.Resolve(Input{
		Subtotal: dec("40.00"),
		Coupons: []Candidate{
			{Coupon: percentCoupon("c1", "TEN", "10", true)},
			{Coupon: fixed},
		},
		Now: now,
	})
	require.NoError(t, err)
	require.True(t, res.CouponDiscount.Equal(dec("9.00")))
}

func TestResolveCouponsNeverExceedSubtotal(t *testing.T) {
	r := NewResolver(loyalty.DefaultPolicy())
	big := domain.Coupon{ID: "c1", Code: "BIG", Type: domain.DiscountFixedAmount, Value: dec("8.00"), Active: true, Stackable: true}
	bigger := domain.Coupon{ID: "c2", Code: "BIGGER", Type: domain.DiscountFixedAmount, Value: dec("8.00"), Active: true, Stackable: true}
	res, err := r.Resolve(Input{
		Subtotal: dec("10.00"),
		Coupons:  []Candidate{{Coupon: big}, {Coupon: bigger}},
		Now:      now,
	})
	require.NoError(t, err)
	require.True(t, res.CouponDiscount.Equal(dec("10.00")))
	require.True(t, res.Coupons[1].Discount.Equal(dec("2.00")))
}

func TestResolveSkipsInvalidCouponUnlessStrict(t *testing.T) {
	r := NewResolver(loyalty.DefaultPolicy())
	inactive := percentCoupon("c1", "OLD", "10", false)
	inactive.Active = false

	res, err := r.Resolve(Input{Subtotal: dec("20.00"), Coupons: []Candidate{{Coupon: inactive}}, Now: now})
	require.NoError(t, err)
	require.True(t, res.CouponDiscount.IsZero())
	require.Equal(t, domain.CouponInactive, res.Coupons[0].Reason)

	_, err = r.Resolve(Input{Subtotal: dec("20.00"), Coupons: []Candidate{{Coupon: inactive}}, Now: now, Strict: true})
	var cerr *domain.InvalidCouponError
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, domain.CouponInactive, cerr.Reason)
}

func TestResolveRejectedCouponDoesNotBlockLaterOnes(t *testing.T) {
	r := NewResolver(loyalty.DefaultPolicy())
	expired := percentCoupon("c1", "OLD", "50", false)
	past := now.Add(-time.Hour)
	expired.ValidTo = &past
	res, err := r.Resolve(Input{
		Subtotal: dec("20.00"),
		Coupons:  []Candidate{{Coupon: expired}, {Coupon: percentCoupon("c2", "TEN", "10", false)}},
		Now:      now,
	})
	require.NoError(t, err)
	require.True(t, res.CouponDiscount.Equal(dec("2.00")))
}

func TestResolveInsufficientPoints(t *testing.T) {
	r := NewResolver(loyalty.DefaultPolicy())
	cust := &domain.Customer{ID: "cust", Loyalty: domain.LoyaltyAccount{Points: 300, MembershipID: "M"}}
	_, err := r.Resolve(Input{Subtotal: dec("50.00"), Customer: cust, PointsRequested: 500, Now: now})
	var perr *domain.InsufficientPointsError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, int64(500), perr.Requested)
	require.Equal(t, int64(300), perr.Available)
}

func TestResolveRedemptionNeedsCustomer(t *testing.T) {
	r := NewResolver(loyalty.DefaultPolicy())
	_, err := r.Resolve(Input{Subtotal: dec("50.00"), PointsRequested: 10, Now: now})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestResolveRedemptionCannotCoverTax(t *testing.T) {
	r := NewResolver(loyalty.DefaultPolicy())
	cust := &domain.Customer{ID: "cust", Loyalty: domain.LoyaltyAccount{Points: 1000, MembershipID: "M"}}
	_, err := r.Resolve(Input{Subtotal: dec("5.00"), Customer: cust, PointsRequested: 501, Now: now})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)

	res, err := r.Resolve(Input{Subtotal: dec("5.00"), Customer: cust, PointsRequested: 500, Now: now})
	require.NoError(t, err)
	require.True(t, res.LoyaltyDiscount.Equal(dec("5.00")))
}

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DiscountType enumerates coupon variants.
type DiscountType string

const (
	DiscountPercentage  DiscountType = "percentage"
	DiscountFixedAmount DiscountType = "fixed_amount"
	DiscountBOGO        DiscountType = "bogo"
	DiscountBuyXGetY    DiscountType = "buy_x_get_y"
)

// Valid reports whether d is a known discount type.
func (d DiscountType) Valid() bool {
	switch d {
	case DiscountPercentage, DiscountFixedAmount, DiscountBOGO, DiscountBuyXGetY:
		return true
	}
	return false
}

// TimeWindow restricts redemption to a time-of-day range expressed in minutes
// after local midnight. End before Start wraps past midnight.
type TimeWindow struct {
	StartMinute int `json:"startMinute"`
	EndMinute   int `json:"endMinute"`
}

// Coupon is the stored coupon definition. Usage counters are only changed by
// settlement commits.
type Coupon struct {
	ID                  string           `json:"id"`
	Code                string           `json:"code"`
	Description         string           `json:"description,omitempty"`
	Type                DiscountType     `json:"type"`
	Value               decimal.Decimal  `json:"value"`
	BuyQuantity         int              `json:"buyQuantity,omitempty"`
	GetQuantity         int              `json:"getQuantity,omitempty"`
	MinimumPurchase     decimal.Decimal  `json:"minimumPurchase"`
	MaximumDiscount     *decimal.Decimal `json:"maximumDiscount,omitempty"`
	ProductIDs          []string         `json:"productIds,omitempty"`
	CategoryIDs         []string         `json:"categoryIds,omitempty"`
	ExcludedProductIDs  []string         `json:"excludedProductIds,omitempty"`
	ExcludedCategoryIDs []string         `json:"excludedCategoryIds,omitempty"`
	MinimumTier         Tier             `json:"minimumTier,omitempty"`
	RequiresMembership  bool             `json:"requiresMembership"`
	ValidDays           []time.Weekday   `json:"validDays,omitempty"`
	Window              *TimeWindow      `json:"window,omitempty"`
	ValidFrom           *time.Time       `json:"validFrom,omitempty"`
	ValidTo             *time.Time       `json:"validTo,omitempty"`
	UsageLimit          *int             `json:"usageLimit,omitempty"`
	PerCustomerLimit    *int             `json:"perCustomerLimit,omitempty"`
	UsedCount           int              `json:"usedCount"`
	Stackable           bool             `json:"stackable"`
	Active              bool             `json:"active"`
}

// Contains reports whether t's local clock time falls inside the window.
func (w TimeWindow) Contains(t time.Time) bool {
	m := t.Hour()*60 + t.Minute()
	if w.EndMinute < w.StartMinute {
		return m >= w.StartMinute || m < w.EndMinute
	}
	return m >= w.StartMinute && m < w.EndMinute
}

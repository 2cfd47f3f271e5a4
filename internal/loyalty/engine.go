package loyalty

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/grocery-pos/internal/domain"
)

// Threshold maps a minimum lifetime spend to a tier.
type Threshold struct {
	Tier     domain.Tier
	MinSpend decimal.Decimal
}

// Policy holds the accrual and redemption constants. The zero value is not
// usable; start from DefaultPolicy.
type Policy struct {
	// EarnRate is the number of base points per currency unit of the final amount.
	EarnRate decimal.Decimal
	// PointValue is the currency value of one redeemed point.
	PointValue  decimal.Decimal
	Multipliers map[domain.Tier]decimal.Decimal
	// Thresholds are ordered from the highest tier down.
	Thresholds []Threshold
}

// DefaultPolicy returns the standard store loyalty programme.
func DefaultPolicy() Policy {
	return Policy{
		EarnRate:   decimal.RequireFromString("0.01"),
		PointValue: decimal.RequireFromString("0.01"),
		Multipliers: map[domain.Tier]decimal.Decimal{
			domain.TierBronze:   decimal.RequireFromString("1.0"),
			domain.TierSilver:   decimal.RequireFromString("1.25"),
			domain.TierGold:     decimal.RequireFromString("1.5"),
			domain.TierPlatinum: decimal.RequireFromString("2.0"),
		},
		Thresholds: []Threshold{
			{Tier: domain.TierPlatinum, MinSpend: decimal.NewFromInt(5000)},
			{Tier: domain.TierGold, MinSpend: decimal.NewFromInt(2500)},
			{Tier: domain.TierSilver, MinSpend: decimal.NewFromInt(1000)},
		},
	}
}

// Multiplier returns the accrual multiplier of a tier. Unknown tiers earn at the base rate.
func (p Policy) Multiplier(t domain.Tier) decimal.Decimal {
	if m, ok := p.Multipliers[t]; ok {
		return m
	}
	return decimal.NewFromInt(1)
}

// PointsEarned applies floor(floor(amount * EarnRate) * multiplier). Accounts
// without a membership id earn nothing.
func (p Policy) PointsEarned(acct domain.LoyaltyAccount, amount decimal.Decimal) int64 {
	if !acct.Member() || !amount.IsPositive() {
		return 0
	}
	base := amount.Mul(p.EarnRate).Floor()
	return base.Mul(p.Multiplier(acct.Tier)).Floor().IntPart()
}

// TierForSpend evaluates the tier earned by a lifetime spend.
func (p Policy) TierForSpend(spend decimal.Decimal) domain.Tier {
	for _, th := range p.Thresholds {
		if spend.GreaterThanOrEqual(th.MinSpend) {
			return th.Tier
		}
	}
	return domain.TierBronze
}

// RedemptionValue returns the currency value of points, rounded to cents.
func (p Policy) RedemptionValue(points int64) decimal.Decimal {
	if points <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(points).Mul(p.PointValue).Round(2)
}

// CheckRedemption validates an all-or-nothing redemption against the balance.
func (p Policy) CheckRedemption(acct domain.LoyaltyAccount, points int64) error {
	if points < 0 {
		return domain.Invalid("loyaltyPointsToUse", "must not be negative")
	}
	if points > acct.Points {
		return &domain.InsufficientPointsError{Requested: points, Available: acct.Points}
	}
	return nil
}

// Delta is the loyalty effect of one settlement.
type Delta struct {
	Earned       int64
	Redeemed     int64
	Spend        decimal.Decimal
	Transactions int
	// TierBefore is the tier held before the settlement. Sequence is the
	// account's transaction count right after it was applied.
	TierBefore domain.Tier
	Sequence   int
}

// Apply commits a settlement delta: redemption is deducted, earned points are
// added, spend and count grow and the tier is recomputed from the new spend.
func (p Policy) Apply(acct *domain.LoyaltyAccount, d Delta) error {
	if err := p.CheckRedemption(*acct, d.Redeemed); err != nil {
		return err
	}
	acct.Points = acct.Points - d.Redeemed + d.Earned
	acct.LifetimeSpend = acct.LifetimeSpend.Add(d.Spend)
	acct.TransactionCount += d.Transactions
	acct.Tier = p.TierForSpend(acct.LifetimeSpend)
	return nil
}

// Reverse undoes a previously applied delta. Earned points already spent
// elsewhere cannot be clawed back below zero. The pre-settlement tier is
// restored when the account has seen no later settlement; otherwise the tier
// is recomputed from the remaining spend.
func (p Policy) Reverse(acct *domain.LoyaltyAccount, d Delta) {
	untouched := d.TierBefore != "" && acct.TransactionCount == d.Sequence
	points := acct.Points - d.Earned
	if points < 0 {
		points = 0
	}
	acct.Points = points + d.Redeemed
	acct.LifetimeSpend = acct.LifetimeSpend.Sub(d.Spend)
	if acct.LifetimeSpend.IsNegative() {
		acct.LifetimeSpend = decimal.Zero
	}
	acct.TransactionCount -= d.Transactions
	if acct.TransactionCount < 0 {
		acct.TransactionCount = 0
	}
	if untouched {
		acct.Tier = d.TierBefore
		return
	}
	acct.Tier = p.TierForSpend(acct.LifetimeSpend)
}

package loyalty

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/grocery-pos/internal/domain"
)

func TestPointsEarnedDoubleFloor(t *testing.T) {
	p := DefaultPolicy()
	gold := domain.LoyaltyAccount{Tier: domain.TierGold, MembershipID: "M-1"}
	cases := []struct {
		spend string
		want  int64
	}{
		{"99", 0},
		{"100", 1},
		{"199", 1},
		{"200", 3},
		{"99.99", 0},
	}
	for _, c := range cases {
		got := p.PointsEarned(gold, decimal.RequireFromString(c.spend))
		require.Equal(t, c.want, got, "spend %s", c.spend)
	}
}

func TestPointsEarnedRequiresMembership(t *testing.T) {
	p := DefaultPolicy()
	acct := domain.LoyaltyAccount{Tier: domain.TierPlatinum}
	require.Zero(t, p.PointsEarned(acct, decimal.NewFromInt(1000)))
}

func TestMultipliers(t *testing.T) {
	p := DefaultPolicy()
	spend := decimal.NewFromInt(400)
	for tier, want := range map[domain.Tier]int64{
		domain.TierBronze:   4,
		domain.TierSilver:   5,
		domain.TierGold:     6,
		domain.TierPlatinum: 8,
	} {
		acct := domain.LoyaltyAccount{Tier: tier, MembershipID: "M"}
		require.Equal(t, want, p.PointsEarned(acct, spend), string(tier))
	}
}

func TestTierForSpend(t *testing.T) {
	p := DefaultPolicy()
	require.Equal(t, domain.TierBronze, p.TierForSpend(decimal.RequireFromString("999.99")))
	require.Equal(t, domain.TierSilver, p.TierForSpend(decimal.NewFromInt(1000)))
	require.Equal(t, domain.TierGold, p.TierForSpend(decimal.NewFromInt(2500)))
	require.Equal(t, domain.TierPlatinum, p.TierForSpend(decimal.NewFromInt(5000)))
}

func TestApplyPromotesAfterEarningAtOldMultiplier(t *testing.T) {
	p := DefaultPolicy()
	acct := domain.LoyaltyAccount{Tier: domain.TierSilver, MembershipID: "M", Points: 10, LifetimeSpend: decimal.NewFromInt(2400)}
	earned := p.PointsEarned(acct, decimal.NewFromInt(200))
	require.Equal(t, int64(2), earned)

	require.NoError(t, p.Apply(&acct, Delta{Earned: earned, Redeemed: 5, Spend: decimal.NewFromInt(200), Transactions: 1}))
	require.Equal(t, int64(7), acct.Points)
	require.Equal(t, domain.TierGold, acct.Tier)
	require.Equal(t, 1, acct.TransactionCount)
}

func TestApplyRejectsOverRedemption(t *testing.T) {
	p := DefaultPolicy()
	acct := domain.LoyaltyAccount{Points: 300}
	err := p.Apply(&acct, Delta{Redeemed: 500})
	var perr *domain.InsufficientPointsError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, int64(300), perr.Available)
	require.Equal(t, int64(300), acct.Points)
}

func TestReverseRestoresAccount(t *testing.T) {
	p := DefaultPolicy()
	before := domain.LoyaltyAccount{Tier: domain.TierSilver, MembershipID: "M", Points: 50, LifetimeSpend: decimal.NewFromInt(2400), TransactionCount: 3}
	acct := before
	d := Delta{Earned: 2, Redeemed: 20, Spend: decimal.NewFromInt(200), Transactions: 1}
	require.NoError(t, p.Apply(&acct, d))
	p.Reverse(&acct, d)
	require.Equal(t, before.Points, acct.Points)
	require.Equal(t, before.Tier, acct.Tier)
	require.Equal(t, before.TransactionCount, acct.TransactionCount)
	require.True(t, before.LifetimeSpend.Equal(acct.LifetimeSpend))
}

func TestReverseRestoresGrantedTier(t *testing.T) {
	p := DefaultPolicy()
	before := domain.LoyaltyAccount{Tier: domain.TierGold, MembershipID: "M", Points: 10, LifetimeSpend: decimal.NewFromInt(100), TransactionCount: 4}
	acct := before
	d := Delta{Earned: 0, Spend: decimal.NewFromInt(10), Transactions: 1, TierBefore: acct.Tier}
	require.NoError(t, p.Apply(&acct, d))
	require.Equal(t, domain.TierBronze, acct.Tier)
	d.Sequence = acct.TransactionCount

	p.Reverse(&acct, d)
	require.Equal(t, domain.TierGold, acct.Tier)
	require.Equal(t, before.Points, acct.Points)
	require.Equal(t, before.TransactionCount, acct.TransactionCount)
	require.True(t, before.LifetimeSpend.Equal(acct.LifetimeSpend))
}

func TestReverseAfterLaterSaleRecomputesTier(t *testing.T) {
	p := DefaultPolicy()
	acct := domain.LoyaltyAccount{Tier: domain.TierGold, MembershipID: "M", LifetimeSpend: decimal.NewFromInt(100), TransactionCount: 4}
	first := Delta{Spend: decimal.NewFromInt(10), Transactions: 1, TierBefore: acct.Tier}
	require.NoError(t, p.Apply(&acct, first))
	first.Sequence = acct.TransactionCount
	require.NoError(t, p.Apply(&acct, Delta{Spend: decimal.NewFromInt(5), Transactions: 1, TierBefore: acct.Tier}))

	p.Reverse(&acct, first)
	require.Equal(t, domain.TierBronze, acct.Tier)
	require.Equal(t, 5, acct.TransactionCount)
}

func TestRedemptionValue(t *testing.T) {
	p := DefaultPolicy()
	require.True(t, p.RedemptionValue(250).Equal(decimal.RequireFromString("2.50")))
	require.True(t, p.RedemptionValue(0).IsZero())
}

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tier is a loyalty tier.
type Tier string

const (
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
)

// Rank orders tiers so eligibility floors can be compared. Unknown tiers rank below bronze.
func (t Tier) Rank() int {
	switch t {
	case TierBronze:
		return 1
	case TierSilver:
		return 2
	case TierGold:
		return 3
	case TierPlatinum:
		return 4
	default:
		return 0
	}
}

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	return t.Rank() > 0
}

// LoyaltyAccount holds the loyalty state of a customer. Points never drop below zero.
type LoyaltyAccount struct {
	Points           int64           `json:"points"`
	Tier             Tier            `json:"tier"`
	MembershipID     string          `json:"membershipId,omitempty"`
	LifetimeSpend    decimal.Decimal `json:"lifetimeSpend"`
	TransactionCount int             `json:"transactionCount"`
}

// Member reports whether the account has been enrolled.
func (a LoyaltyAccount) Member() bool {
	return a.MembershipID != ""
}

// PurchaseHistory aggregates a customer's completed purchases.
type PurchaseHistory struct {
	TotalSpent     decimal.Decimal `json:"totalSpent"`
	PurchaseCount  int             `json:"purchaseCount"`
	LastPurchaseAt *time.Time      `json:"lastPurchaseAt,omitempty"`
}

// Customer is the directory record consumed and written back by settlement.
type Customer struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	TaxExempt bool            `json:"taxExempt"`
	Loyalty   LoyaltyAccount  `json:"loyalty"`
	History   PurchaseHistory `json:"history"`
}

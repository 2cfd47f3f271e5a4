// Package store defines the unit of work shared by the memory and postgres
// backends. A Commit names every resource a settlement touches; backends lock
// exactly those rows, run the mutators against the current values and either
// persist all of them or none.
package store

import (
	"github.com/noah-isme/grocery-pos/internal/domain"
)

// StockMutation changes one product's inventory record.
type StockMutation struct {
	ProductID string
	Apply     func(p *domain.Product) error
}

// CouponMutation increments one coupon's usage. CustomerUses is the number of
// prior redemptions by the committing customer, counted under the same lock.
type CouponMutation struct {
	CouponID string
	Apply    func(c *domain.Coupon, customerUses int) error
}

// CustomerMutation changes a customer's loyalty account and purchase history.
type CustomerMutation struct {
	CustomerID string
	Apply      func(c *domain.Customer) error
}

// Transition moves an existing transaction to a new status.
type Transition struct {
	TransactionID string
	Apply         func(t *domain.Transaction) error
}

// Commit is applied atomically. Insert, when set, is stored as a new
// transaction and linked to every coupon redemption in Coupons.
type Commit struct {
	Insert     *domain.Transaction
	Transition *Transition
	Stock      []StockMutation
	Coupons    []CouponMutation
	Customer   *CustomerMutation
}

// Keys returns the lock keys of every resource the commit touches.
func (c Commit) Keys() []string {
	keys := make([]string, 0, len(c.Stock)+len(c.Coupons)+2)
	for _, m := range c.Stock {
		keys = append(keys, "product:"+m.ProductID)
	}
	for _, m := range c.Coupons {
		keys = append(keys, "coupon:"+m.CouponID)
	}
	if c.Customer != nil {
		keys = append(keys, "customer:"+c.Customer.CustomerID)
	}
	if c.Transition != nil {
		keys = append(keys, "transaction:"+c.Transition.TransactionID)
	}
	return keys
}

// CustomerID returns the customer whose coupon usage is counted, if any.
func (c Commit) CustomerID() string {
	if c.Insert != nil {
		return c.Insert.CustomerID
	}
	return ""
}

package postgres

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/grocery-pos/internal/domain"
	"github.com/noah-isme/grocery-pos/internal/store"
)

// locked holds the rows of one commit, read with FOR UPDATE.
type locked struct {
	products    map[string]domain.Product
	stockBefore map[string]decimal.Decimal
	coupons     map[string]domain.Coupon
	customer    *domain.Customer
	transaction *domain.Transaction
}

// Commit applies c in a single database transaction. Every touched row is
// locked in sorted key order before any mutator runs, so two commits that
// share rows cannot deadlock.
func (s *Store) Commit(ctx context.Context, c store.Commit) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		rows, err := lockRows(ctx, tx, c)
		if err != nil {
			return err
		}

		touched := make([]string, 0, len(c.Stock))
		for _, m := range c.Stock {
			p := rows.products[m.ProductID]
			if err := m.Apply(&p); err != nil {
				return err
			}
			rows.products[m.ProductID] = p
			if !slices.Contains(touched, m.ProductID) {
				touched = append(touched, m.ProductID)
			}
		}

		customerID := c.CustomerID()
		redeemed := make([]string, 0, len(c.Coupons))
		for _, m := range c.Coupons {
			cp := rows.coupons[m.CouponID]
			uses := 0
			if customerID != "" {
				if uses, err = couponUsage(ctx, tx, m.CouponID, customerID); err != nil {
					return err
				}
			}
			if err := m.Apply(&cp, uses); err != nil {
				return err
			}
			rows.coupons[m.CouponID] = cp
			redeemed = append(redeemed, m.CouponID)
		}

		if c.Customer != nil {
			if err := c.Customer.Apply(rows.customer); err != nil {
				return err
			}
		}
		if c.Transition != nil {
			if err := c.Transition.Apply(rows.transaction); err != nil {
				return err
			}
		}

		if c.Insert != nil {
			if err := insertTransaction(ctx, tx, *c.Insert); err != nil {
				return err
			}
		}
		for _, id := range touched {
			p := rows.products[id]
			tag, err := tx.Exec(ctx, `
				UPDATE products SET stock_quantity = $2, updated_at = now()
				WHERE id = $1 AND stock_quantity = $3 AND $2 >= 0
			`, id, p.Inventory.StockQuantity, rows.stockBefore[id])
			if err != nil {
				return err
			}
			if tag.RowsAffected() != 1 {
				return &domain.InsufficientStockError{ProductID: id, Available: rows.stockBefore[id], Requested: rows.stockBefore[id].Sub(p.Inventory.StockQuantity)}
			}
		}
		for _, id := range redeemed {
			cp := rows.coupons[id]
			tag, err := tx.Exec(ctx, `
				UPDATE coupons SET used_count = $2
				WHERE id = $1 AND (usage_limit IS NULL OR $2 <= usage_limit)
			`, id, cp.UsedCount)
			if err != nil {
				return err
			}
			if tag.RowsAffected() != 1 {
				return &domain.InvalidCouponError{Code: cp.Code, Reason: domain.CouponUsageExceeded}
			}
			if c.Insert != nil && customerID != "" {
				if _, err := tx.Exec(ctx, `
					INSERT INTO coupon_redemptions (coupon_id, customer_id, transaction_id) VALUES ($1, $2, $3)
				`, id, customerID, c.Insert.ID); err != nil {
					return err
				}
			}
		}
		if rows.customer != nil {
			cust := *rows.customer
			if _, err := tx.Exec(ctx, `
				UPDATE customers SET points = $2, tier = $3, lifetime_spend = $4, transaction_count = $5,
					total_spent = $6, purchase_count = $7, last_purchase_at = $8, updated_at = now()
				WHERE id = $1
			`, cust.ID, cust.Loyalty.Points, string(cust.Loyalty.Tier), cust.Loyalty.LifetimeSpend,
				cust.Loyalty.TransactionCount, cust.History.TotalSpent, cust.History.PurchaseCount,
				cust.History.LastPurchaseAt); err != nil {
				return err
			}
		}
		if rows.transaction != nil {
			if err := updateTransaction(ctx, tx, *rows.transaction); err != nil {
				return err
			}
		}
		return nil
	})
}

func lockRows(ctx context.Context, tx pgx.Tx, c store.Commit) (*locked, error) {
	rows := &locked{
		products:    make(map[string]domain.Product),
		stockBefore: make(map[string]decimal.Decimal),
		coupons:     make(map[string]domain.Coupon),
	}
	keys := c.Keys()
	slices.Sort(keys)
	keys = slices.Compact(keys)
	for _, key := range keys {
		kind, id, _ := strings.Cut(key, ":")
		switch kind {
		case "product":
			p, err := getProduct(ctx, tx, id, true)
			if err != nil {
				return nil, err
			}
			rows.products[id] = p
			rows.stockBefore[id] = p.Inventory.StockQuantity
		case "coupon":
			cp, err := scanCoupon(tx.QueryRow(ctx, `SELECT id, code, definition, used_count FROM coupons WHERE id = $1 FOR UPDATE`, id))
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return nil, domain.NotFound("coupon", id)
				}
				return nil, err
			}
			rows.coupons[id] = cp
		case "customer":
			cust, err := getCustomer(ctx, tx, id, true)
			if err != nil {
				return nil, err
			}
			rows.customer = &cust
		case "transaction":
			t, err := getTransaction(ctx, tx, id, true)
			if err != nil {
				return nil, err
			}
			rows.transaction = &t
		}
	}
	return rows, nil
}

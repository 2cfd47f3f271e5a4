package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/grocery-pos/internal/domain"
	"github.com/noah-isme/grocery-pos/internal/store"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func seeded(t *testing.T) *Store {
	t.Helper()
	s := New()
	require.NoError(t, s.Seed(context.Background()))
	return s
}

func TestCommitIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)
	before, err := s.GetProduct(ctx, "milk-1gal")
	require.NoError(t, err)

	boom := errors.New("customer rejected")
	err = s.Commit(ctx, store.Commit{
		Insert: &domain.Transaction{ID: "txn-1", CustomerID: "cust-ana"},
		Stock: []store.StockMutation{{ProductID: "milk-1gal", Apply: func(p *domain.Product) error {
			p.Inventory.StockQuantity = p.Inventory.StockQuantity.Sub(d("2"))
			return nil
		}}},
		Coupons: []store.CouponMutation{{CouponID: "cpn-save10", Apply: func(c *domain.Coupon, _ int) error {
			c.UsedCount++
			return nil
		}}},
		Customer: &store.CustomerMutation{CustomerID: "cust-ana", Apply: func(*domain.Customer) error { return boom }},
	})
	require.ErrorIs(t, err, boom)

	after, err := s.GetProduct(ctx, "milk-1gal")
	require.NoError(t, err)
	require.True(t, before.Inventory.StockQuantity.Equal(after.Inventory.StockQuantity))
	c, err := s.FindCouponByCode(ctx, "save10")
	require.NoError(t, err)
	require.Zero(t, c.UsedCount)
	_, err = s.GetTransaction(ctx, "txn-1")
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestCommitCountsRedemptionsPerCustomer(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)
	var seenUses []int
	commit := func(id string) error {
		return s.Commit(ctx, store.Commit{
			Insert: &domain.Transaction{ID: id, CustomerID: "cust-ana"},
			Coupons: []store.CouponMutation{{CouponID: "cpn-five", Apply: func(c *domain.Coupon, uses int) error {
				seenUses = append(seenUses, uses)
				c.UsedCount++
				return nil
			}}},
		})
	}
	require.NoError(t, commit("t1"))
	require.NoError(t, commit("t2"))
	require.Equal(t, []int{0, 1}, seenUses)

	uses, err := s.CouponUsage(ctx, "cpn-five", "cust-ana")
	require.NoError(t, err)
	require.Equal(t, 2, uses)
}

func TestCommitRejectsDuplicateTransaction(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)
	require.NoError(t, s.Commit(ctx, store.Commit{Insert: &domain.Transaction{ID: "dup"}}))
	err := s.Commit(ctx, store.Commit{Insert: &domain.Transaction{ID: "dup"}})
	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)
}

func TestUpdateProductSerialisesWriters(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)
	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.UpdateProduct(ctx, "bread-wheat", func(p *domain.Product) error {
				p.Inventory.StockQuantity = p.Inventory.StockQuantity.Sub(d("0.5"))
				return nil
			})
			require.NoError(t, err)
		}()
	}
	wg.Wait()
	p, err := s.GetProduct(ctx, "bread-wheat")
	require.NoError(t, err)
	require.True(t, p.Inventory.StockQuantity.Equal(d("10")), p.Inventory.StockQuantity.String())
}

func TestCreateCouponUniqueCode(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)
	_, err := s.CreateCoupon(ctx, domain.Coupon{ID: "other", Code: " save10 "})
	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)
}

func TestStoredTransactionIsACopy(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)
	txn := &domain.Transaction{ID: "t", Items: []domain.TransactionItem{{ProductID: "milk-1gal", Name: "Whole Milk 1 gal"}}}
	require.NoError(t, s.Commit(ctx, store.Commit{Insert: txn}))
	txn.Items[0].Name = "edited"

	got, err := s.GetTransaction(ctx, "t")
	require.NoError(t, err)
	require.Equal(t, "Whole Milk 1 gal", got.Items[0].Name)
}

package postgres

import (
	"context"
	"errors"
	"net"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/grocery-pos/internal/domain"
	"github.com/noah-isme/grocery-pos/internal/store"
)

func TestMigrateURL(t *testing.T) {
	require.Equal(t, "pgx5://u:p@db:5432/pos?sslmode=disable", migrateURL("postgres://u:p@db:5432/pos?sslmode=disable"))
	require.Equal(t, "pgx5://db/pos", migrateURL("postgresql://db/pos"))
	require.Equal(t, "pgx5://db/pos", migrateURL("pgx5://db/pos"))
}

func TestClassify(t *testing.T) {
	require.NoError(t, classify(nil))

	unique := &pgconn.PgError{Code: "23505", TableName: "coupons", ConstraintName: "coupons_code_key"}
	var conflict *domain.ConflictError
	require.ErrorAs(t, classify(unique), &conflict)
	require.Equal(t, "coupons", conflict.Resource)

	check := &pgconn.PgError{Code: "23514"}
	require.Equal(t, check, classify(check))

	dial := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	require.ErrorIs(t, classify(dial), domain.ErrStoreUnavailable)

	notFound := domain.NotFound("product", "x")
	require.Equal(t, notFound, classify(notFound))
}

// integrationStore connects to TEST_DATABASE_URL, migrates it and loads the
// demo data under fresh ids.
func integrationStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	require.NoError(t, Migrate(url))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s, err := New(ctx, Options{URL: url, ApplicationName: "grocery-pos-test"})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestIntegrationCommitIsAllOrNothing(t *testing.T) {
	s := integrationStore(t)
	ctx := context.Background()

	suffix := uuid.NewString()[:8]
	p := store.DemoProducts()[1]
	p.ID = "milk-" + suffix
	require.NoError(t, s.PutProduct(ctx, p))
	c := store.DemoCustomers()[0]
	c.ID = "ana-" + suffix
	require.NoError(t, s.PutCustomer(ctx, c))

	boom := errors.New("boom")
	err := s.Commit(ctx, store.Commit{
		Stock: []store.StockMutation{{ProductID: p.ID, Apply: func(prod *domain.Product) error {
			prod.Inventory.StockQuantity = prod.Inventory.StockQuantity.Sub(decimal.NewFromInt(2))
			return nil
		}}},
		Customer: &store.CustomerMutation{CustomerID: c.ID, Apply: func(*domain.Customer) error { return boom }},
	})
	require.ErrorIs(t, err, boom)

	got, err := s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	require.True(t, got.Inventory.StockQuantity.Equal(p.Inventory.StockQuantity))
}

func TestIntegrationCommitPersistsSale(t *testing.T) {
	s := integrationStore(t)
	ctx := context.Background()

	suffix := uuid.NewString()[:8]
	p := store.DemoProducts()[3]
	p.ID = "soap-" + suffix
	require.NoError(t, s.PutProduct(ctx, p))
	c := store.DemoCustomers()[0]
	c.ID = "ana-" + suffix
	require.NoError(t, s.PutCustomer(ctx, c))
	cp := store.DemoCoupons()[0]
	cp.ID, cp.Code = "cpn-"+suffix, "SAVE-"+suffix
	_, err := s.CreateCoupon(ctx, cp)
	require.NoError(t, err)

	_, err = s.CreateCoupon(ctx, cp)
	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)

	now := time.Now().UTC().Truncate(time.Millisecond)
	txn := domain.Transaction{
		ID: uuid.NewString(), Kind: domain.KindSale, Status: domain.StatusCompleted, CashierID: "cashier-1",
		CustomerID: c.ID, Total: decimal.RequireFromString("10.80"), CreatedAt: now, CompletedAt: &now,
	}
	err = s.Commit(ctx, store.Commit{
		Insert: &txn,
		Stock: []store.StockMutation{{ProductID: p.ID, Apply: func(prod *domain.Product) error {
			prod.Inventory.StockQuantity = prod.Inventory.StockQuantity.Sub(decimal.NewFromInt(2))
			return nil
		}}},
		Coupons: []store.CouponMutation{{CouponID: cp.ID, Apply: func(c *domain.Coupon, uses int) error {
			if uses != 0 {
				return errors.New("unexpected prior use")
			}
			c.UsedCount++
			return nil
		}}},
		Customer: &store.CustomerMutation{CustomerID: c.ID, Apply: func(cust *domain.Customer) error {
			cust.Loyalty.Points += 10
			return nil
		}},
	})
	require.NoError(t, err)

	stored, err := s.GetTransaction(ctx, txn.ID)
	require.NoError(t, err)
	require.Equal(t, c.ID, stored.CustomerID)
	require.True(t, stored.Total.Equal(txn.Total))

	uses, err := s.CouponUsage(ctx, cp.ID, c.ID)
	require.NoError(t, err)
	require.Equal(t, 1, uses)

	gotCoupon, err := s.FindCouponByCode(ctx, cp.Code)
	require.NoError(t, err)
	require.Equal(t, 1, gotCoupon.UsedCount)

	gotCustomer, err := s.GetCustomer(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, c.Loyalty.Points+10, gotCustomer.Loyalty.Points)

	gotProduct, err := s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	require.True(t, gotProduct.Inventory.StockQuantity.Equal(p.Inventory.StockQuantity.Sub(decimal.NewFromInt(2))))
}

// Package postgres is the durable store. Each commit runs in one database
// transaction that locks the touched rows in key order.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/grocery-pos/internal/audit"
	"github.com/noah-isme/grocery-pos/internal/coupon"
	"github.com/noah-isme/grocery-pos/internal/domain"
	"github.com/noah-isme/grocery-pos/internal/events"
	"github.com/noah-isme/grocery-pos/internal/obs"
)

// Options configures the connection pool.
type Options struct {
	URL             string
	ApplicationName string
	MaxConns        int32
	Trace           bool
}

type Store struct {
	pool *pgxpool.Pool
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// New opens a pool and verifies the connection.
func New(ctx context.Context, opts Options) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if opts.Trace {
		cfg.ConnConfig.Tracer = obs.PGXTracer{}
	}
	if opts.ApplicationName != "" {
		cfg.ConnConfig.RuntimeParams["application_name"] = opts.ApplicationName
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, classify(err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, classify(err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool wraps an existing pool.
func NewWithPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return classify(s.pool.Ping(ctx))
}

const productColumns = `id, plu, barcode, name, category_id, price_type, price, taxable, tax_rate,
	minimum_age, active, stock_quantity, stock_capacity, low_stock_threshold, reorder_point`

func scanProduct(row pgx.Row) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.PLU, &p.Barcode, &p.Name, &p.CategoryID, &p.PriceType, &p.Price, &p.Taxable, &p.TaxRate,
		&p.MinimumAge, &p.Active, &p.Inventory.StockQuantity, &p.Inventory.StockCapacity,
		&p.Inventory.LowStockThreshold, &p.Inventory.ReorderPoint)
	return p, err
}

func getProduct(ctx context.Context, q querier, id string, forUpdate bool) (domain.Product, error) {
	sql := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	p, err := scanProduct(q.QueryRow(ctx, sql, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Product{}, domain.NotFound("product", id)
	}
	return p, classify(err)
}

func (s *Store) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	return getProduct(ctx, s.pool, id, false)
}

// PutProduct inserts or replaces a catalog entry.
func (s *Store) PutProduct(ctx context.Context, p domain.Product) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (id) DO UPDATE SET
			plu = EXCLUDED.plu, barcode = EXCLUDED.barcode, name = EXCLUDED.name,
			category_id = EXCLUDED.category_id, price_type = EXCLUDED.price_type, price = EXCLUDED.price,
			taxable = EXCLUDED.taxable, tax_rate = EXCLUDED.tax_rate, minimum_age = EXCLUDED.minimum_age,
			active = EXCLUDED.active, stock_quantity = EXCLUDED.stock_quantity,
			stock_capacity = EXCLUDED.stock_capacity, low_stock_threshold = EXCLUDED.low_stock_threshold,
			reorder_point = EXCLUDED.reorder_point, updated_at = now()
	`, p.ID, p.PLU, p.Barcode, p.Name, p.CategoryID, string(p.PriceType), p.Price, p.Taxable, p.TaxRate,
		p.MinimumAge, p.Active, p.Inventory.StockQuantity, p.Inventory.StockCapacity,
		p.Inventory.LowStockThreshold, p.Inventory.ReorderPoint)
	return classify(err)
}

// UpdateProduct runs fn against the row while it is locked.
func (s *Store) UpdateProduct(ctx context.Context, id string, fn func(*domain.Product) error) (domain.Product, error) {
	var out domain.Product
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		p, err := getProduct(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if err := fn(&p); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `
			UPDATE products
			SET stock_quantity = $2, stock_capacity = $3, low_stock_threshold = $4, reorder_point = $5, updated_at = now()
			WHERE id = $1
		`, id, p.Inventory.StockQuantity, p.Inventory.StockCapacity, p.Inventory.LowStockThreshold, p.Inventory.ReorderPoint)
		if err != nil {
			return err
		}
		if tag.RowsAffected() != 1 {
			return domain.NotFound("product", id)
		}
		out = p
		return nil
	})
	return out, err
}

const customerColumns = `id, name, tax_exempt, points, tier, membership_id, lifetime_spend, transaction_count,
	total_spent, purchase_count, last_purchase_at`

func getCustomer(ctx context.Context, q querier, id string, forUpdate bool) (domain.Customer, error) {
	sql := `SELECT ` + customerColumns + ` FROM customers WHERE id = $1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	var c domain.Customer
	err := q.QueryRow(ctx, sql, id).Scan(&c.ID, &c.Name, &c.TaxExempt, &c.Loyalty.Points, &c.Loyalty.Tier,
		&c.Loyalty.MembershipID, &c.Loyalty.LifetimeSpend, &c.Loyalty.TransactionCount,
		&c.History.TotalSpent, &c.History.PurchaseCount, &c.History.LastPurchaseAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Customer{}, domain.NotFound("customer", id)
	}
	return c, classify(err)
}

func (s *Store) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	return getCustomer(ctx, s.pool, id, false)
}

// PutCustomer inserts or replaces a customer.
func (s *Store) PutCustomer(ctx context.Context, c domain.Customer) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO customers (`+customerColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, tax_exempt = EXCLUDED.tax_exempt, points = EXCLUDED.points,
			tier = EXCLUDED.tier, membership_id = EXCLUDED.membership_id,
			lifetime_spend = EXCLUDED.lifetime_spend, transaction_count = EXCLUDED.transaction_count,
			total_spent = EXCLUDED.total_spent, purchase_count = EXCLUDED.purchase_count,
			last_purchase_at = EXCLUDED.last_purchase_at, updated_at = now()
	`, customerArgs(c)...)
	return classify(err)
}

func customerArgs(c domain.Customer) []any {
	return []any{c.ID, c.Name, c.TaxExempt, c.Loyalty.Points, string(c.Loyalty.Tier), c.Loyalty.MembershipID,
		c.Loyalty.LifetimeSpend, c.Loyalty.TransactionCount, c.History.TotalSpent, c.History.PurchaseCount,
		c.History.LastPurchaseAt}
}

func scanCoupon(row pgx.Row) (domain.Coupon, error) {
	var (
		c    domain.Coupon
		id   string
		code string
		used int
		def  []byte
	)
	if err := row.Scan(&id, &code, &def, &used); err != nil {
		return domain.Coupon{}, err
	}
	if err := json.Unmarshal(def, &c); err != nil {
		return domain.Coupon{}, fmt.Errorf("decode coupon %s: %w", id, err)
	}
	c.ID, c.Code, c.UsedCount = id, code, used
	return c, nil
}

// CreateCoupon stores a new coupon; codes are unique case-insensitively.
func (s *Store) CreateCoupon(ctx context.Context, c domain.Coupon) (domain.Coupon, error) {
	c.Code = coupon.NormalizeCode(c.Code)
	def, err := json.Marshal(c)
	if err != nil {
		return domain.Coupon{}, err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO coupons (id, code, definition, usage_limit, used_count)
		VALUES ($1, $2, $3, $4, $5)
	`, c.ID, c.Code, def, c.UsageLimit, c.UsedCount)
	if isUniqueViolation(err) {
		return domain.Coupon{}, &domain.ConflictError{Resource: "coupon", Key: c.Code}
	}
	if err != nil {
		return domain.Coupon{}, classify(err)
	}
	return c, nil
}

func (s *Store) FindCouponByCode(ctx context.Context, code string) (domain.Coupon, error) {
	code = coupon.NormalizeCode(code)
	c, err := scanCoupon(s.pool.QueryRow(ctx, `SELECT id, code, definition, used_count FROM coupons WHERE code = $1`, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Coupon{}, domain.NotFound("coupon", code)
	}
	return c, classify(err)
}

// CouponUsage counts the customer's redemptions of a coupon.
func (s *Store) CouponUsage(ctx context.Context, couponID, customerID string) (int, error) {
	if customerID == "" {
		return 0, nil
	}
	return couponUsage(ctx, s.pool, couponID, customerID)
}

func couponUsage(ctx context.Context, q querier, couponID, customerID string) (int, error) {
	var n int
	err := q.QueryRow(ctx, `SELECT count(*) FROM coupon_redemptions WHERE coupon_id = $1 AND customer_id = $2`, couponID, customerID).Scan(&n)
	return n, classify(err)
}

func getTransaction(ctx context.Context, q querier, id string, forUpdate bool) (domain.Transaction, error) {
	sql := `SELECT document FROM transactions WHERE id = $1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	var doc []byte
	if err := q.QueryRow(ctx, sql, id).Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Transaction{}, domain.NotFound("transaction", id)
		}
		return domain.Transaction{}, classify(err)
	}
	var t domain.Transaction
	if err := json.Unmarshal(doc, &t); err != nil {
		return domain.Transaction{}, fmt.Errorf("decode transaction %s: %w", id, err)
	}
	return t, nil
}

func (s *Store) GetTransaction(ctx context.Context, id string) (domain.Transaction, error) {
	return getTransaction(ctx, s.pool, id, false)
}

func (s *Store) InsertEvent(ctx context.Context, ev events.Event) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO domain_events (id, topic, aggregate_id, payload, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
	`, ev.ID, ev.Topic, ev.AggregateID, []byte(ev.Payload), ev.OccurredAt)
	return classify(err)
}

func (s *Store) InsertAuditLog(ctx context.Context, e audit.Entry) error {
	var metadata []byte
	if len(e.Metadata) > 0 {
		metadata = e.Metadata
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_logs (id, actor_id, actor_role, action, resource_type, resource_id, reason, status, ip, request_id, metadata, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, e.ID, e.ActorID, e.ActorRole, e.Action, e.ResourceType, e.ResourceID, e.Reason, e.Status, e.IP, e.RequestID, metadata, e.CreatedAt)
	return classify(err)
}

func (s *Store) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return classify(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := fn(tx); err != nil {
		return classify(err)
	}
	return classify(tx.Commit(ctx))
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// classify maps connectivity failures to domain.ErrStoreUnavailable and
// unique violations to ConflictError. Domain errors pass through.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "23505" {
			return &domain.ConflictError{Resource: pgErr.TableName, Key: pgErr.ConstraintName}
		}
		return err
	}
	var connErr *pgconn.ConnectError
	var netErr net.Error
	if errors.As(err, &connErr) || errors.As(err, &netErr) || pgconn.Timeout(err) {
		return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	return err
}

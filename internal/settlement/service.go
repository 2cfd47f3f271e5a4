package settlement

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/grocery-pos/internal/audit"
	"github.com/noah-isme/grocery-pos/internal/common"
	"github.com/noah-isme/grocery-pos/internal/discount"
	"github.com/noah-isme/grocery-pos/internal/domain"
	"github.com/noah-isme/grocery-pos/internal/events"
	"github.com/noah-isme/grocery-pos/internal/inventory"
	"github.com/noah-isme/grocery-pos/internal/lock"
	"github.com/noah-isme/grocery-pos/internal/loyalty"
	"github.com/noah-isme/grocery-pos/internal/pricing"
	"github.com/noah-isme/grocery-pos/internal/store"
)

// ProductCatalog resolves products for pricing.
type ProductCatalog interface {
	GetProduct(ctx context.Context, id string) (domain.Product, error)
}

// CustomerDirectory resolves customers and their loyalty accounts.
type CustomerDirectory interface {
	GetCustomer(ctx context.Context, id string) (domain.Customer, error)
}

// CouponRegistry looks coupons up by code and counts per-customer usage.
type CouponRegistry interface {
	FindCouponByCode(ctx context.Context, code string) (domain.Coupon, error)
	CouponUsage(ctx context.Context, couponID, customerID string) (int, error)
}

// TransactionStore reads transactions and applies settlement commits atomically.
type TransactionStore interface {
	GetTransaction(ctx context.Context, id string) (domain.Transaction, error)
	Commit(ctx context.Context, c store.Commit) error
}

// Publisher emits domain events.
type Publisher interface {
	Emit(ctx context.Context, topic, aggregateID string, payload any) (events.Event, error)
}

// Auditor records privileged actions.
type Auditor interface {
	Record(ctx context.Context, e audit.Entry) error
}

// Deps are the collaborators of the Service. Events, Audit, Locker and Stock
// are optional.
type Deps struct {
	Products     ProductCatalog
	Customers    CustomerDirectory
	Coupons      CouponRegistry
	Transactions TransactionStore
	Events       Publisher
	Audit        Auditor
	// Locker serialises void and refund of the same transaction across replicas.
	Locker lock.Locker
	// Stock is used to announce low-stock crossings after a commit.
	Stock  *inventory.Ledger
	Logger zerolog.Logger
	Now    func() time.Time
}

// Config tunes settlement policy.
type Config struct {
	Policy    loyalty.Policy
	Tolerance decimal.Decimal
	// Strict makes any rejected coupon fail the whole settlement.
	Strict   bool
	Location *time.Location
	LockTTL  time.Duration
}

// DefaultConfig returns the standard store policy.
func DefaultConfig() Config {
	return Config{
		Policy:    loyalty.DefaultPolicy(),
		Tolerance: pricing.DefaultTolerance,
		Location:  time.Local,
		LockTTL:   15 * time.Second,
	}
}

// Service is the transaction settlement engine. It keeps no mutable state of
// its own; all shared state lives behind the store.
type Service struct {
	deps     Deps
	cfg      Config
	resolver *discount.Resolver
}

// New constructs a Service.
func New(deps Deps, cfg Config) *Service {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 15 * time.Second
	}
	if cfg.Policy.EarnRate.IsZero() {
		cfg.Policy = loyalty.DefaultPolicy()
	}
	return &Service{deps: deps, cfg: cfg, resolver: discount.NewResolver(cfg.Policy)}
}

func (s *Service) now() time.Time {
	if s.deps.Now != nil {
		return s.deps.Now()
	}
	return time.Now()
}

// GetTransaction returns a stored transaction.
func (s *Service) GetTransaction(ctx context.Context, id string) (domain.Transaction, error) {
	return s.deps.Transactions.GetTransaction(ctx, id)
}

func authorize(actor common.Actor, permission string) error {
	if !actor.Can(permission) {
		return &domain.ForbiddenError{Permission: permission}
	}
	return nil
}

// withTransactionLock runs fn under the distributed lock of one transaction.
func (s *Service) withTransactionLock(ctx context.Context, id string, fn func(context.Context) error) error {
	if s.deps.Locker == nil {
		return fn(ctx)
	}
	return s.deps.Locker.WithLock(ctx, "pos:txn:"+id, s.cfg.LockTTL, fn)
}

func (s *Service) emit(ctx context.Context, topic, id string, payload any) {
	if s.deps.Events == nil {
		return
	}
	if _, err := s.deps.Events.Emit(ctx, topic, id, payload); err != nil {
		s.deps.Logger.Warn().Err(err).Str("topic", topic).Str("transaction_id", id).Msg("emit event")
	}
}

func (s *Service) record(ctx context.Context, e audit.Entry) {
	if s.deps.Audit == nil {
		return
	}
	if err := s.deps.Audit.Record(ctx, e); err != nil {
		s.deps.Logger.Warn().Err(err).Str("action", e.Action).Str("resource_id", e.ResourceID).Msg("audit record")
	}
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return common.AsAppError(err, false).Code
}

package inventory

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/grocery-pos/internal/domain"
	"github.com/noah-isme/grocery-pos/internal/events"
	"github.com/noah-isme/grocery-pos/internal/obs"
)

// Op names an inventory ledger operation.
type Op string

const (
	OpAdd      Op = "add"
	OpSubtract Op = "subtract"
	OpSet      Op = "set"
)

// Valid reports whether o is a known operation.
func (o Op) Valid() bool {
	return o == OpAdd || o == OpSubtract || o == OpSet
}

// Change describes one applied mutation.
type Change struct {
	ProductID string          `json:"productId"`
	Op        Op              `json:"op"`
	Quantity  decimal.Decimal `json:"quantity"`
	Before    decimal.Decimal `json:"before"`
	After     decimal.Decimal `json:"after"`
	// LowStock is set when the mutation crossed the low-stock threshold downwards.
	LowStock bool `json:"lowStock"`
	// Reorder is set when the mutation crossed the reorder point downwards.
	Reorder bool `json:"reorder"`
}

// Apply mutates p's inventory record in place. It is the only code path that
// writes stock quantities.
func Apply(p *domain.Product, op Op, qty decimal.Decimal) (Change, error) {
	inv := &p.Inventory
	ch := Change{ProductID: p.ID, Op: op, Quantity: qty, Before: inv.StockQuantity}
	switch op {
	case OpAdd:
		if !qty.IsPositive() {
			return Change{}, domain.Invalid("quantity", "must be positive")
		}
		next := inv.StockQuantity.Add(qty)
		if next.GreaterThan(inv.StockCapacity) {
			return Change{}, &domain.CapacityExceededError{ProductID: p.ID, Current: inv.StockQuantity, Capacity: inv.StockCapacity, Requested: qty}
		}
		inv.StockQuantity = next
	case OpSubtract:
		if !qty.IsPositive() {
			return Change{}, domain.Invalid("quantity", "must be positive")
		}
		inv.StockQuantity = decimal.Max(decimal.Zero, inv.StockQuantity.Sub(qty))
	case OpSet:
		if qty.GreaterThan(inv.StockCapacity) {
			return Change{}, &domain.CapacityExceededError{ProductID: p.ID, Current: inv.StockQuantity, Capacity: inv.StockCapacity, Requested: qty}
		}
		inv.StockQuantity = decimal.Max(decimal.Zero, qty)
	default:
		return Change{}, domain.Invalid("op", "unknown inventory operation %q", op)
	}
	ch.After = inv.StockQuantity
	ch.LowStock = crossed(ch.Before, ch.After, inv.LowStockThreshold)
	ch.Reorder = crossed(ch.Before, ch.After, inv.ReorderPoint)
	return ch, nil
}

// Reserve takes qty for a sale. Unlike Subtract it refuses to sell stock that
// is not on hand.
func Reserve(p *domain.Product, qty decimal.Decimal) (Change, error) {
	if p.Inventory.StockQuantity.LessThan(qty) {
		return Change{}, &domain.InsufficientStockError{ProductID: p.ID, Available: p.Inventory.StockQuantity, Requested: qty}
	}
	return Apply(p, OpSubtract, qty)
}

func crossed(before, after, mark decimal.Decimal) bool {
	return mark.IsPositive() && before.GreaterThan(mark) && after.LessThanOrEqual(mark)
}

// Store persists single-product updates atomically.
type Store interface {
	GetProduct(ctx context.Context, id string) (domain.Product, error)
	UpdateProduct(ctx context.Context, id string, fn func(p *domain.Product) error) (domain.Product, error)
}

// Publisher emits domain events.
type Publisher interface {
	Emit(ctx context.Context, topic, aggregateID string, payload any) (events.Event, error)
}

// Ledger applies direct stock adjustments outside of settlement.
type Ledger struct {
	store  Store
	events Publisher
	logger zerolog.Logger
}

// NewLedger constructs a Ledger. events may be nil.
func NewLedger(store Store, events Publisher, logger zerolog.Logger) *Ledger {
	return &Ledger{store: store, events: events, logger: logger}
}

// Add increases stock, failing when the shelf capacity would be exceeded.
func (l *Ledger) Add(ctx context.Context, productID string, qty decimal.Decimal) (domain.Product, Change, error) {
	return l.Adjust(ctx, productID, OpAdd, qty)
}

// Subtract decreases stock, clamping at zero.
func (l *Ledger) Subtract(ctx context.Context, productID string, qty decimal.Decimal) (domain.Product, Change, error) {
	return l.Adjust(ctx, productID, OpSubtract, qty)
}

// Set overwrites stock, failing above capacity.
func (l *Ledger) Set(ctx context.Context, productID string, qty decimal.Decimal) (domain.Product, Change, error) {
	return l.Adjust(ctx, productID, OpSet, qty)
}

// Adjust runs op as one indivisible check-then-write on the product.
func (l *Ledger) Adjust(ctx context.Context, productID string, op Op, qty decimal.Decimal) (domain.Product, Change, error) {
	var ch Change
	p, err := l.store.UpdateProduct(ctx, productID, func(p *domain.Product) error {
		var err error
		ch, err = Apply(p, op, qty)
		return err
	})
	if err != nil {
		obs.CountStockMutation(string(op), "rejected")
		return domain.Product{}, Change{}, err
	}
	obs.CountStockMutation(string(op), "ok")
	l.logger.Info().
		Str("product_id", productID).
		Str("op", string(op)).
		Str("quantity", qty.String()).
		Str("stock", ch.After.String()).
		Msg("inventory adjusted")
	l.NotifyLowStock(ctx, p, ch)
	return p, ch, nil
}

// NotifyLowStock emits inventory.low_stock when ch crossed a threshold.
// Emission failures are logged; the stock change has already been committed.
func (l *Ledger) NotifyLowStock(ctx context.Context, p domain.Product, ch Change) {
	if l == nil || l.events == nil || (!ch.LowStock && !ch.Reorder) {
		return
	}
	payload := events.LowStockPayload{
		ProductID:         p.ID,
		Name:              p.Name,
		StockQuantity:     p.Inventory.StockQuantity,
		LowStockThreshold: p.Inventory.LowStockThreshold,
		ReorderPoint:      p.Inventory.ReorderPoint,
		Reorder:           ch.Reorder,
	}
	if _, err := l.events.Emit(ctx, events.TopicInventoryLowStock, p.ID, payload); err != nil {
		l.logger.Warn().Err(err).Str("product_id", p.ID).Msg("emit low stock event")
	}
}

// IsStockError reports whether err is a stock or capacity rejection.
func IsStockError(err error) bool {
	var stock *domain.InsufficientStockError
	var capacity *domain.CapacityExceededError
	return errors.As(err, &stock) || errors.As(err, &capacity)
}

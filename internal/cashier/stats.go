// Package cashier keeps per-cashier performance counters in Redis. Counters
// are fed by domain events and are best effort: a lost increment never
// affects a settlement.
package cashier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/grocery-pos/internal/common"
	"github.com/noah-isme/grocery-pos/internal/events"
)

const defaultPrefix = "pos:cashier:"

const (
	fieldTransactions = "transactions"
	fieldSales        = "sales_total"
	fieldVoids        = "voids"
	fieldRefunds      = "refunds"
	fieldRefunded     = "refunded_total"
)

// Stats are the running counters of one cashier.
type Stats struct {
	CashierID     string          `json:"cashierId"`
	Transactions  int64           `json:"transactions"`
	SalesTotal    decimal.Decimal `json:"salesTotal"`
	Voids         int64           `json:"voids"`
	Refunds       int64           `json:"refunds"`
	RefundedTotal decimal.Decimal `json:"refundedTotal"`
}

// Counters implements events.Notifier.
type Counters struct {
	Client *redis.Client
	Prefix string
}

func (c *Counters) key(cashierID string) string {
	prefix := c.Prefix
	if prefix == "" {
		prefix = defaultPrefix
	}
	return prefix + cashierID
}

// Notify updates the counters for transaction events and ignores the rest.
func (c *Counters) Notify(ctx context.Context, ev events.Event) error {
	if c == nil || c.Client == nil {
		return nil
	}
	switch ev.Topic {
	case events.TopicTransactionCompleted, events.TopicTransactionVoided, events.TopicTransactionRefunded:
	default:
		return nil
	}
	var p events.TransactionPayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		return fmt.Errorf("cashier: decode %s payload: %w", ev.Topic, err)
	}
	if strings.TrimSpace(p.CashierID) == "" {
		return nil
	}
	key := c.key(p.CashierID)
	amount, _ := p.Total.Abs().Float64()

	pipe := c.Client.TxPipeline()
	switch ev.Topic {
	case events.TopicTransactionCompleted:
		pipe.HIncrBy(ctx, key, fieldTransactions, 1)
		pipe.HIncrByFloat(ctx, key, fieldSales, amount)
	case events.TopicTransactionVoided:
		pipe.HIncrBy(ctx, key, fieldVoids, 1)
		pipe.HIncrByFloat(ctx, key, fieldSales, -amount)
	case events.TopicTransactionRefunded:
		pipe.HIncrBy(ctx, key, fieldRefunds, 1)
		pipe.HIncrByFloat(ctx, key, fieldRefunded, amount)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Get reads the counters of a cashier. Unknown cashiers have zero counters.
func (c *Counters) Get(ctx context.Context, cashierID string) (Stats, error) {
	if c == nil || c.Client == nil {
		return Stats{}, errors.New("cashier: redis not configured")
	}
	vals, err := c.Client.HGetAll(ctx, c.key(cashierID)).Result()
	if err != nil {
		return Stats{}, err
	}
	s := Stats{CashierID: cashierID, SalesTotal: decimal.Zero, RefundedTotal: decimal.Zero}
	s.Transactions, _ = strconv.ParseInt(vals[fieldTransactions], 10, 64)
	s.Voids, _ = strconv.ParseInt(vals[fieldVoids], 10, 64)
	s.Refunds, _ = strconv.ParseInt(vals[fieldRefunds], 10, 64)
	if v, err := decimal.NewFromString(vals[fieldSales]); err == nil {
		s.SalesTotal = v.Round(2)
	}
	if v, err := decimal.NewFromString(vals[fieldRefunded]); err == nil {
		s.RefundedTotal = v.Round(2)
	}
	return s, nil
}

// Handler serves GET /api/v1/cashiers/{id}/stats. Cashiers may read their own
// counters; anyone who can void may read everyone's.
type Handler struct {
	Counters *Counters
	Debug    bool
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	actor, ok := common.ActorFrom(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	id := chi.URLParam(r, "id")
	if id != actor.ID && !actor.Can(common.PermTransactionsVoid) {
		common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "cannot read another cashier's stats", nil)
		return
	}
	stats, err := h.Counters.Get(r.Context(), id)
	if err != nil {
		common.WriteError(w, err, h.Debug)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": stats})
}

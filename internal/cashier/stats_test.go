package cashier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/grocery-pos/internal/common"
	"github.com/noah-isme/grocery-pos/internal/events"
)

func newCounters(t *testing.T) (*Counters, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return &Counters{Client: client, Prefix: "test:cashier:"}, mr
}

func event(t *testing.T, topic, cashierID, total string) events.Event {
	t.Helper()
	raw, err := json.Marshal(events.TransactionPayload{TransactionID: "t", CashierID: cashierID, Total: decimal.RequireFromString(total)})
	require.NoError(t, err)
	return events.Event{Topic: topic, AggregateID: "t", Payload: raw}
}

func TestCountersTrackLifecycle(t *testing.T) {
	c, mr := newCounters(t)
	ctx := context.Background()

	require.NoError(t, c.Notify(ctx, event(t, events.TopicTransactionCompleted, "cashier-1", "14.80")))
	require.NoError(t, c.Notify(ctx, event(t, events.TopicTransactionCompleted, "cashier-1", "5.20")))
	require.NoError(t, c.Notify(ctx, event(t, events.TopicTransactionVoided, "cashier-1", "5.20")))
	require.NoError(t, c.Notify(ctx, event(t, events.TopicTransactionRefunded, "cashier-1", "-2.00")))
	require.NoError(t, c.Notify(ctx, event(t, events.TopicInventoryLowStock, "cashier-1", "1")))

	require.Equal(t, "2", mr.HGet("test:cashier:cashier-1", "transactions"))

	stats, err := c.Get(ctx, "cashier-1")
	require.NoError(t, err)
	require.Equal(t, int64(2), stats.Transactions)
	require.Equal(t, int64(1), stats.Voids)
	require.Equal(t, int64(1), stats.Refunds)
	require.Equal(t, "14.80", stats.SalesTotal.StringFixed(2))
	require.Equal(t, "2.00", stats.RefundedTotal.StringFixed(2))
}

func TestCountersUnknownCashier(t *testing.T) {
	c, _ := newCounters(t)
	stats, err := c.Get(context.Background(), "nobody")
	require.NoError(t, err)
	require.Zero(t, stats.Transactions)
	require.True(t, stats.SalesTotal.IsZero())
}

func TestCountersRejectBadPayload(t *testing.T) {
	c, _ := newCounters(t)
	err := c.Notify(context.Background(), events.Event{Topic: events.TopicTransactionCompleted, Payload: []byte("{")})
	require.Error(t, err)
}

func TestCountersRedisDown(t *testing.T) {
	c, mr := newCounters(t)
	mr.Close()
	require.Error(t, c.Notify(context.Background(), event(t, events.TopicTransactionCompleted, "cashier-1", "1.00")))
}

func TestStatsHandlerScopesToActor(t *testing.T) {
	c, _ := newCounters(t)
	require.NoError(t, c.Notify(context.Background(), event(t, events.TopicTransactionCompleted, "cashier-1", "3.00")))
	h := &Handler{Counters: c}

	serve := func(actor common.Actor, id string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/cashiers/"+id+"/stats", nil)
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("id", id)
		ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
		req = req.WithContext(common.WithActor(ctx, actor))
		rec := httptest.NewRecorder()
		h.Stats(rec, req)
		return rec
	}

	own := serve(common.Actor{ID: "cashier-1"}, "cashier-1")
	require.Equal(t, http.StatusOK, own.Code)
	require.Contains(t, own.Body.String(), `"transactions":1`)

	other := serve(common.Actor{ID: "cashier-2"}, "cashier-1")
	require.Equal(t, http.StatusForbidden, other.Code)

	sup := serve(common.Actor{ID: "sup", Permissions: []string{common.PermTransactionsVoid}}, "cashier-1")
	require.Equal(t, http.StatusOK, sup.Code)
}

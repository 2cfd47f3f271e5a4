package audit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/grocery-pos/internal/common"
	"github.com/noah-isme/grocery-pos/internal/obs"
)

func adjustRouter(rec Recorder, status int) http.Handler {
	r := chi.NewRouter()
	r.With(rec.Handler(Route{
		Action:       "inventory.adjust",
		ResourceType: "product",
		IDParam:      "productId",
		Metadata: func(r *http.Request, status int) map[string]any {
			return map[string]any{"reason": r.URL.Query().Get("reason")}
		},
	})).Post("/api/v1/inventory/{productId}/adjust", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	})
	return r
}

func adjustRequest() *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/inventory/sku-42/adjust?reason=recount", nil)
	req.Header.Set("X-Request-ID", "req-123")
	req.RemoteAddr = "10.0.0.2:54321"
	ctx := common.WithActor(req.Context(), common.Actor{ID: "mgr-1", Role: "manager"})
	ctx = obs.WithRoutePattern(ctx, "/api/v1/inventory/{productId}/adjust")
	return req.WithContext(ctx)
}

func TestRecorderAuditsSuccessfulRequest(t *testing.T) {
	store := &stubStore{}
	rec := Recorder{Service: &Service{Store: store, Enabled: true}}

	rr := httptest.NewRecorder()
	adjustRouter(rec, http.StatusOK).ServeHTTP(rr, adjustRequest())
	require.Equal(t, http.StatusOK, rr.Code)

	require.Len(t, store.entries, 1)
	got := store.entries[0]
	require.Equal(t, "inventory.adjust", got.Action)
	require.Equal(t, "product", got.ResourceType)
	require.Equal(t, "sku-42", got.ResourceID)
	require.Equal(t, "10.0.0.2", got.IP)
	require.Equal(t, "req-123", got.RequestID)
	require.Equal(t, "mgr-1", got.ActorID)
	require.Equal(t, "manager", got.ActorRole)
	require.Equal(t, http.StatusOK, got.Status)

	var meta map[string]string
	require.NoError(t, json.Unmarshal(got.Metadata, &meta))
	require.Equal(t, "recount", meta["reason"])
}

func TestRecorderSkipsFailedRequest(t *testing.T) {
	store := &stubStore{}
	rec := Recorder{Service: &Service{Store: store, Enabled: true}}

	rr := httptest.NewRecorder()
	adjustRouter(rec, http.StatusConflict).ServeHTTP(rr, adjustRequest())
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Empty(t, store.entries)
}

func TestRecorderDisabledPassesThrough(t *testing.T) {
	store := &stubStore{}
	rec := Recorder{Service: &Service{Store: store, Enabled: false}}

	rr := httptest.NewRecorder()
	adjustRouter(rec, http.StatusOK).ServeHTTP(rr, adjustRequest())
	require.Equal(t, http.StatusOK, rr.Code)
	require.Empty(t, store.entries)
}

func TestRecorderReportsStoreErrors(t *testing.T) {
	var reported error
	rec := Recorder{
		Service: &Service{Enabled: true},
		OnError: func(err error) { reported = err },
	}
	adjustRouter(rec, http.StatusOK).ServeHTTP(httptest.NewRecorder(), adjustRequest())
	require.Error(t, reported)
}

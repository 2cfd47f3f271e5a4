package coupon

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/grocery-pos/internal/common"
	"github.com/noah-isme/grocery-pos/internal/domain"
)

type fakeStore struct {
	byCode map[string]domain.Coupon
}

func (f *fakeStore) CreateCoupon(_ context.Context, c domain.Coupon) (domain.Coupon, error) {
	if _, ok := f.byCode[c.Code]; ok {
		return domain.Coupon{}, &domain.ConflictError{Resource: "coupon", Key: c.Code}
	}
	f.byCode[c.Code] = c
	return c, nil
}

func (f *fakeStore) FindCouponByCode(_ context.Context, code string) (domain.Coupon, error) {
	c, ok := f.byCode[NormalizeCode(code)]
	if !ok {
		return domain.Coupon{}, domain.NotFound("coupon", code)
	}
	return c, nil
}

func adminRouter(store Store, actor *common.Actor) http.Handler {
	h := &AdminHandler{Store: store, Validate: validator.New()}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if actor != nil {
				req = req.WithContext(common.WithActor(req.Context(), *actor))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Post("/coupons", h.Create)
	r.Get("/coupons/{code}", h.Get)
	return r
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw)))
	return rec
}

var manager = common.Actor{ID: "mgr", Role: "manager", Permissions: []string{common.PermCouponsManage}}

func TestAdminCreateAndGet(t *testing.T) {
	store := &fakeStore{byCode: map[string]domain.Coupon{}}
	router := adminRouter(store, &manager)

	rec := postJSON(t, router, "/coupons", map[string]any{
		"code":            " happyhour ",
		"type":            "percentage",
		"value":           "15",
		"minimumPurchase": "10",
		"validDays":       []int{1, 2, 3},
		"window":          map[string]any{"start": "16:00", "end": "18:30"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	stored := store.byCode["HAPPYHOUR"]
	require.True(t, stored.Active)
	require.Equal(t, domain.DiscountPercentage, stored.Type)
	require.Len(t, stored.ValidDays, 3)
	require.Equal(t, 16*60, stored.Window.StartMinute)
	require.Equal(t, 18*60+30, stored.Window.EndMinute)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/coupons/happyhour", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, router, "/coupons", map[string]any{"code": "HAPPYHOUR", "type": "bogo"})
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestAdminCreateRejectsBadPayloads(t *testing.T) {
	router := adminRouter(&fakeStore{byCode: map[string]domain.Coupon{}}, &manager)

	cases := map[string]map[string]any{
		"missing code":     {"type": "bogo"},
		"unknown type":     {"code": "X", "type": "mystery"},
		"percent over 100": {"code": "X", "type": "percentage", "value": "120"},
		"negative minimum": {"code": "X", "type": "fixed_amount", "value": "5", "minimumPurchase": "-1"},
		"bad window":       {"code": "X", "type": "bogo", "window": map[string]any{"start": "25:00", "end": "10:00"}},
		"bad weekday":      {"code": "X", "type": "bogo", "validDays": []int{7}},
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := postJSON(t, router, "/coupons", body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestAdminRequiresPermission(t *testing.T) {
	store := &fakeStore{byCode: map[string]domain.Coupon{}}

	rec := postJSON(t, adminRouter(store, nil), "/coupons", map[string]any{"code": "X", "type": "bogo"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	cashier := common.Actor{ID: "c1", Permissions: []string{common.PermTransactionsCreate}}
	rec = postJSON(t, adminRouter(store, &cashier), "/coupons", map[string]any{"code": "X", "type": "bogo"})
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Empty(t, store.byCode)
}

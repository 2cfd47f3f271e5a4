package settlement

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/grocery-pos/internal/cart"
	"github.com/noah-isme/grocery-pos/internal/common"
	"github.com/noah-isme/grocery-pos/internal/domain"
)

// Handler exposes the settlement engine over HTTP.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
	Debug    bool
}

type itemRequest struct {
	ProductID string          `json:"productId" validate:"required"`
	Quantity  decimal.Decimal `json:"quantity"`
	Discount  decimal.Decimal `json:"discount"`
}

type paymentRequest struct {
	Method          string          `json:"method" validate:"required"`
	Amount          decimal.Decimal `json:"amount"`
	CardLast4       string          `json:"cardLast4" validate:"omitempty,len=4,numeric"`
	AuthCode        string          `json:"authCode"`
	ReferenceNumber string          `json:"referenceNumber"`
}

type settleRequest struct {
	Items         []itemRequest    `json:"items" validate:"required,min=1,dive"`
	Payments      []paymentRequest `json:"payments" validate:"dive"`
	CustomerID    string           `json:"customerId"`
	CouponCodes   []string         `json:"couponCodes" validate:"dive,required"`
	LoyaltyPoints int64            `json:"loyaltyPoints" validate:"gte=0"`
	AgeVerified   bool             `json:"ageVerified"`
}

type voidRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type refundRequest struct {
	Items        []RefundItem `json:"items" validate:"required,min=1"`
	Reason       string       `json:"reason" validate:"required"`
	RefundMethod string       `json:"refundMethod" validate:"required"`
}

// Routes mounts the transaction endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.Create)
	r.Post("/quote", h.Quote)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/void", h.Void)
	r.Post("/{id}/refund", h.Refund)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	c, payments, ok := h.decodeSettle(w, r)
	if !ok {
		return
	}
	txn, err := h.Svc.CreateTransaction(r.Context(), actor, c, payments)
	if err != nil {
		common.WriteError(w, err, h.Debug)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": txn})
}

func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	c, payments, ok := h.decodeSettle(w, r)
	if !ok {
		return
	}
	q, err := h.Svc.Quote(r.Context(), actor, c, payments)
	if err != nil {
		common.WriteError(w, err, h.Debug)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": q})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.actor(w, r); !ok {
		return
	}
	txn, err := h.Svc.GetTransaction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, err, h.Debug)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": txn})
}

func (h *Handler) Void(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req voidRequest
	if err := common.Decode(r, &req, h.Validate); err != nil {
		common.WriteError(w, err, h.Debug)
		return
	}
	txn, err := h.Svc.VoidTransaction(r.Context(), chi.URLParam(r, "id"), req.Reason, actor)
	if err != nil {
		common.WriteError(w, err, h.Debug)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": txn})
}

func (h *Handler) Refund(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req refundRequest
	if err := common.Decode(r, &req, h.Validate); err != nil {
		common.WriteError(w, err, h.Debug)
		return
	}
	method := domain.PaymentMethod(strings.ToLower(strings.TrimSpace(req.RefundMethod)))
	refund, err := h.Svc.RefundTransaction(r.Context(), chi.URLParam(r, "id"), req.Items, req.Reason, method, actor)
	if err != nil {
		common.WriteError(w, err, h.Debug)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": refund})
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (common.Actor, bool) {
	actor, ok := common.ActorFrom(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return common.Actor{}, false
	}
	return actor, true
}

func (h *Handler) decodeSettle(w http.ResponseWriter, r *http.Request) (cart.Cart, []domain.Payment, bool) {
	var req settleRequest
	if err := common.Decode(r, &req, h.Validate); err != nil {
		common.WriteError(w, err, h.Debug)
		return cart.Cart{}, nil, false
	}
	var c cart.Cart
	for _, it := range req.Items {
		if err := c.AddLine(it.ProductID, it.Quantity, it.Discount); err != nil {
			common.WriteError(w, err, h.Debug)
			return cart.Cart{}, nil, false
		}
	}
	c.SetCustomer(req.CustomerID)
	for _, code := range req.CouponCodes {
		if err := c.ApplyCoupon(code); err != nil {
			common.WriteError(w, err, h.Debug)
			return cart.Cart{}, nil, false
		}
	}
	if req.LoyaltyPoints > 0 {
		if err := c.UsePoints(req.LoyaltyPoints); err != nil {
			common.WriteError(w, err, h.Debug)
			return cart.Cart{}, nil, false
		}
	}
	if req.AgeVerified {
		c.VerifyAge()
	}
	payments := make([]domain.Payment, 0, len(req.Payments))
	for _, p := range req.Payments {
		payments = append(payments, domain.Payment{
			Method:          domain.PaymentMethod(strings.ToLower(strings.TrimSpace(p.Method))),
			Amount:          p.Amount,
			CardLast4:       p.CardLast4,
			AuthCode:        p.AuthCode,
			ReferenceNumber: p.ReferenceNumber,
		})
	}
	return c, payments, true
}

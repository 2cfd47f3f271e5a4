package coupon

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/grocery-pos/internal/common"
	"github.com/noah-isme/grocery-pos/internal/domain"
)

// Store persists coupon definitions.
type Store interface {
	CreateCoupon(ctx context.Context, c domain.Coupon) (domain.Coupon, error)
	FindCouponByCode(ctx context.Context, code string) (domain.Coupon, error)
}

// AdminHandler exposes coupon administration endpoints.
type AdminHandler struct {
	Store    Store
	Validate *validator.Validate
	Debug    bool
}

type windowPayload struct {
	Start string `json:"start" validate:"required,datetime=15:04"`
	End   string `json:"end" validate:"required,datetime=15:04"`
}

type couponPayload struct {
	Code                string           `json:"code" validate:"required,max=64"`
	Description         string           `json:"description" validate:"max=255"`
	Type                string           `json:"type" validate:"required,oneof=percentage fixed_amount bogo buy_x_get_y"`
	Value               decimal.Decimal  `json:"value"`
	BuyQuantity         int              `json:"buyQuantity" validate:"gte=0"`
	GetQuantity         int              `json:"getQuantity" validate:"gte=0"`
	MinimumPurchase     decimal.Decimal  `json:"minimumPurchase"`
	MaximumDiscount     *decimal.Decimal `json:"maximumDiscount"`
	ProductIDs          []string         `json:"productIds"`
	CategoryIDs         []string         `json:"categoryIds"`
	ExcludedProductIDs  []string         `json:"excludedProductIds"`
	ExcludedCategoryIDs []string         `json:"excludedCategoryIds"`
	MinimumTier         string           `json:"minimumTier" validate:"omitempty,oneof=bronze silver gold platinum"`
	RequiresMembership  bool             `json:"requiresMembership"`
	ValidDays           []int            `json:"validDays" validate:"dive,min=0,max=6"`
	Window              *windowPayload   `json:"window"`
	ValidFrom           *time.Time       `json:"validFrom"`
	ValidTo             *time.Time       `json:"validTo"`
	UsageLimit          *int             `json:"usageLimit" validate:"omitempty,gte=0"`
	PerCustomerLimit    *int             `json:"perCustomerLimit" validate:"omitempty,gte=0"`
	Stackable           bool             `json:"stackable"`
	Active              *bool            `json:"active"`
}

// Create registers a new coupon. Codes are unique case-insensitively.
func (h *AdminHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(w, r) {
		return
	}
	var payload couponPayload
	if err := common.Decode(r, &payload, h.Validate); err != nil {
		common.WriteError(w, err, h.Debug)
		return
	}
	c, err := payload.toCoupon()
	if err != nil {
		common.WriteError(w, err, h.Debug)
		return
	}
	created, err := h.Store.CreateCoupon(r.Context(), c)
	if err != nil {
		common.WriteError(w, err, h.Debug)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": created})
}

// Get returns a coupon by code.
func (h *AdminHandler) Get(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(w, r) {
		return
	}
	c, err := h.Store.FindCouponByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		common.WriteError(w, err, h.Debug)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": c})
}

func (h *AdminHandler) authorized(w http.ResponseWriter, r *http.Request) bool {
	actor, ok := common.ActorFrom(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return false
	}
	if !actor.Can(common.PermCouponsManage) {
		common.WriteError(w, &domain.ForbiddenError{Permission: common.PermCouponsManage}, h.Debug)
		return false
	}
	return true
}

func (p couponPayload) toCoupon() (domain.Coupon, error) {
	c := domain.Coupon{
		ID:                  uuid.NewString(),
		Code:                NormalizeCode(p.Code),
		Description:         strings.TrimSpace(p.Description),
		Type:                domain.DiscountType(p.Type),
		Value:               p.Value,
		BuyQuantity:         p.BuyQuantity,
		GetQuantity:         p.GetQuantity,
		MinimumPurchase:     p.MinimumPurchase,
		MaximumDiscount:     p.MaximumDiscount,
		ProductIDs:          p.ProductIDs,
		CategoryIDs:         p.CategoryIDs,
		ExcludedProductIDs:  p.ExcludedProductIDs,
		ExcludedCategoryIDs: p.ExcludedCategoryIDs,
		MinimumTier:         domain.Tier(p.MinimumTier),
		RequiresMembership:  p.RequiresMembership,
		ValidFrom:           p.ValidFrom,
		ValidTo:             p.ValidTo,
		UsageLimit:          p.UsageLimit,
		PerCustomerLimit:    p.PerCustomerLimit,
		Stackable:           p.Stackable,
		Active:              p.Active == nil || *p.Active,
	}
	for _, d := range p.ValidDays {
		c.ValidDays = append(c.ValidDays, time.Weekday(d))
	}
	if p.Window != nil {
		start, _ := time.Parse("15:04", p.Window.Start)
		end, _ := time.Parse("15:04", p.Window.End)
		c.Window = &domain.TimeWindow{
			StartMinute: start.Hour()*60 + start.Minute(),
			EndMinute:   end.Hour()*60 + end.Minute(),
		}
	}
	if c.MinimumPurchase.IsNegative() {
		return domain.Coupon{}, domain.Invalid("minimumPurchase", "must not be negative")
	}
	if c.MaximumDiscount != nil && c.MaximumDiscount.IsNegative() {
		return domain.Coupon{}, domain.Invalid("maximumDiscount", "must not be negative")
	}
	if c.ValidFrom != nil && c.ValidTo != nil && c.ValidTo.Before(*c.ValidFrom) {
		return domain.Coupon{}, domain.Invalid("validTo", "must not be before validFrom")
	}
	if _, err := VariantOf(c); err != nil {
		return domain.Coupon{}, err
	}
	return c, nil
}

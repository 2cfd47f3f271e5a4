package inventory

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/grocery-pos/internal/common"
)

// Handler exposes direct stock adjustments.
type Handler struct {
	Ledger   *Ledger
	Validate *validator.Validate
	Debug    bool
}

type adjustRequest struct {
	Op       string          `json:"op" validate:"required,oneof=add subtract set"`
	Quantity decimal.Decimal `json:"quantity"`
}

// Adjust applies {op, quantity} to the product named in the URL.
func (h *Handler) Adjust(w http.ResponseWriter, r *http.Request) {
	productID := strings.TrimSpace(chi.URLParam(r, "productId"))
	if productID == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "productId is required", nil)
		return
	}
	var req adjustRequest
	if err := common.Decode(r, &req, h.Validate); err != nil {
		common.WriteError(w, err, h.Debug)
		return
	}
	product, change, err := h.Ledger.Adjust(r.Context(), productID, Op(req.Op), req.Quantity)
	if err != nil {
		common.WriteError(w, err, h.Debug)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"product": product,
		"change":  change,
	}})
}

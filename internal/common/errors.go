package common

import (
	"errors"
	"net/http"

	"github.com/noah-isme/grocery-pos/internal/domain"
)

// AppError represents an error with an attached code and HTTP status.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// AsAppError translates domain errors into their transport representation.
// Unknown errors become INTERNAL; their text is attached only when debug is set.
func AsAppError(err error, debug bool) *AppError {
	var (
		app      *AppError
		valErr   *domain.ValidationError
		nf       *domain.NotFoundError
		stock    *domain.InsufficientStockError
		capacity *domain.CapacityExceededError
		payment  *domain.InsufficientPaymentError
		coupon   *domain.InvalidCouponError
		points   *domain.InsufficientPointsError
		denied   *domain.ForbiddenError
		state    *domain.InvalidStateError
		conflict *domain.ConflictError
	)
	switch {
	case errors.As(err, &app):
		return app
	case errors.As(err, &valErr):
		return &AppError{Code: "VALIDATION_ERROR", Message: valErr.Error(), HTTPStatus: http.StatusBadRequest, Err: err,
			Details: map[string]any{"field": valErr.Field}}
	case errors.As(err, &nf):
		return &AppError{Code: "NOT_FOUND", Message: nf.Error(), HTTPStatus: http.StatusNotFound, Err: err,
			Details: map[string]any{"resource": nf.Resource, "id": nf.ID}}
	case errors.As(err, &stock):
		return &AppError{Code: "INSUFFICIENT_STOCK", Message: stock.Error(), HTTPStatus: http.StatusConflict, Err: err,
			Details: map[string]any{"productId": stock.ProductID, "available": stock.Available, "requested": stock.Requested}}
	case errors.As(err, &capacity):
		return &AppError{Code: "CAPACITY_EXCEEDED", Message: capacity.Error(), HTTPStatus: http.StatusConflict, Err: err,
			Details: map[string]any{"productId": capacity.ProductID, "current": capacity.Current, "capacity": capacity.Capacity, "requested": capacity.Requested}}
	case errors.As(err, &payment):
		return &AppError{Code: "INSUFFICIENT_PAYMENT", Message: payment.Error(), HTTPStatus: http.StatusPaymentRequired, Err: err,
			Details: map[string]any{"required": payment.Required.StringFixed(2), "tendered": payment.Tendered.StringFixed(2),
				"shortfall": payment.Required.Sub(payment.Tendered).StringFixed(2)}}
	case errors.As(err, &coupon):
		return &AppError{Code: "INVALID_COUPON", Message: coupon.Error(), HTTPStatus: http.StatusUnprocessableEntity, Err: err,
			Details: map[string]any{"code": coupon.Code, "reason": coupon.Reason}}
	case errors.As(err, &points):
		return &AppError{Code: "INSUFFICIENT_POINTS", Message: points.Error(), HTTPStatus: http.StatusUnprocessableEntity, Err: err,
			Details: map[string]any{"requested": points.Requested, "available": points.Available}}
	case errors.As(err, &denied):
		return &AppError{Code: "FORBIDDEN", Message: denied.Error(), HTTPStatus: http.StatusForbidden, Err: err,
			Details: map[string]any{"permission": denied.Permission}}
	case errors.As(err, &state):
		return &AppError{Code: "INVALID_STATE", Message: state.Error(), HTTPStatus: http.StatusConflict, Err: err,
			Details: map[string]any{"transactionId": state.TransactionID, "status": state.Status}}
	case errors.As(err, &conflict):
		return &AppError{Code: "CONFLICT", Message: conflict.Error(), HTTPStatus: http.StatusConflict, Err: err,
			Details: map[string]any{"resource": conflict.Resource, "key": conflict.Key}}
	case errors.Is(err, domain.ErrStoreUnavailable):
		return &AppError{Code: "UNAVAILABLE", Message: "storage unavailable", HTTPStatus: http.StatusServiceUnavailable, Err: err}
	}
	internal := &AppError{Code: "INTERNAL", Message: "internal error", HTTPStatus: http.StatusInternalServerError, Err: err}
	if debug && err != nil {
		internal.Details = map[string]any{"error": err.Error()}
	}
	return internal
}

// WriteError renders err using the canonical error shape.
func WriteError(w http.ResponseWriter, err error, debug bool) {
	app := AsAppError(err, debug)
	JSONError(w, app.HTTPStatus, app.Code, app.Message, app.Details)
}

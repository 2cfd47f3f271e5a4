package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrStoreUnavailable is wrapped by store implementations when the backing
// system cannot be reached.
var ErrStoreUnavailable = errors.New("store unavailable")

// ValidationError reports malformed or missing input. It is always raised
// before any mutation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Message
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

// Invalid builds a ValidationError.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError reports an unknown product, coupon, customer or transaction.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// NotFound builds a NotFoundError.
func NotFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// InsufficientStockError is returned when a line requests more than is on hand.
type InsufficientStockError struct {
	ProductID string
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: available %s, requested %s", e.ProductID, e.Available, e.Requested)
}

// CapacityExceededError is returned when a stock mutation would overflow the shelf capacity.
type CapacityExceededError struct {
	ProductID string
	Current   decimal.Decimal
	Capacity  decimal.Decimal
	Requested decimal.Decimal
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("capacity exceeded for product %s: current %s, capacity %s, requested %s", e.ProductID, e.Current, e.Capacity, e.Requested)
}

// InsufficientPaymentError is returned when tenders do not cover the total.
type InsufficientPaymentError struct {
	Required decimal.Decimal
	Tendered decimal.Decimal
}

func (e *InsufficientPaymentError) Error() string {
	return fmt.Sprintf("insufficient payment: required %s, tendered %s", e.Required.StringFixed(2), e.Tendered.StringFixed(2))
}

// CouponReason is the machine-readable cause of a coupon rejection.
type CouponReason string

const (
	CouponInactive           CouponReason = "inactive"
	CouponExpired            CouponReason = "expired"
	CouponNotYetValid        CouponReason = "not_yet_valid"
	CouponUsageExceeded      CouponReason = "usage_exceeded"
	CouponTierTooLow         CouponReason = "tier_too_low"
	CouponMembershipRequired CouponReason = "membership_required"
	CouponDayRestricted      CouponReason = "day_restricted"
	CouponTimeRestricted     CouponReason = "time_restricted"
	CouponMinPurchaseUnmet   CouponReason = "min_purchase_unmet"
	CouponNotApplicable      CouponReason = "not_applicable"
	CouponNotStackable       CouponReason = "not_stackable"
	CouponIncompleteVariant  CouponReason = "incomplete_variant"
)

// InvalidCouponError carries the rejected code and reason.
type InvalidCouponError struct {
	Code   string
	Reason CouponReason
}

func (e *InvalidCouponError) Error() string {
	return fmt.Sprintf("coupon %s rejected: %s", e.Code, e.Reason)
}

// InsufficientPointsError is returned when a redemption exceeds the balance.
type InsufficientPointsError struct {
	Requested int64
	Available int64
}

func (e *InsufficientPointsError) Error() string {
	return fmt.Sprintf("insufficient loyalty points: requested %d, available %d", e.Requested, e.Available)
}

// ForbiddenError is returned when the actor lacks a required permission.
type ForbiddenError struct {
	Permission string
}

func (e *ForbiddenError) Error() string {
	return "missing permission " + e.Permission
}

// InvalidStateError is returned for disallowed status transitions.
type InvalidStateError struct {
	TransactionID string
	Status        TransactionStatus
	Action        string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s transaction %s in status %s", e.Action, e.TransactionID, e.Status)
}

// ConflictError is returned when a unique key is already taken.
type ConflictError struct {
	Resource string
	Key      string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Resource, e.Key)
}

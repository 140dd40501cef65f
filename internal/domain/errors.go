package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies domain failures so callers can branch without
// matching on messages.
type ErrorKind string

const (
	KindNotFound   ErrorKind = "not_found"
	KindConflict   ErrorKind = "conflict"
	KindValidation ErrorKind = "validation"
)

// Error is the typed result returned by every engine operation on a
// domain failure. Code is stable and safe to expose to clients.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches errors of the same kind and code, so wrapped copies created
// with Withf still compare equal to the predefined values.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

// Withf returns a copy of e carrying a more specific message.
func (e *Error) Withf(format string, args ...any) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: fmt.Sprintf(format, args...)}
}

func NotFound(code, msg string) *Error { return &Error{Kind: KindNotFound, Code: code, Message: msg} }
func Conflict(code, msg string) *Error { return &Error{Kind: KindConflict, Code: code, Message: msg} }
func Validation(code, msg string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: msg}
}

// KindOf reports the kind of a domain error, or "" for anything else.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// CodeOf reports the code of a domain error, or "" for anything else.
func CodeOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

func IsNotFound(err error) bool   { return KindOf(err) == KindNotFound }
func IsConflict(err error) bool   { return KindOf(err) == KindConflict }
func IsValidation(err error) bool { return KindOf(err) == KindValidation }

var (
	ErrDealNotFound        = NotFound("deal_not_found", "deal not found")
	ErrOfferNotFound       = NotFound("offer_not_found", "offer not found")
	ErrBuyerNotFound       = NotFound("buyer_not_found", "buyer not found")
	ErrSellerNotFound      = NotFound("seller_not_found", "seller not found")
	ErrReservationNotFound = NotFound("reservation_not_found", "reservation not found")

	ErrCapacityExceeded      = Conflict("capacity_exceeded", "insufficient capacity")
	ErrInventoryInconsistent = Conflict("inventory_inconsistent", "inventory counters would become inconsistent")
	ErrInvalidTransition     = Conflict("invalid_transition", "illegal reservation state transition")
	ErrNotOwner              = Conflict("not_owner", "reservation not owned by caller")
	ErrReservationExpired    = Conflict("reservation_expired", "reservation expired")
	ErrNotShipped            = Conflict("not_shipped", "reservation has not been shipped")
	ErrRefundExceedsQuantity = Conflict("refund_exceeds_quantity", "refund quantity exceeds unrefunded quantity")
	ErrIdempotencyConflict   = Conflict("idempotency_conflict", "idempotency key reused with different parameters")
	ErrPaymentDeclined       = Conflict("payment_declined", "payment gateway declined the request")

	ErrInvalidQuantity        = Validation("invalid_quantity", "quantity must be positive")
	ErrInvalidAmount          = Validation("invalid_amount", "amount must not be negative")
	ErrInvalidID              = Validation("invalid_id", "invalid id")
	ErrInvalidActor           = Validation("invalid_actor", "unknown refund actor")
	ErrIdempotencyKeyRequired = Validation("idempotency_key_required", "idempotency key required")
	ErrInvalidConfig          = Validation("invalid_config", "invalid configuration")
)

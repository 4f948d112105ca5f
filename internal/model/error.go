package model

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrorResponse represents a standardised error response.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// ErrorKind classifies domain failures independently of their message.
type ErrorKind string

const (
	KindNotFound             ErrorKind = "NotFound"
	KindInsufficientStock    ErrorKind = "InsufficientStock"
	KindUnavailable          ErrorKind = "Unavailable"
	KindInvalidPromotion     ErrorKind = "InvalidPromotion"
	KindBelowMinimumPurchase ErrorKind = "BelowMinimumPurchase"
	KindUnauthorized         ErrorKind = "Unauthorized"
	KindInvalidTransition    ErrorKind = "InvalidTransition"
	KindEmptyCart            ErrorKind = "EmptyCart"
	KindValidation           ErrorKind = "ValidationError"
)

// Standard error codes for API responses
const (
	ErrCodeInvalidJSON          = "INVALID_JSON"
	ErrCodeNotFound             = "NOT_FOUND"
	ErrCodeInsufficientStock    = "INSUFFICIENT_STOCK"
	ErrCodeUnavailable          = "UNAVAILABLE"
	ErrCodeInvalidPromotion     = "INVALID_PROMOTION"
	ErrCodeBelowMinimumPurchase = "BELOW_MINIMUM_PURCHASE"
	ErrCodeUnauthorised         = "UNAUTHORIZED"
	ErrCodeInvalidTransition    = "INVALID_TRANSITION"
	ErrCodeEmptyCart            = "EMPTY_CART"
	ErrCodeValidation           = "VALIDATION_ERROR"
	ErrCodeInternalError        = "INTERNAL_ERROR"
)

var kindCodes = map[ErrorKind]string{
	KindNotFound:             ErrCodeNotFound,
	KindInsufficientStock:    ErrCodeInsufficientStock,
	KindUnavailable:          ErrCodeUnavailable,
	KindInvalidPromotion:     ErrCodeInvalidPromotion,
	KindBelowMinimumPurchase: ErrCodeBelowMinimumPurchase,
	KindUnauthorized:         ErrCodeUnauthorised,
	KindInvalidTransition:    ErrCodeInvalidTransition,
	KindEmptyCart:            ErrCodeEmptyCart,
	KindValidation:           ErrCodeValidation,
}

// DomainError is a business rule failure. Two domain errors match under
// errors.Is when they share a kind, so the sentinels below can be used to
// test for a class of failure regardless of message.
type DomainError struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target is a DomainError of the same kind.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// NewDomainError creates a new domain error
func NewDomainError(kind ErrorKind, message string) *DomainError {
	return &DomainError{
		Kind:    kind,
		Code:    kindCodes[kind],
		Message: message,
	}
}

// Errorf creates a domain error with a formatted message.
func Errorf(kind ErrorKind, format string, args ...any) *DomainError {
	return NewDomainError(kind, fmt.Sprintf(format, args...))
}

// KindOf returns the kind of the first DomainError in err's chain, or "" when
// err carries none.
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// Sentinels, one per kind, for errors.Is checks.
var (
	ErrNotFound             = NewDomainError(KindNotFound, "not found")
	ErrInsufficientStock    = NewDomainError(KindInsufficientStock, "insufficient stock")
	ErrUnavailable          = NewDomainError(KindUnavailable, "product unavailable")
	ErrInvalidPromotion     = NewDomainError(KindInvalidPromotion, "invalid promotion")
	ErrBelowMinimumPurchase = NewDomainError(KindBelowMinimumPurchase, "below minimum purchase")
	ErrUnauthorized         = NewDomainError(KindUnauthorized, "not permitted")
	ErrInvalidTransition    = NewDomainError(KindInvalidTransition, "invalid status transition")
	ErrEmptyCart            = NewDomainError(KindEmptyCart, "cart is empty")
	ErrValidation           = NewDomainError(KindValidation, "validation failed")
)

// ItemFailure is one failed entry of a bulk operation.
type ItemFailure struct {
	Index     int
	ProductID int64
	Err       error
}

// BatchError reports every failed item of a bulk operation that was rolled
// back as a whole.
type BatchError struct {
	Failures []ItemFailure
}

func (e *BatchError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("item %d (product %d): %v", f.Index, f.ProductID, f.Err))
	}
	return fmt.Sprintf("%d of batch failed, nothing applied: %s", len(e.Failures), strings.Join(parts, "; "))
}

// Unwrap exposes the individual causes to errors.Is and errors.As.
func (e *BatchError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}

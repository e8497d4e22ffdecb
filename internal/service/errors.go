package service

import (
	"errors"
)

// Error kinds. Every error the services return for bad input or state wraps
// exactly one of these, so callers can branch with errors.Is on the kind.
var (
	ErrValidation = errors.New("validation error")
	ErrSession    = errors.New("session error")
	ErrCatalog    = errors.New("catalog error")
	ErrConflict   = errors.New("conflict error")
)

// kindErr is a specific sentinel that also matches its kind.
type kindErr struct {
	kind error
	msg  string
}

func (e *kindErr) Error() string { return e.msg }
func (e *kindErr) Unwrap() error { return e.kind }

func newError(kind error, msg string) error {
	return &kindErr{kind: kind, msg: msg}
}

// Errors returned by the session and order services.
var (
	ErrSessionKeyRequired  = newError(ErrValidation, "session_key is required")
	ErrInvalidServiceType  = newError(ErrValidation, "invalid service_type")
	ErrEmptyItems          = newError(ErrValidation, "items is empty")
	ErrMissingRequired     = newError(ErrValidation, "missing required group")
	ErrTooManySelections   = newError(ErrValidation, "too many selections")
	ErrInvalidPaymentType  = newError(ErrValidation, "invalid payment_type")
	ErrSessionNotFound     = newError(ErrSession, "session not found")
	ErrSessionNotActive    = newError(ErrSession, "session is not active")
	ErrSessionExpired      = newError(ErrSession, "session expired")
	ErrProductNotFound     = newError(ErrCatalog, "product not found")
	ErrProductInactive     = newError(ErrCatalog, "product is not active")
	ErrInvalidVariantValue = newError(ErrCatalog, "invalid variant value")
	ErrOrderNumberConflict = newError(ErrConflict, "could not allocate order number")
)

// ErrOrderNotFound is returned by order lookups and transitions for unknown ids.
var ErrOrderNotFound = errors.New("order not found")

// Kind names the error kind of err for logs and metric labels.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrSession):
		return "session"
	case errors.Is(err, ErrCatalog):
		return "catalog"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrOrderNotFound):
		return "not_found"
	}
	return "internal"
}

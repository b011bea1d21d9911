package domain

import (
	"errors"
	"fmt"
)

// Errors surfaced by the viewing workflow and the ad store
var (
	ErrValidation    = errors.New("validation error")
	ErrAuth          = errors.New("authentication required")
	ErrDuplicateView = errors.New("view already recorded for this ad")
	ErrInvalidCode   = errors.New("verification code does not match")
	ErrQuotaNotMet   = errors.New("viewing quota not met")
	ErrTransient     = errors.New("temporary storage failure")
	ErrAdNotFound    = errors.New("ad not found")
	ErrUserExists    = errors.New("user already exists")

	ErrSessionNotFound  = errors.New("viewing session not found")
	ErrNotCloseEligible = errors.New("minimum watch time not reached")
	ErrGateClosed       = errors.New("verification is not open yet")
	ErrCodeConsumed     = errors.New("verification code already used")
	ErrCodeNotIssued    = errors.New("verification code not issued yet")
	ErrCodeHidden       = errors.New("verification code is no longer displayed")
)

// FieldError is a validation failure of a single input field
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

// Unwrap lets errors.Is(err, ErrValidation) match field errors
func (e *FieldError) Unwrap() error {
	return ErrValidation
}

// Transient wraps a storage or network failure so callers can match ErrTransient
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %v", op, ErrTransient, err)
}

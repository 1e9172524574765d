package lending

import (
	"errors"
	"fmt"

	"scilems/notify"
	"scilems/store"
)

type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

const (
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeInsufficientStock  = "INSUFFICIENT_STOCK"
	ErrCodeInvalidTransition  = "INVALID_TRANSITION"
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeExternalSideEffect = notify.FailureCode
	ErrCodeInternal           = "INTERNAL"
)

func NewNotFoundError(msg string) error {
	return &DomainError{Code: ErrCodeNotFound, Message: msg}
}

func NewInsufficientStockError(msg string) error {
	return &DomainError{Code: ErrCodeInsufficientStock, Message: msg}
}

func NewInvalidTransitionError(msg string) error {
	return &DomainError{Code: ErrCodeInvalidTransition, Message: msg}
}

func NewValidationError(msg string) error {
	return &DomainError{Code: ErrCodeValidation, Message: msg}
}

func NewUnauthorizedError(msg string) error {
	return &DomainError{Code: ErrCodeUnauthorized, Message: msg}
}

// CodeOf returns the domain code carried by err, or ErrCodeInternal for
// anything else.
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ErrCodeInternal
}

func IsCode(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}

// notFound maps a store miss to a domain error and passes other faults
// through wrapped.
func notFound(err error, what string) error {
	if errors.Is(err, store.ErrNotFound) {
		return NewNotFoundError(what + " not found")
	}
	return fmt.Errorf("load %s: %w", what, err)
}

package apperr

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrValidation          = errors.New("validation error")
	ErrInvalidTransition   = errors.New("invalid transition")
	ErrNotFound            = errors.New("not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrDuplicateCallback marks a redelivered gateway callback. Callers treat it as success.
	ErrDuplicateCallback = errors.New("duplicate callback")
	ErrUpstreamGateway   = errors.New("upstream gateway error")
	ErrConcurrentUpdate  = errors.New("concurrent update")
)

// Validation wraps ErrValidation with a reason.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFound wraps ErrNotFound naming the missing entity.
func NotFound(entity, id string) error {
	return fmt.Errorf("%w: %s %s", ErrNotFound, entity, id)
}

// Upstream wraps ErrUpstreamGateway with the provider and cause.
func Upstream(provider string, cause error) error {
	return fmt.Errorf("%w: %s: %v", ErrUpstreamGateway, provider, cause)
}

// InvalidTransitionError is returned when a status change is not allowed.
type InvalidTransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("Cannot change status from %s to %s", e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// InsufficientBalanceError reports the exact available balance so callers can retry.
type InsufficientBalanceError struct {
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: available %s, requested %s", e.Available.StringFixed(2), e.Requested.StringFixed(2))
}

func (e *InsufficientBalanceError) Is(target error) bool { return target == ErrInsufficientBalance }

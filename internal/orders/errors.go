package orders

import (
	"errors"
	"fmt"
)

// Domain errors for orders.
var (
	// ErrNotFound indicates the requested order was not found.
	ErrNotFound = errors.New("order not found")

	// Status transition errors.
	ErrInvalidStatus = errors.New("invalid status transition")
	ErrCannotCancel  = errors.New("order can only be cancelled while pending or paid")

	// Validation errors.
	ErrEmptyItems      = errors.New("at least one item is required")
	ErrInvalidQuantity = errors.New("quantity must be greater than zero")

	// Sequence errors.
	ErrDuplicateNumber = errors.New("order number already taken")
	ErrNumberExhausted = errors.New("could not allocate a unique order number")
)

// InvalidStatusError names the current and attempted status.
type InvalidStatusError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("invalid status transition from %s to %s", e.From, e.To)
}

// Unwrap lets callers match the sentinel with errors.Is.
func (e *InvalidStatusError) Unwrap() error {
	return ErrInvalidStatus
}

package payments

import "errors"

var (
	// ErrNotFound indicates the payment row is missing.
	ErrNotFound = errors.New("payment not found")
	// ErrNotVerified indicates a confirm attempt on an unverified payment.
	ErrNotVerified = errors.New("payment is not verified")
	// ErrDuplicateReceipt indicates the generated receipt number collided.
	ErrDuplicateReceipt = errors.New("receipt number already taken")
	// ErrReceiptExhausted indicates receipt generation ran out of retries.
	ErrReceiptExhausted = errors.New("could not allocate a unique receipt number")
)

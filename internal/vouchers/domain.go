package vouchers

import (
	"errors"
	"time"
)

// DiscountType enumerates supported voucher kinds.
type DiscountType string

const (
	// DiscountPercentage discounts a percentage of the subtotal.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed discounts a flat amount.
	DiscountFixed DiscountType = "fixed"
)

// Voucher is a discount code with a validity window and usage counter.
type Voucher struct {
	ID                 int64        `json:"id"`
	Code               string       `json:"code"`
	Type               DiscountType `json:"discount_type"`
	Value              float64      `json:"value"`
	MaxDiscountAmount  *float64     `json:"max_discount_amount,omitempty"`
	MinimumOrderAmount float64      `json:"minimum_order_amount"`
	StartDate          time.Time    `json:"start_date"`
	EndDate            time.Time    `json:"end_date"`
	UsageLimit         *int         `json:"usage_limit,omitempty"`
	UsageCount         int          `json:"usage_count"`
	IsActive           bool         `json:"is_active"`
	CreatedAt          time.Time    `json:"created_at"`
}

// Usage records one redemption of a voucher against an order.
type Usage struct {
	VoucherID      int64
	OrderID        int64
	UserID         *int64
	DiscountAmount float64
	UsedAt         time.Time
}

var (
	// ErrNotFound indicates the voucher code does not exist.
	ErrNotFound = errors.New("voucher not found")
	// ErrInactive indicates the voucher has been disabled.
	ErrInactive = errors.New("voucher is not active")
	// ErrOutsideWindow indicates now is before the start or after the end date.
	ErrOutsideWindow = errors.New("voucher is outside its validity window")
	// ErrMinimumNotMet indicates the subtotal is below the voucher minimum.
	ErrMinimumNotMet = errors.New("order subtotal below voucher minimum")
	// ErrUsageExhausted indicates the usage limit has been reached.
	ErrUsageExhausted = errors.New("voucher usage limit reached")
	// ErrInvalidVoucher indicates a malformed voucher record.
	ErrInvalidVoucher = errors.New("voucher record is invalid")
)

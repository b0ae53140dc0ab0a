package carts

import (
	"errors"
	"time"
)

// Cart is a priced snapshot awaiting checkout. Totals are maintained by the
// cart endpoints as items change; the order engine consumes them as-is.
type Cart struct {
	ID              int64      `json:"id"`
	UserID          *int64     `json:"user_id,omitempty"`
	SessionKey      string     `json:"session_key"`
	SubtotalExclVAT float64    `json:"subtotal_excl_vat"`
	TotalVAT        float64    `json:"total_vat"`
	DiscountAmount  float64    `json:"discount_amount"`
	VoucherCode     *string    `json:"voucher_code,omitempty"`
	Items           []CartItem `json:"items"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// CartItem carries the per-line pricing the order snapshot is built from.
type CartItem struct {
	ID               int64   `json:"id"`
	CartID           int64   `json:"cart_id"`
	ProductID        int64   `json:"product_id"`
	ProductName      string  `json:"product_name"`
	SKU              string  `json:"sku"`
	Quantity         int     `json:"quantity"`
	UnitPriceExclVAT float64 `json:"unit_price_excl_vat"`
	VATRate          float64 `json:"vat_rate"`
	UnitVATAmount    float64 `json:"unit_vat_amount"`
	UnitPriceInclVAT float64 `json:"unit_price_incl_vat"`
}

var (
	// ErrNotFound indicates the cart does not exist.
	ErrNotFound = errors.New("cart not found")
	// ErrEmpty indicates the cart has no items.
	ErrEmpty = errors.New("cart is empty")
)

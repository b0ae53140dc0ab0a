package products

import (
	"errors"
	"time"
)

// Product represents a catalog product row. Stock and status columns are
// owned by the stock ledger once orders start flowing.
type Product struct {
	ID            int64     `json:"id"`
	SKU           string    `json:"sku"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	CategoryID    *int64    `json:"category_id,omitempty"`
	PriceExclVAT  float64   `json:"price_excl_vat"`
	VATRate       float64   `json:"vat_rate"`
	StockQuantity int       `json:"stock_quantity"`
	Status        string    `json:"status"`
	ImagePath     *string   `json:"image_path,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ListFilter narrows List results.
type ListFilter struct {
	CategoryID *int64
	Status     string
	Limit      int
	Offset     int
}

// ErrNotFound indicates the product does not exist.
var ErrNotFound = errors.New("product not found")

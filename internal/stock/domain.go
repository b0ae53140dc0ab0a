package stock

import (
	"errors"
	"fmt"
	"time"
)

// ChangeType enumerates why a product's stock moved.
type ChangeType string

const (
	// ChangeSale removes stock when an order is placed.
	ChangeSale ChangeType = "sale"
	// ChangeReturn restores stock when an order is cancelled.
	ChangeReturn ChangeType = "return"
	// ChangeAdjustment covers manual corrections by staff.
	ChangeAdjustment ChangeType = "adjustment"
	// ChangeRestock records inbound deliveries from a supplier.
	ChangeRestock ChangeType = "restock"
)

// ProductStatus values maintained by the ledger.
const (
	ProductStatusActive     = "active"
	ProductStatusOutOfStock = "out_of_stock"
)

// Product is the slice of the product row the ledger works with.
type Product struct {
	ID            int64
	Name          string
	SKU           string
	StockQuantity int
	Status        string
}

// History is one append-only ledger row. Rows are never mutated or deleted;
// the running sum of QuantityChange equals current stock minus initial stock.
type History struct {
	ID             int64      `json:"id"`
	ProductID      int64      `json:"product_id"`
	QuantityChange int        `json:"quantity_change"`
	QuantityBefore int        `json:"quantity_before"`
	QuantityAfter  int        `json:"quantity_after"`
	ChangeType     ChangeType `json:"change_type"`
	ReferenceID    int64      `json:"reference_id"`
	ReferenceType  string     `json:"reference_type"`
	ActorID        int64      `json:"actor_id"`
	Note           string     `json:"note,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// AdjustInput describes one stock mutation.
type AdjustInput struct {
	ProductID     int64
	Delta         int
	ChangeType    ChangeType
	ReferenceID   int64
	ReferenceType string
	ActorID       int64
	Note          string
}

var (
	// ErrProductNotFound indicates the product row is missing.
	ErrProductNotFound = errors.New("stock: product not found")
	// ErrInvalidDelta indicates a zero quantity change.
	ErrInvalidDelta = errors.New("stock: quantity change must be non zero")
	// ErrInsufficientStock indicates the mutation would drive stock negative.
	ErrInsufficientStock = errors.New("stock: insufficient stock")
)

// InsufficientStockError names the product that blocked the mutation.
type InsufficientStockError struct {
	ProductID   int64
	ProductName string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("stock: insufficient stock for %q (product %d): requested %d, available %d",
		e.ProductName, e.ProductID, e.Requested, e.Available)
}

// Unwrap lets callers match the sentinel with errors.Is.
func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

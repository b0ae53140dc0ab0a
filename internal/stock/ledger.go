package stock

import (
	"context"
	"time"
)

// TxStore exposes the row-level operations the ledger needs. Implementations
// must be bound to the same database transaction as the order or payment
// write the adjustment supports; a ledger write with no matching document
// write is a correctness bug.
type TxStore interface {
	// GetProductForUpdate locks the product row for the rest of the
	// transaction before its stock is read.
	GetProductForUpdate(ctx context.Context, productID int64) (Product, error)
	UpdateProductStock(ctx context.Context, productID int64, quantity int, status string) error
	InsertHistory(ctx context.Context, h History) (int64, error)
}

// Ledger applies stock mutations and appends history rows.
type Ledger struct{}

// NewLedger builds a Ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Adjust applies one signed stock change inside the caller's transaction.
// Sale-type deltas that would drive stock below zero fail with
// InsufficientStockError and leave the row untouched. Reaching zero or
// below flips the product to out_of_stock; any positive balance flips it
// back to active.
func (l *Ledger) Adjust(ctx context.Context, store TxStore, in AdjustInput) (History, error) {
	if in.Delta == 0 {
		return History{}, ErrInvalidDelta
	}

	product, err := store.GetProductForUpdate(ctx, in.ProductID)
	if err != nil {
		return History{}, err
	}

	before := product.StockQuantity
	after := before + in.Delta
	if after < 0 {
		return History{}, &InsufficientStockError{
			ProductID:   product.ID,
			ProductName: product.Name,
			Requested:   -in.Delta,
			Available:   before,
		}
	}

	status := ProductStatusActive
	if after <= 0 {
		status = ProductStatusOutOfStock
	}
	if err := store.UpdateProductStock(ctx, in.ProductID, after, status); err != nil {
		return History{}, err
	}

	h := History{
		ProductID:      in.ProductID,
		QuantityChange: in.Delta,
		QuantityBefore: before,
		QuantityAfter:  after,
		ChangeType:     in.ChangeType,
		ReferenceID:    in.ReferenceID,
		ReferenceType:  in.ReferenceType,
		ActorID:        in.ActorID,
		Note:           in.Note,
		CreatedAt:      time.Now().UTC(),
	}
	id, err := store.InsertHistory(ctx, h)
	if err != nil {
		return History{}, err
	}
	h.ID = id
	return h, nil
}

package stock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryTxStore struct {
	products map[int64]Product
	history  []History
	nextID   int64
}

func newMemoryTxStore(products ...Product) *memoryTxStore {
	s := &memoryTxStore{products: make(map[int64]Product)}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

func (s *memoryTxStore) GetProductForUpdate(ctx context.Context, productID int64) (Product, error) {
	p, ok := s.products[productID]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	return p, nil
}

func (s *memoryTxStore) UpdateProductStock(ctx context.Context, productID int64, quantity int, status string) error {
	p, ok := s.products[productID]
	if !ok {
		return ErrProductNotFound
	}
	p.StockQuantity = quantity
	p.Status = status
	s.products[productID] = p
	return nil
}

func (s *memoryTxStore) InsertHistory(ctx context.Context, h History) (int64, error) {
	s.nextID++
	h.ID = s.nextID
	s.history = append(s.history, h)
	return h.ID, nil
}

func TestAdjustSaleDecrementsAndRecordsHistory(t *testing.T) {
	store := newMemoryTxStore(Product{ID: 1, Name: "Mug", SKU: "MUG-01", StockQuantity: 10, Status: ProductStatusActive})
	ledger := NewLedger()

	h, err := ledger.Adjust(context.Background(), store, AdjustInput{
		ProductID:     1,
		Delta:         -3,
		ChangeType:    ChangeSale,
		ReferenceID:   42,
		ReferenceType: "order",
		ActorID:       7,
	})
	require.NoError(t, err)
	require.Equal(t, 10, h.QuantityBefore)
	require.Equal(t, 7, h.QuantityAfter)
	require.Equal(t, -3, h.QuantityChange)
	require.Equal(t, ChangeSale, h.ChangeType)
	require.Equal(t, 7, store.products[1].StockQuantity)
	require.Equal(t, ProductStatusActive, store.products[1].Status)
	require.Len(t, store.history, 1)
}

func TestAdjustFailsOnInsufficientStock(t *testing.T) {
	store := newMemoryTxStore(Product{ID: 2, Name: "Poster", SKU: "PST-02", StockQuantity: 2, Status: ProductStatusActive})
	ledger := NewLedger()

	_, err := ledger.Adjust(context.Background(), store, AdjustInput{
		ProductID:  2,
		Delta:      -5,
		ChangeType: ChangeSale,
	})
	require.ErrorIs(t, err, ErrInsufficientStock)

	var insufficientErr *InsufficientStockError
	require.ErrorAs(t, err, &insufficientErr)
	require.Equal(t, int64(2), insufficientErr.ProductID)
	require.Equal(t, "Poster", insufficientErr.ProductName)
	require.Equal(t, 5, insufficientErr.Requested)
	require.Equal(t, 2, insufficientErr.Available)

	// No rows written, stock untouched.
	require.Empty(t, store.history)
	require.Equal(t, 2, store.products[2].StockQuantity)
}

func TestAdjustFlipsStatusAtZeroAndBack(t *testing.T) {
	store := newMemoryTxStore(Product{ID: 3, Name: "Shirt", SKU: "SH-03", StockQuantity: 2, Status: ProductStatusActive})
	ledger := NewLedger()
	ctx := context.Background()

	_, err := ledger.Adjust(ctx, store, AdjustInput{ProductID: 3, Delta: -2, ChangeType: ChangeSale})
	require.NoError(t, err)
	require.Equal(t, ProductStatusOutOfStock, store.products[3].Status)

	_, err = ledger.Adjust(ctx, store, AdjustInput{ProductID: 3, Delta: 2, ChangeType: ChangeReturn})
	require.NoError(t, err)
	require.Equal(t, ProductStatusActive, store.products[3].Status)
	require.Equal(t, 2, store.products[3].StockQuantity)
}

func TestAdjustRunningSumMatchesStock(t *testing.T) {
	initial := 50
	store := newMemoryTxStore(Product{ID: 4, Name: "Cap", SKU: "CP-04", StockQuantity: initial, Status: ProductStatusActive})
	ledger := NewLedger()
	ctx := context.Background()

	deltas := []int{-5, -3, 4, -10, 2, -1}
	for _, d := range deltas {
		changeType := ChangeSale
		if d > 0 {
			changeType = ChangeReturn
		}
		_, err := ledger.Adjust(ctx, store, AdjustInput{ProductID: 4, Delta: d, ChangeType: changeType})
		require.NoError(t, err)
	}

	sum := 0
	for _, h := range store.history {
		sum += h.QuantityChange
		require.Equal(t, h.QuantityBefore+h.QuantityChange, h.QuantityAfter)
	}
	require.Equal(t, initial+sum, store.products[4].StockQuantity)
}

func TestAdjustRejectsZeroDeltaAndMissingProduct(t *testing.T) {
	store := newMemoryTxStore()
	ledger := NewLedger()
	ctx := context.Background()

	_, err := ledger.Adjust(ctx, store, AdjustInput{ProductID: 1, Delta: 0, ChangeType: ChangeAdjustment})
	require.ErrorIs(t, err, ErrInvalidDelta)

	_, err = ledger.Adjust(ctx, store, AdjustInput{ProductID: 99, Delta: -1, ChangeType: ChangeSale})
	require.ErrorIs(t, err, ErrProductNotFound)
}

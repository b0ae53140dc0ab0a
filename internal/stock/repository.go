package stock

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgTxStore struct {
	q DBTX
}

// NewTxStore binds a TxStore to an open transaction.
func NewTxStore(q DBTX) TxStore {
	return &pgTxStore{q: q}
}

func (s *pgTxStore) GetProductForUpdate(ctx context.Context, productID int64) (Product, error) {
	row := s.q.QueryRow(ctx, `
		SELECT id, name, sku, stock_quantity, status
		FROM products
		WHERE id = $1
		FOR UPDATE
	`, productID)
	var p Product
	if err := row.Scan(&p.ID, &p.Name, &p.SKU, &p.StockQuantity, &p.Status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrProductNotFound
		}
		return Product{}, err
	}
	return p, nil
}

func (s *pgTxStore) UpdateProductStock(ctx context.Context, productID int64, quantity int, status string) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE products SET stock_quantity = $2, status = $3, updated_at = NOW()
		WHERE id = $1
	`, productID, quantity, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (s *pgTxStore) InsertHistory(ctx context.Context, h History) (int64, error) {
	var id int64
	err := s.q.QueryRow(ctx, `
		INSERT INTO stock_history (
			product_id, quantity_change, quantity_before, quantity_after,
			change_type, reference_id, reference_type, actor_id, note, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`, h.ProductID, h.QuantityChange, h.QuantityBefore, h.QuantityAfter,
		h.ChangeType, h.ReferenceID, h.ReferenceType, h.ActorID, h.Note, h.CreatedAt,
	).Scan(&id)
	return id, err
}

// Repository reads the ledger outside of transactions.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// HistoryFilter narrows ListHistory results.
type HistoryFilter struct {
	ProductID  int64
	ChangeType ChangeType
	Limit      int
	Offset     int
}

// ListHistory returns ledger rows for a product, newest first.
func (r *Repository) ListHistory(ctx context.Context, filter HistoryFilter) ([]History, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, product_id, quantity_change, quantity_before, quantity_after,
		       change_type, reference_id, reference_type, actor_id, note, created_at
		FROM stock_history
		WHERE product_id = $1
	`
	args := []any{filter.ProductID}
	if filter.ChangeType != "" {
		query += ` AND change_type = $2 ORDER BY created_at DESC, id DESC LIMIT $3 OFFSET $4`
		args = append(args, filter.ChangeType, limit, filter.Offset)
	} else {
		query += ` ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`
		args = append(args, limit, filter.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []History
	for rows.Next() {
		var h History
		if err := rows.Scan(
			&h.ID, &h.ProductID, &h.QuantityChange, &h.QuantityBefore, &h.QuantityAfter,
			&h.ChangeType, &h.ReferenceID, &h.ReferenceType, &h.ActorID, &h.Note, &h.CreatedAt,
		); err != nil {
			return nil, err
		}
		history = append(history, h)
	}
	return history, rows.Err()
}

package products

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed product reads.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const productColumns = `id, sku, name, description, category_id, price_excl_vat, vat_rate,
       stock_quantity, status, image_path, created_at, updated_at`

// Get fetches one product.
func (r *Repository) Get(ctx context.Context, id int64) (*Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	var p Product
	err := row.Scan(
		&p.ID, &p.SKU, &p.Name, &p.Description, &p.CategoryID, &p.PriceExclVAT, &p.VATRate,
		&p.StockQuantity, &p.Status, &p.ImagePath, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// List returns products matching the filter plus the unpaged total.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Product, int, error) {
	conditions := "WHERE 1=1"
	var args []any
	argPos := 1

	if filter.CategoryID != nil {
		conditions += fmt.Sprintf(" AND category_id = $%d", argPos)
		args = append(args, *filter.CategoryID)
		argPos++
	}
	if filter.Status != "" {
		conditions += fmt.Sprintf(" AND status = $%d", argPos)
		args = append(args, filter.Status)
		argPos++
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM products "+conditions, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf("SELECT %s FROM products %s ORDER BY name, id LIMIT $%d OFFSET $%d",
		productColumns, conditions, argPos, argPos+1)
	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(
			&p.ID, &p.SKU, &p.Name, &p.Description, &p.CategoryID, &p.PriceExclVAT, &p.VATRate,
			&p.StockQuantity, &p.Status, &p.ImagePath, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

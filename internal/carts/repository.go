package carts

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx so the cart can be cleared
// inside the order transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository provides PostgreSQL backed cart persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get loads a cart and its items.
func (r *Repository) Get(ctx context.Context, cartID int64) (*Cart, error) {
	return getTx(ctx, r.pool, cartID)
}

// GetTx is Get bound to an open transaction.
func GetTx(ctx context.Context, q DBTX, cartID int64) (*Cart, error) {
	return getTx(ctx, q, cartID)
}

func getTx(ctx context.Context, q DBTX, cartID int64) (*Cart, error) {
	row := q.QueryRow(ctx, `
		SELECT id, user_id, session_key, subtotal_excl_vat, total_vat, discount_amount,
		       voucher_code, created_at, updated_at
		FROM carts WHERE id = $1
	`, cartID)
	var c Cart
	err := row.Scan(
		&c.ID, &c.UserID, &c.SessionKey, &c.SubtotalExclVAT, &c.TotalVAT, &c.DiscountAmount,
		&c.VoucherCode, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	rows, err := q.Query(ctx, `
		SELECT id, cart_id, product_id, product_name, sku, quantity,
		       unit_price_excl_vat, vat_rate, unit_vat_amount, unit_price_incl_vat
		FROM cart_items WHERE cart_id = $1
		ORDER BY id
	`, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var item CartItem
		if err := rows.Scan(
			&item.ID, &item.CartID, &item.ProductID, &item.ProductName, &item.SKU, &item.Quantity,
			&item.UnitPriceExclVAT, &item.VATRate, &item.UnitVATAmount, &item.UnitPriceInclVAT,
		); err != nil {
			return nil, err
		}
		c.Items = append(c.Items, item)
	}
	return &c, rows.Err()
}

// SetVoucher stores the applied voucher and its computed discount on the
// cart. A nil code removes the voucher.
func (r *Repository) SetVoucher(ctx context.Context, cartID int64, code *string, discount float64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE carts SET voucher_code = $2, discount_amount = $3, updated_at = NOW()
		WHERE id = $1
	`, cartID, code, discount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearTx empties the cart inside the caller's transaction: items are
// deleted and the computed totals reset to zero.
func ClearTx(ctx context.Context, q DBTX, cartID int64) error {
	if _, err := q.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return err
	}
	_, err := q.Exec(ctx, `
		UPDATE carts
		SET subtotal_excl_vat = 0, total_vat = 0, discount_amount = 0,
		    voucher_code = NULL, updated_at = NOW()
		WHERE id = $1
	`, cartID)
	return err
}

package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/orbitshop/orbitshop/internal/carts"
	"github.com/orbitshop/orbitshop/internal/catalog/products"
	"github.com/orbitshop/orbitshop/internal/platform/db"
	"github.com/orbitshop/orbitshop/internal/stock"
	"github.com/orbitshop/orbitshop/internal/vouchers"
)

// Repository persists orders in PostgreSQL.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (*Order, error)
	GetByNumber(ctx context.Context, number string) (*Order, error)
	List(ctx context.Context, req ListOrdersRequest) ([]Order, int, error)
}

// TxRepository exposes every write the order engine performs inside one
// transaction: the order and item inserts, the stock ledger, voucher
// consumption and the cart clear. Keeping them on one interface is what
// guarantees all-or-nothing semantics.
type TxRepository interface {
	GetOrder(ctx context.Context, id int64) (*Order, error)
	CountCreatedOn(ctx context.Context, day time.Time) (int64, error)
	InsertOrder(ctx context.Context, o Order) (int64, error)
	InsertItem(ctx context.Context, item OrderItem) (int64, error)
	UpdateStatus(ctx context.Context, id int64, status OrderStatus, tracking, packingMedia *string) error
	MarkCancelled(ctx context.Context, id int64, at time.Time) error

	Stock() stock.TxStore
	GetProduct(ctx context.Context, id int64) (*products.Product, error)
	GetCart(ctx context.Context, cartID int64) (*carts.Cart, error)
	ClearCart(ctx context.Context, cartID int64) error
	GetVoucher(ctx context.Context, code string) (*vouchers.Voucher, error)
	ConsumeVoucher(ctx context.Context, usage vouchers.Usage) error
}

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

// WithTx runs fn inside a repeatable-read transaction.
func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx, stock: stock.NewTxStore(tx)})
	})
}

const orderColumns = `id, order_number, user_id, guest_name, guest_email, guest_phone,
       shipping_address, shipping_province, shipping_postcode,
       subtotal_excl_vat, total_vat, discount_amount, shipping_cost, total_amount,
       voucher_code, status, payment_status, tracking_number, packing_media_path,
       cancelled_at, created_at, updated_at`

func (r *repository) Get(ctx context.Context, id int64) (*Order, error) {
	return getOrder(ctx, r.pool, `WHERE id = $1`, id)
}

func (r *repository) GetByNumber(ctx context.Context, number string) (*Order, error) {
	return getOrder(ctx, r.pool, `WHERE order_number = $1`, number)
}

func getOrder(ctx context.Context, q dbtx, where string, arg any) (*Order, error) {
	row := q.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders `+where, arg)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	rows, err := q.Query(ctx, `
		SELECT id, order_id, product_id, product_name, sku, quantity,
		       unit_price_excl_vat, vat_rate, unit_vat_amount, unit_price_incl_vat, line_total_incl_vat
		FROM order_items WHERE order_id = $1
		ORDER BY id
	`, o.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var item OrderItem
		if err := rows.Scan(
			&item.ID, &item.OrderID, &item.ProductID, &item.ProductName, &item.SKU, &item.Quantity,
			&item.UnitPriceExclVAT, &item.VATRate, &item.UnitVATAmount, &item.UnitPriceInclVAT, &item.LineTotalInclVAT,
		); err != nil {
			return nil, err
		}
		o.Items = append(o.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return o, nil
}

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.UserID, &o.GuestName, &o.GuestEmail, &o.GuestPhone,
		&o.ShippingAddress, &o.ShippingProvince, &o.ShippingPostcode,
		&o.SubtotalExclVAT, &o.TotalVAT, &o.DiscountAmount, &o.ShippingCost, &o.TotalAmount,
		&o.VoucherCode, &o.Status, &o.PaymentStatus, &o.TrackingNumber, &o.PackingMediaPath,
		&o.CancelledAt, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *repository) List(ctx context.Context, req ListOrdersRequest) ([]Order, int, error) {
	conditions := "WHERE 1=1"
	var args []any
	argPos := 1

	if req.Status != nil {
		conditions += fmt.Sprintf(" AND status = $%d", argPos)
		args = append(args, *req.Status)
		argPos++
	}
	if req.PaymentStatus != nil {
		conditions += fmt.Sprintf(" AND payment_status = $%d", argPos)
		args = append(args, *req.PaymentStatus)
		argPos++
	}
	if req.UserID != nil {
		conditions += fmt.Sprintf(" AND user_id = $%d", argPos)
		args = append(args, *req.UserID)
		argPos++
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM orders "+conditions, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf("SELECT %s FROM orders %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d",
		orderColumns, conditions, argPos, argPos+1)
	args = append(args, limit, req.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *o)
	}
	return out, total, rows.Err()
}

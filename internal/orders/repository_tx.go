package orders

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/orbitshop/orbitshop/internal/carts"
	"github.com/orbitshop/orbitshop/internal/catalog/products"
	"github.com/orbitshop/orbitshop/internal/stock"
	"github.com/orbitshop/orbitshop/internal/vouchers"
)

type txRepository struct {
	tx    pgx.Tx
	stock stock.TxStore
}

func (t *txRepository) GetOrder(ctx context.Context, id int64) (*Order, error) {
	return getOrder(ctx, t.tx, `WHERE id = $1 FOR UPDATE`, id)
}

// CountCreatedOn counts orders created on the given day, used to derive the
// daily sequence component of the order number.
func (t *txRepository) CountCreatedOn(ctx context.Context, day time.Time) (int64, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.Add(24 * time.Hour)
	var count int64
	err := t.tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM orders WHERE created_at >= $1 AND created_at < $2
	`, start, end).Scan(&count)
	return count, err
}

func (t *txRepository) InsertOrder(ctx context.Context, o Order) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO orders (
			order_number, user_id, guest_name, guest_email, guest_phone,
			shipping_address, shipping_province, shipping_postcode,
			subtotal_excl_vat, total_vat, discount_amount, shipping_cost, total_amount,
			voucher_code, status, payment_status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id
	`,
		o.OrderNumber, o.UserID, o.GuestName, o.GuestEmail, o.GuestPhone,
		o.ShippingAddress, o.ShippingProvince, o.ShippingPostcode,
		o.SubtotalExclVAT, o.TotalVAT, o.DiscountAmount, o.ShippingCost, o.TotalAmount,
		o.VoucherCode, o.Status, o.PaymentStatus,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, ErrDuplicateNumber
		}
		return 0, err
	}
	return id, nil
}

func (t *txRepository) InsertItem(ctx context.Context, item OrderItem) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO order_items (
			order_id, product_id, product_name, sku, quantity,
			unit_price_excl_vat, vat_rate, unit_vat_amount, unit_price_incl_vat, line_total_incl_vat
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`,
		item.OrderID, item.ProductID, item.ProductName, item.SKU, item.Quantity,
		item.UnitPriceExclVAT, item.VATRate, item.UnitVATAmount, item.UnitPriceInclVAT, item.LineTotalInclVAT,
	).Scan(&id)
	return id, err
}

func (t *txRepository) UpdateStatus(ctx context.Context, id int64, status OrderStatus, tracking, packingMedia *string) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE orders
		SET status = $2,
		    tracking_number = COALESCE($3, tracking_number),
		    packing_media_path = COALESCE($4, packing_media_path),
		    updated_at = NOW()
		WHERE id = $1
	`, id, status, tracking, packingMedia)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepository) MarkCancelled(ctx context.Context, id int64, at time.Time) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE orders
		SET status = $2, payment_status = $3, cancelled_at = $4, updated_at = NOW()
		WHERE id = $1
	`, id, StatusCancelled, PaymentRefunded, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepository) Stock() stock.TxStore {
	return t.stock
}

func (t *txRepository) GetProduct(ctx context.Context, id int64) (*products.Product, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT id, sku, name, description, category_id, price_excl_vat, vat_rate,
		       stock_quantity, status, image_path, created_at, updated_at
		FROM products WHERE id = $1
	`, id)
	var p products.Product
	err := row.Scan(
		&p.ID, &p.SKU, &p.Name, &p.Description, &p.CategoryID, &p.PriceExclVAT, &p.VATRate,
		&p.StockQuantity, &p.Status, &p.ImagePath, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, products.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (t *txRepository) GetCart(ctx context.Context, cartID int64) (*carts.Cart, error) {
	return carts.GetTx(ctx, t.tx, cartID)
}

func (t *txRepository) ClearCart(ctx context.Context, cartID int64) error {
	return carts.ClearTx(ctx, t.tx, cartID)
}

func (t *txRepository) GetVoucher(ctx context.Context, code string) (*vouchers.Voucher, error) {
	return vouchers.GetByCodeTx(ctx, t.tx, code)
}

func (t *txRepository) ConsumeVoucher(ctx context.Context, usage vouchers.Usage) error {
	return vouchers.ConsumeTx(ctx, t.tx, usage)
}

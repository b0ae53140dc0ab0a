package payments

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/orbitshop/orbitshop/internal/platform/db"
)

// Repository persists payments in PostgreSQL.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (*Payment, error)
	GetByOrder(ctx context.Context, orderID int64) (*Payment, error)
	StampReceiptGenerated(ctx context.Context, id int64, at time.Time) error
}

// TxRepository groups the writes one payment operation performs: the
// payment row itself, the receipt allocation and the paired order update.
type TxRepository interface {
	GetPayment(ctx context.Context, id int64) (*Payment, error)
	GetLatestByOrder(ctx context.Context, orderID int64) (*Payment, error)
	InsertPayment(ctx context.Context, p Payment) (int64, error)
	ReplaceSlip(ctx context.Context, id int64, slipPath string, amount float64) error
	SetVerification(ctx context.Context, id int64, status Status, verifiedAmount *float64, transferDate *time.Time, raw json.RawMessage) error
	CountReceiptsOn(ctx context.Context, day time.Time) (int64, error)
	ConfirmReceipt(ctx context.Context, id int64, receipt string, paymentDate time.Time) error
	MarkOrderPaid(ctx context.Context, orderID int64) error
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

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const paymentColumns = `id, order_id, method, amount, slip_image_path, status,
       verified_amount, transfer_date, verification_raw, payment_date,
       receipt_number, receipt_generated_at, created_at, updated_at`

func (r *repository) Get(ctx context.Context, id int64) (*Payment, error) {
	return getPayment(ctx, r.pool, `WHERE id = $1`, id)
}

// GetByOrder returns the most recent payment for the order, which is the
// authoritative one.
func (r *repository) GetByOrder(ctx context.Context, orderID int64) (*Payment, error) {
	return getPayment(ctx, r.pool, `WHERE order_id = $1 ORDER BY created_at DESC, id DESC LIMIT 1`, orderID)
}

func (r *repository) StampReceiptGenerated(ctx context.Context, id int64, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE payments SET receipt_generated_at = $2, updated_at = NOW() WHERE id = $1
	`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func getPayment(ctx context.Context, q dbtx, where string, arg any) (*Payment, error) {
	row := q.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments `+where, arg)
	var p Payment
	err := row.Scan(
		&p.ID, &p.OrderID, &p.Method, &p.Amount, &p.SlipImagePath, &p.Status,
		&p.VerifiedAmount, &p.TransferDate, &p.VerificationRaw, &p.PaymentDate,
		&p.ReceiptNumber, &p.ReceiptGeneratedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

type txRepository struct {
	tx pgx.Tx
}

func (t *txRepository) GetPayment(ctx context.Context, id int64) (*Payment, error) {
	return getPayment(ctx, t.tx, `WHERE id = $1 FOR UPDATE`, id)
}

func (t *txRepository) GetLatestByOrder(ctx context.Context, orderID int64) (*Payment, error) {
	return getPayment(ctx, t.tx, `WHERE order_id = $1 ORDER BY created_at DESC, id DESC LIMIT 1 FOR UPDATE`, orderID)
}

func (t *txRepository) InsertPayment(ctx context.Context, p Payment) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO payments (order_id, method, amount, slip_image_path, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, p.OrderID, p.Method, p.Amount, p.SlipImagePath, p.Status).Scan(&id)
	return id, err
}

// ReplaceSlip swaps the slip reference on an existing attempt and re-enters
// pending, clearing any previous verification outcome.
func (t *txRepository) ReplaceSlip(ctx context.Context, id int64, slipPath string, amount float64) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE payments
		SET slip_image_path = $2, amount = $3, status = $4,
		    verified_amount = NULL, transfer_date = NULL, verification_raw = NULL,
		    updated_at = NOW()
		WHERE id = $1
	`, id, slipPath, amount, StatusPending)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepository) SetVerification(ctx context.Context, id int64, status Status, verifiedAmount *float64, transferDate *time.Time, raw json.RawMessage) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE payments
		SET status = $2, verified_amount = $3, transfer_date = $4,
		    verification_raw = $5, updated_at = NOW()
		WHERE id = $1
	`, id, status, verifiedAmount, transferDate, raw)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepository) CountReceiptsOn(ctx context.Context, day time.Time) (int64, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.Add(24 * time.Hour)
	var count int64
	err := t.tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM payments
		WHERE receipt_number IS NOT NULL AND payment_date >= $1 AND payment_date < $2
	`, start, end).Scan(&count)
	return count, err
}

// ConfirmReceipt allocates the receipt in one conditional update. The
// receipt_number IS NULL predicate is the idempotency guard: a payment that
// already holds a receipt is left untouched and no error is raised, the
// caller re-reads the row to observe the winner.
func (t *txRepository) ConfirmReceipt(ctx context.Context, id int64, receipt string, paymentDate time.Time) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE payments
		SET receipt_number = $2, payment_date = $3, updated_at = NOW()
		WHERE id = $1 AND receipt_number IS NULL
	`, id, receipt, paymentDate)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateReceipt
		}
		return err
	}
	return nil
}

// MarkOrderPaid flips the order's payment side and advances a still-pending
// order to paid. Orders already further along are never regressed.
func (t *txRepository) MarkOrderPaid(ctx context.Context, orderID int64) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE orders
		SET payment_status = 'paid',
		    status = CASE WHEN status = 'pending' THEN 'paid' ELSE status END,
		    updated_at = NOW()
		WHERE id = $1
	`, orderID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errors.New("payments: order not found")
	}
	return nil
}

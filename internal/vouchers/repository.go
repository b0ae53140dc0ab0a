package vouchers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx so voucher consumption
// can run inside the order transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository provides PostgreSQL backed voucher persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const voucherColumns = `id, code, discount_type, value, max_discount_amount, minimum_order_amount,
       start_date, end_date, usage_limit, usage_count, is_active, created_at`

// GetByCode fetches a voucher by its (case-insensitive) code.
func (r *Repository) GetByCode(ctx context.Context, code string) (*Voucher, error) {
	return getByCode(ctx, r.pool, code)
}

// GetByCodeTx is GetByCode bound to an open transaction.
func GetByCodeTx(ctx context.Context, q DBTX, code string) (*Voucher, error) {
	return getByCode(ctx, q, code)
}

func getByCode(ctx context.Context, q DBTX, code string) (*Voucher, error) {
	row := q.QueryRow(ctx, `SELECT `+voucherColumns+` FROM vouchers WHERE code = $1`, strings.ToUpper(strings.TrimSpace(code)))
	var v Voucher
	err := row.Scan(
		&v.ID, &v.Code, &v.Type, &v.Value, &v.MaxDiscountAmount, &v.MinimumOrderAmount,
		&v.StartDate, &v.EndDate, &v.UsageLimit, &v.UsageCount, &v.IsActive, &v.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

// ConsumeTx increments the usage counter and records one redemption inside
// the caller's transaction. The conditional update keeps concurrent
// checkouts from blowing past the usage limit.
func ConsumeTx(ctx context.Context, q DBTX, usage Usage) error {
	tag, err := q.Exec(ctx, `
		UPDATE vouchers
		SET usage_count = usage_count + 1
		WHERE id = $1 AND (usage_limit IS NULL OR usage_count < usage_limit)
	`, usage.VoucherID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUsageExhausted
	}

	usedAt := usage.UsedAt
	if usedAt.IsZero() {
		usedAt = time.Now()
	}
	_, err = q.Exec(ctx, `
		INSERT INTO voucher_usages (voucher_id, order_id, user_id, discount_amount, used_at)
		VALUES ($1, $2, $3, $4, $5)
	`, usage.VoucherID, usage.OrderID, usage.UserID, usage.DiscountAmount, usedAt)
	return err
}

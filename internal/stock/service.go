package stock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/orbitshop/orbitshop/internal/platform/db"
	"github.com/orbitshop/orbitshop/internal/shared"
)

// CacheInvalidator drops cached product listings after a stock change.
// Implemented by the catalog service; may be nil.
type CacheInvalidator interface {
	InvalidateCache(ctx context.Context) error
}

// Service exposes staff-facing stock operations: manual adjustments and the
// history view. Order-driven mutations go through the ledger inside the
// order transaction instead.
type Service struct {
	pool    *pgxpool.Pool
	repo    *Repository
	ledger  *Ledger
	catalog CacheInvalidator
	audit   *shared.AuditLogger
	logger  *slog.Logger
}

// NewService wires the stock service.
func NewService(pool *pgxpool.Pool, repo *Repository, ledger *Ledger, catalog CacheInvalidator, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	return &Service{pool: pool, repo: repo, ledger: ledger, catalog: catalog, audit: audit, logger: logger}
}

// Adjust applies a manual correction or restock in its own transaction.
func (s *Service) Adjust(ctx context.Context, in AdjustInput) (History, error) {
	if in.ChangeType != ChangeAdjustment && in.ChangeType != ChangeRestock {
		return History{}, fmt.Errorf("stock: change type %q is not a manual adjustment", in.ChangeType)
	}

	var h History
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		h, err = s.ledger.Adjust(ctx, NewTxStore(tx), in)
		return err
	})
	if err != nil {
		return History{}, err
	}

	if s.catalog != nil {
		if err := s.catalog.InvalidateCache(ctx); err != nil {
			s.logger.Warn("product cache invalidation failed", "product_id", in.ProductID, "error", err)
		}
	}

	if s.audit != nil {
		log := shared.AuditLog{
			ActorID:  in.ActorID,
			Action:   "stock.adjust",
			Entity:   "product",
			EntityID: fmt.Sprintf("%d", in.ProductID),
			Meta: map[string]any{
				"change_type":     in.ChangeType,
				"quantity_change": in.Delta,
				"quantity_after":  h.QuantityAfter,
			},
			At: time.Now().UTC(),
		}
		if err := s.audit.Record(ctx, log); err != nil {
			s.logger.Warn("audit record failed", "action", "stock.adjust", "product_id", in.ProductID, "error", err)
		}
	}
	return h, nil
}

// ListHistory returns ledger rows for a product, newest first.
func (s *Service) ListHistory(ctx context.Context, filter HistoryFilter) ([]History, error) {
	return s.repo.ListHistory(ctx, filter)
}

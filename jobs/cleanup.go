package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/orbitshop/orbitshop/internal/shared"
)

// idempotencyRetention is how long processed keys are kept before pruning.
const idempotencyRetention = 7 * 24 * time.Hour

// IdempotencyCleaner prunes expired idempotency keys on a cron schedule.
type IdempotencyCleaner struct {
	store  *shared.IdempotencyStore
	logger *slog.Logger
}

// NewIdempotencyCleaner wires the cleaner.
func NewIdempotencyCleaner(store *shared.IdempotencyStore, logger *slog.Logger) *IdempotencyCleaner {
	return &IdempotencyCleaner{store: store, logger: logger}
}

// Handle processes TaskIdempotencyCleanup tasks.
func (c *IdempotencyCleaner) Handle(ctx context.Context, t *asynq.Task) error {
	if err := c.store.Cleanup(ctx, idempotencyRetention); err != nil {
		return err
	}
	c.logger.Info("idempotency keys pruned", "retention", idempotencyRetention.String())
	return nil
}

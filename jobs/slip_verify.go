package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/orbitshop/orbitshop/internal/payments"
)

// SlipVerifier runs queued slip verifications. Provider outages fail the
// task so asynq retries with backoff; a definitive verdict, verified or
// failed, completes it.
type SlipVerifier struct {
	service *payments.Service
	logger  *slog.Logger
}

// NewSlipVerifier wires the verifier.
func NewSlipVerifier(service *payments.Service, logger *slog.Logger) *SlipVerifier {
	return &SlipVerifier{service: service, logger: logger}
}

// Handle processes TaskSlipVerification tasks.
func (v *SlipVerifier) Handle(ctx context.Context, t *asynq.Task) error {
	var payload PaymentTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	payment, err := v.service.VerifySlip(ctx, payload.PaymentID)
	if err != nil {
		if errors.Is(err, payments.ErrNotFound) {
			v.logger.Warn("slip verification skipped, payment missing", "payment_id", payload.PaymentID)
			return asynq.SkipRetry
		}
		return fmt.Errorf("verify slip for payment %d: %w", payload.PaymentID, err)
	}

	v.logger.Info("slip verification finished", "payment_id", payment.ID, "status", payment.Status)
	return nil
}

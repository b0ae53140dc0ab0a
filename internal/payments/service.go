package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/orbitshop/orbitshop/internal/shared"
	"github.com/orbitshop/orbitshop/internal/slipverify"
)

// receiptRetries bounds receipt-number allocation attempts.
const receiptRetries = 5

// Verifier checks a transfer slip against the expected amount. Implemented
// by the slipverify client; faked in tests.
type Verifier interface {
	Verify(ctx context.Context, slipRef string, expectedAmount float64) (slipverify.Result, error)
}

// Enqueuer hands work to the background worker after a transaction commits.
type Enqueuer interface {
	EnqueueSlipVerification(ctx context.Context, paymentID int64) error
	EnqueueReceiptRender(ctx context.Context, paymentID int64) error
}

// IdempotencyGuard deduplicates confirm requests across processes.
// Implemented by shared.IdempotencyStore; may be nil.
type IdempotencyGuard interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Service drives the payment lifecycle: slip intake, verification,
// confirmation with receipt allocation, and the paired order update.
type Service struct {
	repo        Repository
	verifier    Verifier
	enqueuer    Enqueuer
	idempotency IdempotencyGuard
	audit       *shared.AuditLogger
	logger      *slog.Logger
}

// NewService wires the payment lifecycle.
func NewService(repo Repository, verifier Verifier, enqueuer Enqueuer, idempotency IdempotencyGuard, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	return &Service{
		repo:        repo,
		verifier:    verifier,
		enqueuer:    enqueuer,
		idempotency: idempotency,
		audit:       audit,
		logger:      logger,
	}
}

// Get returns one payment.
func (s *Service) Get(ctx context.Context, id int64) (*Payment, error) {
	return s.repo.Get(ctx, id)
}

// GetByOrder returns the authoritative payment for an order.
func (s *Service) GetByOrder(ctx context.Context, orderID int64) (*Payment, error) {
	return s.repo.GetByOrder(ctx, orderID)
}

// UploadSlip attaches a transfer slip. An existing pending or failed
// attempt is re-entered in place rather than duplicated; only a verified
// payment forces a fresh row. Verification runs in the background after
// commit.
func (s *Service) UploadSlip(ctx context.Context, req UploadSlipRequest) (*Payment, error) {
	var payment *Payment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		latest, err := tx.GetLatestByOrder(ctx, req.OrderID)
		switch {
		case err == nil && latest.Status != StatusVerified:
			if err := tx.ReplaceSlip(ctx, latest.ID, req.SlipImagePath, req.Amount); err != nil {
				return err
			}
			payment, err = tx.GetPayment(ctx, latest.ID)
			return err
		case err == nil || errors.Is(err, ErrNotFound):
			slip := req.SlipImagePath
			id, err := tx.InsertPayment(ctx, Payment{
				OrderID:       req.OrderID,
				Method:        MethodBankTransfer,
				Amount:        req.Amount,
				SlipImagePath: &slip,
				Status:        StatusPending,
			})
			if err != nil {
				return err
			}
			payment, err = tx.GetPayment(ctx, id)
			return err
		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}

	if s.enqueuer != nil {
		if err := s.enqueuer.EnqueueSlipVerification(ctx, payment.ID); err != nil {
			s.logger.Error("enqueue slip verification failed", "payment_id", payment.ID, "error", err)
		}
	}
	return payment, nil
}

// VerifySlip calls the external verifier and ingests the outcome. The
// external call happens before the transaction opens; a verified result
// confirms the payment in the same transaction that stores it.
func (s *Service) VerifySlip(ctx context.Context, paymentID int64) (*Payment, error) {
	current, err := s.repo.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if current.Status == StatusVerified {
		return current, nil
	}
	if current.SlipImagePath == nil {
		return nil, fmt.Errorf("payment %d has no slip to verify", paymentID)
	}

	result, err := s.verifier.Verify(ctx, *current.SlipImagePath, current.Amount)
	if err != nil {
		// Outages are retryable; do not record a failed verdict for them.
		return nil, err
	}

	var payment *Payment
	if !result.Verified {
		err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			if err := tx.SetVerification(ctx, paymentID, StatusFailed, nil, result.TransferDate, result.Raw); err != nil {
				return err
			}
			payment, err = tx.GetPayment(ctx, paymentID)
			return err
		})
		if err != nil {
			return nil, err
		}
		return payment, nil
	}

	err = s.withReceiptRetry(ctx, func(tx TxRepository, receipt string) error {
		if err := tx.SetVerification(ctx, paymentID, StatusVerified, &result.Amount, result.TransferDate, result.Raw); err != nil {
			return err
		}
		if err := tx.ConfirmReceipt(ctx, paymentID, receipt, time.Now().UTC()); err != nil {
			return err
		}
		if err := tx.MarkOrderPaid(ctx, current.OrderID); err != nil {
			return err
		}
		payment, err = tx.GetPayment(ctx, paymentID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.enqueueRender(ctx, payment.ID)
	return payment, nil
}

// RecordManual stores a payment staff verified out of band and confirms it
// immediately.
func (s *Service) RecordManual(ctx context.Context, req ManualPaymentRequest) (*Payment, error) {
	var payment *Payment
	err := s.withReceiptRetry(ctx, func(tx TxRepository, receipt string) error {
		id, err := tx.InsertPayment(ctx, Payment{
			OrderID: req.OrderID,
			Method:  req.Method,
			Amount:  req.Amount,
			Status:  StatusPending,
		})
		if err != nil {
			return err
		}
		amount := req.Amount
		if err := tx.SetVerification(ctx, id, StatusVerified, &amount, req.TransferDate, nil); err != nil {
			return err
		}
		if err := tx.ConfirmReceipt(ctx, id, receipt, time.Now().UTC()); err != nil {
			return err
		}
		if err := tx.MarkOrderPaid(ctx, req.OrderID); err != nil {
			return err
		}
		payment, err = tx.GetPayment(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.enqueueRender(ctx, payment.ID)
	s.recordAudit(ctx, req.ActorID, "payment.manual", payment)
	return payment, nil
}

// Confirm allocates a receipt for a verified payment and marks the order
// paid. A payment that already holds a receipt is returned as-is, so a
// double confirm can never mint two receipt numbers.
func (s *Service) Confirm(ctx context.Context, paymentID, actorID int64) (*Payment, error) {
	key := fmt.Sprintf("payment-confirm-%d", paymentID)
	keyHeld := false
	if s.idempotency != nil {
		switch err := s.idempotency.CheckAndInsert(ctx, key, "payments"); {
		case err == nil:
			keyHeld = true
		case errors.Is(err, shared.ErrIdempotencyConflict):
			// A previous confirm holds the key. If it completed, hand back
			// its receipt without re-entering the allocation path.
			existing, err := s.repo.Get(ctx, paymentID)
			if err != nil {
				return nil, err
			}
			if existing.ReceiptNumber != nil {
				return existing, nil
			}
			// Key left behind by an attempt that died mid-flight; carry on
			// and let the conditional receipt update arbitrate.
		default:
			// The store being unreachable must not block confirmation; the
			// receipt_number IS NULL update still prevents a double issue.
			s.logger.Warn("idempotency check failed", "payment_id", paymentID, "error", err)
		}
	}

	var payment *Payment
	confirmedNow := false
	err := s.withReceiptRetry(ctx, func(tx TxRepository, receipt string) error {
		p, err := tx.GetPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		if p.ReceiptNumber != nil {
			payment = p
			return nil
		}
		if p.Status != StatusVerified {
			return ErrNotVerified
		}
		if err := tx.ConfirmReceipt(ctx, paymentID, receipt, time.Now().UTC()); err != nil {
			return err
		}
		if err := tx.MarkOrderPaid(ctx, p.OrderID); err != nil {
			return err
		}
		confirmedNow = true
		payment, err = tx.GetPayment(ctx, paymentID)
		return err
	})
	if err != nil {
		if keyHeld {
			if derr := s.idempotency.Delete(ctx, key); derr != nil {
				s.logger.Warn("idempotency key release failed", "payment_id", paymentID, "error", derr)
			}
		}
		return nil, err
	}

	if confirmedNow {
		s.enqueueRender(ctx, payment.ID)
		s.recordAudit(ctx, actorID, "payment.confirm", payment)
	}
	return payment, nil
}

// withReceiptRetry runs fn with a freshly generated receipt number,
// retrying when the unique constraint rejects a concurrent duplicate.
func (s *Service) withReceiptRetry(ctx context.Context, fn func(tx TxRepository, receipt string) error) error {
	for attempt := 0; attempt < receiptRetries; attempt++ {
		err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			now := time.Now().UTC()
			count, err := tx.CountReceiptsOn(ctx, now)
			if err != nil {
				return err
			}
			return fn(tx, formatReceiptNumber(now, count+1+int64(attempt)))
		})
		if errors.Is(err, ErrDuplicateReceipt) {
			s.logger.Warn("receipt number collision, retrying", "attempt", attempt+1)
			continue
		}
		return err
	}
	return ErrReceiptExhausted
}

// formatReceiptNumber renders RCP-{YYYYMMDD}-{5-digit sequence}.
func formatReceiptNumber(day time.Time, seq int64) string {
	return fmt.Sprintf("RCP-%s-%05d", day.Format("20060102"), seq)
}

func (s *Service) enqueueRender(ctx context.Context, paymentID int64) {
	if s.enqueuer == nil {
		return
	}
	if err := s.enqueuer.EnqueueReceiptRender(ctx, paymentID); err != nil {
		// Receipt rendering is best effort; the stamp stays empty so the
		// render can be retried manually.
		s.logger.Error("enqueue receipt render failed", "payment_id", paymentID, "error", err)
	}
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, p *Payment) {
	if s.audit == nil {
		return
	}
	meta := map[string]any{"order_id": p.OrderID, "amount": p.Amount}
	if p.ReceiptNumber != nil {
		meta["receipt_number"] = *p.ReceiptNumber
	}
	log := shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "payment",
		EntityID: fmt.Sprintf("%d", p.ID),
		Meta:     meta,
		At:       time.Now().UTC(),
	}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Warn("audit record failed", "action", action, "payment_id", p.ID, "error", err)
	}
}

package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hibiken/asynq"

	"github.com/orbitshop/orbitshop/internal/orders"
	"github.com/orbitshop/orbitshop/internal/payments"
	"github.com/orbitshop/orbitshop/report"
)

// ReceiptRenderer renders receipt PDFs for confirmed payments. Rendering is
// at-least-once: the receipt_generated_at stamp makes re-delivery a no-op.
type ReceiptRenderer struct {
	payments payments.Repository
	orders   orders.Repository
	pdf      *report.Client
	dir      string
	logger   *slog.Logger
}

// NewReceiptRenderer wires the renderer.
func NewReceiptRenderer(paymentsRepo payments.Repository, ordersRepo orders.Repository, pdf *report.Client, dir string, logger *slog.Logger) *ReceiptRenderer {
	return &ReceiptRenderer{
		payments: paymentsRepo,
		orders:   ordersRepo,
		pdf:      pdf,
		dir:      dir,
		logger:   logger,
	}
}

// Handle processes TaskReceiptRender tasks.
func (r *ReceiptRenderer) Handle(ctx context.Context, t *asynq.Task) error {
	var payload PaymentTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	payment, err := r.payments.Get(ctx, payload.PaymentID)
	if err != nil {
		return fmt.Errorf("load payment %d: %w", payload.PaymentID, err)
	}
	if payment.ReceiptNumber == nil {
		r.logger.Warn("receipt render skipped, payment has no receipt", "payment_id", payment.ID)
		return asynq.SkipRetry
	}
	if payment.ReceiptGeneratedAt != nil {
		return nil
	}

	order, err := r.orders.Get(ctx, payment.OrderID)
	if err != nil {
		return fmt.Errorf("load order %d: %w", payment.OrderID, err)
	}

	html, err := report.BuildReceiptHTML(order, payment)
	if err != nil {
		return fmt.Errorf("build receipt html: %w", err)
	}
	pdf, err := r.pdf.RenderHTML(ctx, html)
	if err != nil {
		return fmt.Errorf("render receipt pdf: %w", err)
	}

	path := filepath.Join(r.dir, *payment.ReceiptNumber+".pdf")
	if err := os.WriteFile(path, pdf, 0o644); err != nil {
		return fmt.Errorf("write receipt file: %w", err)
	}

	if err := r.payments.StampReceiptGenerated(ctx, payment.ID, time.Now().UTC()); err != nil {
		return fmt.Errorf("stamp receipt generated: %w", err)
	}
	r.logger.Info("receipt rendered", "payment_id", payment.ID, "receipt", *payment.ReceiptNumber, "path", path)
	return nil
}

package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/orbitshop/orbitshop/internal/shared"
	"github.com/orbitshop/orbitshop/internal/stock"
	"github.com/orbitshop/orbitshop/internal/vat"
	"github.com/orbitshop/orbitshop/internal/vouchers"
)

// numberRetries bounds how many times order creation retries a colliding
// order number before giving up.
const numberRetries = 5

// Service orchestrates order creation, fulfilment transitions and
// cancellation. Every mutation runs in a single repeatable-read transaction
// so the order rows, stock ledger, voucher consumption and cart clear commit
// or roll back together.
type Service struct {
	repo        Repository
	evaluator   *vouchers.Evaluator
	ledger      *stock.Ledger
	vatCalc     *vat.Calculator
	shippingFee float64
	catalog     stock.CacheInvalidator
	audit       *shared.AuditLogger
	logger      *slog.Logger
}

// NewService wires the order engine.
func NewService(repo Repository, evaluator *vouchers.Evaluator, ledger *stock.Ledger, vatCalc *vat.Calculator, shippingFee float64, catalog stock.CacheInvalidator, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	return &Service{
		repo:        repo,
		evaluator:   evaluator,
		ledger:      ledger,
		vatCalc:     vatCalc,
		shippingFee: shippingFee,
		catalog:     catalog,
		audit:       audit,
		logger:      logger,
	}
}

// CreateFromCart converts a priced cart into a pending order. The cart's
// item lines are taken as-is; an applied voucher is re-evaluated against the
// final cart so the discount and the re-derived VAT match what a direct
// order with the same lines would compute. Stock is decremented line by line
// under row locks and the cart is emptied on success.
func (s *Service) CreateFromCart(ctx context.Context, req CheckoutRequest) (*Order, error) {
	var created *Order
	err := s.withNumberRetry(ctx, func(tx TxRepository, number string) error {
		cart, err := tx.GetCart(ctx, req.CartID)
		if err != nil {
			return err
		}
		if len(cart.Items) == 0 {
			return ErrEmptyItems
		}

		subtotal := cart.SubtotalExclVAT
		totalVAT := cart.TotalVAT
		var (
			discount   float64
			voucherRef *vouchers.Voucher
		)
		if cart.VoucherCode != nil {
			voucher, err := tx.GetVoucher(ctx, *cart.VoucherCode)
			if err != nil {
				return err
			}
			d, err := s.evaluator.Evaluate(*voucher, subtotal, totalVAT, time.Now().UTC())
			if err != nil {
				return err
			}
			discount = d.Amount
			totalVAT = d.NewVAT
			voucherRef = voucher
		}

		shipping := s.shippingFee
		if req.ShippingCost != nil {
			shipping = *req.ShippingCost
		}

		order := Order{
			OrderNumber:      number,
			UserID:           req.UserID,
			GuestName:        req.GuestName,
			GuestEmail:       req.GuestEmail,
			GuestPhone:       req.GuestPhone,
			ShippingAddress:  req.ShippingAddress,
			ShippingProvince: req.ShippingProvince,
			ShippingPostcode: req.ShippingPostcode,
			SubtotalExclVAT:  subtotal,
			TotalVAT:         totalVAT,
			DiscountAmount:   discount,
			ShippingCost:     shipping,
			VoucherCode:      cart.VoucherCode,
			Status:           StatusPending,
			PaymentStatus:    PaymentPending,
		}
		order.TotalAmount = vat.Round2(subtotal + totalVAT - discount + shipping)

		orderID, err := tx.InsertOrder(ctx, order)
		if err != nil {
			return err
		}

		actorID := actorFromRequest(req.UserID)
		for _, line := range cart.Items {
			if line.Quantity <= 0 {
				return ErrInvalidQuantity
			}
			item := OrderItem{
				OrderID:          orderID,
				ProductID:        line.ProductID,
				ProductName:      line.ProductName,
				SKU:              line.SKU,
				Quantity:         line.Quantity,
				UnitPriceExclVAT: line.UnitPriceExclVAT,
				VATRate:          line.VATRate,
				UnitVATAmount:    line.UnitVATAmount,
				UnitPriceInclVAT: line.UnitPriceInclVAT,
				LineTotalInclVAT: vat.Round2(line.UnitPriceInclVAT * float64(line.Quantity)),
			}
			if _, err := tx.InsertItem(ctx, item); err != nil {
				return err
			}
			if _, err := s.ledger.Adjust(ctx, tx.Stock(), stock.AdjustInput{
				ProductID:     line.ProductID,
				Delta:         -line.Quantity,
				ChangeType:    stock.ChangeSale,
				ReferenceID:   orderID,
				ReferenceType: "order",
				ActorID:       actorID,
			}); err != nil {
				return err
			}
		}

		if voucherRef != nil {
			if err := tx.ConsumeVoucher(ctx, vouchers.Usage{
				VoucherID:      voucherRef.ID,
				OrderID:        orderID,
				UserID:         req.UserID,
				DiscountAmount: discount,
				UsedAt:         time.Now().UTC(),
			}); err != nil {
				return err
			}
		}

		if err := tx.ClearCart(ctx, req.CartID); err != nil {
			return err
		}

		created, err = tx.GetOrder(ctx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.invalidateCatalog(ctx)
	s.recordAudit(ctx, actorFromRequest(req.UserID), "order.create", created.ID, map[string]any{
		"order_number": created.OrderNumber,
		"total_amount": created.TotalAmount,
		"source":       "cart",
	})
	return created, nil
}

// CreateDirect creates an order from an explicit item list, pricing the
// lines from the current product rows and evaluating the voucher inline.
func (s *Service) CreateDirect(ctx context.Context, req DirectOrderRequest) (*Order, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	var created *Order
	err := s.withNumberRetry(ctx, func(tx TxRepository, number string) error {
		type pricedLine struct {
			item OrderItem
		}
		var (
			lines    []pricedLine
			subtotal float64
			totalVAT float64
		)
		for _, in := range req.Items {
			if in.Quantity <= 0 {
				return ErrInvalidQuantity
			}
			product, err := tx.GetProduct(ctx, in.ProductID)
			if err != nil {
				return err
			}
			bd, err := s.vatCalc.Calculate(product.PriceExclVAT, product.VATRate, vat.ModeExclusive)
			if err != nil {
				return err
			}
			item := OrderItem{
				ProductID:        product.ID,
				ProductName:      product.Name,
				SKU:              product.SKU,
				Quantity:         in.Quantity,
				UnitPriceExclVAT: bd.ExclVAT,
				VATRate:          bd.Rate,
				UnitVATAmount:    bd.VAT,
				UnitPriceInclVAT: bd.InclVAT,
				LineTotalInclVAT: vat.Round2(bd.InclVAT * float64(in.Quantity)),
			}
			lines = append(lines, pricedLine{item: item})
			subtotal = vat.Round2(subtotal + bd.ExclVAT*float64(in.Quantity))
			totalVAT = vat.Round2(totalVAT + bd.VAT*float64(in.Quantity))
		}

		var (
			discount   float64
			voucherRef *vouchers.Voucher
		)
		if req.VoucherCode != nil {
			voucher, err := tx.GetVoucher(ctx, *req.VoucherCode)
			if err != nil {
				return err
			}
			d, err := s.evaluator.Evaluate(*voucher, subtotal, totalVAT, time.Now().UTC())
			if err != nil {
				return err
			}
			discount = d.Amount
			totalVAT = d.NewVAT
			voucherRef = voucher
		}

		shipping := s.shippingFee
		if req.ShippingCost != nil {
			shipping = *req.ShippingCost
		}

		order := Order{
			OrderNumber:      number,
			UserID:           req.UserID,
			GuestName:        req.GuestName,
			GuestEmail:       req.GuestEmail,
			GuestPhone:       req.GuestPhone,
			ShippingAddress:  req.ShippingAddress,
			ShippingProvince: req.ShippingProvince,
			ShippingPostcode: req.ShippingPostcode,
			SubtotalExclVAT:  subtotal,
			TotalVAT:         totalVAT,
			DiscountAmount:   discount,
			ShippingCost:     shipping,
			VoucherCode:      req.VoucherCode,
			Status:           StatusPending,
			PaymentStatus:    PaymentPending,
		}
		order.TotalAmount = vat.Round2(subtotal + totalVAT - discount + shipping)

		orderID, err := tx.InsertOrder(ctx, order)
		if err != nil {
			return err
		}

		for _, line := range lines {
			line.item.OrderID = orderID
			if _, err := tx.InsertItem(ctx, line.item); err != nil {
				return err
			}
			if _, err := s.ledger.Adjust(ctx, tx.Stock(), stock.AdjustInput{
				ProductID:     line.item.ProductID,
				Delta:         -line.item.Quantity,
				ChangeType:    stock.ChangeSale,
				ReferenceID:   orderID,
				ReferenceType: "order",
				ActorID:       req.ActorID,
			}); err != nil {
				return err
			}
		}

		if voucherRef != nil {
			if err := tx.ConsumeVoucher(ctx, vouchers.Usage{
				VoucherID:      voucherRef.ID,
				OrderID:        orderID,
				UserID:         req.UserID,
				DiscountAmount: discount,
				UsedAt:         time.Now().UTC(),
			}); err != nil {
				return err
			}
		}

		created, err = tx.GetOrder(ctx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.invalidateCatalog(ctx)
	s.recordAudit(ctx, req.ActorID, "order.create", created.ID, map[string]any{
		"order_number": created.OrderNumber,
		"total_amount": created.TotalAmount,
		"source":       "direct",
	})
	return created, nil
}

// Get returns one order with its items.
func (s *Service) Get(ctx context.Context, id int64) (*Order, error) {
	return s.repo.Get(ctx, id)
}

// GetByNumber returns one order looked up by its public number.
func (s *Service) GetByNumber(ctx context.Context, number string) (*Order, error) {
	return s.repo.GetByNumber(ctx, number)
}

// List returns a filtered page of orders plus the total match count.
func (s *Service) List(ctx context.Context, req ListOrdersRequest) ([]Order, int, error) {
	return s.repo.List(ctx, req)
}

// AdvanceStatus moves an order one step forward through fulfilment. Skips
// and reversals are rejected with InvalidStatusError.
func (s *Service) AdvanceStatus(ctx context.Context, id int64, actorID int64, req UpdateStatusRequest) (*Order, error) {
	var updated *Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrder(ctx, id)
		if err != nil {
			return err
		}
		if !CanTransition(order.Status, req.Status) {
			return &InvalidStatusError{From: order.Status, To: req.Status}
		}
		if err := tx.UpdateStatus(ctx, id, req.Status, req.TrackingNumber, req.PackingMediaPath); err != nil {
			return err
		}
		updated, err = tx.GetOrder(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, actorID, "order.status", id, map[string]any{
		"status": req.Status,
	})
	return updated, nil
}

// Cancel cancels a pending or paid order, restores every line's stock with
// return-type ledger entries and stamps the cancellation time. Orders that
// have entered fulfilment cannot be cancelled.
func (s *Service) Cancel(ctx context.Context, id int64, req CancelRequest) (*Order, error) {
	var cancelled *Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrder(ctx, id)
		if err != nil {
			return err
		}
		if order.Status != StatusPending && order.Status != StatusPaid {
			return ErrCannotCancel
		}

		for _, item := range order.Items {
			if _, err := s.ledger.Adjust(ctx, tx.Stock(), stock.AdjustInput{
				ProductID:     item.ProductID,
				Delta:         item.Quantity,
				ChangeType:    stock.ChangeReturn,
				ReferenceID:   order.ID,
				ReferenceType: "order_cancellation",
				ActorID:       req.ActorID,
				Note:          req.Reason,
			}); err != nil {
				return err
			}
		}

		if err := tx.MarkCancelled(ctx, id, time.Now().UTC()); err != nil {
			return err
		}
		cancelled, err = tx.GetOrder(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.invalidateCatalog(ctx)
	s.recordAudit(ctx, req.ActorID, "order.cancel", id, map[string]any{
		"reason": req.Reason,
	})
	return cancelled, nil
}

// withNumberRetry runs fn with a freshly generated order number, retrying
// with a new number when the unique constraint rejects a concurrent
// duplicate.
func (s *Service) withNumberRetry(ctx context.Context, fn func(tx TxRepository, number string) error) error {
	for attempt := 0; attempt < numberRetries; attempt++ {
		err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			count, err := tx.CountCreatedOn(ctx, time.Now().UTC())
			if err != nil {
				return err
			}
			return fn(tx, formatOrderNumber(time.Now().UTC(), count+1+int64(attempt)))
		})
		if errors.Is(err, ErrDuplicateNumber) {
			s.logger.Warn("order number collision, retrying", "attempt", attempt+1)
			continue
		}
		return err
	}
	return ErrNumberExhausted
}

// formatOrderNumber renders ORD-{YYYYMMDD}-{5-digit sequence}-{3-char
// random suffix}. The suffix disambiguates concurrent checkouts that read
// the same daily count.
func formatOrderNumber(day time.Time, seq int64) string {
	id := uuid.New()
	suffix := fmt.Sprintf("%X", id[0:2])[:3]
	return fmt.Sprintf("ORD-%s-%05d-%s", day.Format("20060102"), seq, suffix)
}

// invalidateCatalog drops cached product listings after committed stock
// movement. Failures only cost cache freshness, so they are logged and
// swallowed.
func (s *Service) invalidateCatalog(ctx context.Context) {
	if s.catalog == nil {
		return
	}
	if err := s.catalog.InvalidateCache(ctx); err != nil {
		s.logger.Warn("product cache invalidation failed", "error", err)
	}
}

func actorFromRequest(userID *int64) int64 {
	if userID != nil {
		return *userID
	}
	return 0
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, orderID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	log := shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "order",
		EntityID: fmt.Sprintf("%d", orderID),
		Meta:     meta,
		At:       time.Now().UTC(),
	}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Warn("audit record failed", "action", action, "order_id", orderID, "error", err)
	}
}

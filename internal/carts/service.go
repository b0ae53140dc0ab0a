package carts

import (
	"context"
	"time"

	"github.com/orbitshop/orbitshop/internal/vouchers"
)

// VoucherSource looks vouchers up for cart application. Implemented by the
// vouchers repository.
type VoucherSource interface {
	GetByCode(ctx context.Context, code string) (*vouchers.Voucher, error)
}

// Service applies vouchers to carts ahead of checkout. The stored discount
// is display state; checkout re-evaluates the voucher against the final
// cart, so total_vat on the cart always stays the pre-discount item sum.
type Service struct {
	repo       *Repository
	voucherSrc VoucherSource
	evaluator  *vouchers.Evaluator
}

// NewService wires the cart service.
func NewService(repo *Repository, voucherSrc VoucherSource, evaluator *vouchers.Evaluator) *Service {
	return &Service{repo: repo, voucherSrc: voucherSrc, evaluator: evaluator}
}

// Get loads a cart with its items.
func (s *Service) Get(ctx context.Context, cartID int64) (*Cart, error) {
	return s.repo.Get(ctx, cartID)
}

// ApplyVoucher evaluates the voucher against the cart's current totals and
// stores the resulting discount. Usage is not consumed here; that happens
// when the order is created.
func (s *Service) ApplyVoucher(ctx context.Context, cartID int64, code string) (*Cart, error) {
	cart, err := s.repo.Get(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, ErrEmpty
	}

	voucher, err := s.voucherSrc.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	discount, err := s.evaluator.Evaluate(*voucher, cart.SubtotalExclVAT, cart.TotalVAT, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	if err := s.repo.SetVoucher(ctx, cartID, &voucher.Code, discount.Amount); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, cartID)
}

// RemoveVoucher drops any applied voucher from the cart.
func (s *Service) RemoveVoucher(ctx context.Context, cartID int64) (*Cart, error) {
	if err := s.repo.SetVoucher(ctx, cartID, nil, 0); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, cartID)
}

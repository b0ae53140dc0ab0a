package vouchers

import (
	"time"

	"github.com/orbitshop/orbitshop/internal/vat"
)

// Discount is the outcome of evaluating a voucher against a cart.
type Discount struct {
	Amount float64
	// NewVAT is the VAT re-derived for the discounted base using the cart's
	// weighted-average effective rate.
	NewVAT float64
	// EffectiveRate is total VAT over subtotal, as a percentage. For carts
	// mixing VAT rates this is the blended rate the discount is taxed at.
	EffectiveRate float64
}

// Evaluator decides voucher applicability and computes discount amounts.
type Evaluator struct{}

// NewEvaluator builds an Evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Evaluate checks v against the pre-discount subtotal (excl. VAT) and the
// cart's total VAT, returning the discount and the re-derived VAT.
//
// VAT is not simply scaled down line by line: the cart's effective rate
// (totalVAT / subtotal) is applied to the discounted base. A fixed discount
// larger than the subtotal is clamped so the taxable base never goes
// negative.
func (e *Evaluator) Evaluate(v Voucher, subtotal, totalVAT float64, now time.Time) (Discount, error) {
	if v.Value < 0 {
		return Discount{}, ErrInvalidVoucher
	}
	if v.Type == DiscountPercentage && v.Value > 100 {
		return Discount{}, ErrInvalidVoucher
	}
	if !v.IsActive {
		return Discount{}, ErrInactive
	}
	if now.Before(v.StartDate) || now.After(v.EndDate) {
		return Discount{}, ErrOutsideWindow
	}
	if v.UsageLimit != nil && v.UsageCount >= *v.UsageLimit {
		return Discount{}, ErrUsageExhausted
	}
	if subtotal < v.MinimumOrderAmount {
		return Discount{}, ErrMinimumNotMet
	}

	var amount float64
	switch v.Type {
	case DiscountPercentage:
		amount = vat.Round2(subtotal * v.Value / 100)
		if v.MaxDiscountAmount != nil && amount > *v.MaxDiscountAmount {
			amount = *v.MaxDiscountAmount
		}
	case DiscountFixed:
		amount = vat.Round2(v.Value)
		if amount > subtotal {
			amount = subtotal
		}
	default:
		return Discount{}, ErrInvalidVoucher
	}

	var effectiveRate float64
	if subtotal > 0 {
		effectiveRate = totalVAT / subtotal * 100
	}
	newVAT := vat.Round2((subtotal - amount) * effectiveRate / 100)

	return Discount{
		Amount:        amount,
		NewVAT:        newVAT,
		EffectiveRate: effectiveRate,
	}, nil
}

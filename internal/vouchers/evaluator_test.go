package vouchers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func activeVoucher(t DiscountType, value float64) Voucher {
	now := time.Now()
	return Voucher{
		ID:        1,
		Code:      "TEST",
		Type:      t,
		Value:     value,
		StartDate: now.Add(-time.Hour),
		EndDate:   now.Add(time.Hour),
		IsActive:  true,
	}
}

func TestEvaluatePercentageCappedAtMax(t *testing.T) {
	e := NewEvaluator()
	v := activeVoucher(DiscountPercentage, 50)
	cap := 100.0
	v.MaxDiscountAmount = &cap

	d, err := e.Evaluate(v, 1000, 70, time.Now())
	require.NoError(t, err)
	require.Equal(t, 100.0, d.Amount)
}

func TestEvaluatePercentageWithoutCap(t *testing.T) {
	e := NewEvaluator()
	v := activeVoucher(DiscountPercentage, 10)

	d, err := e.Evaluate(v, 200, 14, time.Now())
	require.NoError(t, err)
	require.Equal(t, 20.0, d.Amount)
}

func TestEvaluateFixedClampedToSubtotal(t *testing.T) {
	e := NewEvaluator()
	v := activeVoucher(DiscountFixed, 500)

	d, err := e.Evaluate(v, 300, 21, time.Now())
	require.NoError(t, err)
	require.Equal(t, 300.0, d.Amount)
	require.Equal(t, 0.0, d.NewVAT)
}

func TestEvaluateRederivesVATAtEffectiveRate(t *testing.T) {
	e := NewEvaluator()
	v := activeVoucher(DiscountFixed, 100)

	// Mixed-rate cart: 7% on 500 + 0% on 500 -> effective 3.5%.
	d, err := e.Evaluate(v, 1000, 35, time.Now())
	require.NoError(t, err)
	require.Equal(t, 100.0, d.Amount)
	require.Equal(t, 3.5, d.EffectiveRate)
	require.Equal(t, 31.5, d.NewVAT)
}

func TestEvaluateValidityWindow(t *testing.T) {
	e := NewEvaluator()
	now := time.Now()

	v := activeVoucher(DiscountFixed, 10)
	v.StartDate = now.Add(time.Hour)
	v.EndDate = now.Add(2 * time.Hour)
	_, err := e.Evaluate(v, 100, 7, now)
	require.ErrorIs(t, err, ErrOutsideWindow)

	v = activeVoucher(DiscountFixed, 10)
	v.StartDate = now.Add(-2 * time.Hour)
	v.EndDate = now.Add(-time.Hour)
	_, err = e.Evaluate(v, 100, 7, now)
	require.ErrorIs(t, err, ErrOutsideWindow)
}

func TestEvaluateMinimumOrderAmount(t *testing.T) {
	e := NewEvaluator()
	v := activeVoucher(DiscountPercentage, 10)
	v.MinimumOrderAmount = 500

	_, err := e.Evaluate(v, 499.99, 35, time.Now())
	require.ErrorIs(t, err, ErrMinimumNotMet)

	d, err := e.Evaluate(v, 500, 35, time.Now())
	require.NoError(t, err)
	require.Equal(t, 50.0, d.Amount)
}

func TestEvaluateInactiveAndExhausted(t *testing.T) {
	e := NewEvaluator()

	v := activeVoucher(DiscountFixed, 10)
	v.IsActive = false
	_, err := e.Evaluate(v, 100, 7, time.Now())
	require.ErrorIs(t, err, ErrInactive)

	v = activeVoucher(DiscountFixed, 10)
	limit := 3
	v.UsageLimit = &limit
	v.UsageCount = 3
	_, err = e.Evaluate(v, 100, 7, time.Now())
	require.ErrorIs(t, err, ErrUsageExhausted)
}

func TestEvaluateRejectsMalformedVouchers(t *testing.T) {
	e := NewEvaluator()

	v := activeVoucher(DiscountPercentage, 120)
	_, err := e.Evaluate(v, 100, 7, time.Now())
	require.ErrorIs(t, err, ErrInvalidVoucher)

	v = activeVoucher(DiscountFixed, -5)
	_, err = e.Evaluate(v, 100, 7, time.Now())
	require.ErrorIs(t, err, ErrInvalidVoucher)

	v = activeVoucher(DiscountType("bogo"), 5)
	_, err = e.Evaluate(v, 100, 7, time.Now())
	require.ErrorIs(t, err, ErrInvalidVoucher)
}

package vat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCalculateExclusive(t *testing.T) {
	calc, err := NewCalculator(7)
	require.NoError(t, err)

	cases := []struct {
		name   string
		amount float64
		rate   float64
		want   Breakdown
	}{
		{"standard rate", 100, 7, Breakdown{ExclVAT: 100, VAT: 7, InclVAT: 107, Rate: 7}},
		{"zero rate", 250, 0, Breakdown{ExclVAT: 250, VAT: 0, InclVAT: 250, Rate: 0}},
		{"rounds half up", 33.35, 7, Breakdown{ExclVAT: 33.35, VAT: 2.33, InclVAT: 35.68, Rate: 7}},
		{"zero amount", 0, 7, Breakdown{ExclVAT: 0, VAT: 0, InclVAT: 0, Rate: 7}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := calc.Calculate(tc.amount, tc.rate, ModeExclusive)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestCalculateInclusive(t *testing.T) {
	calc, err := NewCalculator(7)
	require.NoError(t, err)

	got, err := calc.Calculate(107, 7, ModeInclusive)
	require.NoError(t, err)
	require.Equal(t, Breakdown{ExclVAT: 100, VAT: 7, InclVAT: 107, Rate: 7}, got)

	// An awkward inclusive amount must still reconcile exactly.
	got, err = calc.Calculate(99.99, 7, ModeInclusive)
	require.NoError(t, err)
	require.Equal(t, got.InclVAT, Round2(got.ExclVAT+got.VAT))
}

func TestCalculateReconciles(t *testing.T) {
	calc, err := NewCalculator(7)
	require.NoError(t, err)

	amounts := []float64{0.01, 0.99, 1, 19.95, 33.33, 100, 999.99, 123456.78}
	rates := []float64{0, 3, 7, 10, 20, 100}
	for _, amount := range amounts {
		for _, rate := range rates {
			for _, mode := range []Mode{ModeExclusive, ModeInclusive} {
				b, err := calc.Calculate(amount, rate, mode)
				require.NoError(t, err)
				require.Equal(t, b.InclVAT, Round2(b.ExclVAT+b.VAT),
					"amount=%v rate=%v mode=%v", amount, rate, mode)
			}
		}
	}
}

func TestCalculateRejectsInvalidInput(t *testing.T) {
	calc, err := NewCalculator(7)
	require.NoError(t, err)

	_, err = calc.Calculate(-1, 7, ModeExclusive)
	require.ErrorIs(t, err, ErrNegativeAmount)

	_, err = calc.Calculate(100, -0.5, ModeExclusive)
	require.ErrorIs(t, err, ErrInvalidRate)

	_, err = calc.Calculate(100, 100.5, ModeInclusive)
	require.ErrorIs(t, err, ErrInvalidRate)

	_, err = calc.Calculate(100, 7, Mode("half-inclusive"))
	require.ErrorIs(t, err, ErrInvalidMode)

	_, err = NewCalculator(101)
	require.ErrorIs(t, err, ErrInvalidRate)
}

func TestCalculateDefault(t *testing.T) {
	calc, err := NewCalculator(7)
	require.NoError(t, err)

	b, err := calc.CalculateDefault(200, ModeExclusive)
	require.NoError(t, err)
	require.Equal(t, 14.0, b.VAT)
	require.Equal(t, 214.0, b.InclVAT)
}

func TestRound2(t *testing.T) {
	require.Equal(t, 0.13, Round2(0.125))
	require.Equal(t, 2.33, Round2(2.334))
	require.Equal(t, -0.13, Round2(-0.125))
	require.Equal(t, 0.0, Round2(0))
}

// Package vat computes value-added-tax breakdowns with two-decimal
// half-up rounding.
package vat

import (
	"errors"
	"math"
)

// Mode selects how the input amount relates to VAT.
type Mode string

const (
	// ModeExclusive treats the amount as the pre-VAT base.
	ModeExclusive Mode = "exclusive"
	// ModeInclusive treats the amount as already containing VAT.
	ModeInclusive Mode = "inclusive"
)

var (
	// ErrNegativeAmount indicates a negative input amount.
	ErrNegativeAmount = errors.New("vat: amount must not be negative")
	// ErrInvalidRate indicates a rate outside [0,100].
	ErrInvalidRate = errors.New("vat: rate must be between 0 and 100")
	// ErrInvalidMode indicates an unknown calculation mode.
	ErrInvalidMode = errors.New("vat: unknown calculation mode")
)

// Breakdown is the three-part result of a VAT calculation. The parts always
// reconcile: ExclVAT + VAT == InclVAT after rounding, because the third
// value is derived from the other two rather than rounded independently.
type Breakdown struct {
	ExclVAT float64 `json:"excl_vat"`
	VAT     float64 `json:"vat"`
	InclVAT float64 `json:"incl_vat"`
	Rate    float64 `json:"rate"`
}

// Calculator performs VAT arithmetic with a configurable default rate.
type Calculator struct {
	defaultRate float64
}

// NewCalculator builds a Calculator. The default rate is used when callers
// pass a negative rate to CalculateDefault.
func NewCalculator(defaultRate float64) (*Calculator, error) {
	if defaultRate < 0 || defaultRate > 100 {
		return nil, ErrInvalidRate
	}
	return &Calculator{defaultRate: defaultRate}, nil
}

// DefaultRate returns the configured default percentage.
func (c *Calculator) DefaultRate() float64 {
	return c.defaultRate
}

// Calculate produces the breakdown for amount at rate in the given mode.
func (c *Calculator) Calculate(amount, rate float64, mode Mode) (Breakdown, error) {
	if amount < 0 {
		return Breakdown{}, ErrNegativeAmount
	}
	if rate < 0 || rate > 100 {
		return Breakdown{}, ErrInvalidRate
	}

	switch mode {
	case ModeExclusive:
		excl := Round2(amount)
		tax := Round2(excl * rate / 100)
		return Breakdown{
			ExclVAT: excl,
			VAT:     tax,
			InclVAT: Round2(excl + tax),
			Rate:    rate,
		}, nil
	case ModeInclusive:
		incl := Round2(amount)
		excl := Round2(incl / (1 + rate/100))
		return Breakdown{
			ExclVAT: excl,
			VAT:     Round2(incl - excl),
			InclVAT: incl,
			Rate:    rate,
		}, nil
	default:
		return Breakdown{}, ErrInvalidMode
	}
}

// CalculateDefault applies the calculator's default rate.
func (c *Calculator) CalculateDefault(amount float64, mode Mode) (Breakdown, error) {
	return c.Calculate(amount, c.defaultRate, mode)
}

// Round2 rounds to two decimals, half away from zero.
func Round2(v float64) float64 {
	if v < 0 {
		return -math.Floor(-v*100+0.5) / 100
	}
	return math.Floor(v*100+0.5) / 100
}

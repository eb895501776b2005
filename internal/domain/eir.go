package domain

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

const (
	// DefaultEIRMaxIterations bounds the bisection when the caller passes zero.
	DefaultEIRMaxIterations = 200
	eirTolerance            = 1e-10
	eirLowerBound           = -0.99
	eirInitialUpperBound    = 1.0
)

// Cashflow is a cash-in at a period offset from disbursement.
type Cashflow struct {
	Period int
	Amount decimal.Decimal
}

// CalculateEIR finds the periodic rate r with -netDisbursement + sum(a/(1+r)^t) = 0
// and returns it annualised as a percentage (r * periodsPerYear * 100), rounded
// to MoneyScale digits.
func CalculateEIR(netDisbursement decimal.Decimal, cashflows []Cashflow, periodsPerYear int, maxIterations int) (decimal.Decimal, error) {
	if !netDisbursement.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: net disbursement must be positive", ErrEIRNotApplicable)
	}
	if len(cashflows) == 0 {
		return decimal.Zero, fmt.Errorf("%w: no cash flows", ErrEIRNotApplicable)
	}
	if periodsPerYear <= 0 {
		return decimal.Zero, fmt.Errorf("%w: periods per year must be positive", ErrEIRNotApplicable)
	}
	if maxIterations <= 0 {
		maxIterations = DefaultEIRMaxIterations
	}

	net := netDisbursement.InexactFloat64()
	flows := make([]float64, len(cashflows))
	for i, cf := range cashflows {
		flows[i] = cf.Amount.InexactFloat64()
	}
	npv := func(r float64) float64 {
		v := -net
		for i, cf := range cashflows {
			v += flows[i] / math.Pow(1+r, float64(cf.Period))
		}
		return v
	}

	lo, hi := eirLowerBound, eirInitialUpperBound
	if npv(lo) < 0 {
		return decimal.Zero, fmt.Errorf("%w: repayments do not cover the disbursement", ErrEIRNoConvergence)
	}
	// npv falls as r grows; widen until the root is bracketed
	for npv(hi) > 0 {
		hi *= 2
		if hi > 1e6 {
			return decimal.Zero, fmt.Errorf("%w: rate unbounded", ErrEIRNoConvergence)
		}
	}

	for i := 0; i < maxIterations; i++ {
		mid := (lo + hi) / 2
		v := npv(mid)
		if math.Abs(v) < eirTolerance || (hi-lo)/2 < eirTolerance {
			return annualise(mid, periodsPerYear), nil
		}
		if v > 0 {
			lo = mid
		} else {
			hi = mid
		}
	}
	return decimal.Zero, fmt.Errorf("%w: after %d iterations", ErrEIRNoConvergence, maxIterations)
}

func annualise(periodic float64, periodsPerYear int) decimal.Decimal {
	return decimal.NewFromFloat(periodic).
		Mul(decimal.NewFromInt(int64(periodsPerYear))).
		Mul(decimal.NewFromInt(100)).
		Round(MoneyScale)
}

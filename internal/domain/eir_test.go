package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateEIR_MonthlyStream(t *testing.T) {
	// Arrange
	cashflows := make([]Cashflow, 0, 24)
	for period := 1; period <= 23; period++ {
		cashflows = append(cashflows, Cashflow{Period: period, Amount: decimal.NewFromInt(5000)})
	}
	cashflows = append(cashflows, Cashflow{Period: 24, Amount: decimal.NewFromInt(1082)})

	// Act
	rate, err := CalculateEIR(decimal.NewFromInt(94982), cashflows, 12, 0)

	// Assert
	require.NoError(t, err)
	assert.True(t, rate.GreaterThan(decimal.RequireFromString("20.6")), "rate %s", rate)
	assert.True(t, rate.LessThan(decimal.RequireFromString("20.8")), "rate %s", rate)
}

func TestCalculateEIR_Preconditions(t *testing.T) {
	flows := []Cashflow{{Period: 1, Amount: decimal.NewFromInt(110)}}

	_, err := CalculateEIR(decimal.Zero, flows, 12, 0)
	assert.ErrorIs(t, err, ErrEIRNotApplicable)

	_, err = CalculateEIR(decimal.NewFromInt(100), nil, 12, 0)
	assert.ErrorIs(t, err, ErrEIRNotApplicable)

	_, err = CalculateEIR(decimal.NewFromInt(100), flows, 0, 0)
	assert.ErrorIs(t, err, ErrEIRNotApplicable)
}

func TestCalculateEIR_RepaymentsBelowDisbursement(t *testing.T) {
	_, err := CalculateEIR(decimal.NewFromInt(1000), []Cashflow{{Period: 1, Amount: decimal.NewFromInt(1)}}, 12, 0)

	assert.ErrorIs(t, err, ErrEIRNoConvergence)
}

func TestLoan_EffectiveInterestRate(t *testing.T) {
	loan := newDisbursedLoan(t)

	rate, err := loan.EffectiveInterestRate(0)

	require.NoError(t, err)
	assert.InDelta(t, 12.0, rate.InexactFloat64(), 0.05)
}

func TestLoan_EffectiveInterestRateRisesWithDisbursementFees(t *testing.T) {
	loan := newApprovedLoan(t)
	fee := NewCharge("def-upfront", "upfront", ChargeCalculationFlat, ChargeTimeDisbursement, ngn("20"), decimal.Zero, false, nil)
	require.NoError(t, loan.AddCharge(fee, 0))
	_, err := loan.Disburse(day(2024, 1, 1), NewLifecycleStateMachine(), 0)
	require.NoError(t, err)

	rate, err := loan.EffectiveInterestRate(0)

	require.NoError(t, err)
	assertMoney(t, "980", loan.NetDisbursement())
	assert.Greater(t, rate.InexactFloat64(), 20.0)
}

func TestLoan_EffectiveInterestRateRequiresDisbursement(t *testing.T) {
	loan := newApprovedLoan(t)

	_, err := loan.EffectiveInterestRate(0)

	assert.ErrorIs(t, err, ErrEIRNotApplicable)
}

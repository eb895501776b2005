package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSchedule_Annuity(t *testing.T) {
	// Arrange
	terms := ScheduleTerms{
		Principal:          ngn("1000"),
		AnnualInterestRate: decimal.NewFromInt(12),
		NumberOfRepayments: 3,
		RepaymentEvery:     1,
		RepaymentFrequency: RepaymentFrequencyMonths,
		StartDate:          day(2024, 1, 1),
	}

	// Act
	schedule, err := GenerateSchedule(terms)

	// Assert
	require.NoError(t, err)
	require.Len(t, schedule, 3)

	assertMoney(t, "330.02", schedule[0].Principal.Due)
	assertMoney(t, "10", schedule[0].Interest.Due)
	assertMoney(t, "333.32", schedule[1].Principal.Due)
	assertMoney(t, "6.70", schedule[1].Interest.Due)
	assertMoney(t, "336.66", schedule[2].Principal.Due)
	assertMoney(t, "3.37", schedule[2].Interest.Due)

	total := ZeroMoney(testCurrency)
	for _, inst := range schedule {
		total = total.Plus(inst.Principal.Due)
	}
	assertMoney(t, "1000", total)

	assert.Equal(t, day(2024, 1, 1), schedule[0].FromDate)
	assert.Equal(t, day(2024, 2, 1), schedule[0].DueDate)
	assert.Equal(t, day(2024, 2, 1), schedule[1].FromDate)
	assert.Equal(t, day(2024, 3, 1), schedule[1].DueDate)
	assert.Equal(t, day(2024, 4, 1), schedule[2].DueDate)
}

func TestGenerateSchedule_ZeroRateSplitsPrincipal(t *testing.T) {
	schedule, err := GenerateSchedule(ScheduleTerms{
		Principal:          ngn("100"),
		AnnualInterestRate: decimal.Zero,
		NumberOfRepayments: 3,
		RepaymentEvery:     2,
		RepaymentFrequency: RepaymentFrequencyWeeks,
		StartDate:          day(2024, 1, 1),
	})

	require.NoError(t, err)
	require.Len(t, schedule, 3)
	assertMoney(t, "33.33", schedule[0].Principal.Due)
	assertMoney(t, "33.33", schedule[1].Principal.Due)
	assertMoney(t, "33.34", schedule[2].Principal.Due)
	assertMoney(t, "0", schedule[2].Interest.Due)
	assert.Equal(t, day(2024, 1, 15), schedule[0].DueDate)
	assert.Equal(t, day(2024, 2, 12), schedule[2].DueDate)
}

func TestGenerateSchedule_Validation(t *testing.T) {
	_, err := GenerateSchedule(ScheduleTerms{Principal: ngn("100"), NumberOfRepayments: 0})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = GenerateSchedule(ScheduleTerms{Principal: ngn("0"), NumberOfRepayments: 3})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRepaymentFrequency_PeriodsPerYear(t *testing.T) {
	assert.Equal(t, 12, RepaymentFrequencyMonths.PeriodsPerYear(1))
	assert.Equal(t, 4, RepaymentFrequencyMonths.PeriodsPerYear(3))
	assert.Equal(t, 26, RepaymentFrequencyWeeks.PeriodsPerYear(2))
	assert.Equal(t, 365, RepaymentFrequencyDays.PeriodsPerYear(0))
	assert.Equal(t, 1, RepaymentFrequencyMonths.PeriodsPerYear(24))
}

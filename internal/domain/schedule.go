package domain

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

type RepaymentFrequency string

const (
	RepaymentFrequencyDays   RepaymentFrequency = "DAYS"
	RepaymentFrequencyWeeks  RepaymentFrequency = "WEEKS"
	RepaymentFrequencyMonths RepaymentFrequency = "MONTHS"
)

// PeriodsPerYear is the number of repayment periods in a year for a schedule that
// repays every `every` units of f.
func (f RepaymentFrequency) PeriodsPerYear(every int) int {
	if every <= 0 {
		every = 1
	}
	var perYear int
	switch f {
	case RepaymentFrequencyDays:
		perYear = 365
	case RepaymentFrequencyWeeks:
		perYear = 52
	default:
		perYear = 12
	}
	if perYear/every < 1 {
		return 1
	}
	return perYear / every
}

func (f RepaymentFrequency) advance(t time.Time, n int) time.Time {
	switch f {
	case RepaymentFrequencyDays:
		return t.AddDate(0, 0, n)
	case RepaymentFrequencyWeeks:
		return t.AddDate(0, 0, 7*n)
	default:
		return t.AddDate(0, n, 0)
	}
}

// ScheduleTerms describes an equal-installment amortization.
type ScheduleTerms struct {
	Principal          Money
	AnnualInterestRate decimal.Decimal // percent, e.g. 18.5
	NumberOfRepayments int
	RepaymentEvery     int
	RepaymentFrequency RepaymentFrequency
	StartDate          time.Time
}

// GenerateSchedule computes a fixed-payment amortization schedule:
//
//	r       = annualRate / 100 / periodsPerYear
//	payment = P * r * (1+r)^n / ((1+r)^n - 1)
//
// The last installment absorbs rounding so principal due sums to P exactly.
func GenerateSchedule(terms ScheduleTerms) ([]*Installment, error) {
	n := terms.NumberOfRepayments
	if n <= 0 {
		return nil, fmt.Errorf("%w: number of repayments must be positive", ErrValidation)
	}
	if !terms.Principal.IsPositive() {
		return nil, fmt.Errorf("%w: principal must be positive", ErrValidation)
	}
	every := terms.RepaymentEvery
	if every <= 0 {
		every = 1
	}
	currency := terms.Principal.Currency()
	principal := terms.Principal.Amount()

	periodicRate := terms.AnnualInterestRate.InexactFloat64() / 100 / float64(terms.RepaymentFrequency.PeriodsPerYear(every))
	var payment decimal.Decimal
	if periodicRate == 0 {
		payment = principal.Div(decimal.NewFromInt(int64(n))).Round(2)
	} else {
		factor := math.Pow(1+periodicRate, float64(n))
		payment = decimal.NewFromFloat(principal.InexactFloat64() * periodicRate * factor / (factor - 1)).Round(2)
	}
	rate := decimal.NewFromFloat(periodicRate)

	schedule := make([]*Installment, 0, n)
	remaining := principal
	from := terms.StartDate
	for period := 1; period <= n; period++ {
		due := terms.RepaymentFrequency.advance(terms.StartDate, period*every)
		interest := remaining.Mul(rate).Round(2)
		principalPart := payment.Sub(interest)
		if period == n || principalPart.GreaterThan(remaining) {
			principalPart = remaining
		}
		if principalPart.IsNegative() {
			principalPart = decimal.Zero
		}
		remaining = remaining.Sub(principalPart)

		schedule = append(schedule, NewInstallment(period, from, due,
			NewMoney(principalPart, currency), NewMoney(interest, currency)))
		from = due
	}
	return schedule, nil
}

package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func specifiedFee(amount string, due time.Time) *Charge {
	return NewCharge("def-fee", "processing fee", ChargeCalculationFlat, ChargeTimeSpecifiedDueDate, ngn(amount), decimal.Zero, false, &due)
}

func TestAddCharge_PercentOfPrincipalWithCaps(t *testing.T) {
	due := day(2024, 1, 20)
	maxCap, minCap := ngn("15"), ngn("25")

	tests := []struct {
		name   string
		minCap *Money
		maxCap *Money
		want   string
	}{
		{name: "uncapped", want: "20"},
		{name: "max cap", maxCap: &maxCap, want: "15"},
		{name: "min cap", minCap: &minCap, want: "25"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			loan := newApprovedLoan(t)
			c := NewCharge("def-pct", "insurance", ChargeCalculationPercentOfPrincipal, ChargeTimeSpecifiedDueDate,
				ZeroMoney(testCurrency), decimal.NewFromInt(2), false, &due)
			c.MinCap, c.MaxCap = tt.minCap, tt.maxCap

			// Act
			err := loan.AddCharge(c, 0)

			// Assert
			require.NoError(t, err)
			assertMoney(t, tt.want, c.Amount)
			assertMoney(t, tt.want, c.AmountOutstanding)
			assertMoney(t, tt.want, loan.Installments[0].Fee.Due)
			assertMoney(t, "0", loan.Installments[1].Fee.Due)
			assertMoney(t, tt.want, loan.Summary.TotalFeeChargesCharged)
		})
	}
}

func TestAddCharge_InstallmentFeeIsDistributed(t *testing.T) {
	loan := newDisbursedLoan(t)
	c := NewCharge("def-inst", "service fee", ChargeCalculationFlat, ChargeTimeInstallmentFee, ngn("5"), decimal.Zero, false, nil)

	require.NoError(t, loan.AddCharge(c, 0))

	assertMoney(t, "15", c.Amount)
	require.Len(t, c.InstallmentCharges, 3)
	for _, inst := range loan.Installments {
		assertMoney(t, "5", inst.Fee.Due)
	}
	assertMoney(t, "1035.07", loan.Summary.TotalOutstanding)
}

func TestAddCharge_InstallmentFeePercentOfInterest(t *testing.T) {
	loan := newDisbursedLoan(t)
	c := NewCharge("def-inst", "interest levy", ChargeCalculationPercentOfInterest, ChargeTimeInstallmentFee,
		ZeroMoney(testCurrency), decimal.NewFromInt(10), false, nil)

	require.NoError(t, loan.AddCharge(c, 0))

	assertMoney(t, "1", c.InstallmentCharge(1).Amount)
	assertMoney(t, "0.67", c.InstallmentCharge(2).Amount)
	assertMoney(t, "0.337", c.InstallmentCharge(3).Amount)
	assertMoney(t, "2.007", c.Amount)
}

func TestRecalculateCharge_RegeneratesInstallmentRowsBeforeDisbursement(t *testing.T) {
	// Arrange
	loan := newApprovedLoan(t)
	c := NewCharge("def-inst", "service fee", ChargeCalculationFlat, ChargeTimeInstallmentFee, ngn("5"), decimal.Zero, false, nil)
	require.NoError(t, loan.AddCharge(c, 0))

	// Act
	_, err := loan.Disburse(day(2024, 1, 1), NewLifecycleStateMachine(), 0)

	// Assert
	require.NoError(t, err)
	assert.Len(t, c.InstallmentCharges, 3)
	assertMoney(t, "15", c.Amount)
	assertMoney(t, "15", loan.Summary.TotalFeeChargesCharged)
}

func TestRecalculateCharge_KeepsRecalculatedInterestInstallments(t *testing.T) {
	loan := newApprovedLoan(t)
	c := NewCharge("def-inst", "service fee", ChargeCalculationFlat, ChargeTimeInstallmentFee, ngn("5"), decimal.Zero, false, nil)
	require.NoError(t, loan.AddCharge(c, 0))
	loan.Installments[2].RecalculatedInterestComponent = true
	c.InstallmentCharge(3).Amount = ngn("7")

	require.NoError(t, loan.RecalculateCharge(c, 0))

	assert.Len(t, c.InstallmentCharges, 3)
	assertMoney(t, "5", c.InstallmentCharge(1).Amount)
	assertMoney(t, "7", c.InstallmentCharge(3).Amount)
	assertMoney(t, "17", c.Amount)
}

func TestRecalculateCharge_SkipsInactiveCharges(t *testing.T) {
	loan := newApprovedLoan(t)
	c := specifiedFee("10", day(2024, 1, 20))
	require.NoError(t, loan.AddCharge(c, 0))
	c.Deactivate()
	c.ConfiguredAmount = ngn("99")

	require.NoError(t, loan.RecalculateCharge(c, 0))
	loan.RefreshChargeComponents()

	assertMoney(t, "10", c.Amount)
	assertMoney(t, "0", loan.Installments[0].Fee.Due)
}

func TestAddCharge_OverdueInstallmentPenalty(t *testing.T) {
	loan := newDisbursedLoan(t)
	c := NewCharge("def-late", "late fee", ChargeCalculationPercentOfPrincipal, ChargeTimeOverdueInstallment,
		ZeroMoney(testCurrency), decimal.NewFromInt(10), true, nil)
	c.OverdueInstallmentNumber = 1

	require.NoError(t, loan.AddCharge(c, 3))

	require.NotNil(t, c.DueDate)
	assert.Equal(t, day(2024, 2, 4), *c.DueDate)
	assertMoney(t, "33.002", c.Amount)
	assertMoney(t, "0", loan.Installments[0].Penalty.Due)
	assertMoney(t, "33.002", loan.Installments[1].Penalty.Due)
	assertMoney(t, "33.002", loan.Summary.TotalPenaltyChargesOutstanding)
}

func TestAddCharge_Rejections(t *testing.T) {
	loan := newDisbursedLoan(t)

	missing := NewCharge("def-late", "late fee", ChargeCalculationFlat, ChargeTimeOverdueInstallment, ngn("10"), decimal.Zero, true, nil)
	missing.OverdueInstallmentNumber = 9
	assert.ErrorIs(t, loan.AddCharge(missing, 0), ErrInstallmentNotFound)

	foreign := NewCharge("def-fee", "fee", ChargeCalculationFlat, ChargeTimeSpecifiedDueDate, MustMoney("USD", "10"), decimal.Zero, false, nil)
	assert.ErrorIs(t, loan.AddCharge(foreign, 0), ErrCurrencyMismatch)

	assert.Empty(t, loan.Charges)
}

func TestAddCharge_RejectsDisbursementFeeAfterDisbursement(t *testing.T) {
	loan := newDisbursedLoan(t)
	c := NewCharge("def-upfront", "upfront", ChargeCalculationFlat, ChargeTimeDisbursement, ngn("20"), decimal.Zero, false, nil)

	err := loan.AddCharge(c, 0)

	assert.ErrorIs(t, err, ErrValidation)
	assert.Empty(t, loan.Charges)
	assertMoney(t, "0", loan.Summary.TotalFeeChargesDueAtDisbursement)
	assertMoney(t, "1020.07", loan.Summary.TotalOutstanding)
}

func TestAddCharge_DisbursementFee(t *testing.T) {
	loan := newApprovedLoan(t)
	c := NewCharge("def-upfront", "upfront", ChargeCalculationPercentOfDisbursement, ChargeTimeDisbursement,
		ZeroMoney(testCurrency), decimal.NewFromInt(2), false, nil)

	require.NoError(t, loan.AddCharge(c, 0))

	assertMoney(t, "20", c.Amount)
	require.NotNil(t, c.DueDate)
	assert.Equal(t, day(2024, 1, 1), *c.DueDate)
	assertMoney(t, "20", loan.Summary.TotalFeeChargesDueAtDisbursement)
	for _, inst := range loan.Installments {
		assertMoney(t, "0", inst.Fee.Due)
	}
}

func TestMakeChargePayment_SettlesTargetCharge(t *testing.T) {
	// Arrange
	loan := newDisbursedLoan(t)
	c := specifiedFee("20", day(2024, 1, 20))
	require.NoError(t, loan.AddCharge(c, 0))
	tx := NewTransaction(loan.ID, TransactionKindChargePayment, day(2024, 1, 25), ngn("20"), "CP-1")

	// Act
	err := loan.MakeChargePayment(c.ID, tx, 0, day(2024, 2, 10), NewLifecycleStateMachine())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, c.ID, tx.TargetChargeID)
	assert.Equal(t, 1, tx.TargetInstallmentNumber)
	assertMoney(t, "20", tx.Fee)
	assertMoney(t, "0", tx.Principal)
	assertMoney(t, "0", c.AmountOutstanding)
	assertMoney(t, "20", loan.Installments[0].Fee.Paid)
	require.Len(t, tx.ChargesPaid, 1)
	assertMoney(t, "1020.07", loan.Summary.TotalOutstanding)
}

func TestMakeChargePayment_UnknownChargeIsPostedUnassigned(t *testing.T) {
	loan := newDisbursedLoan(t)
	tx := NewTransaction(loan.ID, TransactionKindChargePayment, day(2024, 1, 25), ngn("20"), "")

	err := loan.MakeChargePayment("no-such-charge", tx, 0, day(2024, 2, 10), NewLifecycleStateMachine())

	require.NoError(t, err)
	assert.Empty(t, tx.TargetChargeID)
	assertMoney(t, "0", tx.PortionsTotal())
	assert.Len(t, loan.Transactions, 2)
}

func TestMakeChargePayment_RejectsFutureDate(t *testing.T) {
	loan := newDisbursedLoan(t)
	c := specifiedFee("20", day(2024, 1, 20))
	require.NoError(t, loan.AddCharge(c, 0))
	tx := NewTransaction(loan.ID, TransactionKindChargePayment, day(2024, 3, 1), ngn("20"), "")

	err := loan.MakeChargePayment(c.ID, tx, 0, day(2024, 2, 10), NewLifecycleStateMachine())

	assert.ErrorIs(t, err, ErrFutureDatedTransaction)
	assert.Len(t, loan.Transactions, 1)
}

func TestMakeChargePayment_DisbursementCharge(t *testing.T) {
	loan := newApprovedLoan(t)
	c := NewCharge("def-upfront", "upfront", ChargeCalculationFlat, ChargeTimeDisbursement, ngn("20"), decimal.Zero, false, nil)
	require.NoError(t, loan.AddCharge(c, 0))
	_, err := loan.Disburse(day(2024, 1, 1), NewLifecycleStateMachine(), 0)
	require.NoError(t, err)
	tx := NewTransaction(loan.ID, TransactionKindChargePayment, day(2024, 1, 2), ngn("25"), "")

	err = loan.MakeChargePayment(c.ID, tx, 0, day(2024, 1, 2), NewLifecycleStateMachine())

	require.NoError(t, err)
	assertMoney(t, "20", tx.Fee)
	assertMoney(t, "20", loan.Summary.TotalFeeChargesRepaidAtDisbursement)
	assertMoney(t, "0", loan.Summary.TotalFeeChargesOutstanding)
}

func TestMakeChargePayment_ExplicitInstallment(t *testing.T) {
	loan := newDisbursedLoan(t)
	c := NewCharge("def-inst", "service fee", ChargeCalculationFlat, ChargeTimeInstallmentFee, ngn("5"), decimal.Zero, false, nil)
	require.NoError(t, loan.AddCharge(c, 0))
	tx := NewTransaction(loan.ID, TransactionKindChargePayment, day(2024, 1, 25), ngn("5"), "")

	err := loan.MakeChargePayment(c.ID, tx, 2, day(2024, 2, 10), NewLifecycleStateMachine())

	require.NoError(t, err)
	assert.Equal(t, 2, tx.TargetInstallmentNumber)
	assertMoney(t, "5", loan.Installments[1].Fee.Paid)
	assertMoney(t, "0", loan.Installments[0].Fee.Paid)
	assertMoney(t, "0", c.InstallmentCharge(2).Outstanding())
}

func TestMakeChargePayment_LeavesSiblingChargeInInstallmentUntouched(t *testing.T) {
	// Arrange
	loan := newDisbursedLoan(t)
	first := specifiedFee("10", day(2024, 1, 20))
	second := specifiedFee("10", day(2024, 1, 20))
	require.NoError(t, loan.AddCharge(first, 0))
	require.NoError(t, loan.AddCharge(second, 0))
	tx := NewTransaction(loan.ID, TransactionKindChargePayment, day(2024, 1, 25), ngn("15"), "")

	// Act
	err := loan.MakeChargePayment(first.ID, tx, 0, day(2024, 2, 10), NewLifecycleStateMachine())

	// Assert
	require.NoError(t, err)
	assertMoney(t, "10", tx.Fee)
	assertMoney(t, "10", tx.PortionsTotal())
	require.Len(t, tx.ChargesPaid, 1)
	assert.Equal(t, first.ID, tx.ChargesPaid[0].ChargeID)
	assertMoney(t, "0", first.AmountOutstanding)
	assertMoney(t, "10", second.AmountOutstanding)
	assertMoney(t, "10", loan.Installments[0].Fee.Paid)
	assertMoney(t, "10", loan.Summary.TotalFeeChargesOutstanding)
}

// attachCheckingStateMachine records whether the charge payment was already on
// the loan when LOAN_CHARGE_PAYMENT fired.
type attachCheckingStateMachine struct {
	DefaultLifecycleStateMachine
	txID     string
	attached bool
}

func (m *attachCheckingStateMachine) Transition(event LoanEvent, loan *Loan) error {
	if event == LoanEventChargePayment {
		_, err := loan.TransactionByID(m.txID)
		m.attached = err == nil
	}
	return m.DefaultLifecycleStateMachine.Transition(event, loan)
}

func TestMakeChargePayment_AttachesBeforeTransition(t *testing.T) {
	loan := newDisbursedLoan(t)
	c := specifiedFee("20", day(2024, 1, 20))
	require.NoError(t, loan.AddCharge(c, 0))
	tx := NewTransaction(loan.ID, TransactionKindChargePayment, day(2024, 1, 25), ngn("20"), "")
	sm := &attachCheckingStateMachine{txID: tx.ID}

	require.NoError(t, loan.MakeChargePayment(c.ID, tx, 0, day(2024, 2, 10), sm))

	assert.True(t, sm.attached)
	assertMoney(t, "20", tx.Fee)
}

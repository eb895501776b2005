package domain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoan_Validation(t *testing.T) {
	_, err := NewLoan("EXT", ngn("0"), StrategyInterestPrincipalPenaltyFee, ScheduleTerms{}, day(2024, 1, 1))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewLoan("EXT", ngn("10"), AllocationStrategy("fifo"), ScheduleTerms{}, day(2024, 1, 1))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestLoan_ApproveAndDisburse(t *testing.T) {
	loan := newDisbursedLoan(t)

	assert.Equal(t, LoanStatusActive, loan.Status)
	assert.True(t, loan.IsDisbursed())
	require.Len(t, loan.Installments, 3)
	require.Len(t, loan.Transactions, 1)
	assert.Equal(t, TransactionKindDisbursement, loan.Transactions[0].Kind)
	assertMoney(t, "1020.07", loan.Summary.TotalOutstanding)
	assertMoney(t, "20.07", loan.Summary.TotalInterestCharged)
	require.NotNil(t, loan.Disbursements[0].ActualDate)
}

func TestLoan_LifecycleRejectsOutOfOrderEvents(t *testing.T) {
	sm := NewLifecycleStateMachine()

	loan := newTestLoan(t)
	_, err := loan.Disburse(day(2024, 1, 1), sm, 0)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)

	approved := newApprovedLoan(t)
	err = approved.Approve(day(2024, 1, 1), sm, 0)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)

	tx := NewTransaction(approved.ID, TransactionKindRepayment, day(2024, 1, 15), ngn("10"), "")
	_, err = approved.ApplyTransaction(tx, sm)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)
}

func TestLoan_ApplyRepayment(t *testing.T) {
	// Arrange
	loan := newDisbursedLoan(t)

	// Act
	tx := applyRepayment(t, loan, day(2024, 2, 1), "340.02")

	// Assert
	assertMoney(t, "10", tx.Interest)
	assertMoney(t, "330.02", tx.Principal)
	assert.True(t, loan.Installments[0].IsObligationsMet())
	assertMoney(t, "680.05", loan.Summary.TotalOutstanding)
	assert.Equal(t, LoanStatusActive, loan.Status)
	assert.Equal(t, int64(2), tx.Sequence)
}

func TestLoan_FullRepaymentClosesLoan(t *testing.T) {
	loan := newDisbursedLoan(t)

	applyRepayment(t, loan, day(2024, 1, 15), "1020.07")

	assert.Equal(t, LoanStatusClosedObligationsMet, loan.Status)
	assertMoney(t, "0", loan.Summary.TotalOutstanding)
	assertMoney(t, "0", loan.TotalOverpaid)
}

func TestLoan_OverpaymentMarksLoanOverpaid(t *testing.T) {
	loan := newDisbursedLoan(t)

	tx := applyRepayment(t, loan, day(2024, 1, 15), "2000")

	assertMoney(t, "979.93", tx.Overpayment)
	assertMoney(t, "979.93", loan.TotalOverpaid)
	assert.Equal(t, LoanStatusOverpaid, loan.Status)
}

func TestLoan_RejectsInvalidTransactions(t *testing.T) {
	loan := newDisbursedLoan(t)
	sm := NewLifecycleStateMachine()

	zero := NewTransaction(loan.ID, TransactionKindRepayment, day(2024, 1, 15), ngn("0"), "")
	_, err := loan.ApplyTransaction(zero, sm)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	foreign := NewTransaction(loan.ID, TransactionKindRepayment, day(2024, 1, 15), MustMoney("USD", "5"), "")
	_, err = loan.ApplyTransaction(foreign, sm)
	assert.ErrorIs(t, err, ErrCurrencyMismatch)

	early := NewTransaction(loan.ID, TransactionKindRepayment, day(2023, 12, 31), ngn("5"), "")
	_, err = loan.ApplyTransaction(early, sm)
	assert.ErrorIs(t, err, ErrValidation)

	assert.Len(t, loan.Transactions, 1)
}

func TestLoan_RefundReopensPaidPrincipal(t *testing.T) {
	loan := newDisbursedLoan(t)
	applyRepayment(t, loan, day(2024, 2, 1), "340.02")
	refund := NewTransaction(loan.ID, TransactionKindRefund, day(2024, 2, 2), ngn("100"), "")

	remainder, err := loan.ApplyTransaction(refund, NewLifecycleStateMachine())

	require.NoError(t, err)
	assertMoney(t, "0", remainder)
	assertMoney(t, "100", refund.Principal)
	assertMoney(t, "780.05", loan.Summary.TotalOutstanding)
	assert.False(t, loan.Installments[0].IsObligationsMet())
}

func TestLoan_WriteOff(t *testing.T) {
	loan := newDisbursedLoan(t)
	applyRepayment(t, loan, day(2024, 2, 1), "340.02")
	writeOff := NewTransaction(loan.ID, TransactionKindWriteOff, day(2024, 3, 10), ngn("0"), "")

	_, err := loan.ApplyTransaction(writeOff, NewLifecycleStateMachine())

	require.NoError(t, err)
	assert.Equal(t, LoanStatusClosedWrittenOff, loan.Status)
	assertMoney(t, "680.05", loan.Summary.TotalWrittenOff)
	assertMoney(t, "0", loan.Summary.TotalOutstanding)
	assertMoney(t, "680.05", writeOff.Amount)
	assertMoney(t, "680.05", writeOff.PortionsTotal())

	late := NewTransaction(loan.ID, TransactionKindRepayment, day(2024, 3, 11), ngn("10"), "")
	_, err = loan.ApplyTransaction(late, NewLifecycleStateMachine())
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)
}

func TestLoan_RequiresReprocessing(t *testing.T) {
	loan := newDisbursedLoan(t)
	applyRepayment(t, loan, day(2024, 2, 1), "340.02")

	assert.True(t, loan.RequiresReprocessing(day(2024, 1, 15)))
	assert.False(t, loan.RequiresReprocessing(day(2024, 2, 1)))
	assert.False(t, loan.RequiresReprocessing(day(2024, 2, 10)))
}

func TestLoan_ReverseTransaction(t *testing.T) {
	loan := newDisbursedLoan(t)
	tx := applyRepayment(t, loan, day(2024, 2, 1), "340.02")

	reversed, err := loan.ReverseTransaction(tx.ID, day(2024, 2, 5))
	require.NoError(t, err)
	assert.True(t, reversed.Reversed)

	_, err = loan.ReverseTransaction(tx.ID, day(2024, 2, 5))
	assert.ErrorIs(t, err, ErrTransactionAlreadyReversed)

	_, err = loan.ReverseTransaction(loan.Transactions[0].ID, day(2024, 2, 5))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = loan.ReverseTransaction("missing", day(2024, 2, 5))
	assert.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestLifecycle_DetermineAndTransition(t *testing.T) {
	sm := NewLifecycleStateMachine()
	loan := newDisbursedLoan(t)

	sm.DetermineAndTransition(loan, day(2024, 3, 15))

	assert.Equal(t, LoanStatusActive, loan.Status)
	assertMoney(t, "680.04", loan.Summary.TotalOverdue)
}

func TestLifecycle_WriteOffReversalReactivates(t *testing.T) {
	sm := NewLifecycleStateMachine()
	loan := newDisbursedLoan(t)
	writeOff := NewTransaction(loan.ID, TransactionKindWriteOff, day(2024, 1, 20), ngn("0"), "")
	_, err := loan.ApplyTransaction(writeOff, sm)
	require.NoError(t, err)

	_, err = loan.ReverseTransaction(writeOff.ID, day(2024, 1, 21))
	require.NoError(t, err)
	_, err = NewReprocessingCoordinator(sm).Reprocess(context.Background(), loan, &fakeNotifier{},
		ReplayRequest{FromDate: writeOff.Date, BusinessDate: day(2024, 1, 21)})
	require.NoError(t, err)
	require.NoError(t, sm.Transition(LoanEventTransactionReversed, loan))

	assert.Equal(t, LoanStatusActive, loan.Status)
	assertMoney(t, "1020.07", loan.Summary.TotalOutstanding)
}

func TestLifecycle_UnknownEvent(t *testing.T) {
	err := NewLifecycleStateMachine().Transition(LoanEvent("LOAN_RESCHEDULED"), newDisbursedLoan(t))

	assert.ErrorIs(t, err, ErrInvalidStatusTransition)
}

func TestLoan_PortionsNeverExceedAmount(t *testing.T) {
	// Arrange
	sm := NewLifecycleStateMachine()
	loan := newDisbursedLoan(t)
	fee := specifiedFee("20", day(2024, 1, 20))
	require.NoError(t, loan.AddCharge(fee, 0))

	repayment := applyRepayment(t, loan, day(2024, 1, 10), "100")

	waiveInterest := NewTransaction(loan.ID, TransactionKindWaiveInterest, day(2024, 1, 15), ngn("5"), "")
	_, err := loan.ApplyTransaction(waiveInterest, sm)
	require.NoError(t, err)

	waiveCharges := NewTransaction(loan.ID, TransactionKindWaiveCharges, day(2024, 1, 20), ngn("5"), "")
	waiveCharges.SetChargePortions(ngn("5"), ngn("0"))
	_, err = loan.ApplyTransaction(waiveCharges, sm)
	require.NoError(t, err)

	chargePayment := NewTransaction(loan.ID, TransactionKindChargePayment, day(2024, 1, 25), ngn("30"), "")
	require.NoError(t, loan.MakeChargePayment(fee.ID, chargePayment, 0, day(2024, 2, 10), sm))

	refund := NewTransaction(loan.ID, TransactionKindRefund, day(2024, 1, 26), ngn("50"), "")
	_, err = loan.ApplyTransaction(refund, sm)
	require.NoError(t, err)

	outstanding := loan.Summary.TotalOutstanding
	writeOff := NewTransaction(loan.ID, TransactionKindWriteOff, day(2024, 1, 27), ngn("0"), "")

	// Act
	_, err = loan.ApplyTransaction(writeOff, sm)

	// Assert
	require.NoError(t, err)
	for _, tx := range []*Transaction{repayment, waiveInterest, waiveCharges, chargePayment, refund, writeOff} {
		assert.False(t, tx.PortionsTotal().GreaterThan(tx.Amount), "%s portions %s exceed amount %s", tx.Kind, tx.PortionsTotal(), tx.Amount)
	}
	assertMoney(t, "15", chargePayment.Fee)
	assert.True(t, writeOff.Amount.Equal(outstanding))
	assertMoney(t, "0", loan.Summary.TotalOutstanding)
}

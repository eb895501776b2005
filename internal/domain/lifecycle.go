package domain

import (
	"fmt"
	"time"
)

type LoanStatus string

const (
	LoanStatusSubmittedAndPendingApproval LoanStatus = "SUBMITTED_AND_PENDING_APPROVAL"
	LoanStatusApproved                    LoanStatus = "APPROVED"
	LoanStatusActive                      LoanStatus = "ACTIVE"
	LoanStatusClosedObligationsMet        LoanStatus = "CLOSED_OBLIGATIONS_MET"
	LoanStatusOverpaid                    LoanStatus = "OVERPAID"
	LoanStatusClosedWrittenOff            LoanStatus = "CLOSED_WRITTEN_OFF"
)

// IsPreDisbursement reports whether the loan has not been disbursed yet.
func (s LoanStatus) IsPreDisbursement() bool {
	return s == LoanStatusSubmittedAndPendingApproval || s == LoanStatusApproved
}

// IsClosed reports whether the loan no longer accepts ordinary repayments.
func (s LoanStatus) IsClosed() bool {
	return s == LoanStatusClosedObligationsMet || s == LoanStatusClosedWrittenOff
}

type LoanEvent string

const (
	LoanEventApproved              LoanEvent = "LOAN_APPROVED"
	LoanEventDisbursed             LoanEvent = "LOAN_DISBURSED"
	LoanEventRepaymentOrWaiver     LoanEvent = "LOAN_REPAYMENT_OR_WAIVER"
	LoanEventChargePayment         LoanEvent = "LOAN_CHARGE_PAYMENT"
	LoanEventTransactionReversed   LoanEvent = "LOAN_TRANSACTION_REVERSED"
	LoanEventWrittenOff            LoanEvent = "LOAN_WRITTEN_OFF"
	LoanEventRefund                LoanEvent = "LOAN_REFUND"
	LoanEventChargeAdded           LoanEvent = "LOAN_CHARGE_ADDED"
	LoanEventReprocessingCompleted LoanEvent = "LOAN_REPROCESSED"
)

// LifecycleStateMachine moves a loan between statuses. The engine calls it on
// specific events and otherwise treats it as opaque.
type LifecycleStateMachine interface {
	Transition(event LoanEvent, loan *Loan) error
	DetermineAndTransition(loan *Loan, date time.Time)
}

// DefaultLifecycleStateMachine derives the status from the loan's balances.
type DefaultLifecycleStateMachine struct{}

func NewLifecycleStateMachine() *DefaultLifecycleStateMachine {
	return &DefaultLifecycleStateMachine{}
}

func (m *DefaultLifecycleStateMachine) Transition(event LoanEvent, loan *Loan) error {
	switch event {
	case LoanEventApproved:
		if loan.Status != LoanStatusSubmittedAndPendingApproval {
			return fmt.Errorf("%w: %s on %s loan", ErrInvalidStatusTransition, event, loan.Status)
		}
		loan.Status = LoanStatusApproved
	case LoanEventDisbursed:
		if loan.Status != LoanStatusApproved {
			return fmt.Errorf("%w: %s on %s loan", ErrInvalidStatusTransition, event, loan.Status)
		}
		loan.Status = LoanStatusActive
	case LoanEventWrittenOff:
		if loan.Status.IsPreDisbursement() || loan.Status == LoanStatusClosedWrittenOff {
			return fmt.Errorf("%w: %s on %s loan", ErrInvalidStatusTransition, event, loan.Status)
		}
		loan.Status = LoanStatusClosedWrittenOff
	case LoanEventRepaymentOrWaiver, LoanEventChargePayment, LoanEventTransactionReversed,
		LoanEventRefund, LoanEventChargeAdded, LoanEventReprocessingCompleted:
		if loan.Status.IsPreDisbursement() {
			return fmt.Errorf("%w: %s on %s loan", ErrInvalidStatusTransition, event, loan.Status)
		}
		m.settleStatus(loan)
	default:
		return fmt.Errorf("%w: unknown event %s", ErrInvalidStatusTransition, event)
	}
	return nil
}

// DetermineAndTransition re-derives the status from the balances as of date.
func (m *DefaultLifecycleStateMachine) DetermineAndTransition(loan *Loan, date time.Time) {
	if loan.Status.IsPreDisbursement() {
		return
	}
	if loan.Summary != nil {
		loan.Summary.UpdateOverdue(loan.Installments, date)
	}
	m.settleStatus(loan)
}

func (m *DefaultLifecycleStateMachine) settleStatus(loan *Loan) {
	if loan.Status == LoanStatusClosedWrittenOff && !loan.hasActiveWriteOff() {
		loan.Status = LoanStatusActive
	}
	if loan.Status == LoanStatusClosedWrittenOff {
		return
	}
	switch {
	case loan.TotalOverpaid.IsPositive():
		loan.Status = LoanStatusOverpaid
	case loan.Summary != nil && !loan.Summary.TotalOutstanding.IsPositive():
		loan.Status = LoanStatusClosedObligationsMet
	default:
		loan.Status = LoanStatusActive
	}
}

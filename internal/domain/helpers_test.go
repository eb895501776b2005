package domain

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCurrency = "NGN"

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func ngn(amount string) Money {
	return MustMoney(testCurrency, amount)
}

func assertMoney(t *testing.T, want string, got Money, msgAndArgs ...interface{}) {
	t.Helper()
	assert.Equal(t, testCurrency, got.Currency(), msgAndArgs...)
	assert.Truef(t, decimal.RequireFromString(want).Equal(got.Amount()),
		"want %s, got %s %v", want, got.Amount().String(), msgAndArgs)
}

// newTestLoan builds 1,000 NGN at 12% repaid monthly over three installments
// starting 2024-01-01:
//
//	#1 due 2024-02-01  principal 330.02  interest 10.00
//	#2 due 2024-03-01  principal 333.32  interest  6.70
//	#3 due 2024-04-01  principal 336.66  interest  3.37
func newTestLoan(t *testing.T) *Loan {
	t.Helper()
	loan, err := NewLoan("EXT-1", ngn("1000"), StrategyInterestPrincipalPenaltyFee, ScheduleTerms{
		AnnualInterestRate: decimal.NewFromInt(12),
		NumberOfRepayments: 3,
		RepaymentEvery:     1,
		RepaymentFrequency: RepaymentFrequencyMonths,
		StartDate:          day(2024, 1, 1),
	}, day(2023, 12, 20))
	require.NoError(t, err)
	return loan
}

func newApprovedLoan(t *testing.T) *Loan {
	t.Helper()
	loan := newTestLoan(t)
	require.NoError(t, loan.Approve(day(2023, 12, 28), NewLifecycleStateMachine(), 0))
	return loan
}

func newDisbursedLoan(t *testing.T) *Loan {
	t.Helper()
	loan := newApprovedLoan(t)
	_, err := loan.Disburse(day(2024, 1, 1), NewLifecycleStateMachine(), 0)
	require.NoError(t, err)
	return loan
}

func applyRepayment(t *testing.T, loan *Loan, date time.Time, amount string) *Transaction {
	t.Helper()
	tx := NewTransaction(loan.ID, TransactionKindRepayment, date, ngn(amount), "")
	_, err := loan.ApplyTransaction(tx, NewLifecycleStateMachine())
	require.NoError(t, err)
	return tx
}

// fakeNotifier records the notification window calls made by a replay.
type fakeNotifier struct {
	starts    int
	stops     int
	resets    int
	events    []DomainEvent
	notifyErr error
	stopErr   error
	startErr  error
}

func (n *fakeNotifier) StartExternalEventRecording() error {
	if n.startErr != nil {
		return n.startErr
	}
	n.starts++
	return nil
}

func (n *fakeNotifier) NotifyPostBusinessEvent(ctx context.Context, event DomainEvent) error {
	if n.notifyErr != nil {
		return n.notifyErr
	}
	n.events = append(n.events, event)
	return nil
}

func (n *fakeNotifier) StopExternalEventRecording(ctx context.Context) error {
	if n.stopErr != nil {
		return n.stopErr
	}
	n.stops++
	return nil
}

func (n *fakeNotifier) ResetEventRecording() {
	n.resets++
	n.events = nil
}

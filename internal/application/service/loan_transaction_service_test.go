package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gigmile/loan-engine/internal/domain"
	"github.com/gigmile/loan-engine/internal/infrastructure/messaging"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockLoanRepository is a mock implementation of LoanRepository
type MockLoanRepository struct {
	mock.Mock
}

func (m *MockLoanRepository) FindByID(ctx context.Context, loanID string) (*domain.Loan, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}

func (m *MockLoanRepository) Create(ctx context.Context, loan *domain.Loan) error {
	args := m.Called(ctx, loan)
	return args.Error(0)
}

func (m *MockLoanRepository) Save(ctx context.Context, loan *domain.Loan) error {
	args := m.Called(ctx, loan)
	return args.Error(0)
}

// MockTransactionRepository is a mock implementation of TransactionRepository
type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) FindNonReversedByLoanAndTypes(ctx context.Context, loanID string, kinds []domain.TransactionKind) ([]*domain.Transaction, error) {
	args := m.Called(ctx, loanID, kinds)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) FindTransactionsForAccountingBridge(ctx context.Context, loanID string, ids []string) ([]*domain.Transaction, error) {
	args := m.Called(ctx, loanID, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) FindLastTransactionDateForReprocessing(ctx context.Context, loanID string) (*time.Time, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*time.Time), args.Error(1)
}

func (m *MockTransactionRepository) ExistsByExternalID(ctx context.Context, loanID, externalID string) (bool, error) {
	args := m.Called(ctx, loanID, externalID)
	return args.Bool(0), args.Error(1)
}

func (m *MockTransactionRepository) RememberExternalID(ctx context.Context, loanID, externalID string) error {
	args := m.Called(ctx, loanID, externalID)
	return args.Error(0)
}

// MockLoanLocker is a mock implementation of LoanLocker
type MockLoanLocker struct {
	mock.Mock
	released int
}

func (m *MockLoanLocker) Acquire(ctx context.Context, loanID string) (func(context.Context) error, error) {
	args := m.Called(ctx, loanID)
	if err := args.Error(0); err != nil {
		return nil, err
	}
	return func(context.Context) error {
		m.released++
		return nil
	}, nil
}

// MockSummaryCache is a mock implementation of SummaryCache
type MockSummaryCache struct {
	mock.Mock
}

func (m *MockSummaryCache) Get(ctx context.Context, loanID string) (*domain.LoanSummary, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LoanSummary), args.Error(1)
}

func (m *MockSummaryCache) Set(ctx context.Context, loanID string, summary *domain.LoanSummary) error {
	args := m.Called(ctx, loanID, summary)
	return args.Error(0)
}

func (m *MockSummaryCache) Invalidate(ctx context.Context, loanID string) error {
	args := m.Called(ctx, loanID)
	return args.Error(0)
}

// capturePublisher hands every delivered batch to a channel so tests can wait
// for the asynchronous publish.
type capturePublisher struct {
	batches chan []domain.DomainEvent
}

func newCapturePublisher() *capturePublisher {
	return &capturePublisher{batches: make(chan []domain.DomainEvent, 16)}
}

func (p *capturePublisher) Publish(ctx context.Context, event domain.DomainEvent) error {
	return p.PublishBatch(ctx, []domain.DomainEvent{event})
}

func (p *capturePublisher) PublishBatch(_ context.Context, events []domain.DomainEvent) error {
	p.batches <- events
	return nil
}

func (p *capturePublisher) next(t *testing.T) []domain.DomainEvent {
	t.Helper()
	select {
	case batch := <-p.batches:
		return batch
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published events")
		return nil
	}
}

var businessDate = time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)

func date(month time.Month, d int) time.Time {
	return time.Date(2024, month, d, 0, 0, 0, 0, time.UTC)
}

type fixture struct {
	loanRepo  *MockLoanRepository
	txRepo    *MockTransactionRepository
	locker    *MockLoanLocker
	cache     *MockSummaryCache
	publisher *capturePublisher
	service   *LoanTransactionService
}

func newFixture(withPublisher bool) *fixture {
	f := &fixture{
		loanRepo: new(MockLoanRepository),
		txRepo:   new(MockTransactionRepository),
		locker:   new(MockLoanLocker),
		cache:    new(MockSummaryCache),
	}
	logger := zap.NewNop()
	var publisher domain.EventPublisher
	if withPublisher {
		f.publisher = newCapturePublisher()
		publisher = f.publisher
	}
	f.service = NewLoanTransactionService(
		f.loanRepo,
		f.txRepo,
		f.locker,
		f.cache,
		publisher,
		func(p domain.EventPublisher) domain.BusinessEventNotifier {
			return messaging.NewRecordingEventNotifier(p, logger)
		},
		Options{Clock: func() time.Time { return businessDate }},
		logger,
	)
	return f
}

// disbursedLoan is 1,000 NGN at 12% over three monthly installments disbursed
// on 2024-01-01. Installment #1 owes 330.02 principal and 10.00 interest.
func disbursedLoan(t *testing.T) *domain.Loan {
	t.Helper()
	sm := domain.NewLifecycleStateMachine()
	loan, err := domain.NewLoan("EXT-1", domain.MustMoney("NGN", "1000"), domain.StrategyInterestPrincipalPenaltyFee, domain.ScheduleTerms{
		AnnualInterestRate: decimal.NewFromInt(12),
		NumberOfRepayments: 3,
		RepaymentEvery:     1,
		RepaymentFrequency: domain.RepaymentFrequencyMonths,
		StartDate:          date(1, 1),
	}, date(1, 1))
	require.NoError(t, err)
	require.NoError(t, loan.Approve(date(1, 1), sm, 0))
	_, err = loan.Disburse(date(1, 1), sm, 0)
	require.NoError(t, err)
	return loan
}

func withRepayment(t *testing.T, loan *domain.Loan, on time.Time, amount, externalID string) *domain.Transaction {
	t.Helper()
	tx := domain.NewTransaction(loan.ID, domain.TransactionKindRepayment, on, domain.MustMoney("NGN", amount), externalID)
	_, err := loan.ApplyTransaction(tx, domain.NewLifecycleStateMachine())
	require.NoError(t, err)
	return tx
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestPostRepayment_Success(t *testing.T) {
	// Arrange
	ctx := context.Background()
	f := newFixture(false)
	loan := disbursedLoan(t)

	f.txRepo.On("ExistsByExternalID", ctx, loan.ID, "PAY-1").Return(false, nil)
	f.locker.On("Acquire", ctx, loan.ID).Return(nil)
	f.loanRepo.On("FindByID", ctx, loan.ID).Return(loan, nil)
	f.loanRepo.On("Save", ctx, loan).Return(nil)
	f.txRepo.On("RememberExternalID", ctx, loan.ID, "PAY-1").Return(nil)

	// Act
	res, err := f.service.PostRepayment(ctx, PostTransactionRequest{
		LoanID:     loan.ID,
		Amount:     amount("340.02"),
		Date:       date(2, 1),
		ExternalID: "PAY-1",
	})

	// Assert
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	assert.Nil(t, res.Replay)
	assert.True(t, res.Remainder.IsZero())
	assert.True(t, res.Transaction.Principal.Equal(domain.MustMoney("NGN", "330.02")))
	assert.True(t, res.Transaction.Interest.Equal(domain.MustMoney("NGN", "10")))
	assert.Equal(t, domain.LoanStatusActive, res.Loan.Status)
	assert.Equal(t, 1, f.locker.released)
	f.loanRepo.AssertExpectations(t)
	f.txRepo.AssertExpectations(t)
}

func TestPostRepayment_PublishesPostedEventAfterSave(t *testing.T) {
	ctx := context.Background()
	f := newFixture(true)
	loan := disbursedLoan(t)

	f.locker.On("Acquire", ctx, loan.ID).Return(nil)
	f.loanRepo.On("FindByID", ctx, loan.ID).Return(loan, nil)
	f.loanRepo.On("Save", ctx, loan).Return(nil)

	res, err := f.service.PostRepayment(ctx, PostTransactionRequest{LoanID: loan.ID, Amount: amount("50"), Date: date(2, 1)})
	require.NoError(t, err)

	batch := f.publisher.next(t)
	require.Len(t, batch, 1)
	assert.Equal(t, domain.EventTypeTransactionPosted, batch[0].GetEventType())
	posted := batch[0].(*domain.TransactionPostedEvent)
	assert.Equal(t, res.Transaction.ID, posted.Payload.Transaction.TransactionID)
}

func TestPostRepayment_DuplicateExternalID(t *testing.T) {
	// Arrange
	ctx := context.Background()
	f := newFixture(false)
	loan := disbursedLoan(t)
	existing := withRepayment(t, loan, date(2, 1), "100", "PAY-1")

	f.txRepo.On("ExistsByExternalID", ctx, loan.ID, "PAY-1").Return(true, nil)
	f.loanRepo.On("FindByID", ctx, loan.ID).Return(loan, nil)

	// Act
	res, err := f.service.PostRepayment(ctx, PostTransactionRequest{
		LoanID:     loan.ID,
		Amount:     amount("100"),
		Date:       date(2, 1),
		ExternalID: "PAY-1",
	})

	// Assert
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
	assert.Same(t, existing, res.Transaction)
	assert.Len(t, loan.Transactions, 2)
	f.locker.AssertNotCalled(t, "Acquire", mock.Anything, mock.Anything)
	f.loanRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestPostRepayment_RejectsInvalidRequests(t *testing.T) {
	f := newFixture(false)
	ctx := context.Background()

	_, err := f.service.PostRepayment(ctx, PostTransactionRequest{LoanID: "loan-1", Amount: amount("10"), Date: date(3, 1)})
	assert.ErrorIs(t, err, domain.ErrFutureDatedTransaction)

	_, err = f.service.PostRepayment(ctx, PostTransactionRequest{LoanID: "loan-1", Amount: amount("-1"), Date: date(2, 1)})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = f.service.PostRepayment(ctx, PostTransactionRequest{Amount: amount("10"), Date: date(2, 1)})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.service.WaiveCharges(ctx, WaiveChargesRequest{LoanID: "loan-1", FeeAmount: amount("-5"), Date: date(2, 1)})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	f.locker.AssertNotCalled(t, "Acquire", mock.Anything, mock.Anything)
}

func TestPostRepayment_LockNotAcquired(t *testing.T) {
	// Arrange
	ctx := context.Background()
	f := newFixture(false)

	f.locker.On("Acquire", ctx, "loan-1").Return(domain.ErrLoanLocked)

	// Act
	res, err := f.service.PostRepayment(ctx, PostTransactionRequest{LoanID: "loan-1", Amount: amount("10"), Date: date(2, 1)})

	// Assert
	assert.Nil(t, res)
	assert.ErrorIs(t, err, domain.ErrLoanLocked)
	assert.Contains(t, err.Error(), "failed to post REPAYMENT")
	f.loanRepo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

func TestPostRepayment_RetriesOnceOnOptimisticLock(t *testing.T) {
	// Arrange
	ctx := context.Background()
	f := newFixture(false)
	stale := disbursedLoan(t)
	fresh := disbursedLoan(t)
	fresh.ID = stale.ID

	f.locker.On("Acquire", ctx, stale.ID).Return(nil)
	f.loanRepo.On("FindByID", ctx, stale.ID).Return(stale, nil).Once()
	f.loanRepo.On("FindByID", ctx, stale.ID).Return(fresh, nil).Once()
	f.loanRepo.On("Save", ctx, stale).Return(domain.ErrOptimisticLock).Once()
	f.loanRepo.On("Save", ctx, fresh).Return(nil).Once()

	// Act
	res, err := f.service.PostRepayment(ctx, PostTransactionRequest{LoanID: stale.ID, Amount: amount("100"), Date: date(2, 1)})

	// Assert
	require.NoError(t, err)
	assert.Same(t, fresh, res.Loan)
	assert.Len(t, fresh.Transactions, 2)
	assert.Equal(t, 1, f.locker.released)
	f.loanRepo.AssertNumberOfCalls(t, "FindByID", 2)
	f.loanRepo.AssertNumberOfCalls(t, "Save", 2)
}

func TestPostRepayment_GivesUpAfterSecondConflict(t *testing.T) {
	ctx := context.Background()
	f := newFixture(true)
	loan := disbursedLoan(t)

	f.locker.On("Acquire", ctx, loan.ID).Return(nil)
	f.loanRepo.On("FindByID", ctx, loan.ID).Return(loan, nil)
	f.loanRepo.On("Save", ctx, loan).Return(domain.ErrOptimisticLock)

	res, err := f.service.PostRepayment(ctx, PostTransactionRequest{LoanID: loan.ID, Amount: amount("100"), Date: date(2, 1)})

	assert.Nil(t, res)
	assert.ErrorIs(t, err, domain.ErrOptimisticLock)
	f.loanRepo.AssertNumberOfCalls(t, "Save", 2)
	assert.Empty(t, f.publisher.batches)
}

func TestPostRepayment_BackdatedReplaysHistory(t *testing.T) {
	// Arrange
	ctx := context.Background()
	f := newFixture(true)
	loan := disbursedLoan(t)
	later := withRepayment(t, loan, date(2, 1), "340.02", "")

	f.txRepo.On("ExistsByExternalID", ctx, loan.ID, "BACK-1").Return(false, nil)
	f.locker.On("Acquire", ctx, loan.ID).Return(nil)
	f.loanRepo.On("FindByID", ctx, loan.ID).Return(loan, nil)
	f.loanRepo.On("Save", ctx, loan).Return(nil)
	f.txRepo.On("FindTransactionsForAccountingBridge", ctx, loan.ID, mock.AnythingOfType("[]string")).
		Return([]*domain.Transaction{later}, nil)
	f.txRepo.On("RememberExternalID", ctx, loan.ID, "BACK-1").Return(nil)

	// Act
	res, err := f.service.PostRepayment(ctx, PostTransactionRequest{
		LoanID:     loan.ID,
		Amount:     amount("100"),
		Date:       date(1, 15),
		ExternalID: "BACK-1",
	})

	// Assert
	require.NoError(t, err)
	require.NotNil(t, res.Replay)
	require.Len(t, res.Replay.Changes, 1)
	assert.Same(t, later, res.Replay.Changes[0].Old)
	assert.True(t, later.Reversed)
	assert.True(t, res.Transaction.Principal.Equal(domain.MustMoney("NGN", "90")))
	assert.True(t, res.Remainder.IsZero())

	adjusted := f.publisher.next(t)
	require.Len(t, adjusted, 1)
	assert.Equal(t, domain.EventTypeTransactionAdjusted, adjusted[0].GetEventType())

	bridged := f.publisher.next(t)
	require.Len(t, bridged, 1)
	assert.Equal(t, domain.EventTypeTransactionReversed, bridged[0].GetEventType())
	f.txRepo.AssertExpectations(t)
}

func TestWaiveCharges_BoundsPortions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(false)
	loan := disbursedLoan(t)
	due := date(1, 20)
	charge := domain.NewCharge("def-1", "processing", domain.ChargeCalculationFlat, domain.ChargeTimeSpecifiedDueDate,
		domain.MustMoney("NGN", "20"), decimal.Zero, false, &due)
	require.NoError(t, loan.AddCharge(charge, 0))

	f.locker.On("Acquire", ctx, loan.ID).Return(nil)
	f.loanRepo.On("FindByID", ctx, loan.ID).Return(loan, nil)
	f.loanRepo.On("Save", ctx, loan).Return(nil)

	res, err := f.service.WaiveCharges(ctx, WaiveChargesRequest{
		LoanID:    loan.ID,
		FeeAmount: amount("15"),
		Date:      date(1, 25),
	})

	require.NoError(t, err)
	assert.True(t, res.Transaction.Fee.Equal(domain.MustMoney("NGN", "15")))
	assert.True(t, loan.Installments[0].Fee.Waived.Equal(domain.MustMoney("NGN", "15")))
	assert.True(t, charge.AmountOutstanding.Equal(domain.MustMoney("NGN", "5")))
}

func TestReverseTransaction_ReplaysAndReportsReversal(t *testing.T) {
	// Arrange
	ctx := context.Background()
	f := newFixture(false)
	loan := disbursedLoan(t)
	tx := withRepayment(t, loan, date(2, 1), "340.02", "")

	f.locker.On("Acquire", ctx, loan.ID).Return(nil)
	f.loanRepo.On("FindByID", ctx, loan.ID).Return(loan, nil)
	f.loanRepo.On("Save", ctx, loan).Return(nil)
	f.txRepo.On("FindTransactionsForAccountingBridge", ctx, loan.ID, []string{tx.ID}).
		Return([]*domain.Transaction{tx}, nil)

	// Act
	res, err := f.service.ReverseTransaction(ctx, loan.ID, tx.ID)

	// Assert
	require.NoError(t, err)
	assert.True(t, tx.Reversed)
	assert.Equal(t, []string{tx.ID}, res.Replay.NewlyReversedIDs)
	assert.Empty(t, res.Replay.Changes)
	assert.True(t, loan.Summary.TotalOutstanding.Equal(domain.MustMoney("NGN", "1020.07")))
	f.txRepo.AssertExpectations(t)
}

func TestReverseTransaction_AlreadyReversed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(false)
	loan := disbursedLoan(t)
	tx := withRepayment(t, loan, date(2, 1), "340.02", "")
	require.NoError(t, tx.Reverse(date(2, 2)))

	f.locker.On("Acquire", ctx, loan.ID).Return(nil)
	f.loanRepo.On("FindByID", ctx, loan.ID).Return(loan, nil)

	_, err := f.service.ReverseTransaction(ctx, loan.ID, tx.ID)

	assert.ErrorIs(t, err, domain.ErrTransactionAlreadyReversed)
	f.loanRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestAddCharge_AfterHistoryDoesNotReplay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(false)
	loan := disbursedLoan(t)
	withRepayment(t, loan, date(2, 1), "340.02", "")
	last := date(2, 1)
	due := date(2, 5)

	f.locker.On("Acquire", ctx, loan.ID).Return(nil)
	f.loanRepo.On("FindByID", ctx, loan.ID).Return(loan, nil)
	f.loanRepo.On("Save", ctx, loan).Return(nil)
	f.txRepo.On("FindLastTransactionDateForReprocessing", ctx, loan.ID).Return(&last, nil)

	res, err := f.service.AddCharge(ctx, AddChargeRequest{
		LoanID:          loan.ID,
		Name:            "late fee",
		CalculationType: domain.ChargeCalculationFlat,
		TimeType:        domain.ChargeTimeSpecifiedDueDate,
		Amount:          amount("25"),
		DueDate:         &due,
	})

	require.NoError(t, err)
	assert.Nil(t, res.Replay)
	require.NotNil(t, res.Charge)
	assert.True(t, loan.Installments[1].Fee.Due.Equal(domain.MustMoney("NGN", "25")))
}

func TestAddCharge_BeforeHistoryReplays(t *testing.T) {
	ctx := context.Background()
	f := newFixture(false)
	loan := disbursedLoan(t)
	withRepayment(t, loan, date(2, 1), "340.02", "")
	last := date(2, 1)
	due := date(1, 20)
	maxCap := amount("15")

	f.locker.On("Acquire", ctx, loan.ID).Return(nil)
	f.loanRepo.On("FindByID", ctx, loan.ID).Return(loan, nil)
	f.loanRepo.On("Save", ctx, loan).Return(nil)
	f.txRepo.On("FindLastTransactionDateForReprocessing", ctx, loan.ID).Return(&last, nil)

	res, err := f.service.AddCharge(ctx, AddChargeRequest{
		LoanID:          loan.ID,
		Name:            "insurance",
		CalculationType: domain.ChargeCalculationPercentOfPrincipal,
		TimeType:        domain.ChargeTimeSpecifiedDueDate,
		Percentage:      amount("2"),
		MaxCap:          &maxCap,
		DueDate:         &due,
	})

	require.NoError(t, err)
	require.NotNil(t, res.Replay)
	assert.Empty(t, res.Replay.Changes)
	assert.True(t, res.Charge.Amount.Equal(domain.MustMoney("NGN", "15")))
	assert.True(t, loan.Summary.TotalOutstanding.Equal(domain.MustMoney("NGN", "695.05")))
}

func TestGetSummary_CacheHit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(false)
	summary := domain.NewLoanSummary("NGN", domain.ZeroMoney("NGN"))

	f.cache.On("Get", ctx, "loan-1").Return(summary, nil)

	result, err := f.service.GetSummary(ctx, "loan-1")

	require.NoError(t, err)
	assert.Same(t, summary, result)
	f.loanRepo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

func TestGetSummary_CacheMissLoadsAndCaches(t *testing.T) {
	ctx := context.Background()
	f := newFixture(false)
	loan := disbursedLoan(t)

	f.cache.On("Get", ctx, loan.ID).Return(nil, errors.New("cache miss"))
	f.loanRepo.On("FindByID", ctx, loan.ID).Return(loan, nil)
	f.cache.On("Set", ctx, loan.ID, loan.Summary).Return(errors.New("redis down"))

	result, err := f.service.GetSummary(ctx, loan.ID)

	require.NoError(t, err)
	assert.Same(t, loan.Summary, result)
	f.cache.AssertExpectations(t)
}

func TestGetSummary_LoanNotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(false)

	f.cache.On("Get", ctx, "missing").Return(nil, errors.New("cache miss"))
	f.loanRepo.On("FindByID", ctx, "missing").Return(nil, domain.ErrLoanNotFound)

	result, err := f.service.GetSummary(ctx, "missing")

	assert.Nil(t, result)
	assert.ErrorIs(t, err, domain.ErrLoanNotFound)
}

func TestListTransactions_DefaultsToEveryKind(t *testing.T) {
	ctx := context.Background()
	f := newFixture(false)
	loan := disbursedLoan(t)
	kinds := append([]domain.TransactionKind{domain.TransactionKindDisbursement}, domain.ReplayableKinds...)

	f.txRepo.On("FindNonReversedByLoanAndTypes", ctx, loan.ID, kinds).Return(loan.Transactions, nil)

	txs, err := f.service.ListTransactions(ctx, loan.ID, nil)

	require.NoError(t, err)
	assert.Len(t, txs, 1)
	assert.Equal(t, domain.TransactionKindDisbursement, txs[0].Kind)
}

func TestListTransactions_RepositoryError(t *testing.T) {
	ctx := context.Background()
	f := newFixture(false)
	kinds := []domain.TransactionKind{domain.TransactionKindRepayment}

	f.txRepo.On("FindNonReversedByLoanAndTypes", ctx, "loan-1", kinds).Return(nil, errors.New("database error"))

	txs, err := f.service.ListTransactions(ctx, "loan-1", kinds)

	assert.Nil(t, txs)
	assert.Contains(t, err.Error(), "failed to get transactions")
}

func TestGetEffectiveInterestRate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(false)
	loan := disbursedLoan(t)

	f.loanRepo.On("FindByID", ctx, loan.ID).Return(loan, nil)

	rate, err := f.service.GetEffectiveInterestRate(ctx, loan.ID)

	require.NoError(t, err)
	assert.InDelta(t, 12.0, rate.InexactFloat64(), 0.05)
}

func TestCreateLoan(t *testing.T) {
	ctx := context.Background()
	f := newFixture(false)

	f.loanRepo.On("Create", ctx, mock.AnythingOfType("*domain.Loan")).Return(nil)

	loan, err := f.service.CreateLoan(ctx, CreateLoanRequest{
		ExternalID:               "EXT-9",
		Currency:                 "NGN",
		Principal:                amount("5000"),
		AnnualInterestRate:       amount("18"),
		NumberOfRepayments:       6,
		RepaymentEvery:           1,
		RepaymentFrequency:       domain.RepaymentFrequencyMonths,
		ExpectedDisbursementDate: date(3, 1),
	})

	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusSubmittedAndPendingApproval, loan.Status)
	assert.Equal(t, domain.StrategyInterestPrincipalPenaltyFee, loan.Strategy)
	assert.Equal(t, businessDate, loan.SubmittedOn)

	_, err = f.service.CreateLoan(ctx, CreateLoanRequest{Currency: "NGN", Principal: amount("5000"), Strategy: "fifo"})
	assert.ErrorIs(t, err, domain.ErrValidation)
	f.loanRepo.AssertNumberOfCalls(t, "Create", 1)
}

func TestDisburseLoan_RejectsFutureDate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(false)
	loan := disbursedLoan(t)

	f.locker.On("Acquire", ctx, loan.ID).Return(nil)
	f.loanRepo.On("FindByID", ctx, loan.ID).Return(loan, nil)

	_, err := f.service.DisburseLoan(ctx, loan.ID, date(3, 1))

	assert.ErrorIs(t, err, domain.ErrFutureDatedTransaction)
	f.loanRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

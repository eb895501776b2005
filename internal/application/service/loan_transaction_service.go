package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gigmile/loan-engine/internal/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// NotifierFactory builds the event notifier handed to one reprocessing run.
type NotifierFactory func(publisher domain.EventPublisher) domain.BusinessEventNotifier

// Options tunes the engine.
type Options struct {
	DefaultStrategy       domain.AllocationStrategy
	PenaltyWaitPeriodDays int
	EIRMaxIterations      int
	Clock                 func() time.Time
}

type LoanTransactionService struct {
	loanRepo       domain.LoanRepository
	txRepo         domain.TransactionRepository
	locker         domain.LoanLocker
	summaryCache   domain.SummaryCache   // Optional - can be nil
	eventPublisher domain.EventPublisher // Optional - can be nil
	newNotifier    NotifierFactory
	sm             domain.LifecycleStateMachine
	coordinator    *domain.ReprocessingCoordinator
	opts           Options
	logger         *zap.Logger
}

func NewLoanTransactionService(
	loanRepo domain.LoanRepository,
	txRepo domain.TransactionRepository,
	locker domain.LoanLocker,
	summaryCache domain.SummaryCache,
	eventPublisher domain.EventPublisher,
	newNotifier NotifierFactory,
	opts Options,
	logger *zap.Logger,
) *LoanTransactionService {
	if opts.DefaultStrategy == "" {
		opts.DefaultStrategy = domain.StrategyInterestPrincipalPenaltyFee
	}
	if opts.EIRMaxIterations <= 0 {
		opts.EIRMaxIterations = domain.DefaultEIRMaxIterations
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	sm := domain.NewLifecycleStateMachine()
	return &LoanTransactionService{
		loanRepo:       loanRepo,
		txRepo:         txRepo,
		locker:         locker,
		summaryCache:   summaryCache,
		eventPublisher: eventPublisher,
		newNotifier:    newNotifier,
		sm:             sm,
		coordinator:    domain.NewReprocessingCoordinator(sm),
		opts:           opts,
		logger:         logger,
	}
}

type CreateLoanRequest struct {
	ExternalID               string
	Currency                 string
	Principal                decimal.Decimal
	AnnualInterestRate       decimal.Decimal
	NumberOfRepayments       int
	RepaymentEvery           int
	RepaymentFrequency       domain.RepaymentFrequency
	ExpectedDisbursementDate time.Time
	SubmittedOn              time.Time
	Strategy                 string
}

type PostTransactionRequest struct {
	LoanID     string
	Amount     decimal.Decimal
	Date       time.Time
	ExternalID string
}

type WaiveChargesRequest struct {
	LoanID        string
	FeeAmount     decimal.Decimal
	PenaltyAmount decimal.Decimal
	Date          time.Time
	ExternalID    string
}

type RefundRequest struct {
	PostTransactionRequest
	Chargeback bool
}

type ChargePaymentRequest struct {
	PostTransactionRequest
	ChargeID          string
	InstallmentNumber int // 0 lets the engine pick the installment
}

type AddChargeRequest struct {
	LoanID                   string
	DefinitionID             string
	Name                     string
	CalculationType          domain.ChargeCalculationType
	TimeType                 domain.ChargeTimeType
	Amount                   decimal.Decimal
	Percentage               decimal.Decimal
	MinCap                   *decimal.Decimal
	MaxCap                   *decimal.Decimal
	IsPenalty                bool
	DueDate                  *time.Time
	OverdueInstallmentNumber int
	TrancheDisbursementID    string
}

// TransactionResult is the outcome of one engine operation.
type TransactionResult struct {
	Loan        *domain.Loan
	Transaction *domain.Transaction
	Charge      *domain.Charge
	// Remainder is the part of the amount no component absorbed.
	Remainder domain.Money
	// Replay is set when the operation went through the reprocessing coordinator.
	Replay    *domain.ReplayResult
	Duplicate bool
}

type mutation func(ctx context.Context, loan *domain.Loan, events *outbox) (*TransactionResult, error)

func (s *LoanTransactionService) CreateLoan(ctx context.Context, req CreateLoanRequest) (*domain.Loan, error) {
	code := req.Strategy
	if code == "" {
		code = string(s.opts.DefaultStrategy)
	}
	strategy, err := domain.ParseAllocationStrategy(code)
	if err != nil {
		return nil, err
	}
	submittedOn := req.SubmittedOn
	if submittedOn.IsZero() {
		submittedOn = s.opts.Clock()
	}

	loan, err := domain.NewLoan(req.ExternalID, domain.NewMoney(req.Principal, req.Currency), strategy, domain.ScheduleTerms{
		AnnualInterestRate: req.AnnualInterestRate,
		NumberOfRepayments: req.NumberOfRepayments,
		RepaymentEvery:     req.RepaymentEvery,
		RepaymentFrequency: req.RepaymentFrequency,
		StartDate:          req.ExpectedDisbursementDate,
	}, submittedOn)
	if err != nil {
		return nil, err
	}

	if err := s.loanRepo.Create(ctx, loan); err != nil {
		s.logger.Error("failed to create loan",
			zap.Error(err),
			zap.String("external_id", req.ExternalID),
		)
		return nil, fmt.Errorf("failed to create loan: %w", err)
	}

	s.logger.Info("loan created",
		zap.String("loan_id", loan.ID),
		zap.String("principal", loan.Principal.String()),
		zap.String("strategy", string(loan.Strategy)),
	)
	return loan, nil
}

func (s *LoanTransactionService) ApproveLoan(ctx context.Context, loanID string, on time.Time) (*domain.Loan, error) {
	res, err := s.execute(ctx, loanID, "approve loan", func(_ context.Context, loan *domain.Loan, _ *outbox) (*TransactionResult, error) {
		if err := loan.Approve(on, s.sm, s.opts.PenaltyWaitPeriodDays); err != nil {
			return nil, err
		}
		return &TransactionResult{}, nil
	})
	if err != nil {
		return nil, err
	}
	return res.Loan, nil
}

func (s *LoanTransactionService) DisburseLoan(ctx context.Context, loanID string, on time.Time) (*TransactionResult, error) {
	return s.execute(ctx, loanID, "disburse loan", func(ctx context.Context, loan *domain.Loan, events *outbox) (*TransactionResult, error) {
		if on.After(s.opts.Clock()) {
			return nil, domain.ErrFutureDatedTransaction
		}
		tx, err := loan.Disburse(on, s.sm, s.opts.PenaltyWaitPeriodDays)
		if err != nil {
			return nil, err
		}
		_ = events.Publish(ctx, domain.NewTransactionPostedEvent(loan, tx, s.opts.Clock()))
		return &TransactionResult{Transaction: tx, Remainder: domain.ZeroMoney(loan.Currency)}, nil
	})
}

func (s *LoanTransactionService) PostRepayment(ctx context.Context, req PostTransactionRequest) (*TransactionResult, error) {
	return s.post(ctx, req, domain.TransactionKindRepayment, nil)
}

func (s *LoanTransactionService) WaiveInterest(ctx context.Context, req PostTransactionRequest) (*TransactionResult, error) {
	return s.post(ctx, req, domain.TransactionKindWaiveInterest, nil)
}

// WaiveCharges waives at most FeeAmount of fees and PenaltyAmount of penalties.
func (s *LoanTransactionService) WaiveCharges(ctx context.Context, req WaiveChargesRequest) (*TransactionResult, error) {
	if req.FeeAmount.IsNegative() || req.PenaltyAmount.IsNegative() {
		return nil, domain.ErrInvalidAmount
	}
	post := PostTransactionRequest{
		LoanID:     req.LoanID,
		Amount:     req.FeeAmount.Add(req.PenaltyAmount),
		Date:       req.Date,
		ExternalID: req.ExternalID,
	}
	return s.post(ctx, post, domain.TransactionKindWaiveCharges, func(tx *domain.Transaction) {
		currency := tx.Amount.Currency()
		tx.SetChargePortions(domain.NewMoney(req.FeeAmount, currency), domain.NewMoney(req.PenaltyAmount, currency))
	})
}

// WriteOff writes off everything outstanding as of date.
func (s *LoanTransactionService) WriteOff(ctx context.Context, loanID string, date time.Time, externalID string) (*TransactionResult, error) {
	return s.post(ctx, PostTransactionRequest{LoanID: loanID, Amount: decimal.Zero, Date: date, ExternalID: externalID},
		domain.TransactionKindWriteOff, nil)
}

// Refund unwinds previously paid amounts. The part that finds nothing to unwind
// is returned as the remainder.
func (s *LoanTransactionService) Refund(ctx context.Context, req RefundRequest) (*TransactionResult, error) {
	kind := domain.TransactionKindRefund
	if req.Chargeback {
		kind = domain.TransactionKindChargeback
	}
	return s.post(ctx, req.PostTransactionRequest, kind, nil)
}

func (s *LoanTransactionService) MakeChargePayment(ctx context.Context, req ChargePaymentRequest) (*TransactionResult, error) {
	if err := s.validatePost(req.PostTransactionRequest); err != nil {
		return nil, err
	}
	if res, ok, err := s.duplicate(ctx, req.LoanID, req.ExternalID); ok || err != nil {
		return res, err
	}

	return s.execute(ctx, req.LoanID, "make charge payment", func(ctx context.Context, loan *domain.Loan, events *outbox) (*TransactionResult, error) {
		businessDate := s.opts.Clock()
		tx := domain.NewTransaction(loan.ID, domain.TransactionKindChargePayment, req.Date, domain.NewMoney(req.Amount, loan.Currency), req.ExternalID)

		if loan.RequiresReprocessing(req.Date) {
			if err := loan.PrepareChargePayment(req.ChargeID, tx, req.InstallmentNumber, businessDate); err != nil {
				return nil, err
			}
			s.warnUnassigned(loan, req.ChargeID, tx)
			return s.replay(ctx, loan, events, domain.ReplayRequest{FromDate: req.Date, BusinessDate: businessDate, Pending: tx})
		}

		if err := loan.MakeChargePayment(req.ChargeID, tx, req.InstallmentNumber, businessDate, s.sm); err != nil {
			return nil, err
		}
		s.warnUnassigned(loan, req.ChargeID, tx)
		_ = events.Publish(ctx, domain.NewTransactionPostedEvent(loan, tx, businessDate))
		return &TransactionResult{Transaction: tx, Remainder: tx.Amount.MinusOrZero(tx.PortionsTotal())}, nil
	})
}

// AddCharge attaches a charge. On a disbursed loan whose history already runs
// past the charge's effective date the transactions are replayed from there.
func (s *LoanTransactionService) AddCharge(ctx context.Context, req AddChargeRequest) (*TransactionResult, error) {
	if req.LoanID == "" || req.Name == "" {
		return nil, fmt.Errorf("%w: loan id and charge name are required", domain.ErrValidation)
	}
	if req.Amount.IsNegative() || req.Percentage.IsNegative() {
		return nil, domain.ErrInvalidAmount
	}

	return s.execute(ctx, req.LoanID, "add charge", func(ctx context.Context, loan *domain.Loan, events *outbox) (*TransactionResult, error) {
		c := domain.NewCharge(req.DefinitionID, req.Name, req.CalculationType, req.TimeType,
			domain.NewMoney(req.Amount, loan.Currency), req.Percentage, req.IsPenalty, req.DueDate)
		c.OverdueInstallmentNumber = req.OverdueInstallmentNumber
		c.TrancheDisbursementID = req.TrancheDisbursementID
		if req.MinCap != nil {
			m := domain.NewMoney(*req.MinCap, loan.Currency)
			c.MinCap = &m
		}
		if req.MaxCap != nil {
			m := domain.NewMoney(*req.MaxCap, loan.Currency)
			c.MaxCap = &m
		}

		if err := loan.AddCharge(c, s.opts.PenaltyWaitPeriodDays); err != nil {
			return nil, err
		}
		if !loan.IsDisbursed() {
			return &TransactionResult{Charge: c}, nil
		}
		if err := s.sm.Transition(domain.LoanEventChargeAdded, loan); err != nil {
			return nil, err
		}

		last, err := s.txRepo.FindLastTransactionDateForReprocessing(ctx, loan.ID)
		if err != nil {
			return nil, err
		}
		from := chargeEffectiveDate(loan, c)
		if last == nil || from.After(*last) {
			s.sm.DetermineAndTransition(loan, s.opts.Clock())
			return &TransactionResult{Charge: c}, nil
		}

		res, err := s.replay(ctx, loan, events, domain.ReplayRequest{FromDate: from, BusinessDate: s.opts.Clock()})
		if err != nil {
			return nil, err
		}
		res.Charge = c
		return res, nil
	})
}

// ReverseTransaction reverses a transaction and replays the loan from its date.
func (s *LoanTransactionService) ReverseTransaction(ctx context.Context, loanID, transactionID string) (*TransactionResult, error) {
	return s.execute(ctx, loanID, "reverse transaction", func(ctx context.Context, loan *domain.Loan, events *outbox) (*TransactionResult, error) {
		businessDate := s.opts.Clock()
		tx, err := loan.ReverseTransaction(transactionID, businessDate)
		if err != nil {
			return nil, err
		}
		if err := s.sm.Transition(domain.LoanEventTransactionReversed, loan); err != nil {
			return nil, err
		}

		res, err := s.replay(ctx, loan, events, domain.ReplayRequest{FromDate: tx.Date, BusinessDate: businessDate})
		if err != nil {
			return nil, err
		}
		res.Replay.NewlyReversedIDs = append([]string{tx.ID}, res.Replay.NewlyReversedIDs...)
		res.Transaction = tx
		res.Remainder = domain.ZeroMoney(loan.Currency)
		return res, nil
	})
}

// Reprocess replays the loan's transactions from fromDate.
func (s *LoanTransactionService) Reprocess(ctx context.Context, loanID string, fromDate time.Time) (*TransactionResult, error) {
	return s.execute(ctx, loanID, "reprocess loan", func(ctx context.Context, loan *domain.Loan, events *outbox) (*TransactionResult, error) {
		if !loan.IsDisbursed() {
			return nil, fmt.Errorf("%w: loan %s is %s", domain.ErrInvalidStatusTransition, loan.ID, loan.Status)
		}
		res, err := s.replay(ctx, loan, events, domain.ReplayRequest{FromDate: fromDate, BusinessDate: s.opts.Clock()})
		if err != nil {
			return nil, err
		}
		if err := s.sm.Transition(domain.LoanEventReprocessingCompleted, loan); err != nil {
			return nil, err
		}
		return res, nil
	})
}

func (s *LoanTransactionService) GetLoan(ctx context.Context, loanID string) (*domain.Loan, error) {
	return s.loanRepo.FindByID(ctx, loanID)
}

// GetSummary reads through the summary cache.
func (s *LoanTransactionService) GetSummary(ctx context.Context, loanID string) (*domain.LoanSummary, error) {
	if s.summaryCache != nil {
		if summary, err := s.summaryCache.Get(ctx, loanID); err == nil {
			return summary, nil
		}
	}

	loan, err := s.loanRepo.FindByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if s.summaryCache != nil {
		if err := s.summaryCache.Set(ctx, loanID, loan.Summary); err != nil {
			s.logger.Warn("failed to cache loan summary", zap.Error(err), zap.String("loan_id", loanID))
		}
	}
	return loan.Summary, nil
}

func (s *LoanTransactionService) GetEffectiveInterestRate(ctx context.Context, loanID string) (decimal.Decimal, error) {
	loan, err := s.loanRepo.FindByID(ctx, loanID)
	if err != nil {
		return decimal.Zero, err
	}
	rate, err := loan.EffectiveInterestRate(s.opts.EIRMaxIterations)
	if err != nil {
		s.logger.Info("effective interest rate unavailable",
			zap.String("loan_id", loanID),
			zap.Error(err),
		)
		return decimal.Zero, err
	}
	return rate, nil
}

// ListTransactions returns the loan's non-reversed transactions of the given
// kinds in replay order. No kinds means every kind.
func (s *LoanTransactionService) ListTransactions(ctx context.Context, loanID string, kinds []domain.TransactionKind) ([]*domain.Transaction, error) {
	if len(kinds) == 0 {
		kinds = append([]domain.TransactionKind{domain.TransactionKindDisbursement}, domain.ReplayableKinds...)
	}
	txs, err := s.txRepo.FindNonReversedByLoanAndTypes(ctx, loanID, kinds)
	if err != nil {
		s.logger.Error("failed to get loan transactions",
			zap.Error(err),
			zap.String("loan_id", loanID),
		)
		return nil, fmt.Errorf("failed to get transactions: %w", err)
	}
	return txs, nil
}

// post runs a repayment, waiver, refund or write-off. A transaction dated before
// existing history goes through the reprocessing coordinator.
func (s *LoanTransactionService) post(ctx context.Context, req PostTransactionRequest, kind domain.TransactionKind, prepare func(*domain.Transaction)) (*TransactionResult, error) {
	if err := s.validatePost(req); err != nil {
		return nil, err
	}
	if res, ok, err := s.duplicate(ctx, req.LoanID, req.ExternalID); ok || err != nil {
		return res, err
	}

	return s.execute(ctx, req.LoanID, "post "+string(kind), func(ctx context.Context, loan *domain.Loan, events *outbox) (*TransactionResult, error) {
		tx := domain.NewTransaction(loan.ID, kind, req.Date, domain.NewMoney(req.Amount, loan.Currency), req.ExternalID)
		if prepare != nil {
			prepare(tx)
		}

		if loan.RequiresReprocessing(req.Date) {
			return s.replay(ctx, loan, events, domain.ReplayRequest{FromDate: req.Date, BusinessDate: s.opts.Clock(), Pending: tx})
		}

		remainder, err := loan.ApplyTransaction(tx, s.sm)
		if err != nil {
			return nil, err
		}
		_ = events.Publish(ctx, domain.NewTransactionPostedEvent(loan, tx, s.opts.Clock()))
		return &TransactionResult{Transaction: tx, Remainder: remainder}, nil
	})
}

func (s *LoanTransactionService) replay(ctx context.Context, loan *domain.Loan, events *outbox, req domain.ReplayRequest) (*TransactionResult, error) {
	result, err := s.coordinator.Reprocess(ctx, loan, s.newNotifier(events), req)
	if err != nil {
		s.logger.Error("reprocessing failed",
			zap.Error(err),
			zap.String("loan_id", loan.ID),
			zap.String("final_state", string(result.FinalState())),
		)
		return nil, err
	}

	s.logger.Info("loan reprocessed",
		zap.String("loan_id", loan.ID),
		zap.Time("from_date", req.FromDate),
		zap.Int("changes", len(result.Changes)),
		zap.Int("changed_before_from_date", len(result.ChangedBeforeFromDate)),
	)

	res := &TransactionResult{Replay: result, Remainder: domain.ZeroMoney(loan.Currency)}
	if req.Pending != nil {
		res.Transaction = req.Pending
		res.Remainder = req.Pending.Amount.MinusOrZero(req.Pending.PortionsTotal())
	}
	return res, nil
}

// execute serialises the mutation on the loan lock, saves the aggregate and
// then delivers the operation's events.
func (s *LoanTransactionService) execute(ctx context.Context, loanID, op string, m mutation) (*TransactionResult, error) {
	release, err := s.locker.Acquire(ctx, loanID)
	if err != nil {
		s.logger.Warn("failed to acquire loan lock",
			zap.Error(err),
			zap.String("loan_id", loanID),
			zap.String("operation", op),
		)
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := release(releaseCtx); err != nil {
			s.logger.Warn("failed to release loan lock", zap.Error(err), zap.String("loan_id", loanID))
		}
	}()

	// Retry once on optimistic lock failure
	res, events, err := s.attempt(ctx, loanID, m)
	if errors.Is(err, domain.ErrOptimisticLock) {
		s.logger.Warn("optimistic lock conflict, retrying once",
			zap.String("loan_id", loanID),
			zap.String("operation", op),
		)
		res, events, err = s.attempt(ctx, loanID, m)
	}
	if err != nil {
		s.logger.Error("loan operation failed",
			zap.Error(err),
			zap.String("loan_id", loanID),
			zap.String("operation", op),
		)
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}

	if tx := res.Transaction; tx != nil && tx.ExternalID != "" {
		if err := s.txRepo.RememberExternalID(ctx, loanID, tx.ExternalID); err != nil {
			s.logger.Warn("failed to index external id",
				zap.Error(err),
				zap.String("loan_id", loanID),
				zap.String("external_id", tx.ExternalID),
			)
		}
	}

	s.logger.Info("loan operation completed",
		zap.String("loan_id", loanID),
		zap.String("operation", op),
		zap.String("status", string(res.Loan.Status)),
		zap.String("total_outstanding", res.Loan.Summary.TotalOutstanding.String()),
	)

	// Publish events asynchronously if event publisher is configured
	if s.eventPublisher != nil {
		go s.publishEvents(loanID, events.drain())
	}
	return res, nil
}

func (s *LoanTransactionService) attempt(ctx context.Context, loanID string, m mutation) (*TransactionResult, *outbox, error) {
	loan, err := s.loanRepo.FindByID(ctx, loanID)
	if err != nil {
		return nil, nil, err
	}

	events := newOutbox()
	res, err := m(ctx, loan, events)
	if err != nil {
		return nil, nil, err
	}
	if err := s.loanRepo.Save(ctx, loan); err != nil {
		return nil, nil, err
	}
	res.Loan = loan

	if res.Replay != nil {
		s.bridgeReplay(ctx, loan, res.Replay, events)
	}
	return res, events, nil
}

// bridgeReplay posts accounting events for the rows a replay created or reversed.
func (s *LoanTransactionService) bridgeReplay(ctx context.Context, loan *domain.Loan, result *domain.ReplayResult, events *outbox) {
	ids := append(append([]string{}, result.NewTransactionIDs...), result.NewlyReversedIDs...)
	if len(ids) == 0 {
		return
	}
	txs, err := s.txRepo.FindTransactionsForAccountingBridge(ctx, loan.ID, ids)
	if err != nil {
		s.logger.Error("failed to load transactions for accounting bridge",
			zap.Error(err),
			zap.String("loan_id", loan.ID),
		)
		return
	}
	batch := make([]domain.DomainEvent, 0, len(txs))
	for _, tx := range txs {
		batch = append(batch, domain.NewTransactionPostedEvent(loan, tx, s.opts.Clock()))
	}
	_ = events.PublishBatch(ctx, batch)
}

func (s *LoanTransactionService) publishEvents(loanID string, batches [][]domain.DomainEvent) {
	// Use background context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, batch := range batches {
		if err := s.eventPublisher.PublishBatch(ctx, batch); err != nil {
			s.logger.Error("failed to publish loan events",
				zap.Error(err),
				zap.String("loan_id", loanID),
				zap.Int("count", len(batch)),
			)
			continue
		}
		s.logger.Debug("loan events published",
			zap.String("loan_id", loanID),
			zap.Int("count", len(batch)),
		)
	}
}

// duplicate short-circuits a transaction whose external id was already posted.
func (s *LoanTransactionService) duplicate(ctx context.Context, loanID, externalID string) (*TransactionResult, bool, error) {
	if externalID == "" {
		return nil, false, nil
	}
	exists, err := s.txRepo.ExistsByExternalID(ctx, loanID, externalID)
	if err != nil {
		s.logger.Error("failed to check transaction existence",
			zap.Error(err),
			zap.String("external_id", externalID),
		)
		return nil, false, fmt.Errorf("failed to check transaction existence: %w", err)
	}
	if !exists {
		return nil, false, nil
	}

	s.logger.Info("duplicate transaction detected",
		zap.String("loan_id", loanID),
		zap.String("external_id", externalID),
	)
	loan, err := s.loanRepo.FindByID(ctx, loanID)
	if err != nil {
		return nil, true, fmt.Errorf("failed to get loan for duplicate transaction: %w", err)
	}
	res := &TransactionResult{Loan: loan, Duplicate: true, Remainder: domain.ZeroMoney(loan.Currency)}
	for _, tx := range loan.Transactions {
		if tx.ExternalID == externalID {
			res.Transaction = tx
		}
	}
	return res, true, nil
}

func (s *LoanTransactionService) validatePost(req PostTransactionRequest) error {
	if req.LoanID == "" {
		return fmt.Errorf("%w: loan id is required", domain.ErrValidation)
	}
	if req.Date.IsZero() {
		return fmt.Errorf("%w: transaction date is required", domain.ErrValidation)
	}
	if req.Amount.IsNegative() {
		return domain.ErrInvalidAmount
	}
	if req.Date.After(s.opts.Clock()) {
		return fmt.Errorf("%w: %s", domain.ErrFutureDatedTransaction, req.Date.Format("2006-01-02"))
	}
	return nil
}

func (s *LoanTransactionService) warnUnassigned(loan *domain.Loan, chargeID string, tx *domain.Transaction) {
	if tx.TargetChargeID == "" {
		s.logger.Warn("charge payment posted without a matching charge",
			zap.String("loan_id", loan.ID),
			zap.String("charge_id", chargeID),
			zap.String("transaction_id", tx.ID),
		)
	}
}

// chargeEffectiveDate is the earliest date the charge can change an allocation.
func chargeEffectiveDate(loan *domain.Loan, c *domain.Charge) time.Time {
	if c.DueDate != nil {
		return *c.DueDate
	}
	if c.TimeType == domain.ChargeTimeOverdueInstallment {
		if inst, err := loan.InstallmentByNumber(c.OverdueInstallmentNumber); err == nil {
			return inst.DueDate
		}
	}
	if loan.DisbursedOn != nil {
		return *loan.DisbursedOn
	}
	return loan.SubmittedOn
}

package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Disbursement is one tranche of the loan principal.
type Disbursement struct {
	ID           string
	ExpectedDate time.Time
	ActualDate   *time.Time
	Principal    Money
}

// Loan is the aggregate root. Installments, charges and transactions are only
// mutated through its methods, and callers serialise access per loan.
type Loan struct {
	ID         string
	ExternalID string
	Currency   string
	Status     LoanStatus
	Strategy   AllocationStrategy

	ApprovedPrincipal  Money
	Principal          Money
	AnnualInterestRate decimal.Decimal
	NumberOfRepayments int
	RepaymentEvery     int
	RepaymentFrequency RepaymentFrequency

	SubmittedOn   time.Time
	ApprovedOn    *time.Time
	DisbursedOn   *time.Time
	Disbursements []*Disbursement

	CapitalizedIncome           Money
	CapitalizedIncomeAdjustment Money

	Installments []*Installment
	Charges      []*Charge
	Transactions []*Transaction
	Summary      *LoanSummary

	TotalOverpaid Money
	Version       int64 // for optimistic locking
}

// NewLoan creates a loan awaiting approval with a single expected tranche.
func NewLoan(externalID string, principal Money, strategy AllocationStrategy, terms ScheduleTerms, submittedOn time.Time) (*Loan, error) {
	if !principal.IsPositive() {
		return nil, fmt.Errorf("%w: principal must be positive", ErrValidation)
	}
	if _, ok := strategyRegistry[strategy]; !ok {
		return nil, fmt.Errorf("%w: unknown allocation strategy %q", ErrValidation, strategy)
	}
	currency := principal.Currency()
	zero := ZeroMoney(currency)
	return &Loan{
		ID:                          uuid.New().String(),
		ExternalID:                  externalID,
		Currency:                    currency,
		Status:                      LoanStatusSubmittedAndPendingApproval,
		Strategy:                    strategy,
		ApprovedPrincipal:           principal,
		Principal:                   principal,
		AnnualInterestRate:          terms.AnnualInterestRate,
		NumberOfRepayments:          terms.NumberOfRepayments,
		RepaymentEvery:              terms.RepaymentEvery,
		RepaymentFrequency:          terms.RepaymentFrequency,
		SubmittedOn:                 submittedOn,
		Disbursements:               []*Disbursement{{ID: uuid.New().String(), ExpectedDate: terms.StartDate, Principal: principal}},
		CapitalizedIncome:           zero,
		CapitalizedIncomeAdjustment: zero,
		Summary:                     NewLoanSummary(currency, zero),
		TotalOverpaid:               zero,
		Version:                     1,
	}, nil
}

// Approve moves the loan to APPROVED and generates the schedule from the
// expected disbursement date.
func (l *Loan) Approve(approvedOn time.Time, sm LifecycleStateMachine, penaltyWaitPeriod int) error {
	if err := sm.Transition(LoanEventApproved, l); err != nil {
		return err
	}
	d := approvedOn
	l.ApprovedOn = &d
	return l.regenerateSchedule(l.Disbursements[0].ExpectedDate, penaltyWaitPeriod)
}

// Disburse records the actual disbursement, regenerates the schedule from that
// date and posts the disbursement transaction.
func (l *Loan) Disburse(on time.Time, sm LifecycleStateMachine, penaltyWaitPeriod int) (*Transaction, error) {
	if l.Status != LoanStatusApproved {
		return nil, fmt.Errorf("%w: %s on %s loan", ErrInvalidStatusTransition, LoanEventDisbursed, l.Status)
	}
	// charges are regenerated while the loan is still APPROVED
	if err := l.regenerateSchedule(on, penaltyWaitPeriod); err != nil {
		return nil, err
	}
	if err := sm.Transition(LoanEventDisbursed, l); err != nil {
		return nil, err
	}
	d := on
	l.DisbursedOn = &d
	for _, t := range l.Disbursements {
		if t.ActualDate == nil {
			t.ActualDate = &d
		}
	}
	l.Summary.TotalFeeChargesDueAtDisbursement = l.disbursementFeesDue()

	tx := NewTransaction(l.ID, TransactionKindDisbursement, on, l.Principal, "")
	l.appendTransaction(tx)
	return tx, l.UpdateSummary()
}

func (l *Loan) regenerateSchedule(start time.Time, penaltyWaitPeriod int) error {
	installments, err := GenerateSchedule(ScheduleTerms{
		Principal:          l.Principal,
		AnnualInterestRate: l.AnnualInterestRate,
		NumberOfRepayments: l.NumberOfRepayments,
		RepaymentEvery:     l.RepaymentEvery,
		RepaymentFrequency: l.RepaymentFrequency,
		StartDate:          start,
	})
	if err != nil {
		return err
	}
	l.Installments = installments
	for _, c := range l.Charges {
		if err := l.RecalculateCharge(c, penaltyWaitPeriod); err != nil {
			return err
		}
	}
	l.RefreshChargeComponents()
	return l.UpdateSummary()
}

// IsDisbursed reports whether principal has left the lender.
func (l *Loan) IsDisbursed() bool {
	return l.DisbursedOn != nil && !l.Status.IsPreDisbursement()
}

// PeriodsPerYear derives the annualisation factor from the repayment frequency.
func (l *Loan) PeriodsPerYear() int {
	return l.RepaymentFrequency.PeriodsPerYear(l.RepaymentEvery)
}

func (l *Loan) InstallmentByNumber(number int) (*Installment, error) {
	for _, inst := range l.Installments {
		if inst.Number == number {
			return inst, nil
		}
	}
	return nil, fmt.Errorf("%w: installment %d on loan %s", ErrInstallmentNotFound, number, l.ID)
}

func (l *Loan) ChargeByID(id string) (*Charge, error) {
	for _, c := range l.Charges {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %s on loan %s", ErrChargeNotFound, id, l.ID)
}

func (l *Loan) TransactionByID(id string) (*Transaction, error) {
	for _, t := range l.Transactions {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, fmt.Errorf("%w: %s on loan %s", ErrTransactionNotFound, id, l.ID)
}

// ActiveCharges returns the charges that have not been deactivated.
func (l *Loan) ActiveCharges() []*Charge {
	active := make([]*Charge, 0, len(l.Charges))
	for _, c := range l.Charges {
		if c.Active {
			active = append(active, c)
		}
	}
	return active
}

// AddCharge calculates the charge against the loan, attaches it and pushes its
// amounts down to the installments.
func (l *Loan) AddCharge(c *Charge, penaltyWaitPeriod int) (err error) {
	defer recoverMismatch(&err)

	if c.ConfiguredAmount.Currency() != l.Currency {
		return fmt.Errorf("%w: charge in %s, loan in %s", ErrCurrencyMismatch, c.ConfiguredAmount.Currency(), l.Currency)
	}
	if c.TimeType == ChargeTimeOverdueInstallment {
		if _, err := l.InstallmentByNumber(c.OverdueInstallmentNumber); err != nil {
			return err
		}
	}
	if c.IsDisbursementCharge() && l.IsDisbursed() {
		return fmt.Errorf("%w: disbursement charges cannot be added after disbursement", ErrValidation)
	}
	l.Charges = append(l.Charges, c)
	if err := l.RecalculateCharge(c, penaltyWaitPeriod); err != nil {
		l.Charges = l.Charges[:len(l.Charges)-1]
		return err
	}
	if c.IsDisbursementCharge() {
		l.Summary.TotalFeeChargesDueAtDisbursement = l.disbursementFeesDue()
	}
	l.RefreshChargeComponents()
	for _, inst := range l.Installments {
		if err := inst.Validate(); err != nil {
			return err
		}
	}
	return l.UpdateSummary()
}

// RefreshChargeComponents rebuilds every installment's fee and penalty due from
// the active charges. Settled amounts are left untouched.
func (l *Loan) RefreshChargeComponents() {
	ordered := orderedByDueDate(l.Installments)
	for idx, inst := range ordered {
		fee, penalty := ZeroMoney(l.Currency), ZeroMoney(l.Currency)
		for _, c := range l.Charges {
			due := c.AmountDueInInstallment(inst, idx == 0)
			if c.IsPenalty {
				penalty = penalty.Plus(due)
			} else {
				fee = fee.Plus(due)
			}
		}
		inst.Fee.Due = fee
		inst.Penalty.Due = penalty
	}
}

// ResetDerivedState zeroes every settled balance ahead of a replay.
func (l *Loan) ResetDerivedState() {
	for _, inst := range l.Installments {
		inst.ResetDerivedComponents()
	}
	for _, c := range l.Charges {
		c.ResetDerivedComponents()
	}
	l.TotalOverpaid = ZeroMoney(l.Currency)
}

// UpdateSummary rebuilds the summary from the installment and charge sets.
func (l *Loan) UpdateSummary() error {
	if l.Summary == nil {
		l.Summary = NewLoanSummary(l.Currency, l.disbursementFeesDue())
	}
	return l.Summary.UpdateSummary(l.Currency, l.Principal, l.Installments, l.Charges,
		l.CapitalizedIncome, l.CapitalizedIncomeAdjustment)
}

// ApplyTransaction allocates a new repayment, waiver, refund or write-off dated
// on or after every existing replayable transaction and attaches it to the loan.
// Backdated transactions go through the reprocessing coordinator instead.
func (l *Loan) ApplyTransaction(tx *Transaction, sm LifecycleStateMachine) (remainder Money, err error) {
	defer recoverMismatch(&err)

	if err := l.validateNewTransaction(tx); err != nil {
		return Money{}, err
	}
	remainder, err = l.allocate(tx)
	if err != nil {
		return Money{}, err
	}
	l.appendTransaction(tx)
	l.refreshOverpaid()
	if err := l.UpdateSummary(); err != nil {
		return Money{}, err
	}
	if err := sm.Transition(EventForKind(tx.Kind), l); err != nil {
		return Money{}, err
	}
	sm.DetermineAndTransition(l, tx.Date)
	return remainder, nil
}

// RequiresReprocessing reports whether a transaction dated on date lands before
// an existing replayable transaction, so history has to be replayed.
func (l *Loan) RequiresReprocessing(date time.Time) bool {
	for _, t := range l.Transactions {
		if !t.Reversed && t.Kind.IsReplayable() && t.Date.After(date) {
			return true
		}
	}
	return false
}

// ReverseTransaction flips the reversed flag. The caller replays from its date.
func (l *Loan) ReverseTransaction(id string, on time.Time) (*Transaction, error) {
	tx, err := l.TransactionByID(id)
	if err != nil {
		return nil, err
	}
	if !tx.Kind.IsReplayable() {
		return nil, fmt.Errorf("%w: %s transactions cannot be reversed", ErrValidation, tx.Kind)
	}
	if err := tx.Reverse(on); err != nil {
		return nil, err
	}
	return tx, nil
}

// TransactionIDs returns the ids of every transaction attached to the loan.
func (l *Loan) TransactionIDs() map[string]bool {
	ids := make(map[string]bool, len(l.Transactions))
	for _, t := range l.Transactions {
		ids[t.ID] = true
	}
	return ids
}

// ReversedTransactionIDs returns the ids of reversed transactions.
func (l *Loan) ReversedTransactionIDs() map[string]bool {
	ids := make(map[string]bool)
	for _, t := range l.Transactions {
		if t.Reversed {
			ids[t.ID] = true
		}
	}
	return ids
}

// NonReversedReplayable returns the replayable transactions in replay order.
func (l *Loan) NonReversedReplayable() []*Transaction {
	var txs []*Transaction
	for _, t := range l.Transactions {
		if !t.Reversed && t.Kind.IsReplayable() {
			txs = append(txs, t)
		}
	}
	SortChronologically(txs)
	return txs
}

// NetDisbursement is principal less disbursement-time charges.
func (l *Loan) NetDisbursement() Money {
	return l.Principal.Minus(l.disbursementFeesDue())
}

// EffectiveInterestRate solves the annualised effective rate of the net
// disbursement against the installments' total due.
func (l *Loan) EffectiveInterestRate(maxIterations int) (rate decimal.Decimal, err error) {
	defer recoverMismatch(&err)

	if !l.IsDisbursed() {
		return decimal.Zero, fmt.Errorf("%w: loan %s is not disbursed", ErrEIRNotApplicable, l.ID)
	}
	if len(l.Installments) == 0 {
		return decimal.Zero, fmt.Errorf("%w: loan %s has no repayment schedule", ErrEIRNotApplicable, l.ID)
	}
	net := l.NetDisbursement()
	if !net.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: net disbursement %s is not positive", ErrEIRNotApplicable, net)
	}
	ordered := orderedByDueDate(l.Installments)
	cashflows := make([]Cashflow, 0, len(ordered))
	for i, inst := range ordered {
		cashflows = append(cashflows, Cashflow{Period: i + 1, Amount: inst.TotalDue().Amount()})
	}
	return CalculateEIR(net.Amount(), cashflows, l.PeriodsPerYear(), maxIterations)
}

// EventForKind maps a transaction kind to the lifecycle event it raises.
func EventForKind(kind TransactionKind) LoanEvent {
	switch kind {
	case TransactionKindChargePayment:
		return LoanEventChargePayment
	case TransactionKindWriteOff:
		return LoanEventWrittenOff
	case TransactionKindRefund, TransactionKindChargeback:
		return LoanEventRefund
	default:
		return LoanEventRepaymentOrWaiver
	}
}

func (l *Loan) validateNewTransaction(tx *Transaction) error {
	if tx.LoanID != l.ID {
		return fmt.Errorf("%w: transaction belongs to loan %s", ErrValidation, tx.LoanID)
	}
	if tx.Amount.Currency() != l.Currency {
		return fmt.Errorf("%w: transaction in %s, loan in %s", ErrCurrencyMismatch, tx.Amount.Currency(), l.Currency)
	}
	if !l.IsDisbursed() {
		return fmt.Errorf("%w: loan %s is %s", ErrInvalidStatusTransition, l.ID, l.Status)
	}
	if l.Status == LoanStatusClosedWrittenOff {
		return fmt.Errorf("%w: loan %s is written off", ErrInvalidStatusTransition, l.ID)
	}
	if tx.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	switch tx.Kind {
	case TransactionKindWaiveCharges, TransactionKindWriteOff:
	default:
		if !tx.Amount.IsPositive() {
			return ErrInvalidAmount
		}
	}
	if l.DisbursedOn != nil && tx.Date.Before(*l.DisbursedOn) {
		return fmt.Errorf("%w: transaction dated before disbursement", ErrValidation)
	}
	return nil
}

// allocate runs the loan's strategy over the transaction's allocation scope.
func (l *Loan) allocate(tx *Transaction) (Money, error) {
	if tx.Kind == TransactionKindChargePayment && tx.TargetChargeID != "" {
		c, err := l.ChargeByID(tx.TargetChargeID)
		if err != nil {
			return Money{}, err
		}
		if c.IsDisbursementCharge() {
			return l.payDisbursementCharge(tx, c), nil
		}
		if tx.TargetInstallmentNumber == 0 {
			tx.ResetDerivedComponents()
			return tx.Amount, nil
		}
		inst, err := l.InstallmentByNumber(tx.TargetInstallmentNumber)
		if err != nil {
			return Money{}, err
		}
		return l.Strategy.Allocate(tx, []*Installment{inst}, []*Charge{c})
	}
	if tx.Kind == TransactionKindChargePayment {
		// no charge on record: the payment is posted without an allocation
		tx.ResetDerivedComponents()
		return tx.Amount, nil
	}
	return l.Strategy.Allocate(tx, l.Installments, l.Charges)
}

func (l *Loan) payDisbursementCharge(tx *Transaction, c *Charge) Money {
	tx.ResetDerivedComponents()
	applied := c.Pay(tx.Amount, 0)
	if !applied.IsPositive() {
		return tx.Amount
	}
	if c.IsPenalty {
		tx.Penalty = applied
	} else {
		tx.Fee = applied
	}
	tx.ChargesPaid = append(tx.ChargesPaid, ChargePaidBy{ChargeID: c.ID, Amount: applied})
	return tx.Amount.Minus(applied)
}

func (l *Loan) appendTransaction(tx *Transaction) {
	tx.LoanID = l.ID
	if tx.Sequence == 0 {
		tx.Sequence = l.nextSequence()
	}
	l.Transactions = append(l.Transactions, tx)
}

func (l *Loan) nextSequence() int64 {
	var max int64
	for _, t := range l.Transactions {
		if t.Sequence > max {
			max = t.Sequence
		}
	}
	return max + 1
}

func (l *Loan) refreshOverpaid() {
	total := ZeroMoney(l.Currency)
	for _, t := range l.Transactions {
		if !t.Reversed && t.Kind == TransactionKindRepayment {
			total = total.Plus(t.Overpayment.OrZero())
		}
	}
	l.TotalOverpaid = total
}

func (l *Loan) hasActiveWriteOff() bool {
	for _, t := range l.Transactions {
		if !t.Reversed && t.Kind == TransactionKindWriteOff {
			return true
		}
	}
	return false
}

func (l *Loan) disbursementFeesDue() Money {
	total := ZeroMoney(l.Currency)
	for _, c := range l.Charges {
		if c.Active && c.IsDisbursementCharge() && !c.IsPenalty {
			total = total.Plus(c.Amount)
		}
	}
	return total
}

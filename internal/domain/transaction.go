package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

type TransactionKind string

const (
	TransactionKindDisbursement  TransactionKind = "DISBURSEMENT"
	TransactionKindRepayment     TransactionKind = "REPAYMENT"
	TransactionKindWaiveInterest TransactionKind = "WAIVE_INTEREST"
	TransactionKindWaiveCharges  TransactionKind = "WAIVE_CHARGES"
	TransactionKindChargePayment TransactionKind = "CHARGE_PAYMENT"
	TransactionKindRefund        TransactionKind = "REFUND"
	TransactionKindChargeback    TransactionKind = "CHARGEBACK"
	TransactionKindAccrual       TransactionKind = "ACCRUAL"
	TransactionKindWriteOff      TransactionKind = "WRITE_OFF"
)

// ReplayableKinds are the kinds re-run through allocation during reprocessing.
var ReplayableKinds = []TransactionKind{
	TransactionKindRepayment,
	TransactionKindWaiveInterest,
	TransactionKindWaiveCharges,
	TransactionKindChargePayment,
	TransactionKindRefund,
	TransactionKindChargeback,
	TransactionKindWriteOff,
}

// IsReplayable reports whether transactions of kind k move installment balances.
func (k TransactionKind) IsReplayable() bool {
	for _, r := range ReplayableKinds {
		if k == r {
			return true
		}
	}
	return false
}

// IsUnwind reports whether k moves money back out of previously applied amounts.
func (k TransactionKind) IsUnwind() bool {
	return k == TransactionKindRefund || k == TransactionKindChargeback
}

// ChargePaidBy links a transaction to the charge (and installment) it settled.
type ChargePaidBy struct {
	ChargeID          string
	Amount            Money
	InstallmentNumber int // 0 when not tied to an installment
}

// InstallmentMapping records how much of a transaction landed on one installment.
type InstallmentMapping struct {
	InstallmentNumber int
	Principal         Money
	Interest          Money
	Fee               Money
	Penalty           Money
}

// Total is the sum of the mapped portions.
func (m InstallmentMapping) Total() Money {
	return m.Principal.Plus(m.Interest).Plus(m.Fee).Plus(m.Penalty)
}

// Transaction is a monetary event on a loan. Portions are written only by
// allocation; after commit only Reversed may change.
type Transaction struct {
	ID         string
	LoanID     string
	ExternalID string
	Kind       TransactionKind
	Date       time.Time
	Amount     Money

	Principal   Money
	Interest    Money
	Fee         Money
	Penalty     Money
	Overpayment Money

	Reversed   bool
	ReversedOn *time.Time
	// ReplacedByID is set when reprocessing superseded this transaction.
	ReplacedByID string
	// Sequence keeps insertion order for same-day ties.
	Sequence int64

	// TargetChargeID and TargetInstallmentNumber route a charge payment to the
	// charge and installment it was posted against, so a replay settles the same.
	TargetChargeID          string
	TargetInstallmentNumber int

	ChargesPaid []ChargePaidBy
	Mappings    []InstallmentMapping
}

// NewTransaction creates an unallocated transaction with zero portions.
func NewTransaction(loanID string, kind TransactionKind, date time.Time, amount Money, externalID string) *Transaction {
	zero := amount.Zero()
	return &Transaction{
		ID:          uuid.New().String(),
		LoanID:      loanID,
		ExternalID:  externalID,
		Kind:        kind,
		Date:        date,
		Amount:      amount,
		Principal:   zero,
		Interest:    zero,
		Fee:         zero,
		Penalty:     zero,
		Overpayment: zero,
	}
}

// SetChargePortions records the penalty and fee bounds of a charges waiver.
func (t *Transaction) SetChargePortions(fee, penalty Money) {
	t.Fee = fee
	t.Penalty = penalty
}

// PortionsTotal is the sum of principal, interest, fee and penalty portions.
func (t *Transaction) PortionsTotal() Money {
	return t.Principal.Plus(t.Interest).Plus(t.Fee).Plus(t.Penalty)
}

// SamePortions reports whether other carries identical allocation results.
func (t *Transaction) SamePortions(other *Transaction) bool {
	return t.Principal.Equal(other.Principal) &&
		t.Interest.Equal(other.Interest) &&
		t.Fee.Equal(other.Fee) &&
		t.Penalty.Equal(other.Penalty) &&
		t.Overpayment.Equal(other.Overpayment)
}

// ResetDerivedComponents zeroes the portions, mappings and charge links.
func (t *Transaction) ResetDerivedComponents() {
	zero := t.Amount.Zero()
	t.Principal, t.Interest, t.Fee, t.Penalty, t.Overpayment = zero, zero, zero, zero, zero
	t.ChargesPaid = nil
	t.Mappings = nil
}

// CopyForReplay returns an unallocated copy with the same identity and inputs.
// Charges-waiver portions are kept because they bound the waiver.
func (t *Transaction) CopyForReplay() *Transaction {
	c := *t
	c.Reversed = false
	c.ReversedOn = nil
	c.ReplacedByID = ""
	c.ResetDerivedComponents()
	if t.Kind == TransactionKindWaiveCharges {
		c.SetChargePortions(t.Fee, t.Penalty)
	}
	return &c
}

// Reverse flips the reversed flag. The row is never deleted.
func (t *Transaction) Reverse(on time.Time) error {
	if t.Reversed {
		return ErrTransactionAlreadyReversed
	}
	d := on
	t.Reversed = true
	t.ReversedOn = &d
	return nil
}

func (t *Transaction) updateComponents(principal, interest, fee, penalty Money) {
	t.Principal = t.Principal.Plus(principal)
	t.Interest = t.Interest.Plus(interest)
	t.Fee = t.Fee.Plus(fee)
	t.Penalty = t.Penalty.Plus(penalty)
}

// SortChronologically orders transactions by date; ties keep Sequence order.
func SortChronologically(txs []*Transaction) {
	sort.SliceStable(txs, func(a, b int) bool {
		if !txs[a].Date.Equal(txs[b].Date) {
			return txs[a].Date.Before(txs[b].Date)
		}
		return txs[a].Sequence < txs[b].Sequence
	})
}

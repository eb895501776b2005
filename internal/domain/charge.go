package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ChargeCalculationType string

const (
	ChargeCalculationFlat                          ChargeCalculationType = "FLAT"
	ChargeCalculationPercentOfPrincipal            ChargeCalculationType = "PERCENT_OF_AMOUNT"
	ChargeCalculationPercentOfPrincipalAndInterest ChargeCalculationType = "PERCENT_OF_AMOUNT_AND_INTEREST"
	ChargeCalculationPercentOfInterest             ChargeCalculationType = "PERCENT_OF_INTEREST"
	ChargeCalculationPercentOfDisbursement         ChargeCalculationType = "PERCENT_OF_DISBURSEMENT_AMOUNT"
)

func (t ChargeCalculationType) IsPercentage() bool { return t != ChargeCalculationFlat }

type ChargeTimeType string

const (
	ChargeTimeDisbursement        ChargeTimeType = "DISBURSEMENT"
	ChargeTimeSpecifiedDueDate    ChargeTimeType = "SPECIFIED_DUE_DATE"
	ChargeTimeInstallmentFee      ChargeTimeType = "INSTALLMENT_FEE"
	ChargeTimeOverdueInstallment  ChargeTimeType = "OVERDUE_INSTALLMENT"
	ChargeTimeTrancheDisbursement ChargeTimeType = "TRANCHE_DISBURSEMENT"
)

// InstallmentCharge is the share of an installment-fee charge on one installment.
type InstallmentCharge struct {
	InstallmentNumber int
	Amount            Money
	Paid              Money
	Waived            Money
	WrittenOff        Money
}

func newInstallmentCharge(number int, amount Money) *InstallmentCharge {
	zero := amount.Zero()
	return &InstallmentCharge{InstallmentNumber: number, Amount: amount, Paid: zero, Waived: zero, WrittenOff: zero}
}

func (ic *InstallmentCharge) Outstanding() Money {
	return ic.Amount.Minus(ic.Paid).Minus(ic.Waived).Minus(ic.WrittenOff)
}

// Charge is a fee or penalty applied to a loan.
type Charge struct {
	ID               string
	DefinitionID     string
	Name             string
	CalculationType  ChargeCalculationType
	TimeType         ChargeTimeType
	Percentage       decimal.Decimal
	ConfiguredAmount Money
	MinCap           *Money
	MaxCap           *Money

	Amount            Money
	AmountPaid        Money
	AmountWaived      Money
	AmountWrittenOff  Money
	AmountOutstanding Money

	DueDate                  *time.Time
	TrancheDisbursementID    string
	OverdueInstallmentNumber int

	IsPenalty bool
	Active    bool

	InstallmentCharges []*InstallmentCharge
}

// NewCharge creates an active charge whose amount is the configured amount until
// the charge engine recalculates it.
func NewCharge(definitionID, name string, calc ChargeCalculationType, timeType ChargeTimeType, configured Money, percentage decimal.Decimal, isPenalty bool, dueDate *time.Time) *Charge {
	zero := configured.Zero()
	c := &Charge{
		ID:               uuid.New().String(),
		DefinitionID:     definitionID,
		Name:             name,
		CalculationType:  calc,
		TimeType:         timeType,
		Percentage:       percentage,
		ConfiguredAmount: configured,
		Amount:           zero,
		AmountPaid:       zero,
		AmountWaived:     zero,
		AmountWrittenOff: zero,
		DueDate:          dueDate,
		IsPenalty:        isPenalty,
		Active:           true,
	}
	if !calc.IsPercentage() {
		c.Amount = configured
	}
	c.refreshOutstanding()
	return c
}

func (c *Charge) IsInstallmentFee() bool { return c.TimeType == ChargeTimeInstallmentFee }

func (c *Charge) IsDisbursementCharge() bool {
	return c.TimeType == ChargeTimeDisbursement || c.TimeType == ChargeTimeTrancheDisbursement
}

// IsDueForCollectionFromAndUpToAndIncluding reports whether the charge falls due
// in (from, to]; includeFrom widens the range to [from, to] for the first
// installment.
func (c *Charge) IsDueForCollectionFromAndUpToAndIncluding(from, to time.Time, includeFrom bool) bool {
	if c.DueDate == nil {
		return false
	}
	d := *c.DueDate
	if d.After(to) {
		return false
	}
	if includeFrom {
		return !d.Before(from)
	}
	return d.After(from)
}

// IsDueInInstallment reports whether the charge is collected in inst.
func (c *Charge) IsDueInInstallment(inst *Installment, isFirst bool) bool {
	if !c.Active || c.IsDisbursementCharge() {
		return false
	}
	if c.IsInstallmentFee() {
		return c.InstallmentCharge(inst.Number) != nil
	}
	return c.IsDueForCollectionFromAndUpToAndIncluding(inst.FromDate, inst.DueDate, isFirst)
}

// InstallmentCharge returns the per-installment row for number, or nil.
func (c *Charge) InstallmentCharge(number int) *InstallmentCharge {
	for _, ic := range c.InstallmentCharges {
		if ic.InstallmentNumber == number {
			return ic
		}
	}
	return nil
}

// AmountDueInInstallment is the charge amount collected in inst.
func (c *Charge) AmountDueInInstallment(inst *Installment, isFirst bool) Money {
	if !c.IsDueInInstallment(inst, isFirst) {
		return c.Amount.Zero()
	}
	if c.IsInstallmentFee() {
		return c.InstallmentCharge(inst.Number).Amount
	}
	return c.Amount
}

// OutstandingInInstallment is what is still collectible for this charge on
// installment number.
func (c *Charge) OutstandingInInstallment(number int) Money {
	if c.IsInstallmentFee() {
		if ic := c.InstallmentCharge(number); ic != nil {
			return ic.Outstanding()
		}
		return c.Amount.Zero()
	}
	return c.AmountOutstanding
}

// UpdateAmount sets a new charge amount and re-derives the outstanding balance.
func (c *Charge) UpdateAmount(amount Money) {
	c.Amount = amount
	c.refreshOutstanding()
}

// Pay settles up to amount and returns what was applied.
func (c *Charge) Pay(amount Money, installmentNumber int) Money {
	return c.settle(amount, installmentNumber, func(ic *InstallmentCharge, m Money) {
		ic.Paid = ic.Paid.Plus(m)
	}, &c.AmountPaid)
}

// Waive waives up to amount and returns what was applied.
func (c *Charge) Waive(amount Money, installmentNumber int) Money {
	return c.settle(amount, installmentNumber, func(ic *InstallmentCharge, m Money) {
		ic.Waived = ic.Waived.Plus(m)
	}, &c.AmountWaived)
}

// WriteOff writes off up to amount and returns what was applied.
func (c *Charge) WriteOff(amount Money, installmentNumber int) Money {
	return c.settle(amount, installmentNumber, func(ic *InstallmentCharge, m Money) {
		ic.WrittenOff = ic.WrittenOff.Plus(m)
	}, &c.AmountWrittenOff)
}

// Unpay reverses up to amount of what was paid and returns what was reversed.
func (c *Charge) Unpay(amount Money, installmentNumber int) Money {
	paid := c.AmountPaid
	var ic *InstallmentCharge
	if c.IsInstallmentFee() {
		if ic = c.InstallmentCharge(installmentNumber); ic == nil {
			return amount.Zero()
		}
		paid = ic.Paid
	}
	applied := MinMoney(amount.OrZero(), paid)
	if ic != nil {
		ic.Paid = ic.Paid.Minus(applied)
	}
	c.AmountPaid = c.AmountPaid.Minus(applied)
	c.refreshOutstanding()
	return applied
}

// ResetDerivedComponents clears every settled amount ahead of a replay.
func (c *Charge) ResetDerivedComponents() {
	zero := c.Amount.Zero()
	c.AmountPaid, c.AmountWaived, c.AmountWrittenOff = zero, zero, zero
	for _, ic := range c.InstallmentCharges {
		ic.Paid, ic.Waived, ic.WrittenOff = zero, zero, zero
	}
	c.refreshOutstanding()
}

// Deactivate logically deletes the charge. It is never physically removed.
func (c *Charge) Deactivate() { c.Active = false }

// ClearInstallmentCharges drops per-installment rows except those on the given
// installment numbers.
func (c *Charge) ClearInstallmentCharges(keep map[int]bool) {
	kept := c.InstallmentCharges[:0]
	for _, ic := range c.InstallmentCharges {
		if keep[ic.InstallmentNumber] {
			kept = append(kept, ic)
		}
	}
	c.InstallmentCharges = kept
}

func (c *Charge) settle(amount Money, installmentNumber int, apply func(*InstallmentCharge, Money), bucket *Money) Money {
	outstanding := c.AmountOutstanding
	var ic *InstallmentCharge
	if c.IsInstallmentFee() {
		if ic = c.InstallmentCharge(installmentNumber); ic == nil {
			return amount.Zero()
		}
		outstanding = ic.Outstanding()
	}
	applied := MinMoney(amount.OrZero(), outstanding.OrZero())
	if ic != nil {
		apply(ic, applied)
	}
	*bucket = bucket.Plus(applied)
	c.refreshOutstanding()
	return applied
}

func (c *Charge) refreshOutstanding() {
	c.AmountOutstanding = c.Amount.Minus(c.AmountPaid).Minus(c.AmountWaived).Minus(c.AmountWrittenOff)
}

package domain

import (
	"fmt"
	"sort"
	"time"
)

// RecalculateCharge recomputes the charge amount against the loan's current
// principal, interest and disbursements. penaltyWaitPeriod (days) delays the due
// date of overdue-installment penalties.
func (l *Loan) RecalculateCharge(c *Charge, penaltyWaitPeriod int) (err error) {
	defer recoverMismatch(&err)

	if !c.Active {
		return nil
	}
	// stale per-installment rows would double count after the schedule is
	// regenerated on re-approval
	if c.IsInstallmentFee() && l.Status.IsPreDisbursement() {
		c.ClearInstallmentCharges(l.recalculatedInstallmentNumbers())
	}

	switch c.TimeType {
	case ChargeTimeInstallmentFee:
		l.distributeInstallmentFee(c)
	case ChargeTimeOverdueInstallment:
		inst, err := l.InstallmentByNumber(c.OverdueInstallmentNumber)
		if err != nil {
			return err
		}
		due := inst.DueDate.AddDate(0, 0, penaltyWaitPeriod)
		c.DueDate = &due
		if c.CalculationType.IsPercentage() {
			c.UpdateAmount(c.capped(l.overdueBase(c, inst).PercentageOf(c.Percentage)))
		} else {
			c.UpdateAmount(c.ConfiguredAmount)
		}
	default:
		if c.IsDisbursementCharge() && c.DueDate == nil {
			d := l.Disbursements[0].ExpectedDate
			if l.DisbursedOn != nil {
				d = *l.DisbursedOn
			}
			c.DueDate = &d
		}
		if c.CalculationType.IsPercentage() {
			c.UpdateAmount(c.capped(l.chargeBase(c).PercentageOf(c.Percentage)))
		} else {
			c.UpdateAmount(c.ConfiguredAmount)
		}
	}
	return nil
}

// PrepareChargePayment validates a charge payment and resolves the charge and
// installment it targets. A charge that cannot be found leaves the payment
// unassigned; it is still posted.
func (l *Loan) PrepareChargePayment(chargeID string, tx *Transaction, installmentNumber int, businessDate time.Time) error {
	if tx.Date.After(businessDate) {
		return fmt.Errorf("%w: %s is after %s", ErrFutureDatedTransaction, tx.Date.Format("2006-01-02"), businessDate.Format("2006-01-02"))
	}
	tx.Kind = TransactionKindChargePayment
	if err := l.validateNewTransaction(tx); err != nil {
		return err
	}
	tx.TargetChargeID, tx.TargetInstallmentNumber = "", 0

	c, err := l.ChargeByID(chargeID)
	if err != nil || !c.Active {
		return nil
	}
	tx.TargetChargeID = c.ID
	if c.IsDisbursementCharge() {
		return nil
	}
	if installmentNumber > 0 {
		inst, err := l.InstallmentByNumber(installmentNumber)
		if err != nil {
			return err
		}
		tx.TargetInstallmentNumber = inst.Number
		return nil
	}
	if inst := l.chargeInstallment(c); inst != nil {
		tx.TargetInstallmentNumber = inst.Number
	}
	return nil
}

// MakeChargePayment posts a payment against one charge. The allocation runs on
// the single target installment with a one-element charge set.
func (l *Loan) MakeChargePayment(chargeID string, tx *Transaction, installmentNumber int, businessDate time.Time, sm LifecycleStateMachine) (err error) {
	defer recoverMismatch(&err)

	if err := l.PrepareChargePayment(chargeID, tx, installmentNumber, businessDate); err != nil {
		return err
	}
	l.appendTransaction(tx)
	if err := sm.Transition(LoanEventChargePayment, l); err != nil {
		l.Transactions = l.Transactions[:len(l.Transactions)-1]
		return err
	}
	if _, err := l.allocate(tx); err != nil {
		return err
	}
	if err := l.UpdateSummary(); err != nil {
		return err
	}
	sm.DetermineAndTransition(l, tx.Date)
	return nil
}

// chargeInstallment finds the installment a charge is collected in. The first
// installment's period includes its start date.
func (l *Loan) chargeInstallment(c *Charge) *Installment {
	ordered := orderedByDueDate(l.Installments)
	if c.IsInstallmentFee() {
		for _, inst := range ordered {
			if c.OutstandingInInstallment(inst.Number).IsPositive() {
				return inst
			}
		}
		return nil
	}
	for idx, inst := range ordered {
		if c.IsDueInInstallment(inst, idx == 0) {
			return inst
		}
	}
	return nil
}

func (l *Loan) distributeInstallmentFee(c *Charge) {
	total := ZeroMoney(l.Currency)
	for _, inst := range orderedByDueDate(l.Installments) {
		ic := c.InstallmentCharge(inst.Number)
		if inst.RecalculatedInterestComponent {
			if ic != nil {
				total = total.Plus(ic.Amount)
			}
			continue
		}
		share := c.ConfiguredAmount
		if c.CalculationType.IsPercentage() {
			share = c.capped(l.installmentBase(c, inst).PercentageOf(c.Percentage))
		}
		if ic != nil {
			ic.Amount = share
		} else {
			c.InstallmentCharges = append(c.InstallmentCharges, newInstallmentCharge(inst.Number, share))
		}
		total = total.Plus(share)
	}
	sort.SliceStable(c.InstallmentCharges, func(a, b int) bool {
		return c.InstallmentCharges[a].InstallmentNumber < c.InstallmentCharges[b].InstallmentNumber
	})
	c.UpdateAmount(total)
}

func (l *Loan) chargeBase(c *Charge) Money {
	switch c.CalculationType {
	case ChargeCalculationPercentOfPrincipal:
		return l.principalForCharge(c)
	case ChargeCalculationPercentOfPrincipalAndInterest:
		return l.principalForCharge(c).Plus(l.totalInterest())
	case ChargeCalculationPercentOfInterest:
		return l.totalInterest()
	case ChargeCalculationPercentOfDisbursement:
		if t := l.tranche(c.TrancheDisbursementID); t != nil {
			return t.Principal
		}
		return l.Principal
	}
	return ZeroMoney(l.Currency)
}

func (l *Loan) installmentBase(c *Charge, inst *Installment) Money {
	switch c.CalculationType {
	case ChargeCalculationPercentOfPrincipal, ChargeCalculationPercentOfDisbursement:
		return inst.Principal.Due
	case ChargeCalculationPercentOfPrincipalAndInterest:
		return inst.Principal.Due.Plus(inst.Interest.Due)
	case ChargeCalculationPercentOfInterest:
		return inst.Interest.Due
	}
	return ZeroMoney(l.Currency)
}

func (l *Loan) overdueBase(c *Charge, inst *Installment) Money {
	switch c.CalculationType {
	case ChargeCalculationPercentOfPrincipal:
		return inst.PrincipalOutstanding()
	case ChargeCalculationPercentOfPrincipalAndInterest:
		return inst.PrincipalOutstanding().Plus(inst.InterestOutstanding())
	case ChargeCalculationPercentOfInterest:
		return inst.InterestOutstanding()
	case ChargeCalculationPercentOfDisbursement:
		return l.Principal
	}
	return ZeroMoney(l.Currency)
}

// principalForCharge is the principal a percentage charge applies to. With
// several tranches and a charge due date, only tranches disbursed by then count.
func (l *Loan) principalForCharge(c *Charge) Money {
	if c.DueDate != nil && len(l.Disbursements) > 1 {
		total := ZeroMoney(l.Currency)
		for _, t := range l.Disbursements {
			on := t.ExpectedDate
			if t.ActualDate != nil {
				on = *t.ActualDate
			}
			if !on.After(*c.DueDate) {
				total = total.Plus(t.Principal)
			}
		}
		return total
	}
	if l.IsDisbursed() {
		return l.Principal
	}
	return l.ApprovedPrincipal
}

func (l *Loan) totalInterest() Money {
	total := ZeroMoney(l.Currency)
	for _, inst := range l.Installments {
		total = total.Plus(inst.Interest.Due)
	}
	return total
}

func (l *Loan) tranche(id string) *Disbursement {
	if id == "" {
		return nil
	}
	for _, t := range l.Disbursements {
		if t.ID == id {
			return t
		}
	}
	return nil
}

func (l *Loan) recalculatedInstallmentNumbers() map[int]bool {
	keep := make(map[int]bool)
	for _, inst := range l.Installments {
		if inst.RecalculatedInterestComponent {
			keep[inst.Number] = true
		}
	}
	return keep
}

func (c *Charge) capped(amount Money) Money {
	if c.MinCap != nil && amount.LessThan(*c.MinCap) {
		return *c.MinCap
	}
	if c.MaxCap != nil && amount.GreaterThan(*c.MaxCap) {
		return *c.MaxCap
	}
	return amount
}

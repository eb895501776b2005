package domain

import (
	"fmt"
	"time"
)

// Component holds the due/paid/waived/written-off balances of one financial
// component (principal, interest, fee or penalty) of an installment.
type Component struct {
	Due        Money
	Paid       Money
	Waived     Money
	WrittenOff Money
}

// NewComponent returns a component with the given due amount and nothing settled.
func NewComponent(due Money) Component {
	zero := due.Zero()
	return Component{Due: due, Paid: zero, Waived: zero, WrittenOff: zero}
}

// Outstanding is Due minus everything settled.
func (c Component) Outstanding() Money {
	return c.Due.Minus(c.Paid).Minus(c.Waived).Minus(c.WrittenOff)
}

// Settled is Paid + Waived + WrittenOff.
func (c Component) Settled() Money {
	return c.Paid.Plus(c.Waived).Plus(c.WrittenOff)
}

func (c *Component) pay(amount Money) Money {
	applied := MinMoney(amount.OrZero(), c.Outstanding().OrZero())
	c.Paid = c.Paid.Plus(applied)
	return applied
}

func (c *Component) waive(amount Money) Money {
	applied := MinMoney(amount.OrZero(), c.Outstanding().OrZero())
	c.Waived = c.Waived.Plus(applied)
	return applied
}

func (c *Component) writeOff() Money {
	applied := c.Outstanding().OrZero()
	c.WrittenOff = c.WrittenOff.Plus(applied)
	return applied
}

// unpay reverses at most amount of what was paid.
func (c *Component) unpay(amount Money) Money {
	applied := MinMoney(amount.OrZero(), c.Paid)
	c.Paid = c.Paid.Minus(applied)
	return applied
}

func (c *Component) reset() {
	zero := c.Due.Zero()
	c.Paid, c.Waived, c.WrittenOff = zero, zero, zero
}

func (c Component) validate(name string) error {
	for _, f := range []struct {
		label string
		v     Money
	}{{"due", c.Due}, {"paid", c.Paid}, {"waived", c.Waived}, {"written off", c.WrittenOff}} {
		if f.v.IsNegative() {
			return fmt.Errorf("%w: %s %s is negative (%s)", ErrConservationViolated, name, f.label, f.v)
		}
	}
	if c.Outstanding().IsNegative() {
		return fmt.Errorf("%w: %s settled %s exceeds due %s", ErrConservationViolated, name, c.Settled(), c.Due)
	}
	return nil
}

// Installment is one period of the repayment schedule.
type Installment struct {
	Number    int
	FromDate  time.Time
	DueDate   time.Time
	Principal Component
	Interest  Component
	Fee       Component
	Penalty   Component

	ObligationsMetOn *time.Time

	// RecalculatedInterestComponent marks installments added by an interest
	// recalculation adjustment. Charge regeneration leaves them alone.
	RecalculatedInterestComponent bool
}

// NewInstallment builds an installment with principal and interest due and no charges.
func NewInstallment(number int, from, due time.Time, principal, interest Money) *Installment {
	zero := principal.Zero()
	return &Installment{
		Number:    number,
		FromDate:  from,
		DueDate:   due,
		Principal: NewComponent(principal),
		Interest:  NewComponent(interest),
		Fee:       NewComponent(zero),
		Penalty:   NewComponent(zero),
	}
}

func (i *Installment) Currency() string { return i.Principal.Due.Currency() }

func (i *Installment) PrincipalOutstanding() Money { return i.Principal.Outstanding() }
func (i *Installment) InterestOutstanding() Money  { return i.Interest.Outstanding() }
func (i *Installment) FeeOutstanding() Money       { return i.Fee.Outstanding() }
func (i *Installment) PenaltyOutstanding() Money   { return i.Penalty.Outstanding() }

// TotalDue is the sum of every component's due amount.
func (i *Installment) TotalDue() Money {
	return i.Principal.Due.Plus(i.Interest.Due).Plus(i.Fee.Due).Plus(i.Penalty.Due)
}

// TotalOutstanding is the sum of every component's outstanding amount.
func (i *Installment) TotalOutstanding() Money {
	return i.PrincipalOutstanding().Plus(i.InterestOutstanding()).Plus(i.FeeOutstanding()).Plus(i.PenaltyOutstanding())
}

func (i *Installment) IsFullyPaid() bool      { return !i.TotalOutstanding().IsPositive() }
func (i *Installment) IsObligationsMet() bool { return i.ObligationsMetOn != nil }

// IsInPeriod reports whether date falls in (FromDate, DueDate]. The first
// installment also includes FromDate itself.
func (i *Installment) IsInPeriod(date time.Time, isFirst bool) bool {
	if date.After(i.DueDate) {
		return false
	}
	if isFirst {
		return !date.Before(i.FromDate)
	}
	return date.After(i.FromDate)
}

// IsLate reports whether date is after the due date.
func (i *Installment) IsLate(date time.Time) bool { return date.After(i.DueDate) }

// IsAdvance reports whether date comes before the installment's period.
func (i *Installment) IsAdvance(date time.Time, isFirst bool) bool {
	return !i.IsLate(date) && !i.IsInPeriod(date, isFirst)
}

func (i *Installment) PayPrincipalComponent(date time.Time, amount Money) Money {
	return i.settle(date, i.Principal.pay, amount)
}

func (i *Installment) PayInterestComponent(date time.Time, amount Money) Money {
	return i.settle(date, i.Interest.pay, amount)
}

func (i *Installment) PayFeeChargesComponent(date time.Time, amount Money) Money {
	return i.settle(date, i.Fee.pay, amount)
}

func (i *Installment) PayPenaltyChargesComponent(date time.Time, amount Money) Money {
	return i.settle(date, i.Penalty.pay, amount)
}

func (i *Installment) WaiveInterestComponent(date time.Time, amount Money) Money {
	return i.settle(date, i.Interest.waive, amount)
}

func (i *Installment) WaiveFeeChargesComponent(date time.Time, amount Money) Money {
	return i.settle(date, i.Fee.waive, amount)
}

func (i *Installment) WaivePenaltyChargesComponent(date time.Time, amount Money) Money {
	return i.settle(date, i.Penalty.waive, amount)
}

// WriteOffOutstanding writes off every outstanding component and returns the
// written-off principal, interest, fee and penalty amounts.
func (i *Installment) WriteOffOutstanding(date time.Time) (principal, interest, fee, penalty Money) {
	principal = i.Principal.writeOff()
	interest = i.Interest.writeOff()
	fee = i.Fee.writeOff()
	penalty = i.Penalty.writeOff()
	i.checkIfObligationsMet(date)
	return principal, interest, fee, penalty
}

func (i *Installment) UnpayPrincipalComponent(amount Money) Money {
	return i.unsettle(i.Principal.unpay, amount)
}

func (i *Installment) UnpayInterestComponent(amount Money) Money {
	return i.unsettle(i.Interest.unpay, amount)
}

func (i *Installment) UnpayFeeChargesComponent(amount Money) Money {
	return i.unsettle(i.Fee.unpay, amount)
}

func (i *Installment) UnpayPenaltyChargesComponent(amount Money) Money {
	return i.unsettle(i.Penalty.unpay, amount)
}

// ResetDerivedComponents clears every paid, waived and written-off balance so the
// installment can be rebuilt by replaying transactions.
func (i *Installment) ResetDerivedComponents() {
	i.Principal.reset()
	i.Interest.reset()
	i.Fee.reset()
	i.Penalty.reset()
	i.ObligationsMetOn = nil
}

// Validate checks due == paid + waived + writtenOff + outstanding with
// outstanding >= 0 for every component.
func (i *Installment) Validate() error {
	for _, c := range []struct {
		name string
		comp Component
	}{{"principal", i.Principal}, {"interest", i.Interest}, {"fee", i.Fee}, {"penalty", i.Penalty}} {
		if err := c.comp.validate(c.name); err != nil {
			return fmt.Errorf("installment %d: %w", i.Number, err)
		}
	}
	return nil
}

func (i *Installment) settle(date time.Time, op func(Money) Money, amount Money) Money {
	applied := op(amount)
	i.checkIfObligationsMet(date)
	return applied
}

func (i *Installment) unsettle(op func(Money) Money, amount Money) Money {
	applied := op(amount)
	if i.TotalOutstanding().IsPositive() {
		i.ObligationsMetOn = nil
	}
	return applied
}

func (i *Installment) checkIfObligationsMet(date time.Time) {
	if i.TotalOutstanding().IsPositive() {
		i.ObligationsMetOn = nil
		return
	}
	if i.ObligationsMetOn == nil {
		d := date
		i.ObligationsMetOn = &d
	}
}

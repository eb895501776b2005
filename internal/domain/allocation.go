package domain

import (
	"fmt"
	"sort"
	"time"
)

// AllocationStrategy selects the order in which a transaction settles the
// components of each installment.
type AllocationStrategy string

const (
	StrategyInterestPrincipalPenaltyFee AllocationStrategy = "interest-principal-penalty-fee"
	StrategyPenaltyFeeInterestPrincipal AllocationStrategy = "penalty-fee-interest-principal"
	StrategyPrincipalInterestPenaltyFee AllocationStrategy = "principal-interest-penalty-fee"
	StrategyDueInAdvancePrincipalFirst  AllocationStrategy = "due-penalty-fee-interest-principal-in-advance-principal-penalty-fee-interest"
)

type component int

const (
	principalComponent component = iota
	interestComponent
	feeComponent
	penaltyComponent
)

// allocationHook applies up to remaining to one installment and returns what landed.
type allocationHook func(ac *allocationContext, inst *Installment, remaining Money) portions

type strategyHooks struct {
	onTime  allocationHook
	advance allocationHook
	late    allocationHook
}

var strategyRegistry = map[AllocationStrategy]strategyHooks{
	// Position insensitive: advance and late payments follow the on-time order.
	StrategyInterestPrincipalPenaltyFee: sameForAllPositions(
		componentOrder(interestComponent, principalComponent, penaltyComponent, feeComponent)),
	StrategyPenaltyFeeInterestPrincipal: sameForAllPositions(
		componentOrder(penaltyComponent, feeComponent, interestComponent, principalComponent)),
	StrategyPrincipalInterestPenaltyFee: sameForAllPositions(
		componentOrder(principalComponent, interestComponent, penaltyComponent, feeComponent)),
	StrategyDueInAdvancePrincipalFirst: {
		onTime:  componentOrder(penaltyComponent, feeComponent, interestComponent, principalComponent),
		late:    componentOrder(penaltyComponent, feeComponent, interestComponent, principalComponent),
		advance: componentOrder(principalComponent, penaltyComponent, feeComponent, interestComponent),
	},
}

// ParseAllocationStrategy validates a strategy code.
func ParseAllocationStrategy(code string) (AllocationStrategy, error) {
	s := AllocationStrategy(code)
	if _, ok := strategyRegistry[s]; !ok {
		return "", fmt.Errorf("%w: unknown allocation strategy %q", ErrValidation, code)
	}
	return s, nil
}

func sameForAllPositions(h allocationHook) strategyHooks {
	return strategyHooks{onTime: h, advance: h, late: h}
}

type portions struct {
	principal Money
	interest  Money
	fee       Money
	penalty   Money
}

func zeroPortions(currency string) portions {
	z := ZeroMoney(currency)
	return portions{principal: z, interest: z, fee: z, penalty: z}
}

func (p portions) total() Money {
	return p.principal.Plus(p.interest).Plus(p.fee).Plus(p.penalty)
}

type allocationContext struct {
	tx      *Transaction
	charges []*Charge
	date    time.Time

	// charges waiver bounds, consumed across installments
	feeWaiverLeft     Money
	penaltyWaiverLeft Money
	// charge payments settle penalties when the target charge is a penalty
	chargeIsPenalty bool
}

// componentOrder builds the hook shared by every strategy: special transaction
// kinds are handled first, ordinary repayments follow the given waterfall.
func componentOrder(order ...component) allocationHook {
	return func(ac *allocationContext, inst *Installment, remaining Money) portions {
		p := zeroPortions(remaining.Currency())
		date := ac.date
		switch ac.tx.Kind {
		case TransactionKindWaiveCharges:
			p.penalty = inst.WaivePenaltyChargesComponent(date, ac.penaltyWaiverLeft)
			ac.penaltyWaiverLeft = ac.penaltyWaiverLeft.Minus(p.penalty)
			p.fee = inst.WaiveFeeChargesComponent(date, ac.feeWaiverLeft)
			ac.feeWaiverLeft = ac.feeWaiverLeft.Minus(p.fee)
		case TransactionKindWaiveInterest:
			p.interest = inst.WaiveInterestComponent(date, remaining)
		case TransactionKindChargePayment:
			// capped at the target charge so sibling charges in the installment stay untouched
			amount := MinMoney(remaining, ac.targetOutstanding(inst))
			if ac.chargeIsPenalty {
				p.penalty = inst.PayPenaltyChargesComponent(date, amount)
			} else {
				p.fee = inst.PayFeeChargesComponent(date, amount)
			}
		case TransactionKindWriteOff:
			p.principal, p.interest, p.fee, p.penalty = inst.WriteOffOutstanding(date)
		default:
			left := remaining
			for _, c := range order {
				var applied Money
				switch c {
				case principalComponent:
					applied = inst.PayPrincipalComponent(date, left)
					p.principal = applied
				case interestComponent:
					applied = inst.PayInterestComponent(date, left)
					p.interest = applied
				case feeComponent:
					applied = inst.PayFeeChargesComponent(date, left)
					p.fee = applied
				case penaltyComponent:
					applied = inst.PayPenaltyChargesComponent(date, left)
					p.penalty = applied
				}
				left = left.Minus(applied)
			}
		}
		return p
	}
}

func (h strategyHooks) pick(inst *Installment, date time.Time, isFirst bool) allocationHook {
	switch {
	case inst.IsLate(date):
		return h.late
	case inst.IsAdvance(date, isFirst):
		return h.advance
	default:
		return h.onTime
	}
}

// Allocate consumes the transaction's amount across installments in due-date
// order and returns the unallocated remainder. Installments, charges and the
// transaction's portions are updated in place.
func (s AllocationStrategy) Allocate(tx *Transaction, installments []*Installment, charges []*Charge) (remainder Money, err error) {
	defer recoverMismatch(&err)

	hooks, ok := strategyRegistry[s]
	if !ok {
		return Money{}, fmt.Errorf("%w: unknown allocation strategy %q", ErrValidation, s)
	}
	for _, inst := range installments {
		if inst.Currency() != tx.Amount.Currency() {
			return Money{}, fmt.Errorf("%w: transaction in %s, schedule in %s", ErrCurrencyMismatch, tx.Amount.Currency(), inst.Currency())
		}
	}
	ordered := orderedByDueDate(installments)

	if tx.Kind.IsUnwind() {
		tx.ResetDerivedComponents()
		return unwind(tx, ordered, charges)
	}

	ac := &allocationContext{tx: tx, charges: charges, date: tx.Date}
	if tx.Kind == TransactionKindWaiveCharges {
		ac.feeWaiverLeft, ac.penaltyWaiverLeft = tx.Fee.OrZero(), tx.Penalty.OrZero()
	}
	if tx.Kind == TransactionKindChargePayment {
		for _, c := range charges {
			if c.IsPenalty {
				ac.chargeIsPenalty = true
			}
		}
	}
	tx.ResetDerivedComponents()

	remaining := tx.Amount
	for idx, inst := range ordered {
		if !ac.hasCapacity(remaining) {
			break
		}
		isFirst := idx == 0
		applied := hooks.pick(inst, tx.Date, isFirst)(ac, inst, remaining)
		if err := inst.Validate(); err != nil {
			return Money{}, err
		}
		if !applied.total().IsPositive() {
			continue
		}
		tx.updateComponents(applied.principal, applied.interest, applied.fee, applied.penalty)
		tx.Mappings = append(tx.Mappings, InstallmentMapping{
			InstallmentNumber: inst.Number,
			Principal:         applied.principal,
			Interest:          applied.interest,
			Fee:               applied.fee,
			Penalty:           applied.penalty,
		})
		ac.settleCharges(inst, isFirst, applied)
		remaining = remaining.MinusOrZero(applied.total())
	}

	switch tx.Kind {
	case TransactionKindRepayment:
		tx.Overpayment = remaining
	case TransactionKindWriteOff:
		// a write-off is worth whatever it took off the books
		tx.Amount = tx.PortionsTotal()
		return tx.Amount.Zero(), nil
	}
	return remaining, nil
}

func (ac *allocationContext) hasCapacity(remaining Money) bool {
	switch ac.tx.Kind {
	case TransactionKindWaiveCharges:
		return ac.feeWaiverLeft.IsPositive() || ac.penaltyWaiverLeft.IsPositive()
	case TransactionKindWriteOff:
		return true
	default:
		return remaining.IsPositive()
	}
}

// targetOutstanding is what the charge payment's charges still owe on inst.
func (ac *allocationContext) targetOutstanding(inst *Installment) Money {
	total := inst.Fee.Due.Zero()
	for _, c := range ac.charges {
		if c.Active && c.IsPenalty == ac.chargeIsPenalty {
			total = total.Plus(c.OutstandingInInstallment(inst.Number))
		}
	}
	return total
}

// settleCharges pushes the fee and penalty deltas of one installment down to the
// charges collected in it, earliest due first, and records charge-paid-by links.
func (ac *allocationContext) settleCharges(inst *Installment, isFirst bool, p portions) {
	ac.settleChargeBucket(inst, isFirst, p.fee, false)
	ac.settleChargeBucket(inst, isFirst, p.penalty, true)
}

func (ac *allocationContext) settleChargeBucket(inst *Installment, isFirst bool, amount Money, penalty bool) {
	if !amount.IsPositive() {
		return
	}
	candidates := chargesDueIn(ac.charges, inst, isFirst, penalty)
	if ac.tx.Kind == TransactionKindChargePayment {
		// the caller already resolved the installment for the targeted charge
		candidates = candidates[:0]
		for _, c := range ac.charges {
			if c.Active && c.IsPenalty == penalty {
				candidates = append(candidates, c)
			}
		}
	}
	for _, c := range candidates {
		if !amount.IsPositive() {
			return
		}
		number := inst.Number
		want := MinMoney(amount, c.OutstandingInInstallment(number))
		var applied Money
		switch ac.tx.Kind {
		case TransactionKindWaiveCharges:
			applied = c.Waive(want, number)
		case TransactionKindWriteOff:
			applied = c.WriteOff(want, number)
		default:
			applied = c.Pay(want, number)
		}
		if applied.IsPositive() {
			ac.tx.ChargesPaid = append(ac.tx.ChargesPaid, ChargePaidBy{ChargeID: c.ID, Amount: applied, InstallmentNumber: number})
			amount = amount.Minus(applied)
		}
	}
}

// unwind moves a refund back out of previously paid amounts, latest installment
// first, in fee, penalty, principal, interest order.
func unwind(tx *Transaction, ordered []*Installment, charges []*Charge) (Money, error) {
	remaining := tx.Amount
	for i := len(ordered) - 1; i >= 0 && remaining.IsPositive(); i-- {
		inst := ordered[i]
		p := zeroPortions(remaining.Currency())
		p.fee = inst.UnpayFeeChargesComponent(remaining)
		remaining = remaining.Minus(p.fee)
		p.penalty = inst.UnpayPenaltyChargesComponent(remaining)
		remaining = remaining.Minus(p.penalty)
		p.principal = inst.UnpayPrincipalComponent(remaining)
		remaining = remaining.Minus(p.principal)
		p.interest = inst.UnpayInterestComponent(remaining)
		remaining = remaining.Minus(p.interest)

		if err := inst.Validate(); err != nil {
			return Money{}, err
		}
		if !p.total().IsPositive() {
			continue
		}
		tx.updateComponents(p.principal, p.interest, p.fee, p.penalty)
		tx.Mappings = append(tx.Mappings, InstallmentMapping{
			InstallmentNumber: inst.Number,
			Principal:         p.principal,
			Interest:          p.interest,
			Fee:               p.fee,
			Penalty:           p.penalty,
		})
		isFirst := i == 0
		unpayCharges(tx, charges, inst, isFirst, p.fee, false)
		unpayCharges(tx, charges, inst, isFirst, p.penalty, true)
	}
	return remaining, nil
}

func unpayCharges(tx *Transaction, charges []*Charge, inst *Installment, isFirst bool, amount Money, penalty bool) {
	due := chargesDueIn(charges, inst, isFirst, penalty)
	for i := len(due) - 1; i >= 0 && amount.IsPositive(); i-- {
		reversed := due[i].Unpay(amount, inst.Number)
		if reversed.IsPositive() {
			tx.ChargesPaid = append(tx.ChargesPaid, ChargePaidBy{ChargeID: due[i].ID, Amount: reversed, InstallmentNumber: inst.Number})
			amount = amount.Minus(reversed)
		}
	}
}

func chargesDueIn(charges []*Charge, inst *Installment, isFirst bool, penalty bool) []*Charge {
	var due []*Charge
	for _, c := range charges {
		if c.IsPenalty == penalty && c.IsDueInInstallment(inst, isFirst) {
			due = append(due, c)
		}
	}
	sort.SliceStable(due, func(a, b int) bool {
		da, db := due[a].DueDate, due[b].DueDate
		switch {
		case da == nil:
			return false
		case db == nil:
			return true
		default:
			return da.Before(*db)
		}
	})
	return due
}

func orderedByDueDate(installments []*Installment) []*Installment {
	ordered := make([]*Installment, len(installments))
	copy(ordered, installments)
	sort.SliceStable(ordered, func(a, b int) bool {
		if !ordered[a].DueDate.Equal(ordered[b].DueDate) {
			return ordered[a].DueDate.Before(ordered[b].DueDate)
		}
		return ordered[a].Number < ordered[b].Number
	})
	return ordered
}

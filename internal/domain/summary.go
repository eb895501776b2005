package domain

import "time"

// LoanSummary is the account-level projection of the installment and charge sets.
// It has no identity of its own and is always rebuilt wholesale by UpdateSummary.
type LoanSummary struct {
	Currency string

	TotalPrincipal                   Money
	TotalCapitalizedIncome           Money
	TotalCapitalizedIncomeAdjustment Money
	TotalPrincipalRepaid             Money
	TotalPrincipalWrittenOff         Money
	TotalPrincipalOutstanding        Money

	TotalInterestCharged     Money
	TotalInterestRepaid      Money
	TotalInterestWaived      Money
	TotalInterestWrittenOff  Money
	TotalInterestOutstanding Money

	TotalFeeChargesCharged              Money
	TotalFeeChargesDueAtDisbursement    Money
	TotalFeeChargesRepaidAtDisbursement Money
	TotalFeeChargesRepaid               Money
	TotalFeeChargesWaived               Money
	TotalFeeChargesWrittenOff           Money
	TotalFeeChargesOutstanding          Money

	TotalPenaltyChargesCharged     Money
	TotalPenaltyChargesRepaid      Money
	TotalPenaltyChargesWaived      Money
	TotalPenaltyChargesWrittenOff  Money
	TotalPenaltyChargesOutstanding Money

	TotalExpectedRepayment   Money
	TotalRepayment           Money
	TotalExpectedCostOfLoan  Money
	TotalCostOfLoan          Money
	TotalWaived              Money
	TotalWrittenOff          Money
	TotalOutstanding         Money
	TotalOverdue             Money
	TotalInstallmentsPending int
}

// NewLoanSummary returns a zeroed summary. feeChargesDueAtDisbursement is taken
// from the disbursement charges configured when the loan is created.
func NewLoanSummary(currency string, feeChargesDueAtDisbursement Money) *LoanSummary {
	s := &LoanSummary{Currency: currency, TotalFeeChargesDueAtDisbursement: ZeroMoney(currency)}
	s.ZeroFields()
	if feeChargesDueAtDisbursement.Currency() == currency {
		s.TotalFeeChargesDueAtDisbursement = feeChargesDueAtDisbursement
	}
	return s
}

// ZeroFields resets every derived total except TotalFeeChargesDueAtDisbursement,
// which is configuration and not a function of schedule state.
func (s *LoanSummary) ZeroFields() {
	z := ZeroMoney(s.Currency)
	keep := s.TotalFeeChargesDueAtDisbursement
	*s = LoanSummary{
		Currency:                            s.Currency,
		TotalPrincipal:                      z,
		TotalCapitalizedIncome:              z,
		TotalCapitalizedIncomeAdjustment:    z,
		TotalPrincipalRepaid:                z,
		TotalPrincipalWrittenOff:            z,
		TotalPrincipalOutstanding:           z,
		TotalInterestCharged:                z,
		TotalInterestRepaid:                 z,
		TotalInterestWaived:                 z,
		TotalInterestWrittenOff:             z,
		TotalInterestOutstanding:            z,
		TotalFeeChargesCharged:              z,
		TotalFeeChargesDueAtDisbursement:    keep,
		TotalFeeChargesRepaidAtDisbursement: z,
		TotalFeeChargesRepaid:               z,
		TotalFeeChargesWaived:               z,
		TotalFeeChargesWrittenOff:           z,
		TotalFeeChargesOutstanding:          z,
		TotalPenaltyChargesCharged:          z,
		TotalPenaltyChargesRepaid:           z,
		TotalPenaltyChargesWaived:           z,
		TotalPenaltyChargesWrittenOff:       z,
		TotalPenaltyChargesOutstanding:      z,
		TotalExpectedRepayment:              z,
		TotalRepayment:                      z,
		TotalExpectedCostOfLoan:             z,
		TotalCostOfLoan:                     z,
		TotalWaived:                         z,
		TotalWrittenOff:                     z,
		TotalOutstanding:                    z,
		TotalOverdue:                        z,
	}
	if s.TotalFeeChargesDueAtDisbursement.Currency() != s.Currency {
		s.TotalFeeChargesDueAtDisbursement = z
	}
}

// UpdateSummary recomputes every total from scratch. The aggregates at the end are
// sums of the component totals computed in the same call, so TotalOutstanding is
// the sum of the four component outstandings by construction.
func (s *LoanSummary) UpdateSummary(currency string, principal Money, installments []*Installment, charges []*Charge, capitalizedIncome, capitalizedIncomeAdjustment Money) (err error) {
	defer recoverMismatch(&err)

	s.Currency = currency
	s.ZeroFields()

	s.TotalPrincipal = principal
	s.TotalCapitalizedIncome = capitalizedIncome
	s.TotalCapitalizedIncomeAdjustment = capitalizedIncomeAdjustment

	feeDue := ZeroMoney(currency)
	for _, inst := range installments {
		s.TotalPrincipalRepaid = s.TotalPrincipalRepaid.Plus(inst.Principal.Paid)
		s.TotalPrincipalWrittenOff = s.TotalPrincipalWrittenOff.Plus(inst.Principal.WrittenOff)

		s.TotalInterestCharged = s.TotalInterestCharged.Plus(inst.Interest.Due)
		s.TotalInterestRepaid = s.TotalInterestRepaid.Plus(inst.Interest.Paid)
		s.TotalInterestWaived = s.TotalInterestWaived.Plus(inst.Interest.Waived)
		s.TotalInterestWrittenOff = s.TotalInterestWrittenOff.Plus(inst.Interest.WrittenOff)

		feeDue = feeDue.Plus(inst.Fee.Due)
		s.TotalFeeChargesRepaid = s.TotalFeeChargesRepaid.Plus(inst.Fee.Paid)
		s.TotalFeeChargesWaived = s.TotalFeeChargesWaived.Plus(inst.Fee.Waived)
		s.TotalFeeChargesWrittenOff = s.TotalFeeChargesWrittenOff.Plus(inst.Fee.WrittenOff)

		s.TotalPenaltyChargesCharged = s.TotalPenaltyChargesCharged.Plus(inst.Penalty.Due)
		s.TotalPenaltyChargesRepaid = s.TotalPenaltyChargesRepaid.Plus(inst.Penalty.Paid)
		s.TotalPenaltyChargesWaived = s.TotalPenaltyChargesWaived.Plus(inst.Penalty.Waived)
		s.TotalPenaltyChargesWrittenOff = s.TotalPenaltyChargesWrittenOff.Plus(inst.Penalty.WrittenOff)

		if inst.TotalOutstanding().IsPositive() {
			s.TotalInstallmentsPending++
		}
	}

	// disbursement-time charge payments are not installment components
	for _, c := range charges {
		if c.Active && c.IsDisbursementCharge() && !c.IsPenalty {
			s.TotalFeeChargesRepaidAtDisbursement = s.TotalFeeChargesRepaidAtDisbursement.Plus(c.AmountPaid)
		}
	}

	principalTotal := principal.Plus(capitalizedIncome).Minus(capitalizedIncomeAdjustment)
	s.TotalPrincipalOutstanding = principalTotal.
		Minus(s.TotalPrincipalRepaid).
		Minus(s.TotalPrincipalWrittenOff)

	s.TotalInterestOutstanding = s.TotalInterestCharged.
		Minus(s.TotalInterestRepaid).
		Minus(s.TotalInterestWaived).
		Minus(s.TotalInterestWrittenOff)

	s.TotalFeeChargesCharged = feeDue.Plus(s.TotalFeeChargesDueAtDisbursement)
	s.TotalFeeChargesRepaid = s.TotalFeeChargesRepaid.Plus(s.TotalFeeChargesRepaidAtDisbursement)
	s.TotalFeeChargesOutstanding = s.TotalFeeChargesCharged.
		Minus(s.TotalFeeChargesRepaid).
		Minus(s.TotalFeeChargesWaived).
		Minus(s.TotalFeeChargesWrittenOff)

	s.TotalPenaltyChargesOutstanding = s.TotalPenaltyChargesCharged.
		Minus(s.TotalPenaltyChargesRepaid).
		Minus(s.TotalPenaltyChargesWaived).
		Minus(s.TotalPenaltyChargesWrittenOff)

	s.TotalExpectedCostOfLoan = s.TotalInterestCharged.
		Plus(s.TotalFeeChargesCharged).
		Plus(s.TotalPenaltyChargesCharged)
	s.TotalExpectedRepayment = principalTotal.Plus(s.TotalExpectedCostOfLoan)
	s.TotalCostOfLoan = s.TotalInterestRepaid.
		Plus(s.TotalFeeChargesRepaid).
		Plus(s.TotalPenaltyChargesRepaid)
	s.TotalRepayment = s.TotalPrincipalRepaid.Plus(s.TotalCostOfLoan)
	s.TotalWaived = s.TotalInterestWaived.
		Plus(s.TotalFeeChargesWaived).
		Plus(s.TotalPenaltyChargesWaived)
	s.TotalWrittenOff = s.TotalPrincipalWrittenOff.
		Plus(s.TotalInterestWrittenOff).
		Plus(s.TotalFeeChargesWrittenOff).
		Plus(s.TotalPenaltyChargesWrittenOff)
	s.TotalOutstanding = s.TotalPrincipalOutstanding.
		Plus(s.TotalInterestOutstanding).
		Plus(s.TotalFeeChargesOutstanding).
		Plus(s.TotalPenaltyChargesOutstanding)
	return nil
}

// UpdateOverdue recomputes the overdue total as of businessDate.
func (s *LoanSummary) UpdateOverdue(installments []*Installment, businessDate time.Time) {
	total := ZeroMoney(s.Currency)
	for _, inst := range installments {
		if inst.IsLate(businessDate) {
			total = total.Plus(inst.TotalOutstanding())
		}
	}
	s.TotalOverdue = total
}

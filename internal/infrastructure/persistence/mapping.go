package persistence

import (
	"sort"

	"github.com/gigmile/loan-engine/internal/domain"
	"github.com/shopspring/decimal"
)

// ToDomain converts the loan model and its preloaded children to the aggregate.
// The summary is rebuilt from the installments and charges, never read back.
func (m *LoanModel) ToDomain() (*domain.Loan, error) {
	cur := m.Currency
	money := func(d decimal.Decimal) domain.Money { return domain.NewMoney(d, cur) }

	loan := &domain.Loan{
		ID:                          m.ID,
		ExternalID:                  m.ExternalID,
		Currency:                    cur,
		Status:                      domain.LoanStatus(m.Status),
		Strategy:                    domain.AllocationStrategy(m.Strategy),
		ApprovedPrincipal:           money(m.ApprovedPrincipal),
		Principal:                   money(m.Principal),
		AnnualInterestRate:          m.AnnualInterestRate,
		NumberOfRepayments:          m.NumberOfRepayments,
		RepaymentEvery:              m.RepaymentEvery,
		RepaymentFrequency:          domain.RepaymentFrequency(m.RepaymentFrequency),
		SubmittedOn:                 m.SubmittedOn,
		ApprovedOn:                  m.ApprovedOn,
		DisbursedOn:                 m.DisbursedOn,
		CapitalizedIncome:           money(m.CapitalizedIncome),
		CapitalizedIncomeAdjustment: money(m.CapitalizedIncomeAdjustment),
		TotalOverpaid:               money(m.TotalOverpaid),
		Summary:                     domain.NewLoanSummary(cur, money(m.Summary.FeeChargesDueAtDisbursement)),
		Version:                     m.Version,
	}

	for _, d := range m.Disbursements {
		loan.Disbursements = append(loan.Disbursements, &domain.Disbursement{
			ID:           d.ID,
			ExpectedDate: d.ExpectedDate,
			ActualDate:   d.ActualDate,
			Principal:    money(d.Principal),
		})
	}
	sort.SliceStable(loan.Disbursements, func(a, b int) bool {
		return loan.Disbursements[a].ExpectedDate.Before(loan.Disbursements[b].ExpectedDate)
	})

	for _, i := range m.Installments {
		loan.Installments = append(loan.Installments, &domain.Installment{
			Number:                        i.Number,
			FromDate:                      i.FromDate,
			DueDate:                       i.DueDate,
			Principal:                     i.Principal.toDomain(cur),
			Interest:                      i.Interest.toDomain(cur),
			Fee:                           i.Fee.toDomain(cur),
			Penalty:                       i.Penalty.toDomain(cur),
			ObligationsMetOn:              i.ObligationsMetOn,
			RecalculatedInterestComponent: i.RecalculatedInterestComponent,
		})
	}
	sort.SliceStable(loan.Installments, func(a, b int) bool {
		return loan.Installments[a].Number < loan.Installments[b].Number
	})

	for _, c := range m.Charges {
		loan.Charges = append(loan.Charges, c.toDomain(cur))
	}

	for _, t := range m.Transactions {
		loan.Transactions = append(loan.Transactions, t.ToDomain(cur))
	}
	domain.SortChronologically(loan.Transactions)

	if err := loan.UpdateSummary(); err != nil {
		return nil, err
	}
	return loan, nil
}

// LoanModelFromDomain converts the aggregate to its models.
func LoanModelFromDomain(loan *domain.Loan) *LoanModel {
	m := &LoanModel{
		ID:                          loan.ID,
		ExternalID:                  loan.ExternalID,
		Currency:                    loan.Currency,
		Status:                      string(loan.Status),
		Strategy:                    string(loan.Strategy),
		ApprovedPrincipal:           loan.ApprovedPrincipal.Amount(),
		Principal:                   loan.Principal.Amount(),
		AnnualInterestRate:          loan.AnnualInterestRate,
		NumberOfRepayments:          loan.NumberOfRepayments,
		RepaymentEvery:              loan.RepaymentEvery,
		RepaymentFrequency:          string(loan.RepaymentFrequency),
		SubmittedOn:                 loan.SubmittedOn,
		ApprovedOn:                  loan.ApprovedOn,
		DisbursedOn:                 loan.DisbursedOn,
		CapitalizedIncome:           loan.CapitalizedIncome.Amount(),
		CapitalizedIncomeAdjustment: loan.CapitalizedIncomeAdjustment.Amount(),
		TotalOverpaid:               loan.TotalOverpaid.Amount(),
		Version:                     loan.Version,
	}
	if s := loan.Summary; s != nil {
		m.Summary = SummaryColumns{
			FeeChargesDueAtDisbursement: s.TotalFeeChargesDueAtDisbursement.Amount(),
			PrincipalOutstanding:        s.TotalPrincipalOutstanding.Amount(),
			InterestOutstanding:         s.TotalInterestOutstanding.Amount(),
			FeeChargesOutstanding:       s.TotalFeeChargesOutstanding.Amount(),
			PenaltyChargesOutstanding:   s.TotalPenaltyChargesOutstanding.Amount(),
			TotalExpectedRepayment:      s.TotalExpectedRepayment.Amount(),
			TotalRepayment:              s.TotalRepayment.Amount(),
			TotalWaived:                 s.TotalWaived.Amount(),
			TotalWrittenOff:             s.TotalWrittenOff.Amount(),
			TotalOutstanding:            s.TotalOutstanding.Amount(),
		}
	}

	for _, d := range loan.Disbursements {
		m.Disbursements = append(m.Disbursements, DisbursementModel{
			ID:           d.ID,
			LoanID:       loan.ID,
			ExpectedDate: d.ExpectedDate,
			ActualDate:   d.ActualDate,
			Principal:    d.Principal.Amount(),
		})
	}
	for _, i := range loan.Installments {
		m.Installments = append(m.Installments, InstallmentModel{
			LoanID:                        loan.ID,
			Number:                        i.Number,
			FromDate:                      i.FromDate,
			DueDate:                       i.DueDate,
			Principal:                     componentFromDomain(i.Principal),
			Interest:                      componentFromDomain(i.Interest),
			Fee:                           componentFromDomain(i.Fee),
			Penalty:                       componentFromDomain(i.Penalty),
			ObligationsMetOn:              i.ObligationsMetOn,
			RecalculatedInterestComponent: i.RecalculatedInterestComponent,
		})
	}
	for _, c := range loan.Charges {
		m.Charges = append(m.Charges, chargeFromDomain(loan.ID, c))
	}
	for _, t := range loan.Transactions {
		m.Transactions = append(m.Transactions, TransactionModelFromDomain(t))
	}
	return m
}

// ToDomain converts a transaction row and its links.
func (m *TransactionModel) ToDomain(currency string) *domain.Transaction {
	money := func(d decimal.Decimal) domain.Money { return domain.NewMoney(d, currency) }
	tx := &domain.Transaction{
		ID:                      m.ID,
		LoanID:                  m.LoanID,
		ExternalID:              m.ExternalID,
		Kind:                    domain.TransactionKind(m.Kind),
		Date:                    m.Date,
		Amount:                  money(m.Amount),
		Principal:               money(m.Principal),
		Interest:                money(m.Interest),
		Fee:                     money(m.Fee),
		Penalty:                 money(m.Penalty),
		Overpayment:             money(m.Overpayment),
		Reversed:                m.Reversed,
		ReversedOn:              m.ReversedOn,
		ReplacedByID:            m.ReplacedByID,
		Sequence:                m.Sequence,
		TargetChargeID:          m.TargetChargeID,
		TargetInstallmentNumber: m.TargetInstallmentNumber,
	}
	for _, cp := range m.ChargesPaid {
		tx.ChargesPaid = append(tx.ChargesPaid, domain.ChargePaidBy{
			ChargeID:          cp.ChargeID,
			Amount:            money(cp.Amount),
			InstallmentNumber: cp.InstallmentNumber,
		})
	}
	for _, mp := range m.Mappings {
		tx.Mappings = append(tx.Mappings, domain.InstallmentMapping{
			InstallmentNumber: mp.InstallmentNumber,
			Principal:         money(mp.Principal),
			Interest:          money(mp.Interest),
			Fee:               money(mp.Fee),
			Penalty:           money(mp.Penalty),
		})
	}
	return tx
}

func TransactionModelFromDomain(t *domain.Transaction) TransactionModel {
	m := TransactionModel{
		ID:                      t.ID,
		LoanID:                  t.LoanID,
		ExternalID:              t.ExternalID,
		Kind:                    string(t.Kind),
		Date:                    t.Date,
		Sequence:                t.Sequence,
		Amount:                  t.Amount.Amount(),
		Principal:               t.Principal.Amount(),
		Interest:                t.Interest.Amount(),
		Fee:                     t.Fee.Amount(),
		Penalty:                 t.Penalty.Amount(),
		Overpayment:             t.Overpayment.Amount(),
		Reversed:                t.Reversed,
		ReversedOn:              t.ReversedOn,
		ReplacedByID:            t.ReplacedByID,
		TargetChargeID:          t.TargetChargeID,
		TargetInstallmentNumber: t.TargetInstallmentNumber,
	}
	for _, cp := range t.ChargesPaid {
		m.ChargesPaid = append(m.ChargesPaid, ChargePaidByModel{
			TransactionID:     t.ID,
			ChargeID:          cp.ChargeID,
			Amount:            cp.Amount.Amount(),
			InstallmentNumber: cp.InstallmentNumber,
		})
	}
	for _, mp := range t.Mappings {
		m.Mappings = append(m.Mappings, TransactionMappingModel{
			TransactionID:     t.ID,
			InstallmentNumber: mp.InstallmentNumber,
			Principal:         mp.Principal.Amount(),
			Interest:          mp.Interest.Amount(),
			Fee:               mp.Fee.Amount(),
			Penalty:           mp.Penalty.Amount(),
		})
	}
	return m
}

func (c ComponentColumns) toDomain(currency string) domain.Component {
	return domain.Component{
		Due:        domain.NewMoney(c.Due, currency),
		Paid:       domain.NewMoney(c.Paid, currency),
		Waived:     domain.NewMoney(c.Waived, currency),
		WrittenOff: domain.NewMoney(c.WrittenOff, currency),
	}
}

func componentFromDomain(c domain.Component) ComponentColumns {
	return ComponentColumns{
		Due:        c.Due.Amount(),
		Paid:       c.Paid.Amount(),
		Waived:     c.Waived.Amount(),
		WrittenOff: c.WrittenOff.Amount(),
	}
}

func (m *ChargeModel) toDomain(currency string) *domain.Charge {
	money := func(d decimal.Decimal) domain.Money { return domain.NewMoney(d, currency) }
	capOf := func(d *decimal.Decimal) *domain.Money {
		if d == nil {
			return nil
		}
		v := money(*d)
		return &v
	}
	c := &domain.Charge{
		ID:                       m.ID,
		DefinitionID:             m.DefinitionID,
		Name:                     m.Name,
		CalculationType:          domain.ChargeCalculationType(m.CalculationType),
		TimeType:                 domain.ChargeTimeType(m.TimeType),
		Percentage:               m.Percentage,
		ConfiguredAmount:         money(m.ConfiguredAmount),
		MinCap:                   capOf(m.MinCap),
		MaxCap:                   capOf(m.MaxCap),
		Amount:                   money(m.Amount),
		AmountPaid:               money(m.AmountPaid),
		AmountWaived:             money(m.AmountWaived),
		AmountWrittenOff:         money(m.AmountWrittenOff),
		AmountOutstanding:        money(m.AmountOutstanding),
		DueDate:                  m.DueDate,
		TrancheDisbursementID:    m.TrancheDisbursementID,
		OverdueInstallmentNumber: m.OverdueInstallmentNumber,
		IsPenalty:                m.IsPenalty,
		Active:                   m.Active,
	}
	for _, ic := range m.InstallmentCharges {
		c.InstallmentCharges = append(c.InstallmentCharges, &domain.InstallmentCharge{
			InstallmentNumber: ic.InstallmentNumber,
			Amount:            money(ic.Amount),
			Paid:              money(ic.Paid),
			Waived:            money(ic.Waived),
			WrittenOff:        money(ic.WrittenOff),
		})
	}
	sort.SliceStable(c.InstallmentCharges, func(a, b int) bool {
		return c.InstallmentCharges[a].InstallmentNumber < c.InstallmentCharges[b].InstallmentNumber
	})
	return c
}

func chargeFromDomain(loanID string, c *domain.Charge) ChargeModel {
	capOf := func(m *domain.Money) *decimal.Decimal {
		if m == nil {
			return nil
		}
		d := m.Amount()
		return &d
	}
	m := ChargeModel{
		ID:                       c.ID,
		LoanID:                   loanID,
		DefinitionID:             c.DefinitionID,
		Name:                     c.Name,
		CalculationType:          string(c.CalculationType),
		TimeType:                 string(c.TimeType),
		Percentage:               c.Percentage,
		ConfiguredAmount:         c.ConfiguredAmount.Amount(),
		MinCap:                   capOf(c.MinCap),
		MaxCap:                   capOf(c.MaxCap),
		Amount:                   c.Amount.Amount(),
		AmountPaid:               c.AmountPaid.Amount(),
		AmountWaived:             c.AmountWaived.Amount(),
		AmountWrittenOff:         c.AmountWrittenOff.Amount(),
		AmountOutstanding:        c.AmountOutstanding.Amount(),
		DueDate:                  c.DueDate,
		TrancheDisbursementID:    c.TrancheDisbursementID,
		OverdueInstallmentNumber: c.OverdueInstallmentNumber,
		IsPenalty:                c.IsPenalty,
		Active:                   c.Active,
	}
	for _, ic := range c.InstallmentCharges {
		m.InstallmentCharges = append(m.InstallmentCharges, InstallmentChargeModel{
			ChargeID:          c.ID,
			InstallmentNumber: ic.InstallmentNumber,
			Amount:            ic.Amount.Amount(),
			Paid:              ic.Paid.Amount(),
			Waived:            ic.Waived.Amount(),
			WrittenOff:        ic.WrittenOff.Amount(),
		})
	}
	return m
}

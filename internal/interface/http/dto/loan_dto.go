package dto

import (
	"errors"
	"time"

	"github.com/gigmile/loan-engine/internal/domain"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

type CreateLoanRequest struct {
	ExternalID               string `json:"external_id"`
	Currency                 string `json:"currency"`
	Principal                string `json:"principal"`
	AnnualInterestRate       string `json:"annual_interest_rate"`
	NumberOfRepayments       int    `json:"number_of_repayments"`
	RepaymentEvery           int    `json:"repayment_every"`
	RepaymentFrequency       string `json:"repayment_frequency"`
	ExpectedDisbursementDate string `json:"expected_disbursement_date"`
	Strategy                 string `json:"strategy,omitempty"`
}

func (r *CreateLoanRequest) Validate() error {
	if r.Currency == "" {
		return errors.New("currency is required")
	}
	if _, err := decimal.NewFromString(r.Principal); err != nil {
		return errors.New("principal must be a valid number")
	}
	if _, err := decimal.NewFromString(r.AnnualInterestRate); err != nil {
		return errors.New("annual_interest_rate must be a valid number")
	}
	if r.NumberOfRepayments <= 0 {
		return errors.New("number_of_repayments must be positive")
	}
	switch domain.RepaymentFrequency(r.RepaymentFrequency) {
	case domain.RepaymentFrequencyDays, domain.RepaymentFrequencyWeeks, domain.RepaymentFrequencyMonths:
	default:
		return errors.New("repayment_frequency must be DAYS, WEEKS or MONTHS")
	}
	if _, err := time.Parse(dateLayout, r.ExpectedDisbursementDate); err != nil {
		return errors.New("expected_disbursement_date must be in format 'YYYY-MM-DD'")
	}
	return nil
}

// LifecycleRequest approves or disburses a loan.
type LifecycleRequest struct {
	Date string `json:"date"`
}

func (r *LifecycleRequest) GetDate() (time.Time, error) {
	if r.Date == "" {
		return time.Time{}, errors.New("date is required")
	}
	d, err := time.Parse(dateLayout, r.Date)
	if err != nil {
		return time.Time{}, errors.New("date must be in format 'YYYY-MM-DD'")
	}
	return d, nil
}

type TransactionRequest struct {
	Amount          string `json:"amount"`
	TransactionDate string `json:"transaction_date"`
	ExternalID      string `json:"external_id"`
}

func (r *TransactionRequest) Validate() error {
	if r.Amount == "" {
		return errors.New("amount is required")
	}
	if r.TransactionDate == "" {
		return errors.New("transaction_date is required")
	}
	if _, err := decimal.NewFromString(r.Amount); err != nil {
		return errors.New("amount must be a valid number")
	}
	if _, err := time.Parse(dateLayout, r.TransactionDate); err != nil {
		return errors.New("transaction_date must be in format 'YYYY-MM-DD'")
	}
	return nil
}

func (r *TransactionRequest) GetAmount() (decimal.Decimal, error) {
	return decimal.NewFromString(r.Amount)
}

func (r *TransactionRequest) GetTransactionDate() (time.Time, error) {
	return time.Parse(dateLayout, r.TransactionDate)
}

type WaiveChargesRequest struct {
	FeeAmount       string `json:"fee_amount"`
	PenaltyAmount   string `json:"penalty_amount"`
	TransactionDate string `json:"transaction_date"`
	ExternalID      string `json:"external_id"`
}

func (r *WaiveChargesRequest) Validate() error {
	if r.FeeAmount == "" && r.PenaltyAmount == "" {
		return errors.New("fee_amount or penalty_amount is required")
	}
	if _, err := optionalDecimal(r.FeeAmount); err != nil {
		return errors.New("fee_amount must be a valid number")
	}
	if _, err := optionalDecimal(r.PenaltyAmount); err != nil {
		return errors.New("penalty_amount must be a valid number")
	}
	if _, err := time.Parse(dateLayout, r.TransactionDate); err != nil {
		return errors.New("transaction_date must be in format 'YYYY-MM-DD'")
	}
	return nil
}

func (r *WaiveChargesRequest) GetAmounts() (fee, penalty decimal.Decimal, err error) {
	if fee, err = optionalDecimal(r.FeeAmount); err != nil {
		return
	}
	penalty, err = optionalDecimal(r.PenaltyAmount)
	return
}

type WriteOffRequest struct {
	TransactionDate string `json:"transaction_date"`
	ExternalID      string `json:"external_id"`
}

type RefundRequest struct {
	TransactionRequest
	Chargeback bool `json:"chargeback"`
}

type ChargePaymentRequest struct {
	TransactionRequest
	InstallmentNumber int `json:"installment_number,omitempty"`
}

type AddChargeRequest struct {
	DefinitionID             string  `json:"definition_id"`
	Name                     string  `json:"name"`
	CalculationType          string  `json:"calculation_type"`
	TimeType                 string  `json:"time_type"`
	Amount                   string  `json:"amount"`
	Percentage               string  `json:"percentage,omitempty"`
	MinCap                   *string `json:"min_cap,omitempty"`
	MaxCap                   *string `json:"max_cap,omitempty"`
	IsPenalty                bool    `json:"is_penalty"`
	DueDate                  string  `json:"due_date,omitempty"`
	OverdueInstallmentNumber int     `json:"overdue_installment_number,omitempty"`
	TrancheDisbursementID    string  `json:"tranche_disbursement_id,omitempty"`
}

func (r *AddChargeRequest) Validate() error {
	if r.Name == "" {
		return errors.New("name is required")
	}
	switch domain.ChargeCalculationType(r.CalculationType) {
	case domain.ChargeCalculationFlat, domain.ChargeCalculationPercentOfPrincipal,
		domain.ChargeCalculationPercentOfPrincipalAndInterest, domain.ChargeCalculationPercentOfInterest,
		domain.ChargeCalculationPercentOfDisbursement:
	default:
		return errors.New("calculation_type is not supported")
	}
	switch domain.ChargeTimeType(r.TimeType) {
	case domain.ChargeTimeDisbursement, domain.ChargeTimeSpecifiedDueDate, domain.ChargeTimeInstallmentFee,
		domain.ChargeTimeOverdueInstallment, domain.ChargeTimeTrancheDisbursement:
	default:
		return errors.New("time_type is not supported")
	}
	if _, err := optionalDecimal(r.Amount); err != nil {
		return errors.New("amount must be a valid number")
	}
	if _, err := optionalDecimal(r.Percentage); err != nil {
		return errors.New("percentage must be a valid number")
	}
	if r.DueDate != "" {
		if _, err := time.Parse(dateLayout, r.DueDate); err != nil {
			return errors.New("due_date must be in format 'YYYY-MM-DD'")
		}
	}
	if domain.ChargeTimeType(r.TimeType) == domain.ChargeTimeSpecifiedDueDate && r.DueDate == "" {
		return errors.New("due_date is required for SPECIFIED_DUE_DATE charges")
	}
	return nil
}

func (r *AddChargeRequest) GetDueDate() (*time.Time, error) {
	if r.DueDate == "" {
		return nil, nil
	}
	d, err := time.Parse(dateLayout, r.DueDate)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

type ReprocessRequest struct {
	FromDate string `json:"from_date"`
}

func ParseDate(value string) (time.Time, error) {
	return time.Parse(dateLayout, value)
}

// OptionalDecimal parses an optional cap; nil stays nil.
func OptionalDecimal(value *string) (*decimal.Decimal, error) {
	if value == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*value)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func optionalDecimal(value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(value)
}

// ParseAmount parses an optional amount; empty means zero.
func ParseAmount(value string) (decimal.Decimal, error) {
	return optionalDecimal(value)
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type TransactionResponse struct {
	ID                string `json:"id"`
	ExternalID        string `json:"external_id,omitempty"`
	Kind              string `json:"kind"`
	TransactionDate   string `json:"transaction_date"`
	Currency          string `json:"currency"`
	Amount            string `json:"amount"`
	PrincipalPortion  string `json:"principal_portion"`
	InterestPortion   string `json:"interest_portion"`
	FeePortion        string `json:"fee_portion"`
	PenaltyPortion    string `json:"penalty_portion"`
	OverpaymentAmount string `json:"overpayment_portion"`
	Reversed          bool   `json:"reversed"`
	ReplacedBy        string `json:"replaced_by,omitempty"`
}

type ReplayResponse struct {
	Changes               int      `json:"changes"`
	NewTransactionIDs     []string `json:"new_transaction_ids"`
	NewlyReversedIDs      []string `json:"newly_reversed_ids"`
	ChangedBeforeFromDate []string `json:"changed_before_from_date,omitempty"`
	FinalState            string   `json:"final_state"`
}

type OperationResponse struct {
	Success     bool                 `json:"success"`
	Message     string               `json:"message"`
	LoanID      string               `json:"loan_id"`
	LoanStatus  string               `json:"loan_status"`
	Transaction *TransactionResponse `json:"transaction,omitempty"`
	ChargeID    string               `json:"charge_id,omitempty"`
	Remainder   string               `json:"remainder,omitempty"`
	Outstanding string               `json:"total_outstanding"`
	Replay      *ReplayResponse      `json:"replay,omitempty"`
}

type InstallmentResponse struct {
	Number             int    `json:"number"`
	FromDate           string `json:"from_date"`
	DueDate            string `json:"due_date"`
	PrincipalDue       string `json:"principal_due"`
	InterestDue        string `json:"interest_due"`
	FeeDue             string `json:"fee_due"`
	PenaltyDue         string `json:"penalty_due"`
	TotalOutstanding   string `json:"total_outstanding"`
	ObligationsMetDate string `json:"obligations_met_on,omitempty"`
}

type ChargeResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	TimeType    string `json:"time_type"`
	IsPenalty   bool   `json:"is_penalty"`
	Active      bool   `json:"active"`
	Amount      string `json:"amount"`
	Paid        string `json:"amount_paid"`
	Waived      string `json:"amount_waived"`
	WrittenOff  string `json:"amount_written_off"`
	Outstanding string `json:"amount_outstanding"`
	DueDate     string `json:"due_date,omitempty"`
}

type SummaryResponse struct {
	Currency                         string `json:"currency"`
	TotalPrincipal                   string `json:"total_principal"`
	TotalPrincipalRepaid             string `json:"total_principal_repaid"`
	TotalPrincipalWrittenOff         string `json:"total_principal_written_off"`
	TotalPrincipalOutstanding        string `json:"total_principal_outstanding"`
	TotalInterestCharged             string `json:"total_interest_charged"`
	TotalInterestRepaid              string `json:"total_interest_repaid"`
	TotalInterestWaived              string `json:"total_interest_waived"`
	TotalInterestWrittenOff          string `json:"total_interest_written_off"`
	TotalInterestOutstanding         string `json:"total_interest_outstanding"`
	TotalFeeChargesCharged           string `json:"total_fee_charges_charged"`
	TotalFeeChargesDueAtDisbursement string `json:"total_fee_charges_due_at_disbursement"`
	TotalFeeChargesRepaid            string `json:"total_fee_charges_repaid"`
	TotalFeeChargesWaived            string `json:"total_fee_charges_waived"`
	TotalFeeChargesWrittenOff        string `json:"total_fee_charges_written_off"`
	TotalFeeChargesOutstanding       string `json:"total_fee_charges_outstanding"`
	TotalPenaltyChargesCharged       string `json:"total_penalty_charges_charged"`
	TotalPenaltyChargesRepaid        string `json:"total_penalty_charges_repaid"`
	TotalPenaltyChargesWaived        string `json:"total_penalty_charges_waived"`
	TotalPenaltyChargesWrittenOff    string `json:"total_penalty_charges_written_off"`
	TotalPenaltyChargesOutstanding   string `json:"total_penalty_charges_outstanding"`
	TotalExpectedRepayment           string `json:"total_expected_repayment"`
	TotalRepayment                   string `json:"total_repayment"`
	TotalExpectedCostOfLoan          string `json:"total_expected_cost_of_loan"`
	TotalCostOfLoan                  string `json:"total_cost_of_loan"`
	TotalWaived                      string `json:"total_waived"`
	TotalWrittenOff                  string `json:"total_written_off"`
	TotalOutstanding                 string `json:"total_outstanding"`
	TotalOverdue                     string `json:"total_overdue"`
	TotalInstallmentsPending         int    `json:"total_installments_pending"`
}

type LoanResponse struct {
	LoanID             string                `json:"loan_id"`
	ExternalID         string                `json:"external_id,omitempty"`
	Status             string                `json:"status"`
	Currency           string                `json:"currency"`
	Principal          string                `json:"principal"`
	AnnualInterestRate string                `json:"annual_interest_rate"`
	Strategy           string                `json:"strategy"`
	DisbursedOn        string                `json:"disbursed_on,omitempty"`
	TotalOverpaid      string                `json:"total_overpaid"`
	Installments       []InstallmentResponse `json:"installments"`
	Charges            []ChargeResponse      `json:"charges"`
	Summary            SummaryResponse       `json:"summary"`
}

type EIRResponse struct {
	LoanID                string `json:"loan_id"`
	EffectiveInterestRate string `json:"effective_interest_rate"`
}

func amount(m domain.Money) string {
	return m.Amount().StringFixed(domain.MoneyScale)
}

func date(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}

func NewTransactionResponse(tx *domain.Transaction) *TransactionResponse {
	if tx == nil {
		return nil
	}
	return &TransactionResponse{
		ID:                tx.ID,
		ExternalID:        tx.ExternalID,
		Kind:              string(tx.Kind),
		TransactionDate:   tx.Date.Format(dateLayout),
		Currency:          tx.Amount.Currency(),
		Amount:            amount(tx.Amount),
		PrincipalPortion:  amount(tx.Principal),
		InterestPortion:   amount(tx.Interest),
		FeePortion:        amount(tx.Fee),
		PenaltyPortion:    amount(tx.Penalty),
		OverpaymentAmount: amount(tx.Overpayment),
		Reversed:          tx.Reversed,
		ReplacedBy:        tx.ReplacedByID,
	}
}

func NewReplayResponse(r *domain.ReplayResult) *ReplayResponse {
	if r == nil {
		return nil
	}
	return &ReplayResponse{
		Changes:               len(r.Changes),
		NewTransactionIDs:     r.NewTransactionIDs,
		NewlyReversedIDs:      r.NewlyReversedIDs,
		ChangedBeforeFromDate: r.ChangedBeforeFromDate,
		FinalState:            string(r.FinalState()),
	}
}

func NewSummaryResponse(s *domain.LoanSummary) SummaryResponse {
	return SummaryResponse{
		Currency:                         s.Currency,
		TotalPrincipal:                   amount(s.TotalPrincipal),
		TotalPrincipalRepaid:             amount(s.TotalPrincipalRepaid),
		TotalPrincipalWrittenOff:         amount(s.TotalPrincipalWrittenOff),
		TotalPrincipalOutstanding:        amount(s.TotalPrincipalOutstanding),
		TotalInterestCharged:             amount(s.TotalInterestCharged),
		TotalInterestRepaid:              amount(s.TotalInterestRepaid),
		TotalInterestWaived:              amount(s.TotalInterestWaived),
		TotalInterestWrittenOff:          amount(s.TotalInterestWrittenOff),
		TotalInterestOutstanding:         amount(s.TotalInterestOutstanding),
		TotalFeeChargesCharged:           amount(s.TotalFeeChargesCharged),
		TotalFeeChargesDueAtDisbursement: amount(s.TotalFeeChargesDueAtDisbursement),
		TotalFeeChargesRepaid:            amount(s.TotalFeeChargesRepaid),
		TotalFeeChargesWaived:            amount(s.TotalFeeChargesWaived),
		TotalFeeChargesWrittenOff:        amount(s.TotalFeeChargesWrittenOff),
		TotalFeeChargesOutstanding:       amount(s.TotalFeeChargesOutstanding),
		TotalPenaltyChargesCharged:       amount(s.TotalPenaltyChargesCharged),
		TotalPenaltyChargesRepaid:        amount(s.TotalPenaltyChargesRepaid),
		TotalPenaltyChargesWaived:        amount(s.TotalPenaltyChargesWaived),
		TotalPenaltyChargesWrittenOff:    amount(s.TotalPenaltyChargesWrittenOff),
		TotalPenaltyChargesOutstanding:   amount(s.TotalPenaltyChargesOutstanding),
		TotalExpectedRepayment:           amount(s.TotalExpectedRepayment),
		TotalRepayment:                   amount(s.TotalRepayment),
		TotalExpectedCostOfLoan:          amount(s.TotalExpectedCostOfLoan),
		TotalCostOfLoan:                  amount(s.TotalCostOfLoan),
		TotalWaived:                      amount(s.TotalWaived),
		TotalWrittenOff:                  amount(s.TotalWrittenOff),
		TotalOutstanding:                 amount(s.TotalOutstanding),
		TotalOverdue:                     amount(s.TotalOverdue),
		TotalInstallmentsPending:         s.TotalInstallmentsPending,
	}
}

func NewLoanResponse(loan *domain.Loan) LoanResponse {
	resp := LoanResponse{
		LoanID:             loan.ID,
		ExternalID:         loan.ExternalID,
		Status:             string(loan.Status),
		Currency:           loan.Currency,
		Principal:          amount(loan.Principal),
		AnnualInterestRate: loan.AnnualInterestRate.String(),
		Strategy:           string(loan.Strategy),
		DisbursedOn:        date(loan.DisbursedOn),
		TotalOverpaid:      amount(loan.TotalOverpaid),
		Installments:       make([]InstallmentResponse, 0, len(loan.Installments)),
		Charges:            make([]ChargeResponse, 0, len(loan.Charges)),
		Summary:            NewSummaryResponse(loan.Summary),
	}
	for _, inst := range loan.Installments {
		resp.Installments = append(resp.Installments, InstallmentResponse{
			Number:             inst.Number,
			FromDate:           inst.FromDate.Format(dateLayout),
			DueDate:            inst.DueDate.Format(dateLayout),
			PrincipalDue:       amount(inst.Principal.Due),
			InterestDue:        amount(inst.Interest.Due),
			FeeDue:             amount(inst.Fee.Due),
			PenaltyDue:         amount(inst.Penalty.Due),
			TotalOutstanding:   amount(inst.TotalOutstanding()),
			ObligationsMetDate: date(inst.ObligationsMetOn),
		})
	}
	for _, c := range loan.Charges {
		resp.Charges = append(resp.Charges, ChargeResponse{
			ID:          c.ID,
			Name:        c.Name,
			TimeType:    string(c.TimeType),
			IsPenalty:   c.IsPenalty,
			Active:      c.Active,
			Amount:      amount(c.Amount),
			Paid:        amount(c.AmountPaid),
			Waived:      amount(c.AmountWaived),
			WrittenOff:  amount(c.AmountWrittenOff),
			Outstanding: amount(c.AmountOutstanding),
			DueDate:     date(c.DueDate),
		})
	}
	return resp
}

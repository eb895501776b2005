package persistence

import (
	"time"

	"github.com/shopspring/decimal"
)

// LoanModel represents the database schema for loans
type LoanModel struct {
	ID                          string          `gorm:"primaryKey;type:varchar(50)"`
	ExternalID                  string          `gorm:"type:varchar(100);index"`
	Currency                    string          `gorm:"type:varchar(3);not null"`
	Status                      string          `gorm:"type:varchar(40);not null;index"`
	Strategy                    string          `gorm:"type:varchar(120);not null"`
	ApprovedPrincipal           decimal.Decimal `gorm:"type:decimal(19,6);not null"`
	Principal                   decimal.Decimal `gorm:"type:decimal(19,6);not null"`
	AnnualInterestRate          decimal.Decimal `gorm:"type:decimal(19,6);not null"`
	NumberOfRepayments          int             `gorm:"not null"`
	RepaymentEvery              int             `gorm:"not null;default:1"`
	RepaymentFrequency          string          `gorm:"type:varchar(10);not null"`
	SubmittedOn                 time.Time       `gorm:"not null"`
	ApprovedOn                  *time.Time
	DisbursedOn                 *time.Time
	CapitalizedIncome           decimal.Decimal `gorm:"type:decimal(19,6);not null;default:0"`
	CapitalizedIncomeAdjustment decimal.Decimal `gorm:"type:decimal(19,6);not null;default:0"`
	TotalOverpaid               decimal.Decimal `gorm:"type:decimal(19,6);not null;default:0"`
	Summary                     SummaryColumns  `gorm:"embedded;embeddedPrefix:summary_"`
	Version                     int64           `gorm:"not null;default:1"`
	CreatedAt                   time.Time       `gorm:"autoCreateTime"`
	UpdatedAt                   time.Time       `gorm:"autoUpdateTime"`

	Disbursements []DisbursementModel `gorm:"foreignKey:LoanID"`
	Installments  []InstallmentModel  `gorm:"foreignKey:LoanID"`
	Charges       []ChargeModel       `gorm:"foreignKey:LoanID"`
	Transactions  []TransactionModel  `gorm:"foreignKey:LoanID"`
}

func (LoanModel) TableName() string {
	return "loans"
}

// SummaryColumns stores the summary totals read by reporting queries. The
// engine rebuilds them on load; only FeeChargesDueAtDisbursement is an input.
type SummaryColumns struct {
	FeeChargesDueAtDisbursement decimal.Decimal `gorm:"type:decimal(19,6);not null;default:0"`
	PrincipalOutstanding        decimal.Decimal `gorm:"type:decimal(19,6);not null;default:0"`
	InterestOutstanding         decimal.Decimal `gorm:"type:decimal(19,6);not null;default:0"`
	FeeChargesOutstanding       decimal.Decimal `gorm:"type:decimal(19,6);not null;default:0"`
	PenaltyChargesOutstanding   decimal.Decimal `gorm:"type:decimal(19,6);not null;default:0"`
	TotalExpectedRepayment      decimal.Decimal `gorm:"type:decimal(19,6);not null;default:0"`
	TotalRepayment              decimal.Decimal `gorm:"type:decimal(19,6);not null;default:0"`
	TotalWaived                 decimal.Decimal `gorm:"type:decimal(19,6);not null;default:0"`
	TotalWrittenOff             decimal.Decimal `gorm:"type:decimal(19,6);not null;default:0"`
	TotalOutstanding            decimal.Decimal `gorm:"type:decimal(19,6);not null;default:0"`
}

type DisbursementModel struct {
	ID           string    `gorm:"primaryKey;type:varchar(50)"`
	LoanID       string    `gorm:"type:varchar(50);not null;index"`
	ExpectedDate time.Time `gorm:"not null"`
	ActualDate   *time.Time
	Principal    decimal.Decimal `gorm:"type:decimal(19,6);not null"`
}

func (DisbursementModel) TableName() string {
	return "loan_disbursements"
}

// ComponentColumns is one installment component.
type ComponentColumns struct {
	Due        decimal.Decimal `gorm:"type:decimal(19,6);not null;default:0"`
	Paid       decimal.Decimal `gorm:"type:decimal(19,6);not null;default:0"`
	Waived     decimal.Decimal `gorm:"type:decimal(19,6);not null;default:0"`
	WrittenOff decimal.Decimal `gorm:"type:decimal(19,6);not null;default:0"`
}

type InstallmentModel struct {
	LoanID                        string           `gorm:"primaryKey;type:varchar(50)"`
	Number                        int              `gorm:"primaryKey;autoIncrement:false"`
	FromDate                      time.Time        `gorm:"not null"`
	DueDate                       time.Time        `gorm:"not null;index"`
	Principal                     ComponentColumns `gorm:"embedded;embeddedPrefix:principal_"`
	Interest                      ComponentColumns `gorm:"embedded;embeddedPrefix:interest_"`
	Fee                           ComponentColumns `gorm:"embedded;embeddedPrefix:fee_"`
	Penalty                       ComponentColumns `gorm:"embedded;embeddedPrefix:penalty_"`
	ObligationsMetOn              *time.Time
	RecalculatedInterestComponent bool `gorm:"not null;default:false"`
}

func (InstallmentModel) TableName() string {
	return "loan_installments"
}

type ChargeModel struct {
	ID                       string           `gorm:"primaryKey;type:varchar(50)"`
	LoanID                   string           `gorm:"type:varchar(50);not null;index"`
	DefinitionID             string           `gorm:"type:varchar(50)"`
	Name                     string           `gorm:"type:varchar(100)"`
	CalculationType          string           `gorm:"type:varchar(40);not null"`
	TimeType                 string           `gorm:"type:varchar(40);not null"`
	Percentage               decimal.Decimal  `gorm:"type:decimal(19,6);not null;default:0"`
	ConfiguredAmount         decimal.Decimal  `gorm:"type:decimal(19,6);not null;default:0"`
	MinCap                   *decimal.Decimal `gorm:"type:decimal(19,6)"`
	MaxCap                   *decimal.Decimal `gorm:"type:decimal(19,6)"`
	Amount                   decimal.Decimal  `gorm:"type:decimal(19,6);not null"`
	AmountPaid               decimal.Decimal  `gorm:"type:decimal(19,6);not null;default:0"`
	AmountWaived             decimal.Decimal  `gorm:"type:decimal(19,6);not null;default:0"`
	AmountWrittenOff         decimal.Decimal  `gorm:"type:decimal(19,6);not null;default:0"`
	AmountOutstanding        decimal.Decimal  `gorm:"type:decimal(19,6);not null;default:0"`
	DueDate                  *time.Time
	TrancheDisbursementID    string `gorm:"type:varchar(50)"`
	OverdueInstallmentNumber int
	IsPenalty                bool `gorm:"not null;default:false"`
	Active                   bool `gorm:"not null;default:true;index"`

	InstallmentCharges []InstallmentChargeModel `gorm:"foreignKey:ChargeID"`
}

func (ChargeModel) TableName() string {
	return "loan_charges"
}

type InstallmentChargeModel struct {
	ChargeID          string          `gorm:"primaryKey;type:varchar(50)"`
	InstallmentNumber int             `gorm:"primaryKey;autoIncrement:false"`
	Amount            decimal.Decimal `gorm:"type:decimal(19,6);not null"`
	Paid              decimal.Decimal `gorm:"type:decimal(19,6);not null;default:0"`
	Waived            decimal.Decimal `gorm:"type:decimal(19,6);not null;default:0"`
	WrittenOff        decimal.Decimal `gorm:"type:decimal(19,6);not null;default:0"`
}

func (InstallmentChargeModel) TableName() string {
	return "loan_installment_charges"
}

// TransactionModel represents the database schema for loan transactions
type TransactionModel struct {
	ID                      string          `gorm:"primaryKey;type:varchar(50)"`
	LoanID                  string          `gorm:"type:varchar(50);not null;index:idx_loan_tx_order,priority:1"`
	ExternalID              string          `gorm:"type:varchar(100);index"`
	Kind                    string          `gorm:"type:varchar(30);not null;index"`
	Date                    time.Time       `gorm:"not null;index:idx_loan_tx_order,priority:2"`
	Sequence                int64           `gorm:"not null;index:idx_loan_tx_order,priority:3"`
	Amount                  decimal.Decimal `gorm:"type:decimal(19,6);not null"`
	Principal               decimal.Decimal `gorm:"type:decimal(19,6);not null;default:0"`
	Interest                decimal.Decimal `gorm:"type:decimal(19,6);not null;default:0"`
	Fee                     decimal.Decimal `gorm:"type:decimal(19,6);not null;default:0"`
	Penalty                 decimal.Decimal `gorm:"type:decimal(19,6);not null;default:0"`
	Overpayment             decimal.Decimal `gorm:"type:decimal(19,6);not null;default:0"`
	Reversed                bool            `gorm:"not null;default:false;index"`
	ReversedOn              *time.Time
	ReplacedByID            string    `gorm:"type:varchar(50)"`
	TargetChargeID          string    `gorm:"type:varchar(50)"`
	TargetInstallmentNumber int       `gorm:"not null;default:0"`
	CreatedAt               time.Time `gorm:"autoCreateTime"`

	ChargesPaid []ChargePaidByModel       `gorm:"foreignKey:TransactionID"`
	Mappings    []TransactionMappingModel `gorm:"foreignKey:TransactionID"`
}

func (TransactionModel) TableName() string {
	return "loan_transactions"
}

type ChargePaidByModel struct {
	ID                uint            `gorm:"primaryKey;autoIncrement"`
	TransactionID     string          `gorm:"type:varchar(50);not null;index"`
	ChargeID          string          `gorm:"type:varchar(50);not null;index"`
	Amount            decimal.Decimal `gorm:"type:decimal(19,6);not null"`
	InstallmentNumber int
}

func (ChargePaidByModel) TableName() string {
	return "loan_charge_paid_by"
}

// TransactionMappingModel is the transaction to installment allocation record
// read by the accounting bridge.
type TransactionMappingModel struct {
	ID                uint            `gorm:"primaryKey;autoIncrement"`
	TransactionID     string          `gorm:"type:varchar(50);not null;index"`
	InstallmentNumber int             `gorm:"not null"`
	Principal         decimal.Decimal `gorm:"type:decimal(19,6);not null;default:0"`
	Interest          decimal.Decimal `gorm:"type:decimal(19,6);not null;default:0"`
	Fee               decimal.Decimal `gorm:"type:decimal(19,6);not null;default:0"`
	Penalty           decimal.Decimal `gorm:"type:decimal(19,6);not null;default:0"`
}

func (TransactionMappingModel) TableName() string {
	return "loan_transaction_installment_mappings"
}

// AllModels lists every table for AutoMigrate.
func AllModels() []interface{} {
	return []interface{}{
		&LoanModel{},
		&DisbursementModel{},
		&InstallmentModel{},
		&ChargeModel{},
		&InstallmentChargeModel{},
		&TransactionModel{},
		&ChargePaidByModel{},
		&TransactionMappingModel{},
	}
}

package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gigmile/loan-engine/internal/domain"
	_ "github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
)

func main() {
	mysqlUser := getEnv("MYSQL_USER", "root")
	mysqlPassword := getEnv("MYSQL_PASSWORD", "my-secret-pw")
	mysqlHost := getEnv("MYSQL_HOST", "localhost:3306")
	mysqlDatabase := getEnv("MYSQL_DATABASE", "loan_engine")

	dsn := fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true&loc=UTC",
		mysqlUser, mysqlPassword, mysqlHost, mysqlDatabase)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		log.Fatalf("Failed to connect to MySQL: %v", err)
	}
	defer db.Close()

	// Test connection
	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping MySQL: %v\nDSN: %s:%s@tcp(%s)/%s",
			err, mysqlUser, "***", mysqlHost, mysqlDatabase)
	}

	fmt.Println("Connected to MySQL successfully")
	fmt.Println("Tables are created by the API on startup; run it once before seeding.")

	// Seed disbursed loans
	loans := []struct {
		externalID string
		principal  string
		rate       string
		repayments int
		frequency  domain.RepaymentFrequency
	}{
		{"GIG-LOAN-0001", "1000000", "24", 12, domain.RepaymentFrequencyMonths},
		{"GIG-LOAN-0002", "500000", "18", 26, domain.RepaymentFrequencyWeeks},
		{"GIG-LOAN-0003", "250000", "30", 6, domain.RepaymentFrequencyMonths},
	}

	disbursedOn := time.Now().UTC().AddDate(0, -1, 0).Truncate(24 * time.Hour)
	sm := domain.NewLifecycleStateMachine()

	for _, l := range loans {
		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM loans WHERE external_id = ?", l.externalID).Scan(&count); err != nil {
			log.Fatalf("Failed to check loan %s: %v", l.externalID, err)
		}
		if count > 0 {
			fmt.Printf("Skipped loan: %s (already seeded)\n", l.externalID)
			continue
		}

		loan, err := domain.NewLoan(l.externalID, domain.MustMoney("NGN", l.principal), domain.StrategyInterestPrincipalPenaltyFee,
			domain.ScheduleTerms{
				AnnualInterestRate: decimal.RequireFromString(l.rate),
				NumberOfRepayments: l.repayments,
				RepaymentEvery:     1,
				RepaymentFrequency: l.frequency,
				StartDate:          disbursedOn,
			}, disbursedOn)
		if err != nil {
			log.Fatalf("Failed to build loan %s: %v", l.externalID, err)
		}
		if err := loan.Approve(disbursedOn, sm, 0); err != nil {
			log.Fatalf("Failed to approve loan %s: %v", l.externalID, err)
		}
		if _, err := loan.Disburse(disbursedOn, sm, 0); err != nil {
			log.Fatalf("Failed to disburse loan %s: %v", l.externalID, err)
		}

		if err := insertLoan(db, loan); err != nil {
			log.Fatalf("Failed to seed loan %s: %v", l.externalID, err)
		}

		fmt.Printf("Seeded loan: %s id=%s (Principal: %s, Installments: %d, Outstanding: %s)\n",
			l.externalID, loan.ID, loan.Principal, len(loan.Installments), loan.Summary.TotalOutstanding)
	}

	fmt.Println("\nSeed completed successfully!")
	fmt.Println("You can now test the API with the loan ids printed above")
}

func insertLoan(db *sql.DB, loan *domain.Loan) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	s := loan.Summary
	_, err = tx.Exec(`
		INSERT INTO loans (id, external_id, currency, status, strategy, approved_principal, principal,
		                   annual_interest_rate, number_of_repayments, repayment_every, repayment_frequency,
		                   submitted_on, approved_on, disbursed_on, capitalized_income,
		                   capitalized_income_adjustment, total_overpaid,
		                   summary_fee_charges_due_at_disbursement, summary_principal_outstanding,
		                   summary_interest_outstanding, summary_total_expected_repayment,
		                   summary_total_outstanding, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0, 0, ?, ?, ?, ?, ?, 1, ?, ?)`,
		loan.ID, loan.ExternalID, loan.Currency, string(loan.Status), string(loan.Strategy),
		loan.ApprovedPrincipal.Amount(), loan.Principal.Amount(), loan.AnnualInterestRate,
		loan.NumberOfRepayments, loan.RepaymentEvery, string(loan.RepaymentFrequency),
		loan.SubmittedOn, loan.ApprovedOn, loan.DisbursedOn,
		s.TotalFeeChargesDueAtDisbursement.Amount(), s.TotalPrincipalOutstanding.Amount(),
		s.TotalInterestOutstanding.Amount(), s.TotalExpectedRepayment.Amount(),
		s.TotalOutstanding.Amount(), now, now,
	)
	if err != nil {
		return fmt.Errorf("insert loan: %w", err)
	}

	for _, d := range loan.Disbursements {
		if _, err := tx.Exec(`INSERT INTO loan_disbursements (id, loan_id, expected_date, actual_date, principal) VALUES (?, ?, ?, ?, ?)`,
			d.ID, loan.ID, d.ExpectedDate, d.ActualDate, d.Principal.Amount()); err != nil {
			return fmt.Errorf("insert disbursement: %w", err)
		}
	}

	for _, inst := range loan.Installments {
		if _, err := tx.Exec(`
			INSERT INTO loan_installments (loan_id, number, from_date, due_date, principal_due, interest_due,
			                               fee_due, penalty_due, recalculated_interest_component)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, false)`,
			loan.ID, inst.Number, inst.FromDate, inst.DueDate, inst.Principal.Due.Amount(),
			inst.Interest.Due.Amount(), inst.Fee.Due.Amount(), inst.Penalty.Due.Amount()); err != nil {
			return fmt.Errorf("insert installment %d: %w", inst.Number, err)
		}
	}

	for _, t := range loan.Transactions {
		if _, err := tx.Exec(`
			INSERT INTO loan_transactions (id, loan_id, external_id, kind, date, sequence, amount, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, loan.ID, t.ExternalID, string(t.Kind), t.Date, t.Sequence, t.Amount.Amount(), now); err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
	}

	return tx.Commit()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

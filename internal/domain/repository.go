package domain

import (
	"context"
	"time"
)

type LoanRepository interface {
	FindByID(ctx context.Context, loanID string) (*Loan, error)
	Create(ctx context.Context, loan *Loan) error
	// Save persists the aggregate and fails with ErrOptimisticLock when the
	// stored version moved.
	Save(ctx context.Context, loan *Loan) error
}

// TransactionRepository serves chronological, loan-scoped transaction lookups.
// Every method returns collections in stable replay order.
type TransactionRepository interface {
	FindNonReversedByLoanAndTypes(ctx context.Context, loanID string, kinds []TransactionKind) ([]*Transaction, error)
	FindTransactionsForAccountingBridge(ctx context.Context, loanID string, ids []string) ([]*Transaction, error)
	FindLastTransactionDateForReprocessing(ctx context.Context, loanID string) (*time.Time, error)
	ExistsByExternalID(ctx context.Context, loanID, externalID string) (bool, error)
	RememberExternalID(ctx context.Context, loanID, externalID string) error
}

// LoanLocker is the per-loan exclusivity boundary. The returned release func
// must be called exactly once.
type LoanLocker interface {
	Acquire(ctx context.Context, loanID string) (release func(context.Context) error, err error)
}

// SummaryCache is a read-through cache of loan summaries.
type SummaryCache interface {
	Get(ctx context.Context, loanID string) (*LoanSummary, error)
	Set(ctx context.Context, loanID string, summary *LoanSummary) error
	Invalidate(ctx context.Context, loanID string) error
}

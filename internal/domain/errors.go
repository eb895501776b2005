package domain

import "errors"

// Domain errors
var (
	ErrCurrencyMismatch           = errors.New("currency mismatch")
	ErrValidation                 = errors.New("validation failed")
	ErrInvalidAmount              = errors.New("invalid transaction amount")
	ErrFutureDatedTransaction     = errors.New("transaction date cannot be in the future")
	ErrLoanNotFound               = errors.New("loan not found")
	ErrChargeNotFound             = errors.New("charge not found")
	ErrInstallmentNotFound        = errors.New("installment not found")
	ErrTransactionNotFound        = errors.New("transaction not found")
	ErrTransactionAlreadyReversed = errors.New("transaction already reversed")
	ErrConservationViolated       = errors.New("installment component balance violated")
	ErrInvalidStatusTransition    = errors.New("invalid loan status transition")
	ErrEIRNotApplicable           = errors.New("effective interest rate not applicable")
	ErrEIRNoConvergence           = errors.New("effective interest rate did not converge")
	ErrLoanLocked                 = errors.New("loan is locked by another operation")
	ErrOptimisticLock             = errors.New("version mismatch - optimistic lock failed")
	ErrDuplicateTransaction       = errors.New("duplicate transaction")
)

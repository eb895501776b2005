package handler

import (
	"github.com/gigmile/loan-engine/internal/application/service"
	"go.uber.org/zap"
)

type Handlers struct {
	Loan *LoanHandler
}

func NewHandlers(loanService *service.LoanTransactionService, logger *zap.Logger) *Handlers {
	return &Handlers{
		Loan: NewLoanHandler(loanService, logger),
	}
}

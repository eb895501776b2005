package router

import (
	"time"

	"github.com/gigmile/loan-engine/internal/interface/http/handler"
	"github.com/gigmile/loan-engine/internal/interface/http/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func NewRouter(handlers *handler.Handlers, logger *zap.Logger) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(chimiddleware.Compress(5))
	r.Use(chimiddleware.Timeout(30 * time.Second))

	// Routes
	r.Get("/health", handlers.Loan.HealthCheck)

	r.Route("/api/v1/loans", func(r chi.Router) {
		r.Post("/", handlers.Loan.CreateLoan)

		r.Route("/{loan_id}", func(r chi.Router) {
			r.Get("/", handlers.Loan.GetLoan)
			r.Get("/summary", handlers.Loan.GetSummary)
			r.Get("/eir", handlers.Loan.GetEffectiveInterestRate)
			r.Get("/transactions", handlers.Loan.GetTransactions)

			r.Post("/approve", handlers.Loan.ApproveLoan)
			r.Post("/disburse", handlers.Loan.DisburseLoan)
			r.Post("/repayments", handlers.Loan.PostRepayment)
			r.Post("/waivers/interest", handlers.Loan.WaiveInterest)
			r.Post("/waivers/charges", handlers.Loan.WaiveCharges)
			r.Post("/write-off", handlers.Loan.WriteOff)
			r.Post("/refunds", handlers.Loan.Refund)
			r.Post("/charges", handlers.Loan.AddCharge)
			r.Post("/charges/{charge_id}/payments", handlers.Loan.MakeChargePayment)
			r.Post("/transactions/{transaction_id}/reversal", handlers.Loan.ReverseTransaction)
			r.Post("/reprocess", handlers.Loan.Reprocess)
		})
	})

	return r
}

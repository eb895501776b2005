package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gigmile/loan-engine/internal/application/service"
	"github.com/gigmile/loan-engine/internal/domain"
	"github.com/gigmile/loan-engine/internal/interface/http/dto"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type LoanHandler struct {
	loanService *service.LoanTransactionService
	logger      *zap.Logger
}

func NewLoanHandler(loanService *service.LoanTransactionService, logger *zap.Logger) *LoanHandler {
	return &LoanHandler{
		loanService: loanService,
		logger:      logger,
	}
}

// CreateLoan submits a new loan application
func (h *LoanHandler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if err := req.Validate(); err != nil {
		h.respondError(w, http.StatusBadRequest, "validation failed", err)
		return
	}

	principal, _ := decimal.NewFromString(req.Principal)
	rate, _ := decimal.NewFromString(req.AnnualInterestRate)
	expected, _ := dto.ParseDate(req.ExpectedDisbursementDate)

	loan, err := h.loanService.CreateLoan(r.Context(), service.CreateLoanRequest{
		ExternalID:               req.ExternalID,
		Currency:                 req.Currency,
		Principal:                principal,
		AnnualInterestRate:       rate,
		NumberOfRepayments:       req.NumberOfRepayments,
		RepaymentEvery:           req.RepaymentEvery,
		RepaymentFrequency:       domain.RepaymentFrequency(req.RepaymentFrequency),
		ExpectedDisbursementDate: expected,
		Strategy:                 req.Strategy,
	})
	if err != nil {
		h.respondServiceError(w, "failed to create loan", err)
		return
	}
	h.respondJSON(w, http.StatusCreated, dto.NewLoanResponse(loan))
}

func (h *LoanHandler) ApproveLoan(w http.ResponseWriter, r *http.Request) {
	loanID := chi.URLParam(r, "loan_id")
	var req dto.LifecycleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	on, err := req.GetDate()
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "validation failed", err)
		return
	}

	loan, err := h.loanService.ApproveLoan(r.Context(), loanID, on)
	if err != nil {
		h.respondServiceError(w, "failed to approve loan", err)
		return
	}
	h.respondJSON(w, http.StatusOK, dto.NewLoanResponse(loan))
}

func (h *LoanHandler) DisburseLoan(w http.ResponseWriter, r *http.Request) {
	loanID := chi.URLParam(r, "loan_id")
	var req dto.LifecycleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	on, err := req.GetDate()
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "validation failed", err)
		return
	}

	result, err := h.loanService.DisburseLoan(r.Context(), loanID, on)
	if err != nil {
		h.respondServiceError(w, "failed to disburse loan", err)
		return
	}
	h.respondOperation(w, "loan disbursed", result)
}

// PostRepayment handles an incoming repayment
func (h *LoanHandler) PostRepayment(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeTransaction(w, r)
	if !ok {
		return
	}
	result, err := h.loanService.PostRepayment(r.Context(), req)
	if err != nil {
		h.respondServiceError(w, "failed to post repayment", err)
		return
	}
	h.respondOperation(w, "repayment posted", result)
}

func (h *LoanHandler) WaiveInterest(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeTransaction(w, r)
	if !ok {
		return
	}
	result, err := h.loanService.WaiveInterest(r.Context(), req)
	if err != nil {
		h.respondServiceError(w, "failed to waive interest", err)
		return
	}
	h.respondOperation(w, "interest waived", result)
}

func (h *LoanHandler) WaiveCharges(w http.ResponseWriter, r *http.Request) {
	var req dto.WaiveChargesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if err := req.Validate(); err != nil {
		h.respondError(w, http.StatusBadRequest, "validation failed", err)
		return
	}
	fee, penalty, _ := req.GetAmounts()
	txDate, _ := dto.ParseDate(req.TransactionDate)

	result, err := h.loanService.WaiveCharges(r.Context(), service.WaiveChargesRequest{
		LoanID:        chi.URLParam(r, "loan_id"),
		FeeAmount:     fee,
		PenaltyAmount: penalty,
		Date:          txDate,
		ExternalID:    req.ExternalID,
	})
	if err != nil {
		h.respondServiceError(w, "failed to waive charges", err)
		return
	}
	h.respondOperation(w, "charges waived", result)
}

func (h *LoanHandler) WriteOff(w http.ResponseWriter, r *http.Request) {
	var req dto.WriteOffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	txDate, err := dto.ParseDate(req.TransactionDate)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "transaction_date must be in format 'YYYY-MM-DD'", err)
		return
	}

	result, err := h.loanService.WriteOff(r.Context(), chi.URLParam(r, "loan_id"), txDate, req.ExternalID)
	if err != nil {
		h.respondServiceError(w, "failed to write off loan", err)
		return
	}
	h.respondOperation(w, "loan written off", result)
}

func (h *LoanHandler) Refund(w http.ResponseWriter, r *http.Request) {
	var req dto.RefundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	post, ok := h.toPostRequest(w, r, req.TransactionRequest)
	if !ok {
		return
	}

	result, err := h.loanService.Refund(r.Context(), service.RefundRequest{PostTransactionRequest: post, Chargeback: req.Chargeback})
	if err != nil {
		h.respondServiceError(w, "failed to post refund", err)
		return
	}
	h.respondOperation(w, "refund posted", result)
}

func (h *LoanHandler) AddCharge(w http.ResponseWriter, r *http.Request) {
	var req dto.AddChargeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if err := req.Validate(); err != nil {
		h.respondError(w, http.StatusBadRequest, "validation failed", err)
		return
	}
	amount, _ := dto.ParseAmount(req.Amount)
	percentage, _ := dto.ParseAmount(req.Percentage)
	dueDate, _ := req.GetDueDate()
	minCap, err := dto.OptionalDecimal(req.MinCap)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "min_cap must be a valid number", err)
		return
	}
	maxCap, err := dto.OptionalDecimal(req.MaxCap)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "max_cap must be a valid number", err)
		return
	}

	result, err := h.loanService.AddCharge(r.Context(), service.AddChargeRequest{
		LoanID:                   chi.URLParam(r, "loan_id"),
		DefinitionID:             req.DefinitionID,
		Name:                     req.Name,
		CalculationType:          domain.ChargeCalculationType(req.CalculationType),
		TimeType:                 domain.ChargeTimeType(req.TimeType),
		Amount:                   amount,
		Percentage:               percentage,
		MinCap:                   minCap,
		MaxCap:                   maxCap,
		IsPenalty:                req.IsPenalty,
		DueDate:                  dueDate,
		OverdueInstallmentNumber: req.OverdueInstallmentNumber,
		TrancheDisbursementID:    req.TrancheDisbursementID,
	})
	if err != nil {
		h.respondServiceError(w, "failed to add charge", err)
		return
	}
	h.respondOperation(w, "charge added", result)
}

func (h *LoanHandler) MakeChargePayment(w http.ResponseWriter, r *http.Request) {
	var req dto.ChargePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	post, ok := h.toPostRequest(w, r, req.TransactionRequest)
	if !ok {
		return
	}

	result, err := h.loanService.MakeChargePayment(r.Context(), service.ChargePaymentRequest{
		PostTransactionRequest: post,
		ChargeID:               chi.URLParam(r, "charge_id"),
		InstallmentNumber:      req.InstallmentNumber,
	})
	if err != nil {
		h.respondServiceError(w, "failed to make charge payment", err)
		return
	}
	h.respondOperation(w, "charge payment posted", result)
}

func (h *LoanHandler) ReverseTransaction(w http.ResponseWriter, r *http.Request) {
	result, err := h.loanService.ReverseTransaction(r.Context(), chi.URLParam(r, "loan_id"), chi.URLParam(r, "transaction_id"))
	if err != nil {
		h.respondServiceError(w, "failed to reverse transaction", err)
		return
	}
	h.respondOperation(w, "transaction reversed", result)
}

func (h *LoanHandler) Reprocess(w http.ResponseWriter, r *http.Request) {
	var req dto.ReprocessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	fromDate, err := dto.ParseDate(req.FromDate)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "from_date must be in format 'YYYY-MM-DD'", err)
		return
	}

	result, err := h.loanService.Reprocess(r.Context(), chi.URLParam(r, "loan_id"), fromDate)
	if err != nil {
		h.respondServiceError(w, "failed to reprocess loan", err)
		return
	}
	h.respondOperation(w, "loan reprocessed", result)
}

// GetLoan retrieves the loan with its schedule and charges
func (h *LoanHandler) GetLoan(w http.ResponseWriter, r *http.Request) {
	loanID := chi.URLParam(r, "loan_id")
	loan, err := h.loanService.GetLoan(r.Context(), loanID)
	if err != nil {
		h.respondServiceError(w, "failed to get loan", err)
		return
	}
	h.respondJSON(w, http.StatusOK, dto.NewLoanResponse(loan))
}

func (h *LoanHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	loanID := chi.URLParam(r, "loan_id")
	summary, err := h.loanService.GetSummary(r.Context(), loanID)
	if err != nil {
		h.respondServiceError(w, "failed to get loan summary", err)
		return
	}
	h.respondJSON(w, http.StatusOK, dto.NewSummaryResponse(summary))
}

func (h *LoanHandler) GetEffectiveInterestRate(w http.ResponseWriter, r *http.Request) {
	loanID := chi.URLParam(r, "loan_id")
	rate, err := h.loanService.GetEffectiveInterestRate(r.Context(), loanID)
	if err != nil {
		h.respondServiceError(w, "failed to compute effective interest rate", err)
		return
	}
	h.respondJSON(w, http.StatusOK, dto.EIRResponse{
		LoanID:                loanID,
		EffectiveInterestRate: rate.String(),
	})
}

// GetTransactions lists non-reversed transactions, optionally filtered by
// ?kinds=REPAYMENT,REFUND
func (h *LoanHandler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	loanID := chi.URLParam(r, "loan_id")
	var kinds []domain.TransactionKind
	if raw := r.URL.Query().Get("kinds"); raw != "" {
		for _, k := range strings.Split(raw, ",") {
			kinds = append(kinds, domain.TransactionKind(strings.ToUpper(strings.TrimSpace(k))))
		}
	}

	txs, err := h.loanService.ListTransactions(r.Context(), loanID, kinds)
	if err != nil {
		h.respondServiceError(w, "failed to get loan transactions", err)
		return
	}

	response := make([]*dto.TransactionResponse, len(txs))
	for i, tx := range txs {
		response[i] = dto.NewTransactionResponse(tx)
	}

	h.logger.Info("loan transactions retrieved successfully",
		zap.String("loan_id", loanID),
		zap.Int("count", len(txs)),
	)

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"loan_id":      loanID,
		"count":        len(txs),
		"transactions": response,
	})
}

// HealthCheck handles health check endpoint
func (h *LoanHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

func (h *LoanHandler) decodeTransaction(w http.ResponseWriter, r *http.Request) (service.PostTransactionRequest, bool) {
	var req dto.TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body", err)
		return service.PostTransactionRequest{}, false
	}
	return h.toPostRequest(w, r, req)
}

func (h *LoanHandler) toPostRequest(w http.ResponseWriter, r *http.Request, req dto.TransactionRequest) (service.PostTransactionRequest, bool) {
	if err := req.Validate(); err != nil {
		h.respondError(w, http.StatusBadRequest, "validation failed", err)
		return service.PostTransactionRequest{}, false
	}
	amount, _ := req.GetAmount()
	txDate, _ := req.GetTransactionDate()
	return service.PostTransactionRequest{
		LoanID:     chi.URLParam(r, "loan_id"),
		Amount:     amount,
		Date:       txDate,
		ExternalID: req.ExternalID,
	}, true
}

func (h *LoanHandler) respondOperation(w http.ResponseWriter, message string, result *service.TransactionResult) {
	loan := result.Loan
	response := dto.OperationResponse{
		Success:     true,
		Message:     message,
		LoanID:      loan.ID,
		LoanStatus:  string(loan.Status),
		Transaction: dto.NewTransactionResponse(result.Transaction),
		Outstanding: loan.Summary.TotalOutstanding.Amount().StringFixed(domain.MoneyScale),
		Replay:      dto.NewReplayResponse(result.Replay),
	}
	if result.Duplicate {
		response.Message = "duplicate transaction - already processed"
	}
	if result.Charge != nil {
		response.ChargeID = result.Charge.ID
	}
	if result.Remainder.Currency() != "" {
		response.Remainder = result.Remainder.Amount().StringFixed(domain.MoneyScale)
	}
	h.respondJSON(w, http.StatusOK, response)
}

func (h *LoanHandler) respondServiceError(w http.ResponseWriter, message string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error(message, zap.Error(err))
	} else {
		h.logger.Info(message, zap.Error(err), zap.Int("status", status))
	}
	h.respondError(w, status, message, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrCurrencyMismatch),
		errors.Is(err, domain.ErrFutureDatedTransaction),
		errors.Is(err, domain.ErrEIRNotApplicable):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrLoanNotFound),
		errors.Is(err, domain.ErrChargeNotFound),
		errors.Is(err, domain.ErrInstallmentNotFound),
		errors.Is(err, domain.ErrTransactionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrLoanLocked),
		errors.Is(err, domain.ErrOptimisticLock),
		errors.Is(err, domain.ErrDuplicateTransaction),
		errors.Is(err, domain.ErrTransactionAlreadyReversed),
		errors.Is(err, domain.ErrInvalidStatusTransition):
		return http.StatusConflict
	case errors.Is(err, domain.ErrConservationViolated):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *LoanHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *LoanHandler) respondError(w http.ResponseWriter, status int, message string, err error) {
	response := dto.ErrorResponse{
		Error:   message,
		Message: "",
	}

	if err != nil {
		response.Message = err.Error()
	}

	h.respondJSON(w, status, response)
}

package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gigmile/loan-engine/internal/domain"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", domain.ErrValidation, http.StatusBadRequest},
		{"wrapped invalid amount", fmt.Errorf("failed to post REPAYMENT: %w", domain.ErrInvalidAmount), http.StatusBadRequest},
		{"currency mismatch", domain.ErrCurrencyMismatch, http.StatusBadRequest},
		{"future dated", domain.ErrFutureDatedTransaction, http.StatusBadRequest},
		{"eir not applicable", domain.ErrEIRNotApplicable, http.StatusBadRequest},
		{"loan not found", domain.ErrLoanNotFound, http.StatusNotFound},
		{"charge not found", domain.ErrChargeNotFound, http.StatusNotFound},
		{"installment not found", domain.ErrInstallmentNotFound, http.StatusNotFound},
		{"transaction not found", fmt.Errorf("reverse: %w", domain.ErrTransactionNotFound), http.StatusNotFound},
		{"locked", fmt.Errorf("failed to post REPAYMENT: %w", domain.ErrLoanLocked), http.StatusConflict},
		{"optimistic lock", domain.ErrOptimisticLock, http.StatusConflict},
		{"duplicate", domain.ErrDuplicateTransaction, http.StatusConflict},
		{"already reversed", domain.ErrTransactionAlreadyReversed, http.StatusConflict},
		{"status transition", domain.ErrInvalidStatusTransition, http.StatusConflict},
		{"conservation", domain.ErrConservationViolated, http.StatusUnprocessableEntity},
		{"unknown", errors.New("connection refused"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestCreateLoan_RejectsInvalidRequests(t *testing.T) {
	h := NewLoanHandler(nil, zap.NewNop())

	tests := []struct {
		name string
		body string
		want string
	}{
		{"malformed body", `{"principal":`, "invalid request body"},
		{"missing currency", `{"principal":"1000","annual_interest_rate":"12","number_of_repayments":3,"repayment_every":1,"repayment_frequency":"MONTHS","expected_disbursement_date":"2024-01-01"}`, "currency is required"},
		{"bad frequency", `{"currency":"NGN","principal":"1000","annual_interest_rate":"12","number_of_repayments":3,"repayment_every":1,"repayment_frequency":"YEARS","expected_disbursement_date":"2024-01-01"}`, "repayment_frequency"},
		{"bad date", `{"currency":"NGN","principal":"1000","annual_interest_rate":"12","number_of_repayments":3,"repayment_every":1,"repayment_frequency":"MONTHS","expected_disbursement_date":"01/01/2024"}`, "expected_disbursement_date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			req := httptest.NewRequest(http.MethodPost, "/api/v1/loans", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			// Act
			h.CreateLoan(rec, req)

			// Assert
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)
		})
	}
}

func TestHealthCheck(t *testing.T) {
	h := NewLoanHandler(nil, zap.NewNop())
	rec := httptest.NewRecorder()

	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

package service

import (
	"context"
	"fmt"

	"github.com/gigmile/loan-engine/internal/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// NotificationService handles side effects of loan events: cache eviction,
// accounting journal feed and borrower notices.
type NotificationService struct {
	summaryCache domain.SummaryCache // Optional - can be nil
	logger       *zap.Logger
}

func NewNotificationService(
	summaryCache domain.SummaryCache,
	logger *zap.Logger,
) *NotificationService {
	return &NotificationService{
		summaryCache: summaryCache,
		logger:       logger,
	}
}

// HandleTransactionAdjusted handles allocation changes produced by reprocessing
func (s *NotificationService) HandleTransactionAdjusted(ctx context.Context, event domain.DomainEvent) error {
	adjusted, ok := event.(*domain.TransactionAdjustedEvent)
	if !ok {
		return fmt.Errorf("invalid event type")
	}

	payload := adjusted.Payload
	s.evictSummary(ctx, payload.LoanID)

	oldTx, newTx := payload.OldTransaction, payload.NewTransaction
	s.logger.Info("journal adjustment recorded",
		zap.String("event_id", event.GetEventID()),
		zap.String("loan_id", payload.LoanID),
		zap.String("reversed_transaction_id", oldTx.TransactionID),
		zap.String("replacement_transaction_id", newTx.TransactionID),
		zap.String("principal_delta", delta(oldTx.Principal, newTx.Principal)),
		zap.String("interest_delta", delta(oldTx.Interest, newTx.Interest)),
		zap.String("fee_delta", delta(oldTx.Fee, newTx.Fee)),
		zap.String("penalty_delta", delta(oldTx.Penalty, newTx.Penalty)),
	)
	return nil
}

// HandleTransactionPosted handles posted and reversed transactions
func (s *NotificationService) HandleTransactionPosted(ctx context.Context, event domain.DomainEvent) error {
	posted, ok := event.(*domain.TransactionPostedEvent)
	if !ok {
		return fmt.Errorf("invalid event type")
	}

	payload := posted.Payload
	s.evictSummary(ctx, payload.LoanID)

	tx := payload.Transaction
	if event.GetEventType() == domain.EventTypeTransactionReversed {
		s.logger.Info("SMS notification sent",
			zap.String("loan_id", payload.LoanID),
			zap.String("message", fmt.Sprintf("Transaction of %s %s has been reversed. Outstanding balance: %s %s",
				tx.Currency, tx.Amount, tx.Currency, payload.TotalOutstanding)),
		)
		return nil
	}

	if tx.Kind != string(domain.TransactionKindRepayment) && tx.Kind != string(domain.TransactionKindChargePayment) {
		return nil
	}
	s.logger.Info("SMS notification sent",
		zap.String("loan_id", payload.LoanID),
		zap.String("message", fmt.Sprintf("Payment of %s %s received. Outstanding balance: %s %s",
			tx.Currency, tx.Amount, tx.Currency, payload.TotalOutstanding)),
	)

	// If the loan is closed, send congratulations
	if payload.LoanStatus == string(domain.LoanStatusClosedObligationsMet) {
		s.logger.Info("Congratulations SMS sent",
			zap.String("loan_id", payload.LoanID),
			zap.String("message", "Congratulations! Your loan is fully repaid!"),
		)
	}
	return nil
}

func (s *NotificationService) evictSummary(ctx context.Context, loanID string) {
	if s.summaryCache == nil {
		return
	}
	if err := s.summaryCache.Invalidate(ctx, loanID); err != nil {
		s.logger.Warn("failed to evict loan summary", zap.Error(err), zap.String("loan_id", loanID))
	}
}

func delta(before, after string) string {
	b, err := decimal.NewFromString(before)
	if err != nil {
		return "n/a"
	}
	a, err := decimal.NewFromString(after)
	if err != nil {
		return "n/a"
	}
	return a.Sub(b).StringFixed(domain.MoneyScale)
}

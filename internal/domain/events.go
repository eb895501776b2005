package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	EventTypeTransactionPosted   = "loan.transaction.posted"
	EventTypeTransactionAdjusted = "loan.transaction.adjusted"
	EventTypeTransactionReversed = "loan.transaction.reversed"
)

// DomainEvent represents a domain event
type DomainEvent interface {
	GetEventID() string
	GetEventType() string
	GetAggregateID() string
	GetOccurredAt() time.Time
	GetPayload() interface{}
}

// BaseEvent provides common event fields
type BaseEvent struct {
	EventID     string    `json:"event_id"`
	EventType   string    `json:"event_type"`
	AggregateID string    `json:"aggregate_id"`
	OccurredAt  time.Time `json:"occurred_at"`
}

func (e BaseEvent) GetEventID() string       { return e.EventID }
func (e BaseEvent) GetEventType() string     { return e.EventType }
func (e BaseEvent) GetAggregateID() string   { return e.AggregateID }
func (e BaseEvent) GetOccurredAt() time.Time { return e.OccurredAt }

// TransactionSnapshot is the wire form of a transaction's allocation.
type TransactionSnapshot struct {
	TransactionID string    `json:"transaction_id"`
	Kind          string    `json:"kind"`
	Date          time.Time `json:"date"`
	Currency      string    `json:"currency"`
	Amount        string    `json:"amount"`
	Principal     string    `json:"principal_portion"`
	Interest      string    `json:"interest_portion"`
	Fee           string    `json:"fee_portion"`
	Penalty       string    `json:"penalty_portion"`
	Overpayment   string    `json:"overpayment_portion"`
	Reversed      bool      `json:"reversed"`
}

// SnapshotOf renders a transaction with amounts rounded to MoneyScale.
func SnapshotOf(t *Transaction) TransactionSnapshot {
	str := func(m Money) string { return m.Amount().StringFixed(MoneyScale) }
	return TransactionSnapshot{
		TransactionID: t.ID,
		Kind:          string(t.Kind),
		Date:          t.Date,
		Currency:      t.Amount.Currency(),
		Amount:        str(t.Amount),
		Principal:     str(t.Principal),
		Interest:      str(t.Interest),
		Fee:           str(t.Fee),
		Penalty:       str(t.Penalty),
		Overpayment:   str(t.Overpayment),
		Reversed:      t.Reversed,
	}
}

// TransactionAdjustedEvent - replay changed a transaction's allocation
type TransactionAdjustedEvent struct {
	BaseEvent
	Payload TransactionAdjustedPayload `json:"payload"`
}

func (e TransactionAdjustedEvent) GetPayload() interface{} { return e.Payload }

type TransactionAdjustedPayload struct {
	LoanID         string              `json:"loan_id"`
	OldTransaction TransactionSnapshot `json:"old_transaction"`
	NewTransaction TransactionSnapshot `json:"new_transaction"`
}

func NewTransactionAdjustedEvent(loanID string, oldTx, newTx *Transaction, at time.Time) *TransactionAdjustedEvent {
	return &TransactionAdjustedEvent{
		BaseEvent: BaseEvent{
			EventID:     uuid.New().String(),
			EventType:   EventTypeTransactionAdjusted,
			AggregateID: loanID,
			OccurredAt:  at,
		},
		Payload: TransactionAdjustedPayload{
			LoanID:         loanID,
			OldTransaction: SnapshotOf(oldTx),
			NewTransaction: SnapshotOf(newTx),
		},
	}
}

// TransactionPostedEvent - a transaction was allocated and saved
type TransactionPostedEvent struct {
	BaseEvent
	Payload TransactionPostedPayload `json:"payload"`
}

func (e TransactionPostedEvent) GetPayload() interface{} { return e.Payload }

type TransactionPostedPayload struct {
	LoanID           string              `json:"loan_id"`
	LoanStatus       string              `json:"loan_status"`
	Transaction      TransactionSnapshot `json:"transaction"`
	TotalOutstanding string              `json:"total_outstanding"`
}

func NewTransactionPostedEvent(loan *Loan, tx *Transaction, at time.Time) *TransactionPostedEvent {
	eventType := EventTypeTransactionPosted
	if tx.Reversed {
		eventType = EventTypeTransactionReversed
	}
	outstanding := ZeroMoney(loan.Currency)
	if loan.Summary != nil {
		outstanding = loan.Summary.TotalOutstanding
	}
	return &TransactionPostedEvent{
		BaseEvent: BaseEvent{
			EventID:     uuid.New().String(),
			EventType:   eventType,
			AggregateID: loan.ID,
			OccurredAt:  at,
		},
		Payload: TransactionPostedPayload{
			LoanID:           loan.ID,
			LoanStatus:       string(loan.Status),
			Transaction:      SnapshotOf(tx),
			TotalOutstanding: outstanding.Amount().StringFixed(MoneyScale),
		},
	}
}

// EventPublisher interface
type EventPublisher interface {
	Publish(ctx context.Context, event DomainEvent) error
	// PublishBatch delivers events all-or-nothing.
	PublishBatch(ctx context.Context, events []DomainEvent) error
}

// EventSubscriber interface
type EventSubscriber interface {
	Subscribe(ctx context.Context, eventType string, handler EventHandler) error
}

// EventHandler processes events
type EventHandler func(ctx context.Context, event DomainEvent) error

// BusinessEventNotifier buffers business events between Start and Stop so
// observers see a batch as one notification window. Reset discards an open
// window without delivering it.
type BusinessEventNotifier interface {
	StartExternalEventRecording() error
	NotifyPostBusinessEvent(ctx context.Context, event DomainEvent) error
	StopExternalEventRecording(ctx context.Context) error
	ResetEventRecording()
}

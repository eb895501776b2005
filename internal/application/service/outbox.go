package service

import (
	"context"
	"sync"

	"github.com/gigmile/loan-engine/internal/domain"
)

// outbox holds the events of one engine operation until its loan is saved. A
// retried operation starts from a fresh outbox, so nothing is delivered twice.
type outbox struct {
	mu      sync.Mutex
	batches [][]domain.DomainEvent
}

func newOutbox() *outbox {
	return &outbox{}
}

func (o *outbox) Publish(ctx context.Context, event domain.DomainEvent) error {
	return o.PublishBatch(ctx, []domain.DomainEvent{event})
}

func (o *outbox) PublishBatch(_ context.Context, events []domain.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}
	batch := make([]domain.DomainEvent, len(events))
	copy(batch, events)

	o.mu.Lock()
	defer o.mu.Unlock()
	o.batches = append(o.batches, batch)
	return nil
}

func (o *outbox) drain() [][]domain.DomainEvent {
	o.mu.Lock()
	defer o.mu.Unlock()
	batches := o.batches
	o.batches = nil
	return batches
}

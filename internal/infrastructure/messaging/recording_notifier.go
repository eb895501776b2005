package messaging

import (
	"context"
	"errors"
	"sync"

	"github.com/gigmile/loan-engine/internal/domain"
	"go.uber.org/zap"
)

var (
	ErrRecordingAlreadyStarted = errors.New("event recording already started")
	ErrRecordingNotStarted     = errors.New("event recording not started")
)

// RecordingEventNotifier buffers business events between Start and Stop and
// hands the whole window to the publisher on Stop. Outside a window events are
// published immediately. Create one per engine operation.
type RecordingEventNotifier struct {
	publisher domain.EventPublisher
	logger    *zap.Logger

	mu        sync.Mutex
	recording bool
	buffer    []domain.DomainEvent
}

func NewRecordingEventNotifier(publisher domain.EventPublisher, logger *zap.Logger) *RecordingEventNotifier {
	return &RecordingEventNotifier{
		publisher: publisher,
		logger:    logger,
	}
}

func (n *RecordingEventNotifier) StartExternalEventRecording() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.recording {
		return ErrRecordingAlreadyStarted
	}
	n.recording = true
	n.buffer = nil
	return nil
}

func (n *RecordingEventNotifier) NotifyPostBusinessEvent(ctx context.Context, event domain.DomainEvent) error {
	n.mu.Lock()
	if n.recording {
		n.buffer = append(n.buffer, event)
		n.mu.Unlock()
		return nil
	}
	n.mu.Unlock()

	return n.publisher.PublishBatch(ctx, []domain.DomainEvent{event})
}

// StopExternalEventRecording publishes the window. On failure the window stays
// open; the caller resets it.
func (n *RecordingEventNotifier) StopExternalEventRecording(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.recording {
		return ErrRecordingNotStarted
	}
	if err := n.publisher.PublishBatch(ctx, n.buffer); err != nil {
		return err
	}

	n.logger.Debug("event recording window published", zap.Int("count", len(n.buffer)))
	n.recording = false
	n.buffer = nil
	return nil
}

func (n *RecordingEventNotifier) ResetEventRecording() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if len(n.buffer) > 0 {
		n.logger.Warn("discarding unpublished business events", zap.Int("count", len(n.buffer)))
	}
	n.recording = false
	n.buffer = nil
}

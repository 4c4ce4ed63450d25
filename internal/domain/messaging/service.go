package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"unicast/internal/common"
)

// Enqueuer defines the contract for enqueuing deferred dispatch tasks.
// This keeps the service decoupled from the concrete queue implementation.
type Enqueuer interface {
	EnqueueDispatch(req DispatchRequest, at time.Time) error
}

// Service is the entry point for the messaging domain: synchronous batch
// dispatch, deferred dispatch via the queue, message history, and
// delivery confirmations from provider webhooks.
type Service struct {
	dispatcher *Dispatcher
	store      MessageStore
	events     EventStore
	enqueuer   Enqueuer
}

// NewService creates a new messaging service. enqueuer may be nil when
// scheduling is not wired (e.g. the queue worker itself).
func NewService(dispatcher *Dispatcher, store MessageStore, events EventStore, enqueuer Enqueuer) *Service {
	return &Service{
		dispatcher: dispatcher,
		store:      store,
		events:     events,
		enqueuer:   enqueuer,
	}
}

// Dispatch runs one synchronous batch.
func (s *Service) Dispatch(ctx context.Context, req DispatchRequest) (*BatchResult, error) {
	return s.dispatcher.Dispatch(ctx, req)
}

// Schedule validates the batch's call-level preconditions now and
// enqueues the dispatch to run at sendAt. The queue worker re-runs the
// full precondition checks at execution time; this early pass only spares
// the organizer a silently dropped task.
func (s *Service) Schedule(ctx context.Context, req DispatchRequest, sendAt time.Time) error {
	if s.enqueuer == nil {
		return common.NewValidationError("scheduling is not enabled")
	}
	if len(req.RecipientIDs) == 0 {
		return common.NewValidationError("recipient ids are required")
	}
	if len(req.Channels) == 0 {
		return common.NewValidationError("at least one channel is required")
	}
	if !IsValidType(req.Type) {
		return common.NewValidationError(fmt.Sprintf("unsupported message type: %s", req.Type))
	}

	event, err := s.events.FindByID(ctx, req.EventID)
	if err != nil {
		return fmt.Errorf("fetching event: %w", err)
	}
	if event == nil {
		return common.NewNotFoundError("event", req.EventID)
	}
	if event.OrganizerID != req.RequesterID {
		return common.NewForbiddenError("only the event organizer can schedule messages")
	}

	if err := s.enqueuer.EnqueueDispatch(req, sendAt); err != nil {
		return fmt.Errorf("enqueuing dispatch: %w", err)
	}

	slog.Info("dispatch scheduled",
		"event_id", req.EventID,
		"type", req.Type,
		"recipients", len(req.RecipientIDs),
		"send_at", sendAt,
	)
	return nil
}

// ListMessages retrieves all message records for an event, newest first.
// Only the event's organizer may view them.
func (s *Service) ListMessages(ctx context.Context, eventID, requesterID string) ([]*Message, error) {
	event, err := s.events.FindByID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("fetching event: %w", err)
	}
	if event == nil {
		return nil, common.NewNotFoundError("event", eventID)
	}
	if event.OrganizerID != requesterID {
		return nil, common.NewForbiddenError("only the event organizer can view messages")
	}

	msgs, err := s.store.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	return msgs, nil
}

// ConfirmDelivery processes an asynchronous delivery confirmation from a
// provider webhook. The only transition it performs is sent to delivered,
// keyed by the provider's external id; anything else, including webhook
// redelivery, is a no-op at the store level.
func (s *Service) ConfirmDelivery(ctx context.Context, externalID string) error {
	if externalID == "" {
		return common.NewValidationError("external id is required")
	}

	if err := s.store.MarkDelivered(ctx, externalID); err != nil {
		return fmt.Errorf("confirming delivery: %w", err)
	}

	slog.Info("delivery confirmed", "external_id", externalID)
	return nil
}

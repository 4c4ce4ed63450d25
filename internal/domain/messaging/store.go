package messaging

import "context"

// MessageStore defines the contract for persisting message records.
// Implementations live in infra/store/ (e.g., Supabase).
//
// Records are append-mostly: created pending, finalized exactly once to
// sent or failed by the same dispatch call, and optionally moved from
// sent to delivered by a provider webhook. They are never deleted here;
// retention is an external concern.
type MessageStore interface {
	// Create inserts a new message record with status pending and
	// assigns its ID.
	Create(ctx context.Context, msg *Message) error

	// MarkSent finalizes a pending record as sent and stores the
	// provider's external id.
	MarkSent(ctx context.Context, id string, externalID string) error

	// MarkFailed finalizes a pending record as failed with a
	// human-readable reason.
	MarkFailed(ctx context.Context, id string, reason string) error

	// MarkDelivered transitions the record matching the provider's
	// external id from sent to delivered. Records in any other status
	// are left untouched, which makes webhook redelivery a no-op.
	MarkDelivered(ctx context.Context, externalID string) error

	// ListByEvent retrieves all message records for an event,
	// newest first.
	ListByEvent(ctx context.Context, eventID string) ([]*Message, error)
}

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"unicast/internal/domain/messaging"

	"github.com/supabase-community/postgrest-go"
	supa "github.com/supabase-community/supabase-go"
)

const tableName = "messages"

var _ messaging.MessageStore = (*SupabaseStore)(nil)

// SupabaseStore implements MessageStore using the Supabase Go SDK.
type SupabaseStore struct {
	client *supa.Client
}

// NewSupabaseStore creates a new Supabase-backed message store.
func NewSupabaseStore(supabaseURL, serviceKey string) (*SupabaseStore, error) {
	client, err := supa.NewClient(supabaseURL, serviceKey, nil)
	if err != nil {
		return nil, fmt.Errorf("creating supabase client: %w", err)
	}
	return &SupabaseStore{client: client}, nil
}

// messageRow is the internal representation for Supabase PostgREST
// insert/update.
type messageRow struct {
	ID          string  `json:"id,omitempty"`
	EventID     string  `json:"event_id"`
	SenderID    string  `json:"sender_id"`
	RecipientID string  `json:"recipient_id"`
	Type        string  `json:"type"`
	Channel     string  `json:"channel"`
	Subject     *string `json:"subject,omitempty"`
	Body        string  `json:"body"`
	Status      string  `json:"status"`
	ExternalID  *string `json:"external_id,omitempty"`
	Error       *string `json:"error,omitempty"`
	SentAt      *string `json:"sent_at,omitempty"`
	CreatedAt   string  `json:"created_at,omitempty"`
	UpdatedAt   string  `json:"updated_at,omitempty"`
}

// Create inserts a new message record with status pending.
func (s *SupabaseStore) Create(ctx context.Context, msg *messaging.Message) error {
	row := messageRow{
		EventID:     msg.EventID,
		SenderID:    msg.SenderID,
		RecipientID: msg.RecipientID,
		Type:        string(msg.Type),
		Channel:     string(msg.Channel),
		Body:        msg.Body,
		Status:      string(messaging.StatusPending),
	}
	if msg.Subject != "" {
		row.Subject = &msg.Subject
	}

	data, _, err := s.client.From(tableName).Insert(row, false, "", "representation", "").Execute()
	if err != nil {
		return fmt.Errorf("inserting message record: %w", err)
	}

	var results []messageRow
	if err := json.Unmarshal(data, &results); err != nil {
		return fmt.Errorf("parsing insert response: %w", err)
	}

	if len(results) > 0 {
		msg.ID = results[0].ID
		msg.Status = messaging.MessageStatus(results[0].Status)
		if t, err := time.Parse(time.RFC3339Nano, results[0].CreatedAt); err == nil {
			msg.CreatedAt = t
		}
		if t, err := time.Parse(time.RFC3339Nano, results[0].UpdatedAt); err == nil {
			msg.UpdatedAt = t
		}
	}

	return nil
}

// MarkSent finalizes a pending record as sent with the provider's id.
// sent_at records the moment the attempt concluded.
func (s *SupabaseStore) MarkSent(ctx context.Context, id string, externalID string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	update := map[string]any{
		"status":      string(messaging.StatusSent),
		"external_id": externalID,
		"sent_at":     now,
		"updated_at":  now,
	}

	_, _, err := s.client.From(tableName).Update(update, "", "").
		Eq("id", id).
		Eq("status", string(messaging.StatusPending)).
		Execute()
	if err != nil {
		return fmt.Errorf("marking message sent: %w", err)
	}
	return nil
}

// MarkFailed finalizes a pending record as failed with a reason. The
// external_id column is left null so it stays mutually exclusive with
// error.
func (s *SupabaseStore) MarkFailed(ctx context.Context, id string, reason string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	update := map[string]any{
		"status":     string(messaging.StatusFailed),
		"error":      reason,
		"sent_at":    now,
		"updated_at": now,
	}

	_, _, err := s.client.From(tableName).Update(update, "", "").
		Eq("id", id).
		Eq("status", string(messaging.StatusPending)).
		Execute()
	if err != nil {
		return fmt.Errorf("marking message failed: %w", err)
	}
	return nil
}

// MarkDelivered transitions the record with the given external id from
// sent to delivered. The status guard makes webhook redelivery, and
// callbacks for already failed records, a no-op.
func (s *SupabaseStore) MarkDelivered(ctx context.Context, externalID string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	update := map[string]any{
		"status":     string(messaging.StatusDelivered),
		"updated_at": now,
	}

	_, _, err := s.client.From(tableName).Update(update, "", "").
		Eq("external_id", externalID).
		Eq("status", string(messaging.StatusSent)).
		Execute()
	if err != nil {
		return fmt.Errorf("marking message delivered: %w", err)
	}
	return nil
}

// ListByEvent retrieves all message records for an event, newest first.
func (s *SupabaseStore) ListByEvent(ctx context.Context, eventID string) ([]*messaging.Message, error) {
	data, _, err := s.client.From(tableName).
		Select("*", "exact", false).
		Eq("event_id", eventID).
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}

	var rows []messageRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parsing message list: %w", err)
	}

	msgs := make([]*messaging.Message, len(rows))
	for i := range rows {
		msgs[i] = rowToMessage(&rows[i])
	}
	return msgs, nil
}

// rowToMessage converts a messageRow to a messaging.Message.
func rowToMessage(row *messageRow) *messaging.Message {
	msg := &messaging.Message{
		ID:          row.ID,
		EventID:     row.EventID,
		SenderID:    row.SenderID,
		RecipientID: row.RecipientID,
		Type:        messaging.MessageType(row.Type),
		Channel:     messaging.Channel(row.Channel),
		Body:        row.Body,
		Status:      messaging.MessageStatus(row.Status),
	}

	if row.Subject != nil {
		msg.Subject = *row.Subject
	}
	if row.ExternalID != nil {
		msg.ExternalID = *row.ExternalID
	}
	if row.Error != nil {
		msg.Error = *row.Error
	}
	if row.SentAt != nil {
		if t, err := time.Parse(time.RFC3339Nano, *row.SentAt); err == nil {
			msg.SentAt = &t
		}
	}
	if row.CreatedAt != "" {
		if t, err := time.Parse(time.RFC3339Nano, row.CreatedAt); err == nil {
			msg.CreatedAt = t
		}
	}
	if row.UpdatedAt != "" {
		if t, err := time.Parse(time.RFC3339Nano, row.UpdatedAt); err == nil {
			msg.UpdatedAt = t
		}
	}

	return msg
}

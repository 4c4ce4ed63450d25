package messaging

import "time"

// Channel represents a message delivery channel.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelInApp Channel = "in-app"
)

// validChannels is the set of all recognized channels.
var validChannels = map[Channel]bool{
	ChannelEmail: true,
	ChannelSMS:   true,
	ChannelInApp: true,
}

// IsValidChannel checks whether a channel is recognized.
func IsValidChannel(ch Channel) bool {
	return validChannels[ch]
}

// MessageType enumerates all supported message types.
type MessageType string

const (
	TypeInvitation MessageType = "invitation"
	TypeReminder   MessageType = "reminder"
	TypeThankYou   MessageType = "thank-you"
	TypeUpdate     MessageType = "update"
	TypeCustom     MessageType = "custom"
)

// validTypes is the set of all recognized message types.
var validTypes = map[MessageType]bool{
	TypeInvitation: true,
	TypeReminder:   true,
	TypeThankYou:   true,
	TypeUpdate:     true,
	TypeCustom:     true,
}

// IsValidType checks whether a message type is recognized.
func IsValidType(t MessageType) bool {
	return validTypes[t]
}

// MessageStatus represents the delivery status of a message record.
//
// The synchronous dispatch path writes pending first and finalizes to
// exactly one of sent/failed. A provider webhook may later move a sent
// record to delivered; no other transitions exist.
type MessageStatus string

const (
	StatusPending   MessageStatus = "pending"
	StatusSent      MessageStatus = "sent"
	StatusFailed    MessageStatus = "failed"
	StatusDelivered MessageStatus = "delivered"
)

// Message is the durable audit record for one (event, recipient, channel)
// send attempt. ExternalID and Error are mutually exclusive: a record
// carries the provider's id when the attempt succeeded, or a failure
// reason when it did not, never both.
type Message struct {
	ID          string        `json:"id"`
	EventID     string        `json:"event_id"`
	SenderID    string        `json:"sender_id"`
	RecipientID string        `json:"recipient_id"`
	Type        MessageType   `json:"type"`
	Channel     Channel       `json:"channel"`
	Subject     string        `json:"subject,omitempty"`
	Body        string        `json:"body"`
	Status      MessageStatus `json:"status"`
	ExternalID  string        `json:"external_id,omitempty"`
	Error       string        `json:"error,omitempty"`
	SentAt      *time.Time    `json:"sent_at,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// DispatchRequest describes one batch: all (recipient, channel) cells for
// one event and one message type.
type DispatchRequest struct {
	EventID      string      `json:"event_id"`
	RequesterID  string      `json:"requester_id"`
	RecipientIDs []string    `json:"recipient_ids"`
	Channels     []Channel   `json:"channels"`
	Type         MessageType `json:"type"`
}

// CellResult is the outcome of a single (recipient, channel) cell.
type CellResult struct {
	Recipient string        `json:"recipient"`
	Channel   Channel       `json:"channel"`
	MessageID string        `json:"messageId,omitempty"`
	Status    MessageStatus `json:"status"`
	Error     string        `json:"error,omitempty"`
}

// BatchResult aggregates all cell outcomes of one dispatch call.
// Sent + Failed always equals len(Cells); a fully failed batch is still
// a successful call.
type BatchResult struct {
	Sent   int
	Failed int
	Cells  []CellResult
}

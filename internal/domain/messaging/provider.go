package messaging

import (
	"context"
	"errors"
)

// ErrNotConfigured indicates a provider is missing its credentials.
// Providers must return it (possibly wrapped) without attempting any
// network I/O, so a half-configured deployment degrades to per-cell
// failures instead of crashing batches.
var ErrNotConfigured = errors.New("provider not configured")

// Content is the rendered message content for one cell. Subject is empty
// for the sms and in-app channels; HTMLBody is only populated for email.
type Content struct {
	Subject  string
	Body     string
	HTMLBody string
}

// Provider defines the contract for a single external transport.
// Implementations live in infra/ (SendGrid for email, Twilio for SMS)
// and are stateless across calls; retries, if any, belong to the caller.
type Provider interface {
	// Send delivers rendered content to a destination address and
	// returns the provider's opaque message id. All transport-level
	// errors surface as plain errors; the dispatcher does not
	// distinguish provider-specific failure modes.
	Send(ctx context.Context, destination string, content Content) (string, error)

	// Channel returns which delivery channel this provider handles.
	Channel() Channel
}

// TemplateRenderer defines the contract for producing message content.
// Render is pure: deterministic, side-effect free, and never fails for a
// structurally valid event and recipient.
type TemplateRenderer interface {
	Render(event *Event, recipient *User, msgType MessageType, channel Channel) (Content, error)
}

// RecipientLimiter caps how many messages one destination address may
// receive per window. Implementations live in infra/ratelimit/. The
// dispatcher fails open when the limiter itself errors.
type RecipientLimiter interface {
	Allow(ctx context.Context, destination string) (bool, error)
}

package messaging

import (
	"errors"
	"fmt"
)

// Sentinel reasons for contact resolution failures. Both are cell-level:
// they fail the one (recipient, channel) cell and never abort a batch.
var (
	ErrNoContactAddress = errors.New("no contact address")
	ErrOptedOut         = errors.New("notifications disabled")
)

// ContactResolver maps a user and a channel to the destination address a
// provider can deliver to. It performs no normalization; whatever format
// a provider requires (e.g. E.164 phone numbers) is the provider's
// concern.
type ContactResolver struct{}

// NewContactResolver creates a new ContactResolver.
func NewContactResolver() *ContactResolver {
	return &ContactResolver{}
}

// Resolve returns the destination address for the given channel, or a
// wrapped ErrNoContactAddress / ErrOptedOut. The user record has already
// been loaded by the dispatcher; resolution itself is a pure function of
// that record.
func (r *ContactResolver) Resolve(user *User, channel Channel) (string, error) {
	switch channel {
	case ChannelEmail:
		if user.Email == "" {
			return "", fmt.Errorf("no email address: %w", ErrNoContactAddress)
		}
		if !user.Preferences.EmailNotifications {
			return "", fmt.Errorf("email: %w", ErrOptedOut)
		}
		return user.Email, nil
	case ChannelSMS:
		if user.Phone == "" {
			return "", fmt.Errorf("no phone number: %w", ErrNoContactAddress)
		}
		if !user.Preferences.SMSNotifications {
			return "", fmt.Errorf("sms: %w", ErrOptedOut)
		}
		return user.Phone, nil
	case ChannelInApp:
		// In-app messages address the user record itself.
		return user.ID, nil
	default:
		return "", fmt.Errorf("unsupported channel %q: %w", channel, ErrNoContactAddress)
	}
}

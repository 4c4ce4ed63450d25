package messaging

import (
	"context"
	"time"
)

// Preferences holds a user's per-channel notification opt-ins.
type Preferences struct {
	EmailNotifications bool `json:"emailNotifications"`
	SMSNotifications   bool `json:"smsNotifications"`
}

// User is the slice of the externally owned user record this subsystem
// reads: identity, contact addresses, and channel preferences. This
// subsystem never mutates users.
type User struct {
	ID          string      `json:"id"`
	Username    string      `json:"username"`
	Email       string      `json:"email,omitempty"`
	Phone       string      `json:"phone,omitempty"`
	Preferences Preferences `json:"preferences"`
}

// Event is the slice of the externally owned event record this subsystem
// reads. Time, Location and Description are optional; templates omit
// what is absent.
type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Date        time.Time `json:"date"`
	Time        string    `json:"time,omitempty"`
	Location    string    `json:"location,omitempty"`
	OrganizerID string    `json:"organizer_id"`
}

// UserDirectory defines the read-only contract against the external
// user store. Implementations live in infra/directory/.
type UserDirectory interface {
	// FindByID retrieves a user by id. Returns nil, nil when the user
	// does not exist.
	FindByID(ctx context.Context, id string) (*User, error)

	// FindByIDs retrieves the users matching the given ids. Unknown ids
	// are silently absent from the result.
	FindByIDs(ctx context.Context, ids []string) ([]*User, error)
}

// EventStore defines the read-only contract against the external event
// store. Returns nil, nil when the event does not exist.
type EventStore interface {
	FindByID(ctx context.Context, id string) (*Event, error)
}

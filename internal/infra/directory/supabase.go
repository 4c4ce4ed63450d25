package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"unicast/internal/domain/messaging"

	supa "github.com/supabase-community/supabase-go"
)

const (
	usersTable  = "users"
	eventsTable = "events"
)

var (
	_ messaging.UserDirectory = (*SupabaseDirectory)(nil)
	_ messaging.EventStore    = (*SupabaseEvents)(nil)
)

// SupabaseDirectory is the read-only view over the externally owned users
// table, via the Supabase Go SDK. The messaging subsystem never writes
// through it.
type SupabaseDirectory struct {
	client *supa.Client
}

// SupabaseEvents is the read-only view over the externally owned events
// table.
type SupabaseEvents struct {
	client *supa.Client
}

// NewSupabaseDirectory creates a new Supabase-backed directory.
func NewSupabaseDirectory(supabaseURL, serviceKey string) (*SupabaseDirectory, error) {
	client, err := supa.NewClient(supabaseURL, serviceKey, nil)
	if err != nil {
		return nil, fmt.Errorf("creating supabase client: %w", err)
	}
	return &SupabaseDirectory{client: client}, nil
}

// userRow mirrors the users table. Preferences use pointers so absent
// values can fall back to the platform defaults: email notifications on,
// SMS notifications off (opt-in).
type userRow struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Preferences *struct {
		EmailNotifications *bool `json:"emailNotifications"`
		SMSNotifications   *bool `json:"smsNotifications"`
	} `json:"preferences"`
}

// eventRow mirrors the events table.
type eventRow struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Location    string `json:"location"`
	OrganizerID string `json:"organizer_id"`
}

// FindByID retrieves a single user. Returns nil, nil when absent.
func (d *SupabaseDirectory) FindByID(ctx context.Context, id string) (*messaging.User, error) {
	users, err := d.FindByIDs(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}
	return users[0], nil
}

// FindByIDs retrieves the users matching the given ids. Unknown ids are
// silently absent from the result.
func (d *SupabaseDirectory) FindByIDs(ctx context.Context, ids []string) ([]*messaging.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	data, _, err := d.client.From(usersTable).
		Select("id,username,email,phone,preferences", "exact", false).
		In("id", ids).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("fetching users: %w", err)
	}

	var rows []userRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parsing users: %w", err)
	}

	users := make([]*messaging.User, len(rows))
	for i := range rows {
		users[i] = rowToUser(&rows[i])
	}
	return users, nil
}

// Events returns the event-store view sharing this directory's client.
func (d *SupabaseDirectory) Events() *SupabaseEvents {
	return &SupabaseEvents{client: d.client}
}

// FindByID retrieves a single event. Returns nil, nil when absent.
func (e *SupabaseEvents) FindByID(ctx context.Context, id string) (*messaging.Event, error) {
	data, _, err := e.client.From(eventsTable).
		Select("id,title,description,date,time,location,organizer_id", "exact", false).
		Eq("id", id).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("fetching event: %w", err)
	}

	var rows []eventRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parsing event: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rowToEvent(&rows[0]), nil
}

func rowToUser(row *userRow) *messaging.User {
	user := &messaging.User{
		ID:       row.ID,
		Username: row.Username,
		Email:    row.Email,
		Phone:    row.Phone,
		Preferences: messaging.Preferences{
			EmailNotifications: true,
			SMSNotifications:   false,
		},
	}
	if row.Preferences != nil {
		if row.Preferences.EmailNotifications != nil {
			user.Preferences.EmailNotifications = *row.Preferences.EmailNotifications
		}
		if row.Preferences.SMSNotifications != nil {
			user.Preferences.SMSNotifications = *row.Preferences.SMSNotifications
		}
	}
	return user
}

func rowToEvent(row *eventRow) *messaging.Event {
	event := &messaging.Event{
		ID:          row.ID,
		Title:       row.Title,
		Description: row.Description,
		Time:        row.Time,
		Location:    row.Location,
		OrganizerID: row.OrganizerID,
	}
	if t, err := time.Parse(time.RFC3339, row.Date); err == nil {
		event.Date = t
	}
	return event
}

package messaging

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// memStore is an in-memory MessageStore for tests. It is safe for
// concurrent use, like the real store.
type memStore struct {
	mu      sync.Mutex
	nextID  int
	records map[string]*Message
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]*Message)}
}

func (s *memStore) Create(ctx context.Context, msg *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	msg.ID = fmt.Sprintf("msg-%d", s.nextID)
	msg.Status = StatusPending
	msg.CreatedAt = time.Now()
	stored := *msg
	s.records[msg.ID] = &stored
	return nil
}

func (s *memStore) MarkSent(ctx context.Context, id string, externalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return fmt.Errorf("record not found: %s", id)
	}
	now := time.Now()
	rec.Status = StatusSent
	rec.ExternalID = externalID
	rec.SentAt = &now
	return nil
}

func (s *memStore) MarkFailed(ctx context.Context, id string, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return fmt.Errorf("record not found: %s", id)
	}
	now := time.Now()
	rec.Status = StatusFailed
	rec.Error = reason
	rec.SentAt = &now
	return nil
}

func (s *memStore) MarkDelivered(ctx context.Context, externalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.records {
		if rec.ExternalID == externalID && rec.Status == StatusSent {
			rec.Status = StatusDelivered
		}
	}
	return nil
}

func (s *memStore) ListByEvent(ctx context.Context, eventID string) ([]*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Message
	for _, rec := range s.records {
		if rec.EventID == eventID {
			copied := *rec
			out = append(out, &copied)
		}
	}
	return out, nil
}

// all returns a snapshot of every record.
func (s *memStore) all() []*Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Message, 0, len(s.records))
	for _, rec := range s.records {
		copied := *rec
		out = append(out, &copied)
	}
	return out
}

// stubDirectory serves users from a fixed set, preserving request order
// and silently dropping unknown ids.
type stubDirectory struct {
	users map[string]*User
}

func (d *stubDirectory) FindByID(ctx context.Context, id string) (*User, error) {
	return d.users[id], nil
}

func (d *stubDirectory) FindByIDs(ctx context.Context, ids []string) ([]*User, error) {
	var out []*User
	for _, id := range ids {
		if u, ok := d.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

// stubEvents serves events from a fixed set.
type stubEvents struct {
	events map[string]*Event
}

func (e *stubEvents) FindByID(ctx context.Context, id string) (*Event, error) {
	return e.events[id], nil
}

// fakeProvider is a configurable Provider for tests.
type fakeProvider struct {
	channel Channel
	err     error
	onSend  func()

	mu    sync.Mutex
	calls int
}

func (p *fakeProvider) Send(ctx context.Context, destination string, content Content) (string, error) {
	p.mu.Lock()
	p.calls++
	n := p.calls
	p.mu.Unlock()
	if p.onSend != nil {
		p.onSend()
	}
	if p.err != nil {
		return "", p.err
	}
	return fmt.Sprintf("ext-%s-%d", p.channel, n), nil
}

func (p *fakeProvider) Channel() Channel { return p.channel }

func (p *fakeProvider) sendCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// staticRenderer is a trivial deterministic TemplateRenderer.
type staticRenderer struct{}

func (staticRenderer) Render(event *Event, recipient *User, msgType MessageType, channel Channel) (Content, error) {
	content := Content{
		Body: fmt.Sprintf("%s: %s for %s", msgType, event.Title, recipient.Username),
	}
	if channel == ChannelEmail {
		content.Subject = fmt.Sprintf("%s: %s", msgType, event.Title)
	}
	return content, nil
}

// panicRenderer always panics, for the recovery path.
type panicRenderer struct{}

func (panicRenderer) Render(event *Event, recipient *User, msgType MessageType, channel Channel) (Content, error) {
	panic("renderer exploded")
}

// stubLimiter denies destinations in the deny set and can simulate a
// broken limiter backend.
type stubLimiter struct {
	deny map[string]bool
	err  error
}

func (l *stubLimiter) Allow(ctx context.Context, destination string) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	return !l.deny[destination], nil
}

package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"unicast/internal/common"
)

// Dispatcher fans one batch out over the cartesian product of resolved
// recipients and requested channels. Every cell is independent: it owns
// exactly one message record for its lifetime, and no cell's failure
// affects any other cell. Partial failure is the expected case, not an
// exceptional one.
type Dispatcher struct {
	events    EventStore
	users     UserDirectory
	store     MessageStore
	resolver  *ContactResolver
	renderer  TemplateRenderer
	providers map[Channel]Provider
	limiter   RecipientLimiter
	workers   int
}

// NewDispatcher creates a dispatcher. workers bounds the per-batch
// fan-out against external providers; limiter may be nil to disable the
// per-recipient send cap.
func NewDispatcher(
	events EventStore,
	users UserDirectory,
	store MessageStore,
	renderer TemplateRenderer,
	limiter RecipientLimiter,
	workers int,
	providers ...Provider,
) *Dispatcher {
	pm := make(map[Channel]Provider, len(providers))
	for _, p := range providers {
		pm[p.Channel()] = p
	}
	if workers < 1 {
		workers = 1
	}
	return &Dispatcher{
		events:    events,
		users:     users,
		store:     store,
		resolver:  NewContactResolver(),
		renderer:  renderer,
		providers: pm,
		limiter:   limiter,
		workers:   workers,
	}
}

// cell is one (recipient, channel) pair within a batch.
type cell struct {
	recipient *User
	channel   Channel
}

// Dispatch runs one batch. It returns an error only for the call-level
// preconditions: malformed request, unknown event, requester not the
// organizer, or an empty resolved work set. Any batch outcome past those
// checks, including every cell failing, is a result rather than an error.
func (d *Dispatcher) Dispatch(ctx context.Context, req DispatchRequest) (*BatchResult, error) {
	start := time.Now()

	event, recipients, err := d.checkPreconditions(ctx, req)
	if err != nil {
		return nil, err
	}

	cells := make([]cell, 0, len(recipients)*len(req.Channels))
	for _, r := range recipients {
		for _, ch := range req.Channels {
			cells = append(cells, cell{recipient: r, channel: ch})
		}
	}

	workers := d.workers
	if workers > len(cells) {
		workers = len(cells)
	}

	jobs := make(chan cell)
	outcomes := make(chan CellResult, len(cells))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range jobs {
				outcomes <- d.runCell(ctx, event, req, c)
			}
		}()
	}

	// Feed cells until done or cancelled. A cancelled batch skips cells
	// that have not started; they never get a message record. Cells
	// already handed to a worker run to completion so their records are
	// finalized rather than left pending.
feed:
	for _, c := range cells {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- c:
		}
	}
	close(jobs)
	wg.Wait()
	close(outcomes)

	result := &BatchResult{Cells: make([]CellResult, 0, len(cells))}
	for outcome := range outcomes {
		result.Cells = append(result.Cells, outcome)
		if outcome.Status == StatusSent {
			result.Sent++
		} else {
			result.Failed++
		}
	}

	slog.Info("batch dispatched",
		"event_id", req.EventID,
		"type", req.Type,
		"cells", len(result.Cells),
		"sent", result.Sent,
		"failed", result.Failed,
		"duration", time.Since(start),
	)

	return result, nil
}

// checkPreconditions enforces the call-level checks, all of which run
// before any message record exists. Authorization is checked once for
// the whole batch.
func (d *Dispatcher) checkPreconditions(ctx context.Context, req DispatchRequest) (*Event, []*User, error) {
	if len(req.RecipientIDs) == 0 {
		return nil, nil, common.NewValidationError("recipient ids are required")
	}
	if len(req.Channels) == 0 {
		return nil, nil, common.NewValidationError("at least one channel is required")
	}
	for _, ch := range req.Channels {
		if !IsValidChannel(ch) {
			return nil, nil, common.NewValidationError(fmt.Sprintf("unsupported channel: %s", ch))
		}
	}
	if !IsValidType(req.Type) {
		return nil, nil, common.NewValidationError(fmt.Sprintf("unsupported message type: %s", req.Type))
	}

	event, err := d.events.FindByID(ctx, req.EventID)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching event: %w", err)
	}
	if event == nil {
		return nil, nil, common.NewNotFoundError("event", req.EventID)
	}

	if event.OrganizerID != req.RequesterID {
		return nil, nil, common.NewForbiddenError("only the event organizer can send messages")
	}

	// Unresolvable recipient ids are dropped, not failed; the batch only
	// aborts when nobody is left to message.
	recipients, err := d.users.FindByIDs(ctx, req.RecipientIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching recipients: %w", err)
	}
	if len(recipients) == 0 {
		return nil, nil, common.NewValidationError("no valid recipients found")
	}

	return event, recipients, nil
}

// runCell processes a single cell: create the pending record, resolve the
// destination, apply the send cap, deliver, and finalize the record. It
// never returns an error; every failure mode becomes a failed CellResult.
// A panic anywhere in the cell is recovered and still finalizes the
// record as failed.
func (d *Dispatcher) runCell(ctx context.Context, event *Event, req DispatchRequest, c cell) (outcome CellResult) {
	msg := &Message{
		EventID:     req.EventID,
		SenderID:    req.RequesterID,
		RecipientID: c.recipient.ID,
		Type:        req.Type,
		Channel:     c.channel,
		Status:      StatusPending,
	}

	defer func() {
		if r := recover(); r != nil {
			reason := fmt.Sprintf("internal error: %v", r)
			if msg.ID != "" {
				if err := d.store.MarkFailed(ctx, msg.ID, reason); err != nil {
					slog.Error("failed to finalize record after panic", "message_id", msg.ID, "error", err)
				}
			}
			slog.Error("cell processing panicked",
				"event_id", req.EventID,
				"recipient", c.recipient.Username,
				"channel", c.channel,
				"panic", r,
			)
			outcome = CellResult{
				Recipient: c.recipient.Username,
				Channel:   c.channel,
				MessageID: msg.ID,
				Status:    StatusFailed,
				Error:     reason,
			}
		}
	}()

	// Rendering is pure and cannot fail for a structurally valid event,
	// so the content can be captured on the record at creation. Subject
	// and body are immutable from here on.
	content, err := d.renderer.Render(event, c.recipient, req.Type, c.channel)
	if err != nil {
		return CellResult{
			Recipient: c.recipient.Username,
			Channel:   c.channel,
			Status:    StatusFailed,
			Error:     fmt.Sprintf("rendering content: %s", err),
		}
	}
	msg.Subject = content.Subject
	msg.Body = content.Body

	// The record exists even if resolution or delivery fails below, so
	// every attempted cell is auditable.
	if err := d.store.Create(ctx, msg); err != nil {
		slog.Error("failed to create message record",
			"event_id", req.EventID,
			"recipient", c.recipient.Username,
			"channel", c.channel,
			"error", err,
		)
		return CellResult{
			Recipient: c.recipient.Username,
			Channel:   c.channel,
			Status:    StatusFailed,
			Error:     fmt.Sprintf("creating message record: %s", err),
		}
	}

	destination, err := d.resolver.Resolve(c.recipient, c.channel)
	if err != nil {
		return d.failCell(ctx, msg, c, err.Error())
	}

	if d.limiter != nil {
		allowed, err := d.limiter.Allow(ctx, destination)
		if err != nil {
			// Fail open: a broken limiter must not block the batch.
			slog.Error("send cap check failed, proceeding", "destination", destination, "error", err)
		} else if !allowed {
			return d.failCell(ctx, msg, c, fmt.Sprintf("send cap exceeded for recipient %s", c.recipient.Username))
		}
	}

	provider, ok := d.providers[c.channel]
	if !ok {
		return d.failCell(ctx, msg, c, fmt.Sprintf("no provider configured for channel %s", c.channel))
	}

	externalID, err := provider.Send(ctx, destination, content)
	if err != nil {
		return d.failCell(ctx, msg, c, err.Error())
	}

	if err := d.store.MarkSent(ctx, msg.ID, externalID); err != nil {
		slog.Error("failed to mark message sent", "message_id", msg.ID, "error", err)
	}

	return CellResult{
		Recipient: c.recipient.Username,
		Channel:   c.channel,
		MessageID: msg.ID,
		Status:    StatusSent,
	}
}

// failCell finalizes the cell's record as failed and returns the failed
// outcome.
func (d *Dispatcher) failCell(ctx context.Context, msg *Message, c cell, reason string) CellResult {
	if err := d.store.MarkFailed(ctx, msg.ID, reason); err != nil {
		slog.Error("failed to mark message failed", "message_id", msg.ID, "error", err)
	}
	return CellResult{
		Recipient: c.recipient.Username,
		Channel:   c.channel,
		MessageID: msg.ID,
		Status:    StatusFailed,
		Error:     reason,
	}
}

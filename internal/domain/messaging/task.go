package messaging

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// TaskTypeDispatch is the asynq task type for a deferred batch dispatch.
const TaskTypeDispatch = "messaging:dispatch"

// DispatchTaskPayload is the serialized payload for a deferred dispatch.
// It carries the full request so the worker can re-run the call-level
// precondition checks at execution time.
type DispatchTaskPayload struct {
	Request DispatchRequest `json:"request"`
}

// NewDispatchTask creates a new asynq task for a deferred dispatch.
func NewDispatchTask(req DispatchRequest) (*asynq.Task, error) {
	payload, err := json.Marshal(DispatchTaskPayload{Request: req})
	if err != nil {
		return nil, fmt.Errorf("marshaling task payload: %w", err)
	}
	return asynq.NewTask(TaskTypeDispatch, payload), nil
}

// ParseDispatchTaskPayload deserializes the task payload.
func ParseDispatchTaskPayload(data []byte) (*DispatchTaskPayload, error) {
	var p DispatchTaskPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshaling task payload: %w", err)
	}
	return &p, nil
}

package contracts

import "time"

// Event is one entry of a drill run journal.
type Event struct {
	EventID   string         `json:"event_id"`
	RunID     string         `json:"run_id"`
	OrderID   string         `json:"order_id,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
}

const (
	EventRunStarted    = "run.started"
	EventStepSucceeded = "step.succeeded"
	EventStepFailed    = "step.failed"
	EventRunFinished   = "run.finished"
)

package engine

import (
	"context"
	"time"
)

// EventType identifies a point in the execution timeline.
type EventType string

const (
	// EventTypeRunStarted indicates a plan run has started.
	EventTypeRunStarted EventType = "run_started"

	// EventTypeRunCompleted indicates a run finished with no failures.
	EventTypeRunCompleted EventType = "run_completed"

	// EventTypeRunFailed indicates a run stopped after a stage failure.
	EventTypeRunFailed EventType = "run_failed"

	// EventTypeStageStarted indicates a stage has begun.
	EventTypeStageStarted EventType = "stage_started"

	// EventTypeNodeStarted indicates a node handler was dispatched.
	EventTypeNodeStarted EventType = "node_started"

	// EventTypeNodeCompleted indicates a node handler succeeded.
	EventTypeNodeCompleted EventType = "node_completed"

	// EventTypeNodeFailed indicates a node handler failed.
	EventTypeNodeFailed EventType = "node_failed"
)

// Event is a timeline event emitted during plan execution.
type Event struct {
	// ID is the unique event identifier.
	ID string `json:"id"`

	// Type is the event type.
	Type EventType `json:"type"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// RunID identifies the plan run this event belongs to.
	RunID string `json:"run_id"`

	// NodeID is the execution node, if applicable.
	NodeID string `json:"node_id,omitempty"`

	// Stage is the stage order, if applicable.
	Stage int `json:"stage,omitempty"`

	// Message is a human-readable event message.
	Message string `json:"message"`
}

// EventPublisher receives execution events. Implementations may journal
// them to an append-only log, fan them out to subscribers, or drop them.
// Publishing is best-effort; publish errors never fail a run.
type EventPublisher interface {
	Publish(ctx context.Context, event *Event) error
}

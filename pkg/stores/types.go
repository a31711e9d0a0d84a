package stores

import (
	"encoding/json"
	"time"
)

// EventData is an event payload to append to a stream.
type EventData struct {
	// Type identifies the event type, e.g. "node_completed".
	Type string `json:"type"`

	// Data is the JSON-encoded event body.
	Data json.RawMessage `json:"data"`
}

// StoredEvent is an event as persisted in the log.
type StoredEvent struct {
	// Position is the global, monotonically increasing log position.
	Position int64 `json:"position"`

	// StreamID is the stream the event belongs to.
	StreamID string `json:"stream_id"`

	// Version is the 1-based position of the event within its stream.
	Version int64 `json:"version"`

	// Type identifies the event type.
	Type string `json:"type"`

	// Data is the JSON-encoded event body.
	Data json.RawMessage `json:"data"`

	// RecordedAt is when the event was appended.
	RecordedAt time.Time `json:"recorded_at"`
}

// AppendResult reports the outcome of an append.
type AppendResult struct {
	// NextExpectedVersion is the stream version after the append; passing
	// it as expectedVersion on the next append detects lost updates.
	NextExpectedVersion int64 `json:"next_expected_version"`

	// Position is the global position of the last appended event.
	Position int64 `json:"position"`
}

// AnyVersion disables the optimistic-concurrency check on append.
const AnyVersion int64 = -1

// SubscriptionHandler receives events as they are appended.
type SubscriptionHandler func(event StoredEvent)

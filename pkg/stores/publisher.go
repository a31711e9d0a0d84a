package stores

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/veridag/veridag/pkg/engine"
)

// RunJournal adapts the event log to engine.EventPublisher: each execution
// event is appended to the "run:<run id>" stream. Appends use AnyVersion
// since the executor is the stream's only writer during a run.
type RunJournal struct {
	log *EventLog
}

// NewRunJournal creates a journal over the given event log.
func NewRunJournal(log *EventLog) *RunJournal {
	return &RunJournal{log: log}
}

// Publish implements engine.EventPublisher.
func (j *RunJournal) Publish(ctx context.Context, event *engine.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	_, err = j.log.Append(ctx, RunStreamID(event.RunID), []EventData{{
		Type: string(event.Type),
		Data: data,
	}}, AnyVersion)
	return err
}

// RunStreamID returns the event-log stream id for a run.
func RunStreamID(runID string) string {
	return "run:" + runID
}

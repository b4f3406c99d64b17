package events

import (
	"context"
	"errors"
	"time"

	"task-tracker-api/internal/models"
)

// Type names a task change.
type Type string

const (
	TaskCreated Type = "task_created"
	TaskUpdated Type = "task_updated"
	TaskDeleted Type = "task_deleted"
)

// SchemaVersion is bumped whenever the Event wire shape changes.
const SchemaVersion = 1

// Event describes one committed change to a task. PreviousStatus is only
// set on updates that moved the task to another status.
type Event struct {
	Type           Type      `json:"type"`
	TaskID         int64     `json:"taskId"`
	Status         string    `json:"status,omitempty"`
	PreviousStatus string    `json:"previousStatus,omitempty"`
	TaskVersion    int       `json:"taskVersion,omitempty"`
	Version        int       `json:"version"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// ForTask builds an event from the record the store returned.
func ForTask(typ Type, task models.Task) Event {
	return Event{
		Type:        typ,
		TaskID:      task.ID,
		Status:      task.Status,
		TaskVersion: task.Version,
		Version:     SchemaVersion,
		OccurredAt:  time.Now().UTC(),
	}
}

// StatusChangedFrom records the status the task had before the change.
// Nothing is recorded when the status did not change.
func (e Event) StatusChangedFrom(previous string) Event {
	if previous != e.Status {
		e.PreviousStatus = previous
	}
	return e
}

// Publisher delivers task events to interested parties.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// Multi fans an event out to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, evt Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

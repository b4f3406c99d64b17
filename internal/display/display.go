// Package display shapes stored task records for API responses.
//
// Persisted timestamps are always UTC. Every value leaving the service has its
// createdAt converted into a single configured display zone, and start/end
// dates are reduced to calendar dates on every write.
package display

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"task-tracker-api/internal/models"
)

// DefaultZone is India Standard Time (UTC+05:30).
const DefaultZone = "Asia/Kolkata"

// Adapter converts records between their stored and display forms.
type Adapter struct {
	loc *time.Location
}

// New returns an adapter that presents timestamps in loc.
func New(loc *time.Location) *Adapter {
	if loc == nil {
		loc = time.UTC
	}
	return &Adapter{loc: loc}
}

// Load resolves a zone name. A failure here is a startup configuration error.
func Load(name string) (*Adapter, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load display time zone %q: %w", name, err)
	}
	return New(loc), nil
}

// Location returns the display zone.
func (a *Adapter) Location() *time.Location {
	return a.loc
}

// Present returns a copy of t with createdAt in the display zone.
func (a *Adapter) Present(t models.Task) models.Task {
	t.CreatedAt = t.CreatedAt.In(a.loc)
	return t
}

// PresentAll converts every record in place and returns the slice.
func (a *Adapter) PresentAll(tasks []models.Task) []models.Task {
	for i := range tasks {
		tasks[i] = a.Present(tasks[i])
	}
	return tasks
}

// Normalize strips any time-of-day from the start and end dates.
func (a *Adapter) Normalize(t *models.Task) {
	t.StartDate = t.StartDate.Truncate()
	t.EndDate = t.EndDate.Truncate()
}

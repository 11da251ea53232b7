package domain

import (
	"strings"
	"time"
)

// RecurrenceEvent is a dated business event (permit issue, inspection,
// commissioning) that EVENT_BASED rules offset from.
type RecurrenceEvent struct {
	ID        string
	EventType string
	Name      string
	EventDate time.Time
	Metadata  map[string]any
	Lifecycle Lifecycle
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (e *RecurrenceEvent) IsActive() bool {
	return e.Lifecycle == LifecycleActive
}

func (e *RecurrenceEvent) Validate() error {
	if strings.TrimSpace(e.EventType) == "" {
		return NewValidationError("event_type", "is required")
	}
	if strings.TrimSpace(e.Name) == "" {
		return NewValidationError("name", "is required")
	}
	if e.EventDate.IsZero() {
		return NewValidationError("event_date", "is required")
	}
	if e.Lifecycle != LifecycleActive && e.Lifecycle != LifecycleInactive {
		return NewValidationError("lifecycle", "unrecognized lifecycle %q", e.Lifecycle)
	}
	return nil
}

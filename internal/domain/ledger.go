package domain

import (
	"math"
	"strings"
	"time"
)

// MeasurementIncrement is one ledger row for a rolling total, e.g. hours a
// generator ran on a given day.
type MeasurementIncrement struct {
	ID         string
	SubjectID  string
	RecordedOn time.Time
	Amount     float64
	Note       string
	CreatedAt  time.Time
}

func (m *MeasurementIncrement) Validate() error {
	if strings.TrimSpace(m.SubjectID) == "" {
		return NewValidationError("subject_id", "is required")
	}
	if m.RecordedOn.IsZero() {
		return NewValidationError("recorded_on", "is required")
	}
	if math.IsNaN(m.Amount) || math.IsInf(m.Amount, 0) {
		return NewValidationError("amount", "must be a finite number")
	}
	return nil
}

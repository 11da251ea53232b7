package recurrence

import (
	"math"
	"time"

	"github.com/alexanderramin/duecycle/internal/domain"
)

// Window is a half-open civil date range [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether the civil date of t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	d := domain.Civil(t)
	return !d.Before(w.Start) && d.Before(w.End)
}

// WindowFor returns the accumulation window containing observation.
//
// ANNUAL windows run from the anniversary's month/day in the latest year
// not after observation up to the next anniversary. A Feb 29 anniversary
// falls on Feb 28 in non-leap years. MONTHLY windows are the calendar month
// of observation.
func WindowFor(anniversary, observation time.Time, g domain.Granularity) (Window, error) {
	obs := domain.Civil(observation)
	switch g {
	case domain.GranularityAnnual:
		ann := domain.Civil(anniversary)
		start := anniversaryIn(ann, obs.Year())
		if start.After(obs) {
			start = anniversaryIn(ann, obs.Year()-1)
		}
		end := anniversaryIn(ann, start.Year()+1)
		if err := CheckRange(end); err != nil {
			return Window{}, err
		}
		return Window{Start: start, End: end}, nil
	case domain.GranularityMonthly:
		start := time.Date(obs.Year(), obs.Month(), 1, 0, 0, 0, 0, time.UTC)
		end := start.AddDate(0, 1, 0)
		if err := CheckRange(end); err != nil {
			return Window{}, err
		}
		return Window{Start: start, End: end}, nil
	default:
		return Window{}, domain.NewValidationError("granularity", "unrecognized granularity %q", g)
	}
}

func anniversaryIn(ann time.Time, year int) time.Time {
	return AddMonthsClamped(ann, (year-ann.Year())*12)
}

// TotalFor sums the amounts of increments recorded inside w. It reads the
// ledger only, so concurrent callers never interfere.
func TotalFor(w Window, ledger []domain.MeasurementIncrement) float64 {
	var total float64
	for i := range ledger {
		if w.Contains(ledger[i].RecordedOn) {
			total += ledger[i].Amount
		}
	}
	return total
}

// LimitUsage reports a running total against an optional limit.
type LimitUsage struct {
	Configured bool
	Percent    float64
}

// PercentageOfLimit returns total as a percentage of limit. A limit of zero
// or less means no limit is configured.
func PercentageOfLimit(total, limit float64) LimitUsage {
	if limit <= 0 || math.IsNaN(limit) {
		return LimitUsage{}
	}
	return LimitUsage{Configured: true, Percent: total / limit * 100}
}

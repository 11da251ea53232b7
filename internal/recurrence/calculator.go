package recurrence

import (
	"fmt"
	"time"

	"github.com/alexanderramin/duecycle/internal/domain"
)

// MaxYear is the last year a computed date may fall in.
const MaxYear = 9999

// NextDueDate computes the next due date for a schedule.
//
// The anchor is the later of lastCompleted and base. Recurring frequencies
// advance the anchor by one nominal period, ONE_TIME returns base unchanged,
// and CONTINUOUS / EVENT_TRIGGERED return nil because no calendar date
// applies. With adjust set, a result on a weekend rolls to the next Monday.
func NextDueDate(freq domain.Frequency, base time.Time, lastCompleted *time.Time, adjust bool) (*time.Time, error) {
	if !domain.ValidFrequencies[freq] {
		return nil, domain.NewValidationError("frequency", "unrecognized frequency %q", freq)
	}

	base = domain.Civil(base)
	anchor := base
	if lastCompleted != nil {
		if lc := domain.Civil(*lastCompleted); lc.After(anchor) {
			anchor = lc
		}
	}

	var next time.Time
	switch freq {
	case domain.FrequencyDaily:
		next = anchor.AddDate(0, 0, 1)
	case domain.FrequencyWeekly:
		next = anchor.AddDate(0, 0, 7)
	case domain.FrequencyMonthly:
		next = AddMonthsClamped(anchor, 1)
	case domain.FrequencyQuarterly:
		next = AddMonthsClamped(anchor, 3)
	case domain.FrequencyAnnual:
		next = AddMonthsClamped(anchor, 12)
	case domain.FrequencyOneTime:
		next = base
	default:
		return nil, nil
	}

	if adjust {
		next = AdjustToBusinessDay(next)
	}
	if err := CheckRange(next); err != nil {
		return nil, err
	}
	return &next, nil
}

// AddMonthsClamped adds n months, clamping the day to the target month's
// last day instead of overflowing into the following month. Feb 29 plus
// twelve months lands on Feb 28 in a non-leap year.
func AddMonthsClamped(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	total := int(m) - 1 + n
	ty := y + floorDiv(total, 12)
	tm := time.Month(floorMod(total, 12) + 1)
	if last := daysIn(ty, tm); d > last {
		d = last
	}
	return time.Date(ty, tm, d, 0, 0, 0, 0, time.UTC)
}

// AddOffset applies a month offset (clamped) and then a day offset.
func AddOffset(t time.Time, months, days int) (time.Time, error) {
	out := AddMonthsClamped(domain.Civil(t), months).AddDate(0, 0, days)
	if err := CheckRange(out); err != nil {
		return time.Time{}, err
	}
	return out, nil
}

// AdjustToBusinessDay rolls Saturday and Sunday forward to Monday.
// Public holidays are not considered.
func AdjustToBusinessDay(t time.Time) time.Time {
	switch t.Weekday() {
	case time.Saturday:
		return t.AddDate(0, 0, 2)
	case time.Sunday:
		return t.AddDate(0, 0, 1)
	}
	return t
}

// CheckRange rejects dates outside years 1..MaxYear.
func CheckRange(t time.Time) error {
	if y := t.Year(); y < 1 || y > MaxYear {
		return fmt.Errorf("%w: year %d outside 1..%d", domain.ErrDateOverflow, y, MaxYear)
	}
	return nil
}

func daysIn(y int, m time.Month) int {
	return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int) int {
	return a - floorDiv(a, b)*b
}

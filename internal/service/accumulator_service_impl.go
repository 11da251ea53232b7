package service

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alexanderramin/duecycle/internal/clock"
	"github.com/alexanderramin/duecycle/internal/domain"
	"github.com/alexanderramin/duecycle/internal/metrics"
	"github.com/alexanderramin/duecycle/internal/recurrence"
	"github.com/alexanderramin/duecycle/internal/repository"
)

// SubjectLimits anchors a subject's annual window and caps its totals.
// A limit of zero means none.
type SubjectLimits struct {
	Anniversary  time.Time
	AnnualLimit  float64
	MonthlyLimit float64
}

type accumulatorService struct {
	ledger  repository.LedgerRepo
	limits  map[string]SubjectLimits
	clock   clock.Clock
	metrics *metrics.Metrics
}

func NewAccumulatorService(ledger repository.LedgerRepo, limits map[string]SubjectLimits, clk clock.Clock, m *metrics.Metrics) AccumulatorService {
	copied := make(map[string]SubjectLimits, len(limits))
	for id, l := range limits {
		l.Anniversary = domain.Civil(l.Anniversary)
		copied[id] = l
	}
	return &accumulatorService{ledger: ledger, limits: copied, clock: clk, metrics: m}
}

func (s *accumulatorService) RecordIncrement(ctx context.Context, m *domain.MeasurementIncrement) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	m.SubjectID = strings.TrimSpace(m.SubjectID)
	if m.RecordedOn.IsZero() {
		m.RecordedOn = s.clock.Now()
	}
	m.RecordedOn = domain.Civil(m.RecordedOn)
	m.CreatedAt = s.clock.Now()
	if err := m.Validate(); err != nil {
		return err
	}
	if err := s.ledger.Append(ctx, m); err != nil {
		return err
	}
	s.metrics.IncrementIncrements()
	return nil
}

// Totals recomputes the subject's annual and monthly running totals as of
// on (today when zero). Subjects without configured limits use a January 1
// anniversary and report no limit.
func (s *accumulatorService) Totals(ctx context.Context, subjectID string, on time.Time) (*SubjectTotals, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return nil, domain.NewValidationError("subject_id", "is required")
	}
	if on.IsZero() {
		on = s.clock.Now()
	}
	on = domain.Civil(on)

	lim, ok := s.limits[subjectID]
	if !ok || lim.Anniversary.IsZero() {
		lim.Anniversary = time.Date(on.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	}

	annual, err := recurrence.WindowFor(lim.Anniversary, on, domain.GranularityAnnual)
	if err != nil {
		return nil, err
	}
	monthly, err := recurrence.WindowFor(lim.Anniversary, on, domain.GranularityMonthly)
	if err != nil {
		return nil, err
	}

	from, to := annual.Start, annual.End
	if monthly.Start.Before(from) {
		from = monthly.Start
	}
	if monthly.End.After(to) {
		to = monthly.End
	}
	ledger, err := s.ledger.ListBySubject(ctx, subjectID, from, to)
	if err != nil {
		return nil, err
	}

	return &SubjectTotals{
		SubjectID:   subjectID,
		ObservedOn:  on,
		Anniversary: lim.Anniversary,
		Annual:      windowTotal(domain.GranularityAnnual, annual, ledger, lim.AnnualLimit),
		Monthly:     windowTotal(domain.GranularityMonthly, monthly, ledger, lim.MonthlyLimit),
	}, nil
}

func windowTotal(g domain.Granularity, w recurrence.Window, ledger []domain.MeasurementIncrement, limit float64) WindowTotal {
	total := recurrence.TotalFor(w, ledger)
	return WindowTotal{
		Granularity: g,
		Window:      w,
		Total:       total,
		Limit:       limit,
		Usage:       recurrence.PercentageOfLimit(total, limit),
	}
}

// Subjects lists the configured subject ids in sorted order.
func (s *accumulatorService) Subjects() []string {
	ids := make([]string, 0, len(s.limits))
	for id := range s.limits {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

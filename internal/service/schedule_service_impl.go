package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/alexanderramin/duecycle/internal/clock"
	"github.com/alexanderramin/duecycle/internal/db"
	"github.com/alexanderramin/duecycle/internal/domain"
	"github.com/alexanderramin/duecycle/internal/recurrence"
	"github.com/alexanderramin/duecycle/internal/repository"
	"github.com/google/uuid"
)

type scheduleService struct {
	schedules repository.ScheduleRepo
	uow       db.UnitOfWork
	clock     clock.Clock
	observer  UseCaseObserver
}

func NewScheduleService(schedules repository.ScheduleRepo, uow db.UnitOfWork, clk clock.Clock, observers ...UseCaseObserver) ScheduleService {
	return &scheduleService{
		schedules: schedules,
		uow:       uow,
		clock:     clk,
		observer:  useCaseObserverOrNoop(observers),
	}
}

func (s *scheduleService) Create(ctx context.Context, sched *domain.Schedule) (err error) {
	startedAt := time.Now()
	defer observe(ctx, s.observer, "create-schedule", startedAt, map[string]any{"obligation_id": sched.ObligationID}, &err)

	now := s.clock.Now()
	if sched.ID == "" {
		sched.ID = uuid.New().String()
	}
	if sched.Status == "" {
		sched.Status = domain.ScheduleActive
	}
	sched.BaseDate = domain.Civil(sched.BaseDate)
	sched.CreatedAt = now
	sched.ModifiedAt = now
	if err = sched.Validate(); err != nil {
		return err
	}
	next, err := computeNextDue(sched)
	if err != nil {
		return err
	}
	sched.NextDueDate = next

	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		if err := repository.NewSQLiteScheduleRepo(tx).Create(ctx, sched); err != nil {
			return err
		}
		_, err := upsertCurrentDeadline(ctx, tx, sched, now)
		return err
	})
}

func (s *scheduleService) GetByID(ctx context.Context, id string) (*domain.Schedule, error) {
	return s.schedules.GetByID(ctx, id)
}

func (s *scheduleService) List(ctx context.Context, f repository.ScheduleFilter) ([]*domain.Schedule, error) {
	return s.schedules.List(ctx, f)
}

// Update applies patch. Changing a recurrence input snapshots the prior
// values into the audit trail, recomputes next_due_date from the new values
// and upserts the matching deadline, all in one transaction.
func (s *scheduleService) Update(ctx context.Context, id string, patch domain.SchedulePatch, actor string) (result *domain.Schedule, err error) {
	startedAt := time.Now()
	fields := map[string]any{"schedule_id": id, "actor": actor}
	defer observe(ctx, s.observer, "update-schedule", startedAt, fields, &err)

	if err = patch.Validate(); err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return nil, domain.NewValidationError("patch", "no fields to update")
	}
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return nil, domain.NewValidationError("modified_by", "is required")
	}

	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		txSchedules := repository.NewSQLiteScheduleRepo(tx)
		sched, err := txSchedules.GetByID(ctx, id)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		recompute, err := sched.ApplyPatch(patch, actor, now)
		if err != nil {
			return err
		}
		if recompute {
			if sched.NextDueDate, err = computeNextDue(sched); err != nil {
				return err
			}
		}
		if err := txSchedules.Update(ctx, sched); err != nil {
			return err
		}
		if recompute {
			if _, err := upsertCurrentDeadline(ctx, tx, sched, now); err != nil {
				return err
			}
		}
		fields["recomputed"] = recompute
		result = sched
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Archive is idempotent: an already archived schedule is returned as is
// and gains no audit entry.
func (s *scheduleService) Archive(ctx context.Context, id string, actor string) (result *domain.Schedule, err error) {
	startedAt := time.Now()
	fields := map[string]any{"schedule_id": id, "actor": actor}
	defer observe(ctx, s.observer, "archive-schedule", startedAt, fields, &err)

	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		txSchedules := repository.NewSQLiteScheduleRepo(tx)
		sched, err := txSchedules.GetByID(ctx, id)
		if err != nil {
			return err
		}
		changed := sched.Archive(actor, s.clock.Now())
		fields["changed"] = changed
		result = sched
		if !changed {
			return nil
		}
		return txSchedules.Update(ctx, sched)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Recompute rebuilds next_due_date from the stored inputs and upserts the
// deadline for it. Running it twice is a no-op the second time.
func (s *scheduleService) Recompute(ctx context.Context, id string) (*domain.Schedule, error) {
	var result *domain.Schedule
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		txSchedules := repository.NewSQLiteScheduleRepo(tx)
		sched, err := txSchedules.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if sched.Status == domain.ScheduleArchived {
			return domain.NewValidationError("status", "schedule %s is archived", sched.ID)
		}
		if sched.NextDueDate, err = computeNextDue(sched); err != nil {
			return err
		}
		if err := txSchedules.Update(ctx, sched); err != nil {
			return err
		}
		if _, err := upsertCurrentDeadline(ctx, tx, sched, s.clock.Now()); err != nil {
			return err
		}
		result = sched
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// computeNextDue runs the calculator over the schedule's stored inputs.
// EVENT_TRIGGERED schedules get their date from rules, so the current
// value is kept.
func computeNextDue(s *domain.Schedule) (*time.Time, error) {
	if s.Frequency == domain.FrequencyEventTriggered {
		return s.NextDueDate, nil
	}
	return recurrence.NextDueDate(s.Frequency, s.BaseDate, s.LastCompletedDate, s.AdjustForBusinessDays)
}

// upsertCurrentDeadline keeps exactly one open deadline for the schedule's
// current cycle, due on next_due_date. When the date moved, the open
// deadline moves with it; other open rows left over from earlier dates are
// dropped. OVERDUE and COMPLETED rows are never touched. It returns the
// current deadline, or nil when the schedule has no date or is archived.
func upsertCurrentDeadline(ctx context.Context, tx db.DBTX, s *domain.Schedule, now time.Time) (*domain.Deadline, error) {
	if s.NextDueDate == nil || s.Status == domain.ScheduleArchived {
		return nil, nil
	}
	deadlines := repository.NewSQLiteDeadlineRepo(tx)
	due := domain.Civil(*s.NextDueDate)

	pending, err := deadlines.ListPendingBySchedule(ctx, s.ID)
	if err != nil {
		return nil, err
	}
	var current *domain.Deadline
	for _, p := range pending {
		if p.DueDate.Equal(due) {
			current = p
			break
		}
	}
	if current == nil && len(pending) > 0 {
		// A closed deadline may already sit on the new date.
		_, err := deadlines.GetByScheduleAndDate(ctx, s.ID, due)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			current = pending[0]
			current.Reschedule(s, due, now)
			if err := deadlines.Reschedule(ctx, current); err != nil {
				return nil, err
			}
		case err != nil:
			return nil, err
		}
	}
	for _, p := range pending {
		if p == current {
			continue
		}
		if err := deadlines.DeletePending(ctx, p.ID); err != nil {
			return nil, err
		}
	}
	if current != nil {
		return current, nil
	}

	d := domain.NewDeadline(uuid.New().String(), s, due, now)
	inserted, err := deadlines.Upsert(ctx, d)
	if err != nil {
		return nil, err
	}
	if inserted {
		return d, nil
	}
	return deadlines.GetByScheduleAndDate(ctx, s.ID, d.DueDate)
}

package service

import (
	"context"
	"time"

	"github.com/alexanderramin/duecycle/internal/clock"
	"github.com/alexanderramin/duecycle/internal/db"
	"github.com/alexanderramin/duecycle/internal/domain"
	"github.com/alexanderramin/duecycle/internal/metrics"
	"github.com/alexanderramin/duecycle/internal/repository"
)

type deadlineService struct {
	deadlines repository.DeadlineRepo
	uow       db.UnitOfWork
	clock     clock.Clock
	metrics   *metrics.Metrics
	observer  UseCaseObserver
}

func NewDeadlineService(deadlines repository.DeadlineRepo, uow db.UnitOfWork, clk clock.Clock, m *metrics.Metrics, observers ...UseCaseObserver) DeadlineService {
	return &deadlineService{
		deadlines: deadlines,
		uow:       uow,
		clock:     clk,
		metrics:   m,
		observer:  useCaseObserverOrNoop(observers),
	}
}

func (s *deadlineService) GetByID(ctx context.Context, id string) (*domain.Deadline, error) {
	return s.deadlines.GetByID(ctx, id)
}

// ListBySchedule returns the full deadline history, newest first.
func (s *deadlineService) ListBySchedule(ctx context.Context, scheduleID string) ([]*domain.Deadline, error) {
	return s.deadlines.ListBySchedule(ctx, scheduleID)
}

func (s *deadlineService) ListByStatus(ctx context.Context, status domain.DeadlineStatus) ([]*domain.Deadline, error) {
	return s.deadlines.ListByStatus(ctx, status)
}

// SweepOverdue moves PENDING deadlines whose due date is before today to
// OVERDUE.
func (s *deadlineService) SweepOverdue(ctx context.Context) (n int64, err error) {
	startedAt := time.Now()
	fields := map[string]any{}
	defer observe(ctx, s.observer, "sweep-overdue", startedAt, fields, &err)

	now := s.clock.Now()
	n, err = s.deadlines.MarkOverdue(ctx, domain.Civil(now), now)
	if err != nil {
		return 0, err
	}
	fields["marked"] = n
	s.metrics.AddOverdue(int(n))
	return n, nil
}

// Complete records the completion signal for a deadline. It fixes is_late,
// moves the schedule's last_completed_date forward, recomputes the next due
// date and upserts the following deadline. Completing twice changes
// nothing.
func (s *deadlineService) Complete(ctx context.Context, id string, completedAt time.Time) (result *domain.Deadline, err error) {
	startedAt := time.Now()
	fields := map[string]any{"deadline_id": id}
	defer observe(ctx, s.observer, "complete-deadline", startedAt, fields, &err)

	if completedAt.IsZero() {
		return nil, domain.NewValidationError("completed_at", "is required")
	}
	completedAt = completedAt.UTC()

	var completedNow bool
	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		txDeadlines := repository.NewSQLiteDeadlineRepo(tx)
		txSchedules := repository.NewSQLiteScheduleRepo(tx)

		d, err := txDeadlines.GetByID(ctx, id)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		completedNow = d.Complete(completedAt, now)
		result = d
		if !completedNow {
			return nil
		}
		if err := txDeadlines.Update(ctx, d); err != nil {
			return err
		}

		sched, err := txSchedules.GetByID(ctx, d.ScheduleID)
		if err != nil {
			return err
		}
		sched.RecordCompletion(completedAt)
		if sched.Status != domain.ScheduleArchived {
			if sched.NextDueDate, err = computeNextDue(sched); err != nil {
				return err
			}
		}
		if err := txSchedules.Update(ctx, sched); err != nil {
			return err
		}
		next, err := upsertCurrentDeadline(ctx, tx, sched, now)
		if err != nil {
			return err
		}
		if next != nil {
			fields["next_deadline_id"] = next.ID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	fields["changed"] = completedNow
	if completedNow && result.IsLate != nil {
		fields["late"] = *result.IsLate
		s.metrics.IncrementCompleted(*result.IsLate)
	}
	return result, nil
}

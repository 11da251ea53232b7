package service

import (
	"context"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexanderramin/duecycle/internal/domain"
	"github.com/alexanderramin/duecycle/internal/testutil"
)

func currentDeadline(t *testing.T, h *harness, s *domain.Schedule) *domain.Deadline {
	t.Helper()
	require.NotNil(t, s.NextDueDate)
	d, err := h.deadlines.GetByScheduleAndDate(context.Background(), s.ID, *s.NextDueDate)
	require.NoError(t, err)
	return d
}

func TestCompleteDeadline_OnTimeAdvancesSchedule(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.seedSchedule(t)
	d := currentDeadline(t, h, s)

	completedAt := time.Date(2025, 2, 27, 16, 0, 0, 0, time.UTC)
	done, err := h.deadlineService().Complete(ctx, d.ID, completedAt)
	require.NoError(t, err)
	assert.Equal(t, domain.DeadlineCompleted, done.Status)
	require.NotNil(t, done.IsLate)
	assert.False(t, *done.IsLate)

	sched, err := h.schedules.GetByID(ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, sched.LastCompletedDate)
	assert.Equal(t, testutil.Date(2025, 2, 27), *sched.LastCompletedDate)
	require.NotNil(t, sched.NextDueDate)
	assert.Equal(t, testutil.Date(2025, 3, 27), *sched.NextDueDate)

	next, err := h.deadlines.GetByScheduleAndDate(ctx, s.ID, testutil.Date(2025, 3, 27))
	require.NoError(t, err)
	assert.Equal(t, domain.DeadlinePending, next.Status)

	assert.Equal(t, 1.0, promtest.ToFloat64(h.metrics.DeadlinesComplete.WithLabelValues("false")))
}

func TestCompleteDeadline_LateAfterSweep(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	svc := h.deadlineService()
	s := h.seedSchedule(t)
	d := currentDeadline(t, h, s)

	h.clock.Set(time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC))
	n, err := svc.SweepOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	overdue, err := h.deadlines.GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeadlineOverdue, overdue.Status)

	done, err := svc.Complete(ctx, d.ID, time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, domain.DeadlineCompleted, done.Status)
	require.NotNil(t, done.IsLate)
	assert.True(t, *done.IsLate)
	assert.Equal(t, 1.0, promtest.ToFloat64(h.metrics.DeadlinesComplete.WithLabelValues("true")))
}

func TestCompleteDeadline_SecondCompletionIsNoop(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	svc := h.deadlineService()
	s := h.seedSchedule(t)
	d := currentDeadline(t, h, s)

	_, err := svc.Complete(ctx, d.ID, time.Date(2025, 2, 20, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	again, err := svc.Complete(ctx, d.ID, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NotNil(t, again.IsLate)
	assert.False(t, *again.IsLate, "is_late is fixed at first completion")
	assert.Equal(t, time.Date(2025, 2, 20, 0, 0, 0, 0, time.UTC), again.CompletedAt.UTC())

	sched, err := h.schedules.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, testutil.Date(2025, 2, 20), *sched.LastCompletedDate)

	list, err := h.deadlines.ListBySchedule(ctx, s.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, 1.0, promtest.ToFloat64(h.metrics.DeadlinesComplete.WithLabelValues("false")))
}

func TestSweepOverdue_LeavesFutureAndCompletedAlone(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	svc := h.deadlineService()

	past := h.seedSchedule(t)
	done := h.seedSchedule(t)
	future := h.seedSchedule(t, testutil.WithFrequency(domain.FrequencyAnnual))

	_, err := svc.Complete(ctx, currentDeadline(t, h, done).ID, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	h.clock.Set(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	n, err := svc.SweepOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	overdue, err := svc.ListByStatus(ctx, domain.DeadlineOverdue)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, past.ID, overdue[0].ScheduleID)

	f := currentDeadline(t, h, future)
	assert.Equal(t, domain.DeadlinePending, f.Status)

	n, err = svc.SweepOverdue(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1.0, promtest.ToFloat64(h.metrics.DeadlinesOverdue))
}

func TestCompleteDeadline_ArchivedScheduleGetsNoNewDeadline(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.seedSchedule(t)
	d := currentDeadline(t, h, s)
	_, err := h.scheduleService().Archive(ctx, s.ID, "ops")
	require.NoError(t, err)

	_, err = h.deadlineService().Complete(ctx, d.ID, time.Date(2025, 2, 27, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	list, err := h.deadlines.ListBySchedule(ctx, s.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

// ============ NEGATIVE TEST CASES ============

func TestCompleteDeadline_NotFound(t *testing.T) {
	h := newHarness(t)
	_, err := h.deadlineService().Complete(context.Background(), "missing", testNow)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCompleteDeadline_RequiresTimestamp(t *testing.T) {
	h := newHarness(t)
	s := h.seedSchedule(t)
	d := currentDeadline(t, h, s)

	_, err := h.deadlineService().Complete(context.Background(), d.ID, time.Time{})
	assert.True(t, domain.IsValidation(err))

	stored, err := h.deadlines.GetByID(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeadlinePending, stored.Status)
}

func TestCompleteDeadline_RollsBackOnFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.seedSchedule(t)
	d := currentDeadline(t, h, s)

	// Exec #1 completes the deadline, #2 updates the schedule.
	uow := &testutil.FailOnNthExecUoW{DB: h.db, FailOn: 2, Err: assert.AnError}
	svc := NewDeadlineService(h.deadlines, uow, h.clock, h.metrics)

	_, err := svc.Complete(ctx, d.ID, testNow)
	require.ErrorIs(t, err, assert.AnError)

	stored, err := h.deadlines.GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeadlinePending, stored.Status)
	assert.Nil(t, stored.IsLate)
}

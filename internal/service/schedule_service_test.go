package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexanderramin/duecycle/internal/domain"
	"github.com/alexanderramin/duecycle/internal/repository"
	"github.com/alexanderramin/duecycle/internal/testutil"
)

func TestCreateSchedule_ComputesNextDueAndFirstDeadline(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	s := h.seedSchedule(t)

	stored, err := h.schedules.GetByID(ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.NextDueDate)
	assert.Equal(t, testutil.Date(2025, 2, 28), *stored.NextDueDate, "Jan 31 + 1 month clamps to Feb 28")

	d, err := h.deadlines.GetByScheduleAndDate(ctx, s.ID, testutil.Date(2025, 2, 28))
	require.NoError(t, err)
	assert.Equal(t, domain.DeadlinePending, d.Status)
	assert.Equal(t, "2025-02", d.CompliancePeriod)
	assert.Nil(t, d.IsLate)
}

func TestCreateSchedule_ContinuousHasNoDeadline(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	s := h.seedSchedule(t, testutil.WithFrequency(domain.FrequencyContinuous))

	assert.Nil(t, s.NextDueDate)
	list, err := h.deadlines.ListBySchedule(ctx, s.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCreateSchedule_BusinessDayAdjustment(t *testing.T) {
	h := newHarness(t)

	// 2025-06-28 is a Saturday.
	s := h.seedSchedule(t,
		testutil.WithFrequency(domain.FrequencyDaily),
		testutil.WithBaseDate(testutil.Date(2025, 6, 27)),
		testutil.WithBusinessDays(),
	)
	require.NotNil(t, s.NextDueDate)
	assert.Equal(t, testutil.Date(2025, 6, 30), *s.NextDueDate)
}

func TestUpdateSchedule_SnapshotsPriorValuesAndRecomputes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	svc := h.scheduleService()
	s := h.seedSchedule(t)

	quarterly := domain.FrequencyQuarterly
	updated, err := svc.Update(ctx, s.ID, domain.SchedulePatch{Frequency: &quarterly}, "auditor@example.com")
	require.NoError(t, err)

	require.Len(t, updated.PreviousValues, 1)
	prev := updated.PreviousValues[0]
	assert.Equal(t, domain.FrequencyMonthly, prev.Frequency)
	assert.Equal(t, "2025-01-31", prev.BaseDate)
	assert.Equal(t, "auditor@example.com", prev.ModifiedBy)
	assert.Equal(t, testNow, prev.ModifiedAt)

	require.NotNil(t, updated.NextDueDate)
	assert.Equal(t, testutil.Date(2025, 4, 30), *updated.NextDueDate)
	assert.Equal(t, "auditor@example.com", updated.ModifiedBy)

	stored, err := h.schedules.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Len(t, stored.PreviousValues, 1)
	assert.Equal(t, domain.FrequencyQuarterly, stored.Frequency)

	original, err := h.deadlines.GetByScheduleAndDate(ctx, s.ID, testutil.Date(2025, 2, 28))
	require.Error(t, err, "the Feb deadline was moved, not duplicated")
	assert.Nil(t, original)

	list, err := h.deadlines.ListBySchedule(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, testutil.Date(2025, 4, 30), list[0].DueDate)
	assert.Equal(t, "2025-Q2", list[0].CompliancePeriod)
	assert.Equal(t, domain.DeadlinePending, list[0].Status)
}

func TestUpdateSchedule_MovedDeadlineIsNotSweptAtOldDate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.seedSchedule(t)
	first := currentDeadline(t, h, s)

	quarterly := domain.FrequencyQuarterly
	_, err := h.scheduleService().Update(ctx, s.ID, domain.SchedulePatch{Frequency: &quarterly}, "ops")
	require.NoError(t, err)

	pending, err := h.deadlines.ListPendingBySchedule(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, first.ID, pending[0].ID, "same deadline, new date")

	h.clock.Set(time.Date(2025, 3, 15, 8, 0, 0, 0, time.UTC))
	n, err := h.deadlineService().SweepOverdue(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	overdue, err := h.deadlines.ListByStatus(ctx, domain.DeadlineOverdue)
	require.NoError(t, err)
	assert.Empty(t, overdue)
}

func TestUpdateSchedule_OverdueDeadlineKeptAsHistory(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.seedSchedule(t)
	first := currentDeadline(t, h, s)

	h.clock.Set(time.Date(2025, 3, 5, 8, 0, 0, 0, time.UTC))
	n, err := h.deadlineService().SweepOverdue(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	quarterly := domain.FrequencyQuarterly
	_, err = h.scheduleService().Update(ctx, s.ID, domain.SchedulePatch{Frequency: &quarterly}, "ops")
	require.NoError(t, err)

	old, err := h.deadlines.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeadlineOverdue, old.Status)
	assert.Equal(t, testutil.Date(2025, 2, 28), old.DueDate)

	pending, err := h.deadlines.ListPendingBySchedule(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, testutil.Date(2025, 4, 30), pending[0].DueDate)
}

func TestUpdateSchedule_ReminderOffsetsOnlyNoAuditEntry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.seedSchedule(t)

	updated, err := h.scheduleService().Update(ctx, s.ID, domain.SchedulePatch{ReminderOffsets: []int{14, 7}}, "ops")
	require.NoError(t, err)
	assert.Empty(t, updated.PreviousValues)
	assert.Equal(t, []int{14, 7}, updated.ReminderOffsets)
	assert.Equal(t, []time.Time{testutil.Date(2025, 2, 14), testutil.Date(2025, 2, 21)}, updated.ReminderDates())
}

func TestUpdateSchedule_PauseAndResume(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	svc := h.scheduleService()
	s := h.seedSchedule(t)

	paused := domain.SchedulePaused
	updated, err := svc.Update(ctx, s.ID, domain.SchedulePatch{Status: &paused}, "ops")
	require.NoError(t, err)
	assert.Equal(t, domain.SchedulePaused, updated.Status)

	active := domain.ScheduleActive
	updated, err = svc.Update(ctx, s.ID, domain.SchedulePatch{Status: &active}, "ops")
	require.NoError(t, err)
	assert.Equal(t, domain.ScheduleActive, updated.Status)
}

func TestArchiveSchedule_SecondCallIsNoop(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	svc := h.scheduleService()
	s := h.seedSchedule(t)

	first, err := svc.Archive(ctx, s.ID, "ops")
	require.NoError(t, err)
	assert.Equal(t, domain.ScheduleArchived, first.Status)
	require.Len(t, first.PreviousValues, 1)
	assert.Equal(t, domain.AuditActionArchive, first.PreviousValues[0].Action)

	second, err := svc.Archive(ctx, s.ID, "someone-else")
	require.NoError(t, err)
	assert.Len(t, second.PreviousValues, 1)
	assert.Equal(t, "ops", second.ModifiedBy)

	stored, err := h.schedules.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Len(t, stored.PreviousValues, 1)
}

func TestRecompute_Idempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	svc := h.scheduleService()
	s := h.seedSchedule(t)

	first, err := svc.Recompute(ctx, s.ID)
	require.NoError(t, err)
	second, err := svc.Recompute(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, first.NextDueDate, second.NextDueDate)

	list, err := h.deadlines.ListBySchedule(ctx, s.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

// ============ NEGATIVE TEST CASES ============

func TestCreateSchedule_RejectsUnknownFrequency(t *testing.T) {
	h := newHarness(t)
	s := testutil.NewTestSchedule("obl-1", testutil.WithFrequency("FORTNIGHTLY"))

	err := h.scheduleService().Create(context.Background(), s)
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))

	list, err := h.schedules.List(context.Background(), repository.ScheduleFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestUpdateSchedule_ArchivedRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	svc := h.scheduleService()
	s := h.seedSchedule(t)
	_, err := svc.Archive(ctx, s.ID, "ops")
	require.NoError(t, err)

	annual := domain.FrequencyAnnual
	_, err = svc.Update(ctx, s.ID, domain.SchedulePatch{Frequency: &annual}, "ops")
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))

	stored, err := h.schedules.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.FrequencyMonthly, stored.Frequency)
	assert.Len(t, stored.PreviousValues, 1)
}

func TestUpdateSchedule_EmptyPatchAndMissingActor(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	svc := h.scheduleService()
	s := h.seedSchedule(t)

	_, err := svc.Update(ctx, s.ID, domain.SchedulePatch{}, "ops")
	assert.True(t, domain.IsValidation(err))

	annual := domain.FrequencyAnnual
	_, err = svc.Update(ctx, s.ID, domain.SchedulePatch{Frequency: &annual}, "  ")
	assert.True(t, domain.IsValidation(err))

	archived := domain.ScheduleArchived
	_, err = svc.Update(ctx, s.ID, domain.SchedulePatch{Status: &archived}, "ops")
	assert.True(t, domain.IsValidation(err), "archiving goes through Archive")
}

func TestUpdateSchedule_NotFound(t *testing.T) {
	h := newHarness(t)
	annual := domain.FrequencyAnnual

	_, err := h.scheduleService().Update(context.Background(), "missing", domain.SchedulePatch{Frequency: &annual}, "ops")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = h.scheduleService().Archive(context.Background(), "missing", "ops")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRecompute_ArchivedRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.seedSchedule(t)
	_, err := h.scheduleService().Archive(ctx, s.ID, "ops")
	require.NoError(t, err)

	_, err = h.scheduleService().Recompute(ctx, s.ID)
	assert.True(t, domain.IsValidation(err))
}

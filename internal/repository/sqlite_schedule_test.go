package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alexanderramin/duecycle/internal/domain"
	"github.com/alexanderramin/duecycle/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleRepo_CreateAndGetByID(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewSQLiteScheduleRepo(db)
	ctx := context.Background()

	s := testutil.NewTestSchedule("obl-1",
		testutil.WithNextDueDate(testutil.Date(2025, 2, 28)),
		testutil.WithReminderOffsets(30, 7),
		testutil.WithBusinessDays(),
	)
	s.PreviousValues = []domain.ScheduleAuditEntry{{
		Action: domain.AuditActionUpdate, Frequency: domain.FrequencyAnnual, BaseDate: "2024-01-31",
		Status: domain.ScheduleActive, ModifiedAt: s.ModifiedAt, ModifiedBy: "alice",
	}}
	require.NoError(t, repo.Create(ctx, s))

	fetched, err := repo.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "obl-1", fetched.ObligationID)
	assert.Equal(t, domain.FrequencyMonthly, fetched.Frequency)
	assert.Equal(t, testutil.Date(2025, 1, 31), fetched.BaseDate)
	require.NotNil(t, fetched.NextDueDate)
	assert.Equal(t, testutil.Date(2025, 2, 28), *fetched.NextDueDate)
	assert.Nil(t, fetched.LastCompletedDate)
	assert.True(t, fetched.AdjustForBusinessDays)
	assert.Equal(t, []int{30, 7}, fetched.ReminderOffsets)
	require.Len(t, fetched.PreviousValues, 1)
	assert.Equal(t, "alice", fetched.PreviousValues[0].ModifiedBy)
	assert.Equal(t, domain.FrequencyAnnual, fetched.PreviousValues[0].Frequency)
	assert.True(t, s.CreatedAt.Equal(fetched.CreatedAt))
}

func TestScheduleRepo_Update(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewSQLiteScheduleRepo(db)
	ctx := context.Background()

	s := testutil.NewTestSchedule("obl-1")
	require.NoError(t, repo.Create(ctx, s))

	completed := testutil.Date(2025, 2, 20)
	s.LastCompletedDate = &completed
	s.NextDueDate = nil
	s.Status = domain.SchedulePaused
	s.ModifiedBy = "bob"
	s.ModifiedAt = s.ModifiedAt.Add(time.Hour)
	require.NoError(t, repo.Update(ctx, s))

	fetched, err := repo.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SchedulePaused, fetched.Status)
	assert.Nil(t, fetched.NextDueDate)
	require.NotNil(t, fetched.LastCompletedDate)
	assert.Equal(t, completed, *fetched.LastCompletedDate)
	assert.Equal(t, "bob", fetched.ModifiedBy)
	assert.Empty(t, fetched.PreviousValues)
}

func TestScheduleRepo_ListFilters(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewSQLiteScheduleRepo(db)
	ctx := context.Background()

	a := testutil.NewTestSchedule("obl-a", testutil.WithSiteID("north"))
	b := testutil.NewTestSchedule("obl-b", testutil.WithSiteID("north"), testutil.WithScheduleStatus(domain.ScheduleArchived))
	c := testutil.NewTestSchedule("obl-a", testutil.WithSiteID("south"))
	for _, s := range []*domain.Schedule{a, b, c} {
		require.NoError(t, repo.Create(ctx, s))
	}

	all, err := repo.List(ctx, ScheduleFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	north, err := repo.List(ctx, ScheduleFilter{SiteID: "north"})
	require.NoError(t, err)
	assert.Len(t, north, 2)

	active := domain.ScheduleActive
	oblA, err := repo.List(ctx, ScheduleFilter{ObligationID: "obl-a", Status: &active})
	require.NoError(t, err)
	assert.Len(t, oblA, 2)
}

// ============ NEGATIVE TEST CASES ============

func TestScheduleRepo_GetByID_NotFound(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewSQLiteScheduleRepo(db)

	_, err := repo.GetByID(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "schedule nonexistent")
}

func TestScheduleRepo_Update_NotFound(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewSQLiteScheduleRepo(db)

	err := repo.Update(context.Background(), testutil.NewTestSchedule("obl-1"))
	assert.ErrorIs(t, err, ErrNotFound)
}

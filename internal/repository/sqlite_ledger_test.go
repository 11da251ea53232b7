package repository

import (
	"context"
	"testing"

	"github.com/alexanderramin/duecycle/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerRepo_ListBySubjectHalfOpen(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewSQLiteLedgerRepo(db)
	ctx := context.Background()

	for _, inc := range []struct {
		subject string
		day     int
		amount  float64
	}{
		{"gen-1", 14, 99},
		{"gen-1", 15, 10},
		{"gen-1", 20, 20.5},
		{"gen-2", 16, 7},
		{"gen-1", 31, 5},
	} {
		require.NoError(t, repo.Append(ctx, testutil.NewTestIncrement(inc.subject, testutil.Date(2025, 3, inc.day), inc.amount)))
	}

	got, err := repo.ListBySubject(ctx, "gen-1", testutil.Date(2025, 3, 15), testutil.Date(2025, 3, 31))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 10.0, got[0].Amount)
	assert.Equal(t, 20.5, got[1].Amount)
	assert.Equal(t, testutil.Date(2025, 3, 20), got[1].RecordedOn)
}

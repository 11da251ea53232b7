package testutil

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/alexanderramin/duecycle/internal/db"
)

// NewTestDB opens a migrated in-memory duecycle database that is closed
// with the test.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()
	return openTestDB(t, ":memory:")
}

// NewFileTestDB opens a migrated database file in a temp dir. Every pooled
// connection sees the same data, which the firing races need.
func NewFileTestDB(t *testing.T) *sql.DB {
	t.Helper()
	return openTestDB(t, filepath.Join(t.TempDir(), "duecycle_test.db"))
}

func openTestDB(t *testing.T, path string) *sql.DB {
	t.Helper()
	database, err := db.OpenDB(path)
	if err != nil {
		t.Fatalf("opening test database %s: %v", path, err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

// NewTestUoW creates a UnitOfWork backed by the given test database.
func NewTestUoW(database *sql.DB) db.UnitOfWork {
	return db.NewSQLiteUnitOfWork(database)
}

// PeriodClaimed reports whether the rule holds a firing for periodKey.
func PeriodClaimed(t *testing.T, database *sql.DB, ruleID, periodKey string) bool {
	t.Helper()
	var n int
	err := database.QueryRow(`SELECT COUNT(*) FROM rule_firings WHERE rule_id = ? AND period_key = ?`, ruleID, periodKey).Scan(&n)
	if err != nil {
		t.Fatalf("reading rule_firings: %v", err)
	}
	return n > 0
}

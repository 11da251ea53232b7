package db

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func columnNames(t *testing.T, db *sql.DB, table string) map[string]bool {
	t.Helper()
	rows, err := db.Query(`PRAGMA table_info(` + table + `)`)
	require.NoError(t, err)
	defer rows.Close()

	cols := map[string]bool{}
	for rows.Next() {
		var cid int
		var name, typ string
		var notNull, pk int
		var dflt sql.NullString
		require.NoError(t, rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk))
		cols[name] = true
	}
	require.NoError(t, rows.Err())
	return cols
}

func TestMigrate_Idempotent(t *testing.T) {
	db := openTestDB(t)

	// Second run must succeed.
	require.NoError(t, Migrate(db))
	require.NoError(t, Migrate(db))
}

func TestMigrate_CreatesAllTables(t *testing.T) {
	db := openTestDB(t)

	expected := []string{
		"schedules", "deadlines", "recurrence_events", "trigger_rules",
		"trigger_execution_logs", "rule_firings", "measurement_increments",
	}
	for _, table := range expected {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

func TestMigrate_CreatesIndexes(t *testing.T) {
	db := openTestDB(t)

	expected := []string{
		"idx_schedules_site",
		"idx_schedules_obligation",
		"idx_deadlines_status_due",
		"idx_trigger_rules_schedule",
		"idx_trigger_rules_event",
		"idx_exec_logs_rule_time",
		"idx_increments_subject_day",
	}
	for _, idx := range expected {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='index' AND name=?`, idx).Scan(&name)
		require.NoError(t, err, "index %s should exist", idx)
	}
}

func TestMigrate_ForeignKeysEnabled(t *testing.T) {
	db := openTestDB(t)

	var fk int
	require.NoError(t, db.QueryRow(`PRAGMA foreign_keys`).Scan(&fk))
	assert.Equal(t, 1, fk, "foreign keys should be enabled")
}

func TestMigrate_WALModeRequested(t *testing.T) {
	// In-memory SQLite reports "memory"; WAL only applies to file DBs.
	db := openTestDB(t)

	var mode string
	require.NoError(t, db.QueryRow(`PRAGMA journal_mode`).Scan(&mode))
	assert.Equal(t, "memory", mode)
}

func TestOpenDB_FileUsesWAL(t *testing.T) {
	path := t.TempDir() + "/nested/duecycle.db"
	db, err := OpenDB(path)
	require.NoError(t, err)
	defer db.Close()

	var mode string
	require.NoError(t, db.QueryRow(`PRAGMA journal_mode`).Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestMigrate_ExecutionLogDedupColumn(t *testing.T) {
	db := openTestDB(t)
	assert.True(t, columnNames(t, db, "trigger_execution_logs")["dedup_key"])
}

func insertSchedule(t *testing.T, db *sql.DB, id string) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO schedules (id, obligation_id, frequency, base_date, modified_at, created_at)
		VALUES (?, 'obl-1', 'MONTHLY', '2025-01-31', '2025-01-01T00:00:00Z', '2025-01-01T00:00:00Z')`, id)
	require.NoError(t, err)
}

func TestMigrate_ScheduleCheckConstraints(t *testing.T) {
	db := openTestDB(t)

	_, err := db.Exec(`INSERT INTO schedules (id, obligation_id, frequency, base_date, modified_at, created_at)
		VALUES ('s1', 'o1', 'FORTNIGHTLY', '2025-01-01', '2025-01-01T00:00:00Z', '2025-01-01T00:00:00Z')`)
	assert.Error(t, err, "unknown frequency should be rejected by CHECK constraint")

	_, err = db.Exec(`INSERT INTO schedules (id, obligation_id, frequency, base_date, status, modified_at, created_at)
		VALUES ('s1', 'o1', 'DAILY', '2025-01-01', 'DELETED', '2025-01-01T00:00:00Z', '2025-01-01T00:00:00Z')`)
	assert.Error(t, err, "unknown status should be rejected by CHECK constraint")
}

func TestMigrate_DeadlineUniquePerScheduleAndDate(t *testing.T) {
	db := openTestDB(t)
	insertSchedule(t, db, "s1")

	insert := `INSERT INTO deadlines (id, schedule_id, due_date, created_at, updated_at)
		VALUES (?, 's1', '2025-02-28', '2025-01-01T00:00:00Z', '2025-01-01T00:00:00Z')`
	_, err := db.Exec(insert, "d1")
	require.NoError(t, err)

	_, err = db.Exec(insert, "d2")
	assert.Error(t, err, "second deadline for the same schedule and date should be rejected")
}

func TestMigrate_RuleForeignKey(t *testing.T) {
	db := openTestDB(t)

	_, err := db.Exec(`INSERT INTO trigger_rules (id, schedule_id, rule_type, created_at, updated_at)
		VALUES ('r1', 'missing', 'FIXED', '2025-01-01T00:00:00Z', '2025-01-01T00:00:00Z')`)
	assert.Error(t, err, "rule referencing a missing schedule should be rejected")
}

func TestMigrate_RuleFiringPrimaryKey(t *testing.T) {
	db := openTestDB(t)
	insertSchedule(t, db, "s1")
	_, err := db.Exec(`INSERT INTO trigger_rules (id, schedule_id, rule_type, created_at, updated_at)
		VALUES ('r1', 's1', 'FIXED', '2025-01-01T00:00:00Z', '2025-01-01T00:00:00Z')`)
	require.NoError(t, err)

	insert := `INSERT INTO rule_firings (rule_id, period_key, fired_at) VALUES ('r1', 'r1@2025-02-28', '2025-01-01T00:00:00Z')`
	_, err = db.Exec(insert)
	require.NoError(t, err)
	_, err = db.Exec(insert)
	assert.Error(t, err)
}

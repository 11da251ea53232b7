package db

import (
	"database/sql"
	"fmt"
	"strings"
)

// Migrate runs all schema migrations. Every statement is idempotent so the
// full list is replayed on each start.
func Migrate(db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			// Tolerate "duplicate column name" errors from ALTER TABLE
			// since the migration system re-runs all statements.
			if strings.Contains(err.Error(), "duplicate column name") {
				continue
			}
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS schedules (
		id                       TEXT PRIMARY KEY,
		obligation_id            TEXT NOT NULL,
		site_id                  TEXT NOT NULL DEFAULT '',
		frequency                TEXT NOT NULL
		                         CHECK(frequency IN ('DAILY','WEEKLY','MONTHLY','QUARTERLY','ANNUAL','ONE_TIME','CONTINUOUS','EVENT_TRIGGERED')),
		base_date                TEXT NOT NULL,
		next_due_date            TEXT,
		last_completed_date      TEXT,
		status                   TEXT NOT NULL DEFAULT 'ACTIVE'
		                         CHECK(status IN ('ACTIVE','PAUSED','ARCHIVED')),
		adjust_for_business_days INTEGER NOT NULL DEFAULT 0,
		reminder_offsets         TEXT NOT NULL DEFAULT '[]',
		previous_values          TEXT NOT NULL DEFAULT '[]',
		modified_by              TEXT NOT NULL DEFAULT '',
		modified_at              TEXT NOT NULL,
		created_at               TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_schedules_site ON schedules(site_id)`,
	`CREATE INDEX IF NOT EXISTS idx_schedules_obligation ON schedules(obligation_id)`,

	`CREATE TABLE IF NOT EXISTS deadlines (
		id                TEXT PRIMARY KEY,
		schedule_id       TEXT NOT NULL REFERENCES schedules(id),
		due_date          TEXT NOT NULL,
		status            TEXT NOT NULL DEFAULT 'PENDING'
		                  CHECK(status IN ('PENDING','OVERDUE','COMPLETED')),
		compliance_period TEXT NOT NULL DEFAULT '',
		is_late           INTEGER,
		completed_at      TEXT,
		created_at        TEXT NOT NULL,
		updated_at        TEXT NOT NULL,
		UNIQUE(schedule_id, due_date)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_deadlines_status_due ON deadlines(status, due_date)`,

	`CREATE TABLE IF NOT EXISTS recurrence_events (
		id         TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		name       TEXT NOT NULL,
		event_date TEXT NOT NULL,
		metadata   TEXT NOT NULL DEFAULT '{}',
		lifecycle  TEXT NOT NULL DEFAULT 'ACTIVE'
		           CHECK(lifecycle IN ('ACTIVE','INACTIVE')),
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS trigger_rules (
		id                  TEXT PRIMARY KEY,
		schedule_id         TEXT NOT NULL REFERENCES schedules(id),
		rule_type           TEXT NOT NULL
		                    CHECK(rule_type IN ('DYNAMIC_OFFSET','EVENT_BASED','CONDITIONAL','FIXED')),
		rule_config         TEXT NOT NULL DEFAULT '{}',
		trigger_expression  TEXT NOT NULL DEFAULT '',
		event_id            TEXT REFERENCES recurrence_events(id),
		lifecycle           TEXT NOT NULL DEFAULT 'ACTIVE'
		                    CHECK(lifecycle IN ('ACTIVE','INACTIVE')),
		next_execution_date TEXT,
		last_executed_at    TEXT,
		execution_count     INTEGER NOT NULL DEFAULT 0 CHECK(execution_count >= 0),
		created_at          TEXT NOT NULL,
		updated_at          TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_trigger_rules_schedule ON trigger_rules(schedule_id)`,
	`CREATE INDEX IF NOT EXISTS idx_trigger_rules_event ON trigger_rules(event_id)`,

	`CREATE TABLE IF NOT EXISTS trigger_execution_logs (
		id                TEXT PRIMARY KEY,
		rule_id           TEXT NOT NULL REFERENCES trigger_rules(id),
		executed_at       TEXT NOT NULL,
		execution_status  TEXT NOT NULL CHECK(execution_status IN ('SUCCESS','FAILED')),
		execution_result  TEXT NOT NULL DEFAULT '{}',
		execution_context TEXT NOT NULL DEFAULT '{}',
		error_message     TEXT,
		duration_ms       INTEGER NOT NULL DEFAULT 0
	)`,

	`CREATE INDEX IF NOT EXISTS idx_exec_logs_rule_time ON trigger_execution_logs(rule_id, executed_at DESC, id DESC)`,

	`CREATE TABLE IF NOT EXISTS rule_firings (
		rule_id    TEXT NOT NULL REFERENCES trigger_rules(id),
		period_key TEXT NOT NULL,
		fired_at   TEXT NOT NULL,
		PRIMARY KEY (rule_id, period_key)
	)`,

	`CREATE TABLE IF NOT EXISTS measurement_increments (
		id          TEXT PRIMARY KEY,
		subject_id  TEXT NOT NULL,
		recorded_on TEXT NOT NULL,
		amount      REAL NOT NULL,
		note        TEXT NOT NULL DEFAULT '',
		created_at  TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_increments_subject_day ON measurement_increments(subject_id, recorded_on)`,

	// Dedup key on execution logs, added with the rule_firings ledger.
	`ALTER TABLE trigger_execution_logs ADD COLUMN dedup_key TEXT NOT NULL DEFAULT ''`,
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alexanderramin/duecycle/internal/db"
	"github.com/alexanderramin/duecycle/internal/domain"
)

// SQLiteRuleRepo implements RuleRepo using a SQLite database.
type SQLiteRuleRepo struct {
	db db.DBTX
}

// NewSQLiteRuleRepo creates a new SQLiteRuleRepo.
func NewSQLiteRuleRepo(conn db.DBTX) *SQLiteRuleRepo {
	return &SQLiteRuleRepo{db: conn}
}

const ruleColumns = `r.id, r.schedule_id, r.rule_type, r.rule_config, r.trigger_expression, r.event_id, r.lifecycle,
	r.next_execution_date, r.last_executed_at, r.execution_count, r.created_at, r.updated_at`

func (r *SQLiteRuleRepo) Create(ctx context.Context, rule *domain.TriggerRule) error {
	cfg, err := domain.MarshalRuleConfig(rule.Config)
	if err != nil {
		return err
	}
	query := `INSERT INTO trigger_rules (id, schedule_id, rule_type, rule_config, trigger_expression, event_id, lifecycle,
		next_execution_date, last_executed_at, execution_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		rule.ID,
		rule.ScheduleID,
		string(rule.RuleType),
		string(cfg),
		rule.TriggerExpression,
		nullableString(rule.EventID),
		string(rule.Lifecycle),
		nullableTimeToString(rule.NextExecutionDate, dateLayout),
		nullableTimeToString(rule.LastExecutedAt, time.RFC3339),
		rule.ExecutionCount,
		formatTime(rule.CreatedAt),
		formatTime(rule.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting trigger rule: %w", err)
	}
	return nil
}

func (r *SQLiteRuleRepo) GetByID(ctx context.Context, id string) (*domain.TriggerRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM trigger_rules r WHERE r.id = ?`
	rule, err := scanRule(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("trigger rule", id)
	}
	return rule, err
}

func (r *SQLiteRuleRepo) List(ctx context.Context, f RuleFilter) ([]*domain.TriggerRule, error) {
	var where []string
	var args []any
	if f.SiteID != "" {
		where = append(where, "s.site_id = ?")
		args = append(args, f.SiteID)
	}
	if f.ScheduleID != "" {
		where = append(where, "r.schedule_id = ?")
		args = append(args, f.ScheduleID)
	}
	if f.RuleType != nil {
		where = append(where, "r.rule_type = ?")
		args = append(args, string(*f.RuleType))
	}
	if f.Lifecycle != nil {
		where = append(where, "r.lifecycle = ?")
		args = append(args, string(*f.Lifecycle))
	}

	query := `SELECT ` + ruleColumns + ` FROM trigger_rules r JOIN schedules s ON s.id = r.schedule_id`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY r.created_at, r.id"
	return r.list(ctx, query, args...)
}

func (r *SQLiteRuleRepo) ListEvaluable(ctx context.Context) ([]*domain.TriggerRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM trigger_rules r JOIN schedules s ON s.id = r.schedule_id
		WHERE r.lifecycle = 'ACTIVE' AND s.status = 'ACTIVE'
		ORDER BY r.created_at, r.id`
	return r.list(ctx, query)
}

func (r *SQLiteRuleRepo) list(ctx context.Context, query string, args ...any) ([]*domain.TriggerRule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing trigger rules: %w", err)
	}
	defer rows.Close()

	var rules []*domain.TriggerRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating trigger rules: %w", err)
	}
	return rules, nil
}

// Update writes the rule. execution_count is never lowered by a stale
// writer: the stored value wins when it is already ahead.
func (r *SQLiteRuleRepo) Update(ctx context.Context, rule *domain.TriggerRule) error {
	cfg, err := domain.MarshalRuleConfig(rule.Config)
	if err != nil {
		return err
	}
	query := `UPDATE trigger_rules SET rule_type = ?, rule_config = ?, trigger_expression = ?, event_id = ?, lifecycle = ?,
		next_execution_date = ?, last_executed_at = ?, execution_count = MAX(execution_count, ?), updated_at = ?
		WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query,
		string(rule.RuleType),
		string(cfg),
		rule.TriggerExpression,
		nullableString(rule.EventID),
		string(rule.Lifecycle),
		nullableTimeToString(rule.NextExecutionDate, dateLayout),
		nullableTimeToString(rule.LastExecutedAt, time.RFC3339),
		rule.ExecutionCount,
		formatTime(rule.UpdatedAt),
		rule.ID,
	)
	if err != nil {
		return fmt.Errorf("updating trigger rule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("trigger rule", rule.ID)
	}
	return nil
}

func scanRule(row scanner) (*domain.TriggerRule, error) {
	var rule domain.TriggerRule
	var ruleType, cfg, lifecycle, createdAt, updatedAt string
	var eventID, nextExec, lastExec sql.NullString

	err := row.Scan(
		&rule.ID, &rule.ScheduleID, &ruleType, &cfg, &rule.TriggerExpression, &eventID, &lifecycle,
		&nextExec, &lastExec, &rule.ExecutionCount, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning trigger rule: %w", err)
	}

	rule.RuleType = domain.RuleType(ruleType)
	rule.Lifecycle = domain.Lifecycle(lifecycle)
	rule.EventID = stringPtr(eventID)
	rule.NextExecutionDate = parseNullableTime(nextExec, dateLayout)
	rule.LastExecutedAt = parseNullableTime(lastExec, time.RFC3339)

	if rule.Config, err = domain.ParseRuleConfig(rule.RuleType, []byte(cfg)); err != nil {
		return nil, fmt.Errorf("decoding rule_config of %s: %w", rule.ID, err)
	}
	if rule.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return nil, err
	}
	if rule.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return nil, err
	}
	return &rule, nil
}

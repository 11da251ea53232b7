package repository

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alexanderramin/duecycle/internal/db"
	"github.com/alexanderramin/duecycle/internal/domain"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

// SQLiteExecutionLogRepo implements ExecutionLogRepo. Rows are only ever
// inserted.
type SQLiteExecutionLogRepo struct {
	db db.DBTX
}

// NewSQLiteExecutionLogRepo creates a new SQLiteExecutionLogRepo.
func NewSQLiteExecutionLogRepo(conn db.DBTX) *SQLiteExecutionLogRepo {
	return &SQLiteExecutionLogRepo{db: conn}
}

const execLogColumns = `id, rule_id, executed_at, execution_status, execution_result, execution_context,
	error_message, duration_ms, dedup_key`

func (r *SQLiteExecutionLogRepo) Append(ctx context.Context, l *domain.TriggerExecutionLog) error {
	result, err := toJSON(l.Result, "{}")
	if err != nil {
		return fmt.Errorf("execution_result: %w", err)
	}
	snapshot, err := toJSON(l.Context, "{}")
	if err != nil {
		return fmt.Errorf("execution_context: %w", err)
	}
	query := `INSERT INTO trigger_execution_logs (` + execLogColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		l.ID,
		l.RuleID,
		l.ExecutedAt.UTC().Format(execTimeLayout),
		string(l.Status),
		result,
		snapshot,
		nullableString(l.ErrorMessage),
		l.DurationMS,
		l.DedupKey,
	)
	if err != nil {
		return fmt.Errorf("appending execution log: %w", err)
	}
	return nil
}

// List returns one page of the rule's history, newest first. The cursor
// is the position of the last row returned so rows inserted meanwhile
// never shift the next page.
func (r *SQLiteExecutionLogRepo) List(ctx context.Context, ruleID string, f domain.ExecutionFilter) (*domain.ExecutionPage, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	where := []string{"rule_id = ?"}
	args := []any{ruleID}
	if f.Status != nil {
		where = append(where, "execution_status = ?")
		args = append(args, string(*f.Status))
	}
	if f.From != nil {
		where = append(where, "executed_at >= ?")
		args = append(args, f.From.UTC().Format(execTimeLayout))
	}
	if f.To != nil {
		where = append(where, "executed_at < ?")
		args = append(args, f.To.UTC().Format(execTimeLayout))
	}
	if f.Cursor != "" {
		at, id, err := DecodeCursor(f.Cursor)
		if err != nil {
			return nil, err
		}
		where = append(where, "(executed_at, id) < (?, ?)")
		args = append(args, at, id)
	}
	args = append(args, limit+1)

	query := `SELECT ` + execLogColumns + ` FROM trigger_execution_logs
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY executed_at DESC, id DESC
		LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing execution logs: %w", err)
	}
	defer rows.Close()

	page := &domain.ExecutionPage{}
	for rows.Next() {
		l, err := scanExecLog(rows)
		if err != nil {
			return nil, err
		}
		page.Items = append(page.Items, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating execution logs: %w", err)
	}

	if len(page.Items) > limit {
		page.Items = page.Items[:limit]
		last := page.Items[limit-1]
		page.NextCursor = EncodeCursor(last.ExecutedAt, last.ID)
	}
	return page, nil
}

// Latest returns the most recent row for the rule, or nil when the rule
// has never been evaluated.
func (r *SQLiteExecutionLogRepo) Latest(ctx context.Context, ruleID string) (*domain.TriggerExecutionLog, error) {
	query := `SELECT ` + execLogColumns + ` FROM trigger_execution_logs
		WHERE rule_id = ? ORDER BY executed_at DESC, id DESC LIMIT 1`
	l, err := scanExecLog(r.db.QueryRowContext(ctx, query, ruleID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return l, err
}

// Stats aggregates the full history in a single statement so the counts
// and the average come from the same snapshot.
func (r *SQLiteExecutionLogRepo) Stats(ctx context.Context, ruleID string) (*domain.ExecutionStats, error) {
	query := `SELECT COUNT(*),
		COALESCE(SUM(CASE WHEN execution_status = 'SUCCESS' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN execution_status = 'FAILED' THEN 1 ELSE 0 END), 0),
		COALESCE(CAST(ROUND(AVG(duration_ms)) AS INTEGER), 0)
		FROM trigger_execution_logs WHERE rule_id = ?`
	stats := &domain.ExecutionStats{RuleID: ruleID}
	err := r.db.QueryRowContext(ctx, query, ruleID).Scan(
		&stats.TotalExecutions, &stats.SuccessCount, &stats.FailureCount, &stats.AvgExecutionTimeMS,
	)
	if err != nil {
		return nil, fmt.Errorf("computing execution stats: %w", err)
	}
	return stats, nil
}

func (r *SQLiteExecutionLogRepo) HasFiredReference(ctx context.Context, eventID string) (bool, error) {
	query := `SELECT EXISTS (
		SELECT 1 FROM trigger_execution_logs
		WHERE execution_status = 'SUCCESS'
		  AND json_extract(execution_context, '$.event_id') = ?
		  AND json_extract(execution_result, '$.fired') = 1
	)`
	var exists int
	if err := r.db.QueryRowContext(ctx, query, eventID).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking event references: %w", err)
	}
	return exists == 1, nil
}

// EncodeCursor builds the opaque history cursor for a row position.
func EncodeCursor(executedAt time.Time, id string) string {
	raw := executedAt.UTC().Format(execTimeLayout) + "|" + id
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor returns the stored executed_at text and id of a cursor.
func DecodeCursor(cursor string) (string, string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return "", "", domain.NewValidationError("cursor", "malformed cursor")
	}
	at, id, ok := strings.Cut(string(raw), "|")
	if !ok || id == "" {
		return "", "", domain.NewValidationError("cursor", "malformed cursor")
	}
	if _, err := time.Parse(execTimeLayout, at); err != nil {
		return "", "", domain.NewValidationError("cursor", "malformed cursor")
	}
	return at, id, nil
}

func scanExecLog(row scanner) (*domain.TriggerExecutionLog, error) {
	var l domain.TriggerExecutionLog
	var executedAt, status, result, snapshot string
	var errMsg sql.NullString

	err := row.Scan(&l.ID, &l.RuleID, &executedAt, &status, &result, &snapshot, &errMsg, &l.DurationMS, &l.DedupKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning execution log: %w", err)
	}
	l.Status = domain.ExecutionStatus(status)
	l.ErrorMessage = stringPtr(errMsg)
	if l.ExecutedAt, err = time.Parse(execTimeLayout, executedAt); err != nil {
		return nil, fmt.Errorf("parsing executed_at: %w", err)
	}
	if err := fromJSON("execution_result", result, &l.Result); err != nil {
		return nil, err
	}
	if err := fromJSON("execution_context", snapshot, &l.Context); err != nil {
		return nil, err
	}
	return &l, nil
}

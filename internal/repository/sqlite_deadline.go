package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alexanderramin/duecycle/internal/db"
	"github.com/alexanderramin/duecycle/internal/domain"
)

// SQLiteDeadlineRepo implements DeadlineRepo using a SQLite database.
type SQLiteDeadlineRepo struct {
	db db.DBTX
}

// NewSQLiteDeadlineRepo creates a new SQLiteDeadlineRepo.
func NewSQLiteDeadlineRepo(conn db.DBTX) *SQLiteDeadlineRepo {
	return &SQLiteDeadlineRepo{db: conn}
}

const deadlineColumns = `id, schedule_id, due_date, status, compliance_period, is_late, completed_at, created_at, updated_at`

func (r *SQLiteDeadlineRepo) Upsert(ctx context.Context, d *domain.Deadline) (bool, error) {
	query := `INSERT INTO deadlines (` + deadlineColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(schedule_id, due_date) DO NOTHING`
	res, err := r.db.ExecContext(ctx, query,
		d.ID,
		d.ScheduleID,
		d.DueDate.Format(dateLayout),
		string(d.Status),
		d.CompliancePeriod,
		nullableBool(d.IsLate),
		nullableTimeToString(d.CompletedAt, time.RFC3339),
		formatTime(d.CreatedAt),
		formatTime(d.UpdatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("upserting deadline: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("upserting deadline: %w", err)
	}
	return n > 0, nil
}

func (r *SQLiteDeadlineRepo) GetByID(ctx context.Context, id string) (*domain.Deadline, error) {
	query := `SELECT ` + deadlineColumns + ` FROM deadlines WHERE id = ?`
	d, err := scanDeadline(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("deadline", id)
	}
	return d, err
}

func (r *SQLiteDeadlineRepo) GetByScheduleAndDate(ctx context.Context, scheduleID string, due time.Time) (*domain.Deadline, error) {
	day := due.Format(dateLayout)
	query := `SELECT ` + deadlineColumns + ` FROM deadlines WHERE schedule_id = ? AND due_date = ?`
	d, err := scanDeadline(r.db.QueryRowContext(ctx, query, scheduleID, day))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("deadline", scheduleID+"@"+day)
	}
	return d, err
}

// ListBySchedule returns the schedule's deadlines, newest due date first.
func (r *SQLiteDeadlineRepo) ListBySchedule(ctx context.Context, scheduleID string) ([]*domain.Deadline, error) {
	query := `SELECT ` + deadlineColumns + ` FROM deadlines WHERE schedule_id = ? ORDER BY due_date DESC, id DESC`
	return r.list(ctx, query, scheduleID)
}

// ListPendingBySchedule returns the schedule's open deadlines, earliest
// first.
func (r *SQLiteDeadlineRepo) ListPendingBySchedule(ctx context.Context, scheduleID string) ([]*domain.Deadline, error) {
	query := `SELECT ` + deadlineColumns + ` FROM deadlines WHERE schedule_id = ? AND status = 'PENDING' ORDER BY due_date, id`
	return r.list(ctx, query, scheduleID)
}

func (r *SQLiteDeadlineRepo) ListByStatus(ctx context.Context, status domain.DeadlineStatus) ([]*domain.Deadline, error) {
	query := `SELECT ` + deadlineColumns + ` FROM deadlines WHERE status = ? ORDER BY due_date, id`
	return r.list(ctx, query, string(status))
}

func (r *SQLiteDeadlineRepo) list(ctx context.Context, query string, args ...any) ([]*domain.Deadline, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing deadlines: %w", err)
	}
	defer rows.Close()

	var deadlines []*domain.Deadline
	for rows.Next() {
		d, err := scanDeadline(rows)
		if err != nil {
			return nil, err
		}
		deadlines = append(deadlines, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating deadlines: %w", err)
	}
	return deadlines, nil
}

// Update writes the mutable fields. is_late is only written while it is
// still NULL so a completed deadline keeps its original lateness.
func (r *SQLiteDeadlineRepo) Update(ctx context.Context, d *domain.Deadline) error {
	query := `UPDATE deadlines SET status = ?, is_late = COALESCE(is_late, ?), completed_at = COALESCE(completed_at, ?), updated_at = ?
		WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query,
		string(d.Status),
		nullableBool(d.IsLate),
		nullableTimeToString(d.CompletedAt, time.RFC3339),
		formatTime(d.UpdatedAt),
		d.ID,
	)
	if err != nil {
		return fmt.Errorf("updating deadline: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("deadline", d.ID)
	}
	return nil
}

// Reschedule writes a PENDING deadline's new due date and period.
func (r *SQLiteDeadlineRepo) Reschedule(ctx context.Context, d *domain.Deadline) error {
	query := `UPDATE deadlines SET due_date = ?, compliance_period = ?, updated_at = ?
		WHERE id = ? AND status = 'PENDING'`
	res, err := r.db.ExecContext(ctx, query,
		d.DueDate.Format(dateLayout),
		d.CompliancePeriod,
		formatTime(d.UpdatedAt),
		d.ID,
	)
	if err != nil {
		return fmt.Errorf("rescheduling deadline: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("pending deadline", d.ID)
	}
	return nil
}

// DeletePending removes an open deadline. Closed deadlines are history and
// are never deleted.
func (r *SQLiteDeadlineRepo) DeletePending(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM deadlines WHERE id = ? AND status = 'PENDING'`, id); err != nil {
		return fmt.Errorf("deleting deadline: %w", err)
	}
	return nil
}

func (r *SQLiteDeadlineRepo) MarkOverdue(ctx context.Context, today time.Time, now time.Time) (int64, error) {
	query := `UPDATE deadlines SET status = 'OVERDUE', updated_at = ?
		WHERE status = 'PENDING' AND due_date < ?`
	res, err := r.db.ExecContext(ctx, query, formatTime(now), domain.Civil(today).Format(dateLayout))
	if err != nil {
		return 0, fmt.Errorf("marking deadlines overdue: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("marking deadlines overdue: %w", err)
	}
	return n, nil
}

func nullableBool(b *bool) any {
	if b == nil {
		return nil
	}
	return boolToInt(*b)
}

func scanDeadline(row scanner) (*domain.Deadline, error) {
	var d domain.Deadline
	var due, status, createdAt, updatedAt string
	var isLate sql.NullInt64
	var completedAt sql.NullString

	err := row.Scan(&d.ID, &d.ScheduleID, &due, &status, &d.CompliancePeriod, &isLate, &completedAt, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning deadline: %w", err)
	}

	d.Status = domain.DeadlineStatus(status)
	if isLate.Valid {
		late := isLate.Int64 != 0
		d.IsLate = &late
	}
	d.CompletedAt = parseNullableTime(completedAt, time.RFC3339)
	if d.DueDate, err = parseDate("due_date", due); err != nil {
		return nil, err
	}
	if d.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return nil, err
	}
	if d.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return nil, err
	}
	return &d, nil
}

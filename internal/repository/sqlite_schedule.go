package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/alexanderramin/duecycle/internal/db"
	"github.com/alexanderramin/duecycle/internal/domain"
)

// SQLiteScheduleRepo implements ScheduleRepo using a SQLite database.
type SQLiteScheduleRepo struct {
	db db.DBTX
}

// NewSQLiteScheduleRepo creates a new SQLiteScheduleRepo.
func NewSQLiteScheduleRepo(conn db.DBTX) *SQLiteScheduleRepo {
	return &SQLiteScheduleRepo{db: conn}
}

const scheduleColumns = `id, obligation_id, site_id, frequency, base_date, next_due_date, last_completed_date,
	status, adjust_for_business_days, reminder_offsets, previous_values, modified_by, modified_at, created_at`

func (r *SQLiteScheduleRepo) Create(ctx context.Context, s *domain.Schedule) error {
	offsets, prev, err := encodeScheduleBlobs(s)
	if err != nil {
		return err
	}
	query := `INSERT INTO schedules (` + scheduleColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		s.ID,
		s.ObligationID,
		s.SiteID,
		string(s.Frequency),
		s.BaseDate.Format(dateLayout),
		nullableTimeToString(s.NextDueDate, dateLayout),
		nullableTimeToString(s.LastCompletedDate, dateLayout),
		string(s.Status),
		boolToInt(s.AdjustForBusinessDays),
		offsets,
		prev,
		s.ModifiedBy,
		formatTime(s.ModifiedAt),
		formatTime(s.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting schedule: %w", err)
	}
	return nil
}

func (r *SQLiteScheduleRepo) GetByID(ctx context.Context, id string) (*domain.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE id = ?`
	s, err := scanSchedule(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("schedule", id)
	}
	return s, err
}

func (r *SQLiteScheduleRepo) List(ctx context.Context, f ScheduleFilter) ([]*domain.Schedule, error) {
	var where []string
	var args []any
	if f.SiteID != "" {
		where = append(where, "site_id = ?")
		args = append(args, f.SiteID)
	}
	if f.ObligationID != "" {
		where = append(where, "obligation_id = ?")
		args = append(args, f.ObligationID)
	}
	if f.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*f.Status))
	}

	query := `SELECT ` + scheduleColumns + ` FROM schedules`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at, id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing schedules: %w", err)
	}
	defer rows.Close()

	var schedules []*domain.Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating schedules: %w", err)
	}
	return schedules, nil
}

func (r *SQLiteScheduleRepo) Update(ctx context.Context, s *domain.Schedule) error {
	offsets, prev, err := encodeScheduleBlobs(s)
	if err != nil {
		return err
	}
	query := `UPDATE schedules SET frequency = ?, base_date = ?, next_due_date = ?, last_completed_date = ?,
		status = ?, adjust_for_business_days = ?, reminder_offsets = ?, previous_values = ?,
		modified_by = ?, modified_at = ?
		WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query,
		string(s.Frequency),
		s.BaseDate.Format(dateLayout),
		nullableTimeToString(s.NextDueDate, dateLayout),
		nullableTimeToString(s.LastCompletedDate, dateLayout),
		string(s.Status),
		boolToInt(s.AdjustForBusinessDays),
		offsets,
		prev,
		s.ModifiedBy,
		formatTime(s.ModifiedAt),
		s.ID,
	)
	if err != nil {
		return fmt.Errorf("updating schedule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("schedule", s.ID)
	}
	return nil
}

func encodeScheduleBlobs(s *domain.Schedule) (string, string, error) {
	offsets, err := toJSON(s.ReminderOffsets, "[]")
	if err != nil {
		return "", "", fmt.Errorf("reminder_offsets: %w", err)
	}
	prev, err := toJSON(s.PreviousValues, "[]")
	if err != nil {
		return "", "", fmt.Errorf("previous_values: %w", err)
	}
	return offsets, prev, nil
}

func scanSchedule(row scanner) (*domain.Schedule, error) {
	var s domain.Schedule
	var frequency, status, baseDate, offsets, prev, modifiedAt, createdAt string
	var nextDue, lastCompleted sql.NullString
	var adjust int

	err := row.Scan(
		&s.ID, &s.ObligationID, &s.SiteID, &frequency, &baseDate,
		&nextDue, &lastCompleted,
		&status, &adjust, &offsets, &prev,
		&s.ModifiedBy, &modifiedAt, &createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning schedule: %w", err)
	}

	s.Frequency = domain.Frequency(frequency)
	s.Status = domain.ScheduleStatus(status)
	s.AdjustForBusinessDays = intToBool(adjust)
	s.NextDueDate = parseNullableTime(nextDue, dateLayout)
	s.LastCompletedDate = parseNullableTime(lastCompleted, dateLayout)

	if s.BaseDate, err = parseDate("base_date", baseDate); err != nil {
		return nil, err
	}
	if s.ModifiedAt, err = parseTime("modified_at", modifiedAt); err != nil {
		return nil, err
	}
	if s.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return nil, err
	}
	if err := fromJSON("reminder_offsets", offsets, &s.ReminderOffsets); err != nil {
		return nil, err
	}
	if err := fromJSON("previous_values", prev, &s.PreviousValues); err != nil {
		return nil, err
	}
	return &s, nil
}

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

// SQLiteEventRepo implements EventRepo using a SQLite database.
type SQLiteEventRepo struct {
	db db.DBTX
}

// NewSQLiteEventRepo creates a new SQLiteEventRepo.
func NewSQLiteEventRepo(conn db.DBTX) *SQLiteEventRepo {
	return &SQLiteEventRepo{db: conn}
}

const eventColumns = `id, event_type, name, event_date, metadata, lifecycle, created_at, updated_at`

func (r *SQLiteEventRepo) Create(ctx context.Context, e *domain.RecurrenceEvent) error {
	meta, err := toJSON(e.Metadata, "{}")
	if err != nil {
		return fmt.Errorf("metadata: %w", err)
	}
	query := `INSERT INTO recurrence_events (` + eventColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		e.ID,
		e.EventType,
		e.Name,
		e.EventDate.Format(dateLayout),
		meta,
		string(e.Lifecycle),
		formatTime(e.CreatedAt),
		formatTime(e.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}
	return nil
}

func (r *SQLiteEventRepo) GetByID(ctx context.Context, id string) (*domain.RecurrenceEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM recurrence_events WHERE id = ?`
	e, err := scanEvent(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("event", id)
	}
	return e, err
}

func (r *SQLiteEventRepo) List(ctx context.Context, f EventFilter) ([]*domain.RecurrenceEvent, error) {
	var where []string
	var args []any
	if f.EventType != "" {
		where = append(where, "event_type = ?")
		args = append(args, f.EventType)
	}
	if f.Lifecycle != nil {
		where = append(where, "lifecycle = ?")
		args = append(args, string(*f.Lifecycle))
	}
	query := `SELECT ` + eventColumns + ` FROM recurrence_events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY event_date DESC, id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	var events []*domain.RecurrenceEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}
	return events, nil
}

func (r *SQLiteEventRepo) Update(ctx context.Context, e *domain.RecurrenceEvent) error {
	meta, err := toJSON(e.Metadata, "{}")
	if err != nil {
		return fmt.Errorf("metadata: %w", err)
	}
	query := `UPDATE recurrence_events SET event_type = ?, name = ?, event_date = ?, metadata = ?, lifecycle = ?, updated_at = ?
		WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query,
		e.EventType,
		e.Name,
		e.EventDate.Format(dateLayout),
		meta,
		string(e.Lifecycle),
		formatTime(e.UpdatedAt),
		e.ID,
	)
	if err != nil {
		return fmt.Errorf("updating event: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("event", e.ID)
	}
	return nil
}

func scanEvent(row scanner) (*domain.RecurrenceEvent, error) {
	var e domain.RecurrenceEvent
	var eventDate, meta, lifecycle, createdAt, updatedAt string

	err := row.Scan(&e.ID, &e.EventType, &e.Name, &eventDate, &meta, &lifecycle, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning event: %w", err)
	}
	e.Lifecycle = domain.Lifecycle(lifecycle)
	if e.EventDate, err = parseDate("event_date", eventDate); err != nil {
		return nil, err
	}
	if e.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return nil, err
	}
	if e.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return nil, err
	}
	if err := fromJSON("metadata", meta, &e.Metadata); err != nil {
		return nil, err
	}
	return &e, nil
}

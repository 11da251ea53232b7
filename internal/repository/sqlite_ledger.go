package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/alexanderramin/duecycle/internal/db"
	"github.com/alexanderramin/duecycle/internal/domain"
)

// SQLiteLedgerRepo stores measurement increments for rolling totals.
type SQLiteLedgerRepo struct {
	db db.DBTX
}

// NewSQLiteLedgerRepo creates a new SQLiteLedgerRepo.
func NewSQLiteLedgerRepo(conn db.DBTX) *SQLiteLedgerRepo {
	return &SQLiteLedgerRepo{db: conn}
}

func (r *SQLiteLedgerRepo) Append(ctx context.Context, m *domain.MeasurementIncrement) error {
	query := `INSERT INTO measurement_increments (id, subject_id, recorded_on, amount, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		m.ID,
		m.SubjectID,
		m.RecordedOn.Format(dateLayout),
		m.Amount,
		m.Note,
		formatTime(m.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting measurement increment: %w", err)
	}
	return nil
}

// ListBySubject returns increments recorded on days in [from, to).
func (r *SQLiteLedgerRepo) ListBySubject(ctx context.Context, subjectID string, from, to time.Time) ([]domain.MeasurementIncrement, error) {
	query := `SELECT id, subject_id, recorded_on, amount, note, created_at FROM measurement_increments
		WHERE subject_id = ? AND recorded_on >= ? AND recorded_on < ?
		ORDER BY recorded_on, created_at, id`
	rows, err := r.db.QueryContext(ctx, query, subjectID, from.Format(dateLayout), to.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("listing measurement increments: %w", err)
	}
	defer rows.Close()

	var out []domain.MeasurementIncrement
	for rows.Next() {
		var m domain.MeasurementIncrement
		var recordedOn, createdAt string
		if err := rows.Scan(&m.ID, &m.SubjectID, &recordedOn, &m.Amount, &m.Note, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning measurement increment: %w", err)
		}
		if m.RecordedOn, err = parseDate("recorded_on", recordedOn); err != nil {
			return nil, err
		}
		if m.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating measurement increments: %w", err)
	}
	return out, nil
}

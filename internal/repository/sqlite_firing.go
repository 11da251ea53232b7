package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/alexanderramin/duecycle/internal/db"
)

// SQLiteFiringRepo is the at-most-once ledger of fired periods.
type SQLiteFiringRepo struct {
	db db.DBTX
}

// NewSQLiteFiringRepo creates a new SQLiteFiringRepo.
func NewSQLiteFiringRepo(conn db.DBTX) *SQLiteFiringRepo {
	return &SQLiteFiringRepo{db: conn}
}

// Record claims periodKey for the rule. It reports false when the period
// was already claimed.
func (r *SQLiteFiringRepo) Record(ctx context.Context, ruleID, periodKey string, firedAt time.Time) (bool, error) {
	query := `INSERT OR IGNORE INTO rule_firings (rule_id, period_key, fired_at) VALUES (?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query, ruleID, periodKey, formatTime(firedAt))
	if err != nil {
		return false, fmt.Errorf("recording firing %s: %w", periodKey, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("recording firing %s: %w", periodKey, err)
	}
	return n == 1, nil
}

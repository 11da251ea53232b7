package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/alexanderramin/duecycle/internal/db"
)

// FailOnNthExecUoW injects Err into the FailOn-th write of a transaction so
// tests can check that a fire, a completion or a schedule change rolls back
// as a whole.
//
// Writes are counted from 1. When Matching is set only statements containing
// it are counted, so a test can target "the execution log insert" instead
// of a position that shifts whenever a use case gains a write. Reads are
// never counted.
type FailOnNthExecUoW struct {
	DB       *sql.DB
	FailOn   int32
	Matching string
	Err      error
}

func (u *FailOnNthExecUoW) WithinTx(ctx context.Context, fn func(ctx context.Context, tx db.DBTX) error) error {
	tx, err := u.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	wrapped := &failingTx{DBTX: tx, failOn: u.FailOn, matching: u.Matching, err: u.Err}
	if fnErr := fn(ctx, wrapped); fnErr != nil {
		_ = tx.Rollback()
		return fnErr
	}
	return tx.Commit()
}

type failingTx struct {
	db.DBTX
	count    atomic.Int32
	failOn   int32
	matching string
	err      error
}

func (f *failingTx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if f.matching != "" && !strings.Contains(query, f.matching) {
		return f.DBTX.ExecContext(ctx, query, args...)
	}
	if f.count.Add(1) == f.failOn {
		return nil, f.err
	}
	return f.DBTX.ExecContext(ctx, query, args...)
}

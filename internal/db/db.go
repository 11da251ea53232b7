package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// Connection pragmas are passed in the DSN so every pooled connection gets
// them, not only the first one.
var connPragmas = []string{
	"foreign_keys(1)",
	"busy_timeout(5000)",
}

// OpenDB opens a SQLite database at the given path.
// If path is ":memory:", uses an in-memory database held on a single
// connection so every query sees the same schema.
// Sets WAL mode for file databases, enables foreign keys, and runs
// migrations.
func OpenDB(path string) (*sql.DB, error) {
	memory := path == ":memory:"
	if !memory {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if memory {
		db.SetMaxOpenConns(1)
	}

	// WAL lets the HTTP API read while the driver writes.
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	if err := Migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return db, nil
}

func dsn(path string) string {
	params := make([]string, 0, len(connPragmas))
	for _, p := range connPragmas {
		params = append(params, "_pragma="+p)
	}
	return path + "?" + strings.Join(params, "&")
}

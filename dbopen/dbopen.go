// Package dbopen opens the polwatch SQLite database: connection pragmas,
// then versioned schema steps tracked in PRAGMA user_version.
//
//	db, err := dbopen.Open("polwatch.db", dbopen.WithMkdirAll(), dbopen.WithSchema(store.Schema))
//
// The caller blank-imports the driver (modernc.org/sqlite).
package dbopen

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

const memoryPath = ":memory:"

type config struct {
	driver      string
	busyTimeout int
	mkdirAll    bool
	steps       []string
}

// Option customises Open.
type Option func(*config)

// WithDriver sets the database/sql driver name. Default: "sqlite".
func WithDriver(name string) Option { return func(c *config) { c.driver = name } }

// WithBusyTimeout sets PRAGMA busy_timeout in milliseconds. Default: 10000.
func WithBusyTimeout(ms int) Option { return func(c *config) { c.busyTimeout = ms } }

// WithMkdirAll creates the parent directory of the database file.
func WithMkdirAll() Option { return func(c *config) { c.mkdirAll = true } }

// WithSchema appends one schema step. Steps are numbered in the order given;
// step n runs only while user_version < n, then user_version becomes n.
func WithSchema(ddl ...string) Option {
	return func(c *config) { c.steps = append(c.steps, ddl...) }
}

func (c *config) pragmas() []string {
	return []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", c.busyTimeout),
		"PRAGMA synchronous = NORMAL",
	}
}

// Open opens the database at path, applies the pragmas and any pending
// schema steps.
func Open(path string, opts ...Option) (*sql.DB, error) {
	cfg := config{driver: "sqlite", busyTimeout: 10_000}
	for _, o := range opts {
		o(&cfg)
	}

	if cfg.mkdirAll && path != memoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("dbopen: mkdir: %w", err)
		}
	}

	db, err := sql.Open(cfg.driver, path)
	if err != nil {
		return nil, fmt.Errorf("dbopen: open: %w", err)
	}
	if path == memoryPath {
		// Each connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	for _, p := range cfg.pragmas() {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("dbopen: %s: %w", p, err)
		}
	}
	if err := migrate(context.Background(), db, cfg.steps); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// SchemaVersion returns PRAGMA user_version.
func SchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var v int
	err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v)
	return v, err
}

func migrate(ctx context.Context, db *sql.DB, steps []string) error {
	current, err := SchemaVersion(ctx, db)
	if err != nil {
		return fmt.Errorf("dbopen: schema version: %w", err)
	}
	if current > len(steps) {
		return fmt.Errorf("dbopen: database schema v%d is newer than this binary (v%d)", current, len(steps))
	}
	for i := current; i < len(steps); i++ {
		version := i + 1
		err := RunTx(ctx, db, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, steps[i]); err != nil {
				return err
			}
			// PRAGMA takes no bind parameters.
			_, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", version))
			return err
		})
		if err != nil {
			return fmt.Errorf("dbopen: schema step %d: %w", version, err)
		}
	}
	return nil
}

// OpenMemory opens an in-memory database for tests; t.Cleanup closes it.
func OpenMemory(t testing.TB, opts ...Option) *sql.DB {
	t.Helper()
	db, err := Open(memoryPath, opts...)
	if err != nil {
		t.Fatalf("dbopen.OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

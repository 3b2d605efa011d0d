// CLAUDE:SUMMARY SQLite persistence for snapshots, comparison history and the audit log.
// Package store provides the SQLite persistence layer for polwatch.
package store

import (
	"database/sql"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/polwatch/dbopen"
	"github.com/hazyhaar/polwatch/idgen"
)

// Store is the polwatch database handle.
type Store struct {
	DB  *sql.DB
	ids idgen.Generator
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithIDs sets the row ID generator. Default: UUIDv7.
func WithIDs(gen idgen.Generator) Option {
	return func(s *Store) { s.ids = gen }
}

// WithClock sets the clock used for created_at columns.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New wraps an open database whose schema is already applied.
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{DB: db, ids: idgen.Default, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(Schema))
	if err != nil {
		return nil, err
	}
	return New(db, opts...), nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}

func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

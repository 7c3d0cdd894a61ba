package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	_ "modernc.org/sqlite"

	"lifelog/internal/blobstore"
)

const (
	busyTimeoutMS   = 5000
	maxOpenConns    = 1
	maxIdleConns    = 1
	connMaxLifetime = 5 * time.Minute
)

// Options configures optional store collaborators.
type Options struct {
	// Blobs receives media payloads. When nil, payloads stay inline in the row.
	Blobs  blobstore.BlobStore
	Logger *slog.Logger
}

// Store is the entity store: one SQLite table per collection in DefaultSchema.
//
// Every Crud operation runs in its own transaction scoped to a single
// collection. Writes that span collections are not atomic.
type Store struct {
	db     *sql.DB
	schema Schema
	blobs  blobstore.BlobStore
	logger *slog.Logger
}

// Open opens the SQLite database and applies pending migrations.
// Failures are reported as KindConnection errors.
func Open(path string, opts Options) (*Store, error) {
	dsn, err := sqliteDSN(path)
	if err != nil {
		return nil, connectionError("open", err)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, connectionError("open", err)
	}

	if err := configureDB(db); err != nil {
		_ = db.Close()
		return nil, connectionError("configure", err)
	}
	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, connectionError("migrate", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, schema: DefaultSchema, blobs: opts.Blobs, logger: logger}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Schema returns the collection layout the store was opened with.
func (s *Store) Schema() Schema {
	return s.schema
}

func configureDB(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		fmt.Sprintf("PRAGMA busy_timeout = %d;", busyTimeoutMS),
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	return nil
}

func sqliteDSN(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("db path is required")
	}
	u := url.URL{Scheme: "file", Path: path}
	return u.String(), nil
}

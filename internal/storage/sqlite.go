package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dshills/projectindex/internal/schema"
)

var (
	// ErrNotFound is returned when a requested catalog entry doesn't exist
	ErrNotFound = errors.New("not found")
)

// SQLiteStorage holds every index version of one SQLite database
type SQLiteStorage struct {
	db *sql.DB

	mu      sync.Mutex
	indexes map[int]*ProjectIndex
}

// VersionInfo is the catalog entry of one index version
type VersionInfo struct {
	Version       int
	Ready         bool
	LastReindexAt time.Time
	LastReindexOK bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer; this also keeps ":memory:"
	// databases on one connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage opens (or creates) the database at dbPath and applies
// catalog migrations
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db, indexes: make(map[int]*ProjectIndex)}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// withTx runs fn inside a transaction, committing only if fn succeeds
func (s *SQLiteStorage) withTx(ctx context.Context, fn func(q querier) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// OpenIndex returns the index for a schema version, creating its tables and
// catalog entry on first use. A new version starts out not ready.
func (s *SQLiteStorage) OpenIndex(ctx context.Context, sch *schema.Schema) (*ProjectIndex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idx, ok := s.indexes[sch.Version]; ok {
		return idx, nil
	}

	idx := newProjectIndex(s, sch)
	err := s.withTx(ctx, func(q querier) error {
		if _, err := q.ExecContext(ctx, idx.ddl()); err != nil {
			return fmt.Errorf("failed to create tables for v%d: %w", sch.Version, err)
		}
		_, err := q.ExecContext(ctx,
			"INSERT INTO index_versions (version) VALUES (?) ON CONFLICT(version) DO NOTHING",
			sch.Version)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.indexes[sch.Version] = idx
	return idx, nil
}

// SetReady records whether an index version holds a complete rebuild
func (s *SQLiteStorage) SetReady(ctx context.Context, version int, ready bool) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE index_versions SET ready = ?, updated_at = ? WHERE version = ?",
		ready, time.Now(), version)
	if err != nil {
		return fmt.Errorf("failed to update index version %d: %w", version, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("index version %d: %w", version, ErrNotFound)
	}
	return nil
}

// RecordReindex stores the outcome of a full rebuild of an index version
func (s *SQLiteStorage) RecordReindex(ctx context.Context, version int, ok bool) error {
	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		"UPDATE index_versions SET last_reindex_at = ?, last_reindex_ok = ?, updated_at = ? WHERE version = ?",
		now, ok, now, version)
	if err != nil {
		return fmt.Errorf("failed to record reindex of version %d: %w", version, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("index version %d: %w", version, ErrNotFound)
	}
	return nil
}

// GetVersion returns the catalog entry of one index version
func (s *SQLiteStorage) GetVersion(ctx context.Context, version int) (*VersionInfo, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT version, ready, last_reindex_at, last_reindex_ok, created_at, updated_at
		FROM index_versions
		WHERE version = ?
	`, version)
	info, err := scanVersion(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return info, err
}

// ListVersions returns every catalog entry ordered by version
func (s *SQLiteStorage) ListVersions(ctx context.Context) ([]*VersionInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT version, ready, last_reindex_at, last_reindex_ok, created_at, updated_at
		FROM index_versions
		ORDER BY version
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list index versions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*VersionInfo
	for rows.Next() {
		info, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanVersion(row scanner) (*VersionInfo, error) {
	var info VersionInfo
	var lastAt sql.NullTime
	var lastOK sql.NullBool
	if err := row.Scan(&info.Version, &info.Ready, &lastAt, &lastOK, &info.CreatedAt, &info.UpdatedAt); err != nil {
		return nil, err
	}
	if lastAt.Valid {
		info.LastReindexAt = lastAt.Time
	}
	info.LastReindexOK = lastOK.Valid && lastOK.Bool
	return &info, nil
}

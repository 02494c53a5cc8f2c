package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/TheMichaelB/casevault/internal/events"
)

// SQLiteStore keeps records in a SQLite table.
type SQLiteStore struct {
	db     *sql.DB
	logger *events.Logger
}

// NewSQLiteStore opens (or creates) the SQLite database at path.
func NewSQLiteStore(dbPath string, logger *events.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := &SQLiteStore{
		db:     db,
		logger: logger.WithField("component", "sqlite_store"),
	}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	return store, nil
}

// initialize creates the records table.
func (s *SQLiteStore) initialize() error {
	schema := `
    CREATE TABLE IF NOT EXISTS blobs (
        id TEXT PRIMARY KEY,
        value BLOB NOT NULL,
        updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
    );
    `

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Get implements BlobStore.
func (s *SQLiteStore) Get(ctx context.Context, id string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM blobs WHERE id = ?`, id).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query record: %w", err)
	}
	if value == nil {
		value = []byte{}
	}
	return value, nil
}

// Set implements BlobStore.
func (s *SQLiteStore) Set(ctx context.Context, id string, value []byte) error {
	if err := ValidateID(id); err != nil {
		return err
	}

	s.logger.WithFields(map[string]interface{}{
		"id":      id,
		"size":    len(value),
		"session": events.GetStore(ctx),
	}).Debug("Writing record")

	_, err := s.db.ExecContext(ctx, `
        INSERT INTO blobs (id, value, updated_at)
        VALUES (?, ?, CURRENT_TIMESTAMP)
        ON CONFLICT(id) DO UPDATE SET
            value = excluded.value,
            updated_at = CURRENT_TIMESTAMP
    `, id, cloneNonNil(value))
	if err != nil {
		return fmt.Errorf("upsert record: %w", err)
	}
	return nil
}

// SetIfAbsent relies on the primary key: the insert is a no-op when the id exists.
func (s *SQLiteStore) SetIfAbsent(ctx context.Context, id string, value []byte) ([]byte, bool, error) {
	if err := ValidateID(id); err != nil {
		return nil, false, err
	}

	res, err := s.db.ExecContext(ctx, `
        INSERT INTO blobs (id, value) VALUES (?, ?)
        ON CONFLICT(id) DO NOTHING
    `, id, cloneNonNil(value))
	if err != nil {
		return nil, false, fmt.Errorf("insert record: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("rows affected: %w", err)
	}
	if n == 1 {
		return clone(value), true, nil
	}

	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, false, fmt.Errorf("read existing record: %w", err)
	}
	return existing, false, nil
}

// Delete implements BlobStore.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM blobs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

// Close implements BlobStore.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

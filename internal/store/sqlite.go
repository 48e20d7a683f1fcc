package store

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLite keeps the document in a single row.
type SQLite struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	s, err := NewSQLite(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func NewSQLite(db *sql.DB) (*SQLite, error) {
	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS state (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		doc BLOB NOT NULL,
		saved_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS state_bad (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		doc BLOB NOT NULL,
		saved_at DATETIME NOT NULL,
		set_aside_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

func (s *SQLite) Load(ctx context.Context) ([]byte, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM state WHERE id = 1`).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	return doc, nil
}

func (s *SQLite) Save(ctx context.Context, doc []byte) error {
	if cur, err := s.Load(ctx); err == nil && bytes.Equal(cur, doc) {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO state (id, doc, saved_at) VALUES (1, ?, CURRENT_TIMESTAMP)
	ON CONFLICT(id) DO UPDATE SET doc = excluded.doc, saved_at = excluded.saved_at`, doc)
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// SetAside moves the current row into state_bad.
func (s *SQLite) SetAside(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("set aside state: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `INSERT INTO state_bad (doc, saved_at) SELECT doc, saved_at FROM state WHERE id = 1`); err != nil {
		return fmt.Errorf("set aside state: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM state WHERE id = 1`); err != nil {
		return fmt.Errorf("set aside state: %w", err)
	}
	return tx.Commit()
}

func (s *SQLite) Close() error { return s.db.Close() }

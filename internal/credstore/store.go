// Package credstore keeps OAuth tokens between runs.
package credstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ServiceDiscogs is the key the Discogs OAuth session is stored under.
const ServiceDiscogs = "discogs"

// ErrNotFound is returned by Load when nothing is stored for a service.
var ErrNotFound = errors.New("no stored credentials")

// Credentials is an OAuth token pair and the account it belongs to.
type Credentials struct {
	Token     string
	Secret    string
	Username  string
	UpdatedAt time.Time
}

// Store persists credentials by service name.
type Store interface {
	Load(ctx context.Context, service string) (Credentials, error)
	Save(ctx context.Context, service string, creds Credentials) error
	Delete(ctx context.Context, service string) error
}

const schema = `CREATE TABLE IF NOT EXISTS credentials (
	service TEXT PRIMARY KEY,
	token TEXT NOT NULL,
	secret TEXT NOT NULL,
	username TEXT NOT NULL DEFAULT '',
	updated_at INTEGER NOT NULL
)`

// SQLiteStore stores credentials in a sqlite file readable only by the owner.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (creating if needed) a credential database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create credential directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open credential store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		closeErr := db.Close()
		return nil, errors.Join(fmt.Errorf("failed to create credential table: %w", err), closeErr)
	}
	if err := os.Chmod(path, 0o600); err != nil && !errors.Is(err, os.ErrNotExist) {
		closeErr := db.Close()
		return nil, errors.Join(fmt.Errorf("failed to restrict credential store permissions: %w", err), closeErr)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load implements Store.
func (s *SQLiteStore) Load(ctx context.Context, service string) (Credentials, error) {
	var (
		creds   Credentials
		updated int64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT token, secret, username, updated_at FROM credentials WHERE service = ?", service).
		Scan(&creds.Token, &creds.Secret, &creds.Username, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Credentials{}, ErrNotFound
	}
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to load credentials for %s: %w", service, err)
	}
	creds.UpdatedAt = time.Unix(updated, 0)
	return creds, nil
}

// Save implements Store.
func (s *SQLiteStore) Save(ctx context.Context, service string, creds Credentials) error {
	if creds.Token == "" || creds.Secret == "" {
		return fmt.Errorf("refusing to store empty token for %s", service)
	}
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO credentials
		(service, token, secret, username, updated_at) VALUES (?, ?, ?, ?, ?)`,
		service, creds.Token, creds.Secret, creds.Username, s.now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save credentials for %s: %w", service, err)
	}
	return nil
}

// Delete implements Store. Deleting a missing entry is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, service string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM credentials WHERE service = ?", service); err != nil {
		return fmt.Errorf("failed to delete credentials for %s: %w", service, err)
	}
	return nil
}

package credential

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store persists credential quota bookkeeping across restarts in a local
// SQLite file. The settings layer writes keys; the pool writes usage.
type Store struct {
	db *sql.DB
}

// OpenStore opens (or creates) the credential database at path.
func OpenStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("credstore: mkdir %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("credstore: open db: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS credentials (
		id           TEXT PRIMARY KEY,
		label        TEXT NOT NULL DEFAULT '',
		api_key      TEXT NOT NULL,
		status       TEXT NOT NULL DEFAULT 'active',
		quota_used   INTEGER NOT NULL DEFAULT 0,
		quota_limit  INTEGER NOT NULL DEFAULT 10000,
		last_error   TEXT NOT NULL DEFAULT '',
		last_used_at TEXT NOT NULL DEFAULT ''
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("credstore: init schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Load returns all stored credentials.
func (s *Store) Load(ctx context.Context) ([]Credential, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, label, api_key, status, quota_used, quota_limit, last_error, last_used_at
		FROM credentials ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("credstore: load: %w", err)
	}
	defer rows.Close()

	var out []Credential
	for rows.Next() {
		var c Credential
		var status, lastUsed string
		if err := rows.Scan(&c.ID, &c.Label, &c.Key, &status, &c.QuotaUsed, &c.QuotaLimit, &c.LastError, &lastUsed); err != nil {
			return nil, fmt.Errorf("credstore: scan: %w", err)
		}
		c.Status = Status(status)
		if lastUsed != "" {
			if t, err := time.Parse(time.RFC3339, lastUsed); err == nil {
				c.LastUsedAt = t
			}
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Save upserts one credential.
func (s *Store) Save(ctx context.Context, c Credential) error {
	lastUsed := ""
	if !c.LastUsedAt.IsZero() {
		lastUsed = c.LastUsedAt.UTC().Format(time.RFC3339)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO credentials (id, label, api_key, status, quota_used, quota_limit, last_error, last_used_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			label = excluded.label,
			api_key = excluded.api_key,
			status = excluded.status,
			quota_used = excluded.quota_used,
			quota_limit = excluded.quota_limit,
			last_error = excluded.last_error,
			last_used_at = excluded.last_used_at`,
		c.ID, c.Label, c.Key, string(c.Status), c.QuotaUsed, c.QuotaLimit, c.LastError, lastUsed)
	if err != nil {
		return fmt.Errorf("credstore: save %s: %w", c.ID, err)
	}
	return nil
}

// Close shuts down the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

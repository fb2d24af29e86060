package storage

import (
	"database/sql"
	"fmt"
)

// PostgresStore keeps blobs in a single config_blobs table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the backing table when missing.
func (s *PostgresStore) EnsureSchema() error {
	const q = `
        CREATE TABLE IF NOT EXISTS config_blobs (
            key        TEXT PRIMARY KEY,
            value      JSONB NOT NULL,
            updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )
    `
	if _, err := s.db.Exec(q); err != nil {
		return fmt.Errorf("ensure config_blobs: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(key string) ([]byte, error) {
	const q = `SELECT value FROM config_blobs WHERE key = $1`
	var value []byte
	err := s.db.QueryRow(q, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get blob %q: %w", key, err)
	}
	return value, nil
}

func (s *PostgresStore) Put(key string, value []byte) error {
	const q = `
        INSERT INTO config_blobs (key, value, updated_at)
        VALUES ($1, $2, now())
        ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
    `
	if _, err := s.db.Exec(q, key, value); err != nil {
		return fmt.Errorf("put blob %q: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) Delete(key string) error {
	const q = `DELETE FROM config_blobs WHERE key = $1`
	if _, err := s.db.Exec(q, key); err != nil {
		return fmt.Errorf("delete blob %q: %w", key, err)
	}
	return nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/lib/pq"
)

const createKVTable = `CREATE TABLE IF NOT EXISTS storefront_kv (
	profile    TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (profile, key)
)`

// PostgresStore keeps values in the storefront_kv table, one row per
// (profile, key).
type PostgresStore struct {
	db      *sql.DB
	profile string
}

// NewPostgresStore creates the backing table if it does not exist yet.
func NewPostgresStore(ctx context.Context, db *sql.DB, profile string) (*PostgresStore, error) {
	if _, err := db.ExecContext(ctx, createKVTable); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db, profile: profileOrDefault(profile)}, nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM storefront_kv WHERE profile = $1 AND key = $2",
		s.profile,
		key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (s *PostgresStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO storefront_kv (profile, key, value, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (profile, key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		s.profile,
		key,
		value,
		time.Now(),
	)
	return err
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM storefront_kv WHERE profile = $1 AND key = $2", s.profile, key)
	return err
}

// ConnectPostgres establishes a connection to PostgreSQL
func ConnectPostgres(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	// A storefront client needs very few connections
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore persists session state blobs in a single jsonb table.
type PostgresStore struct {
	db        *sql.DB
	sessionID string
}

// NewPostgresStore opens a connection pool and ensures the state table exists.
func NewPostgresStore(ctx context.Context, databaseURL, sessionID string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(20)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	const ensureTable = `
		CREATE TABLE IF NOT EXISTS collab_state (
			session_id TEXT NOT NULL,
			key        TEXT NOT NULL,
			value      JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (session_id, key)
		)
	`
	if _, err := db.ExecContext(ctx, ensureTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure collab_state table: %w", err)
	}

	return &PostgresStore{db: db, sessionID: sessionID}, nil
}

func (s *PostgresStore) Put(ctx context.Context, key string, value []byte) error {
	const upsert = `
		INSERT INTO collab_state (session_id, key, value, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (session_id, key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = now()
	`
	if _, err := s.db.ExecContext(ctx, upsert, s.sessionID, key, value); err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	const query = `SELECT value FROM collab_state WHERE session_id = $1 AND key = $2`
	var value []byte
	err := s.db.QueryRowContext(ctx, query, s.sessionID, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", key, err)
	}
	return value, nil
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	const del = `DELETE FROM collab_state WHERE session_id = $1 AND key = $2`
	if _, err := s.db.ExecContext(ctx, del, s.sessionID, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

package store

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/amityadav/webresearch/internal/limiter"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists search usage so daily limits survive restarts and
// hold across replicas sharing one database.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore connects to the database and ensures the usage table
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	db, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	s := &PostgresStore{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the connection pool
func (s *PostgresStore) Close() {
	s.db.Close()
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS web_search_usage (
			id BIGSERIAL PRIMARY KEY,
			identity TEXT NOT NULL,
			query TEXT NOT NULL,
			results_count INT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_web_search_usage_created_at
			ON web_search_usage (created_at);
	`
	if _, err := s.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to ensure usage schema: %w", err)
	}
	return nil
}

// CountSince returns how many searches were recorded at or after t
func (s *PostgresStore) CountSince(ctx context.Context, t time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM web_search_usage WHERE created_at >= $1`
	var count int
	if err := s.db.QueryRow(ctx, query, t).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count usage: %w", err)
	}
	return count, nil
}

// Record appends one usage entry
func (s *PostgresStore) Record(ctx context.Context, rec limiter.UsageRecord) error {
	query := `
		INSERT INTO web_search_usage (identity, query, results_count, created_at)
		VALUES ($1, $2, $3, $4)
	`
	at := rec.At
	if at.IsZero() {
		at = time.Now()
	}
	if _, err := s.db.Exec(ctx, query, rec.Identity, rec.Query, rec.ResultCount, at); err != nil {
		return fmt.Errorf("failed to record usage: %w", err)
	}
	log.Printf("[Store] Recorded search usage: identity=%s, results=%d", rec.Identity, rec.ResultCount)
	return nil
}

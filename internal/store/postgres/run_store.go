// Package postgres provides the Postgres-backed run ledger.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kdataworks/navercrawl/internal/store"
)

type dbPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// RunStore implements store.RunRepository using Postgres.
type RunStore struct {
	pool dbPool
}

// NewRunStore creates a RunStore from a DSN.
func NewRunStore(ctx context.Context, dsn string, maxConns int32) (*RunStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("store.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if maxConns > 0 {
		poolCfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &RunStore{pool: pool}, nil
}

// NewRunStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewRunStoreWithPool(pool dbPool) (*RunStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &RunStore{pool: pool}, nil
}

// Close closes the underlying connection pool.
func (s *RunStore) Close() {
	s.pool.Close()
}

// StartRun inserts or idempotently updates the run row as running.
func (s *RunStore) StartRun(ctx context.Context, runID uuid.UUID, startedAt time.Time) error {
	query := `
		INSERT INTO scrape_runs (id, started_at, status)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status
		WHERE scrape_runs.status <> EXCLUDED.status;
	`
	if _, err := s.pool.Exec(ctx, query, runID, startedAt, store.RunRunning); err != nil {
		return fmt.Errorf("start run: %w", err)
	}
	return nil
}

// CompleteRun marks the run finished with final tallies.
func (s *RunStore) CompleteRun(ctx context.Context, run store.Run) error {
	query := `
		UPDATE scrape_runs
		SET finished_at = $1, status = $2,
			articles_completed = $3, articles_failed = $4,
			comments_total = $5, error_message = $6
		WHERE id = $7;
	`
	_, err := s.pool.Exec(
		ctx,
		query,
		run.FinishedAt,
		run.Status,
		run.ArticlesCompleted,
		run.ArticlesFailed,
		run.CommentsTotal,
		run.ErrorMessage,
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	return nil
}

// RecordArticle appends one terminal article outcome.
func (s *RunStore) RecordArticle(ctx context.Context, rec store.ArticleRecord) error {
	query := `
		INSERT INTO run_articles (run_id, url, status, attempts, comments, duration_ms, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (run_id, url) DO UPDATE
		SET status = EXCLUDED.status, attempts = EXCLUDED.attempts,
			comments = EXCLUDED.comments, duration_ms = EXCLUDED.duration_ms,
			recorded_at = EXCLUDED.recorded_at;
	`
	_, err := s.pool.Exec(
		ctx,
		query,
		rec.RunID,
		rec.URL,
		rec.Status,
		rec.Attempts,
		rec.Comments,
		rec.Duration.Milliseconds(),
		rec.At,
	)
	if err != nil {
		return fmt.Errorf("record article: %w", err)
	}
	return nil
}

// GetRun retrieves a single run by its ID.
func (s *RunStore) GetRun(ctx context.Context, runID uuid.UUID) (store.Run, error) {
	query := `
		SELECT id, started_at, finished_at, status,
			articles_completed, articles_failed, comments_total, error_message
		FROM scrape_runs
		WHERE id = $1;
	`
	var run store.Run
	err := s.pool.QueryRow(ctx, query, runID).Scan(
		&run.ID,
		&run.StartedAt,
		&run.FinishedAt,
		&run.Status,
		&run.ArticlesCompleted,
		&run.ArticlesFailed,
		&run.CommentsTotal,
		&run.ErrorMessage,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Run{}, store.ErrNotFound
		}
		return store.Run{}, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ListRuns retrieves runs with optional status filtering.
func (s *RunStore) ListRuns(ctx context.Context, status *store.RunStatus, limit, offset int) ([]store.Run, error) {
	query := `
		SELECT id, started_at, finished_at, status,
			articles_completed, articles_failed, comments_total, error_message
		FROM scrape_runs
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY started_at DESC
		LIMIT $2 OFFSET $3;
	`
	rows, err := s.pool.Query(ctx, query, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []store.Run
	for rows.Next() {
		var run store.Run
		err := rows.Scan(
			&run.ID,
			&run.StartedAt,
			&run.FinishedAt,
			&run.Status,
			&run.ArticlesCompleted,
			&run.ArticlesFailed,
			&run.CommentsTotal,
			&run.ErrorMessage,
		)
		if err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}
	return runs, nil
}

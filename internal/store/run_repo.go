// Package store declares interfaces for persisting scrape run history.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound signals that the requested record does not exist.
var ErrNotFound = errors.New("run record not found")

// RunStatus mirrors the scrape_runs status column.
type RunStatus string

// Run statuses persisted in scrape_runs.status.
const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunError   RunStatus = "error"
)

// Run models the scrape_runs table for API responses.
type Run struct {
	// ID is the run identifier shared with progress events.
	ID uuid.UUID
	// StartedAt captures when the run was first marked running.
	StartedAt time.Time
	// FinishedAt is nil until the run is marked success/error.
	FinishedAt *time.Time
	// Status is running/success/error.
	Status RunStatus
	// ArticlesCompleted and ArticlesFailed are final tallies.
	ArticlesCompleted int64
	ArticlesFailed    int64
	// CommentsTotal counts committed comments across the run.
	CommentsTotal int64
	// ErrorMessage optionally stores the final failure reason.
	ErrorMessage *string
}

// ArticleRecord captures one terminal article outcome within a run.
type ArticleRecord struct {
	RunID    uuid.UUID
	URL      string
	Status   string
	Attempts int
	Comments int
	Duration time.Duration
	At       time.Time
}

// RunRepository persists run lifecycle milestones and per-article outcomes.
type RunRepository interface {
	// StartRun inserts (or idempotently updates) the run's started_at row.
	StartRun(ctx context.Context, runID uuid.UUID, startedAt time.Time) error
	// CompleteRun marks the run finished with final tallies.
	CompleteRun(ctx context.Context, run Run) error
	// RecordArticle appends one terminal article outcome.
	RecordArticle(ctx context.Context, rec ArticleRecord) error
	// GetRun loads a single run or returns ErrNotFound.
	GetRun(ctx context.Context, runID uuid.UUID) (Run, error)
	// ListRuns returns runs filtered by optional status plus limit/offset.
	ListRuns(ctx context.Context, status *RunStatus, limit, offset int) ([]Run, error)
}

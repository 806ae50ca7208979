package sinks

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kdataworks/navercrawl/internal/progress"
	"github.com/kdataworks/navercrawl/internal/store"
)

// StoreSink persists run milestones and terminal article outcomes via a
// store.RunRepository. Intermediate stages (retries, comment pages) are
// tracked in memory and folded into the terminal rows.
type StoreSink struct {
	repo   store.RunRepository
	logger *zap.Logger

	completed int64
	failed    int64
	comments  int64
}

// NewStoreSink constructs a StoreSink for the provided repository.
func NewStoreSink(repo store.RunRepository, logger *zap.Logger) *StoreSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreSink{repo: repo, logger: logger}
}

// Consume forwards run lifecycle and terminal article events to the
// repository. It respects ctx deadlines and returns repository errors
// verbatim so the hub can log them.
func (s *StoreSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.repo == nil {
		return nil
	}
	for _, evt := range batch {
		if err := s.consumeEvent(ctx, evt); err != nil {
			return err
		}
	}
	return nil
}

func (s *StoreSink) consumeEvent(ctx context.Context, evt progress.Event) error {
	switch evt.Stage {
	case progress.StageRunStart:
		if err := s.repo.StartRun(ctx, evt.RunUUID(), evt.TS); err != nil {
			return fmt.Errorf("start run: %w", err)
		}
	case progress.StageArticleDone, progress.StageArticleFailed:
		if evt.Stage == progress.StageArticleDone {
			s.completed++
			s.comments += evt.Comments
		} else {
			s.failed++
		}
		rec := store.ArticleRecord{
			RunID:    evt.RunUUID(),
			URL:      evt.URL,
			Status:   terminalStatus(evt.Stage),
			Attempts: evt.Attempt,
			Comments: int(evt.Comments),
			Duration: evt.Dur,
			At:       evt.TS,
		}
		if err := s.repo.RecordArticle(ctx, rec); err != nil {
			return fmt.Errorf("record article: %w", err)
		}
	case progress.StageRunDone:
		status := store.RunSuccess
		var errMsg *string
		if evt.Note != "" {
			status = store.RunError
			note := evt.Note
			errMsg = &note
		}
		finished := evt.TS
		run := store.Run{
			ID:                evt.RunUUID(),
			FinishedAt:        &finished,
			Status:            status,
			ArticlesCompleted: s.completed,
			ArticlesFailed:    s.failed,
			CommentsTotal:     s.comments,
			ErrorMessage:      errMsg,
		}
		if err := s.repo.CompleteRun(ctx, run); err != nil {
			return fmt.Errorf("complete run: %w", err)
		}
	}
	return nil
}

func terminalStatus(stage progress.Stage) string {
	if stage == progress.StageArticleDone {
		return "completed"
	}
	return "failed"
}

// Close implements the Sink interface; it performs no action.
func (s *StoreSink) Close(context.Context) error {
	return nil
}

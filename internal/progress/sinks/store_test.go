package sinks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kdataworks/navercrawl/internal/progress"
	"github.com/kdataworks/navercrawl/internal/store"
)

type fakeRepo struct {
	started   []uuid.UUID
	completed []store.Run
	articles  []store.ArticleRecord
	startErr  error
}

func (f *fakeRepo) StartRun(_ context.Context, runID uuid.UUID, _ time.Time) error {
	f.started = append(f.started, runID)
	return f.startErr
}

func (f *fakeRepo) CompleteRun(_ context.Context, run store.Run) error {
	f.completed = append(f.completed, run)
	return nil
}

func (f *fakeRepo) RecordArticle(_ context.Context, rec store.ArticleRecord) error {
	f.articles = append(f.articles, rec)
	return nil
}

func (f *fakeRepo) GetRun(context.Context, uuid.UUID) (store.Run, error) {
	return store.Run{}, store.ErrNotFound
}

func (f *fakeRepo) ListRuns(context.Context, *store.RunStatus, int, int) ([]store.Run, error) {
	return nil, nil
}

func runEvent(runID uuid.UUID, stage progress.Stage) progress.Event {
	return progress.Event{
		RunID: progress.UUIDToBytes(runID),
		TS:    time.Now().UTC(),
		Stage: stage,
		URL:   "https://news.example/1",
	}
}

func TestStoreSinkTracksRunLifecycle(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	sink := NewStoreSink(repo, zap.NewNop())
	runID := uuid.New()

	done := runEvent(runID, progress.StageArticleDone)
	done.Attempt = 1
	done.Comments = 40
	failed := runEvent(runID, progress.StageArticleFailed)
	failed.Attempt = 3

	batch := []progress.Event{
		runEvent(runID, progress.StageRunStart),
		done,
		failed,
		runEvent(runID, progress.StageRunDone),
	}
	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, []uuid.UUID{runID}, repo.started)

	require.Len(t, repo.articles, 2)
	require.Equal(t, "completed", repo.articles[0].Status)
	require.Equal(t, 40, repo.articles[0].Comments)
	require.Equal(t, "failed", repo.articles[1].Status)
	require.Equal(t, 3, repo.articles[1].Attempts)

	require.Len(t, repo.completed, 1)
	final := repo.completed[0]
	require.Equal(t, runID, final.ID)
	require.Equal(t, store.RunSuccess, final.Status)
	require.EqualValues(t, 1, final.ArticlesCompleted)
	require.EqualValues(t, 1, final.ArticlesFailed)
	require.EqualValues(t, 40, final.CommentsTotal)
	require.Nil(t, final.ErrorMessage)
	require.NotNil(t, final.FinishedAt)
}

func TestStoreSinkMarksRunErrorFromNote(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	sink := NewStoreSink(repo, zap.NewNop())
	runID := uuid.New()

	done := runEvent(runID, progress.StageRunDone)
	done.Note = "output write failed"
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{done}))

	require.Len(t, repo.completed, 1)
	require.Equal(t, store.RunError, repo.completed[0].Status)
	require.NotNil(t, repo.completed[0].ErrorMessage)
	require.Equal(t, "output write failed", *repo.completed[0].ErrorMessage)
}

func TestStoreSinkPropagatesRepositoryErrors(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{startErr: errors.New("connection refused")}
	sink := NewStoreSink(repo, zap.NewNop())

	err := sink.Consume(context.Background(), []progress.Event{runEvent(uuid.New(), progress.StageRunStart)})
	require.Error(t, err)
}

func TestStoreSinkIgnoresIntermediateStages(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	sink := NewStoreSink(repo, zap.NewNop())
	runID := uuid.New()

	page := runEvent(runID, progress.StageCommentPage)
	page.Page = 2
	batch := []progress.Event{
		runEvent(runID, progress.StageArticleStart),
		runEvent(runID, progress.StageArticleRetry),
		page,
	}
	require.NoError(t, sink.Consume(context.Background(), batch))
	require.Empty(t, repo.started)
	require.Empty(t, repo.articles)
	require.Empty(t, repo.completed)
}

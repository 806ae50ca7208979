// Package worker implements the per-article scrape pipeline.
package worker

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/kdataworks/navercrawl/internal/metrics"
	"github.com/kdataworks/navercrawl/internal/progress"
	"github.com/kdataworks/navercrawl/internal/scrape"
)

// Config controls Worker behavior.
type Config struct {
	// RequestTimeout bounds a single attempt end to end.
	RequestTimeout time.Duration
	// MaxCommentPages caps pagination per article; zero means unlimited.
	MaxCommentPages int
	// CommentBudget caps collected comments per article; zero means unlimited.
	CommentBudget int
}

// Worker scrapes a single article URL into a commit unit, retrying failed
// attempts according to its retry policy. Each attempt starts from scratch;
// partial progress from a failed attempt is never reused.
type Worker struct {
	extractor scrape.Extractor
	policy    scrape.RetryPolicy
	clock     scrape.Clock
	emitter   progress.Emitter
	runID     [16]byte
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Worker.
func New(
	extractor scrape.Extractor,
	policy scrape.RetryPolicy,
	clock scrape.Clock,
	emitter progress.Emitter,
	runID [16]byte,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	return &Worker{
		extractor: extractor,
		policy:    policy,
		clock:     clock,
		emitter:   emitter,
		runID:     runID,
		cfg:       cfg,
		logger:    logger,
	}
}

// Process scrapes url, retrying per the policy. On success the returned Unit
// is ready for the writer and the Outcome status is completed; on exhaustion
// or cancellation the Unit is empty and the Outcome carries the final error.
func (w *Worker) Process(ctx context.Context, url string) (scrape.Unit, scrape.Outcome) {
	start := w.clock.Now()
	w.emit(progress.Event{Stage: progress.StageArticleStart, URL: url, Attempt: 1})

	var lastErr error
	attempts := 0
	for {
		attempts++
		unit, err := w.attempt(ctx, url)
		if err == nil {
			outcome := scrape.Outcome{
				URL:      url,
				Status:   scrape.ArticleStatusCompleted,
				Attempts: attempts,
				Comments: len(unit.Comments),
				Duration: w.clock.Now().Sub(start),
			}
			w.emit(progress.Event{
				Stage:    progress.StageArticleDone,
				URL:      url,
				Attempt:  outcome.Attempts,
				Comments: int64(outcome.Comments),
				Dur:      outcome.Duration,
			})
			return unit, outcome
		}
		lastErr = err
		if !w.policy.ShouldRetry(err, attempts) {
			break
		}
		backoff := w.policy.Backoff(attempts)
		w.logger.Warn("article attempt failed, retrying",
			zap.String("url", url),
			zap.Int("attempt", attempts),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		w.emit(progress.Event{
			Stage:   progress.StageArticleRetry,
			URL:     url,
			Attempt: attempts + 1,
			Note:    err.Error(),
		})
		if pauseErr := scrape.Pause(ctx, backoff); pauseErr != nil {
			lastErr = pauseErr
			break
		}
	}

	outcome := scrape.Outcome{
		URL:      url,
		Status:   scrape.ArticleStatusFailed,
		Attempts: attempts,
		Err:      lastErr,
		Duration: w.clock.Now().Sub(start),
	}
	w.logger.Error("article failed",
		zap.String("url", url),
		zap.Int("attempts", outcome.Attempts),
		zap.Error(lastErr),
	)
	w.emit(progress.Event{
		Stage:   progress.StageArticleFailed,
		URL:     url,
		Attempt: outcome.Attempts,
		Dur:     outcome.Duration,
		Note:    errText(lastErr),
	})
	return scrape.Unit{}, outcome
}

// attempt performs one full scrape of url. Any error discards the attempt.
func (w *Worker) attempt(parent context.Context, url string) (scrape.Unit, error) {
	ctx, cancel := context.WithTimeout(parent, w.cfg.RequestTimeout)
	defer cancel()

	page, err := w.extractor.Load(ctx, url)
	if err != nil {
		return scrape.Unit{}, err
	}
	defer func() {
		if closeErr := page.Close(); closeErr != nil {
			w.logger.Debug("page close failed", zap.String("url", url), zap.Error(closeErr))
		}
	}()

	fields, err := w.extractor.Metadata(ctx, page)
	if err != nil {
		return scrape.Unit{}, err
	}

	hasComments, err := w.extractor.HasComments(ctx, page)
	if err != nil {
		return scrape.Unit{}, err
	}

	var stats scrape.ArticleStats
	var demo scrape.Demographics
	builder := scrape.NewTreeBuilder(url, w.logger)
	if hasComments {
		stats, demo, err = w.extractor.Stats(ctx, page)
		if err != nil {
			return scrape.Unit{}, err
		}
		if err := w.collectComments(ctx, page, url, builder); err != nil {
			return scrape.Unit{}, err
		}
	}

	metrics.ObserveOrphans(builder.Orphans())

	now := w.clock.Now()
	unit := scrape.Unit{
		Article: scrape.Article{
			URL:          url,
			Fields:       fields,
			Stats:        stats,
			Demographics: demo,
			ScrapedAt:    now,
		},
		Comments: builder.Finalize(now),
	}
	return unit, nil
}

// collectComments walks the comment pagination until exhaustion or a budget
// is hit. Exhaustion is an explicit end marker, an empty page, or a page that
// adds nothing new after dedupe.
func (w *Worker) collectComments(ctx context.Context, page scrape.PageHandle, url string, builder *scrape.TreeBuilder) error {
	maxPages := w.cfg.MaxCommentPages
	if maxPages <= 0 {
		maxPages = math.MaxInt
	}
	cursor := ""
	for pageNum := 1; pageNum <= maxPages; pageNum++ {
		cp, err := w.extractor.FetchCommentPage(ctx, page, cursor)
		if err != nil {
			return err
		}
		added := builder.AddPage(cp)
		w.emit(progress.Event{
			Stage: progress.StageCommentPage,
			URL:   url,
			Page:  pageNum,
		})
		if cp.End || len(cp.Records) == 0 || added == 0 {
			return nil
		}
		if w.cfg.CommentBudget > 0 && builder.Len() >= w.cfg.CommentBudget {
			w.logger.Warn("comment budget reached, truncating",
				zap.String("url", url),
				zap.Int("collected", builder.Len()),
			)
			return nil
		}
		cursor = cp.Next
	}
	w.logger.Warn("comment page cap reached, truncating",
		zap.String("url", url),
		zap.Int("pages", maxPages),
	)
	return nil
}

func (w *Worker) emit(evt progress.Event) {
	if w.emitter == nil {
		return
	}
	evt.RunID = w.runID
	evt.TS = w.clock.Now()
	w.emitter.Emit(evt)
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// Package dispatcher manages worker fan-out over the article URL list.
package dispatcher

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kdataworks/navercrawl/internal/metrics"
	"github.com/kdataworks/navercrawl/internal/scrape"
	"github.com/kdataworks/navercrawl/internal/worker"
)

// Config controls Dispatcher behavior.
type Config struct {
	// MaxWorkers is the size of the worker pool (default 1).
	MaxWorkers int
	// Delay is the minimum spacing between page loads across all workers.
	Delay time.Duration
}

// Summary aggregates the terminal outcomes of one run.
type Summary struct {
	Completed int
	Failed    int
	Skipped   int
	Comments  int
	Outcomes  []scrape.Outcome
}

// Dispatcher fans a URL list out to a bounded worker pool, enforces the
// global politeness delay, and serializes committed units into the writer.
type Dispatcher struct {
	workers []*worker.Worker
	writer  scrape.Writer
	limiter *rate.Limiter
	clock   scrape.Clock
	cfg     Config
	logger  *zap.Logger

	mu       sync.Mutex
	outcomes []scrape.Outcome
	writeErr error
}

// New creates a Dispatcher. The pool size is len(workers).
func New(workers []*worker.Worker, writer scrape.Writer, clock scrape.Clock, cfg Config, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 1
	}
	limit := rate.Inf
	if cfg.Delay > 0 {
		limit = rate.Every(cfg.Delay)
	}
	return &Dispatcher{
		workers: workers,
		writer:  writer,
		limiter: rate.NewLimiter(limit, 1),
		clock:   clock,
		cfg:     cfg,
		logger:  logger,
	}
}

// Run processes every URL and blocks until all workers drain. Cancellation
// stops new work and records in-flight articles as failed; a writer error
// aborts the run immediately and is returned.
func (d *Dispatcher) Run(ctx context.Context, urls []string) (Summary, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	queue := make(chan string)
	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func(wk *worker.Worker) {
			defer wg.Done()
			d.runWorker(runCtx, cancel, wk, queue)
		}(w)
	}

feed:
	for _, url := range urls {
		select {
		case queue <- url:
		case <-runCtx.Done():
			break feed
		}
	}
	close(queue)
	wg.Wait()

	return d.summarize(urls), d.writeErr
}

func (d *Dispatcher) runWorker(ctx context.Context, abort context.CancelFunc, wk *worker.Worker, queue <-chan string) {
	for url := range queue {
		if err := d.waitPoliteness(ctx); err != nil {
			return
		}
		metrics.IncActiveWorkers()
		unit, outcome := wk.Process(ctx, url)
		metrics.DecActiveWorkers()

		if outcome.Status == scrape.ArticleStatusCompleted {
			if err := d.writer.Write(ctx, unit); err != nil {
				outcome.Status = scrape.ArticleStatusFailed
				outcome.Err = err
				d.record(outcome)
				if errors.Is(err, scrape.ErrWrite) {
					d.logger.Error("output write failed, aborting run", zap.Error(err))
					d.setWriteErr(err)
					abort()
					return
				}
				continue
			}
		}
		d.record(outcome)
	}
}

// waitPoliteness blocks on the shared limiter so page loads across the whole
// pool keep the configured spacing.
func (d *Dispatcher) waitPoliteness(ctx context.Context) error {
	start := d.clock.Now()
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}
	metrics.ObservePolitenessDelay(d.clock.Now().Sub(start))
	return nil
}

// Progress reports the live tallies for status endpoints.
func (d *Dispatcher) Progress() (completed, failed, comments int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, o := range d.outcomes {
		if o.Status == scrape.ArticleStatusCompleted {
			completed++
			comments += o.Comments
		} else {
			failed++
		}
	}
	return completed, failed, comments
}

func (d *Dispatcher) record(outcome scrape.Outcome) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.outcomes = append(d.outcomes, outcome)
}

func (d *Dispatcher) setWriteErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.writeErr == nil {
		d.writeErr = err
	}
}

func (d *Dispatcher) summarize(urls []string) Summary {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := Summary{Outcomes: append([]scrape.Outcome(nil), d.outcomes...)}
	for _, o := range d.outcomes {
		switch o.Status {
		case scrape.ArticleStatusCompleted:
			s.Completed++
			s.Comments += o.Comments
		default:
			s.Failed++
		}
	}
	s.Skipped = len(urls) - len(d.outcomes)
	return s
}

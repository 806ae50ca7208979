package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kdataworks/navercrawl/internal/api"
	"github.com/kdataworks/navercrawl/internal/clock/system"
	"github.com/kdataworks/navercrawl/internal/config"
	"github.com/kdataworks/navercrawl/internal/csvwriter"
	"github.com/kdataworks/navercrawl/internal/dispatcher"
	"github.com/kdataworks/navercrawl/internal/extract/browser"
	"github.com/kdataworks/navercrawl/internal/progress"
	"github.com/kdataworks/navercrawl/internal/progress/sinks"
	"github.com/kdataworks/navercrawl/internal/scrape"
	"github.com/kdataworks/navercrawl/internal/store"
	storepg "github.com/kdataworks/navercrawl/internal/store/postgres"
	"github.com/kdataworks/navercrawl/internal/urllist"
	"github.com/kdataworks/navercrawl/internal/worker"
)

func newScrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Scrapes articles and comments into CSV tables",
		Long: `Scrapes every article in the URL list along with its full comment
thread. Output lands in articles.csv and comments.csv under the output
directory; rerunning resumes where the previous run stopped.`,
		RunE: runScrapeCommand,
	}
	cmd.Flags().String("urls", "", "URL list file or directory of .txt files (required)")
	cmd.Flags().String("output", "", "output directory (overrides config)")
	cmd.Flags().Int("workers", 0, "worker pool size (overrides config)")
	cmd.Flags().Float64("delay", -1, "seconds between page loads (overrides config)")
	cmd.Flags().Int("timeout", 0, "per-article timeout in seconds (overrides config)")
	cmd.Flags().Int("retries", -1, "attempts per article (overrides config)")
	_ = cmd.MarkFlagRequired("urls")
	return cmd
}

func runScrapeCommand(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if err := applyScrapeFlags(cmd, &cfg); err != nil {
		return err
	}

	urlsPath, _ := cmd.Flags().GetString("urls")
	urls, err := urllist.Load(urlsPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	seq := scrape.NewSequencer()
	writer, resume, err := csvwriter.Open(cfg.Output.Dir, seq, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := writer.Close(); cerr != nil {
			logger.Warn("output close failed", zap.Error(cerr))
		}
	}()

	pending := make([]string, 0, len(urls))
	for _, u := range urls {
		if !resume.Done(u) {
			pending = append(pending, u)
		}
	}
	skipped := len(urls) - len(pending)
	logger.Info("url list loaded",
		zap.Int("total", len(urls)),
		zap.Int("pending", len(pending)),
		zap.Int("resumed", skipped),
	)
	if len(pending) == 0 {
		logger.Info("nothing to do, all articles already scraped")
		return nil
	}

	runID := uuid.New()
	clk := system.New()

	var repo store.RunRepository
	hubSinks := []progress.Sink{
		sinks.NewLogSink(logger),
		sinks.NewPrometheusSink(),
	}
	if cfg.Store.Enabled {
		runStore, err := storepg.NewRunStore(ctx, cfg.Store.DSN, int32(cfg.Store.MaxOpenConns))
		if err != nil {
			return fmt.Errorf("init run store: %w", err)
		}
		defer runStore.Close()
		repo = runStore
		hubSinks = append(hubSinks, sinks.NewStoreSink(runStore, logger))
	}
	hub := progress.NewHub(progress.Config{
		BufferSize:     cfg.Progress.BufferSize,
		MaxBatchEvents: cfg.Progress.MaxBatchEvents,
		Logger:         logger,
	}, hubSinks...)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if cerr := hub.Close(closeCtx); cerr != nil {
			logger.Warn("progress hub close failed", zap.Error(cerr))
		}
	}()

	extractor, err := browser.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("init browser: %w", err)
	}
	defer func() { _ = extractor.Close() }()

	policy := scrape.NewExponentialRetryPolicy(cfg.Scrape.RetryCount, cfg.BackoffInitial(), cfg.BackoffMax())
	workerCfg := worker.Config{
		RequestTimeout:  cfg.RequestTimeout(),
		MaxCommentPages: cfg.Scrape.MaxCommentPages,
		CommentBudget:   cfg.Scrape.CommentBudget,
	}
	workers := make([]*worker.Worker, cfg.Scrape.MaxWorkers)
	for i := range workers {
		workers[i] = worker.New(extractor, policy, clk, hub, progress.UUIDToBytes(runID), workerCfg, logger)
	}

	disp := dispatcher.New(workers, writer, clk, dispatcher.Config{
		MaxWorkers: cfg.Scrape.MaxWorkers,
		Delay:      cfg.Delay(),
	}, logger)

	startedAt := clk.Now()
	shutdownOps := startOpsServer(cfg, repo, logger, func() api.RunSnapshot {
		completed, failed, comments := disp.Progress()
		return api.RunSnapshot{
			RunID:     runID.String(),
			StartedAt: startedAt,
			Total:     len(pending),
			Completed: completed,
			Failed:    failed,
			Comments:  comments,
		}
	})
	defer shutdownOps()

	hub.Emit(progress.Event{RunID: progress.UUIDToBytes(runID), TS: startedAt, Stage: progress.StageRunStart})
	logger.Info("scrape run starting",
		zap.String("run_id", runID.String()),
		zap.Int("articles", len(pending)),
		zap.Int("workers", cfg.Scrape.MaxWorkers),
		zap.Duration("delay", cfg.Delay()),
	)

	summary, runErr := disp.Run(ctx, pending)

	doneEvt := progress.Event{RunID: progress.UUIDToBytes(runID), TS: clk.Now(), Stage: progress.StageRunDone}
	if runErr != nil {
		doneEvt.Note = runErr.Error()
	}
	hub.Emit(doneEvt)

	var failedURLs []string
	for _, o := range summary.Outcomes {
		if o.Status != scrape.ArticleStatusCompleted {
			failedURLs = append(failedURLs, o.URL)
		}
	}
	failedPath := filepath.Join(cfg.Output.Dir, cfg.Output.FailedURLsFile)
	if err := urllist.SaveFailed(failedPath, failedURLs); err != nil {
		logger.Warn("failed urls file write failed", zap.Error(err))
	}

	logger.Info("scrape run finished",
		zap.String("run_id", runID.String()),
		zap.Int("completed", summary.Completed),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("comments", summary.Comments),
		zap.Duration("elapsed", clk.Now().Sub(startedAt)),
	)

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("run aborted: %w", runErr)
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d articles failed; see %s", summary.Failed, len(pending), failedPath)
	}
	return nil
}

func applyScrapeFlags(cmd *cobra.Command, cfg *config.Config) error {
	if cmd.Flags().Changed("output") {
		cfg.Output.Dir, _ = cmd.Flags().GetString("output")
	}
	if cmd.Flags().Changed("workers") {
		cfg.Scrape.MaxWorkers, _ = cmd.Flags().GetInt("workers")
	}
	if cmd.Flags().Changed("delay") {
		cfg.Scrape.DelayBetweenRequests, _ = cmd.Flags().GetFloat64("delay")
	}
	if cmd.Flags().Changed("timeout") {
		cfg.Scrape.TimeoutSeconds, _ = cmd.Flags().GetInt("timeout")
	}
	if cmd.Flags().Changed("retries") {
		cfg.Scrape.RetryCount, _ = cmd.Flags().GetInt("retries")
	}
	return cfg.Validate()
}

// startOpsServer starts the operational HTTP server when enabled and returns
// its shutdown func.
func startOpsServer(cfg config.Config, repo store.RunRepository, logger *zap.Logger, status api.StatusFunc) func() {
	if !cfg.Ops.Enabled {
		return func() {}
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Ops.Port),
		Handler:           api.NewServer(repo, status, logger).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ops server failed", zap.Error(err))
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("ops server shutdown failed", zap.Error(err))
		}
	}
}

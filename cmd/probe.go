package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kdataworks/navercrawl/internal/extract/static"
	"github.com/kdataworks/navercrawl/internal/urllist"
)

func newProbeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Validates a URL list with plain HTTP requests",
		Long: `Fetches each article in the URL list without a browser and reports
which metadata fields resolve statically. Useful for vetting URL lists and
selector overrides before committing to a full browser run. Comment data is
script-rendered and out of reach here.`,
		RunE: runProbeCommand,
	}
	cmd.Flags().String("urls", "", "URL list file or directory of .txt files (required)")
	_ = cmd.MarkFlagRequired("urls")
	return cmd
}

func runProbeCommand(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	urlsPath, _ := cmd.Flags().GetString("urls")
	urls, err := urllist.Load(urlsPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	prober := static.New(static.Config{
		UserAgent: cfg.Browser.UserAgent,
		Timeout:   cfg.RequestTimeout(),
	}, cfg.Selectors)

	var bad int
	for _, u := range urls {
		result, err := prober.Probe(ctx, u)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			bad++
			logger.Warn("probe failed", zap.String("url", u), zap.Error(err))
			continue
		}
		logger.Info("probe ok",
			zap.String("url", u),
			zap.Int("status", result.StatusCode),
			zap.Bool("title", result.Fields.Title.Set),
			zap.Bool("content", result.Fields.Content.Set),
			zap.Bool("author", result.Fields.Author.Set),
			zap.Bool("publish_date", result.Fields.PublishDate.Set),
		)
	}

	logger.Info("probe finished", zap.Int("total", len(urls)), zap.Int("failed", bad))
	if bad > 0 {
		return fmt.Errorf("%d of %d urls failed probe", bad, len(urls))
	}
	return nil
}

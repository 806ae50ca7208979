package cmd

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kdataworks/navercrawl/internal/config"
)

func TestApplyScrapeFlagsOverridesConfig(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load("")
	require.NoError(t, err)

	cmd := newScrapeCmd()
	require.NoError(t, cmd.Flags().Set("output", "/tmp/out"))
	require.NoError(t, cmd.Flags().Set("workers", "7"))
	require.NoError(t, cmd.Flags().Set("delay", "0.5"))
	require.NoError(t, cmd.Flags().Set("timeout", "45"))
	require.NoError(t, cmd.Flags().Set("retries", "5"))

	require.NoError(t, applyScrapeFlags(cmd, &cfg))

	require.Equal(t, "/tmp/out", cfg.Output.Dir)
	require.Equal(t, 7, cfg.Scrape.MaxWorkers)
	require.Equal(t, 0.5, cfg.Scrape.DelayBetweenRequests)
	require.Equal(t, 45, cfg.Scrape.TimeoutSeconds)
	require.Equal(t, 5, cfg.Scrape.RetryCount)
}

func TestApplyScrapeFlagsLeavesConfigWhenUnset(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load("")
	require.NoError(t, err)
	want := cfg

	cmd := newScrapeCmd()
	require.NoError(t, applyScrapeFlags(cmd, &cfg))

	require.Equal(t, want.Scrape, cfg.Scrape)
	require.Equal(t, want.Output, cfg.Output)
}

func TestApplyScrapeFlagsRejectsInvalidOverrides(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		flag  string
		value string
	}{
		{name: "zero workers", flag: "workers", value: "0"},
		{name: "negative delay", flag: "delay", value: "-1"},
		{name: "zero timeout", flag: "timeout", value: "0"},
		{name: "zero retries", flag: "retries", value: "0"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg, err := config.Load("")
			require.NoError(t, err)

			cmd := newScrapeCmd()
			require.NoError(t, cmd.Flags().Set(tt.flag, tt.value))
			require.Error(t, applyScrapeFlags(cmd, &cfg))
		})
	}
}

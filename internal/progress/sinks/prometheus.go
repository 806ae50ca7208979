package sinks

import (
	"context"

	"github.com/kdataworks/navercrawl/internal/metrics"
	"github.com/kdataworks/navercrawl/internal/progress"
)

// PrometheusSink translates progress events into the scraper's Prometheus
// collectors. Worker and run counters are driven entirely from the event
// stream so emitters never touch metrics directly.
type PrometheusSink struct{}

// NewPrometheusSink returns the sink. Collectors register on package import.
func NewPrometheusSink() *PrometheusSink {
	return &PrometheusSink{}
}

// Consume updates the collectors using the provided batch. It is safe for
// concurrent use by multiple goroutines.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageArticleDone:
		metrics.ObserveArticle("completed", int(evt.Comments), evt.Dur)
	case progress.StageArticleFailed:
		metrics.ObserveArticle("failed", 0, evt.Dur)
	case progress.StageArticleRetry:
		metrics.ObserveRetry()
	case progress.StageCommentPage:
		metrics.ObserveCommentPage()
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

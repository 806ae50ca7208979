// Package metrics exposes Prometheus collectors for the scraper.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	articlesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_articles_total",
			Help: "Total number of articles processed, labeled by terminal status.",
		},
		[]string{"status"},
	)

	commentsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_comments_total",
			Help: "Total number of comments committed to output.",
		},
	)

	commentPagesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_comment_pages_total",
			Help: "Total number of comment pages fetched.",
		},
	)

	retriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_retries_total",
			Help: "Total number of article retry attempts.",
		},
	)

	orphanRepliesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_orphan_replies_total",
			Help: "Total replies whose parent comment could not be resolved.",
		},
	)

	activeWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scraper_active_workers",
			Help: "Number of workers currently processing an article.",
		},
	)

	articleDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scraper_article_duration_seconds",
			Help:    "Histogram of end-to-end article processing latencies.",
			Buckets: []float64{1, 2, 5, 10, 30, 60, 120, 300},
		},
	)

	politenessDelaySeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scraper_politeness_delay_seconds",
			Help:    "Histogram of politeness-limiter wait durations.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
	)
)

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveArticle records one terminal article outcome.
func ObserveArticle(status string, comments int, duration time.Duration) {
	articlesTotal.WithLabelValues(status).Inc()
	if comments > 0 {
		commentsTotal.Add(float64(comments))
	}
	articleDurationSeconds.Observe(duration.Seconds())
}

// ObserveCommentPage counts one fetched comment page.
func ObserveCommentPage() {
	commentPagesTotal.Inc()
}

// ObserveRetry counts one article retry attempt.
func ObserveRetry() {
	retriesTotal.Inc()
}

// ObserveOrphans counts replies resolved by the orphan policy.
func ObserveOrphans(n int) {
	if n > 0 {
		orphanRepliesTotal.Add(float64(n))
	}
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	activeWorkers.Dec()
}

// ObservePolitenessDelay records the duration of a rate limit wait.
func ObservePolitenessDelay(duration time.Duration) {
	politenessDelaySeconds.Observe(duration.Seconds())
}

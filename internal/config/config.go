// Package config loads and validates scraper configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all scraper configuration knobs loaded via Viper.
type Config struct {
	Scrape    ScrapeConfig   `mapstructure:"scrape"`
	Browser   BrowserConfig  `mapstructure:"browser"`
	Output    OutputConfig   `mapstructure:"output"`
	Selectors SelectorConfig `mapstructure:"selectors"`
	Ops       OpsConfig      `mapstructure:"ops"`
	Store     StoreConfig    `mapstructure:"store"`
	Logging   LoggingConfig  `mapstructure:"logging"`
	Progress  ProgressConfig `mapstructure:"progress"`
}

// ScrapeConfig governs dispatcher and per-article pipeline behavior.
type ScrapeConfig struct {
	MaxWorkers           int     `mapstructure:"max_workers"`
	DelayBetweenRequests float64 `mapstructure:"delay_between_requests"`
	TimeoutSeconds       int     `mapstructure:"timeout"`
	RetryCount           int     `mapstructure:"retry_count"`
	BackoffInitialMs     int     `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs         int     `mapstructure:"backoff_max_ms"`
	MaxCommentPages      int     `mapstructure:"max_comment_pages"`
	CommentBudget        int     `mapstructure:"comment_budget"`
}

// BrowserConfig configures the headless browser extractor.
type BrowserConfig struct {
	Headless      bool   `mapstructure:"headless"`
	UserAgent     string `mapstructure:"user_agent"`
	NavTimeoutSec int    `mapstructure:"nav_timeout_seconds"`
	MaxTabs       int    `mapstructure:"max_tabs"`
}

// OutputConfig sets CSV output locations.
type OutputConfig struct {
	Dir            string `mapstructure:"dir"`
	FailedURLsFile string `mapstructure:"failed_urls_file"`
}

// SelectorConfig carries the entry-point CSS selectors and UI labels used
// against the article pages. Defaults target the current page markup;
// overriding them in config survives site markup changes without a rebuild.
// Structural sub-selectors inside the comment module (count/label spans,
// demographic chart children, like/dislike counters) are fixed in the parser;
// they move together with the module markup these entry points select.
type SelectorConfig struct {
	Title          string `mapstructure:"title"`
	Content        string `mapstructure:"content"`
	Author         string `mapstructure:"author"`
	PublishDate    string `mapstructure:"publish_date"`
	Category       string `mapstructure:"category"`
	LikeCount      string `mapstructure:"like_count"`
	CommentCount   string `mapstructure:"comment_count"`
	CommentButton  string `mapstructure:"comment_button"`
	CommentItem    string `mapstructure:"comment_item"`
	CommentContent string `mapstructure:"comment_content"`
	CommentAuthor  string `mapstructure:"comment_author"`
	CommentDate    string `mapstructure:"comment_date"`
	MoreButton     string `mapstructure:"more_button"`
	StatsBlock     string `mapstructure:"stats_block"`
	DemoBlock      string `mapstructure:"demo_block"`

	DeletedLabel string `mapstructure:"deleted_label"`
	ReplyMarker  string `mapstructure:"reply_marker"`
}

// OpsConfig controls the operational HTTP server.
type OpsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// StoreConfig controls the optional Postgres run ledger.
type StoreConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// ProgressConfig controls event buffering.
type ProgressConfig struct {
	BufferSize     int `mapstructure:"buffer_size"`
	MaxBatchEvents int `mapstructure:"max_batch_events"`
}

// Load builds a Config from disk/environment. An empty path loads defaults
// and environment variables only.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("NAVERCRAWL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("scrape.max_workers", 3)
	v.SetDefault("scrape.delay_between_requests", 2.0)
	v.SetDefault("scrape.timeout", 30)
	v.SetDefault("scrape.retry_count", 3)
	v.SetDefault("scrape.backoff_initial_ms", 250)
	v.SetDefault("scrape.backoff_max_ms", 5000)
	v.SetDefault("scrape.max_comment_pages", 0)
	v.SetDefault("scrape.comment_budget", 0)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.nav_timeout_seconds", 25)
	v.SetDefault("browser.max_tabs", 3)

	v.SetDefault("output.dir", "data")
	v.SetDefault("output.failed_urls_file", "failed_urls.txt")

	v.SetDefault("selectors.title", "h2#title_area span")
	v.SetDefault("selectors.content", "article#dic_area")
	v.SetDefault("selectors.author", ".media_end_head_journalist_name")
	v.SetDefault("selectors.publish_date", "span.media_end_head_info_datestamp_time")
	v.SetDefault("selectors.category", ".media_end_categorize_item")
	v.SetDefault("selectors.like_count", ".u_likeit_text._count.num")
	v.SetDefault("selectors.comment_count", "#comment_count")
	v.SetDefault("selectors.comment_button", "a.u_cbox_btn_view_comment")
	v.SetDefault("selectors.comment_item", "li.u_cbox_comment")
	v.SetDefault("selectors.comment_content", "span.u_cbox_contents")
	v.SetDefault("selectors.comment_author", "span.u_cbox_nick")
	v.SetDefault("selectors.comment_date", "span.u_cbox_date")
	v.SetDefault("selectors.more_button", "a.u_cbox_btn_more")
	v.SetDefault("selectors.stats_block", ".u_cbox_comment_count_wrap")
	v.SetDefault("selectors.demo_block", ".u_cbox_chart_progress")
	v.SetDefault("selectors.deleted_label", "u_cbox_type_delete")
	v.SetDefault("selectors.reply_marker", "u_cbox_reply_area")

	v.SetDefault("ops.enabled", false)
	v.SetDefault("ops.port", 9090)

	v.SetDefault("store.enabled", false)
	v.SetDefault("store.max_open_conns", 4)

	v.SetDefault("logging.development", true)

	v.SetDefault("progress.buffer_size", 1024)
	v.SetDefault("progress.max_batch_events", 256)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Scrape.MaxWorkers <= 0 {
		return fmt.Errorf("scrape.max_workers must be > 0")
	}
	if c.Scrape.DelayBetweenRequests < 0 {
		return fmt.Errorf("scrape.delay_between_requests must be >= 0")
	}
	if c.Scrape.TimeoutSeconds <= 0 {
		return fmt.Errorf("scrape.timeout must be > 0")
	}
	if c.Scrape.RetryCount <= 0 {
		return fmt.Errorf("scrape.retry_count must be > 0")
	}
	if c.Output.Dir == "" {
		return fmt.Errorf("output.dir must be set")
	}
	if c.Browser.MaxTabs <= 0 {
		return fmt.Errorf("browser.max_tabs must be > 0")
	}
	if c.Ops.Enabled && c.Ops.Port <= 0 {
		return fmt.Errorf("ops.port must be > 0 when ops server is enabled")
	}
	if c.Store.Enabled && c.Store.DSN == "" {
		return fmt.Errorf("store.dsn must be set when store is enabled")
	}
	return nil
}

// Delay converts the request spacing into a duration.
func (c Config) Delay() time.Duration {
	return time.Duration(c.Scrape.DelayBetweenRequests * float64(time.Second))
}

// RequestTimeout converts the per-article timeout into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Scrape.TimeoutSeconds) * time.Second
}

// BackoffInitial returns the first retry backoff.
func (c Config) BackoffInitial() time.Duration {
	return time.Duration(c.Scrape.BackoffInitialMs) * time.Millisecond
}

// BackoffMax returns the retry backoff ceiling.
func (c Config) BackoffMax() time.Duration {
	return time.Duration(c.Scrape.BackoffMaxMs) * time.Millisecond
}

// NavTimeout returns the browser navigation timeout.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Browser.NavTimeoutSec) * time.Second
}

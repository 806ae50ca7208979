// Package static implements a lightweight HTTP prober using gocolly. It
// fetches article pages without a browser to pre-validate URL lists and pull
// the metadata that does not require script execution. Comment modules are
// script-rendered and invisible to it.
package static

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/kdataworks/navercrawl/internal/config"
	"github.com/kdataworks/navercrawl/internal/extract/selector"
	"github.com/kdataworks/navercrawl/internal/scrape"
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Prober fetches article pages over plain HTTP.
type Prober struct {
	cfg           Config
	sel           config.SelectorConfig
	baseCollector *colly.Collector
}

// Result is one probed article.
type Result struct {
	URL        string
	StatusCode int
	Fields     scrape.ArticleFields
}

// New builds a Prober.
func New(cfg Config, sel config.SelectorConfig) *Prober {
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = false
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	c.SetRequestTimeout(cfg.Timeout)
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	return &Prober{
		cfg:           cfg,
		sel:           sel,
		baseCollector: c,
	}
}

// Probe fetches url once and parses the statically available fields.
func (p *Prober) Probe(ctx context.Context, url string) (Result, error) {
	var (
		result   = Result{URL: url}
		fetchErr error
	)

	collector := p.baseCollector.Clone()
	collector.OnResponse(func(resp *colly.Response) {
		result.StatusCode = resp.StatusCode
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
		if err != nil {
			fetchErr = fmt.Errorf("parse body: %w", err)
			return
		}
		result.Fields = selector.ParseMetadata(doc, p.sel)
	})
	collector.OnError(func(resp *colly.Response, err error) {
		if resp != nil {
			result.StatusCode = resp.StatusCode
		}
		fetchErr = err
	})

	reqDone := make(chan struct{})
	go func() {
		defer close(reqDone)
		if err := collector.Visit(url); err != nil && fetchErr == nil {
			fetchErr = err
		}
		collector.Wait()
	}()

	select {
	case <-reqDone:
	case <-ctx.Done():
		return Result{}, scrape.LoadError(url, ctx.Err())
	}
	if fetchErr != nil {
		return Result{}, scrape.LoadError(url, fetchErr)
	}
	return result, nil
}

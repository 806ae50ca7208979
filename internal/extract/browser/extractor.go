// Package browser implements the browser-backed extraction layer using
// headless Chrome.
package browser

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/kdataworks/navercrawl/internal/config"
	"github.com/kdataworks/navercrawl/internal/extract/selector"
	"github.com/kdataworks/navercrawl/internal/scrape"
)

// settleDelay gives the comment module time to render after a click.
const settleDelay = 500 * time.Millisecond

// Extractor drives headless Chrome to load article pages and walk their
// comment pagination. It implements scrape.Extractor.
type Extractor struct {
	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	sem             chan struct{}
	sel             config.SelectorConfig
	navTimeout      time.Duration
	logger          *zap.Logger
}

// New launches the shared browser process and warms it up.
func New(cfg config.Config, logger *zap.Logger) (*Extractor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := chromedp.DefaultExecAllocatorOptions[:]
	opts = append(opts,
		chromedp.Flag("headless", cfg.Browser.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
	)
	if cfg.Browser.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.Browser.UserAgent))
	}
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocatorCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}

	return &Extractor{
		allocatorCancel: allocatorCancel,
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
		sem:             make(chan struct{}, cfg.Browser.MaxTabs),
		sel:             cfg.Selectors,
		navTimeout:      cfg.NavTimeout(),
		logger:          logger,
	}, nil
}

// Close tears down the browser and allocator contexts.
func (e *Extractor) Close() error {
	if e == nil {
		return nil
	}
	e.browserCancel()
	e.allocatorCancel()
	return nil
}

// page is one open browser tab. It pins a tab slot until closed.
type page struct {
	url     string
	ctx     context.Context
	cancel  context.CancelFunc
	release func()
}

func (p *page) URL() string { return p.url }

func (p *page) Close() error {
	p.cancel()
	p.release()
	return nil
}

// Load opens a tab, navigates to url, and expands the comment module when
// one is present.
func (e *Extractor) Load(ctx context.Context, url string) (scrape.PageHandle, error) {
	release, err := e.acquireTab(ctx)
	if err != nil {
		return nil, err
	}

	tabCtx, cancelTab := chromedp.NewContext(e.browserCtx)
	navCtx, cancelNav := context.WithTimeout(tabCtx, e.navTimeout)
	defer cancelNav()
	stop := forwardCancel(ctx, cancelTab)
	defer stop()

	tasks := chromedp.Tasks{
		network.Enable(),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if err := chromedp.Run(navCtx, tasks); err != nil {
		cancelTab()
		release()
		return nil, scrape.LoadError(url, err)
	}

	p := &page{url: url, ctx: tabCtx, cancel: cancelTab, release: release}
	e.expandComments(navCtx, p)
	return p, nil
}

// expandComments clicks the comment-view button when the page has one. Best
// effort; articles without the button already show the module inline.
func (e *Extractor) expandComments(ctx context.Context, p *page) {
	visible, err := e.exists(ctx, e.sel.CommentButton)
	if err != nil || !visible {
		return
	}
	err = chromedp.Run(ctx,
		chromedp.Click(e.sel.CommentButton, chromedp.ByQuery, chromedp.NodeVisible),
		chromedp.Sleep(settleDelay),
	)
	if err != nil {
		e.logger.Debug("comment view click failed", zap.String("url", p.url), zap.Error(err))
	}
}

// Metadata parses the article fields from the current DOM.
func (e *Extractor) Metadata(ctx context.Context, handle scrape.PageHandle) (scrape.ArticleFields, error) {
	p, err := e.tab(handle)
	if err != nil {
		return scrape.ArticleFields{}, err
	}
	doc, err := e.snapshot(ctx, p)
	if err != nil {
		return scrape.ArticleFields{}, scrape.LoadError(p.url, err)
	}
	return selector.ParseMetadata(doc, e.sel), nil
}

// Stats parses comment counts and demographics from the current DOM.
func (e *Extractor) Stats(ctx context.Context, handle scrape.PageHandle) (scrape.ArticleStats, scrape.Demographics, error) {
	p, err := e.tab(handle)
	if err != nil {
		return scrape.ArticleStats{}, scrape.Demographics{}, err
	}
	doc, err := e.snapshot(ctx, p)
	if err != nil {
		return scrape.ArticleStats{}, scrape.Demographics{}, scrape.LoadError(p.url, err)
	}
	stats, demo := selector.ParseStats(doc, e.sel)
	return stats, demo, nil
}

// HasComments reports whether the loaded page exposes a comment module.
func (e *Extractor) HasComments(ctx context.Context, handle scrape.PageHandle) (bool, error) {
	p, err := e.tab(handle)
	if err != nil {
		return false, err
	}
	doc, err := e.snapshot(ctx, p)
	if err != nil {
		return false, scrape.LoadError(p.url, err)
	}
	if doc.Find(e.sel.CommentItem).Length() > 0 {
		return true, nil
	}
	return doc.Find(e.sel.StatsBlock).Length() > 0, nil
}

// FetchCommentPage returns the comments currently visible in the tab. The
// cursor counts "more" clicks: an empty cursor snapshots the initial state,
// later cursors click the more button first. End is set once the more button
// disappears.
func (e *Extractor) FetchCommentPage(ctx context.Context, handle scrape.PageHandle, cursor string) (scrape.CommentPage, error) {
	p, err := e.tab(handle)
	if err != nil {
		return scrape.CommentPage{}, err
	}

	clicks := 0
	if cursor != "" {
		clicks, err = strconv.Atoi(cursor)
		if err != nil {
			return scrape.CommentPage{}, scrape.PaginationError(p.url, 0, fmt.Errorf("bad cursor %q: %w", cursor, err))
		}
	}

	opCtx, cancel := context.WithTimeout(p.ctx, e.navTimeout)
	defer cancel()
	stop := forwardCancel(ctx, cancel)
	defer stop()

	if cursor != "" {
		err := chromedp.Run(opCtx,
			chromedp.Click(e.sel.MoreButton, chromedp.ByQuery, chromedp.NodeVisible),
			chromedp.Sleep(settleDelay),
		)
		if err != nil {
			return scrape.CommentPage{}, scrape.PaginationError(p.url, clicks+1, err)
		}
	}

	doc, err := e.snapshot(ctx, p)
	if err != nil {
		return scrape.CommentPage{}, scrape.PaginationError(p.url, clicks+1, err)
	}

	more, err := e.exists(opCtx, e.sel.MoreButton)
	if err != nil {
		more = false
	}
	return scrape.CommentPage{
		Records: selector.ParseComments(doc, e.sel),
		Next:    strconv.Itoa(clicks + 1),
		End:     !more,
	}, nil
}

func (e *Extractor) tab(handle scrape.PageHandle) (*page, error) {
	p, ok := handle.(*page)
	if !ok {
		return nil, fmt.Errorf("foreign page handle %T", handle)
	}
	return p, nil
}

// snapshot serializes the tab's DOM and parses it with goquery.
func (e *Extractor) snapshot(ctx context.Context, p *page) (*goquery.Document, error) {
	opCtx, cancel := context.WithTimeout(p.ctx, e.navTimeout)
	defer cancel()
	stop := forwardCancel(ctx, cancel)
	defer stop()

	var html string
	if err := chromedp.Run(opCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return nil, fmt.Errorf("dom snapshot: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return doc, nil
}

// exists checks selector presence without failing on absence.
func (e *Extractor) exists(ctx context.Context, sel string) (bool, error) {
	if sel == "" {
		return false, nil
	}
	var present bool
	script := fmt.Sprintf("document.querySelector(%q) !== null", sel)
	if err := chromedp.Run(ctx, chromedp.Evaluate(script, &present)); err != nil {
		return false, err
	}
	return present, nil
}

func (e *Extractor) acquireTab(ctx context.Context) (func(), error) {
	select {
	case e.sem <- struct{}{}:
		return func() { <-e.sem }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire tab slot: %w", ctx.Err())
	}
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}

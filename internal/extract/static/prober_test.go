package static

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kdataworks/navercrawl/internal/config"
	"github.com/kdataworks/navercrawl/internal/scrape"
)

const probeHTML = `<html><body>
<h2 id="title_area"><span>정적 프로브 제목</span></h2>
<article id="dic_area">본문</article>
</body></html>`

func testSelectors(t *testing.T) config.SelectorConfig {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	return cfg.Selectors
}

func TestProbeParsesStaticFields(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(probeHTML))
	}))
	defer srv.Close()

	p := New(Config{Timeout: 5 * time.Second}, testSelectors(t))
	result, err := p.Probe(context.Background(), srv.URL+"/article/001/0001")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, result.StatusCode)
	require.Equal(t, "정적 프로브 제목", result.Fields.Title.Value)
	require.Equal(t, "본문", result.Fields.Content.Value)
	require.False(t, result.Fields.Author.Set)
}

func TestProbeReportsHTTPErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	p := New(Config{Timeout: 5 * time.Second}, testSelectors(t))
	_, err := p.Probe(context.Background(), srv.URL+"/article/001/0001")
	require.Error(t, err)
	require.ErrorIs(t, err, scrape.ErrLoad)
}

func TestProbeRejectsUnreachableHost(t *testing.T) {
	t.Parallel()

	p := New(Config{Timeout: time.Second}, testSelectors(t))
	_, err := p.Probe(context.Background(), "http://127.0.0.1:1/article")
	require.ErrorIs(t, err, scrape.ErrLoad)
}

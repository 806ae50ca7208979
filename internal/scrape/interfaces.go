package scrape

import (
	"context"
	"time"
)

// PageHandle is a loaded article page held open by an Extractor. Handles own
// browser or network resources and must be closed by the worker that loaded
// them.
type PageHandle interface {
	// URL returns the URL the handle was loaded from.
	URL() string
	// Close releases the underlying page resources.
	Close() error
}

// CommentPage is one page of the paginated comment stream.
type CommentPage struct {
	Records []RawComment
	// Next is the opaque cursor for the following page. Ignored when End
	// is true.
	Next string
	// End marks stream exhaustion: no further pages exist.
	End bool
}

// Extractor is the port to the site-specific extraction layer. The pipeline
// depends only on this interface, never on selector strings. Field-level
// extraction failures surface as unset fields, not errors; errors returned
// here are load-level (wrap ErrLoad or ErrPagination) or context failures.
type Extractor interface {
	// Load navigates to the article page.
	Load(ctx context.Context, url string) (PageHandle, error)
	// Metadata pulls the article's raw fields. Absent fields are unset.
	Metadata(ctx context.Context, page PageHandle) (ArticleFields, error)
	// Stats pulls the comment-count breakdown and demographic ratios from
	// the comment pane. Only meaningful once the page has a comment
	// section.
	Stats(ctx context.Context, page PageHandle) (ArticleStats, Demographics, error)
	// HasComments reports whether the article exposes a comment section.
	HasComments(ctx context.Context, page PageHandle) (bool, error)
	// FetchCommentPage returns the next page of raw comment records.
	// cursor is "" for the first page.
	FetchCommentPage(ctx context.Context, page PageHandle, cursor string) (CommentPage, error)
}

// Writer persists completed units. Implementations must serialize writes so
// that a unit is fully durable before the next unit begins.
type Writer interface {
	Write(ctx context.Context, unit Unit) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

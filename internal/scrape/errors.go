package scrape

import (
	"errors"
	"fmt"
)

// The pipeline classifies failures so callers can decide between field-level
// recovery, per-article retry, and aborting the run.
var (
	// ErrLoad marks navigation or page-load failures. Retryable.
	ErrLoad = errors.New("page load failed")
	// ErrExtraction marks a missing selector or field. Field-level and
	// non-fatal; the field stays unset.
	ErrExtraction = errors.New("field extraction failed")
	// ErrPagination marks a comment page fetch failure. Retryable at
	// article granularity.
	ErrPagination = errors.New("comment pagination failed")
	// ErrHierarchy marks an orphan reply. Logged and resolved per policy,
	// never fatal.
	ErrHierarchy = errors.New("comment hierarchy violation")
	// ErrWrite marks an output I/O failure. Fatal to the whole run.
	ErrWrite = errors.New("output write failed")
)

// LoadError wraps a navigation failure with its URL.
func LoadError(url string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrLoad, url, err)
}

// ExtractionError wraps a selector or field failure.
func ExtractionError(url string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrExtraction, url, err)
}

// PaginationError wraps a comment page fetch failure.
func PaginationError(url string, page int, err error) error {
	return fmt.Errorf("%w: %s page %d: %w", ErrPagination, url, page, err)
}

// WriteError wraps an output failure.
func WriteError(err error) error {
	return fmt.Errorf("%w: %w", ErrWrite, err)
}

// Retryable reports whether an article-level error should re-run the
// article from scratch. Load and pagination failures are retryable;
// everything else either degrades locally or aborts the run.
func Retryable(err error) bool {
	return errors.Is(err, ErrLoad) || errors.Is(err, ErrPagination)
}

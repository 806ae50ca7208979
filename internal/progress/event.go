// Package progress defines the event structures emitted during a scrape run.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart      Stage = "RUN_START"
	StageRunDone       Stage = "RUN_DONE"
	StageArticleStart  Stage = "ARTICLE_START"
	StageArticleRetry  Stage = "ARTICLE_RETRY"
	StageArticleDone   Stage = "ARTICLE_DONE"
	StageArticleFailed Stage = "ARTICLE_FAILED"
	StageCommentPage   Stage = "COMMENT_PAGE"
)

// Event captures a single milestone of scraper progress.
type Event struct {
	// RunID uniquely identifies a scrape run using the 16-byte UUID form.
	RunID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which lifecycle milestone occurred.
	Stage Stage
	// URL is the article URL for article-scoped stages.
	URL string
	// Attempt is the 1-based attempt number for retry and terminal stages.
	Attempt int
	// Comments carries the committed comment count for ARTICLE_DONE.
	Comments int64
	// Page is the 1-based comment page index for COMMENT_PAGE.
	Page int
	// Dur captures execution latency for terminal article stages.
	Dur time.Duration
	// Note lets emitters attach low-volume debug context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone:
	case StageArticleStart, StageArticleRetry, StageArticleDone, StageArticleFailed:
		if e.URL == "" {
			return fmt.Errorf("%s requires url", e.Stage)
		}
	case StageCommentPage:
		if e.URL == "" {
			return errors.New("comment page requires url")
		}
		if e.Page <= 0 {
			return errors.New("comment page requires positive page index")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID to uuid.UUID for repositories.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}

package scrape

import "sync/atomic"

// Sequencer issues the run-global article and comment identifiers. Both
// sequences start at 1 and increase monotonically; both are safe for
// concurrent callers.
//
// IDs are a property of a single run, not of a URL. The writer draws IDs at
// commit time, so articles that exhaust their retries never consume any, and
// committed IDs stay gapless and strictly increasing in commit order.
type Sequencer struct {
	article atomic.Int64
	comment atomic.Int64
}

// NewSequencer returns a Sequencer whose next IDs are both 1.
func NewSequencer() *Sequencer {
	return &Sequencer{}
}

// Seed advances the sequences past previously committed IDs so a resumed run
// never collides with rows already on disk. Seeding backwards is ignored.
func (s *Sequencer) Seed(lastArticleID, lastCommentID int64) {
	for {
		cur := s.article.Load()
		if lastArticleID <= cur || s.article.CompareAndSwap(cur, lastArticleID) {
			break
		}
	}
	for {
		cur := s.comment.Load()
		if lastCommentID <= cur || s.comment.CompareAndSwap(cur, lastCommentID) {
			break
		}
	}
}

// NextArticleID returns the next article identifier.
func (s *Sequencer) NextArticleID() int64 {
	return s.article.Add(1)
}

// NextCommentID returns the next comment identifier.
func (s *Sequencer) NextCommentID() int64 {
	return s.ReserveComments(1)
}

// ReserveComments atomically reserves a contiguous block of n comment IDs
// and returns the first. A block keeps one article's comment IDs contiguous
// and in first-seen order even while other articles commit concurrently.
func (s *Sequencer) ReserveComments(n int) int64 {
	if n <= 0 {
		return s.comment.Load() + 1
	}
	return s.comment.Add(int64(n)) - int64(n) + 1
}

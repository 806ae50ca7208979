package scrape

import (
	"time"

	"go.uber.org/zap"
)

// deletedContent replaces the body of comments the site marks as deleted,
// matching the placeholder the comment pane itself shows.
const deletedContent = "삭제된 댓글입니다"

// TreeBuilder consumes the flat, paginated comment stream of one article and
// reconstructs the two-level hierarchy. Records are deduplicated by their
// site-native identifier, so overlapping pagination boundaries are safe.
//
// Replies-to-replies are flattened under their nearest top-level ancestor.
// Replies whose parent cannot be resolved at all are attached as top-level
// comments and counted as orphans; that is a data-quality event, not a
// failure.
//
// Finalize numbers comments 1..n in first-seen order. The writer remaps
// these local IDs onto the run-global sequence at commit time.
type TreeBuilder struct {
	logger  *zap.Logger
	url     string
	staged  []Comment
	index   map[string]int // native ID -> staged index
	topOf   map[string]int // native ID -> staged index of nearest top-level ancestor
	orphans int
}

// NewTreeBuilder returns a builder for one article's comment stream. url is
// used only for data-quality warnings.
func NewTreeBuilder(url string, logger *zap.Logger) *TreeBuilder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TreeBuilder{
		logger: logger,
		url:    url,
		index:  make(map[string]int),
		topOf:  make(map[string]int),
	}
}

// AddPage stages every record of one comment page in order and reports how
// many were newly staged after dedupe.
func (b *TreeBuilder) AddPage(page CommentPage) int {
	before := len(b.staged)
	for _, rec := range page.Records {
		b.Add(rec)
	}
	return len(b.staged) - before
}

// Add stages a single raw record. Duplicates (same native ID) are dropped.
func (b *TreeBuilder) Add(rec RawComment) {
	if rec.NativeID == "" {
		b.logger.Warn("comment record without native id dropped", zap.String("url", b.url))
		return
	}
	if _, dup := b.index[rec.NativeID]; dup {
		return
	}

	c := Comment{
		Content:      rec.Content,
		Author:       rec.Author,
		LikeCount:    rec.LikeCount,
		DislikeCount: rec.DislikeCount,
		CreatedAt:    rec.CreatedAt,
	}
	if rec.Deleted {
		c.Content = deletedContent
		c.LikeCount = Field{}
		c.DislikeCount = Field{}
	}

	idx := len(b.staged)
	if rec.NativeParentID == "" {
		c.Type = CommentTypeComment
		b.topOf[rec.NativeID] = idx
	} else if top, ok := b.topOf[rec.NativeParentID]; ok {
		// Resolving through topOf lands a reply-to-reply on the
		// nearest top-level ancestor.
		c.Type = CommentTypeReply
		c.ParentID = int64(top) + 1
		b.staged[top].ReplyCount++
		b.topOf[rec.NativeID] = top
	} else {
		b.orphans++
		b.logger.Warn("orphan reply attached as top-level comment",
			zap.String("url", b.url),
			zap.String("native_id", rec.NativeID),
			zap.String("native_parent_id", rec.NativeParentID),
		)
		c.Type = CommentTypeComment
		b.topOf[rec.NativeID] = idx
	}

	b.index[rec.NativeID] = idx
	b.staged = append(b.staged, c)
}

// Len returns the number of staged comments.
func (b *TreeBuilder) Len() int {
	return len(b.staged)
}

// Orphans returns how many replies could not resolve their parent.
func (b *TreeBuilder) Orphans() int {
	return b.orphans
}

// Finalize returns the ordered comment set with local IDs 1..n assigned in
// first-seen order. ParentID values reference those local IDs. scrapedAt is
// stamped on every comment.
func (b *TreeBuilder) Finalize(scrapedAt time.Time) []Comment {
	out := make([]Comment, len(b.staged))
	copy(out, b.staged)
	for i := range out {
		out[i].ID = int64(i) + 1
		out[i].ScrapedAt = scrapedAt
	}
	return out
}

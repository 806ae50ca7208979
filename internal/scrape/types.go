// Package scrape defines core types shared across the crawl pipeline.
package scrape

import (
	"time"
)

// ArticleStatus represents the lifecycle state of one article's crawl.
type ArticleStatus string

// Article status values reported to the dispatcher.
const (
	ArticleStatusPending    ArticleStatus = "pending"
	ArticleStatusInProgress ArticleStatus = "in_progress"
	ArticleStatusRetrying   ArticleStatus = "retrying"
	ArticleStatusCompleted  ArticleStatus = "completed"
	ArticleStatusFailed     ArticleStatus = "failed"
)

// CommentType distinguishes top-level comments from replies.
type CommentType string

// Comment type values written to comments.csv.
const (
	CommentTypeComment CommentType = "comment"
	CommentTypeReply   CommentType = "reply"
)

// Field is an extracted string value that distinguishes "unset" from empty.
// The target page omits many fields per article; an absent field must render
// as an empty CSV cell, while a present-but-zero counter renders as "0".
type Field struct {
	Value string
	Set   bool
}

// SetField returns a present Field.
func SetField(v string) Field {
	return Field{Value: v, Set: true}
}

// String renders the field for CSV output; unset fields render empty.
func (f Field) String() string {
	if !f.Set {
		return ""
	}
	return f.Value
}

// Demographics holds the optional commenter-demographic ratios for an
// article. Each ratio is independently optional and expressed as a
// percentage in [0.00, 100.00]. Ratios are never normalized; any subset may
// be unset at once.
type Demographics struct {
	MaleRatio   Field
	FemaleRatio Field
	Age10s      Field
	Age20s      Field
	Age30s      Field
	Age40s      Field
	Age50s      Field
	Age60Plus   Field
}

// ArticleStats carries the comment-count breakdown shown on the comment pane.
type ArticleStats struct {
	ActiveCommentCount  Field
	DeletedCommentCount Field
	RemovedCommentCount Field
}

// ArticleFields is the raw metadata the extractor pulls from an article
// page. Every field is optional; missing selectors yield unset values.
type ArticleFields struct {
	Title       Field
	Content     Field
	Author      Field
	PublishDate Field
	Category    Field
	LikeCount   Field
	CommentCnt  Field
}

// Article is one fully extracted article ready for the writer. The ID is
// assigned at commit time, never at dispatch.
type Article struct {
	ID           int64
	URL          string
	Fields       ArticleFields
	Stats        ArticleStats
	Demographics Demographics
	ScrapedAt    time.Time
}

// Comment is one normalized comment row. ParentID is zero for top-level
// comments and references a top-level comment's ID within the same article
// for replies.
type Comment struct {
	ID           int64
	ArticleID    int64
	ParentID     int64
	Type         CommentType
	Content      string
	Author       string
	LikeCount    Field
	DislikeCount Field
	ReplyCount   int
	CreatedAt    string
	ScrapedAt    time.Time
}

// RawComment is a site-native comment record as returned by one comment
// page. NativeID is the site's identifier; NativeParentID is empty for
// top-level comments.
type RawComment struct {
	NativeID       string
	NativeParentID string
	Content        string
	Author         string
	LikeCount      Field
	DislikeCount   Field
	CreatedAt      string
	Deleted        bool
}

// Unit is the atomic persistence unit handed to the writer: one article and
// all of its comments. Once built it is immutable.
type Unit struct {
	Article  Article
	Comments []Comment
}

// Outcome reports one URL's terminal result to the dispatcher.
type Outcome struct {
	URL      string
	Status   ArticleStatus
	Attempts int
	Err      error
	Comments int
	Duration time.Duration
}

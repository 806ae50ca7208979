// Package csvwriter persists completed article/comment units to the two
// linked CSV tables.
package csvwriter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kdataworks/navercrawl/internal/scrape"
)

// Column order is part of the output contract and must not change.
var (
	articleHeader = []string{
		"article_id", "url", "title", "content", "author", "publish_date",
		"category", "like_count", "comment_count", "active_comment_count",
		"deleted_comment_count", "removed_comment_count", "male_ratio",
		"female_ratio", "age_10s_ratio", "age_20s_ratio", "age_30s_ratio",
		"age_40s_ratio", "age_50s_ratio", "age_60plus_ratio", "scraped_at",
	}
	commentHeader = []string{
		"article_id", "comment_id", "parent_comment_id", "comment_type",
		"content", "author", "like_count", "dislike_count", "reply_count",
		"created_at", "scraped_at",
	}
)

const timeLayout = "2006-01-02 15:04:05"

// Writer appends units to articles.csv and comments.csv. All writes funnel
// through one mutex so units never interleave, and each unit is flushed and
// synced before the next begins. Run-global IDs are drawn here, at commit
// time, which keeps committed IDs gapless and strictly increasing in commit
// order; failed articles never consume any.
//
// Within a unit, comment rows are written before the article row: the
// article row is the unit's commit marker, so a crash can never leave an
// article row whose comments are missing.
type Writer struct {
	mu       sync.Mutex
	seq      *scrape.Sequencer
	articles *os.File
	comments *os.File
	logger   *zap.Logger
}

// Open creates or reopens the output tables under dir. When the files
// already hold rows from an earlier run, the Sequencer is seeded past the
// highest committed IDs and the returned ResumeState lists the URLs that are
// already done.
func Open(dir string, seq *scrape.Sequencer, logger *zap.Logger) (*Writer, ResumeState, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, ResumeState{}, fmt.Errorf("create output dir %s: %w", dir, err)
	}

	articlePath := filepath.Join(dir, "articles.csv")
	commentPath := filepath.Join(dir, "comments.csv")

	state, err := scanExisting(articlePath, commentPath)
	if err != nil {
		return nil, ResumeState{}, err
	}
	seq.Seed(state.LastArticleID, state.LastCommentID)

	articles, err := openTable(articlePath, articleHeader)
	if err != nil {
		return nil, ResumeState{}, err
	}
	comments, err := openTable(commentPath, commentHeader)
	if err != nil {
		articles.Close()
		return nil, ResumeState{}, err
	}

	if len(state.DoneURLs) > 0 {
		logger.Info("resuming into existing output",
			zap.Int("articles_done", len(state.DoneURLs)),
			zap.Int64("last_article_id", state.LastArticleID),
			zap.Int64("last_comment_id", state.LastCommentID),
		)
	}

	return &Writer{
		seq:      seq,
		articles: articles,
		comments: comments,
		logger:   logger,
	}, state, nil
}

func openTable(path string, header []string) (*os.File, error) {
	info, statErr := os.Stat(path)
	fresh := statErr != nil || info.Size() == 0

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if fresh {
		if _, err := f.WriteString(quoteRow(header)); err != nil {
			f.Close()
			return nil, fmt.Errorf("write header %s: %w", path, err)
		}
	}
	return f, nil
}

// Write persists one unit. Any I/O failure is returned as a fatal write
// error; output integrity cannot be guaranteed past that point.
func (w *Writer) Write(ctx context.Context, unit scrape.Unit) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("unit write canceled: %w", err)
	}

	articleID := w.seq.NextArticleID()
	base := w.seq.ReserveComments(len(unit.Comments))

	var sb strings.Builder
	for _, c := range unit.Comments {
		sb.WriteString(quoteRow(commentRow(articleID, base, c)))
	}
	if len(unit.Comments) > 0 {
		if _, err := w.comments.WriteString(sb.String()); err != nil {
			return scrape.WriteError(fmt.Errorf("append comments: %w", err))
		}
		if err := w.comments.Sync(); err != nil {
			return scrape.WriteError(fmt.Errorf("sync comments: %w", err))
		}
	}

	if _, err := w.articles.WriteString(quoteRow(articleRow(articleID, unit.Article))); err != nil {
		return scrape.WriteError(fmt.Errorf("append article: %w", err))
	}
	if err := w.articles.Sync(); err != nil {
		return scrape.WriteError(fmt.Errorf("sync articles: %w", err))
	}

	w.logger.Debug("unit committed",
		zap.Int64("article_id", articleID),
		zap.String("url", unit.Article.URL),
		zap.Int("comments", len(unit.Comments)),
	)
	return nil
}

// Close closes both tables.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	aErr := w.articles.Close()
	cErr := w.comments.Close()
	if aErr != nil {
		return fmt.Errorf("close articles.csv: %w", aErr)
	}
	if cErr != nil {
		return fmt.Errorf("close comments.csv: %w", cErr)
	}
	return nil
}

func articleRow(id int64, a scrape.Article) []string {
	return []string{
		strconv.FormatInt(id, 10),
		a.URL,
		a.Fields.Title.String(),
		a.Fields.Content.String(),
		a.Fields.Author.String(),
		a.Fields.PublishDate.String(),
		a.Fields.Category.String(),
		a.Fields.LikeCount.String(),
		a.Fields.CommentCnt.String(),
		a.Stats.ActiveCommentCount.String(),
		a.Stats.DeletedCommentCount.String(),
		a.Stats.RemovedCommentCount.String(),
		a.Demographics.MaleRatio.String(),
		a.Demographics.FemaleRatio.String(),
		a.Demographics.Age10s.String(),
		a.Demographics.Age20s.String(),
		a.Demographics.Age30s.String(),
		a.Demographics.Age40s.String(),
		a.Demographics.Age50s.String(),
		a.Demographics.Age60Plus.String(),
		a.ScrapedAt.Format(timeLayout),
	}
}

func commentRow(articleID, base int64, c scrape.Comment) []string {
	parent := ""
	if c.Type == scrape.CommentTypeReply {
		parent = strconv.FormatInt(base+c.ParentID-1, 10)
	}
	return []string{
		strconv.FormatInt(articleID, 10),
		strconv.FormatInt(base+c.ID-1, 10),
		parent,
		string(c.Type),
		c.Content,
		c.Author,
		c.LikeCount.String(),
		c.DislikeCount.String(),
		strconv.Itoa(c.ReplyCount),
		c.CreatedAt,
		c.ScrapedAt.Format(timeLayout),
	}
}

// quoteRow renders one RFC 4180 record with every field quoted. The output
// contract requires all values quoted, which encoding/csv cannot force, so
// quoting happens here; reads still go through encoding/csv.
func quoteRow(fields []string) string {
	var sb strings.Builder
	for i, f := range fields {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteByte('"')
		sb.WriteString(strings.ReplaceAll(f, `"`, `""`))
		sb.WriteByte('"')
	}
	sb.WriteString("\r\n")
	return sb.String()
}

// FormatTime renders a timestamp the way both tables expect it.
func FormatTime(t time.Time) string {
	return t.Format(timeLayout)
}

package csvwriter

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kdataworks/navercrawl/internal/scrape"
)

var testTime = time.Date(2026, 8, 26, 9, 30, 0, 0, time.UTC)

func unitWithComments(url string, comments ...scrape.Comment) scrape.Unit {
	return scrape.Unit{
		Article: scrape.Article{
			URL: url,
			Fields: scrape.ArticleFields{
				Title:   scrape.SetField("제목"),
				Content: scrape.SetField("본문, 쉼표 포함"),
			},
			ScrapedAt: testTime,
		},
		Comments: comments,
	}
}

func comment(localID int64, typ scrape.CommentType, parent int64, content string) scrape.Comment {
	return scrape.Comment{
		ID:        localID,
		ParentID:  parent,
		Type:      typ,
		Content:   content,
		ScrapedAt: testTime,
	}
}

func readTable(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriterWritesHeadersOnFreshFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w, state, err := Open(dir, scrape.NewSequencer(), zap.NewNop())
	require.NoError(t, err)
	require.Empty(t, state.DoneURLs)
	require.NoError(t, w.Close())

	articles := readTable(t, filepath.Join(dir, "articles.csv"))
	require.Equal(t, articleHeader, articles[0])
	comments := readTable(t, filepath.Join(dir, "comments.csv"))
	require.Equal(t, commentHeader, comments[0])
}

func TestWriterAssignsGaplessIDsInCommitOrder(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w, _, err := Open(dir, scrape.NewSequencer(), zap.NewNop())
	require.NoError(t, err)
	defer w.Close()

	ctx := context.Background()
	require.NoError(t, w.Write(ctx, unitWithComments("https://news.example/a",
		comment(1, scrape.CommentTypeComment, 0, "c1"),
		comment(2, scrape.CommentTypeReply, 1, "r1"),
	)))
	require.NoError(t, w.Write(ctx, unitWithComments("https://news.example/b",
		comment(1, scrape.CommentTypeComment, 0, "c2"),
	)))

	articles := readTable(t, filepath.Join(dir, "articles.csv"))[1:]
	require.Equal(t, "1", articles[0][0])
	require.Equal(t, "https://news.example/a", articles[0][1])
	require.Equal(t, "2", articles[1][0])

	comments := readTable(t, filepath.Join(dir, "comments.csv"))[1:]
	require.Len(t, comments, 3)
	// article a: comment ids 1,2 with the reply pointing at the remapped
	// global parent id.
	require.Equal(t, []string{"1", "1", ""}, comments[0][:3])
	require.Equal(t, []string{"1", "2", "1"}, comments[1][:3])
	// article b continues the global comment sequence.
	require.Equal(t, []string{"2", "3", ""}, comments[2][:3])
}

func TestWriterQuotesEveryField(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w, _, err := Open(dir, scrape.NewSequencer(), zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, w.Write(context.Background(), unitWithComments("https://news.example/a",
		comment(1, scrape.CommentTypeComment, 0, `내용에 "인용" 포함`),
	)))
	require.NoError(t, w.Close())

	raw, err := os.ReadFile(filepath.Join(dir, "comments.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(raw), "\r\n"), "\r\n")
	require.Len(t, lines, 2)
	for _, line := range lines {
		require.True(t, strings.HasPrefix(line, `"`), "line %q", line)
		require.True(t, strings.HasSuffix(line, `"`), "line %q", line)
	}
	require.Contains(t, lines[1], `""인용""`)
}

func TestWriterUnsetFieldsRenderEmpty(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w, _, err := Open(dir, scrape.NewSequencer(), zap.NewNop())
	require.NoError(t, err)

	unit := scrape.Unit{Article: scrape.Article{URL: "https://news.example/a", ScrapedAt: testTime}}
	require.NoError(t, w.Write(context.Background(), unit))
	require.NoError(t, w.Close())

	rows := readTable(t, filepath.Join(dir, "articles.csv"))
	row := rows[1]
	require.Equal(t, "", row[2]) // title
	require.Equal(t, "", row[7]) // like_count
	require.Equal(t, testTime.Format(timeLayout), row[len(row)-1])
}

func TestWriterResumeSkipsDoneURLsAndContinuesIDs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	seq := scrape.NewSequencer()
	w, _, err := Open(dir, seq, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, w.Write(context.Background(), unitWithComments("https://news.example/a",
		comment(1, scrape.CommentTypeComment, 0, "c1"),
		comment(2, scrape.CommentTypeComment, 0, "c2"),
	)))
	require.NoError(t, w.Close())

	// Reopen as a new run against the same directory.
	seq2 := scrape.NewSequencer()
	w2, state, err := Open(dir, seq2, zap.NewNop())
	require.NoError(t, err)
	require.True(t, state.Done("https://news.example/a"))
	require.False(t, state.Done("https://news.example/b"))

	require.NoError(t, w2.Write(context.Background(), unitWithComments("https://news.example/b",
		comment(1, scrape.CommentTypeComment, 0, "c3"),
	)))
	require.NoError(t, w2.Close())

	articles := readTable(t, filepath.Join(dir, "articles.csv"))[1:]
	require.Len(t, articles, 2)
	require.Equal(t, "2", articles[1][0])

	comments := readTable(t, filepath.Join(dir, "comments.csv"))[1:]
	require.Len(t, comments, 3)
	require.Equal(t, "3", comments[2][1])

	// The header must not repeat on reopen.
	raw, err := os.ReadFile(filepath.Join(dir, "articles.csv"))
	require.NoError(t, err)
	require.Equal(t, 1, strings.Count(string(raw), "article_id"))
}

func TestWriterToleratesTornTrailingRow(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w, _, err := Open(dir, scrape.NewSequencer(), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, w.Write(context.Background(), unitWithComments("https://news.example/a")))
	require.NoError(t, w.Close())

	// Simulate a crash mid-write: append half a row.
	articlePath := filepath.Join(dir, "articles.csv")
	f, err := os.OpenFile(articlePath, os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = f.WriteString(`"2","https://news.example/b","torn`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	seq := scrape.NewSequencer()
	w2, state, err := Open(dir, seq, zap.NewNop())
	require.NoError(t, err)
	require.True(t, state.Done("https://news.example/a"))
	require.False(t, state.Done("https://news.example/b"))
	require.EqualValues(t, 1, state.LastArticleID)

	// The torn tail is truncated away, so the next commit appends cleanly.
	require.NoError(t, w2.Write(context.Background(), unitWithComments("https://news.example/b")))
	require.NoError(t, w2.Close())

	rows := readTable(t, articlePath)
	require.Len(t, rows, 3)
	require.Equal(t, "2", rows[2][0])
	require.Equal(t, "https://news.example/b", rows[2][1])
}

func TestWriterResumeSkipsArticleIDsFromTornUnit(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w, _, err := Open(dir, scrape.NewSequencer(), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, w.Write(context.Background(), unitWithComments("https://news.example/a",
		comment(1, scrape.CommentTypeComment, 0, "c1"),
	)))
	require.NoError(t, w.Close())

	// Simulate a crash after the comment rows synced but before the article
	// row landed: comments.csv holds rows for article id 2 while articles.csv
	// tops out at 1.
	commentPath := filepath.Join(dir, "comments.csv")
	f, err := os.OpenFile(commentPath, os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	stale := `"2","2","","comment","stale top","","","","0","","2026-08-26 09:30:00"` + "\r\n" +
		`"2","3","2","reply","stale reply","","","","0","","2026-08-26 09:30:00"` + "\r\n"
	_, err = f.WriteString(stale)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	w2, state, err := Open(dir, scrape.NewSequencer(), zap.NewNop())
	require.NoError(t, err)
	require.EqualValues(t, 2, state.LastArticleID)
	require.EqualValues(t, 3, state.LastCommentID)

	// The next commit must not reuse article id 2, or the stale rows would
	// silently become its comments.
	require.NoError(t, w2.Write(context.Background(), unitWithComments("https://news.example/b",
		comment(1, scrape.CommentTypeComment, 0, "fresh"),
	)))
	require.NoError(t, w2.Close())

	articles := readTable(t, filepath.Join(dir, "articles.csv"))[1:]
	require.Len(t, articles, 2)
	require.Equal(t, "3", articles[1][0])
	require.Equal(t, "https://news.example/b", articles[1][1])

	attached := 0
	for _, row := range readTable(t, commentPath)[1:] {
		if row[0] == "3" {
			attached++
			require.Equal(t, "fresh", row[4])
		}
	}
	require.Equal(t, 1, attached)
}

func TestWriterKeepsUnitsContiguousUnderConcurrentWrites(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w, _, err := Open(dir, scrape.NewSequencer(), zap.NewNop())
	require.NoError(t, err)

	const writers = 4
	errs := make(chan error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			url := fmt.Sprintf("https://news.example/%d", n)
			errs <- w.Write(context.Background(), unitWithComments(url,
				comment(1, scrape.CommentTypeComment, 0, "c1"),
				comment(2, scrape.CommentTypeReply, 1, "r1"),
				comment(3, scrape.CommentTypeComment, 0, "c2"),
			))
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	articles := readTable(t, filepath.Join(dir, "articles.csv"))[1:]
	require.Len(t, articles, writers)
	seen := make(map[string]bool)
	for i, row := range articles {
		require.Equal(t, strconv.Itoa(i+1), row[0])
		require.False(t, seen[row[1]], "duplicate article row for %s", row[1])
		seen[row[1]] = true
	}

	// Each unit's comment rows form one contiguous block: the article id may
	// only change between blocks of three, comment ids are gapless in file
	// order, and the reply's parent resolves within its own block.
	comments := readTable(t, filepath.Join(dir, "comments.csv"))[1:]
	require.Len(t, comments, writers*3)
	for i, row := range comments {
		require.Equal(t, strconv.Itoa(i+1), row[1])
		block := i / 3
		require.Equal(t, comments[block*3][0], row[0], "row %d crosses its unit boundary", i)
	}
	for block := 0; block < writers; block++ {
		first, reply := comments[block*3], comments[block*3+1]
		require.Equal(t, first[1], reply[2])
		require.Equal(t, "reply", reply[3])
	}
}

func TestWriterCanceledContextRefusesWrite(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w, _, err := Open(dir, scrape.NewSequencer(), zap.NewNop())
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = w.Write(ctx, unitWithComments("https://news.example/a"))
	require.Error(t, err)

	rows := readTable(t, filepath.Join(dir, "articles.csv"))
	require.Len(t, rows, 1)
}

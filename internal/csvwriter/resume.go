package csvwriter

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
)

// ResumeState summarizes what an earlier run already committed.
type ResumeState struct {
	LastArticleID int64
	LastCommentID int64
	// DoneURLs holds every URL with a committed article row. Resumed runs
	// skip these.
	DoneURLs map[string]struct{}
}

// Done reports whether url was committed by an earlier run.
func (s ResumeState) Done(url string) bool {
	_, ok := s.DoneURLs[url]
	return ok
}

// scanExisting derives the resume state from whatever the output files
// already hold. A torn trailing row (a crash mid-record) ends the scan of
// that file without failing; the file is truncated back to its last intact
// record so appended rows stay well formed.
func scanExisting(articlePath, commentPath string) (ResumeState, error) {
	state := ResumeState{DoneURLs: make(map[string]struct{})}

	err := scanTable(articlePath, func(rec []string) {
		if len(rec) < 2 {
			return
		}
		if id, err := strconv.ParseInt(rec[0], 10, 64); err == nil && id > state.LastArticleID {
			state.LastArticleID = id
		}
		state.DoneURLs[rec[1]] = struct{}{}
	})
	if err != nil {
		return ResumeState{}, fmt.Errorf("scan %s: %w", articlePath, err)
	}

	// A crash between the comment sync and the article-row append leaves
	// synced comment rows for an article id that was never committed. The
	// article sequence must skip past those ids too, or the next commit
	// would adopt the stale rows.
	err = scanTable(commentPath, func(rec []string) {
		if len(rec) < 2 {
			return
		}
		if id, err := strconv.ParseInt(rec[0], 10, 64); err == nil && id > state.LastArticleID {
			state.LastArticleID = id
		}
		if id, err := strconv.ParseInt(rec[1], 10, 64); err == nil && id > state.LastCommentID {
			state.LastCommentID = id
		}
	})
	if err != nil {
		return ResumeState{}, fmt.Errorf("scan %s: %w", commentPath, err)
	}

	return state, nil
}

func scanTable(path string, visit func(rec []string)) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	first := true
	var good int64
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			// A malformed trailing row means the last unit was torn
			// mid-write; drop it and keep everything before it.
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				return os.Truncate(path, good)
			}
			return err
		}
		good = r.InputOffset()
		if first {
			first = false
			continue
		}
		visit(rec)
	}
}

// Package selector parses article and comment DOM snapshots into domain
// records. All functions are pure and operate on goquery documents so they
// can be tested against fixture HTML without a browser.
package selector

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/kdataworks/navercrawl/internal/config"
	"github.com/kdataworks/navercrawl/internal/scrape"
)

// ParseMetadata extracts article fields from a rendered article page. Missing
// elements leave the corresponding field unset.
func ParseMetadata(doc *goquery.Document, sel config.SelectorConfig) scrape.ArticleFields {
	var f scrape.ArticleFields
	if v := text(doc, sel.Title); v != "" {
		f.Title = scrape.SetField(v)
	}
	if v := text(doc, sel.Content); v != "" {
		f.Content = scrape.SetField(v)
	}
	if v := text(doc, sel.Author); v != "" {
		f.Author = scrape.SetField(v)
	}
	if v := text(doc, sel.PublishDate); v != "" {
		f.PublishDate = scrape.SetField(v)
	}
	if v := text(doc, sel.Category); v != "" {
		f.Category = scrape.SetField(v)
	}
	if v := Number(text(doc, sel.LikeCount)); v != "" {
		f.LikeCount = scrape.SetField(v)
	}
	if v := Number(text(doc, sel.CommentCount)); v != "" {
		f.CommentCnt = scrape.SetField(v)
	}
	return f
}

// Count labels used by the comment statistics block.
const (
	labelActive  = "현재 댓글"
	labelDeleted = "작성자 삭제"
	labelRemoved = "규정 미준수"
)

// ParseStats extracts comment counts and demographic ratios from the comment
// section of a rendered page.
func ParseStats(doc *goquery.Document, sel config.SelectorConfig) (scrape.ArticleStats, scrape.Demographics) {
	var stats scrape.ArticleStats
	doc.Find(sel.StatsBlock + " .u_cbox_count_info").Each(func(_ int, s *goquery.Selection) {
		label := strings.TrimSpace(s.Find(".u_cbox_info_txt").Text())
		count := Number(s.Find(".u_cbox_info_num").Text())
		if count == "" {
			return
		}
		switch {
		case strings.Contains(label, labelActive):
			stats.ActiveCommentCount = scrape.SetField(count)
		case strings.Contains(label, labelDeleted):
			stats.DeletedCommentCount = scrape.SetField(count)
		case strings.Contains(label, labelRemoved):
			stats.RemovedCommentCount = scrape.SetField(count)
		}
	})

	var demo scrape.Demographics
	if v := Ratio(text(doc, ".u_cbox_chart_male .u_cbox_chart_per")); v != "" {
		demo.MaleRatio = scrape.SetField(v)
	}
	if v := Ratio(text(doc, ".u_cbox_chart_female .u_cbox_chart_per")); v != "" {
		demo.FemaleRatio = scrape.SetField(v)
	}
	ages := []*scrape.Field{&demo.Age10s, &demo.Age20s, &demo.Age30s, &demo.Age40s, &demo.Age50s, &demo.Age60Plus}
	doc.Find(sel.DemoBlock + " .u_cbox_chart_per").Each(func(i int, s *goquery.Selection) {
		if i >= len(ages) {
			return
		}
		if v := Ratio(s.Text()); v != "" {
			*ages[i] = scrape.SetField(v)
		}
	})
	return stats, demo
}

// ParseComments extracts the raw comment records visible in a snapshot, in
// document order. Replies carry the native ID of their parent.
func ParseComments(doc *goquery.Document, sel config.SelectorConfig) []scrape.RawComment {
	var records []scrape.RawComment
	doc.Find(sel.CommentItem).Each(func(_ int, s *goquery.Selection) {
		info, _ := s.Attr("data-info")
		rec := scrape.RawComment{
			NativeID: dataInfoValue(info, "commentNo"),
			Author:   strings.TrimSpace(s.Find(sel.CommentAuthor).First().Text()),
			Content:  strings.TrimSpace(s.Find(sel.CommentContent).First().Text()),
			CreatedAt: strings.TrimSpace(
				s.Find(sel.CommentDate).First().Text(),
			),
		}
		if isReply(s, sel) {
			if parent := dataInfoValue(info, "parentCommentNo"); parent != "" && parent != "0" {
				rec.NativeParentID = parent
			}
		}
		if class, ok := s.Attr("class"); ok && strings.Contains(class, sel.DeletedLabel) {
			rec.Deleted = true
		}
		if !rec.Deleted {
			if v := Number(s.Find(".u_cbox_cnt_recomm").First().Text()); v != "" {
				rec.LikeCount = scrape.SetField(v)
			}
			if v := Number(s.Find(".u_cbox_cnt_unrecomm").First().Text()); v != "" {
				rec.DislikeCount = scrape.SetField(v)
			}
		}
		records = append(records, rec)
	})
	return records
}

// isReply reports whether a comment item sits inside the reply area or marks
// itself with a parent reference.
func isReply(s *goquery.Selection, sel config.SelectorConfig) bool {
	if s.Closest("."+sel.ReplyMarker).Length() > 0 {
		return true
	}
	info, _ := s.Attr("data-info")
	parent := dataInfoValue(info, "parentCommentNo")
	self := dataInfoValue(info, "commentNo")
	return parent != "" && parent != "0" && parent != self
}

// Number strips everything but digits from s. Returns "" when no digits
// remain, so "댓글 1,234" yields "1234".
func Number(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Ratio normalizes a percentage string like "33%" or "32.8" to a two-decimal
// value in [0.00, 100.00]. Returns "" when no valid percentage is present.
func Ratio(s string) string {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if s == "" {
		return ""
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 || v > 100 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// dataInfoValue pulls a quoted value out of the data-info attribute, which
// carries key:value pairs like commentNo:'123456', parentCommentNo:'0'.
// Matches respect key boundaries so commentNo never matches inside
// parentCommentNo.
func dataInfoValue(info, key string) string {
	idx := -1
	for from := 0; ; {
		i := strings.Index(info[from:], key+":")
		if i < 0 {
			break
		}
		pos := from + i
		if pos == 0 || !isIdentByte(info[pos-1]) {
			idx = pos
			break
		}
		from = pos + 1
	}
	if idx < 0 {
		return ""
	}
	rest := info[idx+len(key)+1:]
	rest = strings.TrimLeft(rest, " ")
	if len(rest) == 0 {
		return ""
	}
	if rest[0] == '\'' || rest[0] == '"' {
		quote := rest[0]
		rest = rest[1:]
		if end := strings.IndexByte(rest, quote); end >= 0 {
			return rest[:end]
		}
		return ""
	}
	end := strings.IndexAny(rest, ",}")
	if end < 0 {
		end = len(rest)
	}
	return strings.TrimSpace(rest[:end])
}

func isIdentByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9' || b == '_'
}

func text(doc *goquery.Document, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.TrimSpace(doc.Find(selector).First().Text())
}

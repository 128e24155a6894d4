package parser

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	markupExpr = regexp.MustCompile(`<[a-zA-Z/!][^>]*>`)
	spaceExpr  = regexp.MustCompile(`\s+`)
)

// PlainText strips markup from a crawled article body and collapses
// whitespace. Plain input is only whitespace-normalized.
func PlainText(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !markupExpr.MatchString(raw) {
		return collapse(raw)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return collapse(markupExpr.ReplaceAllString(raw, " "))
	}
	doc.Find("script, style, noscript, figure figcaption, .byline, .copyright").Remove()

	var parts []string
	doc.Find("body").Contents().Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	if len(parts) == 0 {
		return collapse(doc.Text())
	}
	return collapse(strings.Join(parts, " "))
}

// Lead returns the first limit runes of the plain text of raw.
func Lead(raw string, limit int) string {
	text := PlainText(raw)
	if limit <= 0 {
		return text
	}
	r := []rune(text)
	if len(r) <= limit {
		return text
	}
	return strings.TrimSpace(string(r[:limit]))
}

func collapse(s string) string {
	return strings.TrimSpace(spaceExpr.ReplaceAllString(s, " "))
}

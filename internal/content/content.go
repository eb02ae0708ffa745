// Package content builds the classifier input for a feed item.
package content

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"freshrss_filter/internal/model"
)

var tagRe = regexp.MustCompile(`<[^>]+>`)

// ReviewText joins title, author, plain body and stripped HTML body, in that
// order, one per line. Absent parts are left out.
func ReviewText(item model.Item) string {
	var b strings.Builder
	b.WriteString(item.Title)
	if item.Author != "" {
		b.WriteString("\nby ")
		b.WriteString(item.Author)
	}
	if item.Content != "" {
		b.WriteString("\n")
		b.WriteString(item.Content)
	}
	if item.HTML != "" {
		b.WriteString("\n")
		b.WriteString(StripHTML(item.HTML))
	}
	return b.String()
}

// StripHTML returns the visible text of an HTML fragment with whitespace
// collapsed. Script and style contents are dropped.
func StripHTML(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return collapse(tagRe.ReplaceAllString(html, " "))
	}
	var parts []string
	collectText(doc.Selection, &parts)
	return collapse(strings.Join(parts, " "))
}

func collectText(s *goquery.Selection, parts *[]string) {
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		switch goquery.NodeName(c) {
		case "#text":
			*parts = append(*parts, c.Text())
		case "script", "style", "#comment":
		default:
			collectText(c, parts)
		}
	})
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Fingerprint returns the hex SHA-256 of text, or "" for empty text.
func Fingerprint(text string) string {
	if text == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

package ingestion

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Normalize strips markup and noise from raw fetched content into clean plain
// text. Script, style, and other non-content regions are removed, then
// whitespace and line noise are collapsed. Normalize always produces a
// string, possibly empty; there is no failure mode.
func Normalize(raw string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		// Not parseable as HTML: treat the payload as plain text.
		return collapseWhitespace(raw)
	}

	doc.Find("script, style, noscript, iframe, svg").Remove()

	return collapseWhitespace(doc.Text())
}

// collapseWhitespace trims every line, splits run-on phrases left behind by
// tag removal, and joins the surviving fragments one per line.
func collapseWhitespace(text string) string {
	var parts []string
	for _, line := range strings.Split(text, "\n") {
		for _, phrase := range strings.Split(strings.TrimSpace(line), "  ") {
			if p := strings.TrimSpace(phrase); p != "" {
				parts = append(parts, p)
			}
		}
	}
	return strings.Join(parts, "\n")
}

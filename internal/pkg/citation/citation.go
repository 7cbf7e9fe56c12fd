// Package citation implements the inline source marker grammar embedded in
// assistant messages: [Document ID: <id>, Page: <n>] or Page: <start>-<end>.
// The literal shape is pattern-matched by the frontend to build deep links,
// so Format and the regexp below must stay byte-compatible.
package citation

import (
	"fmt"
	"regexp"
	"strconv"
)

type Citation struct {
	DocumentID string
	PageStart  int
	PageEnd    int
}

// Range reports whether the marker covered a page span rather than one page.
func (c Citation) Range() bool {
	return c.PageEnd > c.PageStart
}

var markerRegex = regexp.MustCompile(`\[Document ID:\s*([^,\]]+?)\s*,\s*Page:\s*(\d+)(?:\s*-\s*(\d+))?\s*\]`)

// Format renders a single-page marker in canonical form.
func Format(documentID string, page int) string {
	return fmt.Sprintf("[Document ID: %s, Page: %d]", documentID, page)
}

// FormatRange renders a page-span marker in canonical form.
func FormatRange(documentID string, start, end int) string {
	return fmt.Sprintf("[Document ID: %s, Page: %d-%d]", documentID, start, end)
}

// Parse extracts every marker from text, in order of appearance.
// Malformed brackets are skipped, never an error.
func Parse(text string) []Citation {
	matches := markerRegex.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	out := make([]Citation, 0, len(matches))
	for _, m := range matches {
		start, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		end := start
		if m[3] != "" {
			parsed, err := strconv.Atoi(m[3])
			if err != nil {
				continue
			}
			end = parsed
		}
		if end < start {
			start, end = end, start
		}
		out = append(out, Citation{DocumentID: m[1], PageStart: start, PageEnd: end})
	}
	return out
}

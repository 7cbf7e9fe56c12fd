// Package extract turns uploaded file bytes into an ordered sequence of page
// texts. PDF extraction uses github.com/ledongthuc/pdf; plain text and
// markdown are paginated on form feeds. Word formats are recognised upstream
// but parsed by an external collaborator, so they are rejected here.
package extract

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	appErr "github.com/lectern-app/lectern/internal/pkg/errors"
)

// Supported reports whether the file name's extension maps to a parser.
// Lets upload reject bad kinds before anything is stored.
func Supported(fileName string) bool {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf", ".txt", ".md", ".markdown":
		return true
	default:
		return false
	}
}

// Pages extracts one text per page, in page order. File kind is decided by
// the name's extension. Returns ErrUnsupportedFormat for kinds this build
// cannot parse and ErrCorruptFile when the payload does not match its kind.
func Pages(data []byte, fileName string) ([]string, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", appErr.ErrCorruptFile)
	}
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf":
		return pdfPages(data)
	case ".txt", ".md", ".markdown":
		return textPages(data), nil
	default:
		return nil, fmt.Errorf("%w: %s", appErr.ErrUnsupportedFormat, filepath.Ext(fileName))
	}
}

func pdfPages(data []byte) (pages []string, err error) {
	// The pdf library panics on some malformed inputs instead of returning
	// an error; a crafted upload must land in ErrCorruptFile, not crash the
	// ingestion goroutine.
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("%w: pdf parse failure: %v", appErr.ErrCorruptFile, r)
		}
	}()
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", appErr.ErrCorruptFile, err)
	}
	total := reader.NumPage()
	if total == 0 {
		return nil, fmt.Errorf("%w: pdf has no pages", appErr.ErrCorruptFile)
	}
	pages = make([]string, 0, total)
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single unreadable page should not sink the document.
			pages = append(pages, "")
			continue
		}
		pages = append(pages, strings.TrimSpace(text))
	}
	return pages, nil
}

func textPages(data []byte) []string {
	raw := strings.ReplaceAll(string(data), "\r\n", "\n")
	parts := strings.Split(raw, "\f")
	pages := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		pages = append(pages, trimmed)
	}
	if len(pages) == 0 {
		pages = append(pages, "")
	}
	return pages
}

package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDF extracts the text layer page by page.
func PDF(data []byte) (text string, err error) {
	// The parser panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", unparseable("pdf", fmt.Errorf("parser panic: %v", r))
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", unparseable("pdf", err)
	}

	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		content, err := p.GetPlainText(nil)
		if err != nil {
			return "", unparseable("pdf", fmt.Errorf("page %d: %w", i, err))
		}
		pages = append(pages, content)
	}
	return joinPages(pages), nil
}

// joinPages prefixes each non-empty page with its 1-based marker.
func joinPages(pages []string) string {
	var b strings.Builder
	for i, content := range pages {
		content = strings.TrimSpace(content)
		if content == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[PAGE %d]\n%s", i+1, content)
	}
	return b.String()
}

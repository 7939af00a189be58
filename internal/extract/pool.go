// Package extract turns downloaded document bytes into plain text.
//
// Page-oriented formats emit "[PAGE n]" markers ahead of each page so the
// chunker can tag chunks with their page number. Row-oriented formats emit one
// line per row.
package extract

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/cloo-solutions/ragsync/internal/domain"
	"golang.org/x/sync/semaphore"
)

// DefaultWorkers bounds concurrent parses when no limit is configured.
const DefaultWorkers = 5

// ImageDescriber produces a text description of an image.
type ImageDescriber interface {
	DescribeImage(ctx context.Context, data []byte, mimeType string) (string, error)
}

// Pool dispatches extraction by format and bounds how many parses run at once.
type Pool struct {
	sem       *semaphore.Weighted
	describer ImageDescriber
}

// NewPool creates a pool allowing workers concurrent parses. describer may be
// nil, in which case images are rejected as unsupported.
func NewPool(workers int, describer ImageDescriber) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Pool{
		sem:       semaphore.NewWeighted(int64(workers)),
		describer: describer,
	}
}

// Extract returns the text of data interpreted as format. Workspace formats are
// read as the type they were exported to.
func (p *Pool) Extract(ctx context.Context, data []byte, format domain.Format, mimeType string) (string, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer p.sem.Release(1)

	switch format {
	case domain.FormatPDF, domain.FormatGoogleSlides:
		return PDF(data)
	case domain.FormatDOCX, domain.FormatGoogleDoc:
		return DOCX(data)
	case domain.FormatPPTX:
		return PPTX(data)
	case domain.FormatXLSX:
		return XLSX(data)
	case domain.FormatCSV, domain.FormatGoogleSheet:
		return CSV(data)
	case domain.FormatText, domain.FormatMarkdown:
		return Text(data)
	case domain.FormatHTML:
		page, err := HTML(data)
		if err != nil {
			return "", err
		}
		return page.Text, nil
	case domain.FormatImage:
		if p.describer == nil {
			return "", domain.ErrUnsupportedFormat.WithCause(fmt.Errorf("image description not configured"))
		}
		if mimeType == "" || !strings.HasPrefix(mimeType, "image/") {
			mimeType = ""
		}
		return p.describer.DescribeImage(ctx, data, mimeType)
	}
	return "", domain.ErrUnsupportedFormat.WithCause(fmt.Errorf("format %q", format))
}

// Text validates and returns plain text.
func Text(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", domain.ErrUnparseable.WithCause(fmt.Errorf("text is not valid utf-8"))
	}
	return strings.TrimPrefix(string(data), "\uFEFF"), nil
}

func unparseable(kind string, err error) error {
	return domain.ErrUnparseable.WithCause(fmt.Errorf("%s: %w", kind, err))
}

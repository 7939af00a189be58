// Package drive lists and downloads files from Google Drive folders.
package drive

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/cloo-solutions/ragsync/internal/domain"
	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const (
	listFields = "nextPageToken, files(id, name, mimeType, modifiedTime, size, parents, webViewLink)"
	pageSize   = 1000
	// MaxDownloadSize caps a single file download.
	MaxDownloadSize = 100 * 1024 * 1024
)

// Config selects how the client authenticates. AccessToken wins when both are set.
type Config struct {
	AccessToken     string
	CredentialsFile string
	// Options are appended to the service options, for tests and custom endpoints.
	Options []option.ClientOption
}

// Client is a read-only Drive document source.
type Client struct {
	svc     *drive.Service
	limiter *RateLimiter
}

// New creates a Drive client.
func New(ctx context.Context, cfg Config) (*Client, error) {
	var opts []option.ClientOption
	switch {
	case cfg.AccessToken != "":
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken, TokenType: "Bearer"})
		opts = append(opts, option.WithTokenSource(ts))
	case cfg.CredentialsFile != "":
		opts = append(opts,
			option.WithCredentialsFile(cfg.CredentialsFile),
			option.WithScopes(drive.DriveReadonlyScope),
		)
	case len(cfg.Options) == 0:
		return nil, domain.ErrMissingCredentials
	}
	opts = append(opts, cfg.Options...)

	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}
	return NewWithService(svc, nil), nil
}

// NewWithService wraps an existing service. A nil limiter uses the defaults.
func NewWithService(svc *drive.Service, limiter *RateLimiter) *Client {
	if limiter == nil {
		limiter = NewRateLimiter(0, 0)
	}
	return &Client{svc: svc, limiter: limiter}
}

// ListChildren returns the direct, non-trashed children of folderID across all pages.
func (c *Client) ListChildren(ctx context.Context, folderID string) ([]domain.Document, error) {
	q := fmt.Sprintf("'%s' in parents and trashed = false", escapeQuery(folderID))

	var docs []domain.Document
	pageToken := ""
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		call := c.svc.Files.List().
			Q(q).
			Fields(listFields).
			PageSize(pageSize).
			SupportsAllDrives(true).
			IncludeItemsFromAllDrives(true).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			c.noteError(err)
			return nil, classify(fmt.Errorf("list folder %s: %w", folderID, err))
		}

		for _, f := range resp.Files {
			docs = append(docs, toDocument(f))
		}
		if resp.NextPageToken == "" {
			return docs, nil
		}
		pageToken = resp.NextPageToken
	}
}

// Download fetches file bytes. Workspace files are exported and the returned
// MIME type is the export type.
func (c *Client) Download(ctx context.Context, doc domain.Document) ([]byte, string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, "", err
	}

	format := doc.Format()
	mimeType := doc.MimeType
	var body io.ReadCloser
	if export := format.ExportMimeType(); export != "" {
		resp, err := c.svc.Files.Export(doc.ID, export).Context(ctx).Download()
		if err != nil {
			c.noteError(err)
			return nil, "", classify(fmt.Errorf("export %s: %w", doc.Name, err))
		}
		body = resp.Body
		mimeType = export
	} else {
		resp, err := c.svc.Files.Get(doc.ID).SupportsAllDrives(true).Context(ctx).Download()
		if err != nil {
			c.noteError(err)
			return nil, "", classify(fmt.Errorf("download %s: %w", doc.Name, err))
		}
		body = resp.Body
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, MaxDownloadSize+1))
	if err != nil {
		return nil, "", classify(fmt.Errorf("read %s: %w", doc.Name, err))
	}
	if len(data) > MaxDownloadSize {
		return nil, "", domain.ErrUnsupportedFormat.WithCause(fmt.Errorf("%s exceeds %d bytes", doc.Name, MaxDownloadSize))
	}
	return data, mimeType, nil
}

func (c *Client) noteError(err error) {
	if isRateLimited(err) {
		c.limiter.Cooldown(0)
	}
}

func toDocument(f *drive.File) domain.Document {
	return domain.Document{
		ID:           f.Id,
		Name:         f.Name,
		MimeType:     f.MimeType,
		ModifiedTime: f.ModifiedTime,
		SourceURI:    f.WebViewLink,
		Size:         f.Size,
		Parents:      f.Parents,
	}
}

// escapeQuery escapes a value for a single-quoted Drive query literal.
func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}

// Package s3 treats an S3-compatible bucket as a document source. Key
// prefixes ending in "/" play the role of folders.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/cloo-solutions/ragsync/internal/domain"
)

// FolderMimeType marks common prefixes so the sync engine expands them.
const FolderMimeType = domain.MimeTypeFolder

// MaxDownloadSize caps a single object download.
const MaxDownloadSize = 100 * 1024 * 1024

// ClientConfig holds configuration for Client
type ClientConfig struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UsePathStyle    bool
}

// Client lists and reads objects in one bucket.
type Client struct {
	client *s3.Client
	bucket string
}

// NewClient creates a new Client with the given configuration
func NewClient(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.Bucket == "" {
		return nil, domain.ErrSourceNotConfigured.WithCause(errors.New("bucket is required"))
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Path-style addressing for S3-compatible services
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &Client{client: client, bucket: cfg.Bucket}, nil
}

// Bucket returns the configured bucket name.
func (c *Client) Bucket() string {
	return c.bucket
}

// ListChildren returns the objects and sub-prefixes directly under prefix.
// The bucket root is "" (or "/").
func (c *Client) ListChildren(ctx context.Context, prefix string) ([]domain.Document, error) {
	prefix = normalizePrefix(prefix)

	var docs []domain.Document
	paginator := s3.NewListObjectsV2Paginator(c.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(c.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, classify(fmt.Errorf("list %s/%s: %w", c.bucket, prefix, err))
		}

		for _, p := range page.CommonPrefixes {
			key := aws.ToString(p.Prefix)
			docs = append(docs, domain.Document{
				ID:       key,
				Name:     path.Base(strings.TrimSuffix(key, "/")),
				MimeType: FolderMimeType,
			})
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			// Some tools create zero-byte "folder" markers equal to the prefix.
			if key == prefix || strings.HasSuffix(key, "/") {
				continue
			}
			docs = append(docs, domain.Document{
				ID:           key,
				Name:         path.Base(key),
				MimeType:     mimeFromKey(key),
				ModifiedTime: formatTime(obj.LastModified),
				SourceURI:    fmt.Sprintf("s3://%s/%s", c.bucket, key),
				Size:         aws.ToInt64(obj.Size),
			})
		}
	}
	return docs, nil
}

// Download reads an object. The returned MIME type prefers the stored
// Content-Type over the extension guess.
func (c *Client) Download(ctx context.Context, doc domain.Document) ([]byte, string, error) {
	out, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(doc.ID),
	})
	if err != nil {
		return nil, "", classify(fmt.Errorf("get %s: %w", doc.ID, err))
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, MaxDownloadSize+1))
	if err != nil {
		return nil, "", classify(fmt.Errorf("read %s: %w", doc.ID, err))
	}
	if len(data) > MaxDownloadSize {
		return nil, "", domain.ErrUnsupportedFormat.WithCause(fmt.Errorf("%s exceeds %d bytes", doc.ID, MaxDownloadSize))
	}

	mimeType := doc.MimeType
	if ct := aws.ToString(out.ContentType); ct != "" && ct != "binary/octet-stream" && ct != "application/octet-stream" {
		mimeType = ct
	}
	return data, mimeType, nil
}

// PutObject uploads content under key.
func (c *Client) PutObject(ctx context.Context, key string, body io.Reader, contentType string) error {
	_, err := c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return classify(fmt.Errorf("put %s: %w", key, err))
	}
	return nil
}

// EnsureBucket creates the bucket if it doesn't exist
func (c *Client) EnsureBucket(ctx context.Context) error {
	_, err := c.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(c.bucket),
	})
	if err == nil {
		return nil
	}

	_, err = c.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(c.bucket),
	})
	if err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}

	return nil
}

func normalizePrefix(prefix string) string {
	prefix = strings.TrimPrefix(strings.TrimSpace(prefix), "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix
}

func mimeFromKey(key string) string {
	if t := mime.TypeByExtension(path.Ext(key)); t != "" {
		return t
	}
	return "application/octet-stream"
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func classify(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NoSuchBucket", "NotFound":
			return domain.NewDomainErrorWithCause(domain.ErrCodeNotFound, "s3 object not found", err)
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return domain.ErrMissingCredentials.WithCause(err)
		case "SlowDown", "InternalError", "ServiceUnavailable", "RequestTimeout":
			return domain.NewTransientError("s3", err)
		}
		return err
	}
	return domain.NewTransientError("s3", err)
}

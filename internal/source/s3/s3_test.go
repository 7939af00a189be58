package s3

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/cloo-solutions/ragsync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listXML = `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
  <Name>docs</Name>
  <Prefix>reports/</Prefix>
  <KeyCount>3</KeyCount>
  <MaxKeys>1000</MaxKeys>
  <Delimiter>/</Delimiter>
  <IsTruncated>false</IsTruncated>
  <Contents>
    <Key>reports/</Key>
    <LastModified>2024-05-01T10:00:00.000Z</LastModified>
    <Size>0</Size>
  </Contents>
  <Contents>
    <Key>reports/q1.pdf</Key>
    <LastModified>2024-05-01T10:00:00.000Z</LastModified>
    <Size>1234</Size>
  </Contents>
  <CommonPrefixes>
    <Prefix>reports/archive/</Prefix>
  </CommonPrefixes>
</ListBucketResult>`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(context.Background(), ClientConfig{
		Endpoint:        srv.URL,
		Region:          "us-east-1",
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		Bucket:          "docs",
		UsePathStyle:    true,
	})
	require.NoError(t, err)
	return client
}

func TestNewClient_RequiresBucket(t *testing.T) {
	_, err := NewClient(context.Background(), ClientConfig{Region: "us-east-1"})
	assert.True(t, domain.IsCode(err, domain.ErrCodeConfiguration))
}

func TestListChildren_MapsObjectsAndPrefixes(t *testing.T) {
	var gotPrefix, gotDelimiter string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/docs" || r.URL.Query().Get("list-type") != "2" {
			t.Errorf("unexpected request %s", r.URL.String())
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		gotPrefix = r.URL.Query().Get("prefix")
		gotDelimiter = r.URL.Query().Get("delimiter")
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprint(w, listXML)
	})

	docs, err := client.ListChildren(context.Background(), "/reports")
	require.NoError(t, err)

	assert.Equal(t, "reports/", gotPrefix)
	assert.Equal(t, "/", gotDelimiter)
	require.Len(t, docs, 2)

	folder := docs[0]
	assert.Equal(t, "reports/archive/", folder.ID)
	assert.Equal(t, "archive", folder.Name)
	assert.True(t, folder.IsFolder())

	file := docs[1]
	assert.Equal(t, "reports/q1.pdf", file.ID)
	assert.Equal(t, "q1.pdf", file.Name)
	assert.Equal(t, domain.MimeTypePDF, file.MimeType)
	assert.Equal(t, "2024-05-01T10:00:00Z", file.ModifiedTime)
	assert.Equal(t, "s3://docs/reports/q1.pdf", file.SourceURI)
	assert.Equal(t, int64(1234), file.Size)
	assert.Equal(t, domain.FormatPDF, file.Format())
}

func TestDownload_PrefersStoredContentType(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/docs/notes/readme", r.URL.Path)
		w.Header().Set("Content-Type", "text/markdown")
		fmt.Fprint(w, "# Notes")
	})

	data, mimeType, err := client.Download(context.Background(), domain.Document{ID: "notes/readme", MimeType: "application/octet-stream"})
	require.NoError(t, err)
	assert.Equal(t, "# Notes", string(data))
	assert.Equal(t, "text/markdown", mimeType)
}

func TestDownload_GenericContentTypeKeepsListingGuess(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "binary/octet-stream")
		fmt.Fprint(w, "a,b\n1,2\n")
	})

	_, mimeType, err := client.Download(context.Background(), domain.Document{ID: "t.csv", MimeType: "text/csv"})
	require.NoError(t, err)
	assert.Equal(t, "text/csv", mimeType)
}

func TestDownload_MissingKeyIsNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
	})

	_, _, err := client.Download(context.Background(), domain.Document{ID: "gone.pdf"})
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeNotFound))
}

func TestNormalizePrefix(t *testing.T) {
	tests := map[string]string{
		"":          "",
		"/":         "",
		"docs":      "docs/",
		"/docs/":    "docs/",
		" a/b ":     "a/b/",
		"a/b/c.txt": "a/b/c.txt/",
	}
	for in, want := range tests {
		assert.Equal(t, want, normalizePrefix(in), "input %q", in)
	}
}

func TestMimeFromKey(t *testing.T) {
	assert.Equal(t, domain.MimeTypePDF, mimeFromKey("a/b.pdf"))
	assert.Equal(t, "application/octet-stream", mimeFromKey("a/b.unknownext"))
	assert.Equal(t, "application/octet-stream", mimeFromKey("noext"))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"no such key", &smithy.GenericAPIError{Code: "NoSuchKey"}, domain.ErrCodeNotFound},
		{"access denied", &smithy.GenericAPIError{Code: "AccessDenied"}, domain.ErrCodeConfiguration},
		{"slow down", &smithy.GenericAPIError{Code: "SlowDown"}, domain.ErrCodeTransient},
		{"network", errors.New("connection reset"), domain.ErrCodeTransient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, domain.IsCode(classify(tt.err), tt.code))
		})
	}

	other := &smithy.GenericAPIError{Code: "InvalidArgument"}
	assert.Equal(t, error(other), classify(other))
}

package drive

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cloo-solutions/ragsync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), Config{Options: []option.ClientOption{
		option.WithEndpoint(srv.URL + "/"),
		option.WithHTTPClient(srv.Client()),
	}})
	require.NoError(t, err)
	c.limiter = NewRateLimiter(1000, 1000)
	return c
}

func TestNew_RequiresCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.ErrorIs(t, err, domain.ErrMissingCredentials)
}

func TestListChildren_PaginatesAndMaps(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/files", r.URL.Path)
		assert.Equal(t, "'root\\'s' in parents and trashed = false", r.URL.Query().Get("q"))

		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("pageToken") == "" {
			w.Write([]byte(`{"nextPageToken":"p2","files":[
				{"id":"f1","name":"notes.pdf","mimeType":"application/pdf","modifiedTime":"2024-03-01T10:00:00.000Z","size":"2048","webViewLink":"https://drive/f1"}
			]}`))
			return
		}
		assert.Equal(t, "p2", r.URL.Query().Get("pageToken"))
		w.Write([]byte(`{"files":[{"id":"d1","name":"sub","mimeType":"application/vnd.google-apps.folder"}]}`))
	})

	docs, err := c.ListChildren(context.Background(), "root's")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, 2, calls)

	assert.Equal(t, "f1", docs[0].ID)
	assert.Equal(t, "2024-03-01T10:00:00.000Z", docs[0].ModifiedTime)
	assert.Equal(t, int64(2048), docs[0].Size)
	assert.Equal(t, "https://drive/f1", docs[0].SourceURI)
	assert.True(t, docs[1].IsFolder())
}

func TestListChildren_ErrorsAreClassified(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		code   string
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error":{"code":429,"message":"slow"}}`, domain.ErrCodeTransient},
		{"quota reason", http.StatusForbidden, `{"error":{"code":403,"message":"quota","errors":[{"reason":"userRateLimitExceeded"}]}}`, domain.ErrCodeTransient},
		{"unauthorized", http.StatusUnauthorized, `{"error":{"code":401,"message":"bad token"}}`, domain.ErrCodeConfiguration},
		{"not found", http.StatusNotFound, `{"error":{"code":404,"message":"no folder"}}`, domain.ErrCodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := c.ListChildren(context.Background(), "root")
			require.Error(t, err)
			assert.True(t, domain.IsCode(err, tt.code), err.Error())
		})
	}
}

func TestDownload_RegularFile(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/files/f1", r.URL.Path)
		assert.Equal(t, "media", r.URL.Query().Get("alt"))
		w.Write([]byte("%PDF-1.7 bytes"))
	})

	data, mime, err := c.Download(context.Background(), domain.Document{ID: "f1", Name: "a.pdf", MimeType: domain.MimeTypePDF})
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7 bytes", string(data))
	assert.Equal(t, domain.MimeTypePDF, mime)
}

func TestDownload_WorkspaceFileIsExported(t *testing.T) {
	tests := []struct {
		mime   string
		export string
	}{
		{domain.MimeTypeGoogleDoc, domain.MimeTypeDOCX},
		{domain.MimeTypeGoogleSheet, domain.MimeTypeCSV},
		{domain.MimeTypeGoogleSlides, domain.MimeTypePDF},
	}

	for _, tt := range tests {
		t.Run(tt.mime, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.True(t, strings.HasSuffix(r.URL.Path, "/files/g1/export"), r.URL.Path)
				assert.Equal(t, tt.export, r.URL.Query().Get("mimeType"))
				w.Write([]byte("exported"))
			})

			data, mime, err := c.Download(context.Background(), domain.Document{ID: "g1", Name: "g", MimeType: tt.mime})
			require.NoError(t, err)
			assert.Equal(t, "exported", string(data))
			assert.Equal(t, tt.export, mime)
		})
	}
}

func TestRateLimiter_CooldownBlocks(t *testing.T) {
	l := NewRateLimiter(1000, 10)
	l.Cooldown(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Wait(ctx), context.DeadlineExceeded)

	time.Sleep(60 * time.Millisecond)
	assert.NoError(t, l.Wait(context.Background()))
}

func TestEscapeQuery(t *testing.T) {
	assert.Equal(t, `a\'b\\c`, escapeQuery(`a'b\c`))
}

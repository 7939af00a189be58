package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cloo-solutions/ragsync/internal/domain"
	"github.com/cloo-solutions/ragsync/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSyncHandler_Drive_Success(t *testing.T) {
	syncer := new(MockSyncer)
	src := stubSource{"drive"}
	var gotToken string
	factory := func(ctx context.Context, token string) (service.DocumentSource, error) {
		gotToken = token
		return src, nil
	}

	syncer.On("Sync", mock.Anything, src, service.SyncInput{FolderID: "folder-1", TargetID: "m1"}).
		Return(&domain.SyncSummary{Success: true, SyncedCount: 2, SkippedCount: 1, TotalFiles: 3, Namespace: "meeting:m1"}, nil)

	w := httptest.NewRecorder()
	NewSyncHandler(syncer, factory, nil).Drive(w, jsonRequest(http.MethodPost, "/drive/sync",
		`{"folder_id":"folder-1","access_token":"ya29.token","meeting_id":"m1"}`))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ya29.token", gotToken)
	var summary domain.SyncSummary
	decodeData(t, w, &summary)
	assert.True(t, summary.Success)
	assert.Equal(t, 2, summary.SyncedCount)
	assert.Equal(t, "meeting:m1", summary.Namespace)
	syncer.AssertExpectations(t)
}

func TestSyncHandler_Drive_Validation(t *testing.T) {
	factory := func(ctx context.Context, token string) (service.DocumentSource, error) {
		t.Error("factory should not be called")
		return nil, nil
	}
	handler := NewSyncHandler(new(MockSyncer), factory, nil)

	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{`},
		{"no folder", `{"access_token":"t","target_id":"m"}`},
		{"no target", `{"folder_id":"f","access_token":"t"}`},
		{"no token", `{"folder_id":"f","target_id":"m"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.Drive(w, jsonRequest(http.MethodPost, "/drive/sync", tt.body))
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestSyncHandler_Drive_FactoryAndSyncErrors(t *testing.T) {
	body := `{"folder_id":"f","access_token":"t","target_id":"m"}`

	w := httptest.NewRecorder()
	NewSyncHandler(new(MockSyncer), nil, nil).Drive(w, jsonRequest(http.MethodPost, "/drive/sync", body))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	failing := func(ctx context.Context, token string) (service.DocumentSource, error) {
		return nil, domain.ErrMissingCredentials
	}
	w = httptest.NewRecorder()
	NewSyncHandler(new(MockSyncer), failing, nil).Drive(w, jsonRequest(http.MethodPost, "/drive/sync", body))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	syncer := new(MockSyncer)
	syncer.On("Sync", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, domain.ErrSourceUnavailable.WithCause(errors.New("403")))
	ok := func(ctx context.Context, token string) (service.DocumentSource, error) { return stubSource{}, nil }
	w = httptest.NewRecorder()
	NewSyncHandler(syncer, ok, nil).Drive(w, jsonRequest(http.MethodPost, "/drive/sync", body))
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestSyncHandler_S3(t *testing.T) {
	syncer := new(MockSyncer)
	bucket := stubSource{"s3"}
	syncer.On("Sync", mock.Anything, bucket, service.SyncInput{FolderID: "reports/", TargetID: "t1", Namespace: "docs"}).
		Return(&domain.SyncSummary{Success: true, Namespace: "docs"}, nil)

	w := httptest.NewRecorder()
	NewSyncHandler(syncer, nil, bucket).S3(w, jsonRequest(http.MethodPost, "/s3/sync",
		`{"prefix":"reports/","target_id":"t1","namespace":"docs"}`))

	require.Equal(t, http.StatusOK, w.Code)
	syncer.AssertExpectations(t)
}

func TestSyncHandler_S3_NotConfigured(t *testing.T) {
	w := httptest.NewRecorder()
	NewSyncHandler(new(MockSyncer), nil, nil).S3(w, jsonRequest(http.MethodPost, "/s3/sync", `{"target_id":"t1"}`))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = httptest.NewRecorder()
	NewSyncHandler(new(MockSyncer), nil, stubSource{}).S3(w, jsonRequest(http.MethodPost, "/s3/sync", `{}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

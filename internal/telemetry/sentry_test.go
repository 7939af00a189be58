package telemetry

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/cloo-solutions/ragsync/internal/domain"
	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_NoDSN(t *testing.T) {
	shutdown, err := Init(Config{})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	shutdown()
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want sentry.SpanStatus
	}{
		{"nil", nil, sentry.SpanStatusOK},
		{"canceled", fmt.Errorf("sync: %w", context.Canceled), sentry.SpanStatusCanceled},
		{"deadline", context.DeadlineExceeded, sentry.SpanStatusDeadlineExceeded},
		{"validation", domain.ErrEmptyQuery, sentry.SpanStatusInvalidArgument},
		{"unsupported", domain.ErrUnsupportedFormat.WithCause(errors.New("format \"zip\"")), sentry.SpanStatusInvalidArgument},
		{"not found", domain.ErrSessionNotFound, sentry.SpanStatusNotFound},
		{"unauthorized", domain.ErrInvalidAPIKey, sentry.SpanStatusUnauthenticated},
		{"configuration", domain.ErrVectorStoreNotConfigured, sentry.SpanStatusFailedPrecondition},
		{"transient", domain.NewTransientError("openai", errors.New("429")), sentry.SpanStatusUnavailable},
		{"partial batch", domain.NewPartialBatchError(0, 100, errors.New("boom")), sentry.SpanStatusInternalError},
		{"plain", errors.New("boom"), sentry.SpanStatusInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}

func TestReportable(t *testing.T) {
	assert.False(t, Reportable(nil))
	assert.False(t, Reportable(context.Canceled))
	assert.False(t, Reportable(domain.ErrEmptyQuery))
	assert.False(t, Reportable(domain.ErrSessionNotFound))
	assert.True(t, Reportable(domain.ErrRetrievalFailed))
	assert.True(t, Reportable(domain.NewTransientError("pinecone", errors.New("503"))))
	assert.True(t, Reportable(errors.New("boom")))
}

func TestStartSpan_NestsUnderParent(t *testing.T) {
	ctx, root := StartTransaction(context.Background(), "job sync", OpJob)
	defer root.End()
	require.NotNil(t, sentry.GetHubFromContext(ctx))

	childCtx, child := StartSpan(ctx, "SyncService.Sync", SpanAttributes{Namespace: "reports", TargetID: "q3"})
	defer child.End()

	assert.Equal(t, root.inner.TraceID, child.inner.TraceID)
	assert.Equal(t, root.inner.SpanID, child.inner.ParentSpanID)
	assert.Equal(t, "reports", child.inner.Tags["namespace"])
	assert.Equal(t, "q3", child.inner.Tags["target_id"])
	_, hasSession := child.inner.Tags["session_id"]
	assert.False(t, hasSession)
	assert.Equal(t, child.inner, sentry.SpanFromContext(childCtx))

	child.SetError(domain.ErrEmptyQuery)
	assert.Equal(t, sentry.SpanStatusInvalidArgument, child.inner.Status)
}

func TestSpan_NilInnerIsNoop(t *testing.T) {
	var s Span
	s.SetError(errors.New("boom"))
	s.End()
	assert.NotNil(t, s.Context())
}

func TestSampleRate(t *testing.T) {
	health := sentry.StartSpan(context.Background(), "http.server", sentry.WithTransactionName("GET /health"))
	health.Name = "GET /health"
	assert.Zero(t, sampleRate(health, 0.5))

	job := sentry.StartSpan(context.Background(), OpJob, sentry.WithTransactionName("job sync"))
	assert.Equal(t, 1.0, sampleRate(job, 0.1))

	req := sentry.StartSpan(context.Background(), "http.server", sentry.WithTransactionName("POST /chat"))
	assert.Equal(t, 0.1, sampleRate(req, 0.1))

	assert.Equal(t, 0.3, sampleRate(nil, 0.3))
}

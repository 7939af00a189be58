// Package telemetry wraps sentry-go tracing for request handling, retrieval
// and background sync jobs.
package telemetry

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/cloo-solutions/ragsync/internal/domain"
	"github.com/getsentry/sentry-go"
)

const (
	serviceName  = "ragsync"
	flushTimeout = 5 * time.Second

	// OpJob is the transaction op of background worker runs.
	OpJob = "job.run"
)

// Config holds the configuration for Sentry initialization.
type Config struct {
	DSN              string
	Environment      string
	TracesSampleRate float64
	Debug            bool
}

// Init configures Sentry and returns a function that flushes pending events.
// Without a DSN it does nothing.
func Init(cfg Config) (func(), error) {
	if cfg.DSN == "" {
		return func() {}, nil
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.TracesSampleRate <= 0 {
		cfg.TracesSampleRate = 1.0
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		EnableTracing:    true,
		TracesSampleRate: cfg.TracesSampleRate,
		Debug:            cfg.Debug,
		ServerName:       serviceName,
		TracesSampler: sentry.TracesSampler(func(ctx sentry.SamplingContext) float64 {
			return sampleRate(ctx.Span, cfg.TracesSampleRate)
		}),
	})
	if err != nil {
		log.Printf("sentry: failed to initialize (continuing without tracing): %v", err)
		return func() {}, nil
	}

	log.Printf("sentry: tracing initialized (environment: %s, sample_rate: %.2f)", cfg.Environment, cfg.TracesSampleRate)
	return func() { sentry.Flush(flushTimeout) }, nil
}

// sampleRate drops health probes, keeps every sync job and lets child spans
// follow their parent.
func sampleRate(span *sentry.Span, base float64) float64 {
	if span == nil {
		return base
	}
	if strings.HasSuffix(span.Name, "/health") {
		return 0
	}
	var emptySpanID sentry.SpanID
	if span.ParentSpanID != emptySpanID {
		if span.Sampled.Bool() {
			return 1
		}
		return 0
	}
	if span.Op == OpJob {
		return 1
	}
	return base
}

// SpanAttributes are tagged on service spans when set.
type SpanAttributes struct {
	Namespace  string
	SessionID  string
	DocumentID string
	TargetID   string
	Operation  string
}

func (a SpanAttributes) apply(span *sentry.Span) {
	tags := map[string]string{
		"namespace":   a.Namespace,
		"session_id":  a.SessionID,
		"document_id": a.DocumentID,
		"target_id":   a.TargetID,
	}
	for k, v := range tags {
		if v != "" {
			span.SetTag(k, v)
		}
	}
	if a.Operation != "" {
		span.SetData("operation", a.Operation)
	}
}

// Span wraps sentry.Span; a nil inner span makes every method a no-op.
type Span struct {
	inner *sentry.Span
}

// End finishes the span.
func (s *Span) End() {
	if s.inner != nil {
		s.inner.Finish()
	}
}

// SetError records err on the span. Caller mistakes such as bad input or a
// missing session only set the status; everything else is also reported.
func (s *Span) SetError(err error) {
	if s.inner == nil || err == nil {
		return
	}
	s.inner.Status = StatusFor(err)
	if Reportable(err) {
		CaptureError(s.inner.Context(), err)
	}
}

// Context returns the span's context.
func (s *Span) Context() context.Context {
	if s.inner != nil {
		return s.inner.Context()
	}
	return context.Background()
}

// StartSpan starts a child of the span in ctx, or a new transaction when
// ctx carries none.
func StartSpan(ctx context.Context, name string, attrs SpanAttributes) (context.Context, *Span) {
	var span *sentry.Span
	if parent := sentry.SpanFromContext(ctx); parent != nil {
		span = parent.StartChild(name)
	} else {
		span = sentry.StartSpan(ctx, name, sentry.WithTransactionName(name))
	}
	attrs.apply(span)
	return span.Context(), &Span{inner: span}
}

// StartTransaction starts a root span on a fresh hub, for work that does not
// originate from an HTTP request.
func StartTransaction(ctx context.Context, name, op string) (context.Context, *Span) {
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub().Clone()
		ctx = sentry.SetHubOnContext(ctx, hub)
	}
	span := sentry.StartTransaction(ctx, name, sentry.WithOpName(op), sentry.WithTransactionSource(sentry.SourceTask))
	return span.Context(), &Span{inner: span}
}

// CaptureError reports err on the hub in ctx, or the global hub.
func CaptureError(ctx context.Context, err error) {
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.CaptureException(err)
		return
	}
	sentry.CaptureException(err)
}

// StatusFor maps an error to a span status.
func StatusFor(err error) sentry.SpanStatus {
	switch {
	case err == nil:
		return sentry.SpanStatusOK
	case errors.Is(err, context.Canceled):
		return sentry.SpanStatusCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return sentry.SpanStatusDeadlineExceeded
	case domain.IsCode(err, domain.ErrCodeValidation), domain.IsCode(err, domain.ErrCodeUnsupportedInput):
		return sentry.SpanStatusInvalidArgument
	case domain.IsCode(err, domain.ErrCodeNotFound):
		return sentry.SpanStatusNotFound
	case domain.IsCode(err, domain.ErrCodeUnauthorized):
		return sentry.SpanStatusUnauthenticated
	case domain.IsCode(err, domain.ErrCodeConfiguration):
		return sentry.SpanStatusFailedPrecondition
	case domain.IsCode(err, domain.ErrCodeTransient):
		return sentry.SpanStatusUnavailable
	}
	return sentry.SpanStatusInternalError
}

// Reportable reports whether err points at a server-side fault worth an event.
func Reportable(err error) bool {
	switch StatusFor(err) {
	case sentry.SpanStatusOK,
		sentry.SpanStatusCanceled,
		sentry.SpanStatusInvalidArgument,
		sentry.SpanStatusNotFound,
		sentry.SpanStatusUnauthenticated:
		return false
	}
	return true
}

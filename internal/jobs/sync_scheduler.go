package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/cloo-solutions/ragsync/internal/config"
	"github.com/cloo-solutions/ragsync/internal/domain"
	"github.com/cloo-solutions/ragsync/internal/service"
)

// Syncer runs one folder reconciliation.
type Syncer interface {
	Sync(ctx context.Context, src service.DocumentSource, input service.SyncInput) (*domain.SyncSummary, error)
}

// SyncScheduler syncs every configured target in turn.
type SyncScheduler struct {
	syncer  Syncer
	sources map[string]service.DocumentSource
	targets []config.SyncTarget
}

// NewSyncScheduler creates a new SyncScheduler instance. sources is keyed by
// config.SourceDrive or config.SourceS3.
func NewSyncScheduler(syncer Syncer, sources map[string]service.DocumentSource, targets []config.SyncTarget) *SyncScheduler {
	return &SyncScheduler{syncer: syncer, sources: sources, targets: targets}
}

// ProcessJobs implements the JobProcessor interface. A failing target does
// not stop the others; all failures are returned joined.
func (s *SyncScheduler) ProcessJobs(ctx context.Context) error {
	var errs []error
	for _, t := range s.targets {
		if err := ctx.Err(); err != nil {
			return err
		}
		summary, err := s.runTarget(ctx, t)
		if err != nil {
			log.Printf("sync: target %s failed: %v", t.Name, err)
			errs = append(errs, fmt.Errorf("target %s: %w", t.Name, err))
			continue
		}
		log.Printf("sync: target %s: %d synced, %d skipped, %d unsupported of %d files",
			t.Name, summary.SyncedCount, summary.SkippedCount, summary.UnsupportedCount, summary.TotalFiles)
	}
	return errors.Join(errs...)
}

func (s *SyncScheduler) runTarget(ctx context.Context, t config.SyncTarget) (*domain.SyncSummary, error) {
	src, ok := s.sources[t.Source]
	if !ok || src == nil {
		return nil, domain.ErrSourceNotConfigured.WithCause(fmt.Errorf("no %s source", t.Source))
	}
	return s.syncer.Sync(ctx, src, service.SyncInput{
		FolderID:  t.FolderID,
		TargetID:  t.TargetID,
		Namespace: t.Namespace,
	})
}

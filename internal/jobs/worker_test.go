package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cloo-solutions/ragsync/internal/config"
	"github.com/cloo-solutions/ragsync/internal/domain"
	"github.com/cloo-solutions/ragsync/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockJobProcessor is a mock implementation of JobProcessor
type MockJobProcessor struct {
	mock.Mock
}

func (m *MockJobProcessor) ProcessJobs(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockSweepStore is a mock implementation of SessionSweepStore
type MockSweepStore struct {
	mock.Mock
}

func (m *MockSweepStore) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	args := m.Called(ctx, cutoff)
	return args.Int(0), args.Error(1)
}

// MockSyncer is a mock implementation of Syncer
type MockSyncer struct {
	mock.Mock
}

func (m *MockSyncer) Sync(ctx context.Context, src service.DocumentSource, input service.SyncInput) (*domain.SyncSummary, error) {
	args := m.Called(ctx, src, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SyncSummary), args.Error(1)
}

type nopSource struct{ name string }

func (nopSource) ListChildren(ctx context.Context, folderID string) ([]domain.Document, error) {
	return nil, nil
}

func (nopSource) Download(ctx context.Context, doc domain.Document) ([]byte, string, error) {
	return nil, "", nil
}

func TestWorker_StartStop(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(nil)

	worker := NewWorker("test", mockProcessor, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(250 * time.Millisecond)

	worker.Stop()
	wg.Wait()

	mockProcessor.AssertCalled(t, "ProcessJobs", mock.Anything)
}

func TestWorker_ContextCancellation(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(errors.New("boom"))

	worker := NewWorker("test", mockProcessor, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(150 * time.Millisecond)
	cancel()
	wg.Wait()

	// errors are logged, not fatal
	mockProcessor.AssertCalled(t, "ProcessJobs", mock.Anything)
}

func TestWorker_RunAtStart(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	called := make(chan struct{}, 1)
	mockProcessor.On("ProcessJobs", mock.Anything).Run(func(mock.Arguments) {
		select {
		case called <- struct{}{}:
		default:
		}
	}).Return(nil)

	worker := NewWorker("test", mockProcessor, time.Hour).RunAtStart()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go worker.Start(ctx)

	select {
	case <-called:
	case <-time.After(2 * time.Second):
		t.Fatal("processor was not run at start")
	}
	worker.Stop()
}

func TestSessionSweeper_UsesTTLCutoff(t *testing.T) {
	store := new(MockSweepStore)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.On("Sweep", mock.Anything, now.Add(-2*time.Hour)).Return(3, nil).Once()

	sweeper := NewSessionSweeper(store, 2*time.Hour)
	sweeper.now = func() time.Time { return now }

	require.NoError(t, sweeper.ProcessJobs(context.Background()))
	store.AssertExpectations(t)
}

func TestSessionSweeper_Errors(t *testing.T) {
	store := new(MockSweepStore)
	store.On("Sweep", mock.Anything, mock.Anything).Return(0, errors.New("db down"))

	err := NewSessionSweeper(store, time.Hour).ProcessJobs(context.Background())
	assert.ErrorContains(t, err, "db down")
}

func TestSessionSweeper_DisabledWithoutTTL(t *testing.T) {
	store := new(MockSweepStore)
	require.NoError(t, NewSessionSweeper(store, 0).ProcessJobs(context.Background()))
	store.AssertNotCalled(t, "Sweep", mock.Anything, mock.Anything)
}

func TestSyncScheduler_RunsEveryTarget(t *testing.T) {
	drive := nopSource{"drive"}
	bucket := nopSource{"s3"}
	syncer := new(MockSyncer)

	syncer.On("Sync", mock.Anything, drive, service.SyncInput{FolderID: "f1", TargetID: "m1"}).
		Return(nil, errors.New("listing failed")).Once()
	syncer.On("Sync", mock.Anything, bucket, service.SyncInput{FolderID: "docs/", TargetID: "m2", Namespace: "ns"}).
		Return(&domain.SyncSummary{Success: true, SyncedCount: 2}, nil).Once()

	scheduler := NewSyncScheduler(syncer,
		map[string]service.DocumentSource{config.SourceDrive: drive, config.SourceS3: bucket},
		[]config.SyncTarget{
			{Name: "a", Source: config.SourceDrive, FolderID: "f1", TargetID: "m1"},
			{Name: "b", Source: config.SourceS3, FolderID: "docs/", TargetID: "m2", Namespace: "ns"},
		})

	err := scheduler.ProcessJobs(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "target a")
	assert.NotContains(t, err.Error(), "target b")
	syncer.AssertExpectations(t)
}

func TestSyncScheduler_MissingSource(t *testing.T) {
	syncer := new(MockSyncer)
	scheduler := NewSyncScheduler(syncer, nil, []config.SyncTarget{
		{Name: "a", Source: config.SourceS3, TargetID: "m1"},
	})

	err := scheduler.ProcessJobs(context.Background())
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeConfiguration))
	syncer.AssertNotCalled(t, "Sync", mock.Anything, mock.Anything, mock.Anything)
}

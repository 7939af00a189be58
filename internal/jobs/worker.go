package jobs

import (
	"context"
	"log"
	"time"

	"github.com/cloo-solutions/ragsync/internal/telemetry"
)

// JobProcessor defines the interface for processing jobs
type JobProcessor interface {
	ProcessJobs(ctx context.Context) error
}

// Worker runs a JobProcessor on a fixed interval
type Worker struct {
	name         string
	processor    JobProcessor
	pollInterval time.Duration
	runAtStart   bool
	stopChan     chan struct{}
	doneChan     chan struct{}
}

// NewWorker creates a new Worker instance
func NewWorker(name string, processor JobProcessor, pollInterval time.Duration) *Worker {
	return &Worker{
		name:         name,
		processor:    processor,
		pollInterval: pollInterval,
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
}

// RunAtStart makes the worker process once before the first tick.
func (w *Worker) RunAtStart() *Worker {
	w.runAtStart = true
	return w
}

// Start begins the worker's polling loop
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	defer close(w.doneChan)

	log.Printf("%s: worker started with interval %v", w.name, w.pollInterval)

	if w.runAtStart {
		w.run(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			log.Printf("%s: worker stopped: context cancelled", w.name)
			return
		case <-w.stopChan:
			log.Printf("%s: worker stopped: stop signal received", w.name)
			return
		case <-ticker.C:
			w.run(ctx)
		}
	}
}

// run processes once inside its own transaction, so every run of a
// background job is traced separately.
func (w *Worker) run(ctx context.Context) {
	ctx, span := telemetry.StartTransaction(ctx, "job "+w.name, telemetry.OpJob)
	defer span.End()

	start := time.Now()
	if err := w.processor.ProcessJobs(ctx); err != nil {
		span.SetError(err)
		log.Printf("%s: run failed after %v: %v", w.name, time.Since(start).Round(time.Millisecond), err)
	}
}

// Stop gracefully stops the worker
func (w *Worker) Stop() {
	close(w.stopChan)
	<-w.doneChan
	log.Printf("%s: worker shutdown complete", w.name)
}

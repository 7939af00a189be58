package jobs

import (
	"context"
	"fmt"
	"log"
	"time"
)

// SessionSweepStore drops sessions idle since before a cutoff.
type SessionSweepStore interface {
	Sweep(ctx context.Context, cutoff time.Time) (int, error)
}

// SessionSweeper expires idle chat sessions.
type SessionSweeper struct {
	store SessionSweepStore
	ttl   time.Duration
	now   func() time.Time
}

// NewSessionSweeper creates a new SessionSweeper instance
func NewSessionSweeper(store SessionSweepStore, ttl time.Duration) *SessionSweeper {
	return &SessionSweeper{store: store, ttl: ttl, now: time.Now}
}

// ProcessJobs implements the JobProcessor interface
func (s *SessionSweeper) ProcessJobs(ctx context.Context) error {
	if s.ttl <= 0 {
		return nil
	}
	n, err := s.store.Sweep(ctx, s.now().Add(-s.ttl))
	if err != nil {
		return fmt.Errorf("failed to sweep sessions: %w", err)
	}
	if n > 0 {
		log.Printf("sessions: swept %d idle sessions", n)
	}
	return nil
}

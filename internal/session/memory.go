// Package session keeps bounded per-session conversation windows in memory.
package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cloo-solutions/ragsync/internal/domain"
	"github.com/cloo-solutions/ragsync/internal/pagination"
)

const (
	// DefaultWindow is the number of messages kept per session.
	DefaultWindow = 20
	// DefaultTTL is how long an idle session survives.
	DefaultTTL = 24 * time.Hour
)

type entry struct {
	messages   []domain.Message
	lastActive time.Time
}

// MemoryStore is a process-local session store. Sessions are independent and
// updates to one session are serialized.
type MemoryStore struct {
	mu       sync.Mutex
	window   int
	ttl      time.Duration
	sessions map[string]*entry
	now      func() time.Time
}

// NewMemoryStore creates a store keeping window messages per session. Sessions
// idle longer than ttl read as empty and are dropped by Sweep. A negative ttl
// disables expiry.
func NewMemoryStore(window int, ttl time.Duration) *MemoryStore {
	if window <= 0 {
		window = DefaultWindow
	}
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		window:   window,
		ttl:      ttl,
		sessions: make(map[string]*entry),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Append adds messages in order, evicting the oldest beyond the window.
func (s *MemoryStore) Append(ctx context.Context, sessionID string, msgs ...domain.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, ok := s.sessions[sessionID]
	if !ok || s.expired(e, now) {
		e = &entry{}
		s.sessions[sessionID] = e
	}
	for _, m := range msgs {
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		e.messages = append(e.messages, m)
	}
	if over := len(e.messages) - s.window; over > 0 {
		kept := make([]domain.Message, s.window)
		copy(kept, e.messages[over:])
		e.messages = kept
	}
	e.lastActive = now
	return nil
}

// History returns a copy of the window, oldest first.
func (s *MemoryStore) History(ctx context.Context, sessionID string) ([]domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[sessionID]
	if !ok {
		return []domain.Message{}, nil
	}
	if s.expired(e, s.now()) {
		delete(s.sessions, sessionID)
		return []domain.Message{}, nil
	}
	out := make([]domain.Message, len(e.messages))
	copy(out, e.messages)
	return out, nil
}

// Clear removes the session and reports whether it existed.
func (s *MemoryStore) Clear(ctx context.Context, sessionID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	return ok, nil
}

// List pages sessions by most recent activity.
func (s *MemoryStore) List(ctx context.Context, cursor string, limit int) (*pagination.PageResult[domain.SessionInfo], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit = pagination.ClampLimit(limit)
	c, err := pagination.DecodeCursor(cursor)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	now := s.now()
	infos := make([]domain.SessionInfo, 0, len(s.sessions))
	for id, e := range s.sessions {
		if s.expired(e, now) || !c.Before(id, e.lastActive) {
			continue
		}
		infos = append(infos, domain.SessionInfo{ID: id, MessageCount: len(e.messages), LastActive: e.lastActive})
	}
	s.mu.Unlock()

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].LastActive.Equal(infos[j].LastActive) {
			return infos[i].ID > infos[j].ID
		}
		return infos[i].LastActive.After(infos[j].LastActive)
	})
	if len(infos) > limit+1 {
		infos = infos[:limit+1]
	}

	return pagination.NewPage(infos, limit,
		func(i domain.SessionInfo) string { return i.ID },
		func(i domain.SessionInfo) time.Time { return i.LastActive },
	), nil
}

// Sweep drops sessions idle since before cutoff.
func (s *MemoryStore) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, e := range s.sessions {
		if e.lastActive.Before(cutoff) {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) expired(e *entry, now time.Time) bool {
	return s.ttl > 0 && now.Sub(e.lastActive) > s.ttl
}

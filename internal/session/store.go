package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/menta2k/overlay-editor/internal/utils"
	"github.com/menta2k/overlay-editor/pkg/editor"
)

// ErrStoreFull is returned by Add when the session limit is reached
var ErrStoreFull = errors.New("too many active sessions")

// Session is one uploaded photo being edited
type Session struct {
	ID        string
	Editor    *editor.Editor
	CreatedAt time.Time

	mu       sync.Mutex
	lastSeen time.Time
}

// New wraps an editor in a session with a fresh id
func New(ed *editor.Editor) *Session {
	now := time.Now()
	return &Session{
		ID:        utils.NewSessionID(),
		Editor:    ed,
		CreatedAt: now,
		lastSeen:  now,
	}
}

// Touch marks the session as used
func (s *Session) Touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

// LastSeen returns when the session was last used
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Store keeps sessions in memory and expires idle ones
type Store struct {
	sessions map[string]*Session
	mu       sync.RWMutex
	ttl      time.Duration
	max      int
}

// NewStore creates a store. max <= 0 means unlimited.
func NewStore(ttl time.Duration, max int) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		max:      max,
	}
}

// Add stores a session, expiring idle sessions first when the store is full
func (s *Store) Add(session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.max > 0 && len(s.sessions) >= s.max {
		s.sweepLocked(time.Now())
		if len(s.sessions) >= s.max {
			return ErrStoreFull
		}
	}
	s.sessions[session.ID] = session
	return nil
}

// Get returns a live session and marks it as used
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.RLock()
	session, exists := s.sessions[id]
	s.mu.RUnlock()

	if !exists {
		return nil, false
	}

	now := time.Now()
	if s.expired(session, now) {
		s.Delete(id)
		return nil, false
	}
	session.Touch(now)
	return session, true
}

// Delete removes a session and reports whether it existed
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists := s.sessions[id]
	delete(s.sessions, id)
	return exists
}

// Len returns the number of stored sessions
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep removes sessions idle for longer than the ttl and returns how many were removed
func (s *Store) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked(now)
}

// Run sweeps every interval until ctx is done. onSweep, if set, receives the removal count.
func (s *Store) Run(ctx context.Context, interval time.Duration, onSweep func(removed int)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			removed := s.Sweep(now)
			if onSweep != nil && removed > 0 {
				onSweep(removed)
			}
		}
	}
}

func (s *Store) sweepLocked(now time.Time) int {
	removed := 0
	for id, session := range s.sessions {
		if s.expired(session, now) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

func (s *Store) expired(session *Session, now time.Time) bool {
	return s.ttl > 0 && now.Sub(session.LastSeen()) > s.ttl
}

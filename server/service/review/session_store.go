package review

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultSessionTTL is how long an abandoned session survives before
	// cleanup removes it.
	DefaultSessionTTL = 24 * time.Hour
	// DefaultSessionCleanupInterval is the interval between cleanup runs.
	DefaultSessionCleanupInterval = 10 * time.Minute
)

type sessionEntry struct {
	session   *StudySession
	expiresAt time.Time
}

// MemorySessionStore is an in-process SessionStore. Sessions are transient by
// design; a restart dropping them only means the user starts a fresh batch.
type MemorySessionStore struct {
	ttl time.Duration

	mu       sync.Mutex
	sessions map[string]*sessionEntry

	stopChan  chan struct{}
	closeOnce sync.Once
}

// NewMemorySessionStore creates a memory session store and starts its cleanup
// goroutine.
func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	s := &MemorySessionStore{
		ttl:      ttl,
		sessions: make(map[string]*sessionEntry),
		stopChan: make(chan struct{}),
	}
	go s.cleanupLoop(DefaultSessionCleanupInterval)
	return s
}

// Get returns the stored session, or nil when the key is unknown or expired.
func (s *MemorySessionStore) Get(_ context.Context, key string) (*StudySession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.sessions[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, nil
	}
	copied := *entry.session
	return &copied, nil
}

// Put stores the session under key, resetting its TTL.
func (s *MemorySessionStore) Put(_ context.Context, key string, session *StudySession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *session
	s.sessions[key] = &sessionEntry{
		session:   &copied,
		expiresAt: time.Now().Add(s.ttl),
	}
	return nil
}

// Update applies fn to the stored session under the store lock, so
// concurrent updates for the same key serialize.
func (s *MemorySessionStore) Update(_ context.Context, key string, fn func(*StudySession) error) (*StudySession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.sessions[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, ErrSessionNotFound
	}
	if err := fn(entry.session); err != nil {
		return nil, err
	}
	entry.expiresAt = time.Now().Add(s.ttl)
	copied := *entry.session
	return &copied, nil
}

// Delete removes the session under key. Deleting an unknown key is a no-op.
func (s *MemorySessionStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, key)
	return nil
}

// Close stops the cleanup goroutine.
func (s *MemorySessionStore) Close() {
	s.closeOnce.Do(func() {
		close(s.stopChan)
	})
}

func (s *MemorySessionStore) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			if removed := s.cleanupExpired(); removed > 0 {
				slog.Info("expired study sessions removed", "count", removed)
			}
		}
	}
}

func (s *MemorySessionStore) cleanupExpired() int {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, entry := range s.sessions {
		if now.After(entry.expiresAt) {
			delete(s.sessions, key)
			removed++
		}
	}
	return removed
}

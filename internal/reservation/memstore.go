package reservation

import (
	"context"
	"sync"
	"time"

	"github.com/lunahq/posada/model"
)

// MemoryStore is the in-process session store. It is the default driver and
// the one tests use.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*model.ReservationSession
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*model.ReservationSession)}
}

// Create implements Store.
func (s *MemoryStore) Create(_ context.Context, session *model.ReservationSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.ID]; exists {
		return model.NewConflictError("session already exists: " + session.ID)
	}
	s.sessions[session.ID] = cloneSession(session)
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id string) (*model.ReservationSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, model.NewSessionNotFoundError("no such session: " + id)
	}
	return cloneSession(session), nil
}

// Update implements Store.
func (s *MemoryStore) Update(_ context.Context, session *model.ReservationSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.sessions[session.ID]
	if !ok {
		return model.NewSessionNotFoundError("no such session: " + session.ID)
	}
	if stored.Version != session.Version {
		return model.NewConflictError("session was modified concurrently")
	}

	next := cloneSession(session)
	next.Version++
	next.UpdatedAt = time.Now().UTC()
	s.sessions[session.ID] = next
	session.Version = next.Version
	session.UpdatedAt = next.UpdatedAt
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return model.NewSessionNotFoundError("no such session: " + id)
	}
	delete(s.sessions, id)
	return nil
}

// PurgeExpired implements Store.
func (s *MemoryStore) PurgeExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	purged := 0
	for id, session := range s.sessions {
		if session.ExpiresAt != nil && session.ExpiresAt.Before(now) {
			delete(s.sessions, id)
			purged++
		}
	}
	return purged, nil
}

// Ping implements Store.
func (s *MemoryStore) Ping(context.Context) error { return nil }

// Close implements Store.
func (s *MemoryStore) Close() {}

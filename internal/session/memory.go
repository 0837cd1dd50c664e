package session

import (
	"context"
	"sync"
	"time"

	apperrors "service-discovery/internal/common/errors"
	"service-discovery/internal/models"
)

type memoryEntry struct {
	session   *models.Session
	expiresAt time.Time
}

// MemoryStore keeps sessions in process. Used for a single instance and in tests.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]memoryEntry
	locks    map[string]time.Time
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]memoryEntry),
		locks:    make(map[string]time.Time),
		now:      time.Now,
	}
}

func (m *MemoryStore) Get(_ context.Context, id string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[id]
	if !ok {
		return nil, apperrors.NewSessionNotFoundError(id)
	}
	if !e.expiresAt.IsZero() && m.now().After(e.expiresAt) {
		delete(m.sessions, id)
		return nil, apperrors.NewSessionNotFoundError(id)
	}
	return e.session.Clone(), nil
}

func (m *MemoryStore) Put(_ context.Context, s *models.Session, ttl time.Duration) error {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = m.now().Add(ttl)
	}
	m.mu.Lock()
	m.sessions[s.ID] = memoryEntry{session: s.Clone(), expiresAt: expiresAt}
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return apperrors.NewSessionNotFoundError(id)
	}
	delete(m.sessions, id)
	return nil
}

// Lock takes the per-session lock. An expired lock is taken over.
func (m *MemoryStore) Lock(_ context.Context, id string, ttl time.Duration) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if until, held := m.locks[id]; held && now.Before(until) {
		return nil, apperrors.NewSessionBusyError(id)
	}
	until := now.Add(ttl)
	m.locks[id] = until

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			if m.locks[id].Equal(until) {
				delete(m.locks, id)
			}
			m.mu.Unlock()
		})
	}, nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

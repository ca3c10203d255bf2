package kv

import (
	"context"
	"sync"
	"time"

	"github.com/trezcool/eskwela/core/attendance"
)

type memoryEntry struct {
	session   attendance.Session
	expiresAt time.Time
}

// memoryCodeStore keeps sessions in process memory, when no redis server is configured.
type memoryCodeStore struct {
	mu       sync.Mutex
	sessions map[string]memoryEntry
	nowFunc  func() time.Time
}

var _ attendance.CodeStore = (*memoryCodeStore)(nil) // interface compliance check

func NewMemoryCodeStore() *memoryCodeStore {
	return &memoryCodeStore{sessions: make(map[string]memoryEntry), nowFunc: time.Now}
}

func (store *memoryCodeStore) SaveSession(_ context.Context, s attendance.Session, ttl time.Duration) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	now := store.nowFunc()
	for code, e := range store.sessions {
		if !now.Before(e.expiresAt) {
			delete(store.sessions, code)
		}
	}
	store.sessions[s.Code] = memoryEntry{session: s, expiresAt: now.Add(ttl)}
	return nil
}

func (store *memoryCodeStore) GetSession(_ context.Context, code string) (attendance.Session, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	e, ok := store.sessions[code]
	if !ok {
		return attendance.Session{}, attendance.ErrSessionNotFound
	}
	if !store.nowFunc().Before(e.expiresAt) {
		delete(store.sessions, code)
		return attendance.Session{}, attendance.ErrSessionNotFound
	}
	return e.session, nil
}

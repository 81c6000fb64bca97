package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/JonMunkholm/stocksync/internal/core"
)

type memoryEntry struct {
	sess      core.ImportSession
	expiresAt time.Time
}

// MemoryStore is a process-local SessionStore.
// Expired entries are dropped lazily on access and on Save.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]*memoryEntry
}

// NewMemoryStore creates an in-memory store.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]*memoryEntry),
	}
}

func (m *MemoryStore) Save(_ context.Context, sess core.ImportSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for id, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, id)
		}
	}

	sess.Applied = false
	m.entries[sess.ID] = &memoryEntry{sess: sess, expiresAt: now.Add(m.ttl)}
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (core.ImportSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.lookup(id)
	if !ok {
		return core.ImportSession{}, fmt.Errorf("session %s: %w", id, core.ErrImportNotFound)
	}
	return e.sess, nil
}

func (m *MemoryStore) MarkApplied(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.lookup(id)
	if !ok {
		return fmt.Errorf("session %s: %w", id, core.ErrImportNotFound)
	}
	if e.sess.Applied {
		return core.ErrImportAlreadyApplied
	}
	e.sess.Applied = true
	return nil
}

// lookup returns a live entry. Caller holds m.mu.
func (m *MemoryStore) lookup(id string) (*memoryEntry, bool) {
	e, ok := m.entries[id]
	if !ok {
		return nil, false
	}
	if m.now().After(e.expiresAt) {
		delete(m.entries, id)
		return nil, false
	}
	return e, true
}

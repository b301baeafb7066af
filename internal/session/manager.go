package session

import (
	"sync"

	"github.com/google/uuid"

	"sansfit/adapters/fitter"
)

// Manager hands out one Store per browser session, keyed by the session
// cookie. Stores are created on first sight of a session ID.
type Manager struct {
	mu     sync.Mutex
	stores map[string]*Store
}

func NewManager() *Manager {
	return &Manager{stores: make(map[string]*Store)}
}

// NewSessionID mints a fresh session identifier.
func (m *Manager) NewSessionID() string {
	return uuid.NewString()
}

// Get returns the store for id, creating and initializing one (with its
// own fitter) on first use.
func (m *Manager) Get(id string) *Store {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.stores[id]; ok {
		return s
	}
	s := NewStore()
	s.SetFitter(fitter.New())
	m.stores[id] = s
	return s
}

// Drop discards a session's store.
func (m *Manager) Drop(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.stores, id)
}

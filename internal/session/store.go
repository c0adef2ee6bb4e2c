package session

import "sync"

// Store provides access to per-user sessions. Implementations must be safe
// for concurrent use by different users; mutating one user's session
// concurrently is prevented by the per-user Locker, not by the store.
type Store interface {
	Get(userID int64) (*Session, bool)
	Upsert(userID int64, s *Session)
}

// CartStore provides access to per-user carts, ordered by insertion.
type CartStore interface {
	Get(userID int64) ([]CartLine, bool)
	Upsert(userID int64, lines []CartLine)
}

type memoryStore struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
}

// NewMemoryStore constructs the in-memory Store used in production; sessions
// live for the lifetime of the process.
func NewMemoryStore() Store {
	return &memoryStore{sessions: make(map[int64]*Session)}
}

func (m *memoryStore) Get(userID int64) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[userID]
	return s, ok
}

func (m *memoryStore) Upsert(userID int64, s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[userID] = s
}

type memoryCartStore struct {
	mu    sync.RWMutex
	carts map[int64][]CartLine
}

// NewMemoryCartStore constructs the in-memory CartStore.
func NewMemoryCartStore() CartStore {
	return &memoryCartStore{carts: make(map[int64][]CartLine)}
}

func (m *memoryCartStore) Get(userID int64) ([]CartLine, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lines, ok := m.carts[userID]
	return lines, ok
}

func (m *memoryCartStore) Upsert(userID int64, lines []CartLine) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[userID] = lines
}

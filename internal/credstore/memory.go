package credstore

import "sync"

// MemoryStore keeps a single bearer token in process memory, shared by
// all requests. The mutex only guards against torn reads; concurrent
// submissions still race on the value and the last write wins, which is
// an accepted property of the process-wide scope.
type MemoryStore struct {
	apiKey string

	mu    sync.Mutex
	token string
}

// Compile-time check to ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a process-wide store carrying the given static
// API key and no bearer token.
func NewMemoryStore(apiKey string) *MemoryStore {
	return &MemoryStore{apiKey: apiKey}
}

// Token returns the current bearer token, or "" if none is held.
func (m *MemoryStore) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

// SetToken replaces the current token. An empty value clears it.
func (m *MemoryStore) SetToken(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
}

// Invalidate clears the stored token.
func (m *MemoryStore) Invalidate() {
	m.SetToken("")
}

// APIKey returns the static API key.
func (m *MemoryStore) APIKey() string { return m.apiKey }

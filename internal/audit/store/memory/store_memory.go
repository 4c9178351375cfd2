package memory

import (
	"context"
	"sync"

	"screenflow/internal/audit"
	id "screenflow/pkg/domain"
)

// InMemoryStore keeps the full chain in a single ordered slice. Suitable
// for tests and single-instance deployments.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries []audit.Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, entry audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *InMemoryStore) ListBySession(_ context.Context, sessionID id.SessionID, skip, limit int) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// newest-first
	var out []audit.Entry
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].SessionID != sessionID {
			continue
		}
		if skip > 0 {
			skip--
			continue
		}
		out = append(out, s.entries[i])
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *InMemoryStore) ListAll(_ context.Context) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Entry{}, s.entries...), nil
}

func (s *InMemoryStore) LastHash(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.entries) == 0 {
		return "", nil
	}
	return s.entries[len(s.entries)-1].EntryHash, nil
}

// Tamper overwrites a stored entry in place. Test hook for chain
// verification; never called by production code.
func (s *InMemoryStore) Tamper(index int, mutate func(*audit.Entry)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index >= 0 && index < len(s.entries) {
		mutate(&s.entries[index])
	}
}

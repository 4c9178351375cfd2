package memory

import (
	"context"
	"sync"

	"screenflow/internal/approval"
	id "screenflow/pkg/domain"
	"screenflow/pkg/platform/sentinel"
)

// InMemoryApprovalStore keeps requests per session with the single-pending
// invariant enforced under the store mutex.
type InMemoryApprovalStore struct {
	mu       sync.RWMutex
	requests map[id.SessionID][]*approval.Request
}

func NewInMemoryApprovalStore() *InMemoryApprovalStore {
	return &InMemoryApprovalStore{requests: make(map[id.SessionID][]*approval.Request)}
}

func (s *InMemoryApprovalStore) CreatePending(_ context.Context, req *approval.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.requests[req.SessionID] {
		if existing.Status == approval.StatusPending {
			return sentinel.ErrConflict
		}
	}
	cp := *req
	s.requests[req.SessionID] = append(s.requests[req.SessionID], &cp)
	return nil
}

func (s *InMemoryApprovalStore) GetPending(_ context.Context, sessionID id.SessionID) (*approval.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, existing := range s.requests[sessionID] {
		if existing.Status == approval.StatusPending {
			cp := *existing
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryApprovalStore) Save(_ context.Context, req *approval.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.requests[req.SessionID] {
		if existing.RequestID == req.RequestID {
			cp := *req
			s.requests[req.SessionID][i] = &cp
			return nil
		}
	}
	return sentinel.ErrNotFound
}

func (s *InMemoryApprovalStore) History(_ context.Context, sessionID id.SessionID) ([]*approval.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.requests[sessionID]
	out := make([]*approval.Request, 0, len(history))
	// newest first
	for i := len(history) - 1; i >= 0; i-- {
		cp := *history[i]
		out = append(out, &cp)
	}
	return out, nil
}

package memory

import (
	"context"
	"sync"

	"screenflow/internal/assignment"
	"screenflow/internal/screening/models"
	id "screenflow/pkg/domain"
)

type key struct {
	session id.SessionID
	step    models.Step
}

// InMemoryAssignmentStore keeps append-only assignment history per step.
// The latest assignment is also denormalized onto the session aggregate
// (StepState.AssignedTo), which is what gets persisted durably.
type InMemoryAssignmentStore struct {
	mu      sync.RWMutex
	history map[key][]assignment.Assignment
}

func NewInMemoryAssignmentStore() *InMemoryAssignmentStore {
	return &InMemoryAssignmentStore{history: make(map[key][]assignment.Assignment)}
}

func (s *InMemoryAssignmentStore) Append(_ context.Context, a assignment.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{session: a.SessionID, step: a.Step}
	s.history[k] = append(s.history[k], a)
	return nil
}

func (s *InMemoryAssignmentStore) Latest(_ context.Context, sessionID id.SessionID, step models.Step) (assignment.Assignment, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.history[key{session: sessionID, step: step}]
	if len(history) == 0 {
		return assignment.Assignment{}, false, nil
	}
	return history[len(history)-1], true, nil
}

func (s *InMemoryAssignmentStore) History(_ context.Context, sessionID id.SessionID, step models.Step) ([]assignment.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]assignment.Assignment{}, s.history[key{session: sessionID, step: step}]...), nil
}

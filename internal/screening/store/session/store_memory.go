package session

import (
	"context"
	"sync"

	"screenflow/internal/screening/models"
	id "screenflow/pkg/domain"
	"screenflow/pkg/platform/sentinel"
)

// Store is the persistent document store boundary for sessions, keyed by
// session id.
type Store interface {
	Create(ctx context.Context, s *models.ScreeningSession) error
	Get(ctx context.Context, sessionID id.SessionID) (*models.ScreeningSession, error)
	Save(ctx context.Context, s *models.ScreeningSession) error
	ListByPatient(ctx context.Context, patientID id.PatientID) ([]*models.ScreeningSession, error)
}

// InMemoryStore keeps session documents in a mutex-guarded map. Documents
// are deep-copied on the way in and out so callers never share state with
// the store.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[id.SessionID]*models.ScreeningSession
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[id.SessionID]*models.ScreeningSession)}
}

func (s *InMemoryStore) Create(_ context.Context, sess *models.ScreeningSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[sess.SessionID]; exists {
		return sentinel.ErrConflict
	}
	s.sessions[sess.SessionID] = sess.Clone()
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, sessionID id.SessionID) (*models.ScreeningSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return sess.Clone(), nil
}

func (s *InMemoryStore) Save(_ context.Context, sess *models.ScreeningSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[sess.SessionID]; !exists {
		return sentinel.ErrNotFound
	}
	s.sessions[sess.SessionID] = sess.Clone()
	return nil
}

func (s *InMemoryStore) ListByPatient(_ context.Context, patientID id.PatientID) ([]*models.ScreeningSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.ScreeningSession
	for _, sess := range s.sessions {
		if sess.PatientID == patientID {
			out = append(out, sess.Clone())
		}
	}
	return out, nil
}

package memory

import (
	"context"
	"sync"
	"time"

	"screenflow/internal/lock"
	"screenflow/internal/screening/models"
	id "screenflow/pkg/domain"
	"screenflow/pkg/platform/sentinel"
)

type key struct {
	session id.SessionID
	step    models.Step
}

// InMemoryLockStore keeps leases in a mutex-guarded map. Expiry is decided
// by the caller-supplied `now`, which lets tests advance simulated time.
type InMemoryLockStore struct {
	mu    sync.Mutex
	locks map[key]lock.StepLock
}

func NewInMemoryLockStore() *InMemoryLockStore {
	return &InMemoryLockStore{locks: make(map[key]lock.StepLock)}
}

func (s *InMemoryLockStore) Acquire(_ context.Context, lease lock.StepLock, now time.Time) (lock.StepLock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{session: lease.SessionID, step: lease.Step}
	if existing, ok := s.locks[k]; ok {
		if existing.Live(now) {
			return existing, sentinel.ErrConflict
		}
		// expired lock is logically absent
		delete(s.locks, k)
	}
	s.locks[k] = lease
	return lease, nil
}

func (s *InMemoryLockStore) Get(_ context.Context, sessionID id.SessionID, step models.Step) (lock.StepLock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.locks[key{session: sessionID, step: step}]
	if !ok {
		return lock.StepLock{}, sentinel.ErrNotFound
	}
	return existing, nil
}

func (s *InMemoryLockStore) Delete(_ context.Context, sessionID id.SessionID, step models.Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, key{session: sessionID, step: step})
	return nil
}

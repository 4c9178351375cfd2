package lock_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"screenflow/internal/lock"
	"screenflow/internal/lock/store/memory"
	"screenflow/internal/screening/models"
	id "screenflow/pkg/domain"
	dErrors "screenflow/pkg/domain-errors"
	"screenflow/pkg/platform/sentinel"
	"screenflow/pkg/requestcontext"
)

type ManagerSuite struct {
	suite.Suite
	manager   *lock.Manager
	sessionID id.SessionID
	alice     id.UserID
	bob       id.UserID
	now       time.Time
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerSuite))
}

func (s *ManagerSuite) SetupTest() {
	manager, err := lock.NewManager(memory.NewInMemoryLockStore())
	s.Require().NoError(err)
	s.manager = manager
	s.sessionID = id.NewSessionID()
	s.alice = id.NewUserID()
	s.bob = id.NewUserID()
	s.now = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
}

func (s *ManagerSuite) ctxAt(at time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), at)
}

func (s *ManagerSuite) TestAcquire() {
	s.Run("grants a fresh lease with the default TTL", func() {
		lease, err := s.manager.Acquire(s.ctxAt(s.now), s.sessionID, models.StepVitals, s.alice)
		s.Require().NoError(err)
		s.Equal(s.alice, lease.LockedBy)
		s.Equal(s.now.Add(lock.DefaultTTL), lease.ExpiresAt)
	})

	s.Run("second actor is refused and told who holds it", func() {
		_, err := s.manager.Acquire(s.ctxAt(s.now.Add(time.Minute)), s.sessionID, models.StepVitals, s.bob)
		s.True(dErrors.HasCode(err, dErrors.CodeLocked))

		var lockedErr *models.AlreadyLockedError
		s.Require().True(errors.As(err, &lockedErr))
		s.Equal(s.alice, lockedErr.Holder)
	})

	s.Run("holder re-acquiring refreshes the expiry", func() {
		later := s.now.Add(10 * time.Minute)
		lease, err := s.manager.Acquire(s.ctxAt(later), s.sessionID, models.StepVitals, s.alice)
		s.Require().NoError(err)
		s.Equal(later.Add(lock.DefaultTTL), lease.ExpiresAt)
	})
}

func (s *ManagerSuite) TestExpiry() {
	_, err := s.manager.Acquire(s.ctxAt(s.now), s.sessionID, models.StepVitals, s.alice)
	s.Require().NoError(err)

	s.Run("just before the TTL the lock still holds", func() {
		almost := s.now.Add(lock.DefaultTTL - time.Second)
		_, err := s.manager.Acquire(s.ctxAt(almost), s.sessionID, models.StepVitals, s.bob)
		s.True(dErrors.HasCode(err, dErrors.CodeLocked))
	})

	s.Run("past the TTL a different actor acquires", func() {
		expired := s.now.Add(lock.DefaultTTL + time.Second)
		lease, err := s.manager.Acquire(s.ctxAt(expired), s.sessionID, models.StepVitals, s.bob)
		s.Require().NoError(err)
		s.Equal(s.bob, lease.LockedBy)
	})
}

func (s *ManagerSuite) TestExpiredLeaseIsReaped() {
	store := memory.NewInMemoryLockStore()
	manager, err := lock.NewManager(store)
	s.Require().NoError(err)

	_, err = manager.Acquire(s.ctxAt(s.now), s.sessionID, models.StepVitals, s.alice)
	s.Require().NoError(err)
	expired := s.now.Add(lock.DefaultTTL + time.Second)

	s.Run("holder sees the stale lease as absent and removes it", func() {
		_, held, err := manager.Holder(s.ctxAt(expired), s.sessionID, models.StepVitals)
		s.Require().NoError(err)
		s.False(held)

		_, err = store.Get(context.Background(), s.sessionID, models.StepVitals)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("releasing a stale lease of another actor is a no-op", func() {
		_, err := manager.Acquire(s.ctxAt(s.now), s.sessionID, models.StepVitals, s.alice)
		s.Require().NoError(err)
		s.NoError(manager.Release(s.ctxAt(expired), s.sessionID, models.StepVitals, s.bob))

		_, err = store.Get(context.Background(), s.sessionID, models.StepVitals)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *ManagerSuite) TestCustomTTL() {
	manager, err := lock.NewManager(memory.NewInMemoryLockStore(), lock.WithTTL(5*time.Minute))
	s.Require().NoError(err)

	lease, err := manager.Acquire(s.ctxAt(s.now), s.sessionID, models.StepVitals, s.alice)
	s.Require().NoError(err)
	s.Equal(s.now.Add(5*time.Minute), lease.ExpiresAt)
}

func (s *ManagerSuite) TestRelease() {
	s.Run("holder releases", func() {
		_, err := s.manager.Acquire(s.ctxAt(s.now), s.sessionID, models.StepVitals, s.alice)
		s.Require().NoError(err)
		s.NoError(s.manager.Release(s.ctxAt(s.now.Add(time.Minute)), s.sessionID, models.StepVitals, s.alice))

		_, held, err := s.manager.Holder(s.ctxAt(s.now.Add(time.Minute)), s.sessionID, models.StepVitals)
		s.Require().NoError(err)
		s.False(held)
	})

	s.Run("non-holder release fails with the holder identity", func() {
		_, err := s.manager.Acquire(s.ctxAt(s.now), s.sessionID, models.StepVitals, s.alice)
		s.Require().NoError(err)

		err = s.manager.Release(s.ctxAt(s.now.Add(time.Minute)), s.sessionID, models.StepVitals, s.bob)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

		var holderErr *models.NotLockHolderError
		s.Require().True(errors.As(err, &holderErr))
		s.Equal(s.alice, holderErr.Holder)
	})

	s.Run("releasing an absent lock is a no-op", func() {
		s.NoError(s.manager.Release(s.ctxAt(s.now), id.NewSessionID(), models.StepVitals, s.alice))
	})

	s.Run("releasing an expired lock is a no-op for anyone", func() {
		expired := s.now.Add(lock.DefaultTTL + time.Minute)
		s.NoError(s.manager.Release(s.ctxAt(expired), s.sessionID, models.StepVitals, s.bob))
	})
}

func (s *ManagerSuite) TestCheckHeldBy() {
	_, err := s.manager.Acquire(s.ctxAt(s.now), s.sessionID, models.StepDiagnosis, s.alice)
	s.Require().NoError(err)
	at := s.ctxAt(s.now.Add(time.Minute))

	s.Run("holder passes", func() {
		s.NoError(s.manager.CheckHeldBy(at, s.sessionID, models.StepDiagnosis, s.alice))
	})

	s.Run("other actor is told the step is locked", func() {
		err := s.manager.CheckHeldBy(at, s.sessionID, models.StepDiagnosis, s.bob)
		s.True(dErrors.HasCode(err, dErrors.CodeLocked))

		var stepErr *models.StepLockedError
		s.Require().True(errors.As(err, &stepErr))
		s.Equal(s.alice, stepErr.Holder)
	})

	s.Run("unlocked steps pass for anyone", func() {
		s.NoError(s.manager.CheckHeldBy(at, s.sessionID, models.StepVitals, s.bob))
	})
}

func (s *ManagerSuite) TestLocksAreStepScoped() {
	_, err := s.manager.Acquire(s.ctxAt(s.now), s.sessionID, models.StepVitals, s.alice)
	s.Require().NoError(err)

	// same step, different session
	lease, err := s.manager.Acquire(s.ctxAt(s.now), id.NewSessionID(), models.StepVitals, s.bob)
	s.Require().NoError(err)
	s.Equal(s.bob, lease.LockedBy)

	// same session, different step
	lease, err = s.manager.Acquire(s.ctxAt(s.now), s.sessionID, models.StepAssessment, s.bob)
	s.Require().NoError(err)
	s.Equal(s.bob, lease.LockedBy)
}

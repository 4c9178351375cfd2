//go:build integration

package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"screenflow/internal/lock"
	lockredis "screenflow/internal/lock/store/redis"
	"screenflow/internal/screening/models"
	id "screenflow/pkg/domain"
	"screenflow/pkg/platform/sentinel"
	"screenflow/pkg/testutil/containers"
)

type RedisLockStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *lockredis.RedisLockStore
}

func TestRedisLockStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisLockStoreSuite))
}

func (s *RedisLockStoreSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.store = lockredis.NewRedisLockStore(s.redis.Client)
}

func (s *RedisLockStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisLockStoreSuite) lease(sessionID id.SessionID, step models.Step, holder id.UserID, ttl time.Duration) lock.StepLock {
	now := time.Now().UTC()
	return lock.StepLock{
		SessionID: sessionID,
		Step:      step,
		LockedBy:  holder,
		LockedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
}

func (s *RedisLockStoreSuite) TestAcquire() {
	ctx := context.Background()
	sessionID := id.NewSessionID()
	holder := id.NewUserID()

	s.Run("fresh acquire succeeds", func() {
		lease := s.lease(sessionID, models.StepVitals, holder, time.Minute)
		got, err := s.store.Acquire(ctx, lease, time.Now())
		s.Require().NoError(err)
		s.Equal(holder, got.LockedBy)
	})

	s.Run("contended acquire reports the current holder", func() {
		other := s.lease(sessionID, models.StepVitals, id.NewUserID(), time.Minute)
		existing, err := s.store.Acquire(ctx, other, time.Now())
		s.ErrorIs(err, sentinel.ErrConflict)
		s.Equal(holder, existing.LockedBy)
	})

	s.Run("steps are independent keys", func() {
		lease := s.lease(sessionID, models.StepAssessment, id.NewUserID(), time.Minute)
		_, err := s.store.Acquire(ctx, lease, time.Now())
		s.NoError(err)
	})
}

func (s *RedisLockStoreSuite) TestServerSideExpiry() {
	ctx := context.Background()
	sessionID := id.NewSessionID()

	lease := s.lease(sessionID, models.StepVitals, id.NewUserID(), time.Second)
	_, err := s.store.Acquire(ctx, lease, time.Now())
	s.Require().NoError(err)

	// the key vanishes when the TTL lapses; no reaper needed
	s.Eventually(func() bool {
		_, err := s.store.Get(ctx, sessionID, models.StepVitals)
		return err != nil
	}, 5*time.Second, 100*time.Millisecond)

	fresh := s.lease(sessionID, models.StepVitals, id.NewUserID(), time.Minute)
	_, err = s.store.Acquire(ctx, fresh, time.Now())
	s.NoError(err)
}

func (s *RedisLockStoreSuite) TestGetAndDelete() {
	ctx := context.Background()
	sessionID := id.NewSessionID()
	holder := id.NewUserID()

	s.Run("missing lease", func() {
		_, err := s.store.Get(ctx, sessionID, models.StepVitals)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("round trip", func() {
		lease := s.lease(sessionID, models.StepVitals, holder, time.Minute)
		_, err := s.store.Acquire(ctx, lease, time.Now())
		s.Require().NoError(err)

		got, err := s.store.Get(ctx, sessionID, models.StepVitals)
		s.Require().NoError(err)
		s.Equal(holder, got.LockedBy)
		s.Equal(models.StepVitals, got.Step)
	})

	s.Run("delete frees the key", func() {
		s.Require().NoError(s.store.Delete(ctx, sessionID, models.StepVitals))
		_, err := s.store.Get(ctx, sessionID, models.StepVitals)
		s.ErrorIs(err, sentinel.ErrNotFound)

		// delete of an absent key is a no-op
		s.NoError(s.store.Delete(ctx, sessionID, models.StepVitals))
	})
}

package broadcast

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"screenflow/internal/screening/models"
	id "screenflow/pkg/domain"
)

type MemoryBrokerSuite struct {
	suite.Suite
	broker    *MemoryBroker
	sessionID id.SessionID
}

func TestMemoryBrokerSuite(t *testing.T) {
	suite.Run(t, new(MemoryBrokerSuite))
}

func (s *MemoryBrokerSuite) SetupTest() {
	s.broker = NewMemoryBroker()
	s.sessionID = id.NewSessionID()
}

func (s *MemoryBrokerSuite) publish(updateType models.UpdateType) {
	err := s.broker.Publish(context.Background(), models.StateUpdate{
		SessionID:  s.sessionID,
		UpdateType: updateType,
		Timestamp:  time.Now(),
	})
	s.Require().NoError(err)
}

func (s *MemoryBrokerSuite) TestPublishSubscribe() {
	ctx := context.Background()

	ch, cancel, err := s.broker.Subscribe(ctx, s.sessionID)
	s.Require().NoError(err)
	defer cancel()

	s.publish(models.UpdateSessionCreated)
	s.publish(models.UpdateStepUpdated)
	s.publish(models.UpdateStepCompleted)

	// delivery preserves publish order
	s.Equal(models.UpdateSessionCreated, (<-ch).UpdateType)
	s.Equal(models.UpdateStepUpdated, (<-ch).UpdateType)
	s.Equal(models.UpdateStepCompleted, (<-ch).UpdateType)
}

func (s *MemoryBrokerSuite) TestTopicsAreSessionScoped() {
	ctx := context.Background()

	ch, cancel, err := s.broker.Subscribe(ctx, s.sessionID)
	s.Require().NoError(err)
	defer cancel()

	err = s.broker.Publish(ctx, models.StateUpdate{
		SessionID:  id.NewSessionID(),
		UpdateType: models.UpdateStepUpdated,
	})
	s.Require().NoError(err)

	select {
	case update := <-ch:
		s.Failf("unexpected update", "got %s for a different session", update.UpdateType)
	case <-time.After(20 * time.Millisecond):
	}
}

func (s *MemoryBrokerSuite) TestFanOut() {
	ctx := context.Background()

	ch1, cancel1, err := s.broker.Subscribe(ctx, s.sessionID)
	s.Require().NoError(err)
	defer cancel1()
	ch2, cancel2, err := s.broker.Subscribe(ctx, s.sessionID)
	s.Require().NoError(err)
	defer cancel2()

	s.publish(models.UpdateUserJoined)

	s.Equal(models.UpdateUserJoined, (<-ch1).UpdateType)
	s.Equal(models.UpdateUserJoined, (<-ch2).UpdateType)
}

func (s *MemoryBrokerSuite) TestSlowSubscriberDoesNotBlockWriter() {
	ctx := context.Background()

	ch, cancel, err := s.broker.Subscribe(ctx, s.sessionID)
	s.Require().NoError(err)
	defer cancel()

	// overflow the buffer without draining; Publish must never block
	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer+10; i++ {
			s.publish(models.UpdateStepUpdated)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		s.Fail("publish blocked on a slow subscriber")
	}

	// the buffered prefix is still delivered in order
	for i := 0; i < subscriberBuffer; i++ {
		s.Equal(models.UpdateStepUpdated, (<-ch).UpdateType)
	}
}

func (s *MemoryBrokerSuite) TestCancel() {
	ctx := context.Background()

	ch, cancel, err := s.broker.Subscribe(ctx, s.sessionID)
	s.Require().NoError(err)

	cancel()
	// idempotent
	cancel()

	_, open := <-ch
	s.False(open)

	// publishing after cancel reaches nobody and does not panic
	s.publish(models.UpdateStepUpdated)
}

//go:build integration

package notify_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"screenflow/internal/notify"
	id "screenflow/pkg/domain"
	"screenflow/pkg/testutil/containers"
)

const testTopic = "screening.approvals"

type KafkaPublisherSuite struct {
	suite.Suite
	brokers   []string
	publisher *notify.KafkaPublisher
}

func TestKafkaPublisherSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(KafkaPublisherSuite))
}

func (s *KafkaPublisherSuite) SetupSuite() {
	redpanda := containers.NewRedpandaContainer(s.T())
	s.brokers = redpanda.Brokers

	publisher, err := notify.NewKafkaPublisher(s.brokers, testTopic)
	s.Require().NoError(err)
	s.publisher = publisher

	s.Require().NoError(s.publisher.EnsureTopic(context.Background()))
}

func (s *KafkaPublisherSuite) TearDownSuite() {
	if s.publisher != nil {
		s.publisher.Close()
	}
}

func (s *KafkaPublisherSuite) consume(n int) []*kgo.Record {
	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.brokers...),
		kgo.ConsumeTopics(testTopic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	var records []*kgo.Record
	deadline := time.Now().Add(15 * time.Second)
	for len(records) < n && time.Now().Before(deadline) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		fetches := consumer.PollFetches(ctx)
		cancel()
		fetches.EachRecord(func(r *kgo.Record) {
			records = append(records, r)
		})
	}
	s.Require().GreaterOrEqual(len(records), n, "expected %d records", n)
	return records
}

func (s *KafkaPublisherSuite) TestEnsureTopicIsIdempotent() {
	s.NoError(s.publisher.EnsureTopic(context.Background()))
}

func (s *KafkaPublisherSuite) TestPublishRoundTrip() {
	ctx := context.Background()
	sessionID := id.NewSessionID()

	first := notify.Event{
		SessionID:    sessionID,
		RequestID:    id.NewApprovalID(),
		RequestedBy:  id.NewUserID(),
		ApprovalType: "final_signoff",
		Notes:        "all steps done",
		RequestedAt:  time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	}
	second := first
	second.RequestID = id.NewApprovalID()
	second.ApprovalType = "high_risk_discharge"
	second.RequiresSecondApproval = true

	s.Require().NoError(s.publisher.Publish(ctx, first))
	s.Require().NoError(s.publisher.Publish(ctx, second))

	records := s.consume(2)

	// keyed by session id so a session's notifications stay ordered
	s.Equal(sessionID.String(), string(records[0].Key))
	s.Equal(sessionID.String(), string(records[1].Key))

	var got notify.Event
	s.Require().NoError(json.Unmarshal(records[0].Value, &got))
	s.Equal(first.RequestID, got.RequestID)
	s.Equal("final_signoff", got.ApprovalType)
	s.True(first.RequestedAt.Equal(got.RequestedAt))

	s.Require().NoError(json.Unmarshal(records[1].Value, &got))
	s.Equal(second.RequestID, got.RequestID)
	s.True(got.RequiresSecondApproval)
}

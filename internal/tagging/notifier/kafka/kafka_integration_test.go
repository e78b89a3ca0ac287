//go:build integration

package kafka_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"tagd/internal/tagging/models"
	"tagd/internal/tagging/notifier"
	kafkanotifier "tagd/internal/tagging/notifier/kafka"
	"tagd/pkg/testutil/containers"
)

const testTopic = "tagd.events.test"

type KafkaNotifierSuite struct {
	suite.Suite
	redpanda *containers.RedpandaContainer
	notifier *kafkanotifier.Notifier
}

func TestKafkaNotifierSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(KafkaNotifierSuite))
}

func (s *KafkaNotifierSuite) SetupSuite() {
	ctx := context.Background()

	mgr := containers.GetManager()
	s.redpanda = mgr.GetRedpanda(s.T())
	s.Require().NoError(s.redpanda.EnsureTopic(ctx, testTopic))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	n, err := kafkanotifier.New([]string{s.redpanda.Broker}, testTopic, logger)
	s.Require().NoError(err)
	s.notifier = n
}

func (s *KafkaNotifierSuite) TearDownSuite() {
	if s.notifier != nil {
		s.notifier.Close()
	}
}

// TestEventsKeyedBySubject verifies that produced records reach the broker
// keyed by the subject's "type:id" form, preserving per-subject order.
func (s *KafkaNotifierSuite) TestEventsKeyedBySubject() {
	ctx := context.Background()
	subject := models.SubjectRef{Type: "post", ID: "42"}

	added := notifier.Event{
		ID:      uuid.New(),
		Kind:    notifier.KindTagAdded,
		Subject: subject,
		Slug:    "go",
		At:      time.Now().UTC(),
	}
	removed := notifier.Event{
		ID:      uuid.New(),
		Kind:    notifier.KindTagRemoved,
		Subject: subject,
		At:      time.Now().UTC(),
	}

	s.Require().NoError(s.notifier.Notify(ctx, added))
	s.Require().NoError(s.notifier.Notify(ctx, removed))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.redpanda.Broker),
		kgo.ConsumeTopics(testTopic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	pollCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	var records []*kgo.Record
	for len(records) < 2 {
		fetches := consumer.PollFetches(pollCtx)
		s.Require().NoError(fetches.Err())
		records = append(records, fetches.Records()...)
	}

	s.Require().Len(records, 2)
	for _, record := range records {
		s.Equal("post:42", string(record.Key))
	}

	var first, second notifier.Event
	s.Require().NoError(json.Unmarshal(records[0].Value, &first))
	s.Require().NoError(json.Unmarshal(records[1].Value, &second))
	s.Equal(notifier.KindTagAdded, first.Kind)
	s.Equal("go", first.Slug)
	s.Equal(notifier.KindTagRemoved, second.Kind)
}

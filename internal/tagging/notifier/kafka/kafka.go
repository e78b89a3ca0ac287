// Package kafka produces tagging events to a Kafka topic via franz-go.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"tagd/internal/tagging/notifier"
)

// Notifier publishes events asynchronously. The record key is the subject's
// "type:id" form, so one subject's events land in one partition and keep
// their order.
type Notifier struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

var _ notifier.Notifier = (*Notifier)(nil)

// New connects to the given brokers. The topic must exist or the cluster
// must allow auto-creation.
func New(brokers []string, topic string, logger *slog.Logger) (*Notifier, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerLinger(5*time.Millisecond),
	)
	if err != nil {
		return nil, fmt.Errorf("connect kafka: %w", err)
	}
	return &Notifier{client: client, topic: topic, logger: logger}, nil
}

// Notify enqueues the event and returns without waiting for the broker.
// Produce errors surface in the promise as logged failures, matching the
// best-effort delivery contract.
func (n *Notifier) Notify(ctx context.Context, event notifier.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode tagging event: %w", err)
	}

	record := &kgo.Record{
		Key:   []byte(event.Subject.Key()),
		Value: payload,
	}
	n.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			n.logger.Error("produce tagging event failed",
				"topic", n.topic,
				"kind", string(event.Kind),
				"subject", event.Subject.Key(),
				"error", err,
			)
		}
	})
	return nil
}

// Close flushes buffered records and releases the client.
func (n *Notifier) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = n.client.Flush(ctx)
	n.client.Close()
}

// Package redis publishes tagging events on a Redis pub/sub channel.
package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"tagd/internal/tagging/notifier"
)

// Notifier publishes each event as one JSON message. Redis pub/sub has no
// persistence, so subscribers only see events published while connected;
// that is acceptable under the best-effort delivery contract.
type Notifier struct {
	client  *redis.Client
	channel string
}

var _ notifier.Notifier = (*Notifier)(nil)

func New(client *redis.Client, channel string) *Notifier {
	return &Notifier{client: client, channel: channel}
}

func (n *Notifier) Notify(ctx context.Context, event notifier.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode tagging event: %w", err)
	}
	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish tagging event: %w", err)
	}
	return nil
}

package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the pub/sub channel notices are published on.
const DefaultChannel = "warden:notices"

// Notice is the JSON message published for each notification.
type Notice struct {
	RecipientID string    `json:"recipient_id"`
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	ResourceID  string    `json:"resource_id,omitempty"`
	SentAt      time.Time `json:"sent_at"`
}

// RedisPublisher publishes notices on a Redis channel. Delivery is
// fire-and-forget; players that are offline read the inbox instead.
type RedisPublisher struct {
	client  *redis.Client
	channel string
	now     func() time.Time
}

var _ Sender = (*RedisPublisher)(nil)

// NewRedisPublisher creates a publisher. An empty channel uses DefaultChannel.
func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{client: client, channel: channel, now: time.Now}
}

// Channel returns the channel notices are published on.
func (p *RedisPublisher) Channel() string {
	return p.channel
}

// Send publishes one notice.
func (p *RedisPublisher) Send(ctx context.Context, params Params) error {
	if err := validateParams(params); err != nil {
		return fmt.Errorf("notification params invalid: %w", err)
	}
	data, err := json.Marshal(Notice{
		RecipientID: params.RecipientID,
		Type:        params.Type,
		Title:       params.Title,
		Message:     params.Message,
		ResourceID:  params.ResourceID,
		SentAt:      p.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal notice: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("publish notice to %s: %w", p.channel, err)
	}
	return nil
}

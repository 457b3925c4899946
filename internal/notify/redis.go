package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/roach88/registrar/internal/model"
)

// DefaultChannel is the pub/sub channel risk alerts are published on.
const DefaultChannel = "registrar:risk-alerts"

// Publisher is the subset of *redis.Client the RedisNotifier needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisNotifier publishes alerts as JSON on a Redis channel.
type RedisNotifier struct {
	pub     Publisher
	channel string
}

// NewRedisNotifier creates a RedisNotifier. An empty channel uses
// DefaultChannel.
func NewRedisNotifier(pub Publisher, channel string) *RedisNotifier {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisNotifier{pub: pub, channel: channel}
}

// Channel returns the channel alerts are published on.
func (n *RedisNotifier) Channel() string {
	return n.channel
}

// Notify implements Notifier.
func (n *RedisNotifier) Notify(ctx context.Context, alert model.RiskAlert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal risk alert: %w", err)
	}
	if err := n.pub.Publish(ctx, n.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish risk alert for %s: %w", alert.StudentCode, err)
	}
	return nil
}

// RedisOptions configures NewRedisClient.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient returns a connected Redis client. The connection is
// verified with PING before returning.
func NewRedisClient(ctx context.Context, opts RedisOptions) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}
	return client, nil
}

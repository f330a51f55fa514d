package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cuemby/connect-watcher/pkg/config"
)

// DefaultRedisChannel is the pub/sub channel used when none is configured
const DefaultRedisChannel = "kafka-connect-watcher"

// Publisher is the go-redis surface the channel needs
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Close() error
}

// RedisChannel publishes notifications as JSON envelopes on a pub/sub channel
type RedisChannel struct {
	name    string
	channel string
	client  Publisher
}

// NewRedisChannel creates a channel with its own client. The connection is
// established lazily on first publish.
func NewRedisChannel(name string, cfg config.RedisChannelConfig) *RedisChannel {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     4,
	})
	return newRedisChannel(name, cfg.Channel, client)
}

func newRedisChannel(name, channel string, client Publisher) *RedisChannel {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisChannel{
		name:    config.ChannelRedis + "." + name,
		channel: channel,
		client:  client,
	}
}

// Name implements Channel
func (r *RedisChannel) Name() string {
	return r.name
}

// Send implements Channel
func (r *RedisChannel) Send(ctx context.Context, subject string, messages map[string]string) error {
	payload, err := json.Marshal(newEnvelope(subject, messages))
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish to %s: %w", r.channel, err)
	}
	return nil
}

// Close implements Channel
func (r *RedisChannel) Close() error {
	return r.client.Close()
}

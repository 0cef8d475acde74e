package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ChannelPrefix prefixes the redis pub/sub channel of every session.
const ChannelPrefix = "a11yscan:events:"

// Channel returns the redis channel for a session.
func Channel(sessionID string) string {
	return ChannelPrefix + sessionID
}

// RedisSink publishes events as JSON to redis pub/sub so that an external
// transport layer can relay them.
type RedisSink struct {
	client *redis.Client
}

// NewRedisSink connects to the redis server at url (redis://host:port/db).
func NewRedisSink(ctx context.Context, url string) (*RedisSink, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.WriteTimeout = 5 * time.Second

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisSink{client: client}, nil
}

// WriteEvent publishes e to the session's channel.
func (s *RedisSink) WriteEvent(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := s.client.Publish(ctx, Channel(e.SessionID), data).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", Channel(e.SessionID), err)
	}
	return nil
}

// Close closes the redis connection.
func (s *RedisSink) Close() error {
	return s.client.Close()
}

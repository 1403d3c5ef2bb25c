package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ListPusher is the subset of the redis client used to append to a queue.
type ListPusher interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// RedisPublisher serializes events to JSON and appends them to a Redis list
// so downstream workers can BLPOP them.
type RedisPublisher struct {
	client ListPusher
	queue  string
}

// NewRedisPublisher constructs a publisher writing to queue.
func NewRedisPublisher(client ListPusher, queue string) *RedisPublisher {
	return &RedisPublisher{client: client, queue: queue}
}

// ConnectRedis opens a client for addr and verifies it answers PING.
func ConnectRedis(ctx context.Context, addr string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

// Publish implements Publisher.
func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := p.client.RPush(ctx, p.queue, data).Err(); err != nil {
		return fmt.Errorf("rpush to redis list %q: %w", p.queue, err)
	}
	return nil
}

var _ Publisher = (*RedisPublisher)(nil)

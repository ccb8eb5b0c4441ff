// Package redisq implements queue.Transport over a Redis list: Publish
// RPUSHes a JSON-encoded queue.Message, Subscribe BLPOPs in a loop. It
// trades RabbitMQ's broker semantics for a dependency most deployments
// already run, at the cost of at-most-once delivery per consumer.
package redisq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/evalgo/rangedb/queue"
	"github.com/redis/go-redis/v9"
)

// Config configures a Transport.
type Config struct {
	RedisURL string
	Key      string // list key holding pending forwarded messages
}

// Transport ships queue.Message over a Redis list.
type Transport struct {
	client *redis.Client
	key    string
}

// New parses cfg.RedisURL, pings the server, and returns a ready Transport.
func New(ctx context.Context, cfg Config) (*Transport, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("redisq: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redisq: connect: %w", err)
	}
	key := cfg.Key
	if key == "" {
		key = "rangedb:forward"
	}
	return &Transport{client: client, key: key}, nil
}

// NewWithClient builds a Transport around an already-constructed client,
// letting tests inject a miniredis-backed client without a real dial.
func NewWithClient(client *redis.Client, key string) *Transport {
	if key == "" {
		key = "rangedb:forward"
	}
	return &Transport{client: client, key: key}
}

// Publish implements queue.Transport.
func (t *Transport) Publish(ctx context.Context, msg queue.Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("redisq: marshal message: %w", err)
	}
	return t.client.RPush(ctx, t.key, body).Err()
}

// Subscribe implements queue.Transport, polling with BLPOP until ctx is
// cancelled.
func (t *Transport) Subscribe(ctx context.Context, handler queue.Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		result, err := t.client.BLPop(ctx, time.Second, t.key).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("redisq: blpop: %w", err)
		}
		if len(result) < 2 {
			continue
		}
		var msg queue.Message
		if err := json.Unmarshal([]byte(result[1]), &msg); err != nil {
			continue
		}
		if err := handler(ctx, msg); err != nil {
			// At-most-once: a failed handler does not requeue.
			continue
		}
	}
}

// Close implements queue.Transport.
func (t *Transport) Close() error {
	return t.client.Close()
}

// Depth returns the number of messages currently pending delivery.
func (t *Transport) Depth(ctx context.Context) (int64, error) {
	return t.client.LLen(ctx, t.key).Result()
}

package streaming

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBus republishes a thread's events onto a Redis pub/sub channel,
// letting multiple API instances behind a load balancer consume a run
// produced on a different instance. Mirrors the
// RedisOptions/NewRedisCheckpointStore constructor shape used for the
// checkpoint store, generalized from a key-value store to a pub/sub
// channel.
type RedisBus struct {
	client *redis.Client
	prefix string
}

// RedisBusOptions configures the Redis connection backing a RedisBus.
type RedisBusOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string // channel name prefix, default "smart-agent:stream:"
}

// NewRedisBus connects to Redis and returns a bus ready to publish and
// subscribe to per-thread event channels.
func NewRedisBus(opts RedisBusOptions) *RedisBus {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "smart-agent:stream:"
	}
	return &RedisBus{client: client, prefix: prefix}
}

func (b *RedisBus) channel(threadID string) string {
	return b.prefix + threadID
}

// wireEvent is the JSON envelope published on the wire; Event.Data is
// already a concrete payload type on the producer side, so Publish
// marshals it directly and Subscribe hands callers the raw payload to
// decode into whatever shape they expect for that Type.
type wireEvent struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Publish republishes ev on threadID's channel for cross-instance fan-out.
func (b *RedisBus) Publish(ctx context.Context, threadID string, ev Event) error {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return fmt.Errorf("streaming: marshal redis event: %w", err)
	}
	payload, err := json.Marshal(wireEvent{Type: ev.Type, Data: data})
	if err != nil {
		return fmt.Errorf("streaming: marshal redis envelope: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel(threadID), payload).Err(); err != nil {
		return fmt.Errorf("streaming: publish to redis: %w", err)
	}
	return nil
}

// Subscribe returns the raw pub/sub subscription for threadID;
// callers range over Channel() and json.Unmarshal each message's
// Payload into a wireEvent to recover Type and Data.
func (b *RedisBus) Subscribe(ctx context.Context, threadID string) *redis.PubSub {
	return b.client.Subscribe(ctx, b.channel(threadID))
}

// Close releases the underlying Redis client.
func (b *RedisBus) Close() error {
	return b.client.Close()
}

// pingTimeout bounds the readiness check callers may run before
// relying on the bus.
const pingTimeout = 5 * time.Second

// Ping verifies the Redis connection is reachable.
func (b *RedisBus) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return b.client.Ping(ctx).Err()
}

package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisTransport relays envelopes over a Redis pub/sub channel shared by
// all collaborators in a session.
type RedisTransport struct {
	client  *redis.Client
	channel string

	mu     sync.Mutex
	pubsub *redis.PubSub
}

// NewRedisTransport connects to Redis and verifies the connection.
func NewRedisTransport(redisURL, sessionID string) (*RedisTransport, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisTransport{
		client:  client,
		channel: "tandem:sync:" + sessionID,
	}, nil
}

// NewRedisTransportWithClient wraps an existing Redis client.
func NewRedisTransportWithClient(client *redis.Client, sessionID string) *RedisTransport {
	return &RedisTransport{
		client:  client,
		channel: "tandem:sync:" + sessionID,
	}
}

func (t *RedisTransport) Publish(ctx context.Context, envelope Envelope) error {
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := t.client.Publish(ctx, t.channel, data).Err(); err != nil {
		return fmt.Errorf("publish envelope: %w", err)
	}
	return nil
}

func (t *RedisTransport) Subscribe(ctx context.Context, handler Handler) error {
	t.mu.Lock()
	if t.pubsub != nil {
		t.mu.Unlock()
		return fmt.Errorf("transport already subscribed")
	}
	pubsub := t.client.Subscribe(ctx, t.channel)
	t.pubsub = pubsub
	t.mu.Unlock()

	if _, err := pubsub.Receive(ctx); err != nil {
		t.mu.Lock()
		t.pubsub = nil
		t.mu.Unlock()
		pubsub.Close()
		return fmt.Errorf("subscribe %s: %w", t.channel, err)
	}

	go func() {
		for message := range pubsub.Channel() {
			var envelope Envelope
			if err := json.Unmarshal([]byte(message.Payload), &envelope); err != nil {
				log.Printf("transport: drop malformed envelope: %v", err)
				continue
			}
			handler(envelope)
		}
	}()
	return nil
}

func (t *RedisTransport) Close() error {
	t.mu.Lock()
	pubsub := t.pubsub
	t.pubsub = nil
	t.mu.Unlock()
	if pubsub != nil {
		if err := pubsub.Close(); err != nil {
			return err
		}
	}
	return t.client.Close()
}

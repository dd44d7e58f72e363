package events

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher forwards records to Redis pub/sub channels named
// "<prefix>:events:<module>".
type RedisPublisher struct {
	client *redis.Client
	prefix string
	logf   func(format string, args ...any)
}

func NewRedisPublisher(client *redis.Client, prefix string) *RedisPublisher {
	if prefix == "" {
		prefix = "signer"
	}
	return &RedisPublisher{client: client, prefix: prefix, logf: log.Printf}
}

func (p *RedisPublisher) Channel(module string) string {
	return p.prefix + ":events:" + module
}

func (p *RedisPublisher) Publish(ctx context.Context, rec Record) {
	payload, err := json.Marshal(rec)
	if err != nil {
		p.logf("encode event %s: %v", rec.ID, err)
		return
	}
	if err := p.client.Publish(ctx, p.Channel(rec.Module), payload).Err(); err != nil {
		p.logf("publish event %s: %v", rec.ID, err)
	}
}

var _ Sink = (*RedisPublisher)(nil)

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/oxygenesis/signing-node/internal/domain"
)

const redisUpdateRetries = 16

var errUpdateContention = errors.New("counter update retries exhausted")

// RedisStore keeps counter state as JSON values and updates them with
// WATCH/MULTI optimistic transactions.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// RedisConfig for creating a Redis store
type RedisConfig struct {
	Addr     string // Redis address (e.g., "localhost:6379")
	Password string // Redis password (empty for no auth)
	DB       int    // Redis database number
	Prefix   string // Key prefix (default: "signer")
}

func NewRedisStore(cfg RedisConfig) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewRedisStoreWithClient(client, cfg.Prefix)
}

// NewRedisStoreWithClient shares an existing client, e.g. with the event publisher.
func NewRedisStoreWithClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "signer"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Get(ctx context.Context, module string) (domain.CounterState, error) {
	return readRedisState(ctx, s.client, s.key(module))
}

func (s *RedisStore) Update(ctx context.Context, module string, fn func(st *domain.CounterState) error) error {
	key := s.key(module)
	txf := func(tx *redis.Tx) error {
		state, err := readRedisState(ctx, tx, key)
		if err != nil {
			return err
		}
		if err := fn(&state); err != nil {
			return err
		}
		if !state.Initialized {
			return nil
		}
		data, err := json.Marshal(state)
		if err != nil {
			return fmt.Errorf("encode counter state: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}

	for i := 0; i < redisUpdateRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return errUpdateContention
}

// Ping checks if Redis connection is alive
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Clear removes every counter key under the prefix.
func (s *RedisStore) Clear(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, s.prefix+":counter:*", 0).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) key(module string) string {
	return s.prefix + ":counter:" + module
}

type redisGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readRedisState(ctx context.Context, c redisGetter, key string) (domain.CounterState, error) {
	raw, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.CounterState{}, nil
	}
	if err != nil {
		return domain.CounterState{}, fmt.Errorf("read counter state: %w", err)
	}
	var state domain.CounterState
	if err := json.Unmarshal(raw, &state); err != nil {
		return domain.CounterState{}, fmt.Errorf("decode counter state: %w", err)
	}
	return state, nil
}

var _ Repository = (*RedisStore)(nil)

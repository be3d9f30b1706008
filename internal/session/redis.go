package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "askdata:session:"

// RedisStore keeps sessions in Redis so several engine replicas can share them.
// Each session is a hash (created_at, last_access) plus a list of JSON-encoded turns;
// both keys expire after the idle TTL, which every access refreshes.
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisStore wraps an existing client. ttl <= 0 disables expiry.
func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// DialRedis connects and pings, failing fast if the server is unreachable.
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

func metaKey(id string) string  { return redisKeyPrefix + id + ":meta" }
func turnsKey(id string) string { return redisKeyPrefix + id + ":turns" }

// GetOrCreate implements Store. HSETNX makes the creation timestamp single-writer.
func (s *RedisStore) GetOrCreate(ctx context.Context, id string) (Session, error) {
	if id == "" {
		return Session{}, ErrEmptyID
	}
	now := time.Now().UTC()
	stamp := now.Format(time.RFC3339Nano)

	pipe := s.client.TxPipeline()
	pipe.HSetNX(ctx, metaKey(id), "created_at", stamp)
	pipe.HSet(ctx, metaKey(id), "last_access", stamp)
	created := pipe.HGet(ctx, metaKey(id), "created_at")
	raw := pipe.LRange(ctx, turnsKey(id), 0, -1)
	s.expire(ctx, pipe, id)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return Session{}, fmt.Errorf("redis get session %s: %w", id, err)
	}

	createdAt, err := time.Parse(time.RFC3339Nano, created.Val())
	if err != nil {
		createdAt = now
	}
	turns, err := decodeTurns(raw.Val())
	if err != nil {
		return Session{}, fmt.Errorf("decode session %s: %w", id, err)
	}
	return Session{ID: id, CreatedAt: createdAt, LastAccess: now, Turns: turns}, nil
}

// Append implements Store. All turns are pushed in one MULTI/EXEC.
func (s *RedisStore) Append(ctx context.Context, id string, turns ...Turn) error {
	if id == "" {
		return ErrEmptyID
	}
	if len(turns) == 0 {
		return nil
	}
	values, err := encodeTurns(turns)
	if err != nil {
		return err
	}
	stamp := time.Now().UTC().Format(time.RFC3339Nano)

	pipe := s.client.TxPipeline()
	pipe.HSetNX(ctx, metaKey(id), "created_at", stamp)
	pipe.HSet(ctx, metaKey(id), "last_access", stamp)
	pipe.RPush(ctx, turnsKey(id), values...)
	s.expire(ctx, pipe, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis append session %s: %w", id, err)
	}
	return nil
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) expire(ctx context.Context, pipe redis.Pipeliner, id string) {
	if s.ttl <= 0 {
		return
	}
	pipe.Expire(ctx, metaKey(id), s.ttl)
	pipe.Expire(ctx, turnsKey(id), s.ttl)
}

func encodeTurns(turns []Turn) ([]any, error) {
	out := make([]any, 0, len(turns))
	for _, t := range turns {
		b, err := json.Marshal(t)
		if err != nil {
			return nil, fmt.Errorf("encode turn: %w", err)
		}
		out = append(out, string(b))
	}
	return out, nil
}

func decodeTurns(raw []string) ([]Turn, error) {
	out := make([]Turn, 0, len(raw))
	for _, r := range raw {
		var t Turn
		if err := json.Unmarshal([]byte(r), &t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned by a Store when a key, field or index member is absent.
var ErrNotFound = errors.New("not found")

// Store is the key-value contract the query cache needs from its backing
// store: hash entries with a TTL, usage counters, and an ordered index.
// Implementations must be safe for concurrent use.
type Store interface {
	// Ping checks the store is reachable.
	Ping(ctx context.Context) error

	// Get returns the payload stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set writes the payload with zeroed usage metadata. A ttl <= 0 stores
	// without expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Exists reports whether a payload is stored under key.
	Exists(ctx context.Context, key string) (bool, error)

	// Increment adds one to the integer field of key and returns the new value.
	Increment(ctx context.Context, key, field string) (int64, error)

	// Touch sets field of key to value.
	Touch(ctx context.Context, key, field, value string) error

	// RecordHit atomically increments the hit count of key and sets its
	// last-access field to last. It reports false, writing nothing, when no
	// payload is stored under key.
	RecordHit(ctx context.Context, key, last string) (bool, error)

	// Field returns field of key, or ErrNotFound.
	Field(ctx context.Context, key, field string) (string, error)

	// IndexAdd adds key to the ordered index with the given score.
	IndexAdd(ctx context.Context, index, key string, score float64) error

	// IndexRemoveLowest pops the lowest-scored member, or ErrNotFound if the
	// index is empty.
	IndexRemoveLowest(ctx context.Context, index string) (string, error)

	// IndexCount returns the number of members in the index.
	IndexCount(ctx context.Context, index string) (int64, error)

	// Delete removes keys. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error

	// DeleteNamespace removes every key held in the index and the index itself.
	DeleteNamespace(ctx context.Context, index string) error
}

// RedisStore implements Store on Redis. Entries are hashes, indexes are
// sorted sets.
type RedisStore struct {
	redis redis.UniversalClient
}

// NewRedisStore wraps a Redis client.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	if client == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{redis: client}
}

// Ping implements Store.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.redis.HGet(ctx, key, FieldResponse).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis hget: %w", err)
	}
	return data, nil
}

// Set implements Store. The hash fields and expiry are written in one
// MULTI/EXEC transaction.
func (s *RedisStore) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, FieldResponse, data, FieldCount, 0, FieldLast, "")
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set entry: %w", err)
	}
	return nil
}

// Exists implements Store. Only the payload field counts, so a hash left
// with bare usage fields is not reported as an entry.
func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	ok, err := s.redis.HExists(ctx, key, FieldResponse).Result()
	if err != nil {
		return false, fmt.Errorf("redis hexists: %w", err)
	}
	return ok, nil
}

// Increment implements Store.
func (s *RedisStore) Increment(ctx context.Context, key, field string) (int64, error) {
	n, err := s.redis.HIncrBy(ctx, key, field, 1).Result()
	if err != nil {
		return 0, fmt.Errorf("redis hincrby: %w", err)
	}
	return n, nil
}

// Touch implements Store.
func (s *RedisStore) Touch(ctx context.Context, key, field, value string) error {
	if err := s.redis.HSet(ctx, key, field, value).Err(); err != nil {
		return fmt.Errorf("redis hset: %w", err)
	}
	return nil
}

// recordHitScript updates usage fields only while the payload exists, so a
// hit racing an eviction or expiry cannot recreate the key.
var recordHitScript = redis.NewScript(`
if redis.call('HEXISTS', KEYS[1], ARGV[1]) == 0 then
	return 0
end
redis.call('HINCRBY', KEYS[1], ARGV[2], 1)
redis.call('HSET', KEYS[1], ARGV[3], ARGV[4])
return 1
`)

// RecordHit implements Store.
func (s *RedisStore) RecordHit(ctx context.Context, key, last string) (bool, error) {
	n, err := recordHitScript.Run(ctx, s.redis, []string{key}, FieldResponse, FieldCount, FieldLast, last).Int()
	if err != nil {
		return false, fmt.Errorf("redis record hit: %w", err)
	}
	return n == 1, nil
}

// Field implements Store.
func (s *RedisStore) Field(ctx context.Context, key, field string) (string, error) {
	v, err := s.redis.HGet(ctx, key, field).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("redis hget: %w", err)
	}
	return v, nil
}

// IndexAdd implements Store.
func (s *RedisStore) IndexAdd(ctx context.Context, index, key string, score float64) error {
	if err := s.redis.ZAdd(ctx, index, redis.Z{Score: score, Member: key}).Err(); err != nil {
		return fmt.Errorf("redis zadd: %w", err)
	}
	return nil
}

// IndexRemoveLowest implements Store.
func (s *RedisStore) IndexRemoveLowest(ctx context.Context, index string) (string, error) {
	popped, err := s.redis.ZPopMin(ctx, index, 1).Result()
	if err != nil {
		return "", fmt.Errorf("redis zpopmin: %w", err)
	}
	if len(popped) == 0 {
		return "", ErrNotFound
	}
	member, ok := popped[0].Member.(string)
	if !ok {
		return "", fmt.Errorf("redis zpopmin: unexpected member type %T", popped[0].Member)
	}
	return member, nil
}

// IndexCount implements Store.
func (s *RedisStore) IndexCount(ctx context.Context, index string) (int64, error) {
	n, err := s.redis.ZCard(ctx, index).Result()
	if err != nil {
		return 0, fmt.Errorf("redis zcard: %w", err)
	}
	return n, nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// DeleteNamespace implements Store. Members and index are deleted in one
// MULTI/EXEC transaction.
func (s *RedisStore) DeleteNamespace(ctx context.Context, index string) error {
	members, err := s.redis.ZRange(ctx, index, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("redis zrange: %w", err)
	}
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(members) > 0 {
			pipe.Del(ctx, members...)
		}
		pipe.Del(ctx, index)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete namespace: %w", err)
	}
	return nil
}

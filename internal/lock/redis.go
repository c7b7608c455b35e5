package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lua script for atomic release.
// Returns 1 if deleted, 0 if absent, -1 if held by another holder.
var releaseScript = redis.NewScript(`
local holder = redis.call("get", KEYS[1])
if not holder then
	return 0
end
if holder ~= ARGV[1] then
	return -1
end
return redis.call("del", KEYS[1])
`)

// RedisStore implements Store using Redis. Expired records are dropped by
// Redis itself through the key TTL.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStore creates a new Redis-backed store.
func NewRedisStore(client *redis.Client, keyPrefix string) *RedisStore {
	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// lockKey returns the Redis key for a table lock.
func (r *RedisStore) lockKey(tableID string) string {
	return fmt.Sprintf("%stable:%s", r.keyPrefix, tableID)
}

// Acquire takes the lock using SET NX PX with the holder id as value.
func (r *RedisStore) Acquire(ctx context.Context, tableID, holderID string, ttl time.Duration) error {
	if err := validateIDs(tableID, holderID); err != nil {
		return err
	}
	if ttl <= 0 {
		return ErrInvalidArgument
	}

	ok, err := r.client.SetNX(ctx, r.lockKey(tableID), holderID, ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !ok {
		return ErrConflict
	}
	return nil
}

// Release deletes the lock using a Lua script for atomicity.
func (r *RedisStore) Release(ctx context.Context, tableID, holderID string) error {
	if err := validateIDs(tableID, holderID); err != nil {
		return err
	}

	result, err := releaseScript.Run(ctx, r.client, []string{r.lockKey(tableID)}, holderID).Int64()
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}

	switch result {
	case 1:
		return nil
	case -1:
		return ErrForbidden
	default:
		return ErrNotFound
	}
}

// Status reports whether the lock key exists.
func (r *RedisStore) Status(ctx context.Context, tableID string) (bool, error) {
	if err := validateIDs(tableID); err != nil {
		return false, err
	}

	n, err := r.client.Exists(ctx, r.lockKey(tableID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to read lock status: %w", err)
	}
	return n > 0, nil
}

// Ping checks the Redis connection.
func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}
	return nil
}

// Close releases any resources held by the store.
func (r *RedisStore) Close() error {
	return r.client.Close()
}

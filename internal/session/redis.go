package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const maxTxRetries = 5

// RedisStore keeps sessions as JSON documents in Redis. Keys expire after
// the idle TTL, so no sweeper is needed. Turn locks stay process-local.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	locks  *keyedMutex
}

// NewRedisStore wraps client. A zero ttl keeps sessions forever.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		locks:  newKeyedMutex(),
	}
}

func (r *RedisStore) key(id string) string {
	return r.prefix + id
}

// Get returns the user's session, creating it on first contact.
func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	key := r.key(id)
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		s := New()
		raw, err := json.Marshal(s)
		if err != nil {
			return nil, fmt.Errorf("encode session: %w", err)
		}
		if err := r.client.SetNX(ctx, key, raw, r.ttl).Err(); err != nil {
			return nil, fmt.Errorf("create session %s: %w", id, err)
		}
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	return decode(data)
}

// Update applies fn inside an optimistic WATCH/MULTI transaction.
func (r *RedisStore) Update(ctx context.Context, id string, fn func(*Session)) error {
	key := r.key(id)
	txf := func(tx *redis.Tx) error {
		s := New()
		data, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			if s, err = decode(data); err != nil {
				return err
			}
		}

		fn(s)
		s.UpdatedAt = time.Now()
		raw, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("encode session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, r.ttl)
			return nil
		})
		return err
	}

	for attempt := 1; attempt <= maxTxRetries; attempt++ {
		err := r.client.Watch(ctx, txf, key)
		if err == nil {
			return nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return fmt.Errorf("update session %s: %w", id, err)
		}
		slog.Debug("Session update conflicted, retrying", "user_id", id, "attempt", attempt)
	}
	return fmt.Errorf("update session %s: %w", id, redis.TxFailedErr)
}

// Reset clears the flow fields, keeping name and history.
func (r *RedisStore) Reset(ctx context.Context, id string) error {
	return r.Update(ctx, id, (*Session).Reset)
}

// Clear deletes the record.
func (r *RedisStore) Clear(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("clear session %s: %w", id, err)
	}
	return nil
}

// Lock serializes turns for id within this process.
func (r *RedisStore) Lock(ctx context.Context, id string) (func(), error) {
	return r.locks.Lock(ctx, id)
}

// Ping checks connectivity.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (r *RedisStore) Close() error {
	if err := r.client.Close(); err != nil {
		return fmt.Errorf("close redis: %w", err)
	}
	return nil
}

func decode(data []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if s.State == "" {
		s.State = StateIdle
	}
	return &s, nil
}

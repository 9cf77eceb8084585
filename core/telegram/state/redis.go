package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "intakebot:session:"

type redisStore[T any] struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// RedisOption configures a Redis-backed store.
type RedisOption func(*redisOptions)

type redisOptions struct {
	prefix string
	ttl    time.Duration
}

// WithPrefix sets the key prefix for sessions.
func WithPrefix(prefix string) RedisOption {
	return func(o *redisOptions) {
		if prefix != "" {
			o.prefix = prefix
		}
	}
}

// WithTTL expires idle sessions after ttl; zero keeps them until cleared.
func WithTTL(ttl time.Duration) RedisOption {
	return func(o *redisOptions) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// NewRedisStore stores JSON session snapshots in Redis, letting several bot
// replicas share conversation state.
func NewRedisStore[T any](client *redis.Client, opts ...RedisOption) Store[T] {
	o := redisOptions{prefix: defaultRedisPrefix}
	for _, opt := range opts {
		opt(&o)
	}
	return &redisStore[T]{
		client: client,
		prefix: o.prefix,
		ttl:    o.ttl,
		now:    time.Now,
	}
}

func (r *redisStore[T]) key(userID int64) string {
	return r.prefix + strconv.FormatInt(userID, 10)
}

// Start overwrites the session for a user.
func (r *redisStore[T]) Start(ctx context.Context, userID int64, s Session[T]) error {
	return r.Save(ctx, userID, s)
}

// Get loads the session snapshot for a user.
func (r *redisStore[T]) Get(ctx context.Context, userID int64) (Session[T], error) {
	idle := Session[T]{State: StateIdle}
	raw, err := r.client.Get(ctx, r.key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return idle, ErrNoSession
		}
		return idle, fmt.Errorf("state: redis get: %w", err)
	}
	var s Session[T]
	if err := json.Unmarshal(raw, &s); err != nil {
		return idle, fmt.Errorf("state: decode session: %w", err)
	}
	return s, nil
}

// Save writes the session snapshot, refreshing the TTL.
func (r *redisStore[T]) Save(ctx context.Context, userID int64, s Session[T]) error {
	s.UpdatedAt = r.now().UTC()
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("state: encode session: %w", err)
	}
	if err := r.client.Set(ctx, r.key(userID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("state: redis set: %w", err)
	}
	return nil
}

// Clear deletes the session key.
func (r *redisStore[T]) Clear(ctx context.Context, userID int64) error {
	if err := r.client.Del(ctx, r.key(userID)).Err(); err != nil {
		return fmt.Errorf("state: redis del: %w", err)
	}
	return nil
}

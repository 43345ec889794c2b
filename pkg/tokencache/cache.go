package tokencache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultTokenTTL matches the scheduling provider's 15min access-token
// lifetime. Callers pass it explicitly; StoreToken rejects non-positive TTLs
// with ErrInvalidTTL rather than substituting a default.
const DefaultTokenTTL = 15 * time.Minute

const (
	tokenKeyPrefix = "ninsaude:token:"
	queueKeyPrefix = "ninsaude:queue:"
)

var (
	// ErrNotFound is returned when a token or queue item is absent or expired.
	ErrNotFound = errors.New("tokencache: not found")

	// ErrNotInitialized is returned when the cache has no backing client.
	// Store unavailability is surfaced, never silently swallowed: a silent
	// failure here would mask an availability incident.
	ErrNotInitialized = errors.New("tokencache: redis client not initialized")

	// ErrInvalidTTL is returned for non-positive TTLs. TTL semantics differ
	// between stores ("expire immediately" vs "never expire"), so ambiguous
	// values are rejected outright.
	ErrInvalidTTL = errors.New("tokencache: ttl must be positive")
)

// Cache is a Redis-backed store for OAuth tokens and FIFO request queues.
// Token keys and queue keys live in separate namespaces so arbitrary
// SetWithExpiry callers can never collide with them.
type Cache struct {
	client redis.UniversalClient
	log    *zap.Logger
}

func New(client redis.UniversalClient, log *zap.Logger) *Cache {
	return &Cache{
		client: client,
		log:    log.With(zap.String("component", "tokencache")),
	}
}

func tokenKey(tokenType string) string {
	return tokenKeyPrefix + tokenType
}

func queueKey(name string) string {
	return queueKeyPrefix + name
}

// StoreToken upserts a token under ninsaude:token:{type} with the given TTL.
func (c *Cache) StoreToken(ctx context.Context, tokenType, value string, ttl time.Duration) error {
	if c.client == nil {
		return ErrNotInitialized
	}
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	if err := c.client.Set(ctx, tokenKey(tokenType), value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store token %q: %w", tokenType, err)
	}
	return nil
}

// GetToken returns the token value, or ErrNotFound if absent or expired.
func (c *Cache) GetToken(ctx context.Context, tokenType string) (string, error) {
	if c.client == nil {
		return "", ErrNotInitialized
	}
	value, err := c.client.Get(ctx, tokenKey(tokenType)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get token %q: %w", tokenType, err)
	}
	return value, nil
}

// DeleteToken removes a token, reporting whether a key was actually removed.
func (c *Cache) DeleteToken(ctx context.Context, tokenType string) (bool, error) {
	if c.client == nil {
		return false, ErrNotInitialized
	}
	removed, err := c.client.Del(ctx, tokenKey(tokenType)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to delete token %q: %w", tokenType, err)
	}
	return removed > 0, nil
}

// Enqueue appends a JSON-serialized item to the tail of the named queue.
func (c *Cache) Enqueue(ctx context.Context, queueName string, item any) error {
	if c.client == nil {
		return ErrNotInitialized
	}
	payload, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal queue item: %w", err)
	}
	if err := c.client.RPush(ctx, queueKey(queueName), payload).Err(); err != nil {
		return fmt.Errorf("failed to enqueue to %q: %w", queueName, err)
	}
	return nil
}

// Dequeue pops the head of the named queue into dest. Returns ErrNotFound
// when the queue is empty.
func (c *Cache) Dequeue(ctx context.Context, queueName string, dest any) error {
	if c.client == nil {
		return ErrNotInitialized
	}
	payload, err := c.client.LPop(ctx, queueKey(queueName)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to dequeue from %q: %w", queueName, err)
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		return fmt.Errorf("failed to unmarshal queue item: %w", err)
	}
	return nil
}

// QueueLength returns the number of items in the named queue.
func (c *Cache) QueueLength(ctx context.Context, queueName string) (int64, error) {
	if c.client == nil {
		return 0, ErrNotInitialized
	}
	n, err := c.client.LLen(ctx, queueKey(queueName)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get length of %q: %w", queueName, err)
	}
	return n, nil
}

// ClearQueue removes the named queue entirely.
func (c *Cache) ClearQueue(ctx context.Context, queueName string) error {
	if c.client == nil {
		return ErrNotInitialized
	}
	if err := c.client.Del(ctx, queueKey(queueName)).Err(); err != nil {
		return fmt.Errorf("failed to clear queue %q: %w", queueName, err)
	}
	return nil
}

// SetWithExpiry is a generic TTL set outside the token namespace.
func (c *Cache) SetWithExpiry(ctx context.Context, key, value string, ttl time.Duration) error {
	if c.client == nil {
		return ErrNotInitialized
	}
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %q: %w", key, err)
	}
	return nil
}

// Get reads a generic key set through SetWithExpiry.
func (c *Cache) Get(ctx context.Context, key string) (string, error) {
	if c.client == nil {
		return "", ErrNotInitialized
	}
	value, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get %q: %w", key, err)
	}
	return value, nil
}

// HealthCheck reports whether the backing store responds to a liveness probe.
func (c *Cache) HealthCheck(ctx context.Context) bool {
	if c.client == nil {
		return false
	}
	if err := c.client.Ping(ctx).Err(); err != nil {
		c.log.Warn("redis ping failed", zap.Error(err))
		return false
	}
	return true
}

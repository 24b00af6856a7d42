// Package session keeps server-side session state for access tokens.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// revocation is the value stored for each revoked token id.
type revocation struct {
	RevokedAt time.Time `json:"revoked_at"`
}

// RedisRevocationList records revoked token ids in Redis. Entries expire with
// the token they belong to.
type RedisRevocationList struct {
	client *redis.Client
	prefix string
}

// NewRedisRevocationList connects to redisURL and verifies the connection.
func NewRedisRevocationList(redisURL string) (*RedisRevocationList, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisRevocationListWithClient(client), nil
}

// NewRedisRevocationListWithClient wraps an existing Redis client.
func NewRedisRevocationListWithClient(client *redis.Client) *RedisRevocationList {
	return &RedisRevocationList{
		client: client,
		prefix: "revoked:",
	}
}

func (l *RedisRevocationList) key(tokenID string) string {
	return l.prefix + tokenID
}

// Revoke marks tokenID as revoked for ttl.
func (l *RedisRevocationList) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(revocation{RevokedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal revocation: %w", err)
	}
	if err := l.client.Set(ctx, l.key(tokenID), data, ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// IsRevoked reports whether tokenID has been revoked and not yet expired.
func (l *RedisRevocationList) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	err := l.client.Get(ctx, l.key(tokenID)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup revocation: %w", err)
	}
	return true, nil
}

// Close closes the Redis connection
func (l *RedisRevocationList) Close() error {
	return l.client.Close()
}

// Ping checks if Redis is reachable
func (l *RedisRevocationList) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// Package tokencache backs auth.Issuer with a shared provider-token cache
// so multiple processes signing with the same key reuse one bearer string
// instead of each minting its own every 55 minutes.
package tokencache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "apns:provider-token:"

// RedisCache implements auth.TokenCache on top of a shared Redis instance.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache wraps an already-connected *redis.Client. ttl bounds how
// long a cached bearer token is considered fresh by Redis itself
// (belt-and-suspenders alongside auth.Issuer's own regeneration check);
// pass 0 to never expire entries server-side.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

type cachedToken struct {
	Token    string    `json:"token"`
	IssuedAt time.Time `json:"issued_at"`
}

// Get implements auth.TokenCache.
func (c *RedisCache) Get(ctx context.Context, keyID string) (string, time.Time, bool) {
	val, err := c.client.Get(ctx, keyPrefix+keyID).Result()
	if err != nil {
		return "", time.Time{}, false
	}
	tok, issuedAt, err := decodeCachedToken(val)
	if err != nil {
		return "", time.Time{}, false
	}
	return tok, issuedAt, true
}

// Set implements auth.TokenCache.
func (c *RedisCache) Set(ctx context.Context, keyID string, token string, issuedAt time.Time) error {
	val := encodeCachedToken(cachedToken{Token: token, IssuedAt: issuedAt})
	if err := c.client.Set(ctx, keyPrefix+keyID, val, c.ttl).Err(); err != nil {
		return fmt.Errorf("tokencache: set %s: %w", keyID, err)
	}
	return nil
}

func encodeCachedToken(t cachedToken) []byte {
	b, _ := json.Marshal(t)
	return b
}

func decodeCachedToken(val string) (string, time.Time, error) {
	var t cachedToken
	if err := json.Unmarshal([]byte(val), &t); err != nil {
		return "", time.Time{}, err
	}
	return t.Token, t.IssuedAt, nil
}

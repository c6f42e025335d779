package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// regenerateAfter is the token age at which Issuer mints a fresh bearer
// string rather than reusing the cached one (spec: regenerate past 55
// minutes; APNs itself rejects tokens older than 60 minutes).
const regenerateAfter = 55 * time.Minute

// TokenCache optionally backs an Issuer so multiple provider processes
// signing with the same key can share one still-valid bearer token instead
// of each minting its own every 55 minutes. Satisfied by tokencache.RedisCache.
type TokenCache interface {
	Get(ctx context.Context, keyID string) (token string, issuedAt time.Time, ok bool)
	Set(ctx context.Context, keyID string, token string, issuedAt time.Time) error
}

// Issuer mints and caches ES256 provider-token bearer strings for a single
// SigningKey.
type Issuer struct {
	key   SigningKey
	clock Clock
	cache TokenCache

	mu       sync.Mutex
	bearer   string
	issuedAt time.Time
}

// NewIssuer returns an Issuer for key. cache may be nil, in which case the
// Issuer keeps its cached token only in memory.
func NewIssuer(key SigningKey, cache TokenCache) *Issuer {
	return &Issuer{key: key, clock: SystemClock{}, cache: cache}
}

// WithClock overrides the clock used to decide when to regenerate; for
// tests.
func (i *Issuer) WithClock(c Clock) *Issuer {
	i.clock = c
	return i
}

// Bearer returns "bearer <jwt>", regenerating the token if the cached one
// is older than regenerateAfter.
func (i *Issuer) Bearer(ctx context.Context) (string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	now := i.clock.Now()
	if i.bearer != "" && now.Sub(i.issuedAt) <= regenerateAfter {
		return i.bearer, nil
	}

	if i.cache != nil {
		if token, issuedAt, ok := i.cache.Get(ctx, i.key.KeyID); ok && now.Sub(issuedAt) <= regenerateAfter {
			i.bearer, i.issuedAt = token, issuedAt
			return i.bearer, nil
		}
	}

	claims := jwt.MapClaims{
		"iss": i.key.TeamID,
		"iat": now.Unix(),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	tok.Header["kid"] = i.key.KeyID

	signed, err := tok.SignedString(i.key.PrivateKey)
	if err != nil {
		return "", fmt.Errorf("auth: sign provider token: %w", err)
	}

	i.bearer = "bearer " + signed
	i.issuedAt = now

	if i.cache != nil {
		if err := i.cache.Set(ctx, i.key.KeyID, i.bearer, now); err != nil {
			return i.bearer, fmt.Errorf("auth: cache provider token: %w", err)
		}
	}
	return i.bearer, nil
}

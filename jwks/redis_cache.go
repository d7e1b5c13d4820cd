package jwks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/redis/go-redis/v9"
)

// RedisCache implements Cache and Refresher on top of Redis so that several
// service instances share one copy of each key set.
//
// Redis failures are not fatal: the set is fetched from the JWKS endpoint
// and the write back is best effort.
type RedisCache struct {
	client     redis.UniversalClient
	ttl        time.Duration
	keyPrefix  string
	httpClient *http.Client
}

// RedisCacheOption configures a RedisCache.
type RedisCacheOption func(*RedisCache) error

// NewRedisCache creates a RedisCache using client. The client is owned by the
// caller.
//
// Example:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	cache, _ := jwks.NewRedisCache(client, jwks.WithRedisTTL(10*time.Minute))
//	provider, _ := jwks.NewCachingProvider(jwks.WithIssuerURL(issuerURL), jwks.WithCache(cache))
func NewRedisCache(client redis.UniversalClient, opts ...RedisCacheOption) (*RedisCache, error) {
	if client == nil {
		return nil, errors.New("redis client cannot be nil")
	}

	c := &RedisCache{
		client:     client,
		ttl:        15 * time.Minute,
		keyPrefix:  "jwks:",
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("invalid option: %w", err)
		}
	}

	return c, nil
}

// WithRedisTTL sets how long a key set stays in Redis. Defaults to 15 minutes.
func WithRedisTTL(ttl time.Duration) RedisCacheOption {
	return func(c *RedisCache) error {
		if ttl <= 0 {
			return errors.New("redis TTL must be positive")
		}
		c.ttl = ttl
		return nil
	}
}

// WithRedisKeyPrefix sets the prefix of the Redis keys. Defaults to "jwks:".
func WithRedisKeyPrefix(prefix string) RedisCacheOption {
	return func(c *RedisCache) error {
		c.keyPrefix = prefix
		return nil
	}
}

// WithRedisHTTPClient sets the HTTP client used to fetch key sets.
func WithRedisHTTPClient(client *http.Client) RedisCacheOption {
	return func(c *RedisCache) error {
		if client == nil {
			return errors.New("HTTP client cannot be nil")
		}
		c.httpClient = client
		return nil
	}
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, jwksURI string) (jwk.Set, error) {
	data, err := c.client.Get(ctx, c.keyPrefix+jwksURI).Bytes()
	if err == nil {
		if set, parseErr := jwk.Parse(data); parseErr == nil {
			return set, nil
		}
	}

	return c.Refresh(ctx, jwksURI)
}

// Refresh implements Refresher.
func (c *RedisCache) Refresh(ctx context.Context, jwksURI string) (jwk.Set, error) {
	set, _, err := fetchWithCacheControl(ctx, c.httpClient, jwksURI)
	if err != nil {
		return nil, fmt.Errorf("could not fetch JWKS: %w", err)
	}

	if data, err := json.Marshal(set); err == nil {
		_ = c.client.Set(ctx, c.keyPrefix+jwksURI, data, c.ttl).Err()
	}

	return set, nil
}

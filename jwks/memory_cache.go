package jwks

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwk"
)

// maxJWKSSize bounds the JWKS response body.
const maxJWKSSize = 1 * 1024 * 1024

// memoryCache keeps one JWKS per URI in process memory. Entries are refreshed
// in the background once 80% of their lifetime has passed.
type memoryCache struct {
	httpClient *http.Client
	cacheMu    sync.RWMutex
	cache      map[string]*cachedJWKS
	refreshTTL time.Duration
	now        func() time.Time
}

type cachedJWKS struct {
	set        jwk.Set
	expiresAt  time.Time
	refreshAt  time.Time
	refreshing atomic.Bool
	fetchMu    sync.Mutex // one fetch per URI at a time
}

func newMemoryCache(client *http.Client, ttl time.Duration) *memoryCache {
	return &memoryCache{
		httpClient: client,
		cache:      make(map[string]*cachedJWKS),
		refreshTTL: ttl,
		now:        time.Now,
	}
}

// Get implements Cache.
func (c *memoryCache) Get(ctx context.Context, jwksURI string) (jwk.Set, error) {
	now := c.now()

	c.cacheMu.RLock()
	cached, exists := c.cache[jwksURI]
	if exists && now.Before(cached.expiresAt) {
		result := cached.set
		shouldRefresh := now.After(cached.refreshAt)
		c.cacheMu.RUnlock()

		if shouldRefresh && cached.refreshing.CompareAndSwap(false, true) {
			go c.backgroundRefresh(jwksURI, cached)
		}

		return result, nil
	}
	c.cacheMu.RUnlock()

	cached = c.entry(jwksURI)

	cached.fetchMu.Lock()
	defer cached.fetchMu.Unlock()

	// Another goroutine may have fetched while we waited.
	c.cacheMu.RLock()
	isValid := now.Before(cached.expiresAt)
	result := cached.set
	c.cacheMu.RUnlock()

	if isValid {
		return result, nil
	}

	return c.fetchAndStore(ctx, jwksURI, cached)
}

// Refresh implements Refresher. It always fetches, replacing the stored set.
func (c *memoryCache) Refresh(ctx context.Context, jwksURI string) (jwk.Set, error) {
	cached := c.entry(jwksURI)

	cached.fetchMu.Lock()
	defer cached.fetchMu.Unlock()

	return c.fetchAndStore(ctx, jwksURI, cached)
}

func (c *memoryCache) entry(jwksURI string) *cachedJWKS {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()

	cached, exists := c.cache[jwksURI]
	if !exists {
		cached = &cachedJWKS{}
		c.cache[jwksURI] = cached
	}
	return cached
}

func (c *memoryCache) fetchAndStore(ctx context.Context, jwksURI string, cached *cachedJWKS) (jwk.Set, error) {
	set, cacheTTL, err := fetchWithCacheControl(ctx, c.httpClient, jwksURI)
	if err != nil {
		return nil, fmt.Errorf("could not fetch JWKS: %w", err)
	}
	c.store(cached, set, cacheTTL)
	return set, nil
}

func (c *memoryCache) store(cached *cachedJWKS, set jwk.Set, cacheTTL time.Duration) {
	// A longer Cache-Control max-age extends the configured TTL.
	effectiveTTL := c.refreshTTL
	if cacheTTL > 0 && c.refreshTTL < cacheTTL {
		effectiveTTL = cacheTTL
	}

	now := c.now()
	c.cacheMu.Lock()
	cached.set = set
	cached.expiresAt = now.Add(effectiveTTL)
	cached.refreshAt = now.Add(effectiveTTL * 4 / 5)
	c.cacheMu.Unlock()
}

func (c *memoryCache) backgroundRefresh(jwksURI string, cached *cachedJWKS) {
	defer cached.refreshing.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	set, cacheTTL, err := fetchWithCacheControl(ctx, c.httpClient, jwksURI)
	if err != nil {
		return
	}
	c.store(cached, set, cacheTTL)
}

// fetchWithCacheControl fetches a JWKS and returns the max-age advertised by
// the server, or 0 when there is none.
func fetchWithCacheControl(ctx context.Context, client *http.Client, jwksURI string) (jwk.Set, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, jwksURI, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("request returned status %d, expected 200", resp.StatusCode)
	}

	var cacheTTL time.Duration
	if cacheControl := resp.Header.Get("Cache-Control"); cacheControl != "" {
		cacheTTL = parseCacheControl(cacheControl)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxJWKSSize))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read JWKS: %w", err)
	}

	set, err := jwk.Parse(body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to parse JWKS: %w", err)
	}

	return set, cacheTTL, nil
}

// parseCacheControl extracts max-age from a Cache-Control header. Values
// outside one second to seven days are ignored.
func parseCacheControl(cacheControl string) time.Duration {
	const (
		maxAgePrefix = "max-age="
		minTTL       = 1 * time.Second
		maxTTL       = 7 * 24 * time.Hour
	)

	for _, directive := range strings.Split(cacheControl, ",") {
		directive = strings.TrimSpace(directive)
		if !strings.HasPrefix(directive, maxAgePrefix) {
			continue
		}

		seconds, err := strconv.ParseInt(strings.TrimPrefix(directive, maxAgePrefix), 10, 64)
		if err != nil || seconds <= 0 {
			continue
		}

		ttl := time.Duration(seconds) * time.Second
		if ttl < minTTL || ttl > maxTTL {
			return 0
		}
		return ttl
	}

	return 0
}

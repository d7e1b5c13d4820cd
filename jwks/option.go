package jwks

import (
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// ============================================================================
// Provider Options
// ============================================================================

// ProviderOption is how options for the Provider are set up.
type ProviderOption func(*Provider) error

// WithIssuerURL sets the OIDC issuer URL for JWKS discovery.
// This is a required option.
//
// The issuer URL is used to discover the JWKS endpoint via the
// .well-known/openid-configuration endpoint.
func WithIssuerURL(issuerURL *url.URL) ProviderOption {
	return func(p *Provider) error {
		if issuerURL == nil {
			return fmt.Errorf("issuer URL cannot be nil")
		}
		p.IssuerURL = issuerURL
		return nil
	}
}

// WithCustomJWKSURI sets a custom JWKS URI for the Provider.
// When set, the Provider will fetch JWKS directly from this URI,
// skipping the OIDC discovery process (.well-known/openid-configuration).
func WithCustomJWKSURI(jwksURI *url.URL) ProviderOption {
	return func(p *Provider) error {
		if jwksURI == nil {
			return fmt.Errorf("custom JWKS URI cannot be nil")
		}
		p.CustomJWKSURI = jwksURI
		return nil
	}
}

// WithCustomClient sets a custom HTTP client for the Provider.
// If not specified, a default client with 30s timeout is used.
func WithCustomClient(c *http.Client) ProviderOption {
	return func(p *Provider) error {
		if c == nil {
			return fmt.Errorf("HTTP client cannot be nil")
		}
		p.Client = c
		return nil
	}
}

// ============================================================================
// CachingProvider Options
// ============================================================================

// CachingProviderOption is how options for the CachingProvider are set up.
// These options are specific to CachingProvider (e.g., cache configuration).
type CachingProviderOption func(*cachingProviderConfig) error

// cachingProviderConfig holds internal configuration for creating a CachingProvider.
type cachingProviderConfig struct {
	issuerURL          *url.URL
	customJWKSURI      *url.URL
	httpClient         *http.Client
	cacheTTL           time.Duration
	minRefreshInterval time.Duration
	cache              Cache
}

// WithCacheTTL sets the cache refresh interval for the CachingProvider.
// If not specified, defaults to 15 minutes.
//
// The TTL determines the minimum interval between JWKS refreshes.
func WithCacheTTL(ttl time.Duration) CachingProviderOption {
	return func(c *cachingProviderConfig) error {
		if ttl < 0 {
			return fmt.Errorf("cache TTL cannot be negative")
		}
		if ttl == 0 {
			ttl = 15 * time.Minute
		}
		c.cacheTTL = ttl
		return nil
	}
}

// WithMinRefreshInterval sets the minimum time between two refetches caused
// by a token naming a key id missing from the cached set. Defaults to one
// minute.
func WithMinRefreshInterval(interval time.Duration) CachingProviderOption {
	return func(c *cachingProviderConfig) error {
		if interval < 0 {
			return fmt.Errorf("refresh interval cannot be negative")
		}
		c.minRefreshInterval = interval
		return nil
	}
}

// WithCache sets a custom Cache implementation for the CachingProvider.
// Caches that also implement Refresher support refetching on unknown key ids.
//
// Example:
//
//	redisCache, _ := jwks.NewRedisCache(redisClient)
//	provider, err := jwks.NewCachingProvider(
//	    jwks.WithIssuerURL(issuerURL),
//	    jwks.WithCache(customCache),
//	)
func WithCache(cache Cache) CachingProviderOption {
	return func(c *cachingProviderConfig) error {
		if cache == nil {
			return fmt.Errorf("cache cannot be nil")
		}
		c.cache = cache
		return nil
	}
}

// ============================================================================
// MultiIssuerProvider Options
// ============================================================================

// MultiIssuerProviderOption is how options for MultiIssuerProvider are set up.
type MultiIssuerProviderOption func(*multiIssuerConfig) error

// multiIssuerConfig holds internal configuration for creating a MultiIssuerProvider.
type multiIssuerConfig struct {
	allowedIssuers map[string]struct{}
	cacheTTL       time.Duration
	httpClient     *http.Client
	cache          Cache
	maxProviders   int // 0 = unlimited
}

// WithAllowedIssuers sets the issuers whose keys the MultiIssuerProvider may
// fetch. A trailing slash is ignored when matching.
func WithAllowedIssuers(issuers ...string) MultiIssuerProviderOption {
	return func(c *multiIssuerConfig) error {
		if c.allowedIssuers == nil {
			c.allowedIssuers = make(map[string]struct{}, len(issuers))
		}
		for i, issuer := range issuers {
			u, err := url.Parse(issuer)
			if err != nil || u.Scheme == "" || u.Host == "" {
				return fmt.Errorf("issuer at index %d is not an absolute URL: %q", i, issuer)
			}
			c.allowedIssuers[normalizeIssuer(issuer)] = struct{}{}
		}
		return nil
	}
}

// WithMultiIssuerCacheTTL sets the cache refresh interval for all per-issuer providers.
// If not specified, defaults to 15 minutes.
//
// The TTL determines the minimum interval between JWKS refreshes for each issuer.
func WithMultiIssuerCacheTTL(ttl time.Duration) MultiIssuerProviderOption {
	return func(c *multiIssuerConfig) error {
		if ttl < 0 {
			return fmt.Errorf("cache TTL cannot be negative")
		}
		if ttl == 0 {
			ttl = 15 * time.Minute
		}
		c.cacheTTL = ttl
		return nil
	}
}

// WithMultiIssuerHTTPClient sets a custom HTTP client for all per-issuer providers.
// If not specified, a default client with 30s timeout is used.
//
// Example:
//
//	provider, _ := jwks.NewMultiIssuerProvider(
//	    jwks.WithAllowedIssuers(issuer),
//	    jwks.WithMultiIssuerHTTPClient(&http.Client{Timeout: 10 * time.Second}),
//	)
func WithMultiIssuerHTTPClient(client *http.Client) MultiIssuerProviderOption {
	return func(c *multiIssuerConfig) error {
		if client == nil {
			return fmt.Errorf("HTTP client cannot be nil")
		}
		c.httpClient = client
		return nil
	}
}

// WithMultiIssuerCache sets a custom Cache implementation for all per-issuer providers.
// This allows users to provide their own caching strategy (e.g., Redis-backed cache)
// that will be used across all issuers.
//
// A RedisCache lets several service instances share fetched key sets.
func WithMultiIssuerCache(cache Cache) MultiIssuerProviderOption {
	return func(c *multiIssuerConfig) error {
		if cache == nil {
			return fmt.Errorf("cache cannot be nil")
		}
		c.cache = cache
		return nil
	}
}

// WithMaxProviders sets the maximum number of issuer providers to cache in memory.
// When the limit is reached, the least-recently-used provider will be evicted.
// The default is 0, which keeps a provider for every allowed issuer.
func WithMaxProviders(maxProviders int) MultiIssuerProviderOption {
	return func(c *multiIssuerConfig) error {
		if maxProviders < 0 {
			return fmt.Errorf("max providers cannot be negative")
		}
		c.maxProviders = maxProviders
		return nil
	}
}

package jwks

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwk"

	"github.com/certbind/go-mtls-middleware/internal/oidc"
	"github.com/certbind/go-mtls-middleware/validator"
)

// Cache defines the interface for JWKS caching implementations.
// This abstraction allows swapping the underlying cache provider.
type Cache interface {
	// Get retrieves a JWKS from the cache or fetches it if not cached.
	Get(ctx context.Context, jwksURI string) (jwk.Set, error)
}

// Refresher is implemented by caches that can bypass their stored copy.
// CachingProvider uses it when a token names a key id the cached set lacks.
type Refresher interface {
	Refresh(ctx context.Context, jwksURI string) (jwk.Set, error)
}

// Provider fetches the JWKS of an issuer on every call. Most likely you will
// want to use the CachingProvider instead.
type Provider struct {
	IssuerURL     *url.URL // Required.
	CustomJWKSURI *url.URL // Optional.
	Client        *http.Client
}

// NewProvider builds and returns a new *Provider.
// Required options:
//   - WithIssuerURL: OIDC issuer URL for JWKS discovery
//
// Optional options:
//   - WithCustomJWKSURI: Custom JWKS URI (skips discovery)
//   - WithCustomClient: Custom HTTP client
func NewProvider(opts ...ProviderOption) (*Provider, error) {
	p := &Provider{
		Client: &http.Client{Timeout: 30 * time.Second},
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, fmt.Errorf("invalid option: %w", err)
		}
	}

	if p.IssuerURL == nil {
		return nil, fmt.Errorf("issuer URL is required (use WithIssuerURL)")
	}

	return p, nil
}

// ResolveKey implements validator.KeyResolver. The issuer argument is
// ignored; the provider serves the issuer it was built for.
func (p *Provider) ResolveKey(ctx context.Context, keyID, _ string) (any, error) {
	jwksURI, err := p.jwksURI(ctx)
	if err != nil {
		return nil, err
	}

	set, err := jwk.Fetch(ctx, jwksURI, jwk.WithHTTPClient(p.Client))
	if err != nil {
		return nil, fmt.Errorf("could not fetch JWKS: %w", err)
	}

	return lookupKey(set, keyID)
}

func (p *Provider) jwksURI(ctx context.Context) (string, error) {
	if p.CustomJWKSURI != nil {
		return p.CustomJWKSURI.String(), nil
	}

	wkEndpoints, err := oidc.GetWellKnownEndpointsFromIssuerURL(ctx, p.Client, *p.IssuerURL, p.IssuerURL.String())
	if err != nil {
		return "", err
	}
	return wkEndpoints.JWKSURI, nil
}

// lookupKey finds keyID in set. A token without kid is accepted only when
// the set holds a single key.
func lookupKey(set jwk.Set, keyID string) (jwk.Key, error) {
	if keyID == "" {
		if set.Len() == 1 {
			if key, ok := set.Key(0); ok {
				return key, nil
			}
		}
		return nil, fmt.Errorf("%w: token has no kid and the key set holds %d keys", validator.ErrKeyNotFound, set.Len())
	}

	key, ok := set.LookupKeyID(keyID)
	if !ok {
		return nil, fmt.Errorf("%w: kid %q", validator.ErrKeyNotFound, keyID)
	}
	return key, nil
}

// CachingProvider resolves keys from a cached JWKS. When a token names a key
// id the cached set does not contain, the set is refetched at most once per
// refresh interval so rotated keys are picked up without waiting for expiry.
type CachingProvider struct {
	cache              Cache
	issuerURL          *url.URL
	httpClient         *http.Client
	minRefreshInterval time.Duration
	now                func() time.Time

	// JWKS URI discovery - lazily initialized and cached
	jwksURIMu sync.Mutex
	jwksURI   string

	refreshMu   sync.Mutex
	lastRefresh map[string]time.Time
}

// NewCachingProvider builds and returns a new CachingProvider.
//
// Accepts both ProviderOption and CachingProviderOption types, so you can use
// common options like WithIssuerURL, WithCustomJWKSURI, and WithCustomClient
// without any wrapper.
//
// Required options:
//   - WithIssuerURL: OIDC issuer URL for JWKS discovery
//
// Optional options:
//   - WithCacheTTL: Cache refresh interval (default: 15 minutes)
//   - WithMinRefreshInterval: Minimum time between unknown-kid refetches (default: 1 minute)
//   - WithCustomJWKSURI: Custom JWKS URI (skips discovery)
//   - WithCustomClient: Custom HTTP client
//   - WithCache: Custom cache implementation
//
// Example:
//
//	provider, err := jwks.NewCachingProvider(
//	    jwks.WithIssuerURL(issuerURL),
//	    jwks.WithCacheTTL(5*time.Minute),
//	)
func NewCachingProvider(opts ...any) (*CachingProvider, error) {
	config := &cachingProviderConfig{
		httpClient:         &http.Client{Timeout: 30 * time.Second},
		cacheTTL:           15 * time.Minute,
		minRefreshInterval: time.Minute,
	}

	for _, opt := range opts {
		switch v := opt.(type) {
		case CachingProviderOption:
			if err := v(config); err != nil {
				return nil, fmt.Errorf("invalid option: %w", err)
			}
		case ProviderOption:
			tempProvider := &Provider{}
			if err := v(tempProvider); err != nil {
				return nil, fmt.Errorf("invalid option: %w", err)
			}
			if tempProvider.IssuerURL != nil {
				config.issuerURL = tempProvider.IssuerURL
			}
			if tempProvider.CustomJWKSURI != nil {
				config.customJWKSURI = tempProvider.CustomJWKSURI
			}
			if tempProvider.Client != nil {
				config.httpClient = tempProvider.Client
			}
		default:
			return nil, fmt.Errorf("invalid option type: %T (must be ProviderOption or CachingProviderOption)", opt)
		}
	}

	if config.issuerURL == nil {
		return nil, fmt.Errorf("issuer URL is required (use WithIssuerURL)")
	}

	cp := &CachingProvider{
		issuerURL:          config.issuerURL,
		httpClient:         config.httpClient,
		minRefreshInterval: config.minRefreshInterval,
		now:                time.Now,
		lastRefresh:        make(map[string]time.Time),
	}

	if config.customJWKSURI != nil {
		cp.jwksURI = config.customJWKSURI.String()
	}

	if config.cache != nil {
		cp.cache = config.cache
	} else {
		cp.cache = newMemoryCache(config.httpClient, config.cacheTTL)
	}

	return cp, nil
}

// getJWKSURI returns the JWKS URI, discovering it if necessary. A failed
// discovery is retried on the next call.
func (c *CachingProvider) getJWKSURI(ctx context.Context) (string, error) {
	c.jwksURIMu.Lock()
	defer c.jwksURIMu.Unlock()

	if c.jwksURI != "" {
		return c.jwksURI, nil
	}

	wkEndpoints, err := oidc.GetWellKnownEndpointsFromIssuerURL(ctx, c.httpClient, *c.issuerURL, c.issuerURL.String())
	if err != nil {
		return "", fmt.Errorf("failed to discover JWKS URI: %w", err)
	}

	c.jwksURI = wkEndpoints.JWKSURI
	return c.jwksURI, nil
}

// ResolveKey implements validator.KeyResolver.
//
// This method is thread-safe and optimized for concurrent access.
func (c *CachingProvider) ResolveKey(ctx context.Context, keyID, _ string) (any, error) {
	jwksURI, err := c.getJWKSURI(ctx)
	if err != nil {
		return nil, err
	}

	set, err := c.cache.Get(ctx, jwksURI)
	if err != nil {
		return nil, err
	}

	key, err := lookupKey(set, keyID)
	if err == nil {
		return key, nil
	}

	refresher, ok := c.cache.(Refresher)
	if !ok || !c.allowRefresh(jwksURI) {
		return nil, err
	}

	set, refreshErr := refresher.Refresh(ctx, jwksURI)
	if refreshErr != nil {
		return nil, fmt.Errorf("could not refresh JWKS: %w", refreshErr)
	}
	return lookupKey(set, keyID)
}

// allowRefresh rate limits unknown-kid refetches per JWKS URI.
func (c *CachingProvider) allowRefresh(jwksURI string) bool {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	now := c.now()
	if last, ok := c.lastRefresh[jwksURI]; ok && now.Sub(last) < c.minRefreshInterval {
		return false
	}
	c.lastRefresh[jwksURI] = now
	return true
}

package jwks

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// ErrIssuerNotAllowed is returned when a token names an issuer the
// MultiIssuerProvider was not configured for.
var ErrIssuerNotAllowed = errors.New("issuer is not allowed")

// MultiIssuerProvider resolves keys for several issuers. Each configured
// issuer gets its own CachingProvider, created on first use.
//
// The issuer passed to ResolveKey comes from a token whose signature has not
// been verified yet, so only issuers given to WithAllowedIssuers are ever
// contacted.
//
// Example usage:
//
//	provider, _ := jwks.NewMultiIssuerProvider(
//	    jwks.WithAllowedIssuers("https://zts.one.example/zts/v1", "https://zts.two.example/zts/v1"),
//	    jwks.WithMultiIssuerCacheTTL(10*time.Minute),
//	)
//
//	v, _ := validator.New(validator.WithKeyResolver(provider))
type MultiIssuerProvider struct {
	mu           sync.RWMutex
	allowed      map[string]struct{}
	providers    map[string]*providerEntry
	lruList      *list.List
	maxProviders int // 0 = unlimited
	cacheTTL     time.Duration
	httpClient   *http.Client
	cache        Cache
}

type providerEntry struct {
	provider   *CachingProvider
	lruElement *list.Element
	lastUsed   time.Time
	issuer     string
}

// NewMultiIssuerProvider creates a new MultiIssuerProvider.
//
// Required options:
//   - WithAllowedIssuers: issuers whose keys may be fetched
//
// Optional options:
//   - WithMultiIssuerCacheTTL: Cache refresh interval (default: 15 minutes)
//   - WithMultiIssuerHTTPClient: Custom HTTP client (default: 30s timeout)
//   - WithMultiIssuerCache: Custom cache implementation (e.g., RedisCache)
//   - WithMaxProviders: Maximum number of cached providers (default: unlimited)
func NewMultiIssuerProvider(opts ...MultiIssuerProviderOption) (*MultiIssuerProvider, error) {
	config := &multiIssuerConfig{
		cacheTTL:   15 * time.Minute,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}

	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, fmt.Errorf("invalid option: %w", err)
		}
	}

	if len(config.allowedIssuers) == 0 {
		return nil, errors.New("at least one allowed issuer is required (use WithAllowedIssuers)")
	}

	return &MultiIssuerProvider{
		allowed:      config.allowedIssuers,
		providers:    make(map[string]*providerEntry),
		lruList:      list.New(),
		maxProviders: config.maxProviders,
		cacheTTL:     config.cacheTTL,
		httpClient:   config.httpClient,
		cache:        config.cache,
	}, nil
}

// ResolveKey implements validator.KeyResolver by delegating to the provider
// of the given issuer.
//
// This method is thread-safe and optimized for concurrent access.
func (p *MultiIssuerProvider) ResolveKey(ctx context.Context, keyID, issuer string) (any, error) {
	normalized := normalizeIssuer(issuer)
	if _, ok := p.allowed[normalized]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrIssuerNotAllowed, issuer)
	}

	entry, err := p.getOrCreateProvider(normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to get JWKS provider for issuer %q: %w", issuer, err)
	}

	return entry.provider.ResolveKey(ctx, keyID, issuer)
}

// getOrCreateProvider uses double-checked locking and evicts the least
// recently used provider when maxProviders is reached.
func (p *MultiIssuerProvider) getOrCreateProvider(issuer string) (*providerEntry, error) {
	p.mu.RLock()
	entry, exists := p.providers[issuer]
	p.mu.RUnlock()

	if exists {
		p.mu.Lock()
		p.touch(entry)
		p.mu.Unlock()
		return entry, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if entry, exists = p.providers[issuer]; exists {
		p.touch(entry)
		return entry, nil
	}

	if p.maxProviders > 0 && len(p.providers) >= p.maxProviders {
		p.evictLRU()
	}

	issuerURL, err := url.Parse(issuer)
	if err != nil {
		return nil, fmt.Errorf("invalid issuer URL %q: %w", issuer, err)
	}

	opts := []any{
		WithIssuerURL(issuerURL),
		WithCacheTTL(p.cacheTTL),
		WithCustomClient(p.httpClient),
	}
	if p.cache != nil {
		opts = append(opts, WithCache(p.cache))
	}

	provider, err := NewCachingProvider(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider for issuer %q: %w", issuer, err)
	}

	entry = &providerEntry{
		provider: provider,
		lastUsed: time.Now(),
		issuer:   issuer,
	}
	entry.lruElement = p.lruList.PushFront(issuer)
	p.providers[issuer] = entry

	return entry, nil
}

// touch must be called with the write lock held.
func (p *MultiIssuerProvider) touch(entry *providerEntry) {
	entry.lastUsed = time.Now()
	if entry.lruElement != nil {
		p.lruList.MoveToFront(entry.lruElement)
	}
}

// evictLRU must be called with the write lock held.
func (p *MultiIssuerProvider) evictLRU() {
	oldest := p.lruList.Back()
	if oldest == nil {
		return
	}

	issuer := oldest.Value.(string)
	delete(p.providers, issuer)
	p.lruList.Remove(oldest)
}

// ProviderCount returns the number of issuer-specific providers currently cached.
func (p *MultiIssuerProvider) ProviderCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.providers)
}

func normalizeIssuer(issuer string) string {
	return strings.TrimSuffix(issuer, "/")
}

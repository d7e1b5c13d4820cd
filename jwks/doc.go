/*
Package jwks resolves token verification keys from JSON Web Key Sets.

Every provider implements validator.KeyResolver and selects the key by the
token's kid header. A token without kid is accepted only when the set holds
exactly one key. A kid missing from the set yields validator.ErrKeyNotFound.

# Providers

Provider fetches the key set on every call. It discovers the JWKS URI from
the issuer's .well-known/openid-configuration document unless
WithCustomJWKSURI is given.

CachingProvider keeps the key set in a Cache. The default in-memory cache
honours a longer Cache-Control max-age from the JWKS endpoint and refreshes in
the background once 80% of an entry's lifetime has passed. When a token names
a kid the cached set does not contain, the set is refetched at most once per
WithMinRefreshInterval so a rotated signing key is found without waiting for
the entry to expire.

	provider, err := jwks.NewCachingProvider(
	    jwks.WithIssuerURL(issuerURL),
	    jwks.WithCacheTTL(5*time.Minute),
	)

	v, err := validator.New(validator.WithKeyResolver(provider))

MultiIssuerProvider serves several issuers with one CachingProvider each. It
only contacts issuers listed with WithAllowedIssuers, because the issuer it is
asked for comes from a token that has not been verified yet.

# Shared cache

RedisCache stores key sets in Redis so that service instances share them:

	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	cache, err := jwks.NewRedisCache(client, jwks.WithRedisTTL(15*time.Minute))

	provider, err := jwks.NewMultiIssuerProvider(
	    jwks.WithAllowedIssuers(issuers...),
	    jwks.WithMultiIssuerCache(cache),
	)
*/
package jwks

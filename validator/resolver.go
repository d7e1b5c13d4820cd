package validator

import (
	"context"
	"fmt"
)

// KeyResolver maps the key id and issuer of a token to its verification key.
// Implementations may do network I/O; ctx bounds it. The returned key is a
// crypto public key, a []byte secret or a jwk.Key.
//
// Implementations should return an error wrapping ErrKeyNotFound when they
// hold no key for keyID.
type KeyResolver interface {
	ResolveKey(ctx context.Context, keyID, issuer string) (any, error)
}

// KeyResolverFunc adapts an ordinary function to a KeyResolver.
type KeyResolverFunc func(ctx context.Context, keyID, issuer string) (any, error)

// ResolveKey calls f(ctx, keyID, issuer).
func (f KeyResolverFunc) ResolveKey(ctx context.Context, keyID, issuer string) (any, error) {
	return f(ctx, keyID, issuer)
}

// staticKey returns the same key for every token.
type staticKey struct {
	key any
}

func (s staticKey) ResolveKey(context.Context, string, string) (any, error) {
	return s.key, nil
}

// KeyMap resolves keys by key id from a fixed map.
type KeyMap map[string]any

// ResolveKey returns the key registered for keyID.
func (m KeyMap) ResolveKey(_ context.Context, keyID, _ string) (any, error) {
	key, ok := m[keyID]
	if !ok {
		return nil, fmt.Errorf("%w: kid %q", ErrKeyNotFound, keyID)
	}
	return key, nil
}

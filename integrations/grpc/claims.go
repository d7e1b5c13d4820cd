package grpc

import (
	"context"

	"github.com/certbind/go-mtls-middleware/core"
	"github.com/certbind/go-mtls-middleware/token"
)

// GetClaims retrieves claims from the context with type safety using generics.
//
// Example:
//
//	tok, err := mtlsgrpc.GetClaims[*token.AccessToken](ctx)
//	if err != nil {
//	    return nil, status.Error(codes.Internal, "failed to get claims")
//	}
func GetClaims[T any](ctx context.Context) (T, error) {
	return core.GetClaims[T](ctx)
}

// MustGetClaims retrieves claims from the context or panics.
// Use only when you are certain claims exist (e.g., after interceptor has run).
func MustGetClaims[T any](ctx context.Context) T {
	claims, err := core.GetClaims[T](ctx)
	if err != nil {
		panic(err)
	}
	return claims
}

// GetAccessToken returns the validated access token.
func GetAccessToken(ctx context.Context) (*token.AccessToken, error) {
	return core.GetClaims[*token.AccessToken](ctx)
}

// HasClaims checks if claims exist in the context.
func HasClaims(ctx context.Context) bool {
	return core.HasClaims(ctx)
}

// GetBindingContext returns the confirmed certificate binding, or nil for
// bearer tokens.
func GetBindingContext(ctx context.Context) *core.BindingContext {
	return core.GetBindingContext(ctx)
}

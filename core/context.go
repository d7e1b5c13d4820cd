package core

import "context"

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey int

const (
	claimsKey contextKey = iota
	bindingContextKey
)

// GetClaims retrieves claims from the context with type safety using generics.
//
// It returns an error if the claims are not found or if the type assertion fails.
//
// Example usage:
//
//	tok, err := core.GetClaims[*token.AccessToken](ctx)
//	if err != nil {
//	    return err
//	}
func GetClaims[T any](ctx context.Context) (T, error) {
	var zero T

	val := ctx.Value(claimsKey)
	if val == nil {
		return zero, ErrClaimsNotFound
	}

	claims, ok := val.(T)
	if !ok {
		return zero, NewValidationError(
			ErrorCodeClaimsNotFound,
			"claims type assertion failed",
			nil,
		)
	}

	return claims, nil
}

// SetClaims stores claims in the context.
// This is a helper function for adapters to set claims after validation.
func SetClaims(ctx context.Context, claims any) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// HasClaims checks if claims exist in the context without retrieving them.
func HasClaims(ctx context.Context) bool {
	return ctx.Value(claimsKey) != nil
}

// SetBindingContext stores a confirmed certificate binding in the context.
func SetBindingContext(ctx context.Context, bindingCtx *BindingContext) context.Context {
	return context.WithValue(ctx, bindingContextKey, bindingCtx)
}

// GetBindingContext returns the certificate binding stored in the context,
// or nil for bearer tokens.
func GetBindingContext(ctx context.Context) *BindingContext {
	bindingCtx, _ := ctx.Value(bindingContextKey).(*BindingContext)
	return bindingCtx
}

// IsCertificateBound reports whether the request carried a confirmed
// certificate-bound token.
func IsCertificateBound(ctx context.Context) bool {
	return GetBindingContext(ctx) != nil
}

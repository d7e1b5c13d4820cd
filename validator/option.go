package validator

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Option is how options for the Validator are set up.
// Options return errors to enable validation during construction.
type Option func(*Validator) error

// WithPublicKey verifies every token with the same key, regardless of its
// kid header. The key is a crypto public key, a jwk.Key, or a []byte secret
// for HMAC algorithms.
func WithPublicKey(key any) Option {
	return func(v *Validator) error {
		if key == nil {
			return errors.New("public key cannot be nil")
		}
		v.keyResolver = staticKey{key: key}
		return nil
	}
}

// WithKeyResolver resolves the verification key per token from its kid
// header and unverified iss claim. For JWKS-based validation use one of the
// jwks providers.
func WithKeyResolver(resolver KeyResolver) Option {
	return func(v *Validator) error {
		if resolver == nil {
			return errors.New("key resolver cannot be nil")
		}
		v.keyResolver = resolver
		return nil
	}
}

// WithAlgorithms replaces the allowed signature algorithms. By default every
// asymmetric algorithm is allowed and HMAC is not.
func WithAlgorithms(algorithms ...SignatureAlgorithm) Option {
	return func(v *Validator) error {
		if len(algorithms) == 0 {
			return errors.New("at least one algorithm is required")
		}
		allowed := make(map[SignatureAlgorithm]struct{}, len(algorithms))
		for _, alg := range algorithms {
			if _, err := alg.JWX(); err != nil {
				return err
			}
			allowed[alg] = struct{}{}
		}
		v.algorithms = allowed
		return nil
	}
}

// WithIssuer sets the expected issuer claim (iss). Without it the issuer is
// not checked.
func WithIssuer(issuerURL string) Option {
	return func(v *Validator) error {
		if issuerURL == "" {
			return errors.New("issuer cannot be empty")
		}
		if _, err := url.Parse(issuerURL); err != nil {
			return fmt.Errorf("invalid issuer URL: %w", err)
		}
		v.issuer = issuerURL
		return nil
	}
}

// WithAudience sets the expected audience claim (aud). Without it the
// audience is not checked.
func WithAudience(audience string) Option {
	return func(v *Validator) error {
		if audience == "" {
			return errors.New("audience cannot be empty")
		}
		v.audience = audience
		return nil
	}
}

// WithExpectedType requires the typ header to equal typ, compared
// case-insensitively and ignoring an "application/" prefix.
func WithExpectedType(typ string) Option {
	return func(v *Validator) error {
		if typ == "" {
			return errors.New("expected type cannot be empty")
		}
		v.expectedType = normalizeType(typ)
		return nil
	}
}

// WithAllowedClockSkew is an option which sets up the allowed
// clock skew for the token's time based claims.
// If this option is not used then allowed clock skew is set to 0.
func WithAllowedClockSkew(skew time.Duration) Option {
	return func(v *Validator) error {
		if skew < 0 {
			return errors.New("clock skew cannot be negative")
		}
		v.allowedClockSkew = skew
		return nil
	}
}

// WithClock sets the time source used for exp, nbf and iat checks.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) error {
		if now == nil {
			return errors.New("clock cannot be nil")
		}
		v.clock = now
		return nil
	}
}

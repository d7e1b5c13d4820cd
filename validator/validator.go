package validator

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwt"
)

// Validator verifies compact signed tokens and exposes their claims.
// It is immutable after New and safe for concurrent use.
type Validator struct {
	keyResolver      KeyResolver                     // Required.
	algorithms       map[SignatureAlgorithm]struct{} // Optional.
	issuer           string                          // Optional.
	audience         string                          // Optional.
	expectedType     string                          // Optional.
	allowedClockSkew time.Duration                   // Optional.
	clock            func() time.Time                // Optional.
}

// New creates a Validator. A key source is required, either WithPublicKey
// or WithKeyResolver.
//
// Example:
//
//	v, err := validator.New(
//	    validator.WithKeyResolver(provider),
//	    validator.WithIssuer("https://issuer.example.com/"),
//	    validator.WithAudience("api.example.com"),
//	    validator.WithAllowedClockSkew(30*time.Second),
//	)
func New(opts ...Option) (*Validator, error) {
	v := &Validator{
		algorithms: make(map[SignatureAlgorithm]struct{}, len(asymmetricAlgorithms)),
		clock:      time.Now,
	}
	for _, alg := range asymmetricAlgorithms {
		v.algorithms[alg] = struct{}{}
	}

	for _, opt := range opts {
		if err := opt(v); err != nil {
			return nil, fmt.Errorf("invalid option: %w", err)
		}
	}

	if v.keyResolver == nil {
		return nil, ErrKeyResolverRequired
	}

	return v, nil
}

// Verify checks the signature and registered claims of tokenString and
// returns its claims. Every failure before claim extraction wraps
// ErrSignatureVerification; a registered claim of the wrong type is a
// *ClaimError.
func (v *Validator) Verify(ctx context.Context, tokenString string) (*VerifiedClaims, error) {
	if err := validateTokenFormat(tokenString); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSignatureVerification, err)
	}

	parts := strings.Split(tokenString, ".")

	var header Header
	if err := decodeSegment(parts[0], &header); err != nil {
		return nil, fmt.Errorf("%w: failed to decode header: %w", ErrSignatureVerification, err)
	}

	alg := SignatureAlgorithm(header.Algorithm)
	if _, ok := v.algorithms[alg]; !ok {
		return nil, fmt.Errorf("%w: signature algorithm %q is not allowed", ErrSignatureVerification, header.Algorithm)
	}
	jwxAlg, err := alg.JWX()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSignatureVerification, err)
	}

	if v.expectedType != "" && normalizeType(header.Type) != v.expectedType {
		return nil, fmt.Errorf("%w: expected token type %q, got %q", ErrSignatureVerification, v.expectedType, header.Type)
	}

	var raw map[string]json.RawMessage
	if err := decodeSegment(parts[1], &raw); err != nil {
		return nil, fmt.Errorf("%w: failed to decode payload: %w", ErrSignatureVerification, err)
	}

	// The issuer is untrusted until the signature verifies; resolvers only use
	// it to select a key set.
	var issuer string
	if iss, ok := raw["iss"]; ok {
		_ = json.Unmarshal(iss, &issuer)
	}

	key, err := v.keyResolver.ResolveKey(ctx, header.KeyID, issuer)
	if err != nil {
		return nil, fmt.Errorf("%w: error resolving key %q: %w", ErrSignatureVerification, header.KeyID, err)
	}

	parseOpts := []jwt.ParseOption{
		jwt.WithKey(jwxAlg, key),
		jwt.WithValidate(true),
		jwt.WithAcceptableSkew(v.allowedClockSkew),
		jwt.WithClock(jwt.ClockFunc(v.clock)),
	}
	if v.issuer != "" {
		parseOpts = append(parseOpts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		parseOpts = append(parseOpts, jwt.WithAudience(v.audience))
	}

	if _, err := jwt.ParseString(tokenString, parseOpts...); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSignatureVerification, err)
	}

	return newVerifiedClaims(header, raw)
}

func decodeSegment(segment string, dst any) error {
	data, err := base64.RawURLEncoding.DecodeString(segment)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

func normalizeType(typ string) string {
	typ = strings.ToLower(typ)
	return strings.TrimPrefix(typ, "application/")
}

package validator

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certbind/go-mtls-middleware/internal/certtest"
)

const (
	issuer   = "https://athenz.example.com/zts/v1"
	audience = "coretech"
)

var testNow = time.Unix(1_700_000_000, 0)

func fixedClock() time.Time { return testNow }

func signToken(t *testing.T, alg jwa.SignatureAlgorithm, key any, kid, typ string, claims map[string]any) string {
	t.Helper()

	payload, err := json.Marshal(claims)
	require.NoError(t, err)

	headers := jws.NewHeaders()
	if kid != "" {
		require.NoError(t, headers.Set(jws.KeyIDKey, kid))
	}
	if typ != "" {
		require.NoError(t, headers.Set(jws.TypeKey, typ))
	}

	signed, err := jws.Sign(payload, jws.WithKey(alg, key, jws.WithProtectedHeaders(headers)))
	require.NoError(t, err)
	return string(signed)
}

func validClaims() map[string]any {
	return map[string]any{
		"sub":       "user.joe",
		"iss":       issuer,
		"aud":       audience,
		"iat":       testNow.Add(-time.Minute).Unix(),
		"exp":       testNow.Add(time.Hour).Unix(),
		"auth_time": testNow.Add(-2 * time.Minute).Unix(),
		"ver":       1,
		"jti":       "id-1",
	}
}

func with(claims map[string]any, name string, value any) map[string]any {
	if value == nil {
		delete(claims, name)
		return claims
	}
	claims[name] = value
	return claims
}

func TestNew(t *testing.T) {
	t.Run("requires a key source", func(t *testing.T) {
		_, err := New(WithIssuer(issuer))
		assert.ErrorIs(t, err, ErrKeyResolverRequired)
	})

	t.Run("reports invalid options", func(t *testing.T) {
		_, err := New(WithPublicKey(nil))
		assert.EqualError(t, err, "invalid option: public key cannot be nil")
	})

	t.Run("defaults to asymmetric algorithms", func(t *testing.T) {
		v, err := New(WithPublicKey([]byte("secret")))
		require.NoError(t, err)
		assert.Contains(t, v.algorithms, ES256)
		assert.Contains(t, v.algorithms, RS256)
		assert.NotContains(t, v.algorithms, HS256)
	})
}

func TestValidator_Verify(t *testing.T) {
	key := certtest.NewSigningKey(t)
	otherKey := certtest.NewSigningKey(t)
	secret := []byte("abcdefghijklmnopqrstuvwxyz012345")

	testCases := []struct {
		name          string
		token         string
		opts          []Option
		expectedError error
		errContains   string
	}{
		{
			name:  "valid token",
			token: signToken(t, jwa.ES256(), key, "0", "at+jwt", validClaims()),
		},
		{
			name:          "signed by another key",
			token:         signToken(t, jwa.ES256(), otherKey, "0", "at+jwt", validClaims()),
			expectedError: ErrSignatureVerification,
		},
		{
			name:          "expired",
			token:         signToken(t, jwa.ES256(), key, "0", "", with(validClaims(), "exp", testNow.Add(-time.Minute).Unix())),
			expectedError: ErrSignatureVerification,
		},
		{
			name:  "expired within allowed clock skew",
			token: signToken(t, jwa.ES256(), key, "0", "", with(validClaims(), "exp", testNow.Add(-10*time.Second).Unix())),
			opts:  []Option{WithAllowedClockSkew(30 * time.Second)},
		},
		{
			name:          "not valid yet",
			token:         signToken(t, jwa.ES256(), key, "0", "", with(validClaims(), "nbf", testNow.Add(time.Minute).Unix())),
			expectedError: ErrSignatureVerification,
		},
		{
			name:          "issuer mismatch",
			token:         signToken(t, jwa.ES256(), key, "0", "", with(validClaims(), "iss", "https://evil.example.com/")),
			opts:          []Option{WithIssuer(issuer)},
			expectedError: ErrSignatureVerification,
		},
		{
			name:          "audience mismatch",
			token:         signToken(t, jwa.ES256(), key, "0", "", with(validClaims(), "aud", "sports")),
			opts:          []Option{WithAudience(audience)},
			expectedError: ErrSignatureVerification,
		},
		{
			name:  "issuer and audience match",
			token: signToken(t, jwa.ES256(), key, "0", "", validClaims()),
			opts:  []Option{WithIssuer(issuer), WithAudience(audience)},
		},
		{
			name:          "HMAC is rejected by default",
			token:         signToken(t, jwa.HS256(), secret, "0", "", validClaims()),
			expectedError: ErrSignatureVerification,
			errContains:   `signature algorithm "HS256" is not allowed`,
		},
		{
			name:          "unexpected type",
			token:         signToken(t, jwa.ES256(), key, "0", "JWT", validClaims()),
			opts:          []Option{WithExpectedType("at+jwt")},
			expectedError: ErrSignatureVerification,
			errContains:   `expected token type "at+jwt", got "JWT"`,
		},
		{
			name:  "media type form of the expected type",
			token: signToken(t, jwa.ES256(), key, "0", "application/AT+JWT", validClaims()),
			opts:  []Option{WithExpectedType("at+jwt")},
		},
		{
			name:          "malformed token",
			token:         "not-a-token",
			expectedError: ErrSignatureVerification,
		},
		{
			name:          "too many segments",
			token:         "a.b.c.d",
			expectedError: ErrExcessiveTokenDots,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			opts := append([]Option{WithPublicKey(&key.PublicKey), WithClock(fixedClock)}, tc.opts...)
			v, err := New(opts...)
			require.NoError(t, err)

			claims, err := v.Verify(context.Background(), tc.token)
			if tc.expectedError != nil {
				assert.ErrorIs(t, err, tc.expectedError)
				if tc.errContains != "" {
					assert.ErrorContains(t, err, tc.errContains)
				}
				assert.Nil(t, claims)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, Claims{
				Subject:  "user.joe",
				Issuer:   issuer,
				Audience: audience,
				IssuedAt: testNow.Add(-time.Minute).Unix(),
				Expiry:   claims.Expiry,
				AuthTime: testNow.Add(-2 * time.Minute).Unix(),
				Version:  1,
				ID:       "id-1",
			}, claims.Claims)
			assert.Equal(t, "0", claims.Header.KeyID)
			assert.Equal(t, "ES256", claims.Header.Algorithm)
		})
	}

	t.Run("HMAC when explicitly allowed", func(t *testing.T) {
		v, err := New(WithPublicKey(secret), WithAlgorithms(HS256), WithClock(fixedClock))
		require.NoError(t, err)

		claims, err := v.Verify(context.Background(), signToken(t, jwa.HS256(), secret, "", "", validClaims()))
		require.NoError(t, err)
		assert.Equal(t, "user.joe", claims.Subject)
	})
}

func TestValidator_KeyResolution(t *testing.T) {
	key1 := certtest.NewSigningKey(t)
	key2 := certtest.NewSigningKey(t)

	t.Run("resolves by kid and passes the unverified issuer", func(t *testing.T) {
		var gotKID, gotIssuer string
		resolver := KeyResolverFunc(func(_ context.Context, keyID, iss string) (any, error) {
			gotKID, gotIssuer = keyID, iss
			return KeyMap{"k1": &key1.PublicKey, "k2": &key2.PublicKey}.ResolveKey(context.Background(), keyID, iss)
		})
		v, err := New(WithKeyResolver(resolver), WithClock(fixedClock))
		require.NoError(t, err)

		_, err = v.Verify(context.Background(), signToken(t, jwa.ES256(), key2, "k2", "", validClaims()))
		require.NoError(t, err)
		assert.Equal(t, "k2", gotKID)
		assert.Equal(t, issuer, gotIssuer)
	})

	t.Run("unknown kid", func(t *testing.T) {
		v, err := New(WithKeyResolver(KeyMap{"k1": &key1.PublicKey}), WithClock(fixedClock))
		require.NoError(t, err)

		_, err = v.Verify(context.Background(), signToken(t, jwa.ES256(), key2, "k9", "", validClaims()))
		assert.ErrorIs(t, err, ErrSignatureVerification)
		assert.ErrorIs(t, err, ErrKeyNotFound)
	})

	t.Run("resolver failure is fatal", func(t *testing.T) {
		boom := errors.New("jwks endpoint unavailable")
		v, err := New(WithKeyResolver(KeyResolverFunc(func(context.Context, string, string) (any, error) {
			return nil, boom
		})), WithClock(fixedClock))
		require.NoError(t, err)

		_, err = v.Verify(context.Background(), signToken(t, jwa.ES256(), key1, "k1", "", validClaims()))
		assert.ErrorIs(t, err, boom)
		assert.ErrorIs(t, err, ErrSignatureVerification)
	})
}

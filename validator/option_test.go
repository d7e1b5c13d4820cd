package validator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions(t *testing.T) {
	t.Run("WithKeyResolver", func(t *testing.T) {
		v := &Validator{}
		assert.EqualError(t, WithKeyResolver(nil)(v), "key resolver cannot be nil")

		require.NoError(t, WithKeyResolver(KeyMap{})(v))
		assert.NotNil(t, v.keyResolver)
	})

	t.Run("WithPublicKey", func(t *testing.T) {
		v := &Validator{}
		require.NoError(t, WithPublicKey("key")(v))

		key, err := v.keyResolver.ResolveKey(context.Background(), "any-kid", "any-issuer")
		require.NoError(t, err)
		assert.Equal(t, "key", key)
	})

	t.Run("WithAlgorithms", func(t *testing.T) {
		v := &Validator{}
		require.NoError(t, WithAlgorithms(RS256, HS256)(v))
		assert.Len(t, v.algorithms, 2)

		assert.EqualError(t, WithAlgorithms()(v), "at least one algorithm is required")
		assert.EqualError(t, WithAlgorithms("none")(v), "unsupported signature algorithm: none")
	})

	t.Run("WithIssuer", func(t *testing.T) {
		v := &Validator{}
		assert.EqualError(t, WithIssuer("")(v), "issuer cannot be empty")
		assert.Error(t, WithIssuer("://bad")(v))
		require.NoError(t, WithIssuer(issuer)(v))
		assert.Equal(t, issuer, v.issuer)
	})

	t.Run("WithAudience", func(t *testing.T) {
		v := &Validator{}
		assert.EqualError(t, WithAudience("")(v), "audience cannot be empty")
		require.NoError(t, WithAudience(audience)(v))
		assert.Equal(t, audience, v.audience)
	})

	t.Run("WithExpectedType", func(t *testing.T) {
		v := &Validator{}
		assert.EqualError(t, WithExpectedType("")(v), "expected type cannot be empty")
		require.NoError(t, WithExpectedType("Application/At+JWT")(v))
		assert.Equal(t, "at+jwt", v.expectedType)
	})

	t.Run("WithAllowedClockSkew", func(t *testing.T) {
		v := &Validator{}
		assert.EqualError(t, WithAllowedClockSkew(-time.Second)(v), "clock skew cannot be negative")
		require.NoError(t, WithAllowedClockSkew(time.Minute)(v))
		assert.Equal(t, time.Minute, v.allowedClockSkew)
	})

	t.Run("WithClock", func(t *testing.T) {
		v := &Validator{}
		assert.EqualError(t, WithClock(nil)(v), "clock cannot be nil")
		require.NoError(t, WithClock(fixedClock)(v))
		assert.Equal(t, testNow, v.clock())
	})
}

func TestKeyMap(t *testing.T) {
	m := KeyMap{"k1": "key-one"}

	key, err := m.ResolveKey(context.Background(), "k1", "")
	require.NoError(t, err)
	assert.Equal(t, "key-one", key)

	_, err = m.ResolveKey(context.Background(), "k2", "")
	assert.ErrorIs(t, err, ErrKeyNotFound)
	assert.EqualError(t, err, `verification key not found: kid "k2"`)
}

package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/certbind/go-mtls-middleware/binding"
)

func TestSetAndGetClaims(t *testing.T) {
	t.Run("set and get claims successfully", func(t *testing.T) {
		expectedClaims := map[string]any{"sub": "user123"}

		ctx := SetClaims(context.Background(), expectedClaims)
		claims, err := GetClaims[map[string]any](ctx)

		assert.NoError(t, err)
		assert.Equal(t, expectedClaims, claims)
		assert.True(t, HasClaims(ctx))
	})

	t.Run("get claims with wrong type returns error", func(t *testing.T) {
		ctx := SetClaims(context.Background(), map[string]any{"sub": "user123"})

		_, err := GetClaims[string](ctx)
		assert.ErrorContains(t, err, "claims type assertion failed")
	})

	t.Run("get claims from empty context returns error", func(t *testing.T) {
		_, err := GetClaims[map[string]any](context.Background())
		assert.ErrorIs(t, err, ErrClaimsNotFound)
		assert.False(t, HasClaims(context.Background()))
	})
}

func TestSetAndGetBindingContext(t *testing.T) {
	t.Run("set and get", func(t *testing.T) {
		want := &BindingContext{Tier: binding.TierHash, Thumbprint: "abc", CertificateSubject: "svc.A"}

		ctx := SetBindingContext(context.Background(), want)

		assert.Same(t, want, GetBindingContext(ctx))
		assert.True(t, IsCertificateBound(ctx))
	})

	t.Run("bearer request", func(t *testing.T) {
		assert.Nil(t, GetBindingContext(context.Background()))
		assert.False(t, IsCertificateBound(context.Background()))
	})
}

package token

import (
	"context"
	"crypto/ecdsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certbind/go-mtls-middleware/binding"
	"github.com/certbind/go-mtls-middleware/internal/certtest"
	"github.com/certbind/go-mtls-middleware/validator"
	"github.com/certbind/go-mtls-middleware/x509util"
)

const testIssuer = "https://athenz.example.com/zts/v1"

func newParser(t *testing.T, key *ecdsa.PrivateKey, opts ...Option) *Parser {
	t.Helper()
	opts = append([]Option{WithValidatorOptions(
		validator.WithPublicKey(&key.PublicKey),
		validator.WithIssuer(testIssuer),
	)}, opts...)
	p, err := NewParser(opts...)
	require.NoError(t, err)
	return p
}

func newToken(issuedAt time.Time) *AccessToken {
	return &AccessToken{
		Claims: validator.Claims{
			Subject:  "user.joe",
			Issuer:   testIssuer,
			Audience: "coretech",
			IssuedAt: issuedAt.Unix(),
			Expiry:   issuedAt.Add(time.Hour).Unix(),
			AuthTime: issuedAt.Add(-time.Minute).Unix(),
			Version:  1,
		},
		ClientID: "svc.A",
		UserID:   "joe",
		Scope:    []string{"writers", "readers", "admins"},
	}
}

func sign(t *testing.T, tok *AccessToken, key *ecdsa.PrivateKey) string {
	t.Helper()
	compact, err := tok.Sign(key, "0", validator.ES256)
	require.NoError(t, err)
	return compact
}

func segment(t *testing.T, compact string, i int) []byte {
	t.Helper()
	data, err := base64.RawURLEncoding.DecodeString(strings.Split(compact, ".")[i])
	require.NoError(t, err)
	return data
}

func objectKeys(t *testing.T, data []byte) []string {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(string(data)))
	_, err := dec.Token()
	require.NoError(t, err)

	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		require.NoError(t, err)
		keys = append(keys, tok.(string))
		var skip json.RawMessage
		require.NoError(t, dec.Decode(&skip))
	}
	return keys
}

func TestAccessToken_Sign(t *testing.T) {
	key := certtest.NewSigningKey(t)
	cert, _ := certtest.NewCertificate(t, certtest.Options{CommonName: "svc.A"})

	tok := newToken(time.Now().Add(-time.Minute))
	tok.ProxyPrincipal = "sys.proxy"
	require.NoError(t, tok.SetConfirmX509CertHash(cert))
	compact := sign(t, tok, key)

	t.Run("header", func(t *testing.T) {
		var header map[string]any
		require.NoError(t, json.Unmarshal(segment(t, compact, 0), &header))
		assert.Equal(t, "at+jwt", header["typ"])
		assert.Equal(t, "0", header["kid"])
		assert.Equal(t, "ES256", header["alg"])
	})

	t.Run("claim order", func(t *testing.T) {
		assert.Equal(t, []string{
			"sub", "iat", "exp", "iss", "aud", "auth_time", "ver",
			"scp", "uid", "client_id", "cnf", "proxy",
		}, objectKeys(t, segment(t, compact, 1)))
	})

	t.Run("unset claims are omitted", func(t *testing.T) {
		minimal := &AccessToken{Claims: validator.Claims{Subject: "user.joe"}}
		assert.Equal(t, []string{"sub"}, objectKeys(t, segment(t, sign(t, minimal, key), 1)))
	})

	t.Run("without kid", func(t *testing.T) {
		compact, err := tok.Sign(key, "", validator.ES256)
		require.NoError(t, err)

		var header map[string]any
		require.NoError(t, json.Unmarshal(segment(t, compact, 0), &header))
		assert.NotContains(t, header, "kid")
	})

	t.Run("invalid input", func(t *testing.T) {
		_, err := tok.Sign(nil, "0", validator.ES256)
		assert.EqualError(t, err, "signing key cannot be nil")

		_, err = tok.Sign(key, "0", "none")
		assert.Error(t, err)
	})
}

func TestParser_RoundTrip(t *testing.T) {
	key := certtest.NewSigningKey(t)
	cert, _ := certtest.NewCertificate(t, certtest.Options{CommonName: "svc.A"})
	parser := newParser(t, key)

	want := newToken(time.Now().Add(-time.Minute))
	want.ProxyPrincipal = "sys.proxy"
	require.NoError(t, want.SetConfirmX509CertHash(cert))
	want.SetConfirmEntry("jkt", "NzbLsXh8uDCcd-6MNwXF4W_7noWXFZAfHkxZsRGC9Xs")

	compact := sign(t, want, key)

	got, err := parser.Parse(context.Background(), compact)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	resigned := sign(t, got, key)
	assert.Equal(t, string(segment(t, compact, 1)), string(segment(t, resigned, 1)),
		"re-signing a parsed token must reproduce the same claims")
}

func TestParser_RoundTripScope(t *testing.T) {
	key := certtest.NewSigningKey(t)
	parser := newParser(t, key)

	t.Run("empty scope is kept", func(t *testing.T) {
		want := newToken(time.Now().Add(-time.Minute))
		want.Scope = []string{}

		compact := sign(t, want, key)
		assert.Contains(t, string(segment(t, compact, 1)), `"scp":[]`)

		got, err := parser.Parse(context.Background(), compact)
		require.NoError(t, err)
		assert.NotNil(t, got.Scope)
		assert.Empty(t, got.Scope)
	})

	t.Run("nil scope is omitted", func(t *testing.T) {
		want := newToken(time.Now().Add(-time.Minute))
		want.Scope = nil

		compact := sign(t, want, key)
		assert.NotContains(t, string(segment(t, compact, 1)), `"scp"`)

		got, err := parser.Parse(context.Background(), compact)
		require.NoError(t, err)
		assert.Nil(t, got.Scope)
	})
}

func TestParser_Parse(t *testing.T) {
	key := certtest.NewSigningKey(t)
	parser := newParser(t, key)
	now := time.Now().Add(-time.Minute)

	rawToken := func(t *testing.T, typ string, claims map[string]any) string {
		payload, err := json.Marshal(claims)
		require.NoError(t, err)
		headers := jws.NewHeaders()
		require.NoError(t, headers.Set(jws.TypeKey, typ))
		signed, err := jws.Sign(payload, jws.WithKey(jwa.ES256(), key, jws.WithProtectedHeaders(headers)))
		require.NoError(t, err)
		return string(signed)
	}
	base := func(name string, value any) map[string]any {
		return map[string]any{
			"sub": "user.joe",
			"iss": testIssuer,
			"iat": now.Unix(),
			"exp": now.Add(time.Hour).Unix(),
			name:  value,
		}
	}

	t.Run("absent optional claims", func(t *testing.T) {
		tok, err := parser.Parse(context.Background(), rawToken(t, "at+jwt", base("ver", 2)))
		require.NoError(t, err)
		assert.Empty(t, tok.ClientID)
		assert.Empty(t, tok.UserID)
		assert.Empty(t, tok.ProxyPrincipal)
		assert.Nil(t, tok.Scope)
		assert.Nil(t, tok.Confirm)
		assert.Equal(t, 2, tok.Version)
	})

	claimTypeErrors := []struct {
		claim string
		value any
	}{
		{"scp", "readers"},
		{"client_id", 12},
		{"uid", []string{"joe"}},
		{"proxy", true},
		{"cnf", "hash"},
	}
	for _, tc := range claimTypeErrors {
		t.Run("wrong type for "+tc.claim, func(t *testing.T) {
			_, err := parser.Parse(context.Background(), rawToken(t, "at+jwt", base(tc.claim, tc.value)))

			var claimErr *validator.ClaimError
			require.True(t, errors.As(err, &claimErr))
			assert.Equal(t, tc.claim, claimErr.Claim)
			assert.ErrorIs(t, err, validator.ErrClaimParsing)
		})
	}

	t.Run("not an access token", func(t *testing.T) {
		_, err := parser.Parse(context.Background(), rawToken(t, "JWT", base("ver", 1)))
		assert.ErrorIs(t, err, validator.ErrSignatureVerification)
	})

	t.Run("signed by another key", func(t *testing.T) {
		compact := sign(t, newToken(now), certtest.NewSigningKey(t))
		_, err := parser.Parse(context.Background(), compact)
		assert.ErrorIs(t, err, validator.ErrSignatureVerification)
	})
}

func TestParser_Binding(t *testing.T) {
	key := certtest.NewSigningKey(t)
	issuedAt := time.Now().Add(-10 * time.Minute).Truncate(time.Second)

	clientCert, _ := certtest.NewCertificate(t, certtest.Options{CommonName: "svc.A"})
	clientHash, err := x509util.Thumbprint(clientCert)
	require.NoError(t, err)

	bound := newToken(issuedAt)
	require.NoError(t, bound.SetConfirmX509CertHash(clientCert))
	compact := sign(t, bound, key)

	t.Run("direct hash match", func(t *testing.T) {
		parser := newParser(t, key)

		tok, err := parser.ParseBound(context.Background(), compact, clientCert, "")
		require.NoError(t, err)
		assert.True(t, parser.ConfirmMTLSBoundToken(tok, clientCert, ""))

		res := parser.Confirm(tok, clientCert, "")
		assert.Equal(t, binding.TierHash, res.Tier)
		assert.Len(t, res.Attempts, 1)
	})

	t.Run("rotated certificate within the offset", func(t *testing.T) {
		parser := newParser(t, key)
		rotated, _ := certtest.NewCertificate(t, certtest.Options{
			CommonName: "svc.A",
			NotBefore:  issuedAt.Add(10 * time.Second).Add(-time.Hour),
		})

		tok, err := parser.ParseBound(context.Background(), compact, rotated, "")
		require.NoError(t, err)

		res := parser.Confirm(tok, rotated, "")
		assert.True(t, res.Confirmed)
		assert.Equal(t, binding.TierPrincipal, res.Tier)
	})

	t.Run("no certificate", func(t *testing.T) {
		parser := newParser(t, key)
		tok, err := parser.Parse(context.Background(), compact)
		require.NoError(t, err)

		assert.False(t, parser.ConfirmMTLSBoundToken(tok, nil, clientHash))
	})

	t.Run("proxy outside the allow-list", func(t *testing.T) {
		policy, err := binding.New(binding.WithAllowedProxyPrincipals("proxy1"))
		require.NoError(t, err)
		parser := newParser(t, key, WithPolicy(policy))
		proxyCert, _ := certtest.NewCertificate(t, certtest.Options{CommonName: "proxy2"})

		tok, err := parser.ParseBound(context.Background(), compact, proxyCert, clientHash)
		assert.Nil(t, tok)
		assert.ErrorIs(t, err, binding.ErrCertificateBinding)

		var bindErr *binding.Error
		require.True(t, errors.As(err, &bindErr))
		assert.True(t, bindErr.Result.Attempted(binding.TierProxy))
		assert.Equal(t, "unauthorized proxy principal proxy2", bindErr.Result.Attempts[len(bindErr.Result.Attempts)-1].Reason)
	})

	t.Run("proxy on the allow-list", func(t *testing.T) {
		policy, err := binding.New(binding.WithAllowedProxyPrincipals("proxy1"))
		require.NoError(t, err)
		parser := newParser(t, key, WithPolicy(policy))
		proxyCert, _ := certtest.NewCertificate(t, certtest.Options{CommonName: "proxy1"})

		tok, err := parser.ParseBound(context.Background(), compact, proxyCert, clientHash)
		require.NoError(t, err)
		assert.Equal(t, "svc.A", tok.ClientID)
	})

	t.Run("unbound token", func(t *testing.T) {
		parser := newParser(t, key)
		unbound := sign(t, newToken(issuedAt), key)

		_, err := parser.ParseBound(context.Background(), unbound, clientCert, "")
		var bindErr *binding.Error
		require.True(t, errors.As(err, &bindErr))
		assert.Equal(t, binding.ReasonNoConfirmation, bindErr.Result.Reason)
	})

	t.Run("non-string confirmation entry", func(t *testing.T) {
		parser := newParser(t, key)
		tok := newToken(issuedAt)
		tok.SetConfirmEntry(ConfirmX509CertHash, 7)

		res := parser.Confirm(tok, clientCert, "")
		assert.Equal(t, binding.ReasonNoConfirmation, res.Reason)
	})
}

func TestNewParser(t *testing.T) {
	t.Run("requires a validator", func(t *testing.T) {
		_, err := NewParser()
		assert.ErrorIs(t, err, ErrValidatorRequired)
	})

	t.Run("rejects nil values", func(t *testing.T) {
		_, err := NewParser(WithValidator(nil))
		assert.EqualError(t, err, "validator cannot be nil")
		_, err = NewParser(WithPolicy(nil))
		assert.EqualError(t, err, "binding policy cannot be nil")
		_, err = NewParser(WithLogger(nil))
		assert.EqualError(t, err, "logger cannot be nil")
	})

	t.Run("default policy", func(t *testing.T) {
		p := newParser(t, certtest.NewSigningKey(t))
		assert.Equal(t, binding.DefaultCertOffset, p.Policy().CertOffset())
	})

	t.Run("prebuilt validator", func(t *testing.T) {
		key := certtest.NewSigningKey(t)
		v, err := validator.New(validator.WithPublicKey(&key.PublicKey))
		require.NoError(t, err)

		p, err := NewParser(WithValidator(v))
		require.NoError(t, err)

		tok, err := p.Parse(context.Background(), sign(t, newToken(time.Now().Add(-time.Minute)), key))
		require.NoError(t, err)
		assert.Equal(t, "svc.A", tok.ClientID)
	})
}

// Package tokentest signs access tokens and builds parsers for tests of the
// transport adapters.
package tokentest

import (
	"crypto/ecdsa"
	"crypto/x509"
	"testing"
	"time"

	"github.com/certbind/go-mtls-middleware/binding"
	"github.com/certbind/go-mtls-middleware/internal/certtest"
	"github.com/certbind/go-mtls-middleware/token"
	"github.com/certbind/go-mtls-middleware/validator"
)

// Issuer is the iss claim of every token signed by a Fixture.
const Issuer = "https://zts.example.com/zts/v1"

// Fixture holds a signing key and a parser trusting it.
type Fixture struct {
	Key    *ecdsa.PrivateKey
	Parser *token.Parser
}

// New returns a Fixture whose parser uses the given binding options.
func New(t testing.TB, policyOpts ...binding.Option) *Fixture {
	t.Helper()

	key := certtest.NewSigningKey(t)
	policy, err := binding.New(policyOpts...)
	if err != nil {
		t.Fatalf("binding policy: %v", err)
	}

	parser, err := token.NewParser(
		token.WithValidatorOptions(
			validator.WithPublicKey(&key.PublicKey),
			validator.WithIssuer(Issuer),
		),
		token.WithPolicy(policy),
	)
	if err != nil {
		t.Fatalf("token parser: %v", err)
	}

	return &Fixture{Key: key, Parser: parser}
}

// Token returns an unsigned token for clientID issued a minute ago.
func Token(clientID string) *token.AccessToken {
	issuedAt := time.Now().Add(-time.Minute)
	return &token.AccessToken{
		Claims: validator.Claims{
			Subject:  clientID,
			Issuer:   Issuer,
			Audience: "api",
			IssuedAt: issuedAt.Unix(),
			Expiry:   issuedAt.Add(time.Hour).Unix(),
		},
		ClientID: clientID,
		Scope:    []string{"readers"},
	}
}

// Sign signs tok with the fixture key.
func (f *Fixture) Sign(t testing.TB, tok *token.AccessToken) string {
	t.Helper()
	compact, err := tok.Sign(f.Key, "0", validator.ES256)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return compact
}

// Bearer signs an unbound token for clientID.
func (f *Fixture) Bearer(t testing.TB, clientID string) string {
	t.Helper()
	return f.Sign(t, Token(clientID))
}

// Bound signs a token for clientID bound to cert.
func (f *Fixture) Bound(t testing.TB, clientID string, cert *x509.Certificate) string {
	t.Helper()
	tok := Token(clientID)
	if err := tok.SetConfirmX509CertHash(cert); err != nil {
		t.Fatalf("bind token: %v", err)
	}
	return f.Sign(t, tok)
}

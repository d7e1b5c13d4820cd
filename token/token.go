// Package token implements mTLS-bound access tokens (RFC 8705): extracting
// access token fields from verified claims, signing new tokens, and confirming
// that a token is bound to the client certificate it was presented with.
package token

import (
	"crypto/x509"
	"fmt"

	"github.com/certbind/go-mtls-middleware/validator"
	"github.com/certbind/go-mtls-middleware/x509util"
)

// HeaderType is the typ header of an access token.
const HeaderType = "at+jwt"

// Claim names.
const (
	ClaimScope    = "scp"
	ClaimUserID   = "uid"
	ClaimClientID = "client_id"
	ClaimConfirm  = "cnf"
	ClaimProxy    = "proxy"
)

// ConfirmX509CertHash is the cnf entry holding the certificate thumbprint.
const ConfirmX509CertHash = "x5t#S256"

// AccessToken is an OAuth2 access token. Registered claims come from the
// embedded validator.Claims.
type AccessToken struct {
	validator.Claims

	ClientID       string      `json:"client_id,omitempty"`
	UserID         string      `json:"uid,omitempty"`
	ProxyPrincipal string      `json:"proxy,omitempty"`
	Scope          []string    `json:"scp,omitempty"`
	Confirm        *ConfirmMap `json:"cnf,omitempty"`
}

// FromClaims extracts the access token fields from verified claims. Absent
// claims leave the zero value; a claim of the wrong type is a
// *validator.ClaimError.
func FromClaims(claims *validator.VerifiedClaims) (*AccessToken, error) {
	tok := &AccessToken{Claims: claims.Claims}

	fields := []struct {
		name string
		dst  any
	}{
		{ClaimScope, &tok.Scope},
		{ClaimUserID, &tok.UserID},
		{ClaimClientID, &tok.ClientID},
		{ClaimProxy, &tok.ProxyPrincipal},
	}
	for _, f := range fields {
		if _, err := claims.Claim(f.name, f.dst); err != nil {
			return nil, err
		}
	}

	confirm := NewConfirmMap()
	found, err := claims.Claim(ClaimConfirm, confirm)
	if err != nil {
		return nil, err
	}
	if found {
		tok.Confirm = confirm
	}

	return tok, nil
}

// SetConfirmEntry stores a cnf entry, creating the claim if needed.
func (t *AccessToken) SetConfirmEntry(key string, value any) {
	if t.Confirm == nil {
		t.Confirm = NewConfirmMap()
	}
	t.Confirm.Set(key, value)
}

// ConfirmEntry returns a cnf entry.
func (t *AccessToken) ConfirmEntry(key string) (any, bool) {
	return t.Confirm.Get(key)
}

// SetConfirmX509CertHash binds the token to cert by storing its SHA-256
// thumbprint under x5t#S256.
func (t *AccessToken) SetConfirmX509CertHash(cert *x509.Certificate) error {
	hash, err := x509util.Thumbprint(cert)
	if err != nil {
		return fmt.Errorf("unable to bind token to certificate: %w", err)
	}
	t.SetConfirmEntry(ConfirmX509CertHash, hash)
	return nil
}

// X509CertHash returns the x5t#S256 confirmation value. The boolean is
// false when the entry is absent or not a string.
func (t *AccessToken) X509CertHash() (string, bool) {
	v, ok := t.ConfirmEntry(ConfirmX509CertHash)
	if !ok {
		return "", false
	}
	hash, ok := v.(string)
	return hash, ok
}

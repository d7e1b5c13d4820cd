package token

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lestrrat-go/jwx/v3/jws"

	"github.com/certbind/go-mtls-middleware/validator"
)

// payload fixes the order claims are written in. Unset claims are omitted;
// a non-nil empty scope is written as an empty scp array.
type payload struct {
	Subject        string      `json:"sub,omitempty"`
	IssuedAt       int64       `json:"iat,omitempty"`
	Expiry         int64       `json:"exp,omitempty"`
	Issuer         string      `json:"iss,omitempty"`
	Audience       string      `json:"aud,omitempty"`
	AuthTime       int64       `json:"auth_time,omitempty"`
	Version        int         `json:"ver,omitempty"`
	Scope          *[]string   `json:"scp,omitempty"`
	UserID         string      `json:"uid,omitempty"`
	ClientID       string      `json:"client_id,omitempty"`
	Confirm        *ConfirmMap `json:"cnf,omitempty"`
	ProxyPrincipal string      `json:"proxy,omitempty"`
	NotBefore      int64       `json:"nbf,omitempty"`
	ID             string      `json:"jti,omitempty"`
}

// Sign returns the token as a compact JWS signed with key. The protected
// header carries typ at+jwt and, when keyID is not empty, kid.
func (t *AccessToken) Sign(key any, keyID string, alg validator.SignatureAlgorithm) (string, error) {
	if key == nil {
		return "", errors.New("signing key cannot be nil")
	}

	jwxAlg, err := alg.JWX()
	if err != nil {
		return "", err
	}

	var scope *[]string
	if t.Scope != nil {
		scope = &t.Scope
	}

	body, err := json.Marshal(payload{
		Subject:        t.Subject,
		IssuedAt:       t.IssuedAt,
		Expiry:         t.Expiry,
		Issuer:         t.Issuer,
		Audience:       t.Audience,
		AuthTime:       t.AuthTime,
		Version:        t.Version,
		Scope:          scope,
		UserID:         t.UserID,
		ClientID:       t.ClientID,
		Confirm:        t.Confirm,
		ProxyPrincipal: t.ProxyPrincipal,
		NotBefore:      t.NotBefore,
		ID:             t.ID,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal access token claims: %w", err)
	}

	headers := jws.NewHeaders()
	if err := headers.Set(jws.TypeKey, HeaderType); err != nil {
		return "", err
	}
	if keyID != "" {
		if err := headers.Set(jws.KeyIDKey, keyID); err != nil {
			return "", err
		}
	}

	signed, err := jws.Sign(body, jws.WithKey(jwxAlg, key, jws.WithProtectedHeaders(headers)))
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return string(signed), nil
}

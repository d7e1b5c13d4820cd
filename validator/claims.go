package validator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Claims are the registered claims shared by every token type. Times are
// unix seconds; zero means the claim was absent.
type Claims struct {
	Subject   string `json:"sub,omitempty"`
	Issuer    string `json:"iss,omitempty"`
	Audience  string `json:"aud,omitempty"`
	IssuedAt  int64  `json:"iat,omitempty"`
	Expiry    int64  `json:"exp,omitempty"`
	NotBefore int64  `json:"nbf,omitempty"`
	AuthTime  int64  `json:"auth_time,omitempty"`
	Version   int    `json:"ver,omitempty"`
	ID        string `json:"jti,omitempty"`
}

// Header is the protected JOSE header of a verified token.
type Header struct {
	Algorithm string `json:"alg"`
	KeyID     string `json:"kid,omitempty"`
	Type      string `json:"typ,omitempty"`
}

// VerifiedClaims is the claim set of a token whose signature and registered
// claims have been validated. Claims not covered by Claims are available
// through Claim.
type VerifiedClaims struct {
	Claims
	Header Header

	raw map[string]json.RawMessage
}

func newVerifiedClaims(header Header, raw map[string]json.RawMessage) (*VerifiedClaims, error) {
	vc := &VerifiedClaims{Header: header, raw: raw}
	c := &vc.Claims

	stringClaims := []struct {
		name string
		dst  *string
	}{
		{"sub", &c.Subject},
		{"iss", &c.Issuer},
		{"aud", &c.Audience},
		{"jti", &c.ID},
	}
	for _, s := range stringClaims {
		if _, err := vc.Claim(s.name, s.dst); err != nil {
			return nil, err
		}
	}

	timeClaims := []struct {
		name string
		dst  *int64
	}{
		{"iat", &c.IssuedAt},
		{"exp", &c.Expiry},
		{"nbf", &c.NotBefore},
		{"auth_time", &c.AuthTime},
	}
	for _, tm := range timeClaims {
		v, _, err := vc.NumericClaim(tm.name)
		if err != nil {
			return nil, err
		}
		*tm.dst = v
	}

	if _, err := vc.Claim("ver", &c.Version); err != nil {
		return nil, err
	}

	return vc, nil
}

// Has reports whether the token carries a non-null claim called name.
func (c *VerifiedClaims) Has(name string) bool {
	raw, ok := c.raw[name]
	return ok && !isNull(raw)
}

// Names returns the names of all claims in the token, sorted.
func (c *VerifiedClaims) Names() []string {
	names := make([]string, 0, len(c.raw))
	for name := range c.raw {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Claim decodes the claim called name into dst. It returns false when the
// claim is absent or null, leaving dst untouched. A value that does not fit
// dst is reported as a *ClaimError.
func (c *VerifiedClaims) Claim(name string, dst any) (bool, error) {
	raw, ok := c.raw[name]
	if !ok || isNull(raw) {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return true, &ClaimError{Claim: name, Err: err}
	}
	return true, nil
}

// RawClaim returns the undecoded JSON of the claim called name.
func (c *VerifiedClaims) RawClaim(name string) (json.RawMessage, bool) {
	raw, ok := c.raw[name]
	if !ok || isNull(raw) {
		return nil, false
	}
	return raw, true
}

// NumericClaim reads a NumericDate style claim. Fractional seconds are
// truncated.
func (c *VerifiedClaims) NumericClaim(name string) (int64, bool, error) {
	raw, ok := c.RawClaim(name)
	if !ok {
		return 0, false, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, true, &ClaimError{Claim: name, Err: err}
	}
	n, ok := v.(json.Number)
	if !ok {
		return 0, true, &ClaimError{Claim: name, Err: fmt.Errorf("expected a number, got %T", v)}
	}
	if i, err := n.Int64(); err == nil {
		return i, true, nil
	}
	f, err := n.Float64()
	if err != nil {
		return 0, true, &ClaimError{Claim: name, Err: err}
	}
	return int64(f), true, nil
}

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

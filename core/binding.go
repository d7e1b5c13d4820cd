package core

import (
	"crypto/x509"
	"errors"
	"fmt"

	"github.com/certbind/go-mtls-middleware/binding"
	"github.com/certbind/go-mtls-middleware/token"
	"github.com/certbind/go-mtls-middleware/x509util"
)

// BindingMode represents how certificate-bound tokens are enforced.
type BindingMode int

const (
	// BindingAllowed accepts bearer tokens, but a token carrying an x5t#S256
	// confirmation must be confirmed against the client certificate (default).
	BindingAllowed BindingMode = iota

	// BindingRequired only accepts tokens bound to the client certificate.
	BindingRequired

	// BindingDisabled accepts every valid token without looking at cnf.
	BindingDisabled
)

// String returns a string representation of the binding mode.
func (m BindingMode) String() string {
	switch m {
	case BindingAllowed:
		return "BindingAllowed"
	case BindingRequired:
		return "BindingRequired"
	case BindingDisabled:
		return "BindingDisabled"
	default:
		return fmt.Sprintf("BindingMode(%d)", m)
	}
}

// Binding-specific error codes
const (
	ErrorCodeMTLSBindingMismatch      = "mtls_binding_mismatch"
	ErrorCodeClientCertificateMissing = "client_certificate_missing"
	ErrorCodeBearerNotAllowed         = "bearer_not_allowed"
)

var (
	// ErrClientCertificateMissing is returned when a bound token arrives
	// without a client certificate.
	ErrClientCertificateMissing = errors.New("client certificate is required for certificate-bound tokens")

	// ErrBearerNotAllowed is returned in BindingRequired mode for tokens
	// without an x5t#S256 confirmation.
	ErrBearerNotAllowed = errors.New("bearer tokens are not allowed (certificate binding required)")
)

// BindingContext describes a confirmed certificate binding. It is stored in
// the request context next to the access token.
type BindingContext struct {
	// Tier is the check that confirmed the binding.
	Tier binding.Tier

	// Thumbprint is the x5t#S256 value of the token.
	Thumbprint string

	// CertificateSubject is the CN of the certificate on the connection. For
	// TierProxy this is the proxy principal.
	CertificateSubject string

	// Forwarded reports that the binding was confirmed by a forwarded hash.
	Forwarded bool

	// Attempts lists every tier evaluated.
	Attempts []binding.Attempt
}

func (c *Core) checkBinding(
	tok *token.AccessToken,
	cert *x509.Certificate,
	forwardedHash string,
) (*token.AccessToken, *BindingContext, error) {
	if c.bindingMode == BindingDisabled {
		c.debug("Certificate binding disabled, accepting token", "client_id", tok.ClientID)
		return tok, nil, nil
	}

	_, bound := tok.X509CertHash()
	if !bound {
		if c.bindingMode == BindingRequired {
			c.logError("Bearer token provided but certificate binding is required", "client_id", tok.ClientID)
			return nil, nil, NewValidationError(
				ErrorCodeBearerNotAllowed,
				"Bearer tokens are not allowed (certificate binding required)",
				ErrBearerNotAllowed,
			)
		}

		c.debug("Bearer token accepted", "client_id", tok.ClientID)
		return tok, nil, nil
	}

	if cert == nil {
		c.logError("Token has x5t#S256 confirmation but no client certificate was presented", "client_id", tok.ClientID)
		return nil, nil, NewValidationError(
			ErrorCodeClientCertificateMissing,
			"Client certificate is required for certificate-bound tokens",
			ErrClientCertificateMissing,
		)
	}

	res := c.parser.Confirm(tok, cert, forwardedHash)
	if !res.Confirmed {
		c.logError("Certificate binding mismatch", "client_id", tok.ClientID, "reason", res.Reason)
		return nil, nil, NewValidationError(
			ErrorCodeMTLSBindingMismatch,
			"Access token is not bound to the client certificate",
			&binding.Error{Result: res},
		)
	}

	thumbprint, _ := tok.X509CertHash()
	subject, _ := x509util.CommonName(cert)
	bindingCtx := &BindingContext{
		Tier:               res.Tier,
		Thumbprint:         thumbprint,
		CertificateSubject: subject,
		Forwarded:          res.Tier == binding.TierProxy,
		Attempts:           res.Attempts,
	}

	c.info("Certificate-bound token validated successfully", "client_id", tok.ClientID, "tier", res.Tier.String())

	return tok, bindingCtx, nil
}

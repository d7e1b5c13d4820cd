// Package binding decides whether a TLS client certificate satisfies the
// x5t#S256 confirmation claim of an mTLS-bound access token (RFC 8705).
//
// Confirmation runs up to three checks in order and stops at the first one
// that succeeds:
//
//  1. TierHash: the SHA-256 thumbprint of the presented certificate equals
//     the token's x5t#S256 value.
//  2. TierPrincipal: the certificate CN equals the token client id and the
//     certificate was issued within the configured offset of the token. This
//     covers certificate rotation after the token was cached.
//  3. TierProxy: a TLS-terminating proxy, identified by its certificate CN,
//     forwarded the client certificate hash and that hash equals x5t#S256.
package binding

import (
	"crypto/x509"
	"fmt"
	"time"

	"github.com/certbind/go-mtls-middleware/x509util"
)

// certBackdate is the backdating the issuing CA applies to every
// certificate's NotBefore.
const certBackdate = int64(3600)

// Logger defines an optional logging interface compatible with log/slog.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Policy is an immutable confirmation configuration. Create it with New.
type Policy struct {
	certOffset      time.Duration
	proxyPrincipals map[string]struct{} // nil means unrestricted
	logger          Logger
}

// Input is the binding material evaluated by Confirm.
type Input struct {
	// ClientID is the client_id claim of the token.
	ClientID string

	// IssuedAt is the iat claim of the token in unix seconds.
	IssuedAt int64

	// ConfirmationHash is the x5t#S256 entry of the cnf claim.
	// HasConfirmation reports whether the entry was present at all.
	ConfirmationHash string
	HasConfirmation  bool

	// Certificate is the TLS client certificate presented with the token.
	Certificate *x509.Certificate

	// ForwardedHash is the certificate hash forwarded by a TLS-terminating
	// proxy. It is only consulted by TierProxy.
	ForwardedHash string
}

// CertOffset returns the configured rotation window.
func (p *Policy) CertOffset() time.Duration {
	return p.certOffset
}

// AllowedProxyPrincipals returns the proxy allow-list. The boolean is false
// when no restriction is configured.
func (p *Policy) AllowedProxyPrincipals() ([]string, bool) {
	if p.proxyPrincipals == nil {
		return nil, false
	}
	principals := make([]string, 0, len(p.proxyPrincipals))
	for principal := range p.proxyPrincipals {
		principals = append(principals, principal)
	}
	return principals, true
}

// Confirm evaluates the binding tiers for in and reports every tier it ran.
func (p *Policy) Confirm(in Input) Result {
	var res Result

	if in.Certificate == nil {
		p.debug("No client certificate presented")
		return res.fail(ReasonNoCertificate)
	}

	if !in.HasConfirmation {
		p.debug("Token has no x5t#S256 confirmation entry", "client_id", in.ClientID)
		return res.fail(ReasonNoConfirmation)
	}

	if p.confirmHash(&res, in) {
		return res
	}

	cn, ok := x509util.CommonName(in.Certificate)
	if !ok {
		p.warn("Client certificate has no common name", "client_id", in.ClientID)
		return res.fail(ReasonNoCommonName)
	}

	if p.confirmPrincipal(&res, in, cn) {
		return res
	}

	if p.confirmProxy(&res, in, cn) {
		return res
	}

	p.warn("X.509 certificate confirmation failed",
		"principal", cn,
		"client_id", in.ClientID,
		"attempts", len(res.Attempts))
	return res.fail(ReasonAllTiersFailed)
}

func (p *Policy) confirmHash(res *Result, in Input) bool {
	certHash, err := x509util.Thumbprint(in.Certificate)
	if err != nil {
		p.warn("Unable to compute certificate hash", "error", err)
		res.attempt(TierHash, false, "certificate digest unavailable")
		return false
	}

	if certHash != in.ConfirmationHash {
		p.debug("Certificate hash does not match confirmation claim", "client_id", in.ClientID)
		res.attempt(TierHash, false, "certificate hash mismatch")
		return false
	}

	p.debug("Certificate hash matches confirmation claim", "client_id", in.ClientID)
	res.attempt(TierHash, true, "")
	return true
}

func (p *Policy) confirmPrincipal(res *Result, in Input, cn string) bool {
	if p.certOffset == 0 {
		p.debug("Certificate principal check disabled")
		res.attempt(TierPrincipal, false, "principal check disabled")
		return false
	}

	if cn != in.ClientID {
		p.debug("Certificate principal does not match token client", "principal", cn, "client_id", in.ClientID)
		res.attempt(TierPrincipal, false, fmt.Sprintf("principal mismatch %s vs %s", cn, in.ClientID))
		return false
	}

	// Both bounds shift by one hour since certificates are issued backdated.
	certIssueTime := x509util.IssueTime(in.Certificate).Unix()
	offset := int64(p.certOffset / time.Second)

	if certIssueTime < in.IssuedAt-certBackdate {
		p.debug("Certificate issued before token",
			"principal", cn, "cert_issue_time", certIssueTime, "token_issue_time", in.IssuedAt)
		res.attempt(TierPrincipal, false, fmt.Sprintf("certificate %d issued before token %d", certIssueTime, in.IssuedAt))
		return false
	}

	if certIssueTime > in.IssuedAt+offset-certBackdate {
		p.debug("Certificate issued past configured offset",
			"principal", cn, "cert_issue_time", certIssueTime, "token_issue_time", in.IssuedAt, "offset", offset)
		res.attempt(TierPrincipal, false, fmt.Sprintf("certificate %d past offset %d for token %d", certIssueTime, offset, in.IssuedAt))
		return false
	}

	p.info("Token confirmed by certificate principal within rotation window",
		"principal", cn, "cert_issue_time", certIssueTime, "token_issue_time", in.IssuedAt)
	res.attempt(TierPrincipal, true, "")
	return true
}

func (p *Policy) confirmProxy(res *Result, in Input, cn string) bool {
	// A non-nil allow-list is enforced even when empty.
	if p.proxyPrincipals != nil {
		if _, ok := p.proxyPrincipals[cn]; !ok {
			p.warn("Unauthorized proxy principal", "principal", cn)
			res.attempt(TierProxy, false, "unauthorized proxy principal "+cn)
			return false
		}
	}

	if in.ForwardedHash == "" || in.ForwardedHash != in.ConfirmationHash {
		p.debug("Forwarded certificate hash does not match confirmation claim", "principal", cn)
		res.attempt(TierProxy, false, "forwarded hash mismatch")
		return false
	}

	p.info("Token confirmed by forwarded certificate hash", "proxy", cn, "client_id", in.ClientID)
	res.attempt(TierProxy, true, "")
	return true
}

func (p *Policy) debug(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}

func (p *Policy) info(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Info(msg, args...)
	}
}

func (p *Policy) warn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}

package mtlsmiddleware

import (
	"crypto/x509"
	"encoding/base64"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/certbind/go-mtls-middleware/x509util"
)

// Forwarded client certificate headers.
const (
	// HeaderClientCert carries the DER certificate as an RFC 9440 byte sequence.
	HeaderClientCert = "Client-Cert"

	// HeaderXForwardedClientCert is Envoy's element list with Hash and Cert keys.
	HeaderXForwardedClientCert = "X-Forwarded-Client-Cert"

	// HeaderSSLClientCert carries a URL-escaped PEM certificate
	// (nginx $ssl_client_escaped_cert).
	HeaderSSLClientCert = "X-SSL-Client-Cert"

	// HeaderClientCertHash carries the x5t#S256 value computed by the proxy.
	HeaderClientCertHash = "X-Client-Cert-Hash"
)

// TrustedProxyConfig defines which certificate forwarding headers to trust.
//
// SECURITY WARNING: Only enable when behind a trusted TLS-terminating proxy
// that strips these headers from client requests! A forwarded hash alone
// confirms a token only when the connection's own certificate belongs to an
// allowed proxy principal (see binding.WithAllowedProxyPrincipals), but a
// forwarded certificate is used as the client certificate whenever the
// connection has none.
//
// Precedence when several headers are trusted and present:
//   - certificate: Client-Cert, then X-Forwarded-Client-Cert, then X-SSL-Client-Cert
//   - hash: X-Forwarded-Client-Cert Hash, then X-Client-Cert-Hash
//
// The leftmost element of a multi-proxy chain is used. Malformed headers are
// ignored.
type TrustedProxyConfig struct {
	// TrustClientCert enables the RFC 9440 Client-Cert header.
	TrustClientCert bool

	// TrustXForwardedClientCert enables Envoy's X-Forwarded-Client-Cert header.
	TrustXForwardedClientCert bool

	// TrustSSLClientCert enables X-SSL-Client-Cert.
	TrustSSLClientCert bool

	// TrustClientCertHash enables X-Client-Cert-Hash.
	TrustClientCertHash bool
}

func (c *TrustedProxyConfig) hasAnyTrustedHeaders() bool {
	if c == nil {
		return false
	}
	return c.TrustClientCert ||
		c.TrustXForwardedClientCert ||
		c.TrustSSLClientCert ||
		c.TrustClientCertHash
}

// WithTrustedProxies configures trusted certificate forwarding headers.
// A nil config, or one with every flag false, trusts nothing.
//
// Example:
//
//	middleware, err := mtlsmiddleware.New(
//	    mtlsmiddleware.WithParser(parser),
//	    mtlsmiddleware.WithTrustedProxies(&mtlsmiddleware.TrustedProxyConfig{
//	        TrustClientCertHash: true,
//	    }),
//	)
func WithTrustedProxies(config *TrustedProxyConfig) Option {
	return func(m *Middleware) error {
		if !config.hasAnyTrustedHeaders() {
			m.trustedProxies = nil
			return nil
		}
		cfg := *config
		m.trustedProxies = &cfg
		return nil
	}
}

// WithRFC9440Proxy trusts the standard Client-Cert header.
func WithRFC9440Proxy() Option {
	return WithTrustedProxies(&TrustedProxyConfig{TrustClientCert: true})
}

// WithEnvoyProxy trusts Envoy's X-Forwarded-Client-Cert header.
func WithEnvoyProxy() Option {
	return WithTrustedProxies(&TrustedProxyConfig{TrustXForwardedClientCert: true})
}

// WithNginxProxy trusts X-SSL-Client-Cert and X-Client-Cert-Hash.
func WithNginxProxy() Option {
	return WithTrustedProxies(&TrustedProxyConfig{
		TrustSSLClientCert:  true,
		TrustClientCertHash: true,
	})
}

var errNotByteSequence = errors.New("value is not a structured field byte sequence")

// forwardedCertificate is what a trusted proxy reported about the client.
type forwardedCertificate struct {
	cert *x509.Certificate
	hash string
}

func (c *TrustedProxyConfig) extract(r *http.Request, logger Logger) forwardedCertificate {
	var fwd forwardedCertificate
	if !c.hasAnyTrustedHeaders() {
		return fwd
	}

	ignore := func(header string, err error) {
		if logger != nil {
			logger.Debug("Ignoring malformed forwarded certificate header", "header", header, "error", err)
		}
	}

	if c.TrustClientCert {
		if value := r.Header.Get(HeaderClientCert); value != "" {
			cert, err := parseByteSequenceCert(getLeftmost(value))
			if err != nil {
				ignore(HeaderClientCert, err)
			} else {
				fwd.cert = cert
			}
		}
	}

	if c.TrustXForwardedClientCert {
		if value := r.Header.Get(HeaderXForwardedClientCert); value != "" {
			hash, escapedCert := parseXFCCHeader(value)
			if hash != "" {
				thumbprint, err := x509util.ThumbprintFromHex(hash)
				if err != nil {
					ignore(HeaderXForwardedClientCert, err)
				} else {
					fwd.hash = thumbprint
				}
			}
			if fwd.cert == nil && escapedCert != "" {
				cert, err := parseEscapedPEM(escapedCert)
				if err != nil {
					ignore(HeaderXForwardedClientCert, err)
				} else {
					fwd.cert = cert
				}
			}
		}
	}

	if c.TrustSSLClientCert && fwd.cert == nil {
		if value := r.Header.Get(HeaderSSLClientCert); value != "" {
			cert, err := parseEscapedPEM(value)
			if err != nil {
				ignore(HeaderSSLClientCert, err)
			} else {
				fwd.cert = cert
			}
		}
	}

	if c.TrustClientCertHash && fwd.hash == "" {
		fwd.hash = getLeftmost(r.Header.Get(HeaderClientCertHash))
	}

	return fwd
}

// getLeftmost extracts the leftmost value from a comma-separated header.
// This handles multiple proxies: "value1, value2, value3" -> "value1"
// The leftmost value is closest to the client.
func getLeftmost(header string) string {
	parts := strings.Split(header, ",")
	return strings.TrimSpace(parts[0])
}

// parseByteSequenceCert decodes an RFC 8941 byte sequence (":base64:")
// holding a DER certificate.
func parseByteSequenceCert(value string) (*x509.Certificate, error) {
	value = strings.TrimSpace(value)
	if len(value) < 2 || value[0] != ':' || value[len(value)-1] != ':' {
		return nil, errNotByteSequence
	}
	der, err := base64.StdEncoding.DecodeString(value[1 : len(value)-1])
	if err != nil {
		return nil, err
	}
	return x509.ParseCertificate(der)
}

func parseEscapedPEM(value string) (*x509.Certificate, error) {
	// PathUnescape keeps '+' which is part of the base64 alphabet.
	data, err := url.PathUnescape(value)
	if err != nil {
		return nil, err
	}
	return x509util.ParsePEM([]byte(data))
}

// parseXFCCHeader returns the Hash and Cert values of the leftmost element.
// Example: By=spiffe://cluster/svc;Hash=468e...;Cert="-----BEGIN%20CERTIFICATE-----..."
func parseXFCCHeader(value string) (hash, cert string) {
	elements := splitQuoted(value, ',')
	if len(elements) == 0 {
		return "", ""
	}

	for _, pair := range splitQuoted(elements[0], ';') {
		key, val, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		val = strings.Trim(val, `"`)
		switch strings.ToLower(key) {
		case "hash":
			hash = val
		case "cert":
			cert = val
		}
	}
	return hash, cert
}

// splitQuoted splits s on sep outside double quotes.
func splitQuoted(s string, sep byte) []string {
	var (
		parts    []string
		inQuotes bool
		start    int
	)
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '\\' && inQuotes:
			i++
		case s[i] == '"':
			inQuotes = !inQuotes
		case s[i] == sep && !inQuotes:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

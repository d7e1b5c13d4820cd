// Package x509util extracts the certificate properties used for mTLS token
// binding: the subject Common Name, the issuance time and the RFC 8705
// x5t#S256 thumbprint.
package x509util

import (
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"time"
)

// ErrDigest is returned when a certificate thumbprint cannot be computed.
var ErrDigest = errors.New("unable to compute certificate digest")

// Thumbprint returns the x5t#S256 value of the certificate: the SHA-256
// digest of its DER encoding, base64url encoded without padding.
func Thumbprint(cert *x509.Certificate) (string, error) {
	if cert == nil {
		return "", fmt.Errorf("%w: nil certificate", ErrDigest)
	}
	if len(cert.Raw) == 0 {
		return "", fmt.Errorf("%w: certificate has no DER encoding", ErrDigest)
	}
	return ThumbprintDER(cert.Raw), nil
}

// ThumbprintDER computes the x5t#S256 value over raw DER bytes.
func ThumbprintDER(der []byte) string {
	sum := sha256.Sum256(der)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// ThumbprintFromHex converts a hex encoded SHA-256 certificate digest, as
// forwarded by some TLS-terminating proxies, to its x5t#S256 form.
func ThumbprintFromHex(digest string) (string, error) {
	sum, err := hex.DecodeString(digest)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDigest, err)
	}
	if len(sum) != sha256.Size {
		return "", fmt.Errorf("%w: digest has %d bytes, want %d", ErrDigest, len(sum), sha256.Size)
	}
	return base64.RawURLEncoding.EncodeToString(sum), nil
}

// ParsePEM parses the first CERTIFICATE block of data.
func ParsePEM(data []byte) (*x509.Certificate, error) {
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			return nil, errors.New("no CERTIFICATE PEM block found")
		}
		if block.Type == "CERTIFICATE" {
			return x509.ParseCertificate(block.Bytes)
		}
	}
}

// CommonName returns the subject CN of the certificate. The boolean is false
// when the certificate is nil or carries no CN.
func CommonName(cert *x509.Certificate) (string, bool) {
	if cert == nil || cert.Subject.CommonName == "" {
		return "", false
	}
	return cert.Subject.CommonName, true
}

// IssueTime returns the start of the certificate validity period.
func IssueTime(cert *x509.Certificate) time.Time {
	if cert == nil {
		return time.Time{}
	}
	return cert.NotBefore
}

package grpc

import (
	"context"
	"crypto/x509"
	"errors"
	"strings"

	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
)

// TokenExtractor extracts access tokens from gRPC metadata.
type TokenExtractor func(ctx context.Context) (string, error)

// CertificateExtractor returns the client certificate of a call, or nil.
type CertificateExtractor func(ctx context.Context) (*x509.Certificate, error)

// Extractor errors
var (
	// ErrMultipleAuthHeaders indicates multiple authorization metadata entries were provided.
	ErrMultipleAuthHeaders = errors.New("multiple authorization metadata entries are not allowed")

	// ErrInvalidAuthFormat indicates the authorization metadata format is invalid.
	ErrInvalidAuthFormat = errors.New("invalid authorization metadata format, expected: Bearer <token>")

	// ErrUnsupportedScheme indicates an unsupported authorization scheme was used.
	ErrUnsupportedScheme = errors.New("unsupported authorization scheme, expected: Bearer")
)

// MetadataTokenExtractor extracts the token from the "authorization"
// metadata key in the "Bearer <token>" format.
//
// gRPC normalizes incoming metadata keys to lowercase, so this extractor only
// checks the lowercase "authorization" key.
func MetadataTokenExtractor(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", nil // No metadata, no token (not an error)
	}

	authHeaders := md.Get("authorization")
	if len(authHeaders) == 0 {
		return "", nil
	}

	if len(authHeaders) > 1 {
		return "", ErrMultipleAuthHeaders
	}

	parts := strings.Fields(authHeaders[0])
	if len(parts) != 2 {
		return "", ErrInvalidAuthFormat
	}

	if !strings.EqualFold(parts[0], "bearer") {
		return "", ErrUnsupportedScheme
	}

	return parts[1], nil
}

// MetadataFieldTokenExtractor extracts the raw token from the given metadata key.
func MetadataFieldTokenExtractor(key string) TokenExtractor {
	return func(ctx context.Context) (string, error) {
		return metadataValue(ctx, key), nil
	}
}

// PeerCertificateExtractor returns the leaf certificate of the TLS peer.
func PeerCertificateExtractor(ctx context.Context) (*x509.Certificate, error) {
	p, ok := peer.FromContext(ctx)
	if !ok || p.AuthInfo == nil {
		return nil, nil
	}

	tlsInfo, ok := p.AuthInfo.(credentials.TLSInfo)
	if !ok || len(tlsInfo.State.PeerCertificates) == 0 {
		return nil, nil
	}

	return tlsInfo.State.PeerCertificates[0], nil
}

func metadataValue(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get(key)
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

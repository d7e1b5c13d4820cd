package grpc

import (
	"errors"
	"strings"

	"github.com/certbind/go-mtls-middleware/core"
)

// Option configures the Interceptor.
type Option func(*Interceptor) error

// Logger defines an optional logging interface compatible with log/slog.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// ErrParserNil is returned by New without WithParser.
var ErrParserNil = errors.New("parser is required (use WithParser)")

// WithParser sets the access token parser (REQUIRED), typically a
// *token.Parser.
//
// Example:
//
//	interceptor, _ := grpc.New(
//	    grpc.WithParser(parser),
//	    grpc.WithLogger(slog.Default()),
//	)
func WithParser(parser core.TokenParser) Option {
	return func(i *Interceptor) error {
		if parser == nil {
			return errors.New("parser cannot be nil")
		}
		i.parser = parser
		return nil
	}
}

// WithBindingMode configures how certificate-bound tokens are enforced.
// Default: core.BindingAllowed.
func WithBindingMode(mode core.BindingMode) Option {
	return func(i *Interceptor) error {
		i.coreOpts = append(i.coreOpts, core.WithBindingMode(mode))
		return nil
	}
}

// WithCredentialsOptional lets calls without a token through without claims.
//
// Default: false (credentials required)
func WithCredentialsOptional(optional bool) Option {
	return func(i *Interceptor) error {
		i.coreOpts = append(i.coreOpts, core.WithCredentialsOptional(optional))
		return nil
	}
}

// WithLogger sets an optional logger used by the interceptor and core.
func WithLogger(logger Logger) Option {
	return func(i *Interceptor) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		i.logger = logger
		return nil
	}
}

// WithTokenExtractor sets a custom token extractor function.
// Default is MetadataTokenExtractor which extracts from "authorization" metadata.
func WithTokenExtractor(extractor TokenExtractor) Option {
	return func(i *Interceptor) error {
		if extractor == nil {
			return errors.New("token extractor cannot be nil")
		}
		i.tokenExtractor = extractor
		return nil
	}
}

// WithCertificateExtractor sets a custom client certificate extractor.
// Default is PeerCertificateExtractor.
func WithCertificateExtractor(extractor CertificateExtractor) Option {
	return func(i *Interceptor) error {
		if extractor == nil {
			return errors.New("certificate extractor cannot be nil")
		}
		i.certificateExtractor = extractor
		return nil
	}
}

// WithForwardedHashMetadata reads a proxy-forwarded x5t#S256 value from the
// given metadata key. The value only confirms a token when the peer
// certificate belongs to an allowed proxy principal.
//
// SECURITY WARNING: only use behind a proxy that strips the key from client
// calls.
func WithForwardedHashMetadata(key string) Option {
	return func(i *Interceptor) error {
		if key == "" {
			return errors.New("forwarded hash metadata key cannot be empty")
		}
		i.forwardedHashKey = strings.ToLower(key)
		return nil
	}
}

// WithErrorHandler sets a custom error handler function.
// Default is DefaultErrorHandler which maps errors to gRPC status codes.
func WithErrorHandler(handler ErrorHandler) Option {
	return func(i *Interceptor) error {
		if handler == nil {
			return errors.New("error handler cannot be nil")
		}
		i.errorHandler = handler
		return nil
	}
}

// WithExcludedMethods excludes specific gRPC methods from token validation.
// Methods should be provided in the format: "/package.Service/Method"
// Example: "/grpc.health.v1.Health/Check"
func WithExcludedMethods(methods ...string) Option {
	return func(i *Interceptor) error {
		for _, method := range methods {
			i.excludedMethods[method] = true
		}
		return nil
	}
}

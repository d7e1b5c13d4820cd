package mtlsmiddleware

import (
	"errors"
	"net/http"

	"github.com/certbind/go-mtls-middleware/core"
)

// Option configures the Middleware.
// Returns error for validation failures.
type Option func(*Middleware) error

// WithParser sets the access token parser (REQUIRED). *token.Parser
// implements core.TokenParser.
func WithParser(p core.TokenParser) Option {
	return func(m *Middleware) error {
		if p == nil {
			return ErrParserNil
		}
		m.parser = p
		return nil
	}
}

// WithBindingMode sets how certificate-bound tokens are enforced.
//
// Default: core.BindingAllowed
func WithBindingMode(mode core.BindingMode) Option {
	return func(m *Middleware) error {
		switch mode {
		case core.BindingAllowed, core.BindingRequired, core.BindingDisabled:
			m.bindingMode = mode
			return nil
		default:
			return ErrBindingModeInvalid
		}
	}
}

// WithCredentialsOptional sets whether credentials are optional.
// If set to true, a request without a token reaches the next handler
// without claims.
//
// Default: false (credentials required)
func WithCredentialsOptional(value bool) Option {
	return func(m *Middleware) error {
		m.credentialsOptional = value
		return nil
	}
}

// WithValidateOnOptions sets whether OPTIONS requests are validated.
//
// Default: true
func WithValidateOnOptions(value bool) Option {
	return func(m *Middleware) error {
		m.validateOnOptions = value
		return nil
	}
}

// WithErrorHandler sets the handler called when validation fails.
//
// Default: DefaultErrorHandler
func WithErrorHandler(h ErrorHandler) Option {
	return func(m *Middleware) error {
		if h == nil {
			return ErrErrorHandlerNil
		}
		m.errorHandler = h
		return nil
	}
}

// WithTokenExtractor sets the function to extract the token from the request.
//
// Default: AuthHeaderTokenExtractor
func WithTokenExtractor(e TokenExtractor) Option {
	return func(m *Middleware) error {
		if e == nil {
			return ErrTokenExtractorNil
		}
		m.tokenExtractor = e
		return nil
	}
}

// WithCertificateExtractor sets the function returning the client
// certificate of the request.
//
// Default: TLSCertificateExtractor
func WithCertificateExtractor(e CertificateExtractor) Option {
	return func(m *Middleware) error {
		if e == nil {
			return ErrCertificateExtractorNil
		}
		m.certificateExtractor = e
		return nil
	}
}

// WithExclusionUrls configures URLs that skip token validation.
// Entries can be full URLs or just paths.
func WithExclusionUrls(exclusions []string) Option {
	return func(m *Middleware) error {
		if len(exclusions) == 0 {
			return ErrExclusionUrlsEmpty
		}
		m.exclusionURLHandler = func(r *http.Request) bool {
			requestFullURL := r.URL.String()
			requestPath := r.URL.Path

			for _, exclusion := range exclusions {
				if requestFullURL == exclusion || requestPath == exclusion {
					return true
				}
			}
			return false
		}
		return nil
	}
}

// WithLogger sets an optional logger for the middleware and core.
// *slog.Logger satisfies the interface, as do the adapters in this package.
func WithLogger(logger Logger) Option {
	return func(m *Middleware) error {
		if logger == nil {
			return ErrLoggerNil
		}
		m.logger = logger
		return nil
	}
}

// WithMetrics sets the metrics sink.
//
// Default: NoopMetrics
func WithMetrics(metrics Metrics) Option {
	return func(m *Middleware) error {
		if metrics == nil {
			return ErrMetricsNil
		}
		m.metrics = metrics
		return nil
	}
}

// WithTracer sets the tracer wrapping each validation in a span.
//
// Default: NoopTracer
func WithTracer(tracer Tracer) Option {
	return func(m *Middleware) error {
		if tracer == nil {
			return ErrTracerNil
		}
		m.tracer = tracer
		return nil
	}
}

// Sentinel errors for configuration validation
var (
	ErrParserNil               = errors.New("parser cannot be nil (use WithParser)")
	ErrBindingModeInvalid      = errors.New("invalid binding mode")
	ErrErrorHandlerNil         = errors.New("errorHandler cannot be nil")
	ErrTokenExtractorNil       = errors.New("tokenExtractor cannot be nil")
	ErrCertificateExtractorNil = errors.New("certificateExtractor cannot be nil")
	ErrExclusionUrlsEmpty      = errors.New("exclusion URLs list cannot be empty")
	ErrLoggerNil               = errors.New("logger cannot be nil")
	ErrMetricsNil              = errors.New("metrics cannot be nil")
	ErrTracerNil               = errors.New("tracer cannot be nil")
)

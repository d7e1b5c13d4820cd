package mtlsmiddleware

import (
	"context"
	"crypto/x509"
	"fmt"
	"net/http"
	"time"

	"github.com/certbind/go-mtls-middleware/core"
	"github.com/certbind/go-mtls-middleware/token"
	"github.com/certbind/go-mtls-middleware/x509util"
)

// Middleware verifies certificate-bound access tokens on HTTP requests.
type Middleware struct {
	core                 *core.Core
	errorHandler         ErrorHandler
	tokenExtractor       TokenExtractor
	certificateExtractor CertificateExtractor
	validateOnOptions    bool
	exclusionURLHandler  ExclusionURLHandler
	trustedProxies       *TrustedProxyConfig
	logger               Logger
	metrics              Metrics
	tracer               Tracer

	// Used during construction only.
	parser              core.TokenParser
	credentialsOptional bool
	bindingMode         core.BindingMode
}

// Logger defines an optional logging interface compatible with log/slog.
// This is the same interface used by core for consistent logging across the stack.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// ExclusionURLHandler reports whether a request skips token validation.
type ExclusionURLHandler func(r *http.Request) bool

// New constructs a Middleware with the supplied options.
//
// Example:
//
//	parser, err := token.NewParser(
//	    token.WithValidatorOptions(validator.WithKeyResolver(provider)),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	middleware, err := mtlsmiddleware.New(
//	    mtlsmiddleware.WithParser(parser),
//	    mtlsmiddleware.WithBindingMode(core.BindingRequired),
//	)
func New(opts ...Option) (*Middleware, error) {
	m := &Middleware{
		validateOnOptions: true,
	}

	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, fmt.Errorf("invalid option: %w", err)
		}
	}

	if m.parser == nil {
		return nil, fmt.Errorf("invalid middleware configuration: %w", ErrParserNil)
	}

	m.applyDefaults()

	if err := m.createCore(); err != nil {
		return nil, fmt.Errorf("failed to create core: %w", err)
	}

	return m, nil
}

func (m *Middleware) createCore() error {
	coreOpts := []core.Option{
		core.WithParser(m.parser),
		core.WithCredentialsOptional(m.credentialsOptional),
		core.WithBindingMode(m.bindingMode),
	}
	if m.logger != nil {
		coreOpts = append(coreOpts, core.WithLogger(m.logger))
	}

	c, err := core.New(coreOpts...)
	if err != nil {
		return err
	}
	m.core = c
	return nil
}

func (m *Middleware) applyDefaults() {
	if m.errorHandler == nil {
		m.errorHandler = DefaultErrorHandler
	}
	if m.tokenExtractor == nil {
		m.tokenExtractor = AuthHeaderTokenExtractor
	}
	if m.certificateExtractor == nil {
		m.certificateExtractor = TLSCertificateExtractor
	}
	if m.metrics == nil {
		m.metrics = NoopMetrics{}
	}
	if m.tracer == nil {
		m.tracer = NoopTracer{}
	}
}

// GetClaims retrieves the verified access token from the context.
//
// Example:
//
//	tok, err := mtlsmiddleware.GetClaims[*token.AccessToken](r.Context())
//	if err != nil {
//	    http.Error(w, "failed to get claims", http.StatusInternalServerError)
//	    return
//	}
//	fmt.Println(tok.ClientID)
func GetClaims[T any](ctx context.Context) (T, error) {
	return core.GetClaims[T](ctx)
}

// MustGetClaims retrieves claims from the context or panics.
// Use only when you are certain claims exist (e.g., after middleware has run).
func MustGetClaims[T any](ctx context.Context) T {
	claims, err := core.GetClaims[T](ctx)
	if err != nil {
		panic(err)
	}
	return claims
}

// GetAccessToken is GetClaims for the default parser's token type.
func GetAccessToken(ctx context.Context) (*token.AccessToken, error) {
	return core.GetClaims[*token.AccessToken](ctx)
}

// HasClaims checks if claims exist in the context.
func HasClaims(ctx context.Context) bool {
	return core.HasClaims(ctx)
}

// GetBindingContext returns the confirmed certificate binding of the
// request, or nil when the request used a bearer token.
func GetBindingContext(ctx context.Context) *core.BindingContext {
	return core.GetBindingContext(ctx)
}

// CheckToken wraps next with access token verification. next is called
// only for valid tokens, excluded URLs, skipped OPTIONS requests, or missing
// tokens when credentials are optional.
func (m *Middleware) CheckToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.exclusionURLHandler != nil && m.exclusionURLHandler(r) {
			m.debug("Skipping token validation for excluded URL",
				"method", r.Method,
				"path", r.URL.Path)
			m.metrics.IncCounter(MetricRequests, map[string]string{"outcome": "skipped", "code": ""})
			next.ServeHTTP(w, r)
			return
		}

		if !m.validateOnOptions && r.Method == http.MethodOptions {
			m.debug("Skipping token validation for OPTIONS request")
			m.metrics.IncCounter(MetricRequests, map[string]string{"outcome": "skipped", "code": ""})
			next.ServeHTTP(w, r)
			return
		}

		ctx, span := m.tracer.StartSpan(r.Context(), "mtlsmiddleware.CheckToken")
		defer span.Finish()
		span.SetTag("http.method", r.Method)
		span.SetTag("http.path", r.URL.Path)

		start := time.Now()
		tok, bindingCtx, err := m.check(ctx, r)
		outcome, code := classifyOutcome(tok, err)
		m.metrics.ObserveHistogram(MetricValidationDuration, time.Since(start).Seconds(), map[string]string{"outcome": outcome})
		m.metrics.IncCounter(MetricRequests, map[string]string{"outcome": outcome, "code": code})
		span.SetTag("mtls.outcome", outcome)

		if err != nil {
			m.warn("Access token validation failed",
				"error", err,
				"method", r.Method,
				"path", r.URL.Path)
			span.RecordError(err)
			m.errorHandler(w, r, err)
			return
		}

		if tok == nil {
			m.debug("No credentials provided, continuing without claims (credentials optional)")
			next.ServeHTTP(w, r)
			return
		}

		tier := "bearer"
		if bindingCtx != nil {
			tier = bindingCtx.Tier.String()
			ctx = core.SetBindingContext(ctx, bindingCtx)
		}
		m.metrics.IncCounter(MetricBindings, map[string]string{"tier": tier})
		span.SetTag("mtls.binding_tier", tier)
		span.SetTag("mtls.client_id", tok.ClientID)

		m.debug("Access token validation successful, setting claims in context", "tier", tier)
		next.ServeHTTP(w, r.WithContext(core.SetClaims(ctx, tok)))
	})
}

// check extracts the credentials of r and runs them through core.
func (m *Middleware) check(ctx context.Context, r *http.Request) (*token.AccessToken, *core.BindingContext, error) {
	accessToken, err := m.tokenExtractor(r)
	if err != nil {
		// Not ErrJWTMissing: a token was sent but could not be read.
		return nil, nil, core.NewValidationError(core.ErrorCodeTokenMalformed, "error extracting token", err)
	}

	cert, err := m.certificateExtractor(r)
	if err != nil {
		return nil, nil, fmt.Errorf("error extracting client certificate: %w", err)
	}

	forwardedHash := ""
	if m.trustedProxies != nil {
		fwd := m.trustedProxies.extract(r, m.logger)
		forwardedHash = fwd.hash
		if cert == nil && fwd.cert != nil {
			m.debug("Using client certificate forwarded by trusted proxy")
			cert = fwd.cert
		} else if forwardedHash == "" && fwd.cert != nil {
			forwardedHash = thumbprintOrEmpty(fwd.cert)
		}
	}

	return m.core.CheckToken(ctx, accessToken, cert, forwardedHash)
}

func thumbprintOrEmpty(cert *x509.Certificate) string {
	hash, err := x509util.Thumbprint(cert)
	if err != nil {
		return ""
	}
	return hash
}

func (m *Middleware) debug(msg string, args ...any) {
	if m.logger != nil {
		m.logger.Debug(msg, args...)
	}
}

func (m *Middleware) warn(msg string, args ...any) {
	if m.logger != nil {
		m.logger.Warn(msg, args...)
	}
}

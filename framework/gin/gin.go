// Package mtlsgin adapts the mTLS-bound token middleware to Gin.
package mtlsgin

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	mtlsmiddleware "github.com/certbind/go-mtls-middleware"
	"github.com/certbind/go-mtls-middleware/core"
	"github.com/certbind/go-mtls-middleware/token"
)

// DefaultClaimsKey is the gin.Context key holding the *token.AccessToken.
const DefaultClaimsKey = "access_token"

var (
	ErrMissingClaims = errors.New("no access token found in context")
	ErrInvalidClaims = errors.New("invalid access token type")
)

type ginContextKey struct{}

type config struct {
	errorHandler   func(*gin.Context, error)
	contextKey     string
	middlewareOpts []mtlsmiddleware.Option
}

// Option configures the Gin middleware.
type Option func(*config)

// WithErrorHandler sets a custom error handler. The handler must write the
// response; the chain is aborted afterwards.
func WithErrorHandler(handler func(*gin.Context, error)) Option {
	return func(c *config) {
		c.errorHandler = handler
	}
}

// WithContextKey sets the gin.Context key the access token is stored under.
func WithContextKey(key string) Option {
	return func(c *config) {
		c.contextKey = key
	}
}

// WithMiddlewareOptions passes options to the underlying mtlsmiddleware.
func WithMiddlewareOptions(opts ...mtlsmiddleware.Option) Option {
	return func(c *config) {
		c.middlewareOpts = append(c.middlewareOpts, opts...)
	}
}

// New creates a Gin middleware validating mTLS-bound access tokens. The
// token is stored in the gin.Context and in the request context.
func New(parser core.TokenParser, opts ...Option) (gin.HandlerFunc, error) {
	cfg := &config{
		errorHandler: defaultErrorHandler,
		contextKey:   DefaultClaimsKey,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	middlewareOpts := []mtlsmiddleware.Option{
		mtlsmiddleware.WithParser(parser),
		mtlsmiddleware.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			c, ok := r.Context().Value(ginContextKey{}).(*gin.Context)
			if !ok {
				mtlsmiddleware.DefaultErrorHandler(w, r, err)
				return
			}
			cfg.errorHandler(c, err)
		}),
	}
	middleware, err := mtlsmiddleware.New(append(middlewareOpts, cfg.middlewareOpts...)...)
	if err != nil {
		return nil, err
	}

	return func(c *gin.Context) {
		passed := false
		next := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			passed = true
			c.Request = r
			if tok, err := mtlsmiddleware.GetAccessToken(r.Context()); err == nil {
				c.Set(cfg.contextKey, tok)
			}
			c.Next()
		})

		r := c.Request.WithContext(context.WithValue(c.Request.Context(), ginContextKey{}, c))
		middleware.CheckToken(next).ServeHTTP(c.Writer, r)

		if !passed {
			c.Abort()
		}
	}, nil
}

func defaultErrorHandler(c *gin.Context, err error) {
	mtlsmiddleware.DefaultErrorHandler(c.Writer, c.Request, err)
	c.Abort()
}

// GetClaims returns the access token stored under contextKey, or under
// DefaultClaimsKey when contextKey is empty.
func GetClaims(c *gin.Context, contextKey string) (*token.AccessToken, error) {
	if contextKey == "" {
		contextKey = DefaultClaimsKey
	}
	value, exists := c.Get(contextKey)
	if !exists {
		return nil, ErrMissingClaims
	}

	tok, ok := value.(*token.AccessToken)
	if !ok {
		return nil, ErrInvalidClaims
	}
	return tok, nil
}

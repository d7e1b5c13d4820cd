// Package mtlsecho adapts the mTLS-bound token middleware to Echo.
package mtlsecho

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	mtlsmiddleware "github.com/certbind/go-mtls-middleware"
	"github.com/certbind/go-mtls-middleware/core"
	"github.com/certbind/go-mtls-middleware/token"
)

// DefaultClaimsKey is the echo.Context key holding the *token.AccessToken.
const DefaultClaimsKey = "access_token"

type echoContextKey struct{}

type config struct {
	errorHandler   func(echo.Context, error) error
	contextKey     string
	middlewareOpts []mtlsmiddleware.Option
}

// Option configures the Echo middleware.
type Option func(*config)

// WithErrorHandler sets a custom error handler. Its return value is
// returned from the middleware.
func WithErrorHandler(handler func(echo.Context, error) error) Option {
	return func(c *config) {
		c.errorHandler = handler
	}
}

// WithContextKey sets a custom context key to store the access token.
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

// New creates an Echo middleware validating mTLS-bound access tokens.
func New(parser core.TokenParser, opts ...Option) (echo.MiddlewareFunc, error) {
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
			state, ok := r.Context().Value(echoContextKey{}).(*requestState)
			if !ok {
				mtlsmiddleware.DefaultErrorHandler(w, r, err)
				return
			}
			state.err = cfg.errorHandler(state.c, err)
		}),
	}
	middleware, err := mtlsmiddleware.New(append(middlewareOpts, cfg.middlewareOpts...)...)
	if err != nil {
		return nil, err
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			state := &requestState{c: c}
			handler := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				c.SetRequest(r)
				if tok, err := mtlsmiddleware.GetAccessToken(r.Context()); err == nil {
					c.Set(cfg.contextKey, tok)
				}
				state.err = next(c)
			})

			r := c.Request()
			r = r.WithContext(context.WithValue(r.Context(), echoContextKey{}, state))
			middleware.CheckToken(handler).ServeHTTP(c.Response(), r)
			return state.err
		}
	}, nil
}

// requestState carries the echo.Context and the handler error through the
// net/http middleware.
type requestState struct {
	c   echo.Context
	err error
}

func defaultErrorHandler(c echo.Context, err error) error {
	mtlsmiddleware.DefaultErrorHandler(c.Response(), c.Request(), err)
	return nil
}

// GetClaims extracts the access token from the Echo context.
func GetClaims(c echo.Context, contextKey string) (*token.AccessToken, bool) {
	if contextKey == "" {
		contextKey = DefaultClaimsKey
	}
	tok, ok := c.Get(contextKey).(*token.AccessToken)
	return tok, ok
}

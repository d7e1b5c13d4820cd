// Package core provides framework-agnostic access token validation that can be
// used across different transport layers (HTTP, gRPC, etc.).
//
// The Core type encapsulates token verification and mTLS binding checks and
// can be wrapped by transport-specific adapters that supply the client
// certificate seen on the connection.
package core

import (
	"context"
	"crypto/x509"
	"errors"
	"time"

	"github.com/certbind/go-mtls-middleware/binding"
	"github.com/certbind/go-mtls-middleware/token"
	"github.com/certbind/go-mtls-middleware/validator"
)

// TokenParser verifies access tokens and evaluates their certificate binding.
// *token.Parser implements it.
type TokenParser interface {
	Parse(ctx context.Context, compact string) (*token.AccessToken, error)
	Confirm(tok *token.AccessToken, cert *x509.Certificate, forwardedHash string) binding.Result
}

// Logger defines an optional logging interface for the core middleware.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Core is the framework-agnostic access token validation engine.
// It contains the core logic for token validation without any dependency
// on specific transport protocols (HTTP, gRPC, etc.).
type Core struct {
	parser              TokenParser
	credentialsOptional bool
	logger              Logger
	bindingMode         BindingMode
}

// CheckToken validates an access token and, depending on the binding mode,
// confirms it against the client certificate and forwarded hash.
//
//   - If token is empty and credentialsOptional is true, returns (nil, nil, nil)
//   - If token is empty and credentialsOptional is false, returns ErrJWTMissing
//   - Otherwise the token is parsed and its binding evaluated
//
// The returned BindingContext is nil when no binding was confirmed (bearer
// tokens, or BindingDisabled).
func (c *Core) CheckToken(
	ctx context.Context,
	accessToken string,
	cert *x509.Certificate,
	forwardedHash string,
) (*token.AccessToken, *BindingContext, error) {
	if accessToken == "" {
		if c.credentialsOptional {
			c.debug("No token provided, but credentials are optional")
			return nil, nil, nil
		}

		c.warn("No token provided and credentials are required")
		return nil, nil, ErrJWTMissing
	}

	start := time.Now()
	tok, err := c.parser.Parse(ctx, accessToken)
	duration := time.Since(start)

	if err != nil {
		c.logError("Access token validation failed", "error", err, "duration", duration)
		return nil, nil, classifyParseError(err)
	}

	c.debug("Access token validated successfully", "duration", duration)

	return c.checkBinding(tok, cert, forwardedHash)
}

func classifyParseError(err error) error {
	switch {
	case errors.Is(err, validator.ErrClaimParsing):
		return NewValidationError(ErrorCodeInvalidClaims, "access token claims are invalid", err)
	case errors.Is(err, validator.ErrKeyNotFound):
		return NewValidationError(ErrorCodeJWKSKeyNotFound, "access token signing key not found", err)
	default:
		return NewValidationError(ErrorCodeInvalidSignature, "access token could not be verified", err)
	}
}

func (c *Core) debug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

func (c *Core) info(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Info(msg, args...)
	}
}

func (c *Core) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}

func (c *Core) logError(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Error(msg, args...)
	}
}

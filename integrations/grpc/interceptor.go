package grpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/certbind/go-mtls-middleware/core"
)

// Interceptor validates mTLS-bound access tokens for gRPC servers.
type Interceptor struct {
	core                 *core.Core
	tokenExtractor       TokenExtractor
	certificateExtractor CertificateExtractor
	forwardedHashKey     string
	errorHandler         ErrorHandler
	excludedMethods      map[string]bool
	logger               Logger

	coreOpts []core.Option
	parser   core.TokenParser
}

// New creates a gRPC interceptor. WithParser is required.
func New(opts ...Option) (*Interceptor, error) {
	i := &Interceptor{
		tokenExtractor:       MetadataTokenExtractor,
		certificateExtractor: PeerCertificateExtractor,
		errorHandler:         DefaultErrorHandler,
		excludedMethods:      make(map[string]bool),
	}

	for _, opt := range opts {
		if err := opt(i); err != nil {
			return nil, err
		}
	}

	if i.parser == nil {
		return nil, ErrParserNil
	}

	coreOpts := append([]core.Option{core.WithParser(i.parser)}, i.coreOpts...)
	if i.logger != nil {
		coreOpts = append(coreOpts, core.WithLogger(i.logger))
	}
	c, err := core.New(coreOpts...)
	if err != nil {
		return nil, err
	}
	i.core = c

	return i, nil
}

// UnaryServerInterceptor returns a grpc.UnaryServerInterceptor that validates
// the access token and makes it available in the request context.
func (i *Interceptor) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		if i.excludedMethods[info.FullMethod] {
			i.debug("Skipping token validation for excluded method", "method", info.FullMethod)
			return handler(ctx, req)
		}

		validatedCtx, err := i.validateRequest(ctx, info.FullMethod)
		if err != nil {
			return nil, err
		}

		return handler(validatedCtx, req)
	}
}

// StreamServerInterceptor returns a grpc.StreamServerInterceptor that
// validates the access token and makes it available in the stream context.
func (i *Interceptor) StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		if i.excludedMethods[info.FullMethod] {
			i.debug("Skipping token validation for excluded method", "method", info.FullMethod)
			return handler(srv, ss)
		}

		validatedCtx, err := i.validateRequest(ss.Context(), info.FullMethod)
		if err != nil {
			return err
		}

		return handler(srv, &wrappedServerStream{ServerStream: ss, ctx: validatedCtx})
	}
}

func (i *Interceptor) validateRequest(ctx context.Context, method string) (context.Context, error) {
	accessToken, err := i.tokenExtractor(ctx)
	if err != nil {
		i.logError("Failed to extract token from gRPC metadata", "error", err, "method", method)
		return ctx, i.errorHandler(core.NewValidationError(core.ErrorCodeTokenMalformed, "error extracting token", err))
	}

	cert, err := i.certificateExtractor(ctx)
	if err != nil {
		i.logError("Failed to extract client certificate", "error", err, "method", method)
		return ctx, i.errorHandler(err)
	}

	forwardedHash := ""
	if i.forwardedHashKey != "" {
		forwardedHash = metadataValue(ctx, i.forwardedHashKey)
	}

	tok, bindingCtx, err := i.core.CheckToken(ctx, accessToken, cert, forwardedHash)
	if err != nil {
		i.warn("Access token validation failed", "error", err, "method", method)
		return ctx, i.errorHandler(err)
	}

	if tok == nil {
		i.debug("No credentials provided, continuing without claims (credentials optional)", "method", method)
		return ctx, nil
	}

	if bindingCtx != nil {
		ctx = core.SetBindingContext(ctx, bindingCtx)
	}
	i.debug("Access token validation successful, setting claims in context", "method", method)
	return core.SetClaims(ctx, tok), nil
}

func (i *Interceptor) debug(msg string, args ...any) {
	if i.logger != nil {
		i.logger.Debug(msg, args...)
	}
}

func (i *Interceptor) warn(msg string, args ...any) {
	if i.logger != nil {
		i.logger.Warn(msg, args...)
	}
}

func (i *Interceptor) logError(msg string, args ...any) {
	if i.logger != nil {
		i.logger.Error(msg, args...)
	}
}

// wrappedServerStream wraps grpc.ServerStream with a custom context.
type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

// Context returns the wrapped context with the access token.
func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}

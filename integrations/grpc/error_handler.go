package grpc

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/certbind/go-mtls-middleware/core"
)

// ErrorHandler converts validation errors to gRPC status errors.
type ErrorHandler func(error) error

// DefaultErrorHandler maps validation errors to gRPC status codes. Unreadable
// credentials map to InvalidArgument, other token failures to
// Unauthenticated and everything else to Internal.
func DefaultErrorHandler(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, core.ErrJWTMissing) {
		return status.Error(codes.Unauthenticated, "missing credentials")
	}

	var validationErr *core.ValidationError
	if errors.As(err, &validationErr) {
		return mapValidationError(validationErr)
	}

	return status.Error(codes.Internal, "internal error")
}

func mapValidationError(err *core.ValidationError) error {
	switch err.Code {
	case core.ErrorCodeTokenMissing:
		return status.Error(codes.Unauthenticated, "missing credentials")
	case core.ErrorCodeTokenMalformed:
		return status.Error(codes.InvalidArgument, "malformed credentials")
	case core.ErrorCodeInvalidSignature:
		return status.Error(codes.Unauthenticated, "invalid signature")
	case core.ErrorCodeInvalidClaims:
		return status.Error(codes.Unauthenticated, "invalid claims")
	case core.ErrorCodeJWKSKeyNotFound:
		return status.Error(codes.Unauthenticated, "unable to verify token")
	case core.ErrorCodeMTLSBindingMismatch:
		return status.Error(codes.Unauthenticated, "token is not bound to the client certificate")
	case core.ErrorCodeClientCertificateMissing:
		return status.Error(codes.Unauthenticated, "client certificate required")
	case core.ErrorCodeBearerNotAllowed:
		return status.Error(codes.Unauthenticated, "certificate-bound token required")
	default:
		return status.Error(codes.Unauthenticated, "invalid token")
	}
}

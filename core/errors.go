package core

import "errors"

// Sentinel errors for access token validation.
var (
	// ErrJWTMissing is returned when the access token is missing from the request.
	ErrJWTMissing = errors.New("jwt missing")

	// ErrJWTInvalid is matched by every *ValidationError.
	ErrJWTInvalid = errors.New("jwt invalid")

	// ErrClaimsNotFound is returned when claims cannot be retrieved from context.
	ErrClaimsNotFound = errors.New("claims not found in context")
)

// ValidationError wraps token validation errors with additional context.
// It provides structured error information that can be used for
// logging, metrics, and returning appropriate error responses.
type ValidationError struct {
	// Code is a machine-readable error code (e.g., "invalid_signature", "mtls_binding_mismatch")
	Code string

	// Message is a human-readable error message
	Message string

	// Details contains the underlying error
	Details error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Details != nil {
		return e.Message + ": " + e.Details.Error()
	}
	return e.Message
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ValidationError) Unwrap() error {
	return e.Details
}

// Is allows the error to be compared with ErrJWTInvalid.
func (e *ValidationError) Is(target error) bool {
	return target == ErrJWTInvalid
}

// Common error codes
const (
	ErrorCodeTokenMissing     = "token_missing"
	ErrorCodeTokenMalformed   = "token_malformed"
	ErrorCodeInvalidSignature = "invalid_signature"
	ErrorCodeInvalidClaims    = "invalid_claims"
	ErrorCodeJWKSKeyNotFound  = "jwks_key_not_found"
	ErrorCodeConfigInvalid    = "config_invalid"
	ErrorCodeParserNotSet     = "parser_not_set"
	ErrorCodeClaimsNotFound   = "claims_not_found"
)

// NewValidationError creates a new ValidationError with the given code and message.
func NewValidationError(code, message string, details error) *ValidationError {
	return &ValidationError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

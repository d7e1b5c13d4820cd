package validator

import (
	"errors"
	"fmt"
)

var (
	// ErrSignatureVerification is returned when a token is malformed, its
	// signature does not verify, its key cannot be resolved or one of the
	// registered claims (iss, aud, exp, nbf, iat) fails validation.
	ErrSignatureVerification = errors.New("token signature verification failed")

	// ErrClaimParsing is matched by every *ClaimError.
	ErrClaimParsing = errors.New("token claim could not be parsed")

	// ErrKeyNotFound is returned by a KeyResolver that has no key for the
	// requested key id.
	ErrKeyNotFound = errors.New("verification key not found")

	// ErrKeyResolverRequired is returned when New is called without a key source.
	ErrKeyResolverRequired = errors.New("key resolver is required (use WithPublicKey or WithKeyResolver)")
)

// ClaimError reports a claim whose value does not have the expected type.
type ClaimError struct {
	Claim string
	Err   error
}

// Error implements the error interface.
func (e *ClaimError) Error() string {
	return fmt.Sprintf("invalid %q claim: %v", e.Claim, e.Err)
}

// Unwrap returns the underlying decoding error.
func (e *ClaimError) Unwrap() error {
	return e.Err
}

// Is allows the error to be compared with ErrClaimParsing.
func (e *ClaimError) Is(target error) bool {
	return target == ErrClaimParsing
}

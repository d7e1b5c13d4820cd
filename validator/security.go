package validator

import (
	"errors"
	"strings"
)

var (
	// ErrExcessiveTokenDots is returned when a token has more segments than a
	// compact JWS.
	ErrExcessiveTokenDots = errors.New("token contains excessive dots")

	// ErrTokenTooLarge is returned for tokens larger than maxTokenSize.
	ErrTokenTooLarge = errors.New("token exceeds maximum size (1MB)")
)

const (
	// maxTokenDots is the number of dots in header.payload.signature.
	maxTokenDots = 2

	maxTokenSize = 1024 * 1024
)

// validateTokenFormat rejects obviously malformed input before any decoding
// or key resolution happens.
func validateTokenFormat(tokenString string) error {
	if len(tokenString) == 0 {
		return errors.New("token is empty")
	}

	if len(tokenString) > maxTokenSize {
		return ErrTokenTooLarge
	}

	dotCount := strings.Count(tokenString, ".")
	if dotCount > maxTokenDots {
		return ErrExcessiveTokenDots
	}
	if dotCount < maxTokenDots {
		return errors.New("token is not in compact JWS form")
	}

	return nil
}

package binding

import (
	"errors"
	"fmt"
	"time"
)

// Option configures a Policy.
// Options return errors to enable validation during construction.
type Option func(*Policy) error

// DefaultCertOffset is the rotation window used when WithCertOffset is not given.
const DefaultCertOffset = time.Hour

// New creates a Policy. Without options the policy uses DefaultCertOffset
// and accepts a forwarded certificate hash from any proxy principal.
//
// The returned Policy never changes after construction and is safe for
// concurrent use. Build a new Policy to change its configuration.
//
// Example:
//
//	policy, err := binding.New(
//	    binding.WithCertOffset(30*time.Minute),
//	    binding.WithAllowedProxyPrincipals("sys.proxy.frontend"),
//	    binding.WithLogger(slog.Default()),
//	)
func New(opts ...Option) (*Policy, error) {
	p := &Policy{
		certOffset: DefaultCertOffset,
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// WithCertOffset sets how long after the token was issued a rotated
// certificate with the same principal is still accepted. A zero offset
// disables the principal check entirely.
//
// SECURITY NOTE: the principal check confirms a token on subject identity and
// certificate issuance time alone, without comparing any digest. It exists to
// keep cached tokens usable across a certificate refresh. Set the offset to 0
// when that grace period is not wanted.
func WithCertOffset(offset time.Duration) Option {
	return func(p *Policy) error {
		if offset < 0 {
			return errors.New("certificate offset cannot be negative")
		}
		p.certOffset = offset.Truncate(time.Second)
		return nil
	}
}

// WithAllowedProxyPrincipals restricts which certificate principals may
// present a forwarded certificate hash. Calling it with no principals rejects
// every proxy. Without this option any principal may forward a hash.
func WithAllowedProxyPrincipals(principals ...string) Option {
	return func(p *Policy) error {
		allowed := make(map[string]struct{}, len(principals))
		for i, principal := range principals {
			if principal == "" {
				return fmt.Errorf("proxy principal at index %d cannot be empty", i)
			}
			allowed[principal] = struct{}{}
		}
		p.proxyPrincipals = allowed
		return nil
	}
}

// WithLogger sets an optional logger. Tier outcomes are logged with the
// certificate principal and timestamps; digests are never logged.
func WithLogger(logger Logger) Option {
	return func(p *Policy) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		p.logger = logger
		return nil
	}
}

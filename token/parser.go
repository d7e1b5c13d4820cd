package token

import (
	"context"
	"crypto/x509"
	"errors"

	"github.com/certbind/go-mtls-middleware/binding"
	"github.com/certbind/go-mtls-middleware/validator"
)

// Logger defines an optional logging interface compatible with log/slog.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// ErrValidatorRequired is returned when NewParser has no way to verify tokens.
var ErrValidatorRequired = errors.New("validator is required (use WithValidator or WithValidatorOptions)")

// Parser verifies access tokens and confirms their certificate binding.
// It is immutable after NewParser and safe for concurrent use.
type Parser struct {
	validator *validator.Validator
	policy    *binding.Policy
	logger    Logger

	validatorOpts []validator.Option
}

// Option configures a Parser.
type Option func(*Parser) error

// WithValidator uses a prebuilt validator. The caller decides whether it
// enforces the at+jwt typ header.
func WithValidator(v *validator.Validator) Option {
	return func(p *Parser) error {
		if v == nil {
			return errors.New("validator cannot be nil")
		}
		p.validator = v
		return nil
	}
}

// WithValidatorOptions builds the validator from opts. The typ header is
// required to be at+jwt unless opts override it.
func WithValidatorOptions(opts ...validator.Option) Option {
	return func(p *Parser) error {
		p.validatorOpts = append(p.validatorOpts, opts...)
		return nil
	}
}

// WithPolicy sets the binding policy. Without it the parser uses
// binding.New() with the parser's logger.
func WithPolicy(policy *binding.Policy) Option {
	return func(p *Parser) error {
		if policy == nil {
			return errors.New("binding policy cannot be nil")
		}
		p.policy = policy
		return nil
	}
}

// WithLogger sets an optional logger.
func WithLogger(logger Logger) Option {
	return func(p *Parser) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		p.logger = logger
		return nil
	}
}

// NewParser creates a Parser.
//
// Example:
//
//	parser, err := token.NewParser(
//	    token.WithValidatorOptions(
//	        validator.WithKeyResolver(provider),
//	        validator.WithIssuer("https://athenz.example.com/zts/v1"),
//	    ),
//	    token.WithPolicy(policy),
//	)
func NewParser(opts ...Option) (*Parser, error) {
	p := &Parser{}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}

	if p.validator == nil {
		if len(p.validatorOpts) == 0 {
			return nil, ErrValidatorRequired
		}
		vopts := append([]validator.Option{validator.WithExpectedType(HeaderType)}, p.validatorOpts...)
		v, err := validator.New(vopts...)
		if err != nil {
			return nil, err
		}
		p.validator = v
	}
	p.validatorOpts = nil

	if p.policy == nil {
		var policyOpts []binding.Option
		if p.logger != nil {
			policyOpts = append(policyOpts, binding.WithLogger(p.logger))
		}
		policy, err := binding.New(policyOpts...)
		if err != nil {
			return nil, err
		}
		p.policy = policy
	}

	return p, nil
}

// Policy returns the binding policy used by the parser.
func (p *Parser) Policy() *binding.Policy {
	return p.policy
}

// Parse verifies compact and extracts its access token fields. It does not
// look at certificate binding.
func (p *Parser) Parse(ctx context.Context, compact string) (*AccessToken, error) {
	claims, err := p.validator.Verify(ctx, compact)
	if err != nil {
		p.debug("Access token verification failed", "error", err)
		return nil, err
	}

	tok, err := FromClaims(claims)
	if err != nil {
		p.debug("Access token claim extraction failed", "error", err)
		return nil, err
	}
	return tok, nil
}

// ParseBound parses compact and requires it to be bound to cert, or to the
// forwardedHash presented by an allowed proxy. It returns either a fully
// bound token or an error; a binding failure is a *binding.Error.
func (p *Parser) ParseBound(ctx context.Context, compact string, cert *x509.Certificate, forwardedHash string) (*AccessToken, error) {
	tok, err := p.Parse(ctx, compact)
	if err != nil {
		return nil, err
	}

	res := p.Confirm(tok, cert, forwardedHash)
	if !res.Confirmed {
		p.logError("X.509 certificate confirmation failure",
			"client_id", tok.ClientID,
			"subject", tok.Subject,
			"reason", res.Reason)
		return nil, &binding.Error{Result: res}
	}
	return tok, nil
}

// ConfirmMTLSBoundToken reports whether tok is bound to cert, or to the
// forwardedHash presented by an allowed proxy.
func (p *Parser) ConfirmMTLSBoundToken(tok *AccessToken, cert *x509.Certificate, forwardedHash string) bool {
	return p.Confirm(tok, cert, forwardedHash).Confirmed
}

// Confirm runs the binding policy for tok and reports every tier attempted.
func (p *Parser) Confirm(tok *AccessToken, cert *x509.Certificate, forwardedHash string) binding.Result {
	hash, ok := tok.X509CertHash()
	if !ok {
		if _, present := tok.ConfirmEntry(ConfirmX509CertHash); present {
			p.warn("Ignoring non-string x5t#S256 confirmation entry", "client_id", tok.ClientID)
		}
	}

	return p.policy.Confirm(binding.Input{
		ClientID:         tok.ClientID,
		IssuedAt:         tok.IssuedAt,
		ConfirmationHash: hash,
		HasConfirmation:  ok,
		Certificate:      cert,
		ForwardedHash:    forwardedHash,
	})
}

func (p *Parser) debug(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}

func (p *Parser) warn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}

func (p *Parser) logError(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Error(msg, args...)
	}
}

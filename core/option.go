package core

import (
	"errors"
	"fmt"
)

// Option is a function that configures the Core.
// Options return errors to enable validation during construction.
type Option func(*Core) error

// New creates a new Core instance with the provided options.
//
// The Core must be configured with a TokenParser using WithParser.
// All other options are optional and will use sensible defaults if not provided.
//
// Example:
//
//	core, err := core.New(
//	    core.WithParser(parser),
//	    core.WithBindingMode(core.BindingRequired),
//	    core.WithLogger(logger),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
func New(opts ...Option) (*Core, error) {
	c := &Core{
		credentialsOptional: false, // Secure default: require credentials
		bindingMode:         BindingAllowed,
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	if err := c.validate(); err != nil {
		return nil, err
	}

	return c, nil
}

// validate ensures all required fields are set.
func (c *Core) validate() error {
	if c.parser == nil {
		return NewValidationError(
			ErrorCodeParserNotSet,
			"token parser is required but not set (use WithParser option)",
			nil,
		)
	}
	return nil
}

// WithParser sets the token parser for the Core.
// This is a required option.
func WithParser(parser TokenParser) Option {
	return func(c *Core) error {
		if parser == nil {
			return errors.New("parser cannot be nil")
		}
		c.parser = parser
		return nil
	}
}

// WithCredentialsOptional configures whether credentials are optional.
//
// When set to true, requests without tokens will be allowed to proceed
// without validation. The token will be nil in the context.
//
// When set to false (default), requests without tokens will return ErrJWTMissing.
func WithCredentialsOptional(optional bool) Option {
	return func(c *Core) error {
		c.credentialsOptional = optional
		return nil
	}
}

// WithLogger sets an optional logger for the Core.
//
// Example:
//
//	logger := slog.Default()
//	core, _ := core.New(
//	    core.WithParser(parser),
//	    core.WithLogger(logger),
//	)
func WithLogger(logger Logger) Option {
	return func(c *Core) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		c.logger = logger
		return nil
	}
}

// WithBindingMode configures certificate binding enforcement.
//
// Modes:
//   - BindingAllowed (default): bearer tokens pass, bound tokens must confirm
//   - BindingRequired: every token must be bound and confirmed
//   - BindingDisabled: cnf is ignored
func WithBindingMode(mode BindingMode) Option {
	return func(c *Core) error {
		if mode < BindingAllowed || mode > BindingDisabled {
			return fmt.Errorf("invalid binding mode: %s", mode)
		}
		c.bindingMode = mode
		return nil
	}
}

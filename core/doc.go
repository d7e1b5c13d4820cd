/*
Package core provides framework-agnostic access token validation with mTLS
certificate binding that can be used across different transport layers
(HTTP, gRPC, etc.).

# Architecture

The core package implements the "Core" in the Core-Adapter pattern:

	┌──────────────────────────────────────────────┐
	│         Transport Adapters                   │
	│  (HTTP, gRPC, Gin, Echo - Framework Specific)│
	│  extract token, TLS peer cert, proxy hash    │
	└────────────────┬─────────────────────────────┘
	                 │
	                 ▼
	┌──────────────────────────────────────────────┐
	│          Core Engine (THIS PACKAGE)          │
	│  • Credentials Optional Logic                │
	│  • Binding Mode Enforcement                  │
	│  • Logger Integration                        │
	└────────────────┬─────────────────────────────┘
	                 │
	                 ▼
	┌──────────────────────────────────────────────┐
	│          token.Parser                        │
	│  (verification, fields, binding policy)      │
	└──────────────────────────────────────────────┘

# Basic Usage

	parser, err := token.NewParser(
	    token.WithValidatorOptions(validator.WithKeyResolver(provider)),
	)
	if err != nil {
	    log.Fatal(err)
	}

	c, err := core.New(
	    core.WithParser(parser),
	    core.WithBindingMode(core.BindingAllowed),
	)
	if err != nil {
	    log.Fatal(err)
	}

	tok, bindingCtx, err := c.CheckToken(ctx, tokenString, peerCert, forwardedHash)

# Binding Modes

  - BindingAllowed: bearer tokens pass; tokens with cnf x5t#S256 must be
    confirmed against the client certificate
  - BindingRequired: only confirmed certificate-bound tokens pass
  - BindingDisabled: cnf is ignored

# Error Handling

	tok, _, err := c.CheckToken(ctx, tokenString, cert, "")
	if err != nil {
	    if errors.Is(err, core.ErrJWTMissing) {
	        // Token missing
	    }
	    if errors.Is(err, binding.ErrCertificateBinding) {
	        // Token is bound to another certificate
	    }

	    var validationErr *core.ValidationError
	    if errors.As(err, &validationErr) {
	        switch validationErr.Code {
	        case core.ErrorCodeMTLSBindingMismatch:
	        case core.ErrorCodeInvalidSignature:
	        }
	    }
	}

# Context Helpers

	ctx = core.SetClaims(ctx, tok)
	ctx = core.SetBindingContext(ctx, bindingCtx)

	tok, err := core.GetClaims[*token.AccessToken](ctx)
	if core.IsCertificateBound(ctx) {
	    fmt.Println(core.GetBindingContext(ctx).Tier)
	}
*/
package core

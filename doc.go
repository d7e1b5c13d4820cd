/*
Package mtlsmiddleware verifies mTLS certificate-bound access tokens
(RFC 8705) on HTTP requests.

A request is accepted when its bearer token has a valid signature and claims
and, if the token carries an x5t#S256 confirmation, the client certificate
confirms it. Confirmation is decided by a binding.Policy which tries, in
order, the certificate thumbprint, the certificate principal within a
rotation window, and a certificate hash forwarded by a trusted proxy.

# Quick Start

	provider, err := jwks.NewCachingProvider(jwks.WithIssuerURL(issuerURL))
	if err != nil {
	    log.Fatal(err)
	}

	parser, err := token.NewParser(
	    token.WithValidatorOptions(
	        validator.WithKeyResolver(provider),
	        validator.WithIssuer(issuerURL.String()),
	        validator.WithAudience("payments"),
	    ),
	)
	if err != nil {
	    log.Fatal(err)
	}

	middleware, err := mtlsmiddleware.New(mtlsmiddleware.WithParser(parser))
	if err != nil {
	    log.Fatal(err)
	}

	http.Handle("/api/", middleware.CheckToken(apiHandler))

	server := &http.Server{
	    Addr:      ":4443",
	    TLSConfig: &tls.Config{ClientAuth: tls.VerifyClientCertIfGiven, ClientCAs: pool},
	}
	log.Fatal(server.ListenAndServeTLS("server.pem", "server.key"))

Inside the handler:

	tok, err := mtlsmiddleware.GetAccessToken(r.Context())
	if err != nil {
	    http.Error(w, "no token", http.StatusInternalServerError)
	    return
	}
	if bc := mtlsmiddleware.GetBindingContext(r.Context()); bc != nil {
	    log.Printf("%s confirmed by %s", tok.ClientID, bc.Tier)
	}

# Binding Modes

WithBindingMode selects the enforcement:
  - core.BindingAllowed (default): bearer tokens pass; bound tokens must confirm
  - core.BindingRequired: every token must be bound and confirmed
  - core.BindingDisabled: cnf is ignored

# Proxies

Behind a TLS-terminating proxy the connection certificate is the proxy's
own. WithTrustedProxies, WithRFC9440Proxy, WithEnvoyProxy and WithNginxProxy
read the client certificate or its hash from forwarding headers. Restrict
which proxies may forward a hash with binding.WithAllowedProxyPrincipals on
the parser's policy.

# Errors

DefaultErrorHandler answers 400 for missing or malformed credentials, 401
for invalid or unconfirmed tokens, and 500 otherwise. 400 and 401 responses
carry a WWW-Authenticate Bearer challenge and a JSON ErrorResponse whose
error_code is the core.ValidationError code.

# Observability

WithLogger accepts *slog.Logger or the zap, zerolog and logrus adapters.
WithMetrics takes a PrometheusMetrics and WithTracer an OpenTelemetryTracer.
*/
package mtlsmiddleware

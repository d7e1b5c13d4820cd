// Package grpc provides gRPC server interceptors for mTLS-bound access
// tokens.
//
// The token is read from the "authorization" metadata and the client
// certificate from the TLS peer of the call. A token carrying a cnf
// x5t#S256 claim is only accepted when the binding policy confirms it
// against that certificate.
//
// # Basic Usage
//
//	parser, err := token.NewParser(
//	    token.WithValidatorOptions(
//	        validator.WithKeyResolver(provider),
//	        validator.WithIssuer("https://zts.example.com/zts/v1"),
//	    ),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	interceptor, err := mtlsgrpc.New(
//	    mtlsgrpc.WithParser(parser),
//	    mtlsgrpc.WithBindingMode(core.BindingRequired),
//	    mtlsgrpc.WithExcludedMethods("/grpc.health.v1.Health/Check"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	server := grpc.NewServer(
//	    grpc.Creds(credentials.NewTLS(&tls.Config{ClientAuth: tls.RequireAndVerifyClientCert})),
//	    grpc.UnaryInterceptor(interceptor.UnaryServerInterceptor()),
//	    grpc.StreamInterceptor(interceptor.StreamServerInterceptor()),
//	)
//
// Handlers read the token with GetAccessToken and the binding with
// GetBindingContext.
//
// # Errors
//
// DefaultErrorHandler returns InvalidArgument for unreadable metadata,
// Unauthenticated for missing or rejected tokens and Internal otherwise.
package grpc

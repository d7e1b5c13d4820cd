/*
Package oidc discovers the JWKS endpoint of a token issuer.

The issuer publishes a discovery document under its own path:

	https://zts.example.com/zts/v1/.well-known/openid-configuration

Only the issuer and jwks_uri members are read. The document's issuer must
match the issuer it was fetched for, so a discovery endpoint cannot redirect
key resolution to another issuer's keys.

	issuerURL, _ := url.Parse("https://zts.example.com/zts/v1")
	endpoints, err := oidc.GetWellKnownEndpointsFromIssuerURL(ctx, client, *issuerURL, issuerURL.String())
	if err != nil {
	    return err
	}
	jwksURI := endpoints.JWKSURI
*/
package oidc

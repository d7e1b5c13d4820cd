/*
Package validator verifies compact JWS tokens using the lestrrat-go/jwx v3
library and exposes their claims.

Verification resolves the key from the token's kid header and (unverified)
iss claim through a KeyResolver, checks the signature against an algorithm
allow-list, and validates exp, nbf and iat with an optional clock skew. The
issuer, audience and typ header are checked when configured.

# Claims

A successful Verify returns *VerifiedClaims: the registered Claims plus every
other claim by name through Claim, which decodes into any Go value:

	claims, err := v.Verify(ctx, tokenString)
	if err != nil {
	    return err
	}
	var scope []string
	if _, err := claims.Claim("scp", &scope); err != nil {
	    return err // *ClaimError
	}

Claims is meant to be embedded by token types that add their own fields.

# Errors

  - ErrSignatureVerification: malformed token, unresolvable key, disallowed
    algorithm, bad signature or failed registered-claim validation
  - ErrClaimParsing: a claim had an unexpected JSON type (*ClaimError)
  - ErrKeyNotFound: returned by resolvers that hold no key for the kid

# Key Resolution

	v, err := validator.New(validator.WithPublicKey(&privateKey.PublicKey))

	v, err := validator.New(validator.WithKeyResolver(validator.KeyMap{
	    "key-1": &key1.PublicKey,
	}))

See the jwks package for JWKS-backed resolvers.
*/
package validator

package validator

import (
	"fmt"

	"github.com/lestrrat-go/jwx/v3/jwa"
)

// SignatureAlgorithm is a JWS signature algorithm name.
type SignatureAlgorithm string

// Signature algorithms
const (
	EdDSA = SignatureAlgorithm("EdDSA")
	HS256 = SignatureAlgorithm("HS256") // HMAC using SHA-256
	HS384 = SignatureAlgorithm("HS384") // HMAC using SHA-384
	HS512 = SignatureAlgorithm("HS512") // HMAC using SHA-512
	RS256 = SignatureAlgorithm("RS256") // RSASSA-PKCS-v1.5 using SHA-256
	RS384 = SignatureAlgorithm("RS384") // RSASSA-PKCS-v1.5 using SHA-384
	RS512 = SignatureAlgorithm("RS512") // RSASSA-PKCS-v1.5 using SHA-512
	ES256 = SignatureAlgorithm("ES256") // ECDSA using P-256 and SHA-256
	ES384 = SignatureAlgorithm("ES384") // ECDSA using P-384 and SHA-384
	ES512 = SignatureAlgorithm("ES512") // ECDSA using P-521 and SHA-512
	PS256 = SignatureAlgorithm("PS256") // RSASSA-PSS using SHA256 and MGF1-SHA256
	PS384 = SignatureAlgorithm("PS384") // RSASSA-PSS using SHA384 and MGF1-SHA384
	PS512 = SignatureAlgorithm("PS512") // RSASSA-PSS using SHA512 and MGF1-SHA512
)

// asymmetricAlgorithms is the default allow-list. HMAC algorithms must be
// enabled explicitly with WithAlgorithms.
var asymmetricAlgorithms = []SignatureAlgorithm{
	EdDSA,
	RS256, RS384, RS512,
	ES256, ES384, ES512,
	PS256, PS384, PS512,
}

// JWX returns the jwx representation of the algorithm.
func (a SignatureAlgorithm) JWX() (jwa.SignatureAlgorithm, error) {
	switch a {
	case EdDSA:
		return jwa.EdDSA(), nil
	case HS256:
		return jwa.HS256(), nil
	case HS384:
		return jwa.HS384(), nil
	case HS512:
		return jwa.HS512(), nil
	case RS256:
		return jwa.RS256(), nil
	case RS384:
		return jwa.RS384(), nil
	case RS512:
		return jwa.RS512(), nil
	case ES256:
		return jwa.ES256(), nil
	case ES384:
		return jwa.ES384(), nil
	case ES512:
		return jwa.ES512(), nil
	case PS256:
		return jwa.PS256(), nil
	case PS384:
		return jwa.PS384(), nil
	case PS512:
		return jwa.PS512(), nil
	default:
		return jwa.SignatureAlgorithm{}, fmt.Errorf("unsupported signature algorithm: %s", a)
	}
}

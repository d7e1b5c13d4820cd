package binding

import (
	"errors"
	"fmt"
	"strings"
)

// Tier identifies one of the confirmation checks.
type Tier int

const (
	// TierNone means no tier confirmed the token.
	TierNone Tier = iota

	// TierHash compares the certificate thumbprint with x5t#S256.
	TierHash

	// TierPrincipal accepts a rotated certificate for the token's client.
	TierPrincipal

	// TierProxy compares a proxy-forwarded hash with x5t#S256.
	TierProxy
)

// String returns a string representation of the tier.
func (t Tier) String() string {
	switch t {
	case TierNone:
		return "none"
	case TierHash:
		return "hash"
	case TierPrincipal:
		return "principal"
	case TierProxy:
		return "proxy"
	default:
		return fmt.Sprintf("Tier(%d)", t)
	}
}

// Reasons reported in Result.Reason when confirmation fails.
const (
	ReasonNoCertificate  = "no client certificate"
	ReasonNoConfirmation = "token has no x5t#S256 confirmation"
	ReasonNoCommonName   = "certificate has no common name"
	ReasonAllTiersFailed = "no confirmation tier matched"
)

// Attempt records the outcome of a single tier.
type Attempt struct {
	Tier      Tier
	Confirmed bool
	Reason    string
}

// Result is the outcome of Policy.Confirm.
type Result struct {
	// Confirmed reports whether the token is bound to the certificate.
	Confirmed bool

	// Tier is the tier that confirmed the token, TierNone otherwise.
	Tier Tier

	// Attempts lists the tiers evaluated, in order.
	Attempts []Attempt

	// Reason explains a failed confirmation.
	Reason string
}

func (r *Result) attempt(tier Tier, confirmed bool, reason string) {
	r.Attempts = append(r.Attempts, Attempt{Tier: tier, Confirmed: confirmed, Reason: reason})
	if confirmed {
		r.Confirmed = true
		r.Tier = tier
	}
}

func (r Result) fail(reason string) Result {
	r.Confirmed = false
	r.Tier = TierNone
	r.Reason = reason
	return r
}

// Attempted reports whether the given tier was evaluated.
func (r Result) Attempted(tier Tier) bool {
	for _, a := range r.Attempts {
		if a.Tier == tier {
			return true
		}
	}
	return false
}

// ErrCertificateBinding is matched by every *Error.
var ErrCertificateBinding = errors.New("X.509 certificate confirmation failure")

// Error reports a token that could not be confirmed against the presented
// certificate. It carries the full Result for diagnostics.
type Error struct {
	Result Result
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(ErrCertificateBinding.Error())
	if e.Result.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Result.Reason)
	}
	for _, a := range e.Result.Attempts {
		if a.Reason == "" {
			continue
		}
		fmt.Fprintf(&b, "; %s: %s", a.Tier, a.Reason)
	}
	return b.String()
}

// Is allows the error to be compared with ErrCertificateBinding.
func (e *Error) Is(target error) bool {
	return target == ErrCertificateBinding
}

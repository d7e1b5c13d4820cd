package oidc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
)

// maxDiscoverySize bounds the discovery document read from the issuer.
const maxDiscoverySize = 1024 * 1024

// WellKnownEndpoints holds the well known OIDC endpoints
type WellKnownEndpoints struct {
	Issuer  string `json:"issuer"`
	JWKSURI string `json:"jwks_uri"`
}

// GetWellKnownEndpointsFromIssuerURL fetches the discovery document of
// issuerURL with client. When expectedIssuer is not empty the document's
// issuer must equal it, ignoring a trailing slash.
func GetWellKnownEndpointsFromIssuerURL(
	ctx context.Context,
	client *http.Client,
	issuerURL url.URL,
	expectedIssuer string,
) (*WellKnownEndpoints, error) {
	issuerURL.Path = path.Join(issuerURL.Path, ".well-known/openid-configuration")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, issuerURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("could not build request to get well known endpoints: %w", err)
	}

	r, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not get well known endpoints from url %s: %w", issuerURL.String(), err)
	}
	defer r.Body.Close()

	if r.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("well known endpoints request to %s returned status %d", issuerURL.String(), r.StatusCode)
	}

	var wkEndpoints WellKnownEndpoints
	if err := json.NewDecoder(io.LimitReader(r.Body, maxDiscoverySize)).Decode(&wkEndpoints); err != nil {
		return nil, fmt.Errorf("could not decode json body when getting well known endpoints: %w", err)
	}

	if wkEndpoints.JWKSURI == "" {
		return nil, fmt.Errorf("well known endpoints from %s have no jwks_uri", issuerURL.String())
	}

	if expectedIssuer != "" && strings.TrimSuffix(wkEndpoints.Issuer, "/") != strings.TrimSuffix(expectedIssuer, "/") {
		return nil, fmt.Errorf("discovery issuer %q does not match expected issuer %q", wkEndpoints.Issuer, expectedIssuer)
	}

	return &wkEndpoints, nil
}

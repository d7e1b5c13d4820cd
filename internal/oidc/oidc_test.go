package oidc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestServer creates a test HTTP server that returns the specified response code and body.
func setupTestServer(t *testing.T, responseCode int, responseBody string) *url.URL {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/zts/v1/.well-known/openid-configuration", r.URL.Path)
		w.WriteHeader(responseCode)
		_, _ = w.Write([]byte(responseBody))
	}))
	t.Cleanup(server.Close)

	issuerURL, err := url.Parse(server.URL + "/zts/v1")
	require.NoError(t, err)
	return issuerURL
}

func TestGetWellKnownEndpointsFromIssuerURL(t *testing.T) {
	tests := []struct {
		name           string
		responseCode   int
		responseBody   string
		expectedIssuer string
		errContains    string
	}{
		{
			name:           "valid document",
			responseCode:   http.StatusOK,
			responseBody:   `{"issuer":"https://athenz.example.com/zts/v1","jwks_uri":"https://athenz.example.com/zts/v1/oauth2/keys"}`,
			expectedIssuer: "https://athenz.example.com/zts/v1/",
		},
		{
			name:         "issuer not checked when not expected",
			responseCode: http.StatusOK,
			responseBody: `{"jwks_uri":"https://athenz.example.com/zts/v1/oauth2/keys"}`,
		},
		{
			name:           "issuer mismatch",
			responseCode:   http.StatusOK,
			responseBody:   `{"issuer":"https://attacker.example.com/","jwks_uri":"https://attacker.example.com/keys"}`,
			expectedIssuer: "https://athenz.example.com/zts/v1",
			errContains:    "does not match expected issuer",
		},
		{
			name:         "missing jwks_uri",
			responseCode: http.StatusOK,
			responseBody: `{"issuer":"https://athenz.example.com/zts/v1"}`,
			errContains:  "have no jwks_uri",
		},
		{
			name:         "not found",
			responseCode: http.StatusNotFound,
			responseBody: `{"error": "not found"}`,
			errContains:  "returned status 404",
		},
		{
			name:         "malformed JSON",
			responseCode: http.StatusOK,
			responseBody: `{"jwks_uri": "https://example.com/jwks"`,
			errContains:  "could not decode json body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issuerURL := setupTestServer(t, tt.responseCode, tt.responseBody)

			endpoints, err := GetWellKnownEndpointsFromIssuerURL(context.Background(), http.DefaultClient, *issuerURL, tt.expectedIssuer)
			if tt.errContains != "" {
				assert.ErrorContains(t, err, tt.errContains)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, "https://athenz.example.com/zts/v1/oauth2/keys", endpoints.JWKSURI)
		})
	}
}

func TestGetWellKnownEndpoints_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer server.Close()

	client := &http.Client{Timeout: 50 * time.Millisecond}
	issuerURL, _ := url.Parse(server.URL)

	_, err := GetWellKnownEndpointsFromIssuerURL(context.Background(), client, *issuerURL, "")
	assert.ErrorContains(t, err, "could not get well known endpoints")
}

package mtlsmiddleware

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/certbind/go-mtls-middleware/binding"
	"github.com/certbind/go-mtls-middleware/core"
)

func TestDefaultErrorHandler(t *testing.T) {
	tests := []struct {
		name                 string
		err                  error
		wantStatus           int
		wantError            string
		wantErrorDescription string
		wantErrorCode        string
	}{
		{
			name:                 "missing token",
			err:                  ErrJWTMissing,
			wantStatus:           http.StatusBadRequest,
			wantError:            "invalid_request",
			wantErrorDescription: "The access token is missing",
			wantErrorCode:        "token_missing",
		},
		{
			name:                 "malformed credentials",
			err:                  core.NewValidationError(core.ErrorCodeTokenMalformed, "error extracting token", errors.New("bad header")),
			wantStatus:           http.StatusBadRequest,
			wantError:            "invalid_request",
			wantErrorDescription: "The access token is malformed",
			wantErrorCode:        "token_malformed",
		},
		{
			name:                 "invalid signature",
			err:                  core.NewValidationError(core.ErrorCodeInvalidSignature, "invalid signature", nil),
			wantStatus:           http.StatusUnauthorized,
			wantError:            "invalid_token",
			wantErrorDescription: "The access token could not be verified",
			wantErrorCode:        "invalid_signature",
		},
		{
			name:                 "invalid claims",
			err:                  core.NewValidationError(core.ErrorCodeInvalidClaims, "invalid claims", nil),
			wantStatus:           http.StatusUnauthorized,
			wantError:            "invalid_token",
			wantErrorDescription: "The access token claims are invalid",
			wantErrorCode:        "invalid_claims",
		},
		{
			name:                 "key not found",
			err:                  core.NewValidationError(core.ErrorCodeJWKSKeyNotFound, "key not found", nil),
			wantStatus:           http.StatusUnauthorized,
			wantError:            "invalid_token",
			wantErrorDescription: "Unable to verify the access token",
			wantErrorCode:        "jwks_key_not_found",
		},
		{
			name: "binding mismatch",
			err: core.NewValidationError(core.ErrorCodeMTLSBindingMismatch, "mismatch",
				&binding.Error{Result: binding.Result{Reason: binding.ReasonAllTiersFailed}}),
			wantStatus:           http.StatusUnauthorized,
			wantError:            "invalid_token",
			wantErrorDescription: "The access token is not bound to the client certificate",
			wantErrorCode:        "mtls_binding_mismatch",
		},
		{
			name:                 "client certificate missing",
			err:                  core.NewValidationError(core.ErrorCodeClientCertificateMissing, "no cert", core.ErrClientCertificateMissing),
			wantStatus:           http.StatusUnauthorized,
			wantError:            "invalid_token",
			wantErrorDescription: "A client certificate is required for this access token",
			wantErrorCode:        "client_certificate_missing",
		},
		{
			name:                 "bearer not allowed",
			err:                  core.NewValidationError(core.ErrorCodeBearerNotAllowed, "bearer", core.ErrBearerNotAllowed),
			wantStatus:           http.StatusUnauthorized,
			wantError:            "invalid_token",
			wantErrorDescription: "A certificate-bound access token is required",
			wantErrorCode:        "bearer_not_allowed",
		},
		{
			name:                 "unknown validation code",
			err:                  core.NewValidationError("unknown_code", "unknown", nil),
			wantStatus:           http.StatusUnauthorized,
			wantError:            "invalid_token",
			wantErrorDescription: "The access token is invalid",
			wantErrorCode:        "unknown_code",
		},
		{
			name:                 "wrapped validation error",
			err:                  fmt.Errorf("outer: %w", core.NewValidationError(core.ErrorCodeInvalidClaims, "invalid", nil)),
			wantStatus:           http.StatusUnauthorized,
			wantError:            "invalid_token",
			wantErrorDescription: "The access token claims are invalid",
			wantErrorCode:        "invalid_claims",
		},
		{
			name:                 "bare ErrJWTInvalid",
			err:                  ErrJWTInvalid,
			wantStatus:           http.StatusUnauthorized,
			wantError:            "invalid_token",
			wantErrorDescription: "The access token is invalid",
		},
		{
			name:                 "internal error",
			err:                  assert.AnError,
			wantStatus:           http.StatusInternalServerError,
			wantError:            "server_error",
			wantErrorDescription: "An internal error occurred while processing the request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			DefaultErrorHandler(w, httptest.NewRequest(http.MethodGet, "/test", nil), tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			if tt.wantStatus == http.StatusInternalServerError {
				assert.Empty(t, w.Header().Get("WWW-Authenticate"))
			} else {
				assert.Equal(t,
					fmt.Sprintf(`Bearer error="%s", error_description="%s"`, tt.wantError, tt.wantErrorDescription),
					w.Header().Get("WWW-Authenticate"))
			}

			resp := decodeError(t, w)
			assert.Equal(t, tt.wantError, resp.Error)
			assert.Equal(t, tt.wantErrorDescription, resp.ErrorDescription)
			assert.Equal(t, tt.wantErrorCode, resp.ErrorCode)
		})
	}
}

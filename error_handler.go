package mtlsmiddleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/certbind/go-mtls-middleware/core"
)

// Sentinel errors re-exported from core so handlers can match them without
// importing it.
var (
	// ErrJWTMissing is returned when the access token is missing.
	ErrJWTMissing = core.ErrJWTMissing

	// ErrJWTInvalid is matched by every validation failure.
	ErrJWTInvalid = core.ErrJWTInvalid
)

// ErrorHandler is called when the Middleware rejects a request. err matches
// ErrJWTMissing or ErrJWTInvalid for token problems; any other error is an
// internal failure. A custom handler MUST write a response for every error.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// ErrorResponse is the JSON body written by DefaultErrorHandler.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	ErrorCode        string `json:"error_code,omitempty"`
}

// DefaultErrorHandler writes an RFC 6750 style response:
//   - missing token: 400 invalid_request
//   - malformed credentials: 400 invalid_request
//   - invalid token or failed certificate binding: 401 invalid_token
//   - anything else: 500 server_error
//
// 400 and 401 responses carry a WWW-Authenticate: Bearer challenge.
func DefaultErrorHandler(w http.ResponseWriter, _ *http.Request, err error) {
	status, resp := mapError(err)

	w.Header().Set("Content-Type", "application/json")
	if status != http.StatusInternalServerError {
		w.Header().Set("WWW-Authenticate", bearerChallenge(resp))
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func mapError(err error) (int, ErrorResponse) {
	if errors.Is(err, ErrJWTMissing) {
		return http.StatusBadRequest, ErrorResponse{
			Error:            "invalid_request",
			ErrorDescription: "The access token is missing",
			ErrorCode:        core.ErrorCodeTokenMissing,
		}
	}

	var validationErr *core.ValidationError
	if errors.As(err, &validationErr) {
		status := http.StatusUnauthorized
		errCode := "invalid_token"
		if validationErr.Code == core.ErrorCodeTokenMalformed {
			status = http.StatusBadRequest
			errCode = "invalid_request"
		}
		return status, ErrorResponse{
			Error:            errCode,
			ErrorDescription: describeCode(validationErr.Code),
			ErrorCode:        validationErr.Code,
		}
	}

	if errors.Is(err, ErrJWTInvalid) {
		return http.StatusUnauthorized, ErrorResponse{
			Error:            "invalid_token",
			ErrorDescription: "The access token is invalid",
		}
	}

	return http.StatusInternalServerError, ErrorResponse{
		Error:            "server_error",
		ErrorDescription: "An internal error occurred while processing the request",
	}
}

func describeCode(code string) string {
	switch code {
	case core.ErrorCodeTokenMalformed:
		return "The access token is malformed"
	case core.ErrorCodeInvalidSignature:
		return "The access token could not be verified"
	case core.ErrorCodeInvalidClaims:
		return "The access token claims are invalid"
	case core.ErrorCodeJWKSKeyNotFound:
		return "Unable to verify the access token"
	case core.ErrorCodeMTLSBindingMismatch:
		return "The access token is not bound to the client certificate"
	case core.ErrorCodeClientCertificateMissing:
		return "A client certificate is required for this access token"
	case core.ErrorCodeBearerNotAllowed:
		return "A certificate-bound access token is required"
	default:
		return "The access token is invalid"
	}
}

func bearerChallenge(resp ErrorResponse) string {
	return fmt.Sprintf(`Bearer error=%q, error_description=%q`, resp.Error, resp.ErrorDescription)
}

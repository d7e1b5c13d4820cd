package core

import (
	"context"
	"crypto/ecdsa"
	"crypto/x509"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certbind/go-mtls-middleware/binding"
	"github.com/certbind/go-mtls-middleware/internal/certtest"
	"github.com/certbind/go-mtls-middleware/token"
	"github.com/certbind/go-mtls-middleware/validator"
)

// mockParser is a mock implementation of TokenParser for testing.
type mockParser struct {
	parseFunc func(ctx context.Context, compact string) (*token.AccessToken, error)
}

func (m *mockParser) Parse(ctx context.Context, compact string) (*token.AccessToken, error) {
	if m.parseFunc != nil {
		return m.parseFunc(ctx, compact)
	}
	return nil, errors.New("not implemented")
}

func (m *mockParser) Confirm(*token.AccessToken, *x509.Certificate, string) binding.Result {
	return binding.Result{}
}

// mockLogger is a mock implementation of Logger for testing.
type mockLogger struct {
	debugCalls []logCall
	infoCalls  []logCall
	warnCalls  []logCall
	errorCalls []logCall
}

type logCall struct {
	msg  string
	args []any
}

func (m *mockLogger) Debug(msg string, args ...any) {
	m.debugCalls = append(m.debugCalls, logCall{msg, args})
}

func (m *mockLogger) Info(msg string, args ...any) {
	m.infoCalls = append(m.infoCalls, logCall{msg, args})
}

func (m *mockLogger) Warn(msg string, args ...any) {
	m.warnCalls = append(m.warnCalls, logCall{msg, args})
}

func (m *mockLogger) Error(msg string, args ...any) {
	m.errorCalls = append(m.errorCalls, logCall{msg, args})
}

type fixture struct {
	key        *ecdsa.PrivateKey
	parser     *token.Parser
	clientCert *x509.Certificate
	bound      string
	bearer     string
	numericCnf string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	key := certtest.NewSigningKey(t)
	parser, err := token.NewParser(token.WithValidatorOptions(validator.WithPublicKey(&key.PublicKey)))
	require.NoError(t, err)

	clientCert, _ := certtest.NewCertificate(t, certtest.Options{CommonName: "svc.A"})

	newToken := func() *token.AccessToken {
		now := time.Now().Add(-time.Minute)
		return &token.AccessToken{
			Claims:   validator.Claims{Subject: "user.joe", IssuedAt: now.Unix(), Expiry: now.Add(time.Hour).Unix()},
			ClientID: "svc.A",
		}
	}

	bearer, err := newToken().Sign(key, "0", validator.ES256)
	require.NoError(t, err)

	boundTok := newToken()
	require.NoError(t, boundTok.SetConfirmX509CertHash(clientCert))
	bound, err := boundTok.Sign(key, "0", validator.ES256)
	require.NoError(t, err)

	numericTok := newToken()
	numericTok.SetConfirmEntry(token.ConfirmX509CertHash, 42)
	numericCnf, err := numericTok.Sign(key, "0", validator.ES256)
	require.NoError(t, err)

	return &fixture{key: key, parser: parser, clientCert: clientCert, bound: bound, bearer: bearer, numericCnf: numericCnf}
}

func TestNew(t *testing.T) {
	parser := &mockParser{}

	t.Run("successful creation with required options", func(t *testing.T) {
		c, err := New(WithParser(parser))
		require.NoError(t, err)
		assert.False(t, c.credentialsOptional)
		assert.Equal(t, BindingAllowed, c.bindingMode)
	})

	t.Run("successful creation with all options", func(t *testing.T) {
		c, err := New(
			WithParser(parser),
			WithCredentialsOptional(true),
			WithLogger(&mockLogger{}),
			WithBindingMode(BindingRequired),
		)
		require.NoError(t, err)
		assert.True(t, c.credentialsOptional)
		assert.NotNil(t, c.logger)
		assert.Equal(t, BindingRequired, c.bindingMode)
	})

	t.Run("error when parser is missing", func(t *testing.T) {
		c, err := New()
		assert.Nil(t, c)
		assert.ErrorContains(t, err, "token parser is required")

		var validationErr *ValidationError
		require.True(t, errors.As(err, &validationErr))
		assert.Equal(t, ErrorCodeParserNotSet, validationErr.Code)
	})

	t.Run("error when parser is nil", func(t *testing.T) {
		_, err := New(WithParser(nil))
		assert.EqualError(t, err, "parser cannot be nil")
	})

	t.Run("error when logger is nil", func(t *testing.T) {
		_, err := New(WithParser(parser), WithLogger(nil))
		assert.EqualError(t, err, "logger cannot be nil")
	})

	t.Run("error on unknown binding mode", func(t *testing.T) {
		_, err := New(WithParser(parser), WithBindingMode(BindingMode(7)))
		assert.EqualError(t, err, "invalid binding mode: BindingMode(7)")
	})
}

func TestCore_CheckToken_Credentials(t *testing.T) {
	t.Run("missing token", func(t *testing.T) {
		logger := &mockLogger{}
		c, err := New(WithParser(&mockParser{}), WithLogger(logger))
		require.NoError(t, err)

		tok, bindingCtx, err := c.CheckToken(context.Background(), "", nil, "")
		assert.ErrorIs(t, err, ErrJWTMissing)
		assert.Nil(t, tok)
		assert.Nil(t, bindingCtx)
		assert.Len(t, logger.warnCalls, 1)
	})

	t.Run("missing token with optional credentials", func(t *testing.T) {
		c, err := New(WithParser(&mockParser{}), WithCredentialsOptional(true))
		require.NoError(t, err)

		tok, _, err := c.CheckToken(context.Background(), "", nil, "")
		assert.NoError(t, err)
		assert.Nil(t, tok)
	})

	parseErrors := []struct {
		name string
		err  error
		code string
	}{
		{"signature", fmt.Errorf("%w: bad", validator.ErrSignatureVerification), ErrorCodeInvalidSignature},
		{"claims", &validator.ClaimError{Claim: "scp", Err: errors.New("bad type")}, ErrorCodeInvalidClaims},
		{"unknown key", fmt.Errorf("%w: %w", validator.ErrSignatureVerification, validator.ErrKeyNotFound), ErrorCodeJWKSKeyNotFound},
	}
	for _, tc := range parseErrors {
		t.Run("parse error "+tc.name, func(t *testing.T) {
			logger := &mockLogger{}
			c, err := New(WithLogger(logger), WithParser(&mockParser{
				parseFunc: func(context.Context, string) (*token.AccessToken, error) { return nil, tc.err },
			}))
			require.NoError(t, err)

			_, _, err = c.CheckToken(context.Background(), "token", nil, "")

			var validationErr *ValidationError
			require.True(t, errors.As(err, &validationErr))
			assert.Equal(t, tc.code, validationErr.Code)
			assert.ErrorIs(t, err, ErrJWTInvalid)
			assert.ErrorIs(t, err, tc.err)
			assert.Len(t, logger.errorCalls, 1)
		})
	}
}

func TestCore_CheckToken_Binding(t *testing.T) {
	f := newFixture(t)
	otherCert, _ := certtest.NewCertificate(t, certtest.Options{CommonName: "svc.B"})

	testCases := []struct {
		name     string
		mode     BindingMode
		token    string
		cert     *x509.Certificate
		wantCode string
		wantTier binding.Tier
	}{
		{name: "allowed: bearer token", mode: BindingAllowed, token: f.bearer},
		{name: "allowed: bound token confirmed", mode: BindingAllowed, token: f.bound, cert: f.clientCert, wantTier: binding.TierHash},
		{name: "allowed: bound token without certificate", mode: BindingAllowed, token: f.bound, wantCode: ErrorCodeClientCertificateMissing},
		{name: "allowed: bound token with another certificate", mode: BindingAllowed, token: f.bound, cert: otherCert, wantCode: ErrorCodeMTLSBindingMismatch},
		{name: "required: bearer token", mode: BindingRequired, token: f.bearer, cert: f.clientCert, wantCode: ErrorCodeBearerNotAllowed},
		{name: "required: bound token confirmed", mode: BindingRequired, token: f.bound, cert: f.clientCert, wantTier: binding.TierHash},
		{name: "disabled: bound token with another certificate", mode: BindingDisabled, token: f.bound, cert: otherCert},
		{name: "allowed: non-string x5t#S256 is a bearer token", mode: BindingAllowed, token: f.numericCnf, cert: otherCert},
		{name: "required: non-string x5t#S256 is a bearer token", mode: BindingRequired, token: f.numericCnf, cert: f.clientCert, wantCode: ErrorCodeBearerNotAllowed},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := New(WithParser(f.parser), WithBindingMode(tc.mode))
			require.NoError(t, err)

			tok, bindingCtx, err := c.CheckToken(context.Background(), tc.token, tc.cert, "")

			if tc.wantCode != "" {
				var validationErr *ValidationError
				require.True(t, errors.As(err, &validationErr))
				assert.Equal(t, tc.wantCode, validationErr.Code)
				assert.Nil(t, tok)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, "svc.A", tok.ClientID)
			if tc.wantTier == binding.TierNone {
				assert.Nil(t, bindingCtx)
				return
			}
			require.NotNil(t, bindingCtx)
			assert.Equal(t, tc.wantTier, bindingCtx.Tier)
			assert.Equal(t, "svc.A", bindingCtx.CertificateSubject)
			assert.False(t, bindingCtx.Forwarded)
		})
	}

	t.Run("mismatch wraps the binding result", func(t *testing.T) {
		c, err := New(WithParser(f.parser))
		require.NoError(t, err)

		_, _, err = c.CheckToken(context.Background(), f.bound, otherCert, "")
		assert.ErrorIs(t, err, binding.ErrCertificateBinding)

		var bindErr *binding.Error
		require.True(t, errors.As(err, &bindErr))
		assert.Equal(t, binding.ReasonAllTiersFailed, bindErr.Result.Reason)
	})

	t.Run("forwarded hash from a proxy", func(t *testing.T) {
		c, err := New(WithParser(f.parser), WithBindingMode(BindingRequired))
		require.NoError(t, err)
		proxyCert, _ := certtest.NewCertificate(t, certtest.Options{CommonName: "sys.proxy"})
		tok, err := f.parser.Parse(context.Background(), f.bound)
		require.NoError(t, err)
		hash, _ := tok.X509CertHash()

		_, bindingCtx, err := c.CheckToken(context.Background(), f.bound, proxyCert, hash)
		require.NoError(t, err)
		assert.Equal(t, binding.TierProxy, bindingCtx.Tier)
		assert.True(t, bindingCtx.Forwarded)
		assert.Equal(t, "sys.proxy", bindingCtx.CertificateSubject)
		assert.Equal(t, hash, bindingCtx.Thumbprint)
	})
}

func TestBindingMode_String(t *testing.T) {
	assert.Equal(t, "BindingAllowed", BindingAllowed.String())
	assert.Equal(t, "BindingRequired", BindingRequired.String())
	assert.Equal(t, "BindingDisabled", BindingDisabled.String())
	assert.Equal(t, "BindingMode(9)", BindingMode(9).String())
}

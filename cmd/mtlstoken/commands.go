package main

import (
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	mtlsmiddleware "github.com/certbind/go-mtls-middleware"
	"github.com/certbind/go-mtls-middleware/binding"
	"github.com/certbind/go-mtls-middleware/internal/config"
	"github.com/certbind/go-mtls-middleware/token"
	"github.com/certbind/go-mtls-middleware/validator"
	"github.com/certbind/go-mtls-middleware/x509util"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mtlstoken",
		Short: "mTLS-bound access token tool",
		Long:  "Sign, verify and inspect access tokens bound to X.509 client certificates (RFC 8705).",
	}
	root.SilenceUsage = true
	root.SilenceErrors = true

	root.AddCommand(newThumbprintCmd(), newSignCmd(), newVerifyCmd())
	return root
}

func newThumbprintCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "thumbprint <cert.pem>",
		Short:   "Print the x5t#S256 thumbprint of a certificate",
		Example: "mtlstoken thumbprint client.crt",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cert, err := readCertificate(args[0])
			if err != nil {
				return err
			}
			hash, err := x509util.Thumbprint(cert)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func newSignCmd() *cobra.Command {
	var (
		keyFile   string
		keyID     string
		alg       string
		issuer    string
		audience  string
		subject   string
		clientID  string
		scopes    []string
		ttl       time.Duration
		certFile  string
		proxyName string
	)

	cmd := &cobra.Command{
		Use:     "sign",
		Short:   "Sign an access token, optionally bound to a certificate",
		Example: "mtlstoken sign --key signer.pem --issuer https://zts.example.com/zts/v1 --client-id svc.A --cert client.crt",
		RunE: func(cmd *cobra.Command, args []string) error {
			if keyFile == "" {
				return errors.New("--key is required")
			}
			if clientID == "" {
				return errors.New("--client-id is required")
			}
			if ttl <= 0 {
				return errors.New("--ttl must be positive")
			}

			key, err := config.LoadPrivateKey(keyFile)
			if err != nil {
				return err
			}

			now := time.Now()
			tok := &token.AccessToken{
				Claims: validator.Claims{
					Subject:  subject,
					IssuedAt: now.Unix(),
					Expiry:   now.Add(ttl).Unix(),
					Issuer:   issuer,
					Audience: audience,
					AuthTime: now.Unix(),
					Version:  1,
				},
				Scope:          scopes,
				ClientID:       clientID,
				ProxyPrincipal: proxyName,
			}
			if tok.Subject == "" {
				tok.Subject = clientID
			}

			if certFile != "" {
				cert, err := readCertificate(certFile)
				if err != nil {
					return err
				}
				if err := tok.SetConfirmX509CertHash(cert); err != nil {
					return err
				}
			}

			compact, err := tok.Sign(key, keyID, validator.SignatureAlgorithm(alg))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), compact)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&keyFile, "key", "", "PEM private key")
	flags.StringVar(&keyID, "kid", "", "Key id written to the JWS header")
	flags.StringVar(&alg, "alg", string(validator.ES256), "Signature algorithm")
	flags.StringVar(&issuer, "issuer", "", "iss claim")
	flags.StringVar(&audience, "audience", "", "aud claim")
	flags.StringVar(&subject, "subject", "", "sub claim (default: client id)")
	flags.StringVar(&clientID, "client-id", "", "client_id claim")
	flags.StringSliceVar(&scopes, "scope", nil, "scp claim entries")
	flags.DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	flags.StringVar(&certFile, "cert", "", "PEM certificate to bind the token to")
	flags.StringVar(&proxyName, "proxy", "", "proxy claim")
	return cmd
}

type verifyResult struct {
	Valid     bool               `json:"valid"`
	Token     *token.AccessToken `json:"token,omitempty"`
	Bound     bool               `json:"bound"`
	Confirmed bool               `json:"confirmed"`
	Tier      string             `json:"tier,omitempty"`
	Attempts  []string           `json:"attempts,omitempty"`
	Error     string             `json:"error,omitempty"`
}

func newVerifyCmd() *cobra.Command {
	var (
		configFile    string
		certFile      string
		forwardedHash string
		verbose       bool
	)

	cmd := &cobra.Command{
		Use:     "verify <token>",
		Short:   "Verify an access token and its certificate binding",
		Example: "mtlstoken verify --config verifier.yaml --cert client.crt \"$TOKEN\"",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}

			logger, err := newLogger(cfg.LogLevel, verbose)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			adapter := mtlsmiddleware.NewZapLogger(logger)

			validatorOpts, err := cfg.ValidatorOptions()
			if err != nil {
				return err
			}
			policy, err := binding.New(cfg.BindingOptions(adapter)...)
			if err != nil {
				return err
			}
			parser, err := token.NewParser(
				token.WithValidatorOptions(validatorOpts...),
				token.WithPolicy(policy),
				token.WithLogger(adapter),
			)
			if err != nil {
				return err
			}

			result := verify(cmd, parser, strings.TrimSpace(args[0]), certFile, forwardedHash)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return err
			}
			if !result.Valid {
				return errors.New("token verification failed")
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configFile, "config", "", "Verifier YAML config (MTLSTOKEN_* variables override it)")
	flags.StringVar(&certFile, "cert", "", "PEM client certificate presented with the token")
	flags.StringVar(&forwardedHash, "forwarded-hash", "", "x5t#S256 forwarded by a proxy")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Log binding decisions to stderr")
	return cmd
}

func verify(cmd *cobra.Command, parser *token.Parser, compact, certFile, forwardedHash string) verifyResult {
	tok, err := parser.Parse(cmd.Context(), compact)
	if err != nil {
		return verifyResult{Error: err.Error()}
	}

	_, bound := tok.X509CertHash()
	result := verifyResult{Valid: true, Token: tok, Bound: bound}
	if certFile == "" {
		return result
	}

	cert, err := readCertificate(certFile)
	if err != nil {
		return verifyResult{Token: tok, Bound: bound, Error: err.Error()}
	}

	res := parser.Confirm(tok, cert, forwardedHash)
	result.Confirmed = res.Confirmed
	for _, a := range res.Attempts {
		if a.Confirmed {
			result.Attempts = append(result.Attempts, a.Tier.String()+": confirmed")
			continue
		}
		result.Attempts = append(result.Attempts, a.Tier.String()+": "+a.Reason)
	}
	if res.Confirmed {
		result.Tier = res.Tier.String()
		return result
	}

	result.Valid = false
	result.Error = (&binding.Error{Result: res}).Error()
	return result
}

func newLogger(level string, verbose bool) (*zap.Logger, error) {
	if !verbose {
		return zap.NewNop(), nil
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

func readCertificate(path string) (*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return x509util.ParsePEM(data)
}

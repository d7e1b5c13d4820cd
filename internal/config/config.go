// Package config loads the verifier configuration used by the mtlstoken
// command from YAML with MTLSTOKEN_* environment overrides.
package config

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"

	"github.com/certbind/go-mtls-middleware/binding"
	"github.com/certbind/go-mtls-middleware/core"
	"github.com/certbind/go-mtls-middleware/jwks"
	"github.com/certbind/go-mtls-middleware/validator"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MTLSTOKEN_"

type Config struct {
	Issuer           string   `yaml:"issuer"`
	Audience         string   `yaml:"audience"`
	JWKSURL          string   `yaml:"jwksUrl"`
	PublicKeyFile    string   `yaml:"publicKeyFile"`
	Algorithms       []string `yaml:"algorithms"`
	ClockSkewSeconds int      `yaml:"clockSkewSeconds"`
	JWKSCacheSeconds int      `yaml:"jwksCacheSeconds"`
	RedisAddr        string   `yaml:"redisAddr"`

	// CertOffsetSeconds is the rotation window of the principal check.
	// Nil uses binding.DefaultCertOffset; zero disables the check.
	CertOffsetSeconds *int     `yaml:"certOffsetSeconds"`
	ProxyPrincipals   []string `yaml:"proxyPrincipals"`
	BindingMode       string   `yaml:"bindingMode"`
	LogLevel          string   `yaml:"logLevel"`
}

// Load reads the YAML file at path, applies environment overrides and
// defaults, and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	if err := c.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	env := func(name string) string {
		v, _ := lookup(EnvPrefix + name)
		return strings.TrimSpace(v)
	}
	atoi := func(name string, dst *int) error {
		v := env(name)
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = n
		return nil
	}

	if v := env("ISSUER"); v != "" {
		c.Issuer = v
	}
	if v := env("AUDIENCE"); v != "" {
		c.Audience = v
	}
	if v := env("JWKS_URL"); v != "" {
		c.JWKSURL = v
	}
	if v := env("PUBLIC_KEY_FILE"); v != "" {
		c.PublicKeyFile = v
	}
	if v := env("ALGORITHMS"); v != "" {
		c.Algorithms = splitList(v)
	}
	if v := env("REDIS_ADDR"); v != "" {
		c.RedisAddr = v
	}
	// Set but empty restricts proxies to none.
	if v, ok := lookup(EnvPrefix + "PROXY_PRINCIPALS"); ok {
		c.ProxyPrincipals = splitList(v)
	}
	if v := env("BINDING_MODE"); v != "" {
		c.BindingMode = v
	}
	if v := env("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if err := atoi("CLOCK_SKEW_SECONDS", &c.ClockSkewSeconds); err != nil {
		return err
	}
	if err := atoi("JWKS_CACHE_SECONDS", &c.JWKSCacheSeconds); err != nil {
		return err
	}
	if env("CERT_OFFSET_SECONDS") != "" {
		var offset int
		if err := atoi("CERT_OFFSET_SECONDS", &offset); err != nil {
			return err
		}
		c.CertOffsetSeconds = &offset
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.BindingMode == "" {
		c.BindingMode = "allowed"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.JWKSCacheSeconds <= 0 {
		c.JWKSCacheSeconds = 900
	}
}

// Validate reports configuration errors that would only surface at
// verification time.
func (c *Config) Validate() error {
	if c.Issuer == "" {
		return errors.New("issuer is required")
	}
	if c.PublicKeyFile == "" && c.JWKSURL == "" {
		if _, err := url.ParseRequestURI(c.Issuer); err != nil {
			return fmt.Errorf("issuer must be a URL when no publicKeyFile or jwksUrl is set: %w", err)
		}
	}
	if c.PublicKeyFile != "" && c.JWKSURL != "" {
		return errors.New("publicKeyFile and jwksUrl are mutually exclusive")
	}
	if c.ClockSkewSeconds < 0 {
		return errors.New("clockSkewSeconds cannot be negative")
	}
	if c.CertOffsetSeconds != nil && *c.CertOffsetSeconds < 0 {
		return errors.New("certOffsetSeconds cannot be negative")
	}
	if _, err := c.Mode(); err != nil {
		return err
	}
	return nil
}

// Mode returns the configured core.BindingMode.
func (c *Config) Mode() (core.BindingMode, error) {
	switch strings.ToLower(c.BindingMode) {
	case "", "allowed":
		return core.BindingAllowed, nil
	case "required":
		return core.BindingRequired, nil
	case "disabled":
		return core.BindingDisabled, nil
	default:
		return 0, fmt.Errorf("unknown binding mode %q (want allowed, required or disabled)", c.BindingMode)
	}
}

// BindingOptions returns the binding.Policy options described by c.
func (c *Config) BindingOptions(logger binding.Logger) []binding.Option {
	var opts []binding.Option
	if c.CertOffsetSeconds != nil {
		opts = append(opts, binding.WithCertOffset(time.Duration(*c.CertOffsetSeconds)*time.Second))
	}
	// A non-nil empty list rejects every proxy.
	if c.ProxyPrincipals != nil {
		opts = append(opts, binding.WithAllowedProxyPrincipals(c.ProxyPrincipals...))
	}
	if logger != nil {
		opts = append(opts, binding.WithLogger(logger))
	}
	return opts
}

// ValidatorOptions returns the validator options described by c. The key
// is loaded from PublicKeyFile, or resolved through a JWKS provider that
// caches in Redis when RedisAddr is set.
func (c *Config) ValidatorOptions() ([]validator.Option, error) {
	opts := []validator.Option{validator.WithIssuer(c.Issuer)}

	if c.Audience != "" {
		opts = append(opts, validator.WithAudience(c.Audience))
	}
	if len(c.Algorithms) > 0 {
		algs := make([]validator.SignatureAlgorithm, 0, len(c.Algorithms))
		for _, alg := range c.Algorithms {
			algs = append(algs, validator.SignatureAlgorithm(alg))
		}
		opts = append(opts, validator.WithAlgorithms(algs...))
	}
	if c.ClockSkewSeconds > 0 {
		opts = append(opts, validator.WithAllowedClockSkew(time.Duration(c.ClockSkewSeconds)*time.Second))
	}

	if c.PublicKeyFile != "" {
		key, err := LoadPublicKey(c.PublicKeyFile)
		if err != nil {
			return nil, err
		}
		return append(opts, validator.WithPublicKey(key)), nil
	}

	provider, err := c.keyProvider()
	if err != nil {
		return nil, err
	}
	return append(opts, validator.WithKeyResolver(provider)), nil
}

func (c *Config) keyProvider() (*jwks.CachingProvider, error) {
	issuerURL, err := url.Parse(c.Issuer)
	if err != nil {
		return nil, fmt.Errorf("invalid issuer URL: %w", err)
	}

	ttl := time.Duration(c.JWKSCacheSeconds) * time.Second
	opts := []any{jwks.WithIssuerURL(issuerURL), jwks.WithCacheTTL(ttl)}

	if c.JWKSURL != "" {
		jwksURL, err := url.Parse(c.JWKSURL)
		if err != nil {
			return nil, fmt.Errorf("invalid jwksUrl: %w", err)
		}
		opts = append(opts, jwks.WithCustomJWKSURI(jwksURL))
	}

	if c.RedisAddr != "" {
		cache, err := jwks.NewRedisCache(
			redis.NewClient(&redis.Options{Addr: c.RedisAddr}),
			jwks.WithRedisTTL(ttl),
		)
		if err != nil {
			return nil, err
		}
		opts = append(opts, jwks.WithCache(cache))
	}

	return jwks.NewCachingProvider(opts...)
}

// LoadPublicKey reads a PEM encoded public key, or derives it from a PEM
// encoded private key.
func LoadPublicKey(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	key, err := jwk.ParseKey(data, jwk.WithPEM(true))
	if err != nil {
		return nil, fmt.Errorf("failed to parse key %s: %w", path, err)
	}
	pub, err := jwk.PublicKeyOf(key)
	if err != nil {
		return nil, fmt.Errorf("failed to derive public key from %s: %w", path, err)
	}

	var raw any
	if err := jwk.Export(pub, &raw); err != nil {
		return nil, fmt.Errorf("failed to export key %s: %w", path, err)
	}
	return raw, nil
}

// LoadPrivateKey reads a PEM encoded private key.
func LoadPrivateKey(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	key, err := jwk.ParseKey(data, jwk.WithPEM(true))
	if err != nil {
		return nil, fmt.Errorf("failed to parse key %s: %w", path, err)
	}
	var raw any
	if err := jwk.Export(key, &raw); err != nil {
		return nil, fmt.Errorf("failed to export key %s: %w", path, err)
	}
	switch raw.(type) {
	case *ecdsa.PrivateKey, *rsa.PrivateKey, ed25519.PrivateKey:
		return raw, nil
	default:
		return nil, fmt.Errorf("%s does not hold a private key", path)
	}
}

func splitList(v string) []string {
	out := []string{}
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

package app

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/aussiebroadwan/taskbridge/internal/auth/domain"
	"github.com/aussiebroadwan/taskbridge/internal/broker"
	"github.com/aussiebroadwan/taskbridge/pkg/cryptox"
	"github.com/aussiebroadwan/taskbridge/pkg/httpx"
	"github.com/aussiebroadwan/taskbridge/pkg/jwtx"
)

// PlatformConfig holds the OAuth app registered with a platform.
type PlatformConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string // defaults to {issuer}/platforms/{platform}/callback
}

func (p PlatformConfig) enabled() bool { return p.ClientID != "" || p.ClientSecret != "" }

type Config struct {
	Issuer     string // Required: base URL, the iss claim of every token
	ResourceID string // Optional: aud of access tokens (default: issuer)

	SigningKeyFile       string // Path to the private signing key PEM
	SigningKey           string // Inline private key PEM, used when no file is set
	PublicKeyFile        string // Optional: must match the private key
	SigningKeyID         string // Optional: kid (default: derived from the public key)
	VerifyKeysFile       string // Optional: JWKS of extra verification-only keys
	KeyAlgorithm         string // Algorithm for generated dev keys (default: ES256)
	KeyGracePeriod       time.Duration
	TrustedDomains       []string // Redirect hosts that may auto-register clients
	AllowPlainPKCE       bool
	RotateRefresh        bool
	DatabaseFile         string // SQLite database path (default: ./taskbridge.db)
	PasswordPepper       string
	PepperFile           string // Read when PasswordPepper is empty
	EncryptionKey        string // 64 hex characters, AES-256 key for platform tokens
	SeedFile             string // Optional: JSON users and clients applied at startup
	Zoom                 PlatformConfig
	Asana                PlatformConfig
	RefreshSkew          time.Duration
	BrokerTimeout        time.Duration
	RedisURL             string // Optional: shares refresh leases between instances
	Env                  string // Environment (dev, staging, prod) (default: dev)
	LogLevel             string // Log level (debug, info, warn, error) (default: info)
	LogFormat            string // Log format (json, text) (default: json)
	Port                 int    // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration
	HousekeepingInterval time.Duration
	RateLimits           httpx.RateLimits // RATELIMIT_* overrides
}

// LoadConfig reads the environment. A .env file in the working directory
// is loaded first when present; real environment variables win.
func LoadConfig() Config {
	_ = godotenv.Load()

	cfg := Config{
		Issuer:               strings.TrimSuffix(os.Getenv("AUTH_ISSUER"), "/"),
		ResourceID:           os.Getenv("AUTH_RESOURCE_ID"),
		SigningKeyFile:       os.Getenv("AUTH_SIGNING_KEY_FILE"),
		SigningKey:           os.Getenv("AUTH_SIGNING_KEY"),
		PublicKeyFile:        os.Getenv("AUTH_PUBLIC_KEY_FILE"),
		SigningKeyID:         os.Getenv("AUTH_SIGNING_KEY_ID"),
		VerifyKeysFile:       os.Getenv("AUTH_VERIFY_KEYS_FILE"),
		KeyAlgorithm:         getEnvOrDefault("AUTH_ALGORITHM", jwtx.AlgorithmES256),
		KeyGracePeriod:       getEnvDurationOrDefault("AUTH_KEY_GRACE_PERIOD", jwtx.AccessTokenTTL),
		TrustedDomains:       splitList(os.Getenv("AUTH_TRUSTED_REDIRECT_DOMAINS")),
		AllowPlainPKCE:       getEnvBoolOrDefault("AUTH_ALLOW_PLAIN_PKCE", false),
		RotateRefresh:        getEnvBoolOrDefault("AUTH_ROTATE_REFRESH_TOKENS", false),
		DatabaseFile:         getEnvOrDefault("AUTH_DATABASE_FILE", "taskbridge.db"),
		PasswordPepper:       os.Getenv("AUTH_PASSWORD_PEPPER"),
		PepperFile:           os.Getenv("AUTH_PEPPER_FILE"),
		EncryptionKey:        os.Getenv("TOKEN_ENCRYPTION_KEY"),
		SeedFile:             os.Getenv("AUTH_SEED_FILE"),
		RefreshSkew:          getEnvDurationOrDefault("BROKER_REFRESH_SKEW", broker.DefaultRefreshSkew),
		BrokerTimeout:        getEnvDurationOrDefault("BROKER_HTTP_TIMEOUT", broker.DefaultHTTPTimeout),
		RedisURL:             os.Getenv("REDIS_URL"),
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
		RateLimits:           httpx.LoadRateLimits(os.Getenv),
		Zoom: PlatformConfig{
			ClientID:     os.Getenv("ZOOM_CLIENT_ID"),
			ClientSecret: os.Getenv("ZOOM_CLIENT_SECRET"),
			RedirectURI:  os.Getenv("ZOOM_REDIRECT_URI"),
		},
		Asana: PlatformConfig{
			ClientID:     os.Getenv("ASANA_CLIENT_ID"),
			ClientSecret: os.Getenv("ASANA_CLIENT_SECRET"),
			RedirectURI:  os.Getenv("ASANA_REDIRECT_URI"),
		},
	}

	if cfg.Issuer == "" && cfg.IsDev() {
		cfg.Issuer = fmt.Sprintf("http://localhost:%d", cfg.Port)
	}
	if cfg.ResourceID == "" {
		cfg.ResourceID = cfg.Issuer
	}
	for p, pc := range map[domain.Platform]*PlatformConfig{domain.PlatformZoom: &cfg.Zoom, domain.PlatformAsana: &cfg.Asana} {
		if pc.RedirectURI == "" && cfg.Issuer != "" {
			pc.RedirectURI = cfg.Issuer + "/platforms/" + string(p) + "/callback"
		}
	}

	return cfg
}

// IsDev reports whether generated keys and secrets are acceptable.
func (c Config) IsDev() bool { return c.Env == "dev" }

func (c Config) hasKeyMaterial() bool { return c.SigningKeyFile != "" || c.SigningKey != "" }

// ConfigurationError names the setting that prevents startup.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration_error: " + e.Key + ": " + e.Reason
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	bad := func(key, reason string) { errs = append(errs, &ConfigurationError{Key: key, Reason: reason}) }

	if c.Issuer == "" {
		bad("AUTH_ISSUER", "is required")
	} else if u, err := url.Parse(c.Issuer); err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		bad("AUTH_ISSUER", "must be an absolute http(s) URL")
	} else if u.Scheme == "http" && !c.IsDev() {
		bad("AUTH_ISSUER", "must use https outside dev")
	}

	if !c.hasKeyMaterial() && !c.IsDev() {
		bad("AUTH_SIGNING_KEY_FILE", "a signing key is required outside dev")
	}
	if c.PublicKeyFile != "" && !c.hasKeyMaterial() {
		bad("AUTH_PUBLIC_KEY_FILE", "set without a private key")
	}

	if c.PasswordPepper == "" && c.PepperFile == "" && !c.IsDev() {
		bad("AUTH_PASSWORD_PEPPER", "is required outside dev")
	}

	switch {
	case c.EncryptionKey == "" && !c.IsDev():
		bad("TOKEN_ENCRYPTION_KEY", "is required outside dev")
	case c.EncryptionKey != "":
		if b, err := hex.DecodeString(c.EncryptionKey); err != nil || len(b) != cryptox.TokenKeySize {
			bad("TOKEN_ENCRYPTION_KEY", "must be 64 hex characters")
		}
	}

	for _, pl := range []struct {
		name string
		pc   PlatformConfig
	}{{"ZOOM", c.Zoom}, {"ASANA", c.Asana}} {
		name, pc := pl.name, pl.pc
		if !pc.enabled() {
			continue
		}
		if pc.ClientID == "" || pc.ClientSecret == "" {
			bad(name+"_CLIENT_ID", "client id and secret must both be set")
		}
		if u, err := url.Parse(pc.RedirectURI); err != nil || u.Host == "" {
			bad(name+"_REDIRECT_URI", "must be an absolute URL")
		}
	}

	if c.RedisURL != "" {
		if _, err := redis.ParseURL(c.RedisURL); err != nil {
			bad("REDIS_URL", err.Error())
		}
	}
	if c.RefreshSkew <= 0 {
		bad("BROKER_REFRESH_SKEW", "must be positive")
	}
	if c.BrokerTimeout <= 0 {
		bad("BROKER_HTTP_TIMEOUT", "must be positive")
	}
	if c.Port <= 0 || c.Port > 65535 {
		bad("PORT", "must be between 1 and 65535")
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		bad("LOG_FORMAT", "must be json or text")
	}

	return errors.Join(errs...)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are seconds
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}

// splitList parses "a.com, b.com" into ["a.com" "b.com"].
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

package app

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/user"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/project-penguin/notify-console/internal/credstore"
	"github.com/project-penguin/notify-console/internal/dispatch"
)

// LogFormat represents the logging output format.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// CredentialScope represents where the bearer token lives.
type CredentialScope string

const (
	// CredentialScopeProcess shares one in-memory token across all
	// requests. Single-tenant deployments only.
	CredentialScopeProcess CredentialScope = "process"
	// CredentialScopeSession keeps the token in an HTTP-only cookie per
	// browser session.
	CredentialScopeSession CredentialScope = "session"
)

// KeySourceType represents where the static API key is resolved from.
type KeySourceType string

const (
	KeySourceTypeConfig  KeySourceType = "config"
	KeySourceTypeKeyring KeySourceType = "keyring"
)

// KeyringService identifies this application in the OS keyring.
const KeyringService = "notify-console"

// Default configuration values
const (
	DefaultConfigLogFormat       = LogFormatText
	DefaultConfigServerHost      = "0.0.0.0"
	DefaultConfigServerPort      = 3000
	DefaultConfigShutdownTimeout = 5 * time.Second
	DefaultConfigBackendBaseURL  = "http://localhost:8000"
	DefaultConfigBackendTimeout  = 30 * time.Second
	DefaultConfigAuthScope       = CredentialScopeProcess
	DefaultConfigAuthKeySource   = KeySourceTypeConfig
	DefaultConfigCookieName      = "notify_token"
	DefaultConfigCookieMaxAge    = time.Hour
)

// defaultRecoveryProbes is the declared extractor order: a designated
// header first, then the two body field spellings the backend has used.
var defaultRecoveryProbes = []string{
	"header:X-Refresh-Token",
	"body:access_token",
	"body:token",
}

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	Host string `json:"host" validate:"hostname_rfc1123|ip"`
	Port uint16 `json:"port"` // Port range 0-65535 handled by uint16 type
}

// ShutdownConfig holds shutdown behavior configuration.
type ShutdownConfig struct {
	// Timeout for graceful shutdown.
	Timeout time.Duration `json:"timeout"`
}

// BackendConfig holds the requestor API configuration.
type BackendConfig struct {
	BaseURL string        `json:"base_url" validate:"required,url"`
	Timeout time.Duration `json:"timeout"`
}

// CookieConfig holds the session token cookie settings (session scope).
type CookieConfig struct {
	Name   string        `json:"name"`
	MaxAge time.Duration `json:"max_age"`
	// Secure is tied to the deployment environment: true behind TLS.
	Secure bool `json:"secure"`
}

// AuthConfig describes the credential handling: token scope, static API
// key resolution, and the token recovery policy.
type AuthConfig struct {
	Scope CredentialScope `json:"scope" validate:"required,oneof=process session"`

	// APIKey is the static key when key_source is "config".
	APIKey string `json:"api_key,omitempty"`

	// KeySource selects where the API key comes from.
	KeySource   KeySourceType `json:"key_source" validate:"required,oneof=config keyring"`
	KeyringUser string        `json:"keyring_user,omitempty"` // For keyring source: user identifier

	// RecoverOnForbidden also treats 403 as a recoverable auth failure.
	// Only for backends known to use 403 for stale tokens.
	RecoverOnForbidden bool `json:"recover_on_forbidden"`

	// RecoveryProbes is the ordered token extractor list, entries of the
	// form "header:<Name>" or "body:<field>".
	RecoveryProbes []string `json:"recovery_probes"`

	Cookie CookieConfig `json:"cookie"`
}

// NewKeySource creates a KeySource from the authentication configuration.
func (a *AuthConfig) NewKeySource() (credstore.KeySource, error) {
	switch a.KeySource {
	case KeySourceTypeConfig:
		return credstore.LiteralKeySource(a.APIKey), nil
	case KeySourceTypeKeyring:
		return credstore.NewKeyringKeySource(KeyringService, a.KeyringUser)
	default:
		return nil, fmt.Errorf("unsupported key source: %s", a.KeySource)
	}
}

// Policy builds the dispatcher recovery policy from the configuration.
func (a *AuthConfig) Policy() (dispatch.Policy, error) {
	extractors, err := dispatch.ParseExtractors(a.RecoveryProbes)
	if err != nil {
		return dispatch.Policy{}, err
	}

	statuses := []int{http.StatusUnauthorized}
	if a.RecoverOnForbidden {
		statuses = append(statuses, http.StatusForbidden)
	}

	return dispatch.Policy{
		RecoverableStatuses: statuses,
		Extractors:          extractors,
	}, nil
}

// Config holds the application's configuration.
type Config struct {
	// LogLevel for logging output (defaults to Info if unset).
	LogLevel  slog.Level     `json:"log_level"`
	LogFormat LogFormat      `json:"log_format" validate:"oneof=text json"`
	Server    ServerConfig   `json:"server"`
	Shutdown  ShutdownConfig `json:"shutdown"`
	Backend   BackendConfig  `json:"backend"`
	Auth      AuthConfig     `json:"auth"`
}

// Default creates a new Config with default values applied.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills unset config fields with sensible defaults.
func (c *Config) ApplyDefaults() error {
	if c.LogFormat == "" {
		c.LogFormat = DefaultConfigLogFormat
	}
	if c.Server.Host == "" {
		c.Server.Host = DefaultConfigServerHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultConfigServerPort
	}
	if c.Shutdown.Timeout == 0 {
		c.Shutdown.Timeout = DefaultConfigShutdownTimeout
	}
	if c.Backend.BaseURL == "" {
		c.Backend.BaseURL = DefaultConfigBackendBaseURL
	}
	if c.Backend.Timeout == 0 {
		c.Backend.Timeout = DefaultConfigBackendTimeout
	}
	if c.Auth.Scope == "" {
		c.Auth.Scope = DefaultConfigAuthScope
	}
	if c.Auth.KeySource == "" {
		c.Auth.KeySource = DefaultConfigAuthKeySource
	}
	if len(c.Auth.RecoveryProbes) == 0 {
		c.Auth.RecoveryProbes = defaultRecoveryProbes
	}
	if c.Auth.Cookie.Name == "" {
		c.Auth.Cookie.Name = DefaultConfigCookieName
	}
	if c.Auth.Cookie.MaxAge == 0 {
		c.Auth.Cookie.MaxAge = DefaultConfigCookieMaxAge
	}

	// Dynamic defaults based on key source
	if c.Auth.KeySource == KeySourceTypeKeyring && c.Auth.KeyringUser == "" {
		currentUser, err := user.Current()
		if err != nil {
			return fmt.Errorf("auth.keyring_user required (auto-detect failed: %w)", err)
		}
		c.Auth.KeyringUser = currentUser.Username
	}

	return nil
}

// Validate validates the configuration using struct tags and enum values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	if c.Auth.KeySource == KeySourceTypeKeyring && c.Auth.KeyringUser == "" {
		return errors.New("keyring_user required for keyring key source")
	}

	// Catch malformed probe specs before the dispatcher is built
	if _, err := dispatch.ParseExtractors(c.Auth.RecoveryProbes); err != nil {
		return err
	}

	if c.Auth.Scope == CredentialScopeSession && c.Auth.Cookie.Name == "" {
		return errors.New("cookie name required for session scope")
	}

	return nil
}

// Package config provides configuration types and loading for Threadgate.
//
// Settings are loaded once at process start from threadgate.yaml plus
// THREADGATE_* environment variables, validated, and then passed explicitly
// into every component constructor. Nothing reads configuration as ambient
// global state after startup.
package config

import (
	"time"
)

// Settings is the top-level configuration for the gateway.
type Settings struct {
	// Server configures the HTTP listener.
	Server ServerSettings `yaml:"server" mapstructure:"server"`

	// Auth configures local JWT verification against the external issuer.
	Auth AuthSettings `yaml:"auth" mapstructure:"auth"`

	// Agent configures the upstream agent runtime.
	Agent AgentSettings `yaml:"agent" mapstructure:"agent"`

	// Security configures the defensive middleware chain.
	Security SecuritySettings `yaml:"security" mapstructure:"security"`

	// Admin configures the admin aggregation surface.
	Admin AdminSettings `yaml:"admin" mapstructure:"admin"`

	// Directory configures the beta user directory store.
	Directory DirectorySettings `yaml:"directory" mapstructure:"directory"`

	// Telemetry configures tracing.
	Telemetry TelemetrySettings `yaml:"telemetry" mapstructure:"telemetry"`

	// Environment selects deployment-dependent behavior such as the CSP
	// string and HSTS. Anything other than "production" is treated as a
	// non-production environment by the security header set.
	Environment string `yaml:"environment" mapstructure:"environment" validate:"required,oneof=development staging production"`

	// LogLevel sets the slog level (debug, info, warn, error).
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// ServerSettings configures the HTTP server listener.
type ServerSettings struct {
	// Addr is the listen address, e.g. "127.0.0.1:8000".
	Addr string `yaml:"addr" mapstructure:"addr" validate:"required"`
}

// AuthSettings configures local bearer-token verification. The signing
// secret is shared with the external token issuer; verification never
// calls out.
type AuthSettings struct {
	// JWTSecret is the shared HMAC-SHA256 signing secret.
	JWTSecret string `yaml:"jwt_secret" mapstructure:"jwt_secret"`
	// JWTIssuer is the expected "iss" claim value.
	JWTIssuer string `yaml:"jwt_issuer" mapstructure:"jwt_issuer" validate:"required"`
}

// AgentSettings configures the upstream agent runtime connection.
type AgentSettings struct {
	// URL is the base URL of the runtime's REST API.
	URL string `yaml:"url" mapstructure:"url" validate:"required,url"`
	// APIKey is sent as X-Api-Key on every runtime call when set.
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
	// AssistantID selects the assistant graph for runs.
	AssistantID string `yaml:"assistant_id" mapstructure:"assistant_id" validate:"required"`
	// Timeout bounds non-streaming runtime calls (e.g. "30s").
	Timeout string `yaml:"timeout" mapstructure:"timeout" validate:"required,duration"`
}

// SecuritySettings configures the defensive middleware chain.
type SecuritySettings struct {
	// TrustedProxies lists proxy networks (CIDR) whose forwarding headers
	// are honored. When empty every peer is untrusted and the headers are
	// always stripped.
	TrustedProxies []string `yaml:"trusted_proxies" mapstructure:"trusted_proxies" validate:"omitempty,dive,cidr"`
	// MaxBodyBytes caps the declared request body size.
	MaxBodyBytes int64 `yaml:"max_body_bytes" mapstructure:"max_body_bytes" validate:"min=1"`
	// RequestTimeout is the advisory request duration ceiling; requests
	// exceeding 80% of it are logged as slow (e.g. "30s"). The monitor
	// never cancels requests.
	RequestTimeout string `yaml:"request_timeout" mapstructure:"request_timeout" validate:"required,duration"`
}

// AdminSettings configures the admin aggregation surface.
type AdminSettings struct {
	// ThreadLimit is the page size for upstream conversation search.
	ThreadLimit int `yaml:"thread_limit" mapstructure:"thread_limit" validate:"min=1,max=1000"`
	// PreviewLength is the thread title truncation length in runes.
	PreviewLength int `yaml:"preview_length" mapstructure:"preview_length" validate:"min=1"`
}

// DirectorySettings configures the beta user directory store.
type DirectorySettings struct {
	// Path is the SQLite database file backing the directory. Empty
	// selects the in-memory store (development/tests).
	Path string `yaml:"path" mapstructure:"path"`
}

// TelemetrySettings configures tracing.
type TelemetrySettings struct {
	// TracingEnabled turns on the stdout span exporter.
	TracingEnabled bool `yaml:"tracing_enabled" mapstructure:"tracing_enabled"`
}

// Default returns the settings baseline before file/env overrides.
func Default() Settings {
	return Settings{
		Server: ServerSettings{
			Addr: "127.0.0.1:8000",
		},
		Auth: AuthSettings{
			JWTIssuer: "",
		},
		Agent: AgentSettings{
			AssistantID: "agent",
			Timeout:     "30s",
		},
		Security: SecuritySettings{
			MaxBodyBytes:   10 * 1024 * 1024,
			RequestTimeout: "30s",
		},
		Admin: AdminSettings{
			ThreadLimit:   50,
			PreviewLength: 50,
		},
		Environment: "development",
		LogLevel:    "info",
	}
}

// AgentTimeout returns the parsed agent call timeout. Validation
// guarantees the string parses; the fallback covers hand-built Settings in
// tests.
func (s *Settings) AgentTimeout() time.Duration {
	d, err := time.ParseDuration(s.Agent.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// SecurityRequestTimeout returns the parsed advisory request ceiling.
func (s *Settings) SecurityRequestTimeout() time.Duration {
	d, err := time.ParseDuration(s.Security.RequestTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// IsProduction reports whether the deployment environment is production.
func (s *Settings) IsProduction() bool {
	return s.Environment == "production"
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// InitViper initializes Viper with the configuration file and environment
// variables. If configFile is empty, it searches for threadgate.yaml/.yml
// in standard locations. The search requires an explicit YAML extension to
// avoid matching the binary itself.
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		// No config file found in any standard location. Set name/type
		// without search paths so ReadInConfig returns
		// ConfigFileNotFoundError (handled gracefully by callers).
		viper.SetConfigName("threadgate")
		viper.SetConfigType("yaml")
	}

	// Environment variable support: THREADGATE_AUTH_JWT_SECRET etc.
	viper.SetEnvPrefix("THREADGATE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindNestedEnvKeys()
	setDefaults()
}

// findConfigFile searches standard locations for a threadgate config file
// with an explicit .yaml or .yml extension.
func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{
		".",
		filepath.Join(home, ".threadgate"),
		"/etc/threadgate",
	}
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "threadgate"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindNestedEnvKeys binds all config keys for environment variable
// support. AutomaticEnv alone does not see nested keys that are absent
// from the config file.
func bindNestedEnvKeys() {
	keys := []string{
		"server.addr",
		"auth.jwt_secret",
		"auth.jwt_issuer",
		"agent.url",
		"agent.api_key",
		"agent.assistant_id",
		"agent.timeout",
		"security.trusted_proxies",
		"security.max_body_bytes",
		"security.request_timeout",
		"admin.thread_limit",
		"admin.preview_length",
		"directory.path",
		"telemetry.tracing_enabled",
		"environment",
		"log_level",
	}
	for _, k := range keys {
		_ = viper.BindEnv(k)
	}
}

// setDefaults seeds Viper with the settings baseline.
func setDefaults() {
	d := Default()
	viper.SetDefault("server.addr", d.Server.Addr)
	viper.SetDefault("agent.assistant_id", d.Agent.AssistantID)
	viper.SetDefault("agent.timeout", d.Agent.Timeout)
	viper.SetDefault("security.max_body_bytes", d.Security.MaxBodyBytes)
	viper.SetDefault("security.request_timeout", d.Security.RequestTimeout)
	viper.SetDefault("admin.thread_limit", d.Admin.ThreadLimit)
	viper.SetDefault("admin.preview_length", d.Admin.PreviewLength)
	viper.SetDefault("environment", d.Environment)
	viper.SetDefault("log_level", d.LogLevel)
}

// Load reads and unmarshals the configuration without validating it, so
// CLI flags can override values before Validate runs. A missing config
// file is not an error; defaults plus environment variables apply.
func Load() (*Settings, error) {
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var s Settings
	if err := viper.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &s, nil
}

// ConfigFileUsed returns the path of the loaded config file, if any.
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}

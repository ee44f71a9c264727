package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/threadgate/threadgate/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Print the effective configuration as YAML, after file and
environment overrides. Secrets are redacted.`,
	RunE: runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	settings, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	redacted := *settings
	if redacted.Auth.JWTSecret != "" {
		redacted.Auth.JWTSecret = "[redacted]"
	}
	if redacted.Agent.APIKey != "" {
		redacted.Agent.APIKey = "[redacted]"
	}

	out, err := yaml.Marshal(redacted)
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}
	if file := config.ConfigFileUsed(); file != "" {
		fmt.Printf("# loaded from %s\n", file)
	}
	fmt.Print(string(out))
	return nil
}

// Package cmd provides the CLI commands for threadgate.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/threadgate/threadgate/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "threadgate",
	Short: "threadgate - authenticated streaming gateway for an AI agent runtime",
	Long: `threadgate fronts an AI agent runtime with bearer-token authentication,
an admin role gate, defensive request middleware, and a server-sent-event
relay for live agent output.

Quick start:
  1. Create a config file: threadgate.yaml
  2. Run: threadgate start

Configuration:
  Config is loaded from threadgate.yaml in the current directory,
  $HOME/.threadgate/, or /etc/threadgate/.

  Environment variables can override config values with the THREADGATE_ prefix.
  Example: THREADGATE_SERVER_ADDR=:9090

Commands:
  start       Start the gateway server
  config      Print the effective configuration
  token       Mint a development bearer token
  version     Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./threadgate.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	httpadapter "github.com/threadgate/threadgate/internal/adapter/inbound/http"
	"github.com/threadgate/threadgate/internal/adapter/outbound/langgraph"
	"github.com/threadgate/threadgate/internal/adapter/outbound/memory"
	"github.com/threadgate/threadgate/internal/adapter/outbound/sqlite"
	"github.com/threadgate/threadgate/internal/config"
	"github.com/threadgate/threadgate/internal/domain/auth"
	"github.com/threadgate/threadgate/internal/port/outbound"
	"github.com/threadgate/threadgate/internal/service"
	"github.com/threadgate/threadgate/internal/telemetry"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the gateway server",
	Long: `Start the threadgate gateway server.

The gateway verifies bearer tokens locally against the configured signing
secret and relays conversation turns to the upstream agent runtime.

Examples:
  # Start with config file settings
  threadgate start

  # Start with a specific config file
  threadgate --config /path/to/config.yaml start`,
	RunE: runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	settings, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	// stop() restores default signal handling so a second Ctrl+C does a hard kill.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		stop()
	}()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(settings.LogLevel),
	}))
	slog.SetDefault(logger)

	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}

	shutdownTracing, err := telemetry.SetupProvider(ctx, telemetry.Config{
		ServiceName: "threadgate",
		Environment: settings.Environment,
		Enabled:     settings.Telemetry.TracingEnabled,
	})
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	decoder := auth.NewDecoder(settings.Auth.JWTSecret, settings.Auth.JWTIssuer, logger)

	runtime := langgraph.NewClient(settings.Agent.URL, settings.Agent.AssistantID,
		langgraph.WithAPIKey(settings.Agent.APIKey),
		langgraph.WithTimeout(settings.AgentTimeout()),
		langgraph.WithLogger(logger),
	)

	directory, closeDirectory, err := openDirectory(settings, logger)
	if err != nil {
		return err
	}
	defer closeDirectory()

	transport := httpadapter.NewTransport(settings,
		decoder,
		service.NewRelayService(runtime, logger),
		service.NewConversationService(runtime, logger),
		service.NewAdminService(runtime, settings.Admin.ThreadLimit, settings.Admin.PreviewLength, logger),
		service.NewBetaService(directory, logger),
		httpadapter.WithLogger(logger),
		httpadapter.WithVersion(Version),
	)

	logger.Info("threadgate starting",
		"version", Version,
		"environment", settings.Environment,
		"agent_url", settings.Agent.URL)

	return transport.Start(ctx)
}

// openDirectory picks the beta-signup store: SQLite when a path is
// configured, in-memory otherwise.
func openDirectory(settings *config.Settings, logger *slog.Logger) (outbound.Directory, func(), error) {
	if settings.Directory.Path == "" {
		logger.Info("using in-memory user directory")
		return memory.NewDirectory(), func() {}, nil
	}
	dir, err := sqlite.Open(settings.Directory.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open user directory: %w", err)
	}
	logger.Info("using sqlite user directory", "path", settings.Directory.Path)
	return dir, func() {
		if err := dir.Close(); err != nil {
			logger.Warn("directory close failed", "error", err)
		}
	}, nil
}

// parseLogLevel converts a string log level to slog.Level.
// Returns slog.LevelInfo for unrecognized values.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

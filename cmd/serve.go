package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/teemow/telepipe/internal/attr"
	"github.com/teemow/telepipe/internal/instrumentation"
	"github.com/teemow/telepipe/internal/server"
)

// serveSource is the source of the log entries the serve command writes.
const serveSource = "telepipe"

func newServeCmd() *cobra.Command {
	var (
		config      configFlags
		adminAddr   string
		watchConfig bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the telemetry pipeline and the admin server",
		Long: `Run the telemetry export pipeline until interrupted.

The admin server exposes:
  - /metrics: Prometheus text format of the aggregated metrics
  - /healthz, /readyz, /healthz/detailed: health probes and export statistics
  - /logs, /logs/level, /logs/stream: log history, runtime level and a
    websocket stream of the history

When --config is given, the log level and logging switch are reloaded
whenever the file changes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.resolve(cmd)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("admin-addr") {
				adminAddr = getEnvOrDefault("TELEPIPE_ADMIN_ADDR", adminAddr)
			}
			watchPath := ""
			if watchConfig {
				watchPath = config.configPath
			}
			return runServe(cfg, adminAddr, watchPath)
		},
	}

	config.register(cmd)
	cmd.Flags().StringVar(&adminAddr, "admin-addr", server.DefaultAdminAddr, "Admin server address. Can also use TELEPIPE_ADMIN_ADDR env var.")
	cmd.Flags().BoolVar(&watchConfig, "watch-config", true, "Reload the log level when the --config file changes")

	return cmd
}

func runServe(config instrumentation.Config, adminAddr, watchPath string) error {
	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	provider, err := instrumentation.NewProvider(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		// ctx is already cancelled here; the final flush gets its own deadline.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			slog.Error("Error during instrumentation shutdown", "error", err)
		}
	}()

	if err := provider.Start(ctx); err != nil {
		return fmt.Errorf("failed to start export pipeline: %w", err)
	}

	adminServer, err := server.NewAdminServer(server.AdminServerConfig{
		Addr:     adminAddr,
		Provider: provider,
	})
	if err != nil {
		return fmt.Errorf("failed to create admin server: %w", err)
	}

	var watcher *instrumentation.ConfigWatcher
	if watchPath != "" {
		watcher, err = instrumentation.NewConfigWatcher(watchPath, provider, nil)
		if err != nil {
			return err
		}
		defer func() { _ = watcher.Stop() }()
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := adminServer.Start(); err != nil {
			return fmt.Errorf("admin server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		return adminServer.Shutdown(shutdownCtx)
	})

	if watcher != nil {
		g.Go(func() error {
			watcher.Start(gctx)
			return nil
		})
	}

	provider.Logger().Info(ctx, "Telemetry pipeline started", attr.Map{
		"service":  attr.StringValue(config.ServiceName),
		"version":  attr.StringValue(config.ServiceVersion),
		"exporter": attr.StringValue(exporterName(config)),
		"admin":    attr.StringValue(adminAddr),
	}, serveSource)

	if err := g.Wait(); err != nil {
		return err
	}

	provider.Logger().Info(context.Background(), "Telemetry pipeline stopped", nil, serveSource)
	return nil
}

// exporterName describes where telemetry goes, for the startup entry.
func exporterName(config instrumentation.Config) string {
	if !config.Export.Enabled {
		return instrumentation.ExporterNone
	}
	if config.Export.Exporter == instrumentation.ExporterOTLP {
		return config.Export.Exporter + " (" + config.Export.Protocol + ")"
	}
	return config.Export.Exporter
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/filevault/backupd/internal/adminhttp"
	"github.com/filevault/backupd/internal/logger"
	"github.com/filevault/backupd/internal/metrics"
	"github.com/filevault/backupd/internal/server"
	"github.com/filevault/backupd/internal/stats"
	"github.com/filevault/backupd/internal/telemetry"
	"github.com/filevault/backupd/pkg/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the backup protocol server",
	Long: `Run the backup protocol server with the specified configuration.

Use --config to point at a custom configuration file; otherwise
$BACKUPD_CONFIG or ./backupd.yaml is used, falling back to built-in
defaults.

Examples:
  backupd serve
  backupd serve --config /etc/backupd/backupd.yaml
  BACKUPD_LOGGING_LEVEL=DEBUG backupd serve`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "backupd",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", logger.Err(err))
		}
	}()

	profilingShutdown, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Profiling.Enabled,
		ServiceName:    cfg.Profiling.AppName,
		ServiceVersion: Version,
		ServerAddress:  cfg.Profiling.ServerAddress,
	})
	if err != nil {
		return fmt.Errorf("init profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", logger.Err(err))
		}
	}()

	logger.Info("configuration loaded", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	if telemetry.IsEnabled() {
		logger.Info("telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("profiling enabled", "server_address", cfg.Profiling.ServerAddress)
	}

	serverStats := stats.New()

	var promReg *prometheus.Registry
	if cfg.Metrics.Enabled {
		promReg = metrics.InitRegistry()
		promReg.MustRegister(metrics.NewCollector(serverStats))
	}

	srv := server.New(server.Config{
		Port:            int(cfg.Server.Port),
		FilesDir:        cfg.Server.FilesDir,
		MaxFileSize:     cfg.Server.MaxFileSize.Int64(),
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, serverStats)

	adminSrv := adminhttp.New(cfg.Metrics.ListenAddr, srv.Registry(), promReg)
	go func() {
		if err := adminSrv.ListenAndServe(); err != nil {
			logger.Error("admin http server error", logger.Err(err))
		}
	}()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()
		_ = adminSrv.Shutdown(shutdownCtx)
	}()

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Serve(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("backupd is running, press Ctrl+C to stop")

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("shutdown signal received, initiating graceful shutdown")
		cancel()

		if err := <-serverDone; err != nil {
			logger.Error("server shutdown error", logger.Err(err))
			return err
		}
		logger.Info("server stopped gracefully")

	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("server error", logger.Err(err))
			return err
		}
		logger.Info("server stopped")
	}

	return nil
}

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/filevault/backupd/internal/bytesize"
)

// ApplyDefaults fills in zero-valued fields with sensible defaults. It is
// called after unmarshaling so that explicit values from file/env
// always win.
func ApplyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)
	applyLoggingDefaults(&cfg.Logging)
	applyMetricsDefaults(&cfg.Metrics)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyProfilingDefaults(&cfg.Profiling)

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Port == 0 {
		cfg.Port = 1256
		if data, err := os.ReadFile("port.info"); err == nil {
			if p, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 16); err == nil && p > 0 {
				cfg.Port = uint16(p)
			}
		}
	}
	if cfg.FilesDir == "" {
		cfg.FilesDir = "server_files"
	}
	if cfg.MaxFileSize == 0 {
		cfg.MaxFileSize = 64 * bytesize.MiB
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)
	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":9090"
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
}

func applyProfilingDefaults(cfg *ProfilingConfig) {
	if cfg.ServerAddress == "" {
		cfg.ServerAddress = "http://localhost:4040"
	}
	if cfg.AppName == "" {
		cfg.AppName = "backupd"
	}
}

// GetDefaultConfig returns a Config with every default applied, the
// starting point Load mutates with whatever a config file overrides.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

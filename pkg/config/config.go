// Package config loads and validates the server's YAML configuration,
// layering BACKUPD_-prefixed environment variables over file contents
// and built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/filevault/backupd/internal/bytesize"
)

// Config is the full static configuration for a backupd server.
//
// Configuration sources, highest precedence first:
//  1. Environment variables (BACKUPD_*)
//  2. Configuration file
//  3. Default values
//
// No field has a CLI flag of its own; the --config flag only selects
// which file is read.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`

	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`
}

// ServerConfig controls the raw TCP protocol listener.
type ServerConfig struct {
	// Port is the TCP port the backup protocol listens on. Left at zero,
	// ApplyDefaults takes it from a port.info file in the working
	// directory, or 1256 when that file is missing or malformed.
	Port uint16 `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`

	// FilesDir is where decrypted file contents are written.
	FilesDir string `mapstructure:"files_dir" validate:"required" yaml:"files_dir"`

	// MaxFileSize bounds the ciphertext size the dispatcher accepts in a
	// single SendFile request.
	MaxFileSize bytesize.ByteSize `mapstructure:"max_file_size" yaml:"max_file_size"`
}

// LoggingConfig controls logging behavior, same shape as
// internal/logger.Config.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// MetricsConfig controls the admin HTTP server exposing /metrics and
// /healthz, bound separately from the protocol's raw TCP port.
type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
type TelemetryConfig struct {
	Enabled    bool    `mapstructure:"enabled" yaml:"enabled"`
	Endpoint   string  `mapstructure:"endpoint" yaml:"endpoint"`
	Insecure   bool    `mapstructure:"insecure" yaml:"insecure"`
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`
}

// ProfilingConfig controls the optional Pyroscope continuous profiler.
type ProfilingConfig struct {
	Enabled       bool   `mapstructure:"enabled" yaml:"enabled"`
	ServerAddress string `mapstructure:"server_address" yaml:"server_address"`
	AppName       string `mapstructure:"app_name" yaml:"app_name"`
}

// Load reads configuration from file and environment, applies defaults,
// and validates the result.
//
// Discovery order when configPath is empty: $BACKUPD_CONFIG, then
// ./backupd.yaml, then defaults alone.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if _, err := readConfigFile(v); err != nil {
		return nil, err
	}

	// Bind every key so BACKUPD_* variables apply even without a file.
	for _, key := range []string{
		"server.port", "server.files_dir", "server.max_file_size",
		"logging.level", "logging.format", "logging.output",
		"metrics.enabled", "metrics.listen_addr",
		"telemetry.enabled", "telemetry.endpoint", "telemetry.insecure", "telemetry.sample_rate",
		"profiling.enabled", "profiling.server_address", "profiling.app_name",
		"shutdown_timeout",
	} {
		_ = v.BindEnv(key)
	}

	cfg := GetDefaultConfig()
	if err := v.Unmarshal(cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return cfg, nil
}

// Validate runs struct-tag validation over cfg.
func Validate(cfg *Config) error {
	return validator.New().Struct(cfg)
}

// SaveConfig writes cfg to path as YAML, creating parent directories as
// needed.
func SaveConfig(cfg *Config, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: create directory: %w", err)
		}
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("config: write: %w", err)
	}
	return nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("BACKUPD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	switch {
	case configPath != "":
		v.SetConfigFile(configPath)
	case os.Getenv("BACKUPD_CONFIG") != "":
		v.SetConfigFile(os.Getenv("BACKUPD_CONFIG"))
	default:
		v.AddConfigPath(".")
		v.SetConfigName("backupd")
		v.SetConfigType("yaml")
	}
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("config: read file: %w", err)
	}
	return true, nil
}

func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		mapstructure.StringToTimeDurationHookFunc(),
	)
}

func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

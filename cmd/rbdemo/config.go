package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/viper"

	"github.com/benz9527/xrbtree/observability"
	"github.com/benz9527/xrbtree/xlog"
)

// Sentinel validation errors.
var (
	ErrInvalidLogLevel      = errors.New("invalid log level")
	ErrInvalidLogEncoder    = errors.New("invalid log encoder")
	ErrInvalidExporter      = errors.New("invalid metrics exporter")
	ErrInvalidInterval      = errors.New("metrics interval must be positive")
	ErrEmptySeedKeys        = errors.New("seed keys must not be empty")
	ErrSeedKeysOverCapacity = errors.New("seed keys leave no spare slot in the tree capacity")
	ErrReplaceKeyNotSeeded  = errors.New("replace key is not a seed key")
)

// Default configuration values.
const (
	defaultLogLevel       = string(xlog.LogLevelInfo)
	defaultLogEncoder     = "json"
	defaultExporter       = string(observability.NoopMetricsExporter)
	defaultListen         = ":9464"
	defaultInterval       = "10s"
	defaultPayload        = 1
	defaultReplaceKey     = 21
	defaultReplacePayload = 2
)

var defaultSeedKeys = []int{19, 34, 21, 6, 90}

// Config holds all configuration for the rbdemo command.
type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Tree    TreeConfig    `mapstructure:"tree"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	// Hold keeps the command running until it is interrupted.
	Hold bool `mapstructure:"hold"`
}

type LogConfig struct {
	Level   string `mapstructure:"level"`
	Encoder string `mapstructure:"encoder"`
}

// TreeConfig holds the demo tree content and options.
type TreeConfig struct {
	Keys           []int  `mapstructure:"keys"`
	Payload        int    `mapstructure:"payload"`
	ReplaceKey     int    `mapstructure:"replace_key"`
	ReplacePayload int    `mapstructure:"replace_payload"`
	Capacity       uint32 `mapstructure:"capacity"`
	BorrowPred     bool   `mapstructure:"borrow_pred"`
}

type MetricsConfig struct {
	Exporter string        `mapstructure:"exporter"`
	Listen   string        `mapstructure:"listen"`
	Interval time.Duration `mapstructure:"interval"`
}

// LoadConfig loads configuration from file and environment variables.
// Without an explicit path, an rbdemo.yaml in the working directory is
// read if present.
func LoadConfig(viperCfg *viper.Viper, configPath string) (*Config, error) {
	if viperCfg == nil {
		viperCfg = viper.New()
	}
	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("rbdemo")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
	}

	viperCfg.SetEnvPrefix("RBDEMO")
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viperCfg.AutomaticEnv()

	if err := viperCfg.ReadInConfig(); err != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viperCfg.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &config, nil
}

func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("log.level", defaultLogLevel)
	viperCfg.SetDefault("log.encoder", defaultLogEncoder)

	viperCfg.SetDefault("tree.keys", defaultSeedKeys)
	viperCfg.SetDefault("tree.payload", defaultPayload)
	viperCfg.SetDefault("tree.replace_key", defaultReplaceKey)
	viperCfg.SetDefault("tree.replace_payload", defaultReplacePayload)
	viperCfg.SetDefault("tree.capacity", 0)
	viperCfg.SetDefault("tree.borrow_pred", false)

	viperCfg.SetDefault("metrics.exporter", defaultExporter)
	viperCfg.SetDefault("metrics.listen", defaultListen)
	viperCfg.SetDefault("metrics.interval", defaultInterval)

	viperCfg.SetDefault("hold", false)
}

func validateConfig(config *Config) error {
	config.Log.Level = strings.ToUpper(strings.TrimSpace(config.Log.Level))
	switch xlog.LogLevel(config.Log.Level) {
	case xlog.LogLevelDebug, xlog.LogLevelInfo, xlog.LogLevelWarn, xlog.LogLevelError:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, config.Log.Level)
	}

	if config.Log.Encoder != "json" && config.Log.Encoder != "text" {
		return fmt.Errorf("%w: %q", ErrInvalidLogEncoder, config.Log.Encoder)
	}

	switch observability.MetricsExporterType(config.Metrics.Exporter) {
	case observability.NoopMetricsExporter,
		observability.ConsoleMetricsExporter,
		observability.PrometheusMetricsExporter:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidExporter, config.Metrics.Exporter)
	}

	if config.Metrics.Interval <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInterval, config.Metrics.Interval)
	}

	if len(config.Tree.Keys) == 0 {
		return ErrEmptySeedKeys
	}

	// The replace links its substitute node before the old one is released.
	if uniq := len(lo.Uniq(config.Tree.Keys)); config.Tree.Capacity > 0 && uniq >= int(config.Tree.Capacity) {
		return fmt.Errorf("%w: %d keys, capacity %d", ErrSeedKeysOverCapacity, uniq, config.Tree.Capacity)
	}

	if !lo.Contains(config.Tree.Keys, config.Tree.ReplaceKey) {
		return fmt.Errorf("%w: %d", ErrReplaceKeyNotSeeded, config.Tree.ReplaceKey)
	}
	return nil
}

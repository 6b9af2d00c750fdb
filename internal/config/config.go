// Package config loads and validates stage-progress configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Reporter ReporterConfig `mapstructure:"reporter"`
	Display  DisplayConfig  `mapstructure:"display"`
	Hub      HubConfig      `mapstructure:"hub"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Store    StoreConfig    `mapstructure:"store"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Demo     DemoConfig     `mapstructure:"demo"`
}

// ReporterConfig controls the stage registry.
type ReporterConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Threshold suppresses stages whose total is at or below it.
	Threshold int `mapstructure:"threshold"`
}

// DisplayConfig selects the display backend.
type DisplayConfig struct {
	Backend string `mapstructure:"backend"`
	Width   int    `mapstructure:"width"`
}

// HubConfig tunes event batching.
type HubConfig struct {
	BufferSize     int           `mapstructure:"buffer_size"`
	MaxBatchEvents int           `mapstructure:"max_batch_events"`
	MaxBatchWait   time.Duration `mapstructure:"max_batch_wait"`
	SinkTimeout    time.Duration `mapstructure:"sink_timeout"`
}

// MetricsConfig toggles the Prometheus sink.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// StoreConfig selects where stage history is persisted.
type StoreConfig struct {
	Backend         string        `mapstructure:"backend"`
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	EnsureSchema    bool          `mapstructure:"ensure_schema"`
}

// ServerConfig controls the status HTTP server.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// DemoConfig shapes the simulated multi-stage workload.
type DemoConfig struct {
	InitJobs  int           `mapstructure:"init_jobs"`
	MainJobs  int           `mapstructure:"main_jobs"`
	StepDelay time.Duration `mapstructure:"step_delay"`
	// FailAt aborts the main stage after this many jobs; 0 disables it.
	FailAt int `mapstructure:"fail_at"`
}

// Store backends accepted in store.backend.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

var displayBackends = map[string]struct{}{
	"text": {}, "pterm": {}, "log": {}, "none": {},
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PROGRESS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("reporter.enabled", true)
	v.SetDefault("reporter.threshold", 2)
	v.SetDefault("display.backend", "text")
	v.SetDefault("display.width", 30)
	v.SetDefault("hub.buffer_size", 1024)
	v.SetDefault("hub.max_batch_events", 256)
	v.SetDefault("hub.max_batch_wait", 250*time.Millisecond)
	v.SetDefault("hub.sink_timeout", 5*time.Second)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("store.backend", StoreMemory)
	v.SetDefault("store.ensure_schema", true)
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
	v.SetDefault("demo.init_jobs", 20)
	v.SetDefault("demo.main_jobs", 100)
	v.SetDefault("demo.step_delay", 20*time.Millisecond)
	v.SetDefault("demo.fail_at", 0)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if _, ok := displayBackends[strings.ToLower(c.Display.Backend)]; !ok {
		return fmt.Errorf("display.backend must be one of text, pterm, log, none; got %q", c.Display.Backend)
	}
	if c.Display.Width < 0 {
		return fmt.Errorf("display.width must be >= 0")
	}
	if c.Hub.BufferSize <= 0 || c.Hub.MaxBatchEvents <= 0 {
		return fmt.Errorf("hub.buffer_size and hub.max_batch_events must be > 0")
	}
	if c.Hub.MaxBatchWait <= 0 || c.Hub.SinkTimeout <= 0 {
		return fmt.Errorf("hub.max_batch_wait and hub.sink_timeout must be > 0")
	}
	switch c.Store.Backend {
	case StoreMemory:
	case StorePostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn must be set when store.backend is postgres")
		}
	default:
		return fmt.Errorf("store.backend must be memory or postgres; got %q", c.Store.Backend)
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Demo.InitJobs < 0 || c.Demo.MainJobs < 0 || c.Demo.FailAt < 0 {
		return fmt.Errorf("demo job counts must be >= 0")
	}
	if c.Demo.StepDelay < 0 {
		return fmt.Errorf("demo.step_delay must be >= 0")
	}
	return nil
}

// Package model defines the client configuration and its loading rules.
package model

import "time"

type Config struct {
	ContentBook ContentBookConfig `yaml:"content_book"`
	Query       QueryConfig       `yaml:"query"`
	Notify      NotifyConfig      `yaml:"notify"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Client      ClientConfig      `yaml:"client"`
	Logging     LoggingConfig     `yaml:"logging"`
}

type ContentBookConfig struct {
	HotbarSlot   int    `yaml:"hotbar_slot"`
	Title        string `yaml:"title"`
	MaxFilters   int    `yaml:"max_filters"`
	ResetFilters bool   `yaml:"reset_filters"` // restore the original filter after a query
}

type QueryConfig struct {
	StepTimeoutSec int `yaml:"step_timeout_sec"`
	MaxSteps       int `yaml:"max_steps"` // transport round-trips allowed per script
}

type NotifyConfig struct {
	Enabled bool `yaml:"enabled"`
	Desktop bool `yaml:"desktop"`
}

type TelemetryConfig struct {
	Enabled            bool `yaml:"enabled"`
	BatchSize          int  `yaml:"batch_size"`
	FlushIntervalTicks int  `yaml:"flush_interval_ticks"`
}

type ClientConfig struct {
	TickIntervalMs     int `yaml:"tick_interval_ms"`
	ShutdownTimeoutSec int `yaml:"shutdown_timeout_sec"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "console" or "json"
	// Journal, when set, is a JSONL file recording client lifecycle events.
	Journal string `yaml:"journal,omitempty"`
}

const (
	DefaultHotbarSlot         = 7
	DefaultContentBookTitle   = "§0§lContent Book"
	DefaultMaxFilters         = 11
	DefaultStepTimeoutSec     = 30
	DefaultMaxSteps           = 1024
	DefaultBatchSize          = 20
	DefaultFlushIntervalTicks = 1200
	DefaultTickIntervalMs     = 50
	DefaultShutdownTimeoutSec = 10
)

// Default returns the configuration used when no file is present.
func Default() Config {
	cfg := Config{
		Notify:    NotifyConfig{Enabled: true},
		Telemetry: TelemetryConfig{Enabled: true},
		Logging:   LoggingConfig{Level: "info", Format: "console"},
	}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero-valued fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.ContentBook.HotbarSlot <= 0 {
		c.ContentBook.HotbarSlot = DefaultHotbarSlot
	}
	if c.ContentBook.Title == "" {
		c.ContentBook.Title = DefaultContentBookTitle
	}
	if c.ContentBook.MaxFilters <= 0 {
		c.ContentBook.MaxFilters = DefaultMaxFilters
	}
	if c.Query.StepTimeoutSec <= 0 {
		c.Query.StepTimeoutSec = DefaultStepTimeoutSec
	}
	if c.Query.MaxSteps <= 0 {
		c.Query.MaxSteps = DefaultMaxSteps
	}
	if c.Telemetry.BatchSize <= 0 {
		c.Telemetry.BatchSize = DefaultBatchSize
	}
	if c.Telemetry.FlushIntervalTicks <= 0 {
		c.Telemetry.FlushIntervalTicks = DefaultFlushIntervalTicks
	}
	if c.Client.TickIntervalMs <= 0 {
		c.Client.TickIntervalMs = DefaultTickIntervalMs
	}
	if c.Client.ShutdownTimeoutSec <= 0 {
		c.Client.ShutdownTimeoutSec = DefaultShutdownTimeoutSec
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func (c QueryConfig) StepTimeout() time.Duration {
	return time.Duration(c.StepTimeoutSec) * time.Second
}

func (c ClientConfig) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalMs) * time.Millisecond
}

func (c ClientConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSec) * time.Second
}

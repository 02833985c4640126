// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment variable overrides (AEROSTAT_CONNECTION_TIMEOUT, ...)
const EnvPrefix = "AEROSTAT"

// Config represents the application configuration
type Config struct {
	Connection ConnectionConfig `mapstructure:"connection" yaml:"connection"`
	Dummy      DummyConfig      `mapstructure:"dummy" yaml:"dummy"`
	Recording  RecordingConfig  `mapstructure:"recording" yaml:"recording"`
	Channels   ChannelsConfig   `mapstructure:"channels" yaml:"channels"`
	Display    DisplayConfig    `mapstructure:"display" yaml:"display"`
	Logging    LoggingConfig    `mapstructure:"logging" yaml:"logging"`
	Relay      RelayConfig      `mapstructure:"relay" yaml:"relay"`
}

// ConnectionConfig holds the serial link parameters. It is not modified after Load.
type ConnectionConfig struct {
	Alarm             bool          `mapstructure:"alarm" yaml:"alarm"`
	Timeout           time.Duration `mapstructure:"timeout" yaml:"timeout"`
	BaudRates         []int         `mapstructure:"baud_rates" yaml:"baud_rates"`
	DefaultBaud       int           `mapstructure:"default_baud" yaml:"default_baud"`
	FilterCharacter   string        `mapstructure:"filter_character" yaml:"filter_character"`
	Delimiter         string        `mapstructure:"delimiter" yaml:"delimiter"`
	ReconnectInterval time.Duration `mapstructure:"reconnect_interval" yaml:"reconnect_interval"`
	UnpluggedMessage  string        `mapstructure:"unplugged_message" yaml:"unplugged_message"`
	RepluggedMessage  string        `mapstructure:"replugged_message" yaml:"replugged_message"`
}

// DummyConfig configures the synthetic data generator
type DummyConfig struct {
	UpdateInterval time.Duration `mapstructure:"update_interval" yaml:"update_interval"`
}

// RecordingConfig configures the black box and session CSV sinks
type RecordingConfig struct {
	LogsDir      string `mapstructure:"logs_dir" yaml:"logs_dir"`
	BlackBoxFile string `mapstructure:"black_box_file" yaml:"black_box_file"`
	CSVFile      string `mapstructure:"csv_file" yaml:"csv_file"`
	Enabled      bool   `mapstructure:"enabled" yaml:"enabled"`
}

// BlackBoxPath returns the audit log location
func (r RecordingConfig) BlackBoxPath() string {
	return filepath.Join(r.LogsDir, "BlackBox", r.BlackBoxFile)
}

// CSVPath returns the session CSV location
func (r RecordingConfig) CSVPath() string {
	return filepath.Join(r.LogsDir, r.CSVFile)
}

// ChannelsConfig sizes the bounded output channels
type ChannelsConfig struct {
	BufferSize int `mapstructure:"buffer_size" yaml:"buffer_size"`
}

// DisplayConfig holds presentation-only settings for the shells
type DisplayConfig struct {
	FieldNames []string `mapstructure:"field_names" yaml:"field_names"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"`
	Output     string `mapstructure:"output" yaml:"output"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// RelayConfig configures the optional websocket relay
type RelayConfig struct {
	Enabled      bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen       string `mapstructure:"listen" yaml:"listen"`
	Path         string `mapstructure:"path" yaml:"path"`
	Username     string `mapstructure:"username" yaml:"username"`
	Password     string `mapstructure:"password" yaml:"-"`
	ClientBuffer int    `mapstructure:"client_buffer" yaml:"client_buffer"`
}

// Load reads configuration from path (optional), AEROSTAT_* environment
// variables and built-in defaults, then validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	} else {
		v.SetConfigName("aerostat")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/aerostat")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Default returns the built-in configuration without reading files or the environment
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("config: defaults do not decode: %v", err))
	}
	return &cfg
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Connection defaults
	v.SetDefault("connection.alarm", true)
	v.SetDefault("connection.timeout", "1s")
	v.SetDefault("connection.baud_rates", []int{4800, 9600, 19200, 38400, 57600, 115200})
	v.SetDefault("connection.default_baud", 9600)
	v.SetDefault("connection.filter_character", "$")
	v.SetDefault("connection.delimiter", ";")
	v.SetDefault("connection.reconnect_interval", "100ms")
	v.SetDefault("connection.unplugged_message", "// !! Unplugged !!")
	v.SetDefault("connection.replugged_message", "// !! Replugged !!")

	// Dummy defaults
	v.SetDefault("dummy.update_interval", "500ms")

	// Recording defaults
	v.SetDefault("recording.logs_dir", "./logs")
	v.SetDefault("recording.black_box_file", "flight_data.txt")
	v.SetDefault("recording.csv_file", "default.csv")
	v.SetDefault("recording.enabled", false)

	v.SetDefault("channels.buffer_size", 256)

	v.SetDefault("display.field_names", []string{
		"Temperature", "Humidity", "Pressure", "Code",
		"Latitude", "Longitude", "Speed", "Altitude",
	})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "./logs/aerostat.log")
	v.SetDefault("logging.max_size", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", false)

	// Relay defaults
	v.SetDefault("relay.enabled", false)
	v.SetDefault("relay.listen", "127.0.0.1:8765")
	v.SetDefault("relay.path", "/telemetry")
	v.SetDefault("relay.username", "")
	v.SetDefault("relay.password", "")
	v.SetDefault("relay.client_buffer", 64)
}

// Validate checks the configuration once so that no component has to
// re-check it at runtime.
func (c *Config) Validate() error {
	if err := c.Connection.Validate(); err != nil {
		return fmt.Errorf("connection: %w", err)
	}

	if c.Dummy.UpdateInterval <= 0 {
		return fmt.Errorf("dummy: update_interval must be positive, got %s", c.Dummy.UpdateInterval)
	}

	if c.Recording.LogsDir == "" {
		return fmt.Errorf("recording: logs_dir is required")
	}
	if c.Recording.BlackBoxFile == "" || c.Recording.CSVFile == "" {
		return fmt.Errorf("recording: black_box_file and csv_file are required")
	}

	if c.Channels.BufferSize < 1 {
		return fmt.Errorf("channels: buffer_size must be at least 1, got %d", c.Channels.BufferSize)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging: invalid level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging: invalid format %q", c.Logging.Format)
	}

	if c.Relay.Enabled {
		if c.Relay.Listen == "" {
			return fmt.Errorf("relay: listen address is required when enabled")
		}
		if !strings.HasPrefix(c.Relay.Path, "/") {
			return fmt.Errorf("relay: path must start with '/', got %q", c.Relay.Path)
		}
		if c.Relay.ClientBuffer < 1 {
			return fmt.Errorf("relay: client_buffer must be at least 1")
		}
	}

	return nil
}

// Validate checks the serial link parameters
func (c ConnectionConfig) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if len(c.BaudRates) == 0 {
		return fmt.Errorf("baud_rates must not be empty")
	}
	for _, b := range c.BaudRates {
		if b <= 0 {
			return fmt.Errorf("invalid baud rate %d", b)
		}
	}
	if !c.SupportsBaud(c.DefaultBaud) {
		return fmt.Errorf("default_baud %d is not in baud_rates", c.DefaultBaud)
	}
	if len(c.FilterCharacter) != 1 {
		return fmt.Errorf("filter_character must be exactly one byte, got %q", c.FilterCharacter)
	}
	if c.Delimiter == "" {
		return fmt.Errorf("delimiter must not be empty")
	}
	if c.ReconnectInterval < 0 {
		return fmt.Errorf("reconnect_interval must not be negative")
	}
	return nil
}

// SupportsBaud reports whether baud is one of the configured rates
func (c ConnectionConfig) SupportsBaud(baud int) bool {
	for _, b := range c.BaudRates {
		if b == baud {
			return true
		}
	}
	return false
}

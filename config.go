package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v2"

	"rfidexec/gate"
	"rfidexec/indicator"
	"rfidexec/reader"
	"rfidexec/session"
)

// Config is the main configuration structure for rfidexec.
type Config struct {
	Verbose bool `yaml:"verbose"`

	// Serial number of the reader to attach to (0 = first available)
	SerialNumber int `yaml:"serial_number"`

	// Tag filter and command
	Gate gate.Config `yaml:",inline"`

	// "event" (default) or "poll"
	Mode string `yaml:"mode"`

	// Reader configuration
	Reader reader.Config `yaml:"reader"`

	// Indicator configuration
	Indicator indicator.Config `yaml:"indicator"`
}

// ConfigError reports an invalid configuration value.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// options holds the command line flags.
type options struct {
	cfgFile string
	verbose bool
	serial  int
	tag     string
	command string
	mode    string
}

// loadConfig reads the YAML config file. An empty path yields a zero Config.
func loadConfig(path string) (*Config, error) {
	var cfg Config
	if path == "" {
		return &cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &ConfigError{Field: "file", Err: err}
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, &ConfigError{Field: "file", Err: fmt.Errorf("decode %s: %w", path, err)}
	}
	return &cfg, nil
}

// apply overrides cfg with every flag the user set explicitly.
func (o *options) apply(cfg *Config, changed func(name string) bool) error {
	if changed("verbose") {
		cfg.Verbose = o.verbose
	}
	if changed("serial-number") {
		if o.serial <= 0 {
			return &ConfigError{Field: "serial-number", Err: fmt.Errorf("must be greater than 0, got %d", o.serial)}
		}
		cfg.SerialNumber = o.serial
	}
	if changed("tag") {
		cfg.Gate.ExpectedTag = o.tag
	}
	if changed("command") {
		cfg.Gate.Command = o.command
	}
	if changed("mode") {
		cfg.Mode = o.mode
	}
	return nil
}

// sessionConfig validates cfg and converts it for session.Open.
func (cfg *Config) sessionConfig() (*session.Config, error) {
	if cfg.SerialNumber < 0 {
		return nil, &ConfigError{Field: "serial_number", Err: fmt.Errorf("must not be negative, got %d", cfg.SerialNumber)}
	}

	var mode session.Mode
	switch strings.ToLower(cfg.Mode) {
	case "", "event":
		mode = session.ModeEvent
	case "poll":
		mode = session.ModePoll
	default:
		return nil, &ConfigError{Field: "mode", Err: errors.New("must be event or poll, got " + cfg.Mode)}
	}

	return &session.Config{
		Verbose:      cfg.Verbose,
		DeviceSerial: cfg.SerialNumber,
		Gate:         cfg.Gate,
		Mode:         mode,
	}, nil
}

// summary is the one-line configuration echo printed in verbose mode.
func (cfg *Config) summary() string {
	orNA := func(s string) string {
		if s == "" {
			return "NA"
		}
		return s
	}
	return fmt.Sprintf("serial-number '%d' - tag '%s' - cmd '%s'",
		cfg.SerialNumber, orNA(cfg.Gate.ExpectedTag), orNA(cfg.Gate.Command))
}

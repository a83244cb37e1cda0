package client

import (
	"fmt"
	"io"

	yaml "gopkg.in/yaml.v2"
)

// Configuration is the file form of the client settings, as read by the
// aggregates command.
type Configuration struct {
	// Driver is the transport: "pgxpool" for the native Postgres transport,
	// or a database/sql driver name such as "duckdb" or "pgx".
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`

	// Dialect defaults to the driver name.
	Dialect string `yaml:"dialect"`

	// Shapes is the path of the shape definitions file.
	Shapes string `yaml:"shapes"`

	SingleQuery *bool  `yaml:"singleQuery"`
	TimeoutMs   int    `yaml:"timeoutMs"`
	LogLevel    string `yaml:"logLevel"`
	Debug       bool   `yaml:"debug"`
}

// LoadConfiguration reads a YAML configuration.
func LoadConfiguration(data io.Reader) (*Configuration, error) {
	buf, err := io.ReadAll(data)
	if err != nil {
		return nil, err
	}

	cfg := &Configuration{}
	if err := yaml.Unmarshal(buf, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if cfg.Driver == "" {
		return nil, fmt.Errorf("configuration has no driver")
	}
	if cfg.Dialect == "" {
		cfg.Dialect = cfg.Driver
	}
	return cfg, nil
}

// Options returns client options for cfg on top of DefaultOptions.
func (cfg *Configuration) Options() ClientOptions {
	opts := DefaultOptions()
	opts.Dialect = cfg.Dialect
	opts.DebugMode = cfg.Debug
	if cfg.SingleQuery != nil {
		opts.SingleQuery = *cfg.SingleQuery
	}
	if cfg.TimeoutMs != 0 {
		opts.DefaultTimeoutMs = cfg.TimeoutMs
	}
	if cfg.LogLevel != "" {
		opts.LogLevel = cfg.LogLevel
	}
	return opts
}

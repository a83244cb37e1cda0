package client

import (
	"strings"
	"testing"
)

const sampleConfig = `
driver: duckdb
dsn: ""
shapes: shapes.yaml
singleQuery: false
timeoutMs: 2500
logLevel: debug
`

func TestLoadConfiguration(t *testing.T) {
	cfg, err := LoadConfiguration(strings.NewReader(sampleConfig))
	if err != nil {
		t.Fatalf("LoadConfiguration failed: %v", err)
	}

	if cfg.Driver != "duckdb" || cfg.Dialect != "duckdb" || cfg.Shapes != "shapes.yaml" {
		t.Errorf("unexpected configuration %+v", cfg)
	}

	opts := cfg.Options()
	if opts.SingleQuery {
		t.Error("expected SingleQuery=false")
	}
	if opts.DefaultTimeoutMs != 2500 || opts.LogLevel != "debug" || opts.Dialect != "duckdb" {
		t.Errorf("unexpected options %+v", opts)
	}
}

func TestLoadConfigurationDefaults(t *testing.T) {
	cfg, err := LoadConfiguration(strings.NewReader("driver: pgx\ndialect: postgres\n"))
	if err != nil {
		t.Fatalf("LoadConfiguration failed: %v", err)
	}

	opts := cfg.Options()
	if !opts.SingleQuery || opts.DefaultTimeoutMs != 10000 || opts.Dialect != "postgres" {
		t.Errorf("unexpected options %+v", opts)
	}
}

func TestLoadConfigurationErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"no driver", "dsn: x\n"},
		{"invalid yaml", "driver: [unterminated\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadConfiguration(strings.NewReader(tt.input)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

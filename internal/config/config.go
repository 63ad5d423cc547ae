// Package config loads build-features settings from PFL_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the environment variable prefix, e.g. PFL_DATA_DIR.
const EnvPrefix = "PFL"

// Source kinds.
const (
	SourceFile     = "file"
	SourcePostgres = "postgres"
	SourceSQLite   = "sqlite"
	SourceFixtures = "fixtures"
)

// Sink kinds. CSV output is controlled by OutputDir, not by Sinks.
const (
	SinkPostgres   = "postgres"
	SinkClickHouse = "clickhouse"
	SinkSQLite     = "sqlite"
	SinkMemory     = "memory"
)

// Config is the complete run configuration.
type Config struct {
	Source          string   `envconfig:"SOURCE" default:"file" validate:"oneof=file postgres sqlite fixtures"`
	DataDir         string   `envconfig:"DATA_DIR" default:"data"`
	Sheet           string   `envconfig:"SHEET"`
	SalesTable      string   `envconfig:"SALES_TABLE" default:"sales" validate:"required"`
	CompetitorTable string   `envconfig:"COMPETITOR_TABLE" default:"comp_prices" validate:"required"`
	Sinks           []string `envconfig:"SINKS" validate:"dive,oneof=postgres clickhouse sqlite memory"`
	OutputDir       string   `envconfig:"OUTPUT_DIR" default:"output"`

	PostgresDSN   string `envconfig:"POSTGRES_DSN" validate:"omitempty,startswith=postgres"`
	ClickHouseDSN string `envconfig:"CLICKHOUSE_DSN" validate:"omitempty,url"`
	SQLitePath    string `envconfig:"SQLITE_PATH" default:"data/features.sqlite"`
	Migrate       bool   `envconfig:"MIGRATE" default:"false"`

	IncludeQtyLog bool          `envconfig:"INCLUDE_QTY_LOG" default:"false"`
	RunID         string        `envconfig:"RUN_ID" validate:"omitempty,uuid"`
	Timeout       time.Duration `envconfig:"TIMEOUT" default:"10m" validate:"gt=0"`
	MetricsAddr   string        `envconfig:"METRICS_ADDR" validate:"omitempty,hostname_port"`
	Verbose       bool          `envconfig:"VERBOSE" default:"false"`
}

// Load reads the environment. It does not validate: callers apply flag
// overrides first and then call Validate.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	return &cfg, nil
}

// Default returns the configuration with every default applied and no
// environment consulted.
func Default() *Config {
	return &Config{
		Source:          SourceFile,
		DataDir:         "data",
		SalesTable:      "sales",
		CompetitorTable: "comp_prices",
		OutputDir:       "output",
		SQLitePath:      "data/features.sqlite",
		Timeout:         10 * time.Minute,
	}
}

// HasSink reports whether kind is among the configured sinks.
func (c *Config) HasSink(kind string) bool {
	for _, s := range c.Sinks {
		if s == kind {
			return true
		}
	}
	return false
}

// NeedsPostgres reports whether any component reads or writes PostgreSQL.
func (c *Config) NeedsPostgres() bool {
	return c.Source == SourcePostgres || c.HasSink(SinkPostgres)
}

// NeedsSQLite reports whether any component reads or writes SQLite.
func (c *Config) NeedsSQLite() bool {
	return c.Source == SourceSQLite || c.HasSink(SinkSQLite)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(validateConnections, Config{})
	return v
}

// validateConnections requires a DSN or path for every backend in use.
func validateConnections(sl validator.StructLevel) {
	c := sl.Current().Interface().(Config)
	if c.NeedsPostgres() && c.PostgresDSN == "" {
		sl.ReportError(c.PostgresDSN, "PostgresDSN", "PostgresDSN", "required_for_postgres", "")
	}
	if c.HasSink(SinkClickHouse) && c.ClickHouseDSN == "" {
		sl.ReportError(c.ClickHouseDSN, "ClickHouseDSN", "ClickHouseDSN", "required_for_clickhouse", "")
	}
	if c.NeedsSQLite() && c.SQLitePath == "" {
		sl.ReportError(c.SQLitePath, "SQLitePath", "SQLitePath", "required_for_sqlite", "")
	}
	if c.Source == SourceFile && c.DataDir == "" {
		sl.ReportError(c.DataDir, "DataDir", "DataDir", "required_for_file", "")
	}
}

// Validate checks field constraints and cross-field requirements.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
		}
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

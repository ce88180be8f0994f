// Package config provides configuration management.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"parcel-rate/core/engine"
	"parcel-rate/core/ratetable"
	"parcel-rate/core/reference"
	"parcel-rate/core/zone"
	rerrors "parcel-rate/internal/errors"
	"parcel-rate/internal/logging"
)

// Config is the main application configuration
type Config struct {
	// Version is the configuration version
	Version string `json:"version"`

	// Reference locates the reference workbook
	Reference ReferenceConfig `json:"reference"`

	// Engine tunes the pricing engine
	Engine engine.Config `json:"engine"`

	// RateTable holds rate table generation defaults
	RateTable RateTableConfig `json:"rate_table"`

	// Input contains shipment ingestion settings
	Input InputConfig `json:"input"`

	// Output contains output configuration
	Output OutputConfig `json:"output"`

	// Criteria overrides the workbook criteria through UpdateCriteria
	Criteria map[string]any `json:"criteria,omitempty"`

	// Storage configures the run archive
	Storage StorageConfig `json:"storage"`

	// Logging contains logging configuration
	Logging logging.Config `json:"logging"`
}

// ReferenceConfig locates reference data
type ReferenceConfig struct {
	// Path is an xlsx workbook or a directory of per-sheet CSV files
	Path string `json:"path"`

	// Format is xlsx or csv; empty detects from the path
	Format string `json:"format,omitempty"`

	// ZoneMatrix optionally replaces the workbook's zone matrix sheet
	ZoneMatrix string `json:"zone_matrix,omitempty"`

	// Sheets overrides the sheet names
	Sheets reference.SheetNames `json:"sheets"`
}

// RateTableConfig contains rate table defaults
type RateTableConfig struct {
	MarkupPercent float64 `json:"markup_percent"`
	MinMargin     float64 `json:"min_margin"`
}

// Options converts the settings for the generator
func (c RateTableConfig) Options() ratetable.Options {
	return ratetable.Options{
		MarkupPercent: decimal.NewFromFloat(c.MarkupPercent),
		MinMargin:     decimal.NewFromFloat(c.MinMargin),
	}
}

// InputConfig contains shipment ingestion settings
type InputConfig struct {
	// WeightUnit is lb, oz or g
	WeightUnit string `json:"weight_unit"`

	// Mapping pins shipment fields to input headers
	Mapping map[string]string `json:"mapping,omitempty"`
}

// OutputConfig contains output-related settings
type OutputConfig struct {
	// DefaultFormat is the default output format
	DefaultFormat string `json:"default_format"`

	// MaxRows limits printed results in the terminal; 0 prints all
	MaxRows int `json:"max_rows"`

	// NoColor disables ANSI colors
	NoColor bool `json:"no_color"`

	// Verbose lists each failed shipment's errors
	Verbose bool `json:"verbose"`
}

// StorageConfig configures the run archive
type StorageConfig struct {
	Backend string `json:"backend"`
	Path    string `json:"path"`
}

// Default returns a default configuration
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	rt := ratetable.DefaultOptions()

	return &Config{
		Version: "1.0",
		Reference: ReferenceConfig{
			Path:   "reference.xlsx",
			Sheets: reference.DefaultSheetNames(),
		},
		Engine: engine.DefaultConfig(),
		RateTable: RateTableConfig{
			MarkupPercent: rt.MarkupPercent.InexactFloat64(),
			MinMargin:     rt.MinMargin.InexactFloat64(),
		},
		Input: InputConfig{
			WeightUnit: "lb",
		},
		Output: OutputConfig{
			DefaultFormat: "cli",
			MaxRows:       50,
		},
		Storage: StorageConfig{
			Backend: "file",
			Path:    filepath.Join(homeDir, ".parcel-rate", "runs"),
		},
		Logging: logging.Config{
			Level:  "warn",
			Format: "console",
			Output: "stderr",
		},
	}
}

// DefaultPath returns the per-user configuration file path
func DefaultPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".parcel-rate", "config.json")
}

func isHCL(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".hcl")
}

// Load loads configuration from a JSON or .hcl file. A missing file yields
// the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, rerrors.Config("failed to read config", err).WithContext("path", path)
	}

	config := Default()
	if isHCL(path) {
		if err := decodeHCL(path, data, config); err != nil {
			return nil, err
		}
	} else if err := json.Unmarshal(data, config); err != nil {
		return nil, rerrors.Config("failed to parse config", err).WithContext("path", path)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks every setting and reports all problems at once
func (c *Config) Validate() error {
	var errs error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = multierr.Append(errs, fmt.Errorf(format, args...))
		}
	}

	check(oneOf(c.Reference.Format, "", "xlsx", "csv"), "reference.format %q must be xlsx or csv", c.Reference.Format)
	check(oneOf(string(c.Engine.ZoneStrategy), "", string(zone.StrategyMatrix), string(zone.StrategySimple)),
		"engine.zone_strategy %q must be matrix or simple", c.Engine.ZoneStrategy)
	check(c.Engine.ZoneCacheSize >= 0, "engine.zone_cache_size must not be negative")
	check(c.Engine.Workers >= 0, "engine.workers must not be negative")
	check(c.RateTable.MarkupPercent >= 0, "rate_table.markup_percent must not be negative")
	check(c.RateTable.MinMargin >= 0, "rate_table.min_margin must not be negative")
	check(oneOf(c.Input.WeightUnit, "", "lb", "oz", "g"), "input.weight_unit %q must be lb, oz or g", c.Input.WeightUnit)
	check(oneOf(c.Output.DefaultFormat, "", "cli", "json", "csv", "yaml"), "output.default_format %q is not a known format", c.Output.DefaultFormat)
	check(c.Output.MaxRows >= 0, "output.max_rows must not be negative")
	check(oneOf(c.Storage.Backend, "", "file", "memory"), "storage.backend %q must be file or memory", c.Storage.Backend)

	if errs != nil {
		return rerrors.Config("invalid configuration", errs)
	}
	return nil
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if strings.EqualFold(v, a) {
			return true
		}
	}
	return false
}

// Save saves configuration to a file as JSON
func (c *Config) Save(path string) error {
	if isHCL(path) {
		return rerrors.Config("saving is only supported as JSON", nil).WithContext("path", path)
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Global configuration instance
var globalConfig = Default()

// Get returns the global configuration
func Get() *Config {
	return globalConfig
}

// Set sets the global configuration
func Set(config *Config) {
	globalConfig = config
}

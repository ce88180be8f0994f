package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parcel-rate/core/criteria"
	"parcel-rate/core/zone"
	rerrors "parcel-rate/internal/errors"
)

func write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadJSONMergesOverDefaults(t *testing.T) {
	path := write(t, "config.json", `{
		"reference": {"path": "data/ref", "format": "csv"},
		"engine": {"workers": 4},
		"criteria": {"markup_percentage": null, "origin_zip": "10001"}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "data/ref", cfg.Reference.Path)
	assert.Equal(t, "csv", cfg.Reference.Format)
	assert.Equal(t, "Amazon Rates", cfg.Reference.Sheets.Rates, "untouched nested defaults survive")
	assert.Equal(t, 4, cfg.Engine.Workers)
	assert.Equal(t, zone.DefaultCacheSize, cfg.Engine.ZoneCacheSize)
	assert.Equal(t, 10.0, cfg.RateTable.MarkupPercent)

	v, ok := cfg.Criteria[criteria.KeyMarkupPercentage]
	assert.True(t, ok)
	assert.Nil(t, v, "explicit null clears the global markup")
}

func TestLoadHCL(t *testing.T) {
	path := write(t, "parcel-rate.hcl", `
reference {
  path        = "reference.xlsx"
  zone_matrix = "corrected_zone_matrix.csv"

  sheets {
    rates = "Rates 2025"
  }
}

engine {
  zone_strategy = "simple"
  workers       = 8
}

rate_table {
  markup_percent = 12.5
}

input {
  weight_unit = "oz"
  mapping = {
    destination_zip = "Ship To"
  }
}

output {
  default_format = "json"
  no_color       = true
}

criteria {
  origin_zip        = "75238"
  markup_percentage = 15
  service_level_markups = {
    next_day = 30
  }
}

logging {
  level = "debug"
}
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "corrected_zone_matrix.csv", cfg.Reference.ZoneMatrix)
	assert.Equal(t, "Rates 2025", cfg.Reference.Sheets.Rates)
	assert.Equal(t, "Criteria", cfg.Reference.Sheets.Criteria)
	assert.Equal(t, zone.StrategySimple, cfg.Engine.ZoneStrategy)
	assert.Equal(t, 8, cfg.Engine.Workers)
	assert.Equal(t, zone.DefaultCacheSize, cfg.Engine.ZoneCacheSize)
	assert.Equal(t, 12.5, cfg.RateTable.MarkupPercent)
	assert.Equal(t, 0.5, cfg.RateTable.MinMargin)
	assert.Equal(t, "oz", cfg.Input.WeightUnit)
	assert.Equal(t, map[string]string{"destination_zip": "Ship To"}, cfg.Input.Mapping)
	assert.Equal(t, "json", cfg.Output.DefaultFormat)
	assert.True(t, cfg.Output.NoColor)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "stderr", cfg.Logging.Output)

	want := map[string]any{
		criteria.KeyOriginZIP:           "75238",
		criteria.KeyMarkupPercentage:    15.0,
		criteria.KeyServiceLevelMarkups: map[string]any{"next_day": 30.0},
	}
	if diff := cmp.Diff(want, cfg.Criteria); diff != "" {
		t.Errorf("criteria mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		want    string
	}{
		{"bad json", "c.json", `{"engine": `, "failed to parse config"},
		{"bad hcl", "c.hcl", `engine {`, "failed to parse config"},
		{"unknown hcl block", "c.hcl", `pricing {}`, "failed to parse config"},
		{"invalid values", "c.json", `{"engine": {"zone_strategy": "radius", "workers": -1}, "rate_table": {"min_margin": -1}}`, "zone_strategy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(write(t, tt.file, tt.content))
			require.Error(t, err)
			assert.True(t, rerrors.IsType(err, rerrors.TypeConfig))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Engine.Workers = -1
	cfg.RateTable.MinMargin = -1
	cfg.Output.DefaultFormat = "xml"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine.workers")
	assert.Contains(t, err.Error(), "rate_table.min_margin")
	assert.Contains(t, err.Error(), `"xml"`)
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Engine.Workers = 3
	cfg.Input.Mapping = map[string]string{"weight": "Wt"}

	path := filepath.Join(t.TempDir(), "nested", "config.json")
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	if diff := cmp.Diff(cfg, loaded); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	assert.Error(t, cfg.Save(filepath.Join(t.TempDir(), "config.hcl")))
}

func TestRateTableOptions(t *testing.T) {
	opts := RateTableConfig{MarkupPercent: 12.5, MinMargin: 0.75}.Options()
	assert.Equal(t, "12.5", opts.MarkupPercent.String())
	assert.Equal(t, "0.75", opts.MinMargin.String())
}

func TestGlobal(t *testing.T) {
	orig := Get()
	defer Set(orig)

	cfg := Default()
	cfg.Version = "test"
	Set(cfg)
	assert.Equal(t, "test", Get().Version)
}

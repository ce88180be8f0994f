package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gopkg.in/yaml.v3"

	"parcel-rate/core/engine"
	"parcel-rate/core/ratetable"
	"parcel-rate/core/types"
)

func dec(s string) decimal.NullDecimal {
	return types.Some(decimal.RequireFromString(s))
}

func testReport() *Report {
	results := []types.PricedShipment{
		{
			ShipmentID:       "A-1",
			OriginZIP:        "75238",
			DestinationZIP:   "01005",
			PackageType:      types.PackageBox,
			ServiceLevel:     types.ServiceStandard,
			Weight:           1,
			BillableWeight:   1,
			Zone:             5,
			BaseRate:         dec("9.20"),
			FuelSurcharge:    dec("1.47"),
			DASSurcharge:     dec("0"),
			EDASSurcharge:    dec("3.92"),
			RemoteSurcharge:  dec("0"),
			TotalSurcharges:  dec("5.39"),
			MarkupPercentage: dec("10"),
			MarkupAmount:     dec("1.46"),
			FinalRate:        dec("16.05"),
			CarrierRate:      dec("18.00"),
			Savings:          dec("1.95"),
			SavingsPercent:   dec("10.83"),
		},
		{
			ShipmentID:  "row-2",
			OriginZIP:   "75238",
			Errors:      "validate: missing required fields: destination_zip",
			StageErrors: []types.StageError{{Stage: types.StageValidate, Err: assert.AnError}},
		},
	}
	summary := engine.Summarize(results)
	return &Report{
		Results:  results,
		Summary:  &summary,
		Metadata: Metadata{RunID: "run-1", GeneratedAt: "2026-10-18T00:00:00Z", Reference: "0123456789abcdef"},
	}
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&JSONFormatter{}).Render(&buf, testReport()))

	var decoded struct {
		Results []map[string]any `json:"results"`
		Summary map[string]any   `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded.Results, 2)

	assert.Equal(t, "16.05", decoded.Results[0]["final_rate"])
	assert.Equal(t, "01005", decoded.Results[0]["destination_zip"])
	assert.Nil(t, decoded.Results[1]["final_rate"])
	assert.Nil(t, decoded.Results[1]["savings"])
	assert.NotContains(t, decoded.Results[1], "zone")
	assert.Equal(t, float64(1), decoded.Summary["failed"])
}

func TestCSVFormatterResults(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&CSVFormatter{}).Render(&buf, testReport()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, ResultColumns, records[0])
	row := map[string]string{}
	for i, col := range records[0] {
		row[col] = records[1][i]
	}
	assert.Equal(t, "01005", row["destination_zip"])
	assert.Equal(t, "5", row["zone"])
	assert.Equal(t, "3.92", row["edas_surcharge"])
	assert.Equal(t, "16.05", row["final_rate"])
	assert.Equal(t, "10.83", row["savings_percent"])

	failed := records[2]
	assert.Equal(t, "", failed[len(ResultColumns)-5])
	assert.Contains(t, failed[len(ResultColumns)-1], "missing required fields")
}

func testGrid(t *testing.T) *ratetable.Grid {
	t.Helper()
	g, err := ratetable.Generate([]types.PricedShipment{
		{Zone: 2, BillableWeight: 1, FinalRate: dec("10.00")},
	}, ratetable.Options{
		MarkupPercent: decimal.NewFromInt(10),
		MinMargin:     decimal.RequireFromString("0.50"),
		Logger:        zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	return g
}

func TestCSVFormatterRateTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&CSVFormatter{}).Render(&buf, &Report{RateTable: testGrid(t)}))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 166)

	assert.Equal(t, []string{"Billable Weight", "2", "3", "4", "5", "6", "7", "8"}, records[0])
	assert.Equal(t, "<= 1lb", records[16][0])
	assert.Equal(t, "11.00", records[16][1])
	assert.Equal(t, "11.00*", records[1][1])
	assert.True(t, strings.HasSuffix(records[1][2], "**"))
}

func TestYAMLFormatter(t *testing.T) {
	var buf bytes.Buffer
	report := testReport()
	report.RateTable = testGrid(t)
	require.NoError(t, (&YAMLFormatter{}).Render(&buf, report))

	var decoded struct {
		Metadata Metadata            `yaml:"metadata"`
		Summary  map[string]any      `yaml:"summary"`
		Results  []map[string]string `yaml:"results"`
		Table    []map[string]string `yaml:"rate_table"`
		Coverage ratetable.Coverage  `yaml:"coverage"`
	}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))

	assert.Equal(t, "run-1", decoded.Metadata.RunID)
	require.Len(t, decoded.Results, 2)
	assert.Equal(t, "01005", decoded.Results[0]["destination_zip"])
	assert.Equal(t, "16.05", decoded.Results[0]["final_rate"])
	assert.NotContains(t, decoded.Results[1], "final_rate")
	require.Len(t, decoded.Table, 165)
	assert.Equal(t, "<= 1oz", decoded.Table[0]["tier"])
	assert.Equal(t, "11.00*", decoded.Table[0]["zone_2"])
	assert.Equal(t, 1, decoded.Coverage.Observed)
}

func TestCLIFormatter(t *testing.T) {
	var buf bytes.Buffer
	report := testReport()
	report.RateTable = testGrid(t)
	require.NoError(t, NewCLIFormatter(CLIOptions{NoColor: true, Verbose: true}).Render(&buf, report))

	out := buf.String()
	assert.Contains(t, out, "Priced Shipments")
	assert.Contains(t, out, "EDAS 3.92")
	assert.Contains(t, out, "1.95 (10.83%)")
	assert.Contains(t, out, "Total Quoted: $16.05")
	assert.Contains(t, out, "row-2: validate: missing required fields")
	assert.Contains(t, out, "Rate Table")
	assert.Contains(t, out, "<= 150lb")
	assert.NotContains(t, out, "\033[")
}

func TestCLIFormatterMaxRows(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewCLIFormatter(CLIOptions{MaxRows: 1}).Render(&buf, testReport()))
	assert.Contains(t, buf.String(), "1 more shipments not shown")
}

func TestDollars(t *testing.T) {
	assert.Equal(t, "$18,442.10", Dollars(decimal.RequireFromString("18442.1")))
	assert.Equal(t, "-$3.75", Dollars(decimal.RequireFromString("-3.75")))
	assert.Equal(t, "$0.00", Dollars(decimal.Zero))
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry(CLIOptions{})
	assert.Equal(t, []string{"cli", "csv", "json", "yaml"}, r.Formats())

	f, err := r.Get(" JSON ")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f.Format())

	_, err = r.Get("html")
	assert.Error(t, err)
}

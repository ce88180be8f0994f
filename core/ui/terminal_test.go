package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableRender(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, false)

	table := w.NewTable("Weight", "Zone 2", "Zone 8")
	table.AddRow("<= 1oz", "5.50", "9.90*")
	table.AddRow("<= 150lb", "212.35**")
	table.Render()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Weight   │ Zone 2   │ Zone 8", lines[0])
	assert.Equal(t, "<= 1oz   │ 5.50     │ 9.90* ", lines[2])
	assert.Equal(t, "<= 150lb │ 212.35** │       ", lines[3])
	assert.NotContains(t, buf.String(), "\033[")
	assert.Equal(t, 2, table.Len())
}

func TestQuoteSummaryRender(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, true)

	s := w.NewQuoteSummary()
	s.Shipments = "1,204"
	s.Priced = 1200
	s.Failed = 4
	s.TotalFinal = "$18,442.10"
	s.TotalSavings = "$2,310.55"
	s.SavingsPercent = "11.14%"
	s.Render()

	out := buf.String()
	assert.Contains(t, out, "Total Quoted: $18,442.10")
	assert.Contains(t, out, "$2,310.55 (11.14%)")
	assert.Contains(t, out, "1,204 (1200 priced)")
	assert.Contains(t, out, "4 shipments could not be priced")
}

func TestVerbosity(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, true)

	w.Debug("hidden")
	w.SetVerbosity(2)
	w.Debug("shown")
	w.SetVerbosity(0)
	w.Info("quiet")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.NotContains(t, buf.String(), "quiet")
}

func TestSpinnerWithoutTerminal(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, false)

	s := w.NewSpinner("Loading reference data")
	s.Start()
	s.Stop(true)

	assert.Equal(t, "\r✓ Loading reference data\n", buf.String())
}

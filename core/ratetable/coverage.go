package ratetable

import (
	"fmt"

	"github.com/samber/lo"
)

// Coverage reports how much of a rate table is backed by observations
type Coverage struct {
	// Summary percentages of all cells
	ObservedPercent float64 `json:"observed_percent" yaml:"observed_percent"`
	FilledPercent   float64 `json:"filled_percent" yaml:"filled_percent"`

	// Cell counts
	TotalCells   int `json:"total_cells" yaml:"total_cells"`
	Observed     int `json:"observed" yaml:"observed"`
	Interpolated int `json:"interpolated" yaml:"interpolated"`
	Defaulted    int `json:"defaulted" yaml:"defaulted"`

	// Shipment counts
	Shipments   int         `json:"shipments" yaml:"shipments"`
	OutOfRange  int         `json:"out_of_range" yaml:"out_of_range"`
	BelowZones  int         `json:"below_zones" yaml:"below_zones"`
	ZoneSamples map[int]int `json:"zone_samples" yaml:"zone_samples"`

	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// FilledFraction is the share of cells that needed interpolation or a default
func (c *Coverage) FilledFraction() float64 {
	if c.TotalCells == 0 {
		return 0
	}
	return float64(c.Interpolated+c.Defaulted) / float64(c.TotalCells)
}

// MissingZones returns the published zones without any shipment
func (c *Coverage) MissingZones() []int {
	return lo.Filter(Zones(), func(z int, _ int) bool { return c.ZoneSamples[z] == 0 })
}

func (c *Coverage) finish(total int) {
	c.TotalCells = total
	if total > 0 {
		c.ObservedPercent = float64(c.Observed) / float64(total) * 100
		c.FilledPercent = c.FilledFraction() * 100
	}

	if c.FilledPercent > 0 {
		c.Warnings = append(c.Warnings, fmt.Sprintf(
			"%d of %d cells had no data (%.1f%%): * interpolated from zone average, ** synthesized default",
			c.Interpolated+c.Defaulted, total, c.FilledPercent))
	}
	if c.FilledPercent > 90 {
		c.Warnings = append(c.Warnings, "over 90% of cells are empty; check zone resolution and the weight range of the input")
	}
	if missing := c.MissingZones(); len(missing) > 0 {
		c.Warnings = append(c.Warnings, fmt.Sprintf("no shipments in zones %v", missing))
	}
	if c.OutOfRange > 0 {
		c.Warnings = append(c.Warnings, fmt.Sprintf("%d shipments fall outside the published tiers", c.OutOfRange))
	}
	if c.BelowZones > 0 {
		c.Warnings = append(c.Warnings, fmt.Sprintf("%d zone 1 shipments have no published column and were left out", c.BelowZones))
	}
}

// Package ratetable publishes a customer-facing rate card from priced
// shipments: weight tiers by zone, marked up and rounded to the nickel.
// Cells without observations are interpolated or synthesized and flagged.
package ratetable

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"parcel-rate/core/types"
	rerrors "parcel-rate/internal/errors"
	"parcel-rate/internal/logging"
)

// Source tells how a cell's rate was obtained
type Source string

const (
	SourceObserved     Source = "observed"
	SourceInterpolated Source = "interpolated"
	SourceDefault      Source = "default"
)

// Marker is the suffix printed after a rate of this source
func (s Source) Marker() string {
	switch s {
	case SourceInterpolated:
		return "*"
	case SourceDefault:
		return "**"
	default:
		return ""
	}
}

// Default rate synthesis: base = 3.50 + 0.50×zone + 0.25×weight
var (
	defaultBase     = decimal.RequireFromString("3.50")
	defaultPerZone  = decimal.RequireFromString("0.50")
	defaultPerPound = decimal.RequireFromString("0.25")
)

var (
	DefaultMarkup    = decimal.NewFromInt(10)
	DefaultMinMargin = decimal.RequireFromString("0.50")
)

// Cell is one (tier, zone) rate
type Cell struct {
	Rate    decimal.Decimal `json:"rate"`
	Source  Source          `json:"source"`
	Samples int             `json:"samples"`
}

// String renders the rate with its source marker
func (c Cell) String() string {
	return c.Rate.StringFixed(2) + c.Source.Marker()
}

// Options controls rate table generation
type Options struct {
	// MarkupPercent is applied over the mean final rate
	MarkupPercent decimal.Decimal

	// MinMargin is the smallest dollar margin over the mean final rate
	MinMargin decimal.Decimal

	Logger *zap.Logger
}

// DefaultOptions returns a 10% markup with a $0.50 minimum margin
func DefaultOptions() Options {
	return Options{MarkupPercent: DefaultMarkup, MinMargin: DefaultMinMargin}
}

// Grid is a generated rate table. Cells[i][j] is Tiers[i] in Zones[j].
type Grid struct {
	Tiers []Tier   `json:"tiers"`
	Zones []int    `json:"zones"`
	Cells [][]Cell `json:"cells"`

	MarkupPercent decimal.Decimal `json:"markup_percent"`
	MinMargin     decimal.Decimal `json:"min_margin"`

	Coverage *Coverage `json:"coverage"`
}

// Cell returns the cell of a tier index and zone
func (g *Grid) Cell(tier, zone int) (Cell, bool) {
	if tier < 0 || tier >= len(g.Tiers) || zone < MinZone || zone > MaxZone {
		return Cell{}, false
	}
	return g.Cells[tier][zone-MinZone], true
}

type accumulator struct {
	sum   decimal.Decimal
	count int
}

func (a *accumulator) add(d decimal.Decimal) {
	a.sum = a.sum.Add(d)
	a.count++
}

func (a accumulator) mean() decimal.Decimal {
	return a.sum.Div(decimal.NewFromInt(int64(a.count)))
}

// Generate builds the rate table from priced shipments. Unpriced results
// are ignored. It fails only when nothing was priced or the options are
// negative.
func Generate(results []types.PricedShipment, opts Options) (*Grid, error) {
	if opts.MarkupPercent.IsNegative() || opts.MinMargin.IsNegative() {
		return nil, rerrors.Input("markup and minimum margin cannot be negative")
	}
	log := logging.OrDefault(opts.Logger, "ratetable")

	tiers := StandardTiers()
	zones := Zones()

	cellAcc := make([][]accumulator, len(tiers))
	for i := range cellAcc {
		cellAcc[i] = make([]accumulator, len(zones))
	}
	zoneAcc := make([]accumulator, len(zones))

	cov := &Coverage{ZoneSamples: make(map[int]int)}

	for _, r := range results {
		if !r.OK() {
			continue
		}
		cov.Shipments++

		// Zone 1 has no published column. Its prices stay out of the
		// zone 2 cells.
		if r.Zone < MinZone {
			cov.BelowZones++
			continue
		}
		if r.Zone > MaxZone {
			cov.OutOfRange++
			continue
		}
		zi := r.Zone - MinZone
		zoneAcc[zi].add(r.FinalRate.Decimal)
		cov.ZoneSamples[r.Zone]++

		ti := tierIndex(tiers, r.BillableWeight)
		if ti < 0 {
			cov.OutOfRange++
			continue
		}
		cellAcc[ti][zi].add(r.FinalRate.Decimal)
	}

	if cov.Shipments == 0 {
		return nil, rerrors.Input("no priced shipments to build a rate table from")
	}

	price := func(mean decimal.Decimal) decimal.Decimal {
		return types.RoundNickel(decimal.Max(
			types.ApplyMarkup(mean, opts.MarkupPercent),
			mean.Add(opts.MinMargin),
		))
	}

	grid := &Grid{
		Tiers:         tiers,
		Zones:         zones,
		Cells:         make([][]Cell, len(tiers)),
		MarkupPercent: opts.MarkupPercent,
		MinMargin:     opts.MinMargin,
		Coverage:      cov,
	}

	for ti, tier := range tiers {
		grid.Cells[ti] = make([]Cell, len(zones))
		for zi, z := range zones {
			var c Cell
			switch acc := cellAcc[ti][zi]; {
			case acc.count > 0:
				c = Cell{Rate: price(acc.mean()), Source: SourceObserved, Samples: acc.count}
				cov.Observed++
			case zoneAcc[zi].count > 0:
				c = Cell{Rate: price(zoneAcc[zi].mean()), Source: SourceInterpolated}
				cov.Interpolated++
			default:
				c = Cell{Rate: price(defaultRate(z, tier.Midpoint())), Source: SourceDefault}
				cov.Defaulted++
			}
			grid.Cells[ti][zi] = c
		}
	}
	cov.finish(len(tiers) * len(zones))

	log.Info("rate table generated",
		zap.Int("shipments", cov.Shipments),
		zap.Int("observed", cov.Observed),
		zap.Int("interpolated", cov.Interpolated),
		zap.Int("defaulted", cov.Defaulted),
		zap.String("filled", fmt.Sprintf("%.1f%%", cov.FilledPercent)))
	for _, w := range cov.Warnings {
		log.Warn(w)
	}
	return grid, nil
}

func defaultRate(zone int, weight float64) decimal.Decimal {
	return defaultBase.
		Add(defaultPerZone.Mul(decimal.NewFromInt(int64(zone)))).
		Add(defaultPerPound.Mul(decimal.NewFromFloat(weight)))
}

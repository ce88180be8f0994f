package reference

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"parcel-rate/core/criteria"
	rerrors "parcel-rate/internal/errors"
)

// Builder assembles a Store. Problems are collected and reported together
// by Build.
type Builder struct {
	zones    *ZoneMatrix
	flags    map[string]SurchargeFlags
	rows     map[Category][]RateRow
	rateZone map[int]struct{}
	criteria criteria.Criteria
	errs     error
}

// NewBuilder starts an empty dataset with default criteria
func NewBuilder() *Builder {
	return &Builder{
		zones:    newZoneMatrix(),
		flags:    make(map[string]SurchargeFlags),
		rows:     make(map[Category][]RateRow),
		rateZone: make(map[int]struct{}),
		criteria: criteria.Default(),
	}
}

func (b *Builder) fail(format string, args ...any) {
	b.errs = multierr.Append(b.errs, fmt.Errorf(format, args...))
}

// Origin registers an origin row without any zones
func (b *Builder) Origin(o string) *Builder {
	b.zones.addOrigin(o)
	return b
}

// Destination registers a destination column without any zones
func (b *Builder) Destination(d string) *Builder {
	b.zones.addDestination(d)
	return b
}

// Zone defines the zone of an origin/destination prefix pair
func (b *Builder) Zone(origin, dest string, zone int) *Builder {
	if !ValidZone(zone) {
		b.fail("zone %d for %s→%s is outside 1..8", zone, origin, dest)
		return b
	}
	b.zones.set(origin, dest, zone)
	return b
}

// Surcharge sets the eligibility flags of a 5-digit ZIP
func (b *Builder) Surcharge(zip5 string, f SurchargeFlags) *Builder {
	if len(zip5) != 5 {
		b.fail("surcharge zip %q is not 5 digits", zip5)
		return b
	}
	b.flags[zip5] = f
	return b
}

// Rate adds a weight break row. Non-positive rates are dropped from the
// row so lookups treat them as undefined.
func (b *Builder) Rate(c Category, weight float64, rateType string, rates map[int]decimal.Decimal) *Builder {
	if weight < 0 {
		b.fail("negative weight break %g in %s", weight, c)
		return b
	}
	row := RateRow{Category: c, RateType: rateType, Weight: weight, Rates: make(map[int]decimal.Decimal, len(rates))}
	for z, d := range rates {
		b.rateZone[z] = struct{}{}
		if d.IsPositive() {
			row.Rates[z] = d
		}
	}
	b.rows[c] = append(b.rows[c], row)
	return b
}

// RateColumns declares zone columns present in the table even if a row has
// no value for them
func (b *Builder) RateColumns(zones ...int) *Builder {
	for _, z := range zones {
		b.rateZone[z] = struct{}{}
	}
	return b
}

// Criteria replaces the dataset criteria
func (b *Builder) Criteria(c criteria.Criteria) *Builder {
	b.criteria = c
	return b
}

// Build validates and seals the dataset
func (b *Builder) Build() (*Store, error) {
	if len(b.zones.origins) == 0 || len(b.zones.destinations) == 0 {
		b.fail("zone matrix has no origins or no destinations")
	}
	if len(b.rows) == 0 {
		b.fail("rate table has no rows")
	}
	if b.errs != nil {
		return nil, rerrors.ReferenceData("invalid reference data", b.errs)
	}

	b.zones.seal()
	for c := range b.rows {
		rows := b.rows[c]
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].Weight < rows[j].Weight })
	}

	s := &Store{
		Zones:       b.zones,
		Eligibility: &Eligibility{flags: b.flags},
		Rates:       &RateTable{rows: b.rows, zones: b.rateZone},
		Criteria:    b.criteria,
	}
	s.fingerprint = s.computeFingerprint()
	return s, nil
}

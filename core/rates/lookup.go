// Package rates looks up carrier base rates by weight, zone and package
// category.
package rates

import (
	"sort"

	"github.com/shopspring/decimal"

	"parcel-rate/core/reference"
	"parcel-rate/core/types"
	rerrors "parcel-rate/internal/errors"
)

// MinTableZone is the lowest zone column priced by the table; zone 1 is
// looked up in this column.
const MinTableZone = 2

// Quote is a resolved base rate and where it came from
type Quote struct {
	Rate     decimal.Decimal    `json:"rate"`
	Category reference.Category `json:"category"`
	Zone     int                `json:"zone"`
	Break    float64            `json:"weight_break"`
	RateType string             `json:"rate_type,omitempty"`
}

// Lookup resolves base rates from one rate table
type Lookup struct {
	table *reference.RateTable
}

// NewLookup creates a lookup over table
func NewLookup(table *reference.RateTable) *Lookup {
	return &Lookup{table: table}
}

// CategoryFor maps a package type to its rate table category
func CategoryFor(p types.PackageType) reference.Category {
	if p == types.PackageEnvelope {
		return reference.CategoryLetter
	}
	return reference.CategoryParcel
}

// TableZone maps a shipment zone to the table column used for it
func TableZone(zone int) int {
	if zone < MinTableZone {
		return MinTableZone
	}
	return zone
}

// BaseRate returns the base rate for weight in zone
func (l *Lookup) BaseRate(weight float64, zone int, packageType types.PackageType) (decimal.Decimal, error) {
	q, err := l.Quote(weight, zone, packageType)
	if err != nil {
		return decimal.Zero, err
	}
	return q.Rate, nil
}

// Quote resolves the weight break used for weight: the first break at or
// above it, clamped to the first and last breaks.
func (l *Lookup) Quote(weight float64, zone int, packageType types.PackageType) (Quote, error) {
	if l.table == nil {
		return Quote{}, rerrors.RateCalculation("rate table not loaded")
	}

	col := TableZone(zone)
	if !l.table.HasZone(col) {
		return Quote{}, rerrors.Newf(rerrors.TypeRateCalculation, "zone %d has no rate column", col).
			WithContext("zone", zone)
	}

	category := CategoryFor(packageType)
	rows := l.table.Rows(category)
	if len(rows) == 0 {
		return Quote{}, rerrors.Newf(rerrors.TypeRateCalculation, "no %s rows in rate table", category).
			WithContext("package_type", packageType.String())
	}

	i := sort.Search(len(rows), func(i int) bool { return rows[i].Weight >= weight })
	if i == len(rows) {
		i = len(rows) - 1
	}
	row := rows[i]

	rate, ok := row.Rates[col]
	if !ok || !rate.IsPositive() {
		return Quote{}, rerrors.Newf(rerrors.TypeRateCalculation, "no rate for %s %g lb in zone %d", category, row.Weight, col).
			WithContext("weight", weight)
	}

	return Quote{
		Rate:     rate,
		Category: category,
		Zone:     col,
		Break:    row.Weight,
		RateType: row.RateType,
	}, nil
}

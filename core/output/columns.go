package output

import (
	"strconv"

	"github.com/shopspring/decimal"

	"parcel-rate/core/ratetable"
	"parcel-rate/core/types"
)

// ResultColumns are the exported result fields, in order
var ResultColumns = []string{
	"shipment_id", "origin_zip", "destination_zip", "package_type", "service_level",
	"weight", "dim_weight", "billable_weight", "zone",
	"base_rate", "fuel_surcharge", "das_surcharge", "edas_surcharge", "remote_surcharge", "total_surcharges",
	"markup_percentage", "markup_amount", "final_rate",
	"carrier_rate", "savings", "savings_percent", "errors",
}

func money(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.StringFixed(2)
}

func weight(w float64) string {
	if w <= 0 {
		return ""
	}
	return strconv.FormatFloat(w, 'f', 2, 64)
}

func zoneText(z int) string {
	if z == 0 {
		return ""
	}
	return strconv.Itoa(z)
}

// resultRecord flattens a result in ResultColumns order
func resultRecord(r types.PricedShipment) []string {
	return []string{
		r.ShipmentID, r.OriginZIP, r.DestinationZIP, string(r.PackageType), string(r.ServiceLevel),
		weight(r.Weight), weight(r.DimensionalWeight), weight(r.BillableWeight), zoneText(r.Zone),
		money(r.BaseRate), money(r.FuelSurcharge), money(r.DASSurcharge), money(r.EDASSurcharge),
		money(r.RemoteSurcharge), money(r.TotalSurcharges),
		money(r.MarkupPercentage), money(r.MarkupAmount), money(r.FinalRate),
		money(r.CarrierRate), money(r.Savings), money(r.SavingsPercent), r.Errors,
	}
}

// RateTableWeightColumn heads the tier column of an exported rate table
const RateTableWeightColumn = "Billable Weight"

// rateTableHeader returns the tier column followed by one column per zone
func rateTableHeader(g *ratetable.Grid, zonePrefix string) []string {
	header := []string{RateTableWeightColumn}
	for _, z := range g.Zones {
		header = append(header, zonePrefix+strconv.Itoa(z))
	}
	return header
}

// rateTableRecords renders each tier with marked cell rates
func rateTableRecords(g *ratetable.Grid) [][]string {
	records := make([][]string, len(g.Tiers))
	for i, tier := range g.Tiers {
		rec := make([]string, 0, len(g.Zones)+1)
		rec = append(rec, tier.Label)
		for _, c := range g.Cells[i] {
			rec = append(rec, c.String())
		}
		records[i] = rec
	}
	return records
}

package output

import (
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"parcel-rate/core/engine"
	"parcel-rate/core/ratetable"
	"parcel-rate/core/types"
	"parcel-rate/core/ui"
)

// CLIOptions controls the human-readable output
type CLIOptions struct {
	NoColor bool

	// MaxRows limits the printed results; 0 prints all
	MaxRows int

	// Verbose also prints every failed shipment's errors
	Verbose bool
}

// CLIFormatter renders tables for a terminal
type CLIFormatter struct {
	opts CLIOptions
}

// NewCLIFormatter creates a CLI formatter
func NewCLIFormatter(opts CLIOptions) *CLIFormatter {
	return &CLIFormatter{opts: opts}
}

// Format implements Formatter
func (f *CLIFormatter) Format() Format { return FormatCLI }

// Render implements Formatter
func (f *CLIFormatter) Render(w io.Writer, report *Report) error {
	uw := ui.NewWriter(w, f.opts.NoColor)
	if f.opts.Verbose {
		uw.SetVerbosity(2)
	}

	if len(report.Results) > 0 {
		f.renderResults(uw, report.Results)
	}
	if report.Summary != nil {
		f.renderSummary(uw, report.Summary, report.Metadata)
	}
	if report.RateTable != nil {
		f.renderRateTable(uw, report.RateTable)
	}
	if report.Metadata.Duration != "" {
		uw.Println("")
		uw.Println("%s", uw.Color(ui.Dim, "Completed in "+report.Metadata.Duration))
	}
	return nil
}

// Dollars formats an amount as $1,234.56
func Dollars(d decimal.Decimal) string {
	f := d.Round(2).InexactFloat64()
	if f < 0 {
		return "-$" + humanize.FormatFloat("#,###.##", -f)
	}
	return "$" + humanize.FormatFloat("#,###.##", f)
}

func delivery(r types.PricedShipment) string {
	switch {
	case r.RemoteSurcharge.Valid && r.RemoteSurcharge.Decimal.IsPositive():
		return "Remote " + money(r.RemoteSurcharge)
	case r.EDASSurcharge.Valid && r.EDASSurcharge.Decimal.IsPositive():
		return "EDAS " + money(r.EDASSurcharge)
	case r.DASSurcharge.Valid && r.DASSurcharge.Decimal.IsPositive():
		return "DAS " + money(r.DASSurcharge)
	default:
		return ""
	}
}

func (f *CLIFormatter) renderResults(uw *ui.Writer, results []types.PricedShipment) {
	uw.Header("Priced Shipments")

	table := uw.NewTable("Shipment", "Zone", "Billable", "Base", "Fuel", "Delivery", "Markup", "Final", "Carrier", "Savings")
	var failed []types.PricedShipment
	for _, r := range results {
		if !r.OK() {
			failed = append(failed, r)
		}
		if f.opts.MaxRows > 0 && table.Len() >= f.opts.MaxRows {
			continue
		}
		savings := money(r.Savings)
		if r.SavingsPercent.Valid {
			savings += " (" + r.SavingsPercent.Decimal.StringFixed(2) + "%)"
		}
		final := money(r.FinalRate)
		if !r.OK() {
			final = "error"
		}
		table.AddRow(r.ShipmentID, zoneText(r.Zone), weight(r.BillableWeight),
			money(r.BaseRate), money(r.FuelSurcharge), delivery(r), money(r.MarkupAmount),
			final, money(r.CarrierRate), savings)
	}
	table.Render()

	if hidden := len(results) - table.Len(); hidden > 0 {
		uw.Info("%s more shipments not shown", humanize.Comma(int64(hidden)))
	}

	if len(failed) > 0 {
		uw.Println("")
		uw.Warning("%d shipments could not be priced", len(failed))
		for _, r := range failed {
			uw.Debug("%s: %s", r.ShipmentID, r.Errors)
		}
	}
}

func (f *CLIFormatter) renderSummary(uw *ui.Writer, s *engine.Summary, meta Metadata) {
	qs := uw.NewQuoteSummary()
	qs.Shipments = humanize.Comma(int64(s.Shipments))
	qs.Priced = s.Priced
	qs.Failed = s.Failed
	qs.TotalFinal = Dollars(s.TotalFinal)
	if s.Compared > 0 {
		qs.TotalSavings = Dollars(s.TotalSavings)
		if s.TotalSavingsPercent.Valid {
			qs.SavingsPercent = s.TotalSavingsPercent.Decimal.StringFixed(2) + "%"
		}
	}
	if len(meta.Reference) >= 12 {
		qs.Reference = meta.Reference[:12]
	}
	qs.RunID = meta.RunID
	qs.Render()

	if len(s.ZoneDistribution) > 0 {
		uw.Println("")
		uw.SubHeader("Zones")
		table := uw.NewTable("Zone", "Shipments", "Share")
		for _, z := range s.Zones() {
			n := s.ZoneDistribution[z]
			table.AddRow(strconv.Itoa(z), humanize.Comma(int64(n)),
				strconv.FormatFloat(float64(n)/float64(s.Priced)*100, 'f', 1, 64)+"%")
		}
		table.Render()
	}

	sc := s.Surcharges
	if sc.DAS+sc.EDAS+sc.Remote > 0 {
		uw.Println("")
		uw.Info("Delivery surcharges: %d DAS, %d EDAS, %d Remote", sc.DAS, sc.EDAS, sc.Remote)
	}
}

func (f *CLIFormatter) renderRateTable(uw *ui.Writer, g *ratetable.Grid) {
	uw.Header("Rate Table")
	uw.Info("Markup %s%%, minimum margin %s", g.MarkupPercent.String(), Dollars(g.MinMargin))
	uw.Println("")

	table := uw.NewTable(rateTableHeader(g, "Zone ")...)
	for _, rec := range rateTableRecords(g) {
		table.AddRow(rec...)
	}
	table.Render()

	uw.Println("")
	uw.Println("%s", uw.Color(ui.Dim, "* = interpolated from zone average   ** = synthesized default"))
	for _, w := range g.Coverage.Warnings {
		uw.Warning("%s", w)
	}
}

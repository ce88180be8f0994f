package reference

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"parcel-rate/core/criteria"
	"parcel-rate/core/zip"
	rerrors "parcel-rate/internal/errors"
	"parcel-rate/internal/logging"
)

// Source yields the raw cell rows of a named sheet
type Source interface {
	Rows(sheet string) ([][]string, error)
}

// SheetNames identifies the four logical sheets of a reference workbook
type SheetNames struct {
	ZoneMatrix string `json:"zone_matrix"`
	Surcharges string `json:"surcharges"`
	Rates      string `json:"rates"`
	Criteria   string `json:"criteria"`
}

// DefaultSheetNames returns the sheet names of the quote tool template
func DefaultSheetNames() SheetNames {
	return SheetNames{
		ZoneMatrix: "UPS Zone matrix_April 2024",
		Surcharges: "Amazon DAS Zips and Types",
		Rates:      "Amazon Rates",
		Criteria:   "Criteria",
	}
}

func (n SheetNames) withDefaults() SheetNames {
	d := DefaultSheetNames()
	if n.ZoneMatrix == "" {
		n.ZoneMatrix = d.ZoneMatrix
	}
	if n.Surcharges == "" {
		n.Surcharges = d.Surcharges
	}
	if n.Rates == "" {
		n.Rates = d.Rates
	}
	if n.Criteria == "" {
		n.Criteria = d.Criteria
	}
	return n
}

// rateHeaderRows precede the weight-break rows of the rates sheet
const rateHeaderRows = 2

// maxRateZone is the last zone column of the rates sheet
const maxRateZone = 8

// LoadOptions tunes Load
type LoadOptions struct {
	Sheets SheetNames

	// ZoneMatrix, when set, supplies the zone matrix sheet instead of the
	// main source (a corrected standalone matrix file)
	ZoneMatrix Source

	Logger *zap.Logger
}

// Load parses the four reference sheets into a Store. Any structural
// problem is fatal and every problem found is reported.
func Load(src Source, opts LoadOptions) (*Store, error) {
	log := logging.OrDefault(opts.Logger, "reference")
	sheets := opts.Sheets.withDefaults()
	b := NewBuilder()

	zoneSrc := src
	if opts.ZoneMatrix != nil {
		zoneSrc = opts.ZoneMatrix
	}

	var errs error
	read := func(s Source, name string) [][]string {
		rows, err := s.Rows(name)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("sheet %q: %w", name, err))
			return nil
		}
		return rows
	}

	if rows := read(zoneSrc, sheets.ZoneMatrix); rows != nil {
		errs = multierr.Append(errs, parseZoneMatrix(b, rows, log))
	}
	if rows := read(src, sheets.Surcharges); rows != nil {
		parseSurcharges(b, rows, log)
	}
	if rows := read(src, sheets.Rates); rows != nil {
		errs = multierr.Append(errs, parseRates(b, rows, log))
	}
	if rows := read(src, sheets.Criteria); rows != nil {
		b.Criteria(parseCriteria(rows, log))
	}

	if errs != nil {
		log.Error("failed to load reference data", zap.Error(errs))
		return nil, rerrors.ReferenceData("failed to load reference data", errs)
	}

	store, err := b.Build()
	if err != nil {
		return nil, err
	}

	es := store.Eligibility.Stats()
	log.Info("loaded reference data",
		zap.Int("origins", len(store.Zones.origins)),
		zap.Int("destinations", len(store.Zones.destinations)),
		zap.Float64("zone_fill_ratio", store.Zones.FillRatio()),
		zap.Int("surcharge_zips", es.Total),
		zap.Int("das", es.DAS),
		zap.Int("edas", es.EDAS),
		zap.Int("remote", es.Remote),
		zap.Ints("rate_zones", store.Rates.Zones()),
		zap.String("fingerprint", store.ShortFingerprint()))
	if len(es.MultiFlagged) > 0 {
		log.Warn("zips flagged for more than one surcharge, priority Remote > EDAS > DAS applies",
			zap.Int("count", len(es.MultiFlagged)),
			zap.Strings("sample", es.MultiFlagged[:min(10, len(es.MultiFlagged))]))
	}
	return store, nil
}

func cell(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func parseZoneMatrix(b *Builder, rows [][]string, log *zap.Logger) error {
	if len(rows) < 2 || len(rows[0]) < 2 {
		return fmt.Errorf("zone matrix must have at least 2 rows and 2 columns")
	}

	var errs error
	header := rows[0]
	dests := make([]string, len(header))
	for j := 1; j < len(header); j++ {
		h := zip.PadPrefix(header[j], 3)
		if h == "" {
			continue
		}
		if !isDigits(h) {
			errs = multierr.Append(errs, fmt.Errorf("destination header %q is not a zip prefix", header[j]))
			continue
		}
		dests[j] = h
		b.Destination(h)
	}

	var total, invalid int
	for i, row := range rows[1:] {
		origin := zip.PadPrefix(cell(row, 0), 3)
		if origin == "" {
			continue
		}
		if !isDigits(origin) {
			errs = multierr.Append(errs, fmt.Errorf("row %d: origin %q is not a zip prefix", i+2, origin))
			continue
		}
		b.Origin(origin)

		for j := 1; j < len(dests); j++ {
			if dests[j] == "" {
				continue
			}
			total++
			v, err := strconv.ParseFloat(cell(row, j), 64)
			if err != nil || v != float64(int(v)) || !ValidZone(int(v)) {
				invalid++
				continue
			}
			b.Zone(origin, dests[j], int(v))
		}
	}

	if invalid > 0 && total > 0 {
		pct := float64(invalid) / float64(total) * 100
		if invalid*10 > total {
			log.Warn("sparse zone matrix, undefined pairs resolve to the default zone",
				zap.Int("undefined", invalid), zap.Int("cells", total), zap.Float64("percent", pct))
		} else {
			log.Info("undefined zones in matrix",
				zap.Int("undefined", invalid), zap.Int("cells", total), zap.Float64("percent", pct))
		}
	}
	return errs
}

func isYes(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), "yes")
}

func parseSurcharges(b *Builder, rows [][]string, log *zap.Logger) {
	for _, row := range rows {
		raw := zip.PadPrefix(cell(row, 0), 5)
		// header and note rows
		if !isDigits(raw) {
			continue
		}
		zip5 := raw[:5]
		f := SurchargeFlags{
			DAS:    isYes(cell(row, 1)),
			EDAS:   isYes(cell(row, 2)),
			Remote: isYes(cell(row, 3)),
		}
		if f.Count() > 1 {
			log.Debug("zip has multiple surcharge types",
				zap.String("zip", zip5), zap.Bool("das", f.DAS), zap.Bool("edas", f.EDAS), zap.Bool("remote", f.Remote))
		}
		b.Surcharge(zip5, f)
	}
}

func parseRates(b *Builder, rows [][]string, log *zap.Logger) error {
	if len(rows) <= rateHeaderRows {
		return fmt.Errorf("rate table has no rows after its %d header rows", rateHeaderRows)
	}

	width := 0
	for _, row := range rows[rateHeaderRows:] {
		width = max(width, len(row))
	}
	lastZone := min(width-3, maxRateZone)
	if lastZone < 1 {
		return fmt.Errorf("rate table has no zone columns")
	}
	for z := 1; z <= lastZone; z++ {
		b.RateColumns(z)
	}

	loaded := 0
	for _, row := range rows[rateHeaderRows:] {
		category := Category(cell(row, 0))
		weight, err := strconv.ParseFloat(cell(row, 2), 64)
		if category == "" || err != nil {
			continue
		}
		rates := make(map[int]decimal.Decimal, lastZone)
		for z := 1; z <= lastZone; z++ {
			d, err := decimal.NewFromString(cell(row, z+2))
			if err != nil {
				continue
			}
			rates[z] = d
		}
		b.Rate(category, weight, cell(row, 1), rates)
		loaded++
	}

	if loaded == 0 {
		return fmt.Errorf("rate table has no weight break rows")
	}
	log.Debug("parsed rate table", zap.Int("weight_breaks", loaded))
	return nil
}

// criteriaLabels maps Criteria sheet labels (lowercased) to update keys
var criteriaLabels = map[string]string{
	"client origin zip":          criteria.KeyOriginZIP,
	"origin zip":                 criteria.KeyOriginZIP,
	"fuel surcharge %":           criteria.KeyFuelPercentage,
	"fuel surcharge percentage":  criteria.KeyFuelPercentage,
	"das surcharge":              criteria.KeyDAS,
	"edas surcharge":             criteria.KeyEDAS,
	"remote area surcharge":      criteria.KeyRemote,
	"remote surcharge":           criteria.KeyRemote,
	"dimensional weight divisor": criteria.KeyDimDivisor,
	"dim divisor":                criteria.KeyDimDivisor,
	"markup percentage":          criteria.KeyMarkupPercentage,
	"markup %":                   criteria.KeyMarkupPercentage,
	"standard markup":            "standard_markup",
	"expedited markup":           "expedited_markup",
	"priority markup":            "priority_markup",
	"next day markup":            "next_day_markup",
}

// fuelLabel is ambiguous in the template: fractions (0.16) and percentages
// (16) both occur.
const fuelLabel = "fuel surcharge"

func parseCriteria(rows [][]string, log *zap.Logger) criteria.Criteria {
	partial := make(map[string]any)
	for _, row := range rows {
		label := strings.ToLower(cell(row, 0))
		value := cell(row, 1)
		if label == "" || value == "" {
			continue
		}
		if label == fuelLabel {
			d, err := criteria.ToDecimal(value)
			if err != nil {
				log.Warn("unreadable fuel surcharge in criteria sheet", zap.String("value", value))
				continue
			}
			if d.LessThan(decimal.NewFromInt(1)) {
				partial[criteria.KeyFuelFraction] = d
			} else {
				partial[criteria.KeyFuelPercentage] = d
			}
			continue
		}
		if key, ok := criteriaLabels[label]; ok {
			partial[key] = value
		}
	}

	c, report := criteria.Default().Apply(partial, log)
	log.Info("extracted criteria values",
		zap.Strings("applied", report.Applied),
		zap.Strings("coerced", report.Coerced),
		zap.String("origin_zip", c.OriginZIP),
		zap.String("fuel_pct", c.FuelSurchargePercentage.String()),
		zap.Float64("dim_divisor", c.DimDivisor))
	return c
}

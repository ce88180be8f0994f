// Package shipments reads shipment records from CSV, JSON and YAML files and
// normalizes them into engine input.
package shipments

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"parcel-rate/core/types"
	rerrors "parcel-rate/internal/errors"
	"parcel-rate/internal/logging"
)

// Format is a shipment file format
type Format string

const (
	FormatAuto Format = ""
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// DetectFormat picks a format from the file extension, defaulting to CSV
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatCSV
	}
}

// WeightUnit is the unit of the weight columns in the input
type WeightUnit string

const (
	UnitPounds WeightUnit = "lb"
	UnitOunces WeightUnit = "oz"
	UnitGrams  WeightUnit = "g"
)

const gramsPerPound = 453.592

func (u WeightUnit) toPounds(v float64) float64 {
	switch u {
	case UnitOunces:
		return v / 16
	case UnitGrams:
		return v / gramsPerPound
	default:
		return v
	}
}

// Options tunes ingestion
type Options struct {
	Format Format

	// Mapping pins canonical fields to source headers, overriding aliases
	Mapping map[string]string

	WeightUnit WeightUnit

	// DefaultOriginZIP fills records without an origin
	DefaultOriginZIP string

	Logger *zap.Logger
}

// Warning describes a value that could not be used as given
type Warning struct {
	Row     int    `json:"row"`
	Field   string `json:"field"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("row %d: %s %q: %s", w.Row, w.Field, w.Value, w.Message)
}

// Result is the outcome of reading one input
type Result struct {
	Shipments []types.Shipment

	// Columns maps each canonical field to the header it was read from
	Columns map[string]string

	// Unmapped lists input headers that matched no field
	Unmapped []string

	Warnings []Warning
}

// ReadFile reads shipments from path. FormatAuto detects the format from
// the file extension.
func ReadFile(path string, opts Options) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, rerrors.Wrap(rerrors.TypeInput, "cannot open shipment file", err).WithContext("path", path)
	}
	defer f.Close()

	if opts.Format == FormatAuto {
		opts.Format = DetectFormat(path)
	}
	return Read(f, opts)
}

// Read reads and normalizes shipments from r. Every input record yields one
// shipment; unusable values are zeroed and reported as warnings so the
// engine flags the record rather than it being dropped here.
func Read(r io.Reader, opts Options) (*Result, error) {
	log := logging.OrDefault(opts.Logger, "shipments")

	var (
		headers []string
		records []map[string]any
		err     error
	)
	switch opts.Format {
	case FormatCSV, FormatAuto:
		headers, records, err = decodeCSV(r)
	case FormatJSON:
		headers, records, err = decodeJSON(r)
	case FormatYAML:
		headers, records, err = decodeYAML(r)
	default:
		return nil, rerrors.Input(fmt.Sprintf("unsupported shipment format %q", opts.Format))
	}
	if err != nil {
		return nil, err
	}

	columns, unmapped := mapColumns(headers, opts.Mapping)
	for _, required := range []string{FieldDestinationZIP, FieldWeight} {
		if _, ok := columns[required]; !ok {
			return nil, rerrors.Input(fmt.Sprintf("no column for %s", required)).
				WithContext("headers", strings.Join(headers, ", "))
		}
	}

	res := &Result{
		Shipments: make([]types.Shipment, 0, len(records)),
		Columns:   columns,
		Unmapped:  unmapped,
	}
	n := normalizer{columns: columns, opts: opts}
	for i, rec := range records {
		s, warnings := n.shipment(i+1, rec)
		res.Shipments = append(res.Shipments, s)
		res.Warnings = append(res.Warnings, warnings...)
	}

	log.Info("read shipments",
		zap.Int("records", len(res.Shipments)),
		zap.Int("warnings", len(res.Warnings)),
		zap.Strings("unmapped_columns", unmapped))
	for _, w := range res.Warnings {
		log.Debug("shipment value ignored", zap.Int("row", w.Row), zap.String("field", w.Field), zap.String("value", w.Value), zap.String("reason", w.Message))
	}
	return res, nil
}

// mapColumns assigns headers to canonical fields. The first header that
// resolves to a field wins.
func mapColumns(headers []string, mapping map[string]string) (map[string]string, []string) {
	columns := make(map[string]string)
	var unmapped []string
	for _, h := range headers {
		field, ok := canonicalField(h, mapping)
		if !ok {
			unmapped = append(unmapped, h)
			continue
		}
		if _, taken := columns[field]; taken {
			unmapped = append(unmapped, h)
			continue
		}
		columns[field] = h
	}
	return columns, unmapped
}

func decodeCSV(r io.Reader) ([]string, []map[string]any, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, nil, rerrors.Parsing("cannot parse shipment csv", err)
	}
	if len(rows) == 0 {
		return nil, nil, rerrors.Input("shipment file is empty")
	}

	headers := rows[0]
	if len(headers) > 0 {
		headers[0] = strings.TrimPrefix(headers[0], "\ufeff")
	}

	records := make([]map[string]any, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if lo.EveryBy(row, func(v string) bool { return strings.TrimSpace(v) == "" }) {
			continue
		}
		rec := make(map[string]any, len(headers))
		for j, h := range headers {
			if j < len(row) {
				rec[h] = row[j]
			}
		}
		records = append(records, rec)
	}
	return headers, records, nil
}

func decodeJSON(r io.Reader) ([]string, []map[string]any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, nil, rerrors.Parsing("cannot parse shipment json", err)
	}
	return recordsOf(doc)
}

func decodeYAML(r io.Reader) ([]string, []map[string]any, error) {
	var doc any
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, nil, rerrors.Input("shipment file is empty")
		}
		return nil, nil, rerrors.Parsing("cannot parse shipment yaml", err)
	}
	return recordsOf(doc)
}

// recordsOf accepts either a list of records or a document with a
// "shipments" list
func recordsOf(doc any) ([]string, []map[string]any, error) {
	if m, err := cast.ToStringMapE(doc); err == nil {
		list, ok := m["shipments"]
		if !ok {
			return nil, nil, rerrors.Input(`document has no "shipments" list`)
		}
		doc = list
	}

	list, ok := doc.([]any)
	if !ok {
		return nil, nil, rerrors.Input("shipments must be a list of records")
	}

	seen := make(map[string]struct{})
	records := make([]map[string]any, 0, len(list))
	for i, item := range list {
		rec, err := cast.ToStringMapE(item)
		if err != nil {
			return nil, nil, rerrors.Parsing(fmt.Sprintf("record %d is not an object", i+1), err)
		}
		for k := range rec {
			seen[k] = struct{}{}
		}
		records = append(records, rec)
	}

	headers := lo.Keys(seen)
	sort.Strings(headers)
	return headers, records, nil
}

type normalizer struct {
	columns map[string]string
	opts    Options
}

func (n normalizer) raw(rec map[string]any, field string) string {
	h, ok := n.columns[field]
	if !ok {
		return ""
	}
	v, ok := rec[h]
	if !ok || v == nil {
		return ""
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return strings.TrimSpace(s)
}

func cleanNumber(s string) string {
	return strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
}

func (n normalizer) shipment(row int, rec map[string]any) (types.Shipment, []Warning) {
	var warnings []Warning
	warn := func(field, value, msg string) {
		warnings = append(warnings, Warning{Row: row, Field: field, Value: value, Message: msg})
	}

	number := func(field string) float64 {
		v := n.raw(rec, field)
		if v == "" {
			return 0
		}
		f, err := cast.ToFloat64E(cleanNumber(v))
		if err != nil {
			warn(field, v, "not a number")
			return 0
		}
		if f < 0 {
			warn(field, v, "negative")
			return 0
		}
		return f
	}

	s := types.Shipment{
		ShipmentID:     n.raw(rec, FieldShipmentID),
		OriginZIP:      n.raw(rec, FieldOriginZIP),
		DestinationZIP: n.raw(rec, FieldDestinationZIP),
		Weight:         n.opts.WeightUnit.toPounds(number(FieldWeight)),
		Length:         number(FieldLength),
		Width:          number(FieldWidth),
		Height:         number(FieldHeight),
		PackageType:    types.ParsePackageType(n.raw(rec, FieldPackageType)),
		ServiceLevel:   types.ParseServiceLevel(serviceLevel(n.raw(rec, FieldServiceLevel))),
	}

	if s.OriginZIP == "" {
		s.OriginZIP = n.opts.DefaultOriginZIP
	}
	if s.DestinationZIP == "" {
		warn(FieldDestinationZIP, "", "missing")
	}
	if s.Weight == 0 && n.raw(rec, FieldWeight) == "" {
		warn(FieldWeight, "", "missing")
	}

	if bw := number(FieldBillableWeight); bw > 0 {
		bw = n.opts.WeightUnit.toPounds(bw)
		s.BillableWeight = &bw
	}

	if v := n.raw(rec, FieldCarrierRate); v != "" {
		d, err := decimal.NewFromString(cleanNumber(v))
		switch {
		case err != nil:
			warn(FieldCarrierRate, v, "not an amount")
		case !d.IsPositive():
			warn(FieldCarrierRate, v, "not positive")
		default:
			s.CarrierRate = types.Some(d)
		}
	}

	return s, warnings
}

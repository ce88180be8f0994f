// Package types - Money and priced result types
package types

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Currency represents a currency code
type Currency string

const (
	CurrencyUSD Currency = "USD"
)

// String returns the string representation
func (c Currency) String() string {
	return string(c)
}

var (
	hundred = decimal.NewFromInt(100)
	twenty  = decimal.NewFromInt(20)
)

// Round2 rounds an amount to cents
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// RoundNickel rounds an amount to the nearest $0.05
func RoundNickel(d decimal.Decimal) decimal.Decimal {
	return d.Mul(twenty).Round(0).Div(twenty).Round(2)
}

// PercentOf returns amount × pct / 100
func PercentOf(amount, pct decimal.Decimal) decimal.Decimal {
	return amount.Mul(pct).Div(hundred)
}

// ApplyMarkup returns amount × (1 + pct/100)
func ApplyMarkup(amount, pct decimal.Decimal) decimal.Decimal {
	return amount.Add(PercentOf(amount, pct))
}

// Some wraps a present amount
func Some(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

// Stage names one step of the per-shipment pricing pipeline
type Stage string

const (
	StageValidate  Stage = "validate"
	StageZone      Stage = "zone"
	StageBaseRate  Stage = "base_rate"
	StageSurcharge Stage = "surcharges"
	StageMarkup    Stage = "markup"
	StageMargin    Stage = "margin"
)

// StageError records the failure of a single pipeline stage
type StageError struct {
	Stage Stage `json:"stage"`
	Err   error `json:"-"`
}

// Error implements the error interface
func (e StageError) Error() string {
	return string(e.Stage) + ": " + e.Err.Error()
}

// Unwrap returns the stage failure
func (e StageError) Unwrap() error {
	return e.Err
}

// PricedShipment is the terminal output for one input shipment. Numeric
// pricing fields are null (Valid=false) when the stage producing them did
// not complete.
type PricedShipment struct {
	ShipmentID     string       `json:"shipment_id"`
	OriginZIP      string       `json:"origin_zip"`
	DestinationZIP string       `json:"destination_zip"`
	PackageType    PackageType  `json:"package_type"`
	ServiceLevel   ServiceLevel `json:"service_level"`

	Weight            float64 `json:"weight"`
	DimensionalWeight float64 `json:"dim_weight"`
	BillableWeight    float64 `json:"billable_weight"`

	// Zone is 1..8, or 0 when the shipment never reached zone resolution
	Zone int `json:"zone,omitempty"`

	BaseRate         decimal.NullDecimal `json:"base_rate"`
	FuelSurcharge    decimal.NullDecimal `json:"fuel_surcharge"`
	DASSurcharge     decimal.NullDecimal `json:"das_surcharge"`
	EDASSurcharge    decimal.NullDecimal `json:"edas_surcharge"`
	RemoteSurcharge  decimal.NullDecimal `json:"remote_surcharge"`
	TotalSurcharges  decimal.NullDecimal `json:"total_surcharges"`
	MarkupPercentage decimal.NullDecimal `json:"markup_percentage"`
	MarkupAmount     decimal.NullDecimal `json:"markup_amount"`
	FinalRate        decimal.NullDecimal `json:"final_rate"`

	CarrierRate    decimal.NullDecimal `json:"carrier_rate"`
	Savings        decimal.NullDecimal `json:"savings"`
	SavingsPercent decimal.NullDecimal `json:"savings_percent"`

	// Errors is empty on success
	Errors string `json:"errors"`

	// StageErrors keeps the typed failures behind Errors
	StageErrors []StageError `json:"-"`
}

// OK reports whether the shipment was fully priced
func (p PricedShipment) OK() bool {
	return len(p.StageErrors) == 0 && p.FinalRate.Valid
}

// HasCarrierRate reports whether a carrier-billed comparison is available
func (p PricedShipment) HasCarrierRate() bool {
	return p.CarrierRate.Valid && p.Savings.Valid
}

// JoinStageErrors renders stage failures as the single errors string
func JoinStageErrors(errs []StageError) string {
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "; ")
}

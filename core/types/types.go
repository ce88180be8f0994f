// Package types defines core domain types shared across all layers.
// This package contains NO business logic - only type definitions.
package types

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// PackageType is the physical packaging of a shipment
type PackageType string

const (
	PackageBox      PackageType = "box"
	PackageEnvelope PackageType = "envelope"
	PackagePak      PackageType = "pak"
	PackageCustom   PackageType = "custom"
)

// String returns the string representation of the package type
func (p PackageType) String() string {
	return string(p)
}

// IsValid checks if the package type is a known package type
func (p PackageType) IsValid() bool {
	switch p {
	case PackageBox, PackageEnvelope, PackagePak, PackageCustom:
		return true
	default:
		return false
	}
}

// ParsePackageType normalizes free-form input. Empty or unknown values
// become PackageBox.
func ParsePackageType(s string) PackageType {
	p := PackageType(strings.ToLower(strings.TrimSpace(s)))
	if !p.IsValid() {
		return PackageBox
	}
	return p
}

// ServiceLevel is the requested delivery speed
type ServiceLevel string

const (
	ServiceStandard  ServiceLevel = "standard"
	ServiceExpedited ServiceLevel = "expedited"
	ServicePriority  ServiceLevel = "priority"
	ServiceNextDay   ServiceLevel = "next_day"
)

// ServiceLevels lists every known service level in display order
var ServiceLevels = []ServiceLevel{ServiceStandard, ServiceExpedited, ServicePriority, ServiceNextDay}

// String returns the string representation of the service level
func (s ServiceLevel) String() string {
	return string(s)
}

// IsValid checks if the service level is a known service level
func (s ServiceLevel) IsValid() bool {
	switch s {
	case ServiceStandard, ServiceExpedited, ServicePriority, ServiceNextDay:
		return true
	default:
		return false
	}
}

// ParseServiceLevel normalizes free-form input ("Next Day", "next-day").
// Empty or unknown values become ServiceStandard.
func ParseServiceLevel(s string) ServiceLevel {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	l := ServiceLevel(norm)
	if !l.IsValid() {
		return ServiceStandard
	}
	return l
}

// Shipment is one normalized shipment record produced by ingestion.
// It is immutable input to the engine.
type Shipment struct {
	// ShipmentID is the caller's identifier, optional
	ShipmentID string `json:"shipment_id,omitempty"`

	OriginZIP      string `json:"origin_zip"`
	DestinationZIP string `json:"destination_zip"`

	// Weight is the actual weight in pounds
	Weight float64 `json:"weight"`

	// BillableWeight overrides the derived billable weight when set
	BillableWeight *float64 `json:"billable_weight,omitempty"`

	// Dimensions in inches
	Length float64 `json:"length,omitempty"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`

	PackageType  PackageType  `json:"package_type"`
	ServiceLevel ServiceLevel `json:"service_level"`

	// CarrierRate is the amount actually billed by the carrier, optional
	CarrierRate decimal.NullDecimal `json:"carrier_rate"`
}

// DimensionalWeight returns L×W×H / divisor, or 0 when any dimension or the
// divisor is non-positive or not finite.
func (s Shipment) DimensionalWeight(divisor float64) float64 {
	if !positive(divisor) || !positive(s.Length) || !positive(s.Width) || !positive(s.Height) {
		return 0
	}
	return s.Length * s.Width * s.Height / divisor
}

func positive(f float64) bool {
	return f > 0 && !math.IsInf(f, 1)
}

// RatingWeight returns the weight used for rate lookup: the supplied billable
// weight if present, otherwise max(actual, dimensional).
func (s Shipment) RatingWeight(divisor float64) float64 {
	if s.BillableWeight != nil && *s.BillableWeight > 0 {
		return *s.BillableWeight
	}
	return max(s.Weight, s.DimensionalWeight(divisor))
}

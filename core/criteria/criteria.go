// Package criteria holds the configurable pricing parameters of the rate
// engine and the explicit, never-crashing update operation over them.
package criteria

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"parcel-rate/core/types"
)

// Recognized update keys
const (
	KeyOriginZIP           = "origin_zip"
	KeyDimDivisor          = "dim_divisor"
	KeyFuelPercentage      = "fuel_surcharge_percentage"
	KeyFuelFraction        = "fuel_surcharge"
	KeyDAS                 = "das_surcharge"
	KeyEDAS                = "edas_surcharge"
	KeyRemote              = "remote_surcharge"
	KeyMarkupPercentage    = "markup_percentage"
	KeyServiceLevelMarkups = "service_level_markups"
)

// Hardcoded fallbacks
const (
	DefaultDimDivisor = 139.0
)

var (
	DefaultFuelPercentage   = decimal.NewFromInt(16)
	DefaultDASSurcharge     = decimal.RequireFromString("1.98")
	DefaultEDASSurcharge    = decimal.RequireFromString("3.92")
	DefaultRemoteSurcharge  = decimal.RequireFromString("14.15")
	DefaultMarkupPercentage = decimal.NewFromInt(10)

	hundred = decimal.NewFromInt(100)
)

// Criteria is the live pricing configuration of one engine instance.
type Criteria struct {
	// OriginZIP is the fallback origin for zone resolution
	OriginZIP string `json:"origin_zip"`

	// DimDivisor converts cubic inches to dimensional pounds. Always > 0.
	DimDivisor float64 `json:"dim_divisor"`

	// FuelSurchargePercentage and FuelSurcharge are the same rate in
	// percent (16) and fraction (0.16) form; they are kept in sync.
	FuelSurchargePercentage decimal.Decimal `json:"fuel_surcharge_percentage"`
	FuelSurcharge           decimal.Decimal `json:"fuel_surcharge"`

	DASSurcharge    decimal.Decimal `json:"das_surcharge"`
	EDASSurcharge   decimal.Decimal `json:"edas_surcharge"`
	RemoteSurcharge decimal.Decimal `json:"remote_surcharge"`

	// MarkupPercentage is the global default markup. When null the
	// per-service-level markup applies.
	MarkupPercentage decimal.NullDecimal `json:"markup_percentage"`

	ServiceLevelMarkups map[types.ServiceLevel]decimal.Decimal `json:"service_level_markups"`
}

// Default returns the criteria used when no reference data overrides them
func Default() Criteria {
	return Criteria{
		DimDivisor:              DefaultDimDivisor,
		FuelSurchargePercentage: DefaultFuelPercentage,
		FuelSurcharge:           DefaultFuelPercentage.Div(hundred),
		DASSurcharge:            DefaultDASSurcharge,
		EDASSurcharge:           DefaultEDASSurcharge,
		RemoteSurcharge:         DefaultRemoteSurcharge,
		MarkupPercentage:        types.Some(DefaultMarkupPercentage),
		ServiceLevelMarkups: map[types.ServiceLevel]decimal.Decimal{
			types.ServiceStandard:  decimal.Zero,
			types.ServiceExpedited: decimal.Zero,
			types.ServicePriority:  decimal.Zero,
			types.ServiceNextDay:   decimal.Zero,
		},
	}
}

// Clone returns a deep copy
func (c Criteria) Clone() Criteria {
	out := c
	out.ServiceLevelMarkups = make(map[types.ServiceLevel]decimal.Decimal, len(c.ServiceLevelMarkups))
	for k, v := range c.ServiceLevelMarkups {
		out.ServiceLevelMarkups[k] = v
	}
	return out
}

// MarkupSource names where a resolved markup came from
type MarkupSource string

const (
	MarkupGlobal       MarkupSource = "global"
	MarkupServiceLevel MarkupSource = "service_level"
	MarkupNone         MarkupSource = "none"
)

// MarkupFor resolves the markup percentage for a service level: the global
// default if present, else the service-level override, else zero.
func (c Criteria) MarkupFor(level types.ServiceLevel) (decimal.Decimal, MarkupSource) {
	if c.MarkupPercentage.Valid {
		return c.MarkupPercentage.Decimal, MarkupGlobal
	}
	if m, ok := c.ServiceLevelMarkups[level]; ok {
		return m, MarkupServiceLevel
	}
	return decimal.Zero, MarkupNone
}

// UpdateReport describes what an update did with each supplied key
type UpdateReport struct {
	// Applied keys took the supplied value
	Applied []string `json:"applied,omitempty"`

	// Coerced keys were invalid and kept their previous value
	Coerced []string `json:"coerced,omitempty"`

	// Ignored keys are not recognized
	Ignored []string `json:"ignored,omitempty"`
}

func (r *UpdateReport) sort() {
	sort.Strings(r.Applied)
	sort.Strings(r.Coerced)
	sort.Strings(r.Ignored)
}

type updater struct {
	next   Criteria
	report UpdateReport
	log    *zap.Logger
}

func (u *updater) coerced(key string, value any, reason string) {
	u.report.Coerced = append(u.report.Coerced, key)
	u.log.Warn("invalid criteria value, keeping previous",
		zap.String("key", key),
		zap.Any("value", value),
		zap.String("reason", reason))
}

// Apply merges partial into a copy of c and returns it with a report.
// Unknown keys are ignored; invalid values keep the previous value. Apply
// never fails.
func (c Criteria) Apply(partial map[string]any, log *zap.Logger) (Criteria, UpdateReport) {
	if log == nil {
		log = zap.NewNop()
	}
	u := &updater{next: c.Clone(), log: log}
	if len(partial) == 0 {
		log.Warn("empty criteria update, nothing changed")
		return u.next, u.report
	}

	_, hasPct := partial[KeyFuelPercentage]

	keys := make([]string, 0, len(partial))
	for k := range partial {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := partial[key]
		switch key {
		case KeyOriginZIP:
			s, err := cast.ToStringE(value)
			if err != nil {
				u.coerced(key, value, err.Error())
				continue
			}
			u.next.OriginZIP = strings.TrimSpace(s)
			u.report.Applied = append(u.report.Applied, key)

		case KeyDimDivisor:
			f, err := cast.ToFloat64E(value)
			if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
				u.coerced(key, value, "divisor must be a finite positive number")
				continue
			}
			u.next.DimDivisor = f
			u.report.Applied = append(u.report.Applied, key)

		case KeyFuelPercentage:
			d, ok := u.amount(key, value)
			if !ok {
				continue
			}
			u.next.FuelSurchargePercentage = d
			u.next.FuelSurcharge = d.Div(hundred)

		case KeyFuelFraction:
			if hasPct {
				// the percentage form wins when both are supplied
				u.report.Ignored = append(u.report.Ignored, key)
				continue
			}
			d, ok := u.amount(key, value)
			if !ok {
				continue
			}
			u.next.FuelSurcharge = d
			u.next.FuelSurchargePercentage = d.Mul(hundred)

		case KeyDAS:
			if d, ok := u.amount(key, value); ok {
				u.next.DASSurcharge = d
			}

		case KeyEDAS:
			if d, ok := u.amount(key, value); ok {
				u.next.EDASSurcharge = d
			}

		case KeyRemote:
			if d, ok := u.amount(key, value); ok {
				u.next.RemoteSurcharge = d
			}

		case KeyMarkupPercentage:
			if value == nil {
				u.next.MarkupPercentage = decimal.NullDecimal{}
				u.report.Applied = append(u.report.Applied, key)
				continue
			}
			if d, ok := u.amount(key, value); ok {
				u.next.MarkupPercentage = types.Some(d)
			}

		case KeyServiceLevelMarkups:
			m, err := toStringMap(value)
			if err != nil {
				u.coerced(key, value, "expected a mapping of service level to percentage")
				continue
			}
			for level, v := range m {
				u.serviceMarkup(key+"."+level, level, v)
			}

		default:
			if level, ok := strings.CutSuffix(key, "_markup"); ok && types.ServiceLevel(level).IsValid() {
				u.serviceMarkup(key, level, value)
				continue
			}
			u.report.Ignored = append(u.report.Ignored, key)
		}
	}

	u.report.sort()
	if len(u.report.Ignored) > 0 {
		log.Info("ignored unrecognized criteria keys", zap.Strings("keys", u.report.Ignored))
	}
	log.Debug("criteria updated", zap.Strings("applied", u.report.Applied))
	return u.next, u.report
}

func (u *updater) serviceMarkup(reportKey, level string, value any) {
	sl := types.ServiceLevel(strings.ToLower(strings.TrimSpace(level)))
	if !sl.IsValid() {
		u.report.Ignored = append(u.report.Ignored, reportKey)
		return
	}
	if d, ok := u.amount(reportKey, value); ok {
		u.next.ServiceLevelMarkups[sl] = d
	}
}

// amount parses a non-negative decimal and records the outcome.
func (u *updater) amount(key string, value any) (decimal.Decimal, bool) {
	d, err := ToDecimal(value)
	if err != nil {
		u.coerced(key, value, err.Error())
		return decimal.Zero, false
	}
	if d.IsNegative() {
		u.coerced(key, value, "value cannot be negative")
		return decimal.Zero, false
	}
	u.report.Applied = append(u.report.Applied, key)
	return d, true
}

// ToDecimal converts loosely typed input ("16%", 1.98, "3.92") to a decimal.
func ToDecimal(value any) (decimal.Decimal, error) {
	switch v := value.(type) {
	case decimal.Decimal:
		return v, nil
	case decimal.NullDecimal:
		if !v.Valid {
			return decimal.Zero, fmt.Errorf("null value")
		}
		return v.Decimal, nil
	case bool, nil:
		return decimal.Zero, fmt.Errorf("not a number: %v", v)
	}
	s, err := cast.ToStringE(value)
	if err != nil {
		return decimal.Zero, err
	}
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	s = strings.TrimPrefix(s, "$")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("not a number: %q", s)
	}
	return d, nil
}

func toStringMap(value any) (map[string]any, error) {
	switch v := value.(type) {
	case map[string]float64:
		out := make(map[string]any, len(v))
		for k, f := range v {
			out[k] = f
		}
		return out, nil
	case map[types.ServiceLevel]decimal.Decimal:
		out := make(map[string]any, len(v))
		for k, d := range v {
			out[string(k)] = d
		}
		return out, nil
	}
	return cast.ToStringMapE(value)
}

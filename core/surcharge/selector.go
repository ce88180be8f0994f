// Package surcharge selects the fuel and delivery-area surcharges of a
// shipment. At most one of Remote, EDAS and DAS applies, in that priority.
package surcharge

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"parcel-rate/core/criteria"
	"parcel-rate/core/reference"
	"parcel-rate/core/types"
	"parcel-rate/core/zip"
	"parcel-rate/internal/logging"
)

// Kind names the delivery-area surcharge that applied
type Kind string

const (
	KindNone   Kind = ""
	KindRemote Kind = "remote"
	KindEDAS   Kind = "edas"
	KindDAS    Kind = "das"
)

// Result holds the surcharge amounts of one shipment. Total is the rounded
// sum of the four amounts.
type Result struct {
	Fuel   decimal.Decimal `json:"fuel"`
	DAS    decimal.Decimal `json:"das"`
	EDAS   decimal.Decimal `json:"edas"`
	Remote decimal.Decimal `json:"remote"`
	Total  decimal.Decimal `json:"total"`

	Applied Kind `json:"applied,omitempty"`
}

// Selector applies one criteria snapshot to an eligibility table
type Selector struct {
	eligibility *reference.Eligibility
	criteria    criteria.Criteria
	log         *zap.Logger
}

// NewSelector creates a selector. A nil eligibility table flags no ZIPs.
func NewSelector(eligibility *reference.Eligibility, c criteria.Criteria, log *zap.Logger) *Selector {
	return &Selector{
		eligibility: eligibility,
		criteria:    c,
		log:         logging.OrDefault(log, "surcharge"),
	}
}

// Select computes the surcharges for a base rate and destination. weight and
// packageType are accepted for carriers whose surcharges depend on them; the
// current tables do not. Select never fails: on any internal problem it
// returns the fuel surcharge with delivery surcharges zeroed.
func (s *Selector) Select(baseRate decimal.Decimal, destZIP string, weight float64, packageType types.PackageType) (res Result) {
	fuel := types.Round2(types.PercentOf(baseRate, s.criteria.FuelSurchargePercentage))

	defer func() {
		if rec := recover(); rec != nil {
			s.log.Error("surcharge selection failed, delivery surcharges zeroed",
				zap.String("dest", destZIP), zap.String("panic", fmt.Sprint(rec)))
			res = zeroed(fuel)
		}
	}()

	res = zeroed(fuel)

	zip5, err := zip.Five(destZIP)
	if err != nil {
		s.log.Debug("destination zip not normalizable, no delivery surcharge",
			zap.String("dest", destZIP), zap.Error(err))
		return res
	}

	switch s.kind(zip5) {
	case KindRemote:
		res.Remote = s.criteria.RemoteSurcharge
		res.Applied = KindRemote
	case KindEDAS:
		res.EDAS = s.criteria.EDASSurcharge
		res.Applied = KindEDAS
	case KindDAS:
		res.DAS = s.criteria.DASSurcharge
		res.Applied = KindDAS
	}

	res.Total = types.Round2(res.Fuel.Add(res.DAS).Add(res.EDAS).Add(res.Remote))

	if s.eligibility != nil {
		if flags := s.eligibility.Flags(zip5); flags.Count() > 1 {
			s.log.Debug("zip flagged for several surcharges, priority applied",
				zap.String("zip", zip5), zap.String("applied", string(res.Applied)),
				zap.Float64("weight", weight), zap.String("package_type", packageType.String()))
		}
	}
	return res
}

// kind picks the single delivery-area surcharge for a normalized ZIP.
func (s *Selector) kind(zip5 string) Kind {
	international := zip5 == zip.International

	var flags reference.SurchargeFlags
	if s.eligibility != nil && !international {
		flags = s.eligibility.Flags(zip5)
	}

	switch {
	case international || flags.Remote:
		return KindRemote
	case flags.EDAS:
		return KindEDAS
	case flags.DAS:
		return KindDAS
	default:
		return KindNone
	}
}

func zeroed(fuel decimal.Decimal) Result {
	return Result{
		Fuel:   fuel,
		DAS:    decimal.Zero,
		EDAS:   decimal.Zero,
		Remote: decimal.Zero,
		Total:  fuel,
	}
}

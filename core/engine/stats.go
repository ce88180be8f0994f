package engine

import (
	"sort"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"parcel-rate/core/types"
)

// Summary aggregates a batch of priced shipments
type Summary struct {
	Shipments int `json:"shipments"`
	Priced    int `json:"priced"`
	Failed    int `json:"failed"`

	TotalBase       decimal.Decimal `json:"total_base"`
	TotalSurcharges decimal.Decimal `json:"total_surcharges"`
	TotalFinal      decimal.Decimal `json:"total_final"`
	AverageFinal    decimal.Decimal `json:"average_final"`

	// Carrier comparison over the priced shipments that carry a carrier rate
	Compared            int                 `json:"compared"`
	TotalCarrier        decimal.Decimal     `json:"total_carrier"`
	TotalSavings        decimal.Decimal     `json:"total_savings"`
	TotalSavingsPercent decimal.NullDecimal `json:"total_savings_percent"`

	// AverageSavingsPercent is the mean of the per-shipment percentages
	AverageSavingsPercent decimal.NullDecimal `json:"average_savings_percent"`

	ZoneDistribution map[int]int         `json:"zone_distribution"`
	Surcharges       SurchargeCounts     `json:"surcharges"`
	FailuresByStage  map[types.Stage]int `json:"failures_by_stage,omitempty"`
}

// SurchargeCounts counts shipments per delivery-area surcharge
type SurchargeCounts struct {
	DAS    int `json:"das"`
	EDAS   int `json:"edas"`
	Remote int `json:"remote"`
}

// Zones returns the zones present in the distribution, ascending
func (s Summary) Zones() []int {
	zs := lo.Keys(s.ZoneDistribution)
	sort.Ints(zs)
	return zs
}

func positive(d decimal.NullDecimal) bool {
	return d.Valid && d.Decimal.IsPositive()
}

// Summarize computes batch statistics
func Summarize(results []types.PricedShipment) Summary {
	priced, failed := lo.FilterReject(results, func(r types.PricedShipment, _ int) bool { return r.OK() })

	s := Summary{
		Shipments:        len(results),
		Priced:           len(priced),
		Failed:           len(failed),
		TotalBase:        decimal.Zero,
		TotalSurcharges:  decimal.Zero,
		TotalFinal:       decimal.Zero,
		AverageFinal:     decimal.Zero,
		TotalCarrier:     decimal.Zero,
		TotalSavings:     decimal.Zero,
		ZoneDistribution: lo.CountValuesBy(priced, func(r types.PricedShipment) int { return r.Zone }),
		Surcharges: SurchargeCounts{
			DAS:    lo.CountBy(priced, func(r types.PricedShipment) bool { return positive(r.DASSurcharge) }),
			EDAS:   lo.CountBy(priced, func(r types.PricedShipment) bool { return positive(r.EDASSurcharge) }),
			Remote: lo.CountBy(priced, func(r types.PricedShipment) bool { return positive(r.RemoteSurcharge) }),
		},
	}

	for _, r := range priced {
		s.TotalBase = s.TotalBase.Add(r.BaseRate.Decimal)
		s.TotalSurcharges = s.TotalSurcharges.Add(r.TotalSurcharges.Decimal)
		s.TotalFinal = s.TotalFinal.Add(r.FinalRate.Decimal)
	}
	if s.Priced > 0 {
		s.AverageFinal = types.Round2(s.TotalFinal.Div(decimal.NewFromInt(int64(s.Priced))))
	}

	sumPercent := decimal.Zero
	for _, r := range lo.Filter(priced, func(r types.PricedShipment, _ int) bool { return r.HasCarrierRate() }) {
		s.Compared++
		s.TotalCarrier = s.TotalCarrier.Add(r.CarrierRate.Decimal)
		s.TotalSavings = s.TotalSavings.Add(r.Savings.Decimal)
		sumPercent = sumPercent.Add(r.SavingsPercent.Decimal)
	}
	if s.TotalCarrier.IsPositive() {
		s.TotalSavingsPercent = types.Some(types.Round2(s.TotalSavings.Div(s.TotalCarrier).Mul(decimal.NewFromInt(100))))
	}
	if s.Compared > 0 {
		s.AverageSavingsPercent = types.Some(types.Round2(sumPercent.Div(decimal.NewFromInt(int64(s.Compared)))))
	}

	if len(failed) > 0 {
		s.FailuresByStage = make(map[types.Stage]int)
		for _, r := range failed {
			for _, se := range r.StageErrors {
				s.FailuresByStage[se.Stage]++
			}
		}
	}
	return s
}

package ratetable

import (
	"fmt"
	"sort"
)

const (
	ounceTiers = 15
	poundTiers = 150

	// MinZone and MaxZone bound the published zone columns
	MinZone = 2
	MaxZone = 8
)

// Tier is one row of the published table covering weights in (Min, Max]
type Tier struct {
	Label string  `json:"label"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// Midpoint is the weight used to synthesize a default rate for the tier
func (t Tier) Midpoint() float64 {
	return (t.Min + t.Max) / 2
}

// Contains reports whether weight falls in the tier
func (t Tier) Contains(weight float64) bool {
	return weight > t.Min && weight <= t.Max
}

// StandardTiers returns the 1–15 oz tiers followed by the 1–150 lb tiers.
// Consecutive tiers share a boundary so every weight in (0, 150] has
// exactly one tier.
func StandardTiers() []Tier {
	tiers := make([]Tier, 0, ounceTiers+poundTiers)
	for oz := 1; oz <= ounceTiers; oz++ {
		tiers = append(tiers, Tier{
			Label: fmt.Sprintf("<= %doz", oz),
			Min:   float64(oz-1) / 16,
			Max:   float64(oz) / 16,
		})
	}
	for lb := 1; lb <= poundTiers; lb++ {
		lo := float64(lb - 1)
		if lb == 1 {
			lo = float64(ounceTiers) / 16
		}
		tiers = append(tiers, Tier{
			Label: fmt.Sprintf("<= %dlb", lb),
			Min:   lo,
			Max:   float64(lb),
		})
	}
	return tiers
}

// tierIndex finds the tier holding weight, or -1
func tierIndex(tiers []Tier, weight float64) int {
	i := sort.Search(len(tiers), func(i int) bool { return tiers[i].Max >= weight })
	if i < len(tiers) && tiers[i].Contains(weight) {
		return i
	}
	return -1
}

// Zones returns the published zone columns
func Zones() []int {
	zs := make([]int, 0, MaxZone-MinZone+1)
	for z := MinZone; z <= MaxZone; z++ {
		zs = append(zs, z)
	}
	return zs
}

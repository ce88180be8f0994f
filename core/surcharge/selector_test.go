package surcharge

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"parcel-rate/core/criteria"
	"parcel-rate/core/reference"
	"parcel-rate/core/types"
)

func testSelector(t *testing.T) *Selector {
	t.Helper()
	store, err := reference.NewBuilder().
		Zone("752", "760", 1).
		Rate(reference.CategoryParcel, 1, "Ground", map[int]decimal.Decimal{2: decimal.NewFromInt(8)}).
		Surcharge("01005", reference.SurchargeFlags{EDAS: true}).
		Surcharge("30301", reference.SurchargeFlags{DAS: true}).
		Surcharge("99501", reference.SurchargeFlags{DAS: true, EDAS: true, Remote: true}).
		Surcharge("59001", reference.SurchargeFlags{DAS: true, EDAS: true}).
		Build()
	require.NoError(t, err)
	return NewSelector(store.Eligibility, criteria.Default(), zaptest.NewLogger(t))
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestSelect(t *testing.T) {
	s := testSelector(t)

	tests := []struct {
		name    string
		dest    string
		applied Kind
		das     string
		edas    string
		remote  string
		total   string
	}{
		{name: "edas only", dest: "01005", applied: KindEDAS, das: "0", edas: "3.92", remote: "0", total: "5.52"},
		{name: "four digit edas zip", dest: "1005", applied: KindEDAS, das: "0", edas: "3.92", remote: "0", total: "5.52"},
		{name: "das only", dest: "30301-2200", applied: KindDAS, das: "1.98", edas: "0", remote: "0", total: "3.58"},
		{name: "remote beats everything", dest: "99501", applied: KindRemote, das: "0", edas: "0", remote: "14.15", total: "15.75"},
		{name: "edas beats das", dest: "59001", applied: KindEDAS, das: "0", edas: "3.92", remote: "0", total: "5.52"},
		{name: "canadian postal code", dest: "K1A0A6", applied: KindRemote, das: "0", edas: "0", remote: "14.15", total: "15.75"},
		{name: "unflagged", dest: "76087", applied: KindNone, das: "0", edas: "0", remote: "0", total: "1.6"},
		{name: "empty destination", dest: "", applied: KindNone, das: "0", edas: "0", remote: "0", total: "1.6"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := s.Select(dec("10.00"), tt.dest, 2, types.PackageBox)

			assert.Equal(t, tt.applied, res.Applied)
			assert.True(t, res.Fuel.Equal(dec("1.6")), "fuel %s", res.Fuel)
			assert.True(t, res.DAS.Equal(dec(tt.das)), "das %s", res.DAS)
			assert.True(t, res.EDAS.Equal(dec(tt.edas)), "edas %s", res.EDAS)
			assert.True(t, res.Remote.Equal(dec(tt.remote)), "remote %s", res.Remote)
			assert.True(t, res.Total.Equal(dec(tt.total)), "total %s", res.Total)
		})
	}
}

func TestSelectMutualExclusivity(t *testing.T) {
	s := testSelector(t)

	for _, dest := range []string{"01005", "30301", "99501", "59001", "K1A0A6", "76087", "", "abc", "00000"} {
		res := s.Select(dec("7.35"), dest, 1, types.PackageEnvelope)

		fired := 0
		for _, amt := range []decimal.Decimal{res.DAS, res.EDAS, res.Remote} {
			if !amt.IsZero() {
				fired++
			}
		}
		assert.LessOrEqual(t, fired, 1, dest)
		assert.True(t, res.Fuel.Equal(dec("1.18")), "fuel %s", res.Fuel)
		assert.True(t, res.Total.Equal(res.Fuel.Add(res.DAS).Add(res.EDAS).Add(res.Remote)))
	}
}

func TestSelectUsesCriteria(t *testing.T) {
	c, _ := criteria.Default().Apply(map[string]any{
		criteria.KeyFuelPercentage: 20,
		criteria.KeyRemote:         "12.50",
	}, zaptest.NewLogger(t))

	s := NewSelector(nil, c, zaptest.NewLogger(t))
	res := s.Select(dec("10"), "K1A 0A6", 1, types.PackageBox)

	assert.True(t, res.Fuel.Equal(dec("2")))
	assert.True(t, res.Remote.Equal(dec("12.5")))
	assert.True(t, res.Total.Equal(dec("14.5")))
}

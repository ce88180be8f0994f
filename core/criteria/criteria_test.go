package criteria

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"parcel-rate/core/types"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestDefault(t *testing.T) {
	c := Default()
	assert.Equal(t, 139.0, c.DimDivisor)
	assert.True(t, c.FuelSurchargePercentage.Equal(dec("16")))
	assert.True(t, c.FuelSurcharge.Equal(dec("0.16")))
	assert.True(t, c.RemoteSurcharge.Equal(dec("14.15")))
	assert.True(t, c.MarkupPercentage.Valid)
}

func TestApplyRederivesFuelForms(t *testing.T) {
	log := zaptest.NewLogger(t)

	fromPct, _ := Default().Apply(map[string]any{KeyFuelPercentage: "18.5"}, log)
	assert.True(t, fromPct.FuelSurcharge.Equal(dec("0.185")))

	fromFrac, report := Default().Apply(map[string]any{KeyFuelFraction: 0.2}, log)
	assert.True(t, fromFrac.FuelSurchargePercentage.Equal(dec("20")))
	assert.Equal(t, []string{KeyFuelFraction}, report.Applied)

	both, report := Default().Apply(map[string]any{KeyFuelFraction: 0.5, KeyFuelPercentage: 12}, log)
	assert.True(t, both.FuelSurchargePercentage.Equal(dec("12")))
	assert.True(t, both.FuelSurcharge.Equal(dec("0.12")))
	assert.Contains(t, report.Ignored, KeyFuelFraction)
}

func TestApplyInvalidKeepsPrevious(t *testing.T) {
	prev := Default()
	prev.DASSurcharge = dec("2.10")

	next, report := prev.Apply(map[string]any{
		KeyDAS:        "abc",
		KeyEDAS:       -1,
		KeyDimDivisor: 0,
		KeyRemote:     true,
	}, zaptest.NewLogger(t))

	assert.True(t, next.DASSurcharge.Equal(dec("2.10")))
	assert.True(t, next.EDASSurcharge.Equal(DefaultEDASSurcharge))
	assert.True(t, next.RemoteSurcharge.Equal(DefaultRemoteSurcharge))
	assert.Equal(t, 139.0, next.DimDivisor)
	assert.ElementsMatch(t, []string{KeyDAS, KeyEDAS, KeyDimDivisor, KeyRemote}, report.Coerced)
	assert.Empty(t, report.Applied)
}

func TestApplyRejectsNonFiniteDivisor(t *testing.T) {
	for _, v := range []any{"NaN", math.NaN(), math.Inf(1), "+Inf", "-Inf"} {
		next, report := Default().Apply(map[string]any{KeyDimDivisor: v}, zaptest.NewLogger(t))

		assert.Equal(t, DefaultDimDivisor, next.DimDivisor, "%v", v)
		assert.Equal(t, []string{KeyDimDivisor}, report.Coerced, "%v", v)
		assert.Empty(t, report.Applied, "%v", v)
	}
}

func TestApplyIgnoresUnknownKeys(t *testing.T) {
	next, report := Default().Apply(map[string]any{
		"discount_percent": 5,
		KeyOriginZIP:       75238,
	}, zaptest.NewLogger(t))

	assert.Equal(t, "75238", next.OriginZIP)
	assert.Equal(t, []string{"discount_percent"}, report.Ignored)
	assert.Equal(t, []string{KeyOriginZIP}, report.Applied)
}

func TestApplyDoesNotMutateReceiver(t *testing.T) {
	prev := Default()
	_, _ = prev.Apply(map[string]any{
		KeyServiceLevelMarkups: map[string]any{"priority": 15},
	}, nil)
	assert.True(t, prev.ServiceLevelMarkups[types.ServicePriority].IsZero())
}

func TestMarkupResolution(t *testing.T) {
	c, report := Default().Apply(map[string]any{
		KeyServiceLevelMarkups: map[string]any{
			"expedited": "10%",
			"priority":  15,
			"overnight": 40,
		},
		"next_day_markup": 25,
	}, zaptest.NewLogger(t))

	assert.Contains(t, report.Ignored, KeyServiceLevelMarkups+".overnight")

	// the global default wins while present
	pct, src := c.MarkupFor(types.ServicePriority)
	assert.Equal(t, MarkupGlobal, src)
	assert.True(t, pct.Equal(dec("10")))

	c, _ = c.Apply(map[string]any{KeyMarkupPercentage: nil}, nil)
	require.False(t, c.MarkupPercentage.Valid)

	tests := []struct {
		level types.ServiceLevel
		want  string
		src   MarkupSource
	}{
		{types.ServiceExpedited, "10", MarkupServiceLevel},
		{types.ServicePriority, "15", MarkupServiceLevel},
		{types.ServiceNextDay, "25", MarkupServiceLevel},
		{types.ServiceStandard, "0", MarkupServiceLevel},
		{types.ServiceLevel("freight"), "0", MarkupNone},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			pct, src := c.MarkupFor(tt.level)
			assert.Equal(t, tt.src, src)
			assert.True(t, pct.Equal(dec(tt.want)), "got %s", pct)
		})
	}
}

func TestToDecimal(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{"16%", "16"},
		{" $14.15 ", "14.15"},
		{1.98, "1.98"},
		{int64(3), "3"},
		{dec("3.92"), "3.92"},
	}

	for _, tt := range tests {
		got, err := ToDecimal(tt.in)
		require.NoError(t, err)
		assert.True(t, got.Equal(dec(tt.want)), "in=%v got=%s", tt.in, got)
	}

	for _, bad := range []any{nil, true, "n/a", decimal.NullDecimal{}} {
		_, err := ToDecimal(bad)
		assert.Error(t, err, "in=%v", bad)
	}
}

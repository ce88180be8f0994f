package engine

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"parcel-rate/core/criteria"
	"parcel-rate/core/reference"
	"parcel-rate/core/types"
	rerrors "parcel-rate/internal/errors"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func zones(rates ...string) map[int]decimal.Decimal {
	out := make(map[int]decimal.Decimal, len(rates))
	for i, r := range rates {
		if r != "" {
			out[i+2] = dec(r)
		}
	}
	return out
}

func testStore(t *testing.T) *reference.Store {
	t.Helper()
	store, err := reference.NewBuilder().
		Zone("900", "760", 7).
		Zone("752", "760", 1).
		Zone("752", "010", 5).
		Zone("752", "995", 8).
		Zone("752", "303", 4).
		Surcharge("01005", reference.SurchargeFlags{EDAS: true}).
		Surcharge("99501", reference.SurchargeFlags{DAS: true, Remote: true}).
		Rate(reference.CategoryParcel, 1, "Ground", zones("8.10", "8.40", "8.80", "9.20", "9.60", "10.00", "10.50")).
		Rate(reference.CategoryParcel, 2, "Ground", zones("9.10", "9.40", "9.80", "10.20", "10.60", "11.00", "")).
		Rate(reference.CategoryParcel, 10, "Ground", zones("12.00", "13.00", "14.00", "15.00", "16.00", "17.00", "18.00")).
		Rate(reference.CategoryLetter, 0.5, "Letter", zones("4.00", "4.10", "4.20", "4.30", "4.40", "4.50", "4.60")).
		Build()
	require.NoError(t, err)
	return store
}

func testEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	e, err := New(testStore(t), DefaultConfig(), opts...)
	require.NoError(t, err)
	return e
}

func box(origin, dest string, weight float64) types.Shipment {
	return types.Shipment{
		OriginZIP:      origin,
		DestinationZIP: dest,
		Weight:         weight,
		PackageType:    types.PackageBox,
		ServiceLevel:   types.ServiceStandard,
	}
}

func TestPriceShipment(t *testing.T) {
	e := testEngine(t)

	got := e.PriceShipment(context.Background(), box("75238", "76087", 1))
	require.True(t, got.OK(), got.Errors)

	assert.Equal(t, "row-1", got.ShipmentID)
	assert.Equal(t, 1, got.Zone)
	assert.True(t, got.BaseRate.Decimal.Equal(dec("8.10")))
	assert.True(t, got.FuelSurcharge.Decimal.Equal(dec("1.30")))
	assert.True(t, got.TotalSurcharges.Decimal.Equal(dec("1.30")))
	assert.True(t, got.MarkupPercentage.Decimal.Equal(dec("10")))
	assert.True(t, got.FinalRate.Decimal.Equal(dec("10.34")), "final %s", got.FinalRate.Decimal)
	assert.True(t, got.MarkupAmount.Decimal.Equal(dec("0.94")))
	assert.False(t, got.Savings.Valid)
	assert.False(t, got.SavingsPercent.Valid)
	assert.Empty(t, got.Errors)
}

func TestPriceShipmentSurcharges(t *testing.T) {
	e := testEngine(t)

	edas := e.PriceShipment(context.Background(), box("75238", "01005", 1))
	require.True(t, edas.OK(), edas.Errors)
	assert.Equal(t, 5, edas.Zone)
	assert.True(t, edas.EDASSurcharge.Decimal.Equal(dec("3.92")))
	assert.True(t, edas.DASSurcharge.Decimal.IsZero())
	assert.True(t, edas.RemoteSurcharge.Decimal.IsZero())

	remote := e.PriceShipment(context.Background(), box("75238", "99501", 1))
	require.True(t, remote.OK(), remote.Errors)
	assert.True(t, remote.RemoteSurcharge.Decimal.Equal(dec("14.15")))
	assert.True(t, remote.DASSurcharge.Decimal.IsZero())

	intl := e.PriceShipment(context.Background(), box("75238", "K1A0A6", 1))
	require.True(t, intl.OK(), intl.Errors)
	assert.Equal(t, 8, intl.Zone)
	assert.True(t, intl.RemoteSurcharge.Decimal.Equal(dec("14.15")))
	assert.True(t, intl.EDASSurcharge.Decimal.IsZero())
}

func TestPriceShipmentSavings(t *testing.T) {
	e := testEngine(t)
	e.UpdateCriteria(map[string]any{
		criteria.KeyFuelPercentage:   0,
		criteria.KeyMarkupPercentage: 0,
	})

	s := box("75238", "76087", 10)
	s.ShipmentID = "A-1"
	s.CarrierRate = types.Some(dec("15.75"))

	got := e.PriceShipment(context.Background(), s)
	require.True(t, got.OK(), got.Errors)
	assert.Equal(t, "A-1", got.ShipmentID)
	assert.True(t, got.FinalRate.Decimal.Equal(dec("12.00")))
	assert.True(t, got.Savings.Decimal.Equal(dec("3.75")))
	assert.True(t, got.SavingsPercent.Decimal.Equal(dec("23.81")), "pct %s", got.SavingsPercent.Decimal)
	assert.True(t, got.HasCarrierRate())
}

func TestPriceShipmentDimensionalWeight(t *testing.T) {
	e := testEngine(t)

	s := box("75238", "76087", 1)
	s.Length, s.Width, s.Height = 12, 12, 12

	got := e.PriceShipment(context.Background(), s)
	require.True(t, got.OK(), got.Errors)
	assert.InDelta(t, 1728.0/139.0, got.DimensionalWeight, 1e-9)
	assert.InDelta(t, 1728.0/139.0, got.BillableWeight, 1e-9)
	assert.True(t, got.BaseRate.Decimal.Equal(dec("12.00")))
}

func TestPriceShipmentRateFailure(t *testing.T) {
	e := testEngine(t)

	got := e.PriceShipment(context.Background(), box("75238", "99501", 2))
	assert.False(t, got.OK())
	assert.Equal(t, 8, got.Zone)
	assert.False(t, got.BaseRate.Valid)
	assert.False(t, got.FinalRate.Valid)
	assert.Contains(t, got.Errors, "base_rate")
	require.Len(t, got.StageErrors, 1)
	assert.True(t, rerrors.IsType(got.StageErrors[0], rerrors.TypeRateCalculation))
}

func TestPriceShipmentsIsolatesFailures(t *testing.T) {
	for _, workers := range []int{1, 4} {
		cfg := DefaultConfig()
		cfg.Workers = workers
		e, err := New(testStore(t), cfg, WithLogger(zaptest.NewLogger(t)))
		require.NoError(t, err)

		shipments := []types.Shipment{
			box("75238", "76087", 1),
			box("75238", "01005", 2),
			box("75238", "", 1),
			box("75238", "30301", 0.4),
			box("", "76087", 0),
		}

		batch, err := e.PriceShipments(context.Background(), shipments)
		require.NoError(t, err)
		require.Len(t, batch.Results, len(shipments))
		assert.NotEmpty(t, batch.RunID)
		assert.Equal(t, e.Store().Fingerprint(), batch.Fingerprint)

		for i, r := range batch.Results {
			if i == 2 || i == 4 {
				assert.False(t, r.OK(), "row %d", i)
				assert.Contains(t, r.Errors, "missing required fields")
				assert.Zero(t, r.Zone)
				assert.False(t, r.BaseRate.Valid)
				assert.False(t, r.FuelSurcharge.Valid)
				assert.False(t, r.FinalRate.Valid)
				continue
			}
			assert.True(t, r.OK(), "row %d: %s", i, r.Errors)
		}
		assert.Contains(t, batch.Results[4].Errors, "origin_zip, weight")
		assert.Len(t, batch.Failed(), 2)
	}
}

func TestPriceShipmentsCancelled(t *testing.T) {
	e := testEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	batch, err := e.PriceShipments(ctx, []types.Shipment{box("75238", "76087", 1)})
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, batch.Results, 1)
	assert.Contains(t, batch.Results[0].Errors, "batch cancelled")
}

func TestMarkupIsReproducible(t *testing.T) {
	e := testEngine(t)
	e.UpdateCriteria(map[string]any{criteria.KeyMarkupPercentage: "12.5"})

	batch, err := e.PriceShipments(context.Background(), []types.Shipment{
		box("75238", "76087", 1),
		box("75238", "01005", 1.5),
		box("75238", "99501", 0.3),
		box("75238", "30301", 7),
	})
	require.NoError(t, err)

	for _, r := range batch.Results {
		require.True(t, r.OK(), r.Errors)
		withSurcharges := r.BaseRate.Decimal.Add(r.TotalSurcharges.Decimal)
		recomputed := types.Round2(types.ApplyMarkup(withSurcharges, r.MarkupPercentage.Decimal))
		assert.True(t, recomputed.Equal(r.FinalRate.Decimal), "%s: %s != %s", r.ShipmentID, recomputed, r.FinalRate.Decimal)
		assert.True(t, withSurcharges.Add(r.MarkupAmount.Decimal).Equal(r.FinalRate.Decimal))
	}
}

func TestServiceLevelMarkup(t *testing.T) {
	e := testEngine(t)
	report := e.UpdateCriteria(map[string]any{
		criteria.KeyMarkupPercentage: nil,
		"next_day_markup":            25,
	})
	assert.Contains(t, report.Applied, "next_day_markup")

	s := box("75238", "76087", 1)
	s.ServiceLevel = types.ServiceNextDay
	got := e.PriceShipment(context.Background(), s)
	require.True(t, got.OK(), got.Errors)
	assert.True(t, got.MarkupPercentage.Decimal.Equal(dec("25")))
	assert.True(t, got.FinalRate.Decimal.Equal(dec("11.75")), "final %s", got.FinalRate.Decimal)

	s.ServiceLevel = types.ServiceStandard
	got = e.PriceShipment(context.Background(), s)
	assert.True(t, got.MarkupPercentage.Decimal.IsZero())
	assert.True(t, got.FinalRate.Decimal.Equal(dec("9.40")))
}

func TestWithUpdatedCriteria(t *testing.T) {
	e := testEngine(t)

	updated, report := e.WithUpdatedCriteria(map[string]any{
		criteria.KeyMarkupPercentage: 20,
		"unknown":                    true,
	})
	assert.Equal(t, []string{"unknown"}, report.Ignored)

	s := box("75238", "76087", 1)
	assert.True(t, e.PriceShipment(context.Background(), s).FinalRate.Decimal.Equal(dec("10.34")))
	assert.True(t, updated.PriceShipment(context.Background(), s).FinalRate.Decimal.Equal(dec("11.28")))
	assert.True(t, e.Criteria().MarkupPercentage.Decimal.Equal(dec("10")))
}

func TestUpdateOriginRebuildsResolver(t *testing.T) {
	e := testEngine(t)

	assert.Equal(t, 7, e.ResolveZone("33101", "76087").Zone)

	e.UpdateCriteria(map[string]any{criteria.KeyOriginZIP: "75238"})
	assert.Equal(t, 1, e.ResolveZone("33101", "76087").Zone)
	assert.Equal(t, 1, e.PriceShipment(context.Background(), box("33101", "76087", 1)).Zone)
}

func TestUpdateNaNDivisorKeepsPricing(t *testing.T) {
	e := testEngine(t)

	report := e.UpdateCriteria(map[string]any{criteria.KeyDimDivisor: "NaN"})
	assert.Equal(t, []string{criteria.KeyDimDivisor}, report.Coerced)
	assert.Equal(t, criteria.DefaultDimDivisor, e.Criteria().DimDivisor)

	s := box("75238", "76087", 1)
	s.Length, s.Width, s.Height = 2, 2, 2

	got := e.PriceShipment(context.Background(), s)
	require.True(t, got.OK(), got.Errors)
	assert.Equal(t, 1.0, got.BillableWeight)
	assert.True(t, got.BaseRate.Decimal.Equal(dec("8.10")), "base %s", got.BaseRate.Decimal)
}

func TestNewRequiresStore(t *testing.T) {
	_, err := New(nil, DefaultConfig())
	assert.True(t, rerrors.IsType(err, rerrors.TypeReferenceData))
}

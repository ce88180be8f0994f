package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "without cause",
			err:  RateCalculation("zone 9 not found in rate table"),
			want: "[RATE_CALCULATION_ERROR] zone 9 not found in rate table",
		},
		{
			name: "with cause",
			err:  ReferenceData("failed to load sheet", fmt.Errorf("sheet missing")),
			want: "[REFERENCE_DATA_ERROR] failed to load sheet: sheet missing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestIsTypeWalksChain(t *testing.T) {
	inner := RateCalculation("no rows for package type")
	outer := Calculation("base rate stage failed", inner)
	wrapped := fmt.Errorf("shipment 7: %w", outer)

	assert.True(t, IsType(wrapped, TypeCalculation))
	assert.True(t, IsType(wrapped, TypeRateCalculation))
	assert.False(t, IsType(wrapped, TypeReferenceData))
	assert.False(t, IsType(fmt.Errorf("plain"), TypeCalculation))
	assert.False(t, IsType(nil, TypeCalculation))
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, TypeInput, TypeOf(fmt.Errorf("ctx: %w", Input("missing weight"))))
	assert.Equal(t, TypeInternal, TypeOf(fmt.Errorf("plain")))
}

func TestNewf(t *testing.T) {
	err := Newf(TypeRateCalculation, "no rate for %s %g lb in zone %d", "parcel", 2.5, 8)
	assert.Equal(t, "[RATE_CALCULATION_ERROR] no rate for parcel 2.5 lb in zone 8", err.Error())
	assert.Nil(t, err.Cause)
}

func TestWithContext(t *testing.T) {
	err := NotFound("sheet", "Criteria").WithContext("path", "template.xlsx")
	assert.Equal(t, "template.xlsx", err.Context["path"])
	assert.True(t, err.Is(TypeNotFound))
}

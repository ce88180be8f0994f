package zone

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"parcel-rate/core/reference"
	rerrors "parcel-rate/internal/errors"
)

func testStore(t *testing.T) *reference.Store {
	t.Helper()
	store, err := reference.NewBuilder().
		Zone("752", "760", 1).
		Zone("752", "7635", 4).
		Zone("752", "900", 6).
		Zone("1001", "900", 8).
		Zone("1001", "760", 7).
		Destination("990").
		Rate(reference.CategoryParcel, 1, "Ground", map[int]decimal.Decimal{2: decimal.NewFromInt(8)}).
		Build()
	require.NoError(t, err)
	return store
}

func TestMatrixResolver(t *testing.T) {
	r := NewMatrixResolver(testStore(t).Zones, "", zaptest.NewLogger(t))

	tests := []struct {
		name      string
		origin    string
		dest      string
		want      int
		defaulted bool
	}{
		{name: "exact pair", origin: "75238", dest: "76087", want: 1},
		{name: "zip+4 input", origin: "75238-1234", dest: "90012", want: 6},
		{name: "destination prefix match", origin: "75238", dest: "76301", want: 4},
		{name: "origin prefix match", origin: "10012", dest: "76087", want: 7},
		{name: "unknown origin uses first row", origin: "33101", dest: "90012", want: 6},
		{name: "unknown destination", origin: "75238", dest: "50010", want: 8, defaulted: true},
		{name: "undefined cell", origin: "75238", dest: "99001", want: 8, defaulted: true},
		{name: "international destination", origin: "75238", dest: "K1A 0A6", want: 8, defaulted: true},
		{name: "international origin", origin: "M5V3L9", dest: "76087", want: 8, defaulted: true},
		{name: "empty destination", origin: "75238", dest: "", want: 8, defaulted: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := r.Explain(tt.origin, tt.dest)
			assert.Equal(t, tt.want, res.Zone)
			assert.Equal(t, tt.defaulted, res.Defaulted)
			assert.Equal(t, tt.want, r.Resolve(tt.origin, tt.dest))
		})
	}
}

func TestMatrixResolverConfiguredOrigin(t *testing.T) {
	r := NewMatrixResolver(testStore(t).Zones, "75238", zaptest.NewLogger(t))

	res := r.Explain("10012", "76087")
	assert.Equal(t, 1, res.Zone)
	assert.Equal(t, "752", res.MatchedOrigin)
	assert.NotEmpty(t, res.Fallbacks)
}

func TestMatrixResolverErrors(t *testing.T) {
	r := NewMatrixResolver(testStore(t).Zones, "", zaptest.NewLogger(t))

	res := r.Explain("", "76087")
	require.Error(t, res.Err)
	assert.True(t, rerrors.IsType(res.Err, rerrors.TypeZoneLookup))

	empty := NewMatrixResolver(nil, "", zaptest.NewLogger(t))
	res = empty.Explain("75238", "76087")
	assert.Equal(t, reference.DefaultZone, res.Zone)
	assert.True(t, rerrors.IsType(res.Err, rerrors.TypeZoneLookup))
}

func TestResolversAlwaysReturnAZone(t *testing.T) {
	inputs := []string{"", " ", "-", "0", "00000", "1", "1234", "123456789", "abc", "??", "75238", "9999999999", "K1A0A6", "0.0"}

	resolvers := map[string]Resolver{
		"matrix": NewMatrixResolver(testStore(t).Zones, "75238", zaptest.NewLogger(t)),
		"simple": NewSimpleResolver(zaptest.NewLogger(t)),
	}

	for name, r := range resolvers {
		t.Run(name, func(t *testing.T) {
			for _, o := range inputs {
				for _, d := range inputs {
					z := r.Resolve(o, d)
					assert.True(t, reference.ValidZone(z), "%q→%q gave %d", o, d, z)
				}
			}
		})
	}
}

func TestSimpleResolver(t *testing.T) {
	r := NewSimpleResolver(zaptest.NewLogger(t))

	tests := []struct {
		origin string
		dest   string
		want   int
	}{
		{"75238", "76087", 1},
		{"75238", "79901", 2},
		{"75238", "90210", 4},
		{"10001", "90210", 8},
		{"10001", "07030", 2},
		{"75238", "99501", 8},
		{"75238", "96813", 8},
		{"75238", "00901", 8},
		{"75238", "K1A0A6", 8},
	}

	for _, tt := range tests {
		t.Run(tt.origin+"-"+tt.dest, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Resolve(tt.origin, tt.dest))
		})
	}
}

type countingResolver struct {
	calls int
	zone  int
}

func (c *countingResolver) Resolve(string, string) int {
	c.calls++
	return c.zone
}

func (c *countingResolver) Explain(string, string) Resolution {
	return Resolution{Zone: c.zone}
}

func TestCached(t *testing.T) {
	next := &countingResolver{zone: 3}
	c, err := NewCached(next, 2)
	require.NoError(t, err)

	assert.Equal(t, 3, c.Resolve("75238", "76087"))
	assert.Equal(t, 3, c.Resolve(" 75238", "76087 "))
	assert.Equal(t, 1, next.calls)

	c.Resolve("75238", "90210")
	c.Resolve("75238", "10001")
	assert.Equal(t, 2, c.Len())

	c.Purge()
	c.Resolve("75238", "76087")
	assert.Equal(t, 4, next.calls)
}

func TestNew(t *testing.T) {
	store := testStore(t)

	r, err := New(StrategyMatrix, store, "", 16, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.IsType(t, &Cached{}, r)
	assert.Equal(t, 1, r.Resolve("75238", "76087"))

	r, err = New(StrategySimple, nil, "", 0, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.IsType(t, &SimpleResolver{}, r)

	_, err = New(StrategyMatrix, nil, "", 0, zaptest.NewLogger(t))
	assert.True(t, rerrors.IsType(err, rerrors.TypeConfig))

	_, err = New("postal", store, "", 0, zaptest.NewLogger(t))
	assert.True(t, rerrors.IsType(err, rerrors.TypeConfig))
}

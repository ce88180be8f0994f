package zip

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrefix3(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"five digit", "75238", "752"},
		{"zip plus four", "75238-1234", "752"},
		{"whitespace", "  76087 ", "760"},
		{"short code padded", "12", "012"},
		{"lost leading zero", "1005", "010"},
		{"canadian", "K1A 0A6", International},
		{"lowercase canadian", "e3g7p6", International},
		{"three digit prefix", "005", "005"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Prefix3(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrefix3Empty(t *testing.T) {
	for _, raw := range []string{"", "   ", "--"} {
		_, err := Prefix3(raw)
		assert.ErrorIs(t, err, ErrEmpty, "raw=%q", raw)
	}
}

func TestFive(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"01005", "01005"},
		{"1005", "01005"},
		{"99501-0001", "99501"},
		{"K1A0A6", International},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := Five(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Five(" ")
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestPadPrefix(t *testing.T) {
	assert.Equal(t, "005", PadPrefix("5", 3))
	assert.Equal(t, "005", PadPrefix("5.0", 3))
	assert.Equal(t, "752", PadPrefix(" 752 ", 3))
	assert.Equal(t, "01005", PadPrefix("1005", 5))
	assert.Equal(t, "Zipcode", PadPrefix("Zipcode", 5))
}

func TestIsInternational(t *testing.T) {
	assert.True(t, IsInternational("K1A0A6"))
	assert.False(t, IsInternational("76087"))
	assert.False(t, IsInternational(""))
}

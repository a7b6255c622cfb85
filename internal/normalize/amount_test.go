package normalize

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"450,00", "450.00"},
		{"450.00", "450.00"},
		{"1.234,56", "1234.56"},
		{"1,234.56", "1234.56"},
		{"1 234,56", "1234.56"},
		{"1.234", "1234"},
		{"450.5", "450.5"},
		{"€ 376,50", "376.50"},
		{"376,50 EUR", "376.50"},
		{"-120,00", "-120.00"},
		{"(120,00)", "-120.00"},
		{"0", "0"},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseAmount(tc.in)
			require.NoError(t, err)
			want, _ := decimal.NewFromString(tc.want)
			assert.True(t, got.Equal(want), "got %s want %s", got, want)
		})
	}
}

func TestParseAmountRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "   ", "abc", "12a4", "--5", "€"} {
		_, err := ParseAmount(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestParsePercent(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"25%", "0.25"},
		{"23", "0.23"},
		{"0,23", "0.23"},
		{"0.28", "0.28"},
		{"100%", "1"},
		{"0", "0"},
	}
	for _, tc := range cases {
		got, err := ParsePercent(tc.in)
		require.NoError(t, err, "input %q", tc.in)
		want, _ := decimal.NewFromString(tc.want)
		assert.True(t, got.Equal(want), "input %q: got %s want %s", tc.in, got, want)
	}

	_, err := ParsePercent("250%")
	assert.Error(t, err)
	_, err = ParsePercent("-5%")
	assert.Error(t, err)
}

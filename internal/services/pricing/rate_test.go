package pricing_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-system/internal/commerce"
	"storefront-system/internal/services/pricing"
)

func ratePtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func TestRateResolver_Precedence(t *testing.T) {
	resolver := pricing.NewRateResolver(pricing.DefaultFallbackTable())

	tests := []struct {
		name       string
		product    *commerce.Product
		brand      *commerce.Brand
		wantRate   string
		wantSource pricing.RateSource
	}{
		{
			name:       "product_rate_wins",
			product:    &commerce.Product{CommissionRate: ratePtr("12")},
			brand:      &commerce.Brand{Name: "Loris", CommissionRate: ratePtr("40")},
			wantRate:   "12",
			wantSource: pricing.SourceProduct,
		},
		{
			name:       "product_zero_is_an_override",
			product:    &commerce.Product{CommissionRate: ratePtr("0")},
			brand:      &commerce.Brand{Name: "Loris", CommissionRate: ratePtr("40")},
			wantRate:   "0",
			wantSource: pricing.SourceProduct,
		},
		{
			name:       "brand_rate",
			product:    &commerce.Product{BrandID: "b1"},
			brand:      &commerce.Brand{ID: "b1", Name: "Optimal Care", CommissionRate: ratePtr("7.5")},
			wantRate:   "7.5",
			wantSource: pricing.SourceBrand,
		},
		{
			name:       "fallback_optimal",
			product:    &commerce.Product{BrandID: "b1"},
			brand:      &commerce.Brand{ID: "b1", Name: "OPTIMAL Nutrition"},
			wantRate:   "10",
			wantSource: pricing.SourceBrandFallback,
		},
		{
			name:       "fallback_loris_from_product_snapshot",
			product:    &commerce.Product{BrandName: "Les Loris"},
			wantRate:   "30",
			wantSource: pricing.SourceBrandFallback,
		},
		{
			name:       "fallback_dermokil",
			product:    &commerce.Product{},
			brand:      &commerce.Brand{Name: "dermokil"},
			wantRate:   "25",
			wantSource: pricing.SourceBrandFallback,
		},
		{
			name:       "nothing_matches",
			product:    &commerce.Product{},
			brand:      &commerce.Brand{Name: "Acme"},
			wantRate:   "0",
			wantSource: pricing.SourceNone,
		},
		{
			name:       "nil_product",
			wantRate:   "0",
			wantSource: pricing.SourceNone,
		},
		{
			name:       "out_of_range_clamped",
			product:    &commerce.Product{CommissionRate: ratePtr("130")},
			wantRate:   "100",
			wantSource: pricing.SourceProduct,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolver.Resolve(tt.product, tt.brand)
			requireDecimal(t, tt.wantRate, got.Rate)
			assert.Equal(t, tt.wantSource, got.Source)
		})
	}
}

func TestRateResolver_AlwaysWithinBounds(t *testing.T) {
	resolver := pricing.NewRateResolver(pricing.DefaultFallbackTable())
	rates := []*decimal.Decimal{nil, ratePtr("-20"), ratePtr("0"), ratePtr("55.5"), ratePtr("100"), ratePtr("1000")}
	names := []string{"", "optimal", "Loris", "dermokil", "other"}

	for _, pr := range rates {
		for _, br := range rates {
			for _, name := range names {
				rate := resolver.ResolveRate(
					&commerce.Product{CommissionRate: pr, BrandName: name},
					&commerce.Brand{Name: name, CommissionRate: br},
				)
				assert.False(t, rate.IsNegative())
				assert.True(t, rate.LessThanOrEqual(decimal.NewFromInt(100)))
			}
		}
	}
}

func TestParseFallbackTable(t *testing.T) {
	table, err := pricing.ParseFallbackTable([]byte(`
brand_fallback:
  - match: acme
    rate: 5
  - match: loris
    rate: 12.5
`))
	require.NoError(t, err)
	require.Len(t, table, 2)

	rate, ok := table.Lookup("ACME labs")
	require.True(t, ok)
	requireDecimal(t, "5", rate)

	rate, ok = table.Lookup("loris")
	require.True(t, ok)
	requireDecimal(t, "12.5", rate)

	_, ok = table.Lookup("dermokil")
	assert.False(t, ok)
}

func TestParseFallbackTable_Invalid(t *testing.T) {
	_, err := pricing.ParseFallbackTable([]byte("brand_fallback:\n  - match: acme\n    rate: 101\n"))
	require.Error(t, err)

	_, err = pricing.ParseFallbackTable([]byte("brand_fallback:\n  - match: \"\"\n    rate: 1\n"))
	require.Error(t, err)
}

func TestLoadFallbackTable(t *testing.T) {
	table, err := pricing.LoadFallbackTable("")
	require.NoError(t, err)
	assert.Len(t, table, 3)

	path := filepath.Join(t.TempDir(), "fallback.yaml")
	require.NoError(t, os.WriteFile(path, []byte("brand_fallback:\n  - match: zen\n    rate: 3\n"), 0o600))
	table, err = pricing.LoadFallbackTable(path)
	require.NoError(t, err)
	require.Len(t, table, 1)

	_, err = pricing.LoadFallbackTable(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

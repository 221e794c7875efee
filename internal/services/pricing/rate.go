package pricing

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"storefront-system/internal/commerce"
)

type RateSource string

const (
	SourceProduct       RateSource = "product"
	SourceBrand         RateSource = "brand"
	SourceBrandFallback RateSource = "brand_name_fallback"
	SourceNone          RateSource = "none"
)

type Resolution struct {
	Rate   decimal.Decimal
	Source RateSource
}

// FallbackRule maps a case-insensitive brand-name substring to a rate.
type FallbackRule struct {
	Match string
	Rate  decimal.Decimal
}

// FallbackTable is the legacy brand-name commission table. It only applies
// when neither the product nor its brand carries a rate. Rules are tried in
// order.
type FallbackTable []FallbackRule

func DefaultFallbackTable() FallbackTable {
	return FallbackTable{
		{Match: "optimal", Rate: decimal.NewFromInt(10)},
		{Match: "loris", Rate: decimal.NewFromInt(30)},
		{Match: "dermokil", Rate: decimal.NewFromInt(25)},
	}
}

func (t FallbackTable) Lookup(brandName string) (decimal.Decimal, bool) {
	name := strings.ToLower(brandName)
	if name == "" {
		return decimal.Zero, false
	}
	for _, rule := range t {
		if rule.Match != "" && strings.Contains(name, strings.ToLower(rule.Match)) {
			return rule.Rate, true
		}
	}
	return decimal.Zero, false
}

type fallbackFile struct {
	Rules []struct {
		Match string  `yaml:"match"`
		Rate  float64 `yaml:"rate"`
	} `yaml:"brand_fallback"`
}

func ParseFallbackTable(data []byte) (FallbackTable, error) {
	var f fallbackFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse brand fallback table: %w", err)
	}
	table := make(FallbackTable, 0, len(f.Rules))
	for i, r := range f.Rules {
		if strings.TrimSpace(r.Match) == "" {
			return nil, fmt.Errorf("brand fallback rule %d: match is required", i)
		}
		if r.Rate < 0 || r.Rate > 100 {
			return nil, fmt.Errorf("brand fallback rule %q: rate %v outside [0,100]", r.Match, r.Rate)
		}
		table = append(table, FallbackRule{Match: r.Match, Rate: decimal.NewFromFloat(r.Rate)})
	}
	return table, nil
}

// LoadFallbackTable reads the table from a YAML file. An empty path yields
// the built-in table.
func LoadFallbackTable(path string) (FallbackTable, error) {
	if path == "" {
		return DefaultFallbackTable(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read brand fallback table: %w", err)
	}
	return ParseFallbackTable(data)
}

type RateResolver struct {
	fallback FallbackTable
}

func NewRateResolver(fallback FallbackTable) *RateResolver {
	return &RateResolver{fallback: fallback}
}

// Resolve picks the commission rate for a product. It never fails: missing
// data resolves to a zero rate.
func (r *RateResolver) Resolve(product *commerce.Product, brand *commerce.Brand) Resolution {
	if product == nil {
		return Resolution{Rate: decimal.Zero, Source: SourceNone}
	}
	if product.CommissionRate != nil {
		return Resolution{Rate: ClampPercent(*product.CommissionRate), Source: SourceProduct}
	}
	if brand != nil && brand.CommissionRate != nil {
		return Resolution{Rate: ClampPercent(*brand.CommissionRate), Source: SourceBrand}
	}

	brandName := product.BrandName
	if brand != nil && brand.Name != "" {
		brandName = brand.Name
	}
	if rate, ok := r.fallback.Lookup(brandName); ok {
		return Resolution{Rate: ClampPercent(rate), Source: SourceBrandFallback}
	}

	return Resolution{Rate: decimal.Zero, Source: SourceNone}
}

func (r *RateResolver) ResolveRate(product *commerce.Product, brand *commerce.Brand) decimal.Decimal {
	return r.Resolve(product, brand).Rate
}

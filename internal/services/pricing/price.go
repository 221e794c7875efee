package pricing

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// LinePrice is the unrounded price of one cart line.
type LinePrice struct {
	UnitEffectivePrice decimal.Decimal
	LineSubtotal       decimal.Decimal
}

// PriceLine applies a percentage discount to the unit price and multiplies
// by quantity. Nothing is rounded here; callers round once at the
// persistence boundary with RoundMoney.
func PriceLine(unitPrice, discountPct decimal.Decimal, quantity int) LinePrice {
	effective := unitPrice
	discountPct = ClampPercent(discountPct)
	if discountPct.IsPositive() {
		effective = unitPrice.Sub(unitPrice.Mul(discountPct).Div(hundred))
	}
	return LinePrice{
		UnitEffectivePrice: effective,
		LineSubtotal:       effective.Mul(decimal.NewFromInt(int64(quantity))),
	}
}

// CommissionForLine returns the affiliate payout for a line. It is never
// negative.
func CommissionForLine(lineSubtotal, ratePct decimal.Decimal) decimal.Decimal {
	amount := lineSubtotal.Mul(ClampPercent(ratePct)).Div(hundred)
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}

// AffiliateDiscount reduces a price by the commission rate, for checkouts
// running the commission-as-discount policy.
func AffiliateDiscount(originalPrice, ratePct decimal.Decimal) decimal.Decimal {
	ratePct = ClampPercent(ratePct)
	if ratePct.IsZero() {
		return originalPrice
	}
	return originalPrice.Sub(originalPrice.Mul(ratePct).Div(hundred))
}

func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// ClampPercent forces a percentage into [0,100].
func ClampPercent(p decimal.Decimal) decimal.Decimal {
	if p.IsNegative() {
		return decimal.Zero
	}
	if p.GreaterThan(hundred) {
		return hundred
	}
	return p
}

package orders

import (
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"

	"storefront-system/internal/commerce"
	"storefront-system/internal/services/pricing"
)

// Line is one priced cart line with its already resolved commission rate.
type Line struct {
	ProductID string
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
	Discount  decimal.Decimal
	Rate      decimal.Decimal
}

type Input struct {
	OrderID         string
	InvoiceID       string
	CustomerID      string
	AffiliateID     string
	Lines           []Line
	ShippingFee     decimal.Decimal
	Policy          commerce.CommissionPolicy
	ShippingAddress string
	Phone           string
	PaymentMethod   string
	Now             time.Time
}

type Result struct {
	Order       commerce.Order
	Invoice     commerce.Invoice
	Commissions []commerce.Commission
}

func NewID() string {
	return uuid.Must(uuid.NewV4()).String()
}

// Assemble folds priced lines into an order, its invoice, and the
// commission ledger. Amounts are kept unrounded while summing and rounded
// to cents only on the produced records.
func Assemble(in Input) (*Result, error) {
	if len(in.Lines) == 0 {
		return nil, commerce.InvalidInput("an order requires at least one item", "items")
	}
	if in.ShippingFee.IsNegative() {
		return nil, commerce.InvalidInput("shipping fee cannot be negative", "shipping_fee")
	}
	policy := in.Policy
	if policy == "" {
		policy = commerce.PolicyPayout
	}
	if !policy.Valid() {
		return nil, commerce.InvalidInput("unknown commission policy "+string(policy), "policy")
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	orderID := in.OrderID
	if orderID == "" {
		orderID = NewID()
	}
	invoiceID := in.InvoiceID
	if invoiceID == "" {
		invoiceID = NewID()
	}

	referred := in.AffiliateID != ""
	subtotal := decimal.Zero
	totalCommission := decimal.Zero
	items := make([]commerce.OrderLineItem, 0, len(in.Lines))
	var commissions []commerce.Commission

	for _, line := range in.Lines {
		if line.Quantity < 1 {
			return nil, commerce.InvalidInput("quantity must be at least 1", line.ProductID)
		}

		price := pricing.PriceLine(line.UnitPrice, line.Discount, line.Quantity)
		rate := decimal.Zero
		if referred {
			rate = pricing.ClampPercent(line.Rate)
		}

		if referred && policy == commerce.PolicyDiscount {
			effective := pricing.AffiliateDiscount(price.UnitEffectivePrice, rate)
			price = pricing.LinePrice{
				UnitEffectivePrice: effective,
				LineSubtotal:       effective.Mul(decimal.NewFromInt(int64(line.Quantity))),
			}
		}

		subtotal = subtotal.Add(price.LineSubtotal)
		items = append(items, commerce.OrderLineItem{
			ProductID:      line.ProductID,
			Name:           line.Name,
			Quantity:       line.Quantity,
			Price:          line.UnitPrice,
			Discount:       line.Discount,
			EffectivePrice: pricing.RoundMoney(price.UnitEffectivePrice),
			Subtotal:       pricing.RoundMoney(price.LineSubtotal),
			CommissionRate: rate,
		})

		if !referred || policy != commerce.PolicyPayout {
			continue
		}
		amount := pricing.RoundMoney(pricing.CommissionForLine(price.LineSubtotal, rate))
		if !amount.IsPositive() {
			continue
		}
		totalCommission = totalCommission.Add(amount)
		commissions = append(commissions, commerce.Commission{
			ID:             NewID(),
			OrderID:        orderID,
			AffiliateID:    in.AffiliateID,
			CustomerID:     in.CustomerID,
			ProductID:      line.ProductID,
			CommissionRate: rate,
			Amount:         amount,
			CreatedAt:      now,
		})
	}

	subtotal = pricing.RoundMoney(subtotal)
	fee := pricing.RoundMoney(in.ShippingFee)
	total := subtotal.Add(fee)

	order := commerce.Order{
		ID:               orderID,
		CustomerID:       in.CustomerID,
		AffiliateID:      in.AffiliateID,
		Items:            items,
		Subtotal:         subtotal,
		ShippingFee:      fee,
		Total:            total,
		TotalCommission:  totalCommission,
		CommissionPolicy: policy,
		Status:           commerce.OrderPending,
		ShippingAddress:  in.ShippingAddress,
		Phone:            in.Phone,
		PaymentMethod:    in.PaymentMethod,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	invoice := commerce.Invoice{
		ID:          invoiceID,
		OrderID:     orderID,
		CustomerID:  in.CustomerID,
		Items:       items,
		Subtotal:    subtotal,
		ShippingFee: fee,
		Total:       total,
		Status:      commerce.InvoicePending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if len(commissions) > 0 {
		invoice.Commission = &commerce.CommissionSummary{
			AffiliateID:     in.AffiliateID,
			TotalCommission: totalCommission,
			Lines:           len(commissions),
		}
	}

	return &Result{Order: order, Invoice: invoice, Commissions: commissions}, nil
}

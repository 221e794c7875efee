package postgres

import (
	"github.com/shopspring/decimal"

	"storefront-system/internal/commerce"
	"storefront-system/internal/database/models"
)

// --- Helpers ---
func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func strVal(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(*d)
}

func decimalPtr(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}

func productToDomain(m models.Product) *commerce.Product {
	return &commerce.Product{
		ID:             m.ID,
		Name:           m.Name,
		Price:          m.Price,
		Discount:       m.Discount,
		CommissionRate: decimalPtr(m.CommissionRate),
		Stock:          m.Stock,
		BrandID:        strVal(m.BrandID),
		BrandName:      strVal(m.BrandName),
		CategoryID:     strVal(m.CategoryID),
	}
}

func productFromDomain(p commerce.Product) models.Product {
	return models.Product{
		ID:             p.ID,
		Name:           p.Name,
		Price:          p.Price,
		Discount:       p.Discount,
		CommissionRate: nullDecimal(p.CommissionRate),
		Stock:          p.Stock,
		BrandID:        strPtr(p.BrandID),
		BrandName:      strPtr(p.BrandName),
		CategoryID:     strPtr(p.CategoryID),
	}
}

func brandToDomain(m models.Brand) *commerce.Brand {
	return &commerce.Brand{ID: m.ID, Name: m.Name, CommissionRate: decimalPtr(m.CommissionRate)}
}

func affiliateToDomain(m models.Affiliate) *commerce.Affiliate {
	return &commerce.Affiliate{
		ID:             m.ID,
		UserID:         m.UserID,
		CommissionRate: m.CommissionRate,
		Status:         commerce.AffiliateStatus(m.Status),
	}
}

func orderFromDomain(o *commerce.Order) models.Order {
	items := make([]models.OrderItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, models.OrderItem{
			OrderID:        o.ID,
			ProductID:      it.ProductID,
			Name:           it.Name,
			Quantity:       it.Quantity,
			Price:          it.Price,
			Discount:       it.Discount,
			EffectivePrice: it.EffectivePrice,
			Subtotal:       it.Subtotal,
			CommissionRate: it.CommissionRate,
		})
	}
	return models.Order{
		ID:               o.ID,
		CustomerID:       o.CustomerID,
		AffiliateID:      strPtr(o.AffiliateID),
		Subtotal:         o.Subtotal,
		ShippingFee:      o.ShippingFee,
		TotalAmount:      o.Total,
		TotalCommission:  o.TotalCommission,
		CommissionPolicy: string(o.CommissionPolicy),
		Status:           string(o.Status),
		ShippingAddress:  o.ShippingAddress,
		Phone:            o.Phone,
		PaymentMethod:    o.PaymentMethod,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
		Items:            items,
	}
}

func orderToDomain(m models.Order) *commerce.Order {
	items := make([]commerce.OrderLineItem, 0, len(m.Items))
	for _, it := range m.Items {
		items = append(items, commerce.OrderLineItem{
			ProductID:      it.ProductID,
			Name:           it.Name,
			Quantity:       it.Quantity,
			Price:          it.Price,
			Discount:       it.Discount,
			EffectivePrice: it.EffectivePrice,
			Subtotal:       it.Subtotal,
			CommissionRate: it.CommissionRate,
		})
	}
	return &commerce.Order{
		ID:               m.ID,
		CustomerID:       m.CustomerID,
		AffiliateID:      strVal(m.AffiliateID),
		Items:            items,
		Subtotal:         m.Subtotal,
		ShippingFee:      m.ShippingFee,
		Total:            m.TotalAmount,
		TotalCommission:  m.TotalCommission,
		CommissionPolicy: commerce.CommissionPolicy(m.CommissionPolicy),
		Status:           commerce.OrderStatus(m.Status),
		ShippingAddress:  m.ShippingAddress,
		Phone:            m.Phone,
		PaymentMethod:    m.PaymentMethod,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

func invoiceFromDomain(inv *commerce.Invoice) models.Invoice {
	m := models.Invoice{
		ID:          inv.ID,
		OrderID:     inv.OrderID,
		CustomerID:  inv.CustomerID,
		Items:       models.LineItems(inv.Items),
		Subtotal:    inv.Subtotal,
		ShippingFee: inv.ShippingFee,
		TotalAmount: inv.Total,
		Status:      string(inv.Status),
		PaidAt:      inv.PaidAt,
		CreatedAt:   inv.CreatedAt,
		UpdatedAt:   inv.UpdatedAt,
	}
	if inv.Commission != nil {
		m.CommissionAffiliateID = strPtr(inv.Commission.AffiliateID)
		m.CommissionTotal = decimal.NewNullDecimal(inv.Commission.TotalCommission)
		m.CommissionLines = inv.Commission.Lines
	}
	return m
}

func invoiceToDomain(m models.Invoice) *commerce.Invoice {
	inv := &commerce.Invoice{
		ID:          m.ID,
		OrderID:     m.OrderID,
		CustomerID:  m.CustomerID,
		Items:       []commerce.OrderLineItem(m.Items),
		Subtotal:    m.Subtotal,
		ShippingFee: m.ShippingFee,
		Total:       m.TotalAmount,
		Status:      commerce.InvoiceStatus(m.Status),
		PaidAt:      m.PaidAt,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	if m.CommissionTotal.Valid {
		inv.Commission = &commerce.CommissionSummary{
			AffiliateID:     strVal(m.CommissionAffiliateID),
			TotalCommission: m.CommissionTotal.Decimal,
			Lines:           m.CommissionLines,
		}
	}
	return inv
}

func commissionFromDomain(c *commerce.Commission) models.Commission {
	return models.Commission{
		ID:             c.ID,
		OrderID:        c.OrderID,
		AffiliateID:    c.AffiliateID,
		CustomerID:     c.CustomerID,
		ProductID:      c.ProductID,
		CommissionRate: c.CommissionRate,
		Amount:         c.Amount,
		IsPaid:         c.IsPaid,
		PaidAt:         c.PaidAt,
		CreatedAt:      c.CreatedAt,
	}
}

func commissionToDomain(m models.Commission) commerce.Commission {
	return commerce.Commission{
		ID:             m.ID,
		OrderID:        m.OrderID,
		AffiliateID:    m.AffiliateID,
		CustomerID:     m.CustomerID,
		ProductID:      m.ProductID,
		CommissionRate: m.CommissionRate,
		Amount:         m.Amount,
		IsPaid:         m.IsPaid,
		PaidAt:         m.PaidAt,
		CreatedAt:      m.CreatedAt,
	}
}

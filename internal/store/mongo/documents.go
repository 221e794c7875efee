package mongo

import (
	"time"

	"github.com/shopspring/decimal"

	"storefront-system/internal/commerce"
)

// Documents keep the legacy PascalCase field names and float amounts.
// Reference fields are decoded loosely and normalised on the way in.

type productDoc struct {
	ID             string      `bson:"_id"`
	Name           string      `bson:"Name"`
	Price          float64     `bson:"Price"`
	Discount       float64     `bson:"Discount,omitempty"`
	CommissionRate *float64    `bson:"CommissionRate,omitempty"`
	Stock          int         `bson:"Stock"`
	Brand          interface{} `bson:"BrandId,omitempty"`
	BrandName      string      `bson:"BrandName,omitempty"`
	Category       interface{} `bson:"CategoryId,omitempty"`
}

type brandDoc struct {
	ID             string   `bson:"_id"`
	Name           string   `bson:"Name"`
	CommissionRate *float64 `bson:"CommissionRate,omitempty"`
}

type affiliateDoc struct {
	ID             string      `bson:"_id"`
	User           interface{} `bson:"UserId"`
	CommissionRate float64     `bson:"CommissionRate"`
	Status         string      `bson:"Status"`
}

type cartItemDoc struct {
	Product   interface{} `bson:"ProductId"`
	Name      string      `bson:"Name"`
	Quantity  int         `bson:"Quantity"`
	UnitPrice float64     `bson:"UnitPrice"`
	Discount  float64     `bson:"Discount"`
	Subtotal  float64     `bson:"Subtotal"`
}

type cartDoc struct {
	UserID    string        `bson:"_id"`
	Items     []cartItemDoc `bson:"Items"`
	UpdatedAt time.Time     `bson:"UpdatedAt"`
}

type lineItemDoc struct {
	Product        interface{} `bson:"ProductId"`
	Name           string      `bson:"Name"`
	Quantity       int         `bson:"Quantity"`
	Price          float64     `bson:"Price"`
	Discount       float64     `bson:"Discount"`
	EffectivePrice float64     `bson:"EffectivePrice"`
	Subtotal       float64     `bson:"Subtotal"`
	CommissionRate float64     `bson:"CommissionRate"`
}

type orderDoc struct {
	ID               string        `bson:"_id"`
	Customer         interface{}   `bson:"CustomerId"`
	Affiliate        interface{}   `bson:"AffiliateId,omitempty"`
	Items            []lineItemDoc `bson:"Items"`
	Subtotal         float64       `bson:"Subtotal"`
	ShippingFee      float64       `bson:"ShippingFee"`
	TotalAmount      float64       `bson:"TotalAmount"`
	TotalCommission  float64       `bson:"TotalCommission"`
	CommissionPolicy string        `bson:"CommissionPolicy,omitempty"`
	Status           string        `bson:"Status"`
	ShippingAddress  string        `bson:"ShippingAddress"`
	Phone            string        `bson:"Phone"`
	PaymentMethod    string        `bson:"PaymentMethod"`
	CreatedAt        time.Time     `bson:"CreatedAt"`
	UpdatedAt        time.Time     `bson:"UpdatedAt"`
}

type commissionSummaryDoc struct {
	Affiliate       interface{} `bson:"AffiliateId"`
	TotalCommission float64     `bson:"TotalCommission"`
	Lines           int         `bson:"Lines"`
}

type invoiceDoc struct {
	ID          string                `bson:"_id"`
	Order       interface{}           `bson:"OrderId"`
	Customer    interface{}           `bson:"CustomerId"`
	Items       []lineItemDoc         `bson:"Items"`
	Subtotal    float64               `bson:"Subtotal"`
	ShippingFee float64               `bson:"ShippingFee"`
	TotalAmount float64               `bson:"TotalAmount"`
	Status      string                `bson:"Status"`
	Commission  *commissionSummaryDoc `bson:"Commission,omitempty"`
	PaidAt      *time.Time            `bson:"PaidAt,omitempty"`
	CreatedAt   time.Time             `bson:"CreatedAt"`
	UpdatedAt   time.Time             `bson:"UpdatedAt"`
}

type commissionDoc struct {
	ID             string      `bson:"_id"`
	Order          interface{} `bson:"OrderId"`
	Affiliate      interface{} `bson:"AffiliateId"`
	Customer       interface{} `bson:"CustomerId"`
	Product        interface{} `bson:"ProductId"`
	CommissionRate float64     `bson:"CommissionRate"`
	Amount         float64     `bson:"Amount"`
	IsPaid         bool        `bson:"IsPaid"`
	PaidAt         *time.Time  `bson:"PaidAt,omitempty"`
	CreatedAt      time.Time   `bson:"CreatedAt"`
}

func money(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f).Round(2)
}

func num(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func float(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}

func optionalRate(f *float64) *decimal.Decimal {
	if f == nil {
		return nil
	}
	d := decimal.NewFromFloat(*f)
	return &d
}

func optionalFloat(d *decimal.Decimal) *float64 {
	if d == nil {
		return nil
	}
	f := d.InexactFloat64()
	return &f
}

func optionalString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func (d productDoc) toDomain() *commerce.Product {
	return &commerce.Product{
		ID:             d.ID,
		Name:           d.Name,
		Price:          money(d.Price),
		Discount:       num(d.Discount),
		CommissionRate: optionalRate(d.CommissionRate),
		Stock:          d.Stock,
		BrandID:        normalizeRef(d.Brand),
		BrandName:      d.BrandName,
		CategoryID:     normalizeRef(d.Category),
	}
}

func productDocFrom(p commerce.Product) productDoc {
	return productDoc{
		ID:             p.ID,
		Name:           p.Name,
		Price:          float(p.Price),
		Discount:       float(p.Discount),
		CommissionRate: optionalFloat(p.CommissionRate),
		Stock:          p.Stock,
		Brand:          optionalString(p.BrandID),
		BrandName:      p.BrandName,
		Category:       optionalString(p.CategoryID),
	}
}

func (d brandDoc) toDomain() *commerce.Brand {
	return &commerce.Brand{ID: d.ID, Name: d.Name, CommissionRate: optionalRate(d.CommissionRate)}
}

func (d affiliateDoc) toDomain() *commerce.Affiliate {
	return &commerce.Affiliate{
		ID:             d.ID,
		UserID:         normalizeRef(d.User),
		CommissionRate: num(d.CommissionRate),
		Status:         commerce.AffiliateStatus(d.Status),
	}
}

func (d cartDoc) toDomain() *commerce.Cart {
	items := make([]commerce.CartItem, 0, len(d.Items))
	for _, it := range d.Items {
		items = append(items, commerce.CartItem{
			ProductID: normalizeRef(it.Product),
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: money(it.UnitPrice),
			Discount:  num(it.Discount),
			Subtotal:  money(it.Subtotal),
		})
	}
	return &commerce.Cart{UserID: d.UserID, Items: items, UpdatedAt: d.UpdatedAt}
}

func cartDocFrom(c *commerce.Cart) cartDoc {
	items := make([]cartItemDoc, 0, len(c.Items))
	for _, it := range c.Items {
		items = append(items, cartItemDoc{
			Product:   it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: float(it.UnitPrice),
			Discount:  float(it.Discount),
			Subtotal:  float(it.Subtotal),
		})
	}
	return cartDoc{UserID: c.UserID, Items: items, UpdatedAt: c.UpdatedAt}
}

func lineItemsToDomain(docs []lineItemDoc) []commerce.OrderLineItem {
	items := make([]commerce.OrderLineItem, 0, len(docs))
	for _, it := range docs {
		items = append(items, commerce.OrderLineItem{
			ProductID:      normalizeRef(it.Product),
			Name:           it.Name,
			Quantity:       it.Quantity,
			Price:          money(it.Price),
			Discount:       num(it.Discount),
			EffectivePrice: money(it.EffectivePrice),
			Subtotal:       money(it.Subtotal),
			CommissionRate: num(it.CommissionRate),
		})
	}
	return items
}

func lineItemDocs(items []commerce.OrderLineItem) []lineItemDoc {
	docs := make([]lineItemDoc, 0, len(items))
	for _, it := range items {
		docs = append(docs, lineItemDoc{
			Product:        it.ProductID,
			Name:           it.Name,
			Quantity:       it.Quantity,
			Price:          float(it.Price),
			Discount:       float(it.Discount),
			EffectivePrice: float(it.EffectivePrice),
			Subtotal:       float(it.Subtotal),
			CommissionRate: float(it.CommissionRate),
		})
	}
	return docs
}

func (d orderDoc) toDomain() *commerce.Order {
	policy := commerce.CommissionPolicy(d.CommissionPolicy)
	if policy == "" {
		policy = commerce.PolicyPayout
	}
	return &commerce.Order{
		ID:               d.ID,
		CustomerID:       normalizeRef(d.Customer),
		AffiliateID:      normalizeRef(d.Affiliate),
		Items:            lineItemsToDomain(d.Items),
		Subtotal:         money(d.Subtotal),
		ShippingFee:      money(d.ShippingFee),
		Total:            money(d.TotalAmount),
		TotalCommission:  money(d.TotalCommission),
		CommissionPolicy: policy,
		Status:           commerce.OrderStatus(d.Status),
		ShippingAddress:  d.ShippingAddress,
		Phone:            d.Phone,
		PaymentMethod:    d.PaymentMethod,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}

func orderDocFrom(o *commerce.Order) orderDoc {
	return orderDoc{
		ID:               o.ID,
		Customer:         o.CustomerID,
		Affiliate:        optionalString(o.AffiliateID),
		Items:            lineItemDocs(o.Items),
		Subtotal:         float(o.Subtotal),
		ShippingFee:      float(o.ShippingFee),
		TotalAmount:      float(o.Total),
		TotalCommission:  float(o.TotalCommission),
		CommissionPolicy: string(o.CommissionPolicy),
		Status:           string(o.Status),
		ShippingAddress:  o.ShippingAddress,
		Phone:            o.Phone,
		PaymentMethod:    o.PaymentMethod,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}
}

func (d invoiceDoc) toDomain() *commerce.Invoice {
	inv := &commerce.Invoice{
		ID:          d.ID,
		OrderID:     normalizeRef(d.Order),
		CustomerID:  normalizeRef(d.Customer),
		Items:       lineItemsToDomain(d.Items),
		Subtotal:    money(d.Subtotal),
		ShippingFee: money(d.ShippingFee),
		Total:       money(d.TotalAmount),
		Status:      commerce.InvoiceStatus(d.Status),
		PaidAt:      d.PaidAt,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
	if d.Commission != nil {
		inv.Commission = &commerce.CommissionSummary{
			AffiliateID:     normalizeRef(d.Commission.Affiliate),
			TotalCommission: money(d.Commission.TotalCommission),
			Lines:           d.Commission.Lines,
		}
	}
	return inv
}

func invoiceDocFrom(inv *commerce.Invoice) invoiceDoc {
	d := invoiceDoc{
		ID:          inv.ID,
		Order:       inv.OrderID,
		Customer:    inv.CustomerID,
		Items:       lineItemDocs(inv.Items),
		Subtotal:    float(inv.Subtotal),
		ShippingFee: float(inv.ShippingFee),
		TotalAmount: float(inv.Total),
		Status:      string(inv.Status),
		PaidAt:      inv.PaidAt,
		CreatedAt:   inv.CreatedAt,
		UpdatedAt:   inv.UpdatedAt,
	}
	if inv.Commission != nil {
		d.Commission = &commissionSummaryDoc{
			Affiliate:       inv.Commission.AffiliateID,
			TotalCommission: float(inv.Commission.TotalCommission),
			Lines:           inv.Commission.Lines,
		}
	}
	return d
}

func (d commissionDoc) toDomain() commerce.Commission {
	return commerce.Commission{
		ID:             d.ID,
		OrderID:        normalizeRef(d.Order),
		AffiliateID:    normalizeRef(d.Affiliate),
		CustomerID:     normalizeRef(d.Customer),
		ProductID:      normalizeRef(d.Product),
		CommissionRate: num(d.CommissionRate),
		Amount:         money(d.Amount),
		IsPaid:         d.IsPaid,
		PaidAt:         d.PaidAt,
		CreatedAt:      d.CreatedAt,
	}
}

func commissionDocFrom(c *commerce.Commission) commissionDoc {
	return commissionDoc{
		ID:             c.ID,
		Order:          c.OrderID,
		Affiliate:      c.AffiliateID,
		Customer:       c.CustomerID,
		Product:        c.ProductID,
		CommissionRate: float(c.CommissionRate),
		Amount:         float(c.Amount),
		IsPaid:         c.IsPaid,
		PaidAt:         c.PaidAt,
		CreatedAt:      c.CreatedAt,
	}
}

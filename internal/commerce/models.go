package commerce

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Field names follow the legacy document store (PascalCase, "Id" suffix) so
// existing records and clients keep working.

type OrderStatus string

const (
	OrderPending    OrderStatus = "Pending"
	OrderProcessing OrderStatus = "Processing"
	OrderShipped    OrderStatus = "Shipped"
	OrderDelivered  OrderStatus = "Delivered"
	OrderCancelled  OrderStatus = "Cancelled"
)

func (s OrderStatus) String() string {
	return string(s)
}

// ParseOrderStatus matches case-insensitively against the known statuses.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	for _, st := range []OrderStatus{OrderPending, OrderProcessing, OrderShipped, OrderDelivered, OrderCancelled} {
		if strings.EqualFold(s, string(st)) {
			return st, true
		}
	}
	return "", false
}

type InvoiceStatus string

const (
	InvoicePending InvoiceStatus = "Pending"
	InvoicePaid    InvoiceStatus = "Paid"
	InvoiceOverdue InvoiceStatus = "Overdue"
	// InvoiceVoid marks the invoice of a cancelled order.
	InvoiceVoid InvoiceStatus = "Void"
)

type AffiliateStatus string

const (
	AffiliateActive   AffiliateStatus = "Active"
	AffiliateInactive AffiliateStatus = "Inactive"
	AffiliatePending  AffiliateStatus = "Pending"
)

// CommissionPolicy selects how an affiliate referral is priced. The two
// policies are never applied to the same line.
type CommissionPolicy string

const (
	// PolicyPayout records a commission owed to the affiliate; the customer
	// pays the regular discounted price.
	PolicyPayout CommissionPolicy = "payout"
	// PolicyDiscount passes the commission rate to the customer as an extra
	// discount and records no commission.
	PolicyDiscount CommissionPolicy = "discount"
)

func (p CommissionPolicy) Valid() bool {
	return p == PolicyPayout || p == PolicyDiscount
}

type Product struct {
	ID             string           `json:"Id"`
	Name           string           `json:"Name"`
	Price          decimal.Decimal  `json:"Price"`
	Discount       decimal.Decimal  `json:"Discount"`
	CommissionRate *decimal.Decimal `json:"CommissionRate,omitempty"`
	Stock          int              `json:"Stock"`
	BrandID        string           `json:"BrandId,omitempty"`
	BrandName      string           `json:"BrandName,omitempty"`
	CategoryID     string           `json:"CategoryId,omitempty"`
}

type Brand struct {
	ID             string           `json:"Id"`
	Name           string           `json:"Name"`
	CommissionRate *decimal.Decimal `json:"CommissionRate,omitempty"`
}

type CartItem struct {
	ProductID string          `json:"ProductId"`
	Name      string          `json:"Name"`
	Quantity  int             `json:"Quantity"`
	UnitPrice decimal.Decimal `json:"UnitPrice"`
	Discount  decimal.Decimal `json:"Discount"`
	Subtotal  decimal.Decimal `json:"Subtotal"`
}

type Cart struct {
	UserID    string     `json:"UserId"`
	Items     []CartItem `json:"Items"`
	UpdatedAt time.Time  `json:"UpdatedAt"`
}

func (c *Cart) Empty() bool {
	return c == nil || len(c.Items) == 0
}

// OrderLineItem is a snapshot taken at checkout and never edited afterwards.
type OrderLineItem struct {
	ProductID      string          `json:"ProductId"`
	Name           string          `json:"Name"`
	Quantity       int             `json:"Quantity"`
	Price          decimal.Decimal `json:"Price"`
	Discount       decimal.Decimal `json:"Discount"`
	EffectivePrice decimal.Decimal `json:"EffectivePrice"`
	Subtotal       decimal.Decimal `json:"Subtotal"`
	CommissionRate decimal.Decimal `json:"CommissionRate"`
}

type Order struct {
	ID               string           `json:"Id"`
	CustomerID       string           `json:"CustomerId"`
	AffiliateID      string           `json:"AffiliateId,omitempty"`
	Items            []OrderLineItem  `json:"Items"`
	Subtotal         decimal.Decimal  `json:"Subtotal"`
	ShippingFee      decimal.Decimal  `json:"ShippingFee"`
	Total            decimal.Decimal  `json:"TotalAmount"`
	TotalCommission  decimal.Decimal  `json:"TotalCommission"`
	CommissionPolicy CommissionPolicy `json:"CommissionPolicy"`
	Status           OrderStatus      `json:"Status"`
	ShippingAddress  string           `json:"ShippingAddress"`
	Phone            string           `json:"Phone"`
	PaymentMethod    string           `json:"PaymentMethod"`
	CreatedAt        time.Time        `json:"CreatedAt"`
	UpdatedAt        time.Time        `json:"UpdatedAt"`
}

// CommissionSummary is embedded in an invoice for display only.
type CommissionSummary struct {
	AffiliateID     string          `json:"AffiliateId"`
	TotalCommission decimal.Decimal `json:"TotalCommission"`
	Lines           int             `json:"Lines"`
}

type Invoice struct {
	ID          string             `json:"Id"`
	OrderID     string             `json:"OrderId"`
	CustomerID  string             `json:"CustomerId"`
	Items       []OrderLineItem    `json:"Items"`
	Subtotal    decimal.Decimal    `json:"Subtotal"`
	ShippingFee decimal.Decimal    `json:"ShippingFee"`
	Total       decimal.Decimal    `json:"TotalAmount"`
	Status      InvoiceStatus      `json:"Status"`
	Commission  *CommissionSummary `json:"Commission,omitempty"`
	PaidAt      *time.Time         `json:"PaidAt,omitempty"`
	CreatedAt   time.Time          `json:"CreatedAt"`
	UpdatedAt   time.Time          `json:"UpdatedAt"`
}

type Commission struct {
	ID             string          `json:"Id"`
	OrderID        string          `json:"OrderId"`
	AffiliateID    string          `json:"AffiliateId"`
	CustomerID     string          `json:"CustomerId"`
	ProductID      string          `json:"ProductId"`
	CommissionRate decimal.Decimal `json:"CommissionRate"`
	Amount         decimal.Decimal `json:"Amount"`
	IsPaid         bool            `json:"IsPaid"`
	PaidAt         *time.Time      `json:"PaidAt,omitempty"`
	CreatedAt      time.Time       `json:"CreatedAt"`
}

type Affiliate struct {
	ID             string          `json:"Id"`
	UserID         string          `json:"UserId"`
	CommissionRate decimal.Decimal `json:"CommissionRate"`
	Status         AffiliateStatus `json:"Status"`
}

package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"storefront-system/internal/commerce"
)

type Brand struct {
	ID             string              `gorm:"primaryKey;type:varchar(64)"`
	Name           string              `gorm:"type:varchar(128);not null"`
	CommissionRate decimal.NullDecimal `gorm:"type:numeric(5,2)"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Product struct {
	ID             string              `gorm:"primaryKey;type:varchar(64)"`
	Name           string              `gorm:"type:varchar(128);not null"`
	Price          decimal.Decimal     `gorm:"type:numeric(12,2);not null"`
	Discount       decimal.Decimal     `gorm:"type:numeric(5,2);not null"`
	CommissionRate decimal.NullDecimal `gorm:"type:numeric(5,2)"`
	Stock          int                 `gorm:"not null"`
	BrandID        *string             `gorm:"type:varchar(64)"`
	BrandName      *string             `gorm:"type:varchar(128)"`
	CategoryID     *string             `gorm:"type:varchar(64)"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Affiliate struct {
	ID             string          `gorm:"primaryKey;type:varchar(64)"`
	UserID         string          `gorm:"type:varchar(64);not null"`
	CommissionRate decimal.Decimal `gorm:"type:numeric(5,2);not null"`
	Status         string          `gorm:"type:varchar(16);not null"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Cart struct {
	UserID    string    `gorm:"primaryKey;type:varchar(64)"`
	Items     CartItems `gorm:"type:jsonb;not null"`
	UpdatedAt time.Time
}

type Order struct {
	ID               string          `gorm:"primaryKey;type:varchar(64)"`
	CustomerID       string          `gorm:"type:varchar(64);index;not null"`
	AffiliateID      *string         `gorm:"type:varchar(64)"`
	Subtotal         decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	ShippingFee      decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	TotalAmount      decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	TotalCommission  decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	CommissionPolicy string          `gorm:"type:varchar(16);not null"`
	Status           string          `gorm:"type:varchar(16);not null"`
	ShippingAddress  string          `gorm:"type:text;not null"`
	Phone            string          `gorm:"type:varchar(32);not null"`
	PaymentMethod    string          `gorm:"type:varchar(32);not null"`
	CreatedAt        time.Time
	UpdatedAt        time.Time

	Items []OrderItem `gorm:"foreignKey:OrderID"`
}

type OrderItem struct {
	ID             int64           `gorm:"primaryKey;autoIncrement"`
	OrderID        string          `gorm:"type:varchar(64);index;not null"`
	ProductID      string          `gorm:"type:varchar(64);not null"`
	Name           string          `gorm:"type:varchar(128);not null"`
	Quantity       int             `gorm:"not null"`
	Price          decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Discount       decimal.Decimal `gorm:"type:numeric(5,2);not null"`
	EffectivePrice decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Subtotal       decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	CommissionRate decimal.Decimal `gorm:"type:numeric(5,2);not null"`
}

type Invoice struct {
	ID                    string              `gorm:"primaryKey;type:varchar(64)"`
	OrderID               string              `gorm:"type:varchar(64);uniqueIndex;not null"`
	CustomerID            string              `gorm:"type:varchar(64);not null"`
	Items                 LineItems           `gorm:"type:jsonb;not null"`
	Subtotal              decimal.Decimal     `gorm:"type:numeric(12,2);not null"`
	ShippingFee           decimal.Decimal     `gorm:"type:numeric(12,2);not null"`
	TotalAmount           decimal.Decimal     `gorm:"type:numeric(12,2);not null"`
	Status                string              `gorm:"type:varchar(16);not null"`
	CommissionAffiliateID *string             `gorm:"type:varchar(64)"`
	CommissionTotal       decimal.NullDecimal `gorm:"type:numeric(12,2)"`
	CommissionLines       int                 `gorm:"not null"`
	PaidAt                *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

type Commission struct {
	ID             string          `gorm:"primaryKey;type:varchar(64)"`
	OrderID        string          `gorm:"type:varchar(64);index;not null"`
	AffiliateID    string          `gorm:"type:varchar(64);index;not null"`
	CustomerID     string          `gorm:"type:varchar(64);not null"`
	ProductID      string          `gorm:"type:varchar(64);not null"`
	CommissionRate decimal.Decimal `gorm:"type:numeric(5,2);not null"`
	Amount         decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	IsPaid         bool            `gorm:"not null"`
	PaidAt         *time.Time
	CreatedAt      time.Time
}

// CartItems and LineItems are stored as JSON documents.
type CartItems []commerce.CartItem

func (a *CartItems) Scan(value interface{}) error {
	if value == nil {
		*a = CartItems{}
		return nil
	}
	data, err := jsonBytes(value)
	if err != nil {
		return fmt.Errorf("failed to scan CartItems: %w", err)
	}
	return json.Unmarshal(data, a)
}

func (a CartItems) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

type LineItems []commerce.OrderLineItem

func (a *LineItems) Scan(value interface{}) error {
	if value == nil {
		*a = LineItems{}
		return nil
	}
	data, err := jsonBytes(value)
	if err != nil {
		return fmt.Errorf("failed to scan LineItems: %w", err)
	}
	return json.Unmarshal(data, a)
}

func (a LineItems) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func jsonBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported type %T", value)
	}
}

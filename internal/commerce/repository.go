package commerce

import (
	"context"
	"time"
)

type ProductRepository interface {
	Get(ctx context.Context, id string) (*Product, error)
	// DecrementStock subtracts qty only if at least qty units are in stock,
	// otherwise it returns ErrInsufficientStock and leaves stock unchanged.
	DecrementStock(ctx context.Context, id string, qty int) error
	Restock(ctx context.Context, id string, qty int) error
}

type BrandRepository interface {
	Get(ctx context.Context, id string) (*Brand, error)
}

type CartRepository interface {
	// Get returns an empty cart when the user has none.
	Get(ctx context.Context, userID string) (*Cart, error)
	Save(ctx context.Context, cart *Cart) error
	Clear(ctx context.Context, userID string) error
}

type OrderRepository interface {
	Create(ctx context.Context, order *Order) (string, error)
	Get(ctx context.Context, id string) (*Order, error)
	// UpdateStatus moves the order to `to` only while its current status is
	// one of `from`; otherwise it returns ErrStatusConflict.
	UpdateStatus(ctx context.Context, id string, from []OrderStatus, to OrderStatus) error
	Delete(ctx context.Context, id string) error
}

type InvoiceRepository interface {
	Create(ctx context.Context, invoice *Invoice) (string, error)
	Get(ctx context.Context, id string) (*Invoice, error)
	GetByOrder(ctx context.Context, orderID string) (*Invoice, error)
	MarkPaid(ctx context.Context, id string, paidAt time.Time) error
	// UpdateStatus behaves like OrderRepository.UpdateStatus.
	UpdateStatus(ctx context.Context, id string, from []InvoiceStatus, to InvoiceStatus) error
	// MarkOverdue flips Pending invoices created before the cutoff.
	MarkOverdue(ctx context.Context, createdBefore time.Time) (int64, error)
	Delete(ctx context.Context, id string) error
}

type CommissionRepository interface {
	Create(ctx context.Context, commission *Commission) (string, error)
	Get(ctx context.Context, id string) (*Commission, error)
	MarkPaid(ctx context.Context, id string, paidAt time.Time) error
	ListByAffiliate(ctx context.Context, affiliateID string) ([]Commission, error)
	DeleteByOrder(ctx context.Context, orderID string) error
}

type AffiliateRepository interface {
	Get(ctx context.Context, id string) (*Affiliate, error)
}

// Repositories is the persistence surface the services work against.
type Repositories struct {
	Products    ProductRepository
	Brands      BrandRepository
	Carts       CartRepository
	Orders      OrderRepository
	Invoices    InvoiceRepository
	Commissions CommissionRepository
	Affiliates  AffiliateRepository
}

type Store interface {
	Repositories() Repositories
}

// Transactor is implemented by stores that can run a set of writes
// atomically. Stores without it get saga-style compensation instead.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}

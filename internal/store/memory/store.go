// Package memory is an in-process store used for development and tests. It
// has no transactions, so checkout runs against it with compensations.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"storefront-system/internal/commerce"
)

type Store struct {
	mu          sync.Mutex
	products    map[string]commerce.Product
	brands      map[string]commerce.Brand
	carts       map[string]commerce.Cart
	orders      map[string]commerce.Order
	invoices    map[string]commerce.Invoice
	commissions map[string]commerce.Commission
	affiliates  map[string]commerce.Affiliate
}

func New() *Store {
	return &Store{
		products:    make(map[string]commerce.Product),
		brands:      make(map[string]commerce.Brand),
		carts:       make(map[string]commerce.Cart),
		orders:      make(map[string]commerce.Order),
		invoices:    make(map[string]commerce.Invoice),
		commissions: make(map[string]commerce.Commission),
		affiliates:  make(map[string]commerce.Affiliate),
	}
}

func (s *Store) Repositories() commerce.Repositories {
	return commerce.Repositories{
		Products:    productRepo{s},
		Brands:      brandRepo{s},
		Carts:       cartRepo{s},
		Orders:      orderRepo{s},
		Invoices:    invoiceRepo{s},
		Commissions: commissionRepo{s},
		Affiliates:  affiliateRepo{s},
	}
}

// --- Seeding ---

func (s *Store) PutProduct(p commerce.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = copyProduct(p)
}

func (s *Store) PutBrand(b commerce.Brand) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.CommissionRate != nil {
		r := *b.CommissionRate
		b.CommissionRate = &r
	}
	s.brands[b.ID] = b
}

func (s *Store) PutAffiliate(a commerce.Affiliate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.affiliates[a.ID] = a
}

// --- Products ---

type productRepo struct{ s *Store }

func (r productRepo) Get(ctx context.Context, id string) (*commerce.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[id]
	if !ok {
		return nil, fmt.Errorf("product %s: %w", id, commerce.ErrNotFound)
	}
	out := copyProduct(p)
	return &out, nil
}

func (r productRepo) DecrementStock(ctx context.Context, id string, qty int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[id]
	if !ok {
		return fmt.Errorf("product %s: %w", id, commerce.ErrNotFound)
	}
	if p.Stock < qty {
		return commerce.ErrInsufficientStock
	}
	p.Stock -= qty
	r.s.products[id] = p
	return nil
}

func (r productRepo) Restock(ctx context.Context, id string, qty int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[id]
	if !ok {
		return fmt.Errorf("product %s: %w", id, commerce.ErrNotFound)
	}
	p.Stock += qty
	r.s.products[id] = p
	return nil
}

// --- Brands ---

type brandRepo struct{ s *Store }

func (r brandRepo) Get(ctx context.Context, id string) (*commerce.Brand, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.brands[id]
	if !ok {
		return nil, fmt.Errorf("brand %s: %w", id, commerce.ErrNotFound)
	}
	if b.CommissionRate != nil {
		rate := *b.CommissionRate
		b.CommissionRate = &rate
	}
	return &b, nil
}

// --- Carts ---

type cartRepo struct{ s *Store }

func (r cartRepo) Get(ctx context.Context, userID string) (*commerce.Cart, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.carts[userID]
	if !ok {
		return &commerce.Cart{UserID: userID, Items: []commerce.CartItem{}}, nil
	}
	c.Items = slices.Clone(c.Items)
	return &c, nil
}

func (r cartRepo) Save(ctx context.Context, cart *commerce.Cart) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := *cart
	c.Items = slices.Clone(cart.Items)
	r.s.carts[cart.UserID] = c
	return nil
}

func (r cartRepo) Clear(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.carts, userID)
	return nil
}

// --- Orders ---

type orderRepo struct{ s *Store }

func (r orderRepo) Create(ctx context.Context, order *commerce.Order) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.orders[order.ID]; exists {
		return "", fmt.Errorf("order %s already exists", order.ID)
	}
	o := *order
	o.Items = slices.Clone(order.Items)
	r.s.orders[o.ID] = o
	return o.ID, nil
}

func (r orderRepo) Get(ctx context.Context, id string) (*commerce.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", id, commerce.ErrNotFound)
	}
	o.Items = slices.Clone(o.Items)
	return &o, nil
}

func (r orderRepo) UpdateStatus(ctx context.Context, id string, from []commerce.OrderStatus, to commerce.OrderStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok {
		return fmt.Errorf("order %s: %w", id, commerce.ErrNotFound)
	}
	if !slices.Contains(from, o.Status) {
		return fmt.Errorf("order %s is %s: %w", id, o.Status, commerce.ErrStatusConflict)
	}
	o.Status = to
	o.UpdatedAt = time.Now().UTC()
	r.s.orders[id] = o
	return nil
}

func (r orderRepo) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.orders, id)
	return nil
}

// --- Invoices ---

type invoiceRepo struct{ s *Store }

func (r invoiceRepo) Create(ctx context.Context, invoice *commerce.Invoice) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.invoices[invoice.ID]; exists {
		return "", fmt.Errorf("invoice %s already exists", invoice.ID)
	}
	r.s.invoices[invoice.ID] = copyInvoice(*invoice)
	return invoice.ID, nil
}

func (r invoiceRepo) Get(ctx context.Context, id string) (*commerce.Invoice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inv, ok := r.s.invoices[id]
	if !ok {
		return nil, fmt.Errorf("invoice %s: %w", id, commerce.ErrNotFound)
	}
	out := copyInvoice(inv)
	return &out, nil
}

func (r invoiceRepo) GetByOrder(ctx context.Context, orderID string) (*commerce.Invoice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, inv := range r.s.invoices {
		if inv.OrderID == orderID {
			out := copyInvoice(inv)
			return &out, nil
		}
	}
	return nil, fmt.Errorf("invoice for order %s: %w", orderID, commerce.ErrNotFound)
}

func (r invoiceRepo) MarkPaid(ctx context.Context, id string, paidAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inv, ok := r.s.invoices[id]
	if !ok {
		return fmt.Errorf("invoice %s: %w", id, commerce.ErrNotFound)
	}
	inv.Status = commerce.InvoicePaid
	inv.PaidAt = &paidAt
	inv.UpdatedAt = paidAt
	r.s.invoices[id] = inv
	return nil
}

func (r invoiceRepo) UpdateStatus(ctx context.Context, id string, from []commerce.InvoiceStatus, to commerce.InvoiceStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inv, ok := r.s.invoices[id]
	if !ok {
		return fmt.Errorf("invoice %s: %w", id, commerce.ErrNotFound)
	}
	if !slices.Contains(from, inv.Status) {
		return fmt.Errorf("invoice %s is %s: %w", id, inv.Status, commerce.ErrStatusConflict)
	}
	inv.Status = to
	inv.UpdatedAt = time.Now().UTC()
	r.s.invoices[id] = inv
	return nil
}

func (r invoiceRepo) MarkOverdue(ctx context.Context, createdBefore time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, inv := range r.s.invoices {
		if inv.Status == commerce.InvoicePending && inv.CreatedAt.Before(createdBefore) {
			inv.Status = commerce.InvoiceOverdue
			inv.UpdatedAt = time.Now().UTC()
			r.s.invoices[id] = inv
			n++
		}
	}
	return n, nil
}

func (r invoiceRepo) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.invoices, id)
	return nil
}

// --- Commissions ---

type commissionRepo struct{ s *Store }

func (r commissionRepo) Create(ctx context.Context, c *commerce.Commission) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.commissions[c.ID]; exists {
		return "", fmt.Errorf("commission %s already exists", c.ID)
	}
	r.s.commissions[c.ID] = copyCommission(*c)
	return c.ID, nil
}

func (r commissionRepo) Get(ctx context.Context, id string) (*commerce.Commission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.commissions[id]
	if !ok {
		return nil, fmt.Errorf("commission %s: %w", id, commerce.ErrNotFound)
	}
	out := copyCommission(c)
	return &out, nil
}

func (r commissionRepo) MarkPaid(ctx context.Context, id string, paidAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.commissions[id]
	if !ok {
		return fmt.Errorf("commission %s: %w", id, commerce.ErrNotFound)
	}
	if c.IsPaid {
		return nil
	}
	c.IsPaid = true
	c.PaidAt = &paidAt
	r.s.commissions[id] = c
	return nil
}

func (r commissionRepo) ListByAffiliate(ctx context.Context, affiliateID string) ([]commerce.Commission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []commerce.Commission
	for _, c := range r.s.commissions {
		if c.AffiliateID == affiliateID {
			out = append(out, copyCommission(c))
		}
	}
	slices.SortFunc(out, func(a, b commerce.Commission) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, nil
}

func (r commissionRepo) DeleteByOrder(ctx context.Context, orderID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, c := range r.s.commissions {
		if c.OrderID == orderID {
			delete(r.s.commissions, id)
		}
	}
	return nil
}

// --- Affiliates ---

type affiliateRepo struct{ s *Store }

func (r affiliateRepo) Get(ctx context.Context, id string) (*commerce.Affiliate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.affiliates[id]
	if !ok {
		return nil, fmt.Errorf("affiliate %s: %w", id, commerce.ErrNotFound)
	}
	return &a, nil
}

func copyProduct(p commerce.Product) commerce.Product {
	if p.CommissionRate != nil {
		r := *p.CommissionRate
		p.CommissionRate = &r
	}
	return p
}

func copyInvoice(inv commerce.Invoice) commerce.Invoice {
	inv.Items = slices.Clone(inv.Items)
	if inv.Commission != nil {
		c := *inv.Commission
		inv.Commission = &c
	}
	if inv.PaidAt != nil {
		t := *inv.PaidAt
		inv.PaidAt = &t
	}
	return inv
}

func copyCommission(c commerce.Commission) commerce.Commission {
	if c.PaidAt != nil {
		t := *c.PaidAt
		c.PaidAt = &t
	}
	return c
}

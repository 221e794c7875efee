// Package postgres is the transactional store. Checkout writes against it
// commit or roll back together.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storefront-system/internal/commerce"
	"storefront-system/internal/database/models"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Repositories() commerce.Repositories {
	return reposFor(s.db)
}

func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context, repos commerce.Repositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, reposFor(tx))
	})
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// SeedProduct upserts a catalogue product.
func (s *Store) SeedProduct(ctx context.Context, p commerce.Product) error {
	m := productFromDomain(p)
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&m).Error
}

func (s *Store) SeedBrand(ctx context.Context, b commerce.Brand) error {
	m := models.Brand{ID: b.ID, Name: b.Name, CommissionRate: nullDecimal(b.CommissionRate)}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&m).Error
}

func (s *Store) SeedAffiliate(ctx context.Context, a commerce.Affiliate) error {
	m := models.Affiliate{ID: a.ID, UserID: a.UserID, CommissionRate: a.CommissionRate, Status: string(a.Status)}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&m).Error
}

func reposFor(db *gorm.DB) commerce.Repositories {
	return commerce.Repositories{
		Products:    productRepo{db},
		Brands:      brandRepo{db},
		Carts:       cartRepo{db},
		Orders:      orderRepo{db},
		Invoices:    invoiceRepo{db},
		Commissions: commissionRepo{db},
		Affiliates:  affiliateRepo{db},
	}
}

func notFound(err error, what, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %s: %w", what, id, commerce.ErrNotFound)
	}
	return err
}

func exists(ctx context.Context, db *gorm.DB, model interface{}, id string) (bool, error) {
	var count int64
	if err := db.WithContext(ctx).Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// --- Products ---

type productRepo struct{ db *gorm.DB }

func (r productRepo) Get(ctx context.Context, id string) (*commerce.Product, error) {
	var m models.Product
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, notFound(err, "product", id)
	}
	return productToDomain(m), nil
}

func (r productRepo) DecrementStock(ctx context.Context, id string, qty int) error {
	res := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("id = ? AND stock >= ?", id, qty).
		Updates(map[string]interface{}{
			"stock":      gorm.Expr("stock - ?", qty),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}
	ok, err := exists(ctx, r.db, &models.Product{}, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("product %s: %w", id, commerce.ErrNotFound)
	}
	return commerce.ErrInsufficientStock
}

func (r productRepo) Restock(ctx context.Context, id string, qty int) error {
	res := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"stock":      gorm.Expr("stock + ?", qty),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("product %s: %w", id, commerce.ErrNotFound)
	}
	return nil
}

// --- Brands ---

type brandRepo struct{ db *gorm.DB }

func (r brandRepo) Get(ctx context.Context, id string) (*commerce.Brand, error) {
	var m models.Brand
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, notFound(err, "brand", id)
	}
	return brandToDomain(m), nil
}

// --- Carts ---

type cartRepo struct{ db *gorm.DB }

func (r cartRepo) Get(ctx context.Context, userID string) (*commerce.Cart, error) {
	var m models.Cart
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &commerce.Cart{UserID: userID, Items: []commerce.CartItem{}}, nil
	}
	if err != nil {
		return nil, err
	}
	return &commerce.Cart{UserID: m.UserID, Items: []commerce.CartItem(m.Items), UpdatedAt: m.UpdatedAt}, nil
}

func (r cartRepo) Save(ctx context.Context, cart *commerce.Cart) error {
	m := models.Cart{UserID: cart.UserID, Items: models.CartItems(cart.Items), UpdatedAt: cart.UpdatedAt}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&m).Error
}

func (r cartRepo) Clear(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Cart{}).Error
}

// --- Orders ---

type orderRepo struct{ db *gorm.DB }

func (r orderRepo) Create(ctx context.Context, order *commerce.Order) (string, error) {
	m := orderFromDomain(order)
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return "", fmt.Errorf("failed to create order: %w", err)
	}
	return m.ID, nil
}

func (r orderRepo) Get(ctx context.Context, id string) (*commerce.Order, error) {
	var m models.Order
	if err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Where("id = ?", id).
		First(&m).Error; err != nil {
		return nil, notFound(err, "order", id)
	}
	return orderToDomain(m), nil
}

func (r orderRepo) UpdateStatus(ctx context.Context, id string, from []commerce.OrderStatus, to commerce.OrderStatus) error {
	fromStatuses := make([]string, 0, len(from))
	for _, st := range from {
		fromStatuses = append(fromStatuses, string(st))
	}
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status IN ?", id, fromStatuses).
		Updates(map[string]interface{}{
			"status":     string(to),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}
	ok, err := exists(ctx, r.db, &models.Order{}, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("order %s: %w", id, commerce.ErrNotFound)
	}
	return fmt.Errorf("order %s: %w", id, commerce.ErrStatusConflict)
}

func (r orderRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Order{}).Error
}

// --- Invoices ---

type invoiceRepo struct{ db *gorm.DB }

func (r invoiceRepo) Create(ctx context.Context, invoice *commerce.Invoice) (string, error) {
	m := invoiceFromDomain(invoice)
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return "", fmt.Errorf("failed to create invoice: %w", err)
	}
	return m.ID, nil
}

func (r invoiceRepo) Get(ctx context.Context, id string) (*commerce.Invoice, error) {
	var m models.Invoice
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, notFound(err, "invoice", id)
	}
	return invoiceToDomain(m), nil
}

func (r invoiceRepo) GetByOrder(ctx context.Context, orderID string) (*commerce.Invoice, error) {
	var m models.Invoice
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&m).Error; err != nil {
		return nil, notFound(err, "invoice for order", orderID)
	}
	return invoiceToDomain(m), nil
}

func (r invoiceRepo) MarkPaid(ctx context.Context, id string, paidAt time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.Invoice{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     string(commerce.InvoicePaid),
			"paid_at":    paidAt,
			"updated_at": paidAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("invoice %s: %w", id, commerce.ErrNotFound)
	}
	return nil
}

func (r invoiceRepo) UpdateStatus(ctx context.Context, id string, from []commerce.InvoiceStatus, to commerce.InvoiceStatus) error {
	fromStatuses := make([]string, 0, len(from))
	for _, st := range from {
		fromStatuses = append(fromStatuses, string(st))
	}
	res := r.db.WithContext(ctx).Model(&models.Invoice{}).
		Where("id = ? AND status IN ?", id, fromStatuses).
		Updates(map[string]interface{}{
			"status":     string(to),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}
	ok, err := exists(ctx, r.db, &models.Invoice{}, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("invoice %s: %w", id, commerce.ErrNotFound)
	}
	return fmt.Errorf("invoice %s: %w", id, commerce.ErrStatusConflict)
}

func (r invoiceRepo) MarkOverdue(ctx context.Context, createdBefore time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Invoice{}).
		Where("status = ? AND created_at < ?", string(commerce.InvoicePending), createdBefore).
		Updates(map[string]interface{}{
			"status":     string(commerce.InvoiceOverdue),
			"updated_at": time.Now(),
		})
	return res.RowsAffected, res.Error
}

func (r invoiceRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Invoice{}).Error
}

// --- Commissions ---

type commissionRepo struct{ db *gorm.DB }

func (r commissionRepo) Create(ctx context.Context, c *commerce.Commission) (string, error) {
	m := commissionFromDomain(c)
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return "", fmt.Errorf("failed to create commission: %w", err)
	}
	return m.ID, nil
}

func (r commissionRepo) Get(ctx context.Context, id string) (*commerce.Commission, error) {
	var m models.Commission
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, notFound(err, "commission", id)
	}
	c := commissionToDomain(m)
	return &c, nil
}

func (r commissionRepo) MarkPaid(ctx context.Context, id string, paidAt time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.Commission{}).
		Where("id = ? AND is_paid = ?", id, false).
		Updates(map[string]interface{}{
			"is_paid": true,
			"paid_at": paidAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}
	ok, err := exists(ctx, r.db, &models.Commission{}, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("commission %s: %w", id, commerce.ErrNotFound)
	}
	return nil
}

func (r commissionRepo) ListByAffiliate(ctx context.Context, affiliateID string) ([]commerce.Commission, error) {
	var rows []models.Commission
	if err := r.db.WithContext(ctx).
		Where("affiliate_id = ?", affiliateID).
		Order("created_at").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]commerce.Commission, 0, len(rows))
	for _, m := range rows {
		out = append(out, commissionToDomain(m))
	}
	return out, nil
}

func (r commissionRepo) DeleteByOrder(ctx context.Context, orderID string) error {
	return r.db.WithContext(ctx).Where("order_id = ?", orderID).Delete(&models.Commission{}).Error
}

// --- Affiliates ---

type affiliateRepo struct{ db *gorm.DB }

func (r affiliateRepo) Get(ctx context.Context, id string) (*commerce.Affiliate, error) {
	var m models.Affiliate
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, notFound(err, "affiliate", id)
	}
	return affiliateToDomain(m), nil
}

// Package mongo reads and writes the legacy document store. It has no
// multi-document transactions here, so checkout compensates on failure.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	mongodrv "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront-system/internal/commerce"
)

const (
	productsCollection    = "products"
	brandsCollection      = "brands"
	cartsCollection       = "carts"
	ordersCollection      = "orders"
	invoicesCollection    = "invoices"
	commissionsCollection = "commissions"
	affiliatesCollection  = "affiliates"
)

type Store struct {
	db *mongodrv.Database
}

func New(db *mongodrv.Database) *Store {
	return &Store{db: db}
}

func (s *Store) Repositories() commerce.Repositories {
	return commerce.Repositories{
		Products:    productRepo{s.db.Collection(productsCollection)},
		Brands:      brandRepo{s.db.Collection(brandsCollection)},
		Carts:       cartRepo{s.db.Collection(cartsCollection)},
		Orders:      orderRepo{s.db.Collection(ordersCollection)},
		Invoices:    invoiceRepo{s.db.Collection(invoicesCollection)},
		Commissions: commissionRepo{s.db.Collection(commissionsCollection)},
		Affiliates:  affiliateRepo{s.db.Collection(affiliatesCollection)},
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, nil)
}

// EnsureIndexes creates the lookup indexes the repositories rely on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := map[string][]mongodrv.IndexModel{
		commissionsCollection: {
			{Keys: bson.D{{Key: "AffiliateId", Value: 1}, {Key: "CreatedAt", Value: 1}}},
			{Keys: bson.D{{Key: "OrderId", Value: 1}}},
		},
		invoicesCollection: {
			{Keys: bson.D{{Key: "OrderId", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "Status", Value: 1}, {Key: "CreatedAt", Value: 1}}},
		},
		ordersCollection: {
			{Keys: bson.D{{Key: "CustomerId", Value: 1}}},
		},
	}
	for coll, models := range indexes {
		if _, err := s.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create %s indexes: %w", coll, err)
		}
	}
	return nil
}

// SeedProduct upserts a catalogue product.
func (s *Store) SeedProduct(ctx context.Context, p commerce.Product) error {
	doc := productDocFrom(p)
	_, err := s.db.Collection(productsCollection).ReplaceOne(ctx, bson.M{"_id": p.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

func findOne(ctx context.Context, coll *mongodrv.Collection, filter interface{}, out interface{}, what, id string) error {
	err := coll.FindOne(ctx, filter).Decode(out)
	if errors.Is(err, mongodrv.ErrNoDocuments) {
		return fmt.Errorf("%s %s: %w", what, id, commerce.ErrNotFound)
	}
	return err
}

func exists(ctx context.Context, coll *mongodrv.Collection, id string) (bool, error) {
	n, err := coll.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	return n > 0, err
}

// --- Products ---

type productRepo struct{ coll *mongodrv.Collection }

func (r productRepo) Get(ctx context.Context, id string) (*commerce.Product, error) {
	var doc productDoc
	if err := findOne(ctx, r.coll, bson.M{"_id": id}, &doc, "product", id); err != nil {
		return nil, err
	}
	return doc.toDomain(), nil
}

func (r productRepo) DecrementStock(ctx context.Context, id string, qty int) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "Stock": bson.M{"$gte": qty}},
		bson.M{"$inc": bson.M{"Stock": -qty}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 1 {
		return nil
	}
	ok, err := exists(ctx, r.coll, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("product %s: %w", id, commerce.ErrNotFound)
	}
	return commerce.ErrInsufficientStock
}

func (r productRepo) Restock(ctx context.Context, id string, qty int) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"Stock": qty}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("product %s: %w", id, commerce.ErrNotFound)
	}
	return nil
}

// --- Brands ---

type brandRepo struct{ coll *mongodrv.Collection }

func (r brandRepo) Get(ctx context.Context, id string) (*commerce.Brand, error) {
	var doc brandDoc
	if err := findOne(ctx, r.coll, bson.M{"_id": id}, &doc, "brand", id); err != nil {
		return nil, err
	}
	return doc.toDomain(), nil
}

// --- Carts ---

type cartRepo struct{ coll *mongodrv.Collection }

func (r cartRepo) Get(ctx context.Context, userID string) (*commerce.Cart, error) {
	var doc cartDoc
	err := r.coll.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc)
	if errors.Is(err, mongodrv.ErrNoDocuments) {
		return &commerce.Cart{UserID: userID, Items: []commerce.CartItem{}}, nil
	}
	if err != nil {
		return nil, err
	}
	return doc.toDomain(), nil
}

func (r cartRepo) Save(ctx context.Context, cart *commerce.Cart) error {
	_, err := r.coll.ReplaceOne(ctx, bson.M{"_id": cart.UserID}, cartDocFrom(cart), options.Replace().SetUpsert(true))
	return err
}

func (r cartRepo) Clear(ctx context.Context, userID string) error {
	_, err := r.coll.DeleteOne(ctx, bson.M{"_id": userID})
	return err
}

// --- Orders ---

type orderRepo struct{ coll *mongodrv.Collection }

func (r orderRepo) Create(ctx context.Context, order *commerce.Order) (string, error) {
	if _, err := r.coll.InsertOne(ctx, orderDocFrom(order)); err != nil {
		return "", fmt.Errorf("failed to create order: %w", err)
	}
	return order.ID, nil
}

func (r orderRepo) Get(ctx context.Context, id string) (*commerce.Order, error) {
	var doc orderDoc
	if err := findOne(ctx, r.coll, bson.M{"_id": id}, &doc, "order", id); err != nil {
		return nil, err
	}
	return doc.toDomain(), nil
}

func (r orderRepo) UpdateStatus(ctx context.Context, id string, from []commerce.OrderStatus, to commerce.OrderStatus) error {
	fromStatuses := make(bson.A, 0, len(from))
	for _, st := range from {
		fromStatuses = append(fromStatuses, string(st))
	}
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "Status": bson.M{"$in": fromStatuses}},
		bson.M{"$set": bson.M{"Status": string(to), "UpdatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 1 {
		return nil
	}
	ok, err := exists(ctx, r.coll, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("order %s: %w", id, commerce.ErrNotFound)
	}
	return fmt.Errorf("order %s: %w", id, commerce.ErrStatusConflict)
}

func (r orderRepo) Delete(ctx context.Context, id string) error {
	_, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// --- Invoices ---

type invoiceRepo struct{ coll *mongodrv.Collection }

func (r invoiceRepo) Create(ctx context.Context, invoice *commerce.Invoice) (string, error) {
	if _, err := r.coll.InsertOne(ctx, invoiceDocFrom(invoice)); err != nil {
		return "", fmt.Errorf("failed to create invoice: %w", err)
	}
	return invoice.ID, nil
}

func (r invoiceRepo) Get(ctx context.Context, id string) (*commerce.Invoice, error) {
	var doc invoiceDoc
	if err := findOne(ctx, r.coll, bson.M{"_id": id}, &doc, "invoice", id); err != nil {
		return nil, err
	}
	return doc.toDomain(), nil
}

func (r invoiceRepo) GetByOrder(ctx context.Context, orderID string) (*commerce.Invoice, error) {
	var doc invoiceDoc
	if err := findOne(ctx, r.coll, bson.M{"OrderId": orderID}, &doc, "invoice for order", orderID); err != nil {
		return nil, err
	}
	return doc.toDomain(), nil
}

func (r invoiceRepo) MarkPaid(ctx context.Context, id string, paidAt time.Time) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"Status":    string(commerce.InvoicePaid),
		"PaidAt":    paidAt,
		"UpdatedAt": paidAt,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("invoice %s: %w", id, commerce.ErrNotFound)
	}
	return nil
}

func (r invoiceRepo) UpdateStatus(ctx context.Context, id string, from []commerce.InvoiceStatus, to commerce.InvoiceStatus) error {
	fromStatuses := make(bson.A, 0, len(from))
	for _, st := range from {
		fromStatuses = append(fromStatuses, string(st))
	}
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "Status": bson.M{"$in": fromStatuses}},
		bson.M{"$set": bson.M{"Status": string(to), "UpdatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 1 {
		return nil
	}
	ok, err := exists(ctx, r.coll, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("invoice %s: %w", id, commerce.ErrNotFound)
	}
	return fmt.Errorf("invoice %s: %w", id, commerce.ErrStatusConflict)
}

func (r invoiceRepo) MarkOverdue(ctx context.Context, createdBefore time.Time) (int64, error) {
	res, err := r.coll.UpdateMany(ctx,
		bson.M{"Status": string(commerce.InvoicePending), "CreatedAt": bson.M{"$lt": createdBefore}},
		bson.M{"$set": bson.M{"Status": string(commerce.InvoiceOverdue), "UpdatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (r invoiceRepo) Delete(ctx context.Context, id string) error {
	_, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// --- Commissions ---

type commissionRepo struct{ coll *mongodrv.Collection }

func (r commissionRepo) Create(ctx context.Context, c *commerce.Commission) (string, error) {
	if _, err := r.coll.InsertOne(ctx, commissionDocFrom(c)); err != nil {
		return "", fmt.Errorf("failed to create commission: %w", err)
	}
	return c.ID, nil
}

func (r commissionRepo) Get(ctx context.Context, id string) (*commerce.Commission, error) {
	var doc commissionDoc
	if err := findOne(ctx, r.coll, bson.M{"_id": id}, &doc, "commission", id); err != nil {
		return nil, err
	}
	c := doc.toDomain()
	return &c, nil
}

func (r commissionRepo) MarkPaid(ctx context.Context, id string, paidAt time.Time) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "IsPaid": bson.M{"$ne": true}},
		bson.M{"$set": bson.M{"IsPaid": true, "PaidAt": paidAt}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 1 {
		return nil
	}
	ok, err := exists(ctx, r.coll, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("commission %s: %w", id, commerce.ErrNotFound)
	}
	return nil
}

func (r commissionRepo) ListByAffiliate(ctx context.Context, affiliateID string) ([]commerce.Commission, error) {
	cursor, err := r.coll.Find(ctx,
		bson.M{"AffiliateId": affiliateID},
		options.Find().SetSort(bson.D{{Key: "CreatedAt", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []commerce.Commission
	for cursor.Next(ctx) {
		var doc commissionDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toDomain())
	}
	return out, cursor.Err()
}

func (r commissionRepo) DeleteByOrder(ctx context.Context, orderID string) error {
	_, err := r.coll.DeleteMany(ctx, bson.M{"OrderId": orderID})
	return err
}

// --- Affiliates ---

type affiliateRepo struct{ coll *mongodrv.Collection }

func (r affiliateRepo) Get(ctx context.Context, id string) (*commerce.Affiliate, error) {
	var doc affiliateDoc
	if err := findOne(ctx, r.coll, bson.M{"_id": id}, &doc, "affiliate", id); err != nil {
		return nil, err
	}
	return doc.toDomain(), nil
}

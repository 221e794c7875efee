package mongo_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-system/config"
	"storefront-system/internal/commerce"
	"storefront-system/internal/services/orders"
	"storefront-system/internal/store/mongo"
)

// MONGO_TEST_URI must point at a server where throwaway databases can be
// created and dropped.
func openStore(t *testing.T) *mongo.Store {
	t.Helper()
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}
	ctx := context.Background()
	name := "storefront_it_" + orders.NewID()
	client, err := config.NewMongoClient(ctx, config.MongoConfig{URI: uri, Database: name})
	require.NoError(t, err)
	db := client.Database(name)
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})

	s := mongo.New(db)
	require.NoError(t, s.EnsureIndexes(ctx))
	return s
}

func TestMongo_DecrementStockIsConditional(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	require.NoError(t, s.SeedProduct(ctx, commerce.Product{ID: "p1", Name: "Toner", Price: decimal.NewFromInt(12), Stock: 3}))

	repo := s.Repositories().Products
	var wg sync.WaitGroup
	results := make([]error, 6)
	for i := range results {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = repo.DecrementStock(ctx, "p1", 1)
		}()
	}
	wg.Wait()

	var ok int
	for _, err := range results {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, commerce.ErrInsufficientStock)
	}
	assert.Equal(t, 3, ok)

	p, err := repo.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 0, p.Stock)

	assert.ErrorIs(t, repo.DecrementStock(ctx, "p1", 1), commerce.ErrInsufficientStock)
	assert.ErrorIs(t, repo.DecrementStock(ctx, "missing", 1), commerce.ErrNotFound)

	require.NoError(t, repo.Restock(ctx, "p1", 2))
	require.NoError(t, repo.DecrementStock(ctx, "p1", 2))
	assert.ErrorIs(t, repo.Restock(ctx, "missing", 1), commerce.ErrNotFound)
}

func TestMongo_StatusChangesAreConditional(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	repos := s.Repositories()

	res, err := orders.Assemble(orders.Input{
		CustomerID:  "u1",
		AffiliateID: "A1",
		Lines: []orders.Line{{
			ProductID: "p1", Name: "Serum", Quantity: 2,
			UnitPrice: decimal.RequireFromString("50"), Discount: decimal.RequireFromString("10"),
			Rate: decimal.RequireFromString("25"),
		}},
		ShippingFee: decimal.NewFromInt(10),
		Policy:      commerce.PolicyPayout,
		Now:         time.Now().UTC().Add(-time.Hour),
	})
	require.NoError(t, err)

	_, err = repos.Orders.Create(ctx, &res.Order)
	require.NoError(t, err)
	_, err = repos.Invoices.Create(ctx, &res.Invoice)
	require.NoError(t, err)
	_, err = repos.Commissions.Create(ctx, &res.Commissions[0])
	require.NoError(t, err)

	pending := []commerce.OrderStatus{commerce.OrderPending}
	require.NoError(t, repos.Orders.UpdateStatus(ctx, res.Order.ID, pending, commerce.OrderCancelled))
	assert.ErrorIs(t, repos.Orders.UpdateStatus(ctx, res.Order.ID, pending, commerce.OrderCancelled), commerce.ErrStatusConflict)
	assert.ErrorIs(t, repos.Orders.UpdateStatus(ctx, "missing", pending, commerce.OrderCancelled), commerce.ErrNotFound)
	order, err := repos.Orders.Get(ctx, res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, commerce.OrderCancelled, order.Status)

	open := []commerce.InvoiceStatus{commerce.InvoicePending, commerce.InvoiceOverdue}
	require.NoError(t, repos.Invoices.UpdateStatus(ctx, res.Invoice.ID, open, commerce.InvoiceVoid))
	assert.ErrorIs(t, repos.Invoices.UpdateStatus(ctx, res.Invoice.ID, open, commerce.InvoiceVoid), commerce.ErrStatusConflict)

	n, err := repos.Invoices.MarkOverdue(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
	inv, err := repos.Invoices.GetByOrder(ctx, res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, commerce.InvoiceVoid, inv.Status)

	cid := res.Commissions[0].ID
	first := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, repos.Commissions.MarkPaid(ctx, cid, first))
	require.NoError(t, repos.Commissions.MarkPaid(ctx, cid, first.Add(time.Hour)))
	c, err := repos.Commissions.Get(ctx, cid)
	require.NoError(t, err)
	assert.True(t, c.IsPaid)
	require.NotNil(t, c.PaidAt)
	assert.True(t, first.Equal(*c.PaidAt), "second payment must not move PaidAt, got %s", c.PaidAt)
	assert.ErrorIs(t, repos.Commissions.MarkPaid(ctx, "missing", first), commerce.ErrNotFound)
}

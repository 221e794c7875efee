package checkout_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-system/internal/commerce"
	"storefront-system/internal/events"
	"storefront-system/internal/idempotency"
	"storefront-system/internal/services/checkout"
	"storefront-system/internal/services/pricing"
	"storefront-system/internal/store/memory"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "want %s, got %s", want, got.String())
}

type fixture struct {
	store  *memory.Store
	svc    *checkout.Service
	events *events.Recorder
}

type option func(*fixtureConfig)

type fixtureConfig struct {
	cfg    checkout.Config
	idem   checkout.IdempotencyStore
	mutate    func(*commerce.Repositories)
	tx        bool
	commitErr error
}

func withPolicy(p commerce.CommissionPolicy) option {
	return func(c *fixtureConfig) { c.cfg.Policy = p }
}

func withIdempotency() option {
	return func(c *fixtureConfig) { c.idem = idempotency.NewMemoryStore(time.Hour) }
}

func withFaults(mutate func(*commerce.Repositories)) option {
	return func(c *fixtureConfig) { c.mutate = mutate }
}

func withTimeout(d time.Duration) option {
	return func(c *fixtureConfig) { c.cfg.CallTimeout = d }
}

func withTransactions() option {
	return func(c *fixtureConfig) { c.tx = true }
}

// withLostCommit makes the transaction report err after every write
// inside it succeeded.
func withLostCommit(err error) option {
	return func(c *fixtureConfig) {
		c.tx = true
		c.commitErr = err
	}
}

// faultyStore swaps individual repositories of a memory store.
type faultyStore struct {
	*memory.Store
	mutate func(*commerce.Repositories)
}

func (f faultyStore) Repositories() commerce.Repositories {
	repos := f.Store.Repositories()
	if f.mutate != nil {
		f.mutate(&repos)
	}
	return repos
}

// txStore hands out the same repositories inside a "transaction" that
// cannot roll back.
type txStore struct {
	faultyStore
	commitErr error
}

func (t *txStore) WithinTransaction(ctx context.Context, fn func(ctx context.Context, repos commerce.Repositories) error) error {
	if err := fn(ctx, t.Repositories()); err != nil {
		return err
	}
	return t.commitErr
}

func newFixture(t *testing.T, opts ...option) *fixture {
	t.Helper()
	fc := fixtureConfig{cfg: checkout.Config{ShippingFee: dec("10")}}
	for _, opt := range opts {
		opt(&fc)
	}

	mem := memory.New()
	mem.PutProduct(commerce.Product{
		ID: "p1", Name: "Serum", Price: dec("50.00"), Discount: dec("10"),
		CommissionRate: decPtr("25"), Stock: 5, BrandID: "b1",
	})
	mem.PutProduct(commerce.Product{
		ID: "p2", Name: "Lip Tint", Price: dec("20.00"), Stock: 1, BrandID: "b2",
	})
	mem.PutBrand(commerce.Brand{ID: "b1", Name: "Generic", CommissionRate: decPtr("5")})
	mem.PutBrand(commerce.Brand{ID: "b2", Name: "Loris Beauty"})
	mem.PutAffiliate(commerce.Affiliate{ID: "A1", UserID: "aff-user", Status: commerce.AffiliateActive})
	mem.PutAffiliate(commerce.Affiliate{ID: "A2", UserID: "other", Status: commerce.AffiliateInactive})
	mem.PutAffiliate(commerce.Affiliate{ID: "A3", UserID: "u1", Status: commerce.AffiliateActive})

	base := faultyStore{Store: mem, mutate: fc.mutate}
	var store commerce.Store = base
	if fc.tx {
		store = &txStore{faultyStore: base, commitErr: fc.commitErr}
	}

	rec := &events.Recorder{}
	resolver := pricing.NewRateResolver(pricing.DefaultFallbackTable())
	return &fixture{
		store:  mem,
		svc:    checkout.NewService(store, resolver, fc.idem, rec, fc.cfg),
		events: rec,
	}
}

func (f *fixture) addToCart(t *testing.T, userID, productID string, qty int) {
	t.Helper()
	_, err := f.svc.AddItem(context.Background(), userID, productID, qty)
	require.NoError(t, err)
}

func (f *fixture) stock(t *testing.T, productID string) int {
	t.Helper()
	p, err := f.store.Repositories().Products.Get(context.Background(), productID)
	require.NoError(t, err)
	return p.Stock
}

func request(userID string) checkout.Request {
	return checkout.Request{
		UserID:          userID,
		ShippingAddress: "Jl. Melati 4, Bandung",
		Phone:           "+62811000000",
		PaymentMethod:   "bank_transfer",
	}
}

func TestCheckout_AffiliateOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addToCart(t, "u1", "p1", 2)

	req := request("u1")
	req.AffiliateID = "A1"
	res, err := f.svc.Checkout(ctx, req)
	require.NoError(t, err)

	assertDecimal(t, "100.00", res.Total)
	assertDecimal(t, "22.50", res.TotalCommission)
	assert.Equal(t, "A1", res.AffiliateID)
	require.Len(t, res.CommissionIDs, 1)
	assert.False(t, res.Replayed)

	order, err := f.svc.GetOrder(ctx, res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, commerce.OrderPending, order.Status)
	assertDecimal(t, "90.00", order.Subtotal)
	assertDecimal(t, "10", order.ShippingFee)
	assert.Equal(t, "Jl. Melati 4, Bandung", order.ShippingAddress)

	invoice, err := f.svc.GetInvoice(ctx, res.InvoiceID)
	require.NoError(t, err)
	assert.Equal(t, res.OrderID, invoice.OrderID)
	assert.True(t, invoice.Total.Equal(order.Total))

	ledger, err := f.svc.ListAffiliateCommissions(ctx, "A1")
	require.NoError(t, err)
	require.Len(t, ledger.Commissions, 1)
	assertDecimal(t, "25", ledger.Commissions[0].CommissionRate)
	assertDecimal(t, "22.50", ledger.Commissions[0].Amount)
	assertDecimal(t, "22.50", ledger.Pending)

	assert.Equal(t, 3, f.stock(t, "p1"))
	cart, err := f.svc.GetCart(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, cart.Empty())

	assert.Equal(t, []string{events.OrderCreated}, f.events.Types())
}

func TestCheckout_BrandNameFallbackRate(t *testing.T) {
	f := newFixture(t)
	f.addToCart(t, "u1", "p2", 1)

	req := request("u1")
	req.AffiliateID = "A1"
	res, err := f.svc.Checkout(context.Background(), req)
	require.NoError(t, err)

	// "Loris Beauty" has no rate of its own; the legacy table gives 30%.
	assertDecimal(t, "6.00", res.TotalCommission)
}

func TestCheckout_InsufficientStockReportsEveryShortLine(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	repos := f.store.Repositories()
	require.NoError(t, repos.Carts.Save(ctx, &commerce.Cart{
		UserID: "u1",
		Items: []commerce.CartItem{
			{ProductID: "p1", Quantity: 4, UnitPrice: dec("50"), Discount: dec("10")},
			{ProductID: "p2", Quantity: 3, UnitPrice: dec("20")},
			{ProductID: "p1", Quantity: 2, UnitPrice: dec("50"), Discount: dec("10")},
		},
	}))

	_, err := f.svc.Checkout(ctx, request("u1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, commerce.ErrInsufficientStock)

	var stockErr *commerce.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, []commerce.StockShortage{
		{ProductID: "p1", Name: "Serum", Requested: 6, Available: 5},
		{ProductID: "p2", Name: "Lip Tint", Requested: 3, Available: 1},
	}, stockErr.Shortages)

	assert.Equal(t, 5, f.stock(t, "p1"))
	cart, err := f.svc.GetCart(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, cart.Items, 3)
	assert.Empty(t, f.events.Events())
}

func TestCheckout_MissingFields(t *testing.T) {
	f := newFixture(t)
	f.addToCart(t, "u1", "p1", 1)

	req := request("u1")
	req.Phone = ""
	req.PaymentMethod = "  "
	_, err := f.svc.Checkout(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, commerce.ErrInvalidInput)

	var inputErr *commerce.InvalidInputError
	require.True(t, errors.As(err, &inputErr))
	assert.Equal(t, []string{"phone", "payment_method"}, inputErr.Fields)
	assert.Equal(t, 5, f.stock(t, "p1"))
}

func TestCheckout_EmptyCart(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Checkout(context.Background(), request("u1"))
	assert.ErrorIs(t, err, commerce.ErrInvalidInput)
}

func TestCheckout_UnknownProductAborts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.store.Repositories().Carts.Save(ctx, &commerce.Cart{
		UserID: "u1",
		Items:  []commerce.CartItem{{ProductID: "gone", Quantity: 1, UnitPrice: dec("5")}},
	}))

	_, err := f.svc.Checkout(ctx, request("u1"))
	assert.ErrorIs(t, err, commerce.ErrNotFound)
}

func TestCheckout_LastUnitGoesToExactlyOneBuyer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addToCart(t, "u1", "p2", 1)
	f.addToCart(t, "u2", "p2", 1)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, user := range []string{"u1", "u2"} {
		i, user := i, user
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.svc.Checkout(ctx, request(user))
		}()
	}
	wg.Wait()

	var ok, short int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, commerce.ErrInsufficientStock):
			short++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, short)
	assert.Equal(t, 0, f.stock(t, "p2"))
}

func TestCheckout_ReferralsThatDoNotQualify(t *testing.T) {
	tests := []struct {
		name        string
		affiliateID string
	}{
		{name: "unknown", affiliateID: "nobody"},
		{name: "inactive", affiliateID: "A2"},
		{name: "self_referral", affiliateID: "A3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.addToCart(t, "u1", "p1", 1)

			req := request("u1")
			req.AffiliateID = tt.affiliateID
			res, err := f.svc.Checkout(context.Background(), req)
			require.NoError(t, err)
			assert.Empty(t, res.AffiliateID)
			assert.Empty(t, res.CommissionIDs)
			assertDecimal(t, "0", res.TotalCommission)
		})
	}
}

func TestCheckout_DiscountPolicy(t *testing.T) {
	f := newFixture(t, withPolicy(commerce.PolicyDiscount))
	f.addToCart(t, "u1", "p1", 2)

	req := request("u1")
	req.AffiliateID = "A1"
	res, err := f.svc.Checkout(context.Background(), req)
	require.NoError(t, err)

	assertDecimal(t, "77.50", res.Total)
	assertDecimal(t, "0", res.TotalCommission)
	assert.Empty(t, res.CommissionIDs)

	ledger, err := f.svc.ListAffiliateCommissions(context.Background(), "A1")
	require.NoError(t, err)
	assert.Empty(t, ledger.Commissions)
}

func TestCheckout_IdempotentReplay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, withIdempotency())
	f.addToCart(t, "u1", "p1", 1)

	req := request("u1")
	req.IdempotencyKey = "key-1"
	first, err := f.svc.Checkout(ctx, req)
	require.NoError(t, err)

	second, err := f.svc.Checkout(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.OrderID, second.OrderID)
	assert.Equal(t, first.InvoiceID, second.InvoiceID)
	assert.True(t, first.Total.Equal(second.Total))

	assert.Equal(t, 4, f.stock(t, "p1"))
	assert.Len(t, f.events.Events(), 1)
}

func TestCheckout_RejectedCheckoutReleasesIdempotencyKey(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, withIdempotency())

	req := request("u1")
	req.IdempotencyKey = "key-1"
	_, err := f.svc.Checkout(ctx, req)
	require.ErrorIs(t, err, commerce.ErrInvalidInput)

	f.addToCart(t, "u1", "p1", 1)
	res, err := f.svc.Checkout(ctx, req)
	require.NoError(t, err)
	assert.False(t, res.Replayed)
}

type failingInvoices struct {
	commerce.InvoiceRepository
}

func (failingInvoices) Create(context.Context, *commerce.Invoice) (string, error) {
	return "", errors.New("write conflict")
}

type stuckOrderDeletes struct {
	commerce.OrderRepository
}

func (stuckOrderDeletes) Delete(context.Context, string) error {
	return errors.New("connection reset")
}

type failingCartClear struct {
	commerce.CartRepository
}

func (failingCartClear) Clear(context.Context, string) error {
	return errors.New("cart store unavailable")
}

type hangingProducts struct {
	commerce.ProductRepository
}

func (hangingProducts) DecrementStock(ctx context.Context, _ string, _ int) error {
	<-ctx.Done()
	return ctx.Err()
}

// hangingCarts blocks cart reads until the store comes back.
type hangingCarts struct {
	commerce.CartRepository
	down *atomic.Bool
}

func (h hangingCarts) Get(ctx context.Context, userID string) (*commerce.Cart, error) {
	if h.down.Load() {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return h.CartRepository.Get(ctx, userID)
}

func TestCheckout_FailedWriteIsCompensated(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, withFaults(func(r *commerce.Repositories) {
		r.Invoices = failingInvoices{r.Invoices}
	}))
	f.addToCart(t, "u1", "p1", 2)

	req := request("u1")
	req.AffiliateID = "A1"
	_, err := f.svc.Checkout(ctx, req)
	require.Error(t, err)
	assert.ErrorIs(t, err, commerce.ErrPersistenceFailure)
	assert.False(t, errors.Is(err, commerce.ErrPartialCheckout))

	var stageErr *checkout.StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, checkout.StateOrderPersisted, stageErr.Stage)

	assert.Equal(t, 5, f.stock(t, "p1"))
	cart, err := f.svc.GetCart(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.Items[0].Quantity)

	ledger, err := f.svc.ListAffiliateCommissions(ctx, "A1")
	require.NoError(t, err)
	assert.Empty(t, ledger.Commissions)
	assert.Empty(t, f.events.Events())
}

func TestCheckout_CartClearFailureUndoesEverything(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, withFaults(func(r *commerce.Repositories) {
		r.Carts = failingCartClear{r.Carts}
	}))
	f.addToCart(t, "u1", "p1", 1)

	req := request("u1")
	req.AffiliateID = "A1"
	_, err := f.svc.Checkout(ctx, req)
	require.ErrorIs(t, err, commerce.ErrPersistenceFailure)

	var stageErr *checkout.StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, checkout.StateStockDecremented, stageErr.Stage)

	assert.Equal(t, 5, f.stock(t, "p1"))
	ledger, err := f.svc.ListAffiliateCommissions(ctx, "A1")
	require.NoError(t, err)
	assert.Empty(t, ledger.Commissions)
}

func TestCheckout_FailedCompensationIsPartial(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, withFaults(func(r *commerce.Repositories) {
		r.Invoices = failingInvoices{r.Invoices}
		r.Orders = stuckOrderDeletes{r.Orders}
	}))
	f.addToCart(t, "u1", "p1", 1)

	_, err := f.svc.Checkout(ctx, request("u1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, commerce.ErrPartialCheckout)

	// The other compensations still ran.
	assert.Equal(t, 5, f.stock(t, "p1"))
}

func TestCheckout_TimeoutIsDistinctFromRejection(t *testing.T) {
	f := newFixture(t,
		withTimeout(20*time.Millisecond),
		withFaults(func(r *commerce.Repositories) {
			r.Products = hangingProducts{r.Products}
		}),
	)
	f.addToCart(t, "u1", "p1", 1)

	_, err := f.svc.Checkout(context.Background(), request("u1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, commerce.ErrCheckoutTimeout)
	assert.False(t, errors.Is(err, commerce.ErrInvalidInput))
	assert.False(t, errors.Is(err, commerce.ErrInsufficientStock))
}

func TestCheckout_TransactionalStoreSkipsCompensation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, withTransactions(), withFaults(func(r *commerce.Repositories) {
		r.Invoices = failingInvoices{r.Invoices}
	}))
	f.addToCart(t, "u1", "p1", 1)

	_, err := f.svc.Checkout(ctx, request("u1"))
	require.ErrorIs(t, err, commerce.ErrPersistenceFailure)

	var stageErr *checkout.StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, checkout.StateCartValidated, stageErr.Stage, "a rolled back transaction leaves nothing past validation")

	// Rolling back is the transaction's job; this fake has none, so the
	// decrement stays visible.
	assert.Equal(t, 4, f.stock(t, "p1"))
}

func TestCheckout_ReadTimeoutReleasesIdempotencyKey(t *testing.T) {
	ctx := context.Background()
	down := &atomic.Bool{}
	f := newFixture(t,
		withIdempotency(),
		withTimeout(20*time.Millisecond),
		withFaults(func(r *commerce.Repositories) {
			r.Carts = hangingCarts{CartRepository: r.Carts, down: down}
		}),
	)
	f.addToCart(t, "u1", "p1", 1)

	req := request("u1")
	req.IdempotencyKey = "k1"
	down.Store(true)
	_, err := f.svc.Checkout(ctx, req)
	require.ErrorIs(t, err, commerce.ErrCheckoutTimeout)

	var stageErr *checkout.StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, checkout.StateStarted, stageErr.Stage)

	down.Store(false)
	res, err := f.svc.Checkout(ctx, req)
	require.NoError(t, err)
	assert.False(t, res.Replayed)
	assert.Equal(t, 4, f.stock(t, "p1"))
}

func TestCheckout_CompensatedFailureReleasesIdempotencyKey(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, withIdempotency(), withFaults(func(r *commerce.Repositories) {
		r.Invoices = failingInvoices{r.Invoices}
	}))
	f.addToCart(t, "u1", "p1", 1)

	req := request("u1")
	req.IdempotencyKey = "k1"
	_, err := f.svc.Checkout(ctx, req)
	require.ErrorIs(t, err, commerce.ErrPersistenceFailure)

	_, err = f.svc.Checkout(ctx, req)
	require.Error(t, err)
	assert.False(t, errors.Is(err, commerce.ErrCheckoutInProgress), "retry must run again, got %v", err)
	assert.ErrorIs(t, err, commerce.ErrPersistenceFailure)
	assert.Equal(t, 5, f.stock(t, "p1"))
}

func TestCheckout_PartialCheckoutHoldsIdempotencyKey(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, withIdempotency(), withFaults(func(r *commerce.Repositories) {
		r.Invoices = failingInvoices{r.Invoices}
		r.Orders = stuckOrderDeletes{r.Orders}
	}))
	f.addToCart(t, "u1", "p1", 1)

	req := request("u1")
	req.IdempotencyKey = "k1"
	_, err := f.svc.Checkout(ctx, req)
	require.ErrorIs(t, err, commerce.ErrPartialCheckout)

	_, err = f.svc.Checkout(ctx, req)
	assert.ErrorIs(t, err, commerce.ErrCheckoutInProgress)
}

func TestCheckout_DecrementTimeoutHoldsIdempotencyKey(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t,
		withIdempotency(),
		withTimeout(20*time.Millisecond),
		withFaults(func(r *commerce.Repositories) {
			r.Products = hangingProducts{r.Products}
		}),
	)
	f.addToCart(t, "u1", "p1", 1)

	req := request("u1")
	req.IdempotencyKey = "k1"
	_, err := f.svc.Checkout(ctx, req)
	require.ErrorIs(t, err, commerce.ErrCheckoutTimeout)

	var stageErr *checkout.StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, checkout.StateCartValidated, stageErr.Stage)

	// The decrement may still land, so a retry could sell the units twice.
	_, err = f.svc.Checkout(ctx, req)
	assert.ErrorIs(t, err, commerce.ErrCheckoutInProgress)
}

func TestCheckout_LostCommitHoldsIdempotencyKey(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, withIdempotency(), withLostCommit(errors.New("connection closed during commit")))
	f.addToCart(t, "u1", "p1", 1)

	req := request("u1")
	req.IdempotencyKey = "k1"
	_, err := f.svc.Checkout(ctx, req)
	require.ErrorIs(t, err, commerce.ErrPersistenceFailure)

	var stageErr *checkout.StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, checkout.StateCartCleared, stageErr.Stage)

	_, err = f.svc.Checkout(ctx, req)
	assert.ErrorIs(t, err, commerce.ErrCheckoutInProgress)
}

func TestCancelOrder_RestocksOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addToCart(t, "u1", "p1", 2)
	req := request("u1")
	req.AffiliateID = "A1"
	res, err := f.svc.Checkout(ctx, req)
	require.NoError(t, err)
	require.Equal(t, 3, f.stock(t, "p1"))

	order, err := f.svc.CancelOrder(ctx, res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, commerce.OrderCancelled, order.Status)
	assert.Equal(t, 5, f.stock(t, "p1"))

	order, err = f.svc.CancelOrder(ctx, res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, commerce.OrderCancelled, order.Status)
	assert.Equal(t, 5, f.stock(t, "p1"))

	// Commissions are not reversed by a cancellation.
	ledger, err := f.svc.ListAffiliateCommissions(ctx, "A1")
	require.NoError(t, err)
	assert.Len(t, ledger.Commissions, 1)

	assert.Equal(t, []string{events.OrderCreated, events.OrderCancelled}, f.events.Types())
}

func TestCancelOrder_ConcurrentCancelsRestockOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addToCart(t, "u1", "p1", 2)
	res, err := f.svc.Checkout(ctx, request("u1"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.CancelOrder(ctx, res.OrderID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 5, f.stock(t, "p1"))
}

func TestCancelOrder_ShippedOrderIsRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addToCart(t, "u1", "p1", 1)
	res, err := f.svc.Checkout(ctx, request("u1"))
	require.NoError(t, err)

	_, err = f.svc.UpdateOrderStatus(ctx, res.OrderID, commerce.OrderProcessing)
	require.NoError(t, err)
	_, err = f.svc.UpdateOrderStatus(ctx, res.OrderID, commerce.OrderShipped)
	require.NoError(t, err)

	_, err = f.svc.CancelOrder(ctx, res.OrderID)
	assert.ErrorIs(t, err, commerce.ErrStatusConflict)
	assert.Equal(t, 4, f.stock(t, "p1"))
}

func TestCancelOrder_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CancelOrder(context.Background(), "missing")
	assert.ErrorIs(t, err, commerce.ErrNotFound)
}

func TestUpdateOrderStatus_Transitions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addToCart(t, "u1", "p1", 1)
	res, err := f.svc.Checkout(ctx, request("u1"))
	require.NoError(t, err)

	_, err = f.svc.UpdateOrderStatus(ctx, res.OrderID, commerce.OrderDelivered)
	assert.ErrorIs(t, err, commerce.ErrStatusConflict)

	order, err := f.svc.UpdateOrderStatus(ctx, res.OrderID, commerce.OrderProcessing)
	require.NoError(t, err)
	assert.Equal(t, commerce.OrderProcessing, order.Status)

	order, err = f.svc.UpdateOrderStatus(ctx, res.OrderID, commerce.OrderCancelled)
	require.NoError(t, err)
	assert.Equal(t, commerce.OrderCancelled, order.Status)
	assert.Equal(t, 5, f.stock(t, "p1"))
}

func TestMarkCommissionPaid_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addToCart(t, "u1", "p1", 2)
	req := request("u1")
	req.AffiliateID = "A1"
	res, err := f.svc.Checkout(ctx, req)
	require.NoError(t, err)
	require.Len(t, res.CommissionIDs, 1)
	id := res.CommissionIDs[0]

	paid, err := f.svc.MarkCommissionPaid(ctx, id)
	require.NoError(t, err)
	assert.True(t, paid.IsPaid)
	require.NotNil(t, paid.PaidAt)
	firstPaidAt := *paid.PaidAt

	again, err := f.svc.MarkCommissionPaid(ctx, id)
	require.NoError(t, err)
	assert.True(t, again.IsPaid)
	assert.Equal(t, firstPaidAt, *again.PaidAt)

	ledger, err := f.svc.ListAffiliateCommissions(ctx, "A1")
	require.NoError(t, err)
	assertDecimal(t, "22.50", ledger.Paid)
	assertDecimal(t, "0", ledger.Pending)

	assert.Equal(t, []string{events.OrderCreated, events.CommissionPaid}, f.events.Types())

	_, err = f.svc.MarkCommissionPaid(ctx, "missing")
	assert.ErrorIs(t, err, commerce.ErrNotFound)
}

func TestMarkInvoicePaid(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addToCart(t, "u1", "p1", 1)
	res, err := f.svc.Checkout(ctx, request("u1"))
	require.NoError(t, err)

	invoice, err := f.svc.MarkInvoicePaid(ctx, res.InvoiceID)
	require.NoError(t, err)
	assert.Equal(t, commerce.InvoicePaid, invoice.Status)
	assert.NotNil(t, invoice.PaidAt)

	f.addToCart(t, "u1", "p1", 1)
	res, err = f.svc.Checkout(ctx, request("u1"))
	require.NoError(t, err)
	_, err = f.svc.CancelOrder(ctx, res.OrderID)
	require.NoError(t, err)
	_, err = f.svc.MarkInvoicePaid(ctx, res.InvoiceID)
	assert.ErrorIs(t, err, commerce.ErrStatusConflict)
}

func TestMarkOverdueInvoices(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addToCart(t, "u1", "p1", 1)
	res, err := f.svc.Checkout(ctx, request("u1"))
	require.NoError(t, err)

	n, err := f.svc.MarkOverdueInvoices(ctx, time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	n, err = f.svc.MarkOverdueInvoices(ctx, -time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	invoice, err := f.svc.GetInvoice(ctx, res.InvoiceID)
	require.NoError(t, err)
	assert.Equal(t, commerce.InvoiceOverdue, invoice.Status)
}

func TestMarkOverdueInvoices_SkipsCancelledOrders(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addToCart(t, "u1", "p1", 1)
	res, err := f.svc.Checkout(ctx, request("u1"))
	require.NoError(t, err)

	_, err = f.svc.CancelOrder(ctx, res.OrderID)
	require.NoError(t, err)
	invoice, err := f.svc.GetInvoice(ctx, res.InvoiceID)
	require.NoError(t, err)
	assert.Equal(t, commerce.InvoiceVoid, invoice.Status)

	n, err := f.svc.MarkOverdueInvoices(ctx, -time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	invoice, err = f.svc.GetInvoice(ctx, res.InvoiceID)
	require.NoError(t, err)
	assert.Equal(t, commerce.InvoiceVoid, invoice.Status)
}

func TestCancelOrder_VoidsOverdueButNotPaidInvoices(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.addToCart(t, "u1", "p1", 1)
	overdue, err := f.svc.Checkout(ctx, request("u1"))
	require.NoError(t, err)
	_, err = f.svc.MarkOverdueInvoices(ctx, -time.Hour)
	require.NoError(t, err)

	f.addToCart(t, "u1", "p1", 1)
	paid, err := f.svc.Checkout(ctx, request("u1"))
	require.NoError(t, err)
	_, err = f.svc.MarkInvoicePaid(ctx, paid.InvoiceID)
	require.NoError(t, err)

	for _, res := range []*checkout.Result{overdue, paid} {
		_, err = f.svc.CancelOrder(ctx, res.OrderID)
		require.NoError(t, err)
	}

	invoice, err := f.svc.GetInvoice(ctx, overdue.InvoiceID)
	require.NoError(t, err)
	assert.Equal(t, commerce.InvoiceVoid, invoice.Status)

	invoice, err = f.svc.GetInvoice(ctx, paid.InvoiceID)
	require.NoError(t, err)
	assert.Equal(t, commerce.InvoicePaid, invoice.Status)
}


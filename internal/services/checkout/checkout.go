package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"storefront-system/internal/commerce"
	"storefront-system/internal/events"
	"storefront-system/internal/services/orders"
)

type Request struct {
	UserID          string
	ShippingAddress string
	Phone           string
	PaymentMethod   string
	// AffiliateID is the referral attached to the request, if any. Unknown,
	// inactive or self referrals are dropped.
	AffiliateID    string
	IdempotencyKey string
}

type Result struct {
	OrderID         string          `json:"OrderId"`
	InvoiceID       string          `json:"InvoiceId"`
	AffiliateID     string          `json:"AffiliateId,omitempty"`
	CommissionIDs   []string        `json:"CommissionIds,omitempty"`
	Total           decimal.Decimal `json:"TotalAmount"`
	TotalCommission decimal.Decimal `json:"TotalCommission"`
	Replayed        bool            `json:"-"`
}

// stockLine is the quantity requested for one product across the cart.
type stockLine struct {
	ProductID string
	Name      string
	Quantity  int
}

type plan struct {
	userID    string
	assembled *orders.Result
	stock     []stockLine
}

// attempt tracks how far one checkout got.
type attempt struct {
	stage State
	saga  *saga
	// unsettled is set when a write may have landed without anything
	// left to undo it, so a retry must not run.
	unsettled bool
}

// --- Checkout ---

// Checkout turns the user's cart into an order, an invoice and, for
// referred purchases under the payout policy, commission records. All
// validation happens before the first write.
func (s *Service) Checkout(ctx context.Context, req Request) (*Result, error) {
	if err := validateRequest(req); err != nil {
		log.Warn().Err(err).Str("user_id", req.UserID).Msg("checkout: rejected")
		return nil, err
	}

	idemKey := ""
	if req.IdempotencyKey != "" && s.idem != nil {
		idemKey = req.UserID + ":" + req.IdempotencyKey
		var payload []byte
		var claimed bool
		err := s.bounded(ctx, func(ctx context.Context) error {
			var err error
			payload, claimed, err = s.idem.Acquire(ctx, idemKey)
			return err
		})
		if err != nil {
			if errors.Is(err, commerce.ErrCheckoutInProgress) {
				return nil, err
			}
			return nil, classify(StateStarted, fmt.Errorf("idempotency: %w", err))
		}
		if !claimed {
			var replay Result
			if err := json.Unmarshal(payload, &replay); err != nil {
				return nil, fmt.Errorf("%w: decode idempotent result: %w", commerce.ErrPersistenceFailure, err)
			}
			replay.Replayed = true
			log.Info().Str("user_id", req.UserID).Str("order_id", replay.OrderID).Msg("checkout: replayed idempotent result")
			return &replay, nil
		}
	}

	result, unsettled, err := s.checkout(ctx, req)
	if idemKey != "" {
		s.settleIdempotency(ctx, idemKey, result, unsettled, err)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func validateRequest(req Request) error {
	var missing []string
	if strings.TrimSpace(req.UserID) == "" {
		missing = append(missing, "user_id")
	}
	if strings.TrimSpace(req.ShippingAddress) == "" {
		missing = append(missing, "shipping_address")
	}
	if strings.TrimSpace(req.Phone) == "" {
		missing = append(missing, "phone")
	}
	if strings.TrimSpace(req.PaymentMethod) == "" {
		missing = append(missing, "payment_method")
	}
	if len(missing) > 0 {
		return commerce.InvalidInput("missing required checkout fields", missing...)
	}
	return nil
}

// settleIdempotency stores the result of a finished checkout under its key,
// or frees the key when the checkout is known not to have written anything
// lasting. Keys of unsettled checkouts stay held until they expire.
func (s *Service) settleIdempotency(ctx context.Context, key string, result *Result, unsettled bool, checkoutErr error) {
	bg := context.WithoutCancel(ctx)
	if checkoutErr == nil {
		payload, err := json.Marshal(result)
		if err == nil {
			err = s.bounded(bg, func(ctx context.Context) error {
				return s.idem.Complete(ctx, key, payload)
			})
		}
		if err != nil {
			log.Warn().Err(err).Str("order_id", result.OrderID).Msg("checkout: failed to store idempotent result")
		}
		return
	}
	if unsettled {
		log.Warn().Err(checkoutErr).Msg("checkout: outcome unknown, idempotency key stays held")
		return
	}
	if err := s.bounded(bg, func(ctx context.Context) error {
		return s.idem.Release(ctx, key)
	}); err != nil {
		log.Warn().Err(err).Msg("checkout: failed to release idempotency key")
	}
}

// checkout reports whether a failed attempt is unsettled: it may have left
// writes behind that nothing will undo.
func (s *Service) checkout(ctx context.Context, req Request) (*Result, bool, error) {
	p, err := s.prepare(ctx, req)
	if err != nil {
		stage := StateStarted
		if errors.Is(err, commerce.ErrInsufficientStock) {
			stage = StateCartValidated
		}
		err = classify(stage, err)
		logFailure(req.UserID, err)
		return nil, false, err
	}

	a := &attempt{stage: StateCartValidated}
	if s.tx != nil {
		persisted := false
		err = s.tx.WithinTransaction(ctx, func(ctx context.Context, repos commerce.Repositories) error {
			if err := s.persist(ctx, repos, p, a); err != nil {
				return err
			}
			persisted = true
			return nil
		})
		switch {
		case err == nil:
		case persisted:
			// The commit itself failed and may still have gone through.
			a.unsettled = true
		default:
			// Rolled back: nothing past validation survived.
			a.stage = StateCartValidated
		}
	} else {
		a.saga = &saga{}
		err = s.persist(ctx, s.repos, p, a)
		if err != nil {
			if uerr := a.saga.unwind(ctx, s.cfg.CallTimeout); uerr != nil {
				err = fmt.Errorf("%w: %w (compensation: %v)", commerce.ErrPartialCheckout, err, uerr)
				a.unsettled = true
			}
		}
	}
	if err != nil {
		err = classify(a.stage, err)
		logFailure(req.UserID, err)
		return nil, a.unsettled, err
	}
	a.stage = StateComplete

	order := p.assembled.Order
	result := &Result{
		OrderID:         order.ID,
		InvoiceID:       p.assembled.Invoice.ID,
		AffiliateID:     order.AffiliateID,
		Total:           order.Total,
		TotalCommission: order.TotalCommission,
	}
	for _, c := range p.assembled.Commissions {
		result.CommissionIDs = append(result.CommissionIDs, c.ID)
	}

	log.Info().
		Str("user_id", req.UserID).
		Str("order_id", order.ID).
		Str("invoice_id", result.InvoiceID).
		Str("affiliate_id", order.AffiliateID).
		Str("total", order.Total.StringFixed(2)).
		Int("commissions", len(result.CommissionIDs)).
		Msg("checkout: complete")

	s.publish(ctx, events.Event{
		Type:        events.OrderCreated,
		OrderID:     order.ID,
		InvoiceID:   result.InvoiceID,
		CustomerID:  order.CustomerID,
		AffiliateID: order.AffiliateID,
		Status:      order.Status.String(),
		TotalAmount: order.Total.StringFixed(2),
		Commission:  order.TotalCommission.StringFixed(2),
	})

	return result, false, nil
}

// prepare reads everything the checkout needs and assembles the records.
// It performs no writes.
func (s *Service) prepare(ctx context.Context, req Request) (*plan, error) {
	var cart *commerce.Cart
	if err := s.bounded(ctx, func(ctx context.Context) error {
		var err error
		cart, err = s.repos.Carts.Get(ctx, req.UserID)
		return err
	}); err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if cart.Empty() {
		return nil, commerce.InvalidInput("cart is empty", "cart")
	}

	var stock []stockLine
	index := make(map[string]int)
	for _, item := range cart.Items {
		if item.Quantity < 1 {
			return nil, commerce.InvalidInput("quantity must be at least 1", item.ProductID)
		}
		if i, ok := index[item.ProductID]; ok {
			stock[i].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(stock)
		stock = append(stock, stockLine{ProductID: item.ProductID, Name: item.Name, Quantity: item.Quantity})
	}

	products := make(map[string]*commerce.Product, len(stock))
	var shortages []commerce.StockShortage
	for _, line := range stock {
		line := line
		var product *commerce.Product
		if err := s.bounded(ctx, func(ctx context.Context) error {
			var err error
			product, err = s.repos.Products.Get(ctx, line.ProductID)
			return err
		}); err != nil {
			return nil, fmt.Errorf("load product %s: %w", line.ProductID, err)
		}
		products[line.ProductID] = product
		if line.Quantity > product.Stock {
			shortages = append(shortages, commerce.StockShortage{
				ProductID: line.ProductID,
				Name:      product.Name,
				Requested: line.Quantity,
				Available: product.Stock,
			})
		}
	}
	if len(shortages) > 0 {
		return nil, &commerce.InsufficientStockError{Shortages: shortages}
	}

	affiliateID, err := s.referral(ctx, req.AffiliateID, req.UserID)
	if err != nil {
		return nil, err
	}

	brands := make(map[string]*commerce.Brand)
	lines := make([]orders.Line, 0, len(cart.Items))
	for _, item := range cart.Items {
		product := products[item.ProductID]
		brand, err := s.brand(ctx, product.BrandID, brands)
		if err != nil {
			return nil, err
		}

		line := orders.Line{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Discount:  item.Discount,
			Rate:      s.resolver.ResolveRate(product, brand),
		}
		// Items saved before prices were captured fall back to the catalogue.
		if line.UnitPrice.IsZero() {
			line.UnitPrice = product.Price
			line.Discount = product.Discount
		}
		if line.Name == "" {
			line.Name = product.Name
		}
		lines = append(lines, line)
	}

	assembled, err := orders.Assemble(orders.Input{
		CustomerID:      req.UserID,
		AffiliateID:     affiliateID,
		Lines:           lines,
		ShippingFee:     s.cfg.ShippingFee,
		Policy:          s.cfg.Policy,
		ShippingAddress: req.ShippingAddress,
		Phone:           req.Phone,
		PaymentMethod:   req.PaymentMethod,
		Now:             s.now(),
	})
	if err != nil {
		return nil, err
	}

	return &plan{userID: req.UserID, assembled: assembled, stock: stock}, nil
}

// referral returns the affiliate to credit, or "" when the referral does
// not qualify.
func (s *Service) referral(ctx context.Context, affiliateID, userID string) (string, error) {
	if affiliateID == "" {
		return "", nil
	}
	var affiliate *commerce.Affiliate
	err := s.bounded(ctx, func(ctx context.Context) error {
		var err error
		affiliate, err = s.repos.Affiliates.Get(ctx, affiliateID)
		return err
	})
	switch {
	case errors.Is(err, commerce.ErrNotFound):
		log.Warn().Str("affiliate_id", affiliateID).Msg("checkout: unknown affiliate, referral dropped")
		return "", nil
	case err != nil:
		return "", fmt.Errorf("load affiliate %s: %w", affiliateID, err)
	case affiliate.Status != commerce.AffiliateActive:
		log.Warn().Str("affiliate_id", affiliateID).Str("status", string(affiliate.Status)).Msg("checkout: inactive affiliate, referral dropped")
		return "", nil
	case affiliate.UserID == userID:
		log.Warn().Str("affiliate_id", affiliateID).Msg("checkout: self referral dropped")
		return "", nil
	}
	return affiliate.ID, nil
}

// brand loads a brand once per checkout. A missing brand is not an error.
func (s *Service) brand(ctx context.Context, brandID string, cache map[string]*commerce.Brand) (*commerce.Brand, error) {
	if brandID == "" {
		return nil, nil
	}
	if b, ok := cache[brandID]; ok {
		return b, nil
	}
	var brand *commerce.Brand
	err := s.bounded(ctx, func(ctx context.Context) error {
		var err error
		brand, err = s.repos.Brands.Get(ctx, brandID)
		return err
	})
	if errors.Is(err, commerce.ErrNotFound) {
		brand, err = nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load brand %s: %w", brandID, err)
	}
	cache[brandID] = brand
	return brand, nil
}

// persist performs the writes in order. Undo actions for order, invoice and
// commission writes are registered before the write, so a write that timed
// out after landing is still removed. Stock is only restocked once a
// decrement is known to have happened.
func (s *Service) persist(ctx context.Context, repos commerce.Repositories, p *plan, a *attempt) error {
	for _, line := range p.stock {
		line := line
		err := s.bounded(ctx, func(ctx context.Context) error {
			return repos.Products.DecrementStock(ctx, line.ProductID, line.Quantity)
		})
		if errors.Is(err, commerce.ErrInsufficientStock) {
			return s.lostRace(ctx, repos, line)
		}
		if err != nil {
			if a.saga != nil && isTimeout(err) {
				// A late decrement cannot be told apart from a concurrent
				// sale, so it is not restocked. The units stay lost until
				// reconciled by hand.
				a.unsettled = true
				log.Error().
					Str("product_id", line.ProductID).
					Int("quantity", line.Quantity).
					Msg("checkout: stock decrement timed out, state unknown")
			}
			return fmt.Errorf("decrement stock %s: %w", line.ProductID, err)
		}
		a.saga.push("restock "+line.ProductID, func(ctx context.Context) error {
			return s.repos.Products.Restock(ctx, line.ProductID, line.Quantity)
		})
	}
	a.stage = StateStockReserved

	order := &p.assembled.Order
	a.saga.push("delete order "+order.ID, func(ctx context.Context) error {
		return s.repos.Orders.Delete(ctx, order.ID)
	})
	if err := s.bounded(ctx, func(ctx context.Context) error {
		_, err := repos.Orders.Create(ctx, order)
		return err
	}); err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	a.stage = StateOrderPersisted

	invoice := &p.assembled.Invoice
	a.saga.push("delete invoice "+invoice.ID, func(ctx context.Context) error {
		return s.repos.Invoices.Delete(ctx, invoice.ID)
	})
	if err := s.bounded(ctx, func(ctx context.Context) error {
		_, err := repos.Invoices.Create(ctx, invoice)
		return err
	}); err != nil {
		return fmt.Errorf("create invoice: %w", err)
	}
	a.stage = StateInvoicePersisted

	if len(p.assembled.Commissions) > 0 {
		a.saga.push("delete commissions "+order.ID, func(ctx context.Context) error {
			return s.repos.Commissions.DeleteByOrder(ctx, order.ID)
		})
	}
	for i := range p.assembled.Commissions {
		commission := &p.assembled.Commissions[i]
		if err := s.bounded(ctx, func(ctx context.Context) error {
			_, err := repos.Commissions.Create(ctx, commission)
			return err
		}); err != nil {
			return fmt.Errorf("create commission for %s: %w", commission.ProductID, err)
		}
	}
	a.stage = StateCommissionsPersisted

	// Every reservation is now backed by persisted records.
	a.stage = StateStockDecremented

	if err := s.bounded(ctx, func(ctx context.Context) error {
		return repos.Carts.Clear(ctx, p.userID)
	}); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	a.stage = StateCartCleared
	return nil
}

// lostRace reports a conditional decrement that failed because another
// checkout took the stock after validation.
func (s *Service) lostRace(ctx context.Context, repos commerce.Repositories, line stockLine) error {
	shortage := commerce.StockShortage{
		ProductID: line.ProductID,
		Name:      line.Name,
		Requested: line.Quantity,
	}
	_ = s.bounded(ctx, func(ctx context.Context) error {
		product, err := repos.Products.Get(ctx, line.ProductID)
		if err == nil {
			shortage.Available = product.Stock
			shortage.Name = product.Name
		}
		return err
	})
	return &commerce.InsufficientStockError{Shortages: []commerce.StockShortage{shortage}}
}

// classify maps a failure onto the commerce error kinds. Rejections keep
// their own kind; anything else is a timeout or a persistence failure.
func classify(stage State, err error) error {
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	switch {
	case errors.Is(err, commerce.ErrCheckoutTimeout),
		errors.Is(err, commerce.ErrPartialCheckout),
		errors.Is(err, commerce.ErrPersistenceFailure):
	case isTimeout(err):
		err = fmt.Errorf("%w: %w", commerce.ErrCheckoutTimeout, err)
	case errors.Is(err, commerce.ErrInvalidInput),
		errors.Is(err, commerce.ErrInsufficientStock),
		errors.Is(err, commerce.ErrNotFound):
	default:
		err = fmt.Errorf("%w: %w", commerce.ErrPersistenceFailure, err)
	}
	return &StageError{Stage: stage, Err: err}
}

func logFailure(userID string, err error) {
	var se *StageError
	stage := ""
	if errors.As(err, &se) {
		stage = string(se.Stage)
	}
	switch {
	case errors.Is(err, commerce.ErrInvalidInput),
		errors.Is(err, commerce.ErrInsufficientStock),
		errors.Is(err, commerce.ErrNotFound):
		log.Warn().Err(err).Str("user_id", userID).Str("stage", stage).Msg("checkout: rejected")
	default:
		log.Error().Err(err).Str("user_id", userID).Str("stage", stage).Msg("checkout: failed")
	}
}

package checkout

import (
	"context"
	"fmt"

	"storefront-system/internal/commerce"
	"storefront-system/internal/services/pricing"
)

// --- Cart ---

func (s *Service) GetCart(ctx context.Context, userID string) (*commerce.Cart, error) {
	if userID == "" {
		return nil, commerce.InvalidInput("user id required", "user_id")
	}
	var cart *commerce.Cart
	err := s.bounded(ctx, func(ctx context.Context) error {
		var err error
		cart, err = s.repos.Carts.Get(ctx, userID)
		return err
	})
	if err != nil {
		return nil, wrapRead("cart", err)
	}
	if cart.Items == nil {
		cart.Items = []commerce.CartItem{}
	}
	return cart, nil
}

// AddItem puts qty units of a product in the cart, merging with an existing
// line. The price and discount seen now are what checkout will charge.
func (s *Service) AddItem(ctx context.Context, userID, productID string, qty int) (*commerce.Cart, error) {
	if productID == "" {
		return nil, commerce.InvalidInput("product id required", "product_id")
	}
	if qty < 1 {
		return nil, commerce.InvalidInput("quantity must be at least 1", "quantity")
	}
	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	product, err := s.getProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	idx := findItem(cart, productID)
	if idx >= 0 {
		qty += cart.Items[idx].Quantity
	}
	if qty > product.Stock {
		return nil, &commerce.InsufficientStockError{Shortages: []commerce.StockShortage{{
			ProductID: productID, Name: product.Name, Requested: qty, Available: product.Stock,
		}}}
	}

	item := cartItem(product, qty)
	if idx >= 0 {
		cart.Items[idx] = item
	} else {
		cart.Items = append(cart.Items, item)
	}
	return s.saveCart(ctx, cart)
}

// UpdateQuantity sets the quantity of a cart line; zero removes it.
func (s *Service) UpdateQuantity(ctx context.Context, userID, productID string, qty int) (*commerce.Cart, error) {
	if qty < 0 {
		return nil, commerce.InvalidInput("quantity cannot be negative", "quantity")
	}
	if qty == 0 {
		return s.RemoveItem(ctx, userID, productID)
	}
	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	idx := findItem(cart, productID)
	if idx < 0 {
		return nil, fmt.Errorf("cart item %s: %w", productID, commerce.ErrNotFound)
	}
	product, err := s.getProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if qty > product.Stock {
		return nil, &commerce.InsufficientStockError{Shortages: []commerce.StockShortage{{
			ProductID: productID, Name: product.Name, Requested: qty, Available: product.Stock,
		}}}
	}

	// Keep the captured price; only the quantity changes.
	item := cart.Items[idx]
	item.Quantity = qty
	item.Subtotal = pricing.RoundMoney(pricing.PriceLine(item.UnitPrice, item.Discount, qty).LineSubtotal)
	cart.Items[idx] = item
	return s.saveCart(ctx, cart)
}

func (s *Service) RemoveItem(ctx context.Context, userID, productID string) (*commerce.Cart, error) {
	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	idx := findItem(cart, productID)
	if idx < 0 {
		return nil, fmt.Errorf("cart item %s: %w", productID, commerce.ErrNotFound)
	}
	cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
	return s.saveCart(ctx, cart)
}

func (s *Service) ClearCart(ctx context.Context, userID string) error {
	if userID == "" {
		return commerce.InvalidInput("user id required", "user_id")
	}
	if err := s.bounded(ctx, func(ctx context.Context) error {
		return s.repos.Carts.Clear(ctx, userID)
	}); err != nil {
		return classifyWrite(err)
	}
	return nil
}

func (s *Service) saveCart(ctx context.Context, cart *commerce.Cart) (*commerce.Cart, error) {
	cart.UpdatedAt = s.now()
	if err := s.bounded(ctx, func(ctx context.Context) error {
		return s.repos.Carts.Save(ctx, cart)
	}); err != nil {
		return nil, classifyWrite(err)
	}
	return cart, nil
}

func (s *Service) getProduct(ctx context.Context, id string) (*commerce.Product, error) {
	var product *commerce.Product
	err := s.bounded(ctx, func(ctx context.Context) error {
		var err error
		product, err = s.repos.Products.Get(ctx, id)
		return err
	})
	if err != nil {
		return nil, wrapRead("product "+id, err)
	}
	return product, nil
}

func findItem(cart *commerce.Cart, productID string) int {
	for i, item := range cart.Items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}

func cartItem(p *commerce.Product, qty int) commerce.CartItem {
	return commerce.CartItem{
		ProductID: p.ID,
		Name:      p.Name,
		Quantity:  qty,
		UnitPrice: p.Price,
		Discount:  p.Discount,
		Subtotal:  pricing.RoundMoney(pricing.PriceLine(p.Price, p.Discount, qty).LineSubtotal),
	}
}

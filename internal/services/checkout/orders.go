package checkout

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/rs/zerolog/log"

	"storefront-system/internal/commerce"
	"storefront-system/internal/events"
)

var allowedTransitions = map[commerce.OrderStatus]map[commerce.OrderStatus]bool{
	commerce.OrderPending: {
		commerce.OrderProcessing: true,
		commerce.OrderCancelled:  true,
	},
	commerce.OrderProcessing: {
		commerce.OrderShipped:   true,
		commerce.OrderCancelled: true,
	},
	commerce.OrderShipped: {
		commerce.OrderDelivered: true,
	},
}

var cancellable = []commerce.OrderStatus{commerce.OrderPending, commerce.OrderProcessing}

var voidable = []commerce.InvoiceStatus{commerce.InvoicePending, commerce.InvoiceOverdue}

func (s *Service) GetOrder(ctx context.Context, orderID string) (*commerce.Order, error) {
	if orderID == "" {
		return nil, commerce.InvalidInput("order id required", "order_id")
	}
	var order *commerce.Order
	err := s.bounded(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.repos.Orders.Get(ctx, orderID)
		return err
	})
	if err != nil {
		return nil, wrapRead("order", err)
	}
	return order, nil
}

// CancelOrder moves a Pending or Processing order to Cancelled, puts its
// quantities back in stock and voids its unpaid invoice. Cancelling an
// already cancelled order is a no-op. Commission records are left as they are.
func (s *Service) CancelOrder(ctx context.Context, orderID string) (*commerce.Order, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == commerce.OrderCancelled {
		return order, nil
	}
	if !allowedTransitions[order.Status][commerce.OrderCancelled] {
		return nil, fmt.Errorf("%w: order %s is %s and can no longer be cancelled", commerce.ErrStatusConflict, orderID, order.Status)
	}

	if s.tx != nil {
		err = s.tx.WithinTransaction(ctx, func(ctx context.Context, repos commerce.Repositories) error {
			return s.cancel(ctx, repos, order, nil)
		})
	} else {
		sg := &saga{}
		err = s.cancel(ctx, s.repos, order, sg)
		if err != nil && !errors.Is(err, commerce.ErrStatusConflict) {
			if uerr := sg.unwind(ctx, s.cfg.CallTimeout); uerr != nil {
				err = fmt.Errorf("%w: %w (compensation: %v)", commerce.ErrPartialCheckout, err, uerr)
			}
		}
	}
	if errors.Is(err, commerce.ErrStatusConflict) {
		// Lost a race; fine if the winner cancelled.
		current, rerr := s.GetOrder(ctx, orderID)
		if rerr == nil && current.Status == commerce.OrderCancelled {
			return current, nil
		}
		return nil, err
	}
	if err != nil {
		log.Error().Err(err).Str("order_id", orderID).Msg("cancel order: failed")
		return nil, classifyWrite(err)
	}

	log.Info().Str("order_id", orderID).Str("from", order.Status.String()).Msg("order cancelled")
	s.publish(ctx, events.Event{
		Type:        events.OrderCancelled,
		OrderID:     order.ID,
		CustomerID:  order.CustomerID,
		AffiliateID: order.AffiliateID,
		Status:      commerce.OrderCancelled.String(),
		TotalAmount: order.Total.StringFixed(2),
		Commission:  order.TotalCommission.StringFixed(2),
	})

	return s.GetOrder(ctx, orderID)
}

// cancel flips the status first so that only one caller ever restocks.
func (s *Service) cancel(ctx context.Context, repos commerce.Repositories, order *commerce.Order, sg *saga) error {
	if err := s.bounded(ctx, func(ctx context.Context) error {
		return repos.Orders.UpdateStatus(ctx, order.ID, cancellable, commerce.OrderCancelled)
	}); err != nil {
		return err
	}
	previous := order.Status
	sg.push("restore status "+order.ID, func(ctx context.Context) error {
		return s.repos.Orders.UpdateStatus(ctx, order.ID, []commerce.OrderStatus{commerce.OrderCancelled}, previous)
	})

	for _, item := range order.Items {
		item := item
		if err := s.bounded(ctx, func(ctx context.Context) error {
			return repos.Products.Restock(ctx, item.ProductID, item.Quantity)
		}); err != nil {
			return fmt.Errorf("restock %s: %w", item.ProductID, err)
		}
		sg.push("undo restock "+item.ProductID, func(ctx context.Context) error {
			return s.repos.Products.DecrementStock(ctx, item.ProductID, item.Quantity)
		})
	}

	return s.voidInvoice(ctx, repos, order.ID, sg)
}

// voidInvoice takes an unpaid invoice out of the overdue sweep. A paid
// invoice stays Paid.
func (s *Service) voidInvoice(ctx context.Context, repos commerce.Repositories, orderID string, sg *saga) error {
	var invoice *commerce.Invoice
	err := s.bounded(ctx, func(ctx context.Context) error {
		var err error
		invoice, err = repos.Invoices.GetByOrder(ctx, orderID)
		return err
	})
	if errors.Is(err, commerce.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load invoice: %w", err)
	}
	if !slices.Contains(voidable, invoice.Status) {
		return nil
	}

	err = s.bounded(ctx, func(ctx context.Context) error {
		return repos.Invoices.UpdateStatus(ctx, invoice.ID, voidable, commerce.InvoiceVoid)
	})
	if errors.Is(err, commerce.ErrStatusConflict) {
		// Paid in the meantime.
		return nil
	}
	if err != nil {
		return fmt.Errorf("void invoice %s: %w", invoice.ID, err)
	}
	previous := invoice.Status
	sg.push("restore invoice "+invoice.ID, func(ctx context.Context) error {
		return s.repos.Invoices.UpdateStatus(ctx, invoice.ID, []commerce.InvoiceStatus{commerce.InvoiceVoid}, previous)
	})
	return nil
}

// UpdateOrderStatus applies an administrative status change. Moving to
// Cancelled goes through CancelOrder so stock is restored.
func (s *Service) UpdateOrderStatus(ctx context.Context, orderID string, to commerce.OrderStatus) (*commerce.Order, error) {
	if to == commerce.OrderCancelled {
		return s.CancelOrder(ctx, orderID)
	}
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == to {
		return order, nil
	}

	transitions, ok := allowedTransitions[order.Status]
	if !ok || !transitions[to] {
		log.Warn().
			Str("order_id", orderID).
			Stringer("current_status", order.Status).
			Stringer("new_status", to).
			Msg("invalid status transition attempt")
		return nil, fmt.Errorf("%w: cannot move order from %s to %s", commerce.ErrStatusConflict, order.Status, to)
	}

	if err := s.bounded(ctx, func(ctx context.Context) error {
		return s.repos.Orders.UpdateStatus(ctx, orderID, []commerce.OrderStatus{order.Status}, to)
	}); err != nil {
		if errors.Is(err, commerce.ErrStatusConflict) {
			return nil, err
		}
		return nil, classifyWrite(err)
	}

	s.publish(ctx, events.Event{
		Type:       events.OrderStatus,
		OrderID:    orderID,
		CustomerID: order.CustomerID,
		Status:     to.String(),
	})
	return s.GetOrder(ctx, orderID)
}

func wrapRead(what string, err error) error {
	switch {
	case errors.Is(err, commerce.ErrNotFound):
		return fmt.Errorf("%s: %w", what, err)
	case isTimeout(err):
		return fmt.Errorf("%w: %s: %w", commerce.ErrCheckoutTimeout, what, err)
	default:
		return fmt.Errorf("%w: %s: %w", commerce.ErrPersistenceFailure, what, err)
	}
}

func classifyWrite(err error) error {
	switch {
	case errors.Is(err, commerce.ErrPartialCheckout),
		errors.Is(err, commerce.ErrPersistenceFailure),
		errors.Is(err, commerce.ErrCheckoutTimeout),
		errors.Is(err, commerce.ErrNotFound):
		return err
	case isTimeout(err):
		return fmt.Errorf("%w: %w", commerce.ErrCheckoutTimeout, err)
	default:
		return fmt.Errorf("%w: %w", commerce.ErrPersistenceFailure, err)
	}
}

package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"storefront-system/internal/commerce"
	"storefront-system/internal/events"
)

func (s *Service) GetInvoice(ctx context.Context, invoiceID string) (*commerce.Invoice, error) {
	if invoiceID == "" {
		return nil, commerce.InvalidInput("invoice id required", "invoice_id")
	}
	var invoice *commerce.Invoice
	err := s.bounded(ctx, func(ctx context.Context) error {
		var err error
		invoice, err = s.repos.Invoices.Get(ctx, invoiceID)
		return err
	})
	if err != nil {
		return nil, wrapRead("invoice", err)
	}
	return invoice, nil
}

// MarkInvoicePaid settles a Pending or Overdue invoice. Paying twice is a
// no-op; invoices of cancelled orders cannot be paid.
func (s *Service) MarkInvoicePaid(ctx context.Context, invoiceID string) (*commerce.Invoice, error) {
	invoice, err := s.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice.Status == commerce.InvoicePaid {
		return invoice, nil
	}
	if invoice.Status == commerce.InvoiceVoid {
		return nil, fmt.Errorf("%w: invoice %s is void", commerce.ErrStatusConflict, invoiceID)
	}

	order, err := s.GetOrder(ctx, invoice.OrderID)
	if err != nil {
		return nil, err
	}
	if order.Status == commerce.OrderCancelled {
		return nil, fmt.Errorf("%w: order %s is cancelled", commerce.ErrStatusConflict, order.ID)
	}

	paidAt := s.now()
	if err := s.bounded(ctx, func(ctx context.Context) error {
		return s.repos.Invoices.MarkPaid(ctx, invoiceID, paidAt)
	}); err != nil {
		return nil, classifyWrite(err)
	}

	log.Info().Str("invoice_id", invoiceID).Str("order_id", invoice.OrderID).Msg("invoice paid")
	s.publish(ctx, events.Event{
		Type:        events.InvoicePaid,
		OrderID:     invoice.OrderID,
		InvoiceID:   invoiceID,
		CustomerID:  invoice.CustomerID,
		Status:      string(commerce.InvoicePaid),
		TotalAmount: invoice.Total.StringFixed(2),
	})
	return s.GetInvoice(ctx, invoiceID)
}

// MarkOverdueInvoices flags Pending invoices older than age as Overdue.
func (s *Service) MarkOverdueInvoices(ctx context.Context, age time.Duration) (int64, error) {
	cutoff := s.now().Add(-age)
	var n int64
	err := s.bounded(ctx, func(ctx context.Context) error {
		var err error
		n, err = s.repos.Invoices.MarkOverdue(ctx, cutoff)
		return err
	})
	if err != nil {
		return 0, classifyWrite(err)
	}
	return n, nil
}

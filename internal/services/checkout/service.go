package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"storefront-system/internal/commerce"
	"storefront-system/internal/events"
	"storefront-system/internal/services/pricing"
)

const defaultCallTimeout = 5 * time.Second

// IdempotencyStore remembers checkout results per key. Acquire returns the
// stored payload with claimed=false when the key already completed, and
// commerce.ErrCheckoutInProgress while another request holds it.
type IdempotencyStore interface {
	Acquire(ctx context.Context, key string) (payload []byte, claimed bool, err error)
	Complete(ctx context.Context, key string, payload []byte) error
	Release(ctx context.Context, key string) error
}

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type Config struct {
	ShippingFee decimal.Decimal
	Policy      commerce.CommissionPolicy
	CallTimeout time.Duration
}

type Service struct {
	repos    commerce.Repositories
	tx       commerce.Transactor
	resolver *pricing.RateResolver
	idem     IdempotencyStore
	events   EventPublisher
	cfg      Config
	now      func() time.Time
}

// NewService wires the checkout service. idem and publisher may be nil.
// Stores implementing commerce.Transactor get all-or-nothing checkouts;
// the rest run with compensating actions.
func NewService(store commerce.Store, resolver *pricing.RateResolver, idem IdempotencyStore, publisher EventPublisher, cfg Config) *Service {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	if cfg.Policy == "" {
		cfg.Policy = commerce.PolicyPayout
	}
	if resolver == nil {
		resolver = pricing.NewRateResolver(pricing.DefaultFallbackTable())
	}

	s := &Service{
		repos:    store.Repositories(),
		resolver: resolver,
		idem:     idem,
		events:   publisher,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
	if tx, ok := store.(commerce.Transactor); ok {
		s.tx = tx
	}
	return s
}

// bounded runs fn with a per-call deadline derived from ctx.
func (s *Service) bounded(ctx context.Context, fn func(ctx context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()
	return fn(callCtx)
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.events == nil {
		return
	}
	event.Timestamp = s.now()
	if err := s.bounded(ctx, func(ctx context.Context) error {
		return s.events.Publish(ctx, event)
	}); err != nil {
		log.Warn().Err(err).Str("event_type", event.Type).Str("order_id", event.OrderID).Msg("checkout: failed to publish event")
	}
}

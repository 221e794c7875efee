package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
)

const (
	OrderCreated   = "order.created"
	OrderCancelled = "order.cancelled"
	OrderStatus    = "order.status_changed"
	CommissionPaid = "commission.paid"
	InvoicePaid    = "invoice.paid"

	channelPrefix = "store:events:"
	channelAll    = "store:events:all"
)

type Event struct {
	Type         string    `json:"event_type"`
	OrderID      string    `json:"order_id,omitempty"`
	InvoiceID    string    `json:"invoice_id,omitempty"`
	CustomerID   string    `json:"customer_id,omitempty"`
	AffiliateID  string    `json:"affiliate_id,omitempty"`
	CommissionID string    `json:"commission_id,omitempty"`
	Status       string    `json:"status,omitempty"`
	TotalAmount  string    `json:"total_amount,omitempty"`
	Commission   string    `json:"commission,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// RedisPublisher fans every event out to its own channel and to the
// catch-all channel.
type RedisPublisher struct {
	redis *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{redis: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.redis.Publish(ctx, channelPrefix+event.Type, eventJSON).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	if err := p.redis.Publish(ctx, channelAll, eventJSON).Err(); err != nil {
		return fmt.Errorf("failed to publish to all channel: %w", err)
	}
	return nil
}

// LogPublisher writes events to the log; used when no redis is configured.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, event Event) error {
	log.Info().
		Str("event_type", event.Type).
		Str("order_id", event.OrderID).
		Str("commission_id", event.CommissionID).
		Str("status", event.Status).
		Msg("event")
	return nil
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, 0, len(r.events))
	for _, e := range r.events {
		types = append(types, e.Type)
	}
	return types
}

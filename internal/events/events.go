// Package events publishes order lifecycle notifications to a message broker.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"storefront/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Type is the routing key of an order event.
type Type string

const (
	OrderCreated   Type = "order.created"
	OrderAccepted  Type = "order.accepted"
	OrderCancelled Type = "order.cancelled"
	OrderStatus    Type = "order.status_changed"
	OrderRestocked Type = "order.restocked"
)

// OrderEvent is the message body of every order event.
type OrderEvent struct {
	EventID   string         `json:"event_id"`
	Type      Type           `json:"type"`
	OrderID   uint           `json:"order_id"`
	UserID    string         `json:"user_id"`
	Status    string         `json:"status"`
	Total     float64        `json:"total"`
	Items     map[string]int `json:"items,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewOrderEvent builds an event describing order as it is now.
func NewOrderEvent(t Type, order *models.Order, reason string) OrderEvent {
	return OrderEvent{
		EventID:   uuid.NewString(),
		Type:      t,
		OrderID:   order.ID,
		UserID:    order.UserID,
		Status:    string(order.Status),
		Total:     order.Total,
		Items:     order.Quantities(),
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	}
}

// Decode parses a message body written by Publisher.
func Decode(body []byte) (*OrderEvent, error) {
	var ev OrderEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("failed to decode order event: %w", err)
	}
	if ev.Type == "" {
		return nil, fmt.Errorf("order event without type")
	}
	return &ev, nil
}

// Sink is a broker producer. Both the RabbitMQ client and the Kafka producer satisfy it.
type Sink interface {
	Publish(ctx context.Context, key string, body []byte) error
}

// Publisher encodes order events and hands them to a Sink. Publishing is best effort:
// failures are logged and never returned to the order flow.
type Publisher struct {
	sink   Sink
	logger *zap.Logger
}

// NewPublisher creates a Publisher. A nil sink disables publishing.
func NewPublisher(sink Sink, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{sink: sink, logger: logger}
}

// PublishOrder sends an event of type t for order.
func (p *Publisher) PublishOrder(ctx context.Context, t Type, order *models.Order, reason string) {
	if p == nil || p.sink == nil {
		return
	}
	ev := NewOrderEvent(t, order, reason)
	body, err := json.Marshal(ev)
	if err != nil {
		p.logger.Error("failed to encode order event", zap.Uint("order_id", order.ID), zap.Error(err))
		return
	}
	key := string(t)
	if _, ok := p.sink.(keyedByOrder); ok {
		key = strconv.FormatUint(uint64(order.ID), 10)
	}
	if err := p.sink.Publish(ctx, key, body); err != nil {
		p.logger.Warn("failed to publish order event",
			zap.String("type", string(t)), zap.Uint("order_id", order.ID), zap.Error(err))
		return
	}
	p.logger.Debug("published order event", zap.String("type", string(t)), zap.Uint("order_id", order.ID))
}

// keyedByOrder marks sinks that partition by order id instead of routing by event type.
type keyedByOrder interface {
	KeyedByOrder()
}

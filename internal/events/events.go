// Package events publishes order lifecycle events after commit.
package events

import (
	"context"
	"encoding/json"
	"time"

	"shopcore/internal/model"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

// Type names an order event.
type Type string

const (
	OrderCreated       Type = "order.created"
	OrderStatusChanged Type = "order.status_changed"
	OrderDeleted       Type = "order.deleted"
)

// Event is the JSON payload written to the order topic.
type Event struct {
	Type        Type              `json:"type"`
	OrderID     uuid.UUID         `json:"orderId"`
	OrderNumber string            `json:"orderNumber"`
	CustomerID  int64             `json:"customerId"`
	Status      model.OrderStatus `json:"status"`
	Previous    model.OrderStatus `json:"previousStatus,omitempty"`
	Total       decimal.Decimal   `json:"totalAmount"`
	ActorID     *int64            `json:"actorId,omitempty"`
	OccurredAt  time.Time         `json:"occurredAt"`
}

// NewOrderEvent builds an event from the committed order.
func NewOrderEvent(t Type, o *model.Order, previous model.OrderStatus, actorID *int64, at time.Time) Event {
	return Event{
		Type:        t,
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		CustomerID:  o.CustomerID,
		Status:      o.Status,
		Previous:    previous,
		Total:       o.TotalAmount,
		ActorID:     actorID,
		OccurredAt:  at,
	}
}

// Publisher delivers order events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// messageWriter is the part of *kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to a Kafka topic keyed by order id, so every
// event of one order lands on the same partition.
type KafkaPublisher struct {
	writer messageWriter
	logger zerolog.Logger
}

// NewKafkaWriter creates a writer for the order topic.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}
}

// NewKafkaPublisher wraps writer.
func NewKafkaPublisher(writer messageWriter, logger zerolog.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: writer,
		logger: logger.With().Str("component", "kafka_publisher").Logger(),
	}
}

// Publish marshals and writes one event.
func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "failed to marshal order event")
	}

	msg := kafka.Message{
		Key:   []byte(event.OrderID.String()),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(event.Type)},
		},
		Time: event.OccurredAt,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error().
			Err(err).
			Str("event_type", string(event.Type)).
			Str("order_id", event.OrderID.String()).
			Msg("failed to publish order event")
		return errors.Wrap(err, "failed to publish order event")
	}

	p.logger.Debug().
		Str("event_type", string(event.Type)).
		Str("order_id", event.OrderID.String()).
		Msg("order event published")
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops every event. It is used when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }

package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/orderdesk/api/internal/platform/config"
	"github.com/orderdesk/api/internal/services"
)

// MessageWriter is the subset of *kafka.Writer used by the publisher.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter builds a writer for the configured brokers and topic. Messages keyed by order id
// land on the same partition so consumers observe each order's events in order.
func NewKafkaWriter(cfg config.EventsConfig) (*kafka.Writer, error) {
	if !cfg.Enabled() {
		return nil, errors.New("kafka writer: no brokers configured")
	}
	topic := strings.TrimSpace(cfg.Topic)
	if topic == "" {
		return nil, errors.New("kafka writer: topic is required")
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.KafkaBrokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		WriteTimeout:           cfg.WriteTimeout,
		AllowAutoTopicCreation: true,
	}, nil
}

// KafkaOrderPublisher publishes order domain events as JSON messages.
type KafkaOrderPublisher struct {
	writer  MessageWriter
	marshal func(any) ([]byte, error)
}

// NewKafkaOrderPublisher constructs a Kafka backed order event publisher.
func NewKafkaOrderPublisher(writer MessageWriter) (*KafkaOrderPublisher, error) {
	if writer == nil {
		return nil, errors.New("kafka order publisher: writer is required")
	}
	return &KafkaOrderPublisher{
		writer:  writer,
		marshal: json.Marshal,
	}, nil
}

type orderEventMessage struct {
	Type           string         `json:"type"`
	OrderID        string         `json:"orderId"`
	PreviousStatus string         `json:"previousStatus,omitempty"`
	CurrentStatus  string         `json:"currentStatus,omitempty"`
	ActorID        string         `json:"actorId,omitempty"`
	OccurredAt     time.Time      `json:"occurredAt"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// PublishOrderEvent implements services.OrderEventPublisher.
func (p *KafkaOrderPublisher) PublishOrderEvent(ctx context.Context, event services.OrderEvent) error {
	if p == nil || p.writer == nil {
		return errors.New("kafka order publisher: not initialised")
	}
	if strings.TrimSpace(event.OrderID) == "" {
		return errors.New("kafka order publisher: order id is required")
	}

	payload, err := p.marshal(orderEventMessage{
		Type:           event.Type,
		OrderID:        event.OrderID,
		PreviousStatus: event.PreviousStatus,
		CurrentStatus:  event.CurrentStatus,
		ActorID:        event.ActorID,
		OccurredAt:     event.OccurredAt.UTC(),
		Metadata:       event.Metadata,
	})
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}

	headers := []kafka.Header{
		{Key: "event_type", Value: []byte(event.Type)},
		{Key: "order_id", Value: []byte(event.OrderID)},
	}
	if actor := strings.TrimSpace(event.ActorID); actor != "" {
		headers = append(headers, kafka.Header{Key: "actor_id", Value: []byte(actor)})
	}

	msg := kafka.Message{
		Key:     []byte(event.OrderID),
		Value:   payload,
		Headers: headers,
		Time:    event.OccurredAt.UTC(),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish order event: %w", err)
	}
	return nil
}

// Close flushes pending messages and releases broker connections.
func (p *KafkaOrderPublisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// Package events publishes domain events (bookings, payments, guide decisions) to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// Event types
const (
	BookingCreated      = "booking.created"
	PaymentSucceeded    = "payment.succeeded"
	PaymentFailed       = "payment.failed"
	PaymentCancelled    = "payment.cancelled"
	GuideStatusChanged  = "guide.status_changed"
	ApplicationReviewed = "guide_application.reviewed"
	ReviewCreated       = "review.created"
)

// Event is the envelope written to the topic
type Event struct {
	ID         uuid.UUID   `json:"id"`
	Type       string      `json:"type"`
	Key        string      `json:"key"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}

// Writer is the subset of kafka.Writer the publisher needs
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Counter is told about every event that reached the broker
type Counter interface {
	EventPublished(eventType string)
}

// KafkaPublisher writes events to a single topic keyed by aggregate id
type KafkaPublisher struct {
	writer  Writer
	logger  *logrus.Logger
	timeout time.Duration
	counter Counter
}

// NewKafkaPublisher creates a publisher backed by a kafka.Writer
func NewKafkaPublisher(brokers []string, topic string, logger *logrus.Logger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}
	return NewKafkaPublisherWithWriter(w, logger)
}

// NewKafkaPublisherWithWriter allows injecting a writer
func NewKafkaPublisherWithWriter(w Writer, logger *logrus.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: w, logger: logger, timeout: 5 * time.Second}
}

// WithCounter counts published events
func (p *KafkaPublisher) WithCounter(c Counter) *KafkaPublisher {
	p.counter = c
	return p
}

// Publish writes one event. Failures are logged and never returned, the
// state change the event describes has already been committed.
func (p *KafkaPublisher) Publish(ctx context.Context, eventType, key string, payload interface{}) {
	event := Event{
		ID:         uuid.New(),
		Type:       eventType,
		Key:        key,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}

	if err := p.write(ctx, event); err != nil {
		p.logger.WithError(err).WithFields(logrus.Fields{
			"event_type": eventType,
			"key":        key,
		}).Warn("Failed to publish event")
		return
	}
	if p.counter != nil {
		p.counter.EventPublished(eventType)
	}

	p.logger.WithFields(logrus.Fields{
		"event_id":   event.ID,
		"event_type": eventType,
	}).Debug("Event published")
}

func (p *KafkaPublisher) write(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	// Detached from the request so a finished response does not cancel delivery
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(event.Key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write error: %w", err)
	}
	return nil
}

// Close closes the underlying writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NoopPublisher drops every event. Used when Kafka is disabled.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, string, interface{}) {}

func (NoopPublisher) Close() error { return nil }

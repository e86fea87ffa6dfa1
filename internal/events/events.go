// Package events publishes payment and entitlement domain events.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"teamnet-backend/internal/logger"
)

type EventType string

const (
	EntitlementGranted  EventType = "entitlement.granted"
	EntitlementRevoked  EventType = "entitlement.revoked"
	EntitlementExpired  EventType = "entitlement.expired"
	PaymentStatusChange EventType = "payment.status_changed"
)

type Event struct {
	Type           EventType  `json:"type"`
	OccurredAt     time.Time  `json:"occurredAt"`
	MemberID       string     `json:"memberId"`
	PaymentID      string     `json:"paymentRecordId,omitempty"`
	OrderID        string     `json:"orderId,omitempty"`
	PreviousStatus string     `json:"previousStatus,omitempty"`
	Status         string     `json:"status,omitempty"`
	Source         string     `json:"source,omitempty"`
	Tier           string     `json:"tier,omitempty"`
	ExpiresAt      *time.Time `json:"expiresAt,omitempty"`
	Amount         float64    `json:"amount,omitempty"`
	Currency       string     `json:"currency,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
	Close() error
}

// KafkaPublisher writes events to one topic keyed by member id, so events of
// a member stay ordered within a partition.
type KafkaPublisher struct {
	writer *kafka.Writer
	log    logger.Logger
}

func NewKafkaPublisher(brokers []string, topic string, log logger.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.LeastBytes{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
			WriteTimeout:           10 * time.Second,
		},
		log: logger.Module(log, "events"),
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, events ...Event) error {
	if len(events) == 0 {
		return nil
	}
	msgs, err := Encode(events...)
	if err != nil {
		return err
	}

	logger.ExternalServiceCall(p.log, "kafka", "WriteMessages", "count", len(msgs), "topic", p.writer.Topic)
	err = p.writer.WriteMessages(ctx, msgs...)
	logger.ExternalServiceResult(p.log, "kafka", "WriteMessages", err)
	if err != nil {
		return fmt.Errorf("failed to publish events: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Encode builds the Kafka messages for events.
func Encode(events ...Event) ([]kafka.Message, error) {
	msgs := make([]kafka.Message, 0, len(events))
	for _, e := range events {
		v, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s event: %w", e.Type, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(e.MemberID),
			Value: v,
			Time:  e.OccurredAt,
			Headers: []kafka.Header{
				{Key: "type", Value: []byte(e.Type)},
			},
		})
	}
	return msgs, nil
}

// NopPublisher drops events. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, events ...Event) error { return nil }
func (NopPublisher) Close() error { return nil }

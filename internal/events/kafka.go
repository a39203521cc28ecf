package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"storefront/internal/services"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaOrderPublisher writes order lifecycle events to a topic, keyed by order
// id so one order's events stay on one partition.
type KafkaOrderPublisher struct {
	writer messageWriter
}

func NewKafkaOrderPublisher(brokers []string, topic string) *KafkaOrderPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		WriteTimeout:           2 * time.Second,
		AllowAutoTopicCreation: true,
	}
	return &KafkaOrderPublisher{writer: w}
}

func (p *KafkaOrderPublisher) PublishOrderEvent(ctx context.Context, event services.OrderEvent) error {
	msg, err := orderMessage(event)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write %s: %w", event.Type, err)
	}
	return nil
}

func (p *KafkaOrderPublisher) Close() error {
	return p.writer.Close()
}

func orderMessage(event services.OrderEvent) (kafka.Message, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal %s: %w", event.Type, err)
	}
	return kafka.Message{
		Key:   []byte(event.OrderID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}, nil
}

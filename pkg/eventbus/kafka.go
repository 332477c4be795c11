package eventbus

import (
	"context"
	"errors"

	"github.com/segmentio/kafka-go"

	"github.com/dmitrymomot/quotakit/pkg/quota"
)

// Writer is the subset of *kafka.Writer the publisher needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to a topic, keyed by tenant id.
type KafkaPublisher struct {
	writer Writer
}

var _ quota.Publisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher creates a publisher writing to topic on brokers.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return NewKafkaPublisherWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	})
}

// NewKafkaPublisherWithWriter wraps an existing writer.
func NewKafkaPublisherWithWriter(w Writer) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

// Publish writes event keyed by tenant so one tenant's events stay ordered.
func (p *KafkaPublisher) Publish(ctx context.Context, event quota.Event) error {
	body, err := encode(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(event.TenantID.String()),
		Value: body,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(EventType)},
			{Key: "event_id", Value: []byte(event.ID.String())},
			{Key: "tier", Value: []byte(event.Tier.String())},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return errors.Join(ErrFailedToPublish, err)
	}
	return nil
}

// Close flushes pending writes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

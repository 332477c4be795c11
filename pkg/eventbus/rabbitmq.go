package eventbus

import (
	"context"
	"errors"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/dmitrymomot/quotakit/pkg/quota"
)

// Channel is the subset of *amqp.Channel the publisher needs.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitMQPublisher publishes events to a durable queue through the default exchange.
type RabbitMQPublisher struct {
	conn  *amqp.Connection
	ch    Channel
	queue string
}

var _ quota.Publisher = (*RabbitMQPublisher)(nil)

// DialRabbitMQ connects to url, opens a channel and declares queue.
func DialRabbitMQ(url, queue string) (*RabbitMQPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, errors.Join(ErrFailedToConnect, err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, errors.Join(ErrFailedToConnect, err)
	}

	p, err := NewRabbitMQPublisher(ch, queue)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

// NewRabbitMQPublisher declares queue on an already open channel.
func NewRabbitMQPublisher(ch Channel, queue string) (*RabbitMQPublisher, error) {
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return nil, errors.Join(ErrFailedToConnect, err)
	}
	return &RabbitMQPublisher{ch: ch, queue: queue}, nil
}

// Publish sends event to the queue as a persistent JSON message whose
// MessageId is the event id, so consumers can drop redeliveries.
func (p *RabbitMQPublisher) Publish(ctx context.Context, event quota.Event) error {
	body, err := encode(event)
	if err != nil {
		return err
	}

	err = p.ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID.String(),
		Timestamp:    event.OccurredAt,
		Type:         EventType,
		Body:         body,
	})
	if err != nil {
		return errors.Join(ErrFailedToPublish, err)
	}
	return nil
}

// Close closes the channel and, when the publisher dialed it, the connection.
func (p *RabbitMQPublisher) Close() error {
	err := p.ch.Close()
	if p.conn != nil {
		err = errors.Join(err, p.conn.Close())
	}
	return err
}

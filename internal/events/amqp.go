package events

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const publishTimeout = 5 * time.Second

// channelPublisher is the part of *amqp.Channel the forwarder needs.
type channelPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPForwarder republishes bus events to a RabbitMQ topic exchange with
// the event type as routing key.
type AMQPForwarder struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	pub      channelPublisher
	exchange string
	logger   *zerolog.Logger
}

func NewAMQPForwarder(url, exchange string, logger *zerolog.Logger) (*AMQPForwarder, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	return &AMQPForwarder{conn: conn, ch: ch, pub: ch, exchange: exchange, logger: logger}, nil
}

// Attach subscribes the forwarder to every engine event on bus.
func (f *AMQPForwarder) Attach(bus *EventBus) {
	bus.SubscribeAll(f.Forward)
}

func (f *AMQPForwarder) Forward(event *Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	err := f.pub.PublishWithContext(ctx, f.exchange, event.Type, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    event.CreatedAt.UTC(),
		Type:         event.Type,
		Body:         event.Payload,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}

	f.logger.Debug().Str("event", event.Type).Str("exchange", f.exchange).Msg("event forwarded to broker")
	return nil
}

func (f *AMQPForwarder) Close() error {
	if f.ch != nil {
		_ = f.ch.Close()
	}
	if f.conn != nil {
		return f.conn.Close()
	}
	return nil
}

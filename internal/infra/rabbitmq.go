package infra

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// EventPublisher fans engine events out to downstream consumers (live widget
// feeds, notification services, analytics) through a durable topic exchange.
// Routing key is the event kind, so consumers bind "bid.*" or "lot.*" as
// needed.
type EventPublisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

// NewEventPublisher dials the broker and declares the topic exchange.
func NewEventPublisher(amqpURL, exchange string) (*EventPublisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("exchange declare %s: %w", exchange, err)
	}

	return &EventPublisher{conn: conn, channel: ch, exchange: exchange}, nil
}

// Publish sends one JSON payload with the given routing key.
func (p *EventPublisher) Publish(ctx context.Context, routingKey string, body []byte) error {
	err := p.channel.PublishWithContext(ctx,
		p.exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish to exchange %s (%s): %w", p.exchange, routingKey, err)
	}
	return nil
}

func (p *EventPublisher) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

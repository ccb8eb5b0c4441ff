// Package amqpq implements queue.Transport over RabbitMQ. The
// connection/channel/dialer layering is factored behind small interfaces so
// tests can substitute an in-memory double instead of a live broker.
package amqpq

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/evalgo/rangedb/queue"
	"github.com/streadway/amqp"
)

// Connection abstracts an AMQP connection for dependency injection.
type Connection interface {
	Channel() (Channel, error)
	Close() error
}

// Channel abstracts an AMQP channel for dependency injection.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

// Dialer abstracts dialing an AMQP connection for dependency injection.
type Dialer interface {
	Dial(url string) (Connection, error)
}

// realConnection wraps a live *amqp.Connection.
type realConnection struct{ conn *amqp.Connection }

func (r *realConnection) Channel() (Channel, error) {
	ch, err := r.conn.Channel()
	if err != nil {
		return nil, err
	}
	return &realChannel{ch: ch}, nil
}

func (r *realConnection) Close() error { return r.conn.Close() }

// realChannel wraps a live *amqp.Channel.
type realChannel struct{ ch *amqp.Channel }

func (r *realChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	return r.ch.QueueDeclare(name, durable, autoDelete, exclusive, noWait, args)
}

func (r *realChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	return r.ch.Publish(exchange, key, mandatory, immediate, msg)
}

func (r *realChannel) Consume(q, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	return r.ch.Consume(q, consumer, autoAck, exclusive, noLocal, noWait, args)
}

func (r *realChannel) Close() error { return r.ch.Close() }

// RealDialer dials a live RabbitMQ broker.
type RealDialer struct{}

func (RealDialer) Dial(url string) (Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	return &realConnection{conn: conn}, nil
}

// Config configures a Transport.
type Config struct {
	URL       string
	QueueName string
}

// Transport ships queue.Message over a durable RabbitMQ queue.
type Transport struct {
	conn    Connection
	channel Channel
	queue   string
}

// New dials url with the real AMQP client and declares a durable queue
// named cfg.QueueName.
func New(cfg Config) (*Transport, error) {
	return NewWithDialer(cfg, RealDialer{})
}

// NewWithDialer is New with an injectable Dialer, for tests.
func NewWithDialer(cfg Config, dialer Dialer) (*Transport, error) {
	conn, err := dialer.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("amqpq: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqpq: open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(cfg.QueueName, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("amqpq: declare queue: %w", err)
	}
	return &Transport{conn: conn, channel: ch, queue: cfg.QueueName}, nil
}

// Publish implements queue.Transport.
func (t *Transport) Publish(ctx context.Context, msg queue.Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("amqpq: marshal message: %w", err)
	}
	return t.channel.Publish("", t.queue, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
}

// Subscribe implements queue.Transport.
func (t *Transport) Subscribe(ctx context.Context, handler queue.Handler) error {
	deliveries, err := t.channel.Consume(t.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("amqpq: consume: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			var msg queue.Message
			if err := json.Unmarshal(d.Body, &msg); err != nil {
				d.Nack(false, false)
				continue
			}
			if err := handler(ctx, msg); err != nil {
				d.Nack(false, true)
				continue
			}
			d.Ack(false)
		}
	}
}

// Close implements queue.Transport.
func (t *Transport) Close() error {
	t.channel.Close()
	return t.conn.Close()
}

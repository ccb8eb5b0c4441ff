package amqpq

import (
	"github.com/streadway/amqp"
)

type mockConnection struct {
	channel    Channel
	channelErr error
	closeErr   error
	closed     bool
}

func (m *mockConnection) Channel() (Channel, error) {
	if m.channelErr != nil {
		return nil, m.channelErr
	}
	return m.channel, nil
}

func (m *mockConnection) Close() error {
	m.closed = true
	return m.closeErr
}

type mockChannel struct {
	published       []amqp.Publishing
	publishedKeys   []string
	queueDeclareErr error
	publishErr      error
	consumeErr      error
	deliveries      chan amqp.Delivery
	closed          bool
}

func (m *mockChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	if m.queueDeclareErr != nil {
		return amqp.Queue{}, m.queueDeclareErr
	}
	return amqp.Queue{Name: name}, nil
}

func (m *mockChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, msg)
	m.publishedKeys = append(m.publishedKeys, key)
	return nil
}

func (m *mockChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	if m.consumeErr != nil {
		return nil, m.consumeErr
	}
	return m.deliveries, nil
}

func (m *mockChannel) Close() error {
	m.closed = true
	return nil
}

type mockDialer struct {
	conn    Connection
	dialErr error
	lastURL string
}

func (m *mockDialer) Dial(url string) (Connection, error) {
	m.lastURL = url
	if m.dialErr != nil {
		return nil, m.dialErr
	}
	return m.conn, nil
}

func newMockTransportParts() (*mockDialer, *mockChannel, *mockConnection) {
	ch := &mockChannel{deliveries: make(chan amqp.Delivery, 16)}
	conn := &mockConnection{channel: ch}
	return &mockDialer{conn: conn}, ch, conn
}

// fakeAcknowledger lets test deliveries satisfy amqp.Delivery.Ack/Nack
// without a live channel, which would otherwise nil-pointer-dereference.
type fakeAcknowledger struct {
	acked  []uint64
	nacked []uint64
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	f.acked = append(f.acked, tag)
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	f.nacked = append(f.nacked, tag)
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error { return nil }

// Package amqpbus implements bus.Bus on top of RabbitMQ using
// github.com/rabbitmq/amqp091-go. It declares the fanout exchange and the
// per-instance exclusive queue described in spec.md §6.2 and translates
// connection/channel loss into bus.Session.Closed().
package amqpbus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/jsmontesinos/rabbit-lru-cache/bus"
)

const exchangePrefix = "rabbit-lru-cache-"

// ExchangeName derives the fanout exchange name for a given cache namespace.
func ExchangeName(name string) string {
	return exchangePrefix + name
}

// ConnectOptions carries the bus-client connection descriptor (spec.md
// §6.1's "amqpConnectOptions"): host, port, credentials, vhost and TLS
// flags, passed verbatim to amqp091-go.
type ConnectOptions struct {
	// URL is an amqp(s):// connection string.
	URL string
	// Config, if non-nil, is passed to amqp.DialConfig for advanced dial
	// options (TLS, heartbeat, custom locale, etc). When nil, amqp.Dial(URL)
	// is used.
	Config *amqp.Config
}

// Dialer implements bus.Bus against a single RabbitMQ connection descriptor.
type Dialer struct {
	opts ConnectOptions
}

// NewDialer constructs a Dialer. opts.URL must be non-empty.
func NewDialer(opts ConnectOptions) (*Dialer, error) {
	if opts.URL == "" {
		return nil, errors.New("amqpbus: connect URL is required")
	}
	return &Dialer{opts: opts}, nil
}

// Connect implements bus.Bus.
func (d *Dialer) Connect(ctx context.Context, name, cacheID string) (bus.Session, error) {
	var conn *amqp.Connection
	var err error
	if d.opts.Config != nil {
		conn, err = amqp.DialConfig(d.opts.URL, *d.opts.Config)
	} else {
		conn, err = amqp.Dial(d.opts.URL)
	}
	if err != nil {
		return nil, fmt.Errorf("amqpbus: dial: %w", err)
	}

	pubCh, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqpbus: open publisher channel: %w", err)
	}
	subCh, err := conn.Channel()
	if err != nil {
		pubCh.Close()
		conn.Close()
		return nil, fmt.Errorf("amqpbus: open consumer channel: %w", err)
	}

	exchange := ExchangeName(name)
	if err := subCh.ExchangeDeclare(exchange, "fanout", false, false, false, false, nil); err != nil {
		pubCh.Close()
		subCh.Close()
		conn.Close()
		return nil, fmt.Errorf("amqpbus: declare exchange: %w", err)
	}

	queueName := exchange + "-" + cacheID
	q, err := subCh.QueueDeclare(queueName, false, true, true, false, nil)
	if err != nil {
		pubCh.Close()
		subCh.Close()
		conn.Close()
		return nil, fmt.Errorf("amqpbus: declare queue: %w", err)
	}
	if err := subCh.QueueBind(q.Name, "", exchange, false, nil); err != nil {
		pubCh.Close()
		subCh.Close()
		conn.Close()
		return nil, fmt.Errorf("amqpbus: bind queue: %w", err)
	}

	deliveries, err := subCh.Consume(q.Name, cacheID, true, true, false, false, nil)
	if err != nil {
		pubCh.Close()
		subCh.Close()
		conn.Close()
		return nil, fmt.Errorf("amqpbus: consume: %w", err)
	}

	s := &session{
		conn:       conn,
		pubCh:      pubCh,
		subCh:      subCh,
		exchange:   exchange,
		out:        make(chan bus.Delivery),
		closed:     make(chan struct{}),
		connClosed: conn.NotifyClose(make(chan *amqp.Error, 1)),
		chClosed:   subCh.NotifyClose(make(chan *amqp.Error, 1)),
	}
	go s.forward(deliveries)
	go s.watch()

	return s, nil
}

type session struct {
	conn     *amqp.Connection
	pubCh    *amqp.Channel
	subCh    *amqp.Channel
	exchange string

	out    chan bus.Delivery
	closed chan struct{}

	connClosed chan *amqp.Error
	chClosed   chan *amqp.Error

	closeOnce sync.Once
}

func (s *session) Publish(ctx context.Context, cacheID string, body []byte) error {
	return s.pubCh.PublishWithContext(ctx, s.exchange, "", false, false, amqp.Publishing{
		Headers: amqp.Table{bus.HeaderCacheID: cacheID},
		Body:    body,
	})
}

func (s *session) Deliveries() <-chan bus.Delivery {
	return s.out
}

func (s *session) Closed() <-chan struct{} {
	return s.closed
}

func (s *session) forward(deliveries <-chan amqp.Delivery) {
	defer close(s.out)
	for d := range deliveries {
		originID, _ := d.Headers[bus.HeaderCacheID].(string)
		select {
		case s.out <- bus.Delivery{OriginCacheID: originID, Body: d.Body}:
		case <-s.closed:
			return
		}
	}
	// The delivery channel also ends when the broker cancels the consumer;
	// report that as a broken session.
	s.fireClosed()
}

func (s *session) watch() {
	select {
	case <-s.connClosed:
	case <-s.chClosed:
	case <-s.closed:
		return
	}
	s.fireClosed()
}

func (s *session) fireClosed() {
	s.closeOnce.Do(func() {
		close(s.closed)
	})
}

func (s *session) Close(cacheID string) error {
	s.fireClosed()

	_ = s.subCh.Cancel(cacheID, false)

	var wg sync.WaitGroup
	var subErr, pubErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		subErr = s.subCh.Close()
	}()
	go func() {
		defer wg.Done()
		pubErr = s.pubCh.Close()
	}()
	wg.Wait()

	connErr := s.conn.Close()

	for _, err := range []error{subErr, pubErr, connErr} {
		if err != nil {
			return err
		}
	}
	return nil
}

// Package bus defines the message-bus contract the Connection Supervisor
// depends on. It is the external collaborator spec.md describes as "the
// underlying message-bus client (connection, channel, exchange/queue,
// publish, consume primitives)" — the core only needs these interfaces;
// package amqpbus provides the concrete RabbitMQ-backed implementation.
package bus

import "context"

// HeaderCacheID is the message header carrying the originating instance's
// cache id, used for self-echo suppression.
const HeaderCacheID = "x-cache-id"

// Delivery is a single inbound message together with its originating
// cache id, already extracted from the transport-specific header.
type Delivery struct {
	OriginCacheID string
	Body          []byte
}

// Bus dials a fresh episode of connectivity: a connection plus the
// exchange/queue/consumer wiring a Session needs. Implementations declare a
// fanout exchange derived from name, bind a non-durable exclusive
// auto-delete queue named "<exchange>-<cacheID>", and register a consumer
// tagged with cacheID.
type Bus interface {
	Connect(ctx context.Context, name, cacheID string) (Session, error)
}

// Session represents one connected episode: a publisher path and a
// consumer path sharing a connection. It is discarded (never reused) once
// Closed fires or Close is called; the Connection Supervisor dials a new
// Session per reconnect attempt.
type Session interface {
	// Publish sends body as the message body, tagged with the originating
	// cacheID via HeaderCacheID.
	Publish(ctx context.Context, cacheID string, body []byte) error

	// Deliveries returns the channel of inbound messages. It is closed when
	// the session breaks.
	Deliveries() <-chan Delivery

	// Closed reports, asynchronously, that the underlying transport broke
	// (connection or channel closed, consumer cancelled by the broker).
	// It fires at most once.
	Closed() <-chan struct{}

	// Close tears down the consumer, channels, and connection for this
	// episode. Safe to call after Closed has already fired.
	Close(cacheID string) error
}

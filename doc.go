// Package rabbitlru provides Cache, a generic bounded LRU cache that stays
// coherent across multiple process instances by fanning invalidations out
// over a shared RabbitMQ exchange, backed by the message-bus contract in
// package bus (see package amqpbus for the concrete RabbitMQ client).
package rabbitlru

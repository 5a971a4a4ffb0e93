package rabbitlru

import (
	"errors"

	"github.com/jsmontesinos/rabbit-lru-cache/internal/reconnect"
)

var (
	// ErrNameRequired indicates New was called without a cache namespace.
	ErrNameRequired = errors.New("rabbitlru: name is required")
	// ErrBusRequired indicates New was called without a message-bus client.
	ErrBusRequired = errors.New("rabbitlru: bus is required")
	// ErrClosing indicates an operation was attempted on a Cache that has
	// started or finished Close. It is the same sentinel the Connection
	// Supervisor returns, so errors.Is sees through either package.
	ErrClosing = reconnect.ErrClosing
)

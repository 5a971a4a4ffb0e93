// Package reconnect implements the Connection Supervisor state machine
// described in spec.md §4.4: it owns the single Session dialed against the
// bus, promotes connection loss into Reconnecting with a linear-capped
// backoff, and notifies the facade both on entry into Reconnecting (so
// stale entries are dropped immediately, per invariant I3) and once a fresh
// Session is ready, so the facade can forget in-flight loads before
// resuming normal operation.
package reconnect

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jsmontesinos/rabbit-lru-cache/bus"
	"github.com/jsmontesinos/rabbit-lru-cache/internal/events"
)

// ErrClosing is returned by Publish (and surfaced by the facade) once the
// supervisor has started or finished closing.
var ErrClosing = errors.New("reconnect: supervisor is closing")

// Logger is the minimal logging dependency the supervisor carries; it is
// structurally identical to the facade's Logger so either log.Logger or a
// custom adapter satisfies both without an import between the packages.
type Logger interface {
	Printf(format string, args ...any)
}

// State is a Connection Supervisor lifecycle state.
type State int

const (
	Connected State = iota
	Reconnecting
	Closing
	Closed
)

func (s State) String() string {
	switch s {
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Config configures a Supervisor.
type Config struct {
	Bus     bus.Bus
	Name    string
	CacheID string
	Logger  Logger

	RetryIntervalIncrease time.Duration
	RetryIntervalUpTo     time.Duration

	Events *events.Bus

	// OnDeliver is called, from the consumer goroutine, for every inbound
	// message on the live session.
	OnDeliver func(bus.Delivery)

	// OnDisconnected is called synchronously on entry into Reconnecting,
	// before the first Reconnecting event is emitted. Spec.md §4.4 step 1 /
	// invariant I3 require the cache be emptied the instant a disconnect is
	// detected, not only once a fresh session is recovered — stale entries
	// must never be served during a reconnect window. It must not block.
	OnDisconnected func()

	// OnRecovered is called synchronously, right before the Reconnected
	// event is emitted, once a fresh session is established after a
	// disconnect. It must not block.
	OnRecovered func()
}

// Supervisor owns one Session at a time against a Bus, keeping it alive
// across disconnects.
type Supervisor struct {
	cfg Config

	mu      sync.Mutex
	state   State
	session bus.Session

	closeCh chan struct{}
	wg      sync.WaitGroup
}

// NewSupervisor dials the initial session and, on success, starts the
// background goroutines that deliver messages and watch for disconnects. If
// the initial dial fails, the supervisor is still returned, already in the
// Reconnecting state with a background reconnect loop running — construction
// never blocks waiting for a broker to come back.
func NewSupervisor(ctx context.Context, cfg Config) *Supervisor {
	if cfg.Logger == nil {
		cfg.Logger = noopLogger{}
	}
	s := &Supervisor{
		cfg:     cfg,
		closeCh: make(chan struct{}),
	}

	session, err := s.dial(ctx)
	if err != nil {
		cfg.Logger.Printf("rabbit-lru-cache: initial connect failed: %v", err)
		s.state = Reconnecting
		if cfg.OnDisconnected != nil {
			cfg.OnDisconnected()
		}
		s.wg.Add(1)
		go s.reconnectLoop(err)
		return s
	}

	s.state = Connected
	s.session = session
	s.wg.Add(2)
	go s.consumeLoop(session)
	go s.watch(session)
	return s
}

func (s *Supervisor) dial(ctx context.Context) (bus.Session, error) {
	return s.cfg.Bus.Connect(ctx, s.cfg.Name, s.cfg.CacheID)
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Publish sends body through the live session. It returns ErrClosing if the
// supervisor is closing or closed. When no session is currently live
// (Reconnecting), the publish is dropped and nil is returned. Otherwise it
// returns whatever error the live session's Publish returns.
func (s *Supervisor) Publish(ctx context.Context, body []byte) error {
	s.mu.Lock()
	state := s.state
	session := s.session
	s.mu.Unlock()

	if state == Closing || state == Closed {
		return ErrClosing
	}
	if session == nil {
		// Reconnecting: publishes are dropped, not queued or errored back to
		// the caller, per spec.md's publish-during-reconnect-dropped design.
		return nil
	}
	return session.Publish(ctx, s.cfg.CacheID, body)
}

func (s *Supervisor) consumeLoop(session bus.Session) {
	defer s.wg.Done()
	for {
		select {
		case d, ok := <-session.Deliveries():
			if !ok {
				return
			}
			if s.cfg.OnDeliver != nil {
				s.cfg.OnDeliver(d)
			}
		case <-session.Closed():
			return
		}
	}
}

func (s *Supervisor) watch(session bus.Session) {
	defer s.wg.Done()
	select {
	case <-session.Closed():
	case <-s.closeCh:
		return
	}

	s.mu.Lock()
	if s.state == Closing || s.state == Closed {
		s.mu.Unlock()
		return
	}
	s.state = Reconnecting
	s.session = nil
	s.mu.Unlock()

	if s.cfg.OnDisconnected != nil {
		s.cfg.OnDisconnected()
	}

	s.wg.Add(1)
	go s.reconnectLoop(errors.New("reconnect: session closed"))
}

// reconnectLoop implements spec.md §4.4's backoff: it emits Reconnecting
// immediately before every dial attempt (including the eventually
// successful one) using the interval that attempt is about to sleep for,
// sleeps that interval (interruptible by Close), then dials. On success it
// installs the new session, calls OnRecovered, and emits Reconnected with
// the same attempt/interval values as the last Reconnecting emit.
func (s *Supervisor) reconnectLoop(lastErr error) {
	defer s.wg.Done()

	b := newBackoff(s.cfg.RetryIntervalIncrease, s.cfg.RetryIntervalUpTo)
	attempt := 1
	interval := time.Duration(0)

	for {
		if s.cfg.Events != nil {
			s.cfg.Events.EmitReconnecting(lastErr, attempt, interval)
		}

		if interval > 0 {
			timer := time.NewTimer(interval)
			select {
			case <-timer.C:
			case <-s.closeCh:
				timer.Stop()
				return
			}
		} else {
			select {
			case <-s.closeCh:
				return
			default:
			}
		}

		ctx, cancel := context.WithCancel(context.Background())
		session, err := s.dial(ctx)
		cancel()
		if err != nil {
			s.cfg.Logger.Printf("rabbit-lru-cache: reconnect attempt %d failed: %v", attempt, err)
			lastErr = err
			attempt++
			interval = b.next(interval)
			continue
		}

		s.mu.Lock()
		if s.state == Closing || s.state == Closed {
			s.mu.Unlock()
			session.Close(s.cfg.CacheID)
			return
		}
		s.state = Connected
		s.session = session
		s.mu.Unlock()

		if s.cfg.OnRecovered != nil {
			s.cfg.OnRecovered()
		}
		if s.cfg.Events != nil {
			s.cfg.Events.EmitReconnected(lastErr, attempt, interval)
		}

		s.wg.Add(2)
		go s.consumeLoop(session)
		go s.watch(session)
		return
	}
}

// Close tears down the current session (if any), interrupts any in-progress
// reconnect wait, and waits for every background goroutine to exit. It is
// idempotent.
func (s *Supervisor) Close() error {
	s.mu.Lock()
	if s.state == Closing || s.state == Closed {
		s.mu.Unlock()
		return nil
	}
	s.state = Closing
	session := s.session
	s.session = nil
	s.mu.Unlock()

	close(s.closeCh)

	var err error
	if session != nil {
		err = session.Close(s.cfg.CacheID)
	}

	s.wg.Wait()

	s.mu.Lock()
	s.state = Closed
	s.mu.Unlock()

	return err
}

type noopLogger struct{}

func (noopLogger) Printf(string, ...any) {}

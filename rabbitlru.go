package rabbitlru

import (
	"context"
	"fmt"
	"log"
	"reflect"
	"time"

	"github.com/jsmontesinos/rabbit-lru-cache/bus"
	"github.com/jsmontesinos/rabbit-lru-cache/internal/cacheid"
	"github.com/jsmontesinos/rabbit-lru-cache/internal/events"
	"github.com/jsmontesinos/rabbit-lru-cache/internal/inflight"
	"github.com/jsmontesinos/rabbit-lru-cache/internal/invalidation"
	"github.com/jsmontesinos/rabbit-lru-cache/internal/lrustore"
	"github.com/jsmontesinos/rabbit-lru-cache/internal/reconnect"
)

// LoadFunc loads the value for a cache miss. Loaders that have nothing to
// cache should return the zero value of V with a nil error; the facade
// treats a zero-valued, error-free result as "absent" and does not store it
// (the Go analogue of the null/undefined miss the wire protocol models).
type LoadFunc[V any] func(ctx context.Context, key string) (V, error)

// EventHandle identifies a registered event listener.
type EventHandle = events.Handle

// Cache is a bounded, TTL-aware, cross-instance-coherent LRU cache over
// opaque values of type V.
type Cache[V any] struct {
	name    string
	cacheID string

	store          *lrustore.Store[V]
	inflight       *inflight.Table[V]
	events         *events.Bus
	sup            *reconnect.Supervisor
	logger         Logger
	allowStaleData bool
}

// New constructs a Cache backed by busImpl (typically amqpbus.NewDialer's
// result), bounded and TTL'd per lruOpts.
func New[V any](ctx context.Context, name string, lruOpts lrustore.Options, busImpl bus.Bus, opts ...Option) (*Cache[V], error) {
	if name == "" {
		return nil, ErrNameRequired
	}
	if busImpl == nil {
		return nil, ErrBusRequired
	}

	store, err := lrustore.New[V](lruOpts)
	if err != nil {
		return nil, err
	}

	cfg := config{
		reconnect: defaultReconnectionOptions(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = log.Default()
	}

	id, err := cacheid.New()
	if err != nil {
		return nil, fmt.Errorf("rabbitlru: generate cache id: %w", err)
	}

	c := &Cache[V]{
		name:           name,
		cacheID:        id,
		store:          store,
		inflight:       inflight.New[V](),
		events:         events.New(),
		logger:         cfg.logger,
		allowStaleData: cfg.reconnect.AllowStaleData,
	}

	c.sup = reconnect.NewSupervisor(ctx, reconnect.Config{
		Bus:                   busImpl,
		Name:                  name,
		CacheID:               id,
		Logger:                cfg.logger,
		RetryIntervalIncrease: cfg.reconnect.RetryIntervalIncrease,
		RetryIntervalUpTo:     cfg.reconnect.RetryIntervalUpTo,
		Events:                c.events,
		OnDeliver:             c.onDeliver,
		OnDisconnected:        c.onDisconnected,
		OnRecovered:           c.onRecovered,
	})

	return c, nil
}

// CacheID returns this instance's unique, time-ordered identifier.
func (c *Cache[V]) CacheID() string {
	return c.cacheID
}

// checkOpen returns ErrClosing once the Connection Supervisor has started
// or finished closing. Every user-facing operation but Close consults it,
// per spec.md invariant I4.
func (c *Cache[V]) checkOpen() error {
	switch c.sup.State() {
	case reconnect.Closing, reconnect.Closed:
		return ErrClosing
	default:
		return nil
	}
}

// GetOrLoad returns the cached value for key, loading and coalescing
// concurrent callers through fn on a miss (spec.md §4.2). A load is purely
// local: it is never announced to peers, only del/reset are. A load that
// was forgotten mid-flight (because a concurrent Del/Reset/reconnect
// dropped it) is still returned to every waiting caller but never stored.
// A load that completes while the Connection Supervisor is Reconnecting is
// likewise not stored unless AllowStaleData was set (spec.md §4.2 step 4,
// invariant I3): peers may have published invalidations this instance
// cannot yet receive, so caching during the outage risks serving stale
// data forever once reconnected.
func (c *Cache[V]) GetOrLoad(ctx context.Context, key string, fn LoadFunc[V]) (V, error) {
	var zero V
	if err := c.checkOpen(); err != nil {
		return zero, err
	}

	if v, ok := c.store.Get(key); ok {
		return v, nil
	}

	val, err, forgotten := c.inflight.GetOrLoad(key, func() (V, error) {
		return fn(ctx, key)
	})
	if err != nil {
		return val, err
	}
	if forgotten || isAbsent(val) {
		return val, nil
	}

	if c.sup.State() == reconnect.Reconnecting && !c.allowStaleData {
		return val, nil
	}

	c.store.Set(key, val)
	return val, nil
}

// Del publishes a delete so peers drop key, then applies it locally.
// Publishing first means a crash between the two steps loses at most a
// redundant delete, never leaves a peer believing key was removed when
// this instance still serves it (spec.md §4.3).
func (c *Cache[V]) Del(ctx context.Context, key string) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	if err := c.sup.Publish(ctx, invalidation.EncodeDelete(key)); err != nil {
		return err
	}
	c.store.Del(key)
	c.inflight.Forget(key)
	return nil
}

// Reset publishes a reset so peers clear their own copy, then clears
// locally, for the same crash-safety reason as Del.
func (c *Cache[V]) Reset(ctx context.Context) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	if err := c.sup.Publish(ctx, invalidation.EncodeReset()); err != nil {
		return err
	}
	c.store.Reset()
	c.inflight.ForgetAll()
	return nil
}

// Has reports whether key is present without affecting recency order.
func (c *Cache[V]) Has(key string) (bool, error) {
	if err := c.checkOpen(); err != nil {
		return false, err
	}
	return c.store.Has(key), nil
}

// Keys returns every present key, oldest first.
func (c *Cache[V]) Keys() ([]string, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	return c.store.Keys(), nil
}

// Prune eagerly purges expired entries and returns how many were removed.
func (c *Cache[V]) Prune() (int, error) {
	if err := c.checkOpen(); err != nil {
		return 0, err
	}
	return c.store.Prune(), nil
}

// GetItemCount returns the current number of entries.
func (c *Cache[V]) GetItemCount() (int, error) {
	if err := c.checkOpen(); err != nil {
		return 0, err
	}
	return c.store.ItemCount(), nil
}

// GetLength is an alias for GetItemCount.
func (c *Cache[V]) GetLength() (int, error) {
	if err := c.checkOpen(); err != nil {
		return 0, err
	}
	return c.store.Length(), nil
}

// GetMax returns the configured capacity.
func (c *Cache[V]) GetMax() (int, error) {
	if err := c.checkOpen(); err != nil {
		return 0, err
	}
	return c.store.Max(), nil
}

// GetMaxAge returns the configured TTL.
func (c *Cache[V]) GetMaxAge() (time.Duration, error) {
	if err := c.checkOpen(); err != nil {
		return 0, err
	}
	return c.store.MaxAge(), nil
}

// DoesAllowStale reports the configured (but not behaviorally enforced)
// AllowStale flag.
func (c *Cache[V]) DoesAllowStale() (bool, error) {
	if err := c.checkOpen(); err != nil {
		return false, err
	}
	return c.store.AllowStale(), nil
}

// OnInvalidationMessageReceived registers a listener for invalidation
// messages received from a peer. Messages this instance published itself
// are filtered out and do not fire the listener. content is the raw wire
// payload ("del:<key>" or "reset"), per spec.md §6.3.
func (c *Cache[V]) OnInvalidationMessageReceived(fn events.InvalidationListener) EventHandle {
	return c.events.OnInvalidationMessageReceived(fn)
}

// OnReconnecting registers a listener for the Connection Supervisor
// entering Reconnecting.
func (c *Cache[V]) OnReconnecting(fn events.ReconnectListener) EventHandle {
	return c.events.OnReconnecting(fn)
}

// OnReconnected registers a listener for the Connection Supervisor
// returning to Connected after a disconnect.
func (c *Cache[V]) OnReconnected(fn events.ReconnectListener) EventHandle {
	return c.events.OnReconnected(fn)
}

// Off removes a previously registered event listener.
func (c *Cache[V]) Off(h EventHandle) {
	c.events.Off(h)
}

// Close tears down the Connection Supervisor and its underlying session.
func (c *Cache[V]) Close() error {
	return c.sup.Close()
}

// onDisconnected is called by the Connection Supervisor the instant it
// enters Reconnecting, before the first Reconnecting event is emitted.
// Entries may now be stale relative to invalidations peers publish while
// this instance cannot receive them, so spec.md invariant I3 requires they
// be dropped immediately rather than only once reconnected.
func (c *Cache[V]) onDisconnected() {
	c.store.Reset()
	c.inflight.ForgetAll()
}

// onRecovered is called by the Connection Supervisor right before it
// resumes normal operation after a disconnect. If AllowStaleData let loads
// populate the store during the outage, those entries are now suspect too,
// so the only safe response is to drop everything local again and let
// callers reload.
func (c *Cache[V]) onRecovered() {
	c.store.Reset()
	c.inflight.ForgetAll()
}

func (c *Cache[V]) onDeliver(d bus.Delivery) {
	if d.OriginCacheID == c.cacheID {
		return
	}
	msg := invalidation.Decode(d.Body)
	switch msg.Verb {
	case invalidation.VerbReset:
		c.store.Reset()
		c.inflight.ForgetAll()
		c.events.EmitInvalidationMessageReceived(string(d.Body), d.OriginCacheID)
	case invalidation.VerbDelete:
		c.store.Del(msg.Key)
		c.inflight.Forget(msg.Key)
		c.events.EmitInvalidationMessageReceived(string(d.Body), d.OriginCacheID)
	default:
		c.logger.Printf("rabbitlru: ignoring unrecognized invalidation payload from %s", d.OriginCacheID)
	}
}

// isAbsent reports whether v is the zero value of V, the Go analogue of a
// loader signaling "null/undefined" with no error.
func isAbsent[V any](v V) bool {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return true
	}
	return rv.IsZero()
}

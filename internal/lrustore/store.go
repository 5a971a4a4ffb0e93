// Package lrustore adapts hashicorp/golang-lru/v2/expirable into the LRU
// Store external contract (spec.md §4.1): a bounded, TTL-aware key/value
// store with eager pruning and the inspector surface the Cache Facade
// passes through.
package lrustore

import (
	"errors"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// ErrInvalidMax is returned when Options.Max is not a positive capacity.
var ErrInvalidMax = errors.New("lrustore: max must be greater than zero")

// Options configures a Store. Max is the maximum number of entries kept;
// MaxAge, when non-zero, is the TTL applied to every entry. AllowStale is a
// passive inspector flag reported back through DoesAllowStale: spec.md §6.1
// notes it is "not interpreted by the core", so it changes no read/write
// behavior here — expirable.LRU always evicts expired entries rather than
// returning them.
type Options struct {
	Max        int
	MaxAge     time.Duration
	AllowStale bool
}

// Store is a generic, bounded, optionally-TTL'd key/value store keyed by
// string. V is the opaque application value type.
type Store[V any] struct {
	lru        *lru.LRU[string, V]
	max        int
	maxAge     time.Duration
	allowStale bool
}

// New constructs a Store. It returns ErrInvalidMax when opts.Max <= 0.
func New[V any](opts Options) (*Store[V], error) {
	if opts.Max <= 0 {
		return nil, ErrInvalidMax
	}
	return &Store[V]{
		lru:        lru.NewLRU[string, V](opts.Max, nil, opts.MaxAge),
		max:        opts.Max,
		maxAge:     opts.MaxAge,
		allowStale: opts.AllowStale,
	}, nil
}

// Get returns the value for key and whether it was present (and unexpired).
func (s *Store[V]) Get(key string) (V, bool) {
	return s.lru.Get(key)
}

// Set stores value under key, evicting the least-recently-used entry if the
// store is at capacity.
func (s *Store[V]) Set(key string, value V) {
	s.lru.Add(key, value)
}

// Del removes key, reporting whether it was present.
func (s *Store[V]) Del(key string) bool {
	return s.lru.Remove(key)
}

// Reset removes every entry.
func (s *Store[V]) Reset() {
	s.lru.Purge()
}

// Has reports whether key is present without affecting recency order.
func (s *Store[V]) Has(key string) bool {
	return s.lru.Contains(key)
}

// Keys returns all present keys, oldest first.
func (s *Store[V]) Keys() []string {
	return s.lru.Keys()
}

// Prune eagerly purges expired entries and returns how many were removed.
// expirable.LRU has no public force-expire call, so Prune walks a snapshot
// of the current keys and touches each through Get, whose read path already
// evicts anything past its TTL.
func (s *Store[V]) Prune() int {
	before := s.lru.Len()
	for _, key := range s.lru.Keys() {
		s.lru.Get(key)
	}
	after := s.lru.Len()
	return before - after
}

// ItemCount returns the current number of entries.
func (s *Store[V]) ItemCount() int {
	return s.lru.Len()
}

// Length is an alias for ItemCount, matching the Cache Facade's naming.
func (s *Store[V]) Length() int {
	return s.ItemCount()
}

// Max returns the configured capacity.
func (s *Store[V]) Max() int {
	return s.max
}

// MaxAge returns the configured TTL, zero if entries never expire.
func (s *Store[V]) MaxAge() time.Duration {
	return s.maxAge
}

// AllowStale reports the configured (but not behaviorally enforced) flag.
func (s *Store[V]) AllowStale() bool {
	return s.allowStale
}

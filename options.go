package rabbitlru

import "time"

// Logger is the logging contract the Cache consumes. log.Logger and
// slog-backed adapters satisfy it unmodified.
type Logger interface {
	Printf(format string, args ...any)
}

// Option configures a Cache at construction time.
type Option func(*config)

type config struct {
	logger    Logger
	reconnect ReconnectionOptions
}

// ReconnectionOptions tunes the Connection Supervisor's linear-capped
// backoff (spec.md §4.4). RetryIntervalIncrease is added to the retry
// interval after every failed attempt; RetryIntervalUpTo caps it. The first
// attempt always happens immediately, with a zero interval.
//
// AllowStaleData governs spec.md §4.2 step 4: a load that completes while
// the Connection Supervisor is Reconnecting is normally discarded rather
// than cached, since peers may have published invalidations this instance
// could not yet receive (invariant I3). Setting AllowStaleData to true
// opts into caching such loads anyway, trading coherence for availability
// during a reconnect window.
type ReconnectionOptions struct {
	RetryIntervalIncrease time.Duration
	RetryIntervalUpTo     time.Duration
	AllowStaleData        bool
}

func defaultReconnectionOptions() ReconnectionOptions {
	return ReconnectionOptions{
		RetryIntervalIncrease: time.Second,
		RetryIntervalUpTo:     30 * time.Second,
	}
}

// WithReconnectionOptions overrides the default backoff and the
// AllowStaleData gate.
func WithReconnectionOptions(opts ReconnectionOptions) Option {
	return func(cfg *config) {
		cfg.reconnect = opts
	}
}

// WithLogger sets the logger used for diagnostic messages (defaulting to
// log.Default() when not supplied).
func WithLogger(logger Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

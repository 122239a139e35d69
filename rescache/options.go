package rescache

import (
	"time"

	"github.com/joeycumines/logiface"
)

const defaultAsyncWorkers = 4

type (
	// Option models optional configuration, for New.
	Option func(*config)

	config struct {
		logger       *logiface.Logger[logiface.Event]
		defaultTTL   time.Duration
		asyncWorkers int64
	}
)

// WithLogger configures structured logging for diagnostics (recovered
// callback panics, failed asynchronous loads), at debug level. The default
// (nil) disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithDefaultTTL configures the expiry applied by AsyncLoad when no per-key
// duration has been recorded via SetExpirationTime. The default (0) means
// loaded entries never expire.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(c *config) {
		c.defaultTTL = ttl
	}
}

// WithAsyncWorkers bounds the number of concurrently-running asynchronous
// operations, if positive. Defaults to 4.
func WithAsyncWorkers(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.asyncWorkers = int64(n)
		}
	}
}

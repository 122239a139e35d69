package lru

import (
	"github.com/joeycumines/logiface"
)

type (
	// Option models optional configuration, for New.
	Option func(*config)

	config struct {
		logger *logiface.Logger[logiface.Event]
	}
)

// WithLogger configures structured logging. The logger is used for
// diagnostics only (e.g. recovered callback panics, at debug level); a nil
// logger disables logging, and is the default.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return func(c *config) {
		c.logger = logger
	}
}

package synchronizer

import (
	"time"

	"github.com/juju/clock"
	"go.uber.org/zap"
)

// Config bounds how hard a handle tries to resubscribe after its change
// stream drops.
type Config struct {
	ReconnectAttempts int
	ReconnectDelay    time.Duration
	ReconnectMaxDelay time.Duration
	// StableAfter is how long a stream must stay up before its drop no
	// longer counts toward ReconnectAttempts.
	StableAfter time.Duration
	Clock       clock.Clock
}

func DefaultConfig() Config {
	return Config{
		ReconnectAttempts: 5,
		ReconnectDelay:    500 * time.Millisecond,
		ReconnectMaxDelay: 10 * time.Second,
		StableAfter:       30 * time.Second,
		Clock:             clock.WallClock,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ReconnectAttempts <= 0 {
		c.ReconnectAttempts = d.ReconnectAttempts
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = d.ReconnectDelay
	}
	if c.ReconnectMaxDelay < c.ReconnectDelay {
		c.ReconnectMaxDelay = c.ReconnectDelay
	}
	if c.StableAfter <= 0 {
		c.StableAfter = d.StableAfter
	}
	if c.Clock == nil {
		c.Clock = d.Clock
	}
	return c
}

type options struct {
	config Config
	logger *zap.Logger
}

type Option func(*options)

func WithConfig(cfg Config) Option {
	return func(o *options) {
		o.config = cfg
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

package sqlite

import "time"

// ClientOption configures Client.
type ClientOption func(*ClientConfig)

// ClientConfig holds SQLite client configuration.
type ClientConfig struct {
	Path         string
	BusyTimeout  time.Duration
	MaxOpenConns int
}

// WithPath sets the database file path (or ":memory:").
func WithPath(path string) ClientOption {
	return func(c *ClientConfig) {
		c.Path = path
	}
}

// WithBusyTimeout sets how long a connection waits on a locked database.
func WithBusyTimeout(d time.Duration) ClientOption {
	return func(c *ClientConfig) {
		if d > 0 {
			c.BusyTimeout = d
		}
	}
}

// WithMaxOpenConns sets the pool size.
func WithMaxOpenConns(n int) ClientOption {
	return func(c *ClientConfig) {
		if n > 0 {
			c.MaxOpenConns = n
		}
	}
}

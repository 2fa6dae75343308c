package broker

import (
	"log/slog"
	"time"
)

// Option configures a Client during construction.
type Option func(*Client) error

// WithLogger sets the structured logger used by the client.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		if logger != nil {
			c.logger = logger
		}
		return nil
	}
}

// WithDialer overrides how MQTT clients are constructed. Used by tests to
// exercise the reconnect budget without a live broker.
func WithDialer(dial dialFunc) Option {
	return func(c *Client) error {
		if dial != nil {
			c.dial = dial
		}
		return nil
	}
}

// WithOnFatal registers a callback invoked once the reconnect budget is
// exhausted and the client enters StatusFatal.
func WithOnFatal(fn func(error)) Option {
	return func(c *Client) error {
		c.onFatal = fn
		return nil
	}
}

// WithOnReconnect registers a callback invoked after a successful
// mid-session reconnect (subscriptions are already replayed).
func WithOnReconnect(fn func()) Option {
	return func(c *Client) error {
		c.onReconnect = fn
		return nil
	}
}

// WithConnectedGauge wires a callback that mirrors the connected state
// into a metric gauge.
func WithConnectedGauge(set func(connected bool)) Option {
	return func(c *Client) error {
		c.connectedGauge = set
		return nil
	}
}

// WithPublishTimeout bounds the background wait on publish tokens.
func WithPublishTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d > 0 {
			c.publishTimeout = d
		}
		return nil
	}
}

// Package broker manages the single outbound MQTT connection shared by the
// ingestion subscriber and the synthetic emitters. It owns connect,
// reconnect-with-fixed-delay, subscription replay, and fire-and-forget
// publishing.
package broker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/Kevin-Teran/acuaponia-sub001/errors"
	"github.com/Kevin-Teran/acuaponia-sub001/pkg/retry"
)

// ConnectionStatus represents the state of the broker connection.
type ConnectionStatus int

// Possible connection statuses. StatusFatal means the reconnect budget is
// exhausted: the pipeline stops consuming until externally restarted.
const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	StatusFatal
)

// String returns the string representation of ConnectionStatus.
func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// MessageHandler receives messages delivered on a subscription.
type MessageHandler func(topic string, payload []byte)

// Config holds broker connection settings.
type Config struct {
	URL            string        `json:"url"`
	ClientID       string        `json:"client_id"`
	Username       string        `json:"username,omitempty"`
	Password       string        `json:"password,omitempty"`
	ConnectTimeout time.Duration `json:"connect_timeout"`
	ReconnectDelay time.Duration `json:"reconnect_delay"`
	MaxReconnects  int           `json:"max_reconnects"`
	KeepAlive      time.Duration `json:"keep_alive"`
}

// DefaultConfig returns sensible connection defaults: 4s per connect
// attempt, reconnect every 5s, give up after 10 attempts.
func DefaultConfig() Config {
	return Config{
		ClientID:       "acuaponia-pipeline",
		ConnectTimeout: 4 * time.Second,
		ReconnectDelay: 5 * time.Second,
		MaxReconnects:  10,
		KeepAlive:      30 * time.Second,
	}
}

type subscription struct {
	pattern string
	qos     byte
	handler MessageHandler
}

// dialFunc builds an MQTT client from options. Indirected so the reconnect
// budget is unit-testable without a broker.
type dialFunc func(*mqtt.ClientOptions) mqtt.Client

// Client manages the MQTT connection lifecycle.
type Client struct {
	cfg    Config
	logger *slog.Logger
	dial   dialFunc

	status     atomic.Value // ConnectionStatus
	dialCount  atomic.Int32
	reconnects atomic.Int32

	mu     sync.RWMutex
	client mqtt.Client
	subs   []subscription

	onFatal     func(error)
	onReconnect func()

	connectedGauge  func(bool)
	publishTimeout  time.Duration
	lifecycleCtx    context.Context
	lifecycleCancel context.CancelFunc
	closed          atomic.Bool
}

// New creates a broker client. The connection is not opened until Connect.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Client", "New", "broker URL")
	}
	def := DefaultConfig()
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = def.ConnectTimeout
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = def.ReconnectDelay
	}
	if cfg.MaxReconnects <= 0 {
		cfg.MaxReconnects = def.MaxReconnects
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = def.KeepAlive
	}
	if cfg.ClientID == "" {
		cfg.ClientID = def.ClientID
	}

	c := &Client{
		cfg:            cfg,
		logger:         slog.Default(),
		dial:           mqtt.NewClient,
		publishTimeout: cfg.ConnectTimeout,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, errors.WrapInvalid(err, "Client", "New", "apply option")
		}
	}

	c.status.Store(StatusDisconnected)
	c.lifecycleCtx, c.lifecycleCancel = context.WithCancel(context.Background())
	return c, nil
}

// Status returns the current connection status.
func (c *Client) Status() ConnectionStatus {
	v := c.status.Load()
	if v == nil {
		return StatusDisconnected
	}
	return v.(ConnectionStatus)
}

// IsConnected reports whether the connection is usable.
func (c *Client) IsConnected() bool {
	return c.Status() == StatusConnected
}

// DialAttempts returns the total number of connect attempts made.
func (c *Client) DialAttempts() int {
	return int(c.dialCount.Load())
}

// Reconnects returns how many mid-session reconnect rounds completed.
func (c *Client) Reconnects() int {
	return int(c.reconnects.Load())
}

func (c *Client) setStatus(s ConnectionStatus) {
	c.status.Store(s)
	if c.connectedGauge != nil {
		c.connectedGauge(s == StatusConnected)
	}
}

func (c *Client) buildOptions() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions().
		AddBroker(c.cfg.URL).
		SetClientID(c.cfg.ClientID).
		SetConnectTimeout(c.cfg.ConnectTimeout).
		SetKeepAlive(c.cfg.KeepAlive).
		SetAutoReconnect(false). // the client owns the retry budget
		SetCleanSession(true).
		SetConnectionLostHandler(c.handleConnectionLost)
	if c.cfg.Username != "" {
		opts.SetUsername(c.cfg.Username)
		opts.SetPassword(c.cfg.Password)
	}
	return opts
}

// Connect establishes the connection, retrying on the fixed delay up to
// the configured attempt cap. On exhaustion the client transitions to
// StatusFatal and returns a fatal ErrReconnectsExhausted.
func (c *Client) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return errors.WrapFatal(errors.ErrNotConnected, "Client", "Connect", "client closed")
	}
	c.setStatus(StatusConnecting)
	return c.connectWithBudget(ctx)
}

// connectWithBudget runs the bounded connect loop shared by Connect and
// the connection-lost path.
func (c *Client) connectWithBudget(ctx context.Context) error {
	cfg := retry.Fixed(c.cfg.MaxReconnects, c.cfg.ReconnectDelay)
	err := retry.Do(ctx, cfg, c.attemptConnect)
	if err != nil {
		c.setStatus(StatusFatal)
		fatal := errors.WrapFatal(errors.ErrReconnectsExhausted, "Client", "Connect",
			fmt.Sprintf("%d attempts to %s", c.cfg.MaxReconnects, c.cfg.URL))
		c.logger.Error("broker connection abandoned, pipeline stopped",
			"component", "broker", "attempts", c.cfg.MaxReconnects, "error", err)
		if c.onFatal != nil {
			c.onFatal(fatal)
		}
		return fatal
	}
	c.setStatus(StatusConnected)
	c.logger.Info("connected to broker", "component", "broker", "url", c.cfg.URL)
	return nil
}

// attemptConnect performs a single time-bounded connect attempt.
func (c *Client) attemptConnect() error {
	c.dialCount.Add(1)

	client := c.dial(c.buildOptions())
	token := client.Connect()
	if !token.WaitTimeout(c.cfg.ConnectTimeout) {
		client.Disconnect(0)
		return errors.ErrConnectTimeout
	}
	if err := token.Error(); err != nil {
		return err
	}

	c.mu.Lock()
	c.client = client
	subs := make([]subscription, len(c.subs))
	copy(subs, c.subs)
	c.mu.Unlock()

	// Replay subscriptions after a reconnect.
	for _, sub := range subs {
		if err := c.subscribeOn(client, sub); err != nil {
			c.logger.Warn("subscription replay failed",
				"component", "broker", "pattern", sub.pattern, "error", err)
		}
	}
	return nil
}

// handleConnectionLost runs the reconnect budget in the background. Message
// loss during the outage is acceptable; a silent infinite retry storm is not.
func (c *Client) handleConnectionLost(_ mqtt.Client, err error) {
	if c.closed.Load() {
		return
	}
	c.logger.Warn("broker connection lost", "component", "broker", "error", err)
	c.setStatus(StatusReconnecting)

	go func() {
		if rErr := c.connectWithBudget(c.lifecycleCtx); rErr == nil {
			c.reconnects.Add(1)
			if c.onReconnect != nil {
				c.onReconnect()
			}
		}
	}()
}

// Publish sends a message with at-most-once semantics relative to the
// caller: the returned error is informational and callers on the hot path
// are allowed to ignore it. Delivery failures after handoff are logged,
// never propagated.
func (c *Client) Publish(topic string, payload []byte, qos byte) error {
	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()

	if client == nil || !c.IsConnected() {
		c.logger.Warn("publish dropped, not connected", "component", "broker", "topic", topic)
		return errors.ErrNotConnected
	}

	token := client.Publish(topic, qos, false, payload)
	go func() {
		if token.WaitTimeout(c.publishTimeout) && token.Error() != nil {
			c.logger.Warn("publish failed", "component", "broker", "topic", topic, "error", token.Error())
		}
	}()
	return nil
}

// Subscribe registers a wildcard subscription. The pattern survives
// reconnects: it is replayed every time a new session is established.
func (c *Client) Subscribe(pattern string, qos byte, handler MessageHandler) error {
	sub := subscription{pattern: pattern, qos: qos, handler: handler}

	c.mu.Lock()
	c.subs = append(c.subs, sub)
	client := c.client
	c.mu.Unlock()

	if client == nil || !c.IsConnected() {
		// Deferred until Connect replays subscriptions.
		return nil
	}
	if err := c.subscribeOn(client, sub); err != nil {
		return errors.WrapTransient(err, "Client", "Subscribe", pattern)
	}
	return nil
}

func (c *Client) subscribeOn(client mqtt.Client, sub subscription) error {
	token := client.Subscribe(sub.pattern, sub.qos, func(_ mqtt.Client, msg mqtt.Message) {
		sub.handler(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(c.cfg.ConnectTimeout) {
		return errors.ErrConnectTimeout
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrSubscriptionFailed, err)
	}
	return nil
}

// Close tears the connection down and stops any in-flight reconnect loop.
func (c *Client) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	c.lifecycleCancel()

	c.mu.Lock()
	client := c.client
	c.client = nil
	c.mu.Unlock()

	if client != nil {
		client.Disconnect(250)
	}
	c.setStatus(StatusDisconnected)
	c.logger.Info("broker client closed", "component", "broker")
}

// Package fanout pushes readings and alerts to authenticated live clients
// over WebSocket. Delivery is push-only and lossy: a disconnected client
// gets no backfill, the REST surface stays the source of truth for
// historical state.
package fanout

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Kevin-Teran/acuaponia-sub001/metric"
	"github.com/Kevin-Teran/acuaponia-sub001/types"
)

// Directory verifies credentials during the connection handshake.
type Directory interface {
	VerifyCredential(ctx context.Context, token string) (types.Principal, error)
}

// Channel names. Elevated principals join ChannelAdmin; everyone else
// joins their own user channel.
const (
	ChannelAdmin      = "admin"
	channelUserPrefix = "user:"
)

// UserChannel returns the channel name for a user's own alerts.
func UserChannel(userID string) string {
	return channelUserPrefix + userID
}

// Event is the envelope pushed to clients.
type Event struct {
	Type string `json:"type"` // "reading" or "alert"
	Data any    `json:"data"`
}

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 45 * time.Second
)

type client struct {
	conn      *websocket.Conn
	principal types.Principal
	channel   string
	writeMu   sync.Mutex
	closeOnce sync.Once
}

func (c *client) send(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		_ = c.conn.Close()
	})
}

// Config holds fan-out server settings.
type Config struct {
	Addr string `json:"addr"`
	Path string `json:"path"`
}

// DefaultConfig returns the default listen settings.
func DefaultConfig() Config {
	return Config{Addr: ":8090", Path: "/ws"}
}

// Hub is the realtime fan-out server.
type Hub struct {
	cfg       Config
	directory Directory
	logger    *slog.Logger
	metrics   *metric.Metrics

	upgrader websocket.Upgrader
	server   *http.Server

	mu       sync.RWMutex
	clients  map[*client]struct{}
	channels map[string]map[*client]struct{}

	lifecycleMu sync.Mutex
	running     bool
}

// NewHub creates the hub. The directory is required: every connection must
// present a valid credential before any data is exchanged.
func NewHub(cfg Config, directory Directory, logger *slog.Logger, metrics *metric.Metrics) *Hub {
	if cfg.Addr == "" {
		cfg.Addr = DefaultConfig().Addr
	}
	if cfg.Path == "" {
		cfg.Path = DefaultConfig().Path
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		cfg:       cfg,
		directory: directory,
		logger:    logger,
		metrics:   metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(_ *http.Request) bool { return true },
		},
		clients:  make(map[*client]struct{}),
		channels: make(map[string]map[*client]struct{}),
	}
}

// Start launches the WebSocket server.
func (h *Hub) Start(_ context.Context) error {
	h.lifecycleMu.Lock()
	defer h.lifecycleMu.Unlock()
	if h.running {
		return nil
	}

	mux := http.NewServeMux()
	mux.HandleFunc(h.cfg.Path, h.handleWS)
	h.server = &http.Server{Addr: h.cfg.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		h.logger.Info("fan-out server listening", "component", "fanout", "addr", h.cfg.Addr, "path", h.cfg.Path)
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("fan-out server failed", "component", "fanout", "error", err)
		}
	}()

	h.running = true
	return nil
}

// Stop shuts the server down and closes every client connection.
func (h *Hub) Stop(timeout time.Duration) error {
	h.lifecycleMu.Lock()
	defer h.lifecycleMu.Unlock()
	if !h.running {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	err := h.server.Shutdown(ctx)

	h.mu.Lock()
	for c := range h.clients {
		c.close()
	}
	h.clients = make(map[*client]struct{})
	h.channels = make(map[string]map[*client]struct{})
	h.mu.Unlock()

	h.running = false
	return err
}

// credentialFrom extracts the client token from the query string or the
// Authorization header.
func credentialFrom(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	token := credentialFrom(r)
	if token == "" {
		http.Error(w, "missing credential", http.StatusUnauthorized)
		return
	}

	principal, err := h.directory.VerifyCredential(r.Context(), token)
	if err != nil {
		h.logger.Debug("handshake rejected", "component", "fanout", "error", err)
		http.Error(w, "invalid credential", http.StatusUnauthorized)
		return
	}
	if principal.Status != types.UserActive {
		http.Error(w, "account not active", http.StatusForbidden)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("upgrade failed", "component", "fanout", "error", err)
		return
	}

	channel := UserChannel(principal.ID)
	if principal.Role.Elevated() {
		channel = ChannelAdmin
	}
	c := &client{conn: conn, principal: principal, channel: channel}
	h.register(c)

	h.logger.Info("client connected",
		"component", "fanout", "user_id", principal.ID, "role", principal.Role, "channel", channel)

	go h.readLoop(c)
	go h.pingLoop(c)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	if h.channels[c.channel] == nil {
		h.channels[c.channel] = make(map[*client]struct{})
	}
	h.channels[c.channel][c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.FanoutClients.Set(float64(count))
	}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	if members, ok := h.channels[c.channel]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.channels, c.channel)
		}
	}
	count := len(h.clients)
	h.mu.Unlock()

	c.close()
	if h.metrics != nil {
		h.metrics.FanoutClients.Set(float64(count))
	}
}

// readLoop drains inbound frames to keep pong handling alive. Clients are
// not expected to send application data.
func (h *Hub) readLoop(c *client) {
	defer h.unregister(c)

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	c.conn.SetReadLimit(1024)

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) pingLoop(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for range ticker.C {
		c.writeMu.Lock()
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		err := c.conn.WriteMessage(websocket.PingMessage, nil)
		c.writeMu.Unlock()
		if err != nil {
			h.unregister(c)
			return
		}
	}
}

// EmitReading broadcasts a persisted reading to every connected observer.
// Tank-level visibility filtering is the directory and UI's concern, not
// the hub's.
func (h *Hub) EmitReading(r types.Reading) {
	data, err := json.Marshal(Event{Type: "reading", Data: r})
	if err != nil {
		h.logger.Error("reading marshal failed", "component", "fanout", "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	h.deliver(targets, data, "broadcast")
}

// EmitAlert pushes an alert to the owning user's channel and, for HIGH and
// CRITICAL severities, to the admin channel as well.
func (h *Hub) EmitAlert(a types.Alert) {
	data, err := json.Marshal(Event{Type: "alert", Data: a})
	if err != nil {
		h.logger.Error("alert marshal failed", "component", "fanout", "error", err)
		return
	}

	channels := make([]string, 0, 2)
	if a.OwnerUserID != "" {
		channels = append(channels, UserChannel(a.OwnerUserID))
	}
	if a.Severity.Notifiable() {
		channels = append(channels, ChannelAdmin)
	}

	for _, channel := range channels {
		h.mu.RLock()
		targets := make([]*client, 0, len(h.channels[channel]))
		for c := range h.channels[channel] {
			targets = append(targets, c)
		}
		h.mu.RUnlock()

		h.deliver(targets, data, channel)
	}
}

// deliver writes to each target; a failed write drops the client. Lossy by
// contract.
func (h *Hub) deliver(targets []*client, data []byte, channel string) {
	for _, c := range targets {
		if err := c.send(data); err != nil {
			h.logger.Debug("client write failed, dropping",
				"component", "fanout", "user_id", c.principal.ID, "error", err)
			h.unregister(c)
			continue
		}
		if h.metrics != nil {
			h.metrics.FanoutMessagesSent.WithLabelValues(channel).Inc()
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ChannelCount returns the number of clients in a channel.
func (h *Hub) ChannelCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

package channel

import (
	"net/http"
	"sync"
	"time"

	"shellpilot/internal/events"
	"shellpilot/internal/execution"
	"shellpilot/internal/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	DefaultEventRate  = 5.0
	DefaultEventBurst = 20

	defaultSendBuffer   = 256
	defaultPingInterval = 25 * time.Second
	defaultWriteWait    = 10 * time.Second
	maxFrameSize        = 64 * 1024
)

// Orchestrator is the part of the execution orchestrator the channel drives.
type Orchestrator interface {
	Execute(owner string, sink execution.Sink, req events.Execute) (string, error)
	Confirm(owner, id string) error
	Cancel(owner, id string) error
	Release(owner string)
}

// Handler serves the chat event channel over websocket. Clients must present
// a valid token before the upgrade; each connection owns the executions it
// starts.
type Handler struct {
	orchestrator Orchestrator
	verifier     TokenVerifier
	upgrader     websocket.Upgrader

	eventRate    rate.Limit
	eventBurst   int
	sendBuffer   int
	pingInterval time.Duration
	writeWait    time.Duration

	mu    sync.Mutex
	conns map[string]*conn
}

type Option func(*Handler)

// WithRateLimit bounds inbound events per connection.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(h *Handler) {
		h.eventRate = rate.Limit(perSecond)
		h.eventBurst = burst
	}
}

// WithAllowedOrigin restricts browser upgrades to one origin. "*" or an empty
// value accepts any origin.
func WithAllowedOrigin(origin string) Option {
	return func(h *Handler) {
		if origin == "" || origin == "*" {
			h.upgrader.CheckOrigin = func(r *http.Request) bool { return true }
			return
		}

		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			requestOrigin := r.Header.Get("Origin")
			return requestOrigin == "" || requestOrigin == origin
		}
	}
}

func WithPingInterval(d time.Duration) Option {
	return func(h *Handler) { h.pingInterval = d }
}

func NewHandler(orchestrator Orchestrator, verifier TokenVerifier, opts ...Option) *Handler {
	h := &Handler{
		orchestrator: orchestrator,
		verifier:     verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		eventRate:    DefaultEventRate,
		eventBurst:   DefaultEventBurst,
		sendBuffer:   defaultSendBuffer,
		pingInterval: defaultPingInterval,
		writeWait:    defaultWriteWait,
		conns:        make(map[string]*conn),
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := tokenFromRequest(r)

	subject, err := h.verifier.Verify(r.Context(), token)

	if err != nil {
		logger.Warn("[%s] Refusing channel connection from %s: %v", r.Method, r.RemoteAddr, err)
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)

	if err != nil {
		logger.Error("[%s] Failed to upgrade channel connection from %s: %v", r.Method, r.RemoteAddr, err)
		return
	}

	c := &conn{
		id:        uuid.NewString(),
		subject:   subject,
		ws:        ws,
		send:      make(chan events.Event, h.sendBuffer),
		done:      make(chan struct{}),
		limiter:   rate.NewLimiter(h.eventRate, h.eventBurst),
		handler:   h,
		writeWait: h.writeWait,
	}

	h.track(c)
	defer h.untrack(c)

	logger.Info("Channel connection %s opened by %s", c.id, c.subject)

	go c.writeLoop(h.pingInterval)
	c.readLoop(2 * h.pingInterval)

	h.orchestrator.Release(c.id)

	logger.Info("Channel connection %s closed", c.id)
}

// Connections returns the number of open connections.
func (h *Handler) Connections() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.conns)
}

// CloseAll sends a close frame on every open connection. Used at shutdown,
// since hijacked connections are not tracked by http.Server.
func (h *Handler) CloseAll() {
	h.mu.Lock()
	conns := make([]*conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		c.closeWithMessage(websocket.CloseGoingAway, "server shutting down")
	}
}

func (h *Handler) track(c *conn) {
	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()
}

func (h *Handler) untrack(c *conn) {
	h.mu.Lock()
	delete(h.conns, c.id)
	h.mu.Unlock()
}

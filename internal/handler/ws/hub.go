package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"CourtArb/internal/domain/models"
	domrepo "CourtArb/internal/domain/repository"
	applogger "CourtArb/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	MessageSnapshot = "snapshot"

	defaultPath         = "/ws"
	defaultSendBuffer   = 16
	defaultPingInterval = 30 * time.Second
	defaultWriteTimeout = 10 * time.Second
	broadcastBuffer     = 8
)

// Message is the envelope pushed to every subscriber.
type Message struct {
	Type      string                `json:"type"`
	Timestamp time.Time             `json:"timestamp"`
	Events    []models.UnifiedEvent `json:"events"`
}

// Option configures Hub.
type Option func(*Hub)

func WithPath(path string) Option {
	return func(h *Hub) {
		if path != "" {
			h.path = path
		}
	}
}

// WithSendBuffer bounds how many messages may queue for one client before it
// is dropped as too slow.
func WithSendBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.sendBuffer = n
		}
	}
}

func WithPing(interval, writeTimeout time.Duration) Option {
	return func(h *Hub) {
		if interval > 0 {
			h.pingInterval = interval
		}
		if writeTimeout > 0 {
			h.writeTimeout = writeTimeout
		}
	}
}

// WithSnapshotSource makes the hub greet new clients with the current snapshot.
func WithSnapshotSource(r domrepo.EventReader) Option {
	return func(h *Hub) {
		h.source = r
	}
}

func WithLogger(l *applogger.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.l = l
		}
	}
}

// Hub fans cycle snapshots out to WebSocket subscribers. The client set is
// owned by the Run goroutine.
type Hub struct {
	path         string
	sendBuffer   int
	pingInterval time.Duration
	writeTimeout time.Duration
	source       domrepo.EventReader
	l            *applogger.Logger
	now          func() time.Time

	upgrader   websocket.Upgrader
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}

	mu      sync.RWMutex
	clients map[*Client]struct{}
}

var _ domrepo.SnapshotHook = (*Hub)(nil)

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		path:         defaultPath,
		sendBuffer:   defaultSendBuffer,
		pingInterval: defaultPingInterval,
		writeTimeout: defaultWriteTimeout,
		l:            applogger.NewNop(),
		now:          time.Now,
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		broadcast:    make(chan []byte, broadcastBuffer),
		done:         make(chan struct{}),
		clients:      make(map[*Client]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(*http.Request) bool { return true },
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run owns the client set until ctx is cancelled, then disconnects everyone.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.l.Debug("ws client connected", applogger.String("remote", c.remote), applogger.Int("clients", n))

		case c := <-h.unregister:
			h.drop(c)

		case msg := <-h.broadcast:
			h.mu.RLock()
			var slow []*Client
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					slow = append(slow, c)
				}
			}
			h.mu.RUnlock()
			for _, c := range slow {
				h.l.Warn("ws client too slow, dropping", applogger.String("remote", c.remote))
				h.drop(c)
			}
		}
	}
}

func (h *Hub) drop(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	h.l.Debug("ws client disconnected", applogger.String("remote", c.remote), applogger.Int("clients", n))
}

func (h *Hub) Name() string { return "websocket" }

// OnSnapshot queues the snapshot for every subscriber. It never blocks the
// aggregation loop: a full broadcast queue drops the message.
func (h *Hub) OnSnapshot(ctx context.Context, events []models.UnifiedEvent) error {
	payload, err := h.encode(events)
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- payload:
		return nil
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("ws broadcast queue full, snapshot dropped")
	}
}

func (h *Hub) encode(events []models.UnifiedEvent) ([]byte, error) {
	if events == nil {
		events = []models.UnifiedEvent{}
	}
	b, err := json.Marshal(Message{Type: MessageSnapshot, Timestamp: h.now().UTC(), Events: events})
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return b, nil
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) RegisterRoutes(e *echo.Echo) {
	e.GET(h.path, h.Serve)
}

// Serve upgrades the request and attaches the connection to the hub.
func (h *Hub) Serve(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.l.Warn("ws upgrade failed", applogger.Error(err))
		return nil
	}

	client := newClient(h, conn, c.RealIP())
	if h.source != nil {
		if greeting, err := h.encode(h.source.List(domrepo.EventFilter{})); err == nil {
			client.send <- greeting
		}
	}

	select {
	case h.register <- client:
	case <-h.done:
		_ = conn.Close()
		return nil
	}

	go client.WritePump()
	go client.ReadPump()
	return nil
}

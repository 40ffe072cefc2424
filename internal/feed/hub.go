// Package feed broadcasts engagement snapshots to renderers over websockets
// and accepts their control commands.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/signalsfoundry/engagement-simulator/core"
	"github.com/signalsfoundry/engagement-simulator/internal/logging"
	"github.com/signalsfoundry/engagement-simulator/internal/sim/session"
	"github.com/signalsfoundry/engagement-simulator/model"
)

const (
	writeWait = 10 * time.Second

	pongWait = 60 * time.Second

	// Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Renderers only send small command messages.
	maxMessageSize = 16 * 1024

	// DefaultClientBuffer is the per-client outbound queue length.
	DefaultClientBuffer = 32
)

// Message types on the wire.
const (
	TypeSnapshot  = "snapshot"
	TypeError     = "error"
	TypeEngage    = "engage"
	TypeAbort     = "abort"
	TypeReset     = "reset"
	TypeConfigure = "configure"
)

// ErrHubClosed is returned when publishing to a closed hub.
var ErrHubClosed = errors.New("feed hub closed")

// Message is the envelope for every frame in both directions.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ConfigurePayload carries a partial configuration change from a renderer.
type ConfigurePayload struct {
	MissileSpeed *float64             `json:"missileSpeed,omitempty"`
	TargetSpeed  *float64             `json:"targetSpeed,omitempty"`
	Scenario     *model.ScenarioKind  `json:"scenario,omitempty"`
	Target       *model.TargetID      `json:"target,omitempty"`
	Environment  *model.EnvironmentID `json:"environment,omitempty"`
	Illumination *float64             `json:"illumination,omitempty"`
}

// Update converts the payload to a session update.
func (p ConfigurePayload) Update() session.Update {
	return session.Update{
		MissileSpeed: p.MissileSpeed,
		TargetSpeed:  p.TargetSpeed,
		Scenario:     p.Scenario,
		Target:       p.Target,
		Environment:  p.Environment,
		Illumination: p.Illumination,
	}
}

// Commander executes renderer commands. *session.Session satisfies it.
type Commander interface {
	Engage(ctx context.Context) error
	Abort(ctx context.Context) error
	Reset(ctx context.Context) error
	Apply(ctx context.Context, u session.Update) error
}

// SubscriberGauge tracks connected renderers.
type SubscriberGauge interface {
	SetFeedSubscribers(n int)
}

// Option customises a Hub.
type Option func(*Hub)

// WithLogger sets the hub logger.
func WithLogger(l logging.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.log = l
		}
	}
}

// WithCommander enables inbound commands. Without one, command frames are
// answered with an error frame.
func WithCommander(c Commander) Option {
	return func(h *Hub) {
		h.commands = c
	}
}

// WithSubscriberGauge reports the client count on every change.
func WithSubscriberGauge(g SubscriberGauge) Option {
	return func(h *Hub) {
		h.gauge = g
	}
}

// WithClientBuffer sets the outbound queue length per client.
func WithClientBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// WithCheckOrigin overrides the upgrade origin check. The default accepts
// every origin.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(h *Hub) {
		if fn != nil {
			h.upgrader.CheckOrigin = fn
		}
	}
}

// Hub fans snapshots out to websocket clients. Publish never blocks: a
// client whose queue is full loses its oldest queued frame.
type Hub struct {
	mu       sync.Mutex
	clients  map[string]*client
	latest   []byte
	closed   bool
	upgrader websocket.Upgrader
	buffer   int

	commands Commander
	gauge    SubscriberGauge
	log      logging.Logger
}

type client struct {
	id   string
	send chan []byte
}

// NewHub constructs an empty hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		clients: make(map[string]*client),
		buffer:  DefaultClientBuffer,
		log:     logging.Noop(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP upgrades the request and registers the connection. A new
// client immediately receives the latest snapshot, if any.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		http.Error(w, ErrHubClosed.Error(), http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn(r.Context(), "websocket upgrade failed", logging.Err(err))
		return
	}

	c := &client{
		id:   uuid.NewString(),
		send: make(chan []byte, h.buffer),
	}
	if !h.register(c) {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ErrHubClosed.Error()))
		_ = conn.Close()
		return
	}
	h.log.Info(r.Context(), "renderer connected",
		logging.String("client_id", c.id),
		logging.String("remote", r.RemoteAddr),
	)

	go h.writePump(conn, c)
	go h.readPump(conn, c)
}

// Publish broadcasts snap to every client. It is safe to call from a
// session subscriber.
func (h *Hub) Publish(snap core.Snapshot) error {
	msg, err := encode(TypeSnapshot, snap)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrHubClosed
	}
	h.latest = msg
	for _, c := range h.clients {
		offerLatest(c.send, msg)
	}
	return nil
}

// Clients returns the number of connected renderers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and rejects new ones. It is idempotent.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	for id, c := range h.clients {
		delete(h.clients, id)
		close(c.send)
	}
	h.mu.Unlock()

	h.reportClients(0)
	return nil
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	h.clients[c.id] = c
	if h.latest != nil {
		c.send <- h.latest
	}
	n := len(h.clients)
	h.mu.Unlock()

	h.reportClients(n)
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.id)
	close(c.send)
	n := len(h.clients)
	h.mu.Unlock()

	h.reportClients(n)
	h.log.Info(context.Background(), "renderer disconnected", logging.String("client_id", c.id))
}

// reply queues a frame for a single client.
func (h *Hub) reply(c *client, msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.id]; ok {
		offerLatest(c.send, msg)
	}
}

func (h *Hub) reportClients(n int) {
	if h.gauge != nil {
		h.gauge.SetFeedSubscribers(n)
	}
}

func (h *Hub) readPump(conn *websocket.Conn, c *client) {
	defer func() {
		h.unregister(c)
		_ = conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn(context.Background(), "websocket read failed",
					logging.String("client_id", c.id), logging.Err(err))
			}
			return
		}
		if err := h.handleMessage(c, data); err != nil {
			if msg, encErr := encode(TypeError, map[string]string{"message": err.Error()}); encErr == nil {
				h.reply(c, msg)
			}
		}
	}
}

func (h *Hub) writePump(conn *websocket.Conn, c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) handleMessage(c *client, data []byte) error {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("malformed message: %w", err)
	}
	if h.commands == nil {
		return fmt.Errorf("commands are not accepted on this feed")
	}

	ctx, reqID := logging.EnsureRequestID(context.Background())
	log := h.log.With(logging.String("client_id", c.id), logging.String("request_id", reqID))
	log.Debug(ctx, "renderer command", logging.String("type", msg.Type))

	switch msg.Type {
	case TypeEngage:
		return h.commands.Engage(ctx)
	case TypeAbort:
		return h.commands.Abort(ctx)
	case TypeReset:
		return h.commands.Reset(ctx)
	case TypeConfigure:
		var p ConfigurePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return fmt.Errorf("malformed configure payload: %w", err)
		}
		return h.commands.Apply(ctx, p.Update())
	default:
		return fmt.Errorf("unknown message type %q", msg.Type)
	}
}

func encode(kind string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", kind, err)
	}
	return json.Marshal(Message{Type: kind, Payload: raw})
}

// offerLatest queues msg without blocking, evicting the oldest frame when
// ch is full. Callers hold the hub lock.
func offerLatest(ch chan []byte, msg []byte) {
	select {
	case ch <- msg:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- msg:
	default:
	}
}

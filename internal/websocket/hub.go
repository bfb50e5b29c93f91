package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"co2forecast/internal/infrastructure"
	"co2forecast/pkg/contracts/events"
)

const broadcastBuffer = 256

type outbound struct {
	workspaceID string
	messageType events.MessageType
	traceID     string
	payload     []byte
}

// Hub keeps the connected clients grouped by workspace and fans messages
// out to them. All client bookkeeping happens on the Run goroutine.
type Hub struct {
	clients     map[*Client]struct{}
	byWorkspace map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	broadcast  chan outbound
	stopped    chan struct{}

	// mu guards the maps for readers outside Run.
	mu sync.RWMutex

	metrics *Metrics
	logger  *slog.Logger
}

// NewHub creates a hub. metrics may be nil.
func NewHub(logger *slog.Logger, metrics *Metrics) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &Hub{
		clients:     make(map[*Client]struct{}),
		byWorkspace: make(map[string]map[*Client]struct{}),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan outbound, broadcastBuffer),
		stopped:     make(chan struct{}),
		metrics:     metrics,
		logger:      logger.With(slog.String("component", "websocket.hub")),
	}
}

// Run serves registrations and broadcasts until ctx is cancelled, then
// disconnects every client.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.stopped)
	h.logger.InfoContext(ctx, "hub started")

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			h.logger.Info("hub stopped")
			return nil

		case client := <-h.register:
			h.add(client)

		case client := <-h.unregister:
			h.remove(client, "client_closed")

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

// Register adds a client. It returns false if the hub is no longer running.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.stopped:
		return false
	}
}

// Unregister removes a client and closes its send queue.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.stopped:
	}
}

// Publish queues msg for the clients of msg.WorkspaceID. It never blocks:
// when the queue is full the message is dropped and logged.
func (h *Hub) Publish(msg events.Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	ctx := context.Background()
	if msg.TraceID != "" {
		ctx = infrastructure.WithTraceID(ctx, msg.TraceID)
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to marshal message",
			slog.String("message_type", string(msg.Type)),
			slog.String("error", err.Error()))
		return
	}

	select {
	case <-h.stopped:
		return
	default:
	}

	select {
	case h.broadcast <- outbound{workspaceID: msg.WorkspaceID, messageType: msg.Type, traceID: msg.TraceID, payload: payload}:
	default:
		h.metrics.recordDropped(ctx, "broadcast")
		h.logger.WarnContext(ctx, "broadcast queue full, message dropped",
			slog.String("message_type", string(msg.Type)),
			slog.String("workspace_id", msg.WorkspaceID))
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// WorkspaceClientCount returns the number of clients watching workspaceID.
func (h *Hub) WorkspaceClientCount(workspaceID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byWorkspace[workspaceID])
}

func (h *Hub) add(client *Client) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	set, ok := h.byWorkspace[client.workspaceID]
	if !ok {
		set = make(map[*Client]struct{})
		h.byWorkspace[client.workspaceID] = set
	}
	set[client] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()

	ctx := client.context()
	h.metrics.recordConnection(ctx)
	h.logger.InfoContext(ctx, "client registered",
		slog.String("client_id", client.id),
		slog.String("workspace_id", client.workspaceID),
		slog.String("remote_addr", client.remoteAddr),
		slog.Int("total_clients", total))

	welcome, err := json.Marshal(events.Message{
		Type:        events.TypeConnection,
		WorkspaceID: client.workspaceID,
		Data: map[string]string{
			"status":    "connected",
			"client_id": client.id,
		},
		Timestamp: time.Now().UTC(),
		TraceID:   client.traceID,
	})
	if err != nil {
		return
	}
	select {
	case client.send <- welcome:
	default:
		h.logger.WarnContext(ctx, "client buffer full, connection message dropped",
			slog.String("client_id", client.id))
	}
}

func (h *Hub) remove(client *Client, reason string) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	if set := h.byWorkspace[client.workspaceID]; set != nil {
		delete(set, client)
		if len(set) == 0 {
			delete(h.byWorkspace, client.workspaceID)
		}
	}
	close(client.send)
	total := len(h.clients)
	h.mu.Unlock()

	ctx := client.context()
	duration := time.Since(client.connectedAt)
	h.metrics.recordDisconnection(ctx, duration, reason)
	h.logger.InfoContext(ctx, "client unregistered",
		slog.String("client_id", client.id),
		slog.String("reason", reason),
		slog.Duration("connection_duration", duration),
		slog.Int("total_clients", total))
}

func (h *Hub) deliver(msg outbound) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.byWorkspace[msg.workspaceID]))
	for client := range h.byWorkspace[msg.workspaceID] {
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	ctx := context.Background()
	if msg.traceID != "" {
		ctx = infrastructure.WithTraceID(ctx, msg.traceID)
	}

	sent := 0
	for _, client := range targets {
		select {
		case client.send <- msg.payload:
			sent++
		default:
			h.metrics.recordDropped(ctx, "client")
			h.remove(client, "send_buffer_full")
		}
	}
	h.metrics.recordSent(ctx, string(msg.messageType), sent)

	h.logger.DebugContext(ctx, "message delivered",
		slog.String("message_type", string(msg.messageType)),
		slog.String("workspace_id", msg.workspaceID),
		slog.Int("clients", sent),
		slog.Int("dropped", len(targets)-sent))
}

func (h *Hub) shutdown() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		h.remove(client, "server_shutdown")
	}
}

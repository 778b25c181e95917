package rpc

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/athanor-escrow/escrowd/escrow"
	"github.com/athanor-escrow/escrowd/monitor"
)

// Event is a lifecycle notification pushed to websocket subscribers: escrow
// expiry warnings, expiries and dispute escalations (spec.md §4.7's monitor
// events). Other orchestrator status changes are not pushed.
// Polling sync_and_get_balance/export_dispute remains the source of truth;
// this is a best-effort push channel only.
type Event struct {
	EscrowID string    `json:"escrow_id"`
	Kind     string    `json:"kind"`
	At       time.Time `json:"at"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub fans out Events to every currently-connected websocket client,
// mirroring the teacher's ws.go push channel for swap status updates
// (rpc/server.go "wsServer") but carrying escrow lifecycle events instead
// of swap protocol messages.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// NewHub constructs an empty Hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]struct{})}
}

// ServeHTTP upgrades the connection and keeps it registered until the
// client disconnects. Incoming messages from the client are discarded; this
// is a push-only channel.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("rpc: websocket upgrade failed: %s", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Broadcast sends ev to every connected client, dropping any client whose
// write fails (it will be cleaned up by its own ServeHTTP goroutine).
func (h *Hub) Broadcast(ev Event) {
	raw, err := json.Marshal(ev)
	if err != nil {
		log.Warnf("rpc: failed to encode websocket event: %s", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
			log.Warnf("rpc: failed to push event to websocket client: %s", err)
		}
	}
}

// hubNotifier adapts a Hub into a monitor.Notifier, broadcasting every
// timeout-monitor event to websocket subscribers while still forwarding to
// next (normally orchestrator.Notifier(), which only logs).
type hubNotifier struct {
	hub  *Hub
	next monitor.Notifier
}

// NotifierWithHub wraps next so every event it receives is also broadcast
// over hub, giving websocket clients a live feed of the spec.md §4.7 timeout
// sweep alongside whatever next already does.
func NotifierWithHub(hub *Hub, next monitor.Notifier) monitor.Notifier {
	return hubNotifier{hub: hub, next: next}
}

func (h hubNotifier) NotifyExpiryWarning(id escrow.ID, expiresAt time.Time) {
	h.hub.Broadcast(Event{EscrowID: id.String(), Kind: "expiry_warning", At: expiresAt})
	h.next.NotifyExpiryWarning(id, expiresAt)
}

func (h hubNotifier) NotifyExpired(id escrow.ID) {
	h.hub.Broadcast(Event{EscrowID: id.String(), Kind: "expired", At: time.Now()})
	h.next.NotifyExpired(id)
}

func (h hubNotifier) NotifyEscalated(id escrow.ID) {
	h.hub.Broadcast(Event{EscrowID: id.String(), Kind: "escalated", At: time.Now()})
	h.next.NotifyEscalated(id)
}
